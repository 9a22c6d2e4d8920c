// Package safego runs functions so that their failures stay observable.
//
// Go/GoErr start a new goroutine; Run/RunErr execute on the calling one. None of them return
// errors to the caller: a returned error goes to WithErrorHandler, a panic to WithPanicHandler,
// and without handlers both are logged at ERROR through the configured *slog.Logger
// (slog.Default() unless WithLogger is given).
//
// context.Canceled and context.DeadlineExceeded are not reported by default, since they are the
// normal way for background work to stop. Use WithReportContextCancel(true) to see them.
//
// # Panic policy
//
// RecoverAndReport (default) recovers and reports. RecoverOnly recovers silently.
// RepanicAfterReport reports and then panics again with the same value.
//
// # Finalizers
//
// WithFinally functions always run, in LIFO order, including when the function repanics. A
// panicking finalizer is recovered and reported.
//
//	wg.Add(1)
//	safego.GoErr(ctx, refresh,
//		safego.WithName("cache-refresh"),
//		safego.WithFinally(wg.Done),
//	)
//
// The task registry builds on this: taskreg.Registry.Go runs subtasks through GoErr and releases
// the subtask's reference from a finalizer.
package safego
