// Package httpx holds the net/http plumbing of inflight: middleware composition plus the three
// middlewares every served request passes through.
//
//   - RequestID assigns (or accepts) a request id and stores it in the context.
//   - Track registers each request as a root task in a taskreg.Registry, so in-flight requests
//     show up next to the background work they fan out to.
//   - Recover keeps the server alive when a handler panics and records the panic on the
//     request's task.
//
// The recommended order puts Recover innermost, so it sees the request id and the task scope:
//
//	h := httpx.Wrap(mux,
//		httpx.RequestID(),
//		httpx.Track(reg),
//		httpx.Recover(),
//	)
//
// Chain(a, b, c).Handler(h) returns a(b(c(h))). Nil middlewares are ignored; a nil endpoint or a
// nil next handler is an assembly error and panics.
package httpx
