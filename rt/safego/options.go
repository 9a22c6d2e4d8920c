package safego

import "log/slog"

type config struct {
	name string
	tags []Tag

	finally []func()

	logger *slog.Logger

	onError             ErrorHandler
	reportContextCancel bool

	onPanic     PanicHandler
	panicPolicy PanicPolicy
}

// Option configures a single Go/GoErr/Run/RunErr call.
type Option func(*config)

func applyOptions(opts []Option) config {
	c := config{panicPolicy: RecoverAndReport}
	for _, opt := range opts {
		if opt != nil {
			opt(&c)
		}
	}
	return c
}

func (c *config) log() *slog.Logger {
	if c.logger != nil {
		return c.logger
	}
	return slog.Default()
}

// WithName sets a human-friendly name used in reports.
func WithName(name string) Option {
	return func(c *config) { c.name = name }
}

// WithTag appends a single key/value pair to reports.
func WithTag(key, value string) Option {
	return func(c *config) {
		c.tags = append(c.tags, Tag{Key: key, Value: value})
	}
}

// WithTags appends tags to reports, preserving order.
func WithTags(tags ...Tag) Option {
	return func(c *config) {
		c.tags = append(c.tags, tags...)
	}
}

// WithFinally registers fn to run when execution finishes, whatever the outcome.
//
// Finalizers run in LIFO order. A panicking finalizer is recovered and reported, never rethrown.
func WithFinally(fn func()) Option {
	return func(c *config) {
		if fn != nil {
			c.finally = append(c.finally, fn)
		}
	}
}

// WithLogger sets the logger used when no handler is configured, and for failures inside
// handlers.
//
// Default: slog.Default(). If l is nil, it leaves the default unchanged.
func WithLogger(l *slog.Logger) Option {
	return func(c *config) {
		if l != nil {
			c.logger = l
		}
	}
}

// WithErrorHandler sets the error handler. Without one, errors are logged at ERROR.
func WithErrorHandler(h ErrorHandler) Option {
	return func(c *config) { c.onError = h }
}

// WithReportContextCancel controls whether context.Canceled and context.DeadlineExceeded are
// reported. Default: false.
func WithReportContextCancel(report bool) Option {
	return func(c *config) { c.reportContextCancel = report }
}

// WithPanicHandler sets the panic handler. Without one, panics are logged at ERROR with their
// stack (unless the policy is RecoverOnly).
func WithPanicHandler(h PanicHandler) Option {
	return func(c *config) { c.onPanic = h }
}

// WithPanicPolicy sets the panic handling policy. Default: RecoverAndReport.
func WithPanicPolicy(p PanicPolicy) Option {
	return func(c *config) { c.panicPolicy = p }
}
