package taskreg

import "log/slog"

// Option configures a Registry.
type Option func(*config)

type config struct {
	logger *slog.Logger
	fatal  func(*Violation)
	onDone func(Snapshot)
}

// WithLogger sets the logger violations and hook failures are reported to.
//
// Default: slog.Default(). If l is nil, it leaves the default unchanged.
func WithLogger(l *slog.Logger) Option {
	return func(c *config) {
		if l != nil {
			c.logger = l
		}
	}
}

// WithFatalHandler replaces the handler invoked for violations.
//
// The handler must not return. If it does, the registry panics with the violation. The default
// handler prints the violation and a stack trace to stderr and exits with status 2.
func WithFatalHandler(fn func(*Violation)) Option {
	return func(c *config) {
		if fn != nil {
			c.fatal = fn
		}
	}
}

// WithOnDone registers a hook that is called with the task's snapshot when a scope ends.
//
// The hook runs on the goroutine ending the scope. Panics in it are recovered and logged.
func WithOnDone(fn func(Snapshot)) Option {
	return func(c *config) { c.onDone = fn }
}

func applyOptions(opts []Option) config {
	var c config
	for _, opt := range opts {
		if opt != nil {
			opt(&c)
		}
	}
	return c
}
