package httpx

import (
	"log/slog"
	"net/http"

	"github.com/evan-idocoding/inflight/rt/taskreg"
)

// DefaultTrackRoot is the root name request tasks are registered under.
const DefaultTrackRoot = "http"

// TrackOption configures the Track middleware.
type TrackOption func(*trackConfig)

type trackConfig struct {
	root  string
	state func(*http.Request) string
	skip  func(*http.Request) bool

	logger *slog.Logger
}

// WithTrackRoot sets the root name of request tasks. Empty names are ignored.
func WithTrackRoot(name string) TrackOption {
	return func(c *trackConfig) {
		if name != "" {
			c.root = name
		}
	}
}

// WithTrackState sets the initial state of a request task. Default: "<METHOD> <path>".
func WithTrackState(fn func(*http.Request) string) TrackOption {
	return func(c *trackConfig) {
		if fn != nil {
			c.state = fn
		}
	}
}

// WithTrackSkip excludes requests for which fn returns true.
func WithTrackSkip(fn func(*http.Request) bool) TrackOption {
	return func(c *trackConfig) { c.skip = fn }
}

// WithTrackLogger sets the logger request tasks are announced on at DEBUG. Default: slog.Default().
func WithTrackLogger(l *slog.Logger) TrackOption {
	return func(c *trackConfig) {
		if l != nil {
			c.logger = l
		}
	}
}

// Track returns a middleware that registers every request as a root task in reg.
//
// The task lives for the duration of the handler. Its scope is stored in the request context
// (taskreg.ScopeFromContext), so handlers can update the state and hang subtasks off
// scope.Task().
func Track(reg *taskreg.Registry, opts ...TrackOption) Middleware {
	if reg == nil {
		panic("httpx: nil task registry")
	}
	cfg := trackConfig{
		root:  DefaultTrackRoot,
		state: defaultTrackState,

		logger: slog.Default(),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(&cfg)
		}
	}

	return func(next http.Handler) http.Handler {
		if next == nil {
			panic("httpx: nil next handler")
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if cfg.skip != nil && cfg.skip(r) {
				next.ServeHTTP(w, r)
				return
			}
			h, sc := reg.StartTask(cfg.root)
			defer h.Release()
			defer sc.End()
			sc.UpdateState(cfg.state(r))
			if id, ok := RequestIDFromRequest(r); ok {
				cfg.logger.LogAttrs(r.Context(), slog.LevelDebug, "httpx: tracking request",
					slog.String("request_id", id),
					slog.Uint64("task_id", uint64(h.ID())),
				)
			}
			next.ServeHTTP(w, r.WithContext(taskreg.ContextWithScope(r.Context(), sc)))
		})
	}
}

func defaultTrackState(r *http.Request) string {
	path := ""
	if r.URL != nil {
		path = r.URL.Path
	}
	return r.Method + " " + path
}
