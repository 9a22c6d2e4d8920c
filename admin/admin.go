package admin

import (
	"log/slog"
	"net/http"

	"github.com/evan-idocoding/inflight/httpx"
)

// New assembles the admin subtree handler.
//
// Nothing is mounted unless enabled by an option, and every enabled endpoint needs an explicit
// non-nil Guard. Assembly mistakes (nil guard, duplicated or malformed path) panic.
func New(opts ...Option) http.Handler {
	b := newBuilder()
	for _, opt := range opts {
		if opt != nil {
			opt(b)
		}
	}
	return b.build()
}

// Option configures admin assembly.
type Option func(*Builder)

// WithLogger sets the logger the admin subtree reports recovered panics to.
func WithLogger(l *slog.Logger) Option {
	return func(b *Builder) {
		requireBuilder(b)
		b.logger = l
	}
}

// Builder collects endpoints. It is configured through Options only.
type Builder struct {
	paths  map[string]http.Handler
	logger *slog.Logger

	report      *ReportSpec
	reportState reportState
}

func newBuilder() *Builder {
	return &Builder{paths: make(map[string]http.Handler)}
}

func (b *Builder) build() http.Handler {
	b.assembleReport()

	mux := http.NewServeMux()
	for path, h := range b.paths {
		mux.Handle(path, h)
	}
	return httpx.Wrap(mux,
		httpx.RequestID(),
		httpx.Recover(httpx.WithRecoverLogger(b.logger)),
	)
}
