package httpx

import (
	"context"
	"net/http"
	"strings"

	"github.com/google/uuid"
)

// DefaultRequestIDHeader is the header a request id is read from and echoed in.
const DefaultRequestIDHeader = "X-Request-ID"

const maxIncomingRequestIDLen = 128

// RequestIDOption configures the RequestID middleware.
type RequestIDOption func(*requestIDConfig)

type requestIDConfig struct {
	incomingHeaders   []string
	trustIncoming     bool
	setResponseHeader bool
	maxLen            int
	gen               RequestIDGenerator
}

// RequestIDGenerator generates a new request id. If it fails or returns an invalid id,
// RequestID falls back to a random UUID.
type RequestIDGenerator func() (string, error)

// WithIncomingHeaders sets the headers checked for an incoming id, in order.
//
// Blank names are ignored. An empty result keeps the default (X-Request-ID).
func WithIncomingHeaders(headers ...string) RequestIDOption {
	return func(c *requestIDConfig) {
		var out []string
		for _, h := range headers {
			if h = strings.TrimSpace(h); h != "" {
				out = append(out, h)
			}
		}
		if len(out) > 0 {
			c.incomingHeaders = out
		}
	}
}

// WithTrustIncoming controls whether incoming ids are used at all. Default: true.
func WithTrustIncoming(v bool) RequestIDOption {
	return func(c *requestIDConfig) { c.trustIncoming = v }
}

// WithSetResponseHeader controls whether the id is echoed in the response. Default: true.
func WithSetResponseHeader(v bool) RequestIDOption {
	return func(c *requestIDConfig) { c.setResponseHeader = v }
}

// WithMaxLen sets the maximum accepted length of an incoming id. Non-positive n is ignored.
func WithMaxLen(n int) RequestIDOption {
	return func(c *requestIDConfig) {
		if n > 0 {
			c.maxLen = n
		}
	}
}

// WithGenerator replaces the UUID generator. A nil fn is ignored.
func WithGenerator(fn RequestIDGenerator) RequestIDOption {
	return func(c *requestIDConfig) {
		if fn != nil {
			c.gen = fn
		}
	}
}

// RequestID returns a middleware that gives every request an id.
//
// The first incoming header (in configured order) carrying exactly one valid value wins;
// otherwise a new id is generated. Valid ids are at most maxLen bytes of [A-Za-z0-9._-], which
// keeps them safe to log and to echo. The id is stored in the request context and, by default,
// set on the response.
func RequestID(opts ...RequestIDOption) Middleware {
	cfg := requestIDConfig{
		incomingHeaders:   []string{DefaultRequestIDHeader},
		trustIncoming:     true,
		setResponseHeader: true,
		maxLen:            maxIncomingRequestIDLen,
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
			id := ""
			if cfg.trustIncoming {
				id = incomingRequestID(r.Header, cfg.incomingHeaders, cfg.maxLen)
			}
			if id == "" {
				id = newRequestID(cfg.gen)
			}
			if cfg.setResponseHeader {
				w.Header().Set(DefaultRequestIDHeader, id)
			}
			next.ServeHTTP(w, r.WithContext(WithRequestID(r.Context(), id)))
		})
	}
}

func incomingRequestID(h http.Header, names []string, maxLen int) string {
	for _, name := range names {
		// Several values for one header are ambiguous; skip them.
		vs := h.Values(name)
		if len(vs) == 1 && validRequestID(vs[0], maxLen) {
			return vs[0]
		}
	}
	return ""
}

func newRequestID(gen RequestIDGenerator) string {
	if gen != nil {
		if s, err := gen(); err == nil && validRequestID(s, 256) {
			return s
		}
	}
	return uuid.NewString()
}

func validRequestID(s string, maxLen int) bool {
	if s == "" || len(s) > maxLen {
		return false
	}
	for i := 0; i < len(s); i++ {
		switch b := s[i]; {
		case b >= 'a' && b <= 'z', b >= 'A' && b <= 'Z', b >= '0' && b <= '9':
		case b == '.' || b == '_' || b == '-':
		default:
			return false
		}
	}
	return true
}

type requestIDKey struct{}

// WithRequestID returns a derived context carrying id. An empty id returns ctx unchanged.
func WithRequestID(ctx context.Context, id string) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	if id == "" {
		return ctx
	}
	return context.WithValue(ctx, requestIDKey{}, id)
}

// RequestIDFromContext returns the request id stored in ctx.
func RequestIDFromContext(ctx context.Context) (string, bool) {
	if ctx == nil {
		return "", false
	}
	v, ok := ctx.Value(requestIDKey{}).(string)
	return v, ok && v != ""
}

// RequestIDFromRequest returns the request id stored in r's context.
func RequestIDFromRequest(r *http.Request) (string, bool) {
	if r == nil {
		return "", false
	}
	return RequestIDFromContext(r.Context())
}
