package admin

import (
	"crypto/subtle"
	"net/http"
	"strings"

	"github.com/evan-idocoding/inflight/httpx"
)

// Guard admits or rejects requests to an endpoint. Rejected requests get 403.
//
// Implementations must be fast and must not block.
type Guard interface {
	Middleware() httpx.Middleware
}

type guardFunc struct{ allow func(*http.Request) bool }

func (g guardFunc) Middleware() httpx.Middleware {
	return func(next http.Handler) http.Handler {
		if next == nil {
			panic("admin: guard: nil next handler")
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if g.allow == nil || !g.allow(r) {
				w.Header().Set("Cache-Control", "no-store")
				http.Error(w, http.StatusText(http.StatusForbidden), http.StatusForbidden)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// DenyAll rejects every request.
func DenyAll() Guard { return guardFunc{} }

// AllowAll admits every request.
func AllowAll() Guard {
	return guardFunc{allow: func(*http.Request) bool { return true }}
}

// DefaultTokenHeader carries the access token checked by Tokens.
const DefaultTokenHeader = "X-Access-Token"

// TokenOption configures Tokens.
type TokenOption func(*tokenConfig)

type tokenConfig struct {
	header string
}

// WithTokenHeader overrides the header the token is read from. Blank names are ignored.
func WithTokenHeader(name string) TokenOption {
	return func(c *tokenConfig) {
		if name = strings.TrimSpace(name); name != "" {
			c.header = name
		}
	}
}

// Tokens admits requests carrying one of tokens in the token header. Tokens are compared in
// constant time. Blank tokens are ignored; with none left the guard denies everything.
func Tokens(tokens []string, opts ...TokenOption) Guard {
	cfg := tokenConfig{header: DefaultTokenHeader}
	for _, opt := range opts {
		if opt != nil {
			opt(&cfg)
		}
	}
	var set [][]byte
	for _, t := range tokens {
		if t = strings.TrimSpace(t); t != "" {
			set = append(set, []byte(t))
		}
	}
	if len(set) == 0 {
		return DenyAll()
	}
	return guardFunc{allow: func(r *http.Request) bool {
		vs := r.Header.Values(cfg.header)
		if len(vs) != 1 || vs[0] == "" {
			return false
		}
		got := []byte(vs[0])
		ok := 0
		for _, want := range set {
			ok |= subtle.ConstantTimeCompare(got, want)
		}
		return ok == 1
	}}
}

// Check admits requests for which fn returns true. fn must be fast and must not block.
func Check(fn func(r *http.Request) bool) Guard {
	if fn == nil {
		panic("admin: Check: nil func")
	}
	return guardFunc{allow: fn}
}
