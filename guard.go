package inflight

import (
	"net/http"

	"github.com/evan-idocoding/inflight/admin"
)

// Guard enforces request admission for admin endpoints.
type Guard = admin.Guard

// TokenOption configures Tokens.
type TokenOption = admin.TokenOption

// DefaultTokenHeader is the header Tokens reads by default.
const DefaultTokenHeader = admin.DefaultTokenHeader

// AllowAll returns a guard that allows all requests.
func AllowAll() Guard { return admin.AllowAll() }

// DenyAll returns a guard that denies all requests with HTTP 403.
func DenyAll() Guard { return admin.DenyAll() }

// WithTokenHeader overrides the token header name.
func WithTokenHeader(name string) TokenOption { return admin.WithTokenHeader(name) }

// Tokens returns a guard that accepts requests carrying one of tokens.
func Tokens(tokens []string, opts ...TokenOption) Guard { return admin.Tokens(tokens, opts...) }

// Check returns a guard backed by fn. fn must not block.
func Check(fn func(r *http.Request) bool) Guard { return admin.Check(fn) }
