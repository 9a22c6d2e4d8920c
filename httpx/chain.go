package httpx

import "net/http"

// Middleware wraps the next handler.
type Middleware func(http.Handler) http.Handler

// Middlewares is an ordered middleware chain. The first element is the outermost.
type Middlewares []Middleware

// Chain builds a chain from mws, skipping nils.
func Chain(mws ...Middleware) Middlewares {
	return appendNonNil(nil, mws)
}

// With returns a new chain with more appended. The receiver is not modified and the result
// does not share its backing array.
func (mws Middlewares) With(more ...Middleware) Middlewares {
	out := make(Middlewares, 0, len(mws)+len(more))
	out = appendNonNil(out, mws)
	return appendNonNil(out, more)
}

// Handler applies the chain to h.
//
// It panics if h is nil.
func (mws Middlewares) Handler(h http.Handler) http.Handler {
	if h == nil {
		panic("httpx: nil endpoint handler")
	}
	for i := len(mws) - 1; i >= 0; i-- {
		if mws[i] != nil {
			h = mws[i](h)
		}
	}
	return h
}

// HandlerFunc is Handler for a function.
func (mws Middlewares) HandlerFunc(h http.HandlerFunc) http.Handler {
	if h == nil {
		panic("httpx: nil endpoint handler func")
	}
	return mws.Handler(h)
}

// Wrap applies mws to h.
func Wrap(h http.Handler, mws ...Middleware) http.Handler {
	return Chain(mws...).Handler(h)
}

func appendNonNil(dst, src Middlewares) Middlewares {
	for _, mw := range src {
		if mw != nil {
			dst = append(dst, mw)
		}
	}
	if len(dst) == 0 {
		return nil
	}
	return dst
}
