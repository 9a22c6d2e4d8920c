package taskreg

import "context"

type scopeKey struct{}

// ContextWithScope returns a derived context carrying s.
func ContextWithScope(ctx context.Context, s *Scope) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	if s == nil {
		return ctx
	}
	return context.WithValue(ctx, scopeKey{}, s)
}

// ScopeFromContext returns the scope stored by ContextWithScope.
//
// The scope still belongs to the goroutine that started it: pass s.Task() to other goroutines,
// never call s.UpdateState from them.
func ScopeFromContext(ctx context.Context) (*Scope, bool) {
	if ctx == nil {
		return nil, false
	}
	s, ok := ctx.Value(scopeKey{}).(*Scope)
	return s, ok && s != nil
}
