package taskreg

import (
	"bytes"
	"io"
	"log/slog"
	"sync"
	"time"
)

const (
	defaultWait = 5 * time.Second
	pollEvery   = time.Millisecond
)

func quietLogger() *slog.Logger { return slog.New(slog.NewTextHandler(io.Discard, nil)) }

// newTestRegistry turns violations into panics carrying the *Violation so tests can observe them.
func newTestRegistry(opts ...Option) *Registry {
	base := []Option{
		WithLogger(quietLogger()),
		WithFatalHandler(func(v *Violation) { panic(v) }),
	}
	return New(append(base, opts...)...)
}

func catchViolation(fn func()) (v *Violation) {
	defer func() {
		if p := recover(); p != nil {
			var ok bool
			if v, ok = p.(*Violation); !ok {
				panic(p)
			}
		}
	}()
	fn()
	return nil
}

func catchViolationOnGoroutine(fn func()) *Violation {
	ch := make(chan *Violation, 1)
	go func() { ch <- catchViolation(fn) }()
	return <-ch
}

type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}
