package httpx

import (
	"bufio"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"runtime/debug"

	"github.com/evan-idocoding/inflight/rt/taskreg"
)

// RecoverOption configures the Recover middleware.
type RecoverOption func(*recoverConfig)

type recoverConfig struct {
	onPanic PanicHandler
	logger  *slog.Logger
}

// PanicHandler is called when the wrapped handler panics (except with http.ErrAbortHandler).
//
// A panicking PanicHandler is recovered and logged.
type PanicHandler func(r *http.Request, info RecoverInfo)

// RecoverInfo describes a recovered panic.
type RecoverInfo struct {
	Value any
	Stack []byte
}

// WithOnPanic sets a PanicHandler that replaces the default log record.
func WithOnPanic(fn PanicHandler) RecoverOption {
	return func(c *recoverConfig) { c.onPanic = fn }
}

// WithRecoverLogger sets the logger panics are reported to. Default: slog.Default().
func WithRecoverLogger(l *slog.Logger) RecoverOption {
	return func(c *recoverConfig) {
		if l != nil {
			c.logger = l
		}
	}
}

// Recover returns a middleware that recovers panics from downstream handlers.
//
// On panic it:
//   - re-panics http.ErrAbortHandler, preserving net/http semantics;
//   - sets the request task's state to "panic: <value>" when Track runs outside it;
//   - reports the panic (PanicHandler, or an ERROR record with request id, task id and stack);
//   - writes 500 Internal Server Error unless the response has already started.
func Recover(opts ...RecoverOption) Middleware {
	cfg := recoverConfig{}
	for _, opt := range opts {
		if opt != nil {
			opt(&cfg)
		}
	}
	if cfg.logger == nil {
		cfg.logger = slog.Default()
	}

	return func(next http.Handler) http.Handler {
		if next == nil {
			panic("httpx: nil next handler")
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			sw := &recoverResponseWriter{w: w}

			defer func() {
				p := recover()
				if p == nil {
					return
				}
				if p == http.ErrAbortHandler {
					panic(p)
				}

				if sc, ok := taskreg.ScopeFromContext(r.Context()); ok {
					sc.UpdateState(fmt.Sprintf("panic: %v", p))
				}

				info := RecoverInfo{Value: p, Stack: debug.Stack()}
				if cfg.onPanic == nil {
					logRecoveredPanic(cfg.logger, r, info)
				} else if p2 := callOnPanicNoPanic(cfg.onPanic, r, info); p2 != nil {
					logRecoveredPanic(cfg.logger, r, RecoverInfo{
						Value: fmt.Sprintf("httpx: PanicHandler panicked: %v", p2),
						Stack: debug.Stack(),
					})
				}

				if !sw.wroteHeader {
					http.Error(sw, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
				}
			}()

			next.ServeHTTP(sw, r)
		})
	}
}

func logRecoveredPanic(l *slog.Logger, r *http.Request, info RecoverInfo) {
	attrs := []slog.Attr{
		slog.String("method", r.Method),
		slog.String("url", r.URL.String()),
		slog.Any("panic", info.Value),
	}
	if id, ok := RequestIDFromRequest(r); ok {
		attrs = append(attrs, slog.String("request_id", id))
	}
	if sc, ok := taskreg.ScopeFromContext(r.Context()); ok {
		attrs = append(attrs, slog.Uint64("task_id", uint64(sc.Task().ID())))
	}
	attrs = append(attrs, slog.String("stack", string(info.Stack)))
	l.LogAttrs(r.Context(), slog.LevelError, "httpx: panic", attrs...)
}

func callOnPanicNoPanic(fn PanicHandler, r *http.Request, info RecoverInfo) (panicked any) {
	defer func() {
		if p := recover(); p != nil {
			panicked = p
		}
	}()
	fn(r, info)
	return nil
}

// recoverResponseWriter records whether the response has started. Optional interfaces are
// forwarded so streaming and hijacking keep working.
type recoverResponseWriter struct {
	w           http.ResponseWriter
	wroteHeader bool
}

func (w *recoverResponseWriter) Header() http.Header { return w.w.Header() }

func (w *recoverResponseWriter) WriteHeader(statusCode int) {
	// 1xx responses are informational; the final header is still to come.
	if statusCode >= 200 {
		w.wroteHeader = true
	}
	w.w.WriteHeader(statusCode)
}

func (w *recoverResponseWriter) Write(p []byte) (int, error) {
	w.wroteHeader = true
	return w.w.Write(p)
}

// Unwrap returns the underlying ResponseWriter for http.ResponseController.
func (w *recoverResponseWriter) Unwrap() http.ResponseWriter { return w.w }

func (w *recoverResponseWriter) Flush() {
	if f, ok := w.w.(http.Flusher); ok {
		w.wroteHeader = true
		f.Flush()
	}
}

func (w *recoverResponseWriter) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	h, ok := w.w.(http.Hijacker)
	if !ok {
		return nil, nil, fmt.Errorf("httpx: underlying ResponseWriter does not support hijacking")
	}
	c, rw, err := h.Hijack()
	if err == nil {
		w.wroteHeader = true
	}
	return c, rw, err
}

func (w *recoverResponseWriter) ReadFrom(r io.Reader) (int64, error) {
	rf, ok := w.w.(io.ReaderFrom)
	if !ok {
		return io.Copy(writerOnly{w}, r)
	}
	w.wroteHeader = true
	return rf.ReadFrom(r)
}

// writerOnly hides ReadFrom from io.Copy so it does not recurse.
type writerOnly struct{ io.Writer }
