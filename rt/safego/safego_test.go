package safego

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

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

func newTestLogger() (*slog.Logger, *syncBuffer) {
	var out syncBuffer
	return slog.New(slog.NewTextHandler(&out, nil)), &out
}

func TestRunErr_FinallyRunsOnSuccess(t *testing.T) {
	t.Parallel()

	var called atomic.Int64
	RunErr(context.Background(), func(context.Context) error {
		return nil
	}, WithFinally(func() { called.Add(1) }))

	assert.EqualValues(t, 1, called.Load())
}

func TestRunErr_FinallyRunsOnPanic_RecoverAndReport(t *testing.T) {
	t.Parallel()

	var finally, panicCalls atomic.Int64
	RunErr(context.Background(), func(context.Context) error {
		panic("boom")
	}, WithFinally(func() { finally.Add(1) }),
		WithPanicPolicy(RecoverAndReport),
		WithPanicHandler(func(context.Context, PanicInfo) { panicCalls.Add(1) }),
	)

	assert.EqualValues(t, 1, finally.Load())
	assert.EqualValues(t, 1, panicCalls.Load())
}

func TestRunErr_FinallyRunsOnPanic_RepanicAfterReport(t *testing.T) {
	t.Parallel()

	var finally, panicCalls atomic.Int64
	assert.PanicsWithValue(t, "boom", func() {
		RunErr(context.Background(), func(context.Context) error {
			panic("boom")
		}, WithFinally(func() { finally.Add(1) }),
			WithPanicPolicy(RepanicAfterReport),
			WithPanicHandler(func(context.Context, PanicInfo) { panicCalls.Add(1) }),
		)
	})
	assert.EqualValues(t, 1, finally.Load())
	assert.EqualValues(t, 1, panicCalls.Load())
}

func TestRunErr_RecoverOnlyDoesNotReport(t *testing.T) {
	t.Parallel()

	logger, out := newTestLogger()
	var panicCalls atomic.Int64
	RunErr(context.Background(), func(context.Context) error {
		panic("quiet")
	}, WithPanicPolicy(RecoverOnly),
		WithLogger(logger),
		WithPanicHandler(func(context.Context, PanicInfo) { panicCalls.Add(1) }),
	)

	assert.Zero(t, panicCalls.Load())
	assert.Empty(t, out.String())
}

func TestRunErr_ErrorHandler_DefaultIgnoreCancel(t *testing.T) {
	t.Parallel()

	var calls atomic.Int64
	RunErr(context.Background(), func(context.Context) error {
		return context.Canceled
	}, WithErrorHandler(func(context.Context, ErrorInfo) { calls.Add(1) }))

	assert.Zero(t, calls.Load())
}

func TestRunErr_ErrorHandler_ReportCancel(t *testing.T) {
	t.Parallel()

	var calls atomic.Int64
	RunErr(context.Background(), func(context.Context) error {
		return context.DeadlineExceeded
	}, WithReportContextCancel(true),
		WithErrorHandler(func(context.Context, ErrorInfo) { calls.Add(1) }),
	)

	assert.EqualValues(t, 1, calls.Load())
}

func TestRunErr_ErrorHandler_CalledWithNameTags(t *testing.T) {
	t.Parallel()

	wantErr := errors.New("x")
	var got ErrorInfo
	RunErr(context.Background(), func(context.Context) error {
		return wantErr
	}, WithName("n"),
		WithTags(Tag{Key: "k", Value: "v"}),
		WithErrorHandler(func(_ context.Context, info ErrorInfo) { got = info }),
	)

	assert.Equal(t, "n", got.Name)
	assert.Equal(t, []Tag{{Key: "k", Value: "v"}}, got.Tags)
	assert.ErrorIs(t, got.Err, wantErr)
}

func TestRunErr_FinallyOrderIsLIFO(t *testing.T) {
	t.Parallel()

	var order []string
	RunErr(context.Background(), func(context.Context) error { return nil },
		WithFinally(func() { order = append(order, "first") }),
		WithFinally(func() { order = append(order, "second") }),
	)

	assert.Equal(t, []string{"second", "first"}, order)
}

func TestRunErr_NilContextIsAllowed(t *testing.T) {
	t.Parallel()

	var sawNonNil bool
	RunErr(nil, func(ctx context.Context) error {
		sawNonNil = ctx != nil
		return nil
	})
	assert.True(t, sawNonNil)
}

func TestRunErr_DefaultsLogToLogger(t *testing.T) {
	t.Parallel()

	logger, out := newTestLogger()
	RunErr(context.Background(), func(context.Context) error {
		return errors.New("disk full")
	}, WithName("flush"), WithTag("shard", "7"), WithLogger(logger))

	s := out.String()
	assert.Contains(t, s, "level=ERROR")
	assert.Contains(t, s, `msg="safego: error"`)
	assert.Contains(t, s, "name=flush")
	assert.Contains(t, s, "shard=7")
	assert.Contains(t, s, `err="disk full"`)
}

func TestRunErr_PanicLoggedWithStack(t *testing.T) {
	t.Parallel()

	logger, out := newTestLogger()
	RunErr(context.Background(), func(context.Context) error {
		panic("kaboom")
	}, WithLogger(logger))

	s := out.String()
	assert.Contains(t, s, `msg="safego: panic"`)
	assert.Contains(t, s, "panic=kaboom")
	assert.Contains(t, s, "stack=")
}

func TestRunErr_ErrorHandlerPanicIsContained(t *testing.T) {
	t.Parallel()

	logger, out := newTestLogger()
	require.NotPanics(t, func() {
		RunErr(context.Background(), func(context.Context) error {
			return errors.New("x")
		}, WithLogger(logger),
			WithErrorHandler(func(context.Context, ErrorInfo) { panic("handler boom") }),
		)
	})
	assert.Contains(t, out.String(), "error handler panicked: handler boom")
}

func TestRunErr_PanicHandlerPanicIsContained(t *testing.T) {
	t.Parallel()

	logger, out := newTestLogger()
	require.NotPanics(t, func() {
		RunErr(context.Background(), func(context.Context) error {
			panic("boom")
		}, WithLogger(logger),
			WithPanicHandler(func(context.Context, PanicInfo) { panic("handler boom") }),
		)
	})
	assert.Contains(t, out.String(), "panic handler panicked: handler boom")
}

func TestRunErr_FinalizerPanicIsContainedAndReported(t *testing.T) {
	t.Parallel()

	var panicCalls atomic.Int64
	RunErr(context.Background(), func(context.Context) error {
		return nil
	}, WithPanicHandler(func(context.Context, PanicInfo) {
		panicCalls.Add(1)
	}), WithFinally(func() {
		panic("finalizer boom")
	}))

	assert.EqualValues(t, 1, panicCalls.Load())
}

func TestGoErr_RunsOnAnotherGoroutine(t *testing.T) {
	t.Parallel()

	done := make(chan struct{})
	var got ErrorInfo
	GoErr(context.Background(), func(context.Context) error {
		return errors.New("async")
	}, WithName("bg"),
		WithErrorHandler(func(_ context.Context, info ErrorInfo) { got = info }),
		WithFinally(func() { close(done) }),
	)
	<-done

	assert.Equal(t, "bg", got.Name)
	assert.EqualError(t, got.Err, "async")
}

func TestPanicInfo_Attrs(t *testing.T) {
	t.Parallel()

	info := PanicInfo{
		Name:  "flush",
		Tags:  []Tag{{Key: "shard", Value: "7"}, {Key: "a", Value: "b"}},
		Value: "boom",
		Stack: []byte("goroutine 1"),
	}
	var keys []string
	for _, a := range info.Attrs() {
		keys = append(keys, a.Key)
	}
	assert.Equal(t, []string{"name", "shard", "a", "panic", "stack"}, keys)

	keys = keys[:0]
	for _, a := range (ErrorInfo{Err: errors.New("x")}).Attrs() {
		keys = append(keys, a.Key)
	}
	assert.Equal(t, []string{"err"}, keys)
}

func TestPanicPolicy_String(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "recover_and_report", RecoverAndReport.String())
	assert.Equal(t, "recover_only", RecoverOnly.String())
	assert.Equal(t, "repanic_after_report", RepanicAfterReport.String())
	assert.Equal(t, "PanicPolicy(9)", PanicPolicy(9).String())
}
