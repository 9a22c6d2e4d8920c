package main

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/evan-idocoding/inflight/internal/config"
	"github.com/evan-idocoding/inflight/rt/taskreg"
)

func helloHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, "hello\n")
	})
}

// workHandler fans out ?fanout= workers (default cfg.Fanout), each walking through cfg.Steps
// states, and answers once all of them are done. The request task and the workers show up in
// the admin task tree meanwhile.
func workHandler(reg *taskreg.Registry, cfg config.DemoConfig) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fanout := cfg.Fanout
		if s := r.URL.Query().Get("fanout"); s != "" {
			n, err := strconv.Atoi(s)
			if err != nil || n < 1 || n > 64 {
				http.Error(w, "invalid fanout (want 1..64)", http.StatusBadRequest)
				return
			}
			fanout = n
		}

		ctx := r.Context()
		sc, ok := taskreg.ScopeFromContext(ctx)
		if !ok {
			h, own := reg.StartTask("work")
			defer h.Release()
			defer own.End()
			sc = own
		}

		sc.UpdateState(fmt.Sprintf("fanning out %d workers", fanout))
		var (
			wg     sync.WaitGroup
			failed atomic.Int32
		)
		handles := make([]*taskreg.Handle, 0, fanout)
		for i := range fanout {
			wg.Add(1)
			h := reg.Go(ctx, sc.Task(), "worker-"+strconv.Itoa(i), func(ctx context.Context, wsc *taskreg.Scope) error {
				defer wg.Done()
				if err := runSteps(ctx, wsc, cfg.Steps, cfg.StepDelay); err != nil {
					failed.Add(1)
					return err
				}
				return nil
			})
			handles = append(handles, h)
		}

		sc.UpdateState(fmt.Sprintf("waiting for %d workers", fanout))
		wg.Wait()
		for _, h := range handles {
			h.Release()
		}
		sc.UpdateState("writing response")

		if n := failed.Load(); n > 0 {
			http.Error(w, fmt.Sprintf("%d of %d workers failed", n, fanout), http.StatusServiceUnavailable)
			return
		}
		fmt.Fprintf(w, "done: %d workers, %d steps each\n", fanout, cfg.Steps)
	})
}

func runSteps(ctx context.Context, sc *taskreg.Scope, steps int, delay time.Duration) error {
	for s := 1; s <= steps; s++ {
		sc.UpdateState(fmt.Sprintf("step %d/%d", s, steps))
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(delay):
		}
	}
	return nil
}
