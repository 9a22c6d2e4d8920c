package taskreg

import (
	"context"

	"github.com/evan-idocoding/inflight/rt/safego"
)

// Go schedules a subtask of parent and runs fn on a new goroutine.
//
// The goroutine starts the task, passes its scope to fn (also stored in ctx), ends the scope
// when fn returns or panics, and drops its own reference. The returned Handle is the caller's
// reference and must be released by the caller.
//
// Errors and panics from fn are reported through safego; opts are appended after the defaults
// (name, task id tag, registry logger).
func (r *Registry) Go(ctx context.Context, parent *Task, name string, fn func(context.Context, *Scope) error, opts ...safego.Option) *Handle {
	if fn == nil {
		panic("taskreg: nil func")
	}
	site := callerLocation(0)
	r.retainParent("Go", parent, site)
	t := newTask(r, name, "", parent, site, phaseScheduled)
	r.insert(t)

	h := &Handle{task: t}
	worker := h.Clone()
	all := make([]safego.Option, 0, 4+len(opts))
	all = append(all,
		safego.WithName(name),
		safego.WithTag("task_id", t.id.String()),
		safego.WithLogger(r.logger()),
		safego.WithFinally(worker.Release),
	)
	all = append(all, opts...)
	safego.GoErr(ctx, func(ctx context.Context) error {
		sc := worker.Start()
		defer sc.End()
		return fn(ContextWithScope(ctx, sc), sc)
	}, all...)
	return h
}
