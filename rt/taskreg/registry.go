package taskreg

import (
	"context"
	"iter"
	"log/slog"
	"slices"
	"sync"
)

// Registry tracks live tasks.
//
// The zero value is ready to use with default options. A Registry must not be copied after
// first use.
type Registry struct {
	cfg config

	mu      sync.Mutex
	entries []*Task // creation order; non-owning
}

// New returns a Registry configured by opts.
func New(opts ...Option) *Registry {
	return &Registry{cfg: applyOptions(opts)}
}

// StartTask registers a running entry-point task bound to the calling goroutine.
//
// The task is named EntryPointName; name becomes its RootTask parent marker.
func (r *Registry) StartTask(name string) (*Handle, *Scope) {
	t := newTask(r, EntryPointName, name, nil, callerLocation(0), phaseRunning)
	r.insert(t)
	return &Handle{task: t}, &Scope{task: t}
}

// StartSubtask registers a running subtask of parent bound to the calling goroutine.
//
// The subtask keeps parent registered until the subtask itself is destroyed.
func (r *Registry) StartSubtask(parent *Task, name string) (*Handle, *Scope) {
	site := callerLocation(0)
	r.retainParent("StartSubtask", parent, site)
	t := newTask(r, name, "", parent, site, phaseRunning)
	r.insert(t)
	return &Handle{task: t}, &Scope{task: t}
}

// ScheduleSubtask registers a subtask of parent that has not started yet. The goroutine that
// picks the work up calls Handle.Start.
func (r *Registry) ScheduleSubtask(parent *Task, name string) *Handle {
	site := callerLocation(0)
	r.retainParent("ScheduleSubtask", parent, site)
	t := newTask(r, name, "", parent, site, phaseScheduled)
	r.insert(t)
	return &Handle{task: t}
}

// GarbageCollect prunes entries whose task has been destroyed.
//
// It runs automatically whenever a task is destroyed; calling it again is harmless.
func (r *Registry) GarbageCollect() {
	r.mu.Lock()
	defer r.mu.Unlock()
	kept := r.entries[:0]
	for _, t := range r.entries {
		if t.refs.Load() > 0 {
			kept = append(kept, t)
		}
	}
	clear(r.entries[len(kept):])
	r.entries = kept
}

// ForTask calls visit with a snapshot of every live task, in creation order.
//
// Enumeration is best-effort: tasks may be created or destroyed while it runs, and the
// snapshots are not a consistent cut across tasks. visit is called without any registry lock
// held and may use the registry.
func (r *Registry) ForTask(visit func(Snapshot)) {
	if visit == nil {
		panic("taskreg: nil visitor")
	}
	for s := range r.All() {
		visit(s)
	}
}

// All returns an iterator over snapshots of live tasks. See ForTask.
func (r *Registry) All() iter.Seq[Snapshot] {
	return func(yield func(Snapshot) bool) {
		for _, t := range r.list() {
			if !t.tryAcquire() {
				continue
			}
			s := t.Snapshot()
			t.release()
			if !yield(s) {
				return
			}
		}
	}
}

// Snapshots collects ForTask into a slice.
func (r *Registry) Snapshots() []Snapshot {
	return slices.Collect(r.All())
}

// Len returns the number of live tasks.
func (r *Registry) Len() int {
	n := 0
	for _, t := range r.list() {
		if t.refs.Load() > 0 {
			n++
		}
	}
	return n
}

func (r *Registry) insert(t *Task) {
	r.mu.Lock()
	r.entries = append(r.entries, t)
	r.mu.Unlock()
}

func (r *Registry) list() []*Task {
	r.mu.Lock()
	defer r.mu.Unlock()
	return slices.Clone(r.entries)
}

func (r *Registry) retainParent(op string, parent *Task, site SourceLocation) {
	if parent == nil {
		panic("taskreg: nil parent task")
	}
	if !parent.tryAcquire() {
		v := parent.violation(op, "parent task already destroyed", site)
		v.Expected = nil
		r.violate(v)
	}
}

func (r *Registry) taskDone(t *Task) {
	fn := r.cfg.onDone
	if fn == nil {
		return
	}
	s := t.Snapshot()
	defer func() {
		if p := recover(); p != nil {
			r.logger().LogAttrs(context.Background(), slog.LevelError, "taskreg: done hook panicked",
				slog.Uint64("task_id", uint64(s.ID)),
				slog.String("task_name", s.Name),
				slog.Any("panic", p),
			)
		}
	}()
	fn(s)
}

func (r *Registry) logger() *slog.Logger {
	if r.cfg.logger != nil {
		return r.cfg.logger
	}
	return slog.Default()
}
