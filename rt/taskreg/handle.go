package taskreg

import "sync/atomic"

// Handle is an owning reference to a Task. The task stays registered for as long as at least
// one Handle (or one live subtask) refers to it.
//
// A Handle is safe for concurrent use. Release it exactly once when the work it tracks is no
// longer interesting; extra calls are no-ops.
type Handle struct {
	task     *Task
	released atomic.Bool
}

// Task returns the referenced task.
func (h *Handle) Task() *Task { return h.task }

// ID returns the referenced task's id.
func (h *Handle) ID() TaskID { return h.task.id }

// Snapshot captures the referenced task's current fields.
func (h *Handle) Snapshot() Snapshot { return h.task.Snapshot() }

// Start binds a scheduled task to the calling goroutine and moves it to running.
//
// Starting a task twice, starting a task that was created running, or starting through a
// released Handle is a violation.
func (h *Handle) Start() *Scope {
	site := callerLocation(0)
	if h.released.Load() {
		h.task.reg.violate(h.task.violation("Start", "handle already released", site))
	}
	return h.task.start(site)
}

// Clone returns another owning reference to the same task. Cloning a released Handle, or a
// task that has already been destroyed, is a violation.
func (h *Handle) Clone() *Handle {
	site := callerLocation(0)
	if h.released.Load() {
		h.task.reg.violate(h.task.violation("Clone", "handle already released", site))
	}
	if !h.task.tryAcquire() {
		h.task.reg.violate(h.task.violation("Clone", "task already destroyed", site))
	}
	return &Handle{task: h.task}
}

// Release drops this reference. It is idempotent.
func (h *Handle) Release() {
	if h.released.CompareAndSwap(false, true) {
		h.task.release()
	}
}

// Scope is the running phase of a task, bound to the goroutine that started it.
//
// End it with defer so the task is marked done on every exit path:
//
//	h, sc := reg.StartTask("sync")
//	defer h.Release()
//	defer sc.End()
type Scope struct {
	task  *Task
	ended atomic.Bool
}

// Task returns the task the scope is bound to, suitable as a parent for subtasks.
func (s *Scope) Task() *Task { return s.task }

// UpdateState replaces the task's state text. It must be called from the owning goroutine
// and before End.
func (s *Scope) UpdateState(state string) {
	site := callerLocation(0)
	if s.ended.Load() {
		s.task.reg.violate(s.task.violation("UpdateState", "scope already ended", site))
	}
	s.task.updateState(state, site)
}

// End marks the task done. Only the first call has an effect.
//
// Unlike UpdateState, End may run on any goroutine, such as a deferred call after the scope
// was handed off. A foreign End must happen after the owner's last UpdateState; once ended,
// UpdateState is a violation.
func (s *Scope) End() {
	if s.ended.CompareAndSwap(false, true) {
		s.task.end()
	}
}
