package taskreg

import (
	"sync/atomic"
	"time"
)

// Well-known task states. Between running and done, the owning goroutine may publish any text.
const (
	StateScheduled = "scheduled"
	StateRunning   = "running"
	StateDone      = "done"
)

// EntryPointName is the name of every task created by Registry.StartTask.
const EntryPointName = "entry point"

type phase int32

const (
	phaseScheduled phase = iota
	phaseRunning
	phaseDone
)

var lastTaskID atomic.Uint64

// runInfo is published once, when the task binds to a goroutine.
type runInfo struct {
	thread  ThreadID
	started time.Time
}

// Task is a registered unit of work.
//
// A *Task is not an owning reference: use it to name a parent (StartSubtask, ScheduleSubtask,
// Go) or to take a Snapshot. Ownership is carried by Handle.
type Task struct {
	id       TaskID
	name     string
	root     string // set for entry points only
	parent   *Task  // nil for entry points; holds a reference on the parent
	location SourceLocation
	reg      *Registry

	// immediate tasks are created bound to their goroutine and are never started.
	immediate bool

	// refs counts owning Handles plus live subtasks. Zero means destroyed, permanently.
	refs  atomic.Int64
	phase atomic.Int32
	state atomic.Pointer[string]
	run   atomic.Pointer[runInfo]
}

func newTask(reg *Registry, name, root string, parent *Task, loc SourceLocation, ph phase) *Task {
	t := &Task{
		id:       TaskID(lastTaskID.Add(1)),
		name:     name,
		root:     root,
		parent:   parent,
		location: loc,
		reg:      reg,

		immediate: ph == phaseRunning,
	}
	t.refs.Store(1)
	t.phase.Store(int32(ph))
	if ph == phaseRunning {
		t.bind()
		t.setState(StateRunning)
	} else {
		t.setState(StateScheduled)
	}
	return t
}

// ID returns the task's process-unique id.
func (t *Task) ID() TaskID { return t.id }

// Name returns the immutable task name.
func (t *Task) Name() string { return t.name }

// Location returns where the task was created.
func (t *Task) Location() SourceLocation { return t.location }

// Snapshot captures the task's current fields. Parent is rendered as identity only.
func (t *Task) Snapshot() Snapshot {
	s := Snapshot{
		ID:       t.id,
		Name:     t.name,
		State:    *t.state.Load(),
		Location: t.location,
	}
	if t.parent != nil {
		s.Parent = ParentID{ID: t.parent.id}
	} else {
		s.Parent = RootTask{Name: t.root}
	}
	if ri := t.run.Load(); ri != nil {
		th := ri.thread
		s.Thread = &th
		s.StartedAt = ri.started
	}
	return s
}

func (t *Task) bind() {
	t.run.Store(&runInfo{thread: CurrentThread(), started: time.Now()})
}

func (t *Task) setState(s string) { t.state.Store(&s) }

// tryAcquire takes a reference unless the task has already been destroyed.
func (t *Task) tryAcquire() bool {
	for {
		n := t.refs.Load()
		if n <= 0 {
			return false
		}
		if t.refs.CompareAndSwap(n, n+1) {
			return true
		}
	}
}

// release drops one reference. The last one destroys the task: its entry is pruned and the
// reference it held on its parent is released in turn.
func (t *Task) release() {
	for cur := t; cur != nil; cur = cur.parent {
		n := cur.refs.Add(-1)
		if n > 0 {
			return
		}
		if n < 0 {
			panic("taskreg: task reference count underflow")
		}
		cur.reg.GarbageCollect()
	}
}

func (t *Task) start(site SourceLocation) *Scope {
	if !t.phase.CompareAndSwap(int32(phaseScheduled), int32(phaseRunning)) {
		reason := "task already started"
		if t.immediate {
			reason = "task was created running and cannot be started"
		}
		t.reg.violate(t.violation("Start", reason, site))
	}
	t.bind()
	t.setState(StateRunning)
	return &Scope{task: t}
}

func (t *Task) updateState(state string, site SourceLocation) {
	ri := t.run.Load()
	if ri == nil || ri.thread.Goroutine != currentGoroutine() {
		t.reg.violate(t.violation("UpdateState", "state updated from a goroutine that does not own the task", site))
	}
	t.setState(state)
}

func (t *Task) end() {
	t.phase.Store(int32(phaseDone))
	t.setState(StateDone)
	t.reg.taskDone(t)
}

func (t *Task) violation(op, reason string, site SourceLocation) *Violation {
	v := &Violation{
		Op:     op,
		Reason: reason,
		Actual: CurrentThread(),
		Site:   site,
		Task:   t.Snapshot(),
	}
	if ri := t.run.Load(); ri != nil {
		th := ri.thread
		v.Expected = &th
	}
	return v
}
