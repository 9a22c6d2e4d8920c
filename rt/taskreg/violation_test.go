package taskreg

import (
	"bytes"
	"errors"
	"log/slog"
	"os"
	"os/exec"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestViolation_UpdateStateFromForeignGoroutine(t *testing.T) {
	t.Parallel()

	reg := newTestRegistry()
	h, sc := reg.StartTask("Task")
	defer h.Release()
	defer sc.End()
	owner := CurrentThread()

	v := catchViolationOnGoroutine(func() { sc.UpdateState("stolen") })
	require.NotNil(t, v)
	assert.Equal(t, "UpdateState", v.Op)
	require.NotNil(t, v.Expected)
	assert.True(t, v.Expected.Equal(owner))
	assert.False(t, v.Actual.Equal(owner))
	assert.Equal(t, h.ID(), v.Task.ID)
	assert.Equal(t, EntryPointName, v.Task.Name)
	assert.Contains(t, v.Site.File, "violation_test.go")
	assert.Equal(t, StateRunning, h.Snapshot().State)
}

func TestViolation_UpdateStateOfScheduledTask(t *testing.T) {
	t.Parallel()

	reg := newTestRegistry()
	parent, psc := reg.StartTask("Task")
	defer parent.Release()
	defer psc.End()
	h := reg.ScheduleSubtask(psc.Task(), "sub")
	defer h.Release()

	sc := &Scope{task: h.Task()}
	v := catchViolation(func() { sc.UpdateState("early") })
	require.NotNil(t, v)
	assert.Nil(t, v.Expected)
	assert.Equal(t, StateScheduled, h.Snapshot().State)
}

func TestViolation_UpdateAfterEnd(t *testing.T) {
	t.Parallel()

	reg := newTestRegistry()
	h, sc := reg.StartTask("Task")
	defer h.Release()
	sc.End()

	v := catchViolation(func() { sc.UpdateState("late") })
	require.NotNil(t, v)
	assert.Equal(t, "scope already ended", v.Reason)
	assert.Equal(t, StateDone, h.Snapshot().State)
}

func TestViolation_StartTwice(t *testing.T) {
	t.Parallel()

	reg := newTestRegistry()
	parent, psc := reg.StartTask("Task")
	defer parent.Release()
	defer psc.End()
	h := reg.ScheduleSubtask(psc.Task(), "sub")
	defer h.Release()

	sc := h.Start()
	defer sc.End()
	v := catchViolation(func() { h.Start() })
	require.NotNil(t, v)
	assert.Equal(t, "Start", v.Op)
	assert.Equal(t, "task already started", v.Reason)
}

func TestViolation_StartImmediateTask(t *testing.T) {
	t.Parallel()

	reg := newTestRegistry()
	h, sc := reg.StartTask("Task")
	defer h.Release()
	defer sc.End()

	v := catchViolation(func() { h.Start() })
	require.NotNil(t, v)
	assert.Equal(t, "task was created running and cannot be started", v.Reason)
}

func TestViolation_StartReleasedHandle(t *testing.T) {
	t.Parallel()

	reg := newTestRegistry()
	parent, psc := reg.StartTask("Task")
	defer parent.Release()
	defer psc.End()
	h := reg.ScheduleSubtask(psc.Task(), "sub")
	h.Release()
	require.Len(t, reg.Snapshots(), 1)

	v := catchViolation(func() { h.Start() })
	require.NotNil(t, v)
	assert.Equal(t, "Start", v.Op)
	assert.Equal(t, "handle already released", v.Reason)
	assert.Equal(t, StateScheduled, v.Task.State)
	assert.Len(t, reg.Snapshots(), 1)
}

func TestViolation_CloneOfDestroyedTask(t *testing.T) {
	t.Parallel()

	reg := newTestRegistry()
	parent, psc := reg.StartTask("Task")
	defer parent.Release()
	defer psc.End()
	h, sc := reg.StartSubtask(psc.Task(), "sub")
	sc.End()
	// A second Handle whose reference was lost to a concurrent Release.
	stale := &Handle{task: h.Task()}
	h.Release()

	v := catchViolation(func() { stale.Clone() })
	require.NotNil(t, v)
	assert.Equal(t, "Clone", v.Op)
	assert.Equal(t, "task already destroyed", v.Reason)
	assert.Zero(t, h.Task().refs.Load())

	snaps := reg.Snapshots()
	require.Len(t, snaps, 1)
	assert.Equal(t, parent.ID(), snaps[0].ID)
	assert.EqualValues(t, 1, psc.Task().refs.Load())
}

func TestScope_EndFromForeignGoroutine(t *testing.T) {
	t.Parallel()

	reg := newTestRegistry()
	h, sc := reg.StartTask("Task")
	defer h.Release()
	sc.UpdateState("handing off")

	done := make(chan *Violation, 1)
	go func() { done <- catchViolation(sc.End) }()
	assert.Nil(t, <-done)
	assert.Equal(t, StateDone, h.Snapshot().State)

	v := catchViolation(func() { sc.UpdateState("late") })
	require.NotNil(t, v)
	assert.Equal(t, "scope already ended", v.Reason)
}

func TestViolation_SubtaskOfDestroyedParent(t *testing.T) {
	t.Parallel()

	reg := newTestRegistry()
	parent, psc := reg.StartTask("Task")
	task := psc.Task()
	psc.End()
	parent.Release()

	for name, create := range map[string]func(){
		"StartSubtask":    func() { reg.StartSubtask(task, "late") },
		"ScheduleSubtask": func() { reg.ScheduleSubtask(task, "late") },
	} {
		v := catchViolation(create)
		require.NotNil(t, v, name)
		assert.Equal(t, name, v.Op)
		assert.Equal(t, "parent task already destroyed", v.Reason)
		assert.Equal(t, parent.ID(), v.Task.ID)
	}
	assert.Empty(t, reg.Snapshots())
}

func TestViolation_NilParentPanics(t *testing.T) {
	t.Parallel()

	reg := newTestRegistry()
	assert.PanicsWithValue(t, "taskreg: nil parent task", func() { reg.StartSubtask(nil, "x") })
}

func TestViolation_ReturningHandlerStillPanics(t *testing.T) {
	t.Parallel()

	var handled *Violation
	reg := New(WithLogger(quietLogger()), WithFatalHandler(func(v *Violation) { handled = v }))
	h, sc := reg.StartTask("Task")
	defer h.Release()
	sc.End()

	v := catchViolation(func() { sc.UpdateState("late") })
	require.NotNil(t, v)
	assert.Same(t, handled, v)

	var err error = v
	var target *Violation
	assert.True(t, errors.As(err, &target))
	assert.Contains(t, err.Error(), "taskreg: UpdateState: scope already ended")
}

func TestViolation_LoggedAtError(t *testing.T) {
	t.Parallel()

	var out syncBuffer
	reg := newTestRegistry(WithLogger(slog.New(slog.NewTextHandler(&out, nil))))
	h, sc := reg.StartTask("Task")
	defer h.Release()
	defer sc.End()

	require.NotNil(t, catchViolationOnGoroutine(func() { sc.UpdateState("x") }))
	s := out.String()
	assert.Contains(t, s, "level=ERROR")
	assert.Contains(t, s, "taskreg: invariant violation")
	assert.Contains(t, s, "op=UpdateState")
	assert.Contains(t, s, "expected_goroutine=")
}

const deathTestEnv = "TASKREG_DEATH_TEST"

// The default fatal handler ends the process, so it is observed from a child test binary.
func TestViolation_DefaultHandlerTerminatesProcess(t *testing.T) {
	if os.Getenv(deathTestEnv) == "1" {
		reg := New(WithLogger(quietLogger()))
		h, sc := reg.StartTask("Task")
		defer h.Release()
		done := make(chan struct{})
		go func() {
			defer close(done)
			sc.UpdateState("stolen")
		}()
		<-done
		return
	}

	cmd := exec.Command(os.Args[0], "-test.run=^TestViolation_DefaultHandlerTerminatesProcess$")
	cmd.Env = append(os.Environ(), deathTestEnv+"=1")
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	err := cmd.Run()

	var exitErr *exec.ExitError
	require.ErrorAs(t, err, &exitErr)
	assert.Equal(t, 2, exitErr.ExitCode())
	assert.Contains(t, stderr.String(), "state updated from a goroutine that does not own the task")
	assert.Contains(t, stderr.String(), `task `)
	assert.Contains(t, stderr.String(), "goroutine ")
}
