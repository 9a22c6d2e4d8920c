package taskreg

import (
	"strconv"

	"github.com/petermattis/goid"
)

// UnknownThreadName is returned by ThreadID.Name when the thread name cannot be resolved.
const UnknownThreadName = "<unknown>"

// ThreadID identifies the execution context a task is bound to.
type ThreadID struct {
	// Goroutine is the runtime goroutine id. Ownership checks compare this field only.
	Goroutine int64 `json:"goroutine" yaml:"goroutine"`
	// Kernel is the OS thread id the goroutine was running on when the id was captured.
	// Zero on platforms where it is not available.
	Kernel int `json:"kernel_id,omitempty" yaml:"kernel_id,omitempty"`
}

// CurrentThread returns the identity of the calling goroutine.
func CurrentThread() ThreadID {
	return ThreadID{Goroutine: goid.Get(), Kernel: gettid()}
}

// Equal reports whether t and o name the same goroutine.
func (t ThreadID) Equal(o ThreadID) bool { return t.Goroutine == o.Goroutine }

// Name resolves the OS-assigned name of the kernel thread at call time.
//
// The result is not cached. If the thread no longer exists, or the platform cannot resolve
// names, it returns UnknownThreadName.
func (t ThreadID) Name() string { return threadName(t.Kernel) }

func (t ThreadID) String() string {
	s := "goroutine " + strconv.FormatInt(t.Goroutine, 10)
	if t.Kernel > 0 {
		s += " (tid " + strconv.Itoa(t.Kernel) + ")"
	}
	return s
}

func currentGoroutine() int64 { return goid.Get() }
