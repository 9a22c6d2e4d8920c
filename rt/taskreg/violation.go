package taskreg

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"runtime/debug"
	"strings"
	"sync"
)

// Violation describes a broken ownership rule.
type Violation struct {
	// Op is the operation that was attempted (UpdateState, Start, StartSubtask, ...).
	Op     string
	Reason string
	// Expected is the goroutine that owns the task, nil if the task was never bound.
	Expected *ThreadID
	Actual   ThreadID
	// Site is where the offending call was made.
	Site SourceLocation
	// Task is the task the operation was applied to (the parent, for subtask creation).
	Task Snapshot
}

func (v *Violation) Error() string {
	var b strings.Builder
	b.WriteString("taskreg: ")
	b.WriteString(v.Op)
	b.WriteString(": ")
	b.WriteString(v.Reason)
	b.WriteString(" (")
	if v.Expected != nil {
		b.WriteString("expected ")
		b.WriteString(v.Expected.String())
		b.WriteString(", ")
	}
	b.WriteString("actual ")
	b.WriteString(v.Actual.String())
	b.WriteString(") at ")
	b.WriteString(v.Site.String())
	fmt.Fprintf(&b, "; task %s %q state %q created at %s", v.Task.ID, v.Task.Name, v.Task.State, v.Task.Location)
	return b.String()
}

func (v *Violation) attrs() []slog.Attr {
	attrs := []slog.Attr{
		slog.String("op", v.Op),
		slog.String("reason", v.Reason),
		slog.Int64("actual_goroutine", v.Actual.Goroutine),
		slog.String("site", v.Site.String()),
		slog.Uint64("task_id", uint64(v.Task.ID)),
		slog.String("task_name", v.Task.Name),
		slog.String("task_state", v.Task.State),
		slog.String("task_location", v.Task.Location.String()),
	}
	if v.Expected != nil {
		attrs = append(attrs, slog.Int64("expected_goroutine", v.Expected.Goroutine))
	}
	return attrs
}

var fatalStderrMu sync.Mutex

func defaultFatal(v *Violation) {
	fatalStderrMu.Lock()
	fmt.Fprintf(os.Stderr, "%s\n\n%s", v.Error(), debug.Stack())
	fatalStderrMu.Unlock()
	os.Exit(2)
}

func (r *Registry) violate(v *Violation) {
	r.logger().LogAttrs(context.Background(), slog.LevelError, "taskreg: invariant violation", v.attrs()...)
	fatal := r.cfg.fatal
	if fatal == nil {
		fatal = defaultFatal
	}
	fatal(v)
	panic(v)
}
