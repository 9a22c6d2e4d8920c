package inflight

import (
	"log/slog"
	"net/http"

	"github.com/evan-idocoding/inflight/admin"
	"github.com/evan-idocoding/inflight/rt/taskreg"
)

// AdminSpec configures NewDefaultAdmin.
type AdminSpec struct {
	// ReadGuard is required. It protects all read endpoints.
	ReadGuard admin.Guard

	// Registry enables /tasks and /task when non-nil.
	Registry *taskreg.Registry

	// TaskAllowPrefixes, when non-nil, limits which tasks reads can see (by root name for
	// entry points, by task name for subtasks).
	TaskAllowPrefixes []string

	// LogLevelVar enables /log/level when non-nil.
	LogLevelVar *slog.LevelVar

	// Logger receives panics recovered inside the admin subtree.
	Logger *slog.Logger

	// Writes controls write endpoints. nil disables all writes.
	Writes *AdminWriteSpec
}

// AdminWriteSpec controls write endpoints.
type AdminWriteSpec struct {
	// Guard is required when Writes != nil.
	Guard admin.Guard

	// EnableLogLevelSet enables /log/level/set (requires LogLevelVar).
	EnableLogLevelSet bool
}

// NewDefaultAdmin assembles the admin subtree with fixed paths:
//
//	/report          always
//	/tasks, /task    with Registry
//	/log/level       with LogLevelVar
//	/log/level/set   with Writes.EnableLogLevelSet
//
// For other paths or guards per endpoint, use admin.New directly.
func NewDefaultAdmin(spec AdminSpec) http.Handler {
	if spec.ReadGuard == nil {
		panic("inflight: NewDefaultAdmin: nil ReadGuard")
	}

	opts := []admin.Option{
		admin.WithLogger(spec.Logger),
		admin.EnableReport(admin.ReportSpec{Guard: spec.ReadGuard}),
	}
	if spec.Registry != nil {
		opts = append(opts,
			admin.EnableTasks(admin.TasksSpec{
				Guard:         spec.ReadGuard,
				Registry:      spec.Registry,
				AllowPrefixes: spec.TaskAllowPrefixes,
			}),
			admin.EnableTask(admin.TaskSpec{
				Guard:         spec.ReadGuard,
				Registry:      spec.Registry,
				AllowPrefixes: spec.TaskAllowPrefixes,
			}),
		)
	}
	if spec.LogLevelVar != nil {
		opts = append(opts, admin.EnableLogLevelGet(admin.LogLevelGetSpec{
			Guard: spec.ReadGuard,
			Var:   spec.LogLevelVar,
		}))
	}

	if spec.Writes != nil {
		if spec.Writes.Guard == nil {
			panic("inflight: NewDefaultAdmin: Writes != nil but Writes.Guard is nil")
		}
		if spec.Writes.EnableLogLevelSet {
			if spec.LogLevelVar == nil {
				panic("inflight: NewDefaultAdmin: EnableLogLevelSet requires LogLevelVar")
			}
			opts = append(opts, admin.EnableLogLevelSet(admin.LogLevelSetSpec{
				Guard: spec.Writes.Guard,
				Var:   spec.LogLevelVar,
			}))
		}
	}
	return admin.New(opts...)
}
