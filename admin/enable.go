package admin

import (
	"log/slog"

	"github.com/evan-idocoding/inflight/ops"
	"github.com/evan-idocoding/inflight/rt/taskreg"
)

// ReportSpec enables an aggregated text report of the other read endpoints.
type ReportSpec struct {
	Guard Guard
	Path  string // default "/report"
}

// EnableReport mounts the report. Its sections are the read endpoints enabled on the same
// builder, regardless of option order.
func EnableReport(spec ReportSpec) Option {
	return func(b *Builder) {
		requireBuilder(b)
		requireGuard(spec.Guard, "report")
		if b.report != nil {
			panic("admin: EnableReport called more than once")
		}
		spec.Path = normalizePathOrPanic(resolvePath(spec.Path, "/report"))
		b.report = &spec
	}
}

// TasksSpec enables the task list (ops.TasksHandler).
type TasksSpec struct {
	Guard    Guard
	Path     string // default "/tasks"
	Registry *taskreg.Registry

	// AllowPrefixes, when non-nil, limits the list to tasks whose label has one of the prefixes.
	// An empty non-nil slice hides every task.
	AllowPrefixes []string
}

// EnableTasks mounts the task list.
func EnableTasks(spec TasksSpec) Option {
	return func(b *Builder) {
		requireGuard(spec.Guard, "tasks")
		if spec.Registry == nil {
			panic("admin: tasks: nil task registry")
		}
		path := normalizePathOrPanic(resolvePath(spec.Path, "/tasks"))
		opts := taskOptions(spec.AllowPrefixes)
		b.mount("tasks", path, spec.Guard, ops.TasksHandler(spec.Registry, opts...))
		b.reportState.tasks = reportSource{
			path: path + "?view=tree",
			h:    ops.TasksHandler(spec.Registry, opts...),
		}
	}
}

// TaskSpec enables the single-task view (ops.TaskHandler).
type TaskSpec struct {
	Guard    Guard
	Path     string // default "/task"
	Registry *taskreg.Registry

	AllowPrefixes []string // see TasksSpec
}

// EnableTask mounts the single-task view.
func EnableTask(spec TaskSpec) Option {
	return func(b *Builder) {
		requireGuard(spec.Guard, "task")
		if spec.Registry == nil {
			panic("admin: task: nil task registry")
		}
		path := resolvePath(spec.Path, "/task")
		b.mount("task", path, spec.Guard, ops.TaskHandler(spec.Registry, taskOptions(spec.AllowPrefixes)...))
	}
}

func taskOptions(allow []string) []ops.TaskOption {
	if allow == nil {
		return nil
	}
	return []ops.TaskOption{ops.WithTaskAllowPrefixes(allow...)}
}

// LogLevelGetSpec enables reading the log level.
type LogLevelGetSpec struct {
	Guard Guard
	Path  string // default "/log/level"
	Var   *slog.LevelVar
}

// EnableLogLevelGet mounts ops.LogLevelGetHandler.
func EnableLogLevelGet(spec LogLevelGetSpec) Option {
	return func(b *Builder) {
		requireGuard(spec.Guard, "log.level.get")
		if spec.Var == nil {
			panic("admin: log.level.get: nil slog.LevelVar")
		}
		path := normalizePathOrPanic(resolvePath(spec.Path, "/log/level"))
		h := ops.LogLevelGetHandler(spec.Var)
		b.mount("log.level.get", path, spec.Guard, h)
		b.reportState.logLevel = reportSource{path: path, h: h}
	}
}

// LogLevelSetSpec enables changing the log level.
type LogLevelSetSpec struct {
	Guard Guard
	Path  string // default "/log/level/set"
	Var   *slog.LevelVar
}

// EnableLogLevelSet mounts ops.LogLevelSetHandler. Prefer a stricter Guard than for reads.
func EnableLogLevelSet(spec LogLevelSetSpec) Option {
	return func(b *Builder) {
		requireGuard(spec.Guard, "log.level.set")
		if spec.Var == nil {
			panic("admin: log.level.set: nil slog.LevelVar")
		}
		path := resolvePath(spec.Path, "/log/level/set")
		b.mount("log.level.set", path, spec.Guard, ops.LogLevelSetHandler(spec.Var))
	}
}
