// Package admin assembles an explicit, guarded admin subtree (http.Handler) over the task
// registry and the process log level.
//
// Mount the returned handler anywhere in an existing HTTP stack:
//
//	mux := http.NewServeMux()
//	mux.Handle("/-/", http.StripPrefix("/-", admin.New(...)))
//	mux.Handle("/", app)
//
// # Rules
//
// Nothing is mounted unless enabled with an EnableXxx option, and every enabled endpoint needs a
// non-nil Guard. Assembly errors panic: nil Guard, nil registry or level var, malformed or
// duplicated path.
//
// Read endpoints answer GET and HEAD. Writes (EnableLogLevelSet) answer POST only.
//
// # Endpoints
//
//	EnableTasks        /tasks          ops.TasksHandler
//	EnableTask         /task?id=N      ops.TaskHandler
//	EnableLogLevelGet  /log/level      ops.LogLevelGetHandler
//	EnableLogLevelSet  /log/level/set  ops.LogLevelSetHandler
//	EnableReport       /report         text report of the enabled read endpoints
//
// # Guards
//
// AllowAll and DenyAll are fixed. Tokens compares the X-Access-Token header (configurable with
// WithTokenHeader) against a token set in constant time. Check wraps an arbitrary predicate.
// Rejected requests get 403.
//
// The subtree carries its own request id and panic recovery middlewares, so it can be mounted
// on a mux that has neither.
package admin
