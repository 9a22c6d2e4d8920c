// Package ops provides net/http handlers for looking inside a running inflight process.
//
// Handlers do not choose paths, do not authenticate and do not start servers: mount them
// wherever you like (package admin does it with explicit guards).
//
// # Formats
//
// Every handler renders text by default. The default can be changed with an option and
// overridden per request with ?format=text|json|yaml.
//
// Text output is line-based and tab-separated so it can be grepped and cut:
//
//	tasks	count	2
//	task	17	name	entry point
//	task	17	state	GET /work
//	task	17	parent	root:http
//
// Field values are escaped (\t, \n, \\ and other control characters), so one line is always one
// field.
//
// # Handlers
//
//   - TasksHandler lists live tasks of a taskreg.Registry, flat or as a tree, with filters.
//   - TaskHandler shows one task together with its ancestor chain.
//   - LogLevelGetHandler / LogLevelSetHandler read and change a *slog.LevelVar.
//
// Task lists can expose request paths and internal state. Protect the mount point.
package ops
