package admin

import (
	"net/http"
	"strings"
)

func resolvePath(specPath, def string) string {
	if strings.TrimSpace(specPath) == "" {
		return def
	}
	return specPath
}

func requireBuilder(b *Builder) {
	if b == nil {
		panic("admin: nil builder")
	}
}

func requireGuard(g Guard, name string) {
	if g == nil {
		panic("admin: " + name + ": nil Guard")
	}
}

func (b *Builder) register(path string, h http.Handler) {
	requireBuilder(b)
	path = normalizePathOrPanic(path)
	if h == nil {
		panic("admin: nil handler for path " + path)
	}
	if _, exists := b.paths[path]; exists {
		panic("admin: duplicated path handler: " + path)
	}
	b.paths[path] = h
}

func normalizePathOrPanic(path string) string {
	path = strings.TrimSpace(path)
	switch {
	case path == "":
		panic("admin: empty path")
	case !strings.HasPrefix(path, "/"):
		panic("admin: invalid path (must start with '/'): " + path)
	case strings.ContainsAny(path, " \t\r\n?#"):
		panic("admin: invalid path (contains whitespace or ?#): " + path)
	case strings.Contains(path, "//"):
		panic("admin: invalid path (contains //): " + path)
	}
	return path
}

// mount guards h and registers it at path.
func (b *Builder) mount(name, path string, g Guard, h http.Handler) {
	requireBuilder(b)
	requireGuard(g, name)
	if h == nil {
		panic("admin: " + name + ": nil handler")
	}
	b.register(path, g.Middleware()(h))
}
