package inflight

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/evan-idocoding/inflight/rt/taskreg"
)

// DefaultAdminPrefix is where admin is mounted on the primary server by default.
const DefaultAdminPrefix = "/-/"

// ServiceSpec configures NewService.
type ServiceSpec struct {
	// Registry holds the tasks of this process. nil creates one logging to Logger.
	Registry *taskreg.Registry

	// Logger receives service, tracking and recovery logs. nil means slog.Default().
	Logger *slog.Logger

	// LogLevelVar, when non-nil, is exposed through admin (/log/level, and /log/level/set if
	// admin writes enable it).
	LogLevelVar *slog.LevelVar

	// Signals controls whether Run listens for OS signals. The default set is SIGINT and
	// SIGTERM on Unix, os.Interrupt elsewhere.
	Signals SignalSpec

	// ShutdownTimeout bounds the whole shutdown. <= 0 means 30s.
	ShutdownTimeout time.Duration

	// Primary is the primary server. It may be nil for a service that only serves admin.
	Primary *HTTPServerSpec

	// Track configures the per-request root task on the primary server.
	Track TrackSpec

	// Extra servers are started and stopped with the service. They are not tracked and admin
	// is never mounted on them.
	Extra []*HTTPServerSpec

	// Admin enables the admin subtree, either mounted on Primary or served standalone.
	// With both Mount and Server nil it mounts under DefaultAdminPrefix.
	Admin *ServiceAdminSpec

	Hooks ServiceHooks
}

// TrackSpec configures request tracking on the primary server.
type TrackSpec struct {
	Disable bool
	Root    string                   // root task name; default "http"
	Skip    func(*http.Request) bool // requests not to track (e.g. health probes)
}

type SignalSpec struct {
	Disable bool
	Signals []os.Signal // nil/empty => default set
}

// HTTPServerSpec describes a managed http.Server.
type HTTPServerSpec struct {
	// Name is used in logs and errors. Default: primary, extra#N or admin.
	Name string

	// Critical servers shut the whole service down when they fail. nil means true.
	Critical *bool

	// Either Server (used as-is, Addr required) or Addr + Handler (built with conservative
	// timeouts).
	Server  *http.Server
	Addr    string
	Handler http.Handler
}

type ServiceAdminSpec struct {
	// Spec is forwarded to NewDefaultAdmin. Registry, LogLevelVar and Logger default to the
	// service's own.
	Spec AdminSpec

	// Mutually exclusive.
	Mount  *AdminMountSpec
	Server *HTTPServerSpec
}

type AdminMountSpec struct {
	Prefix string // default "/-/"
}

type ServiceHooks struct {
	// OnStart hooks run sequentially before any server binds. An error fails Start.
	OnStart []func(context.Context) error

	// OnShutdown hooks run sequentially after the servers (except a standalone admin) have
	// drained. Errors are joined into the shutdown error.
	OnShutdown []func(context.Context) error

	// OnServeError is called when a server exits unexpectedly.
	OnServeError func(name string, err error, critical bool)
}
