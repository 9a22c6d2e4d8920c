package config

import (
	"errors"
	"fmt"
	"net"
	"slices"
	"strings"

	"github.com/evan-idocoding/inflight/ops"
)

// ErrInvalid matches every ValidationErrors with errors.Is.
var ErrInvalid = errors.New("config: invalid configuration")

// ValidationError is a single invalid field.
type ValidationError struct {
	Field   string // e.g. "log.level"
	Value   any
	Message string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("%s: %s (got: %v)", e.Field, e.Message, e.Value)
}

// ValidationErrors collects every invalid field of a Config.
type ValidationErrors []ValidationError

func (e ValidationErrors) Error() string {
	if len(e) == 1 {
		return "config: " + e[0].Error()
	}
	var sb strings.Builder
	fmt.Fprintf(&sb, "config: %d validation errors:", len(e))
	for i, err := range e {
		fmt.Fprintf(&sb, "\n  %d. %s", i+1, err.Error())
	}
	return sb.String()
}

func (e ValidationErrors) Is(target error) bool { return target == ErrInvalid }

// Validate returns every invalid field, or nil.
func (c *Config) Validate() []ValidationError {
	var errs []ValidationError
	add := func(field string, value any, msg string) {
		errs = append(errs, ValidationError{Field: field, Value: value, Message: msg})
	}

	if !validAddr(c.Server.Addr) {
		add("server.addr", c.Server.Addr, "must be host:port")
	}
	if c.Server.ShutdownTimeout <= 0 {
		add("server.shutdown_timeout", c.Server.ShutdownTimeout, "must be positive")
	}
	if strings.TrimSpace(c.Server.TrackRoot) == "" {
		add("server.track_root", c.Server.TrackRoot, "must not be empty")
	}

	if c.Admin.Enabled {
		if c.Admin.Addr != "" {
			if !validAddr(c.Admin.Addr) {
				add("admin.addr", c.Admin.Addr, "must be host:port")
			}
		} else if p := c.Admin.Prefix; !strings.HasPrefix(p, "/") || strings.ContainsAny(p, " \t?#") || strings.Contains(p, "//") {
			add("admin.prefix", p, "must be an absolute path without whitespace, ?, # or //")
		}
		if slices.Contains(c.Admin.ReadTokens, "") || slices.Contains(c.Admin.WriteTokens, "") {
			add("admin.tokens", "", "tokens must not be empty")
		}
	}

	if _, ok := ops.ParseLevel(c.Log.Level); !ok {
		add("log.level", c.Log.Level, "must be one of debug, info, warn, error")
	}
	if f := strings.ToLower(c.Log.Format); f != "text" && f != "json" {
		add("log.format", c.Log.Format, "must be text or json")
	}

	if c.Demo.Enabled {
		if c.Demo.Fanout < 1 || c.Demo.Fanout > 64 {
			add("demo.fanout", c.Demo.Fanout, "must be between 1 and 64")
		}
		if c.Demo.Steps < 1 {
			add("demo.steps", c.Demo.Steps, "must be positive")
		}
		if c.Demo.StepDelay < 0 {
			add("demo.step_delay", c.Demo.StepDelay, "must not be negative")
		}
	}
	return errs
}

func validAddr(addr string) bool {
	_, port, err := net.SplitHostPort(addr)
	return err == nil && port != ""
}
