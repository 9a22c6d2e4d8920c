package ops

import (
	"log/slog"
	"net/http"
	"strconv"
	"strings"
)

type logLevelConfig struct {
	format Format
}

// LogLevelOption configures LogLevelGetHandler / LogLevelSetHandler.
type LogLevelOption func(*logLevelConfig)

// WithLogLevelDefaultFormat sets the default response format. Default: FormatText.
func WithLogLevelDefaultFormat(f Format) LogLevelOption {
	return func(c *logLevelConfig) { c.format = f }
}

func applyLogLevelOptions(opts []LogLevelOption) logLevelConfig {
	cfg := logLevelConfig{format: FormatText}
	for _, opt := range opts {
		if opt != nil {
			opt(&cfg)
		}
	}
	if !cfg.format.valid() {
		cfg.format = FormatText
	}
	return cfg
}

// LogLevelSnapshot is the current value of a slog.LevelVar.
type LogLevelSnapshot struct {
	// Level is one of debug, info, warn, error; custom levels are bucketed into the nearest one below.
	Level string `json:"level" yaml:"level"`
	// LevelValue is the numeric slog level.
	LevelValue int `json:"level_value" yaml:"level_value"`
}

// LogLevel returns a snapshot of lv.
func LogLevel(lv *slog.LevelVar) LogLevelSnapshot {
	if lv == nil {
		return LogLevelSnapshot{}
	}
	l := lv.Level()
	return LogLevelSnapshot{Level: levelName(l), LevelValue: int(l)}
}

type logLevelResponse struct {
	OK    bool              `json:"ok" yaml:"ok"`
	Error string            `json:"error,omitempty" yaml:"error,omitempty"`
	Log   *LogLevelSnapshot `json:"log,omitempty" yaml:"log,omitempty"`
	Old   *LogLevelSnapshot `json:"old,omitempty" yaml:"old,omitempty"`
}

// LogLevelGetHandler returns a handler reporting the level of lv. GET/HEAD only.
func LogLevelGetHandler(lv *slog.LevelVar, opts ...LogLevelOption) http.Handler {
	if lv == nil {
		panic("ops: nil slog.LevelVar")
	}
	cfg := applyLogLevelOptions(opts)
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		format := formatFromRequest(r, cfg.format)
		if !allowRead(w, r) {
			writeLogLevel(w, r, format, http.StatusMethodNotAllowed, logLevelResponse{Error: "method not allowed"})
			return
		}
		snap := LogLevel(lv)
		writeLogLevel(w, r, format, http.StatusOK, logLevelResponse{OK: true, Log: &snap})
	})
}

// LogLevelSetHandler returns a handler that sets lv from ?level=debug|info|warn|error
// (case-insensitive; "warning" and "err" are accepted). POST only.
func LogLevelSetHandler(lv *slog.LevelVar, opts ...LogLevelOption) http.Handler {
	if lv == nil {
		panic("ops: nil slog.LevelVar")
	}
	cfg := applyLogLevelOptions(opts)
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		format := formatFromRequest(r, cfg.format)
		if r.Method != http.MethodPost {
			w.Header().Set("Allow", "POST")
			writeLogLevel(w, r, format, http.StatusMethodNotAllowed, logLevelResponse{Error: "method not allowed"})
			return
		}
		raw, _ := getQueryRaw(r, "level")
		l, ok := ParseLevel(raw)
		if !ok {
			writeLogLevel(w, r, format, http.StatusBadRequest, logLevelResponse{
				Error: "invalid level (want one of: debug, info, warn, error)",
			})
			return
		}
		old := LogLevel(lv)
		lv.Set(l)
		snap := LogLevel(lv)
		writeLogLevel(w, r, format, http.StatusOK, logLevelResponse{OK: true, Log: &snap, Old: &old})
	})
}

// ParseLevel parses one of debug, info, warn, error (case-insensitive, surrounding space
// ignored; "warning" and "err" are aliases).
func ParseLevel(s string) (slog.Level, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return slog.LevelDebug, true
	case "info":
		return slog.LevelInfo, true
	case "warn", "warning":
		return slog.LevelWarn, true
	case "error", "err":
		return slog.LevelError, true
	default:
		return 0, false
	}
}

// levelName buckets l using the slog defaults as lower bounds.
func levelName(l slog.Level) string {
	switch {
	case l < slog.LevelInfo:
		return "debug"
	case l < slog.LevelWarn:
		return "info"
	case l < slog.LevelError:
		return "warn"
	default:
		return "error"
	}
}

func writeLogLevel(w http.ResponseWriter, r *http.Request, f Format, code int, resp logLevelResponse) {
	writeResponse(w, r, f, code, resp, func() string {
		if !resp.OK || resp.Log == nil {
			return textError(resp.Error)
		}
		var t textLines
		if resp.Old != nil {
			t.line("log", "old_level", resp.Old.Level)
			t.line("log", "old_level_value", strconv.Itoa(resp.Old.LevelValue))
		}
		t.line("log", "level", resp.Log.Level)
		t.line("log", "level_value", strconv.Itoa(resp.Log.LevelValue))
		return t.String()
	})
}
