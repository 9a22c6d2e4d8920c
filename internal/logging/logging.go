// Package logging builds the process logger of inflightd: a slog handler on stderr or a file
// whose level can change at runtime.
package logging

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/evan-idocoding/inflight/ops"
)

// Output formats.
const (
	FormatText = "text"
	FormatJSON = "json"
)

// ErrInvalidLevel is returned for a level other than debug, info, warn or error.
var ErrInvalidLevel = errors.New("logging: invalid level")

// Options configures New. The zero value logs text at info level to stderr.
type Options struct {
	Level  string // debug|info|warn|error, default info
	Format string // text|json, default text
	File   string // append to this file instead of stderr

	// Writer overrides both File and stderr.
	Writer io.Writer
}

// Logger is a *slog.Logger with its level var. It is safe for concurrent use.
type Logger struct {
	*slog.Logger
	Level *slog.LevelVar

	mu   sync.Mutex
	file *os.File
}

// New builds a Logger. The caller closes it to release the log file.
func New(opts Options) (*Logger, error) {
	lv := new(slog.LevelVar)
	if opts.Level != "" {
		l, ok := ops.ParseLevel(opts.Level)
		if !ok {
			return nil, fmt.Errorf("%w: %q", ErrInvalidLevel, opts.Level)
		}
		lv.Set(l)
	}

	var (
		w    io.Writer = os.Stderr
		file *os.File
	)
	switch {
	case opts.Writer != nil:
		w = opts.Writer
	case opts.File != "":
		if err := os.MkdirAll(filepath.Dir(opts.File), 0o755); err != nil {
			return nil, fmt.Errorf("logging: create log directory: %w", err)
		}
		f, err := os.OpenFile(opts.File, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
		if err != nil {
			return nil, fmt.Errorf("logging: open log file: %w", err)
		}
		w, file = f, f
	}

	hopts := &slog.HandlerOptions{Level: lv}
	var h slog.Handler
	switch strings.ToLower(opts.Format) {
	case "", FormatText:
		h = slog.NewTextHandler(w, hopts)
	case FormatJSON:
		h = slog.NewJSONHandler(w, hopts)
	default:
		if file != nil {
			_ = file.Close()
		}
		return nil, fmt.Errorf("logging: invalid format %q (want text or json)", opts.Format)
	}

	return &Logger{Logger: slog.New(h), Level: lv, file: file}, nil
}

// SetLevel parses and applies level.
func (l *Logger) SetLevel(level string) error {
	v, ok := ops.ParseLevel(level)
	if !ok {
		return fmt.Errorf("%w: %q", ErrInvalidLevel, level)
	}
	l.Level.Set(v)
	return nil
}

// Close closes the log file, if any. It is idempotent.
func (l *Logger) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.file == nil {
		return nil
	}
	err := l.file.Close()
	l.file = nil
	return err
}
