package safego

import (
	"context"
	"log/slog"
	"strconv"
)

// Tag is a key/value pair attached to every report of a run, in the order it was added.
type Tag struct {
	Key   string
	Value string
}

// Attr returns the tag as a slog string attribute.
func (t Tag) Attr() slog.Attr { return slog.String(t.Key, t.Value) }

// ErrorHandler receives errors returned by the function. Context cancellation is filtered out
// unless WithReportContextCancel(true).
type ErrorHandler func(ctx context.Context, info ErrorInfo)

// ErrorInfo is the report for a returned error.
type ErrorInfo struct {
	Name string
	Tags []Tag
	Err  error
}

// Attrs renders the report as slog attributes: name, tags, then err.
func (i ErrorInfo) Attrs() []slog.Attr {
	return append(baseAttrs(i.Name, i.Tags, 1), slog.Any("err", i.Err))
}

// PanicHandler receives recovered panics when the policy reports them.
type PanicHandler func(ctx context.Context, info PanicInfo)

// PanicInfo is the report for a recovered panic.
type PanicInfo struct {
	Name  string
	Tags  []Tag
	Value any
	Stack []byte
}

// Attrs renders the report as slog attributes: name, tags, panic, then stack if captured.
func (i PanicInfo) Attrs() []slog.Attr {
	attrs := append(baseAttrs(i.Name, i.Tags, 2), slog.Any("panic", i.Value))
	if len(i.Stack) > 0 {
		attrs = append(attrs, slog.String("stack", string(i.Stack)))
	}
	return attrs
}

func baseAttrs(name string, tags []Tag, extra int) []slog.Attr {
	attrs := make([]slog.Attr, 0, len(tags)+1+extra)
	if name != "" {
		attrs = append(attrs, slog.String("name", name))
	}
	for _, t := range tags {
		attrs = append(attrs, t.Attr())
	}
	return attrs
}

// PanicPolicy selects what a run does after recovering a panic.
type PanicPolicy int

const (
	// RecoverAndReport hands the panic to the PanicHandler, or logs it at ERROR.
	RecoverAndReport PanicPolicy = iota
	// RecoverOnly swallows the panic.
	RecoverOnly
	// RepanicAfterReport reports, then panics again with the original value.
	RepanicAfterReport
)

func (p PanicPolicy) String() string {
	switch p {
	case RecoverAndReport:
		return "recover_and_report"
	case RecoverOnly:
		return "recover_only"
	case RepanicAfterReport:
		return "repanic_after_report"
	}
	return "PanicPolicy(" + strconv.Itoa(int(p)) + ")"
}
