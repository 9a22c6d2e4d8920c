package taskreg

import (
	"runtime"
	"strconv"
)

// SourceLocation is a position in the program's source.
type SourceLocation struct {
	File     string `json:"file" yaml:"file"`
	Line     int    `json:"line" yaml:"line"`
	Function string `json:"function,omitempty" yaml:"function,omitempty"`
}

// callerLocation returns the location of the caller of the function that calls it, skipping
// skip additional frames.
func callerLocation(skip int) SourceLocation {
	pc, file, line, ok := runtime.Caller(skip + 2)
	if !ok {
		return SourceLocation{}
	}
	loc := SourceLocation{File: file, Line: line}
	if fn := runtime.FuncForPC(pc); fn != nil {
		loc.Function = fn.Name()
	}
	return loc
}

// IsZero reports whether the location is unknown.
func (l SourceLocation) IsZero() bool { return l.File == "" && l.Line == 0 && l.Function == "" }

func (l SourceLocation) String() string {
	if l.IsZero() {
		return "<unknown>"
	}
	s := l.File + ":" + strconv.Itoa(l.Line)
	if l.Function != "" {
		s += " (" + l.Function + ")"
	}
	return s
}
