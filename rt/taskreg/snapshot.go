package taskreg

import "time"

// Snapshot is a detached copy of a task's fields taken at one instant.
type Snapshot struct {
	ID    TaskID `json:"id" yaml:"id"`
	Name  string `json:"name" yaml:"name"`
	State string `json:"state" yaml:"state"`
	// Parent is RootTask for entry points and ParentID for subtasks.
	Parent Parent `json:"parent" yaml:"parent"`
	// Thread is nil while the task is scheduled.
	Thread    *ThreadID      `json:"thread" yaml:"thread"`
	Location  SourceLocation `json:"source_location" yaml:"source_location"`
	StartedAt time.Time      `json:"started_at,omitzero" yaml:"started_at,omitempty"`
}

// IsRoot reports whether the task was started with StartTask.
func (s Snapshot) IsRoot() bool {
	_, ok := s.Parent.(RootTask)
	return ok
}

// ParentID returns the parent's id for subtasks.
func (s Snapshot) ParentID() (TaskID, bool) {
	p, ok := s.Parent.(ParentID)
	return p.ID, ok
}

// RootName returns the name passed to StartTask for entry points.
func (s Snapshot) RootName() (string, bool) {
	p, ok := s.Parent.(RootTask)
	return p.Name, ok
}

// Equal reports whether s and o hold the same values.
func (s Snapshot) Equal(o Snapshot) bool {
	if s.ID != o.ID || s.Name != o.Name || s.State != o.State || s.Location != o.Location {
		return false
	}
	if s.Parent != o.Parent {
		return false
	}
	if (s.Thread == nil) != (o.Thread == nil) {
		return false
	}
	if s.Thread != nil && *s.Thread != *o.Thread {
		return false
	}
	return s.StartedAt.Equal(o.StartedAt)
}
