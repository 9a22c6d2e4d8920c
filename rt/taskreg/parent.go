package taskreg

import "strconv"

// TaskID is the process-unique identity of a task. IDs are never reused.
type TaskID uint64

func (id TaskID) String() string { return strconv.FormatUint(uint64(id), 10) }

// Parent is the identity of a snapshot's parent: either RootTask or ParentID.
type Parent interface {
	isParent()
	String() string
}

// RootTask marks a task that was started as an entry point. Name is the name the caller gave
// to StartTask.
type RootTask struct {
	Name string `json:"root" yaml:"root"`
}

// ParentID names the parent task of a subtask.
type ParentID struct {
	ID TaskID `json:"task_id" yaml:"task_id"`
}

func (RootTask) isParent() {}

func (p RootTask) String() string { return "root " + strconv.Quote(p.Name) }

func (ParentID) isParent() {}

func (p ParentID) String() string { return "task " + p.ID.String() }
