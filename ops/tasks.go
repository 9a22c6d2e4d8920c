package ops

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/evan-idocoding/inflight/rt/taskreg"
)

type taskOpsConfig struct {
	format Format
	guards []func(name string) bool
	now    func() time.Time
}

// TaskOption configures TasksHandler and TaskHandler.
type TaskOption func(*taskOpsConfig)

// WithTaskDefaultFormat sets the default response format. Default: FormatText.
func WithTaskDefaultFormat(f Format) TaskOption {
	return func(c *taskOpsConfig) { c.format = f }
}

// WithTaskNameGuard appends a guard on task labels. Guards are ANDed; hidden tasks are left out
// of lists and reported as not found by TaskHandler.
//
// The label of an entry point is its root name; the label of a subtask is its own name.
func WithTaskNameGuard(fn func(label string) bool) TaskOption {
	return func(c *taskOpsConfig) {
		if fn != nil {
			c.guards = append(c.guards, fn)
		}
	}
}

// WithTaskAllowPrefixes only shows tasks whose label has one of the prefixes. With no non-empty
// prefix it hides everything.
func WithTaskAllowPrefixes(prefixes ...string) TaskOption {
	var ps []string
	for _, p := range prefixes {
		if p != "" {
			ps = append(ps, p)
		}
	}
	return WithTaskNameGuard(func(label string) bool {
		for _, p := range ps {
			if strings.HasPrefix(label, p) {
				return true
			}
		}
		return false
	})
}

func applyTaskOptions(opts []TaskOption) taskOpsConfig {
	cfg := taskOpsConfig{format: FormatText, now: time.Now}
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

func (c *taskOpsConfig) allowed(label string) bool {
	for _, g := range c.guards {
		if !g(label) {
			return false
		}
	}
	return true
}

// TaskItem is the rendered form of a task snapshot.
type TaskItem struct {
	ID    uint64 `json:"id" yaml:"id"`
	Name  string `json:"name" yaml:"name"`
	State string `json:"state" yaml:"state"`
	// Root is the root name of the task's chain, when the chain was visible.
	Root     string `json:"root,omitempty" yaml:"root,omitempty"`
	ParentID uint64 `json:"parent_id,omitempty" yaml:"parent_id,omitempty"`

	Thread    *TaskThread            `json:"thread,omitempty" yaml:"thread,omitempty"`
	Location  taskreg.SourceLocation `json:"source_location" yaml:"source_location"`
	StartedAt *time.Time             `json:"started_at,omitempty" yaml:"started_at,omitempty"`
	Age       string                 `json:"age,omitempty" yaml:"age,omitempty"`

	// Depth and Children are set by the tree view only.
	Depth    int        `json:"depth,omitempty" yaml:"depth,omitempty"`
	Children []TaskItem `json:"children,omitempty" yaml:"children,omitempty"`
}

// TaskThread describes the goroutine a task is bound to.
type TaskThread struct {
	Goroutine int64  `json:"goroutine" yaml:"goroutine"`
	KernelID  int    `json:"kernel_id,omitempty" yaml:"kernel_id,omitempty"`
	Name      string `json:"name,omitempty" yaml:"name,omitempty"`
}

// IsRoot reports whether the item is an entry point.
func (it TaskItem) IsRoot() bool { return it.ParentID == 0 }

// Label is the string name guards are applied to.
func (it TaskItem) Label() string {
	if it.IsRoot() {
		return it.Root
	}
	return it.Name
}

// TasksReport is the response of TasksHandler.
type TasksReport struct {
	OK    bool       `json:"ok" yaml:"ok"`
	Error string     `json:"error,omitempty" yaml:"error,omitempty"`
	View  string     `json:"view,omitempty" yaml:"view,omitempty"`
	Count int        `json:"count" yaml:"count"`
	Tasks []TaskItem `json:"tasks,omitempty" yaml:"tasks,omitempty"`
}

// TaskReport is the response of TaskHandler. Ancestors run from the direct parent to the root.
type TaskReport struct {
	OK        bool       `json:"ok" yaml:"ok"`
	Error     string     `json:"error,omitempty" yaml:"error,omitempty"`
	Task      *TaskItem  `json:"task,omitempty" yaml:"task,omitempty"`
	Ancestors []TaskItem `json:"ancestors,omitempty" yaml:"ancestors,omitempty"`
}

const (
	viewList = "list"
	viewTree = "tree"
)

// TasksHandler returns a handler listing the live tasks of reg.
//
// Query:
//   - view=list|tree (default list). The tree nests subtasks under their parents; a subtask whose
//     parent was filtered out becomes a top-level node.
//   - state=<s> keeps tasks whose state equals s.
//   - root=<name> keeps tasks whose chain starts at StartTask(name).
//   - name_prefix=<p> keeps tasks whose name starts with p.
//
// GET/HEAD only.
func TasksHandler(reg *taskreg.Registry, opts ...TaskOption) http.Handler {
	if reg == nil {
		panic("ops: nil task registry")
	}
	cfg := applyTaskOptions(opts)
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		format := formatFromRequest(r, cfg.format)
		if !allowRead(w, r) {
			writeTasks(w, r, format, http.StatusMethodNotAllowed, TasksReport{Error: "method not allowed"})
			return
		}
		q := r.URL.Query()
		view := q.Get("view")
		switch view {
		case "":
			view = viewList
		case viewList, viewTree:
		default:
			writeTasks(w, r, format, http.StatusBadRequest, TasksReport{Error: "invalid view (want list or tree)"})
			return
		}

		items := collectTasks(reg, &cfg)
		items = filterTasks(items, func(it TaskItem) bool {
			if v, ok := q["state"]; ok && it.State != v[0] {
				return false
			}
			if v, ok := q["root"]; ok && it.Root != v[0] {
				return false
			}
			return strings.HasPrefix(it.Name, q.Get("name_prefix"))
		})
		rep := TasksReport{OK: true, View: view, Count: len(items), Tasks: items}
		if view == viewTree {
			rep.Tasks = buildTree(items)
		}
		writeTasks(w, r, format, http.StatusOK, rep)
	})
}

// TaskHandler returns a handler showing the task named by ?id= and its ancestors.
//
// It responds 400 for a missing or malformed id and 404 when the task is gone (or hidden by a
// guard). GET/HEAD only.
func TaskHandler(reg *taskreg.Registry, opts ...TaskOption) http.Handler {
	if reg == nil {
		panic("ops: nil task registry")
	}
	cfg := applyTaskOptions(opts)
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		format := formatFromRequest(r, cfg.format)
		if !allowRead(w, r) {
			writeTask(w, r, format, http.StatusMethodNotAllowed, TaskReport{Error: "method not allowed"})
			return
		}
		raw, ok := getQueryRaw(r, "id")
		if !ok || raw == "" {
			writeTask(w, r, format, http.StatusBadRequest, TaskReport{Error: "missing id"})
			return
		}
		id, err := strconv.ParseUint(raw, 10, 64)
		if err != nil || id == 0 {
			writeTask(w, r, format, http.StatusBadRequest, TaskReport{Error: "invalid id"})
			return
		}

		items := collectTasks(reg, &cfg)
		byID := make(map[uint64]int, len(items))
		for i, it := range items {
			byID[it.ID] = i
		}
		i, ok := byID[id]
		if !ok {
			writeTask(w, r, format, http.StatusNotFound, TaskReport{Error: "task not found"})
			return
		}
		task := items[i]
		rep := TaskReport{OK: true, Task: &task}
		for p := task.ParentID; p != 0; {
			j, ok := byID[p]
			if !ok {
				break
			}
			rep.Ancestors = append(rep.Ancestors, items[j])
			p = items[j].ParentID
		}
		writeTask(w, r, format, http.StatusOK, rep)
	})
}

func allowRead(w http.ResponseWriter, r *http.Request) bool {
	if r.Method == http.MethodGet || r.Method == http.MethodHead {
		return true
	}
	w.Header().Set("Allow", "GET, HEAD")
	return false
}

// collectTasks snapshots reg and resolves each task's root. Subtasks appear after their parents
// in a single pass, so one walk in creation order is enough.
func collectTasks(reg *taskreg.Registry, cfg *taskOpsConfig) []TaskItem {
	now := cfg.now()
	var items []TaskItem
	roots := make(map[uint64]string)
	for s := range reg.All() {
		it := toTaskItem(s, now)
		if name, ok := s.RootName(); ok {
			it.Root = name
		} else {
			it.Root = roots[it.ParentID]
		}
		roots[it.ID] = it.Root
		if cfg.allowed(it.Label()) {
			items = append(items, it)
		}
	}
	return items
}

func toTaskItem(s taskreg.Snapshot, now time.Time) TaskItem {
	it := TaskItem{
		ID:       uint64(s.ID),
		Name:     s.Name,
		State:    s.State,
		Location: s.Location,
	}
	if id, ok := s.ParentID(); ok {
		it.ParentID = uint64(id)
	}
	if s.Thread != nil {
		it.Thread = &TaskThread{
			Goroutine: s.Thread.Goroutine,
			KernelID:  s.Thread.Kernel,
			Name:      s.Thread.Name(),
		}
	}
	if !s.StartedAt.IsZero() {
		started := s.StartedAt
		it.StartedAt = &started
		it.Age = now.Sub(started).Round(time.Millisecond).String()
	}
	return it
}

func filterTasks(items []TaskItem, keep func(TaskItem) bool) []TaskItem {
	out := items[:0]
	for _, it := range items {
		if keep(it) {
			out = append(out, it)
		}
	}
	return out
}

// buildTree nests items under their parents, preserving creation order among siblings.
func buildTree(items []TaskItem) []TaskItem {
	present := make(map[uint64]bool, len(items))
	children := make(map[uint64][]int, len(items))
	var tops []int
	for i, it := range items {
		present[it.ID] = true
		if !it.IsRoot() && present[it.ParentID] {
			children[it.ParentID] = append(children[it.ParentID], i)
			continue
		}
		tops = append(tops, i)
	}
	var build func(i, depth int) TaskItem
	build = func(i, depth int) TaskItem {
		it := items[i]
		it.Depth = depth
		for _, c := range children[it.ID] {
			it.Children = append(it.Children, build(c, depth+1))
		}
		return it
	}
	out := make([]TaskItem, 0, len(tops))
	for _, i := range tops {
		out = append(out, build(i, 0))
	}
	return out
}

func writeTasks(w http.ResponseWriter, r *http.Request, f Format, code int, rep TasksReport) {
	writeResponse(w, r, f, code, rep, func() string {
		if !rep.OK {
			return textError(rep.Error)
		}
		var t textLines
		t.line("tasks", "count", strconv.Itoa(rep.Count))
		t.line("tasks", "view", rep.View)
		var walk func([]TaskItem)
		walk = func(items []TaskItem) {
			for _, it := range items {
				appendTaskLines(&t, "task", it, rep.View == viewTree)
				walk(it.Children)
			}
		}
		walk(rep.Tasks)
		return t.String()
	})
}

func writeTask(w http.ResponseWriter, r *http.Request, f Format, code int, rep TaskReport) {
	writeResponse(w, r, f, code, rep, func() string {
		if !rep.OK || rep.Task == nil {
			return textError(rep.Error)
		}
		var t textLines
		appendTaskLines(&t, "task", *rep.Task, false)
		for _, a := range rep.Ancestors {
			appendTaskLines(&t, "ancestor", a, false)
		}
		return t.String()
	})
}

// appendTaskLines renders one task as <section>\t<id>\t<field>\t<value> lines.
func appendTaskLines(t *textLines, section string, it TaskItem, withDepth bool) {
	id := strconv.FormatUint(it.ID, 10)
	t.line(section, id, "name", it.Name)
	t.line(section, id, "state", it.State)
	if it.IsRoot() {
		t.line(section, id, "parent", "root:"+it.Root)
	} else {
		t.line(section, id, "parent", "task:"+strconv.FormatUint(it.ParentID, 10))
		if it.Root != "" {
			t.line(section, id, "root", it.Root)
		}
	}
	if it.Thread != nil {
		t.line(section, id, "goroutine", strconv.FormatInt(it.Thread.Goroutine, 10))
		if it.Thread.KernelID > 0 {
			t.line(section, id, "kernel_id", strconv.Itoa(it.Thread.KernelID))
		}
		if it.Thread.Name != "" {
			t.line(section, id, "thread_name", it.Thread.Name)
		}
	}
	if !it.Location.IsZero() {
		t.line(section, id, "source", it.Location.File+":"+strconv.Itoa(it.Location.Line))
		if it.Location.Function != "" {
			t.line(section, id, "function", it.Location.Function)
		}
	}
	if it.StartedAt != nil {
		t.line(section, id, "started_at", it.StartedAt.UTC().Format(time.RFC3339Nano))
		t.line(section, id, "age", it.Age)
	}
	if withDepth {
		t.line(section, id, "depth", strconv.Itoa(it.Depth))
	}
}
