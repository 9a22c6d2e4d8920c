package admin

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/evan-idocoding/inflight/httpx"
	"github.com/evan-idocoding/inflight/ops"
	"github.com/evan-idocoding/inflight/rt/taskreg"
)

func do(h http.Handler, method, target string, hdr ...string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, target, nil)
	for i := 0; i+1 < len(hdr); i += 2 {
		req.Header.Add(hdr[i], hdr[i+1])
	}
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	return rr
}

func newRegistry(t *testing.T) *taskreg.Registry {
	t.Helper()
	reg := taskreg.New()
	h, sc := reg.StartTask("http")
	sc.UpdateState("GET /work")
	t.Cleanup(func() {
		sc.End()
		h.Release()
	})
	return reg
}

func TestNew_NothingMountedByDefault(t *testing.T) {
	t.Parallel()

	h := New()
	assert.Equal(t, http.StatusNotFound, do(h, http.MethodGet, "/tasks").Code)
	assert.Equal(t, http.StatusNotFound, do(h, http.MethodGet, "/report").Code)
}

func TestNew_AssemblyErrorsPanic(t *testing.T) {
	t.Parallel()

	reg := taskreg.New()
	var lv slog.LevelVar

	tests := []struct {
		name string
		want string
		opts []Option
	}{
		{"nil guard", "admin: tasks: nil Guard", []Option{EnableTasks(TasksSpec{Registry: reg})}},
		{"nil registry", "admin: tasks: nil task registry", []Option{EnableTasks(TasksSpec{Guard: AllowAll()})}},
		{"nil level var", "admin: log.level.get: nil slog.LevelVar", []Option{EnableLogLevelGet(LogLevelGetSpec{Guard: AllowAll()})}},
		{"bad path", "admin: invalid path (must start with '/'): tasks", []Option{
			EnableTasks(TasksSpec{Guard: AllowAll(), Registry: reg, Path: "tasks"}),
		}},
		{"duplicated path", "admin: duplicated path handler: /x", []Option{
			EnableTasks(TasksSpec{Guard: AllowAll(), Registry: reg, Path: "/x"}),
			EnableLogLevelGet(LogLevelGetSpec{Guard: AllowAll(), Var: &lv, Path: "/x"}),
		}},
		{"report twice", "admin: EnableReport called more than once", []Option{
			EnableReport(ReportSpec{Guard: AllowAll()}),
			EnableReport(ReportSpec{Guard: AllowAll(), Path: "/report2"}),
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.PanicsWithValue(t, tt.want, func() { New(tt.opts...) })
		})
	}
}

func TestGuards(t *testing.T) {
	t.Parallel()

	ok := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusNoContent) })
	run := func(g Guard, hdr ...string) int {
		return do(g.Middleware()(ok), http.MethodGet, "/", hdr...).Code
	}

	assert.Equal(t, http.StatusNoContent, run(AllowAll()))
	assert.Equal(t, http.StatusForbidden, run(DenyAll()))

	tokens := Tokens([]string{"a", "", "bb"})
	assert.Equal(t, http.StatusNoContent, run(tokens, DefaultTokenHeader, "bb"))
	assert.Equal(t, http.StatusForbidden, run(tokens, DefaultTokenHeader, "b"))
	assert.Equal(t, http.StatusForbidden, run(tokens))
	assert.Equal(t, http.StatusForbidden, run(tokens, DefaultTokenHeader, ""))
	assert.Equal(t, http.StatusForbidden, run(tokens, DefaultTokenHeader, "a", DefaultTokenHeader, "bb"), "exactly one value")

	custom := Tokens([]string{"x"}, WithTokenHeader("X-Ops"))
	assert.Equal(t, http.StatusNoContent, run(custom, "X-Ops", "x"))
	assert.Equal(t, http.StatusForbidden, run(custom, DefaultTokenHeader, "x"))

	assert.Equal(t, http.StatusForbidden, run(Tokens(nil), DefaultTokenHeader, ""))

	check := Check(func(r *http.Request) bool { return r.URL.Query().Get("k") == "v" })
	assert.Equal(t, http.StatusNoContent, do(check.Middleware()(ok), http.MethodGet, "/?k=v").Code)
	assert.Equal(t, http.StatusForbidden, do(check.Middleware()(ok), http.MethodGet, "/").Code)
	assert.PanicsWithValue(t, "admin: Check: nil func", func() { Check(nil) })
}

func TestEnableTasks(t *testing.T) {
	t.Parallel()

	reg := newRegistry(t)
	h := New(
		EnableTasks(TasksSpec{Guard: Tokens([]string{"t"}), Registry: reg}),
		EnableTask(TaskSpec{Guard: Tokens([]string{"t"}), Registry: reg}),
	)

	assert.Equal(t, http.StatusForbidden, do(h, http.MethodGet, "/tasks").Code)

	rr := do(h, http.MethodGet, "/tasks?format=json", DefaultTokenHeader, "t")
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	assert.NotEmpty(t, rr.Header().Get(httpx.DefaultRequestIDHeader))

	var rep ops.TasksReport
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &rep))
	require.Len(t, rep.Tasks, 1)
	assert.Equal(t, "http", rep.Tasks[0].Root)
	assert.Equal(t, "GET /work", rep.Tasks[0].State)

	rr = do(h, http.MethodGet, "/task?id="+rep.Tasks[0].Label(), DefaultTokenHeader, "t")
	assert.Equal(t, http.StatusBadRequest, rr.Code)

	id := rep.Tasks[0].ID
	rr = do(h, http.MethodGet, "/task?format=json&id="+taskreg.TaskID(id).String(), DefaultTokenHeader, "t")
	assert.Equal(t, http.StatusOK, rr.Code, rr.Body.String())

	assert.Equal(t, http.StatusMethodNotAllowed, do(h, http.MethodPost, "/tasks", DefaultTokenHeader, "t").Code)
}

func TestEnableTasks_AllowPrefixes(t *testing.T) {
	t.Parallel()

	reg := newRegistry(t)
	hidden := New(EnableTasks(TasksSpec{Guard: AllowAll(), Registry: reg, AllowPrefixes: []string{}}))
	shown := New(EnableTasks(TasksSpec{Guard: AllowAll(), Registry: reg, AllowPrefixes: []string{"ht"}}))

	assert.Contains(t, do(hidden, http.MethodGet, "/tasks").Body.String(), "tasks\tcount\t0\n")
	assert.Contains(t, do(shown, http.MethodGet, "/tasks").Body.String(), "tasks\tcount\t1\n")
}

func TestEnableLogLevel(t *testing.T) {
	t.Parallel()

	var lv slog.LevelVar
	h := New(
		EnableLogLevelGet(LogLevelGetSpec{Guard: AllowAll(), Var: &lv}),
		EnableLogLevelSet(LogLevelSetSpec{Guard: Tokens([]string{"w"}), Var: &lv}),
	)

	assert.Contains(t, do(h, http.MethodGet, "/log/level").Body.String(), "log\tlevel\tinfo\n")
	assert.Equal(t, http.StatusForbidden, do(h, http.MethodPost, "/log/level/set?level=debug").Code)

	rr := do(h, http.MethodPost, "/log/level/set?level=debug", DefaultTokenHeader, "w")
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	assert.Equal(t, slog.LevelDebug, lv.Level())
	assert.Contains(t, rr.Body.String(), "log\told_level\tinfo\n")
}

func TestEnableReport(t *testing.T) {
	t.Parallel()

	reg := newRegistry(t)
	var lv slog.LevelVar
	h := New(
		// Order does not matter: the report picks up endpoints enabled after it.
		EnableReport(ReportSpec{Guard: AllowAll()}),
		EnableLogLevelGet(LogLevelGetSpec{Guard: AllowAll(), Var: &lv}),
		EnableTasks(TasksSpec{Guard: AllowAll(), Registry: reg}),
	)

	rr := do(h, http.MethodGet, "/report")
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "no-store", rr.Header().Get("Cache-Control"))

	body := rr.Body.String()
	lines := strings.Split(body, "\n")
	require.GreaterOrEqual(t, len(lines), 3)
	assert.Equal(t, "ok", lines[0])
	assert.True(t, strings.HasPrefix(lines[1], "generated_at: "))
	assert.Equal(t, "enabled sections: log.level, tasks", lines[2])
	assert.Contains(t, body, "\n=== log.level ===\n| log\tlevel\tinfo\n")
	assert.Contains(t, body, "\n=== tasks ===\n| tasks\tcount\t1\n| tasks\tview\ttree\n")
	assert.Contains(t, body, "\tstate\tGET /work\n")

	head := do(h, http.MethodHead, "/report")
	assert.Equal(t, http.StatusOK, head.Code)
	assert.Empty(t, head.Body.String())

	post := do(h, http.MethodPost, "/report")
	assert.Equal(t, http.StatusMethodNotAllowed, post.Code)
	assert.Equal(t, "GET, HEAD", post.Header().Get("Allow"))
}

func TestEnableReport_NoSections(t *testing.T) {
	t.Parallel()

	h := New(EnableReport(ReportSpec{Guard: AllowAll()}))
	body := do(h, http.MethodGet, "/report").Body.String()
	assert.True(t, strings.HasPrefix(body, "ok\n"))
	assert.Contains(t, body, "enabled sections: (none)\n")
}

func TestRenderReport_FailedSection(t *testing.T) {
	t.Parallel()

	failing := reportSource{path: "/x", h: http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	})}
	empty := reportSource{path: "/y", h: http.HandlerFunc(func(http.ResponseWriter, *http.Request) {})}

	out := renderReport(t.Context(), time.Unix(0, 0).UTC(), []reportSection{
		{name: "a", src: failing},
		{name: "b", src: empty},
	})
	assert.Equal(t, "error: one or more sections failed\n"+
		"generated_at: 1970-01-01T00:00:00Z\n"+
		"enabled sections: a, b\n"+
		"\n=== a ===\n| error: status 500\n| boom\n"+
		"\n=== b ===\n| (empty)\n", out)
}

func TestTextCapture_Truncates(t *testing.T) {
	t.Parallel()

	w := &textCapture{hdr: make(http.Header), limit: 4}
	n, err := w.Write([]byte("abcdef"))
	require.NoError(t, err)
	assert.Equal(t, 6, n)
	assert.Equal(t, "abcd", w.buf.String())
	assert.True(t, w.truncated)
	assert.Equal(t, http.StatusOK, w.status)
}

func TestNew_RecoversPanics(t *testing.T) {
	t.Parallel()

	var lv slog.LevelVar
	logger := slog.New(slog.NewTextHandler(&strings.Builder{}, nil))
	b := newBuilder()
	WithLogger(logger)(b)
	EnableLogLevelGet(LogLevelGetSpec{Guard: Check(func(*http.Request) bool { panic("guard") }), Var: &lv})(b)

	rr := do(b.build(), http.MethodGet, "/log/level")
	assert.Equal(t, http.StatusInternalServerError, rr.Code)
}
