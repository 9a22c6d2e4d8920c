package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"

	"github.com/evan-idocoding/inflight"
	"github.com/evan-idocoding/inflight/internal/config"
	"github.com/evan-idocoding/inflight/ops"
)

type dumpOptions struct {
	addr    string
	token   string
	root    string
	state   string
	timeout time.Duration
}

func newDumpCommand(a *app) *cobra.Command {
	var o dumpOptions
	cmd := &cobra.Command{
		Use:   "dump",
		Short: "Print the task tree of a running inflightd",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(a.v)
			if err != nil {
				return err
			}
			if o.addr == "" {
				o.addr = adminBaseURL(cfg)
			}
			if o.token == "" && len(cfg.Admin.ReadTokens) > 0 {
				o.token = cfg.Admin.ReadTokens[0]
			}
			rep, err := fetchTasks(cmd.Context(), o)
			if err != nil {
				return err
			}
			renderTasks(cmd.OutOrStdout(), rep)
			return nil
		},
	}
	f := cmd.Flags()
	f.StringVar(&o.addr, "addr", "", "admin base URL (default derived from config, e.g. http://127.0.0.1:8080/-/)")
	f.StringVar(&o.token, "token", "", "admin read token (default the first admin.read_tokens entry)")
	f.StringVar(&o.root, "root", "", "only tasks under this root name")
	f.StringVar(&o.state, "state", "", "only tasks in this state")
	f.DurationVar(&o.timeout, "timeout", 5*time.Second, "request timeout")
	return cmd
}

func adminBaseURL(cfg *config.Config) string {
	if cfg.Admin.Addr != "" {
		return "http://" + cfg.Admin.Addr + "/"
	}
	prefix := cfg.Admin.Prefix
	if !strings.HasSuffix(prefix, "/") {
		prefix += "/"
	}
	return "http://" + cfg.Server.Addr + prefix
}

func fetchTasks(ctx context.Context, o dumpOptions) (ops.TasksReport, error) {
	var rep ops.TasksReport

	base, err := url.Parse(o.addr)
	if err != nil {
		return rep, fmt.Errorf("dump: invalid --addr: %w", err)
	}
	u := base.JoinPath("tasks")
	q := url.Values{"format": {"json"}, "view": {"tree"}}
	if o.root != "" {
		q.Set("root", o.root)
	}
	if o.state != "" {
		q.Set("state", o.state)
	}
	u.RawQuery = q.Encode()

	if o.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, o.timeout)
		defer cancel()
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return rep, fmt.Errorf("dump: %w", err)
	}
	if o.token != "" {
		req.Header.Set(inflight.DefaultTokenHeader, o.token)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return rep, fmt.Errorf("dump: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 32<<20))
	if err != nil {
		return rep, fmt.Errorf("dump: read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return rep, fmt.Errorf("dump: %s: %s", resp.Status, strings.TrimSpace(string(body)))
	}
	if err := json.Unmarshal(body, &rep); err != nil {
		return rep, fmt.Errorf("dump: decode response: %w", err)
	}
	if !rep.OK {
		return rep, fmt.Errorf("dump: %s", rep.Error)
	}
	return rep, nil
}

type dumpStyles struct {
	id, name, state, muted lipgloss.Style
}

func newDumpStyles(r *lipgloss.Renderer) dumpStyles {
	return dumpStyles{
		id:    r.NewStyle().Foreground(lipgloss.Color("#6272a4")),
		name:  r.NewStyle().Bold(true),
		state: r.NewStyle().Foreground(lipgloss.Color("#50fa7b")),
		muted: r.NewStyle().Faint(true),
	}
}

// renderTasks prints one line per task, children indented under their parent:
//
//	#1 http  GET /work  age=1.2s g=31
//	├─ #2 worker-0  step 3/5  age=0.8s g=40
//	└─ #3 worker-1  scheduled
func renderTasks(w io.Writer, rep ops.TasksReport) {
	st := newDumpStyles(lipgloss.NewRenderer(w))
	if len(rep.Tasks) == 0 {
		fmt.Fprintln(w, st.muted.Render("no tasks"))
		return
	}

	var walk func(items []ops.TaskItem, prefix string, top bool)
	walk = func(items []ops.TaskItem, prefix string, top bool) {
		for i, it := range items {
			last := i == len(items)-1
			branch, next := "", ""
			if !top {
				branch, next = "├─ ", "│  "
				if last {
					branch, next = "└─ ", "   "
				}
			}
			fmt.Fprintln(w, prefix+branch+taskLine(st, it))
			walk(it.Children, prefix+next, false)
		}
	}
	walk(rep.Tasks, "", true)
	fmt.Fprintln(w, st.muted.Render(fmt.Sprintf("%d task(s)", rep.Count)))
}

func taskLine(st dumpStyles, it ops.TaskItem) string {
	name := it.Name
	if it.IsRoot() {
		name = it.Root
	}
	parts := []string{st.id.Render(fmt.Sprintf("#%d", it.ID)), st.name.Render(name)}
	if it.State != "" {
		parts = append(parts, " "+st.state.Render(it.State))
	}
	var meta []string
	if it.Age != "" {
		meta = append(meta, "age="+it.Age)
	}
	if it.Thread != nil {
		meta = append(meta, fmt.Sprintf("g=%d", it.Thread.Goroutine))
	}
	if len(meta) > 0 {
		parts = append(parts, " "+st.muted.Render(strings.Join(meta, " ")))
	}
	return strings.Join(parts, " ")
}
