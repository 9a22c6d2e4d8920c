package admin

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"time"
)

// reportMaxSectionBytes caps one section of the report. Task lists can be long.
const reportMaxSectionBytes = 256 << 10

type reportSource struct {
	path string
	h    http.Handler
}

func (s reportSource) enabled() bool { return s.h != nil }

type reportState struct {
	logLevel reportSource
	tasks    reportSource
}

type reportSection struct {
	name string
	src  reportSource
}

func (b *Builder) assembleReport() {
	if b.report == nil {
		return
	}
	var sections []reportSection
	add := func(name string, src reportSource) {
		if src.enabled() {
			sections = append(sections, reportSection{name: name, src: src})
		}
	}
	add("log.level", b.reportState.logLevel)
	add("tasks", b.reportState.tasks)

	h := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Cache-Control", "no-store")
		if r.Method != http.MethodGet && r.Method != http.MethodHead {
			w.Header().Set("Allow", "GET, HEAD")
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		if r.Method == http.MethodHead {
			w.WriteHeader(http.StatusOK)
			return
		}
		body := renderReport(r.Context(), time.Now(), sections)
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(body))
	})
	b.register(b.report.Path, b.report.Guard.Middleware()(h))
}

// renderReport runs every section handler in-process and indents its text output:
//
//	ok
//	generated_at: ...
//	enabled sections: log.level, tasks
//
//	=== tasks ===
//	| tasks	count	1
func renderReport(ctx context.Context, now time.Time, sections []reportSection) string {
	const indent = "| "
	ok := true
	var out strings.Builder
	names := make([]string, 0, len(sections))
	for _, sec := range sections {
		names = append(names, sec.name)
		out.WriteString("\n=== " + sec.name + " ===\n")

		code, text, truncated := captureText(ctx, sec.src)
		if code < 200 || code >= 300 {
			ok = false
			out.WriteString(indent + "error: status " + strconv.Itoa(code) + "\n")
		}
		if text == "" {
			out.WriteString(indent + "(empty)\n")
		} else {
			appendIndented(&out, text, indent)
			if !strings.HasSuffix(text, "\n") {
				out.WriteByte('\n')
			}
		}
		if truncated {
			out.WriteString(indent + "(truncated)\n")
		}
	}

	var head strings.Builder
	if ok {
		head.WriteString("ok\n")
	} else {
		head.WriteString("error: one or more sections failed\n")
	}
	head.WriteString("generated_at: " + now.Format(time.RFC3339Nano) + "\n")
	if len(names) == 0 {
		head.WriteString("enabled sections: (none)\n")
	} else {
		head.WriteString("enabled sections: " + strings.Join(names, ", ") + "\n")
	}
	return head.String() + out.String()
}

func appendIndented(b *strings.Builder, s, prefix string) {
	for s != "" {
		b.WriteString(prefix)
		i := strings.IndexByte(s, '\n')
		if i < 0 {
			b.WriteString(s)
			return
		}
		b.WriteString(s[:i+1])
		s = s[i+1:]
	}
}

func captureText(ctx context.Context, src reportSource) (status int, text string, truncated bool) {
	req := httptest.NewRequest(http.MethodGet, "http://admin.report.invalid"+src.path, nil).WithContext(ctx)
	rw := &textCapture{hdr: make(http.Header), limit: reportMaxSectionBytes}
	src.h.ServeHTTP(rw, req)
	if rw.status == 0 {
		rw.status = http.StatusOK
	}
	return rw.status, rw.buf.String(), rw.truncated
}

// textCapture is an in-memory ResponseWriter with a size cap.
type textCapture struct {
	hdr       http.Header
	status    int
	buf       bytes.Buffer
	limit     int
	truncated bool
}

func (w *textCapture) Header() http.Header { return w.hdr }

func (w *textCapture) WriteHeader(statusCode int) {
	if w.status == 0 {
		w.status = statusCode
	}
}

func (w *textCapture) Write(p []byte) (int, error) {
	if w.status == 0 {
		w.status = http.StatusOK
	}
	remain := w.limit - w.buf.Len()
	if len(p) > remain {
		w.truncated = true
		if remain > 0 {
			w.buf.Write(p[:remain])
		}
		return len(p), nil
	}
	return w.buf.Write(p)
}
