package ops

import (
	"encoding/json"
	"net/http"
	"strings"

	"gopkg.in/yaml.v3"
)

// Format is a response encoding.
type Format int

const (
	FormatText Format = iota
	FormatJSON
	FormatYAML
)

func (f Format) valid() bool { return f == FormatText || f == FormatJSON || f == FormatYAML }

func formatFromRequest(r *http.Request, def Format) Format {
	if r == nil || r.URL == nil {
		return def
	}
	switch r.URL.Query().Get("format") {
	case "json":
		return FormatJSON
	case "yaml", "yml":
		return FormatYAML
	case "text":
		return FormatText
	default:
		return def
	}
}

// writeResponse writes v in format f. text renders the text body; HEAD requests get headers only.
func writeResponse(w http.ResponseWriter, r *http.Request, f Format, code int, v any, text func() string) {
	w.Header().Set("Cache-Control", "no-store")
	var body []byte
	switch f {
	case FormatJSON:
		w.Header().Set("Content-Type", "application/json; charset=utf-8")
		b, err := json.Marshal(v)
		if err != nil {
			writeEncodeError(w, err)
			return
		}
		body = append(b, '\n')
	case FormatYAML:
		w.Header().Set("Content-Type", "application/yaml; charset=utf-8")
		b, err := yaml.Marshal(v)
		if err != nil {
			writeEncodeError(w, err)
			return
		}
		body = b
	default:
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		body = []byte(text())
	}
	w.WriteHeader(code)
	if r.Method == http.MethodHead {
		return
	}
	_, _ = w.Write(body)
}

func writeEncodeError(w http.ResponseWriter, err error) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusInternalServerError)
	_, _ = w.Write([]byte("encode: " + escapeTextField(err.Error()) + "\n"))
}

func textError(msg string) string {
	if msg == "" {
		return "error\n"
	}
	return msg + "\n"
}

func getQueryRaw(r *http.Request, name string) (string, bool) {
	if r == nil || r.URL == nil {
		return "", false
	}
	vs, ok := r.URL.Query()[name]
	if !ok || len(vs) == 0 {
		return "", false
	}
	return vs[0], true
}

// escapeTextField escapes a value for line-based, tab-separated output: backslash, tab, CR and
// LF become two-character escapes and other control bytes become \u00XX.
func escapeTextField(s string) string {
	i := strings.IndexFunc(s, func(c rune) bool { return c == '\\' || c < 0x20 })
	if i < 0 {
		return s
	}
	var b strings.Builder
	b.Grow(len(s) + 8)
	b.WriteString(s[:i])
	for j := i; j < len(s); j++ {
		switch c := s[j]; c {
		case '\\':
			b.WriteString(`\\`)
		case '\t':
			b.WriteString(`\t`)
		case '\r':
			b.WriteString(`\r`)
		case '\n':
			b.WriteString(`\n`)
		default:
			if c < 0x20 {
				const hex = "0123456789abcdef"
				b.WriteString(`\u00`)
				b.WriteByte(hex[c>>4])
				b.WriteByte(hex[c&0x0f])
			} else {
				b.WriteByte(c)
			}
		}
	}
	return b.String()
}

// textLines accumulates <section>\t<key>\t...\t<value> lines.
type textLines struct{ b strings.Builder }

func (t *textLines) line(fields ...string) {
	for i, f := range fields {
		if i > 0 {
			t.b.WriteByte('\t')
		}
		t.b.WriteString(escapeTextField(f))
	}
	t.b.WriteByte('\n')
}

func (t *textLines) String() string { return t.b.String() }
