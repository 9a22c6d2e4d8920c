package inflight

import (
	"net/http"
	"strings"
	"time"
)

const (
	defaultReadHeaderTimeout = 5 * time.Second
	defaultIdleTimeout       = 60 * time.Second
)

func assembleHTTPServerOrPanic(spec HTTPServerSpec, defaultName string, forceHandler http.Handler) (*http.Server, string, bool) {
	name := strings.TrimSpace(spec.Name)
	if name == "" {
		name = defaultName
	}
	critical := true
	if spec.Critical != nil {
		critical = *spec.Critical
	}

	if spec.Server != nil {
		srv := spec.Server
		if srv.Addr == "" {
			panic("inflight: server " + name + ": empty http.Server.Addr")
		}
		if forceHandler != nil {
			if srv.Handler != nil {
				panic("inflight: server " + name + ": http.Server.Handler must be nil")
			}
			srv.Handler = forceHandler
		}
		return srv, name, critical
	}

	addr := strings.TrimSpace(spec.Addr)
	if addr == "" {
		panic("inflight: server " + name + ": empty Addr")
	}
	h := spec.Handler
	if forceHandler != nil {
		h = forceHandler
	}
	if h == nil {
		panic("inflight: server " + name + ": nil Handler")
	}
	return &http.Server{
		Addr:              addr,
		Handler:           h,
		ReadHeaderTimeout: defaultReadHeaderTimeout,
		IdleTimeout:       defaultIdleTimeout,
	}, name, critical
}

func resolveDuration(v, def time.Duration) time.Duration {
	if v <= 0 {
		return def
	}
	return v
}

// mountPrefix routes paths under prefix to subtree with the prefix stripped and everything else
// to fallback. The bare base path ("/-") redirects to the prefix with 307.
func mountPrefix(prefix string, subtree, fallback http.Handler) http.Handler {
	prefix = normalizeMountPrefixOrPanic(prefix)
	base := strings.TrimSuffix(prefix, "/")
	if subtree == nil {
		panic("inflight: mountPrefix: nil subtree handler")
	}
	if fallback == nil {
		panic("inflight: mountPrefix: nil fallback handler")
	}

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		path := r.URL.Path
		if path == base {
			target := prefix
			if r.URL.RawQuery != "" {
				target += "?" + r.URL.RawQuery
			}
			http.Redirect(w, r, target, http.StatusTemporaryRedirect)
			return
		}
		if !strings.HasPrefix(path, prefix) {
			fallback.ServeHTTP(w, r)
			return
		}
		r2 := new(http.Request)
		*r2 = *r
		u2 := *r.URL
		r2.URL = &u2
		// Keep the leading "/" so the admin mux does not redirect.
		r2.URL.Path = "/" + strings.TrimPrefix(path, prefix)
		r2.URL.RawPath = ""
		subtree.ServeHTTP(w, r2)
	})
}

func normalizeMountPrefixOrPanic(prefix string) string {
	prefix = strings.TrimSpace(prefix)
	switch {
	case prefix == "":
		panic("inflight: mountPrefix: empty prefix")
	case !strings.HasPrefix(prefix, "/"):
		panic("inflight: mountPrefix: invalid prefix (must start with '/'): " + prefix)
	case strings.ContainsAny(prefix, " \t\r\n?#"):
		panic("inflight: mountPrefix: invalid prefix (contains whitespace or ?#): " + prefix)
	case strings.Contains(prefix, "//"):
		panic("inflight: mountPrefix: invalid prefix (contains //): " + prefix)
	}
	if !strings.HasSuffix(prefix, "/") {
		prefix += "/"
	}
	return prefix
}
