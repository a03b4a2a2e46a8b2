// Package router is a small net/http router with method dispatch,
// trailing-wildcard routes, and colorized access logging.
package router

import (
	"log"
	"net/http"
	"strings"
	"time"
)

// --- ANSI color codes ---
const (
	colorReset  = "\033[0m"
	colorRed    = "\033[31m"
	colorGreen  = "\033[32m"
	colorYellow = "\033[33m"
	colorBlue   = "\033[34m"
	colorCyan   = "\033[36m"
)

type HandlerFunc func(http.ResponseWriter, *http.Request)

type route struct {
	method  string
	pattern string
	handler HandlerFunc
}

type Router struct {
	routes []route
}

func New() *Router {
	return &Router{}
}

func (r *Router) GET(path string, h HandlerFunc)  { r.handle(http.MethodGet, path, h) }
func (r *Router) POST(path string, h HandlerFunc) { r.handle(http.MethodPost, path, h) }

func (r *Router) handle(method, path string, h HandlerFunc) {
	r.routes = append(r.routes, route{method: method, pattern: path, handler: h})
}

// ServeHTTP dispatches to the first registered route whose pattern
// matches; register more specific routes before generic ones.
func (r *Router) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	start := time.Now()
	lrw := &loggingResponseWriter{ResponseWriter: w, statusCode: http.StatusOK}

	var handler HandlerFunc
	pathMatched := false
	for _, rt := range r.routes {
		if !matchPattern(req.URL.Path, rt.pattern) {
			continue
		}
		pathMatched = true
		if rt.method == req.Method {
			handler = rt.handler
			break
		}
	}

	switch {
	case handler != nil:
		handler(lrw, req)
	case pathMatched:
		http.Error(lrw, "Method Not Allowed", http.StatusMethodNotAllowed)
	default:
		http.Error(lrw, "Not Found", http.StatusNotFound)
	}

	duration := time.Since(start)
	log.Printf("%s[%s]%s %s%s%s %s %s%d%s %s(%v)%s",
		colorCyan, start.Format("2006-01-02 15:04:05"), colorReset,
		methodColor(req.Method), req.Method, colorReset,
		req.URL.Path,
		statusColor(lrw.statusCode), lrw.statusCode, colorReset,
		colorBlue, duration, colorReset,
	)
}

// matchPattern matches a request path against a pattern. Segments
// match literally except "*", which matches exactly one segment; a
// trailing "*" matches one or more remaining segments.
func matchPattern(path, pattern string) bool {
	if path == pattern {
		return true
	}
	pathSegs := strings.Split(strings.Trim(path, "/"), "/")
	patSegs := strings.Split(strings.Trim(pattern, "/"), "/")

	for i, pat := range patSegs {
		last := i == len(patSegs)-1
		if pat == "*" && last {
			return len(pathSegs) > i
		}
		if i >= len(pathSegs) {
			return false
		}
		if pat != "*" && pat != pathSegs[i] {
			return false
		}
	}
	return len(pathSegs) == len(patSegs)
}

// Start blocks serving on addr.
func (r *Router) Start(addr string) error {
	log.Printf("%s🌐 Listening on %s%s", colorGreen, addr, colorReset)
	return http.ListenAndServe(addr, r)
}

type loggingResponseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (lrw *loggingResponseWriter) WriteHeader(code int) {
	lrw.statusCode = code
	lrw.ResponseWriter.WriteHeader(code)
}

func statusColor(code int) string {
	switch {
	case code >= 500:
		return colorRed
	case code >= 400:
		return colorYellow
	default:
		return colorGreen
	}
}

func methodColor(method string) string {
	switch method {
	case http.MethodGet:
		return colorGreen
	case http.MethodPost:
		return colorBlue
	default:
		return colorYellow
	}
}
