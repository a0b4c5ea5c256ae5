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

// Router dispatches exact paths first, then wildcard patterns in the order
// they were registered.
type Router struct {
	mux       *http.ServeMux
	routes    map[string]HandlerFunc // key = METHOD:PATH
	paths     map[string]bool        // track registered paths
	wildcards []route
}

func New() *Router {
	r := &Router{
		mux:    http.NewServeMux(),
		routes: make(map[string]HandlerFunc),
		paths:  make(map[string]bool),
	}
	r.mux.HandleFunc("/", r.dispatch)
	return r
}

func (r *Router) dispatch(w http.ResponseWriter, req *http.Request) {
	start := time.Now()
	lrw := &loggingResponseWriter{ResponseWriter: w, statusCode: http.StatusOK}

	if h, ok := r.lookup(req.Method, req.URL.Path); ok {
		h(lrw, req)
	} else if r.pathExists(req.URL.Path) {
		http.Error(lrw, "Method Not Allowed", http.StatusMethodNotAllowed)
	} else {
		http.Error(lrw, "Not Found", http.StatusNotFound)
	}

	log.Printf("%s[%s]%s %s%s%s %s %s%d%s %s(%v)%s",
		colorCyan, start.Format("2006-01-02 15:04:05"), colorReset,
		methodColor(req.Method), req.Method, colorReset,
		req.URL.Path,
		statusColor(lrw.statusCode), lrw.statusCode, colorReset,
		colorBlue, time.Since(start), colorReset,
	)
}

func (r *Router) lookup(method, path string) (HandlerFunc, bool) {
	if h, ok := r.routes[method+":"+path]; ok {
		return h, true
	}
	for _, rt := range r.wildcards {
		if rt.method == method && matchWildcardRoute(path, rt.pattern) {
			return rt.handler, true
		}
	}
	return nil, false
}

func (r *Router) pathExists(path string) bool {
	if r.paths[path] {
		return true
	}
	for _, rt := range r.wildcards {
		if matchWildcardRoute(path, rt.pattern) {
			return true
		}
	}
	return false
}

// matchWildcardRoute checks if a request path matches a wildcard route pattern.
// A "*" segment matches exactly one segment, except as the last segment where
// it matches one or more.
func matchWildcardRoute(requestPath, routePattern string) bool {
	requestSegments := strings.Split(strings.Trim(requestPath, "/"), "/")
	routeSegments := strings.Split(strings.Trim(routePattern, "/"), "/")

	last := len(routeSegments) - 1
	tail := routeSegments[last] == "*"
	if tail {
		if len(requestSegments) < len(routeSegments) {
			return false
		}
	} else if len(requestSegments) != len(routeSegments) {
		return false
	}

	for i, seg := range routeSegments {
		if seg == "*" {
			if requestSegments[i] == "" {
				return false
			}
			continue
		}
		if requestSegments[i] != seg {
			return false
		}
	}
	return true
}

// --- Register paths ---
func (r *Router) register(method, path string, handler HandlerFunc) {
	if strings.Contains(path, "*") {
		r.wildcards = append(r.wildcards, route{method: method, pattern: path, handler: handler})
		return
	}
	r.routes[method+":"+path] = handler
	r.paths[path] = true
}

func (r *Router) GET(path string, handler HandlerFunc)  { r.register(http.MethodGet, path, handler) }
func (r *Router) POST(path string, handler HandlerFunc) { r.register(http.MethodPost, path, handler) }

// Handler returns the router as an http.Handler, e.g. for httptest
func (r *Router) Handler() http.Handler {
	return r.mux
}

// --- Start server ---
func (r *Router) Start(addr string) error {
	log.Printf("🚀 Server started on %shttp://localhost%s%s", colorGreen, addr, colorReset)
	return http.ListenAndServe(addr, r.mux)
}

// --- Logging response writer to capture status codes ---
type loggingResponseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (lrw *loggingResponseWriter) WriteHeader(code int) {
	lrw.statusCode = code
	lrw.ResponseWriter.WriteHeader(code)
}

// --- Color helpers ---
func statusColor(code int) string {
	switch {
	case code >= 200 && code < 300:
		return colorGreen
	case code >= 300 && code < 400:
		return colorCyan
	case code >= 400 && code < 500:
		return colorYellow
	default:
		return colorRed
	}
}

func methodColor(method string) string {
	switch method {
	case http.MethodGet:
		return colorGreen
	case http.MethodPost:
		return colorBlue
	default:
		return colorCyan
	}
}
