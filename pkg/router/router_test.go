package router

import (
	"net/http"
	"net/http/httptest"
	"testing"
)

func named(name string) HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(name))
	}
}

func TestMatchWildcardRoute(t *testing.T) {
	tests := []struct {
		path, pattern string
		want          bool
	}{
		{"/api/v1/runs/abc", "/api/v1/runs/*", true},
		{"/api/v1/runs/abc/results", "/api/v1/runs/*", true},
		{"/api/v1/runs/", "/api/v1/runs/*", false},
		{"/api/v1/runs/abc/results", "/api/v1/runs/*/results", true},
		{"/api/v1/runs/abc/map", "/api/v1/runs/*/results", false},
		{"/api/v1/runs/abc/results/x", "/api/v1/runs/*/results", false},
		{"/api/v1/runs//results", "/api/v1/runs/*/results", false},
		{"/swagger/index.html", "/swagger/*", true},
	}
	for _, tt := range tests {
		if got := matchWildcardRoute(tt.path, tt.pattern); got != tt.want {
			t.Errorf("matchWildcardRoute(%q, %q) = %v, want %v", tt.path, tt.pattern, got, tt.want)
		}
	}
}

func TestRouterDispatch(t *testing.T) {
	r := New()
	r.GET("/api/v1/runs", named("list"))
	r.POST("/api/v1/runs", named("create"))
	r.GET("/api/v1/runs/*/results", named("results"))
	r.GET("/api/v1/runs/*", named("get"))

	tests := []struct {
		method, path string
		code         int
		body         string
	}{
		{http.MethodGet, "/api/v1/runs", http.StatusOK, "list"},
		{http.MethodPost, "/api/v1/runs", http.StatusOK, "create"},
		{http.MethodGet, "/api/v1/runs/abc/results", http.StatusOK, "results"},
		{http.MethodGet, "/api/v1/runs/abc", http.StatusOK, "get"},
		{http.MethodDelete, "/api/v1/runs", http.StatusMethodNotAllowed, ""},
		{http.MethodPost, "/api/v1/runs/abc", http.StatusMethodNotAllowed, ""},
		{http.MethodGet, "/nope", http.StatusNotFound, ""},
	}
	for _, tt := range tests {
		rec := httptest.NewRecorder()
		r.Handler().ServeHTTP(rec, httptest.NewRequest(tt.method, tt.path, nil))
		if rec.Code != tt.code {
			t.Errorf("%s %s: expected %d, got %d", tt.method, tt.path, tt.code, rec.Code)
			continue
		}
		if tt.body != "" && rec.Body.String() != tt.body {
			t.Errorf("%s %s: routed to %q, want %q", tt.method, tt.path, rec.Body.String(), tt.body)
		}
	}
}

func TestRouterRegistrationOrder(t *testing.T) {
	r := New()
	r.GET("/runs/*", named("catch-all"))
	r.GET("/runs/*/results", named("results"))

	rec := httptest.NewRecorder()
	r.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/runs/abc/results", nil))
	if rec.Body.String() != "catch-all" {
		t.Errorf("expected the first registered wildcard to win, got %q", rec.Body.String())
	}
}
