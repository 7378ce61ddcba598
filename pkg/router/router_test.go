package router

import (
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMatchWildcardRoute(t *testing.T) {
	tests := []struct {
		path    string
		pattern string
		want    bool
	}{
		{"/api/v1/jobs/abc", "/api/v1/jobs/*", true},
		{"/api/v1/jobs/abc/progress", "/api/v1/jobs/*", true},
		{"/api/v1/jobs", "/api/v1/jobs/*", false},
		{"/api/v1/jobs/", "/api/v1/jobs/*", false},
		{"/api/v1/jobs/abc/progress", "/api/v1/jobs/*/progress", true},
		{"/api/v1/jobs/abc/errors", "/api/v1/jobs/*/progress", false},
		{"/api/v1/jobs//progress", "/api/v1/jobs/*/progress", false},
		{"/swagger/index.html", "/swagger/*", true},
	}
	for _, tt := range tests {
		t.Run(tt.path+" "+tt.pattern, func(t *testing.T) {
			assert.Equal(t, tt.want, matchWildcardRoute(tt.path, tt.pattern))
		})
	}
}

func body(t *testing.T, r *Router, method, path string) (int, string) {
	t.Helper()
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(method, path, nil))
	b, err := io.ReadAll(rec.Body)
	require.NoError(t, err)
	return rec.Code, string(b)
}

func TestRouter_Dispatch(t *testing.T) {
	r := New(zerolog.New(zerolog.NewTestWriter(t)))
	reply := func(s string) HandlerFunc {
		return func(w http.ResponseWriter, _ *http.Request) { _, _ = io.WriteString(w, s) }
	}
	r.GET("/api/v1/jobs", reply("list"))
	r.GET("/api/v1/jobs/*/progress", reply("progress"))
	r.GET("/api/v1/jobs/*", reply("one"))
	r.POST("/api/v1/jobs/importStudents", reply("launch"))

	code, got := body(t, r, http.MethodGet, "/api/v1/jobs")
	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, "list", got)

	_, got = body(t, r, http.MethodGet, "/api/v1/jobs/123/progress")
	assert.Equal(t, "progress", got, "more specific wildcard registered first wins")

	_, got = body(t, r, http.MethodGet, "/api/v1/jobs/123")
	assert.Equal(t, "one", got)

	_, got = body(t, r, http.MethodPost, "/api/v1/jobs/importStudents")
	assert.Equal(t, "launch", got)

	code, _ = body(t, r, http.MethodDelete, "/api/v1/jobs")
	assert.Equal(t, http.StatusMethodNotAllowed, code)

	code, _ = body(t, r, http.MethodPost, "/api/v1/jobs/123")
	assert.Equal(t, http.StatusMethodNotAllowed, code)

	code, _ = body(t, r, http.MethodGet, "/nowhere")
	assert.Equal(t, http.StatusNotFound, code)
}

func TestRouter_Handle(t *testing.T) {
	r := New(zerolog.Nop())
	r.Handle("/swagger/*", http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	}))

	code, _ := body(t, r, http.MethodGet, "/swagger/index.html")
	assert.Equal(t, http.StatusTeapot, code)
}
