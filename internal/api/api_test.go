package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"go-student-batch/internal/api/handler"
	"go-student-batch/internal/logger"
	"go-student-batch/internal/model"
	"go-student-batch/internal/store"
	"go-student-batch/pkg/batch"
	"go-student-batch/pkg/router"
)

type testServer struct {
	router  *router.Router
	handler *handler.Handler
	csvPath string
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	ctx := context.Background()
	log := logger.Wrap(zerolog.New(zerolog.NewTestWriter(t)))

	db, err := store.Open(ctx, store.Config{Driver: store.DriverSQLite, DSN: ":memory:", LogLevel: "silent"}, log)
	require.NoError(t, err)
	require.NoError(t, db.Migrate(ctx))

	csvPath := filepath.Join(t.TempDir(), "students.csv")
	require.NoError(t, os.WriteFile(csvPath, []byte("id,name,email,age\n1,Amy,a@x,20\n2,Bo,b@x,21\n3,Cy,c@x,22\n"), 0o600))

	spec := model.JobSpec{InputPath: csvPath, ChunkSize: 2, Concurrency: 2}
	spec.ApplyDefaults()
	h := handler.New(ctx, db, spec, log)
	t.Cleanup(func() {
		h.Wait()
		_ = db.Close()
	})

	r := router.New(log.GetLogger())
	RegisterRoutes(r, h)
	return &testServer{router: r, handler: h, csvPath: csvPath}
}

func (s *testServer) do(t *testing.T, method, path, body string, out interface{}) int {
	t.Helper()
	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, httptest.NewRequest(method, path, strings.NewReader(body)))
	if out != nil && rec.Code < 300 {
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), out))
	}
	return rec.Code
}

func (s *testServer) launch(t *testing.T, body string) string {
	t.Helper()
	var resp model.LaunchResponse
	require.Equal(t, http.StatusAccepted, s.do(t, http.MethodPost, "/api/v1/jobs/importStudents", body, &resp))
	require.NotEmpty(t, resp.JobID)
	return resp.JobID
}

func (s *testServer) waitTerminal(t *testing.T, id string) batch.JobExecution {
	t.Helper()
	var exec batch.JobExecution
	require.Eventually(t, func() bool {
		rec := httptest.NewRecorder()
		s.router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/jobs/"+id, nil))
		if rec.Code != http.StatusOK {
			return false
		}
		exec = batch.JobExecution{}
		return json.Unmarshal(rec.Body.Bytes(), &exec) == nil && exec.Status.IsTerminal()
	}, 10*time.Second, 20*time.Millisecond)
	return exec
}

func TestLaunchImport_Completes(t *testing.T) {
	s := newTestServer(t)

	id := s.launch(t, "")
	exec := s.waitTerminal(t, id)
	assert.Equal(t, batch.StatusCompleted, exec.Status)
	assert.Equal(t, "importStudents", exec.JobName)
	require.Len(t, exec.Steps, 1)
	assert.Equal(t, "csvImport", exec.Steps[0].StepName)
	assert.Equal(t, int64(3), exec.Steps[0].WriteCount)
	assert.Equal(t, int64(2), exec.Steps[0].CommitCount)

	var page model.StudentPage
	require.Equal(t, http.StatusOK, s.do(t, http.MethodGet, "/api/v1/students?limit=2", "", &page))
	assert.Equal(t, int64(3), page.Total)
	assert.Len(t, page.Students, 2)
	assert.Equal(t, 2, page.Limit)

	var jobs []batch.JobExecution
	require.Equal(t, http.StatusOK, s.do(t, http.MethodGet, "/api/v1/jobs", "", &jobs))
	require.Len(t, jobs, 1)
	assert.Equal(t, id, jobs[0].ID)

	var errs map[string]interface{}
	require.Equal(t, http.StatusOK, s.do(t, http.MethodGet, "/api/v1/jobs/"+id+"/errors", "", &errs))
	assert.EqualValues(t, 0, errs["count"])
}

func TestLaunchImport_OverrideInputFails(t *testing.T) {
	s := newTestServer(t)

	id := s.launch(t, `{"inputPath":"/does/not/exist.csv","chunkSize":5}`)
	exec := s.waitTerminal(t, id)
	assert.Equal(t, batch.StatusFailed, exec.Status)
	assert.Contains(t, exec.ExitMessage, "failed to open CSV file")
	assert.Equal(t, "5", exec.Params["chunk_size"])

	var errs map[string]interface{}
	require.Equal(t, http.StatusOK, s.do(t, http.MethodGet, "/api/v1/jobs/"+id+"/errors", "", &errs))
	assert.EqualValues(t, 1, errs["count"])
}

func TestLaunchImport_BadRequests(t *testing.T) {
	s := newTestServer(t)

	assert.Equal(t, http.StatusBadRequest, s.do(t, http.MethodPost, "/api/v1/jobs/importStudents", "{", nil))
	assert.Equal(t, http.StatusBadRequest, s.do(t, http.MethodPost, "/api/v1/jobs/importStudents", `{"chunkSize":0}`, nil))
}

func TestGetJob_NotFound(t *testing.T) {
	s := newTestServer(t)
	assert.Equal(t, http.StatusNotFound, s.do(t, http.MethodGet, "/api/v1/jobs/unknown", "", nil))
	assert.Equal(t, http.StatusNotFound, s.do(t, http.MethodGet, "/api/v1/jobs/unknown/progress", "", nil))
	assert.Equal(t, http.StatusBadRequest, s.do(t, http.MethodGet, "/api/v1/jobs/a/b", "", nil))
}

func TestHealth(t *testing.T) {
	s := newTestServer(t)
	var body map[string]string
	require.Equal(t, http.StatusOK, s.do(t, http.MethodGet, "/healthz", "", &body))
	assert.Equal(t, "ok", body["status"])
}

func TestSwaggerDoc(t *testing.T) {
	s := newTestServer(t)
	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/swagger/doc.json", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "/jobs/importStudents")
}
