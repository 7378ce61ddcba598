package handler

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"

	"go-student-batch/internal/logger"
	"go-student-batch/internal/model"
	"go-student-batch/internal/pipeline"
	"go-student-batch/internal/store"
	"go-student-batch/pkg/utils"
)

const (
	jobsPrefix      = "/api/v1/jobs/"
	defaultPageSize = 100
	maxPageSize     = 1000
)

// Handler serves the job launcher and read-only views over the store.
type Handler struct {
	db       *store.DB
	jobs     *store.JobRepository
	students *store.StudentRepository
	spec     model.JobSpec
	log      *logger.Logger
	validate *validator.Validate

	// Executions started here outlive their request and stop with baseCtx.
	baseCtx context.Context
	running sync.Map // execution id -> *pipeline.Tracker
	wg      sync.WaitGroup
}

// New builds a handler launching jobs from spec.
func New(baseCtx context.Context, db *store.DB, spec model.JobSpec, log *logger.Logger) *Handler {
	return &Handler{
		db:       db,
		jobs:     store.NewJobRepository(db),
		students: store.NewStudentRepository(db),
		spec:     spec,
		log:      log.WithComponent("api"),
		validate: validator.New(validator.WithRequiredStructEnabled()),
		baseCtx:  baseCtx,
	}
}

// Wait blocks until every execution launched by this handler has ended.
func (h *Handler) Wait() {
	h.wg.Wait()
}

type errorResponse struct {
	Error string `json:"error"`
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, errorResponse{Error: msg})
}

// jobIDFromPath extracts {id} from /api/v1/jobs/{id}[suffix].
func jobIDFromPath(path, suffix string) (string, bool) {
	if !strings.HasPrefix(path, jobsPrefix) || !strings.HasSuffix(path, suffix) {
		return "", false
	}
	id := path[len(jobsPrefix) : len(path)-len(suffix)]
	if id == "" || strings.Contains(id, "/") {
		return "", false
	}
	return id, true
}

// LaunchImport starts the student import
// @Summary Launch the student import
// @Description Start an importStudents execution in the background. The body is optional and overrides the configured input path, chunk size or concurrency.
// @Tags jobs
// @Accept json
// @Produce json
// @Param request body model.LaunchRequest false "Overrides"
// @Success 202 {object} model.LaunchResponse "Execution started"
// @Failure 400 {object} errorResponse "Invalid request payload"
// @Failure 500 {object} errorResponse "Internal server error"
// @Router /jobs/importStudents [post]
func (h *Handler) LaunchImport(w http.ResponseWriter, r *http.Request) {
	var req model.LaunchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		writeError(w, http.StatusBadRequest, "Invalid JSON payload")
		return
	}
	if err := h.validate.Struct(req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	job, err := pipeline.NewImportJob(req.Apply(h.spec), h.db, h.log)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	run, err := job.Start(h.baseCtx)
	if err != nil {
		h.log.Error("failed to start import", map[string]interface{}{"error": err.Error()})
		writeError(w, http.StatusInternalServerError, "Failed to start job")
		return
	}

	h.running.Store(run.ID(), job.Tracker)
	h.wg.Add(1)
	go func() {
		defer h.wg.Done()
		defer h.running.Delete(run.ID())
		exec, err := run.Wait()
		if err != nil {
			h.log.Warn("import failed", map[string]interface{}{
				logger.FieldExecutionID: exec.ID,
				"error":                 err.Error(),
			})
		}
	}()

	writeJSON(w, http.StatusAccepted, model.LaunchResponse{
		Message:   "Job started",
		JobID:     run.ID(),
		Status:    "RUNNING",
		CreatedAt: time.Now().UTC(),
	})
}

// ListJobs retrieves all executions
// @Summary List executions
// @Description Get every job execution, newest first
// @Tags jobs
// @Produce json
// @Success 200 {array} batch.JobExecution "List of executions"
// @Failure 500 {object} errorResponse "Internal server error"
// @Router /jobs [get]
func (h *Handler) ListJobs(w http.ResponseWriter, r *http.Request) {
	jobs, err := h.jobs.ListJobs(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to fetch jobs")
		return
	}
	writeJSON(w, http.StatusOK, jobs)
}

// GetJob retrieves one execution
// @Summary Get execution
// @Description Retrieve one execution with its step executions
// @Tags jobs
// @Produce json
// @Param id path string true "Execution ID"
// @Success 200 {object} batch.JobExecution "Execution details"
// @Failure 400 {object} errorResponse "Invalid execution ID"
// @Failure 404 {object} errorResponse "Execution not found"
// @Router /jobs/{id} [get]
func (h *Handler) GetJob(w http.ResponseWriter, r *http.Request) {
	id, ok := jobIDFromPath(r.URL.Path, "")
	if !ok {
		writeError(w, http.StatusBadRequest, "Job ID is required")
		return
	}

	job, err := h.jobs.GetJob(r.Context(), id)
	if errors.Is(err, store.ErrJobNotFound) {
		writeError(w, http.StatusNotFound, "Job not found")
		return
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to fetch job")
		return
	}
	writeJSON(w, http.StatusOK, job)
}

// GetJobErrors retrieves the failures of an execution
// @Summary Get execution errors
// @Description Retrieve every failure recorded for an execution
// @Tags jobs
// @Produce json
// @Param id path string true "Execution ID"
// @Success 200 {object} map[string]interface{} "Execution errors"
// @Failure 400 {object} errorResponse "Invalid execution ID"
// @Failure 500 {object} errorResponse "Internal server error"
// @Router /jobs/{id}/errors [get]
func (h *Handler) GetJobErrors(w http.ResponseWriter, r *http.Request) {
	id, ok := jobIDFromPath(r.URL.Path, "/errors")
	if !ok {
		writeError(w, http.StatusBadRequest, "Job ID is required")
		return
	}

	errs, err := h.jobs.ListJobErrors(r.Context(), id)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to retrieve errors")
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"job_id": id,
		"errors": errs,
		"count":  len(errs),
	})
}

// GetJobProgress reports live progress of a running execution
// @Summary Get execution progress
// @Description Live chunk progress of an execution started by this server and still running
// @Tags jobs
// @Produce json
// @Param id path string true "Execution ID"
// @Success 200 {object} model.JobProgress "Progress"
// @Failure 404 {object} errorResponse "Execution not running"
// @Router /jobs/{id}/progress [get]
func (h *Handler) GetJobProgress(w http.ResponseWriter, r *http.Request) {
	id, ok := jobIDFromPath(r.URL.Path, "/progress")
	if !ok {
		writeError(w, http.StatusBadRequest, "Job ID is required")
		return
	}

	v, ok := h.running.Load(id)
	if !ok {
		writeError(w, http.StatusNotFound, "Job is not running")
		return
	}
	writeJSON(w, http.StatusOK, v.(*pipeline.Tracker).Snapshot())
}

// ListStudents pages through stored students
// @Summary List students
// @Description Stored students ordered by ID
// @Tags students
// @Produce json
// @Param limit query int false "Page size (default 100, max 1000)"
// @Param offset query int false "Rows to skip"
// @Success 200 {object} model.StudentPage "Students"
// @Failure 500 {object} errorResponse "Internal server error"
// @Router /students [get]
func (h *Handler) ListStudents(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	limit := utils.ParseIntDefault(q.Get("limit"), defaultPageSize, maxPageSize)
	offset := utils.ParseIntDefault(q.Get("offset"), 0, 0)

	students, err := h.students.List(r.Context(), limit, offset)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to fetch students")
		return
	}
	total, err := h.students.Count(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to count students")
		return
	}
	writeJSON(w, http.StatusOK, model.StudentPage{Students: students, Total: total, Limit: limit, Offset: offset})
}

// Health pings the database
// @Summary Health check
// @Tags health
// @Produce json
// @Success 200 {object} map[string]string "ok"
// @Failure 503 {object} errorResponse "Database unavailable"
// @Router /healthz [get]
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()
	if err := h.db.Ping(ctx); err != nil {
		writeError(w, http.StatusServiceUnavailable, "database unavailable")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
