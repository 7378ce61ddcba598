package batch

import (
	"context"
	"fmt"
	"maps"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// JobRepository stores job and step executions.
type JobRepository interface {
	CreateJobExecution(ctx context.Context, exec *JobExecution) error
	UpdateJobExecution(ctx context.Context, exec *JobExecution) error
	SaveStepExecution(ctx context.Context, jobExecutionID string, step *StepExecution) error
	SaveJobError(ctx context.Context, jobExecutionID, stepName string, err error) error
}

// Job is a named sequence of steps.
type Job struct {
	name   string
	steps  []Step
	repo   JobRepository
	log    zerolog.Logger
	tracer trace.Tracer
}

// JobOption configures a Job.
type JobOption func(*Job)

// WithJobRepository records executions in repo.
func WithJobRepository(repo JobRepository) JobOption {
	return func(j *Job) { j.repo = repo }
}

// WithJobLogger sets the job logger.
func WithJobLogger(log zerolog.Logger) JobOption {
	return func(j *Job) { j.log = log }
}

// WithJobTracerProvider overrides the global tracer provider.
func WithJobTracerProvider(tp trace.TracerProvider) JobOption {
	return func(j *Job) { j.tracer = tp.Tracer(instrumentationName) }
}

// NewJob builds a job that runs steps in order.
func NewJob(name string, steps []Step, opts ...JobOption) (*Job, error) {
	if name == "" {
		return nil, ErrEmptyName
	}
	if len(steps) == 0 {
		return nil, ErrNoSteps
	}
	for i, s := range steps {
		if s == nil {
			return nil, fmt.Errorf("job %s: step %d is nil", name, i)
		}
	}

	j := &Job{
		name:   name,
		steps:  steps,
		log:    zerolog.Nop(),
		tracer: otel.Tracer(instrumentationName),
	}
	for _, opt := range opts {
		opt(j)
	}
	j.log = j.log.With().Str("job", name).Logger()
	return j, nil
}

// Name returns the job name.
func (j *Job) Name() string { return j.name }

// Steps returns the job's steps in execution order.
func (j *Job) Steps() []Step { return j.steps }

// Handle tracks a started job execution.
type Handle struct {
	id   string
	done chan struct{}
	exec *JobExecution
	err  error
}

// ID returns the execution id, available as soon as the job is started.
func (h *Handle) ID() string { return h.id }

// Done is closed when the execution reaches a terminal status.
func (h *Handle) Done() <-chan struct{} { return h.done }

// Wait blocks until the execution ends and returns it together with the
// failure, if any.
func (h *Handle) Wait() (*JobExecution, error) {
	<-h.done
	return h.exec, h.err
}

// Start records a new execution and runs the steps on a new goroutine.
// The returned error only covers recording the execution.
func (j *Job) Start(ctx context.Context, params map[string]string) (*Handle, error) {
	now := time.Now().UTC()
	exec := &JobExecution{
		ID:        uuid.New().String(),
		JobName:   j.name,
		Status:    StatusNotStarted,
		Params:    maps.Clone(params),
		CreatedAt: now,
		UpdatedAt: now,
	}
	if j.repo != nil {
		if err := j.repo.CreateJobExecution(ctx, exec); err != nil {
			return nil, fmt.Errorf("create job execution: %w", err)
		}
	}

	h := &Handle{id: exec.ID, done: make(chan struct{}), exec: exec}
	go func() {
		defer close(h.done)
		h.err = j.execute(ctx, exec)
	}()
	return h, nil
}

// Run starts the job and waits for it to finish. A FAILED execution is
// returned together with the error that failed it.
func (j *Job) Run(ctx context.Context, params map[string]string) (*JobExecution, error) {
	h, err := j.Start(ctx, params)
	if err != nil {
		return nil, err
	}
	return h.Wait()
}

func (j *Job) execute(ctx context.Context, exec *JobExecution) error {
	log := j.log.With().Str("execution_id", exec.ID).Logger()
	ctx, span := j.tracer.Start(ctx, "batch.job",
		trace.WithAttributes(
			attribute.String("batch.job", j.name),
			attribute.String("batch.execution_id", exec.ID),
		))
	defer span.End()

	// Bookkeeping outlives cancellation so a cancelled run is still recorded.
	bookCtx := context.WithoutCancel(ctx)

	exec.Status = StatusRunning
	exec.StartedAt = time.Now().UTC()
	exec.UpdatedAt = exec.StartedAt
	j.update(bookCtx, log, exec)
	log.Info().Int("steps", len(j.steps)).Msg("job started")

	var failure error
	for _, step := range j.steps {
		se, err := step.Execute(ctx)
		if se != nil {
			exec.Steps = append(exec.Steps, se)
			if j.repo != nil {
				if rerr := j.repo.SaveStepExecution(bookCtx, exec.ID, se); rerr != nil {
					log.Warn().Err(rerr).Str("step", step.Name()).Msg("failed to save step execution")
				}
			}
		}
		if err != nil {
			failure = err
			if j.repo != nil {
				if rerr := j.repo.SaveJobError(bookCtx, exec.ID, step.Name(), err); rerr != nil {
					log.Warn().Err(rerr).Msg("failed to save job error")
				}
			}
			break
		}
	}

	exec.EndedAt = time.Now().UTC()
	exec.UpdatedAt = exec.EndedAt
	if failure != nil {
		exec.Status = StatusFailed
		exec.ExitMessage = failure.Error()
		span.RecordError(failure)
		span.SetStatus(codes.Error, failure.Error())
	} else {
		exec.Status = StatusCompleted
	}
	j.update(bookCtx, log, exec)

	log.Info().
		Str("status", exec.Status.String()).
		Dur("duration", exec.EndedAt.Sub(exec.StartedAt)).
		Msg("job finished")
	return failure
}

func (j *Job) update(ctx context.Context, log zerolog.Logger, exec *JobExecution) {
	if j.repo == nil {
		return
	}
	if err := j.repo.UpdateJobExecution(ctx, exec); err != nil {
		log.Warn().Err(err).Str("status", exec.Status.String()).Msg("failed to update job execution")
	}
}
