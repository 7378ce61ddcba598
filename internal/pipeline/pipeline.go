package pipeline

import (
	"context"
	"fmt"

	"go-student-batch/internal/logger"
	"go-student-batch/internal/model"
	"go-student-batch/internal/store"
	"go-student-batch/pkg/batch"
)

// ImportJob is the student import assembled from its parts. Build a new
// one per execution: the reader is consumed by a run.
type ImportJob struct {
	Spec    model.JobSpec
	Job     *batch.Job
	Step    *batch.ChunkStep[model.Student, model.Student]
	Tracker *Tracker
	log     *logger.Logger
}

// NewImportJob wires reader, processor and writer into the chunk step and
// the job around it. Chunk transactions and job bookkeeping go to db.
func NewImportJob(spec model.JobSpec, db *store.DB, log *logger.Logger) (*ImportJob, error) {
	spec.ApplyDefaults()
	log = log.WithFields(map[string]interface{}{logger.FieldJob: spec.Name})
	tracker := NewTracker(log)

	step, err := batch.NewChunkStep[model.Student, model.Student](
		spec.StepName,
		NewStudentReader(spec.InputPath, log),
		ClearIdentifier,
		NewStudentWriter(store.NewStudentRepository(db)),
		batch.WithChunkSize(spec.ChunkSize),
		batch.WithConcurrency(spec.Concurrency),
		batch.WithTransactor(db),
		batch.WithListener(tracker),
		batch.WithLogger(log.GetLogger()),
	)
	if err != nil {
		return nil, fmt.Errorf("build step %s: %w", spec.StepName, err)
	}

	job, err := batch.NewJob(spec.Name, []batch.Step{step},
		batch.WithJobRepository(store.NewJobRepository(db)),
		batch.WithJobLogger(log.GetLogger()),
	)
	if err != nil {
		return nil, fmt.Errorf("build job %s: %w", spec.Name, err)
	}

	return &ImportJob{Spec: spec, Job: job, Step: step, Tracker: tracker, log: log}, nil
}

// Start launches the import in the background. ctx must outlive the run.
func (j *ImportJob) Start(ctx context.Context) (*batch.Handle, error) {
	h, err := j.Job.Start(ctx, j.Spec.Params())
	if err != nil {
		return nil, err
	}
	j.Tracker.Bind(h.ID())
	go func() {
		<-h.Done()
		j.Tracker.Finish()
	}()
	return h, nil
}

// Run imports and waits for the terminal status.
func (j *ImportJob) Run(ctx context.Context) (*batch.JobExecution, error) {
	h, err := j.Start(ctx)
	if err != nil {
		return nil, err
	}
	return h.Wait()
}
