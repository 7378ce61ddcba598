package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"

	"go-student-batch/internal/model"
	"go-student-batch/pkg/batch"
)

var ErrJobNotFound = errors.New("job not found")

// JobRepository persists job executions, step executions and failures.
type JobRepository struct {
	db *DB
}

var _ batch.JobRepository = (*JobRepository)(nil)

func NewJobRepository(db *DB) *JobRepository {
	return &JobRepository{db: db}
}

// orm runs bookkeeping on the pool, outside any chunk transaction. Gorm
// rewrites the ? placeholders for the active dialect.
func (r *JobRepository) orm(ctx context.Context) *gorm.DB {
	return r.db.Gorm.WithContext(ctx)
}

const (
	insertJobSQL = `INSERT INTO jobs (id, job_name, params, status, exit_message, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`

	updateJobSQL = `UPDATE jobs SET status = ?, exit_message = ?, started_at = ?, ended_at = ?, updated_at = ?
		WHERE id = ?`

	failInterruptedSQL = `UPDATE jobs SET status = ?, exit_message = ?, ended_at = ?, updated_at = ?
		WHERE status IN (?, ?)`

	saveStepSQL = `INSERT INTO job_steps (job_id, step_name, status, read_count, write_count, filter_count,
			commit_count, rollback_count, exit_message, started_at, ended_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (job_id, step_name) DO UPDATE SET
			status = excluded.status,
			read_count = excluded.read_count,
			write_count = excluded.write_count,
			filter_count = excluded.filter_count,
			commit_count = excluded.commit_count,
			rollback_count = excluded.rollback_count,
			exit_message = excluded.exit_message,
			started_at = excluded.started_at,
			ended_at = excluded.ended_at`
)

// CreateJobExecution stores a new execution.
func (r *JobRepository) CreateJobExecution(ctx context.Context, exec *batch.JobExecution) error {
	params, err := json.Marshal(exec.Params)
	if err != nil {
		return err
	}
	if exec.Params == nil {
		params = []byte("{}")
	}

	return r.orm(ctx).Exec(insertJobSQL,
		exec.ID, exec.JobName, string(params), exec.Status.String(), exec.ExitMessage, exec.CreatedAt, exec.UpdatedAt).Error
}

// UpdateJobExecution writes status, timestamps and exit message.
func (r *JobRepository) UpdateJobExecution(ctx context.Context, exec *batch.JobExecution) error {
	res := r.orm(ctx).Exec(updateJobSQL,
		exec.Status.String(), exec.ExitMessage, nullTime(exec.StartedAt), nullTime(exec.EndedAt), exec.UpdatedAt, exec.ID)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("%w: %s", ErrJobNotFound, exec.ID)
	}
	return nil
}

// FailInterrupted marks executions left unfinished by a previous process
// as FAILED and returns how many it touched.
func (r *JobRepository) FailInterrupted(ctx context.Context, message string) (int64, error) {
	now := time.Now().UTC()
	res := r.orm(ctx).Exec(failInterruptedSQL,
		batch.StatusFailed.String(), message, now, now, batch.StatusNotStarted.String(), batch.StatusRunning.String())
	return res.RowsAffected, res.Error
}

// SaveStepExecution inserts or replaces the step's row for this execution.
func (r *JobRepository) SaveStepExecution(ctx context.Context, jobExecutionID string, step *batch.StepExecution) error {
	return r.orm(ctx).Exec(saveStepSQL,
		jobExecutionID, step.StepName, step.Status.String(), step.ReadCount, step.WriteCount, step.FilterCount,
		step.CommitCount, step.RollbackCount, step.ExitMessage, nullTime(step.StartedAt), nullTime(step.EndedAt)).Error
}

// SaveJobError records a failure for a job.
func (r *JobRepository) SaveJobError(ctx context.Context, jobExecutionID, stepName string, err error) error {
	if err == nil {
		return nil
	}
	return r.orm(ctx).Exec(
		`INSERT INTO job_errors (job_id, step_name, error_message, created_at) VALUES (?, ?, ?, ?)`,
		jobExecutionID, stepName, err.Error(), time.Now().UTC()).Error
}

const jobColumns = `id, job_name, params, status, exit_message, created_at, updated_at, started_at, ended_at`

// ListJobs returns executions, newest first, without their steps.
func (r *JobRepository) ListJobs(ctx context.Context) ([]*batch.JobExecution, error) {
	rows, err := r.orm(ctx).Raw(`SELECT ` + jobColumns + ` FROM jobs ORDER BY created_at DESC`).Rows()
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	jobs := []*batch.JobExecution{}
	for rows.Next() {
		exec, err := scanJob(rows)
		if err != nil {
			return nil, err
		}
		jobs = append(jobs, exec)
	}
	return jobs, rows.Err()
}

// GetJob fetches one execution with its steps.
func (r *JobRepository) GetJob(ctx context.Context, jobID string) (*batch.JobExecution, error) {
	row := r.orm(ctx).Raw(`SELECT `+jobColumns+` FROM jobs WHERE id = ?`, jobID).Row()
	exec, err := scanJob(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrJobNotFound, jobID)
	}
	if err != nil {
		return nil, err
	}

	rows, err := r.orm(ctx).Raw(`
		SELECT step_name, status, read_count, write_count, filter_count, commit_count, rollback_count,
			exit_message, started_at, ended_at
		FROM job_steps WHERE job_id = ? ORDER BY id`, jobID).Rows()
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	for rows.Next() {
		var (
			s                 batch.StepExecution
			status            string
			started, finished sql.NullTime
		)
		if err := rows.Scan(&s.StepName, &status, &s.ReadCount, &s.WriteCount, &s.FilterCount,
			&s.CommitCount, &s.RollbackCount, &s.ExitMessage, &started, &finished); err != nil {
			return nil, err
		}
		s.Status = batch.Status(status)
		s.StartedAt = started.Time
		s.EndedAt = finished.Time
		exec.Steps = append(exec.Steps, &s)
	}
	return exec, rows.Err()
}

// ListJobErrors returns the failures recorded for a job, oldest first.
func (r *JobRepository) ListJobErrors(ctx context.Context, jobID string) ([]model.JobError, error) {
	rows, err := r.orm(ctx).Raw(
		`SELECT id, step_name, error_message, created_at FROM job_errors WHERE job_id = ? ORDER BY id`, jobID).Rows()
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	errs := []model.JobError{}
	for rows.Next() {
		var e model.JobError
		if err := rows.Scan(&e.ID, &e.StepName, &e.Message, &e.CreatedAt); err != nil {
			return nil, err
		}
		errs = append(errs, e)
	}
	return errs, rows.Err()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanJob(s scanner) (*batch.JobExecution, error) {
	var (
		exec              batch.JobExecution
		params, status    string
		started, finished sql.NullTime
	)
	if err := s.Scan(&exec.ID, &exec.JobName, &params, &status, &exec.ExitMessage,
		&exec.CreatedAt, &exec.UpdatedAt, &started, &finished); err != nil {
		return nil, err
	}
	exec.Status = batch.Status(status)
	exec.StartedAt = started.Time
	exec.EndedAt = finished.Time
	if params != "" {
		if err := json.Unmarshal([]byte(params), &exec.Params); err != nil {
			return nil, fmt.Errorf("decode params for job %s: %w", exec.ID, err)
		}
	}
	return &exec, nil
}

func nullTime(t time.Time) sql.NullTime {
	return sql.NullTime{Time: t, Valid: !t.IsZero()}
}
