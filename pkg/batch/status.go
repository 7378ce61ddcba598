package batch

import (
	"time"
)

// Status is the lifecycle state of a job or step execution.
type Status string

const (
	StatusNotStarted Status = "NOT_STARTED"
	StatusRunning    Status = "RUNNING"
	StatusCompleted  Status = "COMPLETED"
	StatusFailed     Status = "FAILED"
)

// IsTerminal reports whether no further transition can happen.
func (s Status) IsTerminal() bool {
	return s == StatusCompleted || s == StatusFailed
}

func (s Status) String() string { return string(s) }

// StepExecution records one run of a step.
type StepExecution struct {
	StepName      string    `json:"step_name"`
	Status        Status    `json:"status"`
	ReadCount     int64     `json:"read_count"`
	WriteCount    int64     `json:"write_count"`
	FilterCount   int64     `json:"filter_count"`
	CommitCount   int64     `json:"commit_count"`
	RollbackCount int64     `json:"rollback_count"`
	StartedAt     time.Time `json:"started_at"`
	EndedAt       time.Time `json:"ended_at,omitempty"`
	ExitMessage   string    `json:"exit_message,omitempty"`
}

// Duration returns the wall time of the execution, or zero if it has not ended.
func (s *StepExecution) Duration() time.Duration {
	if s.EndedAt.IsZero() || s.StartedAt.IsZero() {
		return 0
	}
	return s.EndedAt.Sub(s.StartedAt)
}

// JobExecution records one run of a job.
type JobExecution struct {
	ID          string            `json:"id"`
	JobName     string            `json:"job_name"`
	Status      Status            `json:"status"`
	Params      map[string]string `json:"params,omitempty"`
	CreatedAt   time.Time         `json:"created_at"`
	UpdatedAt   time.Time         `json:"updated_at"`
	StartedAt   time.Time         `json:"started_at,omitempty"`
	EndedAt     time.Time         `json:"ended_at,omitempty"`
	ExitMessage string            `json:"exit_message,omitempty"`
	Steps       []*StepExecution  `json:"steps,omitempty"`
}

// Step returns the execution of the named step, or nil.
func (j *JobExecution) Step(name string) *StepExecution {
	for _, s := range j.Steps {
		if s.StepName == name {
			return s
		}
	}
	return nil
}
