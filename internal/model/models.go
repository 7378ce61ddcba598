package model

import (
	"strconv"
	"time"
)

const (
	DefaultJobName     = "importStudents"
	DefaultStepName    = "csvImport"
	DefaultInputPath   = "data/students.csv"
	DefaultChunkSize   = 1000
	DefaultConcurrency = 10
)

// Student is one imported record. ID is zero until the store assigns one.
type Student struct {
	ID    int64  `json:"id" gorm:"primaryKey;autoIncrement"`
	Name  string `json:"name" gorm:"not null;default:''"`
	Email string `json:"email" gorm:"not null;default:''"`
	Age   string `json:"age" gorm:"not null;default:''"`
}

func (Student) TableName() string { return "students" }

// JobSpec is the body for POST /api/v1/jobs/importStudents and the `job`
// config section.
type JobSpec struct {
	Name        string `json:"name" mapstructure:"name" validate:"required"`
	StepName    string `json:"stepName" mapstructure:"step_name" validate:"required"`
	InputPath   string `json:"inputPath" mapstructure:"input_path" validate:"required"`
	ChunkSize   int    `json:"chunkSize" mapstructure:"chunk_size" validate:"gte=1"`
	Concurrency int    `json:"concurrency" mapstructure:"concurrency"` // <= 0 means unlimited
}

// ApplyDefaults fills empty fields. Concurrency is left alone since zero
// is meaningful.
func (s *JobSpec) ApplyDefaults() {
	if s.Name == "" {
		s.Name = DefaultJobName
	}
	if s.StepName == "" {
		s.StepName = DefaultStepName
	}
	if s.InputPath == "" {
		s.InputPath = DefaultInputPath
	}
	if s.ChunkSize == 0 {
		s.ChunkSize = DefaultChunkSize
	}
}

// Params flattens the spec into job execution parameters.
func (s JobSpec) Params() map[string]string {
	return map[string]string{
		"input_path":  s.InputPath,
		"chunk_size":  strconv.Itoa(s.ChunkSize),
		"concurrency": strconv.Itoa(s.Concurrency),
	}
}

// JobError is a failure recorded against a job execution.
type JobError struct {
	ID        int64     `json:"id"`
	StepName  string    `json:"step_name"`
	Message   string    `json:"message"`
	CreatedAt time.Time `json:"created_at"`
}

// StudentPage is one page of stored students.
type StudentPage struct {
	Students []Student `json:"students"`
	Total    int64     `json:"total"`
	Limit    int       `json:"limit"`
	Offset   int       `json:"offset"`
}

// LaunchRequest overrides the configured job spec for one execution.
// Omitted fields keep their configured values.
type LaunchRequest struct {
	InputPath   string `json:"inputPath,omitempty"`
	ChunkSize   *int   `json:"chunkSize,omitempty" validate:"omitempty,gte=1"`
	Concurrency *int   `json:"concurrency,omitempty" validate:"omitempty,gte=0"`
}

// Apply returns base with the request's overrides.
func (r LaunchRequest) Apply(base JobSpec) JobSpec {
	if r.InputPath != "" {
		base.InputPath = r.InputPath
	}
	if r.ChunkSize != nil {
		base.ChunkSize = *r.ChunkSize
	}
	if r.Concurrency != nil {
		base.Concurrency = *r.Concurrency
	}
	return base
}

// LaunchResponse is returned when an execution has been started.
type LaunchResponse struct {
	Message   string    `json:"message"`
	JobID     string    `json:"jobID"`
	Status    string    `json:"status"`
	CreatedAt time.Time `json:"createdAt"`
}
