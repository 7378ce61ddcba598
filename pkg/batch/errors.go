package batch

import (
	"errors"
	"fmt"
)

var (
	ErrInvalidChunkSize = errors.New("chunk size must be at least 1")
	ErrNilReader        = errors.New("item reader cannot be nil")
	ErrNilProcessor     = errors.New("item processor cannot be nil")
	ErrNilWriter        = errors.New("item writer cannot be nil")
	ErrNilTransactor    = errors.New("transactor cannot be nil")
	ErrEmptyName        = errors.New("name cannot be empty")
	ErrNoSteps          = errors.New("job needs at least one step")

	// ErrSkipItem may be returned by an ItemProcessor to drop an item from
	// its chunk without failing the step.
	ErrSkipItem = errors.New("skip item")
)

// StepError reports a step failure. Chunk is the 1-based number of the chunk
// that failed, or 0 when the failure happened outside a chunk (opening the
// reader, reading input).
type StepError struct {
	Step  string
	Chunk int
	Err   error
}

func (e *StepError) Error() string {
	if e.Chunk > 0 {
		return fmt.Sprintf("step %s: chunk %d: %v", e.Step, e.Chunk, e.Err)
	}
	return fmt.Sprintf("step %s: %v", e.Step, e.Err)
}

func (e *StepError) Unwrap() error { return e.Err }
