package pipeline

import (
	"context"

	"go-student-batch/internal/model"
	"go-student-batch/pkg/batch"
)

var _ batch.ItemProcessor[model.Student, model.Student] = ClearIdentifier

// ClearIdentifier resets the student's ID so the store always assigns a
// fresh one. Every other field passes through.
func ClearIdentifier(_ context.Context, s model.Student) (model.Student, error) {
	s.ID = 0
	return s, nil
}
