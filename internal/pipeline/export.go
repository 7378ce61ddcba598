package pipeline

import (
	"context"
	"fmt"

	"go-student-batch/internal/model"
	"go-student-batch/pkg/batch"
)

// StudentSaver is the generic save the writer delegates to.
type StudentSaver interface {
	Save(ctx context.Context, s *model.Student) error
}

// StudentWriter saves each student of a chunk. The chunk's transaction
// travels in ctx, so a failed save rolls back the whole chunk.
type StudentWriter struct {
	repo StudentSaver
}

var _ batch.ItemWriter[model.Student] = (*StudentWriter)(nil)

func NewStudentWriter(repo StudentSaver) *StudentWriter {
	return &StudentWriter{repo: repo}
}

func (w *StudentWriter) Write(ctx context.Context, students []model.Student) error {
	for i := range students {
		if err := w.repo.Save(ctx, &students[i]); err != nil {
			return fmt.Errorf("save student %d of %d (%s): %w", i+1, len(students), students[i].Email, err)
		}
	}
	return nil
}
