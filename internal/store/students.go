package store

import (
	"context"

	"go-student-batch/internal/model"
)

// StudentRepository stores students through gorm. Calls made with a
// context from DB.WithinTx join that transaction.
type StudentRepository struct {
	db *DB
}

func NewStudentRepository(db *DB) *StudentRepository {
	return &StudentRepository{db: db}
}

// Save inserts s when its ID is zero and updates it otherwise. The assigned
// ID is written back into s.
func (r *StudentRepository) Save(ctx context.Context, s *model.Student) error {
	return r.db.conn(ctx).Save(s).Error
}

// Count returns the number of stored students.
func (r *StudentRepository) Count(ctx context.Context) (int64, error) {
	var n int64
	err := r.db.conn(ctx).Model(&model.Student{}).Count(&n).Error
	return n, err
}

// List returns a page of students ordered by ID.
func (r *StudentRepository) List(ctx context.Context, limit, offset int) ([]model.Student, error) {
	students := []model.Student{}
	err := r.db.conn(ctx).Order("id").Limit(limit).Offset(offset).Find(&students).Error
	return students, err
}
