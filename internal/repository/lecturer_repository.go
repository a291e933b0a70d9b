package repository

import (
	"context"

	"github.com/jmoiron/sqlx"

	"github.com/campustime/timetable-api/internal/models"
)

// LecturerRepository provides read access to lecturers.
type LecturerRepository struct {
	db *sqlx.DB
}

// NewLecturerRepository creates a new lecturer repository.
func NewLecturerRepository(db *sqlx.DB) *LecturerRepository {
	return &LecturerRepository{db: db}
}

// FindByID loads a lecturer by id.
func (r *LecturerRepository) FindByID(ctx context.Context, id string) (*models.Lecturer, error) {
	const query = `SELECT id, full_name, email, department, active, created_at, updated_at FROM lecturers WHERE id = $1`
	var lecturer models.Lecturer
	if err := r.db.GetContext(ctx, &lecturer, query, id); err != nil {
		return nil, err
	}
	return &lecturer, nil
}
