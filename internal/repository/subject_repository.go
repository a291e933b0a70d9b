package repository

import (
	"context"
	"fmt"
	"strings"

	"github.com/jmoiron/sqlx"

	"github.com/campustime/timetable-api/internal/models"
)

// SubjectRepository provides read access to subjects.
type SubjectRepository struct {
	db *sqlx.DB
}

// NewSubjectRepository creates a new subject repository.
func NewSubjectRepository(db *sqlx.DB) *SubjectRepository {
	return &SubjectRepository{db: db}
}

const subjectColumns = "id, code, name, department, lecturer_id, active, preferences, created_at, updated_at"

// ListEligible returns active subjects owned by the department or by one of
// the supporting departments, in stable code order.
func (r *SubjectRepository) ListEligible(ctx context.Context, department string, supporting []string) ([]models.Subject, error) {
	args := []interface{}{department}
	placeholders := make([]string, 0, len(supporting))
	for _, dept := range supporting {
		args = append(args, dept)
		placeholders = append(placeholders, fmt.Sprintf("$%d", len(args)))
	}

	condition := "department = $1"
	if len(placeholders) > 0 {
		condition = fmt.Sprintf("(department = $1 OR department IN (%s))", strings.Join(placeholders, ", "))
	}

	query := fmt.Sprintf("SELECT %s FROM subjects WHERE active = TRUE AND %s ORDER BY code", subjectColumns, condition)
	var subjects []models.Subject
	if err := r.db.SelectContext(ctx, &subjects, query, args...); err != nil {
		return nil, fmt.Errorf("list eligible subjects: %w", err)
	}
	return subjects, nil
}

// FindByID loads a subject by id.
func (r *SubjectRepository) FindByID(ctx context.Context, id string) (*models.Subject, error) {
	query := fmt.Sprintf("SELECT %s FROM subjects WHERE id = $1", subjectColumns)
	var subject models.Subject
	if err := r.db.GetContext(ctx, &subject, query, id); err != nil {
		return nil, err
	}
	return &subject, nil
}
