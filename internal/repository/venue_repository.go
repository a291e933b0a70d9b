package repository

import (
	"context"
	"fmt"
	"strings"

	"github.com/jmoiron/sqlx"

	"github.com/campustime/timetable-api/internal/models"
)

// VenueRepository provides read access to venues.
type VenueRepository struct {
	db *sqlx.DB
}

// NewVenueRepository creates a new venue repository.
func NewVenueRepository(db *sqlx.DB) *VenueRepository {
	return &VenueRepository{db: db}
}

const venueColumns = "id, name, building, department, venue_type, capacity, active, created_at, updated_at"

// ListCandidates returns active venues of the department or a supporting
// department that can hold at least minCapacity students. A zero
// minCapacity accepts any positive capacity.
func (r *VenueRepository) ListCandidates(ctx context.Context, department string, supporting []string, minCapacity int) ([]models.Venue, error) {
	if minCapacity < 1 {
		minCapacity = 1
	}

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

	args = append(args, minCapacity)
	query := fmt.Sprintf("SELECT %s FROM venues WHERE active = TRUE AND %s AND capacity >= $%d ORDER BY name", venueColumns, condition, len(args))

	var venues []models.Venue
	if err := r.db.SelectContext(ctx, &venues, query, args...); err != nil {
		return nil, fmt.Errorf("list candidate venues: %w", err)
	}
	return venues, nil
}

// FindByID loads a venue by id.
func (r *VenueRepository) FindByID(ctx context.Context, id string) (*models.Venue, error) {
	query := fmt.Sprintf("SELECT %s FROM venues WHERE id = $1", venueColumns)
	var venue models.Venue
	if err := r.db.GetContext(ctx, &venue, query, id); err != nil {
		return nil, err
	}
	return &venue, nil
}
