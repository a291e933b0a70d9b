package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/campustime/timetable-api/internal/models"
)

// TimetableRepository persists timetables and their slot assignments.
type TimetableRepository struct {
	db *sqlx.DB
}

// NewTimetableRepository creates a new timetable repository.
func NewTimetableRepository(db *sqlx.DB) *TimetableRepository {
	return &TimetableRepository{db: db}
}

const (
	timetableColumns = "id, group_id, month, year, status, generated_at, created_at, updated_at"
	slotColumns      = "id, timetable_id, day_of_week, start_min, end_min, subject_id, venue_id, lecturer_id, locked, created_at"
)

// FindByID loads a timetable with its slots.
func (r *TimetableRepository) FindByID(ctx context.Context, id string) (*models.Timetable, error) {
	query := fmt.Sprintf("SELECT %s FROM timetables WHERE id = $1", timetableColumns)
	var timetable models.Timetable
	if err := r.db.GetContext(ctx, &timetable, query, id); err != nil {
		return nil, err
	}
	slots, err := r.slotsFor(ctx, id)
	if err != nil {
		return nil, err
	}
	timetable.Slots = slots
	return &timetable, nil
}

// FindByGroupMonthYear loads a timetable by its natural key, with slots.
func (r *TimetableRepository) FindByGroupMonthYear(ctx context.Context, groupID string, month, year int) (*models.Timetable, error) {
	query := fmt.Sprintf("SELECT %s FROM timetables WHERE group_id = $1 AND month = $2 AND year = $3", timetableColumns)
	var timetable models.Timetable
	if err := r.db.GetContext(ctx, &timetable, query, groupID, month, year); err != nil {
		return nil, err
	}
	slots, err := r.slotsFor(ctx, timetable.ID)
	if err != nil {
		return nil, err
	}
	timetable.Slots = slots
	return &timetable, nil
}

// ListByMonthYear returns every timetable of the period with slots attached.
func (r *TimetableRepository) ListByMonthYear(ctx context.Context, month, year int) ([]models.Timetable, error) {
	query := fmt.Sprintf("SELECT %s FROM timetables WHERE month = $1 AND year = $2 ORDER BY group_id", timetableColumns)
	var timetables []models.Timetable
	if err := r.db.SelectContext(ctx, &timetables, query, month, year); err != nil {
		return nil, fmt.Errorf("list timetables: %w", err)
	}
	if len(timetables) == 0 {
		return timetables, nil
	}

	const slotQuery = `SELECT s.id, s.timetable_id, s.day_of_week, s.start_min, s.end_min, s.subject_id, s.venue_id, s.lecturer_id, s.locked, s.created_at
		FROM time_slots s JOIN timetables t ON t.id = s.timetable_id
		WHERE t.month = $1 AND t.year = $2 ORDER BY s.day_of_week, s.start_min`
	var slots []models.TimeSlotAssignment
	if err := r.db.SelectContext(ctx, &slots, slotQuery, month, year); err != nil {
		return nil, fmt.Errorf("list timetable slots: %w", err)
	}

	byTimetable := make(map[string][]models.TimeSlotAssignment, len(timetables))
	for _, slot := range slots {
		byTimetable[slot.TimetableID] = append(byTimetable[slot.TimetableID], slot)
	}
	for i := range timetables {
		timetables[i].Slots = byTimetable[timetables[i].ID]
	}
	return timetables, nil
}

// Create inserts a timetable and all of its slots in one transaction.
func (r *TimetableRepository) Create(ctx context.Context, timetable *models.Timetable) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin create timetable: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	now := time.Now().UTC()
	const insertTimetable = `INSERT INTO timetables (id, group_id, month, year, status, generated_at, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`
	if _, err = tx.ExecContext(ctx, insertTimetable,
		timetable.ID, timetable.GroupID, timetable.Month, timetable.Year,
		string(timetable.Status), timetable.GeneratedAt, now, now,
	); err != nil {
		return fmt.Errorf("insert timetable: %w", err)
	}

	if err = insertSlots(ctx, tx, timetable.ID, timetable.Slots, false); err != nil {
		return err
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("commit create timetable: %w", err)
	}
	return nil
}

// ReplaceUnlocked discards the unlocked slots of an existing timetable and
// writes the freshly computed ones; locked rows are left untouched.
func (r *TimetableRepository) ReplaceUnlocked(ctx context.Context, timetable *models.Timetable) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin replace timetable: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	if _, err = tx.ExecContext(ctx, `DELETE FROM time_slots WHERE timetable_id = $1 AND locked = FALSE`, timetable.ID); err != nil {
		return fmt.Errorf("delete unlocked slots: %w", err)
	}

	if err = insertSlots(ctx, tx, timetable.ID, timetable.Slots, true); err != nil {
		return err
	}

	const updateTimetable = `UPDATE timetables SET status = $1, generated_at = $2, updated_at = $3 WHERE id = $4`
	if _, err = tx.ExecContext(ctx, updateTimetable,
		string(timetable.Status), timetable.GeneratedAt, time.Now().UTC(), timetable.ID,
	); err != nil {
		return fmt.Errorf("update timetable: %w", err)
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("commit replace timetable: %w", err)
	}
	return nil
}

// FindSlot loads a single slot assignment by id.
func (r *TimetableRepository) FindSlot(ctx context.Context, slotID string) (*models.TimeSlotAssignment, error) {
	query := fmt.Sprintf("SELECT %s FROM time_slots WHERE id = $1", slotColumns)
	var slot models.TimeSlotAssignment
	if err := r.db.GetContext(ctx, &slot, query, slotID); err != nil {
		return nil, err
	}
	return &slot, nil
}

// InsertSlot adds one assignment to a stored timetable.
func (r *TimetableRepository) InsertSlot(ctx context.Context, slot *models.TimeSlotAssignment) error {
	const query = `INSERT INTO time_slots (id, timetable_id, day_of_week, start_min, end_min, subject_id, venue_id, lecturer_id, locked, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`
	if _, err := r.db.ExecContext(ctx, query,
		slot.ID, slot.TimetableID, slot.Day, int(slot.Start), int(slot.End),
		slot.SubjectID, slot.VenueID, slot.LecturerID, slot.Locked, time.Now().UTC(),
	); err != nil {
		return fmt.Errorf("insert slot: %w", err)
	}
	return nil
}

// UpdateSlotPlacement moves an existing assignment to a new cell.
func (r *TimetableRepository) UpdateSlotPlacement(ctx context.Context, slot *models.TimeSlotAssignment) error {
	const query = `UPDATE time_slots SET day_of_week = $1, start_min = $2, end_min = $3, venue_id = $4, lecturer_id = $5 WHERE id = $6`
	result, err := r.db.ExecContext(ctx, query,
		slot.Day, int(slot.Start), int(slot.End), slot.VenueID, slot.LecturerID, slot.ID,
	)
	if err != nil {
		return fmt.Errorf("update slot placement: %w", err)
	}
	return ensureRowAffected(result)
}

// SetSlotLock updates the lock flag on one assignment.
func (r *TimetableRepository) SetSlotLock(ctx context.Context, slotID string, locked bool) error {
	result, err := r.db.ExecContext(ctx, `UPDATE time_slots SET locked = $1 WHERE id = $2`, locked, slotID)
	if err != nil {
		return fmt.Errorf("set slot lock: %w", err)
	}
	return ensureRowAffected(result)
}

// UpdateStatus transitions a timetable's lifecycle status.
func (r *TimetableRepository) UpdateStatus(ctx context.Context, id string, status models.TimetableStatus) error {
	result, err := r.db.ExecContext(ctx, `UPDATE timetables SET status = $1, updated_at = $2 WHERE id = $3`,
		string(status), time.Now().UTC(), id)
	if err != nil {
		return fmt.Errorf("update timetable status: %w", err)
	}
	return ensureRowAffected(result)
}

// Delete removes a timetable; slots cascade via the schema but are removed
// explicitly to keep the behaviour driver-independent.
func (r *TimetableRepository) Delete(ctx context.Context, id string) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin delete timetable: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	if _, err = tx.ExecContext(ctx, `DELETE FROM time_slots WHERE timetable_id = $1`, id); err != nil {
		return fmt.Errorf("delete timetable slots: %w", err)
	}
	var result sql.Result
	if result, err = tx.ExecContext(ctx, `DELETE FROM timetables WHERE id = $1`, id); err != nil {
		return fmt.Errorf("delete timetable: %w", err)
	}
	if err = ensureRowAffected(result); err != nil {
		return err
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("commit delete timetable: %w", err)
	}
	return nil
}

func (r *TimetableRepository) slotsFor(ctx context.Context, timetableID string) ([]models.TimeSlotAssignment, error) {
	query := fmt.Sprintf("SELECT %s FROM time_slots WHERE timetable_id = $1 ORDER BY day_of_week, start_min", slotColumns)
	var slots []models.TimeSlotAssignment
	if err := r.db.SelectContext(ctx, &slots, query, timetableID); err != nil {
		return nil, fmt.Errorf("list slots: %w", err)
	}
	return slots, nil
}

// insertSlots bulk-inserts assignments; when skipLocked is set, locked rows
// are assumed to exist already and are not rewritten.
func insertSlots(ctx context.Context, tx *sqlx.Tx, timetableID string, slots []models.TimeSlotAssignment, skipLocked bool) error {
	const query = `INSERT INTO time_slots (id, timetable_id, day_of_week, start_min, end_min, subject_id, venue_id, lecturer_id, locked, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`
	now := time.Now().UTC()
	for _, slot := range slots {
		if skipLocked && slot.Locked {
			continue
		}
		if _, err := tx.ExecContext(ctx, query,
			slot.ID, timetableID, slot.Day, int(slot.Start), int(slot.End),
			slot.SubjectID, slot.VenueID, slot.LecturerID, slot.Locked, now,
		); err != nil {
			return fmt.Errorf("insert slot: %w", err)
		}
	}
	return nil
}

func ensureRowAffected(result sql.Result) error {
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if affected == 0 {
		return sql.ErrNoRows
	}
	return nil
}
