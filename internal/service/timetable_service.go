package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/campustime/timetable-api/internal/dto"
	"github.com/campustime/timetable-api/internal/models"
	appErrors "github.com/campustime/timetable-api/pkg/errors"
	"github.com/campustime/timetable-api/pkg/export"
)

type timetableRepository interface {
	FindByID(ctx context.Context, id string) (*models.Timetable, error)
	FindByGroupMonthYear(ctx context.Context, groupID string, month, year int) (*models.Timetable, error)
	ListByMonthYear(ctx context.Context, month, year int) ([]models.Timetable, error)
	FindSlot(ctx context.Context, slotID string) (*models.TimeSlotAssignment, error)
	InsertSlot(ctx context.Context, slot *models.TimeSlotAssignment) error
	UpdateSlotPlacement(ctx context.Context, slot *models.TimeSlotAssignment) error
	SetSlotLock(ctx context.Context, slotID string, locked bool) error
	UpdateStatus(ctx context.Context, id string, status models.TimetableStatus) error
	Delete(ctx context.Context, id string) error
}

type timetableCache interface {
	Get(ctx context.Context, key string, dest interface{}) error
	Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error
	DeleteByPattern(ctx context.Context, pattern string) error
}

type timetableGroupReader interface {
	FindByID(ctx context.Context, id string) (*models.Group, error)
}

type timetableSubjectReader interface {
	FindByID(ctx context.Context, id string) (*models.Subject, error)
}

type timetableVenueReader interface {
	FindByID(ctx context.Context, id string) (*models.Venue, error)
}

type timetableLecturerReader interface {
	FindByID(ctx context.Context, id string) (*models.Lecturer, error)
}

type timetableExporter interface {
	Render(data export.Dataset, title string) ([]byte, error)
}

type timetableCSVExporter interface {
	Render(data export.Dataset) ([]byte, error)
}

// TimetableConfig governs lookup caching.
type TimetableConfig struct {
	CacheTTL time.Duration
}

// TimetableService covers the administrative operations on stored
// timetables: lookup, manual overrides, locking, publishing, deletion and
// export. Manual overrides are validated with the same conflict predicates
// the generation engine uses.
type TimetableService struct {
	timetables timetableRepository
	groups     timetableGroupReader
	subjects   timetableSubjectReader
	venues     timetableVenueReader
	lecturers  timetableLecturerReader
	cache      timetableCache
	pdf        timetableExporter
	csv        timetableCSVExporter
	validator  *validator.Validate
	logger     *zap.Logger
	cfg        TimetableConfig
}

// NewTimetableService wires the timetable administration dependencies.
func NewTimetableService(
	timetables timetableRepository,
	groups timetableGroupReader,
	subjects timetableSubjectReader,
	venues timetableVenueReader,
	lecturers timetableLecturerReader,
	cache timetableCache,
	pdf timetableExporter,
	csv timetableCSVExporter,
	validate *validator.Validate,
	logger *zap.Logger,
	cfg TimetableConfig,
) *TimetableService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.CacheTTL <= 0 {
		cfg.CacheTTL = 10 * time.Minute
	}
	return &TimetableService{
		timetables: timetables,
		groups:     groups,
		subjects:   subjects,
		venues:     venues,
		lecturers:  lecturers,
		cache:      cache,
		pdf:        pdf,
		csv:        csv,
		validator:  validate,
		logger:     logger,
		cfg:        cfg,
	}
}

// Get returns a timetable with its slots.
func (s *TimetableService) Get(ctx context.Context, id string) (*models.Timetable, error) {
	if id == "" {
		return nil, appErrors.Clone(appErrors.ErrValidation, "timetable id is required")
	}
	timetable, err := s.timetables.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "timetable not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load timetable")
	}
	return timetable, nil
}

// Lookup resolves a timetable by (group, month, year), serving published
// timetables through the cache.
func (s *TimetableService) Lookup(ctx context.Context, query dto.TimetableQuery) (*models.Timetable, error) {
	if err := s.validator.Struct(query); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid timetable query")
	}

	key := timetableCacheKey(query.GroupID, query.Month, query.Year)
	if s.cache != nil {
		var cached models.Timetable
		if err := s.cache.Get(ctx, key, &cached); err == nil {
			return &cached, nil
		} else if !errors.Is(err, appErrors.ErrCacheMiss) {
			s.logger.Warn("timetable cache read failed", zap.String("key", key), zap.Error(err))
		}
	}

	timetable, err := s.timetables.FindByGroupMonthYear(ctx, query.GroupID, query.Month, query.Year)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "timetable not found for this period")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load timetable")
	}

	if s.cache != nil && timetable.Status == models.TimetableStatusPublished {
		if err := s.cache.Set(ctx, key, timetable, s.cfg.CacheTTL); err != nil {
			s.logger.Warn("timetable cache write failed", zap.String("key", key), zap.Error(err))
		}
	}
	return timetable, nil
}

// ManualAssign places a subject into an explicitly chosen cell after running
// the same venue and lecturer conflict predicates the engine applies.
func (s *TimetableService) ManualAssign(ctx context.Context, timetableID string, req dto.ManualAssignmentRequest) (*models.Timetable, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid manual assignment payload")
	}
	window, err := parseRequestWindow(req.StartTime, req.EndTime)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, err.Error())
	}

	timetable, err := s.Get(ctx, timetableID)
	if err != nil {
		return nil, err
	}

	subject, err := s.subjects.FindByID(ctx, req.SubjectID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "subject not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load subject")
	}
	venue, err := s.venues.FindByID(ctx, req.VenueID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "venue not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load venue")
	}

	var current *models.TimeSlotAssignment
	for i := range timetable.Slots {
		if timetable.Slots[i].SubjectID == subject.ID {
			current = &timetable.Slots[i]
			break
		}
	}
	if current != nil && current.Locked {
		return nil, appErrors.Clone(appErrors.ErrConflict, "assignment is locked; unlock it before reassigning")
	}

	run, err := s.occupancyFor(ctx, timetable, current)
	if err != nil {
		return nil, err
	}
	if run.VenueConflict(venue.ID, req.Day, window) {
		return nil, conflictError("VENUE", venue.ID, req.Day, window,
			fmt.Sprintf("venue %s is occupied on %s %s", venue.Name, models.DayName(req.Day), window))
	}
	if run.LecturerConflict(subject.LecturerID, req.Day, window) {
		return nil, conflictError("LECTURER", subject.LecturerID, req.Day, window,
			fmt.Sprintf("lecturer is busy on %s %s", models.DayName(req.Day), window))
	}

	if current != nil {
		current.Day = req.Day
		current.Start = models.ClockMinutes(window.Start)
		current.End = models.ClockMinutes(window.End)
		current.VenueID = venue.ID
		current.LecturerID = subject.LecturerID
		err = s.timetables.UpdateSlotPlacement(ctx, current)
	} else {
		slot := &models.TimeSlotAssignment{
			ID:          uuid.NewString(),
			TimetableID: timetable.ID,
			Day:         req.Day,
			Start:       models.ClockMinutes(window.Start),
			End:         models.ClockMinutes(window.End),
			SubjectID:   subject.ID,
			VenueID:     venue.ID,
			LecturerID:  subject.LecturerID,
		}
		err = s.timetables.InsertSlot(ctx, slot)
	}
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to persist manual assignment")
	}

	s.invalidate(ctx, timetable.GroupID)
	return s.Get(ctx, timetable.ID)
}

// SetSlotLock toggles the lock flag on one assignment. Locking never changes
// placement, so no conflict check is needed.
func (s *TimetableService) SetSlotLock(ctx context.Context, timetableID, slotID string, locked bool) (*models.TimeSlotAssignment, error) {
	slot, err := s.timetables.FindSlot(ctx, slotID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "assignment not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load assignment")
	}
	if slot.TimetableID != timetableID {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "assignment does not belong to this timetable")
	}
	if err := s.timetables.SetSlotLock(ctx, slotID, locked); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update lock flag")
	}
	slot.Locked = locked
	return slot, nil
}

// Publish moves a draft timetable to the published status.
func (s *TimetableService) Publish(ctx context.Context, id string) (*models.Timetable, error) {
	timetable, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if timetable.Status == models.TimetableStatusPublished {
		return nil, appErrors.Clone(appErrors.ErrConflict, "timetable is already published")
	}
	if err := s.timetables.UpdateStatus(ctx, id, models.TimetableStatusPublished); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to publish timetable")
	}
	timetable.Status = models.TimetableStatusPublished
	s.invalidate(ctx, timetable.GroupID)
	return timetable, nil
}

// Delete removes a timetable; its assignments cascade.
func (s *TimetableService) Delete(ctx context.Context, id string) error {
	timetable, err := s.Get(ctx, id)
	if err != nil {
		return err
	}
	if err := s.timetables.Delete(ctx, id); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to delete timetable")
	}
	s.invalidate(ctx, timetable.GroupID)
	return nil
}

// Export renders the timetable as a weekly table in the requested format,
// either "pdf" (default) or "csv". It returns the payload, a suggested
// filename and the content type.
func (s *TimetableService) Export(ctx context.Context, id, format string) ([]byte, string, string, error) {
	if format == "" {
		format = "pdf"
	}
	if format != "pdf" && format != "csv" {
		return nil, "", "", appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("unsupported export format %q", format))
	}
	timetable, err := s.Get(ctx, id)
	if err != nil {
		return nil, "", "", err
	}
	group, err := s.groups.FindByID(ctx, timetable.GroupID)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return nil, "", "", appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load group")
	}

	slots := make([]models.TimeSlotAssignment, len(timetable.Slots))
	copy(slots, timetable.Slots)
	sort.Slice(slots, func(i, j int) bool {
		if slots[i].Day == slots[j].Day {
			return slots[i].Start < slots[j].Start
		}
		return slots[i].Day < slots[j].Day
	})

	subjectNames := map[string]string{}
	venueNames := map[string]string{}
	lecturerNames := map[string]string{}
	dataset := export.Dataset{Headers: []string{"Day", "Time", "Subject", "Venue", "Lecturer"}}
	for _, slot := range slots {
		dataset.Rows = append(dataset.Rows, map[string]string{
			"Day":      models.DayName(slot.Day),
			"Time":     slot.Window().String(),
			"Subject":  s.subjectName(ctx, slot.SubjectID, subjectNames),
			"Venue":    s.venueName(ctx, slot.VenueID, venueNames),
			"Lecturer": s.lecturerName(ctx, slot.LecturerID, lecturerNames),
		})
	}

	groupName := timetable.GroupID
	if group != nil {
		groupName = group.Name
	}
	filename := fmt.Sprintf("timetable-%s-%04d-%02d.%s", groupName, timetable.Year, timetable.Month, format)
	if format == "csv" {
		if s.csv == nil {
			return nil, "", "", appErrors.Clone(appErrors.ErrInternal, "csv exporter unavailable")
		}
		payload, err := s.csv.Render(dataset)
		if err != nil {
			return nil, "", "", appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to render timetable csv")
		}
		return payload, filename, "text/csv", nil
	}

	if s.pdf == nil {
		return nil, "", "", appErrors.Clone(appErrors.ErrInternal, "pdf exporter unavailable")
	}
	title := fmt.Sprintf("Timetable %s %04d-%02d", groupName, timetable.Year, timetable.Month)
	payload, err := s.pdf.Render(dataset, title)
	if err != nil {
		return nil, "", "", appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to render timetable pdf")
	}
	return payload, filename, "application/pdf", nil
}

// occupancyFor builds the conflict-check occupancy set from every stored
// assignment of the timetable's period, excluding the slot being replaced.
func (s *TimetableService) occupancyFor(ctx context.Context, timetable *models.Timetable, exclude *models.TimeSlotAssignment) (*GenerationRun, error) {
	period, err := s.timetables.ListByMonthYear(ctx, timetable.Month, timetable.Year)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load period assignments")
	}
	run := NewGenerationRun()
	for _, t := range period {
		for _, slot := range t.Slots {
			if exclude != nil && slot.ID == exclude.ID {
				continue
			}
			run.ReserveAssignment(slot)
		}
	}
	return run, nil
}

func (s *TimetableService) invalidate(ctx context.Context, groupID string) {
	if s.cache == nil {
		return
	}
	if err := s.cache.DeleteByPattern(ctx, fmt.Sprintf("timetables:%s:*", groupID)); err != nil {
		s.logger.Warn("failed to invalidate timetable cache", zap.String("group_id", groupID), zap.Error(err))
	}
}

func (s *TimetableService) subjectName(ctx context.Context, id string, memo map[string]string) string {
	if name, ok := memo[id]; ok {
		return name
	}
	name := id
	if subject, err := s.subjects.FindByID(ctx, id); err == nil {
		name = subject.Name
	}
	memo[id] = name
	return name
}

func (s *TimetableService) venueName(ctx context.Context, id string, memo map[string]string) string {
	if name, ok := memo[id]; ok {
		return name
	}
	name := id
	if venue, err := s.venues.FindByID(ctx, id); err == nil {
		name = venue.Name
	}
	memo[id] = name
	return name
}

func (s *TimetableService) lecturerName(ctx context.Context, id string, memo map[string]string) string {
	if name, ok := memo[id]; ok {
		return name
	}
	name := id
	if lecturer, err := s.lecturers.FindByID(ctx, id); err == nil {
		name = lecturer.FullName
	}
	memo[id] = name
	return name
}

func timetableCacheKey(groupID string, month, year int) string {
	return fmt.Sprintf("timetables:%s:%04d-%02d", groupID, year, month)
}

func parseRequestWindow(start, end string) (models.TimeWindow, error) {
	startMin, err := models.ParseClock(start)
	if err != nil {
		return models.TimeWindow{}, err
	}
	endMin, err := models.ParseClock(end)
	if err != nil {
		return models.TimeWindow{}, err
	}
	if endMin <= startMin {
		return models.TimeWindow{}, fmt.Errorf("end time %s must be after start time %s", end, start)
	}
	return models.TimeWindow{Start: startMin, End: endMin}, nil
}

func conflictError(resource, resourceID string, day int, window models.TimeWindow, message string) error {
	cause := &models.AssignmentConflictError{
		Message: message,
		Conflict: models.AssignmentConflict{
			Resource:   resource,
			ResourceID: resourceID,
			Day:        day,
			Window:     window,
		},
	}
	return appErrors.Wrap(cause, appErrors.ErrConflict.Code, appErrors.ErrConflict.Status, message)
}
