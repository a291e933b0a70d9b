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
)

type generationGroupReader interface {
	List(ctx context.Context) ([]models.Group, error)
	FindByID(ctx context.Context, id string) (*models.Group, error)
}

type eligibleSubjectLister interface {
	ListEligible(ctx context.Context, department string, supporting []string) ([]models.Subject, error)
}

type candidateVenueLister interface {
	ListCandidates(ctx context.Context, department string, supporting []string, minCapacity int) ([]models.Venue, error)
}

type timetableStore interface {
	ListByMonthYear(ctx context.Context, month, year int) ([]models.Timetable, error)
	Create(ctx context.Context, timetable *models.Timetable) error
	ReplaceUnlocked(ctx context.Context, timetable *models.Timetable) error
}

type timetableCacheInvalidator interface {
	DeleteByPattern(ctx context.Context, pattern string) error
}

type generationObserver interface {
	ObserveGeneration(succeeded, failed, placed, unplaced int, duration time.Duration)
}

// GenerationConfig governs batch generation behaviour.
type GenerationConfig struct {
	Grid                  GridConfig
	SupportingDepartments []string
}

// GenerationService is the batch driver around the slot assignment engine.
// Groups are processed sequentially against one shared GenerationRun because
// lecturers and venues are global resources across groups.
type GenerationService struct {
	groups     generationGroupReader
	subjects   eligibleSubjectLister
	venues     candidateVenueLister
	timetables timetableStore
	cache      timetableCacheInvalidator
	metrics    generationObserver
	validator  *validator.Validate
	logger     *zap.Logger
	cfg        GenerationConfig
}

// NewGenerationService wires the batch driver dependencies.
func NewGenerationService(
	groups generationGroupReader,
	subjects eligibleSubjectLister,
	venues candidateVenueLister,
	timetables timetableStore,
	cache timetableCacheInvalidator,
	metrics generationObserver,
	validate *validator.Validate,
	logger *zap.Logger,
	cfg GenerationConfig,
) *GenerationService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if len(cfg.Grid.Days) == 0 || len(cfg.Grid.Windows) == 0 {
		cfg.Grid = DefaultGrid()
	}
	return &GenerationService{
		groups:     groups,
		subjects:   subjects,
		venues:     venues,
		timetables: timetables,
		cache:      cache,
		metrics:    metrics,
		validator:  validate,
		logger:     logger,
		cfg:        cfg,
	}
}

// Generate produces timetables for one group or all groups in a (month, year)
// period. Per-group failures are collected, never propagated; the batch
// always finishes and reports both lists.
func (s *GenerationService) Generate(ctx context.Context, req dto.GenerateTimetablesRequest) (*dto.GenerateTimetablesResponse, error) {
	started := time.Now()
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid generation payload")
	}

	targets, err := s.resolveGroups(ctx, req)
	if err != nil {
		return nil, err
	}

	existing, err := s.timetables.ListByMonthYear(ctx, req.Month, req.Year)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load existing timetables")
	}
	existingByGroup := make(map[string]*models.Timetable, len(existing))
	for i := range existing {
		existingByGroup[existing[i].GroupID] = &existing[i]
	}

	targetSet := make(map[string]bool, len(targets))
	for _, g := range targets {
		targetSet[g.ID] = true
	}

	run := s.seedRun(existingByGroup, targetSet, req.ForceRegenerate)

	resp := &dto.GenerateTimetablesResponse{
		Success: []dto.GeneratedTimetable{},
		Failed:  []dto.GroupFailure{},
	}
	placed, unplaced := 0, 0
	for _, group := range targets {
		outcome, fail := s.generateForGroup(ctx, group, req, existingByGroup[group.ID], run)
		if fail != nil {
			s.logger.Warn("group generation failed",
				zap.String("group_id", group.ID),
				zap.String("reason", fail.Reason),
			)
			resp.Failed = append(resp.Failed, *fail)
			continue
		}
		placed += outcome.Assigned
		unplaced += len(outcome.Unassigned)
		resp.Success = append(resp.Success, *outcome)
	}

	if s.metrics != nil {
		s.metrics.ObserveGeneration(len(resp.Success), len(resp.Failed), placed, unplaced, time.Since(started))
	}
	s.logger.Info("timetable generation finished",
		zap.Int("month", req.Month),
		zap.Int("year", req.Year),
		zap.Int("succeeded", len(resp.Success)),
		zap.Int("failed", len(resp.Failed)),
		zap.Duration("duration", time.Since(started)),
	)
	return resp, nil
}

func (s *GenerationService) resolveGroups(ctx context.Context, req dto.GenerateTimetablesRequest) ([]models.Group, error) {
	if req.AllGroups() {
		groups, err := s.groups.List(ctx)
		if err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list groups")
		}
		if len(groups) == 0 {
			return nil, appErrors.Clone(appErrors.ErrValidation, "no groups to schedule")
		}
		return groups, nil
	}

	group, err := s.groups.FindByID(ctx, req.GroupID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "group not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load group")
	}
	return []models.Group{*group}, nil
}

// seedRun indexes every stored assignment of the period that this batch must
// not collide with: all slots of untargeted groups, all slots of targeted
// groups that cannot be regenerated, and only the locked slots of timetables
// about to be regenerated.
func (s *GenerationService) seedRun(existingByGroup map[string]*models.Timetable, targetSet map[string]bool, force bool) *GenerationRun {
	run := NewGenerationRun()
	for groupID, timetable := range existingByGroup {
		regenerating := targetSet[groupID] && force
		for _, slot := range timetable.Slots {
			if regenerating && !slot.Locked {
				continue
			}
			run.ReserveAssignment(slot)
		}
	}
	return run
}

func (s *GenerationService) generateForGroup(
	ctx context.Context,
	group models.Group,
	req dto.GenerateTimetablesRequest,
	existing *models.Timetable,
	run *GenerationRun,
) (*dto.GeneratedTimetable, *dto.GroupFailure) {
	if existing != nil && !req.ForceRegenerate {
		return nil, s.failure(group, appErrors.ErrDuplicate.Message)
	}

	subjects, err := s.subjects.ListEligible(ctx, group.Department, s.cfg.SupportingDepartments)
	if err != nil {
		return nil, s.failure(group, fmt.Sprintf("failed to load eligible subjects: %v", err))
	}
	if len(subjects) == 0 {
		return nil, s.failure(group, fmt.Sprintf("no eligible subjects for department %q", group.Department))
	}

	venues, err := s.venues.ListCandidates(ctx, group.Department, s.cfg.SupportingDepartments, group.RosterSize)
	if err != nil {
		return nil, s.failure(group, fmt.Sprintf("failed to load candidate venues: %v", err))
	}
	if len(venues) == 0 {
		return nil, s.failure(group, fmt.Sprintf("no candidate venues can hold %d students", group.RosterSize))
	}

	timetableID := uuid.NewString()
	var locked []models.TimeSlotAssignment
	if existing != nil {
		timetableID = existing.ID
		for _, slot := range existing.Slots {
			if slot.Locked {
				locked = append(locked, slot)
			}
		}
	}

	engine := newSlotEngine(s.cfg.Grid, run)
	result := engine.placeAll(timetableID, subjects, venues)
	if len(result.assignments) == 0 {
		return nil, s.failure(group, "no subject could be placed in the weekly grid")
	}

	slots := append(locked, result.assignments...)
	sort.Slice(slots, func(i, j int) bool {
		if slots[i].Day == slots[j].Day {
			return slots[i].Start < slots[j].Start
		}
		return slots[i].Day < slots[j].Day
	})

	timetable := &models.Timetable{
		ID:          timetableID,
		GroupID:     group.ID,
		Month:       req.Month,
		Year:        req.Year,
		Status:      models.TimetableStatusDraft,
		GeneratedAt: time.Now().UTC(),
		Slots:       slots,
	}

	if existing != nil {
		err = s.timetables.ReplaceUnlocked(ctx, timetable)
	} else {
		err = s.timetables.Create(ctx, timetable)
	}
	if err != nil {
		return nil, s.failure(group, fmt.Sprintf("failed to persist timetable: %v", err))
	}

	if s.cache != nil {
		if err := s.cache.DeleteByPattern(ctx, fmt.Sprintf("timetables:%s:*", group.ID)); err != nil {
			s.logger.Warn("failed to invalidate timetable cache", zap.String("group_id", group.ID), zap.Error(err))
		}
	}

	return &dto.GeneratedTimetable{
		TimetableID: timetable.ID,
		GroupID:     group.ID,
		GroupName:   group.Name,
		Assigned:    len(result.assignments),
		Unassigned:  result.unassigned,
	}, nil
}

func (s *GenerationService) failure(group models.Group, reason string) *dto.GroupFailure {
	return &dto.GroupFailure{GroupID: group.ID, GroupName: group.Name, Reason: reason}
}
