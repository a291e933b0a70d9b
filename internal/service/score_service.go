package service

import (
	"context"
	"database/sql"
	"errors"
	"math"
	"sort"

	"go.uber.org/zap"

	"github.com/campustime/timetable-api/internal/dto"
	"github.com/campustime/timetable-api/internal/models"
	appErrors "github.com/campustime/timetable-api/pkg/errors"
)

type scoreTimetableReader interface {
	FindByID(ctx context.Context, id string) (*models.Timetable, error)
}

type scoreSubjectReader interface {
	FindByID(ctx context.Context, id string) (*models.Subject, error)
}

// ScoreConfig tunes the quality scorer. Zero weights fall back to equal
// weighting; a zero MaxGapMinutes falls back to two hours.
type ScoreConfig struct {
	GapWeight          float64
	DistributionWeight float64
	PreferenceWeight   float64
	MaxGapMinutes      int
	Days               []int
}

// ScoreService evaluates a stored timetable along independent quality axes.
// It operates on the finished timetable only and is unaware of how the
// assignments were produced.
type ScoreService struct {
	timetables scoreTimetableReader
	subjects   scoreSubjectReader
	logger     *zap.Logger
	cfg        ScoreConfig
}

// NewScoreService wires the scorer dependencies.
func NewScoreService(timetables scoreTimetableReader, subjects scoreSubjectReader, logger *zap.Logger, cfg ScoreConfig) *ScoreService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.GapWeight == 0 && cfg.DistributionWeight == 0 && cfg.PreferenceWeight == 0 {
		cfg.GapWeight, cfg.DistributionWeight, cfg.PreferenceWeight = 1, 1, 1
	}
	if cfg.MaxGapMinutes <= 0 {
		cfg.MaxGapMinutes = 120
	}
	if len(cfg.Days) == 0 {
		cfg.Days = DefaultGrid().Days
	}
	return &ScoreService{timetables: timetables, subjects: subjects, logger: logger, cfg: cfg}
}

// Score loads a timetable and computes its sub-scores plus the weighted
// combined score.
func (s *ScoreService) Score(ctx context.Context, timetableID string) (*dto.TimetableScore, error) {
	if timetableID == "" {
		return nil, appErrors.Clone(appErrors.ErrValidation, "timetable id is required")
	}
	if s.cfg.GapWeight < 0 || s.cfg.DistributionWeight < 0 || s.cfg.PreferenceWeight < 0 {
		return nil, appErrors.Clone(appErrors.ErrInvalidWeights, "score weights must not be negative")
	}
	totalWeight := s.cfg.GapWeight + s.cfg.DistributionWeight + s.cfg.PreferenceWeight
	if totalWeight <= 0 {
		return nil, appErrors.Clone(appErrors.ErrInvalidWeights, "score weights must sum to a positive value")
	}

	timetable, err := s.timetables.FindByID(ctx, timetableID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "timetable not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load timetable")
	}

	preference, err := s.preferenceScore(ctx, timetable.Slots)
	if err != nil {
		return nil, err
	}

	score := &dto.TimetableScore{
		TimetableID:  timetable.ID,
		Gap:          s.gapScore(timetable.Slots),
		Distribution: s.distributionScore(timetable.Slots),
		Preference:   preference,
	}
	score.Combined = (score.Gap*s.cfg.GapWeight +
		score.Distribution*s.cfg.DistributionWeight +
		score.Preference*s.cfg.PreferenceWeight) / totalWeight
	return score, nil
}

// gapScore measures idle time between consecutive classes. Each day with at
// least two assignments is normalised against the maximum tolerable gap;
// days with zero or one assignment score a perfect 1.0.
func (s *ScoreService) gapScore(slots []models.TimeSlotAssignment) float64 {
	byDay := slotsByDay(slots)
	if len(byDay) == 0 {
		return 1.0
	}

	var total float64
	for _, daySlots := range byDay {
		if len(daySlots) < 2 {
			total += 1.0
			continue
		}
		sort.Slice(daySlots, func(i, j int) bool { return daySlots[i].Start < daySlots[j].Start })
		idle := 0
		for i := 0; i < len(daySlots)-1; i++ {
			if gap := int(daySlots[i+1].Start) - int(daySlots[i].End); gap > 0 {
				idle += gap
			}
		}
		total += 1.0 - math.Min(1.0, float64(idle)/float64(s.cfg.MaxGapMinutes))
	}
	return total / float64(len(byDay))
}

// distributionScore compares the per-day assignment counts against the worst
// possible clustering: 1 minus the ratio of the observed variance to the
// variance of packing every assignment into a single day.
func (s *ScoreService) distributionScore(slots []models.TimeSlotAssignment) float64 {
	if len(slots) == 0 {
		return 1.0
	}
	days := float64(len(s.cfg.Days))
	counts := make(map[int]int, len(s.cfg.Days))
	for _, slot := range slots {
		counts[slot.Day]++
	}

	n := float64(len(slots))
	mean := n / days
	var variance float64
	for _, day := range s.cfg.Days {
		diff := float64(counts[day]) - mean
		variance += diff * diff
	}
	variance /= days

	maxVariance := ((n-mean)*(n-mean) + (days-1)*mean*mean) / days
	if maxVariance <= 0 {
		return 1.0
	}
	return 1.0 - variance/maxVariance
}

// preferenceScore is the fraction of assignments honouring their subject's
// stated day and time-range preferences. Subjects with no stated preference
// are excluded from the denominator.
func (s *ScoreService) preferenceScore(ctx context.Context, slots []models.TimeSlotAssignment) (float64, error) {
	subjects := make(map[string]models.SubjectPreferences)
	considered, satisfied := 0, 0
	for _, slot := range slots {
		prefs, ok := subjects[slot.SubjectID]
		if !ok {
			subject, err := s.subjects.FindByID(ctx, slot.SubjectID)
			if err != nil {
				if errors.Is(err, sql.ErrNoRows) {
					continue
				}
				return 0, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load subject preferences")
			}
			prefs = subject.SchedulingPreferences()
			subjects[slot.SubjectID] = prefs
		}
		if !prefs.Stated() {
			continue
		}
		considered++
		if preferenceSatisfied(slot, prefs) {
			satisfied++
		}
	}
	if considered == 0 {
		return 1.0, nil
	}
	return float64(satisfied) / float64(considered), nil
}

func preferenceSatisfied(slot models.TimeSlotAssignment, prefs models.SubjectPreferences) bool {
	if len(prefs.PreferredDays) > 0 {
		found := false
		for _, day := range prefs.PreferredDays {
			if day == slot.Day {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	if len(prefs.PreferredRanges) > 0 {
		window := slot.Window()
		for _, r := range prefs.PreferredRanges {
			if r.Contains(window) {
				return true
			}
		}
		return false
	}
	return true
}

func slotsByDay(slots []models.TimeSlotAssignment) map[int][]models.TimeSlotAssignment {
	byDay := make(map[int][]models.TimeSlotAssignment)
	for _, slot := range slots {
		byDay[slot.Day] = append(byDay[slot.Day], slot)
	}
	return byDay
}
