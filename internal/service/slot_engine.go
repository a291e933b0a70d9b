package service

import (
	"fmt"

	"github.com/google/uuid"

	"github.com/campustime/timetable-api/internal/dto"
	"github.com/campustime/timetable-api/internal/models"
)

// GridConfig is the fixed weekly grid the engine walks.
type GridConfig struct {
	Days    []int
	Windows []models.TimeWindow
}

// DefaultGrid returns Monday-Friday with four two-hour periods.
func DefaultGrid() GridConfig {
	return GridConfig{
		Days: []int{models.Monday, models.Tuesday, models.Wednesday, models.Thursday, models.Friday},
		Windows: []models.TimeWindow{
			{Start: 8 * 60, End: 10 * 60},
			{Start: 10 * 60, End: 12 * 60},
			{Start: 13 * 60, End: 15 * 60},
			{Start: 15 * 60, End: 17 * 60},
		},
	}
}

// Cells returns the number of grid cells per week.
func (g GridConfig) Cells() int {
	return len(g.Days) * len(g.Windows)
}

// slotEngine places subjects into the weekly grid with an advancing cursor.
// The cursor is seeded once per group generation and never reset between
// subjects: each search resumes where the previous placement ended, which
// spreads subjects across the week instead of clustering them on Monday
// morning.
type slotEngine struct {
	grid   GridConfig
	run    *GenerationRun
	cursor int
}

func newSlotEngine(grid GridConfig, run *GenerationRun) *slotEngine {
	// cursor starts one step before the first cell so the pre-attempt
	// advance lands the first attempt on (day 0, window 0)
	return &slotEngine{grid: grid, run: run, cursor: -1}
}

type placementResult struct {
	assignments []models.TimeSlotAssignment
	unassigned  []dto.UnassignedSubject
}

// placeAll runs one greedy pass over the subjects in directory order.
// A subject with no free (day, window, venue) triple is recorded as
// unassigned and processing continues.
func (e *slotEngine) placeAll(timetableID string, subjects []models.Subject, venues []models.Venue) placementResult {
	var result placementResult
	for _, subject := range subjects {
		assignment, ok := e.place(timetableID, subject, venues)
		if !ok {
			result.unassigned = append(result.unassigned, dto.UnassignedSubject{
				SubjectID: subject.ID,
				Code:      subject.Code,
				Reason:    fmt.Sprintf("no conflict-free slot for subject %s in a %d-cell grid", subject.Code, e.grid.Cells()),
			})
			continue
		}
		result.assignments = append(result.assignments, assignment)
	}
	return result
}

func (e *slotEngine) place(timetableID string, subject models.Subject, venues []models.Venue) (models.TimeSlotAssignment, bool) {
	total := e.grid.Cells()
	if total == 0 || len(venues) == 0 {
		return models.TimeSlotAssignment{}, false
	}

	prefs := subject.SchedulingPreferences()
	for attempt := 0; attempt < total; attempt++ {
		e.cursor = (e.cursor + 1) % total
		day := e.grid.Days[e.cursor/len(e.grid.Windows)]
		window := e.grid.Windows[e.cursor%len(e.grid.Windows)]

		for _, venue := range venues {
			if !venueSuits(venue, prefs) {
				continue
			}
			if e.run.CellTaken(venue.ID, day, window) {
				continue
			}
			if e.run.VenueConflict(venue.ID, day, window) {
				continue
			}
			if e.run.LecturerConflict(subject.LecturerID, day, window) {
				continue
			}

			assignment := models.TimeSlotAssignment{
				ID:          uuid.NewString(),
				TimetableID: timetableID,
				Day:         day,
				Start:       models.ClockMinutes(window.Start),
				End:         models.ClockMinutes(window.End),
				SubjectID:   subject.ID,
				VenueID:     venue.ID,
				LecturerID:  subject.LecturerID,
			}
			e.run.ReserveAssignment(assignment)
			// cursor stays on the placed cell; the next subject's search
			// advances from here
			return assignment, true
		}
	}
	return models.TimeSlotAssignment{}, false
}

// venueSuits applies the subject's required venue types; first matching
// venue in directory order wins, no scoring at placement time.
func venueSuits(venue models.Venue, prefs models.SubjectPreferences) bool {
	if len(prefs.VenueTypes) == 0 {
		return true
	}
	for _, vt := range prefs.VenueTypes {
		if vt == venue.VenueType {
			return true
		}
	}
	return false
}
