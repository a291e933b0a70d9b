package service

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/campustime/timetable-api/internal/models"
)

func TestTimeWindowOverlaps(t *testing.T) {
	base := models.TimeWindow{Start: 8 * 60, End: 10 * 60}

	cases := []struct {
		name    string
		other   models.TimeWindow
		overlap bool
	}{
		{"identical", models.TimeWindow{Start: 8 * 60, End: 10 * 60}, true},
		{"contained", models.TimeWindow{Start: 8*60 + 30, End: 9 * 60}, true},
		{"containing", models.TimeWindow{Start: 7 * 60, End: 11 * 60}, true},
		{"partial left", models.TimeWindow{Start: 7 * 60, End: 9 * 60}, true},
		{"partial right", models.TimeWindow{Start: 9 * 60, End: 11 * 60}, true},
		{"touching end", models.TimeWindow{Start: 10 * 60, End: 12 * 60}, false},
		{"touching start", models.TimeWindow{Start: 6 * 60, End: 8 * 60}, false},
		{"disjoint", models.TimeWindow{Start: 13 * 60, End: 15 * 60}, false},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.overlap, base.Overlaps(tc.other))
			assert.Equal(t, tc.overlap, tc.other.Overlaps(base))
		})
	}
}

func TestGenerationRunVenueConflict(t *testing.T) {
	run := NewGenerationRun()
	window := models.TimeWindow{Start: 8 * 60, End: 10 * 60}
	run.Reserve("v1", "l1", models.Monday, window)

	assert.True(t, run.VenueConflict("v1", models.Monday, window))
	assert.True(t, run.VenueConflict("v1", models.Monday, models.TimeWindow{Start: 9 * 60, End: 11 * 60}))
	assert.False(t, run.VenueConflict("v1", models.Monday, models.TimeWindow{Start: 10 * 60, End: 12 * 60}))
	assert.False(t, run.VenueConflict("v1", models.Tuesday, window))
	assert.False(t, run.VenueConflict("v2", models.Monday, window))
}

func TestGenerationRunLecturerConflictAcrossVenues(t *testing.T) {
	run := NewGenerationRun()
	window := models.TimeWindow{Start: 10 * 60, End: 12 * 60}
	run.Reserve("v1", "l1", models.Wednesday, window)

	// lecturers are global resources: a different venue does not help
	assert.True(t, run.LecturerConflict("l1", models.Wednesday, window))
	assert.False(t, run.LecturerConflict("l1", models.Thursday, window))
	assert.False(t, run.LecturerConflict("l2", models.Wednesday, window))
}

func TestGenerationRunCellTaken(t *testing.T) {
	run := NewGenerationRun()
	window := models.TimeWindow{Start: 13 * 60, End: 15 * 60}
	run.ReserveAssignment(models.TimeSlotAssignment{
		VenueID:    "v1",
		LecturerID: "l1",
		Day:        models.Friday,
		Start:      models.ClockMinutes(window.Start),
		End:        models.ClockMinutes(window.End),
	})

	assert.True(t, run.CellTaken("v1", models.Friday, window))
	assert.False(t, run.CellTaken("v2", models.Friday, window))
	assert.False(t, run.CellTaken("v1", models.Thursday, window))
}
