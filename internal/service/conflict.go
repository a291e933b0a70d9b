package service

import (
	"github.com/campustime/timetable-api/internal/models"
)

type resourceKey struct {
	id  string
	day int
}

type cellKey struct {
	venueID string
	day     int
	window  models.TimeWindow
}

// GenerationRun is the shared occupancy state accumulated across all groups
// processed in one batch invocation. Lecturers and venues are global
// resources, so every accepted assignment is indexed here regardless of
// which group it belongs to.
type GenerationRun struct {
	venues    map[resourceKey][]models.TimeWindow
	lecturers map[resourceKey][]models.TimeWindow
	cells     map[cellKey]struct{}
}

// NewGenerationRun returns an empty occupancy set.
func NewGenerationRun() *GenerationRun {
	return &GenerationRun{
		venues:    make(map[resourceKey][]models.TimeWindow),
		lecturers: make(map[resourceKey][]models.TimeWindow),
		cells:     make(map[cellKey]struct{}),
	}
}

// Reserve marks a (venue, lecturer, day, window) tuple as occupied.
func (r *GenerationRun) Reserve(venueID, lecturerID string, day int, window models.TimeWindow) {
	vk := resourceKey{id: venueID, day: day}
	r.venues[vk] = append(r.venues[vk], window)
	lk := resourceKey{id: lecturerID, day: day}
	r.lecturers[lk] = append(r.lecturers[lk], window)
	r.cells[cellKey{venueID: venueID, day: day, window: window}] = struct{}{}
}

// ReserveAssignment indexes an accepted assignment.
func (r *GenerationRun) ReserveAssignment(a models.TimeSlotAssignment) {
	r.Reserve(a.VenueID, a.LecturerID, a.Day, a.Window())
}

// CellTaken reports whether the exact (venue, day, window) cell already
// holds an assignment from this run.
func (r *GenerationRun) CellTaken(venueID string, day int, window models.TimeWindow) bool {
	_, taken := r.cells[cellKey{venueID: venueID, day: day, window: window}]
	return taken
}

// VenueConflict reports whether any accepted assignment occupies the venue
// on the given day with an overlapping interval.
func (r *GenerationRun) VenueConflict(venueID string, day int, window models.TimeWindow) bool {
	return anyOverlap(r.venues[resourceKey{id: venueID, day: day}], window)
}

// LecturerConflict reports whether the lecturer is already teaching an
// overlapping interval on the given day, in any group of this run.
func (r *GenerationRun) LecturerConflict(lecturerID string, day int, window models.TimeWindow) bool {
	return anyOverlap(r.lecturers[resourceKey{id: lecturerID, day: day}], window)
}

func anyOverlap(occupied []models.TimeWindow, window models.TimeWindow) bool {
	for _, w := range occupied {
		if w.Overlaps(window) {
			return true
		}
	}
	return false
}
