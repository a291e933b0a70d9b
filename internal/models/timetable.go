package models

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Teaching days are indexed Monday=1 through Friday=5.
const (
	Monday = iota + 1
	Tuesday
	Wednesday
	Thursday
	Friday
)

var dayNames = map[int]string{
	Monday:    "MONDAY",
	Tuesday:   "TUESDAY",
	Wednesday: "WEDNESDAY",
	Thursday:  "THURSDAY",
	Friday:    "FRIDAY",
}

// DayName returns the canonical upper-case name for a day index.
func DayName(day int) string {
	if name, ok := dayNames[day]; ok {
		return name
	}
	return "MONDAY"
}

// ClockMinutes is a minute-of-day value rendered as "HH:MM" at the JSON boundary.
type ClockMinutes int

// String formats the value as a zero-padded "HH:MM" clock time.
func (m ClockMinutes) String() string {
	return fmt.Sprintf("%02d:%02d", int(m)/60, int(m)%60)
}

// MarshalJSON renders the minute-of-day as "HH:MM".
func (m ClockMinutes) MarshalJSON() ([]byte, error) {
	return json.Marshal(m.String())
}

// UnmarshalJSON accepts "HH:MM" strings.
func (m *ClockMinutes) UnmarshalJSON(data []byte) error {
	var raw string
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	value, err := ParseClock(raw)
	if err != nil {
		return err
	}
	*m = ClockMinutes(value)
	return nil
}

// ParseClock converts a "HH:MM" string into minutes from midnight.
func ParseClock(raw string) (int, error) {
	parts := strings.SplitN(strings.TrimSpace(raw), ":", 2)
	if len(parts) != 2 {
		return 0, fmt.Errorf("invalid clock time %q", raw)
	}
	hours, err := strconv.Atoi(parts[0])
	if err != nil || hours < 0 || hours > 23 {
		return 0, fmt.Errorf("invalid clock time %q", raw)
	}
	minutes, err := strconv.Atoi(parts[1])
	if err != nil || minutes < 0 || minutes > 59 {
		return 0, fmt.Errorf("invalid clock time %q", raw)
	}
	return hours*60 + minutes, nil
}

// TimeWindow is a half-open [Start,End) interval in minutes from midnight.
type TimeWindow struct {
	Start int `json:"start"`
	End   int `json:"end"`
}

// ParseWindow converts a "HH:MM-HH:MM" range into a TimeWindow.
func ParseWindow(raw string) (TimeWindow, error) {
	parts := strings.SplitN(strings.TrimSpace(raw), "-", 2)
	if len(parts) != 2 {
		return TimeWindow{}, fmt.Errorf("invalid time window %q", raw)
	}
	start, err := ParseClock(parts[0])
	if err != nil {
		return TimeWindow{}, err
	}
	end, err := ParseClock(parts[1])
	if err != nil {
		return TimeWindow{}, err
	}
	if end <= start {
		return TimeWindow{}, fmt.Errorf("time window %q must end after it starts", raw)
	}
	return TimeWindow{Start: start, End: end}, nil
}

// Overlaps reports whether two half-open intervals intersect.
// Touching endpoints do not overlap.
func (w TimeWindow) Overlaps(o TimeWindow) bool {
	return w.Start < o.End && w.End > o.Start
}

// Contains reports whether o lies entirely inside w.
func (w TimeWindow) Contains(o TimeWindow) bool {
	return o.Start >= w.Start && o.End <= w.End
}

// Minutes returns the window length.
func (w TimeWindow) Minutes() int {
	return w.End - w.Start
}

// String formats the window as "HH:MM-HH:MM".
func (w TimeWindow) String() string {
	return fmt.Sprintf("%s-%s", ClockMinutes(w.Start), ClockMinutes(w.End))
}

// TimetableStatus represents lifecycle phases for generated timetables.
type TimetableStatus string

const (
	TimetableStatusDraft     TimetableStatus = "DRAFT"
	TimetableStatusPublished TimetableStatus = "PUBLISHED"
)

// Timetable is the weekly schedule of one group for a month/year period.
type Timetable struct {
	ID          string               `db:"id" json:"id"`
	GroupID     string               `db:"group_id" json:"group_id"`
	Month       int                  `db:"month" json:"month"`
	Year        int                  `db:"year" json:"year"`
	Status      TimetableStatus      `db:"status" json:"status"`
	GeneratedAt time.Time            `db:"generated_at" json:"generated_at"`
	Slots       []TimeSlotAssignment `db:"-" json:"slots,omitempty"`
	CreatedAt   time.Time            `db:"created_at" json:"created_at"`
	UpdatedAt   time.Time            `db:"updated_at" json:"updated_at"`
}

// TimeSlotAssignment places one subject into a venue cell of the weekly grid.
type TimeSlotAssignment struct {
	ID          string       `db:"id" json:"id"`
	TimetableID string       `db:"timetable_id" json:"timetable_id"`
	Day         int          `db:"day_of_week" json:"day_of_week"`
	Start       ClockMinutes `db:"start_min" json:"start_time"`
	End         ClockMinutes `db:"end_min" json:"end_time"`
	SubjectID   string       `db:"subject_id" json:"subject_id"`
	VenueID     string       `db:"venue_id" json:"venue_id"`
	LecturerID  string       `db:"lecturer_id" json:"lecturer_id"`
	Locked      bool         `db:"locked" json:"locked"`
	CreatedAt   time.Time    `db:"created_at" json:"created_at"`
}

// Window returns the assignment's time interval.
func (a TimeSlotAssignment) Window() TimeWindow {
	return TimeWindow{Start: int(a.Start), End: int(a.End)}
}

// AssignmentConflict identifies the resource an attempted placement collided with.
type AssignmentConflict struct {
	Resource   string     `json:"resource"`
	ResourceID string     `json:"resource_id"`
	Day        int        `json:"day_of_week"`
	Window     TimeWindow `json:"window"`
}

// AssignmentConflictError is returned when a placement collides with an existing one.
type AssignmentConflictError struct {
	Message  string             `json:"message"`
	Conflict AssignmentConflict `json:"conflict"`
}

// Error implements the error interface for conflict errors.
func (e *AssignmentConflictError) Error() string {
	if e == nil {
		return "<nil>"
	}
	return e.Message
}
