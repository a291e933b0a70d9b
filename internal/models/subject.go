package models

import (
	"encoding/json"
	"time"

	"github.com/jmoiron/sqlx/types"
)

// Subject represents a course requiring one weekly session.
type Subject struct {
	ID          string         `db:"id" json:"id"`
	Code        string         `db:"code" json:"code"`
	Name        string         `db:"name" json:"name"`
	Department  string         `db:"department" json:"department"`
	LecturerID  string         `db:"lecturer_id" json:"lecturer_id"`
	Active      bool           `db:"active" json:"active"`
	Preferences types.JSONText `db:"preferences" json:"preferences,omitempty"`
	CreatedAt   time.Time      `db:"created_at" json:"created_at"`
	UpdatedAt   time.Time      `db:"updated_at" json:"updated_at"`
}

// SubjectPreferences captures optional scheduling preferences.
type SubjectPreferences struct {
	PreferredDays   []int        `json:"preferred_days,omitempty"`
	PreferredRanges []TimeWindow `json:"preferred_ranges,omitempty"`
	SessionMinutes  int          `json:"session_minutes,omitempty"`
	VenueTypes      []string     `json:"venue_types,omitempty"`
}

// Stated reports whether a day or time-range preference was expressed.
func (p SubjectPreferences) Stated() bool {
	return len(p.PreferredDays) > 0 || len(p.PreferredRanges) > 0
}

// SchedulingPreferences decodes the stored preference payload, best-effort.
func (s Subject) SchedulingPreferences() SubjectPreferences {
	var prefs SubjectPreferences
	if len(s.Preferences) > 0 {
		_ = json.Unmarshal(s.Preferences, &prefs)
	}
	return prefs
}
