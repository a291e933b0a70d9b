package models

import "time"

// GroupType distinguishes weekday and weekend cohorts.
type GroupType string

const (
	GroupTypeWeekday GroupType = "WEEKDAY"
	GroupTypeWeekend GroupType = "WEEKEND"
)

// Group is a cohort of students sharing one timetable.
type Group struct {
	ID         string    `db:"id" json:"id"`
	Name       string    `db:"name" json:"name"`
	Faculty    string    `db:"faculty" json:"faculty"`
	Department string    `db:"department" json:"department"`
	Year       int       `db:"year" json:"year"`
	Semester   int       `db:"semester" json:"semester"`
	GroupType  GroupType `db:"group_type" json:"group_type"`
	RosterSize int       `db:"roster_size" json:"roster_size"`
	CreatedAt  time.Time `db:"created_at" json:"created_at"`
	UpdatedAt  time.Time `db:"updated_at" json:"updated_at"`
}
