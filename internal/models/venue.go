package models

import "time"

// Venue is a bookable room with a capacity and type.
type Venue struct {
	ID         string    `db:"id" json:"id"`
	Name       string    `db:"name" json:"name"`
	Building   string    `db:"building" json:"building"`
	Department string    `db:"department" json:"department"`
	VenueType  string    `db:"venue_type" json:"venue_type"`
	Capacity   int       `db:"capacity" json:"capacity"`
	Active     bool      `db:"active" json:"active"`
	CreatedAt  time.Time `db:"created_at" json:"created_at"`
	UpdatedAt  time.Time `db:"updated_at" json:"updated_at"`
}
