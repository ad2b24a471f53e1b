package models

import "time"

// SchoolYear partitions activities by academic year. At most one row is current.
type SchoolYear struct {
	ID        string    `db:"id" json:"id"`
	Year      string    `db:"year" json:"year"`
	StartDate time.Time `db:"start_date" json:"start_date"`
	EndDate   time.Time `db:"end_date" json:"end_date"`
	IsCurrent bool      `db:"is_current" json:"is_current"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
	UpdatedAt time.Time `db:"updated_at" json:"updated_at"`
}
