package dto

import "time"

// CreateSchoolYearRequest registers a new academic year.
type CreateSchoolYearRequest struct {
	Year      string    `json:"year" validate:"required,max=20"`
	StartDate time.Time `json:"startDate" validate:"required"`
	EndDate   time.Time `json:"endDate" validate:"required,gtfield=StartDate"`
}
