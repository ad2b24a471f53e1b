package dto

import "github.com/generyand/umdc-cec-system-sub001/internal/models"

// UpdateActivityStatusRequest is an administrative status override.
type UpdateActivityStatusRequest struct {
	Status models.ActivityStatus `json:"status" validate:"required,oneof=UPCOMING ONGOING COMPLETED CANCELLED"`
}

// ActivityQuery mirrors supported listing filters.
type ActivityQuery struct {
	Status       []string `form:"status"`
	DepartmentID string   `form:"departmentId"`
	SchoolYearID string   `form:"schoolYearId"`
	From         string   `form:"from"`
	To           string   `form:"to"`
	Page         int      `form:"page"`
	PageSize     int      `form:"pageSize"`
}
