package models

import "time"

// UserRole is the position a user holds in the organisation directory.
type UserRole string

const (
	RoleSuperAdmin            UserRole = "SUPERADMIN"
	RoleAdmin                 UserRole = "ADMIN"
	RoleStaff                 UserRole = "STAFF"
	RoleOfficeAssistant       UserRole = "OFFICE_ASSISTANT"
	RoleDean                  UserRole = "DEAN"
	RoleCECHead               UserRole = "CEC_HEAD"
	RoleVPDirector            UserRole = "VP_DIRECTOR"
	RoleChiefOperationOfficer UserRole = "CHIEF_OPERATION_OFFICER"
)

// User mirrors the directory row the workflow needs; the directory itself is managed elsewhere.
type User struct {
	ID           string    `db:"id" json:"id"`
	Email        string    `db:"email" json:"email"`
	FullName     string    `db:"full_name" json:"full_name"`
	Role         UserRole  `db:"role" json:"role"`
	DepartmentID *string   `db:"department_id" json:"department_id,omitempty"`
	Active       bool      `db:"active" json:"active"`
	CreatedAt    time.Time `db:"created_at" json:"created_at"`
	UpdatedAt    time.Time `db:"updated_at" json:"updated_at"`
}

// Pagination contains pagination metadata returned in list responses.
type Pagination struct {
	Page       int `json:"page"`
	PageSize   int `json:"page_size"`
	TotalCount int `json:"total_count"`
}
