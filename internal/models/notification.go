package models

import "time"

// NotificationType classifies the workflow event a notification projects.
type NotificationType string

const (
	NotificationTypeProposalStatus   NotificationType = "PROPOSAL_STATUS"
	NotificationTypeActivityReminder NotificationType = "ACTIVITY_REMINDER"
	NotificationTypeDeadlineAlert    NotificationType = "DEADLINE_ALERT"
	NotificationTypeSystemUpdate     NotificationType = "SYSTEM_UPDATE"
	NotificationTypeAssignment       NotificationType = "ASSIGNMENT"
	NotificationTypeDocumentUpdate   NotificationType = "DOCUMENT_UPDATE"
	NotificationTypeFeedback         NotificationType = "FEEDBACK"
	NotificationTypeCommunityUpdate  NotificationType = "COMMUNITY_UPDATE"
	NotificationTypeResourceAlert    NotificationType = "RESOURCE_ALERT"
	NotificationTypeCompliance       NotificationType = "COMPLIANCE"
)

// NotificationStatus is the recipient-controlled read state.
type NotificationStatus string

const (
	NotificationStatusUnread   NotificationStatus = "UNREAD"
	NotificationStatusRead     NotificationStatus = "READ"
	NotificationStatusArchived NotificationStatus = "ARCHIVED"
)

// NotificationPriority orders notifications in the inbox.
type NotificationPriority string

const (
	NotificationPriorityHigh   NotificationPriority = "HIGH"
	NotificationPriorityMedium NotificationPriority = "MEDIUM"
	NotificationPriorityLow    NotificationPriority = "LOW"
)

// Notification is an append-only projection of a workflow event for one user.
type Notification struct {
	ID           string               `db:"id" json:"id"`
	Title        string               `db:"title" json:"title"`
	Content      string               `db:"content" json:"content"`
	Type         NotificationType     `db:"type" json:"type"`
	Status       NotificationStatus   `db:"status" json:"status"`
	Priority     NotificationPriority `db:"priority" json:"priority"`
	UserID       string               `db:"user_id" json:"user_id"`
	ProposalID   *string              `db:"proposal_id" json:"proposal_id,omitempty"`
	ActivityID   *string              `db:"activity_id" json:"activity_id,omitempty"`
	DepartmentID *string              `db:"department_id" json:"department_id,omitempty"`
	ActionURL    *string              `db:"action_url" json:"action_url,omitempty"`
	ActionLabel  *string              `db:"action_label" json:"action_label,omitempty"`
	CreatedAt    time.Time            `db:"created_at" json:"created_at"`
	ReadAt       *time.Time           `db:"read_at" json:"read_at,omitempty"`
}

// NotificationFilter constrains inbox listings.
type NotificationFilter struct {
	UserID   string
	Status   []NotificationStatus
	Type     NotificationType
	Page     int
	PageSize int
}
