package service

import (
	"fmt"
	"strings"
	"time"

	"github.com/generyand/umdc-cec-system-sub001/internal/models"
)

// NotificationTemplates renders workflow events into notifications. Templates only compute
// text, priority and links.
type NotificationTemplates struct {
	portalBaseURL string
}

// NewNotificationTemplates builds templates whose action links are rooted at portalBaseURL.
func NewNotificationTemplates(portalBaseURL string) NotificationTemplates {
	return NotificationTemplates{portalBaseURL: strings.TrimRight(portalBaseURL, "/")}
}

// ReviewNeeded asks every holder of the current step to review the proposal.
func (t NotificationTemplates) ReviewNeeded(proposal *models.Proposal, recipients []models.User) []models.Notification {
	out := make([]models.Notification, 0, len(recipients))
	for _, user := range recipients {
		n := t.proposalNotification(proposal, user.ID,
			"Proposal awaiting your review",
			fmt.Sprintf("%q is waiting for your decision as %s.", proposal.Title, roleLabel(stepOf(proposal))),
			models.NotificationTypeProposalStatus, models.NotificationPriorityHigh, "Review proposal")
		out = append(out, n)
	}
	return out
}

// StepApproved tells the owner the proposal moved forward.
func (t NotificationTemplates) StepApproved(proposal *models.Proposal, approvedBy, next models.UserRole) models.Notification {
	return t.proposalNotification(proposal, proposal.UserID,
		"Proposal moved to the next approver",
		fmt.Sprintf("%q was approved by the %s and is now with the %s.", proposal.Title, roleLabel(approvedBy), roleLabel(next)),
		models.NotificationTypeProposalStatus, models.NotificationPriorityLow, "View proposal")
}

// ProposalApproved tells the owner the proposal is fully approved and scheduled.
func (t NotificationTemplates) ProposalApproved(proposal *models.Proposal, activity *models.Activity) models.Notification {
	n := t.proposalNotification(proposal, proposal.UserID,
		"Proposal approved",
		fmt.Sprintf("%q has been fully approved and scheduled for %s.", proposal.Title, formatDate(proposal.TargetDate)),
		models.NotificationTypeProposalStatus, models.NotificationPriorityMedium, "View activity")
	if activity != nil {
		n.ActivityID = stringPtr(activity.ID)
		n.ActionURL = stringPtr(t.link("/activities/" + activity.ID))
	}
	return n
}

// ProposalReturned tells the owner why the proposal came back.
func (t NotificationTemplates) ProposalReturned(proposal *models.Proposal, returnedBy models.UserRole, reason string) models.Notification {
	return t.proposalNotification(proposal, proposal.UserID,
		"Proposal returned for revision",
		fmt.Sprintf("%q was returned by the %s: %s", proposal.Title, roleLabel(returnedBy), reason),
		models.NotificationTypeProposalStatus, models.NotificationPriorityHigh, "Revise proposal")
}

// ApprovalReminder nudges an approver about a stale proposal.
func (t NotificationTemplates) ApprovalReminder(stale models.StaleProposal, approver models.User, now time.Time) models.Notification {
	waiting := int(now.Sub(stale.LastUpdated).Hours() / 24)
	return models.Notification{
		Title: "Reminder: proposal pending approval",
		Content: fmt.Sprintf("%q submitted by %s on %s has been waiting for your decision for %d days.",
			stale.Title, submitterLabel(stale), formatDate(stale.SubmittedAt), waiting),
		Type:        models.NotificationTypeDeadlineAlert,
		Priority:    models.NotificationPriorityHigh,
		UserID:      approver.ID,
		ProposalID:  stringPtr(stale.ProposalID),
		ActionURL:   stringPtr(t.link("/proposals/" + stale.ProposalID)),
		ActionLabel: stringPtr("Review proposal"),
	}
}

// ReminderEmail renders the escalation email body.
func (t NotificationTemplates) ReminderEmail(stale models.StaleProposal, approver models.User) (string, string) {
	subject := fmt.Sprintf("Pending approval: %s", stale.Title)
	var b strings.Builder
	fmt.Fprintf(&b, "Hello %s,\n\n", approver.FullName)
	fmt.Fprintf(&b, "The proposal %q submitted by %s on %s is still awaiting your decision as %s.\n",
		stale.Title, submitterLabel(stale), formatDate(stale.SubmittedAt), roleLabel(stale.Step))
	if link := t.link("/proposals/" + stale.ProposalID); link != "" {
		fmt.Fprintf(&b, "\nReview it here: %s\n", link)
	}
	b.WriteString("\nCommunity Extension Center\n")
	return subject, b.String()
}

// ActivityStarted tells the proposal owner the activity is now ongoing.
func (t NotificationTemplates) ActivityStarted(activity models.Activity, ownerID string) models.Notification {
	return models.Notification{
		Title:        "Activity is now ongoing",
		Content:      fmt.Sprintf("%q starts today (%s).", activity.Title, formatDate(activity.TargetDate)),
		Type:         models.NotificationTypeActivityReminder,
		Priority:     models.NotificationPriorityMedium,
		UserID:       ownerID,
		ProposalID:   activity.ProposalID,
		ActivityID:   stringPtr(activity.ID),
		DepartmentID: stringPtr(activity.DepartmentID),
		ActionURL:    stringPtr(t.link("/activities/" + activity.ID)),
		ActionLabel:  stringPtr("View activity"),
	}
}

func (t NotificationTemplates) proposalNotification(proposal *models.Proposal, userID, title, content string, typ models.NotificationType, priority models.NotificationPriority, label string) models.Notification {
	return models.Notification{
		Title:        title,
		Content:      content,
		Type:         typ,
		Priority:     priority,
		UserID:       userID,
		ProposalID:   stringPtr(proposal.ID),
		DepartmentID: proposal.DepartmentID,
		ActionURL:    stringPtr(t.link("/proposals/" + proposal.ID)),
		ActionLabel:  stringPtr(label),
	}
}

func (t NotificationTemplates) link(path string) string {
	return t.portalBaseURL + path
}

func stepOf(p *models.Proposal) models.UserRole {
	if p.CurrentApprovalStep == nil {
		return ""
	}
	return *p.CurrentApprovalStep
}

func roleLabel(role models.UserRole) string {
	switch role {
	case models.RoleCECHead:
		return "CEC Head"
	case models.RoleVPDirector:
		return "VP Director"
	case models.RoleChiefOperationOfficer:
		return "Chief Operation Officer"
	case "":
		return "approver"
	}
	return strings.ReplaceAll(strings.ToLower(string(role)), "_", " ")
}

func submitterLabel(stale models.StaleProposal) string {
	if stale.SubmitterName != "" {
		return stale.SubmitterName
	}
	return "a staff member"
}

func formatDate(t time.Time) string {
	return t.Format("January 2, 2006")
}

func stringPtr(v string) *string {
	return &v
}
