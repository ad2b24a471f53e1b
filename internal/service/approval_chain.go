package service

import (
	"fmt"
	"strings"

	"github.com/generyand/umdc-cec-system-sub001/internal/models"
)

// ApprovalChain is the ordered list of roles a proposal must pass through.
type ApprovalChain struct {
	roles []models.UserRole
}

// DefaultApprovalChain returns CEC_HEAD → VP_DIRECTOR → CHIEF_OPERATION_OFFICER.
func DefaultApprovalChain() ApprovalChain {
	chain, _ := NewApprovalChain(models.RoleCECHead, models.RoleVPDirector, models.RoleChiefOperationOfficer)
	return chain
}

// NewApprovalChain validates that roles is non-empty and free of duplicates.
func NewApprovalChain(roles ...models.UserRole) (ApprovalChain, error) {
	if len(roles) == 0 {
		return ApprovalChain{}, fmt.Errorf("approval chain requires at least one role")
	}
	seen := make(map[models.UserRole]struct{}, len(roles))
	copied := make([]models.UserRole, 0, len(roles))
	for _, role := range roles {
		if role == "" {
			return ApprovalChain{}, fmt.Errorf("approval chain contains an empty role")
		}
		if _, dup := seen[role]; dup {
			return ApprovalChain{}, fmt.Errorf("approval chain repeats role %s", role)
		}
		seen[role] = struct{}{}
		copied = append(copied, role)
	}
	return ApprovalChain{roles: copied}, nil
}

// ParseApprovalChain builds a chain from configuration values such as "CEC_HEAD".
func ParseApprovalChain(raw []string) (ApprovalChain, error) {
	roles := make([]models.UserRole, 0, len(raw))
	for _, value := range raw {
		roles = append(roles, models.UserRole(strings.ToUpper(strings.TrimSpace(value))))
	}
	return NewApprovalChain(roles...)
}

// Roles returns a copy of the chain.
func (c ApprovalChain) Roles() []models.UserRole {
	return append([]models.UserRole(nil), c.roles...)
}

// Len returns the number of steps.
func (c ApprovalChain) Len() int { return len(c.roles) }

// First is the step every new or resubmitted proposal starts at.
func (c ApprovalChain) First() models.UserRole {
	if len(c.roles) == 0 {
		return ""
	}
	return c.roles[0]
}

// Last is the final step; it doubles as the terminal marker of an approved proposal.
func (c ApprovalChain) Last() models.UserRole {
	if len(c.roles) == 0 {
		return ""
	}
	return c.roles[len(c.roles)-1]
}

// Contains reports whether role acts as an approver.
func (c ApprovalChain) Contains(role models.UserRole) bool {
	return c.position(role) >= 0
}

// IsLast reports whether role is the final approver.
func (c ApprovalChain) IsLast(role models.UserRole) bool {
	return len(c.roles) > 0 && c.roles[len(c.roles)-1] == role
}

// Next returns the successor of role. Roles outside the chain and the last role have none.
func (c ApprovalChain) Next(role models.UserRole) (models.UserRole, bool) {
	idx := c.position(role)
	if idx < 0 || idx+1 >= len(c.roles) {
		return "", false
	}
	return c.roles[idx+1], true
}

func (c ApprovalChain) position(role models.UserRole) int {
	for i, r := range c.roles {
		if r == role {
			return i
		}
	}
	return -1
}
