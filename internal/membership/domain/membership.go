// Package domain holds the membership relation binding a user to a workspace.
package domain

import (
	"errors"
	"time"

	"identity-service/internal/role"
)

// WorkspaceMembership links a user to a workspace with a role set.
// Composite-unique on (UserID, WorkspaceID).
type WorkspaceMembership struct {
	ID          string
	UserID      string
	WorkspaceID string
	Roles       role.Set
	Status      Status
	JoinedAt    time.Time
}

// Status exists for future soft deletion; current deletions remove the row.
type Status string

const (
	StatusActive  Status = "ACTIVE"
	StatusRemoved Status = "REMOVED"
)

// Validate validates the membership for persistence.
func (m *WorkspaceMembership) Validate() error {
	if m.UserID == "" {
		return errors.New("user id is required")
	}
	if m.WorkspaceID == "" {
		return errors.New("workspace id is required")
	}
	if m.Roles.IsEmpty() {
		return errors.New("role set must not be empty")
	}
	if m.Status == "" {
		m.Status = StatusActive
	}
	return nil
}

// IsOwner reports whether the membership carries the OWNER role.
func (m *WorkspaceMembership) IsOwner() bool {
	return m.Roles.Has(role.Owner)
}
