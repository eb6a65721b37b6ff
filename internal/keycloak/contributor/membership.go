package contributor

import (
	"context"

	"identity-service/internal/membership/domain"
)

// MembershipLookup is the minimal membership read path the contributor needs.
type MembershipLookup interface {
	GetByUserAndWorkspace(ctx context.Context, userID, workspaceID string) (*domain.WorkspaceMembership, error)
}

const (
	userIDKey      = "user_id"
	workspaceIDKey = "workspace_id"
	rolesKey       = "roles"
)

// MembershipContributor emits user_id, workspace_id, and the sorted,
// upper-cased role names of the user's current workspace membership.
type MembershipContributor struct {
	memberships MembershipLookup
}

// NewMembershipContributor returns the membership-backed contributor.
func NewMembershipContributor(memberships MembershipLookup) *MembershipContributor {
	return &MembershipContributor{memberships: memberships}
}

func (c *MembershipContributor) Name() string { return "membership" }

// Contribute returns the membership attribute slice. A user without a
// workspace context contributes only user_id; a workspace the user has no
// membership in contributes no roles.
func (c *MembershipContributor) Contribute(ctx context.Context, userID, workspaceID string) (map[string][]string, error) {
	attrs := make(map[string][]string)
	if userID != "" {
		attrs[userIDKey] = []string{userID}
	}
	if workspaceID == "" {
		return attrs, nil
	}
	attrs[workspaceIDKey] = []string{workspaceID}

	m, err := c.memberships.GetByUserAndWorkspace(ctx, userID, workspaceID)
	if err != nil {
		return nil, err
	}
	if m != nil && !m.Roles.IsEmpty() {
		attrs[rolesKey] = m.Roles.Names()
	}
	return attrs, nil
}
