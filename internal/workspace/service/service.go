// Package service orchestrates workspace CRUD and current-workspace
// switching on top of the membership lifecycle and identity sync.
package service

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"identity-service/internal/apperr"
	"identity-service/internal/events"
	membershipdomain "identity-service/internal/membership/domain"
	"identity-service/internal/role"
	userdomain "identity-service/internal/user/domain"
	"identity-service/internal/workspace/domain"
	"identity-service/internal/workspace/repository"
)

// MembershipManager is the slice of the membership lifecycle this service uses.
type MembershipManager interface {
	Create(ctx context.Context, userID, workspaceID string, roles role.Set) (*membershipdomain.WorkspaceMembership, error)
	GetByUserAndWorkspace(ctx context.Context, userID, workspaceID string) (*membershipdomain.WorkspaceMembership, error)
	ListByWorkspace(ctx context.Context, workspaceID string) ([]*membershipdomain.WorkspaceMembership, error)
}

// UserRepo is the minimal user repository needed by the workspace service.
type UserRepo interface {
	GetByID(ctx context.Context, id string) (*userdomain.User, error)
	SetCurrentWorkspace(ctx context.Context, userID, workspaceID string) (*userdomain.User, error)
}

// IdentitySync pushes attribute deltas to the external identity provider.
type IdentitySync interface {
	SyncAttributes(ctx context.Context, sub string, user *userdomain.User) error
}

// WorkspaceService orchestrates workspace lifecycle and switching.
type WorkspaceService struct {
	workspaces  repository.Repository
	memberships MembershipManager
	users       UserRepo
	sync        IdentitySync
	producer    events.Producer
	log         zerolog.Logger
}

// NewWorkspaceService returns a WorkspaceService with the given dependencies.
func NewWorkspaceService(
	workspaces repository.Repository,
	memberships MembershipManager,
	users UserRepo,
	sync IdentitySync,
	producer events.Producer,
	log zerolog.Logger,
) *WorkspaceService {
	return &WorkspaceService{
		workspaces:  workspaces,
		memberships: memberships,
		users:       users,
		sync:        sync,
		producer:    producer,
		log:         log,
	}
}

// Get returns the workspace or NotFound.
func (s *WorkspaceService) Get(ctx context.Context, workspaceID string) (*domain.Workspace, error) {
	w, err := s.workspaces.GetByID(ctx, workspaceID)
	if err != nil {
		return nil, err
	}
	if w == nil {
		return nil, apperr.New(apperr.KindNotFound, "workspace not found: %s", workspaceID)
	}
	return w, nil
}

// ListByUser returns all workspaces the user is a member of.
func (s *WorkspaceService) ListByUser(ctx context.Context, userID string) ([]*domain.Workspace, error) {
	return s.workspaces.ListByUser(ctx, userID)
}

// Members returns the users holding a membership in the workspace.
func (s *WorkspaceService) Members(ctx context.Context, workspaceID string) ([]*userdomain.User, error) {
	if _, err := s.Get(ctx, workspaceID); err != nil {
		return nil, err
	}
	memberships, err := s.memberships.ListByWorkspace(ctx, workspaceID)
	if err != nil {
		return nil, err
	}
	members := make([]*userdomain.User, 0, len(memberships))
	for _, m := range memberships {
		u, err := s.users.GetByID(ctx, m.UserID)
		if err != nil {
			return nil, err
		}
		if u != nil {
			members = append(members, u)
		}
	}
	return members, nil
}

// Provision creates a workspace in PROVISIONING, grants the creating user
// the founder role set, and emits workspace.provisioning. The workspace
// turns ACTIVE only when the provisioning confirmation event arrives.
func (s *WorkspaceService) Provision(ctx context.Context, userID, name string) (*domain.Workspace, error) {
	now := time.Now().UTC()
	w := &domain.Workspace{
		ID:        uuid.New().String(),
		Name:      name,
		Status:    domain.StatusProvisioning,
		Plan:      domain.PlanStarter,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := w.Validate(); err != nil {
		return nil, apperr.Wrap(apperr.KindBadRequest, err, "invalid workspace")
	}

	outbox := events.NewOutbox(s.producer, s.log)
	if err := s.workspaces.Create(ctx, w); err != nil {
		return nil, err
	}
	if _, err := s.memberships.Create(ctx, userID, w.ID, role.FounderSet); err != nil {
		// A memberless workspace emits no membership.deleted event, so the
		// deletion resolver can never reclaim it. Remove it here.
		if delErr := s.workspaces.Delete(ctx, w.ID); delErr != nil {
			s.log.Error().Err(delErr).Str("workspace_id", w.ID).Msg("workspace cleanup after failed founder membership also failed")
		}
		return nil, err
	}
	outbox.Enqueue(events.NewFromContext(ctx, events.TopicWorkspaceProvisioning, w.ID, events.WorkspacePayload{
		WorkspaceID: w.ID,
		Name:        w.Name,
		Status:      string(w.Status),
	}))
	outbox.Flush(ctx)

	s.log.Info().Str("workspace_id", w.ID).Str("user_id", userID).Msg("workspace provisioning started")
	return w, nil
}

// ProvisionDefault provisions the user's first workspace. The name derives
// from the display name and is de-duplicated against the user's existing
// workspace names with a numeric suffix.
func (s *WorkspaceService) ProvisionDefault(ctx context.Context, user *userdomain.User) (*domain.Workspace, error) {
	existing, err := s.workspaces.ListNamesByUser(ctx, user.ID)
	if err != nil {
		return nil, err
	}
	name := dedupeName(fmt.Sprintf("%s's Workspace", user.DisplayName()), existing)
	return s.Provision(ctx, user.ID, name)
}

// Activate moves a provisioning workspace to ACTIVE. Activating an absent
// workspace is NotFound so the event consumer can treat it as resolved.
func (s *WorkspaceService) Activate(ctx context.Context, workspaceID string) (*domain.Workspace, error) {
	w, err := s.workspaces.UpdateStatus(ctx, workspaceID, domain.StatusActive)
	if err != nil {
		return nil, err
	}
	if w == nil {
		return nil, apperr.New(apperr.KindNotFound, "workspace not found: %s", workspaceID)
	}
	s.log.Info().Str("workspace_id", workspaceID).Msg("workspace activated")
	return w, nil
}

// Delete transitions the workspace to DELETING, removes the row, and emits
// workspace.deleted. Memberships are expected to be gone already; deletion
// is driven by the orphan resolver once the last membership is removed.
func (s *WorkspaceService) Delete(ctx context.Context, workspaceID string) error {
	w, err := s.workspaces.GetByID(ctx, workspaceID)
	if err != nil {
		return err
	}
	if w == nil {
		return apperr.New(apperr.KindNotFound, "workspace not found: %s", workspaceID)
	}

	if _, err := s.workspaces.UpdateStatus(ctx, workspaceID, domain.StatusDeleting); err != nil {
		return err
	}
	outbox := events.NewOutbox(s.producer, s.log)
	if err := s.workspaces.Delete(ctx, workspaceID); err != nil {
		return err
	}
	outbox.Enqueue(events.NewFromContext(ctx, events.TopicWorkspaceDeleted, workspaceID, events.WorkspacePayload{
		WorkspaceID: workspaceID,
		Name:        w.Name,
		Status:      string(domain.StatusDeleting),
	}))
	outbox.Flush(ctx)

	s.log.Info().Str("workspace_id", workspaceID).Msg("workspace deleted")
	return nil
}

// Switch makes workspaceID the user's current workspace. The user must hold
// a membership there, otherwise AccessDenied. The identity-provider sync
// afterwards is a low-stakes refresh: a failure is logged and surfaced in
// logs only, the switch itself stands.
func (s *WorkspaceService) Switch(ctx context.Context, sub, userID, workspaceID string) (*domain.Workspace, error) {
	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, apperr.New(apperr.KindNotFound, "user not found: %s", userID)
	}

	m, err := s.memberships.GetByUserAndWorkspace(ctx, userID, workspaceID)
	if err != nil {
		return nil, err
	}
	if m == nil {
		return nil, apperr.New(apperr.KindAccessDenied, "user does not have access to workspace %s", workspaceID)
	}

	target, err := s.Get(ctx, workspaceID)
	if err != nil {
		return nil, err
	}

	updated, err := s.users.SetCurrentWorkspace(ctx, userID, workspaceID)
	if err != nil {
		return nil, err
	}
	if updated == nil {
		return nil, apperr.New(apperr.KindNotFound, "user not found: %s", userID)
	}

	if err := s.sync.SyncAttributes(ctx, sub, updated); err != nil {
		s.log.Warn().Err(err).
			Str("sub", sub).
			Str("user_id", userID).
			Str("workspace_id", workspaceID).
			Msg("attribute sync after switch failed; local switch stands")
	}

	s.log.Info().Str("user_id", userID).Str("workspace_id", workspaceID).Msg("switched current workspace")
	return target, nil
}

// dedupeName appends the smallest numeric suffix that makes name unique
// among existing names.
func dedupeName(name string, existing []string) string {
	taken := make(map[string]struct{}, len(existing))
	for _, n := range existing {
		taken[n] = struct{}{}
	}
	if _, ok := taken[name]; !ok {
		return name
	}
	for i := 2; ; i++ {
		candidate := fmt.Sprintf("%s %d", name, i)
		if _, ok := taken[candidate]; !ok {
			return candidate
		}
	}
}
