// Package service implements the membership lifecycle: it enforces that a
// user never loses their last workspace voluntarily and that every
// transition is announced to consumers after the local write committed.
package service

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"identity-service/internal/apperr"
	"identity-service/internal/events"
	"identity-service/internal/membership/domain"
	"identity-service/internal/membership/repository"
	"identity-service/internal/role"
	userdomain "identity-service/internal/user/domain"
	workspacedomain "identity-service/internal/workspace/domain"
)

// WorkspaceRepo is the minimal workspace repository needed by the membership service.
type WorkspaceRepo interface {
	GetByID(ctx context.Context, id string) (*workspacedomain.Workspace, error)
}

// UserRepo is the minimal user repository needed by the membership service.
type UserRepo interface {
	GetByID(ctx context.Context, id string) (*userdomain.User, error)
	SetCurrentWorkspace(ctx context.Context, userID, workspaceID string) (*userdomain.User, error)
}

// MembershipService orchestrates create/update/delete of memberships.
type MembershipService struct {
	memberships repository.Repository
	workspaces  WorkspaceRepo
	users       UserRepo
	producer    events.Producer
	log         zerolog.Logger
}

// NewMembershipService returns a MembershipService with the given dependencies.
func NewMembershipService(
	memberships repository.Repository,
	workspaces WorkspaceRepo,
	users UserRepo,
	producer events.Producer,
	log zerolog.Logger,
) *MembershipService {
	return &MembershipService{
		memberships: memberships,
		workspaces:  workspaces,
		users:       users,
		producer:    producer,
		log:         log,
	}
}

// Create adds the user to the workspace with the given roles and emits
// workspace.membership.created. Both sides must exist; a second membership
// for the same pair is a Conflict.
func (s *MembershipService) Create(ctx context.Context, userID, workspaceID string, roles role.Set) (*domain.WorkspaceMembership, error) {
	if roles.IsEmpty() {
		return nil, apperr.New(apperr.KindBadRequest, "role set must not be empty")
	}

	workspace, err := s.workspaces.GetByID(ctx, workspaceID)
	if err != nil {
		return nil, err
	}
	if workspace == nil {
		return nil, apperr.New(apperr.KindNotFound, "workspace not found: %s", workspaceID)
	}
	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, apperr.New(apperr.KindNotFound, "user not found: %s", userID)
	}

	existing, err := s.memberships.GetByUserAndWorkspace(ctx, userID, workspaceID)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return nil, apperr.New(apperr.KindConflict, "user %s already has a membership in workspace %s", userID, workspaceID)
	}

	m := &domain.WorkspaceMembership{
		ID:          uuid.New().String(),
		UserID:      userID,
		WorkspaceID: workspaceID,
		Roles:       roles,
		Status:      domain.StatusActive,
		JoinedAt:    time.Now().UTC(),
	}
	if err := m.Validate(); err != nil {
		return nil, apperr.Wrap(apperr.KindBadRequest, err, "invalid membership")
	}

	outbox := events.NewOutbox(s.producer, s.log)
	if err := s.memberships.Create(ctx, m); err != nil {
		return nil, err
	}
	outbox.Enqueue(events.NewFromContext(ctx, events.TopicMembershipCreated, workspaceID, membershipPayload(m)))
	outbox.Flush(ctx)

	s.log.Info().
		Str("user_id", userID).
		Str("workspace_id", workspaceID).
		Strs("roles", roles.Names()).
		Msg("membership created")
	return m, nil
}

// Update replaces the membership's role set. This is a full overwrite, not
// a merge; callers wanting a partial change must read-modify-write. Emits
// workspace.membership.updated.
func (s *MembershipService) Update(ctx context.Context, userID, workspaceID string, roles role.Set) (*domain.WorkspaceMembership, error) {
	if roles.IsEmpty() {
		return nil, apperr.New(apperr.KindBadRequest, "role set must not be empty")
	}

	outbox := events.NewOutbox(s.producer, s.log)
	updated, err := s.memberships.UpdateRoles(ctx, userID, workspaceID, roles)
	if err != nil {
		return nil, err
	}
	if updated == nil {
		return nil, apperr.New(apperr.KindNotFound, "user %s has no membership in workspace %s", userID, workspaceID)
	}
	outbox.Enqueue(events.NewFromContext(ctx, events.TopicMembershipUpdated, workspaceID, membershipPayload(updated)))
	outbox.Flush(ctx)

	s.log.Info().
		Str("user_id", userID).
		Str("workspace_id", workspaceID).
		Strs("roles", roles.Names()).
		Msg("membership roles replaced")
	return updated, nil
}

// Delete removes the membership row and emits workspace.membership.deleted.
// Without force, removing the user's only membership is a PolicyViolation:
// a user can never voluntarily leave their last workspace. Orphan and
// succession handling happens in the event consumer, not inline, so it can
// be retried independently of this transaction.
func (s *MembershipService) Delete(ctx context.Context, userID, workspaceID string, force bool) error {
	m, err := s.memberships.GetByUserAndWorkspace(ctx, userID, workspaceID)
	if err != nil {
		return err
	}
	if m == nil {
		return apperr.New(apperr.KindNotFound, "user %s has no membership in workspace %s", userID, workspaceID)
	}

	if !force {
		total, err := s.memberships.CountByUser(ctx, userID)
		if err != nil {
			return err
		}
		if total <= 1 {
			return apperr.New(apperr.KindPolicyViolation, "user cannot be removed from their only workspace")
		}
	}

	outbox := events.NewOutbox(s.producer, s.log)
	if err := s.memberships.DeleteByUserAndWorkspace(ctx, userID, workspaceID); err != nil {
		return err
	}
	s.repointCurrentWorkspace(ctx, userID, workspaceID)
	outbox.Enqueue(events.NewFromContext(ctx, events.TopicMembershipDeleted, workspaceID, membershipPayload(m)))
	outbox.Flush(ctx)

	s.log.Info().
		Str("user_id", userID).
		Str("workspace_id", workspaceID).
		Bool("force", force).
		Msg("membership deleted")
	return nil
}

// repointCurrentWorkspace keeps the user's current workspace valid after a
// membership removal: when the removed pair was the current workspace, the
// pointer moves to the user's longest-standing remaining membership, or is
// cleared when none remain. Failures are logged, not fatal, so the deletion
// event still goes out.
func (s *MembershipService) repointCurrentWorkspace(ctx context.Context, userID, removedWorkspaceID string) {
	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		s.log.Error().Err(err).Str("user_id", userID).Msg("current-workspace repoint: user lookup failed")
		return
	}
	if user == nil || user.CurrentWorkspaceID != removedWorkspaceID {
		return
	}

	remaining, err := s.memberships.ListByUser(ctx, userID)
	if err != nil {
		s.log.Error().Err(err).Str("user_id", userID).Msg("current-workspace repoint: membership listing failed")
		return
	}
	next := ""
	if len(remaining) > 0 {
		next = remaining[0].WorkspaceID
	}
	if _, err := s.users.SetCurrentWorkspace(ctx, userID, next); err != nil {
		s.log.Error().Err(err).Str("user_id", userID).Str("workspace_id", next).Msg("current-workspace repoint failed")
		return
	}
	s.log.Info().Str("user_id", userID).Str("from", removedWorkspaceID).Str("to", next).Msg("current workspace repointed")
}

// ListByUser returns all memberships of the user.
func (s *MembershipService) ListByUser(ctx context.Context, userID string) ([]*domain.WorkspaceMembership, error) {
	return s.memberships.ListByUser(ctx, userID)
}

// ListByWorkspace returns all memberships of the workspace in succession
// order (joined_at, then id).
func (s *MembershipService) ListByWorkspace(ctx context.Context, workspaceID string) ([]*domain.WorkspaceMembership, error) {
	return s.memberships.ListByWorkspace(ctx, workspaceID)
}

// GetByUserAndWorkspace returns the membership for the pair, or nil when absent.
func (s *MembershipService) GetByUserAndWorkspace(ctx context.Context, userID, workspaceID string) (*domain.WorkspaceMembership, error) {
	return s.memberships.GetByUserAndWorkspace(ctx, userID, workspaceID)
}

func membershipPayload(m *domain.WorkspaceMembership) events.MembershipPayload {
	return events.MembershipPayload{
		UserID:      m.UserID,
		WorkspaceID: m.WorkspaceID,
		Roles:       m.Roles.Names(),
		Status:      string(m.Status),
		JoinedAt:    m.JoinedAt,
	}
}
