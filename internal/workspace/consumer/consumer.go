// Package consumer resolves workspace state transitions that are driven by
// events rather than requests: activation after provisioning, and the
// orphan/succession decision after a membership is removed.
package consumer

import (
	"context"

	"github.com/rs/zerolog"

	"identity-service/internal/apperr"
	"identity-service/internal/events"
	membershipdomain "identity-service/internal/membership/domain"
	"identity-service/internal/role"
	workspacedomain "identity-service/internal/workspace/domain"
)

// WorkspaceManager is the slice of the workspace service used by the resolver.
type WorkspaceManager interface {
	Activate(ctx context.Context, workspaceID string) (*workspacedomain.Workspace, error)
	Delete(ctx context.Context, workspaceID string) error
}

// MembershipManager is the slice of the membership service used by the resolver.
type MembershipManager interface {
	ListByWorkspace(ctx context.Context, workspaceID string) ([]*membershipdomain.WorkspaceMembership, error)
	Update(ctx context.Context, userID, workspaceID string, roles role.Set) (*membershipdomain.WorkspaceMembership, error)
}

// WorkspaceEventConsumer holds the handlers wired into the event worker.
// Every handler must tolerate redelivery: the transport is at-least-once
// and an earlier delivery may already have resolved the workspace.
type WorkspaceEventConsumer struct {
	workspaces  WorkspaceManager
	memberships MembershipManager
	log         zerolog.Logger
}

// NewWorkspaceEventConsumer returns a consumer over the given services.
func NewWorkspaceEventConsumer(workspaces WorkspaceManager, memberships MembershipManager, log zerolog.Logger) *WorkspaceEventConsumer {
	return &WorkspaceEventConsumer{workspaces: workspaces, memberships: memberships, log: log}
}

// HandleWorkspaceCreated confirms provisioning by moving the workspace to
// ACTIVE. A workspace that no longer exists was resolved by another path.
func (c *WorkspaceEventConsumer) HandleWorkspaceCreated(ctx context.Context, env events.Envelope) error {
	var payload events.WorkspacePayload
	if err := env.DecodePayload(&payload); err != nil {
		return apperr.Wrap(apperr.KindBadRequest, err, "malformed workspace payload")
	}

	if _, err := c.workspaces.Activate(ctx, payload.WorkspaceID); err != nil {
		if apperr.IsKind(err, apperr.KindNotFound) {
			c.log.Debug().Str("workspace_id", payload.WorkspaceID).Msg("workspace gone before activation; nothing to do")
			return nil
		}
		return err
	}
	return nil
}

// HandleMembershipDeleted decides what becomes of the workspace after a
// member left. With no members left the workspace is deleted; otherwise the
// longest-standing member is promoted to owner if no owner remains from the
// departure. The decision is recomputed from current state on every
// delivery, so redelivery converges on the same outcome.
func (c *WorkspaceEventConsumer) HandleMembershipDeleted(ctx context.Context, env events.Envelope) error {
	var payload events.MembershipPayload
	if err := env.DecodePayload(&payload); err != nil {
		return apperr.Wrap(apperr.KindBadRequest, err, "malformed membership payload")
	}

	remaining, err := c.memberships.ListByWorkspace(ctx, payload.WorkspaceID)
	if err != nil {
		return err
	}

	if len(remaining) == 0 {
		err := c.workspaces.Delete(ctx, payload.WorkspaceID)
		if apperr.IsKind(err, apperr.KindNotFound) {
			c.log.Debug().Str("workspace_id", payload.WorkspaceID).Msg("orphaned workspace already deleted")
			return nil
		}
		if err != nil {
			return err
		}
		c.log.Info().Str("workspace_id", payload.WorkspaceID).Msg("orphaned workspace deleted")
		return nil
	}

	for _, m := range remaining {
		if m.IsOwner() {
			// An owner survives; no succession needed.
			return nil
		}
	}

	// remaining is ordered by joined_at then id; the head is the successor.
	successor := remaining[0]
	if _, err := c.memberships.Update(ctx, successor.UserID, successor.WorkspaceID, role.FounderSet); err != nil {
		if apperr.IsKind(err, apperr.KindNotFound) {
			c.log.Debug().
				Str("workspace_id", payload.WorkspaceID).
				Str("user_id", successor.UserID).
				Msg("successor membership gone; will resolve on the next deletion event")
			return nil
		}
		return err
	}

	c.log.Info().
		Str("workspace_id", payload.WorkspaceID).
		Str("user_id", successor.UserID).
		Msg("ownership transferred to longest-standing member")
	return nil
}
