// Package repository defines persistence for workspace memberships.
package repository

import (
	"context"

	"identity-service/internal/membership/domain"
	"identity-service/internal/role"
)

// Repository defines persistence for memberships. Lookups return (nil, nil)
// for missing rows; errors are database failures only.
type Repository interface {
	GetByUserAndWorkspace(ctx context.Context, userID, workspaceID string) (*domain.WorkspaceMembership, error)
	ListByUser(ctx context.Context, userID string) ([]*domain.WorkspaceMembership, error)
	ListByWorkspace(ctx context.Context, workspaceID string) ([]*domain.WorkspaceMembership, error)
	CountByUser(ctx context.Context, userID string) (int64, error)
	Create(ctx context.Context, m *domain.WorkspaceMembership) error
	UpdateRoles(ctx context.Context, userID, workspaceID string, roles role.Set) (*domain.WorkspaceMembership, error)
	DeleteByUserAndWorkspace(ctx context.Context, userID, workspaceID string) error
}
