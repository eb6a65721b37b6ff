// Package repository defines persistence for workspaces.
package repository

import (
	"context"

	"identity-service/internal/workspace/domain"
)

// Repository defines persistence for workspaces. Lookups return (nil, nil)
// for missing rows; errors are database failures only.
type Repository interface {
	GetByID(ctx context.Context, id string) (*domain.Workspace, error)
	ListByUser(ctx context.Context, userID string) ([]*domain.Workspace, error)
	ListNamesByUser(ctx context.Context, userID string) ([]string, error)
	Create(ctx context.Context, w *domain.Workspace) error
	UpdateStatus(ctx context.Context, id string, status domain.Status) (*domain.Workspace, error)
	Delete(ctx context.Context, id string) error
}
