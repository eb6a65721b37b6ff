// Package repository defines persistence for users.
package repository

import (
	"context"

	"identity-service/internal/user/domain"
)

// Repository defines persistence for users. Lookups return (nil, nil) for
// missing rows; errors are database failures only, except Create which
// surfaces a Conflict error on a duplicate email.
type Repository interface {
	GetByID(ctx context.Context, id string) (*domain.User, error)
	GetByEmail(ctx context.Context, email string) (*domain.User, error)
	Create(ctx context.Context, u *domain.User) error
	Update(ctx context.Context, u *domain.User) (*domain.User, error)
	SetCurrentWorkspace(ctx context.Context, userID, workspaceID string) (*domain.User, error)
	Delete(ctx context.Context, id string) error
}
