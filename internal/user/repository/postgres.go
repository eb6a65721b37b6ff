package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/jackc/pgx/v5/pgconn"

	"identity-service/internal/apperr"
	"identity-service/internal/user/domain"
)

type PostgresRepository struct {
	db *sql.DB
}

// NewPostgresRepository returns a user repository backed by the given db.
func NewPostgresRepository(db *sql.DB) *PostgresRepository {
	return &PostgresRepository{db: db}
}

const userColumns = "id, email, given_name, family_name, is_active, COALESCE(current_workspace_id::text, ''), created_at, updated_at"

// GetByID returns the user for id, or nil if not found.
func (r *PostgresRepository) GetByID(ctx context.Context, id string) (*domain.User, error) {
	row := r.db.QueryRowContext(ctx,
		"SELECT "+userColumns+" FROM users WHERE id = $1", id)
	return scanUser(row)
}

// GetByEmail returns the user for email, or nil if not found.
func (r *PostgresRepository) GetByEmail(ctx context.Context, email string) (*domain.User, error) {
	row := r.db.QueryRowContext(ctx,
		"SELECT "+userColumns+" FROM users WHERE email = $1", email)
	return scanUser(row)
}

// Create persists the user. A duplicate email surfaces as a Conflict error
// so the bootstrap race can catch it and re-read.
func (r *PostgresRepository) Create(ctx context.Context, u *domain.User) error {
	_, err := r.db.ExecContext(ctx,
		"INSERT INTO users (id, email, given_name, family_name, is_active, current_workspace_id, created_at, updated_at) VALUES ($1, $2, $3, $4, $5, NULLIF($6, '')::uuid, $7, $8)",
		u.ID, u.Email, u.GivenName, u.FamilyName, u.Active, u.CurrentWorkspaceID, u.CreatedAt, u.UpdatedAt)
	if isUniqueViolation(err) {
		return apperr.Wrap(apperr.KindConflict, err, "email already registered: %s", u.Email)
	}
	return err
}

// Update persists mutable profile fields and returns the updated row, or nil
// if the user is gone.
func (r *PostgresRepository) Update(ctx context.Context, u *domain.User) (*domain.User, error) {
	row := r.db.QueryRowContext(ctx,
		`UPDATE users SET email = $2, given_name = $3, family_name = $4, is_active = $5, updated_at = $6
		 WHERE id = $1 RETURNING `+userColumns,
		u.ID, u.Email, u.GivenName, u.FamilyName, u.Active, time.Now().UTC())
	updated, err := scanUser(row)
	if isUniqueViolation(err) {
		return nil, apperr.Wrap(apperr.KindConflict, err, "email already registered: %s", u.Email)
	}
	return updated, err
}

// SetCurrentWorkspace points the user's current workspace at workspaceID.
func (r *PostgresRepository) SetCurrentWorkspace(ctx context.Context, userID, workspaceID string) (*domain.User, error) {
	row := r.db.QueryRowContext(ctx,
		"UPDATE users SET current_workspace_id = NULLIF($2, '')::uuid, updated_at = $3 WHERE id = $1 RETURNING "+userColumns,
		userID, workspaceID, time.Now().UTC())
	return scanUser(row)
}

// Delete removes the user row. Deleting a missing row is not an error.
func (r *PostgresRepository) Delete(ctx context.Context, id string) error {
	_, err := r.db.ExecContext(ctx, "DELETE FROM users WHERE id = $1", id)
	return err
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanUser(row rowScanner) (*domain.User, error) {
	var u domain.User
	err := row.Scan(&u.ID, &u.Email, &u.GivenName, &u.FamilyName, &u.Active, &u.CurrentWorkspaceID, &u.CreatedAt, &u.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return &u, nil
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}
