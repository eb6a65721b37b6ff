package repository

import (
	"context"
	"database/sql"
	"errors"
	"strings"

	"github.com/jackc/pgx/v5/pgconn"

	"identity-service/internal/apperr"
	"identity-service/internal/membership/domain"
	"identity-service/internal/role"
)

type PostgresRepository struct {
	db *sql.DB
}

// NewPostgresRepository returns a membership repository backed by the given db.
func NewPostgresRepository(db *sql.DB) *PostgresRepository {
	return &PostgresRepository{db: db}
}

const membershipColumns = "id, user_id, workspace_id, roles, status, joined_at"

// GetByUserAndWorkspace returns the membership for the pair, or nil if not found.
func (r *PostgresRepository) GetByUserAndWorkspace(ctx context.Context, userID, workspaceID string) (*domain.WorkspaceMembership, error) {
	row := r.db.QueryRowContext(ctx,
		"SELECT "+membershipColumns+" FROM workspace_memberships WHERE user_id = $1 AND workspace_id = $2",
		userID, workspaceID)
	return scanMembership(row)
}

// ListByUser returns all memberships of the user ordered by joined_at.
func (r *PostgresRepository) ListByUser(ctx context.Context, userID string) ([]*domain.WorkspaceMembership, error) {
	rows, err := r.db.QueryContext(ctx,
		"SELECT "+membershipColumns+" FROM workspace_memberships WHERE user_id = $1 ORDER BY joined_at, id",
		userID)
	if err != nil {
		return nil, err
	}
	return collectMemberships(rows)
}

// ListByWorkspace returns all memberships of the workspace ordered by
// joined_at with id as the deterministic tie-breaker, the order succession
// relies on.
func (r *PostgresRepository) ListByWorkspace(ctx context.Context, workspaceID string) ([]*domain.WorkspaceMembership, error) {
	rows, err := r.db.QueryContext(ctx,
		"SELECT "+membershipColumns+" FROM workspace_memberships WHERE workspace_id = $1 ORDER BY joined_at, id",
		workspaceID)
	if err != nil {
		return nil, err
	}
	return collectMemberships(rows)
}

// CountByUser returns the number of memberships held by the user.
func (r *PostgresRepository) CountByUser(ctx context.Context, userID string) (int64, error) {
	var n int64
	err := r.db.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM workspace_memberships WHERE user_id = $1", userID).Scan(&n)
	return n, err
}

// Create persists the membership. A duplicate (user, workspace) pair
// surfaces as a Conflict error.
func (r *PostgresRepository) Create(ctx context.Context, m *domain.WorkspaceMembership) error {
	_, err := r.db.ExecContext(ctx,
		"INSERT INTO workspace_memberships (id, user_id, workspace_id, roles, status, joined_at) VALUES ($1, $2, $3, $4, $5, $6)",
		m.ID, m.UserID, m.WorkspaceID, m.Roles.String(), string(m.Status), m.JoinedAt)
	if isUniqueViolation(err) {
		return apperr.Wrap(apperr.KindConflict, err, "membership already exists for user %s in workspace %s", m.UserID, m.WorkspaceID)
	}
	return err
}

// UpdateRoles replaces the role set and returns the updated membership, or
// nil if the pair has no membership.
func (r *PostgresRepository) UpdateRoles(ctx context.Context, userID, workspaceID string, roles role.Set) (*domain.WorkspaceMembership, error) {
	row := r.db.QueryRowContext(ctx,
		"UPDATE workspace_memberships SET roles = $3 WHERE user_id = $1 AND workspace_id = $2 RETURNING "+membershipColumns,
		userID, workspaceID, roles.String())
	return scanMembership(row)
}

// DeleteByUserAndWorkspace removes the membership row. Deleting a missing
// row is not an error.
func (r *PostgresRepository) DeleteByUserAndWorkspace(ctx context.Context, userID, workspaceID string) error {
	_, err := r.db.ExecContext(ctx,
		"DELETE FROM workspace_memberships WHERE user_id = $1 AND workspace_id = $2",
		userID, workspaceID)
	return err
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanMembership(row rowScanner) (*domain.WorkspaceMembership, error) {
	var m domain.WorkspaceMembership
	var roles, status string
	err := row.Scan(&m.ID, &m.UserID, &m.WorkspaceID, &roles, &status, &m.JoinedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	set, err := role.ParseSet(strings.Split(roles, ","))
	if err != nil {
		return nil, err
	}
	m.Roles = set
	m.Status = domain.Status(status)
	return &m, nil
}

func collectMemberships(rows *sql.Rows) ([]*domain.WorkspaceMembership, error) {
	defer rows.Close()
	var out []*domain.WorkspaceMembership
	for rows.Next() {
		m, err := scanMembership(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}
