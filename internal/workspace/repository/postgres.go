package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"identity-service/internal/workspace/domain"
)

type PostgresRepository struct {
	db *sql.DB
}

// NewPostgresRepository returns a workspace repository backed by the given db.
func NewPostgresRepository(db *sql.DB) *PostgresRepository {
	return &PostgresRepository{db: db}
}

const workspaceColumns = "id, COALESCE(name, ''), status, plan, created_at, updated_at"

// GetByID returns the workspace for id, or nil if not found.
func (r *PostgresRepository) GetByID(ctx context.Context, id string) (*domain.Workspace, error) {
	row := r.db.QueryRowContext(ctx,
		"SELECT "+workspaceColumns+" FROM workspaces WHERE id = $1", id)
	return scanWorkspace(row)
}

// ListByUser returns the workspaces the user holds a membership in, ordered
// by the membership's joined_at.
func (r *PostgresRepository) ListByUser(ctx context.Context, userID string) ([]*domain.Workspace, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT w.id, COALESCE(w.name, ''), w.status, w.plan, w.created_at, w.updated_at
		 FROM workspaces w
		 JOIN workspace_memberships m ON m.workspace_id = w.id
		 WHERE m.user_id = $1
		 ORDER BY m.joined_at, m.id`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []*domain.Workspace
	for rows.Next() {
		w, err := scanWorkspace(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, w)
	}
	return out, rows.Err()
}

// ListNamesByUser returns the names of the user's workspaces, used to
// de-duplicate a derived default workspace name.
func (r *PostgresRepository) ListNamesByUser(ctx context.Context, userID string) ([]string, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT COALESCE(w.name, '') FROM workspaces w
		 JOIN workspace_memberships m ON m.workspace_id = w.id
		 WHERE m.user_id = $1`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, err
		}
		out = append(out, name)
	}
	return out, rows.Err()
}

// Create persists the workspace.
func (r *PostgresRepository) Create(ctx context.Context, w *domain.Workspace) error {
	_, err := r.db.ExecContext(ctx,
		"INSERT INTO workspaces (id, name, status, plan, created_at, updated_at) VALUES ($1, NULLIF($2, ''), $3, $4, $5, $6)",
		w.ID, w.Name, string(w.Status), string(w.Plan), w.CreatedAt, w.UpdatedAt)
	return err
}

// UpdateStatus transitions the workspace status and returns the updated row,
// or nil if the workspace is gone.
func (r *PostgresRepository) UpdateStatus(ctx context.Context, id string, status domain.Status) (*domain.Workspace, error) {
	row := r.db.QueryRowContext(ctx,
		"UPDATE workspaces SET status = $2, updated_at = $3 WHERE id = $1 RETURNING "+workspaceColumns,
		id, string(status), time.Now().UTC())
	return scanWorkspace(row)
}

// Delete removes the workspace row. Deleting a missing row is not an error.
func (r *PostgresRepository) Delete(ctx context.Context, id string) error {
	_, err := r.db.ExecContext(ctx, "DELETE FROM workspaces WHERE id = $1", id)
	return err
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanWorkspace(row rowScanner) (*domain.Workspace, error) {
	var w domain.Workspace
	var status, plan string
	err := row.Scan(&w.ID, &w.Name, &status, &plan, &w.CreatedAt, &w.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	w.Status = domain.Status(status)
	w.Plan = domain.Plan(plan)
	return &w, nil
}
