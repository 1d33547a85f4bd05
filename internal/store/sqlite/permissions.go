package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/inovacc/gitcove/internal/model"
)

const permissionColumns = `id, user_id, repository_id, read_only`

func scanPermission(row rowScanner) (*model.Permission, error) {
	var perm model.Permission

	if err := row.Scan(&perm.ID, &perm.UserID, &perm.RepositoryID, &perm.ReadOnly); err != nil {
		return nil, err
	}

	return &perm, nil
}

// SavePermission inserts perm or updates the read-only flag of the existing
// (user, repository) pair.
func (s *Store) SavePermission(ctx context.Context, perm *model.Permission) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	err := s.db.QueryRowContext(ctx, `
		INSERT INTO permissions (user_id, repository_id, read_only)
		VALUES (?, ?, ?)
		ON CONFLICT(user_id, repository_id) DO UPDATE SET read_only = excluded.read_only
		RETURNING id
	`, perm.UserID, perm.RepositoryID, boolToInt(perm.ReadOnly)).Scan(&perm.ID)
	if err != nil {
		return fmt.Errorf("failed to save permission for user %d on repository %d: %w",
			perm.UserID, perm.RepositoryID, err)
	}

	return nil
}

func (s *Store) GetPermission(ctx context.Context, userID, repositoryID int64) (*model.Permission, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	perm, err := scanPermission(s.db.QueryRowContext(ctx,
		`SELECT `+permissionColumns+` FROM permissions WHERE user_id = ? AND repository_id = ?`,
		userID, repositoryID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}

	if err != nil {
		return nil, fmt.Errorf("failed to get permission: %w", err)
	}

	return perm, nil
}

func (s *Store) DeletePermission(ctx context.Context, userID, repositoryID int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.ExecContext(ctx,
		`DELETE FROM permissions WHERE user_id = ? AND repository_id = ?`, userID, repositoryID)
	if err != nil {
		return fmt.Errorf("failed to delete permission: %w", err)
	}

	return nil
}

func (s *Store) ListPermissionsByRepository(ctx context.Context, repositoryID int64) ([]model.Permission, error) {
	return s.listPermissions(ctx, `repository_id = ?`, repositoryID)
}

func (s *Store) ListPermissionsByUser(ctx context.Context, userID int64) ([]model.Permission, error) {
	return s.listPermissions(ctx, `user_id = ?`, userID)
}

func (s *Store) listPermissions(ctx context.Context, where string, arg int64) ([]model.Permission, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx,
		`SELECT `+permissionColumns+` FROM permissions WHERE `+where+` ORDER BY id ASC`, arg)
	if err != nil {
		return nil, fmt.Errorf("failed to list permissions: %w", err)
	}
	defer rows.Close()

	var perms []model.Permission

	for rows.Next() {
		perm, err := scanPermission(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan permission: %w", err)
		}

		perms = append(perms, *perm)
	}

	return perms, rows.Err()
}
