package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/inovacc/gitcove/internal/model"
)

const repositoryColumns = `id, name, mapping, description, active, archived, created_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRepository(row rowScanner) (*model.Repository, error) {
	var repo model.Repository

	if err := row.Scan(&repo.ID, &repo.Name, &repo.Mapping, &repo.Description,
		&repo.Active, &repo.Archived, &repo.CreatedAt); err != nil {
		return nil, err
	}

	return &repo, nil
}

// CreateRepository inserts repo and fills in its ID and CreatedAt.
func (s *Store) CreateRepository(ctx context.Context, repo *model.Repository) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if repo.CreatedAt.IsZero() {
		repo.CreatedAt = time.Now().UTC()
	}

	result, err := s.db.ExecContext(ctx, `
		INSERT INTO repositories (name, mapping, description, active, archived, created_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`, repo.Name, repo.Mapping, repo.Description, boolToInt(repo.Active), boolToInt(repo.Archived), repo.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to insert repository %s: %w", repo.Mapping, err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get repository id: %w", err)
	}

	repo.ID = id

	return nil
}

func (s *Store) GetRepository(ctx context.Context, id int64) (*model.Repository, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	repo, err := scanRepository(s.db.QueryRowContext(ctx,
		`SELECT `+repositoryColumns+` FROM repositories WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}

	if err != nil {
		return nil, fmt.Errorf("failed to get repository %d: %w", id, err)
	}

	return repo, nil
}

func (s *Store) GetRepositoryByMapping(ctx context.Context, mapping string) (*model.Repository, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	repo, err := scanRepository(s.db.QueryRowContext(ctx,
		`SELECT `+repositoryColumns+` FROM repositories WHERE mapping = ?`, mapping))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}

	if err != nil {
		return nil, fmt.Errorf("failed to get repository %s: %w", mapping, err)
	}

	return repo, nil
}

func (s *Store) ListRepositories(ctx context.Context, activeOnly bool) ([]model.Repository, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	query := `SELECT ` + repositoryColumns + ` FROM repositories`
	if activeOnly {
		query += ` WHERE active = 1`
	}

	query += ` ORDER BY mapping ASC`

	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list repositories: %w", err)
	}
	defer rows.Close()

	var repos []model.Repository

	for rows.Next() {
		repo, err := scanRepository(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan repository: %w", err)
		}

		repos = append(repos, *repo)
	}

	return repos, rows.Err()
}

// UpdateRepository writes the mutable fields of repo. The mapping is immutable.
func (s *Store) UpdateRepository(ctx context.Context, repo *model.Repository) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.ExecContext(ctx, `
		UPDATE repositories
		SET name = ?, description = ?, active = ?, archived = ?
		WHERE id = ?
	`, repo.Name, repo.Description, boolToInt(repo.Active), boolToInt(repo.Archived), repo.ID)
	if err != nil {
		return fmt.Errorf("failed to update repository %d: %w", repo.ID, err)
	}

	return nil
}

func (s *Store) DeleteRepository(ctx context.Context, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, err := s.db.ExecContext(ctx, `DELETE FROM repositories WHERE id = ?`, id); err != nil {
		return fmt.Errorf("failed to delete repository %d: %w", id, err)
	}

	return nil
}
