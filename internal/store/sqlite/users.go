package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/inovacc/gitcove/internal/model"
)

const userColumns = `id, username, password, fullname, COALESCE(email, ''), active, created_at`

func scanUser(row rowScanner) (*model.User, error) {
	var user model.User

	if err := row.Scan(&user.ID, &user.Username, &user.Password, &user.Fullname,
		&user.Email, &user.Active, &user.CreatedAt); err != nil {
		return nil, err
	}

	return &user, nil
}

func (s *Store) CreateUser(ctx context.Context, user *model.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if user.CreatedAt.IsZero() {
		user.CreatedAt = time.Now().UTC()
	}

	result, err := s.db.ExecContext(ctx, `
		INSERT INTO users (username, password, fullname, email, active, created_at)
		VALUES (?, ?, ?, NULLIF(?, ''), ?, ?)
	`, user.Username, user.Password, user.Fullname, user.Email, boolToInt(user.Active), user.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to insert user %s: %w", user.Username, err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get user id: %w", err)
	}

	user.ID = id

	return nil
}

func (s *Store) getUserWhere(ctx context.Context, where string, arg any) (*model.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	user, err := scanUser(s.db.QueryRowContext(ctx, `SELECT `+userColumns+` FROM users WHERE `+where, arg))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}

	if err != nil {
		return nil, fmt.Errorf("failed to get user: %w", err)
	}

	return user, nil
}

func (s *Store) GetUser(ctx context.Context, id int64) (*model.User, error) {
	return s.getUserWhere(ctx, `id = ?`, id)
}

func (s *Store) GetUserByUsername(ctx context.Context, username string) (*model.User, error) {
	return s.getUserWhere(ctx, `username = ?`, username)
}

func (s *Store) GetUserByEmail(ctx context.Context, email string) (*model.User, error) {
	return s.getUserWhere(ctx, `email = ?`, email)
}

func (s *Store) ListUsers(ctx context.Context) ([]model.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx, `SELECT `+userColumns+` FROM users ORDER BY username ASC`)
	if err != nil {
		return nil, fmt.Errorf("failed to list users: %w", err)
	}
	defer rows.Close()

	var users []model.User

	for rows.Next() {
		user, err := scanUser(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan user: %w", err)
		}

		users = append(users, *user)
	}

	return users, rows.Err()
}

func (s *Store) UpdateUser(ctx context.Context, user *model.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.ExecContext(ctx, `
		UPDATE users
		SET password = ?, fullname = ?, email = NULLIF(?, ''), active = ?
		WHERE id = ?
	`, user.Password, user.Fullname, user.Email, boolToInt(user.Active), user.ID)
	if err != nil {
		return fmt.Errorf("failed to update user %d: %w", user.ID, err)
	}

	return nil
}

func (s *Store) DeleteUser(ctx context.Context, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, err := s.db.ExecContext(ctx, `DELETE FROM users WHERE id = ?`, id); err != nil {
		return fmt.Errorf("failed to delete user %d: %w", id, err)
	}

	return nil
}
