package core

import (
	"context"
	"crypto/sha1" //nolint:gosec // stored digest format, see HashPassword
	"crypto/subtle"
	"encoding/hex"
	"log/slog"
	"strings"

	"github.com/inovacc/gitcove/internal/model"
	"github.com/inovacc/gitcove/internal/store"
)

// HashPassword returns the stored digest of password: one unsalted SHA-1
// round, hex encoded. This is weak; it matches existing user databases.
func HashPassword(password string) string {
	sum := sha1.Sum([]byte(password)) //nolint:gosec
	return hex.EncodeToString(sum[:])
}

// UserManager manages server accounts.
type UserManager struct {
	store store.Store
}

func NewUserManager(st store.Store) *UserManager {
	return &UserManager{store: st}
}

// Add creates an active user. Username and email must be unique.
func (m *UserManager) Add(ctx context.Context, username, password, fullname, email string) (*model.User, error) {
	username = strings.TrimSpace(username)
	email = strings.TrimSpace(email)

	if username == "" {
		return nil, &ValidationError{Field: "username", Reason: "must not be blank"}
	}

	if password == "" {
		return nil, &ValidationError{Field: "password", Reason: "must not be blank"}
	}

	existing, err := m.store.GetUserByUsername(ctx, username)
	if err != nil {
		return nil, persistence("look up user", err)
	}

	if existing != nil {
		return nil, &ValidationError{Field: "username", Reason: "already exists: " + username}
	}

	if email != "" {
		byEmail, err := m.store.GetUserByEmail(ctx, email)
		if err != nil {
			return nil, persistence("look up user", err)
		}

		if byEmail != nil {
			return nil, &ValidationError{Field: "email", Reason: "already in use: " + email}
		}
	}

	user := &model.User{
		Username: username,
		Password: HashPassword(password),
		Fullname: strings.TrimSpace(fullname),
		Email:    email,
		Active:   true,
	}

	if err := m.store.CreateUser(ctx, user); err != nil {
		return nil, persistence("create user", err)
	}

	slog.Info("created user", "username", username)

	return user, nil
}

func (m *UserManager) List(ctx context.Context) ([]model.User, error) {
	users, err := m.store.ListUsers(ctx)
	if err != nil {
		return nil, persistence("list users", err)
	}

	return users, nil
}

// Get returns the user with username, or NotFoundError.
func (m *UserManager) Get(ctx context.Context, username string) (*model.User, error) {
	user, err := m.store.GetUserByUsername(ctx, strings.TrimSpace(username))
	if err != nil {
		return nil, persistence("get user", err)
	}

	if user == nil {
		return nil, &NotFoundError{Kind: "user", Key: username}
	}

	return user, nil
}

func (m *UserManager) SetPassword(ctx context.Context, username, password string) error {
	if password == "" {
		return &ValidationError{Field: "password", Reason: "must not be blank"}
	}

	user, err := m.Get(ctx, username)
	if err != nil {
		return err
	}

	user.Password = HashPassword(password)

	if err := m.store.UpdateUser(ctx, user); err != nil {
		return persistence("update user", err)
	}

	return nil
}

func (m *UserManager) Delete(ctx context.Context, username string) error {
	user, err := m.Get(ctx, username)
	if err != nil {
		return err
	}

	if err := m.store.DeleteUser(ctx, user.ID); err != nil {
		return persistence("delete user", err)
	}

	slog.Info("deleted user", "username", username)

	return nil
}

// Authenticate reports whether password matches the active user's digest.
func (m *UserManager) Authenticate(ctx context.Context, username, password string) (bool, error) {
	user, err := m.store.GetUserByUsername(ctx, username)
	if err != nil {
		return false, persistence("get user", err)
	}

	if user == nil || !user.Active {
		return false, nil
	}

	return subtle.ConstantTimeCompare([]byte(user.Password), []byte(HashPassword(password))) == 1, nil
}
