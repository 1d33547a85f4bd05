package store

import (
	"context"
	"fmt"

	"github.com/inovacc/gitcove/internal/config"
	"github.com/inovacc/gitcove/internal/model"
	"github.com/inovacc/gitcove/internal/store/boltdb"
	"github.com/inovacc/gitcove/internal/store/sqlite"
)

// Store defines the metadata operations used by the app.
//
// Lookups return (nil, nil) when the record does not exist.
//
//nolint:interfacebloat // all methods are required for metadata operations
type Store interface {
	Ping() error
	Close() error

	// Repository operations
	CreateRepository(ctx context.Context, repo *model.Repository) error
	GetRepository(ctx context.Context, id int64) (*model.Repository, error)
	GetRepositoryByMapping(ctx context.Context, mapping string) (*model.Repository, error)
	ListRepositories(ctx context.Context, activeOnly bool) ([]model.Repository, error)
	UpdateRepository(ctx context.Context, repo *model.Repository) error
	DeleteRepository(ctx context.Context, id int64) error

	// User operations
	CreateUser(ctx context.Context, user *model.User) error
	GetUser(ctx context.Context, id int64) (*model.User, error)
	GetUserByUsername(ctx context.Context, username string) (*model.User, error)
	GetUserByEmail(ctx context.Context, email string) (*model.User, error)
	ListUsers(ctx context.Context) ([]model.User, error)
	UpdateUser(ctx context.Context, user *model.User) error
	DeleteUser(ctx context.Context, id int64) error

	// Permission operations, keyed by (userID, repositoryID)
	SavePermission(ctx context.Context, perm *model.Permission) error
	GetPermission(ctx context.Context, userID, repositoryID int64) (*model.Permission, error)
	DeletePermission(ctx context.Context, userID, repositoryID int64) error
	ListPermissionsByRepository(ctx context.Context, repositoryID int64) ([]model.Permission, error)
	ListPermissionsByUser(ctx context.Context, userID int64) ([]model.Permission, error)
}

// Open constructs the backend selected by cfg. The caller owns the handle
// and must Close it.
func Open(cfg config.StorageConfig) (Store, error) {
	var (
		s   Store
		err error
	)

	switch cfg.Backend {
	case config.BackendSQLite, "":
		s, err = sqlite.New(cfg.Path)
	case config.BackendBolt:
		s, err = boltdb.New(cfg.Path)
	default:
		return nil, fmt.Errorf("unknown storage backend %q", cfg.Backend)
	}

	if err != nil {
		return nil, err
	}

	if err := s.Ping(); err != nil {
		_ = s.Close()
		return nil, fmt.Errorf("store not reachable: %w", err)
	}

	return s, nil
}
