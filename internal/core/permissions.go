package core

import (
	"context"
	"strconv"

	"github.com/inovacc/gitcove/internal/model"
	"github.com/inovacc/gitcove/internal/store"
)

// PermissionManager records per-repository grants. Nothing on the protocol
// path consults them yet.
type PermissionManager struct {
	store store.Store
}

func NewPermissionManager(st store.Store) *PermissionManager {
	return &PermissionManager{store: st}
}

// Grant creates or replaces the grant for (userID, repositoryID).
func (m *PermissionManager) Grant(ctx context.Context, userID, repositoryID int64, readOnly bool) (*model.Permission, error) {
	user, err := m.store.GetUser(ctx, userID)
	if err != nil {
		return nil, persistence("get user", err)
	}

	if user == nil {
		return nil, &NotFoundError{Kind: "user", Key: strconv.FormatInt(userID, 10)}
	}

	repo, err := m.store.GetRepository(ctx, repositoryID)
	if err != nil {
		return nil, persistence("get repository", err)
	}

	if repo == nil {
		return nil, &NotFoundError{Kind: "repository", Key: strconv.FormatInt(repositoryID, 10)}
	}

	perm := &model.Permission{UserID: userID, RepositoryID: repositoryID, ReadOnly: readOnly}
	if err := m.store.SavePermission(ctx, perm); err != nil {
		return nil, persistence("save permission", err)
	}

	return perm, nil
}

func (m *PermissionManager) Revoke(ctx context.Context, userID, repositoryID int64) error {
	if err := m.store.DeletePermission(ctx, userID, repositoryID); err != nil {
		return persistence("delete permission", err)
	}

	return nil
}

// Lookup returns the grant for the pair, or nil.
func (m *PermissionManager) Lookup(ctx context.Context, userID, repositoryID int64) (*model.Permission, error) {
	perm, err := m.store.GetPermission(ctx, userID, repositoryID)
	if err != nil {
		return nil, persistence("get permission", err)
	}

	return perm, nil
}

func (m *PermissionManager) ListForRepository(ctx context.Context, repositoryID int64) ([]model.Permission, error) {
	perms, err := m.store.ListPermissionsByRepository(ctx, repositoryID)
	if err != nil {
		return nil, persistence("list permissions", err)
	}

	return perms, nil
}

func (m *PermissionManager) ListForUser(ctx context.Context, userID int64) ([]model.Permission, error) {
	perms, err := m.store.ListPermissionsByUser(ctx, userID)
	if err != nil {
		return nil, persistence("list permissions", err)
	}

	return perms, nil
}
