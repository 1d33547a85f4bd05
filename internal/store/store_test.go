package store

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/inovacc/gitcove/internal/config"
	"github.com/inovacc/gitcove/internal/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupTestStores(t *testing.T) map[string]Store {
	t.Helper()

	stores := make(map[string]Store)

	for _, backend := range []string{config.BackendSQLite, config.BackendBolt} {
		st, err := Open(config.StorageConfig{
			Backend: backend,
			Path:    filepath.Join(t.TempDir(), "meta-"+backend+".db"),
		})
		require.NoError(t, err, backend)

		t.Cleanup(func() { _ = st.Close() })

		stores[backend] = st
	}

	return stores
}

func TestOpen_UnknownBackend(t *testing.T) {
	_, err := Open(config.StorageConfig{Backend: "memory", Path: filepath.Join(t.TempDir(), "x.db")})
	assert.Error(t, err)
}

func TestRepositoryCRUD(t *testing.T) {
	ctx := context.Background()

	for name, st := range setupTestStores(t) {
		t.Run(name, func(t *testing.T) {
			repo := &model.Repository{Name: "Demo", Mapping: "demo", Description: "first", Active: true}
			require.NoError(t, st.CreateRepository(ctx, repo))
			assert.NotZero(t, repo.ID)

			got, err := st.GetRepository(ctx, repo.ID)
			require.NoError(t, err)
			require.NotNil(t, got)
			assert.Equal(t, "demo", got.Mapping)
			assert.True(t, got.Active)
			assert.False(t, got.Archived)
			assert.WithinDuration(t, time.Now(), got.CreatedAt, time.Minute)

			byMapping, err := st.GetRepositoryByMapping(ctx, "demo")
			require.NoError(t, err)
			require.NotNil(t, byMapping)
			assert.Equal(t, repo.ID, byMapping.ID)

			got.Archived = true
			got.Description = "second"
			require.NoError(t, st.UpdateRepository(ctx, got))

			updated, err := st.GetRepository(ctx, repo.ID)
			require.NoError(t, err)
			assert.True(t, updated.Archived)
			assert.Equal(t, "second", updated.Description)
			assert.Equal(t, "demo", updated.Mapping)

			require.NoError(t, st.DeleteRepository(ctx, repo.ID))

			gone, err := st.GetRepository(ctx, repo.ID)
			require.NoError(t, err)
			assert.Nil(t, gone)

			goneByMapping, err := st.GetRepositoryByMapping(ctx, "demo")
			require.NoError(t, err)
			assert.Nil(t, goneByMapping)
		})
	}
}

func TestRepositoryMappingUnique(t *testing.T) {
	ctx := context.Background()

	for name, st := range setupTestStores(t) {
		t.Run(name, func(t *testing.T) {
			require.NoError(t, st.CreateRepository(ctx, &model.Repository{Name: "a", Mapping: "same", Active: true}))
			assert.Error(t, st.CreateRepository(ctx, &model.Repository{Name: "b", Mapping: "same", Active: true}))
		})
	}
}

func TestListRepositories_ActiveOnly(t *testing.T) {
	ctx := context.Background()

	for name, st := range setupTestStores(t) {
		t.Run(name, func(t *testing.T) {
			require.NoError(t, st.CreateRepository(ctx, &model.Repository{Name: "b", Mapping: "bravo", Active: true, Archived: true}))
			require.NoError(t, st.CreateRepository(ctx, &model.Repository{Name: "a", Mapping: "alpha", Active: true}))
			require.NoError(t, st.CreateRepository(ctx, &model.Repository{Name: "c", Mapping: "charlie", Active: false}))

			all, err := st.ListRepositories(ctx, false)
			require.NoError(t, err)
			assert.Len(t, all, 3)

			active, err := st.ListRepositories(ctx, true)
			require.NoError(t, err)
			require.Len(t, active, 2)
			assert.Equal(t, "alpha", active[0].Mapping)
			assert.Equal(t, "bravo", active[1].Mapping)
		})
	}
}

func TestUserCRUD(t *testing.T) {
	ctx := context.Background()

	for name, st := range setupTestStores(t) {
		t.Run(name, func(t *testing.T) {
			user := &model.User{Username: "alice", Password: "digest", Fullname: "Alice", Email: "alice@example.com", Active: true}
			require.NoError(t, st.CreateUser(ctx, user))
			assert.NotZero(t, user.ID)

			// users without email do not collide on the unique index
			require.NoError(t, st.CreateUser(ctx, &model.User{Username: "bob", Password: "x", Active: true}))
			require.NoError(t, st.CreateUser(ctx, &model.User{Username: "carol", Password: "y", Active: true}))

			byName, err := st.GetUserByUsername(ctx, "alice")
			require.NoError(t, err)
			require.NotNil(t, byName)
			assert.Equal(t, "digest", byName.Password)

			byEmail, err := st.GetUserByEmail(ctx, "alice@example.com")
			require.NoError(t, err)
			require.NotNil(t, byEmail)
			assert.Equal(t, user.ID, byEmail.ID)

			byName.Email = "a@example.com"
			byName.Password = "new-digest"
			require.NoError(t, st.UpdateUser(ctx, byName))

			oldEmail, err := st.GetUserByEmail(ctx, "alice@example.com")
			require.NoError(t, err)
			assert.Nil(t, oldEmail)

			reloaded, err := st.GetUser(ctx, user.ID)
			require.NoError(t, err)
			assert.Equal(t, "new-digest", reloaded.Password)
			assert.Equal(t, "a@example.com", reloaded.Email)

			users, err := st.ListUsers(ctx)
			require.NoError(t, err)
			require.Len(t, users, 3)
			assert.Equal(t, "alice", users[0].Username)

			require.NoError(t, st.DeleteUser(ctx, user.ID))

			gone, err := st.GetUserByUsername(ctx, "alice")
			require.NoError(t, err)
			assert.Nil(t, gone)
		})
	}
}

func TestPermissions(t *testing.T) {
	ctx := context.Background()

	for name, st := range setupTestStores(t) {
		t.Run(name, func(t *testing.T) {
			user := &model.User{Username: "dev", Password: "x", Active: true}
			require.NoError(t, st.CreateUser(ctx, user))

			repo := &model.Repository{Name: "r", Mapping: "r", Active: true}
			require.NoError(t, st.CreateRepository(ctx, repo))

			perm := &model.Permission{UserID: user.ID, RepositoryID: repo.ID, ReadOnly: true}
			require.NoError(t, st.SavePermission(ctx, perm))
			firstID := perm.ID

			upsert := &model.Permission{UserID: user.ID, RepositoryID: repo.ID, ReadOnly: false}
			require.NoError(t, st.SavePermission(ctx, upsert))
			assert.Equal(t, firstID, upsert.ID, "same pair keeps its record")

			got, err := st.GetPermission(ctx, user.ID, repo.ID)
			require.NoError(t, err)
			require.NotNil(t, got)
			assert.False(t, got.ReadOnly)

			byRepo, err := st.ListPermissionsByRepository(ctx, repo.ID)
			require.NoError(t, err)
			assert.Len(t, byRepo, 1)

			byUser, err := st.ListPermissionsByUser(ctx, user.ID)
			require.NoError(t, err)
			assert.Len(t, byUser, 1)

			require.NoError(t, st.DeleteRepository(ctx, repo.ID))

			afterDelete, err := st.GetPermission(ctx, user.ID, repo.ID)
			require.NoError(t, err)
			assert.Nil(t, afterDelete, "deleting a repository drops its permissions")
		})
	}
}

func TestDeletePermission(t *testing.T) {
	ctx := context.Background()

	for name, st := range setupTestStores(t) {
		t.Run(name, func(t *testing.T) {
			user := &model.User{Username: "u", Password: "x", Active: true}
			require.NoError(t, st.CreateUser(ctx, user))

			repo := &model.Repository{Name: "r", Mapping: "r", Active: true}
			require.NoError(t, st.CreateRepository(ctx, repo))

			require.NoError(t, st.SavePermission(ctx, &model.Permission{UserID: user.ID, RepositoryID: repo.ID}))
			require.NoError(t, st.DeletePermission(ctx, user.ID, repo.ID))

			got, err := st.GetPermission(ctx, user.ID, repo.ID)
			require.NoError(t, err)
			assert.Nil(t, got)

			// deleting an absent pair is not an error
			assert.NoError(t, st.DeletePermission(ctx, user.ID, repo.ID))
		})
	}
}
