package boltdb

import (
	"context"
	"encoding/json"

	"github.com/inovacc/gitcove/internal/model"
	"go.etcd.io/bbolt"
)

// SavePermission inserts perm or updates the existing (user, repository) pair.
func (b *Bolt) SavePermission(_ context.Context, perm *model.Permission) error {
	return b.storage.Update(func(tx *bbolt.Tx) error {
		perms := tx.Bucket([]byte(bucketPermissions))
		pairs := tx.Bucket([]byte(bucketPermPairs))
		key := pairKey(perm.UserID, perm.RepositoryID)

		if id := pairs.Get(key); id != nil {
			perm.ID = btoi(id)
			return putJSON(perms, itob(perm.ID), perm)
		}

		id, err := nextID(perms)
		if err != nil {
			return err
		}

		perm.ID = id

		if err := putJSON(perms, itob(id), perm); err != nil {
			return err
		}

		return pairs.Put(key, itob(id))
	})
}

func (b *Bolt) GetPermission(_ context.Context, userID, repositoryID int64) (*model.Permission, error) {
	var perm *model.Permission

	err := b.storage.View(func(tx *bbolt.Tx) error {
		id := tx.Bucket([]byte(bucketPermPairs)).Get(pairKey(userID, repositoryID))
		if id == nil {
			return nil
		}

		var err error

		perm, err = getJSON[model.Permission](tx.Bucket([]byte(bucketPermissions)), id)

		return err
	})

	return perm, err
}

func (b *Bolt) DeletePermission(_ context.Context, userID, repositoryID int64) error {
	return b.storage.Update(func(tx *bbolt.Tx) error {
		pairs := tx.Bucket([]byte(bucketPermPairs))
		key := pairKey(userID, repositoryID)

		id := pairs.Get(key)
		if id == nil {
			return nil
		}

		if err := tx.Bucket([]byte(bucketPermissions)).Delete(itob(btoi(id))); err != nil {
			return err
		}

		return pairs.Delete(key)
	})
}

func (b *Bolt) ListPermissionsByRepository(_ context.Context, repositoryID int64) ([]model.Permission, error) {
	return b.listPermissions(func(p model.Permission) bool { return p.RepositoryID == repositoryID })
}

func (b *Bolt) ListPermissionsByUser(_ context.Context, userID int64) ([]model.Permission, error) {
	return b.listPermissions(func(p model.Permission) bool { return p.UserID == userID })
}

func (b *Bolt) listPermissions(match func(model.Permission) bool) ([]model.Permission, error) {
	var perms []model.Permission

	err := b.storage.View(func(tx *bbolt.Tx) error {
		return tx.Bucket([]byte(bucketPermissions)).ForEach(func(_, v []byte) error {
			var perm model.Permission
			if err := json.Unmarshal(v, &perm); err != nil {
				return err
			}

			if match(perm) {
				perms = append(perms, perm)
			}

			return nil
		})
	})

	return perms, err
}

// deletePermissionsWhere removes matching permissions and their pair index
// entries inside an open write transaction.
func deletePermissionsWhere(tx *bbolt.Tx, match func(model.Permission) bool) error {
	perms := tx.Bucket([]byte(bucketPermissions))
	pairs := tx.Bucket([]byte(bucketPermPairs))

	var doomed []model.Permission

	if err := perms.ForEach(func(_, v []byte) error {
		var perm model.Permission
		if err := json.Unmarshal(v, &perm); err != nil {
			return err
		}

		if match(perm) {
			doomed = append(doomed, perm)
		}

		return nil
	}); err != nil {
		return err
	}

	for _, perm := range doomed {
		if err := perms.Delete(itob(perm.ID)); err != nil {
			return err
		}

		if err := pairs.Delete(pairKey(perm.UserID, perm.RepositoryID)); err != nil {
			return err
		}
	}

	return nil
}
