package boltdb

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"time"

	"github.com/inovacc/gitcove/internal/model"
	"go.etcd.io/bbolt"
)

func (b *Bolt) CreateRepository(_ context.Context, repo *model.Repository) error {
	if repo.CreatedAt.IsZero() {
		repo.CreatedAt = time.Now().UTC()
	}

	return b.storage.Update(func(tx *bbolt.Tx) error {
		repos := tx.Bucket([]byte(bucketRepositories))
		mappings := tx.Bucket([]byte(bucketRepoMappings))

		if mappings.Get([]byte(repo.Mapping)) != nil {
			return fmt.Errorf("repository mapping %s already exists", repo.Mapping)
		}

		id, err := nextID(repos)
		if err != nil {
			return err
		}

		repo.ID = id

		if err := putJSON(repos, itob(id), repo); err != nil {
			return err
		}

		return mappings.Put([]byte(repo.Mapping), itob(id))
	})
}

func (b *Bolt) GetRepository(_ context.Context, id int64) (*model.Repository, error) {
	var repo *model.Repository

	err := b.storage.View(func(tx *bbolt.Tx) error {
		var err error

		repo, err = getJSON[model.Repository](tx.Bucket([]byte(bucketRepositories)), itob(id))

		return err
	})

	return repo, err
}

func (b *Bolt) GetRepositoryByMapping(_ context.Context, mapping string) (*model.Repository, error) {
	var repo *model.Repository

	err := b.storage.View(func(tx *bbolt.Tx) error {
		id := tx.Bucket([]byte(bucketRepoMappings)).Get([]byte(mapping))
		if id == nil {
			return nil
		}

		var err error

		repo, err = getJSON[model.Repository](tx.Bucket([]byte(bucketRepositories)), id)

		return err
	})

	return repo, err
}

func (b *Bolt) ListRepositories(_ context.Context, activeOnly bool) ([]model.Repository, error) {
	var repos []model.Repository

	err := b.storage.View(func(tx *bbolt.Tx) error {
		return tx.Bucket([]byte(bucketRepositories)).ForEach(func(_, v []byte) error {
			var repo model.Repository
			if err := json.Unmarshal(v, &repo); err != nil {
				return err
			}

			if activeOnly && !repo.Active {
				return nil
			}

			repos = append(repos, repo)

			return nil
		})
	})
	if err != nil {
		return nil, err
	}

	sort.Slice(repos, func(i, j int) bool {
		return repos[i].Mapping < repos[j].Mapping
	})

	return repos, nil
}

func (b *Bolt) UpdateRepository(_ context.Context, repo *model.Repository) error {
	return b.storage.Update(func(tx *bbolt.Tx) error {
		bucket := tx.Bucket([]byte(bucketRepositories))

		existing, err := getJSON[model.Repository](bucket, itob(repo.ID))
		if err != nil {
			return err
		}

		if existing == nil {
			return nil
		}

		existing.Name = repo.Name
		existing.Description = repo.Description
		existing.Active = repo.Active
		existing.Archived = repo.Archived

		return putJSON(bucket, itob(repo.ID), existing)
	})
}

// DeleteRepository removes the record, its mapping index and its permissions.
func (b *Bolt) DeleteRepository(_ context.Context, id int64) error {
	return b.storage.Update(func(tx *bbolt.Tx) error {
		bucket := tx.Bucket([]byte(bucketRepositories))

		existing, err := getJSON[model.Repository](bucket, itob(id))
		if err != nil {
			return err
		}

		if existing == nil {
			return nil
		}

		if err := tx.Bucket([]byte(bucketRepoMappings)).Delete([]byte(existing.Mapping)); err != nil {
			return err
		}

		if err := deletePermissionsWhere(tx, func(p model.Permission) bool { return p.RepositoryID == id }); err != nil {
			return err
		}

		return bucket.Delete(itob(id))
	})
}
