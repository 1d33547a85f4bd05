// Package boltdb provides bbolt metadata storage for gitcove.
package boltdb

import (
	"encoding/binary"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"go.etcd.io/bbolt"
)

const (
	bucketRepositories = "repositories" // key: id -> Repository JSON
	bucketRepoMappings = "repo_mappings" // key: mapping -> id
	bucketUsers        = "users"         // key: id -> user JSON
	bucketUserNames    = "user_names"    // key: username -> id
	bucketUserEmails   = "user_emails"   // key: email -> id
	bucketPermissions  = "permissions"   // key: id -> Permission JSON
	bucketPermPairs    = "perm_pairs"    // key: userID|repositoryID -> id
)

var buckets = []string{
	bucketRepositories,
	bucketRepoMappings,
	bucketUsers,
	bucketUserNames,
	bucketUserEmails,
	bucketPermissions,
	bucketPermPairs,
}

// Bolt implements the store.Store interface on top of bbolt.
type Bolt struct {
	storage *bbolt.DB
}

// New opens or creates the bbolt database at path.
func New(path string) (*Bolt, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return nil, fmt.Errorf("creating database directory: %w", err)
	}

	instance, err := bbolt.Open(path, 0o600, &bbolt.Options{Timeout: 1 * time.Second})
	if err != nil {
		return nil, err
	}

	if err := instance.Update(func(tx *bbolt.Tx) error {
		for _, name := range buckets {
			if _, err := tx.CreateBucketIfNotExists([]byte(name)); err != nil {
				return fmt.Errorf("creating bucket %s: %w", name, err)
			}
		}

		return nil
	}); err != nil {
		_ = instance.Close()
		return nil, err
	}

	return &Bolt{storage: instance}, nil
}

func (b *Bolt) Ping() error {
	return b.storage.View(func(tx *bbolt.Tx) error {
		if tx.Bucket([]byte(bucketRepositories)) == nil {
			return fmt.Errorf("bucket %s missing", bucketRepositories)
		}

		return nil
	})
}

func (b *Bolt) Close() error {
	return b.storage.Close()
}

func itob(v int64) []byte {
	buf := make([]byte, 8)
	binary.BigEndian.PutUint64(buf, uint64(v))

	return buf
}

func btoi(buf []byte) int64 {
	return int64(binary.BigEndian.Uint64(buf))
}

func pairKey(userID, repositoryID int64) []byte {
	return append(itob(userID), itob(repositoryID)...)
}

func putJSON(bucket *bbolt.Bucket, key []byte, value any) error {
	data, err := json.Marshal(value)
	if err != nil {
		return err
	}

	return bucket.Put(key, data)
}

func getJSON[T any](bucket *bbolt.Bucket, key []byte) (*T, error) {
	data := bucket.Get(key)
	if data == nil {
		return nil, nil
	}

	var value T
	if err := json.Unmarshal(data, &value); err != nil {
		return nil, err
	}

	return &value, nil
}

func nextID(bucket *bbolt.Bucket) (int64, error) {
	seq, err := bucket.NextSequence()
	if err != nil {
		return 0, err
	}

	return int64(seq), nil
}
