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

// userRecord is the persisted form; model.User hides the digest from JSON.
type userRecord struct {
	ID        int64     `json:"id"`
	Username  string    `json:"username"`
	Password  string    `json:"password"`
	Fullname  string    `json:"fullname"`
	Email     string    `json:"email"`
	Active    bool      `json:"active"`
	CreatedAt time.Time `json:"created_at"`
}

func toRecord(u *model.User) userRecord {
	return userRecord{
		ID:        u.ID,
		Username:  u.Username,
		Password:  u.Password,
		Fullname:  u.Fullname,
		Email:     u.Email,
		Active:    u.Active,
		CreatedAt: u.CreatedAt,
	}
}

func (r *userRecord) toModel() *model.User {
	return &model.User{
		ID:        r.ID,
		Username:  r.Username,
		Password:  r.Password,
		Fullname:  r.Fullname,
		Email:     r.Email,
		Active:    r.Active,
		CreatedAt: r.CreatedAt,
	}
}

func (b *Bolt) CreateUser(_ context.Context, user *model.User) error {
	if user.CreatedAt.IsZero() {
		user.CreatedAt = time.Now().UTC()
	}

	return b.storage.Update(func(tx *bbolt.Tx) error {
		users := tx.Bucket([]byte(bucketUsers))
		names := tx.Bucket([]byte(bucketUserNames))
		emails := tx.Bucket([]byte(bucketUserEmails))

		if names.Get([]byte(user.Username)) != nil {
			return fmt.Errorf("username %s already exists", user.Username)
		}

		if user.Email != "" && emails.Get([]byte(user.Email)) != nil {
			return fmt.Errorf("email %s already exists", user.Email)
		}

		id, err := nextID(users)
		if err != nil {
			return err
		}

		user.ID = id

		if err := putJSON(users, itob(id), toRecord(user)); err != nil {
			return err
		}

		if user.Email != "" {
			if err := emails.Put([]byte(user.Email), itob(id)); err != nil {
				return err
			}
		}

		return names.Put([]byte(user.Username), itob(id))
	})
}

func (b *Bolt) GetUser(_ context.Context, id int64) (*model.User, error) {
	var user *model.User

	err := b.storage.View(func(tx *bbolt.Tx) error {
		rec, err := getJSON[userRecord](tx.Bucket([]byte(bucketUsers)), itob(id))
		if err != nil || rec == nil {
			return err
		}

		user = rec.toModel()

		return nil
	})

	return user, err
}

func (b *Bolt) getUserByIndex(index, key string) (*model.User, error) {
	var user *model.User

	err := b.storage.View(func(tx *bbolt.Tx) error {
		id := tx.Bucket([]byte(index)).Get([]byte(key))
		if id == nil {
			return nil
		}

		rec, err := getJSON[userRecord](tx.Bucket([]byte(bucketUsers)), id)
		if err != nil || rec == nil {
			return err
		}

		user = rec.toModel()

		return nil
	})

	return user, err
}

func (b *Bolt) GetUserByUsername(_ context.Context, username string) (*model.User, error) {
	return b.getUserByIndex(bucketUserNames, username)
}

func (b *Bolt) GetUserByEmail(_ context.Context, email string) (*model.User, error) {
	if email == "" {
		return nil, nil
	}

	return b.getUserByIndex(bucketUserEmails, email)
}

func (b *Bolt) ListUsers(_ context.Context) ([]model.User, error) {
	var users []model.User

	err := b.storage.View(func(tx *bbolt.Tx) error {
		return tx.Bucket([]byte(bucketUsers)).ForEach(func(_, v []byte) error {
			var rec userRecord
			if err := json.Unmarshal(v, &rec); err != nil {
				return err
			}

			users = append(users, *rec.toModel())

			return nil
		})
	})
	if err != nil {
		return nil, err
	}

	sort.Slice(users, func(i, j int) bool {
		return users[i].Username < users[j].Username
	})

	return users, nil
}

// UpdateUser rewrites the mutable fields and keeps the email index in step.
func (b *Bolt) UpdateUser(_ context.Context, user *model.User) error {
	return b.storage.Update(func(tx *bbolt.Tx) error {
		users := tx.Bucket([]byte(bucketUsers))
		emails := tx.Bucket([]byte(bucketUserEmails))

		existing, err := getJSON[userRecord](users, itob(user.ID))
		if err != nil || existing == nil {
			return err
		}

		if existing.Email != user.Email {
			if user.Email != "" {
				if owner := emails.Get([]byte(user.Email)); owner != nil && btoi(owner) != user.ID {
					return fmt.Errorf("email %s already exists", user.Email)
				}

				if err := emails.Put([]byte(user.Email), itob(user.ID)); err != nil {
					return err
				}
			}

			if existing.Email != "" {
				if err := emails.Delete([]byte(existing.Email)); err != nil {
					return err
				}
			}
		}

		existing.Password = user.Password
		existing.Fullname = user.Fullname
		existing.Email = user.Email
		existing.Active = user.Active

		return putJSON(users, itob(user.ID), existing)
	})
}

func (b *Bolt) DeleteUser(_ context.Context, id int64) error {
	return b.storage.Update(func(tx *bbolt.Tx) error {
		users := tx.Bucket([]byte(bucketUsers))

		existing, err := getJSON[userRecord](users, itob(id))
		if err != nil || existing == nil {
			return err
		}

		if err := tx.Bucket([]byte(bucketUserNames)).Delete([]byte(existing.Username)); err != nil {
			return err
		}

		if existing.Email != "" {
			if err := tx.Bucket([]byte(bucketUserEmails)).Delete([]byte(existing.Email)); err != nil {
				return err
			}
		}

		if err := deletePermissionsWhere(tx, func(p model.Permission) bool { return p.UserID == id }); err != nil {
			return err
		}

		return users.Delete(itob(id))
	})
}
