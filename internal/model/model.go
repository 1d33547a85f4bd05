package model

import (
	"strings"
	"time"
)

// RepoSuffix is the suffix carried by every physical repository directory.
const RepoSuffix = ".git"

// Repository is the metadata record for one served repository.
type Repository struct {
	// ID is the store-generated primary key
	ID int64 `json:"id"`

	// Name is the display name
	Name string `json:"name"`

	// Mapping is the unique URL slug; canonical form never ends in ".git"
	Mapping string `json:"mapping"`

	Description string `json:"description"`

	// Active repositories are returned by the listing API
	Active bool `json:"active"`

	// Archived repositories reject Git protocol requests
	Archived bool `json:"archived"`

	CreatedAt time.Time `json:"created_at"`
}

// CanonicalMapping strips a trailing ".git" and surrounding slashes.
func CanonicalMapping(mapping string) string {
	mapping = strings.Trim(strings.TrimSpace(mapping), "/")

	return strings.TrimSuffix(mapping, RepoSuffix)
}

// RepositoryUpdate carries the mutable metadata fields; nil means unchanged.
type RepositoryUpdate struct {
	Name        *string
	Description *string
	Active      *bool
	Archived    *bool
}

// Apply copies the set fields onto r.
func (u RepositoryUpdate) Apply(r *Repository) {
	if u.Name != nil {
		r.Name = *u.Name
	}

	if u.Description != nil {
		r.Description = *u.Description
	}

	if u.Active != nil {
		r.Active = *u.Active
	}

	if u.Archived != nil {
		r.Archived = *u.Archived
	}
}

// User is an account known to the server.
type User struct {
	ID       int64  `json:"id"`
	Username string `json:"username"`

	// Password holds the hex digest, never the clear text
	Password string `json:"-"`

	Fullname  string    `json:"fullname"`
	Email     string    `json:"email"`
	Active    bool      `json:"active"`
	CreatedAt time.Time `json:"created_at"`
}

// Permission grants one user access to one repository.
type Permission struct {
	ID           int64 `json:"id"`
	UserID       int64 `json:"user_id"`
	RepositoryID int64 `json:"repository_id"`
	ReadOnly     bool  `json:"read_only"`
}
