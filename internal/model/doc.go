// Package model defines the records persisted by gitcove.
//
// These types are shared by the store backends, the lifecycle manager and
// the HTTP layer.
//
// # Repository
//
// A [Repository] is the metadata side of a bare repository living at
// <root>/<mapping>.git:
//
//	type Repository struct {
//	    ID          int64     // Store-generated key
//	    Name        string    // Display name
//	    Mapping     string    // Unique URL slug, never ends in ".git"
//	    Description string
//	    Active      bool      // Listed by the API
//	    Archived    bool      // Protocol access rejected when set
//	    CreatedAt   time.Time
//	}
//
// # User and Permission
//
// A [Permission] links one [User] to one [Repository] by id. Records never
// embed each other; lookups go through the store by (UserID, RepositoryID).
package model
