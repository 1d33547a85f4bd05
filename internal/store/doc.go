// Package store provides the metadata storage abstraction for gitcove.
//
// The package defines the [Store] interface covering repositories, users and
// permissions. Two backends implement it:
//   - sqlite (default): modernc.org/sqlite with embedded migrations
//   - bolt: go.etcd.io/bbolt buckets holding JSON records
//
// # Explicit handle
//
// There is no package-level instance. Build one with [Open] at startup and
// pass it to the components that need it:
//
//	st, err := store.Open(cfg.Storage)
//	if err != nil {
//	    return err
//	}
//	defer st.Close()
package store
