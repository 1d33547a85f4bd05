// Package core provides the repository lifecycle for gitcove.
//
// A repository exists twice: as a record in the metadata store and as a
// bare Git directory named "<mapping>.git" below the repository root. The
// [Manager] keeps both in step without a shared transaction.
//
// # Lifecycle Operations
//
//   - [Manager.Create] inserts the record, initializes the bare directory and
//     seeds an initial commit from bundled assets. A failed initialization
//     deletes the record again.
//   - [Manager.Import] and [Manager.ScanAndImport] register directories that
//     already hold Git data.
//   - [Manager.Delete] removes the files first, then the record.
//   - [Manager.Archive], [Manager.Activate] and [Manager.Update] change
//     metadata only.
//
// [Manager.PathFor] is the only translation from a mapping to a path.
//
// # Errors
//
// Operations return the typed errors in errors.go; [StatusCode] maps them to
// HTTP statuses for the web layer.
package core
