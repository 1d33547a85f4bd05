// Package gittest builds fixture repositories for tests.
package gittest

import (
	"bytes"
	"sort"
	"strings"
	"testing"
	"time"

	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/filemode"
	"github.com/go-git/go-git/v5/plumbing/object"
	"github.com/go-git/go-git/v5/plumbing/storer"
	"github.com/stretchr/testify/require"
)

// InitBare creates an empty bare repository at dir.
func InitBare(t *testing.T, dir string) *git.Repository {
	t.Helper()

	repo, err := git.PlainInit(dir, true)
	require.NoError(t, err)

	return repo
}

// Commit records files (full snapshot, slash-separated paths) as a new
// commit on the branch HEAD points to, authored at when.
func Commit(t *testing.T, repo *git.Repository, files map[string]string, when time.Time, message string) plumbing.Hash {
	t.Helper()

	contents := make(map[string][]byte, len(files))
	for name, data := range files {
		contents[name] = []byte(data)
	}

	treeHash, err := WriteTree(repo.Storer, contents)
	require.NoError(t, err)

	head, err := repo.Storer.Reference(plumbing.HEAD)
	require.NoError(t, err)

	branch := head.Name()
	if head.Type() == plumbing.SymbolicReference {
		branch = head.Target()
	}

	var parents []plumbing.Hash
	if ref, err := repo.Storer.Reference(branch); err == nil {
		parents = append(parents, ref.Hash())
	}

	sig := object.Signature{Name: "Tester", Email: "tester@example.com", When: when}
	commit := &object.Commit{
		Author:       sig,
		Committer:    sig,
		Message:      message,
		TreeHash:     treeHash,
		ParentHashes: parents,
	}

	obj := repo.Storer.NewEncodedObject()
	require.NoError(t, commit.Encode(obj))

	hash, err := repo.Storer.SetEncodedObject(obj)
	require.NoError(t, err)

	require.NoError(t, repo.Storer.SetReference(plumbing.NewHashReference(branch, hash)))

	return hash
}

// WriteTree stores files as blobs under nested trees and returns the root tree hash.
func WriteTree(st storer.EncodedObjectStorer, files map[string][]byte) (plumbing.Hash, error) {
	blobs := make(map[string][]byte)
	dirs := make(map[string]map[string][]byte)

	for name, data := range files {
		name = strings.Trim(name, "/")

		head, rest, nested := strings.Cut(name, "/")
		if !nested {
			blobs[head] = data
			continue
		}

		if dirs[head] == nil {
			dirs[head] = make(map[string][]byte)
		}

		dirs[head][rest] = data
	}

	tree := &object.Tree{}

	for name, data := range blobs {
		hash, err := writeBlob(st, data)
		if err != nil {
			return plumbing.ZeroHash, err
		}

		tree.Entries = append(tree.Entries, object.TreeEntry{Name: name, Mode: filemode.Regular, Hash: hash})
	}

	for name, children := range dirs {
		hash, err := WriteTree(st, children)
		if err != nil {
			return plumbing.ZeroHash, err
		}

		tree.Entries = append(tree.Entries, object.TreeEntry{Name: name, Mode: filemode.Dir, Hash: hash})
	}

	sort.Slice(tree.Entries, func(i, j int) bool {
		return sortKey(tree.Entries[i]) < sortKey(tree.Entries[j])
	})

	obj := st.NewEncodedObject()
	if err := tree.Encode(obj); err != nil {
		return plumbing.ZeroHash, err
	}

	return st.SetEncodedObject(obj)
}

func sortKey(e object.TreeEntry) string {
	if e.Mode == filemode.Dir {
		return e.Name + "/"
	}

	return e.Name
}

func writeBlob(st storer.EncodedObjectStorer, data []byte) (plumbing.Hash, error) {
	obj := st.NewEncodedObject()
	obj.SetType(plumbing.BlobObject)

	w, err := obj.Writer()
	if err != nil {
		return plumbing.ZeroHash, err
	}

	if _, err := bytes.NewReader(data).WriteTo(w); err != nil {
		return plumbing.ZeroHash, err
	}

	if err := w.Close(); err != nil {
		return plumbing.ZeroHash, err
	}

	return st.SetEncodedObject(obj)
}
