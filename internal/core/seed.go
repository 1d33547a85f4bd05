package core

import (
	"embed"
	"io/fs"
	"path"
	"sort"
	"time"

	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/filemode"
	"github.com/go-git/go-git/v5/plumbing/object"
	"github.com/go-git/go-git/v5/plumbing/storer"
	"github.com/inovacc/gitcove/internal/application"
)

const (
	seedDir     = "assets/default"
	seedMessage = "Initial commit"
)

//go:embed all:assets/default
var seedAssets embed.FS

// SeedFile is one file of the initial commit.
type SeedFile struct {
	Name string
	Data []byte
}

// DefaultSeedFiles returns the bundled assets sorted by name.
func DefaultSeedFiles() ([]SeedFile, error) {
	entries, err := fs.ReadDir(seedAssets, seedDir)
	if err != nil {
		return nil, err
	}

	files := make([]SeedFile, 0, len(entries))

	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}

		data, err := seedAssets.ReadFile(path.Join(seedDir, entry.Name()))
		if err != nil {
			return nil, err
		}

		files = append(files, SeedFile{Name: entry.Name(), Data: data})
	}

	sort.Slice(files, func(i, j int) bool { return files[i].Name < files[j].Name })

	return files, nil
}

// seedRepository writes files as a single flat tree, commits it as the
// system identity and points the branch behind HEAD at the commit.
func seedRepository(repo *git.Repository, files []SeedFile, when time.Time) (plumbing.Hash, error) {
	if len(files) == 0 {
		return plumbing.ZeroHash, nil
	}

	st := repo.Storer

	tree := &object.Tree{}

	for _, f := range files {
		hash, err := writeBlob(st, f.Data)
		if err != nil {
			return plumbing.ZeroHash, err
		}

		tree.Entries = append(tree.Entries, object.TreeEntry{Name: f.Name, Mode: filemode.Regular, Hash: hash})
	}

	treeHash, err := storeObject(st, tree)
	if err != nil {
		return plumbing.ZeroHash, err
	}

	sig := object.Signature{
		Name:  application.SystemAuthorName,
		Email: application.SystemAuthorEmail,
		When:  when,
	}

	commitHash, err := storeObject(st, &object.Commit{
		Author:    sig,
		Committer: sig,
		Message:   seedMessage,
		TreeHash:  treeHash,
	})
	if err != nil {
		return plumbing.ZeroHash, err
	}

	head, err := st.Reference(plumbing.HEAD)
	if err != nil {
		return plumbing.ZeroHash, err
	}

	branch := plumbing.HEAD
	if head.Type() == plumbing.SymbolicReference {
		branch = head.Target()
	}

	if err := st.SetReference(plumbing.NewHashReference(branch, commitHash)); err != nil {
		return plumbing.ZeroHash, err
	}

	return commitHash, nil
}

type encodable interface {
	Encode(plumbing.EncodedObject) error
}

func storeObject(st storer.EncodedObjectStorer, o encodable) (plumbing.Hash, error) {
	obj := st.NewEncodedObject()
	if err := o.Encode(obj); err != nil {
		return plumbing.ZeroHash, err
	}

	return st.SetEncodedObject(obj)
}

func writeBlob(st storer.EncodedObjectStorer, data []byte) (plumbing.Hash, error) {
	obj := st.NewEncodedObject()
	obj.SetType(plumbing.BlobObject)

	w, err := obj.Writer()
	if err != nil {
		return plumbing.ZeroHash, err
	}

	if _, err := w.Write(data); err != nil {
		_ = w.Close()
		return plumbing.ZeroHash, err
	}

	if err := w.Close(); err != nil {
		return plumbing.ZeroHash, err
	}

	return st.SetEncodedObject(obj)
}
