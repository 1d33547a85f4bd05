// Package browser resolves refs, trees and history of a repository for the
// read-only web console.
package browser

import (
	"errors"
	"fmt"
	"io"
	"path"
	"sort"
	"strings"
	"time"

	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/filemode"
	"github.com/go-git/go-git/v5/plumbing/object"
	"github.com/go-git/go-git/v5/plumbing/storer"
	"github.com/go-git/go-git/v5/storage/filesystem"
	"github.com/inovacc/gitcove/internal/gitproto"
)

// ReadmeMaxSize is the largest README captured inline by List.
const ReadmeMaxSize = 512 * 1024

var (
	// ErrEmptyRepository is returned when the repository has no refs at all.
	ErrEmptyRepository = errors.New("empty repository")

	// ErrPathNotFound is returned when a path does not exist in the tree.
	ErrPathNotFound = errors.New("path not found")

	// ErrNotAFile is returned by Blob for directories.
	ErrNotAFile = errors.New("not a file")
)

// UnknownRefError is returned when refs exist but the requested one does not
// resolve.
type UnknownRefError struct {
	Ref string
}

func (e *UnknownRefError) Error() string {
	return fmt.Sprintf("ref not found: %s", e.Ref)
}

// Repository is an open handle on one repository. Close releases it.
type Repository struct {
	repo *git.Repository
	st   *filesystem.Storage
}

// Open opens the repository at dir. It returns gitproto.ErrRepositoryNotFound
// when dir holds no Git data.
func Open(dir string) (*Repository, error) {
	st, err := gitproto.OpenStorage(dir)
	if err != nil {
		return nil, err
	}

	repo, err := git.Open(st, nil)
	if err != nil {
		_ = st.Close()

		if errors.Is(err, git.ErrRepositoryNotExists) {
			return nil, gitproto.ErrRepositoryNotFound
		}

		return nil, fmt.Errorf("failed to open repository: %w", err)
	}

	return &Repository{repo: repo, st: st}, nil
}

func (r *Repository) Close() error {
	return r.st.Close()
}

// ResolveRef resolves ref to a commit. An empty ref means HEAD.
func (r *Repository) ResolveRef(ref string) (*object.Commit, error) {
	if ref == "" {
		ref = plumbing.HEAD.String()
	}

	hash, err := r.repo.ResolveRevision(plumbing.Revision(ref))
	if err != nil {
		empty, emptyErr := r.isEmpty()
		if emptyErr != nil {
			return nil, emptyErr
		}

		if empty {
			return nil, ErrEmptyRepository
		}

		return nil, &UnknownRefError{Ref: ref}
	}

	commit, err := r.repo.CommitObject(*hash)
	if err != nil {
		return nil, fmt.Errorf("failed to load commit %s: %w", hash, err)
	}

	return commit, nil
}

func (r *Repository) isEmpty() (bool, error) {
	refs, err := r.repo.References()
	if err != nil {
		return false, fmt.Errorf("failed to list references: %w", err)
	}

	empty := true

	err = refs.ForEach(func(ref *plumbing.Reference) error {
		if ref.Type() == plumbing.HashReference {
			empty = false
			return storer.ErrStop
		}

		return nil
	})
	if err != nil {
		return false, err
	}

	return empty, nil
}

// Branches returns the short names of all local branches, sorted.
func (r *Repository) Branches() ([]string, error) {
	iter, err := r.repo.Branches()
	if err != nil {
		return nil, fmt.Errorf("failed to list branches: %w", err)
	}

	var names []string

	err = iter.ForEach(func(ref *plumbing.Reference) error {
		names = append(names, ref.Name().Short())
		return nil
	})
	if err != nil {
		return nil, err
	}

	sort.Strings(names)

	return names, nil
}

// Target is a resolved path inside a commit.
type Target struct {
	Path  string
	IsDir bool
	Hash  plumbing.Hash
	Mode  filemode.FileMode

	tree *object.Tree
}

// CleanPath normalizes a browse path: no leading or trailing slash.
func CleanPath(p string) string {
	return strings.Trim(p, "/")
}

// ResolvePath looks p up in the commit's tree. An empty path is the root.
func (r *Repository) ResolvePath(commit *object.Commit, p string) (*Target, error) {
	p = CleanPath(p)

	root, err := commit.Tree()
	if err != nil {
		return nil, fmt.Errorf("failed to load tree: %w", err)
	}

	if p == "" {
		return &Target{IsDir: true, Hash: root.Hash, Mode: filemode.Dir, tree: root}, nil
	}

	entry, err := root.FindEntry(p)
	if err != nil {
		if errors.Is(err, object.ErrEntryNotFound) || errors.Is(err, object.ErrDirectoryNotFound) {
			return nil, ErrPathNotFound
		}

		return nil, fmt.Errorf("failed to find %s: %w", p, err)
	}

	target := &Target{Path: p, Hash: entry.Hash, Mode: entry.Mode}

	if entry.Mode == filemode.Dir {
		tree, err := r.repo.TreeObject(entry.Hash)
		if err != nil {
			return nil, fmt.Errorf("failed to load tree %s: %w", p, err)
		}

		target.IsDir = true
		target.tree = tree
	}

	return target, nil
}

// Entry is one row of a directory listing.
type Entry struct {
	Name         string
	Path         string
	IsDir        bool
	Size         int64
	LastModified time.Time
}

// Listing is a single-level directory listing.
type Listing struct {
	Path    string
	Entries []Entry

	// Readme holds a README.md found in the directory, if small enough
	Readme     []byte
	ReadmeName string
}

// List lists the directory dir at commit. Each entry's LastModified is the
// author time of the newest commit touching it.
func (r *Repository) List(commit *object.Commit, dir string) (*Listing, error) {
	target, err := r.ResolvePath(commit, dir)
	if err != nil {
		return nil, err
	}

	if !target.IsDir {
		return nil, fmt.Errorf("%s: not a directory", target.Path)
	}

	listing := &Listing{Path: target.Path}

	for _, te := range target.tree.Entries {
		entry := Entry{
			Name:  te.Name,
			Path:  path.Join(target.Path, te.Name),
			IsDir: te.Mode == filemode.Dir,
		}

		if te.Mode.IsFile() {
			blob, err := r.repo.BlobObject(te.Hash)
			if err != nil {
				return nil, fmt.Errorf("failed to load %s: %w", entry.Path, err)
			}

			entry.Size = blob.Size

			if strings.EqualFold(te.Name, "readme.md") && blob.Size < ReadmeMaxSize {
				data, err := readBlob(blob)
				if err != nil {
					return nil, err
				}

				listing.Readme = data
				listing.ReadmeName = te.Name
			}
		}

		modified, err := r.lastModified(commit, entry.Path, entry.IsDir)
		if err != nil {
			return nil, err
		}

		entry.LastModified = modified
		listing.Entries = append(listing.Entries, entry)
	}

	sort.SliceStable(listing.Entries, func(i, j int) bool {
		a, b := listing.Entries[i], listing.Entries[j]
		if a.IsDir != b.IsDir {
			return a.IsDir
		}

		return a.Name < b.Name
	})

	return listing, nil
}

// lastModified walks the whole history below commit; there is no depth cap.
func (r *Repository) lastModified(commit *object.Commit, p string, isDir bool) (time.Time, error) {
	prefix := p + "/"

	iter, err := r.repo.Log(&git.LogOptions{
		From:  commit.Hash,
		Order: git.LogOrderCommitterTime,
		PathFilter: func(changed string) bool {
			if isDir {
				return strings.HasPrefix(changed, prefix)
			}

			return changed == p
		},
	})
	if err != nil {
		return time.Time{}, fmt.Errorf("failed to walk history of %s: %w", p, err)
	}
	defer iter.Close()

	c, err := iter.Next()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return time.Time{}, nil
		}

		return time.Time{}, fmt.Errorf("failed to walk history of %s: %w", p, err)
	}

	return c.Author.When, nil
}

func readBlob(blob *object.Blob) ([]byte, error) {
	rd, err := blob.Reader()
	if err != nil {
		return nil, fmt.Errorf("failed to read blob %s: %w", blob.Hash, err)
	}
	defer func() { _ = rd.Close() }()

	return io.ReadAll(rd)
}
