package core

import (
	"context"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/go-git/go-git/v5"
	"github.com/inovacc/gitcove/internal/model"
	"github.com/inovacc/gitcove/internal/store"
)

var mappingPattern = regexp.MustCompile(`^[A-Za-z0-9][A-Za-z0-9._-]*$`)

// Manager keeps repository records and the bare repositories under root in
// step. The two stores are not updated atomically: create compensates by
// deleting its record when initialization fails, delete removes files before
// the record.
type Manager struct {
	store store.Store
	root  string

	// seed overrides the bundled assets; nil uses DefaultSeedFiles
	seed []SeedFile
	now  func() time.Time
}

// NewManager returns a manager serving repositories below root.
func NewManager(st store.Store, root string) *Manager {
	return &Manager{
		store: st,
		root:  root,
		now:   time.Now,
	}
}

// Root returns the repository root directory.
func (m *Manager) Root() string {
	return m.root
}

// Ping checks that the metadata store is reachable.
func (m *Manager) Ping() error {
	return m.store.Ping()
}

// PathFor returns the physical directory for mapping. It is the only place
// a mapping becomes a filesystem path.
func (m *Manager) PathFor(mapping string) string {
	dir := strings.Trim(mapping, "/")
	if !strings.HasSuffix(dir, model.RepoSuffix) {
		dir += model.RepoSuffix
	}

	return filepath.Join(m.root, dir)
}

// Resolve returns the directory for a mapping taken from a request path.
// A mapping outside the mapping syntax, or one whose directory would not be
// a direct child of the root, gives NotFoundError.
func (m *Manager) Resolve(mapping string) (string, error) {
	canonical := model.CanonicalMapping(mapping)
	if !mappingPattern.MatchString(canonical) {
		return "", &NotFoundError{Kind: "repository", Key: mapping}
	}

	dir := m.PathFor(canonical)

	rel, err := filepath.Rel(m.root, dir)
	if err != nil || rel != filepath.Base(dir) {
		return "", &NotFoundError{Kind: "repository", Key: mapping}
	}

	return dir, nil
}

// Exists reports whether the physical repository for mapping is present.
func (m *Manager) Exists(mapping string) bool {
	info, err := os.Stat(m.PathFor(mapping))
	return err == nil && info.IsDir()
}

// Create registers a repository, initializes its bare directory and seeds
// the initial commit. A failed initialization removes the record again.
func (m *Manager) Create(ctx context.Context, name, mapping, description string) (*model.Repository, error) {
	name = strings.TrimSpace(name)
	mapping = model.CanonicalMapping(mapping)

	if name == "" {
		return nil, &ValidationError{Field: "name", Reason: "must not be blank"}
	}

	if err := validateMapping(mapping); err != nil {
		return nil, err
	}

	existing, err := m.store.GetRepositoryByMapping(ctx, mapping)
	if err != nil {
		return nil, persistence("look up repository", err)
	}

	if existing != nil {
		return nil, &ValidationError{Field: "mapping", Reason: "already exists: " + mapping}
	}

	repo := &model.Repository{
		Name:        name,
		Mapping:     mapping,
		Description: strings.TrimSpace(description),
		Active:      true,
	}

	if err := m.store.CreateRepository(ctx, repo); err != nil {
		return nil, persistence("create repository", err)
	}

	dir := m.PathFor(mapping)

	gitRepo, err := git.PlainInit(dir, true)
	if err != nil {
		if delErr := m.store.DeleteRepository(ctx, repo.ID); delErr != nil {
			slog.Error("failed to roll back repository record", "mapping", mapping, "id", repo.ID, "error", delErr)
		}

		return nil, NewEngineError("initialize repository "+mapping, err)
	}

	slog.Info("created git repository", "mapping", mapping, "path", dir)

	m.seedDefaults(gitRepo, mapping)

	return repo, nil
}

func (m *Manager) seedDefaults(gitRepo *git.Repository, mapping string) {
	files := m.seed
	if files == nil {
		var err error

		files, err = DefaultSeedFiles()
		if err != nil {
			slog.Warn("failed to read default assets", "error", err)
			return
		}
	}

	hash, err := seedRepository(gitRepo, files, m.now())
	if err != nil {
		slog.Warn("failed to add default assets to new repository", "mapping", mapping, "error", err)
		return
	}

	slog.Debug("added default assets", "mapping", mapping, "commit", hash.String())
}

// Import registers an existing folder under the root. It returns nil and no
// error when there is nothing to import: the folder is missing, the mapping
// is registered already, or the folder holds no Git data.
func (m *Manager) Import(ctx context.Context, folder string) (*model.Repository, error) {
	folder = strings.TrimSpace(folder)
	if folder == "" || folder == "." || folder == ".." || strings.ContainsAny(folder, `/\`) {
		return nil, nil
	}

	dir := filepath.Join(m.root, folder)

	info, err := os.Stat(dir)
	if err != nil || !info.IsDir() {
		return nil, nil
	}

	mapping := strings.TrimSuffix(folder, model.RepoSuffix)
	if mapping == "" {
		return nil, nil
	}

	if !mappingPattern.MatchString(mapping) {
		slog.Warn("folder name is not a valid mapping, skipping", "folder", folder)
		return nil, nil
	}

	existing, err := m.store.GetRepositoryByMapping(ctx, mapping)
	if err != nil {
		return nil, persistence("look up repository", err)
	}

	if existing != nil {
		return nil, nil
	}

	layout := looksLikeRepository(dir)
	if layout == LayoutNone {
		return nil, nil
	}

	repo := &model.Repository{
		Name:    mapping,
		Mapping: mapping,
		Active:  true,
	}

	if err := m.store.CreateRepository(ctx, repo); err != nil {
		return nil, persistence("import repository", err)
	}

	slog.Info("imported repository",
		"mapping", mapping,
		"folder", folder,
		"layout", layout.String(),
		"bare", layout == LayoutBare && isBareConfig(dir),
	)

	if m.PathFor(mapping) != dir {
		slog.Warn("imported folder is not served under its mapping", "folder", folder, "expected", m.PathFor(mapping))
	}

	return repo, nil
}

// ScanAndImport imports every immediate subdirectory of the root and
// returns how many were registered. Per-folder failures are logged.
func (m *Manager) ScanAndImport(ctx context.Context) (int, error) {
	entries, err := os.ReadDir(m.root)
	if err != nil {
		if os.IsNotExist(err) {
			slog.Warn("scan root does not exist", "root", m.root)
			return 0, nil
		}

		return 0, err
	}

	count := 0

	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}

		repo, err := m.Import(ctx, entry.Name())
		if err != nil {
			slog.Error("failed to import", "folder", entry.Name(), "error", err)
			continue
		}

		if repo != nil {
			count++
		}
	}

	return count, nil
}

// Delete removes the repository files, then its record.
func (m *Manager) Delete(ctx context.Context, id int64) error {
	repo, err := m.mustGet(ctx, id)
	if err != nil {
		return err
	}

	dir := m.PathFor(repo.Mapping)
	if _, err := os.Stat(dir); err == nil {
		if failed := removeTree(dir); failed > 0 {
			slog.Warn("some repository files could not be removed", "path", dir, "failed", failed)
		}

		slog.Info("deleted repository files", "path", dir)
	}

	if err := m.store.DeleteRepository(ctx, id); err != nil {
		return persistence("delete repository", err)
	}

	slog.Info("deleted repository", "name", repo.Name, "mapping", repo.Mapping)

	return nil
}

// Archive flags the repository so protocol requests are refused. Files are
// not touched.
func (m *Manager) Archive(ctx context.Context, id int64) (*model.Repository, error) {
	archived := true
	return m.Update(ctx, id, model.RepositoryUpdate{Archived: &archived})
}

// Activate sets whether the repository appears in listings.
func (m *Manager) Activate(ctx context.Context, id int64, active bool) (*model.Repository, error) {
	return m.Update(ctx, id, model.RepositoryUpdate{Active: &active})
}

// Update applies the set fields of u to the record.
func (m *Manager) Update(ctx context.Context, id int64, u model.RepositoryUpdate) (*model.Repository, error) {
	if u.Name != nil && strings.TrimSpace(*u.Name) == "" {
		return nil, &ValidationError{Field: "name", Reason: "must not be blank"}
	}

	repo, err := m.mustGet(ctx, id)
	if err != nil {
		return nil, err
	}

	u.Apply(repo)

	if err := m.store.UpdateRepository(ctx, repo); err != nil {
		return nil, persistence("update repository", err)
	}

	slog.Info("updated repository", "id", id, "mapping", repo.Mapping, "archived", repo.Archived, "active", repo.Active)

	return repo, nil
}

// Get returns the record with id, or nil when absent.
func (m *Manager) Get(ctx context.Context, id int64) (*model.Repository, error) {
	repo, err := m.store.GetRepository(ctx, id)
	if err != nil {
		return nil, persistence("get repository", err)
	}

	return repo, nil
}

// GetByMapping returns the record for mapping, with or without the ".git"
// suffix, or nil when absent.
func (m *Manager) GetByMapping(ctx context.Context, mapping string) (*model.Repository, error) {
	repo, err := m.store.GetRepositoryByMapping(ctx, model.CanonicalMapping(mapping))
	if err != nil {
		return nil, persistence("get repository", err)
	}

	return repo, nil
}

// List returns the records, optionally only active ones.
func (m *Manager) List(ctx context.Context, activeOnly bool) ([]model.Repository, error) {
	repos, err := m.store.ListRepositories(ctx, activeOnly)
	if err != nil {
		return nil, persistence("list repositories", err)
	}

	return repos, nil
}

func (m *Manager) mustGet(ctx context.Context, id int64) (*model.Repository, error) {
	repo, err := m.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	if repo == nil {
		return nil, &NotFoundError{Kind: "repository", Key: strconv.FormatInt(id, 10)}
	}

	return repo, nil
}

func validateMapping(mapping string) error {
	if mapping == "" {
		return &ValidationError{Field: "mapping", Reason: "must not be blank"}
	}

	if !mappingPattern.MatchString(mapping) {
		return &ValidationError{Field: "mapping", Reason: "only letters, digits, '.', '_' and '-' are allowed"}
	}

	return nil
}

// removeTree deletes dir bottom-up, skipping entries that fail, and returns
// the number of failures.
func removeTree(dir string) int {
	var paths []string

	_ = filepath.WalkDir(dir, func(path string, _ fs.DirEntry, err error) error {
		if err != nil {
			return nil
		}

		paths = append(paths, path)

		return nil
	})

	failed := 0

	for i := len(paths) - 1; i >= 0; i-- {
		if err := os.Remove(paths[i]); err != nil && !os.IsNotExist(err) {
			failed++
		}
	}

	return failed
}
