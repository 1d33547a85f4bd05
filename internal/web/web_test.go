package web

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"path/filepath"
	"strconv"
	"strings"
	"testing"

	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing/protocol/packp"
	"github.com/inovacc/gitcove/internal/config"
	"github.com/inovacc/gitcove/internal/core"
	"github.com/inovacc/gitcove/internal/gitproto"
	"github.com/inovacc/gitcove/internal/gittest"
	"github.com/inovacc/gitcove/internal/store"
	"github.com/klauspost/compress/gzip"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fixture struct {
	server  *Server
	manager *core.Manager
	users   *core.UserManager
}

func newFixture(t *testing.T, caps config.Capabilities) *fixture {
	t.Helper()

	st, err := store.Open(config.StorageConfig{
		Backend: config.BackendSQLite,
		Path:    filepath.Join(t.TempDir(), "meta.db"),
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = st.Close() })

	manager := core.NewManager(st, t.TempDir())
	users := core.NewUserManager(st)

	cfg := DefaultConfig()
	cfg.Capabilities = caps

	srv, err := New(cfg, manager, users)
	require.NoError(t, err)

	return &fixture{server: srv, manager: manager, users: users}
}

func allCapabilities() config.Capabilities {
	return DefaultConfig().Capabilities
}

func (f *fixture) do(method, target string, body io.Reader) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, target, body)
	if method == http.MethodPost && body != nil {
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	}

	rec := httptest.NewRecorder()
	f.server.Handler().ServeHTTP(rec, req)

	return rec
}

func (f *fixture) postForm(target string, form url.Values) *httptest.ResponseRecorder {
	return f.do(http.MethodPost, target, strings.NewReader(form.Encode()))
}

func TestExtractRepoName(t *testing.T) {
	tests := []struct {
		uri  string
		want string
	}{
		{"/demo.git/info/refs", "demo"},
		{"/demo.git/git-upload-pack", "demo"},
		{"/demo.git", "demo"},
		{"/demo", "demo"},
		{"demo/info/refs", "demo"},
		{"/team.tools.git/info/refs", "team.tools"},
		{"/", ""},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, ExtractRepoName(tt.uri), tt.uri)
	}
}

func TestInfoRefs(t *testing.T) {
	f := newFixture(t, allCapabilities())

	_, err := f.manager.Create(context.Background(), "Demo", "demo", "")
	require.NoError(t, err)

	rec := f.do(http.MethodGet, "/demo.git/info/refs?service=git-upload-pack", nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, "application/x-git-upload-pack-advertisement", rec.Header().Get("Content-Type"))
	assert.Equal(t, "no-cache", rec.Header().Get("Cache-Control"))
	assert.True(t, strings.HasPrefix(rec.Body.String(), "001e# service=git-upload-pack\n0000"), rec.Body.String())
	assert.Contains(t, rec.Body.String(), "refs/heads/master")
	assert.NotEmpty(t, rec.Header().Get("X-Request-Id"))

	rec = f.do(http.MethodGet, "/demo.git/info/refs?service=git-receive-pack", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/x-git-receive-pack-advertisement", rec.Header().Get("Content-Type"))
}

func TestInfoRefs_Errors(t *testing.T) {
	f := newFixture(t, allCapabilities())

	_, err := f.manager.Create(context.Background(), "Demo", "demo", "")
	require.NoError(t, err)

	assert.Equal(t, http.StatusBadRequest, f.do(http.MethodGet, "/demo.git/info/refs", nil).Code)
	assert.Equal(t, http.StatusBadRequest, f.do(http.MethodGet, "/demo.git/info/refs?service=git-archive", nil).Code)
	assert.Equal(t, http.StatusNotFound, f.do(http.MethodGet, "/missing.git/info/refs?service=git-upload-pack", nil).Code)
	assert.Equal(t, http.StatusMethodNotAllowed, f.do(http.MethodPost, "/demo.git/info/refs?service=git-upload-pack", nil).Code)
}

func TestArchivedRepository(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, allCapabilities())

	repo, err := f.manager.Create(ctx, "Demo", "demo", "")
	require.NoError(t, err)

	_, err = f.manager.Archive(ctx, repo.ID)
	require.NoError(t, err)

	assert.Equal(t, http.StatusForbidden, f.do(http.MethodGet, "/demo.git/info/refs?service=git-upload-pack", nil).Code)
	assert.Equal(t, http.StatusForbidden, f.do(http.MethodPost, "/demo.git/git-receive-pack", strings.NewReader("0000")).Code)

	// archived repositories remain browsable
	assert.Equal(t, http.StatusOK, f.do(http.MethodGet, "/browse/demo", nil).Code)
}

func TestDotSegmentsAreNotFound(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, allCapabilities())

	repo, err := f.manager.Create(ctx, "Demo", "demo", "")
	require.NoError(t, err)

	_, err = f.manager.Archive(ctx, repo.ID)
	require.NoError(t, err)

	outside := filepath.Join(filepath.Dir(f.manager.Root()), "outside", "secret.git")
	gittest.InitBare(t, outside)

	for _, target := range []string{
		"/x/../demo.git/info/refs?service=git-upload-pack",
		"/./demo.git/info/refs?service=git-upload-pack",
		"/../outside/secret.git/info/refs?service=git-receive-pack",
		"/../outside/secret.git/info/refs?service=git-upload-pack",
	} {
		rec := f.do(http.MethodGet, target, nil)
		assert.Equal(t, http.StatusNotFound, rec.Code, target)
		assert.NotContains(t, rec.Body.String(), "# service=", target)
	}

	for _, target := range []string{
		"/x/../demo.git/git-upload-pack",
		"/../outside/secret.git/git-receive-pack",
	} {
		assert.Equal(t, http.StatusNotFound, f.do(http.MethodPost, target, strings.NewReader("0000")).Code, target)
	}

	assert.Equal(t, http.StatusNotFound, f.do(http.MethodGet, "/browse/../outside/secret", nil).Code)
	assert.Equal(t, http.StatusNotFound, f.do(http.MethodGet, "/browse/./demo", nil).Code)

	// the canonical path still hits the archival gate
	assert.Equal(t, http.StatusForbidden, f.do(http.MethodGet, "/demo.git/info/refs?service=git-upload-pack", nil).Code)
}

func TestDisabledCapabilities(t *testing.T) {
	f := newFixture(t, config.Capabilities{UploadPack: true})

	_, err := f.manager.Create(context.Background(), "Demo", "demo", "")
	require.NoError(t, err)

	assert.Equal(t, http.StatusOK, f.do(http.MethodGet, "/demo.git/info/refs?service=git-upload-pack", nil).Code)
	assert.Equal(t, http.StatusForbidden, f.do(http.MethodGet, "/demo.git/info/refs?service=git-receive-pack", nil).Code)
	assert.Equal(t, http.StatusForbidden, f.do(http.MethodPost, "/demo.git/git-receive-pack", strings.NewReader("0000")).Code)
	assert.Equal(t, http.StatusNotFound, f.do(http.MethodGet, "/browse/demo", nil).Code)
	assert.Equal(t, http.StatusNotFound, f.do(http.MethodGet, "/commits/demo", nil).Code)
}

func TestUploadPack(t *testing.T) {
	f := newFixture(t, allCapabilities())

	_, err := f.manager.Create(context.Background(), "Demo", "demo", "")
	require.NoError(t, err)

	repo, err := git.PlainOpen(f.manager.PathFor("demo"))
	require.NoError(t, err)

	head, err := repo.Head()
	require.NoError(t, err)

	req := packp.NewUploadPackRequest()
	req.Wants = append(req.Wants, head.Hash())

	var body bytes.Buffer
	require.NoError(t, req.UploadRequest.Encode(&body))
	_, err = io.WriteString(&body, gitproto.PktLine("done\n"))
	require.NoError(t, err)

	rec := f.do(http.MethodPost, "/demo.git/git-upload-pack", &body)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, "application/x-git-upload-pack-result", rec.Header().Get("Content-Type"))
	assert.True(t, strings.HasPrefix(rec.Body.String(), "0008NAK\n"))
	assert.Contains(t, rec.Body.String(), "PACK")
}

func TestUploadPack_GzipBody(t *testing.T) {
	f := newFixture(t, allCapabilities())

	_, err := f.manager.Create(context.Background(), "Demo", "demo", "")
	require.NoError(t, err)

	repo, err := git.PlainOpen(f.manager.PathFor("demo"))
	require.NoError(t, err)

	head, err := repo.Head()
	require.NoError(t, err)

	req := packp.NewUploadPackRequest()
	req.Wants = append(req.Wants, head.Hash())

	var plain bytes.Buffer
	require.NoError(t, req.UploadRequest.Encode(&plain))
	_, err = io.WriteString(&plain, gitproto.PktLine("done\n"))
	require.NoError(t, err)

	var body bytes.Buffer
	zw := gzip.NewWriter(&body)
	_, err = zw.Write(plain.Bytes())
	require.NoError(t, err)
	require.NoError(t, zw.Close())

	httpReq := httptest.NewRequest(http.MethodPost, "/demo.git/git-upload-pack", &body)
	httpReq.Header.Set("Content-Type", gitproto.UploadPack.RequestContentType())
	httpReq.Header.Set("Content-Encoding", "gzip")

	rec := httptest.NewRecorder()
	f.server.Handler().ServeHTTP(rec, httpReq)

	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.True(t, strings.HasPrefix(rec.Body.String(), "0008NAK\n"))
	assert.Contains(t, rec.Body.String(), "PACK")
}

func TestManagementAPI(t *testing.T) {
	f := newFixture(t, allCapabilities())

	rec := f.postForm(apiCreate, url.Values{"name": {"Demo"}, "mapping": {"demo"}, "description": {"first"}})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, "OK", rec.Body.String())

	rec = f.postForm(apiCreate, url.Values{"name": {"Again"}, "mapping": {"demo"}})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = f.postForm(apiCreate, url.Values{"name": {"No mapping"}})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = f.postForm(apiCreate, url.Values{"name": {"Bad"}, "mapping": {"../escape"}})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	assert.Equal(t, http.StatusMethodNotAllowed, f.do(http.MethodGet, apiCreate, nil).Code)

	rec = f.do(http.MethodGet, apiRepositories, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var repos []RepositoryView
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &repos))
	require.Len(t, repos, 1)
	assert.Equal(t, "demo", repos[0].Mapping)
	assert.Equal(t, "first", repos[0].Description)
	assert.Equal(t, 8080, repos[0].HTTPPort)

	id := repos[0].ID

	rec = f.postForm(apiUpdate, url.Values{"id": {strconv.FormatInt(id, 10)}, "description": {"second"}})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	got, err := f.manager.Get(context.Background(), id)
	require.NoError(t, err)
	assert.Equal(t, "Demo", got.Name)
	assert.Equal(t, "second", got.Description)

	rec = f.postForm(apiArchive+strconv.FormatInt(id, 10), url.Values{})
	require.Equal(t, http.StatusOK, rec.Code)

	rec = f.postForm(apiActivate+strconv.FormatInt(id, 10), url.Values{"active": {"false"}})
	require.Equal(t, http.StatusOK, rec.Code)

	rec = f.do(http.MethodGet, apiRepositories, nil)
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &repos))
	assert.Empty(t, repos)

	assert.Equal(t, http.StatusNotFound, f.postForm(apiArchive+"999", url.Values{}).Code)
	assert.Equal(t, http.StatusBadRequest, f.postForm(apiArchive+"abc", url.Values{}).Code)

	rec = f.postForm(apiDelete+strconv.FormatInt(id, 10), url.Values{})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.False(t, f.manager.Exists("demo"))
}

func TestScanEndpoint(t *testing.T) {
	f := newFixture(t, allCapabilities())

	gittest.InitBare(t, filepath.Join(f.manager.Root(), "extra.git"))

	rec := f.postForm(apiScan, url.Values{})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var result ScanResult
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &result))
	assert.Equal(t, 1, result.Imported)

	repo, err := f.manager.GetByMapping(context.Background(), "extra")
	require.NoError(t, err)
	assert.NotNil(t, repo)
}

func TestUsersAndHealth(t *testing.T) {
	f := newFixture(t, allCapabilities())

	_, err := f.users.Add(context.Background(), "alice", "secret", "Alice", "alice@example.com")
	require.NoError(t, err)

	rec := f.do(http.MethodGet, apiUsers, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"username":"alice"`)
	assert.NotContains(t, rec.Body.String(), core.HashPassword("secret"))

	rec = f.do(http.MethodGet, "/healthz", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "ok")
}

func TestConsole(t *testing.T) {
	f := newFixture(t, allCapabilities())

	_, err := f.manager.Create(context.Background(), "Demo", "demo", "")
	require.NoError(t, err)

	rec := f.do(http.MethodGet, "/", nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, "text/html; charset=utf-8", rec.Header().Get("Content-Type"))
	assert.Contains(t, rec.Body.String(), "http://example.com/demo.git")
	assert.Contains(t, rec.Body.String(), `href="/browse/demo"`)

	assert.Equal(t, http.StatusNotFound, f.do(http.MethodGet, "/nothing/here", nil).Code)
}

func TestBrowse(t *testing.T) {
	f := newFixture(t, allCapabilities())

	_, err := f.manager.Create(context.Background(), "Demo", "demo", "")
	require.NoError(t, err)

	rec := f.do(http.MethodGet, "/browse/demo", nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Contains(t, rec.Body.String(), ".gitignore")
	assert.Contains(t, rec.Body.String(), `id="readme"`)

	rec = f.do(http.MethodGet, "/browse/demo?path=README.md", nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Contains(t, rec.Body.String(), "<pre><code>")

	files, err := core.DefaultSeedFiles()
	require.NoError(t, err)

	var readme []byte
	for _, file := range files {
		if file.Name == "README.md" {
			readme = file.Data
		}
	}

	rec = f.do(http.MethodGet, "/browse/demo?path=README.md&raw=true", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, readme, rec.Body.Bytes())
	assert.NotEmpty(t, rec.Header().Get("Content-Length"))

	rec = f.do(http.MethodGet, "/browse/demo?raw=true", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "Not a file")

	rec = f.do(http.MethodGet, "/browse/demo?path=nope", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Contains(t, rec.Body.String(), "Path not found")

	assert.Equal(t, http.StatusNotFound, f.do(http.MethodGet, "/browse/demo?ref=nope", nil).Code)
	assert.Equal(t, http.StatusNotFound, f.do(http.MethodGet, "/browse/missing", nil).Code)
}

func TestCommits(t *testing.T) {
	f := newFixture(t, allCapabilities())

	_, err := f.manager.Create(context.Background(), "Demo", "demo", "")
	require.NoError(t, err)

	rec := f.do(http.MethodGet, "/commits/demo", nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Contains(t, rec.Body.String(), "Initial commit")

	gittest.InitBare(t, filepath.Join(f.manager.Root(), "empty.git"))

	rec = f.do(http.MethodGet, "/commits/empty", nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Contains(t, rec.Body.String(), "git remote add origin http://example.com/empty.git")

	rec = f.do(http.MethodGet, "/browse/empty", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Contains(t, rec.Body.String(), "empty Git repository")
}
