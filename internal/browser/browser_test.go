package browser

import (
	"errors"
	"io"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/inovacc/gitcove/internal/gitproto"
	"github.com/inovacc/gitcove/internal/gittest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	t1 = time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)
	t2 = time.Date(2024, 3, 2, 10, 0, 0, 0, time.UTC)
)

// fixture: two commits; the second only touches docs/guide.txt
func fixture(t *testing.T) string {
	t.Helper()

	dir := filepath.Join(t.TempDir(), "demo.git")
	repo := gittest.InitBare(t, dir)

	gittest.Commit(t, repo, map[string]string{
		"hello.txt":      "0123456789",
		"README.md":      "# Demo\n",
		"docs/guide.txt": "v1",
		"logo.bin":       "\x89PNG\r\n\x1a\n0000",
	}, t1, "first commit\n\nwith a body")

	gittest.Commit(t, repo, map[string]string{
		"hello.txt":      "0123456789",
		"README.md":      "# Demo\n",
		"docs/guide.txt": "v2",
		"logo.bin":       "\x89PNG\r\n\x1a\n0000",
	}, t2, "update guide")

	return dir
}

func open(t *testing.T, dir string) *Repository {
	t.Helper()

	r, err := Open(dir)
	require.NoError(t, err)

	t.Cleanup(func() { _ = r.Close() })

	return r
}

func TestOpen_Missing(t *testing.T) {
	_, err := Open(filepath.Join(t.TempDir(), "missing.git"))
	assert.ErrorIs(t, err, gitproto.ErrRepositoryNotFound)
}

func TestResolveRef(t *testing.T) {
	r := open(t, fixture(t))

	head, err := r.ResolveRef("")
	require.NoError(t, err)
	assert.Equal(t, "update guide", head.Message)

	master, err := r.ResolveRef("refs/heads/master")
	require.NoError(t, err)
	assert.Equal(t, head.Hash, master.Hash)

	short, err := r.ResolveRef("master")
	require.NoError(t, err)
	assert.Equal(t, head.Hash, short.Hash)

	_, err = r.ResolveRef("refs/heads/nope")

	var unknown *UnknownRefError
	require.True(t, errors.As(err, &unknown), "got %v", err)
	assert.Equal(t, "refs/heads/nope", unknown.Ref)
}

func TestResolveRef_EmptyRepository(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "empty.git")
	gittest.InitBare(t, dir)

	r := open(t, dir)

	_, err := r.ResolveRef("")
	assert.ErrorIs(t, err, ErrEmptyRepository)

	_, err = r.History("", 0)
	assert.ErrorIs(t, err, ErrEmptyRepository)
}

func TestResolvePath(t *testing.T) {
	r := open(t, fixture(t))

	head, err := r.ResolveRef("")
	require.NoError(t, err)

	root, err := r.ResolvePath(head, "/")
	require.NoError(t, err)
	assert.True(t, root.IsDir)

	docs, err := r.ResolvePath(head, "docs/")
	require.NoError(t, err)
	assert.True(t, docs.IsDir)
	assert.Equal(t, "docs", docs.Path)

	file, err := r.ResolvePath(head, "docs/guide.txt")
	require.NoError(t, err)
	assert.False(t, file.IsDir)

	_, err = r.ResolvePath(head, "docs/missing.txt")
	assert.ErrorIs(t, err, ErrPathNotFound)

	_, err = r.ResolvePath(head, "nowhere/file")
	assert.ErrorIs(t, err, ErrPathNotFound)
}

func TestList(t *testing.T) {
	r := open(t, fixture(t))

	head, err := r.ResolveRef("")
	require.NoError(t, err)

	listing, err := r.List(head, "")
	require.NoError(t, err)

	names := make([]string, 0, len(listing.Entries))
	for _, e := range listing.Entries {
		names = append(names, e.Name)
	}

	assert.Equal(t, []string{"docs", "README.md", "hello.txt", "logo.bin"}, names)

	byName := make(map[string]Entry)
	for _, e := range listing.Entries {
		byName[e.Name] = e
	}

	hello := byName["hello.txt"]
	assert.False(t, hello.IsDir)
	assert.Equal(t, int64(10), hello.Size)
	assert.True(t, t1.Equal(hello.LastModified), "got %s", hello.LastModified)

	docs := byName["docs"]
	assert.True(t, docs.IsDir)
	assert.Zero(t, docs.Size)
	assert.True(t, t2.Equal(docs.LastModified), "got %s", docs.LastModified)

	assert.Equal(t, "README.md", listing.ReadmeName)
	assert.Equal(t, "# Demo\n", string(listing.Readme))
}

func TestList_Subdirectory(t *testing.T) {
	r := open(t, fixture(t))

	head, err := r.ResolveRef("")
	require.NoError(t, err)

	listing, err := r.List(head, "docs")
	require.NoError(t, err)
	require.Len(t, listing.Entries, 1)

	guide := listing.Entries[0]
	assert.Equal(t, "docs/guide.txt", guide.Path)
	assert.Equal(t, int64(2), guide.Size)
	assert.True(t, t2.Equal(guide.LastModified))
	assert.Nil(t, listing.Readme)
}

func TestBlob(t *testing.T) {
	r := open(t, fixture(t))

	head, err := r.ResolveRef("")
	require.NoError(t, err)

	b, err := r.Blob(head, "hello.txt")
	require.NoError(t, err)

	data, err := io.ReadAll(b)
	require.NoError(t, err)
	require.NoError(t, b.Close())

	assert.Equal(t, "0123456789", string(data))
	assert.Equal(t, int64(10), b.Size)
	assert.Equal(t, "text/plain", b.MIME)

	sniffed, err := r.Blob(head, "logo.bin")
	require.NoError(t, err)
	assert.Equal(t, "image/png", sniffed.MIME)
	require.NoError(t, sniffed.Close())

	_, err = r.Blob(head, "docs")
	assert.ErrorIs(t, err, ErrNotAFile)
}

func TestHistory(t *testing.T) {
	r := open(t, fixture(t))

	commits, err := r.History("", 0)
	require.NoError(t, err)
	require.Len(t, commits, 2)

	assert.Equal(t, "update guide", commits[0].Message)
	assert.Equal(t, "first commit", commits[1].Message)
	assert.Len(t, commits[0].ShortHash, 7)
	assert.True(t, strings.HasPrefix(commits[0].Hash, commits[0].ShortHash))
	assert.Equal(t, "Tester", commits[0].Author)
	assert.True(t, t2.Equal(commits[0].When))

	limited, err := r.History("master", 1)
	require.NoError(t, err)
	assert.Len(t, limited, 1)
}

func TestMIME(t *testing.T) {
	tests := []struct {
		name  string
		mime  string
		known bool
	}{
		{"index.HTML", "text/html", true},
		{"app.js", "application/javascript", true},
		{"photo.JPEG", "image/jpeg", true},
		{"clip.webm", "video/webm", true},
		{"song.mp3", "audio/mpeg", true},
		{"Makefile", "application/octet-stream", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mime, known := MIMEByExtension(tt.name)
			assert.Equal(t, tt.mime, mime)
			assert.Equal(t, tt.known, known)
		})
	}

	assert.True(t, IsText("text/x-go"))
	assert.True(t, IsText("application/json"))
	assert.False(t, IsText("image/png"))
}

func TestPreview(t *testing.T) {
	assert.Equal(t, PreviewImage, Preview("image/png", 10))
	assert.Equal(t, PreviewVideo, Preview("video/mp4", 10))
	assert.Equal(t, PreviewAudio, Preview("audio/wav", 10))
	assert.Equal(t, PreviewText, Preview("text/plain", 5*TextPreviewMaxSize))
	assert.Equal(t, PreviewText, Preview("application/octet-stream", 100))
	assert.Equal(t, PreviewDownload, Preview("application/octet-stream", TextPreviewMaxSize))
}
