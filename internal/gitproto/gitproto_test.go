package gitproto

import (
	"bytes"
	"context"
	"io"
	"path/filepath"
	"testing"
	"time"

	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/format/packfile"
	"github.com/go-git/go-git/v5/plumbing/object"
	"github.com/go-git/go-git/v5/plumbing/protocol/packp"
	"github.com/go-git/go-git/v5/plumbing/protocol/packp/capability"
	"github.com/inovacc/gitcove/internal/gittest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseService(t *testing.T) {
	svc, err := ParseService("git-upload-pack")
	require.NoError(t, err)
	assert.Equal(t, UploadPack, svc)
	assert.Equal(t, "application/x-git-upload-pack-advertisement", svc.AdvertisementContentType())
	assert.Equal(t, "application/x-git-upload-pack-result", svc.ResultContentType())

	svc, err = ParseService("git-receive-pack")
	require.NoError(t, err)
	assert.Equal(t, "application/x-git-receive-pack-result", svc.ResultContentType())

	_, err = ParseService("")
	assert.Error(t, err)

	_, err = ParseService("git-upload-archive")
	assert.Error(t, err)
}

func TestPktLine(t *testing.T) {
	assert.Equal(t, "0006a\n", PktLine("a\n"))
	assert.Equal(t, "0004", PktLine(""))
}

func TestWriteServiceAnnouncement(t *testing.T) {
	var buf bytes.Buffer

	require.NoError(t, WriteServiceAnnouncement(&buf, UploadPack))
	assert.Equal(t, "001e# service=git-upload-pack\n0000", buf.String())
	assert.Equal(t, PktLine("# service=git-upload-pack\n")+FlushPkt, buf.String())
}

func seededRepo(t *testing.T) (string, plumbing.Hash) {
	t.Helper()

	dir := filepath.Join(t.TempDir(), "demo.git")
	repo := gittest.InitBare(t, dir)
	hash := gittest.Commit(t, repo, map[string]string{"README.md": "# demo\n"}, time.Now(), "first")

	return dir, hash
}

func TestEngine_Advertise(t *testing.T) {
	dir, hash := seededRepo(t)
	engine := NewEngine()

	for _, svc := range []Service{UploadPack, ReceivePack} {
		t.Run(svc.String(), func(t *testing.T) {
			var buf bytes.Buffer

			require.NoError(t, engine.Advertise(context.Background(), dir, svc, &buf))

			out := buf.String()
			assert.Contains(t, out, hash.String())
			assert.Contains(t, out, "refs/heads/master")
			assert.True(t, bytes.HasSuffix(buf.Bytes(), []byte(FlushPkt)))
		})
	}
}

func TestEngine_AdvertiseEmptyRepository(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "empty.git")
	gittest.InitBare(t, dir)

	var buf bytes.Buffer

	require.NoError(t, NewEngine().Advertise(context.Background(), dir, ReceivePack, &buf))
	assert.Contains(t, buf.String(), "capabilities^{}")
}

func TestEngine_MissingRepository(t *testing.T) {
	var buf bytes.Buffer

	err := NewEngine().Advertise(context.Background(), filepath.Join(t.TempDir(), "nope.git"), UploadPack, &buf)
	assert.ErrorIs(t, err, ErrRepositoryNotFound)
}

func TestEngine_UploadPack(t *testing.T) {
	dir, hash := seededRepo(t)

	req := packp.NewUploadPackRequest()
	req.Wants = append(req.Wants, hash)

	var reqBuf bytes.Buffer
	require.NoError(t, req.UploadRequest.Encode(&reqBuf))
	_, err := io.WriteString(&reqBuf, "0009done\n")
	require.NoError(t, err)

	var out bytes.Buffer
	require.NoError(t, NewEngine().UploadPack(context.Background(), dir, &reqBuf, &out))

	assert.True(t, bytes.HasPrefix(out.Bytes(), []byte("0008NAK\n")), "got %q", out.String())
	assert.Contains(t, out.String(), "PACK")
}

func TestEngine_UploadPackNegotiation(t *testing.T) {
	dir, hash := seededRepo(t)

	req := packp.NewUploadPackRequest()
	req.Wants = append(req.Wants, hash)

	var reqBuf bytes.Buffer
	require.NoError(t, req.UploadRequest.Encode(&reqBuf))
	_, err := io.WriteString(&reqBuf, PktLine("have "+hash.String()+"\n")+FlushPkt)
	require.NoError(t, err)

	var out bytes.Buffer
	require.NoError(t, NewEngine().UploadPack(context.Background(), dir, &reqBuf, &out))
	assert.Equal(t, PktLine("ACK "+hash.String()+"\n"), out.String())

	unknown := plumbing.NewHash("1111111111111111111111111111111111111111")

	reqBuf.Reset()
	require.NoError(t, req.UploadRequest.Encode(&reqBuf))
	_, err = io.WriteString(&reqBuf, PktLine("have "+unknown.String()+"\n")+FlushPkt)
	require.NoError(t, err)

	out.Reset()
	require.NoError(t, NewEngine().UploadPack(context.Background(), dir, &reqBuf, &out))
	assert.Equal(t, "0008NAK\n", out.String())
}

func TestEngine_ReceivePack(t *testing.T) {
	// source repository holding the objects to push
	srcDir := filepath.Join(t.TempDir(), "src.git")
	src := gittest.InitBare(t, srcDir)
	hash := gittest.Commit(t, src, map[string]string{"main.go": "package main\n"}, time.Now(), "pushed")

	commit, err := src.CommitObject(hash)
	require.NoError(t, err)

	tree, err := commit.Tree()
	require.NoError(t, err)

	objects := []plumbing.Hash{hash, tree.Hash}
	require.NoError(t, tree.Files().ForEach(func(f *object.File) error {
		objects = append(objects, f.Hash)
		return nil
	}))

	var pack bytes.Buffer
	_, err = packfile.NewEncoder(&pack, src.Storer, false).Encode(objects, 10)
	require.NoError(t, err)

	dstDir := filepath.Join(t.TempDir(), "dst.git")
	gittest.InitBare(t, dstDir)

	req := packp.NewReferenceUpdateRequest()
	require.NoError(t, req.Capabilities.Set(capability.ReportStatus))
	req.Commands = []*packp.Command{{Name: plumbing.Master, Old: plumbing.ZeroHash, New: hash}}
	req.Packfile = io.NopCloser(&pack)

	var reqBuf bytes.Buffer
	require.NoError(t, req.Encode(&reqBuf))

	var out bytes.Buffer
	require.NoError(t, NewEngine().ReceivePack(context.Background(), dstDir, &reqBuf, &out))
	assert.Contains(t, out.String(), "unpack ok")
	assert.Contains(t, out.String(), "ok refs/heads/master")

	dst, err := git.PlainOpen(dstDir)
	require.NoError(t, err)

	ref, err := dst.Reference(plumbing.Master, false)
	require.NoError(t, err)
	assert.Equal(t, hash, ref.Hash())
}

func TestStorageRoot(t *testing.T) {
	dir := t.TempDir()
	assert.Equal(t, dir, StorageRoot(dir))

	work := filepath.Join(t.TempDir(), "work")
	_, err := git.PlainInit(work, false)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(work, ".git"), StorageRoot(work))
}
