package gitproto

import (
	"bytes"
	"context"
	"io"
	"os"
	"path/filepath"

	"github.com/go-git/go-billy/v5/osfs"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/cache"
	"github.com/go-git/go-git/v5/plumbing/format/pktline"
	"github.com/go-git/go-git/v5/plumbing/protocol/packp"
	"github.com/go-git/go-git/v5/plumbing/transport"
	"github.com/go-git/go-git/v5/plumbing/transport/server"
	"github.com/go-git/go-git/v5/storage/filesystem"
	"github.com/pkg/errors"
)

// ErrRepositoryNotFound is returned when no Git data exists at the path.
var ErrRepositoryNotFound = errors.New("repository not found")

// StorageRoot returns the directory holding the Git object store for path:
// path itself for a bare repository, path/.git for a working copy.
func StorageRoot(path string) string {
	dotGit := filepath.Join(path, ".git")
	if info, err := os.Stat(dotGit); err == nil && info.IsDir() {
		return dotGit
	}

	return path
}

// OpenStorage opens the go-git filesystem storage behind path. The caller
// must Close it.
func OpenStorage(path string) (*filesystem.Storage, error) {
	root := StorageRoot(path)

	if _, err := os.Stat(filepath.Join(root, "HEAD")); err != nil {
		if os.IsNotExist(err) {
			return nil, ErrRepositoryNotFound
		}

		return nil, errors.WithStack(err)
	}

	return filesystem.NewStorage(osfs.New(root), cache.NewObjectLRUDefault()), nil
}

// Engine runs the Smart HTTP services against repositories on disk. Every
// call opens its own storage handle and releases it before returning.
type Engine struct{}

func NewEngine() *Engine {
	return &Engine{}
}

type session struct {
	srv transport.Transport
	ep  *transport.Endpoint
	st  *filesystem.Storage
}

func (e *Engine) open(path string) (*session, error) {
	st, err := OpenStorage(path)
	if err != nil {
		return nil, err
	}

	ep, err := transport.NewEndpoint("/")
	if err != nil {
		_ = st.Close()
		return nil, errors.Wrap(err, "build endpoint")
	}

	return &session{
		srv: server.NewServer(server.MapLoader{ep.String(): st}),
		ep:  ep,
		st:  st,
	}, nil
}

func (s *session) Close() error {
	return s.st.Close()
}

// Advertise writes the engine's reference advertisement for svc. The
// output is self-terminated; nothing must follow it.
func (e *Engine) Advertise(ctx context.Context, path string, svc Service, w io.Writer) error {
	sess, err := e.open(path)
	if err != nil {
		return err
	}
	defer func() { _ = sess.Close() }()

	var ar *packp.AdvRefs

	switch svc {
	case UploadPack:
		up, err := sess.srv.NewUploadPackSession(sess.ep, nil)
		if err != nil {
			return errors.Wrap(err, "open upload-pack session")
		}
		defer func() { _ = up.Close() }()

		ar, err = up.AdvertisedReferencesContext(ctx)
		if err != nil {
			return errors.Wrap(err, "advertise upload-pack references")
		}
	case ReceivePack:
		rp, err := sess.srv.NewReceivePackSession(sess.ep, nil)
		if err != nil {
			return errors.Wrap(err, "open receive-pack session")
		}
		defer func() { _ = rp.Close() }()

		ar, err = rp.AdvertisedReferencesContext(ctx)
		if err != nil {
			return errors.Wrap(err, "advertise receive-pack references")
		}
	default:
		return errors.Errorf("unsupported service %q", svc)
	}

	return errors.Wrap(ar.Encode(w), "encode advertisement")
}

// UploadPack consumes an upload-pack request from body and writes the
// server response to w. A request ending in "done" gets the pack; a
// negotiation round without "done" gets only an ACK for the first common
// object, or NAK.
func (e *Engine) UploadPack(ctx context.Context, path string, body io.Reader, w io.Writer) error {
	sess, err := e.open(path)
	if err != nil {
		return err
	}
	defer func() { _ = sess.Close() }()

	req := packp.NewUploadPackRequest()
	if err := req.Decode(body); err != nil {
		return errors.Wrap(err, "decode upload-pack request")
	}

	done, err := decodeHaves(body, req)
	if err != nil {
		return err
	}

	if !done {
		return negotiate(sess.st, req.Haves, w)
	}

	up, err := sess.srv.NewUploadPackSession(sess.ep, nil)
	if err != nil {
		return errors.Wrap(err, "open upload-pack session")
	}
	defer func() { _ = up.Close() }()

	resp, err := up.UploadPack(ctx, req)
	if err != nil {
		return errors.Wrap(err, "upload-pack")
	}
	defer func() { _ = resp.Close() }()

	return errors.Wrap(resp.Encode(w), "encode upload-pack response")
}

// decodeHaves reads the "have" lines that follow the want section, up to
// "done" or the end of the request.
func decodeHaves(body io.Reader, req *packp.UploadPackRequest) (bool, error) {
	scanner := pktline.NewScanner(body)

	for scanner.Scan() {
		line := bytes.TrimSuffix(scanner.Bytes(), []byte("\n"))

		switch {
		case len(line) == 0:
			// flush between negotiation rounds
		case bytes.Equal(line, []byte("done")):
			return true, nil
		case bytes.HasPrefix(line, []byte("have ")):
			hash := plumbing.NewHash(string(line[len("have "):]))
			if hash.IsZero() {
				return false, errors.Errorf("invalid have line %q", line)
			}

			req.Haves = append(req.Haves, hash)
		default:
			return false, errors.Errorf("unexpected upload-pack line %q", line)
		}
	}

	if err := scanner.Err(); err != nil {
		return false, errors.Wrap(err, "read upload-pack haves")
	}

	// a clone sends no haves and may end right after the wants
	return len(req.Haves) == 0, nil
}

func negotiate(st *filesystem.Storage, haves []plumbing.Hash, w io.Writer) error {
	enc := pktline.NewEncoder(w)

	for _, have := range haves {
		if st.HasEncodedObject(have) == nil {
			return errors.Wrap(enc.EncodeString("ACK "+have.String()+"\n"), "encode ACK")
		}
	}

	return errors.Wrap(enc.EncodeString("NAK\n"), "encode NAK")
}

// ReceivePack consumes a complete receive-pack request from body, applies
// it, and writes the report-status to w when the client asked for one.
//
// When the engine produced a report, the report is written even if some
// reference updates failed; the report carries the per-reference errors
// and the returned error is nil.
func (e *Engine) ReceivePack(ctx context.Context, path string, body io.Reader, w io.Writer) error {
	sess, err := e.open(path)
	if err != nil {
		return err
	}
	defer func() { _ = sess.Close() }()

	req := packp.NewReferenceUpdateRequest()
	if err := req.Decode(body); err != nil {
		return errors.Wrap(err, "decode receive-pack request")
	}

	rp, err := sess.srv.NewReceivePackSession(sess.ep, nil)
	if err != nil {
		return errors.Wrap(err, "open receive-pack session")
	}
	defer func() { _ = rp.Close() }()

	report, err := rp.ReceivePack(ctx, req)
	if report == nil {
		return errors.Wrap(err, "receive-pack")
	}

	return errors.Wrap(report.Encode(w), "encode report-status")
}
