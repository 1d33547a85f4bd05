package web

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/inovacc/gitcove/internal/core"
	"github.com/inovacc/gitcove/internal/gitproto"
	"github.com/inovacc/gitcove/internal/stream"
)

func (s *Server) serviceEnabled(svc gitproto.Service) bool {
	switch svc {
	case gitproto.UploadPack:
		return s.config.Capabilities.UploadPack
	case gitproto.ReceivePack:
		return s.config.Capabilities.ReceivePack
	default:
		return false
	}
}

// resolveGitTarget applies the capability and archival gates and returns
// the repository directory. Mappings that do not name a direct child of the
// root are not found. An unregistered mapping is still served when its
// directory exists.
func (s *Server) resolveGitTarget(ctx context.Context, mapping string, svc gitproto.Service) (string, error) {
	if !s.serviceEnabled(svc) {
		return "", &serviceDisabledError{svc: svc}
	}

	dir, err := s.manager.Resolve(mapping)
	if err != nil {
		return "", err
	}

	repo, err := s.manager.GetByMapping(ctx, mapping)
	if err != nil {
		return "", err
	}

	if repo != nil && repo.Archived {
		return "", &core.ArchivedError{Mapping: mapping}
	}

	return dir, nil
}

type serviceDisabledError struct {
	svc gitproto.Service
}

func (e *serviceDisabledError) Error() string {
	return fmt.Sprintf("%s is disabled on this server", e.svc)
}

func (s *Server) handleInfoRefs(w http.ResponseWriter, r *http.Request) {
	if !allowMethod(w, r, http.MethodGet) {
		return
	}

	svc, err := gitproto.ParseService(r.URL.Query().Get("service"))
	if err != nil {
		http.Error(w, "Missing or invalid service parameter", http.StatusBadRequest)
		return
	}

	mapping := ExtractRepoName(r.URL.Path)

	dir, err := s.resolveGitTarget(r.Context(), mapping, svc)
	if err != nil {
		s.gitError(w, mapping, err)
		return
	}

	var buf bytes.Buffer

	if err := gitproto.WriteServiceAnnouncement(&buf, svc); err != nil {
		s.gitError(w, mapping, core.NewEngineError("write service announcement", err))
		return
	}

	// the advertisement ends with its own flush packet
	if err := s.engine.Advertise(r.Context(), dir, svc, &buf); err != nil {
		s.gitError(w, mapping, err)
		return
	}

	writeGitResponse(w, svc.AdvertisementContentType(), buf.Bytes())
}

// handleServiceRPC runs one stateless upload-pack or receive-pack exchange.
// The engine consumes the whole body before the buffered result is sent.
func (s *Server) handleServiceRPC(w http.ResponseWriter, r *http.Request, svc gitproto.Service) {
	if !allowMethod(w, r, http.MethodPost) {
		return
	}

	mapping := ExtractRepoName(r.URL.Path)

	dir, err := s.resolveGitTarget(r.Context(), mapping, svc)
	if err != nil {
		s.gitError(w, mapping, err)
		return
	}

	body, err := stream.Decode(r.Header, r.Body)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	defer func() { _ = body.Close() }()

	slog.Debug("git request", "service", svc.String(), "mapping", mapping, "framing", body.Framing.String())

	var buf bytes.Buffer

	switch svc {
	case gitproto.UploadPack:
		err = s.engine.UploadPack(r.Context(), dir, body, &buf)
	case gitproto.ReceivePack:
		err = s.engine.ReceivePack(r.Context(), dir, body, &buf)
	}

	if err != nil {
		s.gitError(w, mapping, err)
		return
	}

	writeGitResponse(w, svc.ResultContentType(), buf.Bytes())
}

func writeGitResponse(w http.ResponseWriter, contentType string, body []byte) {
	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Cache-Control", "no-cache")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(body)
}

// gitError answers a protocol request in plain text. Engine failures carry
// their stack trace in the body.
func (s *Server) gitError(w http.ResponseWriter, mapping string, err error) {
	var disabled *serviceDisabledError

	switch {
	case errors.As(err, &disabled):
		http.Error(w, err.Error(), http.StatusForbidden)
		return
	case errors.Is(err, gitproto.ErrRepositoryNotFound):
		err = &core.NotFoundError{Kind: "repository", Key: mapping}
	}

	status := core.StatusCode(err)

	if status != http.StatusInternalServerError {
		http.Error(w, err.Error(), status)
		return
	}

	var engineErr *core.EngineError
	if !errors.As(err, &engineErr) {
		var persistErr *core.PersistenceError
		if !errors.As(err, &persistErr) {
			err = core.NewEngineError("git "+mapping, err)
		}
	}

	slog.Error("git request failed", "mapping", mapping, "error", err)
	http.Error(w, fmt.Sprintf("%+v", err), status)
}
