package web

import (
	"net/http"
	"strings"

	"github.com/inovacc/gitcove/internal/gitproto"
	"github.com/inovacc/gitcove/internal/model"
)

const (
	apiRepositories = "/api/repositories"
	apiCreate       = "/api/repositories/create"
	apiUpdate       = "/api/repositories/update"
	apiScan         = "/api/repositories/scan"
	apiArchive      = "/api/repositories/archive/"
	apiActivate     = "/api/repositories/activate/"
	apiDelete       = "/api/repositories/delete/"
	apiUsers        = "/api/users"

	browsePrefix  = "/browse/"
	commitsPrefix = "/commits/"
)

// ExtractRepoName returns the mapping addressed by a request path: the part
// before ".git" when the path carries the suffix, else the first segment.
func ExtractRepoName(uri string) string {
	p := strings.TrimPrefix(uri, "/")

	if i := strings.Index(p, model.RepoSuffix+"/"); i >= 0 {
		return p[:i]
	}

	if strings.HasSuffix(p, model.RepoSuffix) {
		return strings.TrimSuffix(p, model.RepoSuffix)
	}

	if i := strings.Index(p, "/"); i >= 0 {
		return p[:i]
	}

	return p
}

// ServeHTTP dispatches a request; the first matching rule wins.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	path := r.URL.Path

	switch {
	// Git Smart HTTP
	case strings.HasSuffix(path, "/info/refs"):
		s.handleInfoRefs(w, r)
	case strings.HasSuffix(path, "/"+gitproto.UploadPack.String()):
		s.handleServiceRPC(w, r, gitproto.UploadPack)
	case strings.HasSuffix(path, "/"+gitproto.ReceivePack.String()):
		s.handleServiceRPC(w, r, gitproto.ReceivePack)

	// Console
	case path == "/" || path == "/index.html":
		s.handleConsole(w, r)
	case path == "/healthz":
		s.handleHealth(w, r)

	// Management API
	case path == apiRepositories:
		s.handleListRepositories(w, r)
	case path == apiCreate:
		s.handleCreateRepository(w, r)
	case path == apiUpdate:
		s.handleUpdateRepository(w, r)
	case path == apiScan:
		s.handleScan(w, r)
	case strings.HasPrefix(path, apiArchive):
		s.handleArchiveRepository(w, r)
	case strings.HasPrefix(path, apiActivate):
		s.handleActivateRepository(w, r)
	case strings.HasPrefix(path, apiDelete):
		s.handleDeleteRepository(w, r)
	case path == apiUsers:
		s.handleListUsers(w, r)

	// Browser
	case strings.HasPrefix(path, browsePrefix):
		s.handleBrowse(w, r)
	case strings.HasPrefix(path, commitsPrefix):
		s.handleCommits(w, r)

	default:
		http.NotFound(w, r)
	}
}

func allowMethod(w http.ResponseWriter, r *http.Request, method string) bool {
	if r.Method == method {
		return true
	}

	w.Header().Set("Allow", method)
	http.Error(w, "Method Not Allowed", http.StatusMethodNotAllowed)

	return false
}
