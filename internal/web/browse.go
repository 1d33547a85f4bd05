package web

import (
	"errors"
	"html/template"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"path"
	"strconv"
	"strings"

	"github.com/go-git/go-git/v5/plumbing/object"
	"github.com/inovacc/gitcove/internal/browser"
	"github.com/inovacc/gitcove/internal/gitproto"
	"github.com/inovacc/gitcove/internal/model"
	"github.com/russross/blackfriday/v2"
)

// Crumb is one link of the path breadcrumb.
type Crumb struct {
	Name string
	Path string
}

// BrowseData feeds browse.html and file.html.
type BrowseData struct {
	Title    string
	Mapping  string
	Ref      string
	Path     string
	Parent   string
	Crumbs   []Crumb
	Branches []string

	Listing *browser.Listing
	Readme  template.HTML

	File      *browser.Blob
	Preview   browser.PreviewKind
	Content   string
	Truncated bool
	RawURL    string
}

// CommitsData feeds commits.html.
type CommitsData struct {
	Title   string
	Mapping string
	Ref     string
	Commits []browser.CommitInfo
}

// EmptyData feeds the bootstrap guide for repositories without commits.
type EmptyData struct {
	Title    string
	Mapping  string
	CloneURL string
}

func cloneURL(r *http.Request, mapping string) string {
	return "http://" + r.Host + "/" + mapping + model.RepoSuffix
}

func crumbs(p string) []Crumb {
	if p == "" {
		return nil
	}

	var (
		out []Crumb
		cur string
	)

	for _, part := range strings.Split(p, "/") {
		cur = path.Join(cur, part)
		out = append(out, Crumb{Name: part, Path: cur})
	}

	return out
}

func parentPath(p string) string {
	parent := path.Dir(p)
	if parent == "." {
		return ""
	}

	return parent
}

// renderMarkdown renders README content; raw HTML in the source is dropped.
func renderMarkdown(src []byte) template.HTML {
	renderer := blackfriday.NewHTMLRenderer(blackfriday.HTMLRendererParameters{
		Flags: blackfriday.CommonHTMLFlags | blackfriday.SkipHTML,
	})

	//nolint:gosec // raw HTML is skipped by the renderer
	return template.HTML(blackfriday.Run(src, blackfriday.WithRenderer(renderer)))
}

// openForBrowse opens the repository behind mapping. It writes the error
// response itself and returns nil on failure.
func (s *Server) openForBrowse(w http.ResponseWriter, mapping string) *browser.Repository {
	dir, err := s.manager.Resolve(mapping)
	if err != nil {
		http.Error(w, "Repository not found", http.StatusNotFound)
		return nil
	}

	repo, err := browser.Open(dir)
	if err != nil {
		if errors.Is(err, gitproto.ErrRepositoryNotFound) {
			http.Error(w, "Repository not found", http.StatusNotFound)
			return nil
		}

		slog.Error("failed to open repository", "mapping", mapping, "error", err)
		http.Error(w, err.Error(), http.StatusInternalServerError)

		return nil
	}

	return repo
}

func (s *Server) handleBrowse(w http.ResponseWriter, r *http.Request) {
	if !s.config.Capabilities.Browse {
		http.NotFound(w, r)
		return
	}

	if !allowMethod(w, r, http.MethodGet) {
		return
	}

	mapping := ExtractRepoName(strings.TrimPrefix(r.URL.Path, browsePrefix))
	query := r.URL.Query()
	ref := query.Get("ref")
	p := browser.CleanPath(query.Get("path"))

	repo := s.openForBrowse(w, mapping)
	if repo == nil {
		return
	}
	defer func() { _ = repo.Close() }()

	commit, err := repo.ResolveRef(ref)
	if err != nil {
		var unknown *browser.UnknownRefError

		switch {
		case errors.Is(err, browser.ErrEmptyRepository):
			http.Error(w, "This is an empty Git repository. Please push some code first.", http.StatusNotFound)
		case errors.As(err, &unknown):
			http.Error(w, "Ref not found", http.StatusNotFound)
		default:
			http.Error(w, err.Error(), http.StatusInternalServerError)
		}

		return
	}

	target, err := repo.ResolvePath(commit, p)
	if err != nil {
		if errors.Is(err, browser.ErrPathNotFound) {
			http.Error(w, "Path not found", http.StatusNotFound)
			return
		}

		http.Error(w, err.Error(), http.StatusInternalServerError)

		return
	}

	if query.Get("raw") == "true" {
		s.serveRaw(w, repo, commit, target)
		return
	}

	if ref == "" {
		ref = "HEAD"
	}

	branches, err := repo.Branches()
	if err != nil {
		slog.Warn("failed to list branches", "mapping", mapping, "error", err)
	}

	data := BrowseData{
		Title:    "Browse - " + mapping,
		Mapping:  mapping,
		Ref:      ref,
		Path:     p,
		Parent:   parentPath(p),
		Crumbs:   crumbs(p),
		Branches: branches,
	}

	if target.IsDir {
		listing, err := repo.List(commit, p)
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}

		data.Listing = listing
		if listing.Readme != nil {
			data.Readme = renderMarkdown(listing.Readme)
		}

		s.render(w, http.StatusOK, "browse.html", data)

		return
	}

	blob, err := repo.Blob(commit, p)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	defer func() { _ = blob.Close() }()

	data.File = blob
	data.Preview = browser.Preview(blob.MIME, blob.Size)
	data.RawURL = "?" + url.Values{"ref": {ref}, "path": {p}, "raw": {"true"}}.Encode()

	if data.Preview == browser.PreviewText {
		content, truncated, err := browser.ReadPreview(blob)
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}

		data.Content = string(content)
		data.Truncated = truncated
	}

	s.render(w, http.StatusOK, "file.html", data)
}

func (s *Server) serveRaw(w http.ResponseWriter, repo *browser.Repository, commit *object.Commit, target *browser.Target) {
	if target.IsDir {
		http.Error(w, "Not a file", http.StatusBadRequest)
		return
	}

	blob, err := repo.Blob(commit, target.Path)
	if err != nil {
		if errors.Is(err, browser.ErrNotAFile) {
			http.Error(w, "Not a file", http.StatusBadRequest)
			return
		}

		http.Error(w, err.Error(), http.StatusInternalServerError)

		return
	}
	defer func() { _ = blob.Close() }()

	w.Header().Set("Content-Type", blob.MIME)
	w.Header().Set("Content-Length", strconv.FormatInt(blob.Size, 10))
	w.WriteHeader(http.StatusOK)

	if _, err := io.Copy(w, blob); err != nil {
		slog.Warn("raw download interrupted", "path", target.Path, "error", err)
	}
}

func (s *Server) handleCommits(w http.ResponseWriter, r *http.Request) {
	if !s.config.Capabilities.Browse {
		http.NotFound(w, r)
		return
	}

	if !allowMethod(w, r, http.MethodGet) {
		return
	}

	mapping := ExtractRepoName(strings.TrimPrefix(r.URL.Path, commitsPrefix))
	ref := r.URL.Query().Get("ref")

	repo := s.openForBrowse(w, mapping)
	if repo == nil {
		return
	}
	defer func() { _ = repo.Close() }()

	commits, err := repo.History(ref, browser.MaxHistory)
	if err != nil {
		var unknown *browser.UnknownRefError

		switch {
		case errors.Is(err, browser.ErrEmptyRepository):
			s.render(w, http.StatusOK, "empty.html", EmptyData{
				Title:    "Empty Repository - " + mapping,
				Mapping:  mapping,
				CloneURL: cloneURL(r, mapping),
			})
		case errors.As(err, &unknown):
			http.Error(w, "Ref not found", http.StatusNotFound)
		default:
			http.Error(w, err.Error(), http.StatusInternalServerError)
		}

		return
	}

	if ref == "" {
		ref = "HEAD"
	}

	s.render(w, http.StatusOK, "commits.html", CommitsData{
		Title:   "History - " + mapping,
		Mapping: mapping,
		Ref:     ref,
		Commits: commits,
	})
}
