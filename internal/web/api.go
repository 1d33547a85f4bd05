package web

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/inovacc/gitcove/internal/core"
	"github.com/inovacc/gitcove/internal/model"
)

// RepositoryView is one element of the repository listing.
type RepositoryView struct {
	ID          int64  `json:"id"`
	Name        string `json:"name"`
	Mapping     string `json:"mapping"`
	Description string `json:"description"`
	Archived    bool   `json:"archived"`
	HTTPPort    int    `json:"httpPort"`
}

// UserView is a user without the password digest.
type UserView struct {
	ID        int64     `json:"id"`
	Username  string    `json:"username"`
	Fullname  string    `json:"fullname"`
	Email     string    `json:"email"`
	Active    bool      `json:"active"`
	CreatedAt time.Time `json:"created_at"`
}

// ScanResult is returned by the scan endpoint.
type ScanResult struct {
	Imported int `json:"imported"`
}

func (s *Server) repositoryViews(repos []model.Repository) []RepositoryView {
	views := make([]RepositoryView, 0, len(repos))

	for _, repo := range repos {
		views = append(views, RepositoryView{
			ID:          repo.ID,
			Name:        repo.Name,
			Mapping:     repo.Mapping,
			Description: repo.Description,
			Archived:    repo.Archived,
			HTTPPort:    s.config.Port,
		})
	}

	return views
}

// handleListRepositories returns the active repositories, archived included
func (s *Server) handleListRepositories(w http.ResponseWriter, r *http.Request) {
	if !allowMethod(w, r, http.MethodGet) {
		return
	}

	repos, err := s.manager.List(r.Context(), true)
	if err != nil {
		s.apiError(w, err)
		return
	}

	s.writeJSON(w, http.StatusOK, s.repositoryViews(repos))
}

func (s *Server) handleCreateRepository(w http.ResponseWriter, r *http.Request) {
	if !allowMethod(w, r, http.MethodPost) {
		return
	}

	if err := r.ParseForm(); err != nil {
		http.Error(w, "invalid form: "+err.Error(), http.StatusBadRequest)
		return
	}

	name := r.PostFormValue("name")
	mapping := r.PostFormValue("mapping")

	if strings.TrimSpace(name) == "" || strings.TrimSpace(mapping) == "" {
		http.Error(w, "Missing name or mapping", http.StatusBadRequest)
		return
	}

	if _, err := s.manager.Create(r.Context(), name, mapping, r.PostFormValue("description")); err != nil {
		s.apiError(w, err)
		return
	}

	writeOK(w)
}

func (s *Server) handleUpdateRepository(w http.ResponseWriter, r *http.Request) {
	if !allowMethod(w, r, http.MethodPost) {
		return
	}

	if err := r.ParseForm(); err != nil {
		http.Error(w, "invalid form: "+err.Error(), http.StatusBadRequest)
		return
	}

	id, err := strconv.ParseInt(r.PostFormValue("id"), 10, 64)
	if err != nil {
		http.Error(w, "Invalid id", http.StatusBadRequest)
		return
	}

	var update model.RepositoryUpdate

	if _, ok := r.PostForm["name"]; ok {
		name := r.PostFormValue("name")
		update.Name = &name
	}

	if _, ok := r.PostForm["description"]; ok {
		desc := r.PostFormValue("description")
		update.Description = &desc
	}

	if _, err := s.manager.Update(r.Context(), id, update); err != nil {
		s.apiError(w, err)
		return
	}

	writeOK(w)
}

func (s *Server) handleArchiveRepository(w http.ResponseWriter, r *http.Request) {
	id, ok := s.idFromPath(w, r, apiArchive)
	if !ok {
		return
	}

	if _, err := s.manager.Archive(r.Context(), id); err != nil {
		s.apiError(w, err)
		return
	}

	writeOK(w)
}

// handleActivateRepository sets the active flag from the "active" form
// value; it defaults to true.
func (s *Server) handleActivateRepository(w http.ResponseWriter, r *http.Request) {
	id, ok := s.idFromPath(w, r, apiActivate)
	if !ok {
		return
	}

	active := true

	if v := r.PostFormValue("active"); v != "" {
		parsed, err := strconv.ParseBool(v)
		if err != nil {
			http.Error(w, "Invalid active value", http.StatusBadRequest)
			return
		}

		active = parsed
	}

	if _, err := s.manager.Activate(r.Context(), id, active); err != nil {
		s.apiError(w, err)
		return
	}

	writeOK(w)
}

func (s *Server) handleDeleteRepository(w http.ResponseWriter, r *http.Request) {
	id, ok := s.idFromPath(w, r, apiDelete)
	if !ok {
		return
	}

	if err := s.manager.Delete(r.Context(), id); err != nil {
		s.apiError(w, err)
		return
	}

	writeOK(w)
}

func (s *Server) handleScan(w http.ResponseWriter, r *http.Request) {
	if !allowMethod(w, r, http.MethodPost) {
		return
	}

	count, err := s.manager.ScanAndImport(r.Context())
	if err != nil {
		s.apiError(w, err)
		return
	}

	s.writeJSON(w, http.StatusOK, ScanResult{Imported: count})
}

func (s *Server) handleListUsers(w http.ResponseWriter, r *http.Request) {
	if !allowMethod(w, r, http.MethodGet) {
		return
	}

	users, err := s.users.List(r.Context())
	if err != nil {
		s.apiError(w, err)
		return
	}

	views := make([]UserView, 0, len(users))
	for _, u := range users {
		views = append(views, UserView{
			ID:        u.ID,
			Username:  u.Username,
			Fullname:  u.Fullname,
			Email:     u.Email,
			Active:    u.Active,
			CreatedAt: u.CreatedAt,
		})
	}

	s.writeJSON(w, http.StatusOK, views)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if err := s.manager.Ping(); err != nil {
		http.Error(w, "store unavailable: "+err.Error(), http.StatusServiceUnavailable)
		return
	}

	s.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) idFromPath(w http.ResponseWriter, r *http.Request, prefix string) (int64, bool) {
	if !allowMethod(w, r, http.MethodPost) {
		return 0, false
	}

	id, err := strconv.ParseInt(strings.Trim(strings.TrimPrefix(r.URL.Path, prefix), "/"), 10, 64)
	if err != nil {
		http.Error(w, "Invalid id", http.StatusBadRequest)
		return 0, false
	}

	return id, true
}

func writeOK(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("OK"))
}

// apiError writes err as plain text with the status of its kind.
func (s *Server) apiError(w http.ResponseWriter, err error) {
	status := core.StatusCode(err)
	if status == http.StatusInternalServerError {
		slog.Error("management request failed", "error", err)
	}

	http.Error(w, err.Error(), status)
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("JSON encode error", "error", err)
	}
}
