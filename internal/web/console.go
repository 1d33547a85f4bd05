package web

import (
	"log/slog"
	"net/http"
)

// ConsoleData feeds console.html.
type ConsoleData struct {
	Title        string
	Repositories []RepositoryView
	CloneBase    string
	Browse       bool
	Error        string
}

// handleConsole renders the repository table with the create form
func (s *Server) handleConsole(w http.ResponseWriter, r *http.Request) {
	if !allowMethod(w, r, http.MethodGet) {
		return
	}

	data := ConsoleData{
		Title:     "Repositories",
		CloneBase: "http://" + r.Host + "/",
		Browse:    s.config.Capabilities.Browse,
	}

	repos, err := s.manager.List(r.Context(), true)
	if err != nil {
		slog.Error("failed to list repositories", "error", err)
		data.Error = "Failed to list repositories"
	}

	data.Repositories = s.repositoryViews(repos)

	s.render(w, http.StatusOK, "console.html", data)
}
