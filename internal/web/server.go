package web

import (
	"context"
	"embed"
	"fmt"
	"html/template"
	"log/slog"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/google/uuid"
	"github.com/inovacc/gitcove/internal/config"
	"github.com/inovacc/gitcove/internal/core"
	"github.com/inovacc/gitcove/internal/gitproto"
)

//go:embed templates/*.html
var templatesFS embed.FS

// Config holds the web server configuration
type Config struct {
	Port         int
	Host         string
	Capabilities config.Capabilities
}

// DefaultConfig returns the default web server configuration
func DefaultConfig() Config {
	return Config{
		Port: 8080,
		Host: "0.0.0.0",
		Capabilities: config.Capabilities{
			UploadPack:  true,
			ReceivePack: true,
			Browse:      true,
		},
	}
}

// Server serves the Git Smart HTTP endpoints, the management API and the
// browser console from one handler.
type Server struct {
	httpServer *http.Server
	manager    *core.Manager
	users      *core.UserManager
	engine     *gitproto.Engine
	config     Config
	templates  map[string]*template.Template
}

// New creates a new web server
func New(cfg Config, manager *core.Manager, users *core.UserManager) (*Server, error) {
	tmpl, err := parseTemplates()
	if err != nil {
		return nil, fmt.Errorf("failed to parse templates: %w", err)
	}

	return &Server{
		manager:   manager,
		users:     users,
		engine:    gitproto.NewEngine(),
		config:    cfg,
		templates: tmpl,
	}, nil
}

// templateFuncMap returns the common template functions
func templateFuncMap() template.FuncMap {
	return template.FuncMap{
		"formatTime": func(t time.Time) string {
			if t.IsZero() {
				return "-"
			}

			return t.Format("2006-01-02 15:04")
		},
		"timeAgo": func(t time.Time) string {
			if t.IsZero() {
				return "-"
			}

			return humanize.Time(t)
		},
		"bytes": func(n int64) string {
			if n < 0 {
				return "-"
			}

			return humanize.IBytes(uint64(n))
		},
		"truncate": func(s string, maxLen int) string {
			if len(s) <= maxLen {
				return s
			}

			if maxLen <= 3 {
				return s[:maxLen]
			}

			return s[:maxLen-3] + "..."
		},
		"join": func(sep string, items []string) string {
			return strings.Join(items, sep)
		},
	}
}

// parseTemplates parses all embedded HTML templates
// Each page gets its own template instance to avoid content block conflicts
func parseTemplates() (map[string]*template.Template, error) {
	templates := make(map[string]*template.Template)
	funcMap := templateFuncMap()

	pageTemplates := []string{
		"console.html",
		"browse.html",
		"file.html",
		"commits.html",
		"empty.html",
	}

	for _, page := range pageTemplates {
		tmpl := template.New("").Funcs(funcMap)

		tmpl, err := tmpl.ParseFS(templatesFS, "templates/layout.html")
		if err != nil {
			return nil, fmt.Errorf("failed to parse layout: %w", err)
		}

		tmpl, err = tmpl.ParseFS(templatesFS, "templates/"+page)
		if err != nil {
			return nil, fmt.Errorf("failed to parse %s: %w", page, err)
		}

		templates[page] = tmpl
	}

	return templates, nil
}

// Handler returns the dispatcher wrapped in the logging middleware.
func (s *Server) Handler() http.Handler {
	return s.loggingMiddleware(s)
}

// Addr returns host:port.
func (s *Server) Addr() string {
	return net.JoinHostPort(s.config.Host, fmt.Sprint(s.config.Port))
}

// Start serves until ctx is cancelled, then shuts down gracefully.
//
// Git routes have no write timeout: a pack negotiation runs as long as the
// client keeps the connection.
func (s *Server) Start(ctx context.Context) error {
	addr := s.Addr()

	s.httpServer = &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	listener, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("failed to start server: %w", err)
	}

	slog.Info("git server starting", "addr", addr, "root", s.manager.Root())

	errCh := make(chan error, 1)

	go func() {
		if err := s.httpServer.Serve(listener); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}

		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	return s.Shutdown(context.Background()) //nolint:contextcheck // parent context cancelled, use background for shutdown
}

// Shutdown gracefully shuts down the web server
func (s *Server) Shutdown(ctx context.Context) error {
	if s.httpServer == nil {
		return nil
	}

	shutdownCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	slog.Info("shutting down git server")

	return s.httpServer.Shutdown(shutdownCtx)
}

type statusRecorder struct {
	http.ResponseWriter

	status int
	bytes  int64
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

func (r *statusRecorder) Write(b []byte) (int, error) {
	if r.status == 0 {
		r.status = http.StatusOK
	}

	n, err := r.ResponseWriter.Write(b)
	r.bytes += int64(n)

	return n, err
}

// loggingMiddleware tags each request with an id and logs it
func (s *Server) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		requestID := r.Header.Get("X-Request-Id")
		if requestID == "" {
			requestID = uuid.NewString()
		}

		w.Header().Set("X-Request-Id", requestID)

		rec := &statusRecorder{ResponseWriter: w}
		next.ServeHTTP(rec, r)

		slog.Info("request",
			"id", requestID,
			"method", r.Method,
			"path", r.URL.Path,
			"status", rec.status,
			"bytes", rec.bytes,
			"duration", time.Since(start),
		)
	})
}

// render renders a template with the given data
func (s *Server) render(w http.ResponseWriter, status int, templateName string, data any) {
	tmpl, ok := s.templates[templateName]
	if !ok {
		slog.Error("template not found", "template", templateName)
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)

		return
	}

	var buf strings.Builder
	if err := tmpl.ExecuteTemplate(&buf, "layout", data); err != nil {
		slog.Error("template error", "template", templateName, "error", err)
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)

		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	_, _ = fmt.Fprint(w, buf.String())
}
