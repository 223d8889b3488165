package web

import (
	"io"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/kozaktomas/facewatch/internal/web/handlers"
	"github.com/kozaktomas/facewatch/internal/web/middleware"
	"github.com/kozaktomas/facewatch/internal/web/static"
)

func (s *Server) setupRoutes(sessionManager *middleware.SessionManager) {
	// Create handlers
	authHandler := handlers.NewAuthHandler(&s.config.Web, sessionManager, s.log)
	statsHandler := handlers.NewStatsHandler(s.deps.Reader, s.log)
	casesHandler := handlers.NewCasesHandler(s.deps.Cases, s.deps.Reader, s.deps.Images, statsHandler, s.config.Storage.MaxUploadSize, s.log)
	scanHandler := handlers.NewScanHandler(s.deps.Scanner, s.log)
	configHandler := handlers.NewConfigHandler(s.config)
	reembedHandler := handlers.NewReembedHandler(s.deps.Reembedder, statsHandler, s.log)
	chatHandler := handlers.NewChatHandler(s.deps.Assistant, s.log)

	// Health check and metrics (no auth required)
	s.router.Get("/api/v1/health", handlers.HealthCheck)
	if s.deps.Metrics != nil {
		s.router.Handle("/metrics", s.deps.Metrics.Handler())
	}

	s.router.Route("/api/v1", func(r chi.Router) {
		r.Post("/auth/login", authHandler.Login)
		r.Post("/auth/logout", authHandler.Logout)
		r.Get("/auth/status", authHandler.Status)

		// Public report submission
		r.Post("/cases", casesHandler.Create)

		// Everything else is for logged in officers
		r.Group(func(r chi.Router) {
			r.Use(middleware.RequireAuth(sessionManager))

			r.Get("/cases", casesHandler.List)
			r.Get("/cases/{id}", casesHandler.Get)
			r.Get("/cases/{id}/image", casesHandler.Image)
			r.Delete("/cases/{id}", casesHandler.Delete)

			r.Post("/scan", scanHandler.Scan)

			r.Get("/stats", statsHandler.Get)
			r.Get("/config", configHandler.Get)
			r.Post("/chat", chatHandler.Chat)

			if s.deps.Reembedder != nil {
				r.Post("/reembed", reembedHandler.Start)
				r.Get("/reembed", reembedHandler.List)
				r.Get("/reembed/{jobId}", reembedHandler.Status)
				r.Get("/reembed/{jobId}/events", reembedHandler.Events)
				r.Delete("/reembed/{jobId}", reembedHandler.Cancel)
			}
		})
	})

	// Serve the officer console
	s.router.Get("/*", s.serveConsole)
}

// serveConsole serves the embedded officer console
func (s *Server) serveConsole(w http.ResponseWriter, r *http.Request) {
	fs := static.GetFileSystem()
	path := r.URL.Path
	if path == "/" {
		path = "/index.html"
	}

	f, err := fs.Open(path)
	if err == nil {
		defer f.Close()

		stat, err := f.Stat()
		if err == nil && !stat.IsDir() {
			contentType := "application/octet-stream"
			switch {
			case strings.HasSuffix(path, ".html"):
				contentType = "text/html; charset=utf-8"
			case strings.HasSuffix(path, ".css"):
				contentType = "text/css; charset=utf-8"
			case strings.HasSuffix(path, ".js"):
				contentType = "application/javascript; charset=utf-8"
			case strings.HasSuffix(path, ".svg"):
				contentType = "image/svg+xml"
			case strings.HasSuffix(path, ".ico"):
				contentType = "image/x-icon"
			}
			w.Header().Set("Content-Type", contentType)
			w.WriteHeader(http.StatusOK)
			io.Copy(w, f)
			return
		}
	}

	// Unknown paths fall back to the console page
	indexFile, err := fs.Open("/index.html")
	if err != nil {
		http.NotFound(w, r)
		return
	}
	defer indexFile.Close()
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	io.Copy(w, indexFile)
}
