// Package httpadapter serves the dashboard page, its JSON API and the
// operational endpoints.
package httpadapter

import (
	"context"
	"embed"
	"io/fs"
	"log/slog"
	"net/http"
	"time"

	sharedobs "github.com/couchcryptid/storm-data-shared/observability"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/couchcryptid/early-design-app/internal/dashboard"
	"github.com/couchcryptid/early-design-app/internal/session"
)

//go:embed web
var webFS embed.FS

// Server exposes the dashboard API plus health, readiness, and metrics endpoints.
type Server struct {
	httpServer *http.Server
	svc        *dashboard.Service
	sessions   *session.Store
	logger     *slog.Logger
}

// NewServer creates an HTTP server for the dashboard.
func NewServer(addr string, svc *dashboard.Service, sessions *session.Store, ready sharedobs.ReadinessChecker, logger *slog.Logger) *Server {
	mux := http.NewServeMux()

	s := &Server{
		httpServer: &http.Server{
			Addr:              addr,
			Handler:           mux,
			ReadHeaderTimeout: 10 * time.Second,
			ReadTimeout:       60 * time.Second,
			// Study creation and artifact downloads wait on the cloud API.
			WriteTimeout: 5 * time.Minute,
			IdleTimeout:  60 * time.Second,
		},
		svc:      svc,
		sessions: sessions,
		logger:   logger,
	}

	static, err := fs.Sub(webFS, "web")
	if err != nil {
		panic(err)
	}
	mux.Handle("GET /{$}", http.FileServerFS(static))

	mux.HandleFunc("GET /api/state", s.handle(s.handleState))

	mux.HandleFunc("POST /api/weather", s.handle(s.handleUpload))
	mux.HandleFunc("POST /api/weather/sample", s.handle(s.handleUseSample))
	mux.HandleFunc("GET /api/weather/charts", s.handle(s.handleCharts))
	mux.HandleFunc("GET /api/weather/sunpath", s.handle(s.handleSunpath))
	mux.HandleFunc("POST /api/weather/wea", s.handle(s.handleCreateWea))

	mux.HandleFunc("GET /api/recipe", s.handle(s.handleRecipe))
	mux.HandleFunc("PUT /api/recipe", s.handle(s.handleSelectRecipe))
	mux.HandleFunc("GET /api/study/inputs", s.handle(s.handleDefaultInputs))
	mux.HandleFunc("POST /api/studies", s.handle(s.handleSubmitStudy))
	mux.HandleFunc("GET /api/studies", s.handle(s.handleListStudies))
	mux.HandleFunc("PUT /api/study", s.handle(s.handleSelectStudy))
	mux.HandleFunc("GET /api/study/card", s.handle(s.handleStudyCard))
	mux.HandleFunc("PUT /api/run", s.handle(s.handleSelectRun))
	mux.HandleFunc("GET /api/artifacts", s.handle(s.handleListArtifacts))
	mux.HandleFunc("PUT /api/artifact", s.handle(s.handleSelectArtifact))
	mux.HandleFunc("GET /api/artifact/download", s.handle(s.handleDownload))
	mux.HandleFunc("GET /api/artifact/preview", s.handle(s.handlePreview))
	mux.HandleFunc("GET /api/debug/artifacts", s.handle(s.handleArtifactListing))

	mux.HandleFunc("GET /healthz", sharedobs.LivenessHandler())
	mux.HandleFunc("GET /readyz", sharedobs.ReadinessHandler(ready))
	mux.Handle("GET /metrics", promhttp.Handler())

	return s
}

// Start begins listening. Returns http.ErrServerClosed on graceful shutdown.
func (s *Server) Start() error {
	s.logger.Info("http server starting", "addr", s.httpServer.Addr)
	return s.httpServer.ListenAndServe()
}

// Shutdown gracefully drains connections within the given context deadline.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

// ServeHTTP delegates to the underlying handler, useful for testing.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.httpServer.Handler.ServeHTTP(w, r)
}
