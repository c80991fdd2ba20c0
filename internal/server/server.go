// Package server provides the HTTP server and API handlers for the alertmap service.
package server

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"

	"github.com/invisible-tech/alertmap/internal/config"
	"github.com/invisible-tech/alertmap/internal/controller"
)

// maxIngestBytes bounds a single ingest request body.
const maxIngestBytes = 10 << 20

// Server is the HTTP server for the alertmap API.
type Server struct {
	cfg        config.DashboardConfig
	controller *controller.Controller
	log        *logrus.Logger
	router     chi.Router
	httpServer *http.Server
}

// New creates a new HTTP server that uses the given controller.
func New(cfg config.DashboardConfig, ctrl *controller.Controller, log *logrus.Logger) *Server {
	s := &Server{cfg: cfg, controller: ctrl, log: log}
	s.router = s.routes()
	s.httpServer = &http.Server{
		Addr:         cfg.HTTPAddr,
		Handler:      s.router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}
	return s
}

func (s *Server) routes() chi.Router {
	origins := s.cfg.CORSOrigins
	if len(origins) == 0 {
		origins = []string{"*"}
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(requestLogger(s.log))
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: origins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders: []string{"Accept", "Content-Type"},
		ExposedHeaders: []string{"Content-Disposition"},
		MaxAge:         300,
	}))

	r.Get("/health", s.handleHealth)
	r.Handle("/metrics", promhttp.Handler())
	r.Route("/api/v1", func(r chi.Router) {
		r.Post("/ingest", s.handleIngest)
		r.Get("/data", s.handleData)
		r.Get("/alerts", s.handleAlerts)
		r.Get("/metrics", s.handleMetrics)
		r.Get("/vulnerabilities", s.handleVulnerabilities)
		r.Get("/ipinfo", s.handleIPInfo)
		r.Get("/export", s.handleExport)
	})

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		writeError(w, http.StatusNotFound, "endpoint not found")
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
	})
	return r
}

// Handler returns the routed handler.
func (s *Server) Handler() http.Handler {
	return s.router
}

// ListenAndServe starts the HTTP server. It blocks until the server is closed.
func (s *Server) ListenAndServe() error {
	s.log.WithField("addr", s.cfg.HTTPAddr).Info("alertmap listening")
	return s.httpServer.ListenAndServe()
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

// requestLogger logs one entry per request.
func requestLogger(log *logrus.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			defer func() {
				log.WithFields(logrus.Fields{
					"method":      r.Method,
					"path":        r.URL.Path,
					"remote_addr": r.RemoteAddr,
					"status":      ww.Status(),
					"bytes":       ww.BytesWritten(),
					"duration":    time.Since(start).String(),
					"request_id":  middleware.GetReqID(r.Context()),
				}).Debug("HTTP request")
			}()
			next.ServeHTTP(ww, r)
		})
	}
}
