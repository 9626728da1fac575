// Package server provides the HTTP API for apuntes.
package server

import (
	"context"
	"crypto/subtle"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/hyperjump/apuntes/internal/config"
	"github.com/hyperjump/apuntes/internal/keyword"
	"github.com/hyperjump/apuntes/internal/library"
	"github.com/hyperjump/apuntes/internal/pipeline"
	"github.com/hyperjump/apuntes/internal/settings"
	"github.com/hyperjump/apuntes/internal/study"
	"go.uber.org/zap"
)

// Server is the HTTP server for the apuntes API.
type Server struct {
	library  *library.Library
	pipeline *pipeline.Pipeline
	study    *study.Service
	settings *settings.Settings
	index    *keyword.Index
	config   *config.Config
	logger   *zap.Logger
	server   *http.Server
}

// NewServer creates a server with the given dependencies.
func NewServer(
	lib *library.Library,
	pipe *pipeline.Pipeline,
	svc *study.Service,
	keys *settings.Settings,
	idx *keyword.Index,
	cfg *config.Config,
	logger *zap.Logger,
) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Server{
		library:  lib,
		pipeline: pipe,
		study:    svc,
		settings: keys,
		index:    idx,
		config:   cfg,
		logger:   logger,
	}
}

// Router builds the route table.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(s.requestLogger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(s.config.LLM.Timeout() + 30*time.Second))

	r.Get("/health", s.handleHealth)

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(s.requireToken)

		r.Get("/status", s.handleStatus)

		r.Post("/uploads/{kind}", s.handleUpload)
		r.Get("/uploads/{kind}", s.handleListUploads)
		r.Delete("/uploads/{kind}", s.handleClearUploads)

		r.Post("/parse/{kind}", s.handleParse)
		r.Get("/batches/{kind}", s.handleGetBatch)

		r.Post("/notes/{kind}", s.handleNotes)
		r.Post("/notes/{kind}/pdf", s.handleNotesPDF)

		r.Post("/quizzes", s.handleCreateQuiz)
		r.Get("/quizzes/{id}", s.handleGetQuiz)
		r.Post("/quizzes/{id}/answers", s.handleAnswer)

		r.Get("/search", s.handleSearch)

		r.Get("/settings/api-key", s.handleGetAPIKey)
		r.Put("/settings/api-key", s.handleSetAPIKey)
		r.Delete("/settings/api-key", s.handleClearAPIKey)
	})
	return r
}

// Start starts the HTTP server and blocks until it stops.
func (s *Server) Start() error {
	addr := fmt.Sprintf("%s:%d", s.config.Server.Host, s.config.Server.Port)
	s.server = &http.Server{
		Addr:              addr,
		Handler:           s.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	s.logger.Info("Starting server", zap.String("addr", addr))
	return s.server.ListenAndServe()
}

// Stop gracefully shuts down the server.
func (s *Server) Stop(ctx context.Context) error {
	if s.server != nil {
		return s.server.Shutdown(ctx)
	}
	return nil
}

// requireToken rejects requests without the configured bearer token. No token configured
// means the API is open.
func (s *Server) requireToken(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		want := s.config.Server.AccessToken
		if want == "" {
			next.ServeHTTP(w, r)
			return
		}
		got, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer ")
		if !ok || subtle.ConstantTimeCompare([]byte(got), []byte(want)) != 1 {
			s.respondError(w, http.StatusUnauthorized, "unauthorized")
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		s.logger.Debug("request",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", ww.Status()),
			zap.Int("bytes", ww.BytesWritten()),
			zap.Duration("duration", time.Since(start)),
			zap.String("request_id", middleware.GetReqID(r.Context())),
		)
	})
}
