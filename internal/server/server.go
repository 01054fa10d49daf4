// Package server exposes the transcription pipeline over HTTP: uploads
// create background analysis tasks, and results are fetched by task ID.
package server

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/FunctionalFactory/music-assistant-v2/internal/config"
	"github.com/FunctionalFactory/music-assistant-v2/internal/store"
)

// Finished tasks are kept this long before the hourly sweep removes them.
const (
	taskRetention = 24 * time.Hour
	pruneInterval = time.Hour
)

// Server is the HTTP server.
type Server struct {
	config *config.Config
	router *chi.Mux
	logger *slog.Logger
	tasks  *TaskManager
	store  *store.Store
}

// New creates a new server backed by the given task store.
func New(cfg *config.Config, st *store.Store) (*Server, error) {
	logger := slog.New(slog.NewTextHandler(os.Stdout, nil))

	s := &Server{
		config: cfg,
		router: chi.NewRouter(),
		logger: logger,
		tasks:  NewTaskManager(cfg, st, logger),
		store:  st,
	}

	s.setupRoutes()
	return s, nil
}

// setupRoutes configures all HTTP routes
func (s *Server) setupRoutes() {
	r := s.router

	// Middleware
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Compress(5))

	r.Get("/health", s.handleHealth)

	// API
	r.Post("/api/v1/analysis", s.handleCreateAnalysis)
	r.Get("/api/v1/analysis/{id}", s.handleTaskStatus)
	r.Get("/api/v1/analysis/{id}/musicxml", s.handleDownloadScore)
}

// Run starts the server and blocks until shutdown.
func (s *Server) Run() error {
	addr := fmt.Sprintf(":%d", s.config.Server.Port)

	srv := &http.Server{
		Addr:         addr,
		Handler:      s.router,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 2 * time.Minute,
		IdleTimeout:  60 * time.Second,
	}

	stopPrune := make(chan struct{})
	go s.pruneLoop(stopPrune)
	defer close(stopPrune)

	// Graceful shutdown
	done := make(chan struct{})
	go func() {
		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
		<-sigCh

		s.logger.Info("shutting down server...")
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		if err := srv.Shutdown(ctx); err != nil {
			s.logger.Error("shutdown error", slog.Any("error", err))
		}
		close(done)
	}()

	s.logger.Info("server starting", slog.Int("port", s.config.Server.Port))

	if err := srv.ListenAndServe(); err != http.ErrServerClosed {
		return err
	}

	<-done
	return nil
}

// pruneLoop periodically removes finished tasks past the retention window.
func (s *Server) pruneLoop(stop <-chan struct{}) {
	ticker := time.NewTicker(pruneInterval)
	defer ticker.Stop()

	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			s.pruneFinished(context.Background())
		}
	}
}

func (s *Server) pruneFinished(ctx context.Context) {
	n, err := s.store.PruneOlderThan(ctx, time.Now().Add(-taskRetention))
	if err != nil {
		s.logger.Error("prune tasks", slog.Any("error", err))
		return
	}
	if n > 0 {
		s.logger.Info("pruned finished tasks", slog.Int64("removed", n))
	}
}

// Router exposes the handler for tests.
func (s *Server) Router() http.Handler { return s.router }
