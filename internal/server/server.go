// Package server exposes the DSL pipeline over HTTP for the configuration UI:
// script projection, parameter forms and validation, previews, script
// storage, and change events for watched scripts.
package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"path/filepath"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"golang.org/x/sync/errgroup"

	"github.com/leapstack-labs/reportdsl/internal/datasource"
	"github.com/leapstack-labs/reportdsl/internal/project"
	"github.com/leapstack-labs/reportdsl/internal/store"
	"github.com/leapstack-labs/reportdsl/internal/watch"
	"github.com/leapstack-labs/reportdsl/pkg/preview"
)

// Config holds configuration for the server.
type Config struct {
	// Store serves /api/scripts and is watched when Watch is set (required)
	Store *store.FileStore
	// Preview runs /api/preview; nil disables previews
	Preview *preview.Bridge
	// Options resolves query-backed select options for forms (optional)
	Options datasource.NamedQuerier
	Port    int
	Watch   bool
	// Now is the clock for fresh forms; defaults to time.Now
	Now    func() time.Time
	Logger *slog.Logger
}

// Server is the HTTP surface.
type Server struct {
	store    *store.FileStore
	preview  *preview.Bridge
	options  datasource.NamedQuerier
	port     int
	watch    bool
	now      func() time.Time
	logger   *slog.Logger
	notifier *Notifier
}

// New creates a server.
func New(cfg Config) *Server {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	now := cfg.Now
	if now == nil {
		now = time.Now
	}
	return &Server{
		store:    cfg.Store,
		preview:  cfg.Preview,
		options:  cfg.Options,
		port:     cfg.Port,
		watch:    cfg.Watch,
		now:      now,
		logger:   logger,
		notifier: NewNotifier(),
	}
}

// Notifier returns the event notifier behind /api/events.
func (s *Server) Notifier() *Notifier {
	return s.notifier
}

// Handler builds the router.
func (s *Server) Handler() http.Handler {
	r := chi.NewMux()
	r.Use(
		middleware.RequestID,
		s.requestLogger,
		middleware.Recoverer,
	)

	r.Route("/api", func(r chi.Router) {
		r.Post("/dsl/{dialect}", s.handleProject)
		r.Post("/params/form", s.handleForm)
		r.Post("/params/validate", s.handleValidate)
		r.Post("/preview", s.handlePreview)

		r.Get("/scripts", s.handleListScripts)
		r.Get("/scripts/*", s.handleGetScript)
		r.Put("/scripts/*", s.handlePutScript)
		r.Get("/revisions", s.handleListRevisions)
		r.Post("/revisions/{id}/restore", s.handleRestore)

		r.Get("/events", s.handleEvents)
	})
	return r
}

// Serve starts the server and blocks until ctx is cancelled.
func (s *Server) Serve(ctx context.Context) error {
	addr := fmt.Sprintf(":%d", s.port)
	s.logger.Info("starting server", slog.String("addr", fmt.Sprintf("http://localhost:%d", s.port)))

	eg, egctx := errgroup.WithContext(ctx)

	srv := &http.Server{
		Addr:    addr,
		Handler: s.Handler(),
		BaseContext: func(_ net.Listener) context.Context {
			return egctx
		},
		ReadHeaderTimeout: 10 * time.Second,
	}

	if s.watch {
		w := watch.New(watch.Config{
			Root:     s.store.Root(),
			OnChange: s.ScriptsChanged,
			Logger:   s.logger,
		})
		eg.Go(func() error {
			return w.Run(egctx)
		})
	}

	eg.Go(func() error {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	})

	eg.Go(func() error {
		<-egctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		s.logger.Debug("shutting down server")
		return srv.Shutdown(shutdownCtx)
	})

	return eg.Wait()
}

// ScriptsChanged re-checks changed scripts and notifies event listeners.
// It is the watcher callback.
func (s *Server) ScriptsChanged(ctx context.Context, paths []string) {
	for _, path := range paths {
		rel, err := filepath.Rel(s.store.Root(), path)
		if err != nil {
			continue
		}
		rel = filepath.ToSlash(rel)

		text, err := s.store.LoadScript(ctx, rel)
		if err != nil {
			s.logger.Warn("failed to reload script", slog.String("path", rel), slog.String("error", err.Error()))
			continue
		}
		hint, _ := store.DialectOf(rel)
		report := project.Check(rel, text, hint)
		for _, d := range report.Diagnostics {
			s.logger.Info("script diagnostic", slog.String("path", rel), slog.String("diagnostic", d.String()))
		}
		s.notifier.Broadcast(Event{Path: rel, Report: report})
	}
}

// requestLogger logs each request through slog.
func (s *Server) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)
		s.logger.Debug("http request",
			slog.String("method", r.Method),
			slog.String("path", r.URL.Path),
			slog.Int("status", ww.Status()),
			slog.Duration("elapsed", time.Since(start)),
			slog.String("request_id", middleware.GetReqID(r.Context())),
		)
	})
}
