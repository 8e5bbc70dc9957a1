// Package server serves rendered views over HTTP, with live reload of
// browsers when view files change during development.
package server

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/conneroisu/tmplview/internal/adapters"
	"github.com/conneroisu/tmplview/internal/config"
	"github.com/conneroisu/tmplview/internal/engine"
	"github.com/conneroisu/tmplview/internal/errors"
	"github.com/conneroisu/tmplview/internal/locator"
	"github.com/conneroisu/tmplview/internal/logging"
	"github.com/conneroisu/tmplview/internal/watcher"
)

const watchDebounce = 300 * time.Millisecond

// UpdateMessage represents a message sent to the browser
type UpdateMessage struct {
	Type      string    `json:"type"`
	Targets   []string  `json:"targets,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// Server renders views for HTTP clients.
type Server struct {
	config *config.Config
	engine *engine.Engine
	views  *locator.FSLocator
	hub    *Hub
	logger logging.Logger

	httpServer   *http.Server
	watcher      *watcher.FileWatcher
	serverMutex  sync.RWMutex
	shutdownOnce sync.Once
}

// New creates a server. views, when not nil, is watched for changes if hot
// reload is enabled.
func New(cfg *config.Config, eng *engine.Engine, views *locator.FSLocator, logger logging.Logger) *Server {
	if logger == nil {
		logger = logging.NewNop()
	}
	logger = logger.WithComponent("server")

	return &Server{
		config: cfg,
		engine: eng,
		views:  views,
		hub:    NewHub(originPatterns(cfg), logger),
		logger: logger,
	}
}

// Handler returns the HTTP routes.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /health", s.handleHealth)
	mux.HandleFunc("GET /api/stats", s.handleStats)
	if s.config.Development.HotReload {
		mux.Handle("GET /ws", s.hub)
	}
	mux.HandleFunc("GET /{view...}", s.handleView)

	return s.logRequests(mux)
}

// Hub returns the live reload hub.
func (s *Server) Hub() *Hub {
	return s.hub
}

// Start serves until ctx is cancelled or the listener fails.
func (s *Server) Start(ctx context.Context) error {
	go s.hub.Run(ctx)

	if s.config.Development.HotReload && s.views != nil && s.views.Root() != "" {
		if err := s.watchViews(ctx); err != nil {
			s.logger.Warn(ctx, err, "live reload disabled")
		}
	}

	s.serverMutex.Lock()
	s.httpServer = &http.Server{
		Addr:              s.config.Address(),
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	server := s.httpServer
	s.serverMutex.Unlock()

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := s.Shutdown(shutdownCtx); err != nil {
			s.logger.Warn(shutdownCtx, err, "shutdown failed")
		}
	}()

	s.logger.Info(ctx, "serving views", "addr", server.Addr, "production", s.config.Production())
	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return errors.WrapIO(err, "SERVER_LISTEN", "server error")
	}
	return nil
}

func (s *Server) watchViews(ctx context.Context) error {
	fw, err := watcher.NewFileWatcher(watchDebounce, s.logger)
	if err != nil {
		return err
	}
	fw.AddFilter(watcher.ExtensionFilter(s.config.Views.Extension))
	fw.AddFilter(watcher.NoHiddenFilter)
	fw.AddFilter(watcher.NoGitFilter)
	fw.AddHandler(adapters.InvalidationHandler(s.engine, s.views.Identify, s.reload))

	if err := fw.AddRecursive(s.views.Root()); err != nil {
		fw.Stop()
		return err
	}
	if err := fw.Start(ctx); err != nil {
		fw.Stop()
		return err
	}

	s.serverMutex.Lock()
	s.watcher = fw
	s.serverMutex.Unlock()
	return nil
}

// reload tells connected browsers that views changed.
func (s *Server) reload(changed, removed []string) {
	s.logger.Info(context.Background(), "views changed", "views", changed, "invalidated", len(removed))
	s.hub.Broadcast(UpdateMessage{
		Type:      "reload",
		Targets:   changed,
		Timestamp: time.Now(),
	})
}

// Shutdown gracefully shuts down the server and cleans up resources
func (s *Server) Shutdown(ctx context.Context) error {
	var shutdownErr error

	s.shutdownOnce.Do(func() {
		s.serverMutex.RLock()
		server, fw := s.httpServer, s.watcher
		s.serverMutex.RUnlock()

		if fw != nil {
			_ = fw.Stop()
		}
		s.hub.CloseAll()

		if server != nil {
			shutdownErr = server.Shutdown(ctx)
		}
	})

	return shutdownErr
}

func (s *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		next.ServeHTTP(w, r)
		s.logger.Debug(r.Context(), "request", "method", r.Method, "path", r.URL.Path,
			"duration_ms", time.Since(start).Milliseconds())
	})
}
