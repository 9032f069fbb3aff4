package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/plateworks/fordon/internal/shell/api"
	"github.com/plateworks/fordon/internal/shell/lookup"
	"github.com/plateworks/fordon/internal/shell/store"
	"github.com/plateworks/fordon/internal/shell/upstream"
	"github.com/plateworks/fordon/internal/shell/workers"
)

// =============================================================================
// Exit Codes
// =============================================================================

const (
	ExitSuccess         = 0
	ExitConfigError     = 1
	ExitDatabaseError   = 2
	ExitLookupError     = 3
	ExitHTTPServerError = 4
)

// =============================================================================
// Server
// =============================================================================

// Server represents the Fordon application server.
type Server struct {
	config     *Config
	httpServer *http.Server
	store      store.Store
	janitor    *workers.Janitor
	logger     *slog.Logger
}

// NewServer creates a new server with the given config.
func NewServer(cfg *Config, logger *slog.Logger) (*Server, error) {
	// Connect to database
	s, err := store.NewSQLiteStore(cfg.Database.DSN)
	if err != nil {
		return nil, &ServerError{
			Op:       "NewServer",
			Err:      err,
			ExitCode: ExitDatabaseError,
		}
	}

	// Create upstream registry client
	client := upstream.NewHTTPClient(upstream.Config{
		BaseURL:           cfg.Upstream.BaseURL,
		Timeout:           cfg.Upstream.Timeout,
		SessionCookie:     cfg.Upstream.SessionCookie,
		CFClearanceCookie: cfg.Upstream.CFClearanceCookie,
		AntiforgeryCookie: cfg.Upstream.AntiforgeryCookie,
	}, logger)

	if cfg.Upstream.CFClearanceCookie == "" {
		logger.Warn("no cf_clearance cookie configured, upstream requests may be blocked")
	}

	// Create lookup service
	lookups, err := lookup.NewService(client, s, lookup.Config{
		CacheTTL: cfg.Cache.TTL,
		LRUSize:  cfg.Cache.MemoryEntries,
	}, logger)
	if err != nil {
		s.Close()
		return nil, &ServerError{
			Op:       "NewServer",
			Err:      err,
			ExitCode: ExitLookupError,
		}
	}

	// Create cache janitor worker
	janitor := workers.NewJanitor(s, workers.JanitorConfig{
		Interval: cfg.Cache.PruneInterval,
	}, logger)

	// Create HTTP handler
	handler := api.NewHandler(lookups, s, cfg.Upstream.CFClearanceCookie != "", logger)

	// Create HTTP server
	httpServer := &http.Server{
		Addr:         cfg.Server.Address(),
		Handler:      handler.Routes(),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	return &Server{
		config:     cfg,
		httpServer: httpServer,
		store:      s,
		janitor:    janitor,
		logger:     logger,
	}, nil
}

// Start starts the server and blocks until shutdown.
func (s *Server) Start(ctx context.Context) error {
	// Setup signal handling
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	// Start cache janitor in background
	s.janitor.Start()

	// Start HTTP server in goroutine
	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("starting HTTP server",
			"address", s.config.Server.Address())
		if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	// Wait for shutdown signal or error
	select {
	case sig := <-sigCh:
		s.logger.Info("received shutdown signal", "signal", sig)
	case err := <-errCh:
		return &ServerError{
			Op:       "Start",
			Err:      err,
			ExitCode: ExitHTTPServerError,
		}
	case <-ctx.Done():
		s.logger.Info("context cancelled")
	}

	return s.Shutdown(context.Background())
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("initiating graceful shutdown")

	// Create shutdown context with timeout
	shutdownCtx, cancel := context.WithTimeout(ctx, s.config.Server.ShutdownTimeout)
	defer cancel()

	// Shutdown HTTP server
	if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
		s.logger.Error("HTTP server shutdown error", "error", err)
	}

	// Stop cache janitor
	s.janitor.Stop()

	// Close database
	if err := s.store.Close(); err != nil {
		s.logger.Error("database close error", "error", err)
	}

	s.logger.Info("shutdown complete")
	return nil
}

// =============================================================================
// Server Error
// =============================================================================

// ServerError represents an error during server operation.
type ServerError struct {
	Op       string
	Err      error
	ExitCode int
}

func (e *ServerError) Error() string {
	return e.Op + ": " + e.Err.Error()
}

func (e *ServerError) Unwrap() error {
	return e.Err
}
