package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/artpar/formdesk/internal/core/auth"
	"github.com/artpar/formdesk/internal/shell/api"
	"github.com/artpar/formdesk/internal/shell/api/middleware"
	"github.com/artpar/formdesk/internal/shell/metrics"
	"github.com/artpar/formdesk/internal/shell/store"
	"github.com/artpar/formdesk/internal/shell/uploads"
	"github.com/artpar/formdesk/internal/shell/workers"
)

// =============================================================================
// Exit Codes
// =============================================================================

const (
	ExitSuccess         = 0
	ExitConfigError     = 1
	ExitDatabaseError   = 2
	ExitStorageError    = 3
	ExitHTTPServerError = 4
)

// =============================================================================
// Server
// =============================================================================

// Server represents the formdesk application server.
type Server struct {
	config     *Config
	httpServer *http.Server
	store      store.Store
	dispatcher *workers.Dispatcher
	logger     *slog.Logger
}

// NewServer creates a new server with the given config. Opening the store
// applies pending migrations.
func NewServer(cfg *Config, logger *slog.Logger) (*Server, error) {
	s, err := openStore(cfg)
	if err != nil {
		return nil, err
	}

	m := metrics.New()

	storage, uploadDir, err := newStorage(cfg)
	if err != nil {
		s.Close()
		return nil, &ServerError{
			Op:       "NewServer",
			Err:      err,
			ExitCode: ExitStorageError,
		}
	}
	uploader := uploads.NewUploader(storage, uploads.UploaderConfig{
		MaxFileSize: cfg.Uploads.MaxFileSize,
	}, m, logger)

	handler := api.NewHandler(api.Config{
		Store:       s,
		Issuer:      auth.NewIssuer(cfg.Auth.JWTSecret, cfg.Auth.TokenTTL),
		Uploader:    uploader,
		UploadDir:   uploadDir,
		FrontendDir: cfg.Server.FrontendDir,
		Metrics:     m,
		Logger:      logger,
		Cookie:      cfg.Cookie(),
		BcryptCost:  cfg.Auth.BcryptCost,
		CORS:        cfg.CORSPolicy(),
		SubmitRateLimit: middleware.RateLimitConfig{
			PerMinute: cfg.RateLimit.SubmitPerMinute,
			Burst:     cfg.RateLimit.Burst,
		},
		Webhooks: cfg.Webhooks.Enabled,
		Version:  Version,
	})

	httpServer := &http.Server{
		Addr:         cfg.Server.Address(),
		Handler:      handler.Routes(),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	var dispatcher *workers.Dispatcher
	if cfg.Webhooks.Enabled {
		dispatcher = workers.NewDispatcher(s, nil, cfg.Dispatcher(), m, logger)
	} else {
		logger.Info("webhooks disabled")
	}

	return &Server{
		config:     cfg,
		httpServer: httpServer,
		store:      s,
		dispatcher: dispatcher,
		logger:     logger,
	}, nil
}

func openStore(cfg *Config) (*store.SQLStore, error) {
	s, err := store.New(cfg.Database.DSN)
	if err != nil {
		return nil, &ServerError{
			Op:       "NewServer",
			Err:      err,
			ExitCode: ExitDatabaseError,
		}
	}
	return s, nil
}

// newStorage returns the upload backend and, for local storage, the
// directory served under /uploads/.
func newStorage(cfg *Config) (uploads.Storage, string, error) {
	if cfg.Uploads.Backend == backendS3 {
		s3, err := uploads.NewS3(cfg.S3())
		return s3, "", err
	}
	local, err := uploads.NewLocal(cfg.Uploads.Dir)
	if err != nil {
		return nil, "", err
	}
	return local, local.Dir(), nil
}

// Start starts the server and blocks until shutdown.
func (s *Server) Start(ctx context.Context) error {
	// Setup signal handling
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigCh)

	if s.dispatcher != nil {
		s.dispatcher.Start()
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("starting HTTP server",
			"address", s.config.Server.Address(),
			"environment", s.config.Server.Environment,
		)
		if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case sig := <-sigCh:
		s.logger.Info("received shutdown signal", "signal", sig)
	case err := <-errCh:
		s.Shutdown(context.Background())
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

	shutdownCtx, cancel := context.WithTimeout(ctx, s.config.Server.ShutdownTimeout)
	defer cancel()

	if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
		s.logger.Error("HTTP server shutdown error", "error", err)
	}

	// Pending deliveries stay queued and are sent after restart
	if s.dispatcher != nil {
		s.dispatcher.Stop()
	}

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
