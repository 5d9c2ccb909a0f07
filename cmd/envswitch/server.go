package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/artpar/envswitch/internal/shell/api"
	"github.com/artpar/envswitch/internal/shell/clip"
	"github.com/artpar/envswitch/internal/shell/navigate"
	"github.com/artpar/envswitch/internal/shell/store"
	"github.com/artpar/envswitch/internal/shell/switcher"
	"github.com/spf13/cobra"
)

// =============================================================================
// Exit Codes
// =============================================================================

const (
	ExitSuccess         = 0
	ExitConfigError     = 1
	ExitDatabaseError   = 2
	ExitHTTPServerError = 3
	ExitCommandError    = 4
)

// =============================================================================
// Server
// =============================================================================

// Server serves the envswitch HTTP API.
type Server struct {
	config     *Config
	httpServer *http.Server
	store      *store.SQLiteStore
	logger     *slog.Logger
}

// NewServer creates a new server with the given config.
func NewServer(cfg *Config, logger *slog.Logger) (*Server, error) {
	s, err := openStore(cfg.Database.DSN)
	if err != nil {
		return nil, &ServerError{
			Op:       "NewServer",
			Err:      err,
			ExitCode: ExitDatabaseError,
		}
	}

	nav, err := navigate.NewBrowserNavigator(cfg.Browser.IncognitoCommand, logger)
	if err != nil {
		s.Close()
		return nil, &ServerError{
			Op:       "NewServer",
			Err:      err,
			ExitCode: ExitConfigError,
		}
	}

	svc := switcher.NewService(s, nav, clip.SystemClipboard{}, logger)
	if _, err := svc.Initialize(context.Background()); err != nil {
		s.Close()
		return nil, &ServerError{
			Op:       "NewServer",
			Err:      err,
			ExitCode: ExitDatabaseError,
		}
	}

	if cfg.Server.AllowRemote {
		logger.Warn("accepting requests from non-loopback addresses",
			"address", cfg.Server.Address())
	}

	handler := api.NewHandler(svc, logger, api.Config{
		AllowedOrigins: cfg.Server.AllowedOrigins,
		AllowRemote:    cfg.Server.AllowRemote,
		Version:        Version,
	}).Routes()

	httpServer := &http.Server{
		Addr:         cfg.Server.Address(),
		Handler:      handler,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	return &Server{
		config:     cfg,
		httpServer: httpServer,
		store:      s,
		logger:     logger,
	}, nil
}

// Start starts the server and blocks until shutdown.
func (s *Server) Start(ctx context.Context) error {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigCh)

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("starting HTTP server",
			"address", s.config.Server.Address(),
			"database", s.config.Database.DSN)
		if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case sig := <-sigCh:
		s.logger.Info("received shutdown signal", "signal", sig)
	case err := <-errCh:
		s.closeStore()
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

	s.closeStore()
	s.logger.Info("shutdown complete")
	return nil
}

func (s *Server) closeStore() {
	if err := s.store.Close(); err != nil {
		s.logger.Error("database close error", "error", err)
	}
}

// =============================================================================
// Server Errors
// =============================================================================

// ServerError carries the exit code a failed operation maps to.
type ServerError struct {
	Op       string
	Err      error
	ExitCode int
}

func (e *ServerError) Error() string {
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *ServerError) Unwrap() error {
	return e.Err
}

// =============================================================================
// Serve Command
// =============================================================================

func newServeCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the HTTP API used by the browser extension",
		Long: `Serve the HTTP API the extension's popup, overlay and options pages
call. By default the API listens on 127.0.0.1:7878 and refuses requests
from other machines.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			flags := cmd.Flags()
			if flags.Changed("host") {
				a.cfg.Server.Host, _ = flags.GetString("host")
			}
			if flags.Changed("port") {
				a.cfg.Server.Port, _ = flags.GetInt("port")
			}
			if flags.Changed("allow-remote") {
				a.cfg.Server.AllowRemote, _ = flags.GetBool("allow-remote")
			}
			if flags.Changed("origin") {
				a.cfg.Server.AllowedOrigins, _ = flags.GetStringSlice("origin")
			}

			a.logger.Info("starting envswitch", "version", Version)

			server, err := NewServer(a.cfg, a.logger)
			if err != nil {
				return err
			}
			return server.Start(cmd.Context())
		},
	}

	cmd.Flags().String("host", "", "Address to listen on (overrides server.host)")
	cmd.Flags().Int("port", 0, "Port to listen on (overrides server.port)")
	cmd.Flags().Bool("allow-remote", false, "Accept requests from non-loopback addresses")
	cmd.Flags().StringSlice("origin", nil, "Allowed CORS origin, repeatable (overrides server.allowed_origins)")
	return cmd
}
