package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/artpar/envswitch/internal/shell/clip"
	"github.com/artpar/envswitch/internal/shell/navigate"
	"github.com/artpar/envswitch/internal/shell/store"
	"github.com/artpar/envswitch/internal/shell/switcher"
	"github.com/spf13/cobra"
)

// app carries what every command needs. The store is opened on first use
// so that commands like version never touch the database.
type app struct {
	configPath string
	dbPath     string
	logLevel   string
	logFormat  string

	cfg    *Config
	logger *slog.Logger
	store  *store.SQLiteStore
	svc    *switcher.Service
}

// setup loads configuration and applies the global flag overrides.
func (a *app) setup() error {
	if a.cfg != nil {
		return nil
	}

	cfg, err := LoadConfig(a.configPath)
	if err != nil {
		return &ServerError{Op: "LoadConfig", Err: err, ExitCode: ExitConfigError}
	}
	if a.dbPath != "" {
		cfg.Database.DSN = a.dbPath
	}
	if a.logLevel != "" {
		cfg.Log.Level = a.logLevel
	}
	if a.logFormat != "" {
		cfg.Log.Format = a.logFormat
	}

	a.cfg = cfg
	a.logger = SetupLogger(cfg)
	return nil
}

// service opens the store and returns the switcher service. Keys never
// written read as their defaults, so no initialization is needed here.
func (a *app) service(_ context.Context) (*switcher.Service, error) {
	if a.svc != nil {
		return a.svc, nil
	}

	s, err := openStore(a.cfg.Database.DSN)
	if err != nil {
		return nil, &ServerError{Op: "openStore", Err: err, ExitCode: ExitDatabaseError}
	}

	nav, err := navigate.NewBrowserNavigator(a.cfg.Browser.IncognitoCommand, a.logger)
	if err != nil {
		s.Close()
		return nil, &ServerError{Op: "NewBrowserNavigator", Err: err, ExitCode: ExitConfigError}
	}

	a.store = s
	a.svc = switcher.NewService(s, nav, clip.SystemClipboard{}, a.logger)
	return a.svc, nil
}

func (a *app) close() {
	if a.store == nil {
		return
	}
	if err := a.store.Close(); err != nil && a.logger != nil {
		a.logger.Error("database close error", "error", err)
	}
	a.store = nil
	a.svc = nil
}

// openStore opens the settings database, creating its directory if needed.
func openStore(dsn string) (*store.SQLiteStore, error) {
	if dsn != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(dsn), 0o755); err != nil {
			return nil, fmt.Errorf("failed to create data directory: %w", err)
		}
	}
	return store.NewSQLiteStore(dsn)
}

// =============================================================================
// Root Command
// =============================================================================

func newRootCmd(a *app) *cobra.Command {
	root := &cobra.Command{
		Use:   "envswitch",
		Short: "Switch a page between the environments of a project",
		Long: `envswitch groups the domains of one application (local, staging,
production) into projects and moves the page you are on to the same path
on another environment. It serves the API used by the browser extension
and offers the same operations on the command line.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.setup()
		},
	}

	flags := root.PersistentFlags()
	flags.StringVar(&a.configPath, "config", "", "Path to config file")
	flags.StringVar(&a.dbPath, "db", "", "Path to the settings database (overrides database.dsn)")
	flags.StringVar(&a.logLevel, "log-level", "", "Log level: debug, info, warn or error")
	flags.StringVar(&a.logFormat, "log-format", "", "Log format: text or json")

	root.AddCommand(
		newServeCmd(a),
		newVersionCmd(),
		newResolveCmd(a),
		newSwitchCmd(a),
		newCopyCmd(a),
		newProjectCmd(a),
		newDomainCmd(a),
		newToolCmd(a),
		newRulesCmd(a),
		newSettingsCmd(a),
		newExportCmd(a),
		newImportCmd(a),
	)
	return root
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Args:  cobra.NoArgs,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return nil
		},
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "envswitch %s (built %s)\n", Version, BuildTime)
		},
	}
}
