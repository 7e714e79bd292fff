package main

import (
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"
)

var configPath string

var rootCmd = &cobra.Command{
	Use:           "formdesk",
	Short:         "Form builder API",
	Long:          "Build forms, collect public submissions and export them as JSON or CSV.",
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "path to config file (default ./formdesk.yaml or /etc/formdesk/formdesk.yaml)")

	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(migrateCmd)
	rootCmd.AddCommand(seedCmd)
	rootCmd.AddCommand(versionCmd)
}

// loadConfig loads the configuration and installs the logger.
func loadConfig() (*Config, error) {
	cfg, err := LoadConfig(configPath)
	if err != nil {
		return nil, &ServerError{Op: "LoadConfig", Err: err, ExitCode: ExitConfigError}
	}
	SetupLogger(cfg)
	return cfg, nil
}

// =============================================================================
// serve
// =============================================================================

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP API and webhook worker",
	Args:  cobra.NoArgs,
	RunE:  runServe,
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	logger := slog.Default()
	logger.Info("starting formdesk",
		"version", Version,
		"commit", Commit,
		"config", configPath,
	)

	server, err := NewServer(cfg, logger)
	if err != nil {
		return err
	}
	return server.Start(cmd.Context())
}

// =============================================================================
// migrate
// =============================================================================

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Apply database migrations and exit",
	Args:  cobra.NoArgs,
	RunE:  runMigrate,
}

func runMigrate(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	s, err := openStore(cfg)
	if err != nil {
		return err
	}
	defer s.Close()

	version, dirty, err := s.SchemaVersion(cmd.Context())
	if err != nil {
		return &ServerError{Op: "Migrate", Err: err, ExitCode: ExitDatabaseError}
	}
	fmt.Fprintf(cmd.OutOrStdout(), "%s schema at version %d", s.Dialect(), version)
	if dirty {
		fmt.Fprint(cmd.OutOrStdout(), " (dirty)")
	}
	fmt.Fprintln(cmd.OutOrStdout())
	return nil
}

// =============================================================================
// seed
// =============================================================================

var seedCmd = &cobra.Command{
	Use:   "seed",
	Short: "Create the demo account and demo forms",
	Long:  "Create the demo account and its forms. Does nothing if the demo e-mail is already registered.",
	Args:  cobra.NoArgs,
	RunE:  runSeed,
}

func runSeed(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	s, err := openStore(cfg)
	if err != nil {
		return err
	}
	defer s.Close()

	result, err := Seed(cmd.Context(), s, cfg.Auth.BcryptCost)
	if err != nil {
		return &ServerError{Op: "Seed", Err: err, ExitCode: ExitDatabaseError}
	}
	fmt.Fprintln(cmd.OutOrStdout(), result.Summary())
	return nil
}

// =============================================================================
// version
// =============================================================================

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Fprintf(cmd.OutOrStdout(), "formdesk %s (commit %s, built %s)\n", Version, Commit, BuildTime)
	},
}
