// Package main provides a CLI tool for copying saved runs and presets from a
// nanolume SQLite database into MySQL, for instances that outgrow SQLite.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/qdlab/nanolume/internal/conf"
	"github.com/qdlab/nanolume/internal/datastore"
)

// Version information (can be set via ldflags during build)
var version = "dev"

func main() {
	if err := newRootCommand().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	var cfg Config

	cmd := &cobra.Command{
		Use:   "dbexport",
		Short: "Copy nanolume runs and presets from SQLite to MySQL",
		Long: `Copies the simulation_runs and presets tables from a nanolume SQLite
database into MySQL. Rows are upserted by primary key, so the export can be
re-run after the source has grown.`,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			if v, _ := cmd.Flags().GetBool("version"); v {
				fmt.Fprintf(cmd.OutOrStdout(), "dbexport version %s\n", version)
				return nil
			}
			return runExport(cmd, &cfg)
		},
	}

	cmd.Flags().StringVar(&cfg.SQLitePath, "sqlite-path", "", "Path to source SQLite database file")
	cmd.Flags().StringVar(&cfg.MySQL.Host, "mysql-host", "", "MySQL host")
	cmd.Flags().StringVar(&cfg.MySQL.Port, "mysql-port", "3306", "MySQL port")
	cmd.Flags().StringVar(&cfg.MySQL.Username, "mysql-user", "nanolume", "MySQL username")
	cmd.Flags().StringVar(&cfg.MySQL.Password, "mysql-pass", "", "MySQL password")
	cmd.Flags().StringVar(&cfg.MySQL.Database, "mysql-database", "nanolume", "MySQL database name")

	cmd.Flags().IntVar(&cfg.BatchSize, "batch-size", 500, "Number of records per batch")
	cmd.Flags().BoolVar(&cfg.Clean, "clean", false, "Delete target rows before copying")
	cmd.Flags().BoolVar(&cfg.SkipVerify, "skip-verify", false, "Skip post-export verification")
	cmd.Flags().BoolVar(&cfg.Verbose, "verbose", false, "Enable verbose output")
	cmd.Flags().StringVar(&cfg.ConfigPath, "config", "", "Path to config.yaml (for connection fallback)")
	cmd.Flags().BoolP("version", "v", false, "Print version information")

	return cmd
}

func runExport(cmd *cobra.Command, cfg *Config) error {
	out := cmd.OutOrStdout()

	if err := cfg.Load(); err != nil {
		return fmt.Errorf("configuration error: %w", err)
	}

	if cfg.Verbose {
		fmt.Fprintf(out, "Source: %s\n", cfg.SQLitePath)
		fmt.Fprintf(out, "Target: %s\n", cfg.SanitizedTarget())
		fmt.Fprintf(out, "Batch size: %d\n", cfg.BatchSize)
	}

	settings := &conf.Settings{}
	settings.Output.SQLite.Path = cfg.SQLitePath
	settings.Output.MySQL = cfg.MySQL

	source := &datastore.SQLiteStore{Settings: settings}
	if err := source.Open(); err != nil {
		return fmt.Errorf("failed to open SQLite database: %w", err)
	}
	defer source.Close()

	target := &datastore.MySQLStore{Settings: settings}
	if err := target.Open(); err != nil {
		return fmt.Errorf("failed to open MySQL database: %w", err)
	}
	defer target.Close()

	fmt.Fprintln(out, "Database connections established successfully")

	migrator := NewMigrator(source.DB, target.DB, *cfg, out)
	stats, err := migrator.Run()
	if err != nil {
		return fmt.Errorf("export failed: %w", err)
	}
	stats.Print(out)

	if !cfg.SkipVerify {
		fmt.Fprintln(out, "\n--- Verification ---")
		if err := NewVerifier(source.DB, target.DB, out).Verify(); err != nil {
			return fmt.Errorf("verification failed: %w", err)
		}
		fmt.Fprintln(out, "Verification passed!")
	}

	return nil
}
