package cmd

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/qdlab/nanolume/cmd/lattice"
	"github.com/qdlab/nanolume/cmd/serve"
	"github.com/qdlab/nanolume/cmd/simulate"
	"github.com/qdlab/nanolume/cmd/sweep"
	"github.com/qdlab/nanolume/internal/conf"
	"github.com/qdlab/nanolume/internal/logger"
)

// RootCommand creates and returns the root command. settings is filled from
// the config file before any subcommand runs.
func RootCommand(settings *conf.Settings) *cobra.Command {
	var configFile string

	rootCmd := &cobra.Command{
		Use:           "nanolume",
		Short:         "AgGaS₂ nanocrystal emission and colour simulator",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.PersistentFlags().StringVarP(&configFile, "config", "c", "", "Path to config.yaml (default: search standard locations)")
	rootCmd.PersistentFlags().BoolP("debug", "d", false, "Enable debug output")
	if err := viper.BindPFlag("debug", rootCmd.PersistentFlags().Lookup("debug")); err != nil {
		panic(fmt.Sprintf("error binding debug flag: %v", err))
	}

	rootCmd.AddCommand(
		serve.Command(settings),
		simulate.Command(settings),
		sweep.Command(settings),
		lattice.Command(settings),
	)

	rootCmd.PersistentPreRunE = func(cmd *cobra.Command, args []string) error {
		// Only serve logs to stdout; the other commands print results there.
		console := cmd.ErrOrStderr()
		if cmd.Name() == "serve" {
			console = cmd.OutOrStdout()
		}
		return initialize(settings, configFile, console)
	}

	return rootCmd
}

// initialize loads the configuration into settings and installs the
// central logger. Build information set by main is preserved.
func initialize(settings *conf.Settings, configFile string, console io.Writer) error {
	loaded, err := conf.LoadFrom(configFile)
	if err != nil {
		return fmt.Errorf("error loading configuration: %w", err)
	}

	version, buildDate := settings.Version, settings.BuildDate
	*settings = *loaded
	settings.Version, settings.BuildDate = version, buildDate
	conf.SetSettings(settings)

	if settings.Debug {
		settings.Logging.DefaultLevel = "debug"
		if settings.Logging.Console != nil {
			settings.Logging.Console.Level = "debug"
		}
	}

	cl, err := logger.NewCentralLoggerWithWriter(&settings.Logging, console)
	if err != nil {
		return fmt.Errorf("error initializing logger: %w", err)
	}
	logger.SetGlobal(cl)

	return nil
}
