// Package serve implements the command that runs the HTTP API.
package serve

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/qdlab/nanolume/internal/api"
	"github.com/qdlab/nanolume/internal/conf"
	"github.com/qdlab/nanolume/internal/datastore"
	"github.com/qdlab/nanolume/internal/logger"
	"github.com/qdlab/nanolume/internal/mqtt"
	"github.com/qdlab/nanolume/internal/observability"
	"github.com/qdlab/nanolume/internal/simulation"
	"github.com/qdlab/nanolume/internal/telemetry"
)

const (
	telemetryFlushTimeout = 2 * time.Second
	mqttConnectTimeout    = 10 * time.Second
)

// Command creates the serve command.
func Command(settings *conf.Settings) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP API",
		Long:  "Serve the simulation, sweep, lattice, run and preset endpoints until interrupted.",
		RunE: func(cmd *cobra.Command, args []string) error {
			return Run(settings)
		},
	}

	if err := setupFlags(cmd); err != nil {
		panic(fmt.Sprintf("error setting up flags: %v", err))
	}

	return cmd
}

// setupFlags defines the serve flags and binds them over the config file values.
func setupFlags(cmd *cobra.Command) error {
	cmd.Flags().String("port", "8080", "Port to listen on")
	cmd.Flags().Bool("api-debug", false, "Enable echo debug mode")

	if err := viper.BindPFlag("webserver.port", cmd.Flags().Lookup("port")); err != nil {
		return fmt.Errorf("error binding port flag: %w", err)
	}
	if err := viper.BindPFlag("webserver.debug", cmd.Flags().Lookup("api-debug")); err != nil {
		return fmt.Errorf("error binding api-debug flag: %w", err)
	}
	return nil
}

// Run wires the engine, store, publisher and telemetry into the HTTP server
// and blocks until SIGINT or SIGTERM.
func Run(settings *conf.Settings) error {
	log := logger.Global().Module("serve")

	if !settings.WebServer.Enabled {
		return fmt.Errorf("web server is disabled in configuration")
	}

	if err := telemetry.InitSentry(settings); err != nil {
		log.Warn("telemetry initialization failed, error reporting disabled", logger.Error(err))
	}
	defer telemetry.Shutdown(telemetryFlushTimeout)

	m, err := observability.NewMetrics()
	if err != nil {
		return fmt.Errorf("error initializing metrics: %w", err)
	}

	engine, err := simulation.NewEngine(settings.Model, simulation.Config{
		CacheTTL:     settings.Simulation.CacheTTL,
		SweepWorkers: settings.Simulation.SweepWorkers,
	}, simulation.WithRecorder(m.Simulation))
	if err != nil {
		return fmt.Errorf("error initializing simulation engine: %w", err)
	}

	opts := []api.ServerOption{api.WithMetrics(m)}

	if ds := datastore.New(settings, datastore.WithMetrics(m.Datastore)); ds != nil {
		if err := ds.Open(); err != nil {
			return fmt.Errorf("error opening datastore: %w", err)
		}
		defer func() {
			if err := ds.Close(); err != nil {
				log.Error("failed to close datastore", logger.Error(err))
			}
		}()
		opts = append(opts, api.WithDataStore(ds))
	} else {
		log.Info("persistence disabled, runs and presets endpoints unavailable")
	}

	if settings.MQTT.Enabled {
		publisher := newPublisher(settings, m, log)
		defer publisher.Close()
		opts = append(opts, api.WithPublisher(publisher))
	}

	server, err := api.New(settings, engine, opts...)
	if err != nil {
		return fmt.Errorf("error creating HTTP server: %w", err)
	}

	log.Info("nanolume starting",
		logger.String("version", settings.Version),
		logger.String("instance", settings.Main.Name),
		logger.String("port", settings.WebServer.Port))

	return server.StartWithGracefulShutdown()
}

// newPublisher creates the MQTT publisher. A broker that is down at startup
// is not fatal; the publisher reconnects on the next run.
func newPublisher(settings *conf.Settings, m *observability.Metrics, log logger.Logger) *mqtt.Publisher {
	client := mqtt.NewClient(settings, m.MQTT)
	publisher := mqtt.NewPublisher(client, settings.MQTT.Topic, settings.Main.Name, m.Simulation)

	ctx, cancel := context.WithTimeout(context.Background(), mqttConnectTimeout)
	defer cancel()
	if err := client.Connect(ctx); err != nil {
		log.Warn("MQTT broker unreachable, will retry on publish",
			logger.String("broker", settings.MQTT.Broker),
			logger.Error(err))
	} else {
		log.Info("connected to MQTT broker",
			logger.String("broker", settings.MQTT.Broker),
			logger.String("topic", publisher.Topic()))
	}
	return publisher
}
