package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"anesthesia_controller/internal/actuator"
	"anesthesia_controller/internal/config"
	"anesthesia_controller/internal/handlers"
	"anesthesia_controller/internal/logger"
	"anesthesia_controller/internal/patient"
	"anesthesia_controller/internal/server"
	"anesthesia_controller/internal/service"

	"github.com/spf13/cobra"
)

const shutdownTimeout = 10 * time.Second

type rootOptions struct {
	configPath string
}

func main() {
	if err := newRootCommand().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	opts := &rootOptions{}

	cmd := &cobra.Command{
		Use:           "anesthesia-controller",
		Short:         "Closed-loop anesthesia infusion controller",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	cmd.PersistentFlags().StringVar(&opts.configPath, "config", "", "config file (default configs/config.yml)")

	cmd.AddCommand(newServeCommand(opts))
	cmd.AddCommand(newSimulateCommand(opts))
	return cmd
}

// loadConfig reads the configuration with a bootstrap logger, then builds
// the application logger from it.
func loadConfig(path string) (*config.Config, *config.Loader, *logger.Logger, error) {
	loader := config.NewLoader(path, logger.New(logger.InfoLevel, logger.FormatConsole))
	cfg, err := loader.Load()
	if err != nil {
		return nil, nil, nil, err
	}
	log := logger.Init(cfg.LogLevel, cfg.LogFormat)
	log.Infow("config_loaded", "file", loader.File())
	return cfg, loader, log, nil
}

// newSink picks the actuator driver. The returned func releases it.
func newSink(cfg *config.Config, log *logger.Logger) (actuator.Sink, func() error, error) {
	switch cfg.Actuator.Driver {
	case config.DriverModbus:
		s, err := actuator.NewModbusSink(actuator.ModbusConfig{
			Endpoint:    cfg.Actuator.Endpoint,
			UnitID:      cfg.Actuator.UnitID,
			Register:    cfg.Actuator.Register,
			Timeout:     cfg.Actuator.Timeout,
			HardwareMax: cfg.Control.Infusion.HardwareMax,
		})
		if err != nil {
			return nil, nil, fmt.Errorf("connect actuator: %w", err)
		}
		log.Infow("actuator_connected", "endpoint", cfg.Actuator.Endpoint, "unit_id", cfg.Actuator.UnitID, "register", cfg.Actuator.Register)
		return s, s.Close, nil
	default:
		return actuator.NewLogSink(log), func() error { return nil }, nil
	}
}

// newSimulator builds the patient simulator. scenarioPath overrides the
// configured scenario when set.
func newSimulator(cfg *config.Config, services *service.Service, scenarioPath string, log *logger.Logger) (*service.SimulatorService, error) {
	model, err := patient.NewModel(cfg.Simulator.Patient)
	if err != nil {
		return nil, err
	}
	if scenarioPath == "" {
		scenarioPath = cfg.Simulator.Scenario
	}
	var sc *patient.Scenario
	if scenarioPath != "" {
		if sc, err = patient.LoadScenario(scenarioPath); err != nil {
			return nil, err
		}
		log.Infow("scenario_loaded", "file", scenarioPath, "name", sc.Name, "steps", len(sc.Steps))
	}
	return service.NewSimulatorService(model, sc, services.Control, services.Loop, log), nil
}

// runHTTPServer runs the HTTP server in a separate goroutine.
func runHTTPServer(srv *server.Server, port string, handler *handlers.Handler, log *logger.Logger) {
	go func() {
		if err := srv.Run(port, handler.InitRoutes()); err != nil {
			log.Fatalw("error starting server", "err", err)
		}
	}()
}

// waitForShutdown listens for termination signals and performs graceful shutdown.
func waitForShutdown(cancel context.CancelFunc, srv *server.Server, log *logger.Logger) {
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Infow("shutting down server...")

	// stop background goroutines
	cancel()

	// allow in-flight requests to complete
	ctx, shutdownCancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer shutdownCancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.Errorw("server forced to shutdown", "err", err)
	}
}
