package main

import (
	"context"

	"anesthesia_controller/internal/actuator"
	"anesthesia_controller/internal/config"
	"anesthesia_controller/internal/control"
	"anesthesia_controller/internal/handlers"
	"anesthesia_controller/internal/logger"
	"anesthesia_controller/internal/repository"
	"anesthesia_controller/internal/server"
	"anesthesia_controller/internal/service"

	"github.com/spf13/cobra"
)

func newServeCommand(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the control loop with the HTTP API",
		Long: `Run the control loop, the actuator writer, the HTTP API and, when
enabled in the config, the simulated patient.

Thresholds and PID gains are re-applied when the config file changes.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(opts)
		},
	}
}

func runServe(opts *rootOptions) error {
	cfg, loader, log, err := loadConfig(opts.configPath)
	if err != nil {
		return err
	}
	defer func() { _ = log.Sync() }()

	// wire dependencies
	repos, err := repository.NewRepository(cfg.Events.Capacity, cfg.Auth.Operators)
	if err != nil {
		return err
	}
	engine, err := control.NewEngine(cfg.Control.Engine())
	if err != nil {
		return err
	}
	sink, closeSink, err := newSink(cfg, log)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := closeSink(); cerr != nil {
			log.Errorw("actuator_close_failed", "err", cerr)
		}
	}()

	mailbox := actuator.NewMailbox()
	services := service.NewService(repos, service.Deps{
		Engine:     engine,
		Outbox:     mailbox,
		SigningKey: cfg.Auth.SigningKey,
		TokenTTL:   cfg.Auth.TokenTTL,
		Log:        log,
	})

	// context for background goroutines
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go mailbox.Run(ctx, sink, log)
	go services.Loop.Run(ctx, cfg.Control.TickPeriod)

	if cfg.Simulator.Enabled {
		sim, err := newSimulator(cfg, services, "", log)
		if err != nil {
			return err
		}
		services.Simulator = sim
		go sim.Run(ctx, cfg.Simulator.Period)
	}

	loader.Watch(func(next *config.Config) { applyReload(ctx, services.Control, next, log) })

	// start HTTP server
	srv := server.New(server.Options{
		ReadHeaderTimeout: cfg.HTTP.ReadHeaderTimeout,
		WriteTimeout:      cfg.HTTP.WriteTimeout,
		IdleTimeout:       cfg.HTTP.IdleTimeout,
	})
	runHTTPServer(srv, cfg.Port, handlers.NewHandler(services, log), log)
	log.Infow("controller_started", "port", cfg.Port, "simulator", cfg.Simulator.Enabled, "actuator", cfg.Actuator.Driver)

	// graceful shutdown
	waitForShutdown(cancel, srv, log)
	return nil
}

// applyReload pushes the hot-reloadable sections through the same
// validation the API uses. Other changes need a restart.
func applyReload(ctx context.Context, ctl service.Control, cfg *config.Config, log *logger.Logger) {
	if err := ctl.ConfigureThresholds(ctx, cfg.Control.Thresholds); err != nil {
		log.Errorw("reload_thresholds_rejected", "err", err)
	}
	if err := ctl.ConfigureGains(ctx, cfg.Control.Gains); err != nil {
		log.Errorw("reload_gains_rejected", "err", err)
	}
}
