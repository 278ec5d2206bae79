package main

import (
	"context"
	"time"

	"anesthesia_controller/internal/control"
	"anesthesia_controller/internal/repository"
	"anesthesia_controller/internal/service"

	"github.com/spf13/cobra"
)

type simulateOptions struct {
	cycles   int
	scenario string
}

func newSimulateCommand(root *rootOptions) *cobra.Command {
	opts := &simulateOptions{}

	cmd := &cobra.Command{
		Use:   "simulate",
		Short: "Run the loop against the simulated patient on a virtual clock",
		Long: `Run the control loop headless against the simulated patient. Time is
virtual, so a run of N control cycles finishes immediately. One status line
is logged per control cycle.

Example:
  anesthesia-controller simulate --cycles 120 --scenario configs/scenarios/spo2_drop.yml`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSimulate(cmd.Context(), root, opts)
		},
	}
	cmd.Flags().IntVar(&opts.cycles, "cycles", 60, "number of control cycles to run")
	cmd.Flags().StringVar(&opts.scenario, "scenario", "", "YAML scenario (overrides simulator.scenario)")
	return cmd
}

func runSimulate(ctx context.Context, root *rootOptions, opts *simulateOptions) error {
	if ctx == nil {
		ctx = context.Background()
	}
	cfg, _, log, err := loadConfig(root.configPath)
	if err != nil {
		return err
	}
	defer func() { _ = log.Sync() }()

	repos, err := repository.NewRepository(cfg.Events.Capacity, cfg.Auth.Operators)
	if err != nil {
		return err
	}
	engine, err := control.NewEngine(cfg.Control.Engine())
	if err != nil {
		return err
	}
	services := service.NewService(repos, service.Deps{
		Engine:     engine,
		SigningKey: cfg.Auth.SigningKey,
		TokenTTL:   cfg.Auth.TokenTTL,
		Log:        log,
	})
	sim, err := newSimulator(cfg, services, opts.scenario, log)
	if err != nil {
		return err
	}

	tick := cfg.Control.TickPeriod
	start := time.Now().UTC().Truncate(time.Second)
	now, nextSim, nextReport := start, start, start

	for cycle := 1; cycle <= opts.cycles; now = now.Add(tick) {
		if !now.Before(nextSim) {
			if err := sim.Step(ctx, now); err != nil {
				return err
			}
			nextSim = nextSim.Add(cfg.Simulator.Period)
		}
		out := services.Loop.Step(ctx, now)
		if now.Before(nextReport) {
			continue
		}
		nextReport = nextReport.Add(cfg.Control.ControlPeriod)

		kv := []interface{}{
			"cycle", cycle,
			"t", now.Sub(start).Seconds(),
			"state", out.State.String(),
			"command", out.ActuatorCommand,
			"target", out.TargetAngle,
			"override", string(out.Override),
			"alarm", out.Alarm.Level.String(),
		}
		if out.Vitals != nil {
			kv = append(kv,
				"hr", out.Vitals.HeartRate,
				"map", out.Vitals.MAP,
				"rr", out.Vitals.RespiratoryRate,
				"spo2", out.Vitals.SpO2)
		}
		if len(out.Alarm.Causes) > 0 {
			kv = append(kv, "causes", out.Alarm.Causes)
		}
		log.Infow("cycle", kv...)
		cycle++
	}

	events, err := services.EventLog.List(ctx, service.LogFilter{})
	if err != nil {
		return err
	}
	log.Infow("simulation_finished", "cycles", opts.cycles, "events", len(events), "final_command", services.Loop.Command())
	return nil
}
