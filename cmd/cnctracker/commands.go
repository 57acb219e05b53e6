package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/oofurkan/CncMachineTracker/internal/adapters/memstore"
	"github.com/oofurkan/CncMachineTracker/internal/app/config"
	"github.com/oofurkan/CncMachineTracker/internal/app/simulation"
	"github.com/oofurkan/CncMachineTracker/pkg/cnctracker"
)

const defaultConfigPath = "./data/config.yaml"

func newRootCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:           "cnctracker",
		Short:         "CNC machine tracker",
		Long:          "Tracks CNC machine status, production count and cycle time, simulated or read from OPC UA.",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cmd.AddCommand(newServeCommand())
	cmd.AddCommand(newValidateCommand())
	cmd.AddCommand(newSimulateCommand())
	cmd.AddCommand(newStatsCommand())
	return cmd
}

func newServeCommand() *cobra.Command {
	var cfgPath string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP API, simulator and historian export",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := cnctracker.LoadConfig(cfgPath)
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			rt, err := cnctracker.NewRuntime(cfg)
			if err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			return rt.Run(ctx)
		},
	}
	cmd.Flags().StringVar(&cfgPath, "config", defaultConfigPath, "path to configuration file")
	return cmd
}

func newValidateCommand() *cobra.Command {
	var cfgPath string
	cmd := &cobra.Command{
		Use:   "validate",
		Short: "Load and validate a config file without starting the runtime",
		RunE: func(cmd *cobra.Command, args []string) error {
			if _, err := cnctracker.LoadConfig(cfgPath); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "config %s looks good\n", cfgPath)
			return nil
		},
	}
	cmd.Flags().StringVar(&cfgPath, "config", defaultConfigPath, "path to configuration file to validate")
	return cmd
}

func newSimulateCommand() *cobra.Command {
	var (
		cfgPath string
		id      string
		steps   int
		seed    uint64
	)
	cmd := &cobra.Command{
		Use:   "simulate",
		Short: "Advance one machine in-process and print each state as a JSON line",
		RunE: func(cmd *cobra.Command, args []string) error {
			if id == "" {
				return fmt.Errorf("--id is required")
			}
			if steps <= 0 {
				return fmt.Errorf("--steps must be positive, got %d", steps)
			}

			cfg := config.Default()
			if cfgPath != "" {
				loaded, err := config.Load(cfgPath)
				if err != nil {
					return fmt.Errorf("load config: %w", err)
				}
				cfg = loaded
			}

			var opts []simulation.Option
			if cmd.Flags().Changed("seed") {
				opts = append(opts, simulation.WithRand(simulation.NewRand(seed)))
			}
			engine := simulation.NewEngine(memstore.New(memstore.WithRetention(cfg.Retention)), opts...)
			return simulateSteps(cmd.Context(), engine, id, steps, json.NewEncoder(cmd.OutOrStdout()))
		},
	}
	cmd.Flags().StringVar(&cfgPath, "config", "", "optional configuration file for retention settings")
	cmd.Flags().StringVar(&id, "id", "", "machine id to advance")
	cmd.Flags().IntVar(&steps, "steps", 10, "number of simulation steps")
	cmd.Flags().Uint64Var(&seed, "seed", 0, "seed for a reproducible run")
	return cmd
}

func simulateSteps(ctx context.Context, engine *simulation.Engine, id string, steps int, enc *json.Encoder) error {
	for i := 0; i < steps; i++ {
		if ctx != nil && ctx.Err() != nil {
			return ctx.Err()
		}
		state, err := engine.Advance(id)
		if err != nil {
			return err
		}
		if err := enc.Encode(state); err != nil {
			return err
		}
	}
	return nil
}
