package main

import (
	"context"
	"log"
	"os/signal"
	"syscall"

	"github.com/oofurkan/CncMachineTracker"
)

func main() {
	cfg, err := cnctracker.LoadConfig("../../data/config.yaml")
	if err != nil {
		log.Fatalf("load config: %v", err)
	}
	rt, err := cnctracker.NewRuntime(cfg)
	if err != nil {
		log.Fatalf("build runtime: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := rt.Run(ctx); err != nil {
		log.Fatalf("runtime exited: %v", err)
	}
}
