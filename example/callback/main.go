package main

import (
	"context"
	"fmt"
	"log"
	"os/signal"
	"syscall"
	"time"

	"github.com/oofurkan/CncMachineTracker"
)

func main() {
	cfg, err := cnctracker.LoadConfig("../../data/config.yaml")
	if err != nil {
		log.Fatalf("load config: %v", err)
	}

	callback := func(batch []cnctracker.Sample) error {
		for _, s := range batch {
			fmt.Printf("%s machine=%s status=%s count=%d cycle=%.1fs\n",
				s.Timestamp.Format(time.RFC3339Nano),
				s.MachineID,
				s.Status,
				s.ProductionCount,
				s.CycleTimeSeconds,
			)
		}
		return nil
	}

	rt, err := cnctracker.NewRuntime(cfg, cnctracker.WithSink(cnctracker.NewCallbackSink("stdout", callback)))
	if err != nil {
		log.Fatalf("build runtime: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := rt.Run(ctx); err != nil {
		log.Fatalf("runtime error: %v", err)
	}
}
