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

	sink, batches, closeBatches := cnctracker.NewChannelSink("fanout", 32)
	defer closeBatches()

	go alarmWatcher(batches)

	rt, err := cnctracker.NewRuntime(cfg, cnctracker.WithSink(sink))
	if err != nil {
		log.Fatalf("build runtime: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := rt.Run(ctx); err != nil {
		log.Fatalf("runtime error: %v", err)
	}
}

// alarmWatcher prints every sample that reports an alarm.
func alarmWatcher(batches <-chan []cnctracker.Sample) {
	for batch := range batches {
		for _, s := range batch {
			if s.Status == cnctracker.StatusAlarm {
				fmt.Printf("[%s] ALARM on %s at count %d\n", time.Now().Format(time.RFC3339), s.MachineID, s.ProductionCount)
			}
		}
	}
}
