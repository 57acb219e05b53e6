package pipeline

import (
	"context"
	"time"

	"github.com/oofurkan/CncMachineTracker/internal/domain"
	"github.com/oofurkan/CncMachineTracker/internal/ports"
)

// Advancer produces the next state of a machine.
type Advancer interface {
	Advance(id string) (domain.MachineState, error)
}

// RunSimulationLoop advances every machine in ids once per interval until ctx
// is cancelled. Failures are logged and the loop carries on.
func RunSimulationLoop(ctx context.Context, adv Advancer, ids []string, interval time.Duration, obs ports.Observability) {
	if len(ids) == 0 {
		return
	}
	if obs == nil {
		obs = ports.NopObservability{}
	}
	if interval <= 0 {
		interval = time.Second
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			for _, id := range ids {
				if _, err := adv.Advance(id); err != nil {
					obs.LogError("simulation_step_failed", err, ports.Field{Key: "machine_id", Value: id})
				}
			}
		}
	}
}
