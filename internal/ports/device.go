package ports

import (
	"context"

	"github.com/oofurkan/CncMachineTracker/internal/domain"
)

// DeviceReader pulls a real reading for one machine from the shop floor.
// Timeouts and retries belong to the implementation.
type DeviceReader interface {
	ReadCurrent(ctx context.Context, id string) (domain.MachineState, error)
}
