package device

import (
	"context"
	"math/rand/v2"
	"sync"
	"time"

	"github.com/oofurkan/CncMachineTracker/internal/domain"
	"github.com/oofurkan/CncMachineTracker/internal/ports"
)

// MockReader fabricates plausible controller readings. It stands in for a
// real FANUC connection on benches without hardware.
type MockReader struct {
	mu  sync.Mutex
	rng *rand.Rand
	now func() time.Time
}

func NewMockReader(seed uint64) *MockReader {
	return &MockReader{
		rng: rand.New(rand.NewPCG(seed, seed+1)),
		now: time.Now,
	}
}

func (m *MockReader) ReadCurrent(ctx context.Context, id string) (domain.MachineState, error) {
	if err := ctx.Err(); err != nil {
		return domain.MachineState{}, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	status := domain.Statuses[m.rng.IntN(len(domain.Statuses))]
	state := domain.MachineState{
		ID:              id,
		Status:          status,
		ProductionCount: int64(100 + m.rng.IntN(900)),
		Timestamp:       m.now().UTC(),
	}
	if status == domain.StatusRunning {
		state.CycleTimeSeconds = float64(25 + m.rng.IntN(16))
	}
	return state, nil
}

var _ ports.DeviceReader = (*MockReader)(nil)
