package ports

import (
	"time"

	"github.com/oofurkan/CncMachineTracker/internal/domain"
)

// MachineStore holds the current snapshot and a bounded history per machine.
type MachineStore interface {
	GetAll() []domain.MachineState
	GetLatest(id string) (domain.MachineState, bool)
	GetHistory(id string, window time.Duration) []domain.Sample
	Upsert(snapshot domain.MachineState, sample domain.Sample) error
	EnsureExists(id string, initial domain.MachineState) error
}

// CommitListener observes samples after they are committed to a store.
type CommitListener func(domain.Sample)
