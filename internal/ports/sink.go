package ports

import "github.com/oofurkan/CncMachineTracker/internal/domain"

// Sink receives committed samples for long-term storage outside the tracker.
type Sink interface {
	WriteBatch(samples []domain.Sample) error
	Name() string
}
