package queue

import (
	"sync"

	"github.com/oofurkan/CncMachineTracker/internal/domain"
	"github.com/oofurkan/CncMachineTracker/internal/ports"
)

// MemQueue buffers committed machine samples between the store's commit
// listener and the historian exporter. It is bounded and FIFO; Enqueue
// reports false when full so the export policy can drop or retry.
type MemQueue struct {
	mu   sync.Mutex
	data []domain.Sample
	cap  int
}

func NewMemQueue(capacity int) *MemQueue {
	if capacity <= 0 {
		capacity = 1
	}
	return &MemQueue{
		data: make([]domain.Sample, 0, capacity),
		cap:  capacity,
	}
}

func (q *MemQueue) Enqueue(s domain.Sample) bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	if len(q.data) >= q.cap {
		return false
	}
	q.data = append(q.data, s)
	return true
}

func (q *MemQueue) DequeueBatch(max int) []domain.Sample {
	q.mu.Lock()
	defer q.mu.Unlock()
	if len(q.data) == 0 {
		return nil
	}
	if max <= 0 || max > len(q.data) {
		max = len(q.data)
	}
	out := make([]domain.Sample, max)
	copy(out, q.data[:max])
	q.data = append(q.data[:0], q.data[max:]...)
	return out
}

func (q *MemQueue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.data)
}

var _ ports.SampleQueue = (*MemQueue)(nil)
