package queue

import (
	"testing"

	"github.com/oofurkan/CncMachineTracker/internal/domain"
)

func TestMemQueueEnqueueDequeueOrder(t *testing.T) {
	q := NewMemQueue(4)

	s1 := domain.Sample{MachineID: "M1"}
	s2 := domain.Sample{MachineID: "M2"}

	if !q.Enqueue(s1) || !q.Enqueue(s2) {
		t.Fatalf("expected successful enqueue")
	}

	batch := q.DequeueBatch(1)
	if len(batch) != 1 || batch[0].MachineID != "M1" {
		t.Fatalf("unexpected first batch: %+v", batch)
	}

	remaining := q.DequeueBatch(10)
	if len(remaining) != 1 || remaining[0].MachineID != "M2" {
		t.Fatalf("unexpected second batch: %+v", remaining)
	}

	if q.Len() != 0 {
		t.Fatalf("queue should be empty, got %d", q.Len())
	}
}

func TestMemQueueCapacity(t *testing.T) {
	q := NewMemQueue(2)

	sample := domain.Sample{MachineID: "cap"}

	if !q.Enqueue(sample) || !q.Enqueue(sample) {
		t.Fatalf("expected enqueue within capacity")
	}
	if q.Enqueue(sample) {
		t.Fatalf("enqueue should fail when capacity exceeded")
	}

	q.DequeueBatch(1)
	if !q.Enqueue(sample) {
		t.Fatalf("expected enqueue to succeed after dequeue")
	}
}

func TestMemQueueDequeueEmpty(t *testing.T) {
	if got := NewMemQueue(1).DequeueBatch(5); got != nil {
		t.Fatalf("expected nil batch from empty queue, got %+v", got)
	}
}
