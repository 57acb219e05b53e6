package cnctracker

import (
	"errors"
	"testing"
	"time"
)

func sampleFor(id string, count int64) Sample {
	return Sample{
		MachineID:       id,
		Status:          StatusStopped,
		ProductionCount: count,
		Timestamp:       time.Unix(1, 0).UTC(),
	}
}

func TestNewCallbackSink(t *testing.T) {
	var received []Sample
	sink := NewCallbackSink("cb", func(batch []Sample) error {
		received = append(received, batch...)
		return nil
	})

	input := sampleFor("M1", 42)
	if err := sink.WriteBatch([]Sample{input}); err != nil {
		t.Fatalf("WriteBatch returned error: %v", err)
	}
	if len(received) != 1 {
		t.Fatalf("expected 1 batch entry, got %d", len(received))
	}
	if received[0] != input {
		t.Fatalf("mismatched sample payload: %+v vs %+v", received[0], input)
	}
	if sink.Name() != "cb" {
		t.Fatalf("unexpected sink name %q", sink.Name())
	}
}

func TestNewCallbackSinkNilHandler(t *testing.T) {
	sink := NewCallbackSink("", nil)
	if err := sink.WriteBatch([]Sample{sampleFor("M1", 1)}); err == nil {
		t.Fatalf("expected error when callback is nil")
	}
}

func TestNewChannelSink(t *testing.T) {
	sink, ch, closeFn := NewChannelSink("chan", 1)
	defer closeFn()

	input := sampleFor("M2", 7)
	errCh := make(chan error, 1)

	go func() {
		errCh <- sink.WriteBatch([]Sample{input})
	}()

	var batch []Sample
	select {
	case batch = <-ch:
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for channel batch")
	}

	if err := <-errCh; err != nil {
		t.Fatalf("WriteBatch returned error: %v", err)
	}
	if len(batch) != 1 || batch[0].MachineID != input.MachineID {
		t.Fatalf("unexpected batch data: %+v", batch)
	}

	closeFn()
	if err := sink.WriteBatch([]Sample{input}); !errors.Is(err, ErrChannelSinkClosed) {
		t.Fatalf("expected ErrChannelSinkClosed, got %v", err)
	}
}
