package device

import (
	"context"
	"testing"
)

func TestMockReaderProducesValidReadings(t *testing.T) {
	r := NewMockReader(42)

	for i := 0; i < 200; i++ {
		st, err := r.ReadCurrent(context.Background(), "M1")
		if err != nil {
			t.Fatalf("read: %v", err)
		}
		if err := st.Validate(); err != nil {
			t.Fatalf("invalid reading: %v", err)
		}
		if st.ID != "M1" {
			t.Fatalf("expected id M1, got %s", st.ID)
		}
		if st.ProductionCount < 100 || st.ProductionCount >= 1000 {
			t.Fatalf("production count %d outside [100,1000)", st.ProductionCount)
		}
		if st.CycleTimeSeconds != 0 && (st.CycleTimeSeconds < 25 || st.CycleTimeSeconds > 40) {
			t.Fatalf("cycle time %v outside [25,40]", st.CycleTimeSeconds)
		}
	}
}

func TestMockReaderHonoursCancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if _, err := NewMockReader(1).ReadCurrent(ctx, "M1"); err == nil {
		t.Fatalf("expected error for cancelled context")
	}
}
