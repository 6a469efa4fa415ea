package scheduler

import (
	"testing"
	"time"
)

func TestFrameTimesEmpty(t *testing.T) {
	if st := NewFrameTimes(8).Stats(); st != (FrameStats{}) {
		t.Errorf("empty: got %+v", st)
	}
}

func TestFrameTimesPercentiles(t *testing.T) {
	ft := NewFrameTimes(1000)
	for i := 1; i <= 100; i++ {
		ft.Record(time.Duration(i) * time.Millisecond)
	}
	st := ft.Stats()
	if st.Count != 100 {
		t.Fatalf("count = %d", st.Count)
	}
	near := func(name string, got, want time.Duration) {
		t.Helper()
		if d := got - want; d > time.Millisecond || d < -time.Millisecond {
			t.Errorf("%s: got %v, want ~%v", name, got, want)
		}
	}
	near("p50", st.P50, 50500*time.Microsecond)
	near("p95", st.P95, 95050*time.Microsecond)
	near("p99", st.P99, 99010*time.Microsecond)
	if st.Max != 100*time.Millisecond {
		t.Errorf("max = %v", st.Max)
	}
}

func TestFrameTimesWraparound(t *testing.T) {
	ft := NewFrameTimes(10)
	for i := 1; i <= 20; i++ {
		ft.Record(time.Duration(i) * time.Millisecond)
	}
	st := ft.Stats()
	if st.Count != 10 {
		t.Fatalf("count = %d, want 10", st.Count)
	}
	// buffer holds 11..20
	if st.P50 != 15500*time.Microsecond {
		t.Errorf("p50 after wraparound = %v, want 15.5ms", st.P50)
	}
	if st.Max != 20*time.Millisecond {
		t.Errorf("max = %v", st.Max)
	}
}
