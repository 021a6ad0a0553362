package gateway

import (
	"testing"
	"time"
)

func TestNewBackoff(t *testing.T) {
	tests := []struct {
		name      string
		reset     time.Duration
		max       time.Duration
		wantReset time.Duration
		wantMax   time.Duration
	}{
		{"defaults reset", 0, time.Minute, DefaultResetWait, time.Minute},
		{"ceiling below reset is raised", 5 * time.Second, time.Second, 5 * time.Second, 5 * time.Second},
		{"custom", 100 * time.Millisecond, time.Second, 100 * time.Millisecond, time.Second},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b := NewBackoff(tt.reset, tt.max)
			if b.Current != tt.wantReset {
				t.Errorf("Current = %v, want %v", b.Current, tt.wantReset)
			}
			if b.ResetTo != tt.wantReset {
				t.Errorf("ResetTo = %v, want %v", b.ResetTo, tt.wantReset)
			}
			if b.Max != tt.wantMax {
				t.Errorf("Max = %v, want %v", b.Max, tt.wantMax)
			}
		})
	}
}

func TestBackoff_NextDoublesUpToCeiling(t *testing.T) {
	b := NewBackoff(5*time.Second, 60*time.Second)

	wantDelays := []time.Duration{
		5 * time.Second,
		10 * time.Second,
		20 * time.Second,
		40 * time.Second,
		60 * time.Second,
		60 * time.Second,
	}

	for i, want := range wantDelays {
		var delay time.Duration
		delay, b = b.Next()
		if delay != want {
			t.Errorf("step %d: delay = %v, want %v", i, delay, want)
		}
		if b.Current > b.Max {
			t.Errorf("step %d: Current %v exceeds Max %v", i, b.Current, b.Max)
		}
		if b.Current < b.ResetTo {
			t.Errorf("step %d: Current %v below ResetTo %v", i, b.Current, b.ResetTo)
		}
	}
}

func TestBackoff_ResetAfterGrowth(t *testing.T) {
	b := NewBackoff(5*time.Second, time.Minute)
	for i := 0; i < 4; i++ {
		_, b = b.Next()
	}
	if b.Current == 5*time.Second {
		t.Fatal("expected backoff to have grown")
	}

	b = b.Reset()
	if b.Current != 5*time.Second {
		t.Errorf("Current after Reset = %v, want 5s", b.Current)
	}
	if b.Max != time.Minute {
		t.Errorf("Max after Reset = %v, want 1m", b.Max)
	}
}

func TestBackoff_NextIsPure(t *testing.T) {
	b := NewBackoff(5*time.Second, time.Minute)

	delay, next := b.Next()
	if delay != 5*time.Second {
		t.Errorf("delay = %v, want 5s", delay)
	}
	if next.Current != 10*time.Second {
		t.Errorf("next.Current = %v, want 10s", next.Current)
	}
	if b.Current != 5*time.Second {
		t.Errorf("receiver mutated: Current = %v, want 5s", b.Current)
	}
}

func TestBackoff_CeilingNeverExceeded(t *testing.T) {
	for _, max := range []time.Duration{5 * time.Second, 7 * time.Second, 33 * time.Second, time.Hour} {
		b := NewBackoff(5*time.Second, max)
		for i := 0; i < 64; i++ {
			var delay time.Duration
			delay, b = b.Next()
			if delay > max {
				t.Fatalf("max %v step %d: delay %v exceeds ceiling", max, i, delay)
			}
			if b.Current > max {
				t.Fatalf("max %v step %d: Current %v exceeds ceiling", max, i, b.Current)
			}
		}
	}
}
