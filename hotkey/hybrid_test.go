package hotkey

import (
	"testing"
	"time"
)

const hybridThreshold = 50 * time.Millisecond

// step is one scripted action against a Hybrid. hold sleeps past the
// long-press threshold before the action; expect names the edge the
// controller must emit afterwards ("start", "stop" or "" for none).
type step struct {
	down   bool
	hold   bool
	expect string
	toggle bool
}

func runHybrid(t *testing.T, steps []step) {
	t.Helper()
	fk := NewFake()
	hy := NewHybrid(t.Context(), fk, hybridThreshold)

	for i, s := range steps {
		if s.hold {
			time.Sleep(hybridThreshold + 20*time.Millisecond)
		}
		if s.down {
			fk.SimKeydown()
		} else {
			fk.SimKeyup()
		}

		switch s.expect {
		case "start":
			select {
			case <-hy.Start():
			case <-time.After(time.Second):
				t.Fatalf("step %d: no start", i)
			}
		case "stop":
			select {
			case <-hy.StopChan():
			case <-time.After(time.Second):
				t.Fatalf("step %d: no stop", i)
			}
		default:
			select {
			case <-hy.Start():
				t.Fatalf("step %d: unexpected start", i)
			case <-hy.StopChan():
				t.Fatalf("step %d: unexpected stop", i)
			case <-time.After(20 * time.Millisecond):
			}
			if hy.IsToggle() != s.toggle {
				t.Errorf("step %d: IsToggle = %v, want %v", i, hy.IsToggle(), s.toggle)
			}
		}
	}
}

func TestHybrid(t *testing.T) {
	tests := map[string][]step{
		"hold to talk": {
			{down: true, expect: "start"},
			{down: false, hold: true, expect: "stop"},
		},
		"tap toggles until next tap": {
			{down: true, expect: "start"},
			{down: false, toggle: true},
			{down: true, toggle: true},
			{down: false, expect: "stop"},
		},
		"long second press still stops toggle": {
			{down: true, expect: "start"},
			{down: false, toggle: true},
			{down: true, toggle: true},
			{down: false, hold: true, expect: "stop"},
		},
		"cycles": {
			{down: true, expect: "start"},
			{down: false, hold: true, expect: "stop"},
			{down: true, expect: "start"},
			{down: false, toggle: true},
			{down: true, toggle: true},
			{down: false, expect: "stop"},
			{down: true, expect: "start"},
			{down: false, hold: true, expect: "stop"},
		},
	}
	for name, steps := range tests {
		t.Run(name, func(t *testing.T) { runHybrid(t, steps) })
	}
}
