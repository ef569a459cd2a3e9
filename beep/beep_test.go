package beep

import (
	"testing"
	"time"

	"hark/activation"
)

func TestSynthLength(t *testing.T) {
	got := synth(1000, tone{freq: 100, volume: 0.5, decay: 10, dur: 50 * time.Millisecond})
	if len(got) != 50 {
		t.Fatalf("len = %d, want 50", len(got))
	}
	if got[0] != 0 {
		t.Errorf("first sample = %d, want 0", got[0])
	}
	peak := int16(0)
	for _, s := range got {
		if s > peak {
			peak = s
		}
	}
	if peak == 0 || peak > 16384 {
		t.Errorf("peak = %d, want within half scale", peak)
	}
}

func TestDoubleHasGap(t *testing.T) {
	tn := tone{freq: 100, volume: 0.5, decay: 10, dur: 20 * time.Millisecond}
	got := double(1000, tn, 10*time.Millisecond)
	if len(got) != 50 {
		t.Fatalf("len = %d, want 50", len(got))
	}
	for i := 20; i < 30; i++ {
		if got[i] != 0 {
			t.Fatalf("gap sample %d = %d", i, got[i])
		}
	}
}

func TestCueFollowsLocalTransitions(t *testing.T) {
	var starts, ends int
	c := &Cue{start: func() { starts++ }, end: func() { ends++ }}

	c.Observe(activation.Gates{Remote: true})
	c.Observe(activation.Gates{Local: true})
	c.Observe(activation.Gates{Local: true, Remote: true})
	c.Observe(activation.Gates{})
	c.Observe(activation.Gates{Remote: true})

	if starts != 1 || ends != 1 {
		t.Errorf("starts=%d ends=%d, want 1 and 1", starts, ends)
	}
}

func TestCueWiredToState(t *testing.T) {
	var starts, ends int
	c := &Cue{start: func() { starts++ }, end: func() { ends++ }}
	s := activation.New()
	s.OnChange(c.Observe)

	s.SetRemote(true)
	s.SetLocal(true)
	s.SetLocal(false)

	if starts != 1 || ends != 1 {
		t.Errorf("starts=%d ends=%d, want 1 and 1", starts, ends)
	}
}
