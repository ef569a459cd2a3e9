// Package beep plays short tones when local dictation starts and stops.
package beep

import (
	"math"
	"sync/atomic"
	"time"

	"hark/activation"
)

var disabled atomic.Bool

// Disable silences every cue for the rest of the process.
func Disable() { disabled.Store(true) }

func Enabled() bool { return !disabled.Load() }

const sampleRate = 44100

type tone struct {
	freq   float64
	volume float64
	decay  float64
	dur    time.Duration
}

var (
	// high and short
	startTone = tone{freq: 1200, volume: 0.5, decay: 60, dur: startDur}
	// lower, decays slower
	endTone = tone{freq: 900, volume: 0.5, decay: 40, dur: endDur}
	// low double beep
	errorTone = tone{freq: 350, volume: 0.6, decay: 30, dur: 80 * time.Millisecond}
	errorGap  = 50 * time.Millisecond
)

// synth renders t as mono PCM16 with an exponential decay envelope.
func synth(rate int, t tone) []int16 {
	n := int(float64(rate) * t.dur.Seconds())
	out := make([]int16, n)
	for i := range out {
		sec := float64(i) / float64(rate)
		env := math.Exp(-sec * t.decay)
		out[i] = int16(math.Sin(2*math.Pi*t.freq*sec) * 32767 * t.volume * env)
	}
	return out
}

func double(rate int, t tone, gap time.Duration) []int16 {
	b := synth(rate, t)
	silence := make([]int16, int(float64(rate)*gap.Seconds()))
	out := make([]int16, 0, 2*len(b)+len(silence))
	out = append(out, b...)
	out = append(out, silence...)
	return append(out, b...)
}

// Cue turns local gate transitions into start and end tones. Remote-only
// changes are silent since nobody is at the keyboard to hear them.
type Cue struct {
	local atomic.Bool
	start func()
	end   func()
}

func NewCue() *Cue {
	return &Cue{start: PlayStart, end: PlayEnd}
}

// Observe is meant for activation.State.OnChange.
func (c *Cue) Observe(g activation.Gates) {
	if c.local.Swap(g.Local) == g.Local {
		return
	}
	if !Enabled() {
		return
	}
	if g.Local {
		c.start()
	} else {
		c.end()
	}
}
