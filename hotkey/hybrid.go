package hotkey

import (
	"context"
	"sync/atomic"
	"time"
)

type Mode string

const (
	ModePTT    Mode = "ptt"
	ModeToggle Mode = "toggle"
	ModeHybrid Mode = "hybrid"
)

// StartEvent indicates activation should begin with the given mode.
type StartEvent struct {
	Mode Mode
}

// Hybrid wraps a Hotkey to provide tap-to-toggle and hold-to-talk on the
// same key combination. It emits Start events and a unified Stop channel
// that signals when activation should end, for both styles.
type Hybrid struct {
	startCh chan StartEvent
	stopCh  chan struct{}
	toggle  atomic.Bool
}

// NewHybrid builds a Hybrid controller on top of an existing Hotkey.
// A press held past longPress is hold-to-talk; a shorter tap toggles.
// The controller stops when ctx is done.
func NewHybrid(ctx context.Context, hk Hotkey, longPress time.Duration) *Hybrid {
	h := &Hybrid{
		startCh: make(chan StartEvent, 1),
		stopCh:  make(chan struct{}, 1),
	}
	go h.run(ctx, hk, longPress)
	return h
}

// Start returns a channel of StartEvent values signaling when to activate.
func (h *Hybrid) Start() <-chan StartEvent { return h.startCh }

// StopChan returns a channel that is signaled when to deactivate.
func (h *Hybrid) StopChan() <-chan struct{} { return h.stopCh }

// IsToggle reports whether the current activation came from a short tap.
func (h *Hybrid) IsToggle() bool { return h.toggle.Load() }

type hybridState int

const (
	stIdle hybridState = iota
	stToggleActive
)

func wait(ctx context.Context, ch <-chan struct{}) bool {
	select {
	case <-ctx.Done():
		return false
	case <-ch:
		return true
	}
}

func (h *Hybrid) signalStop() {
	h.toggle.Store(false)
	select {
	case h.stopCh <- struct{}{}:
	default:
	}
}

func (h *Hybrid) run(ctx context.Context, hk Hotkey, longPress time.Duration) {
	state := stIdle
	for {
		switch state {
		case stIdle:
			// Any press starts immediately; hold duration only decides
			// how it stops.
			if !wait(ctx, hk.Keydown()) {
				return
			}
			select {
			case h.startCh <- StartEvent{Mode: ModeToggle}:
			case <-ctx.Done():
				return
			}
			timer := time.NewTimer(longPress)
			select {
			case <-ctx.Done():
				timer.Stop()
				return
			case <-timer.C:
				// Held: stop on release.
				if !wait(ctx, hk.Keyup()) {
					return
				}
				h.signalStop()
			case <-hk.Keyup():
				timer.Stop()
				h.toggle.Store(true)
				state = stToggleActive
			}
		case stToggleActive:
			// Next press stops on its release, short or long.
			if !wait(ctx, hk.Keydown()) || !wait(ctx, hk.Keyup()) {
				return
			}
			h.signalStop()
			state = stIdle
		}
	}
}
