package hotkey

import (
	"context"
	"fmt"
	"time"
)

// LocalGate is the local half of the activation state.
type LocalGate interface {
	Local() bool
	SetLocal(on bool)
}

const DefaultLongPress = 350 * time.Millisecond

func ParseMode(s string) (Mode, error) {
	switch m := Mode(s); m {
	case ModePTT, ModeToggle, ModeHybrid:
		return m, nil
	default:
		return "", fmt.Errorf("unknown key mode %q (want ptt, toggle or hybrid)", s)
	}
}

// Bind drives gate from hk until ctx is done.
//
//	ptt:    press activates, release deactivates
//	toggle: a press flips the local gate; release is ignored
//	hybrid: tap to toggle, hold to talk
func Bind(ctx context.Context, hk Hotkey, mode Mode, longPress time.Duration, gate LocalGate) {
	switch mode {
	case ModeToggle:
		bindToggle(ctx, hk, gate)
	case ModeHybrid:
		if longPress <= 0 {
			longPress = DefaultLongPress
		}
		bindHybrid(ctx, NewHybrid(ctx, hk, longPress), gate)
	default:
		bindPTT(ctx, hk, gate)
	}
}

func bindPTT(ctx context.Context, hk Hotkey, gate LocalGate) {
	for {
		select {
		case <-ctx.Done():
			return
		case <-hk.Keydown():
			gate.SetLocal(true)
		case <-hk.Keyup():
			gate.SetLocal(false)
		}
	}
}

func bindToggle(ctx context.Context, hk Hotkey, gate LocalGate) {
	for {
		select {
		case <-ctx.Done():
			return
		case <-hk.Keydown():
			gate.SetLocal(!gate.Local())
		case <-hk.Keyup():
		}
	}
}

func bindHybrid(ctx context.Context, hy *Hybrid, gate LocalGate) {
	for {
		select {
		case <-ctx.Done():
			return
		case <-hy.Start():
			gate.SetLocal(true)
		case <-hy.StopChan():
			gate.SetLocal(false)
		}
	}
}
