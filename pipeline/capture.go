package pipeline

import (
	"context"
	"errors"
	"time"

	"hark/audio"
	"hark/log"
)

// Gate reports whether captured audio should be kept.
type Gate interface {
	IsEffective() bool
}

const (
	DefaultBackoffInitial = time.Second
	DefaultBackoffMax     = 10 * time.Second

	// deviceLogEvery throttles "device unavailable" warnings while polling.
	deviceLogEvery = 10
)

// CaptureWorker pulls phrases from the microphone and queues the ones
// captured while activation is effective.
type CaptureWorker struct {
	Mic  audio.Microphone
	Gate Gate
	Out  *Queue[audio.Chunk]

	BackoffInitial time.Duration
	BackoffMax     time.Duration
}

func (w *CaptureWorker) Run(ctx context.Context) {
	initial := w.BackoffInitial
	if initial <= 0 {
		initial = DefaultBackoffInitial
	}
	maxDelay := w.BackoffMax
	if maxDelay <= 0 {
		maxDelay = DefaultBackoffMax
	}

	delay := initial
	failures := 0
	for ctx.Err() == nil {
		chunk, err := w.Mic.Listen(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			failures++
			if errors.Is(err, audio.ErrDeviceUnavailable) {
				if failures%deviceLogEvery == 1 {
					log.Warnf("microphone unavailable (attempt %d), retrying in %s: %v", failures, delay, err)
				}
			} else {
				log.Errorf("microphone listen failed, retrying in %s: %v", delay, err)
			}
			if !sleep(ctx, delay) {
				return
			}
			delay = min(delay*2, maxDelay)
			continue
		}
		if failures > 0 {
			log.Infof("microphone available after %d failed attempts", failures)
		}
		delay = initial
		failures = 0

		kept := w.Gate.IsEffective()
		log.Chunk(chunk.Seq, len(chunk.Samples), kept)
		if kept {
			w.Out.Put(chunk)
		}
	}
}

func sleep(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}
