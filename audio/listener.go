package audio

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"hark/encoder"
)

// ListenerConfig configures a Listener.
type ListenerConfig struct {
	Device string // device name; empty selects the system default
	Phrase PhraseConfig
	Gain   int32
	// Stall is how long the device may go without delivering audio before it
	// is treated as unplugged.
	Stall time.Duration
}

func DefaultListenerConfig() ListenerConfig {
	return ListenerConfig{
		Phrase: PhraseConfig{
			SampleRate:      encoder.SampleRate,
			EnergyThreshold: 300,
			PauseThreshold:  800 * time.Millisecond,
			PhraseMin:       300 * time.Millisecond,
			PhraseMax:       30 * time.Second,
			PreRoll:         200 * time.Millisecond,
		},
		Stall: 3 * time.Second,
	}
}

// Listener turns a continuous capture stream into phrases. The capture device
// is opened on the first Listen and reopened after it fails.
type Listener struct {
	ctx Context
	cfg ListenerConfig

	name atomic.Pointer[string]

	mu      sync.Mutex
	capture CaptureDevice
	pcm     chan []byte
	det     *phraseDetector
	ready   [][]int16
	seq     atomic.Uint64
}

func NewListener(ctx Context, cfg ListenerConfig) *Listener {
	if cfg.Phrase.SampleRate == 0 {
		cfg.Phrase.SampleRate = encoder.SampleRate
	}
	if cfg.Stall == 0 {
		cfg.Stall = 3 * time.Second
	}
	return &Listener{
		ctx: ctx,
		cfg: cfg,
		det: newPhraseDetector(cfg.Phrase),
	}
}

func (l *Listener) open() error {
	var dev *DeviceInfo
	if l.cfg.Device != "" {
		devices, err := l.ctx.Devices()
		if err != nil {
			return fmt.Errorf("enumerating devices: %w", ErrDeviceUnavailable)
		}
		for i := range devices {
			if devices[i].Name == l.cfg.Device {
				dev = &devices[i]
				break
			}
		}
		if dev == nil {
			return fmt.Errorf("device %q not found: %w", l.cfg.Device, ErrDeviceUnavailable)
		}
	}

	capture, err := l.ctx.NewCapture(dev, CaptureConfig{
		SampleRate: uint32(l.cfg.Phrase.SampleRate),
		Channels:   encoder.Channels,
		Gain:       l.cfg.Gain,
	})
	if err != nil {
		return fmt.Errorf("opening capture: %v: %w", err, ErrDeviceUnavailable)
	}

	pcm := make(chan []byte, 256)
	capture.SetCallback(func(data []byte, _ uint32) {
		buf := make([]byte, len(data))
		copy(buf, data)
		select {
		case pcm <- buf:
		default:
		}
	})
	if err := capture.Start(); err != nil {
		capture.ClearCallback()
		capture.Close()
		return fmt.Errorf("starting capture: %v: %w", err, ErrDeviceUnavailable)
	}
	l.capture = capture
	l.pcm = pcm
	name := capture.DeviceName()
	l.name.Store(&name)
	l.det.Reset()
	return nil
}

func (l *Listener) closeLocked() {
	if l.capture == nil {
		return
	}
	l.capture.Stop()
	l.capture.ClearCallback()
	l.capture.Close()
	l.capture = nil
	l.pcm = nil
	l.name.Store(nil)
}

// DeviceName reports the open device, or the configured one if closed.
func (l *Listener) DeviceName() string {
	if name := l.name.Load(); name != nil {
		return *name
	}
	if l.cfg.Device != "" {
		return l.cfg.Device
	}
	return "system default"
}

// Listen blocks until a phrase completes, the context ends, or the device
// fails. Device failures wrap ErrDeviceUnavailable.
func (l *Listener) Listen(ctx context.Context) (Chunk, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.capture == nil {
		if err := l.open(); err != nil {
			return Chunk{}, err
		}
	}

	stall := time.NewTimer(l.cfg.Stall)
	defer stall.Stop()

	for len(l.ready) == 0 {
		select {
		case <-ctx.Done():
			return Chunk{}, ctx.Err()
		case <-stall.C:
			name := l.DeviceName()
			l.closeLocked()
			return Chunk{}, fmt.Errorf("no audio from %q for %s: %w", name, l.cfg.Stall, ErrDeviceUnavailable)
		case data := <-l.pcm:
			stall.Reset(l.cfg.Stall)
			l.ready = append(l.ready, l.det.Feed(data)...)
		}
	}

	phrase := l.ready[0]
	l.ready = l.ready[1:]
	return Chunk{
		Seq:        l.seq.Add(1),
		Samples:    toFloat(phrase),
		SampleRate: l.cfg.Phrase.SampleRate,
		Captured:   time.Now(),
	}, nil
}

// Close releases the capture device.
func (l *Listener) Close() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.closeLocked()
}
