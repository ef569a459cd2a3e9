//go:build darwin

package beep

import (
	"encoding/binary"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gen2brain/malgo"
)

// CoreAudio keeps the device warm, so the ticks can be much shorter.
const (
	startDur = 30 * time.Millisecond
	endDur   = 50 * time.Millisecond
)

var (
	mctx   *malgo.AllocatedContext
	device *malgo.Device
	cues   struct {
		start, end, err []byte
	}
	cueOnce sync.Once

	// read from the device callback
	current atomic.Pointer[[]byte]
	pos     atomic.Uint32
	playMu  sync.Mutex
)

func pcmBytes(samples []int16) []byte {
	out := make([]byte, 2*len(samples))
	for i, s := range samples {
		binary.LittleEndian.PutUint16(out[2*i:], uint16(s))
	}
	return out
}

func openDevice() error {
	cfg := malgo.DefaultDeviceConfig(malgo.Playback)
	cfg.Playback.Format = malgo.FormatS16
	cfg.Playback.Channels = 1
	cfg.SampleRate = sampleRate

	var err error
	device, err = malgo.InitDevice(mctx.Context, cfg, malgo.DeviceCallbacks{Data: fill})
	return err
}

func prepare() {
	cues.start = pcmBytes(synth(sampleRate, startTone))
	cues.end = pcmBytes(synth(sampleRate, endTone))
	cues.err = pcmBytes(double(sampleRate, errorTone, errorGap))

	var err error
	mctx, err = malgo.InitContext(nil, malgo.ContextConfig{}, nil)
	if err != nil {
		return
	}
	if err := openDevice(); err != nil {
		mctx.Uninit()
		mctx = nil
	}
}

func fill(out, _ []byte, frames uint32) {
	clear(out)
	samples := current.Load()
	if samples == nil {
		return
	}
	p := pos.Load()
	remaining := uint32(len(*samples)) - p
	if remaining == 0 {
		current.Store(nil)
		return
	}
	n := min(frames*2, remaining)
	copy(out[:n], (*samples)[p:p+n])
	pos.Store(p + n)
}

func play(samples []byte) {
	if mctx == nil || len(samples) == 0 {
		return
	}
	playMu.Lock()
	defer playMu.Unlock()
	if device == nil {
		return
	}

	device.Stop()
	pos.Store(0)
	current.Store(&samples)
	if err := device.Start(); err == nil {
		return
	}
	// the device goes stale across sleep and wake
	device.Uninit()
	if err := openDevice(); err != nil {
		current.Store(nil)
		return
	}
	if err := device.Start(); err != nil {
		current.Store(nil)
	}
}

func Init() { cueOnce.Do(prepare) }

func PlayStart() {
	if !Enabled() {
		return
	}
	cueOnce.Do(prepare)
	play(cues.start)
}

func PlayEnd() {
	if !Enabled() {
		return
	}
	cueOnce.Do(prepare)
	play(cues.end)
}

func PlayError() {
	if !Enabled() {
		return
	}
	cueOnce.Do(prepare)
	play(cues.err)
}
