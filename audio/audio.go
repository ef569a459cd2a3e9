package audio

import (
	"context"
	"encoding/binary"
	"errors"
	"strings"
	"time"
)

const WAVHeaderSize = 44

// ErrDeviceUnavailable is returned by Listen when the capture device is
// missing or stopped delivering audio. Callers retry.
var ErrDeviceUnavailable = errors.New("audio: capture device unavailable")

var btKeywords = []string{
	"airpods", "beats", "bose", "wh-1000", "wf-1000",
	"sony wh-", "sony wf-",
	"jabra", "galaxy buds", "pixel buds", "powerbeats",
	"jbl ", "sennheiser momentum", "plantronics",
	"bluetooth", " bt ", " bt)", " bt]",
}

func IsBluetooth(name string) bool {
	lower := strings.ToLower(name)
	for _, kw := range btKeywords {
		if strings.Contains(lower, kw) {
			return true
		}
	}
	return false
}

// IsMonitor reports whether a source ID names a loopback of an output
// device rather than a microphone.
func IsMonitor(id string) bool {
	return strings.HasSuffix(id, ".monitor")
}

// ApplyGain scales samples by gain, clipping at the int16 range, and
// returns them as little-endian bytes. A gain of zero or one copies.
func ApplyGain(samples []int16, gain int32) []byte {
	if gain == 0 {
		gain = 1
	}
	out := make([]byte, len(samples)*2)
	for i, s := range samples {
		v := int32(s) * gain
		switch {
		case v > 32767:
			v = 32767
		case v < -32768:
			v = -32768
		}
		binary.LittleEndian.PutUint16(out[i*2:], uint16(int16(v)))
	}
	return out
}

// Chunk is one captured phrase: mono float samples in [-1, 1].
type Chunk struct {
	Seq        uint64
	Samples    []float32
	SampleRate int
	Captured   time.Time
}

func (c Chunk) Duration() time.Duration {
	if c.SampleRate == 0 {
		return 0
	}
	return time.Duration(len(c.Samples)) * time.Second / time.Duration(c.SampleRate)
}

// Microphone blocks until one phrase of audio is available.
type Microphone interface {
	Listen(ctx context.Context) (Chunk, error)
}

type DataCallback func(data []byte, frameCount uint32)

type CaptureConfig struct {
	SampleRate uint32
	Channels   uint32
	// Gain multiplies samples before delivery where the backend supports it.
	// Zero means unity.
	Gain int32
}

type DeviceInfo struct {
	ID   string // opaque platform-specific identifier
	Name string
}

type Context interface {
	Devices() ([]DeviceInfo, error)
	NewCapture(device *DeviceInfo, config CaptureConfig) (CaptureDevice, error)
	Close()
}

type CaptureDevice interface {
	Start() error
	Stop()
	Close()
	SetCallback(cb DataCallback)
	ClearCallback()
	DeviceName() string
}
