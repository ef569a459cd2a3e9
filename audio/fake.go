package audio

import (
	"context"
	"encoding/binary"
	"errors"
	"os"
	"sync"
	"time"

	"hark/encoder"
)

const (
	fakeFrameSize     = 320 // 20ms at 16kHz
	fakeBytesPerFrame = 2   // 16-bit mono
)

// FakeContext replays PCM16 through a capture device. After the recording
// runs out the device keeps delivering silence so phrase detection can end.
type FakeContext struct {
	pcm       []byte
	realtime  bool
	audioDone chan struct{}
	doneOnce  sync.Once
	failOpen  error
}

// NewFakeContext loads a 16kHz mono PCM16 WAV file.
func NewFakeContext(wavPath string, realtime bool) (*FakeContext, error) {
	data, err := os.ReadFile(wavPath)
	if err != nil {
		return nil, err
	}
	if len(data) > WAVHeaderSize {
		data = data[WAVHeaderSize:]
	}
	return NewFakeContextPCM(data, realtime), nil
}

func NewFakeContextPCM(pcm []byte, realtime bool) *FakeContext {
	return &FakeContext{pcm: pcm, realtime: realtime, audioDone: make(chan struct{})}
}

// FailOpen makes every NewCapture call return err.
func (f *FakeContext) FailOpen(err error) { f.failOpen = err }

// AudioDone closes once the whole recording has been delivered.
func (f *FakeContext) AudioDone() <-chan struct{} { return f.audioDone }

func (f *FakeContext) Devices() ([]DeviceInfo, error) {
	return []DeviceInfo{{ID: "fake", Name: "fake"}}, nil
}

func (f *FakeContext) Close() {}

func (f *FakeContext) NewCapture(_ *DeviceInfo, _ CaptureConfig) (CaptureDevice, error) {
	if f.failOpen != nil {
		return nil, f.failOpen
	}
	return &fakeCapture{ctx: f}, nil
}

type fakeCapture struct {
	ctx *FakeContext

	mu       sync.Mutex
	cb       DataCallback
	stopCh   chan struct{}
	feedDone chan struct{}
}

func (f *fakeCapture) SetCallback(cb DataCallback) {
	f.mu.Lock()
	f.cb = cb
	f.mu.Unlock()
}

func (f *fakeCapture) ClearCallback() {
	f.mu.Lock()
	f.cb = nil
	f.mu.Unlock()
}

func (f *fakeCapture) callback() DataCallback {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.cb
}

func (f *fakeCapture) DeviceName() string { return "fake" }

func (f *fakeCapture) Start() error {
	f.stopCh = make(chan struct{})
	f.feedDone = make(chan struct{})

	interval := time.Millisecond
	if f.ctx.realtime {
		interval = time.Duration(fakeFrameSize) * time.Second / time.Duration(encoder.SampleRate)
	}
	chunkBytes := fakeFrameSize * fakeBytesPerFrame
	pcm := f.ctx.pcm

	go func() {
		defer close(f.feedDone)
		silence := make([]byte, chunkBytes)
		pos := 0
		for {
			if cb := f.callback(); cb != nil {
				if pos < len(pcm) {
					end := min(pos+chunkBytes, len(pcm))
					chunk := make([]byte, end-pos)
					copy(chunk, pcm[pos:end])
					cb(chunk, uint32(len(chunk)/fakeBytesPerFrame))
					pos = end
				} else {
					f.ctx.doneOnce.Do(func() { close(f.ctx.audioDone) })
					cb(silence, fakeFrameSize)
				}
			}
			select {
			case <-f.stopCh:
				return
			case <-time.After(interval):
			}
		}
	}()
	return nil
}

func (f *fakeCapture) Stop() {
	if f.stopCh == nil {
		return
	}
	select {
	case <-f.stopCh:
	default:
		close(f.stopCh)
	}
	<-f.feedDone
}

func (f *fakeCapture) Close() {}

// Tone returns PCM16 of a constant-amplitude square wave, loud enough to
// cross the default energy threshold.
func Tone(d time.Duration, amplitude int16) []byte {
	n := int(d.Seconds() * encoder.SampleRate)
	out := make([]byte, n*2)
	for i := 0; i < n; i++ {
		v := amplitude
		if (i/8)%2 == 1 {
			v = -amplitude
		}
		binary.LittleEndian.PutUint16(out[i*2:], uint16(v))
	}
	return out
}

// Silence returns d of zeroed PCM16.
func Silence(d time.Duration) []byte {
	return make([]byte, int(d.Seconds()*encoder.SampleRate)*2)
}

var errFakeClosed = errors.New("fake microphone closed")

// FakeMicrophone hands out chunks pushed by a test.
type FakeMicrophone struct {
	ch   chan fakeListen
	mu   sync.Mutex
	seq  uint64
	done chan struct{}
	once sync.Once
}

type fakeListen struct {
	chunk Chunk
	err   error
}

func NewFakeMicrophone() *FakeMicrophone {
	return &FakeMicrophone{ch: make(chan fakeListen, 64), done: make(chan struct{})}
}

// Push queues a phrase of the given samples. It returns the assigned Seq.
func (m *FakeMicrophone) Push(samples []float32) uint64 {
	m.mu.Lock()
	m.seq++
	seq := m.seq
	m.mu.Unlock()
	m.ch <- fakeListen{chunk: Chunk{
		Seq:        seq,
		Samples:    samples,
		SampleRate: encoder.SampleRate,
		Captured:   time.Now(),
	}}
	return seq
}

// PushError makes the next Listen fail with err.
func (m *FakeMicrophone) PushError(err error) {
	m.ch <- fakeListen{err: err}
}

// Close makes pending and future Listen calls fail.
func (m *FakeMicrophone) Close() {
	m.once.Do(func() { close(m.done) })
}

func (m *FakeMicrophone) Listen(ctx context.Context) (Chunk, error) {
	select {
	case <-ctx.Done():
		return Chunk{}, ctx.Err()
	case <-m.done:
		return Chunk{}, errFakeClosed
	case l := <-m.ch:
		return l.chunk, l.err
	}
}
