package audio

import (
	"context"
	"errors"
	"testing"
	"time"
)

func testPhraseConfig() PhraseConfig {
	return DefaultListenerConfig().Phrase
}

func concat(parts ...[]byte) []byte {
	var out []byte
	for _, p := range parts {
		out = append(out, p...)
	}
	return out
}

func TestPhraseDetectorSplitsOnPause(t *testing.T) {
	d := newPhraseDetector(testPhraseConfig())
	pcm := concat(
		Tone(time.Second, 5000),
		Silence(time.Second),
		Tone(500*time.Millisecond, 5000),
		Silence(time.Second),
	)
	phrases := d.Feed(pcm)
	if len(phrases) != 2 {
		t.Fatalf("got %d phrases, want 2", len(phrases))
	}
	// 1s voiced + 800ms pause tail
	if got, want := len(phrases[0]), 16000+800*16; got != want {
		t.Errorf("first phrase = %d samples, want %d", got, want)
	}
}

func TestPhraseDetectorDropsShortBlips(t *testing.T) {
	d := newPhraseDetector(testPhraseConfig())
	phrases := d.Feed(concat(Tone(100*time.Millisecond, 5000), Silence(time.Second)))
	if len(phrases) != 0 {
		t.Fatalf("got %d phrases, want 0", len(phrases))
	}
}

func TestPhraseDetectorIgnoresQuiet(t *testing.T) {
	d := newPhraseDetector(testPhraseConfig())
	phrases := d.Feed(concat(Tone(time.Second, 100), Silence(time.Second)))
	if len(phrases) != 0 {
		t.Fatalf("got %d phrases below energy threshold, want 0", len(phrases))
	}
}

func TestPhraseDetectorForceCutsLongPhrase(t *testing.T) {
	cfg := testPhraseConfig()
	cfg.PhraseMax = time.Second
	d := newPhraseDetector(cfg)
	phrases := d.Feed(Tone(2500*time.Millisecond, 5000))
	if len(phrases) != 2 {
		t.Fatalf("got %d phrases, want 2", len(phrases))
	}
	for i, p := range phrases {
		if len(p) != 16000 {
			t.Errorf("phrase %d = %d samples, want 16000", i, len(p))
		}
	}
}

func TestPhraseDetectorPreRoll(t *testing.T) {
	d := newPhraseDetector(testPhraseConfig())
	phrases := d.Feed(concat(Silence(time.Second), Tone(time.Second, 5000), Silence(time.Second)))
	if len(phrases) != 1 {
		t.Fatalf("got %d phrases, want 1", len(phrases))
	}
	if got, want := len(phrases[0]), 200*16+16000+800*16; got != want {
		t.Errorf("phrase = %d samples, want %d", got, want)
	}
}

func TestPhraseDetectorAcrossFeeds(t *testing.T) {
	d := newPhraseDetector(testPhraseConfig())
	pcm := concat(Tone(time.Second, 5000), Silence(time.Second))
	var phrases [][]int16
	for i := 0; i < len(pcm); i += 333 {
		end := min(i+333, len(pcm))
		phrases = append(phrases, d.Feed(pcm[i:end])...)
	}
	if len(phrases) != 1 {
		t.Fatalf("got %d phrases, want 1", len(phrases))
	}
}

func TestListenerReturnsPhrases(t *testing.T) {
	ctx := NewFakeContextPCM(concat(
		Tone(time.Second, 5000),
		Silence(time.Second),
		Tone(100*time.Millisecond, 5000),
		Silence(time.Second),
		Tone(time.Second, 5000),
	), false)
	l := NewListener(ctx, DefaultListenerConfig())
	defer l.Close()

	cctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	for want := uint64(1); want <= 2; want++ {
		chunk, err := l.Listen(cctx)
		if err != nil {
			t.Fatalf("Listen: %v", err)
		}
		if chunk.Seq != want {
			t.Errorf("Seq = %d, want %d", chunk.Seq, want)
		}
		if chunk.Duration() < time.Second {
			t.Errorf("Duration = %v, want >= 1s", chunk.Duration())
		}
		if want == 1 && (chunk.Samples[0] <= 0 || chunk.Samples[0] > 1) {
			t.Errorf("sample not normalized: %v", chunk.Samples[0])
		}
	}
}

func TestListenerMissingDevice(t *testing.T) {
	cfg := DefaultListenerConfig()
	cfg.Device = "no such mic"
	l := NewListener(NewFakeContextPCM(nil, false), cfg)
	_, err := l.Listen(context.Background())
	if !errors.Is(err, ErrDeviceUnavailable) {
		t.Fatalf("err = %v, want ErrDeviceUnavailable", err)
	}
}

func TestListenerOpenFailure(t *testing.T) {
	fc := NewFakeContextPCM(nil, false)
	fc.FailOpen(errors.New("busy"))
	l := NewListener(fc, DefaultListenerConfig())
	_, err := l.Listen(context.Background())
	if !errors.Is(err, ErrDeviceUnavailable) {
		t.Fatalf("err = %v, want ErrDeviceUnavailable", err)
	}
}

type silentContext struct{ opened int }

func (s *silentContext) Devices() ([]DeviceInfo, error) { return nil, nil }
func (s *silentContext) Close()                         {}
func (s *silentContext) NewCapture(*DeviceInfo, CaptureConfig) (CaptureDevice, error) {
	s.opened++
	return silentCapture{}, nil
}

type silentCapture struct{}

func (silentCapture) Start() error             { return nil }
func (silentCapture) Stop()                    {}
func (silentCapture) Close()                   {}
func (silentCapture) SetCallback(DataCallback) {}
func (silentCapture) ClearCallback()           {}
func (silentCapture) DeviceName() string       { return "silent" }

func TestListenerStallReopens(t *testing.T) {
	sc := &silentContext{}
	cfg := DefaultListenerConfig()
	cfg.Stall = 20 * time.Millisecond
	l := NewListener(sc, cfg)

	for i := 0; i < 2; i++ {
		_, err := l.Listen(context.Background())
		if !errors.Is(err, ErrDeviceUnavailable) {
			t.Fatalf("err = %v, want ErrDeviceUnavailable", err)
		}
	}
	if sc.opened != 2 {
		t.Errorf("opened = %d, want 2", sc.opened)
	}
}

func TestListenerContextCancel(t *testing.T) {
	l := NewListener(NewFakeContextPCM(nil, false), DefaultListenerConfig())
	defer l.Close()
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Millisecond)
	defer cancel()
	_, err := l.Listen(ctx)
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("err = %v, want deadline exceeded", err)
	}
}

func TestFakeMicrophone(t *testing.T) {
	m := NewFakeMicrophone()
	m.Push([]float32{0.1})
	m.PushError(ErrDeviceUnavailable)

	c, err := m.Listen(context.Background())
	if err != nil || c.Seq != 1 {
		t.Fatalf("Listen = %+v, %v", c, err)
	}
	if _, err := m.Listen(context.Background()); !errors.Is(err, ErrDeviceUnavailable) {
		t.Fatalf("err = %v, want ErrDeviceUnavailable", err)
	}
	m.Close()
	if _, err := m.Listen(context.Background()); err == nil {
		t.Fatal("expected error after Close")
	}
}
