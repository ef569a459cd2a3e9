package transcriber

import (
	"context"
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"hark/audio"
)

func TestNetworkMetricsSum(t *testing.T) {
	m := &NetworkMetrics{
		ConnWait:   10 * time.Millisecond,
		DNS:        20 * time.Millisecond,
		TCP:        30 * time.Millisecond,
		TLS:        40 * time.Millisecond,
		ReqHeaders: 5 * time.Millisecond,
		ReqBody:    15 * time.Millisecond,
		TTFB:       50 * time.Millisecond,
		Download:   25 * time.Millisecond,
	}
	got := m.Sum()
	want := 195 * time.Millisecond
	if got != want {
		t.Errorf("Sum() = %v, want %v", got, want)
	}
}

func TestFirstNonEmpty(t *testing.T) {
	h := http.Header{}
	h.Set("X-Rate-Limit", "100")

	if got := firstNonEmpty(h, "X-Missing", "X-Rate-Limit"); got != "100" {
		t.Errorf("got %q, want %q", got, "100")
	}
	if got := firstNonEmpty(h, "X-A", "X-B"); got != "?" {
		t.Errorf("got %q, want %q", got, "?")
	}
}

func TestResultText(t *testing.T) {
	for _, tt := range []struct {
		name     string
		segments []Segment
		want     string
	}{
		{"empty", nil, ""},
		{"single", []Segment{{Text: " hello "}}, "hello"},
		{"joined", []Segment{{Text: " hello"}, {Text: "world"}}, "hello world"},
		{"leading spaces kept", []Segment{{Text: " hello"}, {Text: " world"}}, "hello  world"},
		{"blank segments", []Segment{{Text: ""}, {Text: " "}}, ""},
	} {
		t.Run(tt.name, func(t *testing.T) {
			if got := (Result{Segments: tt.segments}).Text(); got != tt.want {
				t.Errorf("Text() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestResultJSON(t *testing.T) {
	r := Result{Seq: 7, Language: "en", Segments: []Segment{{Start: 0, End: 1.5, Text: "hi"}}, RateLimit: "1/2"}
	data, err := json.Marshal(r)
	if err != nil {
		t.Fatal(err)
	}
	want := `{"segments":[{"start":0,"end":1.5,"text":"hi"}],"language":"en"}`
	if string(data) != want {
		t.Errorf("got %s, want %s", data, want)
	}
}

func TestNew(t *testing.T) {
	for _, tt := range []struct {
		cfg     Config
		name    string
		wantErr bool
	}{
		{Config{Engine: "whisperx", URL: "http://localhost:9000/transcribe"}, "whisperx", false},
		{Config{Engine: "whisperx"}, "", true},
		{Config{Engine: "groq", APIKey: "k"}, "groq", false},
		{Config{Engine: "groq"}, "", true},
		{Config{Engine: "openai", APIKey: "k"}, "openai", false},
		{Config{Engine: "fake"}, "fake", false},
		{Config{Engine: "vosk"}, "", true},
	} {
		t.Run(tt.cfg.Engine, func(t *testing.T) {
			e, err := New(tt.cfg)
			if tt.wantErr {
				if err == nil {
					t.Fatal("expected error")
				}
				return
			}
			if err != nil {
				t.Fatalf("New: %v", err)
			}
			if e.Name() != tt.name {
				t.Errorf("Name() = %q, want %q", e.Name(), tt.name)
			}
		})
	}
}

func testChunk() audio.Chunk {
	samples := make([]float32, 1600)
	for i := range samples {
		samples[i] = float32(math.Sin(float64(i)/8)) / 2
	}
	samples[2] = -0.5
	return audio.Chunk{Seq: 3, Samples: samples, SampleRate: 16000}
}

func TestWhisperXTranscribe(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Errorf("method = %s", r.Method)
		}
		if ct := r.Header.Get("Content-Type"); ct != "audio/f32le" {
			t.Errorf("Content-Type = %q", ct)
		}
		if got := r.URL.Query().Get("language"); got != "de" {
			t.Errorf("language = %q, want de", got)
		}
		body, _ := io.ReadAll(r.Body)
		if len(body) != 1600*4 {
			t.Errorf("body = %d bytes, want %d", len(body), 1600*4)
			return
		}
		if v := math.Float32frombits(binary.LittleEndian.Uint32(body[8:])); v != -0.5 {
			t.Errorf("third sample = %v", v)
		}
		w.Write([]byte(`{"language":"de","segments":[{"start":0,"end":0.5,"text":"hallo"},{"start":0.5,"end":1,"text":"welt"}]}`))
	}))
	defer srv.Close()

	w := NewWhisperX(srv.URL+"/transcribe", "de", false)
	r, err := w.Transcribe(context.Background(), testChunk())
	if err != nil {
		t.Fatalf("Transcribe: %v", err)
	}
	if r.Seq != 3 || r.Language != "de" || r.Text() != "hallo welt" {
		t.Errorf("result = %+v", r)
	}
	if r.Metrics == nil {
		t.Error("expected metrics")
	}
}

func TestWhisperXServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "model not loaded", http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	_, err := NewWhisperX(srv.URL, "", false).Transcribe(context.Background(), testChunk())
	if err == nil || !strings.Contains(err.Error(), "503") {
		t.Fatalf("err = %v, want 503 error", err)
	}
}

func TestWhisperXProbe(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	w := NewWhisperX(srv.URL, "", false)
	if err := w.Probe(context.Background()); err != nil {
		t.Fatalf("Probe on live server: %v", err)
	}
	srv.Close()
	if err := w.Probe(context.Background()); err == nil {
		t.Fatal("expected Probe error on closed server")
	}
}

func TestHostedTranscribe(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.Header.Get("Authorization"); got != "Bearer secret" {
			t.Errorf("Authorization = %q", got)
		}
		if err := r.ParseMultipartForm(1 << 20); err != nil {
			t.Errorf("ParseMultipartForm: %v", err)
			return
		}
		if got := r.FormValue("response_format"); got != "verbose_json" {
			t.Errorf("response_format = %q", got)
		}
		if got := r.FormValue("model"); got != "whisper-large-v3-turbo" {
			t.Errorf("model = %q", got)
		}
		f, _, err := r.FormFile("file")
		if err != nil {
			t.Errorf("FormFile: %v", err)
			return
		}
		data, _ := io.ReadAll(f)
		if len(data) < 4 || string(data[:4]) != "fLaC" {
			t.Error("upload is not FLAC")
		}
		w.Header().Set("x-ratelimit-remaining-requests", "9")
		w.Header().Set("x-ratelimit-limit-requests", "10")
		w.Write([]byte(`{"text":"hello world","language":"english","duration":1,"segments":[{"start":0,"end":0.4,"text":" hello"},{"start":0.4,"end":1,"text":" world"}]}`))
	}))
	defer srv.Close()

	e, err := New(Config{Engine: "groq", APIKey: "secret", URL: srv.URL})
	if err != nil {
		t.Fatal(err)
	}
	r, err := e.Transcribe(context.Background(), testChunk())
	if err != nil {
		t.Fatalf("Transcribe: %v", err)
	}
	// segment text keeps its leading space, so the join doubles it
	if len(r.Segments) != 2 || r.Text() != "hello  world" {
		t.Errorf("segments = %+v", r.Segments)
	}
	if r.RateLimit != "9/10" {
		t.Errorf("RateLimit = %q", r.RateLimit)
	}
}

func TestHostedTextOnly(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"text":"just text","duration":2}`))
	}))
	defer srv.Close()

	o := NewOpenAI("k", "")
	o.apiURL = srv.URL
	r, err := o.Transcribe(context.Background(), testChunk())
	if err != nil {
		t.Fatal(err)
	}
	if len(r.Segments) != 1 || r.Segments[0].End != 2 || r.Text() != "just text" {
		t.Errorf("segments = %+v", r.Segments)
	}
}

func TestFakeScript(t *testing.T) {
	boom := errors.New("boom")
	f := NewFake(FakeReply{Text: "one"}, FakeReply{Err: boom})
	ctx := context.Background()

	r, err := f.Transcribe(ctx, testChunk())
	if err != nil || r.Text() != "one" || r.Seq != 3 {
		t.Fatalf("first = %+v, %v", r, err)
	}
	if _, err := f.Transcribe(ctx, testChunk()); !errors.Is(err, boom) {
		t.Fatalf("second err = %v", err)
	}
	r, _ = f.Transcribe(ctx, testChunk())
	if r.Text() != "fake transcription" {
		t.Errorf("fallback = %q", r.Text())
	}
	if len(f.Calls()) != 3 {
		t.Errorf("calls = %d, want 3", len(f.Calls()))
	}
}

func TestFakeDelayHonorsContext(t *testing.T) {
	f := NewFake(FakeReply{Text: "slow", Delay: time.Hour})
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	if _, err := f.Transcribe(ctx, testChunk()); !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("err = %v", err)
	}
}

func TestTracedClientConcurrentRequests(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		io.Copy(io.Discard, r.Body)
		w.Write([]byte("ok"))
	}))
	defer srv.Close()

	c := NewTracedClient(false)
	var wg sync.WaitGroup
	errs := make(chan error, 16)
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			req, err := http.NewRequest(http.MethodPost, srv.URL, strings.NewReader(strings.Repeat("x", 64<<10)))
			if err != nil {
				errs <- err
				return
			}
			resp, err := c.Do(req)
			if err != nil {
				errs <- err
				return
			}
			if string(resp.Body) != "ok" || resp.Metrics == nil {
				errs <- fmt.Errorf("response = %q, metrics %v", resp.Body, resp.Metrics)
				return
			}
			if resp.Metrics.Total < resp.Metrics.TTFB {
				errs <- fmt.Errorf("total %s < ttfb %s", resp.Metrics.Total, resp.Metrics.TTFB)
			}
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		t.Error(err)
	}
}

func TestTracedClientBodyLimit(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write(make([]byte, maxResponseBytes+1))
	}))
	defer srv.Close()

	req, _ := http.NewRequest(http.MethodGet, srv.URL, nil)
	if _, err := NewTracedClient(false).Do(req); err == nil {
		t.Error("oversized body accepted")
	}
}
