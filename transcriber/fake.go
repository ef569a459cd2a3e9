package transcriber

import (
	"context"
	"sync"
	"time"

	"hark/audio"
)

// FakeReply is one scripted transcription outcome.
type FakeReply struct {
	Text  string
	Err   error
	Delay time.Duration
}

// Fake answers Transcribe calls from a script, then with Fallback text once
// the script runs out.
type Fake struct {
	Fallback string

	mu     sync.Mutex
	script []FakeReply
	calls  []audio.Chunk
}

func NewFake(script ...FakeReply) *Fake {
	return &Fake{Fallback: "fake transcription", script: script}
}

func (f *Fake) Name() string { return "fake" }

// Calls returns the chunks seen so far, in call order.
func (f *Fake) Calls() []audio.Chunk {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]audio.Chunk(nil), f.calls...)
}

func (f *Fake) Transcribe(ctx context.Context, chunk audio.Chunk) (Result, error) {
	f.mu.Lock()
	f.calls = append(f.calls, chunk)
	reply := FakeReply{Text: f.Fallback}
	if len(f.script) > 0 {
		reply = f.script[0]
		f.script = f.script[1:]
	}
	f.mu.Unlock()

	if reply.Delay > 0 {
		select {
		case <-ctx.Done():
			return Result{}, ctx.Err()
		case <-time.After(reply.Delay):
		}
	}
	if reply.Err != nil {
		return Result{}, reply.Err
	}
	r := Result{Seq: chunk.Seq, Language: "en"}
	if reply.Text != "" {
		r.Segments = []Segment{{Start: 0, End: chunk.Duration().Seconds(), Text: reply.Text}}
	}
	return r, nil
}
