package pipeline

import (
	"errors"
	"sync"
	"time"
)

type recordingOutput struct {
	mu    sync.Mutex
	typed []string
	fail  error
	ch    chan string
}

func newRecordingOutput() *recordingOutput {
	return &recordingOutput{ch: make(chan string, 64)}
}

func (o *recordingOutput) Type(text string) error {
	o.mu.Lock()
	o.typed = append(o.typed, text)
	fail := o.fail
	o.mu.Unlock()
	o.ch <- text
	return fail
}

func (o *recordingOutput) Typed() []string {
	o.mu.Lock()
	defer o.mu.Unlock()
	return append([]string(nil), o.typed...)
}

func (o *recordingOutput) wait(timeout time.Duration) (string, error) {
	select {
	case s := <-o.ch:
		return s, nil
	case <-time.After(timeout):
		return "", errors.New("timed out waiting for typed text")
	}
}
