package pipeline

import (
	"context"
	"fmt"

	"hark/log"
	"hark/transcriber"
)

// Output turns text into keystrokes in the focused window.
type Output interface {
	Type(text string) error
}

// Typewriter drains the local output queue into an Output.
type Typewriter struct {
	In  *Queue[transcriber.Result]
	Out Output
}

func (tw *Typewriter) Run(ctx context.Context) {
	for {
		r, err := tw.In.Get(ctx)
		if err != nil {
			return
		}
		text := r.Text()
		if text == "" {
			continue
		}
		log.TranscriptionText(text)
		if err := tw.typeText(text); err != nil {
			log.Errorf("typing result %d: %v", r.Seq, err)
		}
	}
}

func (tw *Typewriter) typeText(text string) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("output panic: %v", r)
		}
	}()
	return tw.Out.Type(text)
}
