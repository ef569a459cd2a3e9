package pipeline

import (
	"context"
	"sync"
	"time"

	"hark/activation"
	"hark/audio"
	"hark/session"
	"hark/transcriber"
)

type Config struct {
	PruneInterval      time.Duration
	LivenessTimeout    time.Duration
	DeactivateInterval time.Duration
	BackoffInitial     time.Duration
	BackoffMax         time.Duration
}

// Pipeline owns every worker and the queues between them.
type Pipeline struct {
	Capture     *CaptureWorker
	Transcriber *TranscriptionWorker
	Router      *Router
	Typewriter  *Typewriter
	Pruner      *session.Pruner
	Deactivator *AutoDeactivator

	Audio   *Queue[audio.Chunk]
	Results *Queue[transcriber.Result]
	Local   *Queue[transcriber.Result]
}

func New(cfg Config, state *activation.State, reg *session.Registry, mic audio.Microphone, engine transcriber.Engine, out Output) *Pipeline {
	audioQ := NewQueue[audio.Chunk]()
	resultQ := NewQueue[transcriber.Result]()
	localQ := NewQueue[transcriber.Result]()

	return &Pipeline{
		Capture: &CaptureWorker{
			Mic:            mic,
			Gate:           state,
			Out:            audioQ,
			BackoffInitial: cfg.BackoffInitial,
			BackoffMax:     cfg.BackoffMax,
		},
		Transcriber: &TranscriptionWorker{Engine: engine, In: audioQ, Out: resultQ},
		Router:      &Router{In: resultQ, Gate: state, Sessions: reg, Local: localQ},
		Typewriter:  &Typewriter{In: localQ, Out: out},
		Pruner:      &session.Pruner{Registry: reg, Interval: cfg.PruneInterval, Timeout: cfg.LivenessTimeout},
		Deactivator: &AutoDeactivator{Gate: state, Sessions: reg, Interval: cfg.DeactivateInterval},
		Audio:       audioQ,
		Results:     resultQ,
		Local:       localQ,
	}
}

// Run starts every worker and blocks until ctx is cancelled and all of them
// have returned.
func (p *Pipeline) Run(ctx context.Context) {
	workers := []func(context.Context){
		p.Capture.Run,
		p.Transcriber.Run,
		p.Router.Run,
		p.Typewriter.Run,
		p.Pruner.Run,
		p.Deactivator.Run,
	}
	var wg sync.WaitGroup
	for _, run := range workers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			run(ctx)
		}()
	}
	wg.Wait()
}
