package pipeline

import (
	"context"
	"fmt"
	"time"

	"hark/audio"
	"hark/log"
	"hark/transcriber"
)

// TranscriptionWorker feeds queued chunks to the engine one at a time and
// queues their results in the same order.
type TranscriptionWorker struct {
	Engine transcriber.Engine
	In     *Queue[audio.Chunk]
	Out    *Queue[transcriber.Result]
}

func (w *TranscriptionWorker) Run(ctx context.Context) {
	for {
		chunk, err := w.In.Get(ctx)
		if err != nil {
			return
		}

		start := time.Now()
		result, err := w.transcribe(ctx, chunk)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			log.Errorf("transcribing chunk %d with %s: %v", chunk.Seq, w.Engine.Name(), err)
			continue
		}
		result.Seq = chunk.Seq

		net := ""
		if result.Metrics != nil {
			net = result.Metrics.String()
		}
		log.Transcribed(chunk.Seq, w.Engine.Name(), time.Since(start), len(result.Text()), net)
		w.Out.Put(result)
	}
}

// transcribe runs the engine on one chunk, turning a panic into an error so
// the worker moves on to the next chunk.
func (w *TranscriptionWorker) transcribe(ctx context.Context, chunk audio.Chunk) (result transcriber.Result, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("engine panic: %v", r)
		}
	}()
	return w.Engine.Transcribe(ctx, chunk)
}
