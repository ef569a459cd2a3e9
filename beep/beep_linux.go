//go:build linux

package beep

import (
	"sync"
	"time"

	"github.com/jfreymuth/pulse"
	"github.com/jfreymuth/pulse/proto"
)

const (
	startDur = 200 * time.Millisecond
	endDur   = 200 * time.Millisecond
)

var (
	cues struct {
		start, end, err []int16
	}
	cueOnce sync.Once
)

func prepare() {
	cues.start = stereo(synth(sampleRate, startTone))
	cues.end = stereo(synth(sampleRate, endTone))
	cues.err = stereo(double(sampleRate, errorTone, errorGap))
}

func stereo(mono []int16) []int16 {
	out := make([]int16, 2*len(mono))
	for i, s := range mono {
		out[2*i] = s
		out[2*i+1] = s
	}
	return out
}

// play opens a short-lived PulseAudio stream per cue. Failures are silent.
func play(samples []int16) {
	if len(samples) == 0 {
		return
	}
	c, err := pulse.NewClient()
	if err != nil {
		return
	}
	defer c.Close()

	pos := 0
	reader := pulse.Int16Reader(func(buf []int16) (int, error) {
		if pos >= len(samples) {
			return 0, pulse.EndOfData
		}
		n := copy(buf, samples[pos:])
		pos += n
		return n, nil
	})
	stream, err := c.NewPlayback(reader,
		pulse.PlaybackStereo,
		pulse.PlaybackSampleRate(sampleRate),
		pulse.PlaybackLatency(0.1),
		pulse.PlaybackRawOption(func(p *proto.CreatePlaybackStream) {
			p.ChannelVolumes = proto.ChannelVolumes{uint32(proto.VolumeNorm), uint32(proto.VolumeNorm)}
		}),
	)
	if err != nil {
		return
	}
	defer stream.Close()
	stream.Start()
	stream.Drain()
	stream.Stop()
}

func Init() { cueOnce.Do(prepare) }

func PlayStart() {
	if !Enabled() {
		return
	}
	cueOnce.Do(prepare)
	go play(cues.start)
}

func PlayEnd() {
	if !Enabled() {
		return
	}
	cueOnce.Do(prepare)
	go play(cues.end)
}

func PlayError() {
	if !Enabled() {
		return
	}
	cueOnce.Do(prepare)
	go play(cues.err)
}
