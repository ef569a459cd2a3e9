package audio

import (
	"encoding/binary"
	"math"
	"time"
)

const frameDuration = 20 * time.Millisecond

// PhraseConfig controls energy-based phrase detection. A phrase starts on the
// first frame whose RMS exceeds EnergyThreshold and ends after PauseThreshold
// of quieter frames.
type PhraseConfig struct {
	SampleRate      int
	EnergyThreshold float64 // RMS on the int16 scale
	PauseThreshold  time.Duration
	PhraseMin       time.Duration // voiced audio required to keep a phrase
	PhraseMax       time.Duration // force-cut long phrases
	PreRoll         time.Duration // quiet audio kept ahead of the first loud frame
}

func (c PhraseConfig) frames(d time.Duration) int {
	n := int(d / frameDuration)
	if n < 1 {
		n = 1
	}
	return n
}

type phraseDetector struct {
	cfg         PhraseConfig
	frameLen    int
	pauseFrames int
	minFrames   int
	maxFrames   int
	preFrames   int

	odd    []byte
	carry  []int16
	pre    [][]int16
	phrase []int16
	active bool
	quiet  int
	voiced int
	frames int
}

func newPhraseDetector(cfg PhraseConfig) *phraseDetector {
	return &phraseDetector{
		cfg:         cfg,
		frameLen:    cfg.SampleRate * int(frameDuration/time.Millisecond) / 1000,
		pauseFrames: cfg.frames(cfg.PauseThreshold),
		minFrames:   cfg.frames(cfg.PhraseMin),
		maxFrames:   cfg.frames(cfg.PhraseMax),
		preFrames:   int(cfg.PreRoll / frameDuration),
	}
}

func frameRMS(frame []int16) float64 {
	if len(frame) == 0 {
		return 0
	}
	var sum float64
	for _, s := range frame {
		v := float64(s)
		sum += v * v
	}
	return math.Sqrt(sum / float64(len(frame)))
}

// Feed consumes little-endian PCM16 and returns any phrases completed by it.
func (d *phraseDetector) Feed(pcm []byte) [][]int16 {
	if len(d.odd) > 0 {
		pcm = append(d.odd, pcm...)
		d.odd = nil
	}
	for i := 0; i+1 < len(pcm); i += 2 {
		d.carry = append(d.carry, int16(binary.LittleEndian.Uint16(pcm[i:])))
	}
	if len(pcm)%2 == 1 {
		d.odd = []byte{pcm[len(pcm)-1]}
	}
	var out [][]int16
	for len(d.carry) >= d.frameLen {
		frame := make([]int16, d.frameLen)
		copy(frame, d.carry[:d.frameLen])
		d.carry = d.carry[d.frameLen:]
		if p := d.step(frame); p != nil {
			out = append(out, p)
		}
	}
	return out
}

func (d *phraseDetector) step(frame []int16) []int16 {
	loud := frameRMS(frame) > d.cfg.EnergyThreshold

	if !d.active {
		if !loud {
			if d.preFrames > 0 {
				d.pre = append(d.pre, frame)
				if len(d.pre) > d.preFrames {
					d.pre = d.pre[1:]
				}
			}
			return nil
		}
		d.active = true
		for _, f := range d.pre {
			d.phrase = append(d.phrase, f...)
		}
		d.pre = d.pre[:0]
	}

	d.phrase = append(d.phrase, frame...)
	d.frames++
	if loud {
		d.voiced++
		d.quiet = 0
	} else {
		d.quiet++
	}

	if d.quiet >= d.pauseFrames || d.frames >= d.maxFrames {
		return d.finish()
	}
	return nil
}

func (d *phraseDetector) finish() []int16 {
	phrase, voiced := d.phrase, d.voiced
	d.phrase = nil
	d.active = false
	d.quiet, d.voiced, d.frames = 0, 0, 0
	if voiced < d.minFrames {
		return nil
	}
	return phrase
}

// Reset drops any partial phrase.
func (d *phraseDetector) Reset() {
	d.odd = nil
	d.carry = d.carry[:0]
	d.pre = d.pre[:0]
	d.phrase = nil
	d.active = false
	d.quiet, d.voiced, d.frames = 0, 0, 0
}

func toFloat(samples []int16) []float32 {
	out := make([]float32, len(samples))
	for i, s := range samples {
		out[i] = float32(s) / 32768.0
	}
	return out
}
