package encoder

import (
	"bytes"
	"fmt"

	"github.com/mewkiz/flac"
	"github.com/mewkiz/flac/frame"
	"github.com/mewkiz/flac/meta"
)

// Flac builds an in-memory FLAC stream from mono PCM16 blocks. It is not
// safe for concurrent use; each phrase gets its own encoder.
type Flac struct {
	buf     bytes.Buffer
	enc     *flac.Encoder
	samples uint64
}

func NewFlac() (*Flac, error) {
	f := &Flac{}
	info := &meta.StreamInfo{
		BlockSizeMin:  BlockSize,
		BlockSizeMax:  BlockSize,
		SampleRate:    SampleRate,
		NChannels:     Channels,
		BitsPerSample: BitsPerSample,
	}
	enc, err := flac.NewEncoder(&f.buf, info)
	if err != nil {
		return nil, fmt.Errorf("creating flac encoder: %w", err)
	}
	enc.EnablePredictionAnalysis(true)
	f.enc = enc
	return f, nil
}

// WriteBlock appends one frame. Blocks longer than BlockSize are rejected.
func (f *Flac) WriteBlock(block []int16) error {
	if len(block) > BlockSize {
		return fmt.Errorf("flac block of %d samples exceeds %d", len(block), BlockSize)
	}
	samples := make([]int32, len(block))
	for i, s := range block {
		samples[i] = int32(s)
	}
	fr := &frame.Frame{
		Header: frame.Header{
			BlockSize:     uint16(len(block)),
			SampleRate:    SampleRate,
			Channels:      frame.ChannelsMono,
			BitsPerSample: BitsPerSample,
		},
		Subframes: []*frame.Subframe{{
			SubHeader: frame.SubHeader{Pred: frame.PredVerbatim},
			Samples:   samples,
			NSamples:  len(block),
		}},
	}
	if err := f.enc.WriteFrame(fr); err != nil {
		return fmt.Errorf("writing flac frame: %w", err)
	}
	f.samples += uint64(len(block))
	return nil
}

// Finish flushes the stream and returns the encoded bytes.
func (f *Flac) Finish() ([]byte, error) {
	if err := f.enc.Close(); err != nil {
		return nil, fmt.Errorf("closing flac encoder: %w", err)
	}
	return f.buf.Bytes(), nil
}

// Samples is the number of samples written so far.
func (f *Flac) Samples() uint64 { return f.samples }
