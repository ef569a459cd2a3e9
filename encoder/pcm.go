package encoder

import (
	"encoding/binary"
	"fmt"
	"math"
)

// Float32LE packs samples as little-endian IEEE 754 floats.
func Float32LE(samples []float32) []byte {
	out := make([]byte, len(samples)*4)
	for i, s := range samples {
		binary.LittleEndian.PutUint32(out[i*4:], math.Float32bits(s))
	}
	return out
}

// ToInt16 scales [-1, 1] samples to PCM16, clipping out-of-range values.
func ToInt16(samples []float32) []int16 {
	out := make([]int16, len(samples))
	for i, s := range samples {
		v := s * 32768
		switch {
		case v > math.MaxInt16:
			v = math.MaxInt16
		case v < math.MinInt16:
			v = math.MinInt16
		}
		out[i] = int16(v)
	}
	return out
}

// EncodeFlac compresses a whole phrase in one pass.
func EncodeFlac(samples []float32) ([]byte, error) {
	enc, err := NewFlac()
	if err != nil {
		return nil, err
	}
	pcm := ToInt16(samples)
	for i := 0; i < len(pcm); i += BlockSize {
		end := min(i+BlockSize, len(pcm))
		if err := enc.WriteBlock(pcm[i:end]); err != nil {
			return nil, fmt.Errorf("encoding block at %d: %w", i, err)
		}
	}
	return enc.Finish()
}
