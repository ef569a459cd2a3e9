// Package encoder converts captured PCM into the upload formats the
// transcription engines accept.
package encoder

// Capture format shared by every audio backend.
const (
	SampleRate    = 16000
	Channels      = 1
	BitsPerSample = 16
	// BlockSize is the FLAC frame length in samples.
	BlockSize = 4096
)
