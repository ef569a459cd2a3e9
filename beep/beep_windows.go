//go:build windows

package beep

import "time"

// No playback backend on Windows yet; cues are silent.

const (
	startDur = 30 * time.Millisecond
	endDur   = 50 * time.Millisecond
)

func Init()      {}
func PlayStart() {}
func PlayEnd()   {}
func PlayError() {}
