//go:build !linux

package main

import (
	"runtime"

	"golang.design/x/hotkey/mainthread"
)

func init() {
	runtime.LockOSThread()
}

// The hotkey library needs the process main thread on macOS and Windows.
func main() {
	mainthread.Init(run)
}
