package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strconv"
	"strings"
	"sync"
	"time"

	"hark/audio"
	"hark/beep"
	"hark/config"
	"hark/hotkey"
	"hark/log"
	"hark/transcriber"
)

const waitTimeout = 30 * time.Second

// lineOutput prints typed text as "TYPED\t<text>" so scripts can assert on
// stdout instead of a focused window.
type lineOutput struct {
	mu sync.Mutex
	w  io.Writer
}

func (o *lineOutput) Type(text string) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	_, err := fmt.Fprintf(o.w, "TYPED\t%s\n", text)
	return err
}

// runTestMode replays wavPath as the microphone and drives the hotkey from
// commands on in, one per line:
//
//	KEYDOWN, KEYUP, PRESS      hotkey events
//	REMOTE_ON, REMOTE_OFF      remote gate, as the HTTP boundary would
//	WAIT                       block until the next result is routed
//	WAIT_AUDIO_DONE            block until the WAV has been fully played
//	SLEEP <ms>
//	QUIT
//
// It returns the process exit code.
func runTestMode(ctx context.Context, cfg config.Config, engine transcriber.Engine, wavPath string, in io.Reader, out io.Writer) int {
	beep.Disable()
	cfg.Cues = false

	fake, err := audio.NewFakeContext(wavPath, true)
	if err != nil {
		fmt.Fprintf(out, "ERROR\tloading WAV: %v\n", err)
		return 1
	}
	mic := audio.NewListener(fake, listenerConfig(cfg))
	defer mic.Close()

	a := newApp(cfg, mic, engine, &lineOutput{w: out})
	return a.runScripted(ctx, fake.AudioDone(), in, out)
}

func (a *app) runScripted(ctx context.Context, audioDone <-chan struct{}, in io.Reader, out io.Writer) int {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	mode, err := hotkey.ParseMode(a.cfg.KeyMode)
	if err != nil {
		fmt.Fprintf(out, "ERROR\t%v\n", err)
		return 1
	}
	hk := hotkey.NewFake()
	go hotkey.Bind(ctx, hk, mode, a.cfg.LongPress, a.state)

	ln, err := a.listen()
	if err != nil {
		fmt.Fprintf(out, "ERROR\t%v\n", err)
		return 1
	}
	if ln != nil {
		fmt.Fprintf(out, "LISTENING\t%s\n", ln.Addr())
	}
	log.SessionStart(a.engine.Name(), a.cfg.KeyMode, "test")

	routed := a.notifyRouted()
	done := make(chan error, 1)
	go func() { done <- a.run(ctx, ln) }()

	code := 0
	scanner := bufio.NewScanner(in)
loop:
	for scanner.Scan() {
		cmd := strings.TrimSpace(scanner.Text())
		switch {
		case cmd == "":
		case cmd == "KEYDOWN":
			hk.SimKeydown()
		case cmd == "KEYUP":
			hk.SimKeyup()
		case cmd == "PRESS":
			hk.SimPress()
		case cmd == "REMOTE_ON":
			a.state.SetRemote(true)
		case cmd == "REMOTE_OFF":
			a.state.SetRemote(false)
		case cmd == "WAIT":
			select {
			case dest := <-routed:
				fmt.Fprintf(out, "ROUTED\t%s\n", dest)
			case <-time.After(waitTimeout):
				fmt.Fprintln(out, "ERROR\ttimed out waiting for a result")
				code = 1
				break loop
			case <-ctx.Done():
				break loop
			}
		case cmd == "WAIT_AUDIO_DONE":
			select {
			case <-audioDone:
			case <-ctx.Done():
				break loop
			}
		case strings.HasPrefix(cmd, "SLEEP "):
			ms, err := strconv.Atoi(strings.TrimSpace(cmd[len("SLEEP "):]))
			if err != nil {
				fmt.Fprintf(out, "ERROR\tbad sleep %q\n", cmd)
				continue
			}
			select {
			case <-time.After(time.Duration(ms) * time.Millisecond):
			case <-ctx.Done():
				break loop
			}
		case cmd == "QUIT":
			break loop
		default:
			fmt.Fprintf(out, "ERROR\tunknown command %q\n", cmd)
		}
	}

	cancel()
	if err := <-done; err != nil {
		fmt.Fprintf(out, "ERROR\t%v\n", err)
		code = 1
	}
	log.SessionEnd(int(a.routed.Load()))
	return code
}
