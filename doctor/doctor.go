// Package doctor runs non-interactive checks against the local setup: hotkey
// access, capture devices, the transcription engine, keystroke output and the
// remote listen address.
package doctor

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"os"
	"time"

	"hark/audio"
	"hark/clipboard"
	"hark/config"
	"hark/hotkey"
	"hark/transcriber"
)

// Check is one diagnostic step. Run returns a short detail line on success.
type Check struct {
	Name string
	Run  func(ctx context.Context) (string, error)
	// Hint is printed after a failure.
	Hint string
}

// errSkipped marks a check that does not apply to the current config.
var errSkipped = errors.New("skipped")

func skip(reason string) (string, error) {
	return reason, errSkipped
}

// Run executes checks in order and returns an exit code (0 = no failures).
// Every check runs even after a failure so the report is complete.
func Run(ctx context.Context, w io.Writer, checks []Check) int {
	fmt.Fprintln(w, "hark doctor")
	fmt.Fprintln(w, "===========")

	failed := 0
	for i, c := range checks {
		fmt.Fprintf(w, "\n[%d/%d] %s\n", i+1, len(checks), c.Name)
		cctx, cancel := context.WithTimeout(ctx, 10*time.Second)
		detail, err := c.Run(cctx)
		cancel()
		switch {
		case errors.Is(err, errSkipped):
			fmt.Fprintf(w, "  SKIP: %s\n", detail)
		case err != nil:
			failed++
			fmt.Fprintf(w, "  FAIL: %v\n", err)
			if c.Hint != "" {
				fmt.Fprintf(w, "  Fix with: %s\n", c.Hint)
			}
		default:
			fmt.Fprintf(w, "  PASS: %s\n", detail)
		}
	}

	fmt.Fprintln(w)
	if failed > 0 {
		fmt.Fprintf(w, "%d check(s) failed. See details above.\n", failed)
		return 1
	}
	fmt.Fprintln(w, "All checks passed!")
	return 0
}

// Checks returns the standard check list for cfg.
func Checks(cfg config.Config) []Check {
	return []Check{
		{Name: "Hotkey access", Run: checkHotkey(cfg), Hint: "sudo usermod -aG input $USER"},
		{Name: "Capture device", Run: checkDevice(cfg)},
		{Name: "Transcription engine", Run: checkEngine(cfg)},
		{Name: "Keystroke output", Run: checkOutput, Hint: "sudo chmod 660 /dev/uinput && sudo chgrp input /dev/uinput"},
		{Name: "Remote listen address", Run: checkRemote(cfg)},
	}
}

func checkHotkey(cfg config.Config) func(context.Context) (string, error) {
	return func(context.Context) (string, error) {
		combo, err := hotkey.ParseCombo(cfg.Hotkey)
		if err != nil {
			return "", err
		}
		return hotkey.Diagnose(combo)
	}
}

func checkDevice(cfg config.Config) func(context.Context) (string, error) {
	return func(context.Context) (string, error) {
		actx, err := audio.NewContext()
		if err != nil {
			return "", fmt.Errorf("cannot connect to audio: %w", err)
		}
		defer actx.Close()
		return findDevice(actx, cfg.Device)
	}
}

// findDevice confirms name exists, or that any device exists when name is
// empty.
func findDevice(actx audio.Context, name string) (string, error) {
	devices, err := actx.Devices()
	if err != nil {
		return "", fmt.Errorf("cannot list devices: %w", err)
	}
	if len(devices) == 0 {
		return "", fmt.Errorf("no capture devices found")
	}
	if name == "" {
		return fmt.Sprintf("%d device(s), using system default", len(devices)), nil
	}
	for _, d := range devices {
		if d.Name != name {
			continue
		}
		if audio.IsBluetooth(d.Name) {
			return d.Name + " (bluetooth, lower audio quality)", nil
		}
		return d.Name, nil
	}
	return "", fmt.Errorf("device %q not found among %d device(s)", name, len(devices))
}

func checkEngine(cfg config.Config) func(context.Context) (string, error) {
	return func(ctx context.Context) (string, error) {
		engine, err := transcriber.New(transcriber.Config{
			Engine:   cfg.Engine,
			URL:      cfg.EngineURL,
			APIKey:   cfg.EngineKey,
			Language: cfg.Language,
			Insecure: cfg.Insecure,
		})
		if err != nil {
			return "", err
		}
		return probeEngine(ctx, engine)
	}
}

func probeEngine(ctx context.Context, engine transcriber.Engine) (string, error) {
	p, ok := engine.(transcriber.Prober)
	if !ok {
		return engine.Name() + " configured (no probe available)", nil
	}
	if err := p.Probe(ctx); err != nil {
		return "", fmt.Errorf("%s unreachable: %w", engine.Name(), err)
	}
	return engine.Name() + " reachable", nil
}

func checkOutput(context.Context) (string, error) {
	return clipboard.Verify()
}

func checkRemote(cfg config.Config) func(context.Context) (string, error) {
	return func(context.Context) (string, error) {
		if !cfg.RemoteEnabled() {
			return skip("no api key configured, remote control disabled")
		}
		for _, f := range []string{cfg.TLSCert, cfg.TLSKey} {
			if f == "" {
				continue
			}
			if _, err := os.Stat(f); err != nil {
				return "", fmt.Errorf("tls file: %w", err)
			}
		}
		ln, err := net.Listen("tcp", cfg.ListenAddr)
		if err != nil {
			return "", fmt.Errorf("cannot bind %s: %w", cfg.ListenAddr, err)
		}
		ln.Close()
		return cfg.ListenAddr + " available", nil
	}
}
