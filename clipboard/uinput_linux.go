//go:build linux

package clipboard

import (
	"encoding/binary"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"syscall"
	"time"
)

// linux/uinput.h
const (
	uiSetEvbit  = 0x40045564
	uiSetKeybit = 0x40045565
	uiDevCreate = 0x5501
)

// linux/input-event-codes.h
const (
	evSyn = 0x00
	evKey = 0x01

	keyLeftCtrl  = 29
	keyLeftShift = 42
	keyV         = 47
)

const (
	deviceName = "hark-keys"
	busUSB     = 0x03
	eventSize  = 24

	// modifierSettle gives the compositor time to see a held modifier
	// before the key it modifies.
	modifierSettle = 5 * time.Millisecond
	// deviceSettle gives the compositor time to pick up a new keyboard.
	deviceSettle = 200 * time.Millisecond
)

var uinputPaths = []string{"/dev/uinput", "/dev/input/uinput"}

type inputEvent struct {
	Time  syscall.Timeval
	Type  uint16
	Code  uint16
	Value int32
}

type uinputUserDev struct {
	Name         [80]byte
	Bustype      uint16
	Vendor       uint16
	Product      uint16
	Version      uint16
	FfEffectsMax uint32
	Absmax       [64]int32
	Absmin       [64]int32
	Absfuzz      [64]int32
	Absflat      [64]int32
}

// keyboard is a virtual uinput keyboard.
type keyboard struct {
	f *os.File
}

func ioctl(f *os.File, req, arg uintptr) error {
	if _, _, errno := syscall.Syscall(syscall.SYS_IOCTL, f.Fd(), req, arg); errno != 0 {
		return errno
	}
	return nil
}

func openKeyboard() (*keyboard, error) {
	var path string
	for _, p := range uinputPaths {
		if _, err := os.Stat(p); err == nil {
			path = p
			break
		}
	}
	if path == "" {
		return nil, errors.New("uinput device not found, try: sudo modprobe uinput")
	}
	f, err := os.OpenFile(path, os.O_WRONLY|syscall.O_NONBLOCK, os.ModeDevice)
	if err != nil {
		return nil, err
	}

	setup := func() error {
		for _, bit := range []uintptr{evKey, evSyn} {
			if err := ioctl(f, uiSetEvbit, bit); err != nil {
				return fmt.Errorf("UI_SET_EVBIT: %w", err)
			}
		}
		// every standard key, so udev classifies the device as a keyboard
		for code := uintptr(0); code < 256; code++ {
			if err := ioctl(f, uiSetKeybit, code); err != nil {
				return fmt.Errorf("UI_SET_KEYBIT %d: %w", code, err)
			}
		}
		dev := uinputUserDev{Bustype: busUSB, Vendor: 0x1234, Product: 0x5678, Version: 1}
		copy(dev.Name[:], deviceName)
		if err := binary.Write(f, binary.LittleEndian, &dev); err != nil {
			return err
		}
		if err := ioctl(f, uiDevCreate, 0); err != nil {
			return fmt.Errorf("UI_DEV_CREATE: %w", err)
		}
		return nil
	}
	if err := setup(); err != nil {
		f.Close()
		return nil, err
	}
	time.Sleep(deviceSettle)
	return &keyboard{f: f}, nil
}

// key sends one key event followed by a sync report.
func (k *keyboard) key(code uint16, down bool) error {
	var value int32
	if down {
		value = 1
	}
	if err := binary.Write(k.f, binary.LittleEndian, &inputEvent{Type: evKey, Code: code, Value: value}); err != nil {
		return err
	}
	return binary.Write(k.f, binary.LittleEndian, &inputEvent{Type: evSyn})
}

// chord taps code while mod is held. A zero mod taps code alone.
func (k *keyboard) chord(mod, code uint16, settle time.Duration) error {
	if mod != 0 {
		if err := k.key(mod, true); err != nil {
			return err
		}
		time.Sleep(settle)
	}
	if err := k.key(code, true); err != nil {
		return err
	}
	time.Sleep(settle)
	if err := k.key(code, false); err != nil {
		return err
	}
	if mod == 0 {
		return nil
	}
	time.Sleep(settle)
	return k.key(mod, false)
}

var (
	kbd     *keyboard
	kbdOnce sync.Once
	kbdErr  error
)

// Init creates the virtual keyboard. It is safe to call repeatedly.
func Init() error {
	kbdOnce.Do(func() {
		kbd, kbdErr = openKeyboard()
	})
	return kbdErr
}

// Paste sends Ctrl+V.
func Paste() error {
	if err := Init(); err != nil {
		return err
	}
	return kbd.chord(keyLeftCtrl, keyV, modifierSettle)
}

func keyTap(code uint16, shift bool) error {
	var mod uint16
	if shift {
		mod = keyLeftShift
	}
	return kbd.chord(mod, code, 0)
}

// findEvdev returns the /dev/input node the kernel created for the virtual
// keyboard.
func findEvdev() (string, error) {
	entries, err := os.ReadDir("/sys/class/input")
	if err != nil {
		return "", fmt.Errorf("cannot scan input devices: %w", err)
	}
	for _, e := range entries {
		if !strings.HasPrefix(e.Name(), "event") {
			continue
		}
		data, err := os.ReadFile(filepath.Join("/sys/class/input", e.Name(), "device", "name"))
		if err == nil && strings.TrimSpace(string(data)) == deviceName {
			return filepath.Join("/dev/input", e.Name()), nil
		}
	}
	return "", errors.New(deviceName + " evdev device not found")
}

// keysSeen reports which of codes appear as key events in buf.
func keysSeen(buf []byte, codes ...uint16) map[uint16]bool {
	seen := make(map[uint16]bool, len(codes))
	for i := 0; i+eventSize <= len(buf); i += eventSize {
		if binary.LittleEndian.Uint16(buf[i+16:]) != evKey {
			continue
		}
		code := binary.LittleEndian.Uint16(buf[i+18:])
		for _, c := range codes {
			if c == code {
				seen[c] = true
			}
		}
	}
	return seen
}

// Verify sends Ctrl+V through the virtual keyboard and reads it back from
// the kernel input layer to confirm delivery.
func Verify() (string, error) {
	if err := Init(); err != nil {
		return "", fmt.Errorf("uinput init: %w", err)
	}
	path, err := findEvdev()
	if err != nil {
		return "", err
	}
	evdev, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("cannot open %s: %w", path, err)
	}
	defer evdev.Close()

	if err := Paste(); err != nil {
		return "", fmt.Errorf("paste send: %w", err)
	}

	type readback struct {
		buf []byte
		err error
	}
	ch := make(chan readback, 1)
	go func() {
		buf := make([]byte, eventSize*32)
		n, err := evdev.Read(buf)
		ch <- readback{buf[:n], err}
	}()

	select {
	case r := <-ch:
		if r.err != nil {
			return "", fmt.Errorf("reading events: %w", r.err)
		}
		seen := keysSeen(r.buf, keyLeftCtrl, keyV)
		if !seen[keyLeftCtrl] || !seen[keyV] {
			return "", fmt.Errorf("missing events (ctrl=%v, v=%v)", seen[keyLeftCtrl], seen[keyV])
		}
		return "Ctrl+V keystroke verified via " + path, nil
	case <-time.After(500 * time.Millisecond):
		return "", errors.New("timed out waiting for keystroke events")
	}
}
