package hotkey

import (
	"fmt"
	"strings"
)

type Hotkey interface {
	Register() error
	Unregister()
	Keydown() <-chan struct{}
	Keyup() <-chan struct{}
}

// Combo is a key with the modifiers that must be held with it.
type Combo struct {
	Ctrl  bool
	Shift bool
	Alt   bool
	Key   string // space, f1..f12
}

const DefaultCombo = "ctrl+shift+space"

var supportedKeys = map[string]bool{
	"space": true,
	"f1":    true, "f2": true, "f3": true, "f4": true, "f5": true, "f6": true,
	"f7": true, "f8": true, "f9": true, "f10": true, "f11": true, "f12": true,
}

// ParseCombo reads strings like "ctrl+shift+space" or "f9".
func ParseCombo(s string) (Combo, error) {
	var c Combo
	parts := strings.Split(strings.ToLower(strings.TrimSpace(s)), "+")
	for i, p := range parts {
		p = strings.TrimSpace(p)
		if i == len(parts)-1 {
			if !supportedKeys[p] {
				return Combo{}, fmt.Errorf("unsupported hotkey key %q", p)
			}
			c.Key = p
			break
		}
		switch p {
		case "ctrl", "control":
			c.Ctrl = true
		case "shift":
			c.Shift = true
		case "alt":
			c.Alt = true
		default:
			return Combo{}, fmt.Errorf("unsupported hotkey modifier %q", p)
		}
	}
	return c, nil
}

func (c Combo) String() string {
	var parts []string
	if c.Ctrl {
		parts = append(parts, "ctrl")
	}
	if c.Shift {
		parts = append(parts, "shift")
	}
	if c.Alt {
		parts = append(parts, "alt")
	}
	return strings.Join(append(parts, c.Key), "+")
}
