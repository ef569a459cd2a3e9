package clipboard

import (
	"errors"
	"fmt"
	"sync"

	cb "github.com/atotto/clipboard"
)

type Method string

const (
	// MethodType injects one keystroke per character.
	MethodType Method = "type"
	// MethodPaste copies to the clipboard and sends the paste shortcut.
	MethodPaste Method = "paste"
)

// ErrUnmapped is returned by Type when text holds a character with no key
// on the virtual keyboard. Nothing has been typed when it is returned.
var ErrUnmapped = errors.New("character has no key mapping")

func ParseMethod(s string) (Method, error) {
	switch m := Method(s); m {
	case MethodType, MethodPaste:
		return m, nil
	default:
		return "", fmt.Errorf("unknown output method %q (want type or paste)", s)
	}
}

// Copy places text on the system clipboard.
func Copy(text string) error {
	return cb.WriteAll(text)
}

// Typer sends routed text to the focused window. Calls are serialized so
// keystrokes from consecutive results never interleave.
type Typer struct {
	method Method
	typeFn func(string) error
	paste  func(string) error
	mu     sync.Mutex
}

func NewTyper(method Method) *Typer {
	return &Typer{
		method: method,
		typeFn: Type,
		paste: func(text string) error {
			if err := Copy(text); err != nil {
				return fmt.Errorf("copying to clipboard: %w", err)
			}
			return Paste()
		},
	}
}

// Type delivers text with the configured method. Text the keyboard cannot
// spell (accents, emoji) goes through the clipboard instead.
func (t *Typer) Type(text string) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.method == MethodPaste {
		return t.paste(text)
	}
	err := t.typeFn(text)
	if errors.Is(err, ErrUnmapped) {
		return t.paste(text)
	}
	return err
}
