//go:build !linux

package clipboard

import (
	"runtime"
	"sync"

	"github.com/micmonay/keybd_event"
)

var (
	kb     keybd_event.KeyBonding
	kbOnce sync.Once
	kbErr  error
)

// Init binds the OS keyboard event API.
func Init() error {
	kbOnce.Do(func() {
		kb, kbErr = keybd_event.NewKeyBonding()
	})
	return kbErr
}

// pasteShortcut is Cmd+V on darwin and Ctrl+V elsewhere.
func pasteShortcut() (label string, press func(*keybd_event.KeyBonding)) {
	if runtime.GOOS == "darwin" {
		return "Cmd+V", func(k *keybd_event.KeyBonding) { k.HasSuper(true) }
	}
	return "Ctrl+V", func(k *keybd_event.KeyBonding) { k.HasCTRL(true) }
}

func Paste() error {
	if err := Init(); err != nil {
		return err
	}
	_, mod := pasteShortcut()
	kb.Clear()
	kb.SetKeys(keybd_event.VK_V)
	mod(&kb)
	return kb.Launching()
}

// Verify checks that the keyboard event binding is initialized.
func Verify() (string, error) {
	if err := Init(); err != nil {
		return "", err
	}
	label, _ := pasteShortcut()
	return "keyboard event binding OK (" + label + ")", nil
}
