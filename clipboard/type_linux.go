//go:build linux

package clipboard

import "fmt"

type keystroke struct {
	code  uint16
	shift bool
}

// US layout evdev codes for the printable ASCII range.
var keystrokes = buildKeystrokes()

func buildKeystrokes() map[rune]keystroke {
	m := make(map[rune]keystroke, 96)
	rows := []struct {
		chars string
		first uint16
	}{
		{"1234567890-=", 2},
		{"qwertyuiop[]", 16},
		{"asdfghjkl;'`", 30},
		{"zxcvbnm,./", 44},
	}
	shifted := []string{"!@#$%^&*()_+", "QWERTYUIOP{}", "ASDFGHJKL:\"~", "ZXCVBNM<>?"}
	for i, row := range rows {
		for j, c := range row.chars {
			m[c] = keystroke{code: row.first + uint16(j)}
		}
		for j, c := range shifted[i] {
			m[c] = keystroke{code: row.first + uint16(j), shift: true}
		}
	}
	m['\\'] = keystroke{code: 43}
	m['|'] = keystroke{code: 43, shift: true}
	m[' '] = keystroke{code: 57}
	m['\n'] = keystroke{code: 28}
	m['\t'] = keystroke{code: 15}
	return m
}

// Type sends each character of text as a keystroke via uinput. Text is
// checked before anything is sent, so an ErrUnmapped leaves the target
// window untouched.
func Type(text string) error {
	keys := make([]keystroke, 0, len(text))
	for _, r := range text {
		k, ok := keystrokes[r]
		if !ok {
			return fmt.Errorf("%w: %q", ErrUnmapped, r)
		}
		keys = append(keys, k)
	}
	if err := Init(); err != nil {
		return err
	}
	for _, k := range keys {
		if err := keyTap(k.code, k.shift); err != nil {
			return err
		}
	}
	return nil
}
