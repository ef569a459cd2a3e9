//go:build linux

package hotkey

import "testing"

func TestTrackerCombo(t *testing.T) {
	combo, err := ParseCombo("ctrl+shift+space")
	if err != nil {
		t.Fatal(err)
	}
	tr := tracker{combo: combo, code: evdevKeys[combo.Key]}
	const space = 57

	steps := []struct {
		name  string
		code  uint16
		value int32
		want  edge
	}{
		{"space alone", space, keyPress, noEdge},
		{"space up alone", space, keyRelease, noEdge},
		{"ctrl", keyLCtrl, keyPress, noEdge},
		{"space with ctrl only", space, keyPress, noEdge},
		{"space up", space, keyRelease, noEdge},
		{"right shift", keyRShift, keyPress, noEdge},
		{"combo down", space, keyPress, pressEdge},
		{"autorepeat", space, 2, noEdge},
		{"repeat press", space, keyPress, noEdge},
		{"ctrl released while held", keyLCtrl, keyRelease, noEdge},
		{"combo up", space, keyRelease, releaseEdge},
		{"combo up again", space, keyRelease, noEdge},
	}
	for _, s := range steps {
		if got := tr.feed(s.code, s.value); got != s.want {
			t.Errorf("%s: edge = %d, want %d", s.name, got, s.want)
		}
	}
}

func TestTrackerBareKey(t *testing.T) {
	combo, err := ParseCombo("f9")
	if err != nil {
		t.Fatal(err)
	}
	tr := tracker{combo: combo, code: evdevKeys["f9"]}
	if got := tr.feed(67, keyPress); got != pressEdge {
		t.Errorf("f9 down = %d", got)
	}
	if got := tr.feed(67, keyRelease); got != releaseEdge {
		t.Errorf("f9 up = %d", got)
	}
}
