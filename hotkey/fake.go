package hotkey

// FakeHotkey is a Hotkey driven by Sim* calls instead of a keyboard. Test
// mode scripts and tests use it. Each channel holds one pending edge, so a
// Sim call blocks until the previous edge of the same kind is consumed.
type FakeHotkey struct {
	down, up chan struct{}
}

func NewFake() *FakeHotkey {
	return &FakeHotkey{
		down: make(chan struct{}, 1),
		up:   make(chan struct{}, 1),
	}
}

func (f *FakeHotkey) Register() error          { return nil }
func (f *FakeHotkey) Unregister()              {}
func (f *FakeHotkey) Keydown() <-chan struct{} { return f.down }
func (f *FakeHotkey) Keyup() <-chan struct{}   { return f.up }

func (f *FakeHotkey) SimKeydown() { f.down <- struct{}{} }
func (f *FakeHotkey) SimKeyup()   { f.up <- struct{}{} }

// SimPress sends a full press and release.
func (f *FakeHotkey) SimPress() {
	f.SimKeydown()
	f.SimKeyup()
}
