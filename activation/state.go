// Package activation holds the two activation gates that decide whether
// captured audio is kept: a local gate driven by the hotkey and a remote gate
// driven by the HTTP boundary.
package activation

import "sync"

// Gates is a point-in-time copy of both gates.
type Gates struct {
	Local  bool
	Remote bool
}

// Effective reports whether either gate is asserted.
func (g Gates) Effective() bool { return g.Local || g.Remote }

// State is safe for concurrent use. The zero value has both gates off.
type State struct {
	mu       sync.Mutex
	gates    Gates
	onChange []func(Gates)
}

func New() *State { return &State{} }

// SetLocal sets the local gate. Asserting it always clears the remote gate,
// including when remote is already off.
func (s *State) SetLocal(on bool) {
	s.mu.Lock()
	prev := s.gates
	s.gates.Local = on
	if on {
		s.gates.Remote = false
	}
	next := s.gates
	listeners := s.onChange
	s.mu.Unlock()
	notify(listeners, prev, next)
}

// SetRemote sets the remote gate and leaves the local gate untouched.
func (s *State) SetRemote(on bool) {
	s.mu.Lock()
	prev := s.gates
	s.gates.Remote = on
	next := s.gates
	listeners := s.onChange
	s.mu.Unlock()
	notify(listeners, prev, next)
}

func (s *State) IsEffective() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.gates.Effective()
}

func (s *State) Local() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.gates.Local
}

func (s *State) Remote() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.gates.Remote
}

func (s *State) Snapshot() Gates {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.gates
}

// OnChange registers fn to be called after any call that changed a gate.
// Listeners run on the caller's goroutine, outside the lock, and must not block.
func (s *State) OnChange(fn func(Gates)) {
	s.mu.Lock()
	s.onChange = append(s.onChange, fn)
	s.mu.Unlock()
}

func notify(listeners []func(Gates), prev, next Gates) {
	if prev == next {
		return
	}
	for _, fn := range listeners {
		fn(next)
	}
}
