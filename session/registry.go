// Package session tracks remote result subscribers and their liveness.
package session

import (
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"hark/transcriber"
)

const DefaultBuffer = 64

var (
	ErrSessionClosed     = errors.New("session: closed")
	ErrSessionBacklogged = errors.New("session: outbound buffer full")
)

// Session is one remote subscriber. Results are handed to it through a
// bounded outbound buffer drained by the connection's writer.
type Session struct {
	ID      string
	Created time.Time

	outbound chan transcriber.Result
	done     chan struct{}
	closing  sync.Once

	mu       sync.Mutex
	lastSeen time.Time
}

// Outbound yields results for this session. It is never closed; select on
// Done as well.
func (s *Session) Outbound() <-chan transcriber.Result { return s.outbound }

// Done is closed when the session is removed from its registry.
func (s *Session) Done() <-chan struct{} { return s.done }

// LastSeen returns the time of the last liveness signal.
func (s *Session) LastSeen() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastSeen
}

// Deliver queues r without blocking.
func (s *Session) Deliver(r transcriber.Result) error {
	select {
	case <-s.done:
		return ErrSessionClosed
	default:
	}
	select {
	case s.outbound <- r:
		return nil
	case <-s.done:
		return ErrSessionClosed
	default:
		return ErrSessionBacklogged
	}
}

func (s *Session) touch(now time.Time) {
	s.mu.Lock()
	s.lastSeen = now
	s.mu.Unlock()
}

func (s *Session) close() {
	s.closing.Do(func() { close(s.done) })
}

// Registry is the set of live sessions. All methods are safe for concurrent
// use.
type Registry struct {
	now    func() time.Time
	buffer int

	mu       sync.Mutex
	sessions map[string]*Session
	onChange func(live int)
}

type Option func(*Registry)

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(r *Registry) { r.now = now }
}

// WithBuffer sets the per-session outbound capacity.
func WithBuffer(n int) Option {
	return func(r *Registry) {
		if n > 0 {
			r.buffer = n
		}
	}
}

// WithChangeHook is called with the live count after every register/remove.
func WithChangeHook(fn func(live int)) Option {
	return func(r *Registry) { r.onChange = fn }
}

func NewRegistry(opts ...Option) *Registry {
	r := &Registry{
		now:      time.Now,
		buffer:   DefaultBuffer,
		sessions: make(map[string]*Session),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Register adds a session with a fresh random id and the current time as its
// last liveness signal.
func (r *Registry) Register() *Session {
	now := r.now()
	s := &Session{
		ID:       uuid.NewString(),
		Created:  now,
		outbound: make(chan transcriber.Result, r.buffer),
		done:     make(chan struct{}),
		lastSeen: now,
	}
	r.mu.Lock()
	r.sessions[s.ID] = s
	live := len(r.sessions)
	hook := r.onChange
	r.mu.Unlock()
	if hook != nil {
		hook(live)
	}
	return s
}

// Acquire registers a session and returns a release func that removes it.
// Release is idempotent and safe to defer alongside a concurrent prune.
func (r *Registry) Acquire() (*Session, func()) {
	s := r.Register()
	var once sync.Once
	return s, func() { once.Do(func() { r.Remove(s.ID) }) }
}

// Touch refreshes a session's liveness. Unknown ids are ignored.
func (r *Registry) Touch(id string) {
	r.mu.Lock()
	s, ok := r.sessions[id]
	r.mu.Unlock()
	if ok {
		s.touch(r.now())
	}
}

// Remove deletes the session and closes its Done channel. It reports whether
// the id was present.
func (r *Registry) Remove(id string) bool {
	r.mu.Lock()
	s, ok := r.sessions[id]
	if ok {
		delete(r.sessions, id)
	}
	live := len(r.sessions)
	hook := r.onChange
	r.mu.Unlock()
	if !ok {
		return false
	}
	s.close()
	if hook != nil {
		hook(live)
	}
	return true
}

func (r *Registry) Get(id string) (*Session, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.sessions[id]
	return s, ok
}

// Snapshot returns the live sessions ordered by creation time. The slice is
// a copy; sessions in it may be removed concurrently.
func (r *Registry) Snapshot() []*Session {
	r.mu.Lock()
	out := make([]*Session, 0, len(r.sessions))
	for _, s := range r.sessions {
		out = append(out, s)
	}
	r.mu.Unlock()
	sort.Slice(out, func(i, j int) bool {
		if out[i].Created.Equal(out[j].Created) {
			return out[i].ID < out[j].ID
		}
		return out[i].Created.Before(out[j].Created)
	})
	return out
}

func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.sessions)
}

// Prune removes every session whose last liveness signal is older than
// timeout and returns their ids.
func (r *Registry) Prune(timeout time.Duration) []string {
	now := r.now()
	var stale []string
	for _, s := range r.Snapshot() {
		if now.Sub(s.LastSeen()) > timeout {
			stale = append(stale, s.ID)
		}
	}
	var removed []string
	for _, id := range stale {
		if r.Remove(id) {
			removed = append(removed, id)
		}
	}
	return removed
}
