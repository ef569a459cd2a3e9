package main

import (
	"context"
	"fmt"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"hark/activation"
	"hark/audio"
	"hark/beep"
	"hark/config"
	"hark/log"
	"hark/pipeline"
	"hark/remote"
	"hark/session"
	"hark/transcriber"
)

// status is what the TUI and test mode display.
type status struct {
	Gates     activation.Gates
	Sessions  int
	Routed    int
	LastText  string
	LastDest  pipeline.Destination
	LastAt    time.Time
	Engine    string
	Device    string
	KeyMode   string
	Remote    string // listen address, empty when the remote server is off
	StartedAt time.Time
}

type deviceNamer interface {
	DeviceName() string
}

// app wires the activation state, session registry, pipeline and remote
// server together. It is shared by the normal run, the TUI and test mode.
type app struct {
	cfg      config.Config
	state    *activation.State
	sessions *session.Registry
	pipe     *pipeline.Pipeline
	server   *remote.Server
	engine   transcriber.Engine
	mic      audio.Microphone

	routed  atomic.Int64
	started time.Time

	mu       sync.Mutex
	last     transcriber.Result
	lastDest pipeline.Destination
	lastAt   time.Time
	addr     string
	// routedCh receives every routing decision when non-nil.
	routedCh chan pipeline.Destination
}

func newApp(cfg config.Config, mic audio.Microphone, engine transcriber.Engine, out pipeline.Output) *app {
	a := &app{
		cfg:     cfg,
		state:   activation.New(),
		engine:  engine,
		mic:     mic,
		started: time.Now(),
	}
	a.sessions = session.NewRegistry(session.WithBuffer(cfg.SessionBuffer))
	a.state.OnChange(func(g activation.Gates) { log.Gate(g.Local, g.Remote) })
	if cfg.Cues {
		a.state.OnChange(beep.NewCue().Observe)
	}

	a.pipe = pipeline.New(pipeline.Config{
		PruneInterval:      cfg.PruneInterval,
		LivenessTimeout:    cfg.LivenessTimeout,
		DeactivateInterval: cfg.DeactivateInterval,
	}, a.state, a.sessions, mic, engine, out)
	a.pipe.Router.Observe = a.observe

	if cfg.RemoteEnabled() {
		a.server = remote.New(cfg.APIKey, a.state, a.sessions)
	}
	return a
}

func (a *app) observe(dest pipeline.Destination, _ int, r transcriber.Result) {
	a.routed.Add(1)
	a.mu.Lock()
	a.last = r
	a.lastDest = dest
	a.lastAt = time.Now()
	ch := a.routedCh
	a.mu.Unlock()
	if ch != nil {
		select {
		case ch <- dest:
		default:
		}
	}
}

// notifyRouted returns a channel that receives each routing decision from
// now on. Only the most recent caller is notified.
func (a *app) notifyRouted() <-chan pipeline.Destination {
	ch := make(chan pipeline.Destination, 16)
	a.mu.Lock()
	a.routedCh = ch
	a.mu.Unlock()
	return ch
}

func (a *app) status() status {
	a.mu.Lock()
	defer a.mu.Unlock()
	s := status{
		Gates:     a.state.Snapshot(),
		Sessions:  a.sessions.Len(),
		Routed:    int(a.routed.Load()),
		LastText:  a.last.Text(),
		LastDest:  a.lastDest,
		LastAt:    a.lastAt,
		Engine:    a.engine.Name(),
		KeyMode:   a.cfg.KeyMode,
		Remote:    a.addr,
		StartedAt: a.started,
	}
	if d, ok := a.mic.(deviceNamer); ok {
		s.Device = d.DeviceName()
	}
	return s
}

// listen binds the remote server's address. It returns nil when remote
// control is disabled.
func (a *app) listen() (net.Listener, error) {
	if a.server == nil {
		return nil, nil
	}
	ln, err := net.Listen("tcp", a.cfg.ListenAddr)
	if err != nil {
		return nil, fmt.Errorf("remote server: %w", err)
	}
	a.mu.Lock()
	a.addr = ln.Addr().String()
	a.mu.Unlock()
	return ln, nil
}

// run blocks until ctx is done and every worker has stopped. ln may be nil.
func (a *app) run(ctx context.Context, ln net.Listener) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	var wg sync.WaitGroup
	var serveErr error
	if a.server != nil && ln != nil {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := a.server.Serve(ctx, ln, a.cfg.TLSCert, a.cfg.TLSKey); err != nil {
				serveErr = err
				log.Errorf("remote server: %v", err)
				cancel()
			}
		}()
	}

	a.pipe.Run(ctx)
	wg.Wait()
	return serveErr
}
