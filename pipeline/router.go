package pipeline

import (
	"context"
	"errors"

	"hark/log"
	"hark/session"
	"hark/transcriber"
)

// RemoteGate reports whether a remote client currently owns activation.
type RemoteGate interface {
	Remote() bool
}

type Destination string

const (
	ToRemote Destination = "remote"
	ToLocal  Destination = "local"
)

// Router sends every result either to all live sessions or to the local
// output queue, never both. The choice uses the remote gate at dequeue time.
type Router struct {
	In       *Queue[transcriber.Result]
	Gate     RemoteGate
	Sessions *session.Registry
	Local    *Queue[transcriber.Result]

	// Observe, if set, is called after each routing decision.
	Observe func(dest Destination, sessions int, r transcriber.Result)
}

func (rt *Router) Run(ctx context.Context) {
	for {
		r, err := rt.In.Get(ctx)
		if err != nil {
			return
		}
		dest, n := rt.route(r)
		log.Routed(string(dest), n, r.Seq)
		if rt.Observe != nil {
			rt.Observe(dest, n, r)
		}
	}
}

func (rt *Router) route(r transcriber.Result) (Destination, int) {
	if !rt.Gate.Remote() {
		rt.Local.Put(r)
		return ToLocal, 0
	}

	sessions := rt.Sessions.Snapshot()
	if len(sessions) == 0 {
		log.Debugf("result %d dropped: remote active with no sessions", r.Seq)
		return ToRemote, 0
	}
	for _, s := range sessions {
		err := s.Deliver(r)
		switch {
		case err == nil:
		case errors.Is(err, session.ErrSessionBacklogged):
			log.Warnf("session %s backlogged, dropping it", s.ID)
			if rt.Sessions.Remove(s.ID) {
				log.SessionEvent("session_dropped", s.ID, rt.Sessions.Len())
			}
		default:
			log.Warnf("delivering result %d to session %s: %v", r.Seq, s.ID, err)
		}
	}
	return ToRemote, len(sessions)
}
