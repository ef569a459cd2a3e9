package pipeline

import (
	"context"
	"testing"
	"time"

	"hark/activation"
	"hark/session"
	"hark/transcriber"
)

func result(seq uint64, text string) transcriber.Result {
	return transcriber.Result{Seq: seq, Segments: []transcriber.Segment{{Text: text}}}
}

func newRouter(state *activation.State, reg *session.Registry) *Router {
	return &Router{
		In:       NewQueue[transcriber.Result](),
		Gate:     state,
		Sessions: reg,
		Local:    NewQueue[transcriber.Result](),
	}
}

func recv(t *testing.T, s *session.Session) transcriber.Result {
	t.Helper()
	select {
	case r := <-s.Outbound():
		return r
	case <-time.After(time.Second):
		t.Fatalf("session %s received nothing", s.ID)
		return transcriber.Result{}
	}
}

func TestRouteLocalWhenRemoteOff(t *testing.T) {
	state := activation.New()
	reg := session.NewRegistry()
	s := reg.Register()
	rt := newRouter(state, reg)

	dest, _ := rt.route(result(1, "hi"))
	if dest != ToLocal {
		t.Fatalf("dest = %s, want local", dest)
	}
	if rt.Local.Len() != 1 {
		t.Errorf("local queue len = %d, want 1", rt.Local.Len())
	}
	select {
	case r := <-s.Outbound():
		t.Errorf("session received %+v while remote off", r)
	default:
	}
}

func TestRouteFanOutWhenRemoteOn(t *testing.T) {
	state := activation.New()
	state.SetRemote(true)
	reg := session.NewRegistry()
	s1, s2 := reg.Register(), reg.Register()
	rt := newRouter(state, reg)

	dest, n := rt.route(result(1, "hi"))
	if dest != ToRemote || n != 2 {
		t.Fatalf("route = %s/%d, want remote/2", dest, n)
	}
	for _, s := range []*session.Session{s1, s2} {
		if got := recv(t, s); got.Seq != 1 {
			t.Errorf("session %s got seq %d", s.ID, got.Seq)
		}
	}
	if rt.Local.Len() != 0 {
		t.Errorf("local queue len = %d, want 0", rt.Local.Len())
	}
}

func TestRouteRemoteNoSessionsDrops(t *testing.T) {
	state := activation.New()
	state.SetRemote(true)
	rt := newRouter(state, session.NewRegistry())

	dest, n := rt.route(result(1, "hi"))
	if dest != ToRemote || n != 0 {
		t.Fatalf("route = %s/%d, want remote/0", dest, n)
	}
	if rt.Local.Len() != 0 {
		t.Error("dropped result leaked to local queue")
	}
}

func TestRouteBackloggedSessionDropped(t *testing.T) {
	state := activation.New()
	state.SetRemote(true)
	reg := session.NewRegistry(session.WithBuffer(1))
	slow, fast := reg.Register(), reg.Register()
	rt := newRouter(state, reg)

	rt.route(result(1, "a"))
	recv(t, fast)
	rt.route(result(2, "b"))

	select {
	case <-slow.Done():
	default:
		t.Fatal("backlogged session not removed")
	}
	if got := recv(t, fast); got.Seq != 2 {
		t.Errorf("fast session got seq %d, want 2", got.Seq)
	}
	if reg.Len() != 1 {
		t.Errorf("registry len = %d, want 1", reg.Len())
	}
}

func TestRouterUsesGateAtDequeue(t *testing.T) {
	state := activation.New()
	reg := session.NewRegistry()
	s := reg.Register()
	rt := newRouter(state, reg)

	var dests []Destination
	seen := make(chan struct{}, 4)
	rt.Observe = func(dest Destination, _ int, _ transcriber.Result) {
		dests = append(dests, dest)
		seen <- struct{}{}
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go rt.Run(ctx)

	rt.In.Put(result(1, "local"))
	<-seen
	state.SetRemote(true)
	rt.In.Put(result(2, "remote"))
	<-seen

	if len(dests) != 2 || dests[0] != ToLocal || dests[1] != ToRemote {
		t.Fatalf("dests = %v, want [local remote]", dests)
	}
	if got := recv(t, s); got.Seq != 2 {
		t.Errorf("session got seq %d, want 2", got.Seq)
	}
}
