package remote

import (
	"context"
	"encoding/json"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"hark/activation"
	"hark/session"
	"hark/transcriber"
)

const testKey = "s3cret"

type fixture struct {
	state *activation.State
	reg   *session.Registry
	srv   *Server
	http  *httptest.Server
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{state: activation.New(), reg: session.NewRegistry()}
	f.srv = New(testKey, f.state, f.reg)
	f.http = httptest.NewServer(f.srv.Handler())
	t.Cleanup(func() {
		f.srv.Shutdown()
		f.http.Close()
	})
	return f
}

func (f *fixture) post(t *testing.T, path, key string) (int, string) {
	t.Helper()
	req, _ := http.NewRequest(http.MethodPost, f.http.URL+path, nil)
	if key != "" {
		req.Header.Set("Authorization", key)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	body, _ := io.ReadAll(resp.Body)
	return resp.StatusCode, strings.TrimSpace(string(body))
}

func (f *fixture) dial(t *testing.T, key string) (*websocket.Conn, *http.Response, error) {
	t.Helper()
	u := "ws" + strings.TrimPrefix(f.http.URL, "http") + "/results"
	h := http.Header{}
	if key != "" {
		h.Set("Authorization", key)
	}
	return websocket.DefaultDialer.Dial(u, h)
}

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.After(2 * time.Second)
	for !cond() {
		select {
		case <-deadline:
			t.Fatalf("timed out waiting for %s", what)
		case <-time.After(2 * time.Millisecond):
		}
	}
}

func TestStartStop(t *testing.T) {
	f := newFixture(t)

	code, body := f.post(t, "/start_listening", testKey)
	if code != http.StatusOK || body != "Listening started" {
		t.Fatalf("start = %d %q", code, body)
	}
	if !f.state.Remote() {
		t.Fatal("remote gate not set")
	}

	code, body = f.post(t, "/stop_listening", testKey)
	if code != http.StatusOK || body != "Listening stopped" {
		t.Fatalf("stop = %d %q", code, body)
	}
	if f.state.Remote() {
		t.Fatal("remote gate not cleared")
	}
}

func TestUnauthorized(t *testing.T) {
	f := newFixture(t)
	for _, key := range []string{"", "wrong", testKey + "x"} {
		code, body := f.post(t, "/start_listening", key)
		if code != http.StatusUnauthorized || body != "Unauthorized" {
			t.Errorf("key %q: %d %q", key, code, body)
		}
	}
	if f.state.Remote() {
		t.Error("unauthorized request changed the gate")
	}

	_, resp, err := f.dial(t, "wrong")
	if err == nil {
		t.Fatal("websocket dial succeeded without credentials")
	}
	if resp == nil || resp.StatusCode != http.StatusUnauthorized {
		t.Errorf("dial response = %v", resp)
	}
	if f.reg.Len() != 0 {
		t.Errorf("unauthorized dial registered a session")
	}
}

func TestIndex(t *testing.T) {
	f := newFixture(t)
	resp, err := http.Get(f.http.URL + "/")
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	body, _ := io.ReadAll(resp.Body)
	if string(body) != "Ahoy!" {
		t.Errorf("index = %q", body)
	}

	resp, err = http.Get(f.http.URL + "/start_listening")
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusMethodNotAllowed {
		t.Errorf("GET /start_listening = %d, want 405", resp.StatusCode)
	}
}

func TestResultsStream(t *testing.T) {
	f := newFixture(t)
	conn, _, err := f.dial(t, testKey)
	if err != nil {
		t.Fatal(err)
	}
	defer conn.Close()

	waitFor(t, "session registered", func() bool { return f.reg.Len() == 1 })
	sess := f.reg.Snapshot()[0]

	want := transcriber.Result{Language: "en", Segments: []transcriber.Segment{{Start: 0, End: 1, Text: "hi"}}}
	if err := sess.Deliver(want); err != nil {
		t.Fatal(err)
	}

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, msg, err := conn.ReadMessage()
	if err != nil {
		t.Fatal(err)
	}
	var got transcriber.Result
	if err := json.Unmarshal(msg, &got); err != nil {
		t.Fatalf("decoding %s: %v", msg, err)
	}
	if got.Text() != "hi" || got.Language != "en" {
		t.Errorf("got %s", msg)
	}
}

func TestKeepaliveTouches(t *testing.T) {
	f := newFixture(t)
	conn, _, err := f.dial(t, testKey)
	if err != nil {
		t.Fatal(err)
	}
	defer conn.Close()

	waitFor(t, "session registered", func() bool { return f.reg.Len() == 1 })
	sess := f.reg.Snapshot()[0]
	before := sess.LastSeen()

	time.Sleep(5 * time.Millisecond)
	if err := conn.WriteMessage(websocket.TextMessage, []byte("keepalive")); err != nil {
		t.Fatal(err)
	}
	waitFor(t, "liveness refreshed", func() bool { return sess.LastSeen().After(before) })
}

func TestDisconnectReleasesSession(t *testing.T) {
	f := newFixture(t)
	conn, _, err := f.dial(t, testKey)
	if err != nil {
		t.Fatal(err)
	}
	waitFor(t, "session registered", func() bool { return f.reg.Len() == 1 })
	conn.Close()
	waitFor(t, "session released", func() bool { return f.reg.Len() == 0 })
}

func TestPrunedSessionClosesConnection(t *testing.T) {
	f := newFixture(t)
	conn, _, err := f.dial(t, testKey)
	if err != nil {
		t.Fatal(err)
	}
	defer conn.Close()
	waitFor(t, "session registered", func() bool { return f.reg.Len() == 1 })

	f.reg.Remove(f.reg.Snapshot()[0].ID)

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, _, err = conn.ReadMessage()
	if !websocket.IsCloseError(err, websocket.CloseNormalClosure) {
		t.Fatalf("read after prune = %v, want normal close", err)
	}
}

func TestServeShutsDownOnCancel(t *testing.T) {
	reg := session.NewRegistry()
	srv := New(testKey, activation.New(), reg)
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatal(err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() { errCh <- srv.Serve(ctx, ln, "", "") }()

	u := "ws://" + ln.Addr().String() + "/results"
	conn, _, err := websocket.DefaultDialer.Dial(u, http.Header{"Authorization": {testKey}})
	if err != nil {
		t.Fatal(err)
	}
	defer conn.Close()
	waitFor(t, "session registered", func() bool { return reg.Len() == 1 })

	cancel()
	select {
	case err := <-errCh:
		if err != nil {
			t.Errorf("Serve = %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("Serve did not return after cancel")
	}
	if reg.Len() != 0 {
		t.Errorf("sessions left after shutdown: %d", reg.Len())
	}
}

func TestResultsRefusedAfterShutdown(t *testing.T) {
	f := newFixture(t)
	f.srv.Shutdown()

	conn, resp, err := f.dial(t, testKey)
	if err == nil {
		conn.Close()
		t.Fatal("stream accepted after shutdown")
	}
	if resp == nil || resp.StatusCode != http.StatusServiceUnavailable {
		t.Fatalf("dial response = %v, err %v", resp, err)
	}
	if f.reg.Len() != 0 {
		t.Error("refused stream registered a session")
	}
	// a later Wait must not block on the refused stream
	done := make(chan struct{})
	go func() {
		f.srv.conns.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("refused stream left the connection count raised")
	}
}
