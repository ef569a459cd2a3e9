// Package remote exposes activation control and result streaming over
// HTTP and websockets.
package remote

import (
	"context"
	"crypto/subtle"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"hark/log"
	"hark/session"
)

const (
	keepaliveMessage = "keepalive"
	writeTimeout     = 5 * time.Second
)

// Gate is the remote half of the activation state.
type Gate interface {
	SetRemote(on bool)
}

type Server struct {
	apiKey   string
	gate     Gate
	sessions *session.Registry
	upgrader websocket.Upgrader

	// mu orders conns.Add against shutdown so Serve never waits while a
	// stream is still being admitted.
	mu       sync.Mutex
	closing  bool
	done     chan struct{}
	doneOnce sync.Once
	conns    sync.WaitGroup
}

func New(apiKey string, gate Gate, sessions *session.Registry) *Server {
	return &Server{
		apiKey:   apiKey,
		gate:     gate,
		sessions: sessions,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool { return true },
		},
		done: make(chan struct{}),
	}
}

func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /start_listening", s.authorized(s.handleStart))
	mux.HandleFunc("POST /stop_listening", s.authorized(s.handleStop))
	mux.HandleFunc("GET /results", s.authorized(s.handleResults))
	mux.HandleFunc("GET /{$}", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, "Ahoy!")
	})
	return mux
}

func (s *Server) authorized(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		got := r.Header.Get("Authorization")
		if subtle.ConstantTimeCompare([]byte(got), []byte(s.apiKey)) != 1 {
			log.Warnf("unauthorized %s %s from %s", r.Method, r.URL.Path, r.RemoteAddr)
			http.Error(w, "Unauthorized", http.StatusUnauthorized)
			return
		}
		next(w, r)
	}
}

func (s *Server) handleStart(w http.ResponseWriter, r *http.Request) {
	log.Info("remote listening started")
	s.gate.SetRemote(true)
	fmt.Fprint(w, "Listening started")
}

func (s *Server) handleStop(w http.ResponseWriter, r *http.Request) {
	log.Info("remote listening stopped")
	s.gate.SetRemote(false)
	fmt.Fprint(w, "Listening stopped")
}

// admit counts a new result stream, or reports false once shutdown began.
func (s *Server) admit() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closing {
		return false
	}
	s.conns.Add(1)
	return true
}

func (s *Server) handleResults(w http.ResponseWriter, r *http.Request) {
	if !s.admit() {
		http.Error(w, "Shutting down", http.StatusServiceUnavailable)
		return
	}
	defer s.conns.Done()

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Warnf("websocket upgrade from %s: %v", r.RemoteAddr, err)
		return
	}
	defer conn.Close()

	sess, release := s.sessions.Acquire()
	defer func() {
		release()
		log.SessionEvent("session_closed", sess.ID, s.sessions.Len())
	}()
	log.SessionEvent("session_registered", sess.ID, s.sessions.Len())

	readDone := make(chan struct{})
	go s.readLoop(conn, sess.ID, readDone)

	reason := s.writeLoop(conn, sess, readDone)
	deadline := time.Now().Add(time.Second)
	conn.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, reason), deadline)
	conn.Close()
	<-readDone
}

func (s *Server) readLoop(conn *websocket.Conn, id string, done chan<- struct{}) {
	defer close(done)
	conn.SetPingHandler(func(data string) error {
		s.sessions.Touch(id)
		return conn.WriteControl(websocket.PongMessage, []byte(data), time.Now().Add(writeTimeout))
	})
	for {
		typ, msg, err := conn.ReadMessage()
		if err != nil {
			if !websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) && !errors.Is(err, net.ErrClosed) {
				log.Debugf("session %s read: %v", id, err)
			}
			return
		}
		if typ == websocket.TextMessage && string(msg) == keepaliveMessage {
			s.sessions.Touch(id)
			continue
		}
		log.Warnf("session %s sent unexpected message: %q", id, msg)
	}
}

// writeLoop forwards results until the session ends and returns why.
func (s *Server) writeLoop(conn *websocket.Conn, sess *session.Session, readDone <-chan struct{}) string {
	for {
		select {
		case <-readDone:
			return "client gone"
		case <-s.done:
			return "server shutting down"
		case <-sess.Done():
			return "session expired"
		case r := <-sess.Outbound():
			conn.SetWriteDeadline(time.Now().Add(writeTimeout))
			if err := conn.WriteJSON(r); err != nil {
				log.Warnf("session %s write: %v", sess.ID, err)
				return "write failed"
			}
		}
	}
}

// Shutdown ends every open result stream.
func (s *Server) Shutdown() {
	s.mu.Lock()
	s.closing = true
	s.mu.Unlock()
	s.doneOnce.Do(func() { close(s.done) })
}

// ListenAndServe serves on addr until ctx is done. TLS is used when both
// certFile and keyFile are set.
func (s *Server) ListenAndServe(ctx context.Context, addr, certFile, keyFile string) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("listening on %s: %w", addr, err)
	}
	return s.Serve(ctx, ln, certFile, keyFile)
}

func (s *Server) Serve(ctx context.Context, ln net.Listener, certFile, keyFile string) error {
	srv := &http.Server{
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		var err error
		if certFile != "" && keyFile != "" {
			log.Infof("remote server listening on https://%s", ln.Addr())
			err = srv.ServeTLS(ln, certFile, keyFile)
		} else {
			log.Infof("remote server listening on http://%s", ln.Addr())
			err = srv.Serve(ln)
		}
		errCh <- err
	}()

	select {
	case err := <-errCh:
		s.Shutdown()
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	s.Shutdown()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	err := srv.Shutdown(shutdownCtx)
	s.conns.Wait()
	<-errCh
	return err
}
