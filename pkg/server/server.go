// Package server exposes the projected task state over a local
// authenticated websocket channel.
//
// Clients connect to /gtd, receive a random challenge nonce, and must
// answer with an HMAC over it using the shared local secret before any
// state flows. Verification is gated by a leaky bucket and compared in
// constant time; every failure mode — drained bucket included — surfaces
// as the same generic bad_credentials reply.
//
// The server never polls the log. An external watcher target exists for
// exactly this purpose: every append touches the lock file, the server
// watches it via fsnotify, re-reads the log, and broadcasts new_state to
// authenticated sessions. A timer additionally re-notifies clients shortly
// after midnight, when scheduled items may roll from tickler into inbox
// without any log activity.
package server

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/gorilla/websocket"

	"github.com/pb-/lgtd-suite/pkg/bucket"
	"github.com/pb-/lgtd-suite/pkg/state"
)

// Auth attempts are throttled to authWindowCapacity per authWindow,
// process-wide across all sessions.
const (
	authWindow         = 3 * time.Second
	authWindowCapacity = 3
)

// Server owns the websocket sessions and the wake/rollover machinery.
// State itself lives in the Manager; the server only routes to it.
type Server struct {
	mgr      *state.Manager
	secret   []byte
	bucket   *bucket.LeakyBucket
	lockFile string
	timers   *TimerQueue
	upgrader websocket.Upgrader

	mu       sync.Mutex
	sessions map[string]*session
}

// New builds a server around an existing state manager. secret is the
// shared local_auth value; lockFile is the watch target that appends
// touch.
func New(mgr *state.Manager, secret, lockFile string) *Server {
	return &Server{
		mgr:      mgr,
		secret:   []byte(secret),
		bucket:   bucket.New(authWindow, authWindowCapacity),
		lockFile: lockFile,
		timers:   NewTimerQueue(),
		sessions: make(map[string]*session),
		upgrader: websocket.Upgrader{
			// Local-only service; the HMAC challenge is the access control.
			CheckOrigin: func(*http.Request) bool { return true },
		},
	}
}

// Run serves websocket clients on addr until ctx is cancelled.
func (s *Server) Run(ctx context.Context, addr string) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer watcher.Close()
	if err := watcher.Add(s.lockFile); err != nil {
		return err
	}
	go s.watchLoop(ctx, watcher)

	s.scheduleRollover()
	defer s.timers.Stop()

	mux := http.NewServeMux()
	mux.HandleFunc("/gtd", s.handleConnection)
	srv := &http.Server{Addr: addr, Handler: mux}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		srv.Shutdown(shutdownCtx) //nolint:errcheck // best-effort drain
	}()

	slog.Info("serving", "addr", addr)
	if err := srv.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// watchLoop turns lock-file changes into refresh passes.
func (s *Server) watchLoop(ctx context.Context, watcher *fsnotify.Watcher) {
	for {
		select {
		case <-ctx.Done():
			return
		case event, ok := <-watcher.Events:
			if !ok {
				return
			}
			if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Chmod) == 0 {
				continue
			}
			s.refresh()
		case err, ok := <-watcher.Errors:
			if !ok {
				return
			}
			slog.Warn("watcher error", "error", err)
		}
	}
}

// refresh re-reads the log and notifies sessions when anything changed.
func (s *Server) refresh() {
	changed, err := s.mgr.Notify()
	if err != nil {
		// Never fold a bad record into state; keep serving the last good
		// projection and make the failure visible to the operator.
		slog.Error("log replay failed", "error", err)
		return
	}
	if changed {
		slog.Debug("state changed, notifying clients")
		s.broadcast()
	}
}

// broadcast sends new_state to every authenticated session.
func (s *Server) broadcast() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, sess := range s.sessions {
		sess.notifyNewState()
	}
}

// scheduleRollover arms the five-past-midnight re-notification and
// re-arms itself after each firing.
func (s *Server) scheduleRollover() {
	s.timers.After(untilRollover(time.Now()), func() {
		s.broadcast()
		s.scheduleRollover()
	})
}

// untilRollover returns the duration until five minutes past the next
// midnight; the slack keeps clock skew from firing on the old day.
func untilRollover(now time.Time) time.Duration {
	next := now.AddDate(0, 0, 1)
	rollover := time.Date(next.Year(), next.Month(), next.Day(), 0, 5, 0, 0, now.Location())
	return rollover.Sub(now)
}

func (s *Server) addSession(sess *session) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sessions[sess.id] = sess
}

func (s *Server) removeSession(sess *session) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.sessions, sess.id)
}

// randomNonce returns a fresh hex challenge nonce.
func randomNonce() string {
	var b [16]byte
	if _, err := rand.Read(b[:]); err != nil {
		panic(err) // the platform CSPRNG is gone; nothing sane to do
	}
	return hex.EncodeToString(b[:])
}
