package server

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"log/slog"
	"net/http"
	"sync"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

// errBadCredentials covers every authentication failure mode. Rate-limit
// exhaustion maps onto it too, so a caller cannot tell whether the MAC was
// even checked.
var errBadCredentials = errors.New("bad credentials")

// clientMessage is the single envelope for everything a client sends.
type clientMessage struct {
	Msg  string   `json:"msg"`
	MAC  string   `json:"mac,omitempty"`
	Tag  string   `json:"tag,omitempty"`
	Cmds []string `json:"cmds,omitempty"`
}

// session is one websocket connection with its own challenge nonce.
type session struct {
	id    string
	srv   *Server
	conn  *websocket.Conn
	nonce string

	mu            sync.Mutex // guards conn writes and authenticated
	authenticated bool
}

// handleConnection upgrades the request, issues the challenge, and runs
// the session loop until the client goes away.
func (s *Server) handleConnection(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		slog.Error("websocket upgrade failed", "error", err)
		return
	}
	defer conn.Close()

	sess := &session{
		id:    uuid.New().String(),
		srv:   s,
		conn:  conn,
		nonce: randomNonce(),
	}
	s.addSession(sess)
	defer s.removeSession(sess)

	slog.Debug("client connected, sending challenge", "session", sess.id)
	if err := sess.send(map[string]string{"msg": "auth_challenge", "nonce": sess.nonce}); err != nil {
		return
	}
	sess.serve()
}

func (sess *session) serve() {
	for {
		var msg clientMessage
		if err := sess.conn.ReadJSON(&msg); err != nil {
			slog.Debug("client disconnected", "session", sess.id, "error", err)
			return
		}

		// Every message authenticates or re-confirms authentication before
		// it is processed.
		if err := sess.authenticate(msg); err != nil {
			slog.Debug("authentication error", "session", sess.id)
			if err := sess.send(map[string]string{"msg": "bad_credentials"}); err != nil {
				return
			}
			continue
		}

		switch msg.Msg {
		case "auth_response":
			if err := sess.send(map[string]string{"msg": "authenticated"}); err != nil {
				return
			}
		case "request_state":
			view := sess.srv.mgr.RenderState(msg.Tag)
			if err := sess.send(map[string]any{"msg": "state", "state": view}); err != nil {
				return
			}
		case "push_commands":
			if err := sess.srv.mgr.PushCommands(msg.Cmds); err != nil {
				slog.Error("push rejected", "session", sess.id, "error", err)
				if err := sess.send(map[string]string{"msg": "command_rejected"}); err != nil {
					return
				}
			}
		default:
			slog.Warn("unknown message", "session", sess.id, "msg", msg.Msg)
		}
	}
}

// authenticate verifies the keyed MAC over this session's nonce. The
// bucket is consumed before any verification work, failing closed when
// drained.
func (sess *session) authenticate(msg clientMessage) error {
	sess.mu.Lock()
	defer sess.mu.Unlock()
	if sess.authenticated {
		return nil
	}

	if err := sess.srv.bucket.Consume(); err != nil {
		return errBadCredentials
	}
	mac, err := hex.DecodeString(msg.MAC)
	if err != nil {
		return errBadCredentials
	}
	h := hmac.New(sha256.New, sess.srv.secret)
	h.Write([]byte(sess.nonce))
	if !hmac.Equal(mac, h.Sum(nil)) {
		return errBadCredentials
	}

	sess.authenticated = true
	return nil
}

// notifyNewState tells an authenticated client to re-request state.
func (sess *session) notifyNewState() {
	sess.mu.Lock()
	authed := sess.authenticated
	sess.mu.Unlock()
	if !authed {
		return
	}
	if err := sess.send(map[string]string{"msg": "new_state"}); err != nil {
		slog.Debug("notify failed", "session", sess.id, "error", err)
	}
}

// send serializes writes; gorilla allows only one concurrent writer.
func (sess *session) send(v any) error {
	sess.mu.Lock()
	defer sess.mu.Unlock()
	return sess.conn.WriteJSON(v)
}
