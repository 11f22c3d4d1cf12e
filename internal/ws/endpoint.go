// Package ws hosts the transport endpoint the wallet popup connects back to.
// At most one wallet session is live at a time; every inbound frame is handed
// to the sink together with its transport-level sender origin.
package ws

import (
	"errors"
	"log"
	"net/http"
	"sync"

	"github.com/gorilla/websocket"

	"github.com/blendizzard/walletbridge/internal/protocol"
)

// ErrNoSession is returned by Post when the wallet page has not connected
// back yet (or its connection dropped).
var ErrNoSession = errors.New("no wallet session")

// Sink receives every frame that arrives on the wallet socket. origin is the
// Origin header of the session's handshake, i.e. the transport-level sender
// origin, not anything the message body claims.
type Sink interface {
	HandleInbound(origin string, data []byte)
}

type session struct {
	conn   *websocket.Conn
	origin string

	mu sync.Mutex // serializes writes
}

func (s *session) writeJSON(v any) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.conn.WriteJSON(v)
}

// Endpoint upgrades wallet connections and tracks the single live session.
type Endpoint struct {
	walletOrigin string
	sink         Sink
	upgrader     websocket.Upgrader

	mu     sync.Mutex
	sess   *session
	lost   bool // a session existed this episode and went away
	closed bool
	onLost func()
}

// NewEndpoint builds an endpoint that only accepts handshakes whose Origin
// header equals walletOrigin.
func NewEndpoint(walletOrigin string, sink Sink) *Endpoint {
	e := &Endpoint{walletOrigin: walletOrigin, sink: sink}
	e.upgrader = websocket.Upgrader{
		CheckOrigin: func(r *http.Request) bool {
			origin := r.Header.Get("Origin")
			if origin != walletOrigin {
				log.Printf("reject wallet handshake: origin=%s want=%s remote=%s", origin, walletOrigin, r.RemoteAddr)
				return false
			}
			return true
		},
	}
	return e
}

// SetOnLost registers the callback fired when the live session drops.
func (e *Endpoint) SetOnLost(fn func()) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.onLost = fn
}

// HandleWallet is the HTTP handler the wallet popup connects to.
func (e *Endpoint) HandleWallet(w http.ResponseWriter, r *http.Request) {
	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		http.Error(w, "bridge shut down", http.StatusGone)
		return
	}
	if e.sess != nil {
		e.mu.Unlock()
		log.Printf("refuse second wallet session: remote=%s", r.RemoteAddr)
		http.Error(w, "wallet already connected", http.StatusConflict)
		return
	}
	e.mu.Unlock()

	conn, err := e.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("upgrade wallet ws failed: %v", err)
		return
	}
	sess := &session{conn: conn, origin: r.Header.Get("Origin")}

	e.mu.Lock()
	if e.closed || e.sess != nil {
		e.mu.Unlock()
		_ = conn.Close()
		return
	}
	e.sess = sess
	e.lost = false
	e.mu.Unlock()

	log.Printf("wallet connected: origin=%s remote=%s", sess.origin, r.RemoteAddr)
	e.readLoop(sess)
}

func (e *Endpoint) readLoop(sess *session) {
	defer func() {
		_ = sess.conn.Close()

		e.mu.Lock()
		var onLost func()
		if e.sess == sess {
			e.sess = nil
			e.lost = true
			onLost = e.onLost
		}
		e.mu.Unlock()

		log.Printf("wallet disconnected: origin=%s", sess.origin)
		if onLost != nil {
			onLost()
		}
	}()

	for {
		_, data, err := sess.conn.ReadMessage()
		if err != nil {
			return
		}
		e.sink.HandleInbound(sess.origin, data)
	}
}

// Post sends an outbound message to the connected wallet page. The message
// only ever goes to the session whose handshake passed the origin check, so
// there is no wildcard delivery path.
func (e *Endpoint) Post(msg protocol.Message) error {
	e.mu.Lock()
	sess := e.sess
	e.mu.Unlock()
	if sess == nil {
		return ErrNoSession
	}
	return sess.writeJSON(msg)
}

// Lost reports whether this episode's session existed and went away.
func (e *Endpoint) Lost() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.lost
}

// Reset arms the endpoint for a new popup episode, dropping any session
// still attached to the previous one.
func (e *Endpoint) Reset() {
	e.mu.Lock()
	sess := e.sess
	e.sess = nil
	e.lost = false
	e.mu.Unlock()
	if sess != nil {
		_ = sess.conn.Close()
	}
}

// CloseSession closes the wallet connection; the wallet page closes its own
// window when its socket drops.
func (e *Endpoint) CloseSession() {
	e.mu.Lock()
	sess := e.sess
	e.mu.Unlock()
	if sess != nil {
		_ = sess.conn.Close()
	}
}

// Shutdown closes the session and refuses all future handshakes.
func (e *Endpoint) Shutdown() {
	e.mu.Lock()
	e.closed = true
	sess := e.sess
	e.sess = nil
	e.mu.Unlock()
	if sess != nil {
		_ = sess.conn.Close()
	}
}
