package ws

import (
	"errors"
	"sync"

	"github.com/gorilla/websocket"

	"github.com/ytanalyzer/oauth-relay/internal/session"
)

// ErrRegistryFull is returned by Add when the configured connection
// limit is reached. The caller should refuse the socket; polling still
// works, so a rejected client is degraded, not locked out.
var ErrRegistryFull = errors.New("websocket connection limit reached")

// Registry tracks the live notification channels per session id so the
// callback handler can fan a terminal outcome out to every listener.
// It is a side index only: it never owns session records, and an entry
// is dropped as soon as the session expires or the handler exits.
type Registry struct {
	mu       sync.RWMutex
	conns    map[string]map[*client]bool
	maxConns int
	sendBuf  int
}

// NewRegistry creates a registry. maxConns caps concurrent channels
// across all sessions (0 means unlimited); sendBuf sizes each client's
// outgoing message buffer.
func NewRegistry(maxConns, sendBuf int) *Registry {
	if sendBuf <= 0 {
		sendBuf = 64
	}
	return &Registry{
		conns:    make(map[string]map[*client]bool),
		maxConns: maxConns,
		sendBuf:  sendBuf,
	}
}

// Add registers a new channel for the session and starts its write
// pump. Fails only when the connection limit is hit.
func (r *Registry) Add(id string, conn *websocket.Conn) (*client, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.maxConns > 0 && r.countLocked() >= r.maxConns {
		return nil, ErrRegistryFull
	}

	c := newClient(conn, r.sendBuf)
	set, ok := r.conns[id]
	if !ok {
		set = make(map[*client]bool)
		r.conns[id] = set
	}
	set[c] = true
	return c, nil
}

// Remove unregisters the channel and stops its write pump. Safe to
// call after the session's entry was already dropped by a sweep; the
// pump is stopped either way so no goroutine outlives its handler.
func (r *Registry) Remove(id string, c *client) {
	r.mu.Lock()
	if set, ok := r.conns[id]; ok {
		delete(set, c)
		if len(set) == 0 {
			delete(r.conns, id)
		}
	}
	r.mu.Unlock()
	c.close()
}

// DropSessions forgets the connection sets of expired sessions. The
// channels themselves stay open; their wait loops notice the missing
// session on the next keep-alive cycle and tell the peer it expired.
func (r *Registry) DropSessions(ids []string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, id := range ids {
		delete(r.conns, id)
	}
}

// Broadcast offers the outcome to every channel registered for the
// session. Delivery is best effort and per-channel isolated: a peer
// that vanished or stopped reading is skipped, never an error. The
// callback path must not fail because a listener did.
func (r *Registry) Broadcast(id string, o session.Outcome) {
	r.mu.RLock()
	clients := make([]*client, 0, len(r.conns[id]))
	for c := range r.conns[id] {
		clients = append(clients, c)
	}
	r.mu.RUnlock()

	for _, c := range clients {
		select {
		case c.notify <- o:
		default:
			// Channel already has a pending outcome; first one wins.
		}
	}
}

// ClientCount reports the number of registered channels.
func (r *Registry) ClientCount() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.countLocked()
}

func (r *Registry) countLocked() int {
	n := 0
	for _, set := range r.conns {
		n += len(set)
	}
	return n
}
