package ws

import (
	"encoding/json"
	"log"
	"sync"

	"github.com/gorilla/websocket"

	"github.com/ytanalyzer/oauth-relay/internal/session"
)

type client struct {
	conn *websocket.Conn
	send chan []byte
	// notify carries a pushed terminal outcome from Registry.Broadcast
	// to the connection's wait loop. Capacity 1: a session resolves at
	// most once.
	notify    chan session.Outcome
	closeOnce sync.Once
}

func newClient(conn *websocket.Conn, sendBuf int) *client {
	c := &client{
		conn:   conn,
		send:   make(chan []byte, sendBuf),
		notify: make(chan session.Outcome, 1),
	}
	go c.writePump()
	return c
}

// writePump is the sole writer on the connection. It drains the send
// channel until close() and, if the peer is still there, follows the
// last message with a normal close frame.
func (c *client) writePump() {
	defer c.conn.Close()
	for msg := range c.send {
		if err := c.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
			return
		}
	}
	msg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")
	_ = c.conn.WriteMessage(websocket.CloseMessage, msg)
}

// enqueue marshals msg onto the send channel without blocking. A full
// buffer means the peer stopped reading long ago; the message is
// dropped rather than stalling the caller.
func (c *client) enqueue(msg statusMessage) {
	data, err := json.Marshal(msg)
	if err != nil {
		log.Printf("ws marshal error: %v", err)
		return
	}
	select {
	case c.send <- data:
	default:
		log.Printf("ws client not reading, dropping %s message", msg.Status)
	}
}

// close stops the write pump. Safe to call more than once: Remove runs
// on every handler exit path, including after a sweep already dropped
// the session's connection set.
func (c *client) close() {
	c.closeOnce.Do(func() {
		close(c.send)
	})
}
