// Package server manages individual chat sessions, handling read/write
// pumps, inbound line classification, and lifecycle control for each
// WebSocket connection.
package server

import (
	"context"
	"errors"
	"io"
	"log"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

const (
	// Time allowed to write a message to the peer.
	writeWait = 10 * time.Second

	// Time allowed to read the next pong message from the peer.
	pongWait = 60 * time.Second

	// Send pings to peer with this period. Must be less than pongWait.
	pingPeriod = 54 * time.Second
)

// Client is one chat session: a live WebSocket connection bound to the
// username chosen at connect time. It owns its connection and outbound
// queue; every effect on other participants goes through the Router.
type Client struct {
	id       string
	conn     *websocket.Conn
	send     chan []byte
	router   *Router
	username string
	addr     string

	// closed guards send after closeSend. Both enqueue and closeSend are
	// only ever called while holding the Router lock, which is what makes
	// the flag safe.
	closed bool

	maxMessageSize int64
}

// NewClient creates a session for an upgraded connection. The session is
// inert until the Router starts its pumps.
func NewClient(conn *websocket.Conn, router *Router, username, addr string) *Client {
	cfg := currentConfig()
	if conn != nil {
		conn.SetReadLimit(cfg.MaxMessageSize)
	}

	return &Client{
		id:       uuid.NewString(),
		conn:     conn,
		send:     make(chan []byte, cfg.SendBuffer),
		router:   router,
		username: username,
		addr:     addr,

		maxMessageSize: cfg.MaxMessageSize,
	}
}

// Username returns the name this session joined with.
func (c *Client) Username() string {
	return c.username
}

// enqueue hands a line to the write pump. It reports false when the session
// is closing or its buffer is full. Callers must hold the Router lock.
func (c *Client) enqueue(text string) bool {
	if c.closed {
		return false
	}
	select {
	case c.send <- []byte(text):
		return true
	default:
		return false
	}
}

// closeSend marks the session closed and releases the write pump. Callers
// must hold the Router lock.
func (c *Client) closeSend() {
	if c.closed {
		return
	}
	c.closed = true
	close(c.send)
}

// closeConn closes the underlying connection, unblocking any pending read.
func (c *Client) closeConn() {
	if c.conn == nil {
		return
	}
	if err := c.conn.Close(); err != nil {
		if !isExpectedCloseError(err) {
			log.Printf("Error closing connection for session %s: %v", c.id, err)
		}
	}
}

// setupReadConnection configures read deadlines and the pong handler.
func (c *Client) setupReadConnection() {
	if err := c.conn.SetReadDeadline(time.Now().Add(pongWait)); err != nil {
		log.Printf("Error setting initial read deadline for %s: %v", c.addr, err)
	}
	c.conn.SetPongHandler(func(string) error {
		if err := c.conn.SetReadDeadline(time.Now().Add(pongWait)); err != nil {
			log.Printf("Error setting read deadline in pong handler for %s: %v", c.addr, err)
		}
		return nil
	})
}

// readPump drives the session state machine: announce the join, then loop
// over inbound lines until the transport closes, then announce the leave.
func (c *Client) readPump() {
	defer func() {
		c.router.AnnounceLeave(c)
		c.closeConn()
	}()

	c.setupReadConnection()

	if err := c.router.AnnounceJoin(context.Background(), c, c.username); err != nil {
		log.Printf("Session %s from %s could not join as %q: %v", c.id, c.addr, c.username, err)
		return
	}

	for {
		_, raw, err := c.conn.ReadMessage()
		if err != nil {
			c.logReadEnd(err)
			break
		}
		c.handleLine(string(raw))
	}
}

// logReadEnd classifies the error that ended the read loop. Any read error
// means the session is leaving; the distinction is purely for the logs.
func (c *Client) logReadEnd(err error) {
	switch {
	case errors.Is(err, websocket.ErrReadLimit):
		log.Printf("Session %s sent a message over the %d byte limit; disconnecting", c.id, c.maxMessageSize)
	case websocket.IsCloseError(err,
		websocket.CloseNormalClosure,
		websocket.CloseGoingAway,
		websocket.CloseAbnormalClosure):
		log.Printf("Session %s (%q) disconnected: %v", c.id, c.username, err)
	case errors.Is(err, io.EOF), isExpectedCloseError(err):
		log.Printf("Session %s (%q) connection closed: %v", c.id, c.username, err)
	default:
		log.Printf("WebSocket read error for session %s (%q): %v", c.id, c.username, err)
	}
}

// handleLine classifies one inbound line: a private command is routed to a
// single recipient, anything else is recorded and broadcast.
func (c *Client) handleLine(line string) {
	if strings.HasPrefix(line, privateCommand) {
		c.handlePrivate(line)
		return
	}
	c.router.RecordAndBroadcast(context.Background(), c.username, line)
}

// handlePrivate parses "/private <username> <message...>". The remainder
// keeps its embedded spaces. A malformed command gets a local usage line;
// it never terminates the connection.
func (c *Client) handlePrivate(line string) {
	parts := strings.SplitN(line, " ", 3)
	if len(parts) < 3 {
		c.router.sendSystem(c, "Usage: /private <username> <message>")
		return
	}
	c.router.SendPrivate(c.username, parts[1], parts[2])
}

// writePump drains the outbound queue onto the connection and keeps the
// peer alive with periodic pings.
func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.closeConn()
	}()

	for {
		select {
		case message, ok := <-c.send:
			if err := c.conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
				log.Printf("Error setting write deadline for %s: %v", c.addr, err)
				return
			}
			if !ok {
				c.writeCloseMessage()
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				if !isExpectedCloseError(err) {
					log.Printf("Error writing to session %s (%q): %v", c.id, c.username, err)
				}
				return
			}

		case <-ticker.C:
			if err := c.conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
				log.Printf("Error setting write deadline for ping to %s: %v", c.addr, err)
				return
			}
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// writeCloseMessage sends a close frame after the outbound queue is drained.
func (c *Client) writeCloseMessage() {
	if err := c.conn.WriteMessage(websocket.CloseMessage, []byte{}); err != nil {
		if !isExpectedCloseError(err) {
			log.Printf("Error writing close message to %s: %v", c.addr, err)
		}
	}
}
