package ws

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

const (
	sendBufferSize   = 256
	writeWait        = 10 * time.Second
	maxInboundFrame  = 1 << 16
	pingWriteTimeout = 5 * time.Second
)

// Client is one live websocket connection. Identity lives in the hub
// registry, not here; the client only owns the transport and its outbound
// queue.
type Client struct {
	hub    *Hub
	conn   *websocket.Conn
	send   chan []byte
	connID string
	ip     string

	closeOnce sync.Once
}

func newClient(hub *Hub, conn *websocket.Conn, ip string) *Client {
	return &Client{
		hub:    hub,
		conn:   conn,
		send:   make(chan []byte, sendBufferSize),
		connID: newConnID(),
		ip:     ip,
	}
}

// close shuts the underlying transport exactly once. The hub closes the send
// channel separately, under its own lock.
func (c *Client) close() {
	c.closeOnce.Do(func() {
		if c.conn != nil {
			_ = c.conn.Close()
		}
	})
}

// ping sends a liveness probe. Safe to call concurrently with the write pump.
func (c *Client) ping() error {
	if c.conn == nil {
		return nil
	}
	return c.conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(pingWriteTimeout))
}

// readPump reads inbound frames and dispatches them to the hub. It drives
// the connection's close path on any read failure.
func (c *Client) readPump() {
	defer func() {
		c.hub.Disconnect(c, "read loop ended")
		c.close()
	}()

	c.conn.SetReadLimit(maxInboundFrame)
	c.conn.SetPongHandler(func(string) error {
		c.hub.markAlive(c)
		return nil
	})

	ctx := context.Background()
	for {
		_, raw, err := c.conn.ReadMessage()
		if err != nil {
			if !websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				c.hub.noteTransportError(c, err)
			}
			return
		}
		c.hub.HandleEvent(ctx, c, raw)
	}
}

// writePump drains the send queue. A closed send channel means the hub has
// dropped this connection; a close frame is written and the pump exits.
func (c *Client) writePump() {
	defer c.close()

	for message := range c.send {
		_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
		if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
			c.hub.Disconnect(c, "write failed: "+err.Error())
			return
		}
	}

	_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
	_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
}

func newConnID() string {
	buf := make([]byte, 16)
	if _, err := rand.Read(buf); err != nil {
		return ""
	}
	return hex.EncodeToString(buf)
}
