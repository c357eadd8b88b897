package transport

import (
	"encoding/json"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

const (
	// Time allowed to write a message to the peer.
	writeWait = 10 * time.Second

	// Time allowed to read the next pong message from the peer.
	pongWait = 60 * time.Second

	// Send pings to peer with this period. Must be less than pongWait.
	pingPeriod = (pongWait * 9) / 10

	// Maximum message size allowed from peer.
	maxMessageSize = 64 * 1024

	// Size of the client send buffer.
	sendBufferSize = 256
)

// wsClient is one websocket connection attached to the gateway.
type wsClient struct {
	gateway *Gateway
	conn    *websocket.Conn
	send    chan Envelope

	mu     sync.Mutex
	closed bool
}

func newWSClient(g *Gateway, conn *websocket.Conn) *wsClient {
	return &wsClient{
		gateway: g,
		conn:    conn,
		send:    make(chan Envelope, sendBufferSize),
	}
}

// Send queues env for the write pump, dropping it when the buffer is full.
func (c *wsClient) Send(env Envelope) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return
	}

	select {
	case c.send <- env:
	default:
		log.Warnf("Send buffer full, dropping %s", env.Type)
	}
}

// Close closes the connection once.
func (c *wsClient) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return
	}

	c.closed = true
	close(c.send)
	_ = c.conn.Close()
}

// readPump reads frames until the connection fails, handing each to the
// gateway.
func (c *wsClient) readPump() {
	defer func() {
		select {
		case c.gateway.unregister <- c:
		case <-c.gateway.quit:
		}
	}()

	c.conn.SetReadLimit(maxMessageSize)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		msgType, data, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(
				err, websocket.CloseGoingAway,
				websocket.CloseAbnormalClosure,
			) {
				log.Debugf("Websocket read error: %v", err)
			}
			return
		}
		if msgType != websocket.TextMessage {
			continue
		}

		c.gateway.handleIncoming(c, data)
	}
}

// writePump writes queued envelopes and keeps the connection alive with
// pings.
func (c *wsClient) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		_ = c.conn.Close()
	}()

	for {
		select {
		case env, ok := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage, nil)
				return
			}

			data, err := json.Marshal(env)
			if err != nil {
				log.Errorf("Marshal %s: %v", env.Type, err)
				continue
			}

			err = c.conn.WriteMessage(websocket.TextMessage, data)
			if err != nil {
				log.Debugf("Websocket write error: %v", err)
				return
			}

		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			err := c.conn.WriteMessage(websocket.PingMessage, nil)
			if err != nil {
				return
			}
		}
	}
}
