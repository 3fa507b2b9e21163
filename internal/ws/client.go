package ws

import (
	"sync"
	"time"
	"unicode/utf8"

	"github.com/gorilla/websocket"
)

// control frames carry at most 125 bytes, two of them for the code
const maxCloseReason = 123

// Client is one websocket connection. Outbound payloads go through a bounded
// queue drained by WritePump, so a slow peer never blocks a broadcaster.
type Client struct {
	Info ConnInfo

	conn   *websocket.Conn
	send   chan []byte
	closed chan struct{}

	closeOnce   sync.Once
	closeCode   int
	closeReason string
}

func NewClient(conn *websocket.Conn, info ConnInfo, buffer int) *Client {
	if buffer <= 0 {
		buffer = 64
	}
	return &Client{
		Info:   info,
		conn:   conn,
		send:   make(chan []byte, buffer),
		closed: make(chan struct{}),
	}
}

// enqueue reports false when the client is closed or its queue is full.
func (c *Client) enqueue(payload []byte) bool {
	select {
	case <-c.closed:
		return false
	default:
	}
	select {
	case c.send <- payload:
		return true
	default:
		return false
	}
}

// Close asks the write pump to send a close frame and stop. Only the first call
// has an effect.
func (c *Client) Close(code int, reason string) {
	reason = truncateReason(reason)
	c.closeOnce.Do(func() {
		c.closeCode = code
		c.closeReason = reason
		close(c.closed)
	})
}

// Done is closed once Close has been called.
func (c *Client) Done() <-chan struct{} {
	return c.closed
}

// WritePump owns all writes to the connection until the client closes or a
// write fails.
func (c *Client) WritePump(writeTimeout, pingPeriod time.Duration) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		_ = c.conn.Close()
	}()

	for {
		select {
		case payload := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
			if err := c.conn.WriteMessage(websocket.TextMessage, payload); err != nil {
				c.Close(websocket.CloseAbnormalClosure, err.Error())
				return
			}
		case <-ticker.C:
			if err := c.conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeTimeout)); err != nil {
				c.Close(websocket.CloseAbnormalClosure, err.Error())
				return
			}
		case <-c.closed:
			c.flush(writeTimeout)
			msg := websocket.FormatCloseMessage(c.closeCode, c.closeReason)
			_ = c.conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(writeTimeout))
			return
		}
	}
}

// flush writes whatever is already queued, without waiting for more.
func (c *Client) flush(writeTimeout time.Duration) {
	for {
		select {
		case payload := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
			if err := c.conn.WriteMessage(websocket.TextMessage, payload); err != nil {
				return
			}
		default:
			return
		}
	}
}

// truncateReason cuts reason to maxCloseReason bytes without splitting a rune.
func truncateReason(reason string) string {
	if len(reason) <= maxCloseReason {
		return reason
	}
	cut := maxCloseReason
	for cut > 0 && !utf8.RuneStart(reason[cut]) {
		cut--
	}
	return reason[:cut]
}
