package server

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/hallfield/homehub-core/internal/infrastructure/config"
	"github.com/hallfield/homehub-core/internal/infrastructure/logging"
)

// errSendBufferFull marks a client that cannot drain its send queue.
var errSendBufferFull = errors.New("server: client send buffer full")

// errClientClosed marks a send attempted after teardown began.
var errClientClosed = errors.New("server: client closed")

// Client is one WebSocket connection. The read pump processes commands
// strictly in arrival order; the write pump serialises direct responses
// and broadcasts onto the socket through a buffered channel.
type Client struct {
	sessionID  string
	conn       *websocket.Conn
	dispatcher *Dispatcher
	logger     *logging.Logger
	wsCfg      config.WebSocketConfig

	send chan []byte
	done chan struct{}
	once sync.Once
}

func newClient(sessionID string, conn *websocket.Conn, dispatcher *Dispatcher, wsCfg config.WebSocketConfig, logger *logging.Logger) *Client {
	return &Client{
		sessionID:  sessionID,
		conn:       conn,
		dispatcher: dispatcher,
		logger:     logger,
		wsCfg:      wsCfg,
		send:       make(chan []byte, wsCfg.SendBuffer),
		done:       make(chan struct{}),
	}
}

// Send queues a message for delivery without blocking. A full buffer
// means the client is too slow to keep up; the message is dropped and
// the caller informed.
func (c *Client) Send(data []byte) error {
	select {
	case <-c.done:
		return errClientClosed
	default:
	}
	select {
	case c.send <- data:
		return nil
	default:
		return errSendBufferFull
	}
}

// close makes teardown idempotent across both pumps.
func (c *Client) close() {
	c.once.Do(func() {
		close(c.done)
		c.conn.Close() //nolint:errcheck // teardown
	})
}

// readPump consumes client commands one at a time. Each command's direct
// response is queued before the next command is read, so responses keep
// command order.
func (c *Client) readPump(ctx context.Context) {
	defer c.close()

	c.conn.SetReadLimit(int64(c.wsCfg.MaxMessageSize))
	pongWait := time.Duration(c.wsCfg.PingInterval+c.wsCfg.PongTimeout) * time.Second
	c.conn.SetReadDeadline(time.Now().Add(pongWait)) //nolint:errcheck // deadline on live conn
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, raw, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				c.logger.Debug("websocket read error",
					"session_id", c.sessionID, "error", err)
			}
			return
		}

		resp := c.dispatcher.Dispatch(ctx, c.sessionID, raw)
		if err := c.Send(resp); err != nil {
			c.logger.Warn("dropping client, response undeliverable",
				"session_id", c.sessionID, "error", err)
			return
		}
	}
}

// writePump drains the send queue onto the socket and keeps the
// connection alive with periodic pings.
func (c *Client) writePump() {
	pingInterval := time.Duration(c.wsCfg.PingInterval) * time.Second
	writeWait := time.Duration(c.wsCfg.PongTimeout) * time.Second
	ticker := time.NewTicker(pingInterval)
	defer func() {
		ticker.Stop()
		c.close()
	}()

	for {
		select {
		case data := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait)) //nolint:errcheck // deadline on live conn
			if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
				return
			}
		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait)) //nolint:errcheck // deadline on live conn
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		case <-c.done:
			return
		}
	}
}
