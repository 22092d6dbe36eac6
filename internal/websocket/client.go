package websocket

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	ws "github.com/coder/websocket"
)

const (
	sendBufferSize = 16
	pingInterval   = 30 * time.Second
	writeTimeout   = 10 * time.Second
)

// Client bridges a Subscription onto a single WebSocket connection.
type Client struct {
	conn   *ws.Conn
	sub    *Subscription
	logger *slog.Logger
}

// NewClient creates a Client that forwards sub's events to conn.
func NewClient(conn *ws.Conn, sub *Subscription, logger *slog.Logger) *Client {
	return &Client{
		conn:   conn,
		sub:    sub,
		logger: logger,
	}
}

// Run starts the write pump and runs the read pump. It blocks until the
// connection is closed, then closes the subscription.
func (c *Client) Run(ctx context.Context) {
	defer c.sub.Close()

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	go func() {
		c.writePump(ctx)
		cancel()
	}()
	c.readPump(ctx)
}

// readPump reads and discards all incoming messages. It returns on error
// (connection close), which triggers cleanup.
func (c *Client) readPump(ctx context.Context) {
	for {
		_, _, err := c.conn.Read(ctx)
		if err != nil {
			return
		}
	}
}

// writePump drains the subscription and writes events to the WebSocket.
// It also sends periodic pings to detect stale connections.
func (c *Client) writePump(ctx context.Context) {
	ticker := time.NewTicker(pingInterval)
	defer ticker.Stop()

	for {
		select {
		case ev, ok := <-c.sub.Events():
			if !ok {
				if c.sub.Overflowed() {
					c.conn.Close(ws.StatusTryAgainLater, "fell behind, fetch the list again")
					return
				}
				c.conn.Close(ws.StatusNormalClosure, "subscription closed")
				return
			}
			data, err := json.Marshal(ev)
			if err != nil {
				c.logger.Error("marshal event", "error", err)
				continue
			}
			wctx, cancel := context.WithTimeout(ctx, writeTimeout)
			err = c.conn.Write(wctx, ws.MessageText, data)
			cancel()
			if err != nil {
				return
			}
		case <-ticker.C:
			if err := c.conn.Ping(ctx); err != nil {
				return
			}
		case <-ctx.Done():
			return
		}
	}
}
