package client

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"sync"

	ws "github.com/coder/websocket"
	"github.com/dukerupert/mila/internal/shopping"
	"github.com/dukerupert/mila/internal/websocket"
)

const subscriptionBuffer = 16

// Subscription is a live change stream for one list. Events is closed when
// the stream ends: after Close, when the subscribing context is done, when
// the list is deleted, when the server drops a reader that fell behind, or
// when the connection drops. Err tells those apart.
type Subscription struct {
	listID string
	conn   *ws.Conn
	events chan websocket.Event
	done   chan struct{}
	cancel context.CancelFunc

	closeOnce sync.Once
	mu        sync.Mutex
	err       error
}

// SubscribeToList opens a change stream for a list the caller owns. Events
// are not replayed; call GetList after subscribing for a starting snapshot.
func (c *Client) SubscribeToList(ctx context.Context, listID string) (*Subscription, error) {
	token, err := c.accessToken(ctx)
	if err != nil {
		return nil, err
	}

	u := *c.baseURL
	switch u.Scheme {
	case "https":
		u.Scheme = "wss"
	default:
		u.Scheme = "ws"
	}
	u.Path = u.Path + "/rest/v1/lists/" + url.PathEscape(listID) + "/subscribe"
	u.RawQuery = url.Values{"apikey": {c.anonKey}, "access_token": {token}}.Encode()

	conn, resp, err := ws.Dial(ctx, u.String(), nil)
	if err != nil {
		if resp != nil && resp.StatusCode >= 300 {
			return nil, statusError("subscribe to list", resp)
		}
		return nil, &shopping.TransportError{Op: "subscribe to list", Err: err}
	}

	readCtx, cancel := context.WithCancel(context.Background())
	sub := &Subscription{
		listID: listID,
		conn:   conn,
		events: make(chan websocket.Event, subscriptionBuffer),
		done:   make(chan struct{}),
		cancel: cancel,
	}
	go sub.readLoop(readCtx)
	context.AfterFunc(ctx, sub.Close)
	return sub, nil
}

func (s *Subscription) ListID() string { return s.listID }

func (s *Subscription) Events() <-chan websocket.Event { return s.events }

// Err reports why the stream ended. It is nil while the stream is open and
// after a normal close.
func (s *Subscription) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.err
}

// Close ends the stream. It is safe to call more than once.
func (s *Subscription) Close() {
	s.closeOnce.Do(func() {
		close(s.done)
		s.conn.Close(ws.StatusNormalClosure, "")
		s.cancel()
	})
}

func (s *Subscription) readLoop(ctx context.Context) {
	defer close(s.events)
	defer s.conn.CloseNow()

	for {
		_, data, err := s.conn.Read(ctx)
		if err != nil {
			s.finish(err)
			return
		}
		var ev websocket.Event
		if err := json.Unmarshal(data, &ev); err != nil {
			s.finish(fmt.Errorf("decode event: %w", err))
			return
		}
		select {
		case s.events <- ev:
		case <-s.done:
			return
		}
	}
}

func (s *Subscription) finish(err error) {
	select {
	case <-s.done:
		return
	default:
	}
	if ws.CloseStatus(err) == ws.StatusNormalClosure || errors.Is(err, context.Canceled) {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if ws.CloseStatus(err) == ws.StatusTryAgainLater {
		s.err = ErrStreamLagged
		return
	}
	s.err = &shopping.TransportError{Op: "read list changes", Err: err}
}
