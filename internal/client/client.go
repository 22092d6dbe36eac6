// Package client is the Go SDK for the Mila API: session handling, list and
// item operations, and per-list change subscriptions.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/dukerupert/mila/internal/shopping"
)

// Config holds the client configuration. URL and AnonKey are required.
type Config struct {
	URL        string
	AnonKey    string
	HTTPClient *http.Client
	Storage    SessionStorage
}

// Client talks to one Mila server on behalf of at most one signed-in user.
// It is safe for concurrent use.
type Client struct {
	baseURL    *url.URL
	anonKey    string
	httpClient *http.Client
	storage    SessionStorage

	mu        sync.RWMutex
	session   *Session
	listeners map[int]func(AuthEvent, *Session)
	nextID    int

	refreshMu sync.Mutex
}

var (
	ErrMissingURL     = errors.New("client: server URL is required")
	ErrMissingAnonKey = errors.New("client: anon key is required")

	// ErrStreamLagged ends a subscription whose reader fell behind the
	// server. Fetch the list again and resubscribe.
	ErrStreamLagged = errors.New("client: change stream fell behind")
)

func New(cfg Config) (*Client, error) {
	if cfg.URL == "" {
		return nil, ErrMissingURL
	}
	if cfg.AnonKey == "" {
		return nil, ErrMissingAnonKey
	}
	u, err := url.Parse(strings.TrimRight(cfg.URL, "/"))
	if err != nil {
		return nil, fmt.Errorf("parse server url: %w", err)
	}
	if cfg.HTTPClient == nil {
		cfg.HTTPClient = &http.Client{Timeout: 15 * time.Second}
	}
	if cfg.Storage == nil {
		cfg.Storage = NewMemoryStorage()
	}
	return &Client{
		baseURL:    u,
		anonKey:    cfg.AnonKey,
		httpClient: cfg.HTTPClient,
		storage:    cfg.Storage,
		listeners:  make(map[int]func(AuthEvent, *Session)),
	}, nil
}

func (c *Client) endpoint(path string, query url.Values) string {
	u := *c.baseURL
	u.Path = u.Path + path
	if query != nil {
		u.RawQuery = query.Encode()
	}
	return u.String()
}

// do sends a JSON request. token is the bearer access token, or "" for
// endpoints that only need the anon key. out may be nil.
func (c *Client) do(ctx context.Context, op, method, path string, query url.Values, token string, body, out any) error {
	var r io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("marshal request: %w", err)
		}
		r = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.endpoint(path, query), r)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("apikey", c.anonKey)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return &shopping.TransportError{Op: op, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		return statusError(op, resp)
	}
	if out == nil || resp.StatusCode == http.StatusNoContent {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return &shopping.TransportError{Op: op, Status: resp.StatusCode, Err: fmt.Errorf("decode response: %w", err)}
	}
	return nil
}

// statusError maps a failed response back onto the shopping error taxonomy.
// The server's message is kept as-is.
func statusError(op string, resp *http.Response) error {
	var body struct {
		Error string `json:"error"`
	}
	data, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	if json.Unmarshal(data, &body) != nil || body.Error == "" {
		body.Error = strings.TrimSpace(string(data))
	}
	if body.Error == "" {
		body.Error = http.StatusText(resp.StatusCode)
	}

	switch resp.StatusCode {
	case http.StatusUnauthorized:
		return fmt.Errorf("%s: %s: %w", op, body.Error, shopping.ErrUnauthenticated)
	case http.StatusNotFound:
		return fmt.Errorf("%s: %w", op, shopping.ErrNotFound)
	case http.StatusBadRequest, http.StatusConflict, http.StatusUnprocessableEntity:
		return &shopping.ValidationError{Message: body.Error}
	default:
		return &shopping.TransportError{Op: op, Status: resp.StatusCode, Err: errors.New(body.Error)}
	}
}
