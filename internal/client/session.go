package client

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"time"

	"github.com/dukerupert/mila/internal/model"
	"github.com/dukerupert/mila/internal/shopping"
	"github.com/golang-jwt/jwt/v5"
)

// refreshMargin is how close to expiry an access token gets refreshed before
// use.
const refreshMargin = 30 * time.Second

type AuthEvent string

const (
	SignedIn       AuthEvent = "SIGNED_IN"
	SignedOut      AuthEvent = "SIGNED_OUT"
	TokenRefreshed AuthEvent = "TOKEN_REFRESHED"
)

// Session is a signed-in user's token pair as returned by the auth API.
type Session struct {
	AccessToken  string      `json:"access_token"`
	TokenType    string      `json:"token_type"`
	ExpiresIn    int         `json:"expires_in"`
	ExpiresAt    int64       `json:"expires_at"`
	RefreshToken string      `json:"refresh_token"`
	User         *model.User `json:"user"`
}

// Expiry is when the access token stops being accepted.
func (s *Session) Expiry() time.Time {
	return time.Unix(s.ExpiresAt, 0)
}

func (s *Session) expiresWithin(d time.Duration) bool {
	return time.Until(s.Expiry()) < d
}

// CurrentSession returns a copy of the session, or nil when signed out.
func (c *Client) CurrentSession() *Session {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.session == nil {
		return nil
	}
	s := *c.session
	return &s
}

// CurrentUser returns the signed-in user, or nil.
func (c *Client) CurrentUser() *model.User {
	s := c.CurrentSession()
	if s == nil {
		return nil
	}
	return s.User
}

// OnAuthStateChange registers fn for sign-in, sign-out and token refresh
// events. The returned func removes it.
func (c *Client) OnAuthStateChange(fn func(AuthEvent, *Session)) (unsubscribe func()) {
	c.mu.Lock()
	id := c.nextID
	c.nextID++
	c.listeners[id] = fn
	c.mu.Unlock()

	return func() {
		c.mu.Lock()
		delete(c.listeners, id)
		c.mu.Unlock()
	}
}

// setSession replaces the current session, persists it, and notifies
// listeners. A nil session signs out.
func (c *Client) setSession(s *Session, ev AuthEvent) error {
	c.mu.Lock()
	c.session = s
	fns := make([]func(AuthEvent, *Session), 0, len(c.listeners))
	for _, fn := range c.listeners {
		fns = append(fns, fn)
	}
	c.mu.Unlock()

	var err error
	if s == nil {
		err = c.storage.Clear()
	} else {
		err = c.storage.Save(s)
	}
	if err != nil {
		err = fmt.Errorf("persist session: %w", err)
	}

	for _, fn := range fns {
		var cp *Session
		if s != nil {
			v := *s
			cp = &v
		}
		fn(ev, cp)
	}
	return err
}

// Restore loads a persisted session, refreshing it if the access token has
// expired. A session whose refresh token is no longer accepted is dropped.
func (c *Client) Restore(ctx context.Context) (*Session, error) {
	s, err := c.storage.Load()
	if err != nil {
		return nil, fmt.Errorf("load session: %w", err)
	}
	if s == nil || s.RefreshToken == "" {
		return nil, nil
	}

	if !s.expiresWithin(refreshMargin) {
		if err := c.setSession(s, SignedIn); err != nil {
			return nil, err
		}
		return c.CurrentSession(), nil
	}

	refreshed, err := c.refresh(ctx, s.RefreshToken)
	if errors.Is(err, shopping.ErrUnauthenticated) {
		c.storage.Clear()
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	if err := c.setSession(refreshed, SignedIn); err != nil {
		return nil, err
	}
	return c.CurrentSession(), nil
}

type credentials struct {
	Email    string `json:"email"`
	Password string `json:"password"`
	FullName string `json:"full_name,omitempty"`
}

// SignUp registers an account and signs it in.
func (c *Client) SignUp(ctx context.Context, email, password, fullName string) (*Session, error) {
	var s Session
	err := c.do(ctx, "sign up", "POST", "/auth/v1/signup", nil, "",
		credentials{Email: email, Password: password, FullName: fullName}, &s)
	if err != nil {
		return nil, err
	}
	if err := c.setSession(&s, SignedIn); err != nil {
		return nil, err
	}
	return c.CurrentSession(), nil
}

func (c *Client) SignInWithPassword(ctx context.Context, email, password string) (*Session, error) {
	var s Session
	err := c.do(ctx, "sign in", "POST", "/auth/v1/token", url.Values{"grant_type": {"password"}}, "",
		credentials{Email: email, Password: password}, &s)
	if err != nil {
		return nil, err
	}
	if err := c.setSession(&s, SignedIn); err != nil {
		return nil, err
	}
	return c.CurrentSession(), nil
}

// SignOut ends the session on the server and locally. The local session is
// dropped even if the server call fails.
func (c *Client) SignOut(ctx context.Context) error {
	s := c.CurrentSession()
	if s == nil {
		return nil
	}
	err := c.do(ctx, "sign out", "POST", "/auth/v1/logout", nil, s.AccessToken, nil, nil)
	if errors.Is(err, shopping.ErrUnauthenticated) {
		err = nil
	}
	if perr := c.setSession(nil, SignedOut); perr != nil && err == nil {
		err = perr
	}
	return err
}

func (c *Client) refresh(ctx context.Context, refreshToken string) (*Session, error) {
	var s Session
	err := c.do(ctx, "refresh session", "POST", "/auth/v1/token", url.Values{"grant_type": {"refresh_token"}}, "",
		map[string]string{"refresh_token": refreshToken}, &s)
	if err != nil {
		return nil, err
	}
	return &s, nil
}

// RefreshSession trades the refresh token for a new token pair. If the server
// rejects it the client signs out.
func (c *Client) RefreshSession(ctx context.Context) (*Session, error) {
	c.refreshMu.Lock()
	defer c.refreshMu.Unlock()
	return c.refreshLocked(ctx)
}

func (c *Client) refreshLocked(ctx context.Context) (*Session, error) {
	cur := c.CurrentSession()
	if cur == nil {
		return nil, shopping.ErrUnauthenticated
	}

	s, err := c.refresh(ctx, cur.RefreshToken)
	if errors.Is(err, shopping.ErrUnauthenticated) {
		c.setSession(nil, SignedOut)
		return nil, err
	}
	if err != nil {
		return nil, err
	}
	if err := c.setSession(s, TokenRefreshed); err != nil {
		return nil, err
	}
	return c.CurrentSession(), nil
}

// accessToken returns a usable access token, refreshing it first when it is
// about to expire.
func (c *Client) accessToken(ctx context.Context) (string, error) {
	s := c.CurrentSession()
	if s == nil {
		return "", shopping.ErrUnauthenticated
	}
	if !s.expiresWithin(refreshMargin) {
		return s.AccessToken, nil
	}

	c.refreshMu.Lock()
	defer c.refreshMu.Unlock()
	// another caller may have refreshed while we waited
	if s = c.CurrentSession(); s != nil && !s.expiresWithin(refreshMargin) {
		return s.AccessToken, nil
	}
	s, err := c.refreshLocked(ctx)
	if err != nil {
		return "", err
	}
	return s.AccessToken, nil
}

// SetSession adopts a token pair obtained elsewhere, such as from an OAuth
// callback. The access token's expiry is read from its claims and the user is
// fetched from the server; an already expired token is refreshed instead.
func (c *Client) SetSession(ctx context.Context, accessToken, refreshToken string) (*Session, error) {
	if accessToken == "" || refreshToken == "" {
		return nil, &shopping.ValidationError{Field: "session", Message: "access and refresh token are required"}
	}

	var claims jwt.RegisteredClaims
	if _, _, err := jwt.NewParser().ParseUnverified(accessToken, &claims); err != nil {
		return nil, &shopping.ValidationError{Field: "access_token", Message: "malformed access token"}
	}
	s := &Session{AccessToken: accessToken, RefreshToken: refreshToken, TokenType: "bearer"}
	if claims.ExpiresAt != nil {
		s.ExpiresAt = claims.ExpiresAt.Unix()
		s.ExpiresIn = int(time.Until(claims.ExpiresAt.Time).Seconds())
	}

	if s.expiresWithin(refreshMargin) {
		refreshed, err := c.refresh(ctx, refreshToken)
		if err != nil {
			return nil, err
		}
		s = refreshed
	} else {
		var u model.User
		if err := c.do(ctx, "get user", "GET", "/auth/v1/user", nil, accessToken, nil, &u); err != nil {
			return nil, err
		}
		s.User = &u
	}

	if err := c.setSession(s, SignedIn); err != nil {
		return nil, err
	}
	return c.CurrentSession(), nil
}

// ParseCallbackFragment extracts the token pair from an OAuth redirect URL of
// the form ...#access_token=...&refresh_token=...
func ParseCallbackFragment(rawURL string) (accessToken, refreshToken string, err error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return "", "", fmt.Errorf("parse callback url: %w", err)
	}
	vals, err := url.ParseQuery(u.Fragment)
	if err != nil {
		return "", "", fmt.Errorf("parse callback fragment: %w", err)
	}
	if msg := vals.Get("error_description"); msg != "" {
		return "", "", fmt.Errorf("sign in failed: %s", msg)
	}
	if msg := vals.Get("error"); msg != "" {
		return "", "", fmt.Errorf("sign in failed: %s", msg)
	}

	accessToken = vals.Get("access_token")
	refreshToken = vals.Get("refresh_token")
	if accessToken == "" || refreshToken == "" {
		return "", "", errors.New("callback url carries no session tokens")
	}
	return accessToken, refreshToken, nil
}
