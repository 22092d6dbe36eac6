package email

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
)

const defaultAPIURL = "https://api.postmarkapp.com/email"

var ErrNotConfigured = errors.New("email client not configured: missing server token")

type Client struct {
	serverToken string
	fromEmail   string
	apiURL      string
	httpClient  *http.Client
}

type Option func(*Client)

func WithHTTPClient(c *http.Client) Option {
	return func(cl *Client) {
		cl.httpClient = c
	}
}

// WithAPIURL points the client at a different Postmark-compatible endpoint.
func WithAPIURL(u string) Option {
	return func(cl *Client) {
		cl.apiURL = u
	}
}

func NewClient(serverToken, fromEmail string, opts ...Option) *Client {
	c := &Client{
		serverToken: serverToken,
		fromEmail:   fromEmail,
		apiURL:      defaultAPIURL,
		httpClient:  http.DefaultClient,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Configured returns true if the server token is set.
func (c *Client) Configured() bool {
	return c.serverToken != ""
}

type postmarkEmail struct {
	From     string `json:"From"`
	To       string `json:"To"`
	Subject  string `json:"Subject"`
	HtmlBody string `json:"HtmlBody"`
	TextBody string `json:"TextBody"`
}

// SendPasswordReset mails a 6-digit reset code.
func (c *Client) SendPasswordReset(ctx context.Context, toEmail, code string) error {
	textBody := fmt.Sprintf("Je herstelcode is %s.\n\nVul deze code in de app in om een nieuw wachtwoord te kiezen. De code is 15 minuten geldig.", code)
	htmlBody := fmt.Sprintf(
		`<p>Je herstelcode is <strong>%s</strong>.</p><p>Vul deze code in de app in om een nieuw wachtwoord te kiezen. De code is 15 minuten geldig.</p>`,
		code,
	)
	return c.send(ctx, postmarkEmail{
		From:     c.fromEmail,
		To:       toEmail,
		Subject:  "Je herstelcode voor Mila",
		HtmlBody: htmlBody,
		TextBody: textBody,
	})
}

// SendWelcome greets a new account and states when the trial ends.
func (c *Client) SendWelcome(ctx context.Context, toEmail, name string, trialDays int) error {
	greeting := "Hoi"
	if name != "" {
		greeting = "Hoi " + name
	}
	textBody := fmt.Sprintf("%s,\n\nWelkom bij Mila! Je kunt %d dagen gratis alle premium functies gebruiken.", greeting, trialDays)
	htmlBody := fmt.Sprintf(`<p>%s,</p><p>Welkom bij Mila! Je kunt %d dagen gratis alle premium functies gebruiken.</p>`, greeting, trialDays)
	return c.send(ctx, postmarkEmail{
		From:     c.fromEmail,
		To:       toEmail,
		Subject:  "Welkom bij Mila",
		HtmlBody: htmlBody,
		TextBody: textBody,
	})
}

func (c *Client) send(ctx context.Context, payload postmarkEmail) error {
	if !c.Configured() {
		return ErrNotConfigured
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal email: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.apiURL, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	req.Header.Set("X-Postmark-Server-Token", c.serverToken)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("send email: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return fmt.Errorf("postmark API error: status %d", resp.StatusCode)
	}

	return nil
}
