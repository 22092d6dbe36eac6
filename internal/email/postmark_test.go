package email

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestSendPasswordReset(t *testing.T) {
	var received postmarkEmail
	var gotToken string

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotToken = r.Header.Get("X-Postmark-Server-Token")
		if err := json.NewDecoder(r.Body).Decode(&received); err != nil {
			t.Errorf("decode request: %v", err)
		}
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"MessageID": "test-id"}`))
	}))
	defer server.Close()

	client := NewClient("test-token", "noreply@example.com", WithAPIURL(server.URL), WithHTTPClient(server.Client()))

	err := client.SendPasswordReset(context.Background(), "anna@example.com", "123456")
	if err != nil {
		t.Fatalf("send password reset: %v", err)
	}

	if gotToken != "test-token" {
		t.Errorf("server token = %q, want %q", gotToken, "test-token")
	}
	if received.To != "anna@example.com" {
		t.Errorf("To = %q, want %q", received.To, "anna@example.com")
	}
	if received.From != "noreply@example.com" {
		t.Errorf("From = %q, want %q", received.From, "noreply@example.com")
	}
	if !strings.Contains(received.TextBody, "123456") || !strings.Contains(received.HtmlBody, "123456") {
		t.Errorf("code missing from body: %q", received.TextBody)
	}
}

func TestSendWelcome(t *testing.T) {
	var received postmarkEmail

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewDecoder(r.Body).Decode(&received)
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	client := NewClient("test-token", "noreply@example.com", WithAPIURL(server.URL))

	if err := client.SendWelcome(context.Background(), "bram@example.com", "Bram", 30); err != nil {
		t.Fatalf("send welcome: %v", err)
	}
	if received.Subject != "Welkom bij Mila" {
		t.Errorf("Subject = %q", received.Subject)
	}
	if !strings.Contains(received.TextBody, "Hoi Bram") || !strings.Contains(received.TextBody, "30 dagen") {
		t.Errorf("TextBody = %q", received.TextBody)
	}
}

func TestSendNotConfigured(t *testing.T) {
	client := NewClient("", "noreply@example.com")

	err := client.SendPasswordReset(context.Background(), "anna@example.com", "123456")
	if !errors.Is(err, ErrNotConfigured) {
		t.Fatalf("err = %v, want ErrNotConfigured", err)
	}
}

func TestSendAPIError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnprocessableEntity)
	}))
	defer server.Close()

	client := NewClient("test-token", "noreply@example.com", WithAPIURL(server.URL))

	err := client.SendPasswordReset(context.Background(), "anna@example.com", "123456")
	if err == nil || !strings.Contains(err.Error(), "422") {
		t.Fatalf("err = %v, want status 422", err)
	}
}
