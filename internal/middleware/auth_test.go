package middleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/dukerupert/mila/internal/auth"
	"github.com/dukerupert/mila/internal/database"
	"github.com/dukerupert/mila/internal/model"
	"github.com/dukerupert/mila/internal/store"
)

type authFixture struct {
	tokens   *auth.TokenIssuer
	sessions *store.SessionStore
	profiles *store.ProfileStore
	user     *model.User
	session  *model.Session
}

func setupAuthMiddleware(t *testing.T) *authFixture {
	t.Helper()
	db, err := database.Open(":memory:")
	if err != nil {
		t.Fatalf("open test db: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	ctx := context.Background()
	u, err := store.NewUserStore(db).Create(ctx, "anna@example.com", "hash", "Anna", time.Now().Add(model.TrialPeriod))
	if err != nil {
		t.Fatalf("create user: %v", err)
	}
	ss := store.NewSessionStore(db)
	sess, err := ss.Create(ctx, u.ID, time.Hour)
	if err != nil {
		t.Fatalf("create session: %v", err)
	}
	tokens, _ := auth.NewTokenIssuer("test-secret-0123456789", time.Hour)

	return &authFixture{
		tokens:   tokens,
		sessions: ss,
		profiles: store.NewProfileStore(db),
		user:     u,
		session:  sess,
	}
}

func (f *authFixture) token(t *testing.T) string {
	t.Helper()
	tok, _, err := f.tokens.Issue(f.user.ID, f.session.ID, f.user.Email)
	if err != nil {
		t.Fatalf("issue token: %v", err)
	}
	return tok
}

func TestRequireAPIKey(t *testing.T) {
	handler := RequireAPIKey("anon")(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	tests := []struct {
		name   string
		header string
		query  string
		want   int
	}{
		{"header", "anon", "", http.StatusOK},
		{"query", "", "?apikey=anon", http.StatusOK},
		{"missing", "", "", http.StatusUnauthorized},
		{"wrong", "nope", "", http.StatusUnauthorized},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest("GET", "/rest/v1/stores"+tt.query, nil)
			if tt.header != "" {
				req.Header.Set("apikey", tt.header)
			}
			rec := httptest.NewRecorder()
			handler.ServeHTTP(rec, req)
			if rec.Code != tt.want {
				t.Errorf("status = %d, want %d", rec.Code, tt.want)
			}
		})
	}
}

func TestBearerToken(t *testing.T) {
	req := httptest.NewRequest("GET", "/", nil)
	req.Header.Set("Authorization", "Bearer abc")
	if got := BearerToken(req); got != "abc" {
		t.Errorf("header token = %q", got)
	}

	req = httptest.NewRequest("GET", "/?access_token=xyz", nil)
	if got := BearerToken(req); got != "xyz" {
		t.Errorf("query token = %q", got)
	}

	req = httptest.NewRequest("GET", "/", nil)
	req.Header.Set("Authorization", "Basic abc")
	if got := BearerToken(req); got != "" {
		t.Errorf("basic auth token = %q, want empty", got)
	}
}

func TestRequireAuthNoToken(t *testing.T) {
	f := setupAuthMiddleware(t)

	handler := RequireAuth(f.tokens, f.sessions)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("should not reach handler")
	}))

	req := httptest.NewRequest("GET", "/", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Errorf("status = %d, want %d", rec.Code, http.StatusUnauthorized)
	}
}

func TestRequireAuthInvalidToken(t *testing.T) {
	f := setupAuthMiddleware(t)

	handler := RequireAuth(f.tokens, f.sessions)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("should not reach handler")
	}))

	req := httptest.NewRequest("GET", "/", nil)
	req.Header.Set("Authorization", "Bearer invalid-token")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Errorf("status = %d, want %d", rec.Code, http.StatusUnauthorized)
	}
}

func TestRequireAuthValidToken(t *testing.T) {
	f := setupAuthMiddleware(t)

	var gotAC auth.AuthContext
	handler := RequireAuth(f.tokens, f.sessions)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAC, _ = auth.FromContext(r.Context())
		w.WriteHeader(http.StatusOK)
	}))

	req := httptest.NewRequest("GET", "/", nil)
	req.Header.Set("Authorization", "Bearer "+f.token(t))
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if gotAC.UserID != f.user.ID {
		t.Errorf("UserID = %q, want %q", gotAC.UserID, f.user.ID)
	}
	if gotAC.SessionID != f.session.ID {
		t.Errorf("SessionID = %q, want %q", gotAC.SessionID, f.session.ID)
	}
}

func TestRequireAuthRevokedSession(t *testing.T) {
	f := setupAuthMiddleware(t)
	token := f.token(t)
	f.sessions.Delete(context.Background(), f.session.ID)

	handler := RequireAuth(f.tokens, f.sessions)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("should not reach handler")
	}))

	req := httptest.NewRequest("GET", "/", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Errorf("status = %d, want %d", rec.Code, http.StatusUnauthorized)
	}
}

func TestRequirePremium(t *testing.T) {
	f := setupAuthMiddleware(t)
	handler := RequirePremium(f.profiles)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	serve := func() int {
		req := httptest.NewRequest("GET", "/rest/v1/suggestions", nil)
		req = req.WithContext(auth.WithAuth(req.Context(), auth.AuthContext{UserID: f.user.ID}))
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)
		return rec.Code
	}

	if code := serve(); code != http.StatusOK {
		t.Errorf("trial user: status = %d, want 200", code)
	}

	past := time.Now().Add(-time.Hour)
	f.profiles.SetSubscription(context.Background(), f.user.ID, model.TierTrial, &past)
	if code := serve(); code != http.StatusForbidden {
		t.Errorf("expired trial: status = %d, want 403", code)
	}

	f.profiles.SetSubscription(context.Background(), f.user.ID, model.TierPremium, nil)
	if code := serve(); code != http.StatusOK {
		t.Errorf("premium user: status = %d, want 200", code)
	}
}
