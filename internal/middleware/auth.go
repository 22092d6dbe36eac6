package middleware

import (
	"crypto/subtle"
	"net/http"
	"strings"
	"time"

	"github.com/dukerupert/mila/internal/auth"
	"github.com/dukerupert/mila/internal/store"
)

const apiKeyHeader = "apikey"

// RequireAPIKey rejects requests that do not carry the anon key in the apikey
// header or query parameter.
func RequireAPIKey(key string) func(http.Handler) http.Handler {
	want := []byte(key)
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			got := r.Header.Get(apiKeyHeader)
			if got == "" {
				got = r.URL.Query().Get(apiKeyHeader)
			}
			if got == "" || subtle.ConstantTimeCompare([]byte(got), want) != 1 {
				writeError(w, http.StatusUnauthorized, "invalid api key")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// BearerToken returns the access token from the Authorization header, or from
// the access_token query parameter for WebSocket upgrades.
func BearerToken(r *http.Request) string {
	if h := r.Header.Get("Authorization"); h != "" {
		scheme, token, ok := strings.Cut(h, " ")
		if ok && strings.EqualFold(scheme, "Bearer") {
			return strings.TrimSpace(token)
		}
		return ""
	}
	return r.URL.Query().Get("access_token")
}

// RequireAuth validates the bearer access token, checks that its session is
// still live, and populates AuthContext.
func RequireAuth(tokens *auth.TokenIssuer, sessions *store.SessionStore) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token := BearerToken(r)
			if token == "" {
				writeError(w, http.StatusUnauthorized, "not authenticated")
				return
			}

			ac, err := tokens.Parse(token)
			if err != nil {
				writeError(w, http.StatusUnauthorized, "invalid or expired token")
				return
			}

			sess, err := sessions.GetByID(r.Context(), ac.SessionID)
			if err != nil || sess == nil || sess.UserID != ac.UserID {
				writeError(w, http.StatusUnauthorized, "session expired")
				return
			}

			ctx := auth.WithAuth(r.Context(), ac)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// RequirePremium lets through only callers whose profile is premium or on a
// running trial. It must run after RequireAuth.
func RequirePremium(profiles *store.ProfileStore) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			p, err := profiles.GetByID(r.Context(), auth.UserID(r.Context()))
			if err != nil {
				writeError(w, http.StatusInternalServerError, "failed to load profile")
				return
			}
			if !p.IsPremium(time.Now()) {
				writeError(w, http.StatusForbidden, "premium subscription required")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
