package handler

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/dukerupert/mila/internal/auth"
	"github.com/dukerupert/mila/internal/model"
	"github.com/dukerupert/mila/internal/store"
)

const maxCodeAttempts = 5

// Mailer sends the transactional mails of the auth flow.
type Mailer interface {
	Configured() bool
	SendPasswordReset(ctx context.Context, to, code string) error
	SendWelcome(ctx context.Context, to, name string, trialDays int) error
}

type AuthHandler struct {
	users      *store.UserStore
	profiles   *store.ProfileStore
	sessions   *store.SessionStore
	resets     *store.PasswordResetStore
	tokens     *auth.TokenIssuer
	refreshTTL time.Duration
	mailer     Mailer
	logger     *slog.Logger
}

func NewAuthHandler(
	us *store.UserStore,
	ps *store.ProfileStore,
	ss *store.SessionStore,
	rs *store.PasswordResetStore,
	tokens *auth.TokenIssuer,
	refreshTTL time.Duration,
	mailer Mailer,
	logger *slog.Logger,
) *AuthHandler {
	return &AuthHandler{
		users:      us,
		profiles:   ps,
		sessions:   ss,
		resets:     rs,
		tokens:     tokens,
		refreshTTL: refreshTTL,
		mailer:     mailer,
		logger:     logger.With("component", "auth"),
	}
}

type sessionResponse struct {
	AccessToken  string      `json:"access_token"`
	TokenType    string      `json:"token_type"`
	ExpiresIn    int         `json:"expires_in"`
	ExpiresAt    int64       `json:"expires_at"`
	RefreshToken string      `json:"refresh_token"`
	User         *model.User `json:"user"`
}

type userResponse struct {
	*model.User
	Profile   *model.UserProfile `json:"profile"`
	IsPremium bool               `json:"is_premium"`
}

// respondSession signs an access token for sess and writes the token pair.
func (h *AuthHandler) respondSession(w http.ResponseWriter, status int, user *model.User, sess *model.Session) {
	access, expiresAt, err := h.tokens.Issue(user.ID, sess.ID, user.Email)
	if err != nil {
		h.logger.Error("issue access token", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to issue token")
		return
	}
	writeJSON(w, status, sessionResponse{
		AccessToken:  access,
		TokenType:    "bearer",
		ExpiresIn:    int(h.tokens.TTL().Seconds()),
		ExpiresAt:    expiresAt.Unix(),
		RefreshToken: sess.RefreshToken,
		User:         user,
	})
}

func (h *AuthHandler) Signup(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Email    string `json:"email" validate:"required,email,max=254"`
		Password string `json:"password" validate:"required,min=8,max=72"`
		FullName string `json:"full_name" validate:"max=100"`
	}
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	req.Email = strings.ToLower(strings.TrimSpace(req.Email))
	req.FullName = strings.TrimSpace(req.FullName)

	existing, err := h.users.GetByEmail(r.Context(), req.Email)
	if err != nil {
		h.logger.Error("lookup user", "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	if existing != nil {
		writeError(w, http.StatusConflict, "user already registered")
		return
	}

	hash, err := auth.HashPassword(req.Password)
	if err != nil {
		h.logger.Error("hash password", "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}

	user, err := h.users.Create(r.Context(), req.Email, hash, req.FullName, time.Now().Add(model.TrialPeriod))
	if errors.Is(err, store.ErrEmailTaken) {
		writeError(w, http.StatusConflict, "user already registered")
		return
	}
	if err != nil {
		h.logger.Error("create user", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to create user")
		return
	}

	sess, err := h.sessions.Create(r.Context(), user.ID, h.refreshTTL)
	if err != nil {
		h.logger.Error("create session", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to create session")
		return
	}

	if h.mailer.Configured() {
		trialDays := int(model.TrialPeriod / (24 * time.Hour))
		if err := h.mailer.SendWelcome(r.Context(), user.Email, req.FullName, trialDays); err != nil {
			h.logger.Error("send welcome email", "error", err, "user_id", user.ID)
		}
	}

	h.logger.Info("user signed up", "user_id", user.ID)
	h.respondSession(w, http.StatusOK, user, sess)
}

// Token exchanges credentials for a session. grant_type is either password
// or refresh_token.
func (h *AuthHandler) Token(w http.ResponseWriter, r *http.Request) {
	switch grant := r.URL.Query().Get("grant_type"); grant {
	case "password":
		h.passwordGrant(w, r)
	case "refresh_token":
		h.refreshGrant(w, r)
	default:
		writeError(w, http.StatusBadRequest, "unsupported grant_type")
	}
}

func (h *AuthHandler) passwordGrant(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Email    string `json:"email" validate:"required,email"`
		Password string `json:"password" validate:"required"`
	}
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	user, err := h.users.GetByEmail(r.Context(), req.Email)
	if err != nil {
		h.logger.Error("lookup user", "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	if user == nil {
		writeError(w, http.StatusBadRequest, "invalid login credentials")
		return
	}
	ok, err := auth.CheckPassword(user.PasswordHash, req.Password)
	if err != nil {
		h.logger.Error("check password", "error", err, "user_id", user.ID)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid login credentials")
		return
	}

	sess, err := h.sessions.Create(r.Context(), user.ID, h.refreshTTL)
	if err != nil {
		h.logger.Error("create session", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to create session")
		return
	}
	h.respondSession(w, http.StatusOK, user, sess)
}

func (h *AuthHandler) refreshGrant(w http.ResponseWriter, r *http.Request) {
	var req struct {
		RefreshToken string `json:"refresh_token" validate:"required"`
	}
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	sess, err := h.sessions.Rotate(r.Context(), req.RefreshToken, h.refreshTTL)
	if err != nil {
		h.logger.Error("rotate session", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to refresh session")
		return
	}
	if sess == nil {
		writeError(w, http.StatusUnauthorized, "invalid refresh token")
		return
	}

	user, err := h.users.GetByID(r.Context(), sess.UserID)
	if err != nil || user == nil {
		h.logger.Error("load session user", "error", err, "session_id", sess.ID)
		writeError(w, http.StatusUnauthorized, "invalid refresh token")
		return
	}
	h.respondSession(w, http.StatusOK, user, sess)
}

func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	ac, _ := auth.FromContext(r.Context())
	if err := h.sessions.Delete(r.Context(), ac.SessionID); err != nil {
		h.logger.Error("delete session", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to sign out")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// User returns the caller with their profile.
func (h *AuthHandler) User(w http.ResponseWriter, r *http.Request) {
	userID := auth.UserID(r.Context())
	user, err := h.users.GetByID(r.Context(), userID)
	if err != nil {
		h.logger.Error("get user", "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	if user == nil {
		writeError(w, http.StatusNotFound, "user not found")
		return
	}
	profile, err := h.profiles.GetByID(r.Context(), userID)
	if err != nil {
		h.logger.Error("get profile", "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	writeJSON(w, http.StatusOK, userResponse{
		User:      user,
		Profile:   profile,
		IsPremium: profile.IsPremium(time.Now()),
	})
}

// Recover mails a reset code if the address belongs to an account. The
// response is the same either way to prevent user enumeration.
func (h *AuthHandler) Recover(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Email string `json:"email" validate:"required,email"`
	}
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	accepted := map[string]string{"status": "if the account exists, a reset code has been sent"}

	user, err := h.users.GetByEmail(r.Context(), req.Email)
	if err != nil {
		h.logger.Error("lookup user", "error", err)
		writeJSON(w, http.StatusAccepted, accepted)
		return
	}
	if user == nil {
		writeJSON(w, http.StatusAccepted, accepted)
		return
	}

	reset, err := h.resets.Create(r.Context(), user.Email)
	if err != nil {
		h.logger.Error("create password reset", "error", err)
		writeJSON(w, http.StatusAccepted, accepted)
		return
	}

	if !h.mailer.Configured() {
		h.logger.Warn("email not configured, reset code not sent", "user_id", user.ID)
	} else if err := h.mailer.SendPasswordReset(r.Context(), user.Email, reset.Code); err != nil {
		h.logger.Error("send password reset", "error", err, "user_id", user.ID)
	}
	writeJSON(w, http.StatusAccepted, accepted)
}

// validateCode checks a reset code against the latest one issued for email.
// It returns the matched reset, or a message for the caller.
func (h *AuthHandler) validateCode(ctx context.Context, email, code string) (*model.PasswordReset, string) {
	latest, err := h.resets.GetLatestByEmail(ctx, email)
	if err != nil {
		h.logger.Error("get password reset", "error", err)
		return nil, "internal error"
	}
	if latest == nil {
		return nil, "invalid or expired code"
	}

	if latest.Attempts >= maxCodeAttempts {
		h.resets.MarkUsed(ctx, latest.ID)
		return nil, "too many incorrect attempts, request a new code"
	}

	if latest.Code != code {
		attempts, err := h.resets.IncrementAttempts(ctx, latest.ID)
		if err != nil {
			h.logger.Error("increment attempts", "error", err)
		}
		if attempts >= maxCodeAttempts {
			h.resets.MarkUsed(ctx, latest.ID)
			return nil, "too many incorrect attempts, request a new code"
		}
		return nil, "incorrect code"
	}

	if err := h.resets.MarkUsed(ctx, latest.ID); err != nil {
		h.logger.Error("mark used", "error", err)
		return nil, "internal error"
	}
	return latest, ""
}

// Verify sets a new password using a mailed reset code and signs the account
// out everywhere.
func (h *AuthHandler) Verify(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Email    string `json:"email" validate:"required,email"`
		Code     string `json:"code" validate:"required,len=6,numeric"`
		Password string `json:"password" validate:"required,min=8,max=72"`
	}
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	if _, msg := h.validateCode(r.Context(), req.Email, strings.TrimSpace(req.Code)); msg != "" {
		writeError(w, http.StatusBadRequest, msg)
		return
	}

	user, err := h.users.GetByEmail(r.Context(), req.Email)
	if err != nil || user == nil {
		h.logger.Error("lookup user for reset", "error", err)
		writeError(w, http.StatusBadRequest, "invalid or expired code")
		return
	}

	hash, err := auth.HashPassword(req.Password)
	if err != nil {
		h.logger.Error("hash password", "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	if err := h.users.UpdatePassword(r.Context(), user.ID, hash); err != nil {
		h.logger.Error("update password", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to update password")
		return
	}
	if err := h.sessions.DeleteByUserID(r.Context(), user.ID); err != nil {
		h.logger.Error("revoke sessions", "error", err, "user_id", user.ID)
	}

	h.logger.Info("password reset", "user_id", user.ID)
	writeJSON(w, http.StatusOK, map[string]string{"status": "password updated"})
}
