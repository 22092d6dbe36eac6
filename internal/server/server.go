package server

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/dukerupert/mila/internal/auth"
	"github.com/dukerupert/mila/internal/billing"
	"github.com/dukerupert/mila/internal/config"
	"github.com/dukerupert/mila/internal/handler"
	"github.com/dukerupert/mila/internal/middleware"
	"github.com/dukerupert/mila/internal/shopping"
	"github.com/dukerupert/mila/internal/store"
	ws "github.com/dukerupert/mila/internal/websocket"
)

type Server struct {
	db           *sql.DB
	hub          *ws.Hub
	anonKey      string
	tokens       *auth.TokenIssuer
	authH        *handler.AuthHandler
	profileH     *handler.ProfileHandler
	shoppingH    *handler.ShoppingHandler
	suggestionH  *handler.SuggestionHandler
	billingH     *handler.BillingHandler
	sessionStore *store.SessionStore
	profileStore *store.ProfileStore
	resetStore   *store.PasswordResetStore
	rateLimiter  *middleware.RateLimiter
	logger       *slog.Logger
}

func New(db *sql.DB, cfg *config.Config, mailer handler.Mailer, logger *slog.Logger) (*Server, error) {
	tokens, err := auth.NewTokenIssuer(cfg.Auth.JWTSecret, cfg.Auth.AccessTokenTTL)
	if err != nil {
		return nil, fmt.Errorf("create token issuer: %w", err)
	}

	hub := ws.NewHub(logger.With("component", "websocket"))

	listStore := store.NewListStore(db)
	itemStore := store.NewItemStore(db)
	shopStore := store.NewShopStore(db)
	suggestionStore := store.NewSuggestionStore(db)

	// Auth stores
	userStore := store.NewUserStore(db)
	profileStore := store.NewProfileStore(db)
	sessionStore := store.NewSessionStore(db)
	resetStore := store.NewPasswordResetStore(db)

	svc := shopping.NewService(listStore, itemStore, shopStore, hub, logger)

	payments := billing.NewClient(billing.Config{
		SecretKey:       cfg.Billing.StripeSecretKey,
		WebhookSecret:   cfg.Billing.StripeWebhookSecret,
		PriceID:         cfg.Billing.PriceID,
		SuccessURL:      cfg.Billing.SuccessURL,
		CancelURL:       cfg.Billing.CancelURL,
		PortalReturnURL: cfg.Billing.PortalReturnURL,
	})

	return &Server{
		db:           db,
		hub:          hub,
		anonKey:      cfg.Auth.AnonKey,
		tokens:       tokens,
		authH:        handler.NewAuthHandler(userStore, profileStore, sessionStore, resetStore, tokens, cfg.Auth.RefreshTokenTTL, mailer, logger),
		profileH:     handler.NewProfileHandler(profileStore, logger),
		shoppingH:    handler.NewShoppingHandler(svc, logger),
		suggestionH:  handler.NewSuggestionHandler(suggestionStore, logger),
		billingH:     handler.NewBillingHandler(payments, profileStore, logger),
		sessionStore: sessionStore,
		profileStore: profileStore,
		resetStore:   resetStore,
		rateLimiter:  middleware.NewRateLimiter(cfg.RateLimit.RequestsPerSecond, cfg.RateLimit.Burst, cfg.RateLimit.IdleTTL),
		logger:       logger,
	}, nil
}

// Hub returns the change hub the shopping service publishes to.
func (s *Server) Hub() *ws.Hub {
	return s.hub
}

// RateLimiter returns the auth endpoint rate limiter.
func (s *Server) RateLimiter() *middleware.RateLimiter {
	return s.rateLimiter
}

// Cleanup drops expired sessions, expired or used reset codes, and idle rate
// limiter entries.
func (s *Server) Cleanup(ctx context.Context) {
	if n, err := s.sessionStore.DeleteExpired(ctx); err != nil {
		s.logger.Error("cleanup expired sessions", "error", err)
	} else if n > 0 {
		s.logger.Info("cleaned up expired sessions", "count", n)
	}

	if n, err := s.resetStore.DeleteExpired(ctx); err != nil {
		s.logger.Error("cleanup password resets", "error", err)
	} else if n > 0 {
		s.logger.Info("cleaned up password resets", "count", n)
	}

	if n := s.rateLimiter.Cleanup(); n > 0 {
		s.logger.Debug("cleaned up rate limiter entries", "count", n)
	}
}

func (s *Server) Router() http.Handler {
	outerMux := http.NewServeMux()
	outerMux.HandleFunc("GET /health", s.healthHandler)

	apiKey := middleware.RequireAPIKey(s.anonKey)
	requireAuth := middleware.RequireAuth(s.tokens, s.sessionStore)

	// Auth API, rate limited per client IP
	authMux := http.NewServeMux()
	authMux.HandleFunc("POST /auth/v1/signup", s.authH.Signup)
	authMux.HandleFunc("POST /auth/v1/token", s.authH.Token)
	authMux.HandleFunc("POST /auth/v1/recover", s.authH.Recover)
	authMux.HandleFunc("POST /auth/v1/verify", s.authH.Verify)
	authMux.Handle("POST /auth/v1/logout", requireAuth(http.HandlerFunc(s.authH.Logout)))
	authMux.Handle("GET /auth/v1/user", requireAuth(http.HandlerFunc(s.authH.User)))

	rateLimit := middleware.RateLimit(s.rateLimiter, middleware.RealIP)
	outerMux.Handle("/auth/v1/", apiKey(rateLimit(authMux)))

	// Stripe signs webhook deliveries; they carry no API key
	outerMux.HandleFunc("POST /billing/webhook", s.billingH.Webhook)

	// Reference data is readable without a session
	outerMux.Handle("GET /rest/v1/stores", apiKey(http.HandlerFunc(s.shoppingH.ListStores)))

	// Data API, every other route needs a session
	restMux := http.NewServeMux()
	s.registerRestRoutes(restMux)
	outerMux.Handle("/rest/v1/", apiKey(requireAuth(restMux)))

	return middleware.RequestLogger(s.logger.With("component", "http"))(outerMux)
}

func (s *Server) registerRestRoutes(mux *http.ServeMux) {
	// Lists
	mux.HandleFunc("GET /rest/v1/lists", s.shoppingH.ListLists)
	mux.HandleFunc("POST /rest/v1/lists", s.shoppingH.CreateList)
	mux.HandleFunc("GET /rest/v1/lists/{id}", s.shoppingH.GetList)
	mux.HandleFunc("PATCH /rest/v1/lists/{id}", s.shoppingH.UpdateList)
	mux.HandleFunc("DELETE /rest/v1/lists/{id}", s.shoppingH.DeleteList)
	mux.HandleFunc("POST /rest/v1/lists/{id}/items", s.shoppingH.AddItem)
	mux.HandleFunc("POST /rest/v1/lists/{id}/clear-checked", s.shoppingH.ClearChecked)
	mux.HandleFunc("GET /rest/v1/lists/{id}/subscribe", s.shoppingH.Subscribe)

	// Items
	mux.HandleFunc("PATCH /rest/v1/items/{id}", s.shoppingH.UpdateItem)
	mux.HandleFunc("POST /rest/v1/items/{id}/toggle", s.shoppingH.ToggleItem)
	mux.HandleFunc("DELETE /rest/v1/items/{id}", s.shoppingH.DeleteItem)

	// Profile
	mux.HandleFunc("GET /rest/v1/profile", s.profileH.Get)
	mux.HandleFunc("PATCH /rest/v1/profile", s.profileH.Update)

	// Billing
	mux.HandleFunc("POST /rest/v1/billing/checkout", s.billingH.Checkout)
	mux.HandleFunc("POST /rest/v1/billing/portal", s.billingH.Portal)

	// Premium
	premium := middleware.RequirePremium(s.profileStore)
	mux.Handle("GET /rest/v1/suggestions", premium(http.HandlerFunc(s.suggestionH.Search)))
}

func (s *Server) healthHandler(w http.ResponseWriter, r *http.Request) {
	status := "ok"
	code := http.StatusOK
	if err := s.db.PingContext(r.Context()); err != nil {
		s.logger.Error("health check", "error", err)
		status = "unavailable"
		code = http.StatusServiceUnavailable
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(map[string]string{"status": status})
}
