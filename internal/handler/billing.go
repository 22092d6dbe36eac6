package handler

import (
	"context"
	"io"
	"log/slog"
	"net/http"

	"github.com/dukerupert/mila/internal/auth"
	"github.com/dukerupert/mila/internal/billing"
	"github.com/dukerupert/mila/internal/store"
	stripe "github.com/stripe/stripe-go/v82"
)

const maxWebhookBytes = 65536

// Payments is the billing provider behind premium upgrades.
type Payments interface {
	Configured() bool
	CreateCustomer(ctx context.Context, email, userID string) (string, error)
	CreateCheckoutSession(ctx context.Context, customerID, userID string) (string, error)
	CreatePortalSession(ctx context.Context, customerID string) (string, error)
	ConstructWebhookEvent(payload []byte, sigHeader string) (stripe.Event, error)
}

type BillingHandler struct {
	payments Payments
	profiles *store.ProfileStore
	logger   *slog.Logger
}

func NewBillingHandler(p Payments, ps *store.ProfileStore, logger *slog.Logger) *BillingHandler {
	return &BillingHandler{payments: p, profiles: ps, logger: logger.With("component", "billing")}
}

// Checkout starts a premium subscription checkout, creating the billing
// customer on first use.
func (h *BillingHandler) Checkout(w http.ResponseWriter, r *http.Request) {
	if !h.payments.Configured() {
		writeError(w, http.StatusServiceUnavailable, "billing not configured")
		return
	}
	ctx := r.Context()
	userID := auth.UserID(ctx)

	p, err := h.profiles.GetByID(ctx, userID)
	if err != nil {
		h.logger.Error("get profile", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to start checkout")
		return
	}
	if p == nil {
		writeError(w, http.StatusNotFound, "profile not found")
		return
	}

	customerID, err := h.profiles.StripeCustomerID(ctx, userID)
	if err != nil {
		h.logger.Error("get stripe customer", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to start checkout")
		return
	}
	if customerID == "" {
		customerID, err = h.payments.CreateCustomer(ctx, p.Email, userID)
		if err != nil {
			h.logger.Error("create customer", "user_id", userID, "error", err)
			writeError(w, http.StatusBadGateway, "failed to create billing customer")
			return
		}
		if err := h.profiles.SetStripeCustomerID(ctx, userID, customerID); err != nil {
			h.logger.Error("save stripe customer", "user_id", userID, "error", err)
			writeError(w, http.StatusInternalServerError, "failed to start checkout")
			return
		}
	}

	url, err := h.payments.CreateCheckoutSession(ctx, customerID, userID)
	if err != nil {
		h.logger.Error("create checkout session", "user_id", userID, "error", err)
		writeError(w, http.StatusBadGateway, "failed to create checkout session")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"url": url})
}

// Portal opens the hosted billing portal for a user who has checked out
// before.
func (h *BillingHandler) Portal(w http.ResponseWriter, r *http.Request) {
	if !h.payments.Configured() {
		writeError(w, http.StatusServiceUnavailable, "billing not configured")
		return
	}
	ctx := r.Context()
	userID := auth.UserID(ctx)

	customerID, err := h.profiles.StripeCustomerID(ctx, userID)
	if err != nil {
		h.logger.Error("get stripe customer", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to open billing portal")
		return
	}
	if customerID == "" {
		writeError(w, http.StatusBadRequest, "no billing account")
		return
	}

	url, err := h.payments.CreatePortalSession(ctx, customerID)
	if err != nil {
		h.logger.Error("create portal session", "user_id", userID, "error", err)
		writeError(w, http.StatusBadGateway, "failed to create portal session")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"url": url})
}

// Webhook applies subscription changes pushed by Stripe. Deliveries for
// unknown customers are acknowledged so Stripe stops retrying them.
func (h *BillingHandler) Webhook(w http.ResponseWriter, r *http.Request) {
	if !h.payments.Configured() {
		writeError(w, http.StatusServiceUnavailable, "billing not configured")
		return
	}

	body, err := io.ReadAll(io.LimitReader(r.Body, maxWebhookBytes))
	if err != nil {
		writeError(w, http.StatusBadRequest, "failed to read body")
		return
	}

	event, err := h.payments.ConstructWebhookEvent(body, r.Header.Get("Stripe-Signature"))
	if err != nil {
		h.logger.Warn("rejected webhook", "error", err)
		writeError(w, http.StatusBadRequest, "invalid signature")
		return
	}

	change, ok, err := billing.ChangeFromEvent(event)
	if err != nil {
		h.logger.Error("decode webhook", "event_id", event.ID, "type", event.Type, "error", err)
		writeError(w, http.StatusBadRequest, "malformed event")
		return
	}
	if !ok {
		writeJSON(w, http.StatusOK, map[string]bool{"received": true})
		return
	}

	if err := h.apply(r.Context(), change); err != nil {
		h.logger.Error("apply subscription change", "event_id", event.ID, "error", err)
		writeError(w, http.StatusInternalServerError, "failed to apply event")
		return
	}
	h.logger.Info("subscription changed", "event_id", event.ID, "type", event.Type, "tier", change.Tier)
	writeJSON(w, http.StatusOK, map[string]bool{"received": true})
}

func (h *BillingHandler) apply(ctx context.Context, change billing.Change) error {
	userID := change.UserID
	if userID == "" {
		p, err := h.profiles.GetByStripeCustomerID(ctx, change.CustomerID)
		if err != nil {
			return err
		}
		if p == nil {
			h.logger.Warn("webhook for unknown customer", "customer_id", change.CustomerID)
			return nil
		}
		userID = p.ID
	} else if change.CustomerID != "" {
		if err := h.profiles.SetStripeCustomerID(ctx, userID, change.CustomerID); err != nil {
			return err
		}
	}
	return h.profiles.SetSubscription(ctx, userID, change.Tier, nil)
}
