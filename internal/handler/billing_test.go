package handler

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/dukerupert/mila/internal/auth"
	"github.com/dukerupert/mila/internal/database"
	"github.com/dukerupert/mila/internal/model"
	"github.com/dukerupert/mila/internal/store"
	stripe "github.com/stripe/stripe-go/v82"
)

// fakePayments accepts any webhook whose signature header is "valid".
type fakePayments struct {
	configured bool
	customers  int
	checkouts  []string
	failPortal bool
}

func (p *fakePayments) Configured() bool { return p.configured }

func (p *fakePayments) CreateCustomer(_ context.Context, email, userID string) (string, error) {
	p.customers++
	return "cus_" + userID, nil
}

func (p *fakePayments) CreateCheckoutSession(_ context.Context, customerID, userID string) (string, error) {
	p.checkouts = append(p.checkouts, customerID)
	return "https://checkout.example/" + customerID, nil
}

func (p *fakePayments) CreatePortalSession(_ context.Context, customerID string) (string, error) {
	if p.failPortal {
		return "", errors.New("stripe down")
	}
	return "https://portal.example/" + customerID, nil
}

func (p *fakePayments) ConstructWebhookEvent(payload []byte, sig string) (stripe.Event, error) {
	var ev stripe.Event
	if sig != "valid" {
		return ev, errors.New("bad signature")
	}
	err := json.Unmarshal(payload, &ev)
	return ev, err
}

type billingFixture struct {
	h        *BillingHandler
	payments *fakePayments
	profiles *store.ProfileStore
	user     *model.User
}

func setupBilling(t *testing.T) *billingFixture {
	t.Helper()
	db, err := database.Open(":memory:")
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	u, err := store.NewUserStore(db).Create(context.Background(), "anna@example.com", "hash", "Anna", time.Now().Add(-time.Hour))
	if err != nil {
		t.Fatalf("create user: %v", err)
	}
	ps := store.NewProfileStore(db)
	payments := &fakePayments{configured: true}
	return &billingFixture{
		h:        NewBillingHandler(payments, ps, slog.Default()),
		payments: payments,
		profiles: ps,
		user:     u,
	}
}

func (f *billingFixture) call(fn http.HandlerFunc, method, target string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, target, nil)
	req = req.WithContext(auth.WithAuth(req.Context(), auth.AuthContext{UserID: f.user.ID}))
	rec := httptest.NewRecorder()
	fn(rec, req)
	return rec
}

func (f *billingFixture) webhook(payload, sig string) *httptest.ResponseRecorder {
	req := httptest.NewRequest("POST", "/billing/webhook", strings.NewReader(payload))
	req.Header.Set("Stripe-Signature", sig)
	rec := httptest.NewRecorder()
	f.h.Webhook(rec, req)
	return rec
}

func (f *billingFixture) tier(t *testing.T) model.SubscriptionTier {
	t.Helper()
	p, err := f.profiles.GetByID(context.Background(), f.user.ID)
	if err != nil || p == nil {
		t.Fatalf("get profile: %v", err)
	}
	return p.SubscriptionTier
}

func TestBillingNotConfigured(t *testing.T) {
	f := setupBilling(t)
	f.payments.configured = false

	for name, fn := range map[string]http.HandlerFunc{"checkout": f.h.Checkout, "portal": f.h.Portal} {
		if rec := f.call(fn, "POST", "/"); rec.Code != http.StatusServiceUnavailable {
			t.Errorf("%s status = %d, want 503", name, rec.Code)
		}
	}
	if rec := f.webhook(`{}`, "valid"); rec.Code != http.StatusServiceUnavailable {
		t.Errorf("webhook status = %d, want 503", rec.Code)
	}
}

func TestCheckoutCreatesCustomerOnce(t *testing.T) {
	f := setupBilling(t)

	rec := f.call(f.h.Checkout, "POST", "/rest/v1/billing/checkout")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d: %s", rec.Code, rec.Body.String())
	}
	var resp map[string]string
	json.NewDecoder(rec.Body).Decode(&resp)
	if resp["url"] != "https://checkout.example/cus_"+f.user.ID {
		t.Errorf("url = %q", resp["url"])
	}

	f.call(f.h.Checkout, "POST", "/rest/v1/billing/checkout")
	if f.payments.customers != 1 {
		t.Errorf("customers created = %d, want 1", f.payments.customers)
	}
	if len(f.payments.checkouts) != 2 {
		t.Errorf("checkouts = %d, want 2", len(f.payments.checkouts))
	}
}

func TestPortal(t *testing.T) {
	f := setupBilling(t)

	rec := f.call(f.h.Portal, "POST", "/rest/v1/billing/portal")
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400 before checkout", rec.Code)
	}

	f.profiles.SetStripeCustomerID(context.Background(), f.user.ID, "cus_anna")
	rec = f.call(f.h.Portal, "POST", "/rest/v1/billing/portal")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}

	f.payments.failPortal = true
	rec = f.call(f.h.Portal, "POST", "/rest/v1/billing/portal")
	if rec.Code != http.StatusBadGateway {
		t.Errorf("status = %d, want 502", rec.Code)
	}
	if msg := errorMessage(t, rec); strings.Contains(msg, "stripe down") {
		t.Errorf("error leaks cause: %q", msg)
	}
}

func TestWebhookUpgradesAndDowngrades(t *testing.T) {
	f := setupBilling(t)

	if rec := f.webhook(`{}`, "forged"); rec.Code != http.StatusBadRequest {
		t.Fatalf("forged status = %d, want 400", rec.Code)
	}

	checkout := `{"id":"evt_1","type":"checkout.session.completed","data":{"object":{"id":"cs_1","mode":"subscription","payment_status":"paid","client_reference_id":"` + f.user.ID + `","customer":"cus_anna"}}}`
	if rec := f.webhook(checkout, "valid"); rec.Code != http.StatusOK {
		t.Fatalf("checkout status = %d: %s", rec.Code, rec.Body.String())
	}
	if got := f.tier(t); got != model.TierPremium {
		t.Errorf("tier = %q, want premium", got)
	}
	if id, _ := f.profiles.StripeCustomerID(context.Background(), f.user.ID); id != "cus_anna" {
		t.Errorf("customer id = %q, want cus_anna", id)
	}

	pastDue := `{"id":"evt_2","type":"customer.subscription.updated","data":{"object":{"id":"sub_1","status":"past_due","customer":"cus_anna"}}}`
	f.webhook(pastDue, "valid")
	if got := f.tier(t); got != model.TierPremium {
		t.Errorf("tier after past_due = %q, want premium", got)
	}

	deleted := `{"id":"evt_3","type":"customer.subscription.deleted","data":{"object":{"id":"sub_1","status":"canceled","customer":"cus_anna"}}}`
	if rec := f.webhook(deleted, "valid"); rec.Code != http.StatusOK {
		t.Fatalf("deleted status = %d", rec.Code)
	}
	if got := f.tier(t); got != model.TierFree {
		t.Errorf("tier = %q, want free", got)
	}
}

func TestWebhookUnknownCustomer(t *testing.T) {
	f := setupBilling(t)

	ev := `{"id":"evt_1","type":"customer.subscription.updated","data":{"object":{"id":"sub_1","status":"active","customer":"cus_nobody"}}}`
	if rec := f.webhook(ev, "valid"); rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if got := f.tier(t); got == model.TierPremium {
		t.Error("unrelated customer should not upgrade anyone")
	}
}
