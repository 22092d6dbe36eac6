package billing

import (
	"encoding/json"
	"fmt"

	"github.com/dukerupert/mila/internal/model"
	stripe "github.com/stripe/stripe-go/v82"
)

// Change is the subscription tier a webhook event moves a user to. UserID is
// only known for completed checkouts; other events identify the user by
// CustomerID.
type Change struct {
	UserID     string
	CustomerID string
	Tier       model.SubscriptionTier
}

// TierForStatus maps a Stripe subscription status to a tier. ok is false for
// statuses that leave the tier as it is: past_due keeps premium while Stripe
// retries the payment, and incomplete has not been paid yet.
func TierForStatus(status stripe.SubscriptionStatus) (tier model.SubscriptionTier, ok bool) {
	switch status {
	case stripe.SubscriptionStatusActive, stripe.SubscriptionStatusTrialing:
		return model.TierPremium, true
	case stripe.SubscriptionStatusCanceled,
		stripe.SubscriptionStatusUnpaid,
		stripe.SubscriptionStatusIncompleteExpired,
		stripe.SubscriptionStatusPaused:
		return model.TierFree, true
	default:
		return "", false
	}
}

// ChangeFromEvent extracts the tier change an event implies. ok is false for
// event types and states that change nothing.
func ChangeFromEvent(event stripe.Event) (change Change, ok bool, err error) {
	switch event.Type {
	case "checkout.session.completed":
		var sess stripe.CheckoutSession
		if err := json.Unmarshal(event.Data.Raw, &sess); err != nil {
			return Change{}, false, fmt.Errorf("decode checkout session: %w", err)
		}
		if sess.Mode != stripe.CheckoutSessionModeSubscription || sess.ClientReferenceID == "" {
			return Change{}, false, nil
		}
		if sess.PaymentStatus == stripe.CheckoutSessionPaymentStatusUnpaid {
			return Change{}, false, nil
		}
		change = Change{UserID: sess.ClientReferenceID, Tier: model.TierPremium}
		if sess.Customer != nil {
			change.CustomerID = sess.Customer.ID
		}
		return change, true, nil

	case "customer.subscription.created", "customer.subscription.updated":
		sub, err := decodeSubscription(event)
		if err != nil {
			return Change{}, false, err
		}
		tier, ok := TierForStatus(sub.Status)
		if !ok || sub.Customer == nil {
			return Change{}, false, nil
		}
		return Change{CustomerID: sub.Customer.ID, Tier: tier}, true, nil

	case "customer.subscription.deleted":
		sub, err := decodeSubscription(event)
		if err != nil {
			return Change{}, false, err
		}
		if sub.Customer == nil {
			return Change{}, false, nil
		}
		return Change{CustomerID: sub.Customer.ID, Tier: model.TierFree}, true, nil
	}
	return Change{}, false, nil
}

func decodeSubscription(event stripe.Event) (*stripe.Subscription, error) {
	var sub stripe.Subscription
	if err := json.Unmarshal(event.Data.Raw, &sub); err != nil {
		return nil, fmt.Errorf("decode subscription: %w", err)
	}
	return &sub, nil
}
