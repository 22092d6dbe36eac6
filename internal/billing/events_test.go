package billing

import (
	"encoding/json"
	"fmt"
	"testing"

	"github.com/dukerupert/mila/internal/model"
	stripe "github.com/stripe/stripe-go/v82"
	"github.com/stripe/stripe-go/v82/webhook"
)

func eventJSON(eventType, object string) []byte {
	return []byte(fmt.Sprintf(`{"id":"evt_test","object":"event","api_version":%q,"type":%q,"data":{"object":%s}}`,
		stripe.APIVersion, eventType, object))
}

func parseEvent(t *testing.T, eventType, object string) stripe.Event {
	t.Helper()
	var ev stripe.Event
	if err := json.Unmarshal(eventJSON(eventType, object), &ev); err != nil {
		t.Fatalf("unmarshal event: %v", err)
	}
	return ev
}

func TestChangeFromEvent(t *testing.T) {
	tests := []struct {
		name      string
		eventType string
		object    string
		want      Change
		wantOK    bool
	}{
		{
			name:      "checkout completed",
			eventType: "checkout.session.completed",
			object:    `{"id":"cs_1","object":"checkout.session","mode":"subscription","payment_status":"paid","client_reference_id":"user-1","customer":"cus_1"}`,
			want:      Change{UserID: "user-1", CustomerID: "cus_1", Tier: model.TierPremium},
			wantOK:    true,
		},
		{
			name:      "checkout unpaid",
			eventType: "checkout.session.completed",
			object:    `{"id":"cs_1","object":"checkout.session","mode":"subscription","payment_status":"unpaid","client_reference_id":"user-1","customer":"cus_1"}`,
		},
		{
			name:      "checkout without user",
			eventType: "checkout.session.completed",
			object:    `{"id":"cs_1","object":"checkout.session","mode":"subscription","payment_status":"paid","customer":"cus_1"}`,
		},
		{
			name:      "subscription active",
			eventType: "customer.subscription.updated",
			object:    `{"id":"sub_1","object":"subscription","status":"active","customer":"cus_1"}`,
			want:      Change{CustomerID: "cus_1", Tier: model.TierPremium},
			wantOK:    true,
		},
		{
			name:      "subscription unpaid",
			eventType: "customer.subscription.updated",
			object:    `{"id":"sub_1","object":"subscription","status":"unpaid","customer":"cus_1"}`,
			want:      Change{CustomerID: "cus_1", Tier: model.TierFree},
			wantOK:    true,
		},
		{
			name:      "subscription past due keeps tier",
			eventType: "customer.subscription.updated",
			object:    `{"id":"sub_1","object":"subscription","status":"past_due","customer":"cus_1"}`,
		},
		{
			name:      "subscription deleted",
			eventType: "customer.subscription.deleted",
			object:    `{"id":"sub_1","object":"subscription","status":"canceled","customer":"cus_1"}`,
			want:      Change{CustomerID: "cus_1", Tier: model.TierFree},
			wantOK:    true,
		},
		{
			name:      "unrelated event",
			eventType: "invoice.paid",
			object:    `{"id":"in_1","object":"invoice"}`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok, err := ChangeFromEvent(parseEvent(t, tt.eventType, tt.object))
			if err != nil {
				t.Fatalf("change from event: %v", err)
			}
			if ok != tt.wantOK {
				t.Fatalf("ok = %v, want %v", ok, tt.wantOK)
			}
			if got != tt.want {
				t.Errorf("change = %+v, want %+v", got, tt.want)
			}
		})
	}
}

func TestTierForStatus(t *testing.T) {
	if tier, ok := TierForStatus(stripe.SubscriptionStatusTrialing); !ok || tier != model.TierPremium {
		t.Errorf("trialing = %q, %v", tier, ok)
	}
	if tier, ok := TierForStatus(stripe.SubscriptionStatusCanceled); !ok || tier != model.TierFree {
		t.Errorf("canceled = %q, %v", tier, ok)
	}
	if _, ok := TierForStatus(stripe.SubscriptionStatusIncomplete); ok {
		t.Error("incomplete should not change the tier")
	}
}

func TestConstructWebhookEvent(t *testing.T) {
	c := NewClient(Config{WebhookSecret: "whsec_test"})
	if c.Configured() {
		t.Error("client without secret key should not be configured")
	}

	payload := eventJSON("customer.subscription.deleted",
		`{"id":"sub_1","object":"subscription","status":"canceled","customer":"cus_1"}`)
	signed := webhook.GenerateTestSignedPayload(&webhook.UnsignedPayload{
		Payload: payload,
		Secret:  "whsec_test",
	})

	ev, err := c.ConstructWebhookEvent(signed.Payload, signed.Header)
	if err != nil {
		t.Fatalf("construct event: %v", err)
	}
	if ev.Type != "customer.subscription.deleted" {
		t.Errorf("type = %q", ev.Type)
	}

	if _, err := c.ConstructWebhookEvent(payload, "t=1,v1=bad"); err == nil {
		t.Error("expected error for bad signature")
	}
}
