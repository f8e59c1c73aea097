package asaas

import (
	"crypto/subtle"
	"encoding/json"
	"fmt"
)

// Event names Asaas delivers that mean the payment is settled.
const (
	EventPaymentConfirmed = "PAYMENT_CONFIRMED"
	EventPaymentReceived  = "PAYMENT_RECEIVED"
)

// WebhookEvent represents an Asaas webhook notification.
// Asaas sends JSON with the event name and the payment snapshot.
type WebhookEvent struct {
	Event   string  `json:"event"`
	Payment Payment `json:"payment"`
}

// Payment is the payment object embedded in the webhook.
// Value is in currency units (reais), not cents.
type Payment struct {
	ID                string      `json:"id"`
	Value             json.Number `json:"value"`
	BillingType       string      `json:"billingType"`
	Status            string      `json:"status"`
	ExternalReference string      `json:"externalReference"`
}

// Reference is the metadata bag the checkout flow packs into
// externalReference when creating the charge.
type Reference struct {
	UserID       string `json:"user_id"`
	PlanID       string `json:"plan_id,omitempty"`
	GroupID      string `json:"group_id,omitempty"`
	ReferralCode string `json:"referral_code,omitempty"`
}

// ParseWebhook decodes and validates a webhook body.
func ParseWebhook(body []byte) (*WebhookEvent, error) {
	var ev WebhookEvent
	if err := json.Unmarshal(body, &ev); err != nil {
		return nil, fmt.Errorf("invalid webhook body: %w", err)
	}
	if ev.Event == "" {
		return nil, fmt.Errorf("webhook missing event name")
	}
	if ev.Payment.ID == "" {
		return nil, fmt.Errorf("webhook missing payment id")
	}
	return &ev, nil
}

// ParseReference decodes the externalReference metadata bag.
func ParseReference(raw string) (*Reference, error) {
	if raw == "" {
		return nil, fmt.Errorf("empty external reference")
	}
	var ref Reference
	if err := json.Unmarshal([]byte(raw), &ref); err != nil {
		return nil, fmt.Errorf("invalid external reference: %w", err)
	}
	if ref.UserID == "" {
		return nil, fmt.Errorf("external reference missing user_id")
	}
	return &ref, nil
}

// IsSettled reports whether the event carries a settled payment.
// Asaas sends CONFIRMED for card and RECEIVED for PIX.
func (e *WebhookEvent) IsSettled() bool {
	return e.Event == EventPaymentConfirmed || e.Event == EventPaymentReceived
}

// VerifyAccessToken compares the asaas-access-token header against the
// configured token in constant time.
func VerifyAccessToken(got, want string) bool {
	if want == "" || got == "" {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(got), []byte(want)) == 1
}
