package stripe

import (
	"encoding/json"
	"fmt"
)

// EventCheckoutCompleted is the only event type the webhook consumes.
const EventCheckoutCompleted = "checkout.session.completed"

// Event is a Stripe webhook event envelope.
type Event struct {
	ID   string `json:"id"`
	Type string `json:"type"`
	Data struct {
		Object CheckoutSession `json:"object"`
	} `json:"data"`
}

// CheckoutSession carries the completed checkout. AmountTotal is already
// in the smallest currency unit.
type CheckoutSession struct {
	ID            string            `json:"id"`
	PaymentIntent string            `json:"payment_intent"`
	AmountTotal   int64             `json:"amount_total"`
	PaymentStatus string            `json:"payment_status"`
	Metadata      map[string]string `json:"metadata"`
}

// ParseEvent decodes and validates a webhook body.
func ParseEvent(body []byte) (*Event, error) {
	var ev Event
	if err := json.Unmarshal(body, &ev); err != nil {
		return nil, fmt.Errorf("invalid event body: %w", err)
	}
	if ev.Type == "" {
		return nil, fmt.Errorf("event missing type")
	}
	if ev.Type == EventCheckoutCompleted && ev.Data.Object.ID == "" {
		return nil, fmt.Errorf("checkout event missing session id")
	}
	return &ev, nil
}

// IsPaid reports whether the session finished with a settled payment.
func (s *CheckoutSession) IsPaid() bool {
	return s.PaymentStatus == "paid"
}
