package payments

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/stripe/stripe-go/v78"
	"github.com/stripe/stripe-go/v78/webhook"
)

// EventKind classifies gateway webhook events the reconciler acts on.
type EventKind string

const (
	// EventPaymentSucceeded reports the intent's charge completed.
	EventPaymentSucceeded EventKind = "payment_succeeded"
	// EventPaymentFailed reports the intent failed or was cancelled.
	EventPaymentFailed EventKind = "payment_failed"
	// EventIgnored is any event type the reconciler does not act on.
	EventIgnored EventKind = "ignored"
)

// ErrInvalidSignature is returned when the webhook payload fails signature
// verification against the shared signing secret.
var ErrInvalidSignature = errors.New("payments: invalid webhook signature")

// Event is a verified, normalised gateway webhook event.
type Event struct {
	Kind        EventKind
	Type        string
	IntentID    string
	AmountCents int64
}

// EventVerifier authenticates webhook deliveries with the shared signing
// secret. Signature verification is the sole authentication for the webhook
// endpoint: the caller is the gateway, not an end user.
type EventVerifier struct {
	secret string
}

// NewEventVerifier constructs an EventVerifier for the given signing secret.
func NewEventVerifier(secret string) (*EventVerifier, error) {
	secret = strings.TrimSpace(secret)
	if secret == "" {
		return nil, errors.New("payments: webhook signing secret is required")
	}
	return &EventVerifier{secret: secret}, nil
}

// Verify checks the payload signature and maps the event into the normalised
// form. A signature failure returns ErrInvalidSignature and no event.
func (v *EventVerifier) Verify(payload []byte, signatureHeader string) (Event, error) {
	if v == nil {
		return Event{}, errors.New("payments: event verifier is nil")
	}

	event, err := webhook.ConstructEventWithOptions(payload, signatureHeader, v.secret, webhook.ConstructEventOptions{
		IgnoreAPIVersionMismatch: true,
	})
	if err != nil {
		return Event{}, fmt.Errorf("%w: %v", ErrInvalidSignature, err)
	}

	kind := EventIgnored
	switch event.Type {
	case "payment_intent.succeeded":
		kind = EventPaymentSucceeded
	case "payment_intent.payment_failed", "payment_intent.canceled":
		kind = EventPaymentFailed
	}

	normalised := Event{
		Kind: kind,
		Type: string(event.Type),
	}
	if kind == EventIgnored {
		return normalised, nil
	}

	var intent stripe.PaymentIntent
	if err := json.Unmarshal(event.Data.Raw, &intent); err != nil {
		return Event{}, fmt.Errorf("payments: decode webhook payment intent: %w", err)
	}
	normalised.IntentID = intent.ID
	normalised.AmountCents = intent.Amount
	return normalised, nil
}
