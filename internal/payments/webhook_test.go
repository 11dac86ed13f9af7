package payments

import (
	"encoding/hex"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stripe/stripe-go/v78/webhook"
)

const testSigningSecret = "whsec_test_secret"

func signedPayload(t *testing.T, payload string) (body []byte, header string) {
	t.Helper()
	body = []byte(payload)
	now := time.Now()
	signature := webhook.ComputeSignature(now, body, testSigningSecret)
	header = fmt.Sprintf("t=%d,v1=%s", now.Unix(), hex.EncodeToString(signature))
	return body, header
}

func TestEventVerifierRequiresSecret(t *testing.T) {
	if _, err := NewEventVerifier("  "); err == nil {
		t.Fatal("expected error for empty signing secret")
	}
}

func TestEventVerifierAcceptsSucceededEvent(t *testing.T) {
	verifier, err := NewEventVerifier(testSigningSecret)
	if err != nil {
		t.Fatalf("NewEventVerifier: %v", err)
	}

	body, header := signedPayload(t, `{
		"id": "evt_1",
		"type": "payment_intent.succeeded",
		"data": {"object": {"id": "pi_123", "amount": 11000}}
	}`)

	event, err := verifier.Verify(body, header)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if event.Kind != EventPaymentSucceeded {
		t.Fatalf("expected payment_succeeded, got %s", event.Kind)
	}
	if event.IntentID != "pi_123" || event.AmountCents != 11000 {
		t.Fatalf("unexpected event %+v", event)
	}
}

func TestEventVerifierMapsFailureEvents(t *testing.T) {
	verifier, err := NewEventVerifier(testSigningSecret)
	if err != nil {
		t.Fatalf("NewEventVerifier: %v", err)
	}

	for _, eventType := range []string{"payment_intent.payment_failed", "payment_intent.canceled"} {
		body, header := signedPayload(t, fmt.Sprintf(`{
			"id": "evt_2",
			"type": %q,
			"data": {"object": {"id": "pi_456", "amount": 900}}
		}`, eventType))

		event, err := verifier.Verify(body, header)
		if err != nil {
			t.Fatalf("unexpected error for %s: %v", eventType, err)
		}
		if event.Kind != EventPaymentFailed {
			t.Fatalf("expected payment_failed for %s, got %s", eventType, event.Kind)
		}
		if event.IntentID != "pi_456" {
			t.Fatalf("unexpected intent id %q", event.IntentID)
		}
	}
}

func TestEventVerifierIgnoresUnrelatedEvents(t *testing.T) {
	verifier, err := NewEventVerifier(testSigningSecret)
	if err != nil {
		t.Fatalf("NewEventVerifier: %v", err)
	}

	body, header := signedPayload(t, `{
		"id": "evt_3",
		"type": "charge.updated",
		"data": {"object": {"id": "ch_1"}}
	}`)

	event, err := verifier.Verify(body, header)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if event.Kind != EventIgnored {
		t.Fatalf("expected ignored event, got %s", event.Kind)
	}
}

func TestEventVerifierRejectsBadSignature(t *testing.T) {
	verifier, err := NewEventVerifier(testSigningSecret)
	if err != nil {
		t.Fatalf("NewEventVerifier: %v", err)
	}

	body, _ := signedPayload(t, `{"id": "evt_4", "type": "payment_intent.succeeded", "data": {"object": {}}}`)
	_, header := signedPayload(t, `{"id": "evt_other"}`)

	if _, err := verifier.Verify(body, header); !errors.Is(err, ErrInvalidSignature) {
		t.Fatalf("expected ErrInvalidSignature, got %v", err)
	}
}
