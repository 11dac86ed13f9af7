package payments

import (
	"context"
	"errors"
)

// Status enumerates the normalised payment states reported by the gateway.
type Status string

const (
	// StatusPending indicates the intent is awaiting customer action or gateway confirmation.
	StatusPending Status = "pending"
	// StatusSucceeded indicates the gateway reports the charge as successfully captured.
	StatusSucceeded Status = "succeeded"
	// StatusFailed indicates the gateway reports a failure or cancellation.
	StatusFailed Status = "failed"
	// StatusRefunded indicates the captured charge has been refunded.
	StatusRefunded Status = "refunded"
)

// Settled reports whether the charge behind the intent has completed. Only
// settled intents can be refunded; unsettled ones are cancelled instead.
func (s Status) Settled() bool {
	return s == StatusSucceeded || s == StatusRefunded
}

// ErrIntentNotFound is returned when the gateway has no record of the intent.
var ErrIntentNotFound = errors.New("payments: intent not found")

// Intent is the gateway object representing a planned charge, updatable in
// amount until captured.
type Intent struct {
	ID           string
	ClientSecret string
	AmountCents  int64
	Currency     string
	Status       Status
}

// Refund records the gateway-side reversal of a settled intent.
type Refund struct {
	ID          string
	IntentID    string
	AmountCents int64
}

// CreateIntentRequest captures the payload required to create an intent.
type CreateIntentRequest struct {
	AmountCents    int64
	Currency       string
	BuyerEmail     string
	Metadata       map[string]string
	IdempotencyKey string
}

// UpdateIntentRequest resizes an existing intent to a new amount.
type UpdateIntentRequest struct {
	IntentID    string
	AmountCents int64
}

// CancelIntentRequest voids an intent whose charge has not completed.
type CancelIntentRequest struct {
	IntentID string
	Reason   string
}

// RefundRequest reverses a settled intent. The idempotency key guarantees
// retried requests create at most one gateway refund.
type RefundRequest struct {
	IntentID       string
	Metadata       map[string]string
	IdempotencyKey string
}

// Provider defines the contract a payment gateway adapter implements.
type Provider interface {
	CreateIntent(ctx context.Context, req CreateIntentRequest) (Intent, error)
	UpdateIntent(ctx context.Context, req UpdateIntentRequest) (Intent, error)
	GetIntent(ctx context.Context, intentID string) (Intent, error)
	CancelIntent(ctx context.Context, req CancelIntentRequest) (Intent, error)
	Refund(ctx context.Context, req RefundRequest) (Refund, error)
}
