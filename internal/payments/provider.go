// Package payments abstracts the checkout provider. Plan purchases go
// through a hosted checkout page; the provider later confirms the
// charge via webhook and the service layer activates the subscription.
package payments

import (
	"context"
	"fmt"

	"github.com/google/uuid"
)

// Checkout is a started provider session the client gets redirected to.
type Checkout struct {
	SessionID string
	URL       string
}

// Provider creates checkout sessions for plan purchases.
type Provider interface {
	CreateCheckout(ctx context.Context, paymentID int64, planName string, amountUSD float64) (*Checkout, error)
}

// StubProvider issues local checkout sessions without contacting any
// payment network. Useful for development and for environments where
// billing is confirmed manually.
type StubProvider struct {
	baseURL string
}

func NewStubProvider(baseURL string) *StubProvider {
	return &StubProvider{baseURL: baseURL}
}

func (p *StubProvider) CreateCheckout(_ context.Context, paymentID int64, planName string, amountUSD float64) (*Checkout, error) {
	sessionID := uuid.NewString()
	return &Checkout{
		SessionID: sessionID,
		URL:       fmt.Sprintf("%s/checkout/%s?payment_id=%d&plan=%s&amount=%.2f", p.baseURL, sessionID, paymentID, planName, amountUSD),
	}, nil
}

var _ Provider = (*StubProvider)(nil)
