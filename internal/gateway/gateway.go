// Package gateway defines the capability set a concrete payment gateway
// adapter must implement, and the error taxonomy shared by all providers.
package gateway

import (
	"context"
	"errors"
	"fmt"

	"github.com/shopspring/decimal"

	"ms-payments/internal/models"
)

// Environment selects which gateway backend a client talks to.
type Environment string

const (
	EnvironmentProduction Environment = "production"
	EnvironmentSandbox    Environment = "sandbox"
)

// ErrNotFound is returned by Find when the gateway has no such transaction.
var ErrNotFound = errors.New("gateway: transaction not found")

// Error is a gateway-level fault: network, auth or protocol problems, as
// opposed to a definitive decline (which is a ChargeResult with Success
// false). Transient marks faults worth a user-visible retry prompt.
type Error struct {
	Provider  string
	Message   string
	Transient bool
}

func (e *Error) Error() string {
	return fmt.Sprintf("gateway %s: %s", e.Provider, e.Message)
}

// Client is the capability set any concrete gateway must provide. Charge must
// be called at most once per payment session; the caller owns nonce
// consumption. All operations block synchronously on the gateway and return
// *Error on transport faults.
type Client interface {
	// Identifier names the provider, e.g. "stripecc". It is recorded on
	// orders paid through this client.
	Identifier() string

	// GenerateClientToken produces a short-lived credential the browser-side
	// payment widget needs to collect card data. No local side effects.
	GenerateClientToken(ctx context.Context) (string, error)

	// Charge submits a one-time payment for settlement.
	Charge(ctx context.Context, amount decimal.Decimal, nonce string) (*models.ChargeResult, error)

	// Find fetches the current snapshot of a transaction. Returns ErrNotFound
	// if the gateway has no such transaction.
	Find(ctx context.Context, referenceID string) (*models.TransactionRecord, error)

	// Void cancels a charge before settlement. Only valid while the
	// transaction status is authorized or submitted_for_settlement.
	Void(ctx context.Context, referenceID string) (*models.ChargeResult, error)

	// Refund reverses a settled charge. Only valid while the transaction
	// status is settled or settling.
	Refund(ctx context.Context, referenceID string) (*models.ChargeResult, error)
}
