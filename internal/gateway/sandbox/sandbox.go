// Package sandbox is an in-memory gateway client for local development and
// tests. It honours the full charge/void/refund lifecycle without talking to
// any external service.
package sandbox

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"ms-payments/internal/gateway"
	"ms-payments/internal/models"
)

const Identifier = "sandbox"

// Nonces with this prefix are declined, mirroring the fake payment-method
// nonces real gateways hand out for sandbox testing.
const DeclineNoncePrefix = "fake-processor-declined"

// Client keeps all transactions in memory, keyed by reference ID.
type Client struct {
	mu           sync.Mutex
	transactions map[string]*models.TransactionRecord
	usedNonces   map[string]bool
}

func New() *Client {
	return &Client{
		transactions: make(map[string]*models.TransactionRecord),
		usedNonces:   make(map[string]bool),
	}
}

func (c *Client) Identifier() string {
	return Identifier
}

func (c *Client) GenerateClientToken(ctx context.Context) (string, error) {
	return "sandbox-client-token-" + uuid.NewString(), nil
}

func (c *Client) Charge(ctx context.Context, amount decimal.Decimal, nonce string) (*models.ChargeResult, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if nonce == "" {
		return nil, &gateway.Error{Provider: Identifier, Message: "empty payment method nonce", Transient: false}
	}
	if c.usedNonces[nonce] {
		return nil, &gateway.Error{Provider: Identifier, Message: "payment method nonce already consumed", Transient: false}
	}
	c.usedNonces[nonce] = true

	if amount.LessThanOrEqual(decimal.Zero) {
		return &models.ChargeResult{Success: false, Message: "invalid charge amount"}, nil
	}
	if strings.HasPrefix(nonce, DeclineNoncePrefix) {
		now := time.Now().UTC()
		tr := &models.TransactionRecord{
			ID:                    "sbtxn_" + uuid.NewString(),
			Amount:                amount.StringFixed(2),
			Status:                models.StatusFailed,
			ProcessorResponseCode: "2000",
			ProcessorResponseText: "Do Not Honor",
			CreatedAt:             now,
			UpdatedAt:             now,
		}
		c.transactions[tr.ID] = tr
		return &models.ChargeResult{Success: false, Transaction: clone(tr), Message: "processor declined"}, nil
	}

	now := time.Now().UTC()
	tr := &models.TransactionRecord{
		ID:     "sbtxn_" + uuid.NewString(),
		Amount: amount.StringFixed(2),
		Status: models.StatusSubmittedForSettlement,
		Instrument: &models.InstrumentDetails{
			Type:         "Visa",
			MaskedNumber: "401288******1881",
		},
		ProcessorResponseCode: "1000",
		ProcessorResponseText: "Approved",
		CreatedAt:             now,
		UpdatedAt:             now,
	}
	c.transactions[tr.ID] = tr
	return &models.ChargeResult{Success: true, Transaction: clone(tr)}, nil
}

func (c *Client) Find(ctx context.Context, referenceID string) (*models.TransactionRecord, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	tr, ok := c.transactions[referenceID]
	if !ok {
		return nil, gateway.ErrNotFound
	}
	return clone(tr), nil
}

func (c *Client) Void(ctx context.Context, referenceID string) (*models.ChargeResult, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	tr, ok := c.transactions[referenceID]
	if !ok {
		return nil, gateway.ErrNotFound
	}
	if !tr.Status.Voidable() {
		return &models.ChargeResult{
			Success:     false,
			Transaction: clone(tr),
			Message:     fmt.Sprintf("transaction cannot be voided in status %s", tr.Status),
		}, nil
	}

	tr.Status = models.StatusVoided
	tr.UpdatedAt = time.Now().UTC()
	return &models.ChargeResult{Success: true, Transaction: clone(tr)}, nil
}

func (c *Client) Refund(ctx context.Context, referenceID string) (*models.ChargeResult, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	tr, ok := c.transactions[referenceID]
	if !ok {
		return nil, gateway.ErrNotFound
	}
	if !tr.Status.Refundable() {
		return &models.ChargeResult{
			Success:     false,
			Transaction: clone(tr),
			Message:     fmt.Sprintf("transaction cannot be refunded in status %s", tr.Status),
		}, nil
	}

	tr.RefundIDs = append(tr.RefundIDs, "sbref_"+uuid.NewString())
	tr.UpdatedAt = time.Now().UTC()
	return &models.ChargeResult{Success: true, Transaction: clone(tr)}, nil
}

// Settle moves a submitted transaction to settled, standing in for the
// gateway-side settlement batch that runs overnight in production.
func (c *Client) Settle(referenceID string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	tr, ok := c.transactions[referenceID]
	if !ok {
		return gateway.ErrNotFound
	}
	tr.Status = models.StatusSettled
	tr.UpdatedAt = time.Now().UTC()
	return nil
}

func clone(tr *models.TransactionRecord) *models.TransactionRecord {
	cp := *tr
	if tr.Instrument != nil {
		inst := *tr.Instrument
		cp.Instrument = &inst
	}
	cp.RefundIDs = append([]string(nil), tr.RefundIDs...)
	return &cp
}
