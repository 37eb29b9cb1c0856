package models

import (
	"time"
)

// TransactionStatus is the gateway-reported state of a transaction. Gateways
// may report strings outside the named set; those are carried through
// untouched and treated as opaque.
type TransactionStatus string

const (
	StatusAuthorized             TransactionStatus = "authorized"
	StatusSubmittedForSettlement TransactionStatus = "submitted_for_settlement"
	StatusSettling               TransactionStatus = "settling"
	StatusSettled                TransactionStatus = "settled"
	StatusVoided                 TransactionStatus = "voided"
	StatusFailed                 TransactionStatus = "failed"
)

// Voidable reports whether the transaction can still be cancelled before
// settlement.
func (s TransactionStatus) Voidable() bool {
	return s == StatusAuthorized || s == StatusSubmittedForSettlement
}

// Refundable reports whether the transaction has settled far enough that
// reversing it requires a refund rather than a void.
func (s TransactionStatus) Refundable() bool {
	return s == StatusSettled || s == StatusSettling
}

// InstrumentDetails describes the payment instrument used for a transaction,
// as far as the gateway is willing to share it.
type InstrumentDetails struct {
	Type         string `json:"type,omitempty"`
	MaskedNumber string `json:"masked_number,omitempty"`
}

// TransactionRecord is an opaque snapshot of a gateway transaction at a point
// in time. Its serialized form is the single source of truth persisted on an
// order. Once a record with a non-empty ID has been persisted, later
// snapshots of the same transaction may only change Status, RefundIDs and
// UpdatedAt.
type TransactionRecord struct {
	ID                     string             `json:"id"`
	Amount                 string             `json:"amount"`
	Status                 TransactionStatus  `json:"status"`
	Instrument             *InstrumentDetails `json:"instrument,omitempty"`
	ProcessorResponseCode  string             `json:"processor_response_code,omitempty"`
	ProcessorResponseText  string             `json:"processor_response_text,omitempty"`
	GatewayRejectionReason string             `json:"gateway_rejection_reason,omitempty"`
	RefundIDs              []string           `json:"refund_ids,omitempty"`
	CreatedAt              time.Time          `json:"created_at"`
	UpdatedAt              time.Time          `json:"updated_at"`
}

// ChargeResult is the outcome of a charge, void or refund attempt. Success
// false means the gateway gave a definitive decline; Transaction may still be
// set in that case, since some gateways report transaction data even for
// failed attempts.
type ChargeResult struct {
	Success     bool
	Transaction *TransactionRecord
	Message     string
}

// PaymentSession links a browser session to a pending charge. At most one
// live nonce exists per session, and it is consumed exactly once.
type PaymentSession struct {
	Nonce     string    `json:"nonce"`
	CreatedAt time.Time `json:"created_at"`
}
