package adapter

import (
	"errors"
)

// Sentinel failures the order-state gateway may report from MarkPaid.
// Implementations wrap these so the adapter can branch with errors.Is.
var (
	// ErrQuotaExceeded: the charge succeeded but local event capacity is
	// gone. Money is NOT refunded automatically; this escalates to a
	// required-action record for operator judgement.
	ErrQuotaExceeded = errors.New("event quota exceeded")

	// ErrMailDelivery: charge and booking succeeded, only the confirmation
	// notification failed.
	ErrMailDelivery = errors.New("confirmation mail delivery failed")
)

// ErrNoNonce is raised when a charge is attempted for a session that holds no
// live payment nonce, e.g. after a replayed form submission.
var ErrNoNonce = errors.New("no payment nonce captured for session")

// PaymentError blocks checkout completion and carries a message safe to show
// to the buyer.
type PaymentError struct {
	Message string
	Err     error
}

func (e *PaymentError) Error() string {
	return e.Message
}

func (e *PaymentError) Unwrap() error {
	return e.Err
}
