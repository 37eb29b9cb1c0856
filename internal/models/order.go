package models

import (
	"time"

	"github.com/shopspring/decimal"
	"github.com/uptrace/bun"
)

// Order statuses used by the host order system.
const (
	OrderStatusPending  = "pending"
	OrderStatusPaid     = "paid"
	OrderStatusRefunded = "refunded"
)

// Order is the host application's representation of a purchase. The payment
// adapter only reads Total, reads/writes PaymentInfo and triggers status
// transitions through the order-state gateway.
type Order struct {
	bun.BaseModel `bun:"table:orders"`

	OrderID         string    `bun:"order_id,pk" json:"order_id"`
	EventID         string    `bun:"event_id" json:"event_id"`
	UserID          string    `bun:"user_id" json:"user_id"`
	UserEmail       string    `bun:"user_email,nullzero" json:"user_email,omitempty"`
	Status          string    `bun:"status" json:"status"`
	Total           string    `bun:"total" json:"total"`
	PaymentProvider string    `bun:"payment_provider,nullzero" json:"payment_provider,omitempty"`
	PaymentInfo     string    `bun:"payment_info,nullzero" json:"payment_info,omitempty"`
	RefundedBy      string    `bun:"refunded_by,nullzero" json:"refunded_by,omitempty"`
	CreatedAt       time.Time `bun:"created_at" json:"created_at"`
	UpdatedAt       time.Time `bun:"updated_at,nullzero" json:"updated_at,omitempty"`
}

// TotalAmount parses the order total into a decimal amount.
func (o *Order) TotalAmount() (decimal.Decimal, error) {
	return decimal.NewFromString(o.Total)
}

// EventQuota caps how many orders of an event may be paid. A missing row
// means unlimited capacity.
type EventQuota struct {
	bun.BaseModel `bun:"table:event_quotas"`

	EventID  string `bun:"event_id,pk" json:"event_id"`
	Capacity int64  `bun:"capacity" json:"capacity"`
}

// RequiredAction flags a situation that needs manual operator review, e.g.
// money captured for an event that has since sold out.
type RequiredAction struct {
	bun.BaseModel `bun:"table:required_actions"`

	ID         string    `bun:"id,pk" json:"id"`
	EventID    string    `bun:"event_id" json:"event_id"`
	ActionType string    `bun:"action_type" json:"action_type"`
	Data       string    `bun:"data" json:"data"`
	Resolved   bool      `bun:"resolved" json:"resolved"`
	CreatedAt  time.Time `bun:"created_at" json:"created_at"`
}

// PaymentEvent is the payload published to Kafka for payment lifecycle
// notifications.
type PaymentEvent struct {
	Type      string    `json:"type"`
	OrderID   string    `json:"order_id"`
	EventID   string    `json:"event_id"`
	Provider  string    `json:"provider"`
	Reference string    `json:"reference,omitempty"`
	Message   string    `json:"message,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}
