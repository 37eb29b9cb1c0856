package orderstate

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"ms-payments/internal/adapter"
	"ms-payments/internal/logger"
	"ms-payments/internal/models"
)

// Mailer sends the confirmation notice after an order is booked.
type Mailer interface {
	SendPaymentConfirmation(ctx context.Context, order *models.Order) error
}

// Gateway implements the adapter's OrderGateway, RequiredActionSink and
// AvailabilityChecker against the orders database.
type Gateway struct {
	DB     *DB
	Mailer Mailer
	Log    *logger.Logger
}

func NewGateway(db *DB, mailer Mailer, log *logger.Logger) *Gateway {
	return &Gateway{DB: db, Mailer: mailer, Log: log}
}

// IsAvailable reports whether the event still has paid capacity left.
func (g *Gateway) IsAvailable(ctx context.Context, eventID string) (bool, error) {
	capacity, limited, err := g.DB.GetQuota(ctx, eventID)
	if err != nil {
		return false, err
	}
	if !limited {
		return true, nil
	}

	paid, err := g.DB.CountPaidOrders(ctx, eventID)
	if err != nil {
		return false, err
	}
	return paid < capacity, nil
}

// MarkPaid transitions an order to paid. Fails with a wrapped
// adapter.ErrQuotaExceeded before committing anything when event capacity is
// gone, and with adapter.ErrMailDelivery after committing when only the
// confirmation mail failed.
func (g *Gateway) MarkPaid(ctx context.Context, order *models.Order, provider, reference string) error {
	available, err := g.IsAvailable(ctx, order.EventID)
	if err != nil {
		return err
	}
	if !available {
		return fmt.Errorf("event %s is sold out: %w", order.EventID, adapter.ErrQuotaExceeded)
	}

	order.Status = models.OrderStatusPaid
	order.PaymentProvider = provider
	order.UpdatedAt = time.Now().UTC()
	if err := g.DB.UpdateOrder(ctx, order); err != nil {
		return err
	}
	g.Log.LogDatabase("UPDATE", "orders", fmt.Sprintf("Order %s marked paid via %s (ref %s)", order.OrderID, provider, reference))

	if g.Mailer != nil {
		if err := g.Mailer.SendPaymentConfirmation(ctx, order); err != nil {
			// The paid transition stays committed; only the notice failed.
			return fmt.Errorf("confirmation mail for order %s: %v: %w", order.OrderID, err, adapter.ErrMailDelivery)
		}
	}
	return nil
}

// MarkRefunded transitions an order to refunded, recording who initiated it.
func (g *Gateway) MarkRefunded(ctx context.Context, order *models.Order, actor string) error {
	order.Status = models.OrderStatusRefunded
	order.RefundedBy = actor
	order.UpdatedAt = time.Now().UTC()
	if err := g.DB.UpdateOrder(ctx, order); err != nil {
		return err
	}
	g.Log.LogDatabase("UPDATE", "orders", fmt.Sprintf("Order %s marked refunded by %s", order.OrderID, actor))
	return nil
}

// SavePaymentInfo overwrites the persisted transaction snapshot on an order.
func (g *Gateway) SavePaymentInfo(ctx context.Context, order *models.Order, info string) error {
	order.PaymentInfo = info
	order.UpdatedAt = time.Now().UTC()
	return g.DB.UpdateOrder(ctx, order)
}

// RecordRequiredAction persists an operator review flag.
func (g *Gateway) RecordRequiredAction(ctx context.Context, eventID, actionType, data string) error {
	action := &models.RequiredAction{
		ID:         uuid.NewString(),
		EventID:    eventID,
		ActionType: actionType,
		Data:       data,
		CreatedAt:  time.Now().UTC(),
	}
	if err := g.DB.CreateRequiredAction(ctx, action); err != nil {
		return err
	}
	g.Log.Warn("REVIEW", fmt.Sprintf("Required action %s recorded for event %s: %s", actionType, eventID, data))
	return nil
}
