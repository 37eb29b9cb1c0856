// Package orderstate implements the host-side order gateway: persistence of
// orders, quota accounting, required actions and the paid/refunded state
// transitions the payment adapter triggers.
package orderstate

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/uptrace/bun"

	"ms-payments/internal/models"
)

var ErrOrderNotFound = errors.New("orderstate: order not found")

type DB struct {
	Bun *bun.DB
}

// GetOrderByID fetches one order by its ID.
func (d *DB) GetOrderByID(ctx context.Context, id string) (*models.Order, error) {
	var order models.Order
	err := d.Bun.NewSelect().
		Model(&order).
		Where("order_id = ?", id).
		Limit(1).
		Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrOrderNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("orderstate: get order %s: %w", id, err)
	}
	return &order, nil
}

// CreateOrder inserts a new order.
func (d *DB) CreateOrder(ctx context.Context, order *models.Order) error {
	_, err := d.Bun.NewInsert().Model(order).Exec(ctx)
	if err != nil {
		return fmt.Errorf("orderstate: create order %s: %w", order.OrderID, err)
	}
	return nil
}

// UpdateOrder overwrites the fields the payment flow owns.
func (d *DB) UpdateOrder(ctx context.Context, order *models.Order) error {
	_, err := d.Bun.NewUpdate().
		Model(order).
		Column("status", "payment_provider", "payment_info", "refunded_by", "updated_at").
		Where("order_id = ?", order.OrderID).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("orderstate: update order %s: %w", order.OrderID, err)
	}
	return nil
}

// CountPaidOrders returns how many orders of an event have been paid.
func (d *DB) CountPaidOrders(ctx context.Context, eventID string) (int64, error) {
	count, err := d.Bun.NewSelect().
		Model((*models.Order)(nil)).
		Where("event_id = ?", eventID).
		Where("status = ?", models.OrderStatusPaid).
		Count(ctx)
	if err != nil {
		return 0, fmt.Errorf("orderstate: count paid orders for event %s: %w", eventID, err)
	}
	return int64(count), nil
}

// GetQuota returns the capacity configured for an event. The second return
// is false when no quota row exists, which means unlimited capacity.
func (d *DB) GetQuota(ctx context.Context, eventID string) (int64, bool, error) {
	var quota models.EventQuota
	err := d.Bun.NewSelect().
		Model(&quota).
		Where("event_id = ?", eventID).
		Limit(1).
		Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, fmt.Errorf("orderstate: get quota for event %s: %w", eventID, err)
	}
	return quota.Capacity, true, nil
}

// SetQuota upserts the capacity for an event.
func (d *DB) SetQuota(ctx context.Context, eventID string, capacity int64) error {
	quota := &models.EventQuota{EventID: eventID, Capacity: capacity}
	_, err := d.Bun.NewInsert().
		Model(quota).
		On("CONFLICT (event_id) DO UPDATE").
		Set("capacity = EXCLUDED.capacity").
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("orderstate: set quota for event %s: %w", eventID, err)
	}
	return nil
}

// CreateRequiredAction inserts an operator review flag.
func (d *DB) CreateRequiredAction(ctx context.Context, action *models.RequiredAction) error {
	_, err := d.Bun.NewInsert().Model(action).Exec(ctx)
	if err != nil {
		return fmt.Errorf("orderstate: create required action: %w", err)
	}
	return nil
}

// ListOpenRequiredActions returns unresolved review flags for an event.
func (d *DB) ListOpenRequiredActions(ctx context.Context, eventID string) ([]models.RequiredAction, error) {
	var actions []models.RequiredAction
	err := d.Bun.NewSelect().
		Model(&actions).
		Where("event_id = ?", eventID).
		Where("resolved = ?", false).
		Order("created_at ASC").
		Scan(ctx)
	if err != nil {
		return nil, fmt.Errorf("orderstate: list required actions for event %s: %w", eventID, err)
	}
	return actions, nil
}
