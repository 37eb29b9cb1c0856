package orderstate_test

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/sqlitedialect"
	"github.com/uptrace/bun/driver/sqliteshim"

	"ms-payments/internal/adapter"
	"ms-payments/internal/logger"
	"ms-payments/internal/models"
	"ms-payments/internal/orderstate"
)

type stubMailer struct {
	err   error
	calls int
}

func (m *stubMailer) SendPaymentConfirmation(ctx context.Context, order *models.Order) error {
	m.calls++
	return m.err
}

func setupGateway(t *testing.T, mailer orderstate.Mailer) (*orderstate.Gateway, *orderstate.DB) {
	sqldb, err := sql.Open(sqliteshim.ShimName, "file::memory:?cache=shared")
	require.NoError(t, err)
	t.Cleanup(func() { sqldb.Close() })

	bunDB := bun.NewDB(sqldb, sqlitedialect.New())
	require.NoError(t, bunDB.ResetModel(context.Background(),
		(*models.Order)(nil), (*models.EventQuota)(nil), (*models.RequiredAction)(nil)))

	db := &orderstate.DB{Bun: bunDB}
	return orderstate.NewGateway(db, mailer, logger.NewLogger()), db
}

func seedOrder(t *testing.T, db *orderstate.DB, order *models.Order) {
	if order.Status == "" {
		order.Status = models.OrderStatusPending
	}
	if order.CreatedAt.IsZero() {
		order.CreatedAt = time.Now().UTC()
	}
	require.NoError(t, db.CreateOrder(context.Background(), order))
}

func TestMarkPaid(t *testing.T) {
	mailer := &stubMailer{}
	gw, db := setupGateway(t, mailer)
	ctx := context.Background()

	order := &models.Order{OrderID: "o-1", EventID: "e-1", Total: "42.00"}
	seedOrder(t, db, order)

	require.NoError(t, gw.MarkPaid(ctx, order, "stripecc", "txn_1"))
	assert.Equal(t, 1, mailer.calls)

	stored, err := db.GetOrderByID(ctx, "o-1")
	require.NoError(t, err)
	assert.Equal(t, models.OrderStatusPaid, stored.Status)
	assert.Equal(t, "stripecc", stored.PaymentProvider)
}

func TestMarkPaidQuotaExceeded(t *testing.T) {
	gw, db := setupGateway(t, &stubMailer{})
	ctx := context.Background()

	require.NoError(t, db.SetQuota(ctx, "e-1", 1))

	paid := &models.Order{OrderID: "o-1", EventID: "e-1", Total: "10.00", Status: models.OrderStatusPaid}
	seedOrder(t, db, paid)

	order := &models.Order{OrderID: "o-2", EventID: "e-1", Total: "10.00"}
	seedOrder(t, db, order)

	err := gw.MarkPaid(ctx, order, "stripecc", "txn_2")
	require.Error(t, err)
	assert.ErrorIs(t, err, adapter.ErrQuotaExceeded)

	// The order must not have transitioned.
	stored, gerr := db.GetOrderByID(ctx, "o-2")
	require.NoError(t, gerr)
	assert.Equal(t, models.OrderStatusPending, stored.Status)
}

func TestMarkPaidMailFailure(t *testing.T) {
	mailer := &stubMailer{err: errors.New("smtp timeout")}
	gw, db := setupGateway(t, mailer)
	ctx := context.Background()

	order := &models.Order{OrderID: "o-1", EventID: "e-1", Total: "10.00", UserEmail: "buyer@example.com"}
	seedOrder(t, db, order)

	err := gw.MarkPaid(ctx, order, "stripecc", "txn_1")
	require.Error(t, err)
	assert.ErrorIs(t, err, adapter.ErrMailDelivery)

	// The paid transition stays committed even though the mail failed.
	stored, gerr := db.GetOrderByID(ctx, "o-1")
	require.NoError(t, gerr)
	assert.Equal(t, models.OrderStatusPaid, stored.Status)
}

func TestMarkRefunded(t *testing.T) {
	gw, db := setupGateway(t, &stubMailer{})
	ctx := context.Background()

	order := &models.Order{OrderID: "o-1", EventID: "e-1", Total: "10.00", Status: models.OrderStatusPaid}
	seedOrder(t, db, order)

	require.NoError(t, gw.MarkRefunded(ctx, order, "staff@example.com"))

	stored, err := db.GetOrderByID(ctx, "o-1")
	require.NoError(t, err)
	assert.Equal(t, models.OrderStatusRefunded, stored.Status)
	assert.Equal(t, "staff@example.com", stored.RefundedBy)
}

func TestIsAvailable(t *testing.T) {
	gw, db := setupGateway(t, &stubMailer{})
	ctx := context.Background()

	// No quota row means unlimited capacity.
	available, err := gw.IsAvailable(ctx, "e-unlimited")
	require.NoError(t, err)
	assert.True(t, available)

	require.NoError(t, db.SetQuota(ctx, "e-1", 2))
	seedOrder(t, db, &models.Order{OrderID: "o-1", EventID: "e-1", Total: "1.00", Status: models.OrderStatusPaid})

	available, err = gw.IsAvailable(ctx, "e-1")
	require.NoError(t, err)
	assert.True(t, available)

	seedOrder(t, db, &models.Order{OrderID: "o-2", EventID: "e-1", Total: "1.00", Status: models.OrderStatusPaid})

	available, err = gw.IsAvailable(ctx, "e-1")
	require.NoError(t, err)
	assert.False(t, available)
}

func TestRecordRequiredAction(t *testing.T) {
	gw, db := setupGateway(t, &stubMailer{})
	ctx := context.Background()

	require.NoError(t, gw.RecordRequiredAction(ctx, "e-1", "overpaid", `{"order":"o-1"}`))

	actions, err := db.ListOpenRequiredActions(ctx, "e-1")
	require.NoError(t, err)
	require.Len(t, actions, 1)
	assert.Equal(t, "overpaid", actions[0].ActionType)
	assert.JSONEq(t, `{"order":"o-1"}`, actions[0].Data)
	assert.False(t, actions[0].Resolved)
}

func TestSavePaymentInfo(t *testing.T) {
	gw, db := setupGateway(t, &stubMailer{})
	ctx := context.Background()

	order := &models.Order{OrderID: "o-1", EventID: "e-1", Total: "10.00"}
	seedOrder(t, db, order)

	require.NoError(t, gw.SavePaymentInfo(ctx, order, `{"error":"card declined"}`))

	stored, err := db.GetOrderByID(ctx, "o-1")
	require.NoError(t, err)
	assert.JSONEq(t, `{"error":"card declined"}`, stored.PaymentInfo)
}
