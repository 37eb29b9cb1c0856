// Package adapter bridges an external payment gateway's transaction
// lifecycle into the host application's order state, including partial
// failure handling and the refund/void branch.
package adapter

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"ms-payments/internal/gateway"
	"ms-payments/internal/logger"
	"ms-payments/internal/models"
	"ms-payments/internal/record"
	"ms-payments/internal/settings"
)

// ActionTypeOverpaid marks an order whose money was captured but which could
// not be booked because event capacity ran out.
const ActionTypeOverpaid = "overpaid"

// User-facing messages. Kept as constants so tests and the HTTP layer can
// reference them.
const (
	MsgEnableJavaScript = "You may need to enable JavaScript for credit card payments."
	MsgMailFailed       = "There was an error sending the confirmation mail."
	MsgManualTransfer   = "We were unable to transfer the money back automatically. Please get in touch with the customer and transfer it back manually."
	msgChargeFailedFmt  = "Your payment failed because the payment provider reported the following error: %s"
	msgMissingNonce     = "Your payment session has expired. Please re-enter your payment details."
)

// OrderGateway is the capability set the host order system exposes to the
// adapter. MarkPaid may fail with ErrQuotaExceeded or ErrMailDelivery
// (wrapped); in the mail case the paid transition has already been committed.
type OrderGateway interface {
	MarkPaid(ctx context.Context, order *models.Order, provider, reference string) error
	MarkRefunded(ctx context.Context, order *models.Order, actor string) error
	SavePaymentInfo(ctx context.Context, order *models.Order, info string) error
}

// RequiredActionSink records situations needing manual operator review.
type RequiredActionSink interface {
	RecordRequiredAction(ctx context.Context, eventID, actionType, data string) error
}

// SessionStore stashes the one-time payment nonce between form submission
// and charge execution. Get returns "" when no live nonce exists.
type SessionStore interface {
	Get(ctx context.Context, sessionID string) (string, error)
	Set(ctx context.Context, sessionID, nonce string) error
	Delete(ctx context.Context, sessionID string) error
}

// Notifier surfaces user-visible, non-fatal messages: warnings to staff on
// refund paths, errors to buyers during checkout.
type Notifier interface {
	Warn(ctx context.Context, text string)
	Error(ctx context.Context, text string)
}

// AvailabilityChecker reports whether an event can still take bookings.
type AvailabilityChecker interface {
	IsAvailable(ctx context.Context, eventID string) (bool, error)
}

// EventPublisher streams payment lifecycle events to interested services.
// Publishing is best-effort; failures are logged, never fatal.
type EventPublisher interface {
	PublishPaymentSucceeded(order *models.Order, provider, reference string) error
	PublishPaymentFailed(order *models.Order, provider, message string) error
	PublishPaymentRefunded(order *models.Order, provider string) error
}

// FormView is everything the host needs to render a payment form: a fresh
// client token for the browser widget plus the generic settings schema.
type FormView struct {
	Provider    string           `json:"provider"`
	ClientToken string           `json:"client_token"`
	Fields      []settings.Field `json:"fields"`
}

// Deps are the collaborators an Adapter is built from. Gateway, Orders,
// Actions, Sessions, Notifier and Availability are required; Events may be
// nil when no broker is configured.
type Deps struct {
	Gateway      gateway.Client
	Orders       OrderGateway
	Actions      RequiredActionSink
	Sessions     SessionStore
	Notifier     Notifier
	Availability AvailabilityChecker
	Events       EventPublisher
	Logger       *logger.Logger
}

// Adapter orchestrates the checkout, charge, settle and refund/void flows
// for one configured gateway. It assumes exclusive access to an order record
// for the duration of one operation; concurrent operations against the same
// order must be serialized by the caller.
type Adapter struct {
	gateway      gateway.Client
	orders       OrderGateway
	actions      RequiredActionSink
	sessions     SessionStore
	notifier     Notifier
	availability AvailabilityChecker
	events       EventPublisher
	log          *logger.Logger
}

func New(deps Deps) *Adapter {
	return &Adapter{
		gateway:      deps.Gateway,
		orders:       deps.Orders,
		actions:      deps.Actions,
		sessions:     deps.Sessions,
		notifier:     deps.Notifier,
		availability: deps.Availability,
		events:       deps.Events,
		log:          deps.Logger,
	}
}

// Provider returns the identifier of the configured gateway.
func (a *Adapter) Provider() string {
	return a.gateway.Identifier()
}

// CapturePaymentToken validates and stores the client-supplied payment nonce
// for the session. An empty token means the browser-side widget never ran;
// the user is re-prompted and no state changes.
func (a *Adapter) CapturePaymentToken(ctx context.Context, sessionID, rawToken string) (bool, error) {
	if rawToken == "" {
		a.log.Warn("CHECKOUT", fmt.Sprintf("Empty payment token submitted for session %s", sessionID))
		a.notifier.Error(ctx, MsgEnableJavaScript)
		return false, nil
	}

	if err := a.sessions.Set(ctx, sessionID, rawToken); err != nil {
		return false, fmt.Errorf("capture payment token: %w", err)
	}
	a.log.LogPayment("CAPTURE", sessionID, "Payment nonce captured")
	return true, nil
}

// HasValidSession reports whether a live nonce exists for the session.
func (a *Adapter) HasValidSession(ctx context.Context, sessionID string) bool {
	nonce, err := a.sessions.Get(ctx, sessionID)
	if err != nil {
		a.log.Error("SESSION", fmt.Sprintf("Failed to read nonce for session %s: %v", sessionID, err))
		return false
	}
	return nonce != ""
}

// RenderPaymentForm fetches a fresh client token and returns the data the
// host needs to render the payment form. Idempotent: one gateway call per
// render, no session mutation.
func (a *Adapter) RenderPaymentForm(ctx context.Context) (*FormView, error) {
	token, err := a.gateway.GenerateClientToken(ctx)
	if err != nil {
		return nil, fmt.Errorf("render payment form: %w", err)
	}

	return &FormView{
		Provider:    a.gateway.Identifier(),
		ClientToken: token,
		Fields:      settings.Schema(),
	}, nil
}

// CanRetry reports whether a failed payment may be retried, i.e. whether the
// event still has capacity. Pure read, no side effects.
func (a *Adapter) CanRetry(ctx context.Context, order *models.Order) bool {
	available, err := a.availability.IsAvailable(ctx, order.EventID)
	if err != nil {
		a.log.Error("CHECKOUT", fmt.Sprintf("Availability check failed for event %s: %v", order.EventID, err))
		return false
	}
	return available
}

// ExecuteCharge submits the captured nonce for settlement and reflects the
// outcome into the order. The nonce is consumed exactly once, regardless of
// outcome: a second charge attempt with the same session fails.
func (a *Adapter) ExecuteCharge(ctx context.Context, order *models.Order, sessionID string) error {
	amount, err := order.TotalAmount()
	if err != nil {
		return fmt.Errorf("execute charge: invalid order total %q: %w", order.Total, err)
	}

	nonce, err := a.sessions.Get(ctx, sessionID)
	if err != nil {
		return fmt.Errorf("execute charge: %w", err)
	}
	if nonce == "" {
		return &PaymentError{Message: msgMissingNonce, Err: ErrNoNonce}
	}

	// The nonce dies the moment the charge attempt is issued, never to be
	// reused across two attempts.
	defer func() {
		if derr := a.sessions.Delete(ctx, sessionID); derr != nil {
			a.log.Error("SESSION", fmt.Sprintf("Failed to consume nonce for session %s: %v", sessionID, derr))
		}
	}()

	a.log.LogPayment("CHARGE", order.OrderID, fmt.Sprintf("Submitting charge of %s via %s", order.Total, a.gateway.Identifier()))
	result, err := a.gateway.Charge(ctx, amount, nonce)
	if err != nil {
		a.log.Error("PAYMENT", fmt.Sprintf("Gateway fault charging order %s: %v", order.OrderID, err))
		a.publishFailed(order, err.Error())
		var gerr *gateway.Error
		if errors.As(err, &gerr) {
			return &PaymentError{Message: fmt.Sprintf(msgChargeFailedFmt, gerr.Message), Err: err}
		}
		return &PaymentError{Message: fmt.Sprintf(msgChargeFailedFmt, err.Error()), Err: err}
	}

	if result.Success {
		return a.settleSuccessfulCharge(ctx, order, result)
	}

	// Definitive decline. Persist whatever the gateway reported, then block
	// checkout with the gateway's message.
	info := record.EncodeError(result.Message)
	if result.Transaction != nil {
		if encoded, eerr := record.Encode(result.Transaction); eerr == nil {
			info = encoded
		}
	}
	if serr := a.orders.SavePaymentInfo(ctx, order, info); serr != nil {
		a.log.Error("PAYMENT", fmt.Sprintf("Failed to persist decline record for order %s: %v", order.OrderID, serr))
	}

	a.log.LogPayment("DECLINE", order.OrderID, result.Message)
	a.publishFailed(order, result.Message)
	return &PaymentError{Message: fmt.Sprintf(msgChargeFailedFmt, result.Message)}
}

// settleSuccessfulCharge persists the transaction snapshot and books the
// order. Money has already moved here: every failure below leaves the charge
// in place and is surfaced, never silently swallowed.
func (a *Adapter) settleSuccessfulCharge(ctx context.Context, order *models.Order, result *models.ChargeResult) error {
	info, err := record.Encode(result.Transaction)
	if err != nil {
		return fmt.Errorf("execute charge: %w", err)
	}
	if err := a.orders.SavePaymentInfo(ctx, order, info); err != nil {
		return fmt.Errorf("execute charge: persist transaction record: %w", err)
	}

	if err := a.orders.MarkPaid(ctx, order, a.gateway.Identifier(), result.Transaction.ID); err != nil {
		switch {
		case errors.Is(err, ErrQuotaExceeded):
			// Charged but unbooked. Flag for manual operator review; the
			// money is intentionally not refunded here.
			data, _ := json.Marshal(map[string]string{"order": order.OrderID})
			if aerr := a.actions.RecordRequiredAction(ctx, order.EventID, ActionTypeOverpaid, string(data)); aerr != nil {
				a.log.Error("PAYMENT", fmt.Sprintf("Failed to record required action for order %s: %v", order.OrderID, aerr))
			}
			a.log.Warn("PAYMENT", fmt.Sprintf("Order %s charged but quota exhausted, flagged for review", order.OrderID))
			return &PaymentError{Message: err.Error(), Err: err}

		case errors.Is(err, ErrMailDelivery):
			// Paid and booked; only the confirmation notice failed.
			a.log.Warn("PAYMENT", fmt.Sprintf("Confirmation mail failed for order %s: %v", order.OrderID, err))
			return &PaymentError{Message: MsgMailFailed, Err: err}

		default:
			return fmt.Errorf("execute charge: mark order %s paid: %w", order.OrderID, err)
		}
	}

	a.log.LogPayment("PAID", order.OrderID, fmt.Sprintf("Charge %s settled via %s", result.Transaction.ID, a.gateway.Identifier()))
	a.publishSucceeded(order, result.Transaction.ID)
	return nil
}

// PerformRefundOrVoid reverses a paid order's charge. Transactions that have
// not settled are voided; settled ones are refunded. Every path, clean or
// not, ends with the order marked refunded locally: the host's bookkeeping
// must match the customer's expectation even when the money movement needs
// manual follow-up.
func (a *Adapter) PerformRefundOrVoid(ctx context.Context, order *models.Order, actor string) error {
	stored, err := record.Decode(order.PaymentInfo)
	if err != nil {
		a.log.Warn("REFUND", fmt.Sprintf("Unreadable payment info on order %s: %v", order.OrderID, err))
	}
	if stored == nil || stored.ID == "" {
		// The gateway was never charged in a way we can reverse.
		return a.manualRefund(ctx, order, actor)
	}

	txn, err := a.gateway.Find(ctx, stored.ID)
	if err != nil {
		if errors.Is(err, gateway.ErrNotFound) {
			a.log.Warn("REFUND", fmt.Sprintf("Transaction %s for order %s unknown to gateway", stored.ID, order.OrderID))
		} else {
			a.log.Error("REFUND", fmt.Sprintf("Gateway fault looking up transaction %s: %v", stored.ID, err))
		}
		return a.manualRefund(ctx, order, actor)
	}

	var result *models.ChargeResult
	switch {
	case txn.Status.Voidable():
		a.log.LogPayment("VOID", order.OrderID, fmt.Sprintf("Voiding transaction %s in status %s", txn.ID, txn.Status))
		result, err = a.gateway.Void(ctx, stored.ID)
	case txn.Status.Refundable():
		a.log.LogPayment("REFUND", order.OrderID, fmt.Sprintf("Refunding transaction %s in status %s", txn.ID, txn.Status))
		result, err = a.gateway.Refund(ctx, stored.ID)
	default:
		a.log.Warn("REFUND", fmt.Sprintf("Refund of invalid transaction state requested: %s", txn.Status))
		return a.manualRefund(ctx, order, actor)
	}

	if err != nil {
		a.log.Error("REFUND", fmt.Sprintf("Gateway fault reversing transaction %s: %v", stored.ID, err))
		return a.manualRefund(ctx, order, actor)
	}

	if !result.Success {
		a.log.Warn("REFUND", fmt.Sprintf("Refund/void of transaction %s failed: %s", stored.ID, result.Message))
		return a.manualRefund(ctx, order, actor)
	}

	// Re-fetch the post-operation snapshot rather than trusting the
	// synchronous result, in case the gateway's inline payload is stale.
	if fresh, ferr := a.gateway.Find(ctx, stored.ID); ferr == nil {
		if info, eerr := record.Encode(fresh); eerr == nil {
			if serr := a.orders.SavePaymentInfo(ctx, order, info); serr != nil {
				a.log.Error("REFUND", fmt.Sprintf("Failed to persist refreshed snapshot for order %s: %v", order.OrderID, serr))
			}
		}
	} else {
		a.log.Warn("REFUND", fmt.Sprintf("Could not re-fetch transaction %s after reversal: %v", stored.ID, ferr))
	}

	if err := a.orders.MarkRefunded(ctx, order, actor); err != nil {
		return fmt.Errorf("refund: mark order %s refunded: %w", order.OrderID, err)
	}
	a.log.LogPayment("REFUNDED", order.OrderID, fmt.Sprintf("Transaction %s reversed", stored.ID))
	a.publishRefunded(order)
	return nil
}

// manualRefund marks the order refunded locally and tells staff the gateway
// side needs a manual transfer.
func (a *Adapter) manualRefund(ctx context.Context, order *models.Order, actor string) error {
	if err := a.orders.MarkRefunded(ctx, order, actor); err != nil {
		return fmt.Errorf("refund: mark order %s refunded: %w", order.OrderID, err)
	}
	a.notifier.Warn(ctx, MsgManualTransfer)
	a.publishRefunded(order)
	return nil
}

// PaymentInfo decodes the transaction snapshot persisted on an order, for
// host-side display. Returns nil when no payment has been attempted.
func (a *Adapter) PaymentInfo(order *models.Order) (*models.TransactionRecord, error) {
	return record.Decode(order.PaymentInfo)
}

func (a *Adapter) publishSucceeded(order *models.Order, reference string) {
	if a.events == nil {
		return
	}
	if err := a.events.PublishPaymentSucceeded(order, a.gateway.Identifier(), reference); err != nil {
		a.log.Error("KAFKA", fmt.Sprintf("Failed to publish payment success for order %s: %v", order.OrderID, err))
	}
}

func (a *Adapter) publishFailed(order *models.Order, message string) {
	if a.events == nil {
		return
	}
	if err := a.events.PublishPaymentFailed(order, a.gateway.Identifier(), message); err != nil {
		a.log.Error("KAFKA", fmt.Sprintf("Failed to publish payment failure for order %s: %v", order.OrderID, err))
	}
}

func (a *Adapter) publishRefunded(order *models.Order) {
	if a.events == nil {
		return
	}
	if err := a.events.PublishPaymentRefunded(order, a.gateway.Identifier()); err != nil {
		a.log.Error("KAFKA", fmt.Sprintf("Failed to publish refund for order %s: %v", order.OrderID, err))
	}
}
