// Package stripegw implements the gateway client against Stripe using
// payment intents. Card data never reaches this service: the browser widget
// exchanges it for a one-time payment method ID, which is the nonce the
// adapter charges with.
package stripegw

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stripe/stripe-go/v82"
	"github.com/stripe/stripe-go/v82/client"

	"ms-payments/internal/gateway"
	"ms-payments/internal/logger"
	"ms-payments/internal/models"
)

// Identifier is the provider ID recorded on orders paid through this client.
const Identifier = "stripecc"

var ErrClientInitFailed = errors.New("stripegw: failed to initialize Stripe client")

// Client talks to Stripe on behalf of one event's configured merchant
// account.
type Client struct {
	sc       *client.API
	currency string
	log      *logger.Logger
}

// New creates a Stripe gateway client. secretKey is the merchant's private
// API key; currency is the ISO code charges are denominated in.
func New(secretKey, currency string, log *logger.Logger) (*Client, error) {
	if secretKey == "" {
		log.Error("STRIPE", "Missing secret key in provider settings")
		return nil, ErrClientInitFailed
	}
	if currency == "" {
		currency = "usd"
	}

	sc := client.New(secretKey, nil)
	if sc == nil {
		log.Error("STRIPE", "Failed to initialize Stripe client")
		return nil, ErrClientInitFailed
	}

	return &Client{sc: sc, currency: currency, log: log}, nil
}

func (c *Client) Identifier() string {
	return Identifier
}

// GenerateClientToken creates a SetupIntent and returns its client secret,
// which the browser-side widget needs to tokenize card data.
func (c *Client) GenerateClientToken(ctx context.Context) (string, error) {
	params := &stripe.SetupIntentParams{
		PaymentMethodTypes: []*string{stripe.String("card")},
	}
	params.Context = ctx

	si, err := c.sc.SetupIntents.New(params)
	if err != nil {
		return "", c.translate("GenerateClientToken", err)
	}

	c.log.LogGateway(Identifier, "GenerateClientToken", fmt.Sprintf("Issued setup intent %s", si.ID))
	return si.ClientSecret, nil
}

// Charge submits a one-time payment for settlement by creating and confirming
// a payment intent with the given payment method nonce.
func (c *Client) Charge(ctx context.Context, amount decimal.Decimal, nonce string) (*models.ChargeResult, error) {
	params := &stripe.PaymentIntentParams{
		Amount:             stripe.Int64(toMinorUnits(amount)),
		Currency:           stripe.String(c.currency),
		PaymentMethod:      stripe.String(nonce),
		ConfirmationMethod: stripe.String("manual"),
		Confirm:            stripe.Bool(true),
		PaymentMethodTypes: []*string{stripe.String("card")},
	}
	params.Context = ctx

	c.log.LogGateway(Identifier, "Charge", fmt.Sprintf("Submitting charge of %s %s", amount.StringFixed(2), c.currency))
	pi, err := c.sc.PaymentIntents.New(params)
	if err != nil {
		if declined, res := c.declineResult(err); declined {
			return res, nil
		}
		return nil, c.translate("Charge", err)
	}

	record := c.serialize(pi, nil)

	switch pi.Status {
	case stripe.PaymentIntentStatusSucceeded,
		stripe.PaymentIntentStatusProcessing,
		stripe.PaymentIntentStatusRequiresCapture:
		c.log.LogGateway(Identifier, "Charge", fmt.Sprintf("Payment intent %s accepted with status %s", pi.ID, pi.Status))
		return &models.ChargeResult{Success: true, Transaction: record}, nil
	default:
		msg := fmt.Sprintf("payment not completed (status %s)", pi.Status)
		if pi.LastPaymentError != nil && pi.LastPaymentError.Msg != "" {
			msg = pi.LastPaymentError.Msg
		}
		c.log.LogGateway(Identifier, "Charge", fmt.Sprintf("Payment intent %s declined: %s", pi.ID, msg))
		record.Status = models.StatusFailed
		return &models.ChargeResult{Success: false, Transaction: record, Message: msg}, nil
	}
}

// Find fetches the current snapshot of a payment intent.
func (c *Client) Find(ctx context.Context, referenceID string) (*models.TransactionRecord, error) {
	params := &stripe.PaymentIntentParams{}
	params.Context = ctx

	pi, err := c.sc.PaymentIntents.Get(referenceID, params)
	if err != nil {
		var serr *stripe.Error
		if errors.As(err, &serr) && serr.HTTPStatusCode == 404 {
			return nil, gateway.ErrNotFound
		}
		return nil, c.translate("Find", err)
	}

	return c.serialize(pi, c.refundIDs(ctx, referenceID)), nil
}

// Void cancels a payment intent that has not settled yet.
func (c *Client) Void(ctx context.Context, referenceID string) (*models.ChargeResult, error) {
	params := &stripe.PaymentIntentCancelParams{
		CancellationReason: stripe.String(string(stripe.PaymentIntentCancellationReasonRequestedByCustomer)),
	}
	params.Context = ctx

	pi, err := c.sc.PaymentIntents.Cancel(referenceID, params)
	if err != nil {
		if declined, res := c.declineResult(err); declined {
			return res, nil
		}
		return nil, c.translate("Void", err)
	}

	c.log.LogGateway(Identifier, "Void", fmt.Sprintf("Cancelled payment intent %s", pi.ID))
	return &models.ChargeResult{Success: true, Transaction: c.serialize(pi, nil)}, nil
}

// Refund reverses a settled payment intent.
func (c *Client) Refund(ctx context.Context, referenceID string) (*models.ChargeResult, error) {
	params := &stripe.RefundParams{
		PaymentIntent: stripe.String(referenceID),
	}
	params.Context = ctx

	ref, err := c.sc.Refunds.New(params)
	if err != nil {
		if declined, res := c.declineResult(err); declined {
			return res, nil
		}
		return nil, c.translate("Refund", err)
	}

	c.log.LogGateway(Identifier, "Refund", fmt.Sprintf("Created refund %s for payment intent %s", ref.ID, referenceID))
	return &models.ChargeResult{Success: true}, nil
}

// refundIDs lists the refund references attached to a payment intent. Errors
// are swallowed: refund IDs are diagnostic data on the snapshot, not worth
// failing a Find over.
func (c *Client) refundIDs(ctx context.Context, referenceID string) []string {
	params := &stripe.RefundListParams{
		PaymentIntent: stripe.String(referenceID),
	}
	params.Context = ctx

	var ids []string
	iter := c.sc.Refunds.List(params)
	for iter.Next() {
		ids = append(ids, iter.Refund().ID)
	}
	if err := iter.Err(); err != nil {
		c.log.Warn("STRIPE", fmt.Sprintf("Failed to list refunds for %s: %v", referenceID, err))
	}
	return ids
}

// serialize maps a payment intent onto the provider-agnostic snapshot shape.
func (c *Client) serialize(pi *stripe.PaymentIntent, refundIDs []string) *models.TransactionRecord {
	record := &models.TransactionRecord{
		ID:        pi.ID,
		Amount:    fromMinorUnits(pi.Amount).StringFixed(2),
		Status:    mapStatus(pi.Status),
		RefundIDs: refundIDs,
		CreatedAt: time.Unix(pi.Created, 0).UTC(),
		UpdatedAt: time.Now().UTC(),
	}

	if pi.LastPaymentError != nil {
		record.GatewayRejectionReason = string(pi.LastPaymentError.Code)
		record.ProcessorResponseText = pi.LastPaymentError.Msg
	}

	if pi.LatestCharge != nil && pi.LatestCharge.ID != "" {
		charge, err := c.sc.Charges.Get(pi.LatestCharge.ID, nil)
		if err == nil && charge.PaymentMethodDetails != nil && charge.PaymentMethodDetails.Card != nil {
			card := charge.PaymentMethodDetails.Card
			record.Instrument = &models.InstrumentDetails{
				Type:         string(card.Brand),
				MaskedNumber: "************" + card.Last4,
			}
		}
	}

	return record
}

// declineResult turns a Stripe card error into a failed charge result, since
// declines are an expected outcome rather than a gateway fault.
func (c *Client) declineResult(err error) (bool, *models.ChargeResult) {
	var serr *stripe.Error
	if !errors.As(err, &serr) || serr.Type != stripe.ErrorTypeCard {
		return false, nil
	}

	msg := serr.Msg
	if msg == "" {
		msg = "card declined"
	}
	c.log.LogGateway(Identifier, "Charge", fmt.Sprintf("Card declined: %s", msg))

	res := &models.ChargeResult{Success: false, Message: msg}
	if serr.PaymentIntent != nil {
		res.Transaction = c.serialize(serr.PaymentIntent, nil)
	}
	return true, res
}

// translate maps Stripe API faults onto the shared gateway error type.
// Invalid-request, auth and connection problems are transient from the
// buyer's point of view: the same charge may well go through on retry.
func (c *Client) translate(operation string, err error) error {
	c.log.Error("STRIPE", fmt.Sprintf("%s failed: %v", operation, err))

	var serr *stripe.Error
	if errors.As(err, &serr) {
		return &gateway.Error{
			Provider:  Identifier,
			Message:   serr.Msg,
			Transient: serr.Type == stripe.ErrorTypeInvalidRequest || serr.Type == stripe.ErrorTypeAPI,
		}
	}

	// Anything that is not a structured Stripe error is a transport fault.
	return &gateway.Error{Provider: Identifier, Message: err.Error(), Transient: true}
}

func mapStatus(s stripe.PaymentIntentStatus) models.TransactionStatus {
	switch s {
	case stripe.PaymentIntentStatusRequiresCapture:
		return models.StatusAuthorized
	case stripe.PaymentIntentStatusProcessing:
		return models.StatusSubmittedForSettlement
	case stripe.PaymentIntentStatusSucceeded:
		return models.StatusSettled
	case stripe.PaymentIntentStatusCanceled:
		return models.StatusVoided
	default:
		return models.TransactionStatus(s)
	}
}

func toMinorUnits(amount decimal.Decimal) int64 {
	return amount.Mul(decimal.NewFromInt(100)).IntPart()
}

func fromMinorUnits(amount int64) decimal.Decimal {
	return decimal.NewFromInt(amount).Div(decimal.NewFromInt(100))
}
