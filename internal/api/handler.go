// Package api exposes the payment adapter over HTTP for the host
// application.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"

	"ms-payments/internal/adapter"
	"ms-payments/internal/logger"
	"ms-payments/internal/models"
	"ms-payments/internal/orderstate"
	"ms-payments/internal/utils"
)

// AdapterFactory builds an adapter for one event's configured provider. The
// notifier is request-scoped so surfaced messages land in the response.
type AdapterFactory func(ctx context.Context, eventID string, notifier adapter.Notifier) (*adapter.Adapter, error)

type Handler struct {
	Orders     *orderstate.DB
	NewAdapter AdapterFactory
	Logger     *logger.Logger
}

// Routes mounts the payment endpoints on a chi router.
func (h *Handler) Routes(r chi.Router) {
	r.Get("/api/v1/events/{eventId}/payment/form", h.RenderPaymentForm)
	r.Post("/api/v1/events/{eventId}/payment/token", h.CapturePaymentToken)
	r.Post("/api/v1/orders/{orderId}/charge", h.ExecuteCharge)
	r.Post("/api/v1/orders/{orderId}/refund", h.PerformRefund)
	r.Get("/api/v1/orders/{orderId}/payment", h.PaymentInfo)
	r.Get("/api/v1/orders/{orderId}/can-retry", h.CanRetry)
}

type captureTokenRequest struct {
	SessionID string `json:"session_id"`
	Token     string `json:"token"`
}

type chargeRequest struct {
	SessionID string `json:"session_id"`
}

type refundRequest struct {
	Actor string `json:"actor"`
}

// RenderPaymentForm returns a fresh client token and the provider's settings
// schema for the host to render.
func (h *Handler) RenderPaymentForm(w http.ResponseWriter, r *http.Request) {
	eventID := chi.URLParam(r, "eventId")
	msgs := NewMessages()

	a, err := h.NewAdapter(r.Context(), eventID, msgs)
	if err != nil {
		h.writeError(w, http.StatusBadRequest, "Payment provider not configured", err, msgs)
		return
	}

	view, err := a.RenderPaymentForm(r.Context())
	if err != nil {
		h.Logger.Error("API", fmt.Sprintf("RenderPaymentForm: %v", err))
		h.writeError(w, http.StatusBadGateway, "Failed to prepare payment form", err, msgs)
		return
	}

	h.writeJSON(w, http.StatusOK, utils.SuccessResponse("payment form ready", view))
}

// CapturePaymentToken stores the client-supplied payment nonce for the
// session.
func (h *Handler) CapturePaymentToken(w http.ResponseWriter, r *http.Request) {
	eventID := chi.URLParam(r, "eventId")
	msgs := NewMessages()

	var req captureTokenRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.SessionID == "" {
		h.writeError(w, http.StatusBadRequest, "session_id is required", err, msgs)
		return
	}

	a, err := h.NewAdapter(r.Context(), eventID, msgs)
	if err != nil {
		h.writeError(w, http.StatusBadRequest, "Payment provider not configured", err, msgs)
		return
	}

	ok, err := a.CapturePaymentToken(r.Context(), req.SessionID, req.Token)
	if err != nil {
		h.writeError(w, http.StatusInternalServerError, "Failed to store payment token", err, msgs)
		return
	}
	if !ok {
		resp := utils.ErrorResponse("payment token rejected", "")
		resp.Warnings = append(msgs.Warnings(), msgs.Errors()...)
		h.writeJSON(w, http.StatusUnprocessableEntity, resp)
		return
	}

	h.writeJSON(w, http.StatusOK, utils.SuccessResponse("payment token captured", nil))
}

// ExecuteCharge submits the captured nonce for settlement against an order.
func (h *Handler) ExecuteCharge(w http.ResponseWriter, r *http.Request) {
	orderID := chi.URLParam(r, "orderId")
	msgs := NewMessages()

	var req chargeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.SessionID == "" {
		h.writeError(w, http.StatusBadRequest, "session_id is required", err, msgs)
		return
	}

	order, a, ok := h.loadOrderAndAdapter(w, r, orderID, msgs)
	if !ok {
		return
	}

	if err := a.ExecuteCharge(r.Context(), order, req.SessionID); err != nil {
		var perr *adapter.PaymentError
		if errors.As(err, &perr) {
			h.Logger.Warn("API", fmt.Sprintf("ExecuteCharge: order %s: %s", orderID, perr.Message))
			resp := utils.ErrorResponse("payment failed", perr.Message)
			resp.Warnings = msgs.Warnings()
			h.writeJSON(w, http.StatusPaymentRequired, resp)
			return
		}
		h.Logger.Error("API", fmt.Sprintf("ExecuteCharge: order %s: %v", orderID, err))
		h.writeError(w, http.StatusInternalServerError, "Failed to process payment", err, msgs)
		return
	}

	h.writeJSON(w, http.StatusOK, utils.SuccessResponse("payment completed", nil))
}

// PerformRefund reverses an order's charge, voiding or refunding as the
// transaction state allows.
func (h *Handler) PerformRefund(w http.ResponseWriter, r *http.Request) {
	orderID := chi.URLParam(r, "orderId")
	msgs := NewMessages()

	var req refundRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Actor == "" {
		h.writeError(w, http.StatusBadRequest, "actor is required", err, msgs)
		return
	}

	order, a, ok := h.loadOrderAndAdapter(w, r, orderID, msgs)
	if !ok {
		return
	}

	if err := a.PerformRefundOrVoid(r.Context(), order, req.Actor); err != nil {
		h.Logger.Error("API", fmt.Sprintf("PerformRefund: order %s: %v", orderID, err))
		h.writeError(w, http.StatusInternalServerError, "Failed to process refund", err, msgs)
		return
	}

	resp := utils.SuccessResponse("order refunded", nil)
	resp.Warnings = msgs.Warnings()
	h.writeJSON(w, http.StatusOK, resp)
}

// PaymentInfo returns the decoded transaction snapshot persisted on an
// order, for staff-side display.
func (h *Handler) PaymentInfo(w http.ResponseWriter, r *http.Request) {
	orderID := chi.URLParam(r, "orderId")
	msgs := NewMessages()

	order, a, ok := h.loadOrderAndAdapter(w, r, orderID, msgs)
	if !ok {
		return
	}

	info, err := a.PaymentInfo(order)
	if err != nil {
		h.writeError(w, http.StatusInternalServerError, "Unreadable payment info", err, msgs)
		return
	}

	h.writeJSON(w, http.StatusOK, utils.SuccessResponse("payment info", info))
}

// CanRetry reports whether a failed payment may be retried.
func (h *Handler) CanRetry(w http.ResponseWriter, r *http.Request) {
	orderID := chi.URLParam(r, "orderId")
	msgs := NewMessages()

	order, a, ok := h.loadOrderAndAdapter(w, r, orderID, msgs)
	if !ok {
		return
	}

	h.writeJSON(w, http.StatusOK, utils.SuccessResponse("retry availability", map[string]bool{
		"can_retry": a.CanRetry(r.Context(), order),
	}))
}

func (h *Handler) loadOrderAndAdapter(w http.ResponseWriter, r *http.Request, orderID string, msgs *Messages) (*models.Order, *adapter.Adapter, bool) {
	order, err := h.Orders.GetOrderByID(r.Context(), orderID)
	if err != nil {
		if errors.Is(err, orderstate.ErrOrderNotFound) {
			h.writeError(w, http.StatusNotFound, "Order not found", err, msgs)
		} else {
			h.writeError(w, http.StatusInternalServerError, "Failed to load order", err, msgs)
		}
		return nil, nil, false
	}

	a, err := h.NewAdapter(r.Context(), order.EventID, msgs)
	if err != nil {
		h.writeError(w, http.StatusBadRequest, "Payment provider not configured", err, msgs)
		return nil, nil, false
	}
	return order, a, true
}

func (h *Handler) writeError(w http.ResponseWriter, status int, message string, err error, msgs *Messages) {
	detail := ""
	if err != nil {
		detail = err.Error()
	}
	resp := utils.ErrorResponse(message, detail)
	resp.Warnings = msgs.Warnings()
	h.writeJSON(w, status, resp)
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		h.Logger.Error("API", fmt.Sprintf("Failed to encode response: %v", err))
	}
}
