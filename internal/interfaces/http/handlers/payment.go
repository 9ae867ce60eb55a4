// internal/interfaces/http/handlers/payment.go
package handlers

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/your-org/checkout-engine/internal/config"
	"github.com/your-org/checkout-engine/internal/domain/order"
	"github.com/your-org/checkout-engine/internal/domain/payment"
	"github.com/your-org/checkout-engine/internal/interfaces/http/middleware"
)

// PaymentHandler handles payment webhooks and order lookup endpoints
type PaymentHandler struct {
	adapters   *payment.AdapterRegistry
	reconciler *payment.Reconciler
	orders     *order.Service
	config     *config.Config
}

// NewPaymentHandler creates a new payment handler
func NewPaymentHandler(adapters *payment.AdapterRegistry, reconciler *payment.Reconciler, orders *order.Service, cfg *config.Config) *PaymentHandler {
	return &PaymentHandler{
		adapters:   adapters,
		reconciler: reconciler,
		orders:     orders,
		config:     cfg,
	}
}

// Webhook handles POST /webhooks/payment/:provider.
// The raw payload goes through the provider adapter first; the reconciler
// only ever sees the normalized result.
func (h *PaymentHandler) Webhook(c *gin.Context) {
	adapter, err := h.adapters.For(c.Param("provider"))
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{
			"error": err.Error(),
		})
		return
	}

	payload, err := c.GetRawData()
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error": "Failed to read request body",
		})
		return
	}

	result, err := adapter.Normalize(payload)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error": err.Error(),
		})
		return
	}

	if result.SessionID == "" {
		c.JSON(http.StatusBadRequest, gin.H{
			"error": "Payment confirmation carries no session id",
		})
		return
	}

	ctx := c.Request.Context()

	if !result.Success {
		outcome := h.reconciler.HandleFailedPayment(ctx, result, result.SessionID)
		c.JSON(http.StatusOK, gin.H{
			"data": outcome,
		})
		return
	}

	outcome, err := h.reconciler.ProcessSuccessfulPayment(ctx, result, result.SessionID)
	if err != nil && outcome == nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"error": "Payment reconciliation failed",
		})
		return
	}

	c.JSON(statusForOutcome(outcome), gin.H{
		"data": outcome,
	})
}

// statusForOutcome maps a reconciliation state to an HTTP status. Retryable
// failures return 5xx so provider webhook retries re-deliver; terminal
// failures return 4xx so they do not.
func statusForOutcome(outcome *payment.ReconciliationResult) int {
	switch outcome.State {
	case payment.StateOrderCreated:
		return http.StatusOK
	case payment.StateSnapshotMissing:
		return http.StatusGone
	case payment.StateAmountMismatch:
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

// GetOrder handles GET /orders/:id
func (h *PaymentHandler) GetOrder(c *gin.Context) {
	userID, exists := middleware.GetUserIDFromContext(c)
	if !exists {
		c.JSON(http.StatusUnauthorized, gin.H{
			"error": "User not authenticated",
		})
		return
	}

	orderID, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error": "Invalid order id",
		})
		return
	}

	ord, err := h.orders.GetOrder(c.Request.Context(), uint(orderID))
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{
			"error": "Order not found",
		})
		return
	}

	if ord.UserID != userID && !middleware.IsAdminFromContext(c) {
		c.JSON(http.StatusNotFound, gin.H{
			"error": "Order not found",
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"data": ord,
	})
}

// GetOrderBySession handles GET /orders/session/:session_id
func (h *PaymentHandler) GetOrderBySession(c *gin.Context) {
	userID, exists := middleware.GetUserIDFromContext(c)
	if !exists {
		c.JSON(http.StatusUnauthorized, gin.H{
			"error": "User not authenticated",
		})
		return
	}

	ord, err := h.orders.GetOrderBySessionID(c.Request.Context(), c.Param("session_id"))
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{
			"error": "Order not found",
		})
		return
	}

	if ord.UserID != userID && !middleware.IsAdminFromContext(c) {
		c.JSON(http.StatusNotFound, gin.H{
			"error": "Order not found",
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"data": ord,
	})
}
