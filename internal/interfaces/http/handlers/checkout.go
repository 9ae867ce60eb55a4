// internal/interfaces/http/handlers/checkout.go
package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/your-org/checkout-engine/internal/config"
	"github.com/your-org/checkout-engine/internal/domain/checkout"
	"github.com/your-org/checkout-engine/internal/domain/pricing"
	"github.com/your-org/checkout-engine/internal/interfaces/http/middleware"
)

// CheckoutHandler handles checkout session endpoints
type CheckoutHandler struct {
	snapshots  *checkout.SnapshotStore
	calculator *pricing.Calculator
	verifier   *pricing.Verifier
	config     *config.Config
}

// NewCheckoutHandler creates a new checkout handler
func NewCheckoutHandler(snapshots *checkout.SnapshotStore, calculator *pricing.Calculator, verifier *pricing.Verifier, cfg *config.Config) *CheckoutHandler {
	return &CheckoutHandler{
		snapshots:  snapshots,
		calculator: calculator,
		verifier:   verifier,
		config:     cfg,
	}
}

type createSessionRequest struct {
	Items           []pricing.SubmittedItem `json:"items" binding:"required,min=1,dive"`
	DiscountCode    string                  `json:"discount_code"`
	Totals          pricing.SubmittedTotals `json:"totals" binding:"required"`
	ShippingAddress checkout.Address        `json:"shipping_address" binding:"required"`
	BillingAddress  *checkout.Address       `json:"billing_address"`
}

// CreateSession handles POST /checkout/session.
// The submitted prices are verified against a server-side recomputation
// before anything is stored; a snapshot only ever holds server-calculated
// totals.
func (h *CheckoutHandler) CreateSession(c *gin.Context) {
	userID, exists := middleware.GetUserIDFromContext(c)
	if !exists {
		c.JSON(http.StatusUnauthorized, gin.H{
			"error": "User not authenticated",
		})
		return
	}

	var req createSessionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "Invalid request data",
			"details": err.Error(),
		})
		return
	}

	ctx := c.Request.Context()

	valid, err := h.verifier.VerifyCalculatedTotals(ctx, req.Items, req.Totals, userID, req.DiscountCode)
	if err != nil {
		var validationErr *pricing.ValidationError
		if errors.As(err, &validationErr) {
			c.JSON(http.StatusBadRequest, gin.H{
				"error": validationErr.Error(),
			})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{
			"error": "Price verification failed",
		})
		return
	}
	if !valid {
		c.JSON(http.StatusUnprocessableEntity, gin.H{
			"error": "Submitted prices do not match server calculation",
		})
		return
	}

	lines := make([]pricing.CartLine, len(req.Items))
	for i, item := range req.Items {
		lines[i] = item.CartLine()
	}

	quote, err := h.calculator.CalculateCartTotals(ctx, lines, userID, req.DiscountCode)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"error": "Failed to calculate cart totals",
		})
		return
	}

	billing := req.ShippingAddress
	if req.BillingAddress != nil {
		billing = *req.BillingAddress
	}

	snapshot := &checkout.Snapshot{
		SessionID:       uuid.New().String(),
		UserID:          userID,
		Lines:           quote.Lines,
		DiscountCode:    req.DiscountCode,
		Totals:          quote.Totals,
		ShippingAddress: req.ShippingAddress,
		BillingAddress:  billing,
	}

	if _, err := h.snapshots.Store(ctx, snapshot); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"error": "Failed to store checkout snapshot",
		})
		return
	}

	c.JSON(http.StatusCreated, gin.H{
		"message": "Checkout session created",
		"data": gin.H{
			"session_id": snapshot.SessionID,
			"expires_at": snapshot.ExpiresAt,
			"totals":     snapshot.Totals,
		},
	})
}

// GetSession handles GET /checkout/session/:session_id
func (h *CheckoutHandler) GetSession(c *gin.Context) {
	userID, exists := middleware.GetUserIDFromContext(c)
	if !exists {
		c.JSON(http.StatusUnauthorized, gin.H{
			"error": "User not authenticated",
		})
		return
	}

	snapshot, err := h.snapshots.Retrieve(c.Request.Context(), c.Param("session_id"))
	if err != nil {
		if errors.Is(err, checkout.ErrSnapshotNotFound) {
			c.JSON(http.StatusNotFound, gin.H{
				"error": "Checkout session not found or expired",
			})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{
			"error": "Failed to retrieve checkout session",
		})
		return
	}

	// Sessions are private; an unknown owner sees the same 404 as a
	// missing session
	if snapshot.UserID != userID {
		c.JSON(http.StatusNotFound, gin.H{
			"error": "Checkout session not found or expired",
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"data": snapshot,
	})
}

// CancelSession handles DELETE /checkout/session/:session_id
func (h *CheckoutHandler) CancelSession(c *gin.Context) {
	userID, exists := middleware.GetUserIDFromContext(c)
	if !exists {
		c.JSON(http.StatusUnauthorized, gin.H{
			"error": "User not authenticated",
		})
		return
	}

	sessionID := c.Param("session_id")
	ctx := c.Request.Context()

	snapshot, err := h.snapshots.Retrieve(ctx, sessionID)
	if err != nil || snapshot.UserID != userID {
		c.JSON(http.StatusNotFound, gin.H{
			"error": "Checkout session not found or expired",
		})
		return
	}

	if _, err := h.snapshots.Remove(ctx, sessionID); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"error": "Failed to cancel checkout session",
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"message": "Checkout session cancelled",
	})
}
