// internal/interfaces/http/handlers/pricing.go
package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/your-org/checkout-engine/internal/config"
	"github.com/your-org/checkout-engine/internal/domain/pricing"
	"github.com/your-org/checkout-engine/internal/interfaces/http/middleware"
)

// PricingHandler handles cart quoting and price verification endpoints
type PricingHandler struct {
	calculator *pricing.Calculator
	verifier   *pricing.Verifier
	config     *config.Config
}

// NewPricingHandler creates a new pricing handler
func NewPricingHandler(calculator *pricing.Calculator, verifier *pricing.Verifier, cfg *config.Config) *PricingHandler {
	return &PricingHandler{
		calculator: calculator,
		verifier:   verifier,
		config:     cfg,
	}
}

type quoteRequest struct {
	Items        []pricing.SubmittedItem `json:"items" binding:"required,min=1,dive"`
	DiscountCode string                  `json:"discount_code"`
}

// Quote handles POST /pricing/quote
func (h *PricingHandler) Quote(c *gin.Context) {
	var req quoteRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "Invalid request data",
			"details": err.Error(),
		})
		return
	}

	// Quoting works for guests too; the user id only feeds logging
	userID, _ := middleware.GetUserIDFromContext(c)

	lines := make([]pricing.CartLine, len(req.Items))
	for i, item := range req.Items {
		lines[i] = item.CartLine()
	}

	quote, err := h.calculator.CalculateCartTotals(c.Request.Context(), lines, userID, req.DiscountCode)
	if err != nil {
		var validationErr *pricing.ValidationError
		if errors.As(err, &validationErr) {
			c.JSON(http.StatusBadRequest, gin.H{
				"error": validationErr.Error(),
			})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{
			"error": "Failed to calculate cart totals",
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"message": "Cart totals calculated successfully",
		"data":    quote,
	})
}

type verifyRequest struct {
	Items      []pricing.SubmittedItem  `json:"items" binding:"required,min=1,dive"`
	Totals     *pricing.SubmittedTotals `json:"totals"`
	CouponCode string                   `json:"coupon_code"`
}

// Verify handles POST /pricing/verify.
// When totals are submitted the whole breakdown is re-validated, otherwise
// only the per-item prices are checked.
func (h *PricingHandler) Verify(c *gin.Context) {
	var req verifyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "Invalid request data",
			"details": err.Error(),
		})
		return
	}

	userID, _ := middleware.GetUserIDFromContext(c)

	var (
		valid bool
		err   error
	)
	if req.Totals != nil {
		valid, err = h.verifier.VerifyCalculatedTotals(c.Request.Context(), req.Items, *req.Totals, userID, req.CouponCode)
	} else {
		valid, err = h.verifier.VerifyItemPrices(c.Request.Context(), req.Items, userID, req.CouponCode)
	}

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
			"valid": false,
			"error": "Submitted prices do not match server calculation",
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"valid": true,
	})
}
