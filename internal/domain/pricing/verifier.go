// internal/domain/pricing/verifier.go
package pricing

import (
	"context"
	"math"

	"github.com/sirupsen/logrus"
	"github.com/your-org/checkout-engine/internal/pkg/audit"
)

// SubmittedItem is a cart line as the client submitted it, including the
// unit price the client claims to have displayed. Claimed monetary values
// arrive in major currency units.
type SubmittedItem struct {
	ProductID             uint    `json:"product_id" binding:"required"`
	SellerID              uint    `json:"seller_id" binding:"required"`
	Quantity              int     `json:"quantity" binding:"required,min=1"`
	BasePrice             int64   `json:"base_price" binding:"required"`
	SellerDiscountPercent float64 `json:"seller_discount_percent"`
	UnitPrice             float64 `json:"unit_price"`
}

// CartLine strips the client-claimed price from a submitted item
func (i SubmittedItem) CartLine() CartLine {
	return CartLine{
		ProductID:             i.ProductID,
		SellerID:              i.SellerID,
		Quantity:              i.Quantity,
		BasePrice:             i.BasePrice,
		SellerDiscountPercent: i.SellerDiscountPercent,
	}
}

// SubmittedTotals are the client-computed totals, in major currency units
type SubmittedTotals struct {
	SubtotalAfterDiscounts float64 `json:"subtotal_after_discounts"`
	TaxAmount              float64 `json:"tax_amount"`
	ShippingCost           float64 `json:"shipping_cost"`
	FinalTotal             float64 `json:"final_total"`
}

// Verifier detects client-side price tampering by recomputing prices
// server-side and comparing them against the submitted values. A false
// result means reject the checkout; it is never a soft warning.
type Verifier struct {
	calculator    *Calculator
	auditSink     audit.Sink
	logger        *logrus.Logger
	lineEpsilon   float64
	totalsEpsilon float64
}

// NewVerifier creates a new price verification service
func NewVerifier(calculator *Calculator, auditSink audit.Sink, logger *logrus.Logger, lineEpsilon, totalsEpsilon float64) *Verifier {
	return &Verifier{
		calculator:    calculator,
		auditSink:     auditSink,
		logger:        logger,
		lineEpsilon:   lineEpsilon,
		totalsEpsilon: totalsEpsilon,
	}
}

// VerifyItemPrices recomputes the submitted prices server-side.
// Without a coupon each line is re-priced in isolation and compared within
// the tight per-line epsilon. With a coupon the whole cart is recomputed as
// one unit, because a code's effect is not separable per line, and the
// aggregate is compared within the looser totals epsilon.
func (v *Verifier) VerifyItemPrices(ctx context.Context, items []SubmittedItem, userID uint, couponCode string) (bool, error) {
	if couponCode != "" {
		return v.verifyAggregate(ctx, items, userID, couponCode)
	}
	return v.verifyPerLine(ctx, items, userID)
}

// VerifyCalculatedTotals verifies the submitted line prices and then
// re-validates each client-computed total field-by-field
func (v *Verifier) VerifyCalculatedTotals(ctx context.Context, items []SubmittedItem, clientTotals SubmittedTotals, userID uint, couponCode string) (bool, error) {
	ok, err := v.VerifyItemPrices(ctx, items, userID, couponCode)
	if err != nil || !ok {
		return ok, err
	}

	quote, err := v.calculator.CalculateCartTotals(ctx, cartLines(items), userID, couponCode)
	if err != nil {
		return false, err
	}

	checks := []struct {
		field     string
		expected  int64
		submitted float64
	}{
		{"subtotal_after_discounts", quote.Totals.SubtotalAfterDiscounts, clientTotals.SubtotalAfterDiscounts},
		{"tax_amount", quote.Totals.TaxAmount, clientTotals.TaxAmount},
		{"shipping_cost", quote.Totals.ShippingCost, clientTotals.ShippingCost},
		{"final_total", quote.Totals.FinalTotal, clientTotals.FinalTotal},
	}

	for _, check := range checks {
		expected := toMajor(check.expected)
		if math.Abs(expected-check.submitted) > v.totalsEpsilon {
			v.auditSink.TamperDetected(ctx, audit.Event{
				UserID:    userID,
				Reason:    "totals field mismatch: " + check.field,
				Expected:  expected,
				Submitted: check.submitted,
			})
			return false, nil
		}
	}

	return true, nil
}

// verifyPerLine re-prices each line as a single-line cart and compares the
// recomputed final unit price against the client's claimed unit price
func (v *Verifier) verifyPerLine(ctx context.Context, items []SubmittedItem, userID uint) (bool, error) {
	for _, item := range items {
		quote, err := v.calculator.CalculateCartTotals(ctx, []CartLine{item.CartLine()}, userID, "")
		if err != nil {
			return false, err
		}

		expected := toMajor(quote.Lines[0].FinalUnitPrice)
		if math.Abs(expected-item.UnitPrice) > v.lineEpsilon {
			v.auditSink.TamperDetected(ctx, audit.Event{
				UserID:    userID,
				ProductID: item.ProductID,
				Reason:    "unit price mismatch",
				Expected:  expected,
				Submitted: item.UnitPrice,
			})
			return false, nil
		}
	}
	return true, nil
}

// verifyAggregate recomputes the full cart with the coupon applied and
// compares the aggregate subtotal against the sum the client submitted
func (v *Verifier) verifyAggregate(ctx context.Context, items []SubmittedItem, userID uint, couponCode string) (bool, error) {
	quote, err := v.calculator.CalculateCartTotals(ctx, cartLines(items), userID, couponCode)
	if err != nil {
		return false, err
	}

	// The client's per-line sum carries the code discount already
	// distributed across lines, so only the aggregate is comparable
	var submittedSum float64
	for _, item := range items {
		submittedSum += item.UnitPrice * float64(item.Quantity)
	}

	expected := toMajor(quote.Totals.SubtotalAfterDiscounts)
	if math.Abs(expected-submittedSum) > v.totalsEpsilon {
		v.auditSink.TamperDetected(ctx, audit.Event{
			UserID:    userID,
			Reason:    "aggregate subtotal mismatch with coupon",
			Expected:  expected,
			Submitted: submittedSum,
			Metadata:  map[string]interface{}{"coupon_code": couponCode},
		})
		return false, nil
	}

	return true, nil
}

func cartLines(items []SubmittedItem) []CartLine {
	lines := make([]CartLine, len(items))
	for i, item := range items {
		lines[i] = item.CartLine()
	}
	return lines
}

// toMajor converts minor currency units to major units for comparison
// against client-submitted values
func toMajor(minor int64) float64 {
	return float64(minor) / 100
}
