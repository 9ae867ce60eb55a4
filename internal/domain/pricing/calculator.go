// internal/domain/pricing/calculator.go
package pricing

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/sirupsen/logrus"
)

// TierSource resolves the volume discount tier for a product at a given
// quantity. Returns (nil, nil) when no tier applies.
type TierSource interface {
	TierFor(ctx context.Context, productID uint, quantity int) (*VolumeDiscountTier, error)
}

// CodeSource resolves a discount code. Returns (nil, nil) when the code is
// unknown, inactive or expired.
type CodeSource interface {
	CodeFor(ctx context.Context, code string) (*DiscountCode, error)
}

// SettingsSource provides the tax/shipping settings for a pricing run
type SettingsSource interface {
	PricingSettings(ctx context.Context) (Settings, error)
}

// Calculator computes priced lines and cart totals.
// All arithmetic happens in integer minor currency units with rounding at
// each aggregation boundary, so identical inputs always produce identical
// output.
type Calculator struct {
	tiers    TierSource
	codes    CodeSource
	settings SettingsSource
	logger   *logrus.Logger
}

// NewCalculator creates a new pricing calculator
func NewCalculator(tiers TierSource, codes CodeSource, settings SettingsSource, logger *logrus.Logger) *Calculator {
	return &Calculator{
		tiers:    tiers,
		codes:    codes,
		settings: settings,
		logger:   logger,
	}
}

// CalculateCartTotals prices every line and computes cart totals.
// Discount order is fixed: seller discount on the base unit price first,
// then the volume tier on the already-discounted line subtotal, then an
// optional cart-level code on the aggregate, then tax, then shipping.
func (c *Calculator) CalculateCartTotals(ctx context.Context, lines []CartLine, userID uint, discountCode string) (*CartQuote, error) {
	if len(lines) == 0 {
		return nil, &ValidationError{Field: "lines", Message: "cart is empty"}
	}

	// Reject malformed input before computing anything
	for _, line := range lines {
		if err := line.Validate(); err != nil {
			return nil, err
		}
	}

	settings, err := c.settings.PricingSettings(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve pricing settings: %w", err)
	}

	quote := &CartQuote{
		Lines:         make([]PricedLine, 0, len(lines)),
		LinesBySeller: make(map[uint][]PricedLine),
	}
	totals := Totals{
		PerSeller: make(map[uint]SellerTotals),
	}

	for _, line := range lines {
		priced, err := c.priceLine(ctx, line)
		if err != nil {
			return nil, err
		}

		quote.Lines = append(quote.Lines, priced)
		quote.LinesBySeller[line.SellerID] = append(quote.LinesBySeller[line.SellerID], priced)

		totals.SubtotalOriginal += line.BasePrice * int64(line.Quantity)
		totals.TotalSellerDiscount += priced.SellerDiscountAmount
		totals.TotalVolumeDiscount += priced.VolumeSavingsAmount
		totals.SubtotalAfterDiscounts += priced.FinalLineSubtotal

		seller := totals.PerSeller[line.SellerID]
		seller.Subtotal += priced.FinalLineSubtotal
		seller.SellerDiscount += priced.SellerDiscountAmount
		seller.VolumeDiscount += priced.VolumeSavingsAmount
		totals.PerSeller[line.SellerID] = seller
	}

	// A code discount applies to the aggregate after seller and volume
	// discounts, before tax
	if discountCode != "" {
		codeDiscount, err := c.resolveCodeDiscount(ctx, discountCode, totals.SubtotalAfterDiscounts)
		if err != nil {
			return nil, err
		}
		totals.CodeDiscountAmount = codeDiscount
		totals.SubtotalAfterDiscounts -= codeDiscount
	}

	totals.TaxAmount = roundPercent(totals.SubtotalAfterDiscounts, settings.TaxRatePercent)

	switch {
	case !settings.ShippingEnabled:
		totals.ShippingCost = 0
	case totals.SubtotalAfterDiscounts >= settings.FreeShippingThreshold:
		totals.ShippingCost = 0
		totals.FreeShippingApplied = true
	default:
		totals.ShippingCost = settings.DefaultShippingCost
	}

	totals.FinalTotal = totals.SubtotalAfterDiscounts + totals.TaxAmount + totals.ShippingCost
	quote.Totals = totals

	c.logger.WithFields(logrus.Fields{
		"user_id":       userID,
		"line_count":    len(lines),
		"discount_code": discountCode,
		"final_total":   totals.FinalTotal,
	}).Debug("Cart totals calculated")

	return quote, nil
}

// priceLine applies the seller discount, then the volume tier, to one line
func (c *Calculator) priceLine(ctx context.Context, line CartLine) (PricedLine, error) {
	priced := PricedLine{CartLine: line}
	qty := int64(line.Quantity)

	// (1) seller discount on the base unit price
	sellerDiscountUnit := roundPercent(line.BasePrice, line.SellerDiscountPercent)
	unitAfterSeller := line.BasePrice - sellerDiscountUnit
	priced.SellerDiscountAmount = sellerDiscountUnit * qty

	// (2) line subtotal after the seller discount
	subtotalAfterSeller := unitAfterSeller * qty

	// (3) volume tier on the already-discounted subtotal
	tier, err := c.tiers.TierFor(ctx, line.ProductID, line.Quantity)
	if err != nil {
		return PricedLine{}, fmt.Errorf("failed to resolve volume tier for product %d: %w", line.ProductID, err)
	}

	subtotalAfterVolume := subtotalAfterSeller
	if tier != nil {
		priced.VolumeDiscountPercent = tier.Percentage
		priced.VolumeDiscountLabel = tier.Label
		subtotalAfterVolume = subtotalAfterSeller - roundPercent(subtotalAfterSeller, tier.Percentage)
	}

	// (4) final unit price; the rounded unit price is authoritative so the
	// line subtotal stays an exact multiple of it
	priced.FinalUnitPrice = int64(math.Round(float64(subtotalAfterVolume) / float64(qty)))
	priced.FinalLineSubtotal = priced.FinalUnitPrice * qty
	priced.VolumeSavingsAmount = subtotalAfterSeller - priced.FinalLineSubtotal

	return priced, nil
}

// resolveCodeDiscount evaluates a discount code against the aggregate.
// An unknown or expired code yields no discount rather than an error; the
// client-facing effect surfaces at verification time when submitted totals
// no longer match.
func (c *Calculator) resolveCodeDiscount(ctx context.Context, code string, subtotal int64) (int64, error) {
	dc, err := c.codes.CodeFor(ctx, code)
	if err != nil {
		return 0, fmt.Errorf("failed to resolve discount code: %w", err)
	}
	if dc == nil || !dc.IsUsable(time.Now().UTC()) {
		c.logger.WithField("discount_code", code).Debug("Discount code not applicable")
		return 0, nil
	}

	if dc.MinOrderAmount > 0 && subtotal < dc.MinOrderAmount {
		return 0, nil
	}

	var discount int64
	if dc.DiscountType == "percentage" {
		discount = roundPercent(subtotal, dc.DiscountValue)
		if dc.MaxDiscountAmount > 0 && discount > dc.MaxDiscountAmount {
			discount = dc.MaxDiscountAmount
		}
	} else {
		discount = int64(dc.DiscountValue)
	}

	// A code can never push the subtotal below zero
	if discount > subtotal {
		discount = subtotal
	}

	return discount, nil
}

// roundPercent returns pct% of amount, rounded to the nearest minor unit
func roundPercent(amount int64, pct float64) int64 {
	return int64(math.Round(float64(amount) * pct / 100))
}
