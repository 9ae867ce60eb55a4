// internal/domain/pricing/calculator_test.go
package pricing

import (
	"context"
	"io"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubTierSource struct {
	ladders map[uint][]VolumeDiscountTier
}

func (s stubTierSource) TierFor(ctx context.Context, productID uint, quantity int) (*VolumeDiscountTier, error) {
	var match *VolumeDiscountTier
	for i := range s.ladders[productID] {
		if s.ladders[productID][i].ThresholdQuantity <= quantity {
			match = &s.ladders[productID][i]
		}
	}
	return match, nil
}

type stubCodeSource struct {
	codes map[string]*DiscountCode
}

func (s stubCodeSource) CodeFor(ctx context.Context, code string) (*DiscountCode, error) {
	return s.codes[code], nil
}

type stubSettings struct {
	settings Settings
}

func (s stubSettings) PricingSettings(ctx context.Context) (Settings, error) {
	return s.settings, nil
}

func testLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return logger
}

func defaultSettings() Settings {
	return Settings{
		TaxRatePercent:        15.0,
		ShippingEnabled:       true,
		FreeShippingThreshold: 5000,
		DefaultShippingCost:   500,
	}
}

func newTestCalculator(ladders map[uint][]VolumeDiscountTier, codes map[string]*DiscountCode, settings Settings) *Calculator {
	return NewCalculator(
		stubTierSource{ladders: ladders},
		stubCodeSource{codes: codes},
		stubSettings{settings: settings},
		testLogger(),
	)
}

func TestCalculateCartTotals_StackedDiscounts(t *testing.T) {
	// 100.00 base, 10% seller discount, qty 3 hits the 5% volume tier:
	// 100.00 -> 90.00 per unit, 270.00 line, minus 5% -> 256.50, unit 85.50
	calc := newTestCalculator(
		map[uint][]VolumeDiscountTier{
			1: {{ProductID: 1, ThresholdQuantity: 3, Percentage: 5, Label: "Buy 3+ save 5%"}},
		},
		nil,
		defaultSettings(),
	)

	quote, err := calc.CalculateCartTotals(context.Background(), []CartLine{
		{ProductID: 1, SellerID: 10, Quantity: 3, BasePrice: 10000, SellerDiscountPercent: 10},
	}, 1, "")
	require.NoError(t, err)
	require.Len(t, quote.Lines, 1)

	line := quote.Lines[0]
	assert.Equal(t, int64(8550), line.FinalUnitPrice)
	assert.Equal(t, int64(25650), line.FinalLineSubtotal)
	assert.Equal(t, int64(3000), line.SellerDiscountAmount)
	assert.Equal(t, int64(1350), line.VolumeSavingsAmount)
	assert.Equal(t, 5.0, line.VolumeDiscountPercent)

	assert.Equal(t, int64(30000), quote.Totals.SubtotalOriginal)
	assert.Equal(t, int64(25650), quote.Totals.SubtotalAfterDiscounts)
}

func TestCalculateCartTotals_EndToEnd(t *testing.T) {
	// 20.00 base, 10% seller discount, qty 5 hits the 10% tier:
	// 20.00 -> 18.00, line 90.00, minus 10% -> 81.00, unit 16.20.
	// Tax 15% of 81.00 = 12.15; 81.00 >= 50.00 so shipping is free.
	calc := newTestCalculator(
		map[uint][]VolumeDiscountTier{
			2: {{ProductID: 2, ThresholdQuantity: 5, Percentage: 10, Label: "Buy 5+ save 10%"}},
		},
		nil,
		defaultSettings(),
	)

	quote, err := calc.CalculateCartTotals(context.Background(), []CartLine{
		{ProductID: 2, SellerID: 20, Quantity: 5, BasePrice: 2000, SellerDiscountPercent: 10},
	}, 1, "")
	require.NoError(t, err)

	assert.Equal(t, int64(1620), quote.Lines[0].FinalUnitPrice)
	assert.Equal(t, int64(8100), quote.Totals.SubtotalAfterDiscounts)
	assert.Equal(t, int64(1215), quote.Totals.TaxAmount)
	assert.True(t, quote.Totals.FreeShippingApplied)
	assert.Equal(t, int64(0), quote.Totals.ShippingCost)
	assert.Equal(t, int64(9315), quote.Totals.FinalTotal)
}

func TestCalculateCartTotals_Deterministic(t *testing.T) {
	calc := newTestCalculator(
		map[uint][]VolumeDiscountTier{
			1: {
				{ProductID: 1, ThresholdQuantity: 3, Percentage: 5},
				{ProductID: 1, ThresholdQuantity: 10, Percentage: 10},
			},
		},
		nil,
		defaultSettings(),
	)

	lines := []CartLine{
		{ProductID: 1, SellerID: 10, Quantity: 7, BasePrice: 3333, SellerDiscountPercent: 12.5},
		{ProductID: 3, SellerID: 11, Quantity: 2, BasePrice: 999, SellerDiscountPercent: 0},
	}

	first, err := calc.CalculateCartTotals(context.Background(), lines, 1, "")
	require.NoError(t, err)

	for i := 0; i < 10; i++ {
		again, err := calc.CalculateCartTotals(context.Background(), lines, 1, "")
		require.NoError(t, err)
		assert.Equal(t, first.Totals, again.Totals)
		assert.Equal(t, first.Lines, again.Lines)
	}
}

func TestCalculateCartTotals_HighestQualifyingTierWins(t *testing.T) {
	calc := newTestCalculator(
		map[uint][]VolumeDiscountTier{
			1: {
				{ProductID: 1, ThresholdQuantity: 3, Percentage: 5},
				{ProductID: 1, ThresholdQuantity: 10, Percentage: 10},
			},
		},
		nil,
		defaultSettings(),
	)

	cases := []struct {
		quantity    int
		wantPercent float64
	}{
		{1, 0},
		{2, 0},
		{3, 5},
		{9, 5},
		{10, 10},
		{25, 10},
	}

	for _, tc := range cases {
		quote, err := calc.CalculateCartTotals(context.Background(), []CartLine{
			{ProductID: 1, SellerID: 10, Quantity: tc.quantity, BasePrice: 1000},
		}, 1, "")
		require.NoError(t, err)
		assert.Equal(t, tc.wantPercent, quote.Lines[0].VolumeDiscountPercent, "quantity %d", tc.quantity)
	}
}

func TestCalculateCartTotals_FreeShippingThresholdInclusive(t *testing.T) {
	calc := newTestCalculator(nil, nil, defaultSettings())

	// 50.00 exactly qualifies for free shipping
	atThreshold, err := calc.CalculateCartTotals(context.Background(), []CartLine{
		{ProductID: 1, SellerID: 10, Quantity: 1, BasePrice: 5000},
	}, 1, "")
	require.NoError(t, err)
	assert.True(t, atThreshold.Totals.FreeShippingApplied)
	assert.Equal(t, int64(0), atThreshold.Totals.ShippingCost)

	// One cent under pays the default cost
	below, err := calc.CalculateCartTotals(context.Background(), []CartLine{
		{ProductID: 1, SellerID: 10, Quantity: 1, BasePrice: 4999},
	}, 1, "")
	require.NoError(t, err)
	assert.False(t, below.Totals.FreeShippingApplied)
	assert.Equal(t, int64(500), below.Totals.ShippingCost)
}

func TestCalculateCartTotals_ShippingDisabled(t *testing.T) {
	settings := defaultSettings()
	settings.ShippingEnabled = false
	calc := newTestCalculator(nil, nil, settings)

	quote, err := calc.CalculateCartTotals(context.Background(), []CartLine{
		{ProductID: 1, SellerID: 10, Quantity: 1, BasePrice: 100},
	}, 1, "")
	require.NoError(t, err)
	assert.Equal(t, int64(0), quote.Totals.ShippingCost)
	assert.False(t, quote.Totals.FreeShippingApplied)
}

func TestCalculateCartTotals_TaxOnDiscountedSubtotal(t *testing.T) {
	calc := newTestCalculator(nil, nil, defaultSettings())

	quote, err := calc.CalculateCartTotals(context.Background(), []CartLine{
		{ProductID: 1, SellerID: 10, Quantity: 1, BasePrice: 10000, SellerDiscountPercent: 50},
	}, 1, "")
	require.NoError(t, err)

	// Tax applies to 50.00, not the 100.00 original
	assert.Equal(t, int64(5000), quote.Totals.SubtotalAfterDiscounts)
	assert.Equal(t, int64(750), quote.Totals.TaxAmount)
}

func TestCalculateCartTotals_TotalsInvariant(t *testing.T) {
	calc := newTestCalculator(
		map[uint][]VolumeDiscountTier{
			1: {{ProductID: 1, ThresholdQuantity: 2, Percentage: 7.5}},
		},
		map[string]*DiscountCode{
			"SAVE10": {Code: "SAVE10", DiscountType: "percentage", DiscountValue: 10, IsActive: true},
		},
		defaultSettings(),
	)

	quote, err := calc.CalculateCartTotals(context.Background(), []CartLine{
		{ProductID: 1, SellerID: 10, Quantity: 3, BasePrice: 1999, SellerDiscountPercent: 15},
		{ProductID: 2, SellerID: 11, Quantity: 1, BasePrice: 4500},
	}, 1, "SAVE10")
	require.NoError(t, err)

	totals := quote.Totals
	assert.Equal(t, totals.FinalTotal, totals.SubtotalAfterDiscounts+totals.TaxAmount+totals.ShippingCost)

	var lineSum int64
	for _, line := range quote.Lines {
		assert.Equal(t, line.FinalUnitPrice*int64(line.Quantity), line.FinalLineSubtotal)
		lineSum += line.FinalLineSubtotal
	}
	assert.Equal(t, lineSum-totals.CodeDiscountAmount, totals.SubtotalAfterDiscounts)
}

func TestCalculateCartTotals_PerSellerBreakdown(t *testing.T) {
	calc := newTestCalculator(nil, nil, defaultSettings())

	quote, err := calc.CalculateCartTotals(context.Background(), []CartLine{
		{ProductID: 1, SellerID: 10, Quantity: 2, BasePrice: 1000, SellerDiscountPercent: 10},
		{ProductID: 2, SellerID: 10, Quantity: 1, BasePrice: 500},
		{ProductID: 3, SellerID: 20, Quantity: 1, BasePrice: 2000},
	}, 1, "")
	require.NoError(t, err)

	require.Len(t, quote.Totals.PerSeller, 2)
	assert.Equal(t, int64(2300), quote.Totals.PerSeller[10].Subtotal)
	assert.Equal(t, int64(200), quote.Totals.PerSeller[10].SellerDiscount)
	assert.Equal(t, int64(2000), quote.Totals.PerSeller[20].Subtotal)
	assert.Len(t, quote.LinesBySeller[10], 2)
	assert.Len(t, quote.LinesBySeller[20], 1)
}

func TestCalculateCartTotals_DiscountCodes(t *testing.T) {
	expired := time.Now().UTC().Add(-time.Hour)
	codes := map[string]*DiscountCode{
		"SAVE10":  {Code: "SAVE10", DiscountType: "percentage", DiscountValue: 10, MaxDiscountAmount: 300, IsActive: true},
		"FLAT5":   {Code: "FLAT5", DiscountType: "fixed_amount", DiscountValue: 500, MinOrderAmount: 3000, IsActive: true},
		"EXPIRED": {Code: "EXPIRED", DiscountType: "percentage", DiscountValue: 50, IsActive: true, ValidUntil: &expired},
		"OFF":     {Code: "OFF", DiscountType: "percentage", DiscountValue: 50, IsActive: false},
	}
	calc := newTestCalculator(nil, codes, defaultSettings())
	line := CartLine{ProductID: 1, SellerID: 10, Quantity: 1, BasePrice: 4000}

	cases := []struct {
		name         string
		code         string
		wantDiscount int64
	}{
		{"percentage capped by max", "SAVE10", 300},
		{"fixed amount over min order", "FLAT5", 500},
		{"expired code gives nothing", "EXPIRED", 0},
		{"inactive code gives nothing", "OFF", 0},
		{"unknown code gives nothing", "NOPE", 0},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			quote, err := calc.CalculateCartTotals(context.Background(), []CartLine{line}, 1, tc.code)
			require.NoError(t, err)
			assert.Equal(t, tc.wantDiscount, quote.Totals.CodeDiscountAmount)
			assert.Equal(t, int64(4000)-tc.wantDiscount, quote.Totals.SubtotalAfterDiscounts)
		})
	}
}

func TestCalculateCartTotals_CodeBelowMinOrderAmount(t *testing.T) {
	codes := map[string]*DiscountCode{
		"FLAT5": {Code: "FLAT5", DiscountType: "fixed_amount", DiscountValue: 500, MinOrderAmount: 3000, IsActive: true},
	}
	calc := newTestCalculator(nil, codes, defaultSettings())

	quote, err := calc.CalculateCartTotals(context.Background(), []CartLine{
		{ProductID: 1, SellerID: 10, Quantity: 1, BasePrice: 2999},
	}, 1, "FLAT5")
	require.NoError(t, err)
	assert.Equal(t, int64(0), quote.Totals.CodeDiscountAmount)
}

func TestCalculateCartTotals_CodeNeverExceedsSubtotal(t *testing.T) {
	codes := map[string]*DiscountCode{
		"BIG": {Code: "BIG", DiscountType: "fixed_amount", DiscountValue: 10000, IsActive: true},
	}
	calc := newTestCalculator(nil, codes, defaultSettings())

	quote, err := calc.CalculateCartTotals(context.Background(), []CartLine{
		{ProductID: 1, SellerID: 10, Quantity: 1, BasePrice: 2500},
	}, 1, "BIG")
	require.NoError(t, err)
	assert.Equal(t, int64(2500), quote.Totals.CodeDiscountAmount)
	assert.Equal(t, int64(0), quote.Totals.SubtotalAfterDiscounts)
	assert.Equal(t, int64(0), quote.Totals.TaxAmount)
}

func TestCalculateCartTotals_Validation(t *testing.T) {
	calc := newTestCalculator(nil, nil, defaultSettings())

	cases := []struct {
		name  string
		lines []CartLine
		field string
	}{
		{"empty cart", nil, "lines"},
		{"zero quantity", []CartLine{{ProductID: 1, SellerID: 1, Quantity: 0, BasePrice: 100}}, "quantity"},
		{"negative base price", []CartLine{{ProductID: 1, SellerID: 1, Quantity: 1, BasePrice: -5}}, "base_price"},
		{"missing product", []CartLine{{SellerID: 1, Quantity: 1, BasePrice: 100}}, "product_id"},
		{"missing seller", []CartLine{{ProductID: 1, Quantity: 1, BasePrice: 100}}, "seller_id"},
		{"discount over 100", []CartLine{{ProductID: 1, SellerID: 1, Quantity: 1, BasePrice: 100, SellerDiscountPercent: 101}}, "seller_discount_percent"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := calc.CalculateCartTotals(context.Background(), tc.lines, 1, "")
			require.Error(t, err)

			var validationErr *ValidationError
			require.ErrorAs(t, err, &validationErr)
			assert.Equal(t, tc.field, validationErr.Field)
		})
	}
}

func TestCalculateCartTotals_ValidationRejectsWholeCart(t *testing.T) {
	calc := newTestCalculator(nil, nil, defaultSettings())

	// One bad line poisons the whole request; nothing is priced
	_, err := calc.CalculateCartTotals(context.Background(), []CartLine{
		{ProductID: 1, SellerID: 10, Quantity: 1, BasePrice: 1000},
		{ProductID: 2, SellerID: 10, Quantity: -1, BasePrice: 1000},
	}, 1, "")
	require.Error(t, err)
}

func TestRoundPercent(t *testing.T) {
	assert.Equal(t, int64(1350), roundPercent(27000, 5))
	assert.Equal(t, int64(1000), roundPercent(10000, 10))
	assert.Equal(t, int64(1), roundPercent(10, 12.5)) // 1.25 rounds to 1
	assert.Equal(t, int64(2), roundPercent(10, 15))   // 1.5 rounds half away from zero
	assert.Equal(t, int64(0), roundPercent(10000, 0))
}
