// internal/domain/pricing/entity.go
package pricing

import (
	"fmt"
	"time"

	"gorm.io/gorm"
)

// CartLine represents a single cart line as submitted for pricing.
// Prices are unit prices in minor currency units (cents).
type CartLine struct {
	ProductID             uint    `json:"product_id"`
	SellerID              uint    `json:"seller_id"`
	Quantity              int     `json:"quantity"`
	BasePrice             int64   `json:"base_price"`
	SellerDiscountPercent float64 `json:"seller_discount_percent"`
}

// Validate checks a cart line before any price computation
func (l CartLine) Validate() error {
	if l.ProductID == 0 {
		return &ValidationError{Field: "product_id", Message: "product id is required"}
	}
	if l.SellerID == 0 {
		return &ValidationError{Field: "seller_id", ProductID: l.ProductID, Message: "seller id is required"}
	}
	if l.Quantity <= 0 {
		return &ValidationError{Field: "quantity", ProductID: l.ProductID, Message: "quantity must be positive"}
	}
	if l.BasePrice <= 0 {
		return &ValidationError{Field: "base_price", ProductID: l.ProductID, Message: "base price must be positive"}
	}
	if l.SellerDiscountPercent < 0 || l.SellerDiscountPercent > 100 {
		return &ValidationError{Field: "seller_discount_percent", ProductID: l.ProductID, Message: "seller discount must be between 0 and 100"}
	}
	return nil
}

// PricedLine is a cart line with all discounts resolved.
// FinalLineSubtotal is always FinalUnitPrice * Quantity.
type PricedLine struct {
	CartLine
	SellerDiscountAmount  int64   `json:"seller_discount_amount"`
	VolumeDiscountPercent float64 `json:"volume_discount_percent"`
	VolumeDiscountLabel   string  `json:"volume_discount_label,omitempty"`
	VolumeSavingsAmount   int64   `json:"volume_savings_amount"`
	FinalUnitPrice        int64   `json:"final_unit_price"`
	FinalLineSubtotal     int64   `json:"final_line_subtotal"`
}

// SellerTotals aggregates discounts per seller for downstream order splitting
type SellerTotals struct {
	Subtotal       int64 `json:"subtotal"`
	SellerDiscount int64 `json:"seller_discount"`
	VolumeDiscount int64 `json:"volume_discount"`
}

// Totals represents calculated cart totals.
// Invariant: FinalTotal = SubtotalAfterDiscounts + TaxAmount + ShippingCost.
type Totals struct {
	SubtotalOriginal       int64                 `json:"subtotal_original"`
	SubtotalAfterDiscounts int64                 `json:"subtotal_after_discounts"`
	TotalSellerDiscount    int64                 `json:"total_seller_discount"`
	TotalVolumeDiscount    int64                 `json:"total_volume_discount"`
	CodeDiscountAmount     int64                 `json:"code_discount_amount"`
	TaxAmount              int64                 `json:"tax_amount"`
	ShippingCost           int64                 `json:"shipping_cost"`
	FreeShippingApplied    bool                  `json:"free_shipping_applied"`
	FinalTotal             int64                 `json:"final_total"`
	PerSeller              map[uint]SellerTotals `json:"per_seller"`
}

// CartQuote is the full output of a pricing run
type CartQuote struct {
	Lines         []PricedLine          `json:"lines"`
	LinesBySeller map[uint][]PricedLine `json:"lines_by_seller"`
	Totals        Totals                `json:"totals"`
}

// VolumeDiscountTier represents one quantity tier of a product's volume
// discount ladder. Lookup returns the highest threshold <= quantity.
type VolumeDiscountTier struct {
	ID                uint           `gorm:"primaryKey" json:"id"`
	ProductID         uint           `gorm:"not null;index" json:"product_id"`
	ThresholdQuantity int            `gorm:"not null" json:"threshold_quantity"`
	Percentage        float64        `gorm:"not null" json:"percentage"`
	Label             string         `gorm:"size:100" json:"label"`
	CreatedAt         time.Time      `json:"created_at"`
	UpdatedAt         time.Time      `json:"updated_at"`
	DeletedAt         gorm.DeletedAt `gorm:"index" json:"-"`
}

// TableName overrides the table name
func (VolumeDiscountTier) TableName() string {
	return "volume_discount_tiers"
}

// DiscountCode represents a cart-level discount code.
// A code is evaluated against the aggregate cart, never per line.
type DiscountCode struct {
	ID                uint           `gorm:"primaryKey" json:"id"`
	Code              string         `gorm:"uniqueIndex;not null;size:50" json:"code"`
	DiscountType      string         `gorm:"not null;size:20" json:"discount_type"` // percentage, fixed_amount
	DiscountValue     float64        `gorm:"not null" json:"discount_value"`
	MinOrderAmount    int64          `gorm:"default:0" json:"min_order_amount"`
	MaxDiscountAmount int64          `gorm:"default:0" json:"max_discount_amount"`
	ValidUntil        *time.Time     `json:"valid_until,omitempty"`
	IsActive          bool           `gorm:"default:true" json:"is_active"`
	CreatedAt         time.Time      `json:"created_at"`
	UpdatedAt         time.Time      `json:"updated_at"`
	DeletedAt         gorm.DeletedAt `gorm:"index" json:"-"`
}

// TableName overrides the table name
func (DiscountCode) TableName() string {
	return "discount_codes"
}

// IsUsable reports whether the code can currently be applied
func (d *DiscountCode) IsUsable(now time.Time) bool {
	if !d.IsActive {
		return false
	}
	if d.ValidUntil != nil && now.After(*d.ValidUntil) {
		return false
	}
	return true
}

// Settings are the resolved tax/shipping parameters used for one pricing run
type Settings struct {
	TaxRatePercent        float64
	ShippingEnabled       bool
	FreeShippingThreshold int64
	DefaultShippingCost   int64
}

// ValidationError indicates a malformed cart line was rejected before
// any totals were computed
type ValidationError struct {
	Field     string
	ProductID uint
	Message   string
}

func (e *ValidationError) Error() string {
	if e.ProductID != 0 {
		return fmt.Sprintf("invalid cart line (product %d): %s", e.ProductID, e.Message)
	}
	return fmt.Sprintf("invalid cart line: %s", e.Message)
}
