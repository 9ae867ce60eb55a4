// internal/domain/checkout/entity.go
package checkout

import (
	"errors"
	"time"

	"github.com/your-org/checkout-engine/internal/domain/pricing"
)

// ErrSnapshotNotFound is returned when a snapshot is absent or expired
var ErrSnapshotNotFound = errors.New("checkout snapshot not found or expired")

// Address is the shipping/billing payload captured at checkout time and
// carried through to order creation
type Address struct {
	FirstName    string `json:"first_name"`
	LastName     string `json:"last_name"`
	Company      string `json:"company,omitempty"`
	AddressLine1 string `json:"address_line1"`
	AddressLine2 string `json:"address_line2,omitempty"`
	City         string `json:"city"`
	State        string `json:"state"`
	PostalCode   string `json:"postal_code"`
	Country      string `json:"country"`
	Phone        string `json:"phone,omitempty"`
}

// Snapshot is the immutable record of a priced cart awaiting payment
// confirmation, keyed by an opaque session id. It is created once per
// checkout attempt, read during reconciliation, and deleted exactly once
// on success or left to expire via TTL.
type Snapshot struct {
	SessionID       string               `json:"session_id"`
	UserID          uint                 `json:"user_id"`
	Lines           []pricing.PricedLine `json:"lines"`
	DiscountCode    string               `json:"discount_code,omitempty"`
	Totals          pricing.Totals       `json:"totals"`
	ShippingAddress Address              `json:"shipping_address"`
	BillingAddress  Address              `json:"billing_address"`
	CreatedAt       time.Time            `json:"created_at"`
	ExpiresAt       time.Time            `json:"expires_at"`
}

// IsExpired reports whether the snapshot's own deadline has passed.
// The payload deadline backs up the Redis TTL against backend clock drift.
func (s *Snapshot) IsExpired(now time.Time) bool {
	return now.After(s.ExpiresAt)
}

// IsWellFormed reports whether the snapshot can drive an order creation
func (s *Snapshot) IsWellFormed() bool {
	return len(s.Lines) > 0 && s.Totals.FinalTotal > 0
}
