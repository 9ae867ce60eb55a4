// internal/domain/order/entity.go
package order

import (
	"fmt"
	"time"

	"gorm.io/gorm"
)

// OrderStatus represents the order status
type OrderStatus string

const (
	OrderStatusConfirmed  OrderStatus = "confirmed"
	OrderStatusProcessing OrderStatus = "processing"
	OrderStatusShipped    OrderStatus = "shipped"
	OrderStatusDelivered  OrderStatus = "delivered"
	OrderStatusCompleted  OrderStatus = "completed"
	OrderStatusCancelled  OrderStatus = "cancelled"
	OrderStatusRefunded   OrderStatus = "refunded"
)

// PaymentStatus represents payment status
type PaymentStatus string

const (
	PaymentStatusPaid     PaymentStatus = "paid"
	PaymentStatusFailed   PaymentStatus = "failed"
	PaymentStatusRefunded PaymentStatus = "refunded"
)

// Order represents the authoritative order created by reconciliation.
// Amounts are in minor currency units.
type Order struct {
	ID            uint          `gorm:"primaryKey" json:"id"`
	OrderNumber   string        `gorm:"uniqueIndex;not null;size:50" json:"order_number"`
	UserID        uint          `gorm:"not null;index" json:"user_id"`
	SessionID     string        `gorm:"uniqueIndex;not null;size:100" json:"session_id"`
	Status        OrderStatus   `gorm:"not null;default:'confirmed'" json:"status"`
	PaymentStatus PaymentStatus `gorm:"not null" json:"payment_status"`

	// Financial information
	SubtotalOriginal int64 `gorm:"not null" json:"subtotal_original"`
	SubtotalAmount   int64 `gorm:"not null" json:"subtotal_amount"`
	SellerDiscount   int64 `gorm:"default:0" json:"seller_discount"`
	VolumeDiscount   int64 `gorm:"default:0" json:"volume_discount"`
	CodeDiscount     int64 `gorm:"default:0" json:"code_discount"`
	TaxAmount        int64 `gorm:"default:0" json:"tax_amount"`
	ShippingAmount   int64 `gorm:"default:0" json:"shipping_amount"`
	TotalAmount      int64 `gorm:"not null" json:"total_amount"`

	// Addresses
	ShippingAddress Address `gorm:"embedded;embeddedPrefix:shipping_" json:"shipping_address"`
	BillingAddress  Address `gorm:"embedded;embeddedPrefix:billing_" json:"billing_address"`

	Currency   string `gorm:"size:3;default:'USD'" json:"currency"`
	CouponCode string `gorm:"size:50" json:"coupon_code"`

	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"-"`

	// Relationships
	Items        []OrderItem   `gorm:"foreignKey:OrderID;constraint:OnUpdate:CASCADE,OnDelete:CASCADE;" json:"items"`
	SellerOrders []SellerOrder `gorm:"foreignKey:OrderID;constraint:OnUpdate:CASCADE,OnDelete:CASCADE;" json:"seller_orders"`
	Payments     []Payment     `gorm:"foreignKey:OrderID;constraint:OnUpdate:CASCADE,OnDelete:CASCADE;" json:"payments,omitempty"`
}

// OrderItem represents one priced line of an order
type OrderItem struct {
	ID                uint      `gorm:"primaryKey" json:"id"`
	OrderID           uint      `gorm:"not null;index" json:"order_id"`
	SellerOrderID     uint      `gorm:"index" json:"seller_order_id"`
	ProductID         uint      `gorm:"not null;index" json:"product_id"`
	SellerID          uint      `gorm:"not null;index" json:"seller_id"`
	Quantity          int       `gorm:"not null" json:"quantity"`
	BasePrice         int64     `gorm:"not null" json:"base_price"`
	SellerDiscount    int64     `gorm:"default:0" json:"seller_discount"`
	VolumeDiscount    int64     `gorm:"default:0" json:"volume_discount"`
	FinalUnitPrice    int64     `gorm:"not null" json:"final_unit_price"`
	FinalLineSubtotal int64     `gorm:"not null" json:"final_line_subtotal"`
	CreatedAt         time.Time `json:"created_at"`
	UpdatedAt         time.Time `json:"updated_at"`
}

// SellerOrder is the per-seller sub-order of a multi-seller order.
// Earnings allocation against it is handled by the ledger service.
type SellerOrder struct {
	ID             uint        `gorm:"primaryKey" json:"id"`
	OrderID        uint        `gorm:"not null;index" json:"order_id"`
	SellerID       uint        `gorm:"not null;index" json:"seller_id"`
	Subtotal       int64       `gorm:"not null" json:"subtotal"`
	SellerDiscount int64       `gorm:"default:0" json:"seller_discount"`
	VolumeDiscount int64       `gorm:"default:0" json:"volume_discount"`
	Status         OrderStatus `gorm:"not null;default:'confirmed'" json:"status"`
	CreatedAt      time.Time   `json:"created_at"`
	UpdatedAt      time.Time   `json:"updated_at"`
}

// Payment echoes the confirmed provider payment that created the order
type Payment struct {
	ID            uint          `gorm:"primaryKey" json:"id"`
	OrderID       uint          `gorm:"not null;index" json:"order_id"`
	PaymentMethod string        `gorm:"not null;size:50" json:"payment_method"`
	TransactionID string        `gorm:"size:255;index" json:"transaction_id"`
	Amount        int64         `gorm:"not null" json:"amount"`
	Currency      string        `gorm:"size:3;default:'USD'" json:"currency"`
	Status        PaymentStatus `gorm:"not null" json:"status"`
	Metadata      string        `gorm:"type:text" json:"metadata"` // raw provider metadata as JSON
	ProcessedAt   *time.Time    `json:"processed_at"`
	CreatedAt     time.Time     `json:"created_at"`
	UpdatedAt     time.Time     `json:"updated_at"`
}

// Address represents shipping/billing address (embedded in Order)
type Address struct {
	FirstName    string `gorm:"size:100" json:"first_name"`
	LastName     string `gorm:"size:100" json:"last_name"`
	Company      string `gorm:"size:100" json:"company"`
	AddressLine1 string `gorm:"size:255" json:"address_line1"`
	AddressLine2 string `gorm:"size:255" json:"address_line2"`
	City         string `gorm:"size:100" json:"city"`
	State        string `gorm:"size:100" json:"state"`
	PostalCode   string `gorm:"size:20" json:"postal_code"`
	Country      string `gorm:"size:2" json:"country"`
	Phone        string `gorm:"size:20" json:"phone"`
}

// TableName overrides
func (Order) TableName() string       { return "orders" }
func (OrderItem) TableName() string   { return "order_items" }
func (SellerOrder) TableName() string { return "seller_orders" }
func (Payment) TableName() string     { return "payments" }

// GenerateOrderNumber generates a unique order number
// Format: ORD-YYYYMMDD-XXXXX
func GenerateOrderNumber(orderID uint) string {
	return fmt.Sprintf("ORD-%s-%05d", time.Now().Format("20060102"), orderID)
}

// GetFormattedTotal returns total amount as float
func (o *Order) GetFormattedTotal() float64 {
	return float64(o.TotalAmount) / 100
}
