// internal/domain/payment/entity.go
package payment

import "errors"

// PaymentResult is the provider-agnostic normalization of a payment
// confirmation. Adapters produce it; the reconciler never branches on the
// provider beyond passing it through. Amount is in major currency units as
// reported by the provider callback.
type PaymentResult struct {
	PaymentMethod  string                 `json:"payment_method"`
	ValidationType string                 `json:"validation_type"`
	TransactionID  string                 `json:"transaction_id"`
	SessionID      string                 `json:"session_id"`
	Amount         float64                `json:"amount"`
	Success        bool                   `json:"success"`
	ErrorMessage   string                 `json:"error_message,omitempty"`
	ErrorCode      string                 `json:"error_code,omitempty"`
	Metadata       map[string]interface{} `json:"metadata,omitempty"`
}

// ReconciliationState tracks the progress of one reconciliation attempt
type ReconciliationState string

const (
	StateReceived        ReconciliationState = "RECEIVED"
	StateSnapshotFound   ReconciliationState = "SNAPSHOT_FOUND"
	StateAmountValidated ReconciliationState = "AMOUNT_VALIDATED"
	StateOrderCreated    ReconciliationState = "ORDER_CREATED"

	StateSnapshotMissing     ReconciliationState = "SNAPSHOT_MISSING"
	StateAmountMismatch      ReconciliationState = "AMOUNT_MISMATCH"
	StateOrderCreationFailed ReconciliationState = "ORDER_CREATION_FAILED"
)

// Reconciliation errors. SnapshotExpiredOrMissing and AmountMismatch mean
// money may already have moved without an order; they require operator
// follow-up rather than automatic retries.
var (
	ErrSnapshotExpiredOrMissing = errors.New("checkout snapshot expired or missing")
	ErrAmountMismatch           = errors.New("payment amount does not match snapshot total")
	ErrOrderCreation            = errors.New("order creation failed")
)

// OrderSummary is the order echo inside a reconciliation result
type OrderSummary struct {
	OrderID     uint    `json:"order_id"`
	OrderNumber string  `json:"order_number"`
	Total       float64 `json:"total"`
	Status      string  `json:"status"`
}

// SellerOrderSummary summarizes one per-seller sub-order
type SellerOrderSummary struct {
	SellerOrderID uint    `json:"seller_order_id"`
	SellerID      uint    `json:"seller_id"`
	Subtotal      float64 `json:"subtotal"`
	Status        string  `json:"status"`
}

// ReconciliationResult is the structured outcome of processing a payment
// confirmation. RetryAllowed distinguishes safely-retryable failures from
// states that need operator intervention.
type ReconciliationResult struct {
	Success      bool                 `json:"success"`
	State        ReconciliationState  `json:"state"`
	RetryAllowed bool                 `json:"retry_allowed"`
	Error        string               `json:"error,omitempty"`
	Order        *OrderSummary        `json:"order,omitempty"`
	SellerOrders []SellerOrderSummary `json:"seller_orders,omitempty"`
	Payment      *PaymentResult       `json:"payment,omitempty"`
}
