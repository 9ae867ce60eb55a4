// internal/domain/payment/adapters.go
package payment

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
)

// Adapter normalizes one provider's confirmation payload into a
// PaymentResult. Provider-specific signature checks live here so the
// reconciler stays provider-agnostic.
type Adapter interface {
	Provider() string
	Normalize(payload []byte) (*PaymentResult, error)
}

// AdapterRegistry resolves the adapter for a provider name
type AdapterRegistry struct {
	adapters map[string]Adapter
}

// NewAdapterRegistry creates a registry from the given adapters
func NewAdapterRegistry(adapters ...Adapter) *AdapterRegistry {
	registry := &AdapterRegistry{adapters: make(map[string]Adapter)}
	for _, a := range adapters {
		registry.adapters[a.Provider()] = a
	}
	return registry
}

// For returns the adapter registered for the provider
func (r *AdapterRegistry) For(provider string) (Adapter, error) {
	adapter, ok := r.adapters[provider]
	if !ok {
		return nil, fmt.Errorf("unknown payment provider: %s", provider)
	}
	return adapter, nil
}

// RazorpayAdapter normalizes Razorpay payment confirmations
type RazorpayAdapter struct {
	keySecret string
}

// NewRazorpayAdapter creates a Razorpay adapter
func NewRazorpayAdapter(keySecret string) *RazorpayAdapter {
	return &RazorpayAdapter{keySecret: keySecret}
}

func (a *RazorpayAdapter) Provider() string { return "razorpay" }

type razorpayCallback struct {
	RazorpayOrderID   string                 `json:"razorpay_order_id"`
	RazorpayPaymentID string                 `json:"razorpay_payment_id"`
	RazorpaySignature string                 `json:"razorpay_signature"`
	SessionID         string                 `json:"session_id"`
	Amount            int64                  `json:"amount"` // paise
	Status            string                 `json:"status"`
	ErrorCode         string                 `json:"error_code"`
	ErrorDescription  string                 `json:"error_description"`
	Notes             map[string]interface{} `json:"notes"`
}

// Normalize validates the callback signature and maps it to PaymentResult
func (a *RazorpayAdapter) Normalize(payload []byte) (*PaymentResult, error) {
	var cb razorpayCallback
	if err := json.Unmarshal(payload, &cb); err != nil {
		return nil, fmt.Errorf("failed to parse razorpay payload: %w", err)
	}

	success := cb.Status == "captured"
	if success && !a.verifySignature(cb.RazorpayOrderID, cb.RazorpayPaymentID, cb.RazorpaySignature) {
		return nil, fmt.Errorf("razorpay signature verification failed")
	}

	return &PaymentResult{
		PaymentMethod:  "razorpay",
		ValidationType: "signature",
		TransactionID:  cb.RazorpayPaymentID,
		SessionID:      cb.SessionID,
		Amount:         float64(cb.Amount) / 100,
		Success:        success,
		ErrorMessage:   cb.ErrorDescription,
		ErrorCode:      cb.ErrorCode,
		Metadata:       cb.Notes,
	}, nil
}

// verifySignature checks the HMAC-SHA256 of "orderID|paymentID" against the
// signature Razorpay sent
func (a *RazorpayAdapter) verifySignature(orderID, paymentID, signature string) bool {
	mac := hmac.New(sha256.New, []byte(a.keySecret))
	mac.Write([]byte(orderID + "|" + paymentID))
	expected := hex.EncodeToString(mac.Sum(nil))
	return hmac.Equal([]byte(expected), []byte(signature))
}

// StripeAdapter normalizes Stripe payment-intent webhooks
type StripeAdapter struct{}

// NewStripeAdapter creates a Stripe adapter
func NewStripeAdapter() *StripeAdapter {
	return &StripeAdapter{}
}

func (a *StripeAdapter) Provider() string { return "stripe" }

type stripeEvent struct {
	Type string `json:"type"`
	Data struct {
		Object struct {
			ID             string                 `json:"id"`
			AmountReceived int64                  `json:"amount_received"` // cents
			Status         string                 `json:"status"`
			Metadata       map[string]interface{} `json:"metadata"`
			LastPaymentError struct {
				Code    string `json:"code"`
				Message string `json:"message"`
			} `json:"last_payment_error"`
		} `json:"object"`
	} `json:"data"`
}

func (a *StripeAdapter) Normalize(payload []byte) (*PaymentResult, error) {
	var event stripeEvent
	if err := json.Unmarshal(payload, &event); err != nil {
		return nil, fmt.Errorf("failed to parse stripe payload: %w", err)
	}

	object := event.Data.Object
	sessionID, _ := object.Metadata["session_id"].(string)

	return &PaymentResult{
		PaymentMethod:  "stripe",
		ValidationType: "webhook",
		TransactionID:  object.ID,
		SessionID:      sessionID,
		Amount:         float64(object.AmountReceived) / 100,
		Success:        event.Type == "payment_intent.succeeded" && object.Status == "succeeded",
		ErrorMessage:   object.LastPaymentError.Message,
		ErrorCode:      object.LastPaymentError.Code,
		Metadata:       object.Metadata,
	}, nil
}

// CodAdapter normalizes cash-on-delivery confirmations produced by the
// internal fulfillment flow
type CodAdapter struct{}

// NewCodAdapter creates a cash-on-delivery adapter
func NewCodAdapter() *CodAdapter {
	return &CodAdapter{}
}

func (a *CodAdapter) Provider() string { return "cod" }

type codConfirmation struct {
	SessionID   string  `json:"session_id"`
	ReferenceID string  `json:"reference_id"`
	Amount      float64 `json:"amount"`
	Confirmed   bool    `json:"confirmed"`
	Reason      string  `json:"reason"`
}

func (a *CodAdapter) Normalize(payload []byte) (*PaymentResult, error) {
	var cb codConfirmation
	if err := json.Unmarshal(payload, &cb); err != nil {
		return nil, fmt.Errorf("failed to parse cod payload: %w", err)
	}

	return &PaymentResult{
		PaymentMethod:  "cod",
		ValidationType: "manual",
		TransactionID:  cb.ReferenceID,
		SessionID:      cb.SessionID,
		Amount:         cb.Amount,
		Success:        cb.Confirmed,
		ErrorMessage:   cb.Reason,
	}, nil
}
