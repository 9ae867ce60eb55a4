// internal/domain/payment/adapters_test.go
package payment

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func razorpaySignature(secret, orderID, paymentID string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(orderID + "|" + paymentID))
	return hex.EncodeToString(mac.Sum(nil))
}

func TestRazorpayAdapter_CapturedPayment(t *testing.T) {
	adapter := NewRazorpayAdapter("test-secret")

	payload, err := json.Marshal(map[string]interface{}{
		"razorpay_order_id":   "order_abc",
		"razorpay_payment_id": "pay_xyz",
		"razorpay_signature":  razorpaySignature("test-secret", "order_abc", "pay_xyz"),
		"session_id":          "sess-1",
		"amount":              29498,
		"status":              "captured",
		"notes":               map[string]interface{}{"source": "checkout"},
	})
	require.NoError(t, err)

	result, err := adapter.Normalize(payload)
	require.NoError(t, err)

	assert.True(t, result.Success)
	assert.Equal(t, "razorpay", result.PaymentMethod)
	assert.Equal(t, "pay_xyz", result.TransactionID)
	assert.Equal(t, "sess-1", result.SessionID)
	assert.InDelta(t, 294.98, result.Amount, 0.001)
}

func TestRazorpayAdapter_BadSignature(t *testing.T) {
	adapter := NewRazorpayAdapter("test-secret")

	payload, err := json.Marshal(map[string]interface{}{
		"razorpay_order_id":   "order_abc",
		"razorpay_payment_id": "pay_xyz",
		"razorpay_signature":  "forged",
		"session_id":          "sess-1",
		"amount":              29498,
		"status":              "captured",
	})
	require.NoError(t, err)

	_, err = adapter.Normalize(payload)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "signature")
}

func TestRazorpayAdapter_FailedPaymentSkipsSignature(t *testing.T) {
	adapter := NewRazorpayAdapter("test-secret")

	payload, err := json.Marshal(map[string]interface{}{
		"razorpay_payment_id": "pay_xyz",
		"session_id":          "sess-1",
		"status":              "failed",
		"error_code":          "BAD_CARD",
		"error_description":   "card declined",
	})
	require.NoError(t, err)

	result, err := adapter.Normalize(payload)
	require.NoError(t, err)
	assert.False(t, result.Success)
	assert.Equal(t, "BAD_CARD", result.ErrorCode)
	assert.Equal(t, "card declined", result.ErrorMessage)
}

func TestStripeAdapter_SucceededIntent(t *testing.T) {
	adapter := NewStripeAdapter()

	payload := []byte(`{
		"type": "payment_intent.succeeded",
		"data": {
			"object": {
				"id": "pi_123",
				"amount_received": 9315,
				"status": "succeeded",
				"metadata": {"session_id": "sess-2"}
			}
		}
	}`)

	result, err := adapter.Normalize(payload)
	require.NoError(t, err)

	assert.True(t, result.Success)
	assert.Equal(t, "stripe", result.PaymentMethod)
	assert.Equal(t, "pi_123", result.TransactionID)
	assert.Equal(t, "sess-2", result.SessionID)
	assert.InDelta(t, 93.15, result.Amount, 0.001)
}

func TestStripeAdapter_FailedIntent(t *testing.T) {
	adapter := NewStripeAdapter()

	payload := []byte(`{
		"type": "payment_intent.payment_failed",
		"data": {
			"object": {
				"id": "pi_456",
				"status": "requires_payment_method",
				"metadata": {"session_id": "sess-3"},
				"last_payment_error": {"code": "card_declined", "message": "Your card was declined."}
			}
		}
	}`)

	result, err := adapter.Normalize(payload)
	require.NoError(t, err)
	assert.False(t, result.Success)
	assert.Equal(t, "card_declined", result.ErrorCode)
	assert.Equal(t, "sess-3", result.SessionID)
}

func TestCodAdapter(t *testing.T) {
	adapter := NewCodAdapter()

	result, err := adapter.Normalize([]byte(`{
		"session_id": "sess-4",
		"reference_id": "cod-789",
		"amount": 93.15,
		"confirmed": true
	}`))
	require.NoError(t, err)

	assert.True(t, result.Success)
	assert.Equal(t, "cod", result.PaymentMethod)
	assert.Equal(t, "cod-789", result.TransactionID)
	assert.InDelta(t, 93.15, result.Amount, 0.001)
}

func TestAdapterRegistry(t *testing.T) {
	registry := NewAdapterRegistry(
		NewRazorpayAdapter("secret"),
		NewStripeAdapter(),
		NewCodAdapter(),
	)

	for _, provider := range []string{"razorpay", "stripe", "cod"} {
		adapter, err := registry.For(provider)
		require.NoError(t, err)
		assert.Equal(t, provider, adapter.Provider())
	}

	_, err := registry.For("paypal")
	require.Error(t, err)
}
