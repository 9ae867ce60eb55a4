// internal/domain/order/entity_test.go
package order

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestGenerateOrderNumber(t *testing.T) {
	today := time.Now().Format("20060102")

	assert.Equal(t, fmt.Sprintf("ORD-%s-00001", today), GenerateOrderNumber(1))
	assert.Equal(t, fmt.Sprintf("ORD-%s-00042", today), GenerateOrderNumber(42))
	assert.Equal(t, fmt.Sprintf("ORD-%s-123456", today), GenerateOrderNumber(123456))
}

func TestGetFormattedTotal(t *testing.T) {
	ord := &Order{TotalAmount: 29498}
	assert.InDelta(t, 294.98, ord.GetFormattedTotal(), 0.001)
}
