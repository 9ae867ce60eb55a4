// internal/domain/payment/reconciler_test.go
package payment

import (
	"context"
	"errors"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/your-org/checkout-engine/internal/domain/checkout"
	"github.com/your-org/checkout-engine/internal/domain/order"
	"github.com/your-org/checkout-engine/internal/domain/pricing"
	"github.com/your-org/checkout-engine/internal/pkg/audit"
)

type memorySnapshotStore struct {
	mu        sync.Mutex
	snapshots map[string]*checkout.Snapshot
}

func newMemorySnapshotStore() *memorySnapshotStore {
	return &memorySnapshotStore{snapshots: make(map[string]*checkout.Snapshot)}
}

func (s *memorySnapshotStore) put(snapshot *checkout.Snapshot) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.snapshots[snapshot.SessionID] = snapshot
}

func (s *memorySnapshotStore) has(sessionID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.snapshots[sessionID]
	return ok
}

func (s *memorySnapshotStore) Take(ctx context.Context, sessionID string) (*checkout.Snapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	snapshot, ok := s.snapshots[sessionID]
	if !ok {
		return nil, checkout.ErrSnapshotNotFound
	}
	delete(s.snapshots, sessionID)
	return snapshot, nil
}

func (s *memorySnapshotStore) Restore(ctx context.Context, snapshot *checkout.Snapshot) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.snapshots[snapshot.SessionID] = snapshot
	return nil
}

type stubOrderCreator struct {
	mu        sync.Mutex
	calls     int
	failTimes int
}

func (c *stubOrderCreator) CreateFromSnapshot(ctx context.Context, req *order.CreateOrderRequest) (*order.CreateOrderResult, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.calls++
	if c.failTimes > 0 {
		c.failTimes--
		return nil, errors.New("database unavailable")
	}
	return &order.CreateOrderResult{
		Order: &order.Order{
			ID:          uint(c.calls),
			UserID:      req.UserID,
			SessionID:   req.SessionID,
			OrderNumber: "ORD-20260831-00001",
			TotalAmount: req.Totals.FinalTotal,
			Status:      order.OrderStatusConfirmed,
		},
		SellerOrders: []order.SellerOrder{
			{ID: 1, OrderID: uint(c.calls), SellerID: 10, Subtotal: req.Totals.SubtotalAfterDiscounts, Status: order.OrderStatusConfirmed},
		},
	}, nil
}

func (c *stubOrderCreator) callCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.calls
}

type countingSink struct {
	mu        sync.Mutex
	mismatch  []audit.Event
	outcomes  []audit.Event
}

func (s *countingSink) TamperDetected(ctx context.Context, event audit.Event) {}

func (s *countingSink) AmountMismatch(ctx context.Context, event audit.Event) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.mismatch = append(s.mismatch, event)
}

func (s *countingSink) ReconciliationOutcome(ctx context.Context, event audit.Event) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.outcomes = append(s.outcomes, event)
}

func (s *countingSink) outcomeStates() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	states := make([]string, len(s.outcomes))
	for i, e := range s.outcomes {
		states[i] = e.State
	}
	return states
}

func testLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return logger
}

func reconciledSnapshot(sessionID string) *checkout.Snapshot {
	return &checkout.Snapshot{
		SessionID: sessionID,
		UserID:    42,
		Lines: []pricing.PricedLine{
			{
				CartLine:          pricing.CartLine{ProductID: 1, SellerID: 10, Quantity: 3, BasePrice: 10000},
				FinalUnitPrice:    8550,
				FinalLineSubtotal: 25650,
			},
		},
		Totals: pricing.Totals{
			SubtotalAfterDiscounts: 25650,
			TaxAmount:              3848,
			FinalTotal:             29498,
			PerSeller:              map[uint]pricing.SellerTotals{10: {Subtotal: 25650}},
		},
		ExpiresAt: time.Now().UTC().Add(30 * time.Minute),
	}
}

func confirmedPayment(sessionID string, amount float64) *PaymentResult {
	return &PaymentResult{
		PaymentMethod: "razorpay",
		TransactionID: "pay_123",
		SessionID:     sessionID,
		Amount:        amount,
		Success:       true,
	}
}

func TestProcessSuccessfulPayment_CreatesOrder(t *testing.T) {
	store := newMemorySnapshotStore()
	creator := &stubOrderCreator{}
	sink := &countingSink{}
	reconciler := NewReconciler(store, creator, sink, testLogger(), 0.01)

	store.put(reconciledSnapshot("sess-1"))

	result, err := reconciler.ProcessSuccessfulPayment(context.Background(), confirmedPayment("sess-1", 294.98), "sess-1")
	require.NoError(t, err)

	assert.True(t, result.Success)
	assert.Equal(t, StateOrderCreated, result.State)
	assert.False(t, result.RetryAllowed)
	require.NotNil(t, result.Order)
	assert.Equal(t, "ORD-20260831-00001", result.Order.OrderNumber)
	require.Len(t, result.SellerOrders, 1)
	assert.Equal(t, uint(10), result.SellerOrders[0].SellerID)

	// The snapshot was consumed
	assert.False(t, store.has("sess-1"))
	assert.Equal(t, 1, creator.callCount())
	assert.Equal(t, []string{"ORDER_CREATED"}, sink.outcomeStates())
}

func TestProcessSuccessfulPayment_DuplicateCallback(t *testing.T) {
	store := newMemorySnapshotStore()
	creator := &stubOrderCreator{}
	reconciler := NewReconciler(store, creator, &countingSink{}, testLogger(), 0.01)

	store.put(reconciledSnapshot("sess-dup"))
	payment := confirmedPayment("sess-dup", 294.98)

	first, err := reconciler.ProcessSuccessfulPayment(context.Background(), payment, "sess-dup")
	require.NoError(t, err)
	assert.True(t, first.Success)

	// The replayed callback finds no snapshot and creates nothing
	second, err := reconciler.ProcessSuccessfulPayment(context.Background(), payment, "sess-dup")
	assert.ErrorIs(t, err, ErrSnapshotExpiredOrMissing)
	assert.Equal(t, StateSnapshotMissing, second.State)
	assert.False(t, second.RetryAllowed)

	assert.Equal(t, 1, creator.callCount())
}

func TestProcessSuccessfulPayment_ConcurrentCallbacks(t *testing.T) {
	store := newMemorySnapshotStore()
	creator := &stubOrderCreator{}
	reconciler := NewReconciler(store, creator, &countingSink{}, testLogger(), 0.01)

	store.put(reconciledSnapshot("sess-race"))
	payment := confirmedPayment("sess-race", 294.98)

	const callers = 8
	var wg sync.WaitGroup
	successes := make(chan *ReconciliationResult, callers)

	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			result, _ := reconciler.ProcessSuccessfulPayment(context.Background(), payment, "sess-race")
			if result != nil && result.Success {
				successes <- result
			}
		}()
	}
	wg.Wait()
	close(successes)

	var won int
	for range successes {
		won++
	}
	assert.Equal(t, 1, won)
	assert.Equal(t, 1, creator.callCount())
}

func TestProcessSuccessfulPayment_MissingSnapshot(t *testing.T) {
	store := newMemorySnapshotStore()
	creator := &stubOrderCreator{}
	sink := &countingSink{}
	reconciler := NewReconciler(store, creator, sink, testLogger(), 0.01)

	result, err := reconciler.ProcessSuccessfulPayment(context.Background(), confirmedPayment("sess-gone", 100), "sess-gone")
	assert.ErrorIs(t, err, ErrSnapshotExpiredOrMissing)
	assert.Equal(t, StateSnapshotMissing, result.State)
	assert.False(t, result.RetryAllowed)
	assert.Equal(t, 0, creator.callCount())
	assert.Equal(t, []string{"SNAPSHOT_MISSING"}, sink.outcomeStates())
}

func TestProcessSuccessfulPayment_AmountMismatch(t *testing.T) {
	store := newMemorySnapshotStore()
	creator := &stubOrderCreator{}
	sink := &countingSink{}
	reconciler := NewReconciler(store, creator, sink, testLogger(), 0.01)

	store.put(reconciledSnapshot("sess-amt"))

	// Paid 100.00 against a 294.98 snapshot
	result, err := reconciler.ProcessSuccessfulPayment(context.Background(), confirmedPayment("sess-amt", 100.00), "sess-amt")
	assert.ErrorIs(t, err, ErrAmountMismatch)
	assert.Equal(t, StateAmountMismatch, result.State)
	assert.False(t, result.RetryAllowed)
	assert.Equal(t, 0, creator.callCount())

	// The snapshot went back for manual reconciliation
	assert.True(t, store.has("sess-amt"))

	sink.mu.Lock()
	defer sink.mu.Unlock()
	require.Len(t, sink.mismatch, 1)
	assert.InDelta(t, 294.98, sink.mismatch[0].Expected, 0.001)
	assert.InDelta(t, 100.00, sink.mismatch[0].Submitted, 0.001)
}

func TestProcessSuccessfulPayment_AmountWithinEpsilon(t *testing.T) {
	store := newMemorySnapshotStore()
	creator := &stubOrderCreator{}
	reconciler := NewReconciler(store, creator, &countingSink{}, testLogger(), 0.01)

	store.put(reconciledSnapshot("sess-eps"))

	result, err := reconciler.ProcessSuccessfulPayment(context.Background(), confirmedPayment("sess-eps", 294.985), "sess-eps")
	require.NoError(t, err)
	assert.True(t, result.Success)
}

func TestProcessSuccessfulPayment_OrderCreationFailureIsRetryable(t *testing.T) {
	store := newMemorySnapshotStore()
	creator := &stubOrderCreator{failTimes: 1}
	reconciler := NewReconciler(store, creator, &countingSink{}, testLogger(), 0.01)

	store.put(reconciledSnapshot("sess-retry"))
	payment := confirmedPayment("sess-retry", 294.98)

	result, err := reconciler.ProcessSuccessfulPayment(context.Background(), payment, "sess-retry")
	assert.ErrorIs(t, err, ErrOrderCreation)
	assert.Equal(t, StateOrderCreationFailed, result.State)
	assert.True(t, result.RetryAllowed)

	// The snapshot was restored, so the retry succeeds
	assert.True(t, store.has("sess-retry"))

	retried, err := reconciler.ProcessSuccessfulPayment(context.Background(), payment, "sess-retry")
	require.NoError(t, err)
	assert.True(t, retried.Success)
	assert.Equal(t, 2, creator.callCount())
}

func TestHandleFailedPayment_LeavesSnapshotIntact(t *testing.T) {
	store := newMemorySnapshotStore()
	creator := &stubOrderCreator{}
	sink := &countingSink{}
	reconciler := NewReconciler(store, creator, sink, testLogger(), 0.01)

	store.put(reconciledSnapshot("sess-fail"))

	result := reconciler.HandleFailedPayment(context.Background(), &PaymentResult{
		PaymentMethod: "razorpay",
		SessionID:     "sess-fail",
		Success:       false,
		ErrorMessage:  "card declined",
		ErrorCode:     "BAD_CARD",
	}, "sess-fail")

	assert.False(t, result.Success)
	assert.True(t, result.RetryAllowed)
	assert.Equal(t, StateReceived, result.State)

	// The cart is still checkout-able with another payment method
	assert.True(t, store.has("sess-fail"))
	assert.Equal(t, 0, creator.callCount())
}
