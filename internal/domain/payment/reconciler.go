// internal/domain/payment/reconciler.go
package payment

import (
	"context"
	"errors"
	"math"
	"sync"

	"github.com/sirupsen/logrus"
	"github.com/your-org/checkout-engine/internal/domain/checkout"
	"github.com/your-org/checkout-engine/internal/domain/order"
	"github.com/your-org/checkout-engine/internal/pkg/audit"
)

// SnapshotStore is the slice of the checkout store the reconciler needs.
// Take must be atomic so duplicate callbacks cannot both consume the same
// snapshot.
type SnapshotStore interface {
	Take(ctx context.Context, sessionID string) (*checkout.Snapshot, error)
	Restore(ctx context.Context, snapshot *checkout.Snapshot) error
}

// OrderCreator materializes the authoritative order inside one transaction
type OrderCreator interface {
	CreateFromSnapshot(ctx context.Context, req *order.CreateOrderRequest) (*order.CreateOrderResult, error)
}

// Reconciler turns a confirmed payment plus a stored snapshot into exactly
// one order. Per-session mutual exclusion narrows the callback race
// in-process; the store's atomic fetch-and-delete guarantees at-most-once
// consumption across processes.
type Reconciler struct {
	snapshots     SnapshotStore
	orders        OrderCreator
	auditSink     audit.Sink
	logger        *logrus.Logger
	amountEpsilon float64
	sessionLocks  sync.Map // sessionID -> *sync.Mutex
}

// NewReconciler creates a new payment reconciler
func NewReconciler(snapshots SnapshotStore, orders OrderCreator, auditSink audit.Sink, logger *logrus.Logger, amountEpsilon float64) *Reconciler {
	return &Reconciler{
		snapshots:     snapshots,
		orders:        orders,
		auditSink:     auditSink,
		logger:        logger,
		amountEpsilon: amountEpsilon,
	}
}

// ProcessSuccessfulPayment reconciles a confirmed payment against the
// stored snapshot and drives order creation. The snapshot is consumed on
// success (single use, so a replayed session id cannot create a second
// order) and restored intact on any failure after it was taken.
func (r *Reconciler) ProcessSuccessfulPayment(ctx context.Context, result *PaymentResult, sessionID string) (*ReconciliationResult, error) {
	lock := r.lockFor(sessionID)
	lock.Lock()
	defer lock.Unlock()

	logger := r.logger.WithFields(logrus.Fields{
		"session_id":     sessionID,
		"payment_method": result.PaymentMethod,
		"transaction_id": result.TransactionID,
	})
	logger.Info("Payment confirmation received")

	snapshot, err := r.snapshots.Take(ctx, sessionID)
	if err != nil {
		if errors.Is(err, checkout.ErrSnapshotNotFound) {
			// Money may have moved but no order can be built; this needs
			// operator follow-up, not a silent retry
			r.auditSink.ReconciliationOutcome(ctx, audit.Event{
				SessionID: sessionID,
				Provider:  result.PaymentMethod,
				Reason:    "snapshot missing or expired after successful charge",
				State:     string(StateSnapshotMissing),
				Submitted: result.Amount,
			})
			return &ReconciliationResult{
				Success:      false,
				State:        StateSnapshotMissing,
				RetryAllowed: false,
				Error:        ErrSnapshotExpiredOrMissing.Error(),
				Payment:      result,
			}, ErrSnapshotExpiredOrMissing
		}
		return nil, err
	}

	expected := float64(snapshot.Totals.FinalTotal) / 100
	if math.Abs(result.Amount-expected) > r.amountEpsilon {
		// Nothing committed; put the snapshot back for manual reconciliation
		if restoreErr := r.snapshots.Restore(ctx, snapshot); restoreErr != nil {
			logger.WithError(restoreErr).Error("Failed to restore snapshot after amount mismatch")
		}
		r.auditSink.AmountMismatch(ctx, audit.Event{
			UserID:    snapshot.UserID,
			SessionID: sessionID,
			Provider:  result.PaymentMethod,
			Reason:    "paid amount does not match snapshot total",
			Expected:  expected,
			Submitted: result.Amount,
		})
		return &ReconciliationResult{
			Success:      false,
			State:        StateAmountMismatch,
			RetryAllowed: false,
			Error:        ErrAmountMismatch.Error(),
			Payment:      result,
		}, ErrAmountMismatch
	}

	createResult, err := r.orders.CreateFromSnapshot(ctx, &order.CreateOrderRequest{
		UserID:          snapshot.UserID,
		SessionID:       sessionID,
		DiscountCode:    snapshot.DiscountCode,
		Lines:           snapshot.Lines,
		Totals:          snapshot.Totals,
		ShippingAddress: snapshot.ShippingAddress,
		BillingAddress:  snapshot.BillingAddress,
		Payment: order.PaymentData{
			Method:        result.PaymentMethod,
			TransactionID: result.TransactionID,
			Amount:        snapshot.Totals.FinalTotal,
			Metadata:      result.Metadata,
		},
	})
	if err != nil {
		// Full rollback happened inside the order transaction; the snapshot
		// goes back so the same session id is safely retryable
		if restoreErr := r.snapshots.Restore(ctx, snapshot); restoreErr != nil {
			logger.WithError(restoreErr).Error("Failed to restore snapshot after order creation failure")
		}
		r.auditSink.ReconciliationOutcome(ctx, audit.Event{
			UserID:    snapshot.UserID,
			SessionID: sessionID,
			Provider:  result.PaymentMethod,
			Reason:    err.Error(),
			State:     string(StateOrderCreationFailed),
		})
		return &ReconciliationResult{
			Success:      false,
			State:        StateOrderCreationFailed,
			RetryAllowed: true,
			Error:        ErrOrderCreation.Error(),
			Payment:      result,
		}, errors.Join(ErrOrderCreation, err)
	}

	ord := createResult.Order
	sellerSummaries := make([]SellerOrderSummary, 0, len(createResult.SellerOrders))
	for _, so := range createResult.SellerOrders {
		sellerSummaries = append(sellerSummaries, SellerOrderSummary{
			SellerOrderID: so.ID,
			SellerID:      so.SellerID,
			Subtotal:      float64(so.Subtotal) / 100,
			Status:        string(so.Status),
		})
	}

	r.auditSink.ReconciliationOutcome(ctx, audit.Event{
		UserID:    snapshot.UserID,
		SessionID: sessionID,
		Provider:  result.PaymentMethod,
		Reason:    "order created",
		State:     string(StateOrderCreated),
		Metadata:  map[string]interface{}{"order_number": ord.OrderNumber},
	})
	logger.WithField("order_number", ord.OrderNumber).Info("Payment reconciled into order")

	return &ReconciliationResult{
		Success:      true,
		State:        StateOrderCreated,
		RetryAllowed: false,
		Order: &OrderSummary{
			OrderID:     ord.ID,
			OrderNumber: ord.OrderNumber,
			Total:       ord.GetFormattedTotal(),
			Status:      string(ord.Status),
		},
		SellerOrders: sellerSummaries,
		Payment:      result,
	}, nil
}

// HandleFailedPayment records a declined payment. The snapshot is left
// untouched so the same cart can be re-attempted with another payment
// method.
func (r *Reconciler) HandleFailedPayment(ctx context.Context, result *PaymentResult, sessionID string) *ReconciliationResult {
	r.logger.WithFields(logrus.Fields{
		"session_id":     sessionID,
		"payment_method": result.PaymentMethod,
		"error_code":     result.ErrorCode,
		"error_message":  result.ErrorMessage,
	}).Warn("Payment failed")

	r.auditSink.ReconciliationOutcome(ctx, audit.Event{
		SessionID: sessionID,
		Provider:  result.PaymentMethod,
		Reason:    "payment declined: " + result.ErrorMessage,
		State:     string(StateReceived),
	})

	return &ReconciliationResult{
		Success:      false,
		State:        StateReceived,
		RetryAllowed: true,
		Error:        result.ErrorMessage,
		Payment:      result,
	}
}

func (r *Reconciler) lockFor(sessionID string) *sync.Mutex {
	lock, _ := r.sessionLocks.LoadOrStore(sessionID, &sync.Mutex{})
	return lock.(*sync.Mutex)
}
