// internal/domain/order/service.go
package order

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/your-org/checkout-engine/internal/domain/checkout"
	"github.com/your-org/checkout-engine/internal/domain/pricing"
	"gorm.io/gorm"
)

// Service materializes orders from checkout snapshots. Seller-earnings
// allocation and invoicing hang off the rows this service writes but are
// owned by downstream services.
type Service struct {
	db       *gorm.DB
	currency string
	logger   *logrus.Logger
}

// NewService creates a new order service
func NewService(db *gorm.DB, currency string, logger *logrus.Logger) *Service {
	return &Service{
		db:       db,
		currency: currency,
		logger:   logger,
	}
}

// PaymentData carries the confirmed provider payment into order creation
type PaymentData struct {
	Method        string
	TransactionID string
	Amount        int64
	Metadata      map[string]interface{}
}

// CreateOrderRequest is the reconstruction of an order from a snapshot
type CreateOrderRequest struct {
	UserID          uint
	SessionID       string
	DiscountCode    string
	Lines           []pricing.PricedLine
	Totals          pricing.Totals
	ShippingAddress checkout.Address
	BillingAddress  checkout.Address
	Payment         PaymentData
}

// CreateOrderResult is the structured outcome of a successful creation
type CreateOrderResult struct {
	Order        *Order        `json:"order"`
	SellerOrders []SellerOrder `json:"seller_orders"`
}

// CreateFromSnapshot creates the order, its per-seller sub-orders, items
// and the payment echo row inside one transaction. Everything commits
// together or nothing does.
func (s *Service) CreateFromSnapshot(ctx context.Context, req *CreateOrderRequest) (*CreateOrderResult, error) {
	if len(req.Lines) == 0 {
		return nil, fmt.Errorf("cannot create order without lines")
	}

	tx := s.db.WithContext(ctx).Begin()
	defer func() {
		if r := recover(); r != nil {
			tx.Rollback()
		}
	}()
	if tx.Error != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", tx.Error)
	}

	ord := Order{
		UserID:           req.UserID,
		SessionID:        req.SessionID,
		Status:           OrderStatusConfirmed,
		PaymentStatus:    PaymentStatusPaid,
		SubtotalOriginal: req.Totals.SubtotalOriginal,
		SubtotalAmount:   req.Totals.SubtotalAfterDiscounts,
		SellerDiscount:   req.Totals.TotalSellerDiscount,
		VolumeDiscount:   req.Totals.TotalVolumeDiscount,
		CodeDiscount:     req.Totals.CodeDiscountAmount,
		TaxAmount:        req.Totals.TaxAmount,
		ShippingAmount:   req.Totals.ShippingCost,
		TotalAmount:      req.Totals.FinalTotal,
		ShippingAddress:  toOrderAddress(req.ShippingAddress),
		BillingAddress:   toOrderAddress(req.BillingAddress),
		Currency:         s.currency,
		CouponCode:       req.DiscountCode,
	}

	if err := tx.Create(&ord).Error; err != nil {
		tx.Rollback()
		return nil, fmt.Errorf("failed to create order: %w", err)
	}

	ord.OrderNumber = GenerateOrderNumber(ord.ID)
	if err := tx.Model(&ord).Update("order_number", ord.OrderNumber).Error; err != nil {
		tx.Rollback()
		return nil, fmt.Errorf("failed to update order number: %w", err)
	}

	// Per-seller sub-orders from the precomputed seller totals
	sellerOrderIDs := make(map[uint]uint)
	sellerOrders := make([]SellerOrder, 0, len(req.Totals.PerSeller))
	for sellerID, sellerTotals := range req.Totals.PerSeller {
		sellerOrder := SellerOrder{
			OrderID:        ord.ID,
			SellerID:       sellerID,
			Subtotal:       sellerTotals.Subtotal,
			SellerDiscount: sellerTotals.SellerDiscount,
			VolumeDiscount: sellerTotals.VolumeDiscount,
			Status:         OrderStatusConfirmed,
		}
		if err := tx.Create(&sellerOrder).Error; err != nil {
			tx.Rollback()
			return nil, fmt.Errorf("failed to create seller order: %w", err)
		}
		sellerOrderIDs[sellerID] = sellerOrder.ID
		sellerOrders = append(sellerOrders, sellerOrder)
	}

	for _, line := range req.Lines {
		item := OrderItem{
			OrderID:           ord.ID,
			SellerOrderID:     sellerOrderIDs[line.SellerID],
			ProductID:         line.ProductID,
			SellerID:          line.SellerID,
			Quantity:          line.Quantity,
			BasePrice:         line.BasePrice,
			SellerDiscount:    line.SellerDiscountAmount,
			VolumeDiscount:    line.VolumeSavingsAmount,
			FinalUnitPrice:    line.FinalUnitPrice,
			FinalLineSubtotal: line.FinalLineSubtotal,
		}
		if err := tx.Create(&item).Error; err != nil {
			tx.Rollback()
			return nil, fmt.Errorf("failed to create order item: %w", err)
		}
	}

	// Payment echo row
	now := time.Now().UTC()
	metadata, _ := json.Marshal(req.Payment.Metadata)
	payment := Payment{
		OrderID:       ord.ID,
		PaymentMethod: req.Payment.Method,
		TransactionID: req.Payment.TransactionID,
		Amount:        req.Payment.Amount,
		Currency:      s.currency,
		Status:        PaymentStatusPaid,
		Metadata:      string(metadata),
		ProcessedAt:   &now,
	}
	if err := tx.Create(&payment).Error; err != nil {
		tx.Rollback()
		return nil, fmt.Errorf("failed to create payment record: %w", err)
	}

	if err := tx.Commit().Error; err != nil {
		return nil, fmt.Errorf("failed to commit order transaction: %w", err)
	}

	// Load the complete order with relationships
	if err := s.db.WithContext(ctx).Preload("Items").Preload("SellerOrders").Preload("Payments").First(&ord, ord.ID).Error; err != nil {
		return nil, fmt.Errorf("failed to load complete order: %w", err)
	}

	s.logger.WithFields(logrus.Fields{
		"order_id":      ord.ID,
		"order_number":  ord.OrderNumber,
		"session_id":    req.SessionID,
		"seller_orders": len(sellerOrders),
		"total_amount":  ord.TotalAmount,
	}).Info("Order created from checkout snapshot")

	return &CreateOrderResult{
		Order:        &ord,
		SellerOrders: ord.SellerOrders,
	}, nil
}

// GetOrder retrieves a single order by ID
func (s *Service) GetOrder(ctx context.Context, id uint) (*Order, error) {
	var ord Order
	result := s.db.WithContext(ctx).
		Preload("Items").
		Preload("SellerOrders").
		Preload("Payments").
		Where("id = ?", id).
		First(&ord)

	if result.Error != nil {
		if result.Error == gorm.ErrRecordNotFound {
			return nil, fmt.Errorf("order not found")
		}
		return nil, fmt.Errorf("failed to retrieve order: %w", result.Error)
	}

	return &ord, nil
}

// GetOrderBySessionID retrieves the order created for a checkout session
func (s *Service) GetOrderBySessionID(ctx context.Context, sessionID string) (*Order, error) {
	var ord Order
	result := s.db.WithContext(ctx).
		Preload("Items").
		Preload("SellerOrders").
		Preload("Payments").
		Where("session_id = ?", sessionID).
		First(&ord)

	if result.Error != nil {
		if result.Error == gorm.ErrRecordNotFound {
			return nil, fmt.Errorf("order not found")
		}
		return nil, fmt.Errorf("failed to retrieve order: %w", result.Error)
	}

	return &ord, nil
}

func toOrderAddress(a checkout.Address) Address {
	return Address{
		FirstName:    a.FirstName,
		LastName:     a.LastName,
		Company:      a.Company,
		AddressLine1: a.AddressLine1,
		AddressLine2: a.AddressLine2,
		City:         a.City,
		State:        a.State,
		PostalCode:   a.PostalCode,
		Country:      a.Country,
		Phone:        a.Phone,
	}
}
