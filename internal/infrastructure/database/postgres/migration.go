// internal/infrastructure/database/postgres/migration.go
package postgres

import (
	"fmt"
	"log"
	"time"

	"github.com/your-org/checkout-engine/internal/domain/order"
	"github.com/your-org/checkout-engine/internal/domain/pricing"
	"gorm.io/gorm"
)

// Migration handles database migrations
type Migration struct {
	db *gorm.DB
}

// NewMigration creates a new migration instance
func NewMigration(db *gorm.DB) *Migration {
	return &Migration{
		db: db,
	}
}

// RunAutoMigrations runs GORM auto-migrations for all models
func (m *Migration) RunAutoMigrations() error {
	log.Println("🔄 Running database auto-migrations...")

	// Models in dependency order
	models := []interface{}{
		// Pricing configuration
		&pricing.VolumeDiscountTier{},
		&pricing.DiscountCode{},

		// Order domain
		&order.Order{},
		&order.SellerOrder{},
		&order.OrderItem{},
		&order.Payment{},
	}

	for _, model := range models {
		log.Printf("Migrating model: %T", model)
		if err := m.db.AutoMigrate(model); err != nil {
			return fmt.Errorf("failed to migrate %T: %w", model, err)
		}
	}

	log.Println("✅ Database migrations completed")
	return nil
}

// CreateIndexes creates additional indexes not covered by model tags
func (m *Migration) CreateIndexes() error {
	indexes := []string{
		"CREATE INDEX IF NOT EXISTS idx_volume_tiers_product_threshold ON volume_discount_tiers (product_id, threshold_quantity)",
		"CREATE INDEX IF NOT EXISTS idx_orders_user_created ON orders (user_id, created_at DESC)",
		"CREATE INDEX IF NOT EXISTS idx_payments_transaction ON payments (transaction_id)",
	}

	for _, index := range indexes {
		if err := m.db.Exec(index).Error; err != nil {
			return fmt.Errorf("failed to create index: %w", err)
		}
	}

	return nil
}

// SeedInitialData seeds discount configuration for development
func (m *Migration) SeedInitialData() error {
	var tierCount int64
	if err := m.db.Model(&pricing.VolumeDiscountTier{}).Count(&tierCount).Error; err != nil {
		return fmt.Errorf("failed to count volume tiers: %w", err)
	}
	if tierCount > 0 {
		return nil
	}

	log.Println("🌱 Seeding development discount configuration...")

	tiers := []pricing.VolumeDiscountTier{
		{ProductID: 1, ThresholdQuantity: 3, Percentage: 5, Label: "Buy 3+ save 5%"},
		{ProductID: 1, ThresholdQuantity: 10, Percentage: 10, Label: "Buy 10+ save 10%"},
		{ProductID: 2, ThresholdQuantity: 5, Percentage: 10, Label: "Buy 5+ save 10%"},
	}
	for _, tier := range tiers {
		if err := m.db.Create(&tier).Error; err != nil {
			return fmt.Errorf("failed to seed volume tier: %w", err)
		}
	}

	validUntil := time.Now().UTC().AddDate(1, 0, 0)
	codes := []pricing.DiscountCode{
		{Code: "SAVE10", DiscountType: "percentage", DiscountValue: 10, MinOrderAmount: 2000, MaxDiscountAmount: 1500, IsActive: true, ValidUntil: &validUntil},
		{Code: "FLAT5", DiscountType: "fixed_amount", DiscountValue: 500, MinOrderAmount: 3000, IsActive: true, ValidUntil: &validUntil},
	}
	for _, code := range codes {
		if err := m.db.Create(&code).Error; err != nil {
			return fmt.Errorf("failed to seed discount code: %w", err)
		}
	}

	return nil
}
