// internal/domain/pricing/repository.go
package pricing

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"
)

// TierRepository resolves volume discount tiers from the database
type TierRepository struct {
	db *gorm.DB
}

// NewTierRepository creates a new tier repository
func NewTierRepository(db *gorm.DB) *TierRepository {
	return &TierRepository{db: db}
}

// TierFor returns the tier with the highest threshold <= quantity, or nil
// when the product has no qualifying tier
func (r *TierRepository) TierFor(ctx context.Context, productID uint, quantity int) (*VolumeDiscountTier, error) {
	var tier VolumeDiscountTier
	result := r.db.WithContext(ctx).
		Where("product_id = ? AND threshold_quantity <= ?", productID, quantity).
		Order("threshold_quantity DESC").
		First(&tier)

	if result.Error != nil {
		if result.Error == gorm.ErrRecordNotFound {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to query volume tiers: %w", result.Error)
	}

	return &tier, nil
}

// TiersFor returns the full ordered ladder for a product
func (r *TierRepository) TiersFor(ctx context.Context, productID uint) ([]VolumeDiscountTier, error) {
	var tiers []VolumeDiscountTier
	err := r.db.WithContext(ctx).
		Where("product_id = ?", productID).
		Order("threshold_quantity ASC").
		Find(&tiers).Error
	if err != nil {
		return nil, fmt.Errorf("failed to query volume tiers: %w", err)
	}
	return tiers, nil
}

// CachedTierSource caches a product's tier ladder in Redis in front of the
// database repository. Tier configuration changes rarely; a short TTL keeps
// staleness bounded without an invalidation protocol.
type CachedTierSource struct {
	repo        *TierRepository
	redisClient *redis.Client
	ttl         time.Duration
}

// NewCachedTierSource creates a Redis-cached tier source
func NewCachedTierSource(repo *TierRepository, redisClient *redis.Client, ttl time.Duration) *CachedTierSource {
	return &CachedTierSource{
		repo:        repo,
		redisClient: redisClient,
		ttl:         ttl,
	}
}

// TierFor resolves the matching tier from the cached ladder
func (c *CachedTierSource) TierFor(ctx context.Context, productID uint, quantity int) (*VolumeDiscountTier, error) {
	tiers, err := c.ladderFor(ctx, productID)
	if err != nil {
		return nil, err
	}

	// Ladder is ordered ascending; keep the last threshold <= quantity
	var match *VolumeDiscountTier
	for i := range tiers {
		if tiers[i].ThresholdQuantity <= quantity {
			match = &tiers[i]
		}
	}
	return match, nil
}

func (c *CachedTierSource) ladderFor(ctx context.Context, productID uint) ([]VolumeDiscountTier, error) {
	cacheKey := fmt.Sprintf("pricing:volume_tiers:%d", productID)

	cached, err := c.redisClient.Get(ctx, cacheKey).Result()
	if err == nil {
		var tiers []VolumeDiscountTier
		if err := json.Unmarshal([]byte(cached), &tiers); err == nil {
			return tiers, nil
		}
		// Corrupt cache entry, fall through to the database
	} else if err != redis.Nil {
		// Redis being down must not block pricing
		return c.repo.TiersFor(ctx, productID)
	}

	tiers, err := c.repo.TiersFor(ctx, productID)
	if err != nil {
		return nil, err
	}

	if data, err := json.Marshal(tiers); err == nil {
		c.redisClient.Set(ctx, cacheKey, data, c.ttl)
	}

	return tiers, nil
}

// CodeRepository resolves discount codes from the database
type CodeRepository struct {
	db *gorm.DB
}

// NewCodeRepository creates a new discount code repository
func NewCodeRepository(db *gorm.DB) *CodeRepository {
	return &CodeRepository{db: db}
}

// CodeFor returns the discount code record, or nil when no such code exists
func (r *CodeRepository) CodeFor(ctx context.Context, code string) (*DiscountCode, error) {
	var dc DiscountCode
	result := r.db.WithContext(ctx).Where("code = ?", code).First(&dc)
	if result.Error != nil {
		if result.Error == gorm.ErrRecordNotFound {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to query discount code: %w", result.Error)
	}
	return &dc, nil
}
