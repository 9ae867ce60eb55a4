// internal/config/resolver.go
package config

import (
	"context"
	"fmt"
	"strconv"
	"sync"

	"github.com/redis/go-redis/v9"
	"github.com/your-org/checkout-engine/internal/domain/pricing"
)

// Pricing setting keys, shared by the Redis override namespace and the
// environment fallback
const (
	SettingTaxRatePercent        = "tax_rate_percent"
	SettingShippingEnabled       = "shipping_enabled"
	SettingFreeShippingThreshold = "free_shipping_threshold"
	SettingDefaultShippingCost   = "default_shipping_cost"
)

func settingKey(name string) string {
	return fmt.Sprintf("config:pricing:%s", name)
}

// SettingsResolver resolves pricing settings through an ordered chain:
// in-memory cache, then Redis overrides, then the loaded config defaults.
// It is injected into the calculator instead of being reached through
// ambient globals, and invalidated explicitly whenever an override is
// written.
type SettingsResolver struct {
	config      *Config
	redisClient *redis.Client

	mu     sync.RWMutex
	cached *pricing.Settings
}

// NewSettingsResolver creates a settings resolver backed by Redis overrides
func NewSettingsResolver(cfg *Config, redisClient *redis.Client) *SettingsResolver {
	return &SettingsResolver{
		config:      cfg,
		redisClient: redisClient,
	}
}

// PricingSettings returns the effective settings for a pricing run
func (r *SettingsResolver) PricingSettings(ctx context.Context) (pricing.Settings, error) {
	r.mu.RLock()
	if r.cached != nil {
		settings := *r.cached
		r.mu.RUnlock()
		return settings, nil
	}
	r.mu.RUnlock()

	settings := pricing.Settings{
		TaxRatePercent:        r.resolveFloat(ctx, SettingTaxRatePercent, r.config.Pricing.TaxRatePercent),
		ShippingEnabled:       r.resolveBool(ctx, SettingShippingEnabled, r.config.Pricing.ShippingEnabled),
		FreeShippingThreshold: r.resolveInt64(ctx, SettingFreeShippingThreshold, r.config.Pricing.FreeShippingThreshold),
		DefaultShippingCost:   r.resolveInt64(ctx, SettingDefaultShippingCost, r.config.Pricing.DefaultShippingCost),
	}

	r.mu.Lock()
	r.cached = &settings
	r.mu.Unlock()

	return settings, nil
}

// SetOverride writes a runtime override to Redis and invalidates the cache
func (r *SettingsResolver) SetOverride(ctx context.Context, name, value string) error {
	if err := r.redisClient.Set(ctx, settingKey(name), value, 0).Err(); err != nil {
		return fmt.Errorf("failed to write setting override: %w", err)
	}
	r.Invalidate()
	return nil
}

// ClearOverride removes a runtime override and invalidates the cache
func (r *SettingsResolver) ClearOverride(ctx context.Context, name string) error {
	if err := r.redisClient.Del(ctx, settingKey(name)).Err(); err != nil {
		return fmt.Errorf("failed to clear setting override: %w", err)
	}
	r.Invalidate()
	return nil
}

// Invalidate drops the in-memory cache so the next read walks the chain
func (r *SettingsResolver) Invalidate() {
	r.mu.Lock()
	r.cached = nil
	r.mu.Unlock()
}

// resolveRaw returns the Redis override for a setting, if any. Redis being
// unreachable falls through to the defaults rather than failing pricing.
func (r *SettingsResolver) resolveRaw(ctx context.Context, name string) (string, bool) {
	value, err := r.redisClient.Get(ctx, settingKey(name)).Result()
	if err != nil {
		return "", false
	}
	return value, true
}

func (r *SettingsResolver) resolveFloat(ctx context.Context, name string, fallback float64) float64 {
	if raw, ok := r.resolveRaw(ctx, name); ok {
		if value, err := strconv.ParseFloat(raw, 64); err == nil {
			return value
		}
	}
	return fallback
}

func (r *SettingsResolver) resolveInt64(ctx context.Context, name string, fallback int64) int64 {
	if raw, ok := r.resolveRaw(ctx, name); ok {
		if value, err := strconv.ParseInt(raw, 10, 64); err == nil {
			return value
		}
	}
	return fallback
}

func (r *SettingsResolver) resolveBool(ctx context.Context, name string, fallback bool) bool {
	if raw, ok := r.resolveRaw(ctx, name); ok {
		if value, err := strconv.ParseBool(raw); err == nil {
			return value
		}
	}
	return fallback
}

// StaticSettings is a fixed settings source, used where the resolver chain
// is not wired (tools, tests)
type StaticSettings struct {
	Settings pricing.Settings
}

// PricingSettings returns the fixed settings
func (s StaticSettings) PricingSettings(ctx context.Context) (pricing.Settings, error) {
	return s.Settings, nil
}
