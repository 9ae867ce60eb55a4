// internal/config/resolver_test.go
package config

import (
	"context"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestResolver(t *testing.T) (*SettingsResolver, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })

	cfg := &Config{
		Pricing: PricingConfig{
			TaxRatePercent:        15.0,
			ShippingEnabled:       true,
			FreeShippingThreshold: 5000,
			DefaultShippingCost:   500,
		},
	}
	return NewSettingsResolver(cfg, client), mr
}

func TestSettingsResolver_Defaults(t *testing.T) {
	resolver, _ := newTestResolver(t)

	settings, err := resolver.PricingSettings(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 15.0, settings.TaxRatePercent)
	assert.True(t, settings.ShippingEnabled)
	assert.Equal(t, int64(5000), settings.FreeShippingThreshold)
	assert.Equal(t, int64(500), settings.DefaultShippingCost)
}

func TestSettingsResolver_OverrideTakesPrecedence(t *testing.T) {
	resolver, _ := newTestResolver(t)
	ctx := context.Background()

	require.NoError(t, resolver.SetOverride(ctx, SettingTaxRatePercent, "18.5"))
	require.NoError(t, resolver.SetOverride(ctx, SettingFreeShippingThreshold, "10000"))

	settings, err := resolver.PricingSettings(ctx)
	require.NoError(t, err)

	assert.Equal(t, 18.5, settings.TaxRatePercent)
	assert.Equal(t, int64(10000), settings.FreeShippingThreshold)
	// Untouched settings keep their defaults
	assert.Equal(t, int64(500), settings.DefaultShippingCost)
}

func TestSettingsResolver_ClearOverrideRestoresDefault(t *testing.T) {
	resolver, _ := newTestResolver(t)
	ctx := context.Background()

	require.NoError(t, resolver.SetOverride(ctx, SettingShippingEnabled, "false"))

	settings, err := resolver.PricingSettings(ctx)
	require.NoError(t, err)
	assert.False(t, settings.ShippingEnabled)

	require.NoError(t, resolver.ClearOverride(ctx, SettingShippingEnabled))

	settings, err = resolver.PricingSettings(ctx)
	require.NoError(t, err)
	assert.True(t, settings.ShippingEnabled)
}

func TestSettingsResolver_CacheInvalidation(t *testing.T) {
	resolver, mr := newTestResolver(t)
	ctx := context.Background()

	// First read populates the cache
	settings, err := resolver.PricingSettings(ctx)
	require.NoError(t, err)
	assert.Equal(t, 15.0, settings.TaxRatePercent)

	// Writing to Redis directly does not reach a cached resolver
	require.NoError(t, mr.Set("config:pricing:tax_rate_percent", "20"))

	settings, err = resolver.PricingSettings(ctx)
	require.NoError(t, err)
	assert.Equal(t, 15.0, settings.TaxRatePercent)

	// Invalidation forces a re-read of the chain
	resolver.Invalidate()

	settings, err = resolver.PricingSettings(ctx)
	require.NoError(t, err)
	assert.Equal(t, 20.0, settings.TaxRatePercent)
}

func TestSettingsResolver_GarbageOverrideFallsBack(t *testing.T) {
	resolver, mr := newTestResolver(t)

	require.NoError(t, mr.Set("config:pricing:tax_rate_percent", "not-a-number"))

	settings, err := resolver.PricingSettings(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 15.0, settings.TaxRatePercent)
}

func TestSettingsResolver_RedisDownFallsBack(t *testing.T) {
	resolver, mr := newTestResolver(t)
	mr.Close()

	settings, err := resolver.PricingSettings(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 15.0, settings.TaxRatePercent)
	assert.Equal(t, int64(500), settings.DefaultShippingCost)
}
