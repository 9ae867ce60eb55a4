// internal/interfaces/http/handlers/admin.go
package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/your-org/checkout-engine/internal/config"
)

// AdminHandler handles runtime pricing configuration endpoints
type AdminHandler struct {
	settings *config.SettingsResolver
}

// NewAdminHandler creates a new admin handler
func NewAdminHandler(settings *config.SettingsResolver) *AdminHandler {
	return &AdminHandler{
		settings: settings,
	}
}

var settingNames = map[string]bool{
	config.SettingTaxRatePercent:        true,
	config.SettingShippingEnabled:       true,
	config.SettingFreeShippingThreshold: true,
	config.SettingDefaultShippingCost:   true,
}

// GetSettings handles GET /admin/pricing/settings
func (h *AdminHandler) GetSettings(c *gin.Context) {
	settings, err := h.settings.PricingSettings(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"error": "Failed to resolve pricing settings",
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"data": settings,
	})
}

// SetSetting handles PUT /admin/pricing/settings/:name
func (h *AdminHandler) SetSetting(c *gin.Context) {
	name := c.Param("name")
	if !settingNames[name] {
		c.JSON(http.StatusNotFound, gin.H{
			"error": "Unknown pricing setting",
		})
		return
	}

	var req struct {
		Value string `json:"value" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "Invalid request data",
			"details": err.Error(),
		})
		return
	}

	if err := h.settings.SetOverride(c.Request.Context(), name, req.Value); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"error": "Failed to store setting override",
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"message": "Pricing setting updated",
	})
}

// ClearSetting handles DELETE /admin/pricing/settings/:name
func (h *AdminHandler) ClearSetting(c *gin.Context) {
	name := c.Param("name")
	if !settingNames[name] {
		c.JSON(http.StatusNotFound, gin.H{
			"error": "Unknown pricing setting",
		})
		return
	}

	if err := h.settings.ClearOverride(c.Request.Context(), name); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"error": "Failed to clear setting override",
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"message": "Pricing setting override cleared",
	})
}
