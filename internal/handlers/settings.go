package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"chamberheat/internal/control"
	"chamberheat/internal/models"
)

// @Summary      Get controller settings
// @Tags         settings
// @Produce      json
// @Success      200  {object}  models.Settings
// @Failure      500  {object}  map[string]string
// @Router       /api/v1/settings [get]
func (h *Handler) getSettings(c *gin.Context) {
	settings, err := h.services.Settings.Get(c.Request.Context())
	if err != nil {
		h.logAndJSONError(c, http.StatusInternalServerError, "failed to load settings", "settings_get_failed", err)
		return
	}
	c.JSON(http.StatusOK, settings)
}

// @Summary      Replace controller settings
// @Description  Validates, persists, and applies the full settings document, material presets included.
// @Tags         settings
// @Accept       json
// @Produce      json
// @Param        body  body   models.Settings  true  "Settings document"
// @Success      200   {object}  map[string]interface{}
// @Failure      400   {object}  map[string]string
// @Failure      500   {object}  map[string]string
// @Router       /api/v1/settings [put]
func (h *Handler) updateSettings(c *gin.Context) {
	var settings models.Settings
	if err := c.ShouldBindJSON(&settings); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": errInvalidBodyPref + err.Error()})
		return
	}
	if err := h.services.Settings.Update(c.Request.Context(), settings); err != nil {
		var ve *control.ValidationError
		if errors.As(err, &ve) {
			c.JSON(http.StatusBadRequest, gin.H{"error": ve.Error()})
			return
		}
		h.logAndJSONError(c, http.StatusInternalServerError, "failed to save settings", "settings_update_failed", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": statusUpdated, "settings": settings})
}
