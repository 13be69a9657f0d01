package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// PublicSettings exposes rewards, timers and placements without the passcode
func (h *Handler) PublicSettings(c *gin.Context) {
	c.JSON(http.StatusOK, h.Settings.Get().Public())
}

func (h *Handler) Tasks(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"tasks": h.Settings.Get().Tasks})
}
