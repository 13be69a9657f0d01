package handlers

import (
	"errors"
	"net/http"

	"ton_miner/internal/logger"
	"ton_miner/internal/service"
	"ton_miner/internal/telegram"

	"github.com/gin-gonic/gin"
)

type AuthRequest struct {
	InitData string `json:"init_data"`
}

// Auth validates Telegram init data, opens the account and issues a session token
func (h *Handler) Auth(c *gin.Context) {
	var req AuthRequest
	if err := c.BindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "bad request"})
		return
	}

	if len(req.InitData) > 4096 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "init_data too long"})
		return
	}

	ident, err := h.identify(req.InitData)
	if err != nil {
		status := http.StatusUnauthorized
		if errors.Is(err, telegram.ErrMissingInitData) || errors.Is(err, telegram.ErrNoUser) {
			status = http.StatusBadRequest
		}
		c.JSON(status, gin.H{"error": "invalid or stale telegram data"})
		return
	}

	snap, err := h.Mining.Open(c.Request.Context(), ident)
	if err != nil {
		writeError(c, err)
		return
	}

	token, err := service.GenerateJWT(ident.UserID)
	if err != nil {
		logger.Error("token generation failed", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "token generation failed"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"token": token,
		"state": snap,
	})
}

// identify validates init data. In DEV_MODE without a bot token the signature is not checked.
func (h *Handler) identify(raw string) (telegram.Identity, error) {
	if h.cfg.DevMode && h.cfg.BotToken == "" {
		return telegram.ParseUnverified(raw)
	}
	return telegram.Authenticate(raw, h.cfg.BotToken, h.cfg.InitDataTTL)
}
