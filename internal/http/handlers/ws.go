package handlers

import (
	"ton_miner/internal/ws"

	"github.com/gin-gonic/gin"
)

// WS streams the caller's snapshots; auth is ?token=<jwt> since browsers cannot set headers on upgrade
func (h *Handler) WS(hub *ws.Hub) gin.HandlerFunc {
	return ws.HandleWS(hub, h.Mining.Snapshot, h.cfg.AllowedOrigin)
}
