package handlers

import (
	"net/http"
	"strconv"

	"ton_miner/internal/domain"
	"ton_miner/internal/service"

	"github.com/gin-gonic/gin"
)

type referralResponse struct {
	service.ReferralView
	Friends []domain.Referral `json:"friends"`
}

// Referral returns the caller's code, invite link, earnings and invited friends
func (h *Handler) Referral(c *gin.Context) {
	userID, ok := getUserID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}

	ctx := c.Request.Context()
	snap, err := h.Mining.Snapshot(ctx, userID)
	if err != nil {
		writeError(c, err)
		return
	}
	limit, _ := strconv.Atoi(c.Query("limit"))
	friends, err := h.Mining.Referrals(ctx, userID, limit)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, referralResponse{ReferralView: snap.Referral, Friends: friends})
}
