package handlers

import (
	"crypto/subtle"
	"net/http"
	"strconv"

	"ton_miner/internal/engagement"
	"ton_miner/internal/logger"

	"github.com/gin-gonic/gin"
)

// ConfirmRequest names the gate the ad was shown for ("start_mining", "complete_task:ad1").
// Clients that only know the placement get the oldest pending gate on it.
type ConfirmRequest struct {
	Gate      string `json:"gate"`
	Placement string `json:"placement"`
	Completed bool   `json:"completed"`
	Reason    string `json:"reason"`
}

// ConfirmEngagement receives the ad SDK outcome reported by the Mini App
func (h *Handler) ConfirmEngagement(c *gin.Context) {
	userID, ok := getUserID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}
	if h.Broker == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "engagement confirmations are not enabled"})
		return
	}

	var req ConfirmRequest
	if err := c.BindJSON(&req); err != nil || (req.Placement == "" && req.Gate == "") {
		c.JSON(http.StatusBadRequest, gin.H{"error": "gate or placement required"})
		return
	}

	target := engagement.Target{Gate: req.Gate, Placement: req.Placement}
	delivered := h.Broker.Confirm(userID, target, engagement.Result{
		Completed: req.Completed,
		Reason:    req.Reason,
	})
	c.JSON(http.StatusOK, gin.H{"delivered": delivered})
}

// RewardCallback is the ad network's server-side reward hook:
// GET /api/v1/engagement/reward?userid=<tg_id>&placement=<block>&gate=<gate>&secret=<shared>
func (h *Handler) RewardCallback(c *gin.Context) {
	if h.Broker == nil || h.cfg.RewardSecret == "" {
		c.JSON(http.StatusNotFound, gin.H{"error": "reward callback is not enabled"})
		return
	}
	if subtle.ConstantTimeCompare([]byte(c.Query("secret")), []byte(h.cfg.RewardSecret)) != 1 {
		c.JSON(http.StatusForbidden, gin.H{"error": "forbidden"})
		return
	}

	userID, err := strconv.ParseInt(c.Query("userid"), 10, 64)
	if err != nil || userID <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "userid required"})
		return
	}
	target := engagement.Target{Gate: c.Query("gate"), Placement: c.Query("placement")}
	if target.Gate == "" && target.Placement == "" {
		target.Placement = h.Settings.Get().Placements.Mining
	}

	delivered := h.Broker.Confirm(userID, target, engagement.Result{Completed: true})
	logger.Debug("reward callback", "user_id", userID, "gate", target.Gate, "placement", target.Placement, "delivered", delivered)
	c.JSON(http.StatusOK, gin.H{"delivered": delivered})
}
