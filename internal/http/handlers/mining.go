package handlers

import (
	"net/http"

	"ton_miner/internal/miner"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
)

// State returns the caller's account view
func (h *Handler) State(c *gin.Context) {
	userID, ok := getUserID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}

	snap, err := h.Mining.Snapshot(c.Request.Context(), userID)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, snap)
}

func (h *Handler) StartMining(c *gin.Context) {
	h.dispatch(c, miner.Intent{Action: miner.ActionStartMining})
}

func (h *Handler) ClaimDailyGift(c *gin.Context) {
	h.dispatch(c, miner.Intent{Action: miner.ActionClaimDailyGift})
}

func (h *Handler) ClaimFaucet(c *gin.Context) {
	h.dispatch(c, miner.Intent{Action: miner.ActionClaimFaucet})
}

func (h *Handler) CompleteTask(c *gin.Context) {
	h.dispatch(c, miner.Intent{Action: miner.ActionCompleteTask, TaskID: c.Param("id")})
}

type WithdrawalRequest struct {
	Amount  decimal.Decimal `json:"amount"`
	Address string          `json:"address"`
}

func (h *Handler) RequestWithdrawal(c *gin.Context) {
	var req WithdrawalRequest
	if err := c.BindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "bad request", "code": "invalid_request"})
		return
	}
	h.dispatch(c, miner.Intent{
		Action:  miner.ActionRequestWithdrawal,
		Amount:  req.Amount,
		Address: req.Address,
	})
}

// ListWithdrawals returns the caller's own history, newest first
func (h *Handler) ListWithdrawals(c *gin.Context) {
	userID, ok := getUserID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}

	snap, err := h.Mining.Snapshot(c.Request.Context(), userID)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"withdrawals": snap.Withdrawals})
}

// dispatch runs one intent. The request context bounds the engagement wait,
// so a client that disconnects declines its own pending action.
func (h *Handler) dispatch(c *gin.Context, in miner.Intent) {
	userID, ok := getUserID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}

	snap, eff, err := h.Mining.Dispatch(c.Request.Context(), userID, in)
	if err != nil {
		status, body := errorBody(err)
		if snap.UserID != 0 {
			body["state"] = snap
		}
		c.JSON(status, body)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"state":  snap,
		"effect": effectView(eff),
	})
}

func effectView(eff miner.Effect) gin.H {
	v := gin.H{
		"action":   eff.Action,
		"credited": eff.Credited,
	}
	if eff.Withdrawal != nil {
		v["withdrawal"] = eff.Withdrawal
	}
	return v
}
