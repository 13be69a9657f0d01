package handlers

import (
	"io"
	"net/http"
	"strconv"

	"ton_miner/internal/domain"
	"ton_miner/internal/repository"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
)

// AdminVerify is reached only through the passcode middleware
func (h *Handler) AdminVerify(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"ok": true})
}

func (h *Handler) AdminSettings(c *gin.Context) {
	c.JSON(http.StatusOK, h.Admin.Settings())
}

// AdminUpdateSettings applies a partial settings document; any bad key rejects the whole patch
func (h *Handler) AdminUpdateSettings(c *gin.Context) {
	raw, err := io.ReadAll(io.LimitReader(c.Request.Body, 64<<10))
	if err != nil || len(raw) == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "bad request"})
		return
	}

	next, err := h.Admin.UpdateSettings(c.Request.Context(), raw)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, next)
}

func (h *Handler) AdminWithdrawals(c *gin.Context) {
	limit, _ := strconv.Atoi(c.Query("limit"))
	status := domain.WithdrawalStatus(c.Query("status"))

	refs, err := h.Admin.ListWithdrawals(c.Request.Context(), status, limit)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"withdrawals": refs})
}

type StatusRequest struct {
	Status domain.WithdrawalStatus `json:"status"`
}

func (h *Handler) AdminSetWithdrawalStatus(c *gin.Context) {
	var req StatusRequest
	if err := c.BindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "bad request"})
		return
	}

	ref, err := h.Admin.SetWithdrawalStatus(c.Request.Context(), c.Param("id"), req.Status)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, ref)
}

type GrantRequest struct {
	Amount decimal.Decimal `json:"amount"`
}

func (h *Handler) AdminGrant(c *gin.Context) {
	userID, ok := parseTgID(c)
	if !ok {
		return
	}
	var req GrantRequest
	if err := c.BindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "bad request"})
		return
	}

	snap, err := h.Admin.Grant(c.Request.Context(), userID, req.Amount)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, snap)
}

func (h *Handler) AdminReset(c *gin.Context) {
	userID, ok := parseTgID(c)
	if !ok {
		return
	}

	snap, err := h.Admin.ResetAccount(c.Request.Context(), userID)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, snap)
}

// AdminAudit lists the audit trail, optionally narrowed by ?tg_id and ?category
func (h *Handler) AdminAudit(c *gin.Context) {
	filter := repository.AuditFilter{Category: c.Query("category")}
	filter.Limit, _ = strconv.Atoi(c.Query("limit"))
	if raw := c.Query("tg_id"); raw != "" {
		id, err := strconv.ParseInt(raw, 10, 64)
		if err != nil || id <= 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid tg_id"})
			return
		}
		filter.UserID = id
	}

	entries, err := h.Admin.Audit(c.Request.Context(), filter)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"entries": entries})
}

func parseTgID(c *gin.Context) (int64, bool) {
	id, err := strconv.ParseInt(c.Param("tg_id"), 10, 64)
	if err != nil || id <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid tg_id"})
		return 0, false
	}
	return id, true
}
