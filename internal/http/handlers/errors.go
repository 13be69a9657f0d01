package handlers

import (
	"context"
	"errors"
	"net/http"

	"ton_miner/internal/engagement"
	"ton_miner/internal/miner"
	"ton_miner/internal/repository"
	"ton_miner/internal/service"

	"github.com/gin-gonic/gin"
)

// errorBody maps a service error to a status and a stable code the Mini App switches on
func errorBody(err error) (int, gin.H) {
	body := gin.H{"error": err.Error()}

	var locked *miner.LockedError
	switch {
	case errors.As(err, &locked):
		body["code"] = "locked"
		body["remaining_ms"] = locked.Remaining.Milliseconds()
		return http.StatusConflict, body
	case errors.Is(err, miner.ErrActionPending):
		body["code"] = "pending"
		return http.StatusConflict, body
	case errors.Is(err, miner.ErrSessionActive):
		body["code"] = "session_active"
		return http.StatusConflict, body
	case errors.Is(err, miner.ErrTaskCompleted):
		body["code"] = "task_completed"
		return http.StatusConflict, body
	case errors.Is(err, engagement.ErrNoFill):
		body["code"] = "no_fill"
		return http.StatusConflict, body
	case errors.Is(err, engagement.ErrDeclined),
		errors.Is(err, engagement.ErrUnavailable),
		errors.Is(err, context.DeadlineExceeded),
		errors.Is(err, context.Canceled):
		body["code"] = "engagement_declined"
		body["error"] = "engagement was not completed, try again"
		return http.StatusConflict, body
	case errors.Is(err, miner.ErrInvalidTransition):
		body["code"] = "invalid_transition"
		return http.StatusConflict, body
	case errors.Is(err, miner.ErrUnknownTask):
		body["code"] = "unknown_task"
		return http.StatusNotFound, body
	case errors.Is(err, miner.ErrWithdrawalNotFound), errors.Is(err, repository.ErrNotFound):
		body["code"] = "not_found"
		return http.StatusNotFound, body
	case errors.Is(err, miner.ErrInsufficientBalance):
		body["code"] = "insufficient_balance"
		return http.StatusBadRequest, body
	case errors.Is(err, miner.ErrBelowMinimum):
		body["code"] = "below_minimum"
		return http.StatusBadRequest, body
	case errors.Is(err, miner.ErrInvalidAmount):
		body["code"] = "invalid_amount"
		return http.StatusBadRequest, body
	case errors.Is(err, miner.ErrInvalidAddress):
		body["code"] = "invalid_address"
		return http.StatusBadRequest, body
	case errors.Is(err, miner.ErrUnknownAction),
		errors.Is(err, service.ErrInvalidStatus),
		errors.Is(err, service.ErrInvalidSettings):
		body["code"] = "invalid_request"
		return http.StatusBadRequest, body
	case errors.Is(err, service.ErrStorageUnavailable):
		body["code"] = "storage_unavailable"
		return http.StatusServiceUnavailable, body
	default:
		return http.StatusInternalServerError, gin.H{"error": "internal error", "code": "internal"}
	}
}

func writeError(c *gin.Context, err error) {
	status, body := errorBody(err)
	c.JSON(status, body)
}
