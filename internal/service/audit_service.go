package service

import (
	"context"
	"log/slog"
	"time"

	"ton_miner/internal/domain"
	"ton_miner/internal/logger"
	"ton_miner/internal/repository"

	"github.com/shopspring/decimal"
)

// AuditService records money movements and admin actions. Failures are logged only.
type AuditService struct {
	repo  repository.AuditLog
	clock func() time.Time
	log   *slog.Logger
}

func NewAuditService(repo repository.AuditLog) *AuditService {
	return &AuditService{
		repo:  repo,
		clock: time.Now,
		log:   logger.Component("audit"),
	}
}

// Log creates a new audit log entry
func (s *AuditService) Log(ctx context.Context, userID int64, action, category string, details map[string]any) {
	if s == nil || s.repo == nil {
		return
	}
	entry := domain.AuditLog{
		UserID:    userID,
		Action:    action,
		Category:  category,
		Details:   details,
		CreatedAt: s.clock().UTC(),
	}

	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), storageTimeout)
	defer cancel()
	if err := s.repo.AppendAudit(ctx, entry); err != nil {
		PersistFailures.Inc()
		s.log.Error("failed to create audit log", "error", err, "action", action, "user_id", userID)
	}
}

func (s *AuditService) LogLogin(ctx context.Context, userID int64, startParam string) {
	var details map[string]any
	if startParam != "" {
		details = map[string]any{"start_param": startParam}
	}
	s.Log(ctx, userID, domain.AuditActionLogin, domain.AuditCategoryAuth, details)
}

func (s *AuditService) LogWithdrawRequest(ctx context.Context, userID int64, rec domain.WithdrawalRecord) {
	s.Log(ctx, userID, domain.AuditActionWithdrawRequest, domain.AuditCategoryWithdrawal, map[string]any{
		"withdrawal_id": rec.ID,
		"amount":        rec.Amount.String(),
		"address":       rec.Address,
	})
}

// LogWithdrawStatus records an admin decision on a withdrawal
func (s *AuditService) LogWithdrawStatus(ctx context.Context, ref repository.WithdrawalRef) {
	action := domain.AuditActionWithdrawApprove
	if ref.Status == domain.WithdrawalStatusRejected {
		action = domain.AuditActionWithdrawReject
	}
	s.Log(ctx, ref.UserID, action, domain.AuditCategoryWithdrawal, map[string]any{
		"withdrawal_id": ref.ID,
		"amount":        ref.Amount.String(),
	})
}

func (s *AuditService) LogReferralPayout(ctx context.Context, userID int64, amount decimal.Decimal) {
	s.Log(ctx, userID, domain.AuditActionReferralPayout, domain.AuditCategoryBalance, map[string]any{"amount": amount.String()})
}

func (s *AuditService) LogGrant(ctx context.Context, userID int64, amount decimal.Decimal) {
	s.Log(ctx, userID, domain.AuditActionAdminGrant, domain.AuditCategoryAdmin, map[string]any{"amount": amount.String()})
}

func (s *AuditService) LogReset(ctx context.Context, userID int64, balance decimal.Decimal) {
	s.Log(ctx, userID, domain.AuditActionAdminReset, domain.AuditCategoryAdmin, map[string]any{"previous_balance": balance.String()})
}

func (s *AuditService) LogSettingsUpdate(ctx context.Context, patch []byte) {
	s.Log(ctx, 0, domain.AuditActionSettingsUpdate, domain.AuditCategoryAdmin, map[string]any{"patch": string(patch)})
}

// Recent returns the newest entries matching f
func (s *AuditService) Recent(ctx context.Context, f repository.AuditFilter) ([]domain.AuditLog, error) {
	return s.repo.RecentAudit(ctx, f)
}
