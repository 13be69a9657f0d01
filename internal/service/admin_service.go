package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"ton_miner/internal/domain"
	"ton_miner/internal/logger"
	"ton_miner/internal/miner"
	"ton_miner/internal/repository"

	"github.com/shopspring/decimal"
)

var ErrInvalidStatus = errors.New("invalid withdrawal status")

// AdminService is the passcode-gated override. The passcode is a UI gate, not access control.
type AdminService struct {
	settings *SettingsService
	mining   *MiningService
	index    repository.WithdrawalIndex
	log      *slog.Logger
}

func NewAdminService(settings *SettingsService, mining *MiningService, index repository.WithdrawalIndex) *AdminService {
	return &AdminService{
		settings: settings,
		mining:   mining,
		index:    index,
		log:      logger.Component("admin"),
	}
}

// VerifyPasscode is plain string equality against the current settings
func (s *AdminService) VerifyPasscode(code string) bool {
	expected := s.settings.Get().AdminPasscode
	return expected != "" && code == expected
}

func (s *AdminService) Settings() domain.Settings {
	return s.settings.Get()
}

// UpdateSettings applies a partial settings document
func (s *AdminService) UpdateSettings(ctx context.Context, patch []byte) (domain.Settings, error) {
	next, err := s.settings.Patch(ctx, patch)
	if err != nil {
		return domain.Settings{}, err
	}
	s.log.Info("settings updated")
	s.mining.audit.LogSettingsUpdate(ctx, patch)
	return next, nil
}

// ListWithdrawals lists records across all accounts, newest first
func (s *AdminService) ListWithdrawals(ctx context.Context, status domain.WithdrawalStatus, limit int) ([]repository.WithdrawalRef, error) {
	if status != "" && !status.Valid() {
		return nil, ErrInvalidStatus
	}
	return s.index.ListWithdrawals(ctx, status, limit)
}

// SetWithdrawalStatus moves a Processing record to Completed or Rejected. No balance changes.
func (s *AdminService) SetWithdrawalStatus(ctx context.Context, id string, status domain.WithdrawalStatus) (repository.WithdrawalRef, error) {
	if !status.Terminal() {
		return repository.WithdrawalRef{}, ErrInvalidStatus
	}
	ref, err := s.index.FindWithdrawal(ctx, id)
	if errors.Is(err, repository.ErrNotFound) {
		return repository.WithdrawalRef{}, miner.ErrWithdrawalNotFound
	}
	if err != nil {
		return repository.WithdrawalRef{}, fmt.Errorf("find withdrawal: %w", err)
	}

	var updated domain.WithdrawalRecord
	_, err = s.mining.Mutate(ctx, ref.UserID, func(acc domain.Account) (domain.Account, error) {
		next, err := miner.SetWithdrawalStatus(acc, id, status)
		if err != nil {
			return acc, err
		}
		updated = next.Withdrawals[next.FindWithdrawal(id)]
		return next, nil
	})
	if err != nil {
		return repository.WithdrawalRef{}, err
	}

	ref = repository.RefFor(ref.UserID, updated)
	if err := s.index.IndexWithdrawal(ctx, ref); err != nil {
		PersistFailures.Inc()
		s.log.Error("failed to update withdrawal index", "id", id, "error", err)
	}
	s.log.Info("withdrawal status changed", "id", id, "user_id", ref.UserID, "status", status)
	s.mining.audit.LogWithdrawStatus(ctx, ref)
	return ref, nil
}

// Grant credits amount to a user unconditionally
func (s *AdminService) Grant(ctx context.Context, userID int64, amount decimal.Decimal) (Snapshot, error) {
	if !amount.IsPositive() {
		return Snapshot{}, miner.ErrInvalidAmount
	}
	snap, err := s.mining.Mutate(ctx, userID, func(acc domain.Account) (domain.Account, error) {
		return miner.Grant(acc, amount)
	})
	if err != nil {
		return Snapshot{}, err
	}
	s.log.Info("balance granted", "user_id", userID, "amount", amount.String())
	s.mining.audit.LogGrant(ctx, userID, amount)
	return snap, nil
}

// ResetAccount returns an account to first-launch state. The referral code and name survive
// so existing invite links and the code index stay valid.
func (s *AdminService) ResetAccount(ctx context.Context, userID int64) (Snapshot, error) {
	var previous decimal.Decimal
	snap, err := s.mining.Mutate(ctx, userID, func(acc domain.Account) (domain.Account, error) {
		previous = acc.Balance
		fresh := domain.NewAccount(userID, acc.ReferralCode, acc.CreatedAt)
		fresh.DisplayName = acc.DisplayName
		return fresh, nil
	})
	if err != nil {
		return Snapshot{}, err
	}
	s.log.Warn("account reset", "user_id", userID)
	s.mining.audit.LogReset(ctx, userID, previous)
	return snap, nil
}

// Audit returns the newest audit entries matching f
func (s *AdminService) Audit(ctx context.Context, f repository.AuditFilter) ([]domain.AuditLog, error) {
	return s.mining.audit.Recent(ctx, f)
}
