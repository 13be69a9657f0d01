package miner

import (
	"errors"
	"strings"
	"time"

	"ton_miner/internal/domain"

	"github.com/shopspring/decimal"
)

var (
	ErrInsufficientBalance = errors.New("insufficient balance")
	ErrInvalidAmount       = errors.New("invalid amount")
	ErrBelowMinimum        = errors.New("amount below minimum withdrawal")
	ErrInvalidAddress      = errors.New("invalid wallet address")
	ErrSessionActive       = errors.New("mining session already active")
	ErrWithdrawalNotFound  = errors.New("withdrawal not found")
	ErrInvalidTransition   = errors.New("invalid withdrawal status transition")
)

// WithdrawalRules are the settings a withdrawal request is validated against
type WithdrawalRules struct {
	MinAmount        decimal.Decimal
	MinAddressLength int
}

// RulesFrom extracts withdrawal rules from settings
func RulesFrom(s domain.Settings) WithdrawalRules {
	return WithdrawalRules{MinAmount: s.MinWithdrawal, MinAddressLength: s.MinAddressLength}
}

// StartSession opens a mining session at now
func StartSession(acc domain.Account, now time.Time) (domain.Account, error) {
	if acc.MiningSession.Active() {
		return acc, ErrSessionActive
	}
	next := acc.Clone()
	started := now
	next.MiningSession.StartedAt = &started
	return next, nil
}

// CreditSessionReward pays a finished session and returns the session to idle in the same value
func CreditSessionReward(acc domain.Account, reward decimal.Decimal) domain.Account {
	next := acc.Clone()
	next.Balance = next.Balance.Add(reward)
	next.MiningSession.StartedAt = nil
	return next
}

// CreditFixedReward pays a cooldown-gated reward and restarts its cooldown at now
func CreditFixedReward(acc domain.Account, amount decimal.Decimal, kind domain.CooldownKind, now time.Time) domain.Account {
	next := acc.Clone()
	next.Balance = next.Balance.Add(amount)
	claimed := now
	switch kind {
	case domain.CooldownFaucet:
		next.Faucet.LastClaimedAt = &claimed
	default:
		next.DailyGift.LastClaimedAt = &claimed
	}
	return next
}

// CreditTask pays a task once; an already completed id returns acc unchanged
func CreditTask(acc domain.Account, taskID string, reward decimal.Decimal) domain.Account {
	if acc.HasCompletedTask(taskID) {
		return acc
	}
	next := acc.Clone()
	next.Balance = next.Balance.Add(reward)
	next.CompletedTaskIDs = append(next.CompletedTaskIDs, taskID)
	return next
}

// ValidateWithdrawal checks a request without touching the account
func ValidateWithdrawal(acc domain.Account, amount decimal.Decimal, address string, rules WithdrawalRules) error {
	address = strings.TrimSpace(address)
	if address == "" || len(address) < rules.MinAddressLength {
		return ErrInvalidAddress
	}
	if !amount.IsPositive() {
		return ErrInvalidAmount
	}
	if amount.LessThan(rules.MinAmount) {
		return ErrBelowMinimum
	}
	if amount.GreaterThan(acc.Balance) {
		return ErrInsufficientBalance
	}
	return nil
}

// RequestWithdrawal is the only mutator that lowers the balance.
// On success the new Processing record is prepended to the history.
func RequestWithdrawal(acc domain.Account, amount decimal.Decimal, address string, rules WithdrawalRules, id string, now time.Time) (domain.Account, domain.WithdrawalRecord, error) {
	if err := ValidateWithdrawal(acc, amount, address, rules); err != nil {
		return acc, domain.WithdrawalRecord{}, err
	}

	record := domain.WithdrawalRecord{
		ID:        id,
		Amount:    amount,
		Address:   strings.TrimSpace(address),
		Status:    domain.WithdrawalStatusProcessing,
		CreatedAt: now,
	}

	next := acc.Clone()
	next.Balance = next.Balance.Sub(amount)
	next.Withdrawals = append([]domain.WithdrawalRecord{record}, next.Withdrawals...)
	return next, record, nil
}

// AttributeReferral records the referrer code once; self-referral and re-attribution are ignored
func AttributeReferral(acc domain.Account, code string) (domain.Account, bool) {
	code = strings.TrimSpace(code)
	if code == "" || acc.ReferredBy != "" || strings.EqualFold(code, acc.ReferralCode) {
		return acc, false
	}
	next := acc.Clone()
	next.ReferredBy = code
	return next, true
}

// CreditReferralJoin pays the referrer when a new user joins with their code
func CreditReferralJoin(acc domain.Account, bonus decimal.Decimal) domain.Account {
	next := acc.Clone()
	next.ReferralCount++
	if bonus.IsPositive() {
		next.Balance = next.Balance.Add(bonus)
		next.ReferralEarnings = next.ReferralEarnings.Add(bonus)
	}
	return next
}

// ReferralCommission is percent of a referee's session reward
func ReferralCommission(reward, percent decimal.Decimal) decimal.Decimal {
	if !reward.IsPositive() || !percent.IsPositive() {
		return decimal.Zero
	}
	return reward.Mul(percent).Div(decimal.NewFromInt(100)).Round(9)
}

// CreditReferralCommission pays the referrer's share of a referee's session
func CreditReferralCommission(acc domain.Account, amount decimal.Decimal) domain.Account {
	if !amount.IsPositive() {
		return acc
	}
	next := acc.Clone()
	next.Balance = next.Balance.Add(amount)
	next.ReferralEarnings = next.ReferralEarnings.Add(amount)
	return next
}

// Grant is the admin balance increment; it skips every gate
func Grant(acc domain.Account, amount decimal.Decimal) (domain.Account, error) {
	if !amount.IsPositive() {
		return acc, ErrInvalidAmount
	}
	next := acc.Clone()
	next.Balance = next.Balance.Add(amount)
	return next, nil
}

// SetWithdrawalStatus moves a Processing record to a terminal status. Nothing else changes.
func SetWithdrawalStatus(acc domain.Account, id string, status domain.WithdrawalStatus) (domain.Account, error) {
	idx := acc.FindWithdrawal(id)
	if idx < 0 {
		return acc, ErrWithdrawalNotFound
	}
	if !status.Terminal() || acc.Withdrawals[idx].Status != domain.WithdrawalStatusProcessing {
		return acc, ErrInvalidTransition
	}
	next := acc.Clone()
	next.Withdrawals[idx].Status = status
	return next, nil
}
