package service

import (
	"time"

	"ton_miner/internal/domain"
	"ton_miner/internal/miner"

	"github.com/shopspring/decimal"
)

// Snapshot is the account view sent to the Mini App (HTTP responses and websocket pushes)
type Snapshot struct {
	UserID         int64                     `json:"user_id"`
	DisplayName    string                    `json:"display_name"`
	Balance        decimal.Decimal           `json:"balance"`
	Mining         MiningView                `json:"mining"`
	DailyGift      CooldownView              `json:"daily_gift"`
	Faucet         CooldownView              `json:"faucet"`
	CompletedTasks []string                  `json:"completed_tasks"`
	Withdrawals    []domain.WithdrawalRecord `json:"withdrawals"`
	Referral       ReferralView              `json:"referral"`
	Pending        []string                  `json:"pending"`
	ActiveMiners   int                       `json:"active_miners"`
	ServerTime     time.Time                 `json:"server_time"`
}

type MiningView struct {
	Active      bool            `json:"active"`
	StartedAt   *time.Time      `json:"started_at,omitempty"`
	DurationMs  int64           `json:"duration_ms"`
	ElapsedMs   int64           `json:"elapsed_ms"`
	RemainingMs int64           `json:"remaining_ms"`
	Progress    float64         `json:"progress"`
	Earned      decimal.Decimal `json:"earned"`
	Reward      decimal.Decimal `json:"reward"`
}

type CooldownView struct {
	Available   bool            `json:"available"`
	RemainingMs int64           `json:"remaining_ms"`
	Amount      decimal.Decimal `json:"amount"`
}

type ReferralView struct {
	Code       string          `json:"code"`
	Link       string          `json:"link"`
	ReferredBy string          `json:"referred_by,omitempty"`
	Count      int             `json:"count"`
	Earnings   decimal.Decimal `json:"earnings"`
	Commission decimal.Decimal `json:"commission_percent"`
}

func buildSnapshot(acc domain.Account, s domain.Settings, pending []string, link string, now time.Time) Snapshot {
	timers := miner.Timers(acc, s, now)

	mining := MiningView{
		Active:     acc.MiningSession.Active(),
		DurationMs: s.SessionDuration.Std().Milliseconds(),
		Earned:     timers.SessionEarnings,
		Reward:     s.SessionReward,
	}
	if timers.Mining != nil {
		started := *acc.MiningSession.StartedAt
		mining.StartedAt = &started
		mining.ElapsedMs = timers.Mining.Elapsed.Milliseconds()
		mining.RemainingMs = timers.Mining.Remaining.Milliseconds()
		mining.Progress = timers.Mining.Fraction
	}

	completed := make([]string, len(acc.CompletedTaskIDs))
	copy(completed, acc.CompletedTaskIDs)
	withdrawals := make([]domain.WithdrawalRecord, len(acc.Withdrawals))
	copy(withdrawals, acc.Withdrawals)
	if pending == nil {
		pending = []string{}
	}

	return Snapshot{
		UserID:      acc.UserID,
		DisplayName: acc.DisplayName,
		Balance:     acc.Balance,
		Mining:      mining,
		DailyGift: CooldownView{
			Available:   timers.DailyGiftLeft == 0,
			RemainingMs: timers.DailyGiftLeft.Milliseconds(),
			Amount:      s.DailyGiftAmount,
		},
		Faucet: CooldownView{
			Available:   timers.FaucetLeft == 0,
			RemainingMs: timers.FaucetLeft.Milliseconds(),
			Amount:      s.FaucetReward,
		},
		CompletedTasks: completed,
		Withdrawals:    withdrawals,
		Referral: ReferralView{
			Code:       acc.ReferralCode,
			Link:       link,
			ReferredBy: acc.ReferredBy,
			Count:      acc.ReferralCount,
			Earnings:   acc.ReferralEarnings,
			Commission: s.ReferralCommissionPercent,
		},
		Pending:      pending,
		ActiveMiners: s.ActiveMinersDisplay,
		ServerTime:   now,
	}
}
