package miner

import (
	"time"

	"ton_miner/internal/domain"

	"github.com/shopspring/decimal"
)

// Outcome reports what a reconciliation pass credited
type Outcome struct {
	SessionCompleted bool
	Credited         decimal.Decimal
}

// Reconcile settles timers against wall-clock time. A finished session is paid in full
// and cleared in the same returned value, so a later pass can never pay it again.
// It is used both by the periodic tick and by the first load after a restart.
func Reconcile(acc domain.Account, s domain.Settings, now time.Time) (domain.Account, Outcome) {
	if !acc.MiningSession.Active() {
		return acc, Outcome{Credited: decimal.Zero}
	}

	p := ComputeProgress(*acc.MiningSession.StartedAt, s.SessionDuration.Std(), now)
	if !p.Finished {
		return acc, Outcome{Credited: decimal.Zero}
	}

	next := CreditSessionReward(acc, s.SessionReward)
	next.UpdatedAt = now
	return next, Outcome{SessionCompleted: true, Credited: s.SessionReward}
}

// TimerView is a read-only snapshot of every timer for display
type TimerView struct {
	Mining          *Progress
	SessionEarnings decimal.Decimal
	DailyGiftLeft   time.Duration
	FaucetLeft      time.Duration
}

// Timers computes the display view of an account's timers
func Timers(acc domain.Account, s domain.Settings, now time.Time) TimerView {
	v := TimerView{
		SessionEarnings: decimal.Zero,
		DailyGiftLeft:   CooldownRemaining(acc.DailyGift.LastClaimedAt, s.DailyGiftCooldown.Std(), now),
		FaucetLeft:      CooldownRemaining(acc.Faucet.LastClaimedAt, s.FaucetCooldown.Std(), now),
	}
	if acc.MiningSession.Active() {
		started := *acc.MiningSession.StartedAt
		p := ComputeProgress(started, s.SessionDuration.Std(), now)
		v.Mining = &p
		v.SessionEarnings = SessionEarnings(started, s.SessionDuration.Std(), s.SessionReward, now)
	}
	return v
}
