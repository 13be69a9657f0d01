package miner

import (
	"time"

	"github.com/shopspring/decimal"
)

// Progress is the state of one timer (mining session or cooldown) at a given instant
type Progress struct {
	Elapsed   time.Duration
	Remaining time.Duration
	Fraction  float64
	Finished  bool
}

// ComputeProgress is the single reconciliation function shared by every timer kind.
// A zero (or negative) duration is finished immediately.
func ComputeProgress(startedAt time.Time, duration time.Duration, now time.Time) Progress {
	elapsed := now.Sub(startedAt)
	if elapsed < 0 {
		elapsed = 0
	}
	if duration <= 0 {
		return Progress{Elapsed: elapsed, Fraction: 1, Finished: true}
	}

	remaining := duration - elapsed
	if remaining < 0 {
		remaining = 0
	}

	fraction := float64(elapsed) / float64(duration)
	if fraction > 1 {
		fraction = 1
	}

	return Progress{
		Elapsed:   elapsed,
		Remaining: remaining,
		Fraction:  fraction,
		Finished:  remaining == 0,
	}
}

// CooldownRemaining returns how long a cooldown still blocks its action; nil means never claimed
func CooldownRemaining(lastClaimedAt *time.Time, cooldown time.Duration, now time.Time) time.Duration {
	if lastClaimedAt == nil {
		return 0
	}
	return ComputeProgress(*lastClaimedAt, cooldown, now).Remaining
}

// SessionEarnings is the partial credit shown while a session runs.
// It is display-only: crediting always uses the full reward once Finished.
func SessionEarnings(startedAt time.Time, duration time.Duration, reward decimal.Decimal, now time.Time) decimal.Decimal {
	p := ComputeProgress(startedAt, duration, now)
	if p.Finished {
		return reward
	}
	share := decimal.NewFromInt(int64(p.Elapsed)).Div(decimal.NewFromInt(int64(duration)))
	earned := reward.Mul(share).Round(9)
	if earned.GreaterThan(reward) {
		return reward
	}
	return earned
}
