package domain

import (
	"strconv"
	"time"

	"github.com/shopspring/decimal"
)

// Account is the per-user ledger document. One per Telegram user.
type Account struct {
	UserID           int64              `json:"user_id"`
	DisplayName      string             `json:"display_name"`
	Balance          decimal.Decimal    `json:"balance"`
	MiningSession    MiningSession      `json:"mining_session"`
	DailyGift        Cooldown           `json:"daily_gift"`
	Faucet           Cooldown           `json:"faucet"`
	CompletedTaskIDs []string           `json:"completed_task_ids"`
	Withdrawals      []WithdrawalRecord `json:"withdrawal_history"` // newest first
	ReferralCode     string             `json:"referral_code"`
	ReferredBy       string             `json:"referred_by,omitempty"`
	ReferralCount    int                `json:"referral_count"`
	ReferralEarnings decimal.Decimal    `json:"referral_earnings"`
	CreatedAt        time.Time          `json:"created_at"`
	UpdatedAt        time.Time          `json:"updated_at"`
}

// MiningSession is idle while StartedAt is nil
type MiningSession struct {
	StartedAt *time.Time `json:"started_at"`
}

// Active reports whether a session is running (finished or not)
func (s MiningSession) Active() bool {
	return s.StartedAt != nil
}

// Cooldown tracks the last claim of a repeatable reward
type Cooldown struct {
	LastClaimedAt *time.Time `json:"last_claimed_at"`
}

// CooldownKind names a cooldown-gated reward
type CooldownKind string

const (
	CooldownDailyGift CooldownKind = "daily_gift"
	CooldownFaucet    CooldownKind = "faucet"
)

// WithdrawalStatus represents withdrawal processing status
type WithdrawalStatus string

const (
	WithdrawalStatusProcessing WithdrawalStatus = "Processing"
	WithdrawalStatusCompleted  WithdrawalStatus = "Completed"
	WithdrawalStatusRejected   WithdrawalStatus = "Rejected"
)

// Valid reports whether s is one of the known statuses
func (s WithdrawalStatus) Valid() bool {
	switch s {
	case WithdrawalStatusProcessing, WithdrawalStatusCompleted, WithdrawalStatusRejected:
		return true
	}
	return false
}

// Terminal statuses accept no further transitions
func (s WithdrawalStatus) Terminal() bool {
	return s == WithdrawalStatusCompleted || s == WithdrawalStatusRejected
}

// WithdrawalRecord is a recorded (never executed) payout request
type WithdrawalRecord struct {
	ID        string           `json:"id"`
	Amount    decimal.Decimal  `json:"amount"`
	Address   string           `json:"address"`
	Status    WithdrawalStatus `json:"status"`
	CreatedAt time.Time        `json:"created_at"`
}

// NewAccount returns the default state for a first launch
func NewAccount(userID int64, referralCode string, now time.Time) Account {
	return Account{
		UserID:           userID,
		Balance:          decimal.Zero,
		CompletedTaskIDs: []string{},
		Withdrawals:      []WithdrawalRecord{},
		ReferralCode:     referralCode,
		ReferralEarnings: decimal.Zero,
		CreatedAt:        now,
		UpdatedAt:        now,
	}
}

// AccountKey is the storage key of a user's account document
func AccountKey(userID int64) string {
	return "account:" + strconv.FormatInt(userID, 10)
}

// HasCompletedTask reports whether taskID is already in the completed set
func (a Account) HasCompletedTask(taskID string) bool {
	for _, id := range a.CompletedTaskIDs {
		if id == taskID {
			return true
		}
	}
	return false
}

// CooldownFor returns the cooldown tracked under kind
func (a Account) CooldownFor(kind CooldownKind) Cooldown {
	if kind == CooldownFaucet {
		return a.Faucet
	}
	return a.DailyGift
}

// FindWithdrawal returns the index of the record with id, or -1
func (a Account) FindWithdrawal(id string) int {
	for i, w := range a.Withdrawals {
		if w.ID == id {
			return i
		}
	}
	return -1
}

// Clone returns a deep copy so transitions never share slices with their input
func (a Account) Clone() Account {
	c := a
	if a.CompletedTaskIDs != nil {
		c.CompletedTaskIDs = make([]string, len(a.CompletedTaskIDs))
		copy(c.CompletedTaskIDs, a.CompletedTaskIDs)
	}
	if a.Withdrawals != nil {
		c.Withdrawals = make([]WithdrawalRecord, len(a.Withdrawals))
		copy(c.Withdrawals, a.Withdrawals)
	}
	c.MiningSession.StartedAt = cloneTime(a.MiningSession.StartedAt)
	c.DailyGift.LastClaimedAt = cloneTime(a.DailyGift.LastClaimedAt)
	c.Faucet.LastClaimedAt = cloneTime(a.Faucet.LastClaimedAt)
	return c
}

func cloneTime(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	v := *t
	return &v
}
