package repository

import (
	"context"
	"errors"
	"time"

	"ton_miner/internal/domain"

	"github.com/shopspring/decimal"
)

var (
	ErrNotFound      = errors.New("not found")
	ErrCodeTaken     = errors.New("referral code already taken")
	ErrUnknownDriver = errors.New("unknown storage driver")
)

// DocumentStore persists serialized state documents by key
type DocumentStore interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Put(ctx context.Context, key string, payload []byte) error
	Delete(ctx context.Context, key string) error
}

// ReferralIndex maps referral codes to the owning user and back.
// A user keeps the first code claimed for them.
type ReferralIndex interface {
	ClaimReferralCode(ctx context.Context, code string, userID int64) error
	ResolveReferralCode(ctx context.Context, code string) (int64, error)
	ReferralCodeFor(ctx context.Context, userID int64) (string, error)
}

// WithdrawalRef is the cross-account view of one withdrawal record, used by admin listings
type WithdrawalRef struct {
	ID        string                  `json:"id"`
	UserID    int64                   `json:"user_id"`
	Amount    decimal.Decimal         `json:"amount"`
	Address   string                  `json:"address"`
	Status    domain.WithdrawalStatus `json:"status"`
	CreatedAt time.Time               `json:"created_at"`
}

// RefFor builds the index entry of a record owned by userID
func RefFor(userID int64, w domain.WithdrawalRecord) WithdrawalRef {
	return WithdrawalRef{ID: w.ID, UserID: userID, Amount: w.Amount, Address: w.Address, Status: w.Status, CreatedAt: w.CreatedAt}
}

// WithdrawalIndex lists withdrawals across accounts
type WithdrawalIndex interface {
	IndexWithdrawal(ctx context.Context, ref WithdrawalRef) error
	FindWithdrawal(ctx context.Context, id string) (WithdrawalRef, error)
	// ListWithdrawals returns newest first; empty status matches every status
	ListWithdrawals(ctx context.Context, status domain.WithdrawalStatus, limit int) ([]WithdrawalRef, error)
}

// StateRepository is everything the services need from storage
type StateRepository interface {
	DocumentStore
	ReferralIndex
	ReferralRoster
	WithdrawalIndex
	AuditLog
}

func clampLimit(limit int) int {
	if limit <= 0 || limit > 500 {
		return 100
	}
	return limit
}
