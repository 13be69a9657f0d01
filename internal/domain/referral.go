package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// Referral is one invited friend on the referrer's page
type Referral struct {
	ReferrerID  int64           `json:"-"`
	UserID      int64           `json:"user_id"`
	DisplayName string          `json:"display_name"`
	Reward      decimal.Decimal `json:"reward"`
	JoinedAt    time.Time       `json:"joined_at"`
}
