package domain

import "time"

// AuditLog is one entry of the append-only trail of money and admin actions
type AuditLog struct {
	ID        int64          `json:"id"`
	UserID    int64          `json:"user_id"`
	Action    string         `json:"action"`
	Category  string         `json:"category"`
	Details   map[string]any `json:"details,omitempty"`
	CreatedAt time.Time      `json:"created_at"`
}

// Audit action categories
const (
	AuditCategoryAuth       = "auth"
	AuditCategoryWithdrawal = "withdrawal"
	AuditCategoryBalance    = "balance"
	AuditCategoryAdmin      = "admin"
)

// Audit actions
const (
	AuditActionLogin           = "login"
	AuditActionWithdrawRequest = "withdraw_request"
	AuditActionWithdrawApprove = "withdraw_approve"
	AuditActionWithdrawReject  = "withdraw_reject"
	AuditActionReferralPayout  = "referral_payout"
	AuditActionAdminGrant      = "admin_grant"
	AuditActionAdminReset      = "admin_reset"
	AuditActionSettingsUpdate  = "settings_update"
)
