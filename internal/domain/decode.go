package domain

import (
	"encoding/json"
	"errors"
	"fmt"
	"sort"

	"github.com/shopspring/decimal"
)

// ErrUnparseable marks a stored document that is not a JSON object at all
var ErrUnparseable = errors.New("stored document is unparseable")

var errNegative = errors.New("negative value")

// DecodeAccount merges a stored account document over fallback key by key.
// Keys that fail to decode keep their fallback value and are reported in bad.
// Only a payload that is not a JSON object yields ErrUnparseable (and fallback).
func DecodeAccount(raw []byte, fallback Account) (acc Account, bad []string, err error) {
	acc = fallback.Clone()
	fields := map[string]func(json.RawMessage) error{
		"user_id":            field(&acc.UserID, nil),
		"display_name":       field(&acc.DisplayName, nil),
		"balance":            field(&acc.Balance, nonNegative),
		"mining_session":     field(&acc.MiningSession, nil),
		"daily_gift":         field(&acc.DailyGift, nil),
		"faucet":             field(&acc.Faucet, nil),
		"completed_task_ids": field(&acc.CompletedTaskIDs, nil),
		"withdrawal_history": field(&acc.Withdrawals, validWithdrawals),
		"referral_code":      field(&acc.ReferralCode, nil),
		"referred_by":        field(&acc.ReferredBy, nil),
		"referral_count":     field(&acc.ReferralCount, nil),
		"referral_earnings":  field(&acc.ReferralEarnings, nonNegative),
		"created_at":         field(&acc.CreatedAt, nil),
		"updated_at":         field(&acc.UpdatedAt, nil),
	}
	bad, err = merge(raw, fields)
	if err != nil {
		return fallback, nil, err
	}
	acc.CompletedTaskIDs = dedupe(acc.CompletedTaskIDs)
	if acc.Withdrawals == nil {
		acc.Withdrawals = []WithdrawalRecord{}
	}
	if acc.ReferralCode == "" {
		acc.ReferralCode = fallback.ReferralCode
	}
	return acc, bad, nil
}

// DecodeSettings merges a stored settings document over fallback key by key.
func DecodeSettings(raw []byte, fallback Settings) (s Settings, bad []string, err error) {
	s = fallback.Clone()
	fields := map[string]func(json.RawMessage) error{
		"session_duration_ms":         field(&s.SessionDuration, nil),
		"session_reward":              field(&s.SessionReward, nonNegative),
		"daily_gift_amount":           field(&s.DailyGiftAmount, nonNegative),
		"daily_gift_cooldown_ms":      field(&s.DailyGiftCooldown, nil),
		"faucet_reward":               field(&s.FaucetReward, nonNegative),
		"faucet_cooldown_ms":          field(&s.FaucetCooldown, nil),
		"min_withdrawal":              field(&s.MinWithdrawal, nonNegative),
		"min_address_length":          field(&s.MinAddressLength, nil),
		"referral_commission_percent": field(&s.ReferralCommissionPercent, nonNegative),
		"referral_join_bonus":         field(&s.ReferralJoinBonus, nonNegative),
		"placements":                  field(&s.Placements, nil),
		"tasks":                       field(&s.Tasks, nil),
		"notify_chat_ids":             field(&s.NotifyChatIDs, nil),
		"admin_passcode":              field(&s.AdminPasscode, nil),
		"active_miners_display":       field(&s.ActiveMinersDisplay, nil),
	}
	bad, err = merge(raw, fields)
	if err != nil {
		return fallback, nil, err
	}
	if s.SessionDuration < 0 {
		s.SessionDuration = fallback.SessionDuration
		bad = append(bad, "session_duration_ms")
		sort.Strings(bad)
	}
	return s, bad, nil
}

func merge(raw []byte, fields map[string]func(json.RawMessage) error) ([]string, error) {
	var doc map[string]json.RawMessage
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnparseable, err)
	}
	if doc == nil {
		return nil, ErrUnparseable
	}

	var bad []string
	for key, apply := range fields {
		v, ok := doc[key]
		if !ok {
			continue
		}
		if err := apply(v); err != nil {
			bad = append(bad, key)
		}
	}
	sort.Strings(bad)
	return bad, nil
}

// field decodes into a temporary and only assigns dst when decoding and check succeed
func field[T any](dst *T, check func(T) error) func(json.RawMessage) error {
	return func(v json.RawMessage) error {
		var tmp T
		if err := json.Unmarshal(v, &tmp); err != nil {
			return err
		}
		if check != nil {
			if err := check(tmp); err != nil {
				return err
			}
		}
		*dst = tmp
		return nil
	}
}

func nonNegative(d decimal.Decimal) error {
	if d.IsNegative() {
		return errNegative
	}
	return nil
}

func validWithdrawals(ws []WithdrawalRecord) error {
	for _, w := range ws {
		if w.ID == "" || !w.Status.Valid() {
			return fmt.Errorf("invalid withdrawal record %q", w.ID)
		}
	}
	return nil
}

func dedupe(ids []string) []string {
	out := make([]string, 0, len(ids))
	seen := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}
