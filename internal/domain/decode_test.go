package domain

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var created = time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)

func TestDecodeAccountRoundTrip(t *testing.T) {
	acc := NewAccount(7, "CODE77", created)
	acc.Balance = decimal.RequireFromString("1.25")
	started := created.Add(time.Minute)
	acc.MiningSession.StartedAt = &started
	acc.CompletedTaskIDs = []string{"ad1"}
	acc.Withdrawals = []WithdrawalRecord{{ID: "W", Amount: decimal.RequireFromString("0.5"), Address: "addr", Status: WithdrawalStatusProcessing, CreatedAt: created}}

	raw, err := json.Marshal(acc)
	require.NoError(t, err)

	got, bad, err := DecodeAccount(raw, NewAccount(7, "OTHER", created))
	require.NoError(t, err)
	assert.Empty(t, bad)
	assert.True(t, got.Balance.Equal(acc.Balance))
	require.NotNil(t, got.MiningSession.StartedAt)
	assert.True(t, got.MiningSession.StartedAt.Equal(started))
	assert.Equal(t, "CODE77", got.ReferralCode)
	assert.Equal(t, []string{"ad1"}, got.CompletedTaskIDs)
	require.Len(t, got.Withdrawals, 1)
	assert.Equal(t, WithdrawalStatusProcessing, got.Withdrawals[0].Status)
}

func TestDecodeAccountPartial(t *testing.T) {
	fallback := NewAccount(7, "CODE77", created)
	raw := []byte(`{
		"balance": "-3",
		"completed_task_ids": ["ad1", "ad1", "join_tg"],
		"withdrawal_history": [{"id": "", "status": "Lost"}],
		"faucet": "yesterday",
		"unknown_key": 1
	}`)

	got, bad, err := DecodeAccount(raw, fallback)
	require.NoError(t, err)
	assert.Equal(t, []string{"balance", "faucet", "withdrawal_history"}, bad)
	assert.True(t, got.Balance.IsZero())
	assert.Equal(t, []string{"ad1", "join_tg"}, got.CompletedTaskIDs)
	assert.Equal(t, []WithdrawalRecord{}, got.Withdrawals)
	assert.Nil(t, got.Faucet.LastClaimedAt)
	assert.Equal(t, "CODE77", got.ReferralCode)
}

func TestDecodeAccountUnparseable(t *testing.T) {
	fallback := NewAccount(7, "CODE77", created)
	for _, raw := range []string{`not json`, `[1,2]`, `null`, `"str"`} {
		got, _, err := DecodeAccount([]byte(raw), fallback)
		assert.ErrorIs(t, err, ErrUnparseable, raw)
		assert.Equal(t, fallback, got)
	}
}

func TestDecodeSettings(t *testing.T) {
	def := DefaultSettings()
	raw := []byte(`{"session_duration_ms": 60000, "faucet_reward": "oops", "daily_gift_cooldown_ms": 1000, "admin_passcode": "1234"}`)

	s, bad, err := DecodeSettings(raw, def)
	require.NoError(t, err)
	assert.Equal(t, []string{"faucet_reward"}, bad)
	assert.Equal(t, time.Minute, s.SessionDuration.Std())
	assert.Equal(t, time.Second, s.DailyGiftCooldown.Std())
	assert.True(t, s.FaucetReward.Equal(def.FaucetReward))
	assert.Equal(t, "1234", s.AdminPasscode)
	assert.Equal(t, def.Tasks, s.Tasks)
}

func TestDecodeSettingsNegativeDuration(t *testing.T) {
	def := DefaultSettings()
	s, bad, err := DecodeSettings([]byte(`{"session_duration_ms": -5}`), def)
	require.NoError(t, err)
	assert.Equal(t, []string{"session_duration_ms"}, bad)
	assert.Equal(t, def.SessionDuration, s.SessionDuration)
}

func TestSettingsPublicHidesSecrets(t *testing.T) {
	s := DefaultSettings()
	s.NotifyChatIDs = []int64{1}
	p := s.Public()
	assert.Empty(t, p.AdminPasscode)
	assert.Nil(t, p.NotifyChatIDs)
	assert.Equal(t, "7788", s.AdminPasscode)
}

func TestAccountCloneIsDeep(t *testing.T) {
	acc := NewAccount(1, "C", created)
	now := created
	acc.DailyGift.LastClaimedAt = &now
	acc.CompletedTaskIDs = append(acc.CompletedTaskIDs, "ad1")

	c := acc.Clone()
	c.CompletedTaskIDs[0] = "changed"
	*c.DailyGift.LastClaimedAt = created.Add(time.Hour)

	assert.Equal(t, "ad1", acc.CompletedTaskIDs[0])
	assert.True(t, acc.DailyGift.LastClaimedAt.Equal(created))
}
