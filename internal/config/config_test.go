package config

import (
	"testing"
	"time"

	"ton_miner/internal/domain"
	"ton_miner/internal/ton"

	"github.com/caarlos0/env/v10"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMinerDefaultsFromEnv(t *testing.T) {
	t.Setenv("MINER_SESSION_DURATION", "30m")
	t.Setenv("MINER_SESSION_REWARD", "0.001")
	t.Setenv("ADMIN_PASSCODE", "123")

	var m MinerDefaults
	require.NoError(t, env.Parse(&m))

	s, err := m.Settings()
	require.NoError(t, err)
	assert.Equal(t, 30*time.Minute, s.SessionDuration.Std())
	assert.Equal(t, "0.001", s.SessionReward.String())
	assert.Equal(t, "0.0015", s.DailyGiftAmount.String())
	assert.Equal(t, 24*time.Hour, s.DailyGiftCooldown.Std())
	assert.Equal(t, "3946", s.Placements.Mining)
	assert.Empty(t, s.Placements.Faucet)
	assert.Equal(t, "123", s.AdminPasscode)
}

func TestMinerDefaultsWithoutAds(t *testing.T) {
	s, err := MinerDefaults{}.Settings()
	require.NoError(t, err)
	assert.Empty(t, s.Placements.Mining)
	assert.Equal(t, domain.DefaultSettings().SessionDuration, s.SessionDuration)

	task, ok := s.FindTask("ad1")
	require.True(t, ok)
	assert.Empty(t, task.Placement)
}

func TestMinerDefaultsRejectsBadAmounts(t *testing.T) {
	m := MinerDefaults{SessionReward: "abc"}
	_, err := m.Settings()
	assert.ErrorContains(t, err, "MINER_SESSION_REWARD")

	m = MinerDefaults{FaucetReward: "-1"}
	_, err = m.Settings()
	assert.Error(t, err)
}

func TestMinerDefaultsKeepCatalog(t *testing.T) {
	m := MinerDefaults{AdPlacement: "9999"}
	s, err := m.Settings()
	require.NoError(t, err)
	assert.Equal(t, "9999", s.Placements.Mining)
	assert.Len(t, s.Tasks, len(domain.DefaultSettings().Tasks))
}

func TestConfigDefaultsFromEnv(t *testing.T) {
	t.Setenv("TON_NETWORK", "testnet")
	t.Setenv("ADMIN_TELEGRAM_IDS", "1,2")

	var cfg Config
	require.NoError(t, env.Parse(&cfg))
	assert.Equal(t, ton.NetworkTestnet, cfg.TonNetwork)
	assert.Equal(t, []int64{1, 2}, cfg.AdminChatIDs)
	assert.Equal(t, "postgres", cfg.StorageDriver)
	assert.Equal(t, 24*time.Hour, cfg.JWTTTL)
	assert.Equal(t, 30, cfg.ActionRateLimit)
}
