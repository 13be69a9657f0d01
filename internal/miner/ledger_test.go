package miner

import (
	"testing"
	"time"

	"ton_miner/internal/domain"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testAddress = "UQBvW8Z5huBkMJYdnfAEM5JqTNkuWX3diqYENkWsIL0XggGG"

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func accountWithBalance(balance string) domain.Account {
	acc := domain.NewAccount(42, "ABC123", t0)
	acc.Balance = dec(balance)
	return acc
}

func TestSessionScenario(t *testing.T) {
	s := domain.DefaultSettings()
	acc := accountWithBalance("0")

	acc, err := StartSession(acc, t0)
	require.NoError(t, err)

	half := SessionEarnings(*acc.MiningSession.StartedAt, s.SessionDuration.Std(), s.SessionReward, t0.Add(1800*time.Second))
	assert.True(t, half.Equal(dec("0.00025")))

	acc, out := Reconcile(acc, s, t0.Add(3600001*time.Millisecond))
	require.True(t, out.SessionCompleted)
	assert.True(t, acc.Balance.Equal(dec("0.0005")), "balance %s", acc.Balance)
	assert.False(t, acc.MiningSession.Active())

	// a second pass must not credit again
	again, out := Reconcile(acc, s, t0.Add(2*time.Hour))
	assert.False(t, out.SessionCompleted)
	assert.True(t, again.Balance.Equal(dec("0.0005")))
}

func TestStartSessionRejectsActive(t *testing.T) {
	acc, err := StartSession(accountWithBalance("0"), t0)
	require.NoError(t, err)

	_, err = StartSession(acc, t0.Add(time.Minute))
	assert.ErrorIs(t, err, ErrSessionActive)
}

func TestCreditTaskIdempotent(t *testing.T) {
	acc := CreditTask(accountWithBalance("0"), "ad1", dec("0.00015"))
	acc = CreditTask(acc, "ad1", dec("0.00015"))

	assert.True(t, acc.Balance.Equal(dec("0.00015")))
	assert.Equal(t, []string{"ad1"}, acc.CompletedTaskIDs)
}

func TestCreditFixedRewardDoesNotMutateInput(t *testing.T) {
	in := accountWithBalance("1")
	out := CreditFixedReward(in, dec("0.0002"), domain.CooldownFaucet, t0)

	assert.True(t, in.Balance.Equal(dec("1")))
	assert.Nil(t, in.Faucet.LastClaimedAt)
	require.NotNil(t, out.Faucet.LastClaimedAt)
	assert.Nil(t, out.DailyGift.LastClaimedAt)
	assert.True(t, out.Balance.Equal(dec("1.0002")))
}

func TestRequestWithdrawal(t *testing.T) {
	rules := RulesFrom(domain.DefaultSettings())
	acc := accountWithBalance("1.0")
	acc.Withdrawals = []domain.WithdrawalRecord{{ID: "old", Amount: dec("0.2"), Address: testAddress, Status: domain.WithdrawalStatusCompleted, CreatedAt: t0}}

	next, rec, err := RequestWithdrawal(acc, dec("0.5"), testAddress, rules, "w-1", t0)
	require.NoError(t, err)

	assert.True(t, next.Balance.Equal(dec("0.5")))
	require.Len(t, next.Withdrawals, 2)
	assert.Equal(t, rec, next.Withdrawals[0])
	assert.Equal(t, domain.WithdrawalStatusProcessing, rec.Status)
	assert.Equal(t, "old", next.Withdrawals[1].ID)

	// admin completes the new record only
	done, err := SetWithdrawalStatus(next, "w-1", domain.WithdrawalStatusCompleted)
	require.NoError(t, err)
	assert.Equal(t, domain.WithdrawalStatusCompleted, done.Withdrawals[0].Status)
	assert.Equal(t, next.Withdrawals[1], done.Withdrawals[1])
	assert.True(t, done.Balance.Equal(next.Balance))
	assert.Equal(t, domain.WithdrawalStatusProcessing, next.Withdrawals[0].Status)
}

func TestRequestWithdrawalFailures(t *testing.T) {
	rules := RulesFrom(domain.DefaultSettings())
	acc := accountWithBalance("0.3")

	cases := []struct {
		name    string
		amount  string
		address string
		want    error
	}{
		{"more than balance", "0.5", testAddress, ErrInsufficientBalance},
		{"zero", "0", testAddress, ErrInvalidAmount},
		{"negative", "-1", testAddress, ErrInvalidAmount},
		{"below minimum", "0.05", testAddress, ErrBelowMinimum},
		{"empty address", "0.2", "   ", ErrInvalidAddress},
		{"short address", "0.2", "UQshort", ErrInvalidAddress},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			next, _, err := RequestWithdrawal(acc, dec(tc.amount), tc.address, rules, "w", t0)
			assert.ErrorIs(t, err, tc.want)
			assert.Equal(t, acc, next)
		})
	}
}

func TestSetWithdrawalStatusTransitions(t *testing.T) {
	acc := accountWithBalance("0")
	acc.Withdrawals = []domain.WithdrawalRecord{{ID: "w", Amount: dec("0.1"), Status: domain.WithdrawalStatusRejected}}

	_, err := SetWithdrawalStatus(acc, "w", domain.WithdrawalStatusCompleted)
	assert.ErrorIs(t, err, ErrInvalidTransition)

	_, err = SetWithdrawalStatus(acc, "missing", domain.WithdrawalStatusCompleted)
	assert.ErrorIs(t, err, ErrWithdrawalNotFound)

	acc.Withdrawals[0].Status = domain.WithdrawalStatusProcessing
	_, err = SetWithdrawalStatus(acc, "w", domain.WithdrawalStatusProcessing)
	assert.ErrorIs(t, err, ErrInvalidTransition)
}

func TestAttributeReferral(t *testing.T) {
	acc := accountWithBalance("0")

	_, ok := AttributeReferral(acc, "abc123")
	assert.False(t, ok, "self referral")

	acc, ok = AttributeReferral(acc, "XYZ789")
	require.True(t, ok)
	assert.Equal(t, "XYZ789", acc.ReferredBy)

	acc, ok = AttributeReferral(acc, "QQQ000")
	assert.False(t, ok)
	assert.Equal(t, "XYZ789", acc.ReferredBy)
}

func TestReferralCommission(t *testing.T) {
	got := ReferralCommission(dec("0.0005"), dec("10"))
	assert.True(t, got.Equal(dec("0.00005")), "got %s", got)
	assert.True(t, ReferralCommission(dec("0.0005"), decimal.Zero).IsZero())

	acc := CreditReferralJoin(accountWithBalance("0"), dec("0.1"))
	acc = CreditReferralCommission(acc, got)
	assert.Equal(t, 1, acc.ReferralCount)
	assert.True(t, acc.ReferralEarnings.Equal(dec("0.10005")))
	assert.True(t, acc.Balance.Equal(acc.ReferralEarnings))
}

func TestGrant(t *testing.T) {
	acc, err := Grant(accountWithBalance("0.5"), dec("2"))
	require.NoError(t, err)
	assert.True(t, acc.Balance.Equal(dec("2.5")))

	_, err = Grant(acc, dec("-1"))
	assert.ErrorIs(t, err, ErrInvalidAmount)
}
