package service

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"ton_miner/internal/domain"
	"ton_miner/internal/engagement"
	"ton_miner/internal/miner"
	"ton_miner/internal/repository"
	"ton_miner/internal/telegram"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testAddress = "UQBvW8Z5huBkMJYdnfAEM5JqTNkuWX3diqYENkWsIL0XggGG"

var t0 = time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

type recordingNotifier struct {
	ch chan WithdrawalNotice
}

func (n *recordingNotifier) NotifyWithdrawal(_ context.Context, notice WithdrawalNotice) {
	n.ch <- notice
}

// flakyRepo fails every Put while failing is set
type flakyRepo struct {
	*repository.MemoryRepository
	mu      sync.Mutex
	failing bool
}

func (r *flakyRepo) setFailing(v bool) {
	r.mu.Lock()
	r.failing = v
	r.mu.Unlock()
}

func (r *flakyRepo) Put(ctx context.Context, key string, payload []byte) error {
	r.mu.Lock()
	failing := r.failing
	r.mu.Unlock()
	if failing {
		return errors.New("disk full")
	}
	return r.MemoryRepository.Put(ctx, key, payload)
}

// oneCodeRepo lets a user own a single referral code, like the postgres index
type oneCodeRepo struct {
	*repository.MemoryRepository
}

func (r oneCodeRepo) ClaimReferralCode(ctx context.Context, code string, userID int64) error {
	if have, err := r.ReferralCodeFor(ctx, userID); err == nil && have != strings.ToUpper(code) {
		return repository.ErrCodeTaken
	}
	return r.MemoryRepository.ClaimReferralCode(ctx, code, userID)
}

type fixture struct {
	svc      *MiningService
	admin    *AdminService
	settings *SettingsService
	repo     repository.StateRepository
	clock    *fakeClock
	notifier *recordingNotifier
}

func newFixture(t *testing.T, repo repository.StateRepository, engage engagement.Collaborator, mod func(*MiningOptions)) *fixture {
	t.Helper()
	if repo == nil {
		repo = repository.NewMemoryRepository()
	}
	clock := &fakeClock{now: t0}
	notifier := &recordingNotifier{ch: make(chan WithdrawalNotice, 4)}
	settings := NewSettingsService(repo, domain.DefaultSettings())
	settings.Load(context.Background())

	ids := 0
	opts := MiningOptions{
		EngagementTimeout: time.Second,
		IdleTTL:           time.Minute,
		Notifier:          notifier,
		Clock:             clock.Now,
		NewID: func() string {
			ids++
			return "W" + string(rune('0'+ids))
		},
		ReferralLink: func(code string) string { return "https://t.me/bot/app?startapp=ref_" + code },
	}
	if mod != nil {
		mod(&opts)
	}
	svc := NewMiningService(repo, settings, engage, opts)
	return &fixture{
		svc:      svc,
		admin:    NewAdminService(settings, svc, repo),
		settings: settings,
		repo:     repo,
		clock:    clock,
		notifier: notifier,
	}
}

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func storedAccount(t *testing.T, repo repository.DocumentStore, userID int64) domain.Account {
	t.Helper()
	raw, err := repo.Get(context.Background(), domain.AccountKey(userID))
	require.NoError(t, err)
	var acc domain.Account
	require.NoError(t, json.Unmarshal(raw, &acc))
	return acc
}

func TestOpenCreatesAccount(t *testing.T) {
	f := newFixture(t, nil, engagement.Always{}, nil)
	ctx := context.Background()

	snap, err := f.svc.Open(ctx, telegram.Identity{UserID: 1, FirstName: "Ann"})
	require.NoError(t, err)
	assert.Equal(t, "Ann", snap.DisplayName)
	assert.True(t, snap.Balance.IsZero())
	assert.Len(t, snap.Referral.Code, 8)
	assert.Contains(t, snap.Referral.Link, snap.Referral.Code)
	assert.True(t, snap.DailyGift.Available)

	stored := storedAccount(t, f.repo, 1)
	assert.Equal(t, snap.Referral.Code, stored.ReferralCode)

	owner, err := f.repo.ResolveReferralCode(ctx, snap.Referral.Code)
	require.NoError(t, err)
	assert.EqualValues(t, 1, owner)
}

func TestMiningSessionCreditedByTick(t *testing.T) {
	f := newFixture(t, nil, engagement.Always{}, nil)
	ctx := context.Background()

	snap, _, err := f.svc.Dispatch(ctx, 1, miner.Intent{Action: miner.ActionStartMining})
	require.NoError(t, err)
	require.True(t, snap.Mining.Active)
	assert.Equal(t, int64(3600000), snap.Mining.DurationMs)

	f.clock.Advance(30 * time.Minute)
	snap, err = f.svc.Snapshot(ctx, 1)
	require.NoError(t, err)
	assert.True(t, snap.Mining.Earned.Equal(dec("0.00025")))
	assert.InDelta(t, 0.5, snap.Mining.Progress, 1e-9)

	_, _, err = f.svc.Dispatch(ctx, 1, miner.Intent{Action: miner.ActionStartMining})
	assert.ErrorIs(t, err, miner.ErrSessionActive)

	f.clock.Advance(30*time.Minute + time.Millisecond)
	f.svc.Tick(ctx)

	stored := storedAccount(t, f.repo, 1)
	assert.True(t, stored.Balance.Equal(dec("0.0005")), "balance %s", stored.Balance)
	assert.Nil(t, stored.MiningSession.StartedAt)

	f.svc.Tick(ctx)
	assert.True(t, storedAccount(t, f.repo, 1).Balance.Equal(dec("0.0005")))
}

func TestBackdatedReloadCreditsOnce(t *testing.T) {
	repo := repository.NewMemoryRepository()
	acc := domain.NewAccount(7, "CODE7", t0.Add(-3*time.Hour))
	started := t0.Add(-2 * time.Hour)
	acc.MiningSession.StartedAt = &started
	raw, err := json.Marshal(acc)
	require.NoError(t, err)
	require.NoError(t, repo.Put(context.Background(), domain.AccountKey(7), raw))

	f := newFixture(t, repo, engagement.Always{}, nil)
	snap, err := f.svc.Snapshot(context.Background(), 7)
	require.NoError(t, err)
	assert.True(t, snap.Balance.Equal(dec("0.0005")))
	assert.False(t, snap.Mining.Active)

	snap, err = f.svc.Snapshot(context.Background(), 7)
	require.NoError(t, err)
	assert.True(t, snap.Balance.Equal(dec("0.0005")))

	// a second process reading the same storage must not pay again
	again := newFixture(t, repo, engagement.Always{}, nil)
	snap, err = again.svc.Snapshot(context.Background(), 7)
	require.NoError(t, err)
	assert.True(t, snap.Balance.Equal(dec("0.0005")))
	assert.Equal(t, "CODE7", snap.Referral.Code)
}

func TestDeclinedEngagementLeavesStateUnchanged(t *testing.T) {
	declined := engagement.Func(func(context.Context, engagement.Request) (engagement.Result, error) {
		return engagement.Result{Completed: false}, nil
	})
	f := newFixture(t, nil, declined, nil)
	ctx := context.Background()

	_, err := f.svc.Open(ctx, telegram.Identity{UserID: 1})
	require.NoError(t, err)
	before, err := f.repo.Get(ctx, domain.AccountKey(1))
	require.NoError(t, err)

	_, _, err = f.svc.Dispatch(ctx, 1, miner.Intent{Action: miner.ActionClaimDailyGift})
	require.ErrorIs(t, err, engagement.ErrDeclined)

	after, err := f.repo.Get(ctx, domain.AccountKey(1))
	require.NoError(t, err)
	assert.Equal(t, before, after)

	snap, err := f.svc.Snapshot(ctx, 1)
	require.NoError(t, err)
	assert.True(t, snap.DailyGift.Available, "no cooldown penalty")
	assert.Empty(t, snap.Pending)
}

func TestEngagementErrorsAreDeclines(t *testing.T) {
	noFill := engagement.Func(func(context.Context, engagement.Request) (engagement.Result, error) {
		return engagement.Result{Reason: engagement.ReasonNoFill}, nil
	})
	f := newFixture(t, nil, noFill, nil)
	_, _, err := f.svc.Dispatch(context.Background(), 1, miner.Intent{Action: miner.ActionStartMining})
	assert.ErrorIs(t, err, engagement.ErrNoFill)

	broker := engagement.NewBroker(time.Minute)
	f = newFixture(t, nil, broker, func(o *MiningOptions) { o.EngagementTimeout = 20 * time.Millisecond })
	_, _, err = f.svc.Dispatch(context.Background(), 1, miner.Intent{Action: miner.ActionStartMining})
	assert.ErrorIs(t, err, engagement.ErrDeclined)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestGateRejectsReentryWhilePending(t *testing.T) {
	gate := make(chan struct{})
	blocking := engagement.Func(func(ctx context.Context, _ engagement.Request) (engagement.Result, error) {
		select {
		case <-gate:
			return engagement.Result{Completed: true}, nil
		case <-ctx.Done():
			return engagement.Result{}, ctx.Err()
		}
	})
	f := newFixture(t, nil, blocking, func(o *MiningOptions) { o.EngagementTimeout = 5 * time.Second })
	ctx := context.Background()

	done := make(chan error, 1)
	go func() {
		_, _, err := f.svc.Dispatch(ctx, 1, miner.Intent{Action: miner.ActionStartMining})
		done <- err
	}()

	require.Eventually(t, func() bool {
		snap, err := f.svc.Snapshot(ctx, 1)
		return err == nil && len(snap.Pending) == 1 && snap.Pending[0] == "start_mining"
	}, time.Second, 5*time.Millisecond)

	_, _, err := f.svc.Dispatch(ctx, 1, miner.Intent{Action: miner.ActionStartMining})
	assert.ErrorIs(t, err, miner.ErrActionPending)

	// other gates and reads are not blocked while the engagement is pending
	snap, _, err := f.svc.Dispatch(ctx, 1, miner.Intent{Action: miner.ActionClaimFaucet})
	require.NoError(t, err)
	assert.True(t, snap.Balance.Equal(dec("0.0002")))

	close(gate)
	require.NoError(t, <-done)

	snap, err = f.svc.Snapshot(ctx, 1)
	require.NoError(t, err)
	assert.True(t, snap.Mining.Active)
	assert.Empty(t, snap.Pending)
}

func TestGatesSharingPlacementStayIndependent(t *testing.T) {
	broker := engagement.NewBroker(time.Minute)
	f := newFixture(t, nil, broker, func(o *MiningOptions) { o.EngagementTimeout = 5 * time.Second })
	ctx := context.Background()
	placement := f.settings.Get().Placements.Mining
	require.Equal(t, placement, f.settings.Get().Placements.DailyGift)

	mining := make(chan error, 1)
	go func() {
		_, _, err := f.svc.Dispatch(ctx, 1, miner.Intent{Action: miner.ActionStartMining})
		mining <- err
	}()
	require.Eventually(t, func() bool { return broker.PendingGate(1, "start_mining") }, time.Second, 5*time.Millisecond)

	gift := make(chan error, 1)
	go func() {
		_, _, err := f.svc.Dispatch(ctx, 1, miner.Intent{Action: miner.ActionClaimDailyGift})
		gift <- err
	}()
	require.Eventually(t, func() bool { return broker.PendingGate(1, "claim_daily_gift") }, time.Second, 5*time.Millisecond)

	// the second gate must not resolve the first one
	select {
	case err := <-mining:
		t.Fatalf("start_mining resolved without confirmation: %v", err)
	case <-time.After(50 * time.Millisecond):
	}

	assert.True(t, broker.Confirm(1, engagement.Target{Gate: "claim_daily_gift", Placement: placement}, engagement.Result{Completed: true}))
	require.NoError(t, <-gift)

	snap, err := f.svc.Snapshot(ctx, 1)
	require.NoError(t, err)
	assert.True(t, snap.Balance.Equal(dec("0.0015")), "balance %s", snap.Balance)
	assert.False(t, snap.Mining.Active)
	assert.Equal(t, []string{"start_mining"}, snap.Pending)

	assert.True(t, broker.Confirm(1, engagement.Target{Gate: "start_mining"}, engagement.Result{Completed: true}))
	require.NoError(t, <-mining)

	snap, err = f.svc.Snapshot(ctx, 1)
	require.NoError(t, err)
	assert.True(t, snap.Mining.Active)
	assert.True(t, snap.Balance.Equal(dec("0.0015")))
}

func TestConcurrentFaucetClaimsCreditOnce(t *testing.T) {
	f := newFixture(t, nil, engagement.Always{}, nil)
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _, _ = f.svc.Dispatch(ctx, 1, miner.Intent{Action: miner.ActionClaimFaucet})
		}()
	}
	wg.Wait()

	snap, err := f.svc.Snapshot(ctx, 1)
	require.NoError(t, err)
	assert.True(t, snap.Balance.Equal(dec("0.0002")), "balance %s", snap.Balance)
	assert.False(t, snap.Faucet.Available)
}

func TestTaskCompletionIdempotent(t *testing.T) {
	f := newFixture(t, nil, engagement.Always{}, nil)
	ctx := context.Background()
	in := miner.Intent{Action: miner.ActionCompleteTask, TaskID: "ad1"}

	_, eff, err := f.svc.Dispatch(ctx, 1, in)
	require.NoError(t, err)
	assert.True(t, eff.Credited.Equal(dec("0.00015")))

	snap, _, err := f.svc.Dispatch(ctx, 1, in)
	assert.ErrorIs(t, err, miner.ErrTaskCompleted)
	assert.True(t, snap.Balance.Equal(dec("0.00015")))
	assert.Equal(t, []string{"ad1"}, snap.CompletedTasks)
}

func TestWithdrawalFlow(t *testing.T) {
	f := newFixture(t, nil, engagement.Always{}, nil)
	ctx := context.Background()

	_, err := f.svc.Open(ctx, telegram.Identity{UserID: 1, Username: "miner"})
	require.NoError(t, err)
	_, err = f.admin.Grant(ctx, 1, dec("1.0"))
	require.NoError(t, err)

	snap, eff, err := f.svc.Dispatch(ctx, 1, miner.Intent{Action: miner.ActionRequestWithdrawal, Amount: dec("0.5"), Address: testAddress})
	require.NoError(t, err)
	require.NotNil(t, eff.Withdrawal)
	assert.True(t, snap.Balance.Equal(dec("0.5")))
	require.Len(t, snap.Withdrawals, 1)
	assert.Equal(t, domain.WithdrawalStatusProcessing, snap.Withdrawals[0].Status)

	select {
	case n := <-f.notifier.ch:
		assert.Equal(t, eff.Withdrawal.ID, n.Record.ID)
		assert.Equal(t, "@miner", n.DisplayName)
	case <-time.After(time.Second):
		t.Fatal("no withdrawal notice")
	}

	pending, err := f.admin.ListWithdrawals(ctx, domain.WithdrawalStatusProcessing, 10)
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.EqualValues(t, 1, pending[0].UserID)

	ref, err := f.admin.SetWithdrawalStatus(ctx, eff.Withdrawal.ID, domain.WithdrawalStatusCompleted)
	require.NoError(t, err)
	assert.Equal(t, domain.WithdrawalStatusCompleted, ref.Status)

	snap, err = f.svc.Snapshot(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, domain.WithdrawalStatusCompleted, snap.Withdrawals[0].Status)
	assert.True(t, snap.Balance.Equal(dec("0.5")))

	_, err = f.admin.SetWithdrawalStatus(ctx, eff.Withdrawal.ID, domain.WithdrawalStatusRejected)
	assert.ErrorIs(t, err, miner.ErrInvalidTransition)
	_, err = f.admin.SetWithdrawalStatus(ctx, "NOPE", domain.WithdrawalStatusRejected)
	assert.ErrorIs(t, err, miner.ErrWithdrawalNotFound)

	_, _, err = f.svc.Dispatch(ctx, 1, miner.Intent{Action: miner.ActionRequestWithdrawal, Amount: dec("0.6"), Address: testAddress})
	assert.ErrorIs(t, err, miner.ErrInsufficientBalance)
}

func TestReferralAttribution(t *testing.T) {
	f := newFixture(t, nil, engagement.Always{}, nil)
	ctx := context.Background()

	alice, err := f.svc.Open(ctx, telegram.Identity{UserID: 1, FirstName: "Alice"})
	require.NoError(t, err)

	// own code is ignored
	self, err := f.svc.Open(ctx, telegram.Identity{UserID: 1, StartParam: "ref_" + alice.Referral.Code})
	require.NoError(t, err)
	assert.Empty(t, self.Referral.ReferredBy)

	bob, err := f.svc.Open(ctx, telegram.Identity{UserID: 2, StartParam: "ref_" + alice.Referral.Code})
	require.NoError(t, err)
	assert.Equal(t, alice.Referral.Code, bob.Referral.ReferredBy)

	// a second launch with another code does not re-attribute
	carol, err := f.svc.Open(ctx, telegram.Identity{UserID: 3})
	require.NoError(t, err)
	bob, err = f.svc.Open(ctx, telegram.Identity{UserID: 2, StartParam: carol.Referral.Code})
	require.NoError(t, err)
	assert.Equal(t, alice.Referral.Code, bob.Referral.ReferredBy)

	alice, err = f.svc.Snapshot(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, 1, alice.Referral.Count)
	assert.True(t, alice.Balance.Equal(dec("0.1")))

	friends, err := f.svc.Referrals(ctx, 1, 0)
	require.NoError(t, err)
	require.Len(t, friends, 1)
	assert.EqualValues(t, 2, friends[0].UserID)
	assert.True(t, friends[0].Reward.Equal(dec("0.1")))
	assert.Equal(t, t0, friends[0].JoinedAt)
	none, err := f.svc.Referrals(ctx, 3, 0)
	require.NoError(t, err)
	assert.Empty(t, none)

	_, _, err = f.svc.Dispatch(ctx, 2, miner.Intent{Action: miner.ActionStartMining})
	require.NoError(t, err)
	f.clock.Advance(time.Hour)
	f.svc.Tick(ctx)

	alice, err = f.svc.Snapshot(ctx, 1)
	require.NoError(t, err)
	assert.True(t, alice.Referral.Earnings.Equal(dec("0.10005")), "earnings %s", alice.Referral.Earnings)
	assert.True(t, alice.Balance.Equal(dec("0.10005")))
}

func TestUnknownReferralCodeIgnored(t *testing.T) {
	f := newFixture(t, nil, engagement.Always{}, nil)
	snap, err := f.svc.Open(context.Background(), telegram.Identity{UserID: 5, StartParam: "ref_NOBODY"})
	require.NoError(t, err)
	assert.Empty(t, snap.Referral.ReferredBy)
}

func TestPersistFailureKeepsMemoryAuthoritative(t *testing.T) {
	repo := &flakyRepo{MemoryRepository: repository.NewMemoryRepository()}
	f := newFixture(t, repo, engagement.Always{}, nil)
	ctx := context.Background()

	_, err := f.svc.Open(ctx, telegram.Identity{UserID: 1})
	require.NoError(t, err)

	repo.setFailing(true)
	snap, _, err := f.svc.Dispatch(ctx, 1, miner.Intent{Action: miner.ActionClaimFaucet})
	require.NoError(t, err)
	assert.True(t, snap.Balance.Equal(dec("0.0002")))
	assert.True(t, storedAccount(t, repo, 1).Balance.IsZero())

	// dirty containers are not evicted
	f.clock.Advance(2 * time.Minute)
	f.svc.Tick(ctx)
	assert.Equal(t, 1, f.svc.Loaded())

	repo.setFailing(false)
	f.svc.Tick(ctx)
	assert.True(t, storedAccount(t, repo, 1).Balance.Equal(dec("0.0002")))
}

func TestIdleContainersEvictedAndReloaded(t *testing.T) {
	f := newFixture(t, nil, engagement.Always{}, nil)
	ctx := context.Background()

	_, _, err := f.svc.Dispatch(ctx, 1, miner.Intent{Action: miner.ActionStartMining})
	require.NoError(t, err)
	assert.Equal(t, 1, f.svc.Loaded())

	f.clock.Advance(2 * time.Minute)
	f.svc.Tick(ctx)
	assert.Equal(t, 0, f.svc.Loaded())

	f.clock.Advance(time.Hour)
	snap, err := f.svc.Snapshot(ctx, 1)
	require.NoError(t, err)
	assert.True(t, snap.Balance.Equal(dec("0.0005")))
	assert.False(t, snap.Mining.Active)
}

func TestCorruptedAccountStartsFresh(t *testing.T) {
	repo := oneCodeRepo{repository.NewMemoryRepository()}
	f := newFixture(t, repo, engagement.Always{}, nil)
	ctx := context.Background()

	alice, err := f.svc.Open(ctx, telegram.Identity{UserID: 1, FirstName: "Alice"})
	require.NoError(t, err)
	_, err = f.admin.Grant(ctx, 1, dec("2"))
	require.NoError(t, err)
	f.svc.Flush()

	require.NoError(t, repo.Put(ctx, domain.AccountKey(1), []byte("not json")))

	for i := 0; i < 3; i++ {
		restarted := newFixture(t, repo, engagement.Always{}, nil)
		snap, err := restarted.svc.Open(ctx, telegram.Identity{UserID: 1, FirstName: "Alice"})
		require.NoError(t, err, "open #%d", i)
		assert.True(t, snap.Balance.IsZero())
		assert.Equal(t, alice.Referral.Code, snap.Referral.Code, "the indexed invite code is kept")
	}

	stored := storedAccount(t, repo, 1)
	assert.Equal(t, alice.Referral.Code, stored.ReferralCode)
	assert.True(t, stored.Balance.IsZero())

	// a document that lost only its code gets the indexed one back
	require.NoError(t, repo.Put(ctx, domain.AccountKey(1), []byte(`{"balance":"0.3"}`)))
	restarted := newFixture(t, repo, engagement.Always{}, nil)
	snap, err := restarted.svc.Snapshot(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, alice.Referral.Code, snap.Referral.Code)
	assert.True(t, snap.Balance.Equal(dec("0.3")))
}

func TestAdminGrantAndReset(t *testing.T) {
	f := newFixture(t, nil, engagement.Always{}, nil)
	ctx := context.Background()

	_, err := f.admin.Grant(ctx, 9, dec("0"))
	assert.ErrorIs(t, err, miner.ErrInvalidAmount)

	snap, err := f.admin.Grant(ctx, 9, dec("2.5"))
	require.NoError(t, err)
	assert.True(t, snap.Balance.Equal(dec("2.5")))
	code := snap.Referral.Code

	_, _, err = f.svc.Dispatch(ctx, 9, miner.Intent{Action: miner.ActionClaimFaucet})
	require.NoError(t, err)

	snap, err = f.admin.ResetAccount(ctx, 9)
	require.NoError(t, err)
	assert.True(t, snap.Balance.IsZero())
	assert.True(t, snap.Faucet.Available)
	assert.Equal(t, code, snap.Referral.Code)
}

func TestAdminSettings(t *testing.T) {
	f := newFixture(t, nil, engagement.Always{}, nil)
	ctx := context.Background()

	assert.True(t, f.admin.VerifyPasscode("7788"))
	assert.False(t, f.admin.VerifyPasscode("123"))
	assert.False(t, f.admin.VerifyPasscode(""))

	_, err := f.admin.UpdateSettings(ctx, []byte(`{"faucet_reward":"abc"}`))
	assert.ErrorIs(t, err, ErrInvalidSettings)
	_, err = f.admin.UpdateSettings(ctx, []byte(`{"tasks":[{"id":"x","kind":"link","reward":"1"}]}`))
	assert.ErrorIs(t, err, ErrInvalidSettings)

	s, err := f.admin.UpdateSettings(ctx, []byte(`{"faucet_reward":"0.001","faucet_cooldown_ms":0,"admin_passcode":"1111"}`))
	require.NoError(t, err)
	assert.True(t, s.FaucetReward.Equal(dec("0.001")))
	assert.True(t, f.admin.VerifyPasscode("1111"))

	// settings take effect for the next action and survive a reload
	_, _, err = f.svc.Dispatch(ctx, 1, miner.Intent{Action: miner.ActionClaimFaucet})
	require.NoError(t, err)
	snap, _, err := f.svc.Dispatch(ctx, 1, miner.Intent{Action: miner.ActionClaimFaucet})
	require.NoError(t, err)
	assert.True(t, snap.Balance.Equal(dec("0.002")))

	reloaded := NewSettingsService(f.repo, domain.DefaultSettings()).Load(ctx)
	assert.Equal(t, "1111", reloaded.AdminPasscode)
}

func TestAuditTrail(t *testing.T) {
	f := newFixture(t, nil, engagement.Always{}, nil)
	ctx := context.Background()

	_, err := f.svc.Open(ctx, telegram.Identity{UserID: 5, FirstName: "Ann"})
	require.NoError(t, err)
	_, err = f.admin.Grant(ctx, 5, dec("1"))
	require.NoError(t, err)
	_, eff, err := f.svc.Dispatch(ctx, 5, miner.Intent{Action: miner.ActionRequestWithdrawal, Amount: dec("0.4"), Address: testAddress})
	require.NoError(t, err)
	_, err = f.admin.SetWithdrawalStatus(ctx, eff.Withdrawal.ID, domain.WithdrawalStatusRejected)
	require.NoError(t, err)
	_, err = f.admin.ResetAccount(ctx, 5)
	require.NoError(t, err)

	trail, err := f.admin.Audit(ctx, repository.AuditFilter{UserID: 5})
	require.NoError(t, err)
	var actions []string
	for _, e := range trail {
		actions = append(actions, e.Action)
	}
	assert.Equal(t, []string{
		domain.AuditActionAdminReset,
		domain.AuditActionWithdrawReject,
		domain.AuditActionWithdrawRequest,
		domain.AuditActionAdminGrant,
		domain.AuditActionLogin,
	}, actions)
	assert.Equal(t, "0.6", trail[0].Details["previous_balance"])
	assert.Equal(t, eff.Withdrawal.ID, trail[2].Details["withdrawal_id"])
	assert.Equal(t, t0, trail[0].CreatedAt)

	withdrawals, err := f.admin.Audit(ctx, repository.AuditFilter{Category: domain.AuditCategoryWithdrawal})
	require.NoError(t, err)
	assert.Len(t, withdrawals, 2)
}
