package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"ton_miner/internal/domain"
	"ton_miner/internal/engagement"
	"ton_miner/internal/logger"
	"ton_miner/internal/miner"
	"ton_miner/internal/repository"
	"ton_miner/internal/telegram"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

var (
	ErrStorageUnavailable = errors.New("storage unavailable")
	ErrReferralCode       = errors.New("could not allocate referral code")
)

const storageTimeout = 5 * time.Second

// Notifier receives withdrawal notices. Delivery is best effort.
type Notifier interface {
	NotifyWithdrawal(ctx context.Context, n WithdrawalNotice)
}

// WithdrawalNotice is sent to the configured chats when a withdrawal is recorded
type WithdrawalNotice struct {
	UserID      int64
	DisplayName string
	Record      domain.WithdrawalRecord
	ChatIDs     []int64
}

// Publisher pushes snapshots to live clients of a user
type Publisher interface {
	PublishSnapshot(userID int64, snap Snapshot)
	HasSubscribers(userID int64) bool
}

type MiningOptions struct {
	EngagementTimeout time.Duration
	IdleTTL           time.Duration
	// ReferralLink renders the deep link for a referral code
	ReferralLink func(code string) string
	Notifier     Notifier
	Publisher    Publisher
	Clock        func() time.Time
	NewID        func() string
}

// container owns one user's account. acc is only touched with mu held.
type container struct {
	mu       sync.Mutex
	acc      domain.Account
	inflight *miner.Inflight
	lastSeen time.Time
	loaded   bool
	dirty    bool
	evicted  bool

	loadOnce sync.Once
	loadErr  error
}

// commission is a referral payout owed to the owner of code
type commission struct {
	code   string
	amount decimal.Decimal
}

// MiningService holds one container per active user and runs the reconciliation tick
type MiningService struct {
	repo     repository.StateRepository
	settings *SettingsService
	engage   engagement.Collaborator
	audit    *AuditService
	opts     MiningOptions
	log      *slog.Logger

	mu         sync.Mutex
	containers map[int64]*container
}

func NewMiningService(repo repository.StateRepository, settings *SettingsService, engage engagement.Collaborator, opts MiningOptions) *MiningService {
	if opts.Clock == nil {
		opts.Clock = time.Now
	}
	if opts.NewID == nil {
		opts.NewID = NewWithdrawalID
	}
	if opts.EngagementTimeout <= 0 {
		opts.EngagementTimeout = 90 * time.Second
	}
	if opts.ReferralLink == nil {
		opts.ReferralLink = func(string) string { return "" }
	}
	return &MiningService{
		repo:       repo,
		settings:   settings,
		engage:     engage,
		audit:      &AuditService{repo: repo, clock: opts.Clock, log: logger.Component("audit")},
		opts:       opts,
		log:        logger.Component("mining"),
		containers: make(map[int64]*container),
	}
}

// NewWithdrawalID returns a short uppercase record id
func NewWithdrawalID() string {
	return strings.ToUpper(strings.ReplaceAll(uuid.NewString(), "-", "")[:12])
}

func newReferralCode() string {
	return strings.ToUpper(uuid.NewString()[:8])
}

// Open is called when the Mini App launches: it loads or creates the account,
// records the display name and applies a start_param referral once.
func (s *MiningService) Open(ctx context.Context, ident telegram.Identity) (Snapshot, error) {
	c, err := s.get(ctx, ident.UserID)
	if err != nil {
		return Snapshot{}, err
	}

	settings := s.settings.Get()
	now := s.opts.Clock()
	owed := s.settle(c, settings, now)

	changed := false
	if name := ident.DisplayName(); name != "" && name != c.acc.DisplayName {
		next := c.acc.Clone()
		next.DisplayName = name
		c.acc = next
		changed = true
	}

	var referrerID int64
	if code := telegram.ReferralCode(ident.StartParam); code != "" && c.acc.ReferredBy == "" {
		rid, rerr := s.repo.ResolveReferralCode(ctx, code)
		switch {
		case rerr == nil && rid != ident.UserID:
			if next, ok := miner.AttributeReferral(c.acc, code); ok {
				c.acc = next
				changed = true
				referrerID = rid
			}
		case rerr != nil && !errors.Is(rerr, repository.ErrNotFound):
			s.log.Warn("failed to resolve referral code", "code", code, "error", rerr)
		}
	}

	if changed {
		c.acc.UpdatedAt = now
		s.persist(c)
	}
	c.lastSeen = now
	snap := s.snapshot(c, settings, now)
	c.mu.Unlock()

	s.audit.LogLogin(ctx, ident.UserID, ident.StartParam)
	s.payCommission(ctx, owed)
	if referrerID != 0 {
		s.creditReferralJoin(ctx, referrerID, domain.Referral{
			ReferrerID:  referrerID,
			UserID:      ident.UserID,
			DisplayName: snap.DisplayName,
			Reward:      settings.ReferralJoinBonus,
			JoinedAt:    now,
		})
	}
	return snap, nil
}

// creditReferralJoin pays the join bonus and puts the referee on the referrer's roster
func (s *MiningService) creditReferralJoin(ctx context.Context, referrerID int64, ref domain.Referral) {
	bonus := ref.Reward
	if _, err := s.Mutate(ctx, referrerID, func(acc domain.Account) (domain.Account, error) {
		return miner.CreditReferralJoin(acc, bonus), nil
	}); err != nil {
		s.log.Warn("failed to credit referral join", "referrer", referrerID, "error", err)
		ref.Reward = decimal.Zero
	} else {
		s.audit.LogReferralPayout(ctx, referrerID, bonus)
	}

	rctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), storageTimeout)
	defer cancel()
	if err := s.repo.AddReferral(rctx, ref); err != nil {
		PersistFailures.Inc()
		s.log.Error("failed to record referral", "referrer", referrerID, "user_id", ref.UserID, "error", err)
	}
}

// Referrals lists the friends a user invited, newest first
func (s *MiningService) Referrals(ctx context.Context, userID int64, limit int) ([]domain.Referral, error) {
	friends, err := s.repo.ListReferrals(ctx, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrStorageUnavailable, err)
	}
	return friends, nil
}

// Snapshot returns the current view of a user's account
func (s *MiningService) Snapshot(ctx context.Context, userID int64) (Snapshot, error) {
	c, err := s.get(ctx, userID)
	if err != nil {
		return Snapshot{}, err
	}
	settings := s.settings.Get()
	now := s.opts.Clock()
	owed := s.settle(c, settings, now)
	c.lastSeen = now
	snap := s.snapshot(c, settings, now)
	c.mu.Unlock()

	s.payCommission(ctx, owed)
	return snap, nil
}

// Dispatch is the single entry point for user actions. Preconditions are checked, the
// engagement is awaited without holding the account lock, then preconditions are checked
// again and the transition is committed and persisted in one step.
// While an engagement is pending, the same gate rejects re-entry with ErrActionPending.
func (s *MiningService) Dispatch(ctx context.Context, userID int64, in miner.Intent) (Snapshot, miner.Effect, error) {
	c, err := s.get(ctx, userID)
	if err != nil {
		return Snapshot{}, miner.Effect{}, err
	}

	settings := s.settings.Get()
	now := s.opts.Clock()
	var owed []*commission
	owed = append(owed, s.settle(c, settings, now))
	c.lastSeen = now

	if err := miner.Check(c.acc, settings, in, now); err != nil {
		snap := s.snapshot(c, settings, now)
		c.mu.Unlock()
		ActionsRejected.WithLabelValues(string(in.Action)).Inc()
		s.payCommissions(ctx, owed)
		return snap, miner.Effect{}, err
	}

	key := in.Key()
	if !c.inflight.Acquire(key) {
		snap := s.snapshot(c, settings, now)
		c.mu.Unlock()
		s.payCommissions(ctx, owed)
		return snap, miner.Effect{}, miner.ErrActionPending
	}
	released := false
	release := func() {
		if !released {
			released = true
			c.inflight.Release(key)
		}
	}
	defer release()

	eng := miner.EngagementFor(settings, in)
	if eng.Required {
		// pending gate becomes visible to live clients
		s.publishLocked(c, settings, now)
	}
	c.mu.Unlock()
	s.payCommissions(ctx, owed)
	owed = owed[:0]

	if eng.Required {
		if err := s.awaitEngagement(ctx, userID, key, eng); err != nil {
			EngagementDeclined.WithLabelValues(string(in.Action)).Inc()
			s.log.Info("engagement declined", "user_id", userID, "action", in.Action, "error", err)
			release()
			snap, _ := s.Snapshot(context.WithoutCancel(ctx), userID)
			return snap, miner.Effect{}, err
		}
	}

	// inflight is held, so the container cannot be evicted while we were waiting
	c.mu.Lock()
	settings = s.settings.Get()
	now = s.opts.Clock()
	owed = append(owed, s.settle(c, settings, now))

	next, eff, err := miner.Apply(c.acc, settings, in, now, s.opts.NewID)
	if err != nil {
		snap := s.snapshot(c, settings, now)
		c.mu.Unlock()
		ActionsRejected.WithLabelValues(string(in.Action)).Inc()
		s.payCommissions(ctx, owed)
		return snap, miner.Effect{}, err
	}

	c.acc = next
	c.lastSeen = now
	s.persist(c)
	displayName := c.acc.DisplayName
	release()
	snap := s.snapshot(c, settings, now)
	c.mu.Unlock()

	ActionsCommitted.WithLabelValues(string(in.Action)).Inc()
	s.publish(userID, snap)
	s.payCommissions(ctx, owed)

	if eff.Withdrawal != nil {
		WithdrawalsRequested.Inc()
		s.afterWithdrawal(ctx, userID, displayName, *eff.Withdrawal, settings)
	}
	return snap, eff, nil
}

func (s *MiningService) awaitEngagement(ctx context.Context, userID int64, gate string, eng miner.Engagement) error {
	if s.engage == nil {
		return engagement.ErrUnavailable
	}
	ectx, cancel := context.WithTimeout(ctx, s.opts.EngagementTimeout)
	defer cancel()

	res, err := s.engage.Show(ectx, engagement.Request{
		UserID:    userID,
		Gate:      gate,
		Kind:      eng.Kind,
		Placement: eng.Placement,
		URL:       eng.URL,
	})
	if err != nil {
		if errors.Is(err, engagement.ErrDeclined) || errors.Is(err, engagement.ErrNoFill) || errors.Is(err, engagement.ErrUnavailable) {
			return err
		}
		return fmt.Errorf("%w: %w", engagement.ErrDeclined, err)
	}
	return res.Err()
}

func (s *MiningService) afterWithdrawal(ctx context.Context, userID int64, name string, rec domain.WithdrawalRecord, settings domain.Settings) {
	ictx, cancel := context.WithTimeout(context.WithoutCancel(ctx), storageTimeout)
	defer cancel()
	if err := s.repo.IndexWithdrawal(ictx, repository.RefFor(userID, rec)); err != nil {
		PersistFailures.Inc()
		s.log.Error("failed to index withdrawal", "user_id", userID, "id", rec.ID, "error", err)
	}
	s.audit.LogWithdrawRequest(ictx, userID, rec)

	if s.opts.Notifier == nil {
		return
	}
	notice := WithdrawalNotice{UserID: userID, DisplayName: name, Record: rec, ChatIDs: settings.NotifyChatIDs}
	go func() {
		nctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		s.opts.Notifier.NotifyWithdrawal(nctx, notice)
	}()
}

// Mutate applies fn to a user's account outside the action gate. Used by admin
// operations and referral payouts. The account is loaded (or created) first.
func (s *MiningService) Mutate(ctx context.Context, userID int64, fn func(domain.Account) (domain.Account, error)) (Snapshot, error) {
	c, err := s.get(ctx, userID)
	if err != nil {
		return Snapshot{}, err
	}
	settings := s.settings.Get()
	now := s.opts.Clock()
	owed := s.settle(c, settings, now)

	next, err := fn(c.acc)
	if err != nil {
		c.mu.Unlock()
		s.payCommission(ctx, owed)
		return Snapshot{}, err
	}
	next.UserID = userID
	next.UpdatedAt = now
	c.acc = next
	s.persist(c)
	snap := s.snapshot(c, settings, now)
	c.mu.Unlock()

	s.publish(userID, snap)
	s.payCommission(ctx, owed)
	return snap, nil
}

// Run reconciles every loaded account on each tick until ctx is done
func (s *MiningService) Run(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	s.log.Info("reconciliation loop started", "interval", interval)
	for {
		select {
		case <-ctx.Done():
			s.Flush()
			s.log.Info("reconciliation loop stopped")
			return
		case <-ticker.C:
			s.Tick(ctx)
		}
	}
}

// Tick credits finished sessions, retries failed writes, pushes progress and evicts idle containers
func (s *MiningService) Tick(ctx context.Context) {
	settings := s.settings.Get()
	now := s.opts.Clock()

	for _, c := range s.all() {
		c.mu.Lock()
		if !c.loaded || c.evicted {
			c.mu.Unlock()
			continue
		}
		owed := s.settle(c, settings, now)
		if c.dirty {
			s.persist(c)
		}
		userID := c.acc.UserID
		var snap *Snapshot
		if s.opts.Publisher != nil && s.opts.Publisher.HasSubscribers(userID) {
			v := s.snapshot(c, settings, now)
			snap = &v
			c.lastSeen = now
		}
		c.mu.Unlock()

		if snap != nil {
			s.opts.Publisher.PublishSnapshot(userID, *snap)
		}
		s.payCommission(ctx, owed)
	}

	s.evictIdle(now)
}

// Flush retries every pending write. Called on shutdown.
func (s *MiningService) Flush() {
	for _, c := range s.all() {
		c.mu.Lock()
		if c.loaded && c.dirty {
			s.persist(c)
		}
		c.mu.Unlock()
	}
}

// Loaded reports how many containers are in memory
func (s *MiningService) Loaded() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.containers)
}

func (s *MiningService) all() []*container {
	s.mu.Lock()
	defer s.mu.Unlock()
	list := make([]*container, 0, len(s.containers))
	for _, c := range s.containers {
		list = append(list, c)
	}
	return list
}

func (s *MiningService) evictIdle(now time.Time) {
	if s.opts.IdleTTL <= 0 {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	for id, c := range s.containers {
		if !c.mu.TryLock() {
			continue
		}
		idle := c.loaded && !c.dirty && len(c.inflight.Keys()) == 0 && now.Sub(c.lastSeen) > s.opts.IdleTTL
		if idle {
			c.evicted = true
			delete(s.containers, id)
		}
		c.mu.Unlock()
	}
	LoadedAccounts.Set(float64(len(s.containers)))
}

// get returns the user's container locked. Callers must unlock c.mu.
func (s *MiningService) get(ctx context.Context, userID int64) (*container, error) {
	for {
		s.mu.Lock()
		c, ok := s.containers[userID]
		if !ok {
			c = &container{inflight: miner.NewInflight()}
			s.containers[userID] = c
			LoadedAccounts.Set(float64(len(s.containers)))
		}
		s.mu.Unlock()

		c.loadOnce.Do(func() {
			c.loadErr = s.load(ctx, userID, c)
		})
		if c.loadErr != nil {
			s.mu.Lock()
			if s.containers[userID] == c {
				delete(s.containers, userID)
			}
			s.mu.Unlock()
			return nil, c.loadErr
		}

		c.mu.Lock()
		if c.evicted {
			c.mu.Unlock()
			continue
		}
		return c, nil
	}
}

func (s *MiningService) load(ctx context.Context, userID int64, c *container) error {
	lctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), storageTimeout)
	defer cancel()

	now := s.opts.Clock()
	raw, err := s.repo.Get(lctx, domain.AccountKey(userID))

	var acc domain.Account
	fresh, reset := false, false
	switch {
	case errors.Is(err, repository.ErrNotFound):
		fresh = true
	case err != nil:
		// a transient read error is not absence: defaults would overwrite the stored document
		s.log.Error("failed to read account", "user_id", userID, "error", err)
		return fmt.Errorf("%w: %v", ErrStorageUnavailable, err)
	default:
		decoded, bad, derr := domain.DecodeAccount(raw, domain.NewAccount(userID, "", now))
		if derr != nil {
			s.log.Warn("stored account unparseable, resetting to defaults", "user_id", userID, "error", derr)
			reset = true
		} else if len(bad) > 0 {
			s.log.Warn("stored account keys reset to defaults", "user_id", userID, "keys", bad)
		}
		acc = decoded
	}

	if fresh || acc.ReferralCode == "" {
		code, err := s.referralCode(lctx, userID)
		if err != nil {
			return err
		}
		if fresh {
			acc = domain.NewAccount(userID, code, now)
		} else {
			acc.ReferralCode = code
			reset = true
		}
	}
	acc.UserID = userID

	c.mu.Lock()
	defer c.mu.Unlock()
	c.acc = acc
	c.lastSeen = now
	c.loaded = true
	switch {
	case fresh:
		s.log.Info("account created", "user_id", userID)
		s.persist(c)
	case reset:
		s.persist(c)
	}
	return nil
}

// referralCode returns the code already indexed for the user, claiming a new one only
// when there is none. Referees keep pointing at the indexed code after an account reset.
func (s *MiningService) referralCode(ctx context.Context, userID int64) (string, error) {
	code, err := s.repo.ReferralCodeFor(ctx, userID)
	switch {
	case err == nil:
		return code, nil
	case !errors.Is(err, repository.ErrNotFound):
		return "", fmt.Errorf("%w: %v", ErrStorageUnavailable, err)
	}
	return s.claimReferralCode(ctx, userID)
}

func (s *MiningService) claimReferralCode(ctx context.Context, userID int64) (string, error) {
	for i := 0; i < 5; i++ {
		code := newReferralCode()
		err := s.repo.ClaimReferralCode(ctx, code, userID)
		if err == nil {
			return code, nil
		}
		if !errors.Is(err, repository.ErrCodeTaken) {
			return "", fmt.Errorf("%w: %v", ErrStorageUnavailable, err)
		}
	}
	return "", ErrReferralCode
}

// settle reconciles timers; c.mu must be held. A completed session of a referred
// user yields the commission owed to the referrer, paid after the lock is released.
func (s *MiningService) settle(c *container, settings domain.Settings, now time.Time) *commission {
	next, out := miner.Reconcile(c.acc, settings, now)
	if !out.SessionCompleted {
		return nil
	}
	c.acc = next
	s.persist(c)
	SessionsCompleted.Inc()
	s.log.Info("mining session credited", "user_id", next.UserID, "reward", out.Credited.String())

	if next.ReferredBy == "" {
		return nil
	}
	amount := miner.ReferralCommission(out.Credited, settings.ReferralCommissionPercent)
	if !amount.IsPositive() {
		return nil
	}
	return &commission{code: next.ReferredBy, amount: amount}
}

func (s *MiningService) payCommissions(ctx context.Context, owed []*commission) {
	for _, cm := range owed {
		s.payCommission(ctx, cm)
	}
}

func (s *MiningService) payCommission(ctx context.Context, cm *commission) {
	if cm == nil {
		return
	}
	ctx = context.WithoutCancel(ctx)
	referrerID, err := s.repo.ResolveReferralCode(ctx, cm.code)
	if err != nil {
		s.log.Warn("referral commission skipped", "code", cm.code, "error", err)
		return
	}
	amount := cm.amount
	if _, err := s.Mutate(ctx, referrerID, func(acc domain.Account) (domain.Account, error) {
		return miner.CreditReferralCommission(acc, amount), nil
	}); err != nil {
		s.log.Warn("referral commission failed", "referrer", referrerID, "error", err)
		return
	}
	s.audit.LogReferralPayout(ctx, referrerID, amount)
}

// persist writes the account; c.mu must be held. Failures keep memory authoritative
// and leave the container dirty so the tick retries.
func (s *MiningService) persist(c *container) {
	raw, err := json.Marshal(c.acc)
	if err == nil {
		ctx, cancel := context.WithTimeout(context.Background(), storageTimeout)
		err = s.repo.Put(ctx, domain.AccountKey(c.acc.UserID), raw)
		cancel()
	}
	if err != nil {
		if !c.dirty {
			s.log.Error("failed to persist account", "user_id", c.acc.UserID, "error", err)
		}
		c.dirty = true
		PersistFailures.Inc()
		return
	}
	c.dirty = false
}

func (s *MiningService) snapshot(c *container, settings domain.Settings, now time.Time) Snapshot {
	return buildSnapshot(c.acc, settings, c.inflight.Keys(), s.opts.ReferralLink(c.acc.ReferralCode), now)
}

func (s *MiningService) publishLocked(c *container, settings domain.Settings, now time.Time) {
	if s.opts.Publisher == nil {
		return
	}
	snap := s.snapshot(c, settings, now)
	// the hub never calls back into the service, so pushing under the lock is safe
	s.opts.Publisher.PublishSnapshot(c.acc.UserID, snap)
}

func (s *MiningService) publish(userID int64, snap Snapshot) {
	if s.opts.Publisher != nil {
		s.opts.Publisher.PublishSnapshot(userID, snap)
	}
}
