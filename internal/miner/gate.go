package miner

import (
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"ton_miner/internal/domain"

	"github.com/shopspring/decimal"
)

// Action names a user-triggered state transition
type Action string

const (
	ActionStartMining       Action = "start_mining"
	ActionClaimDailyGift    Action = "claim_daily_gift"
	ActionClaimFaucet       Action = "claim_faucet"
	ActionCompleteTask      Action = "complete_task"
	ActionRequestWithdrawal Action = "request_withdrawal"
)

var (
	ErrLocked        = errors.New("action is on cooldown")
	ErrActionPending = errors.New("action already awaiting confirmation")
	ErrTaskCompleted = errors.New("task already completed")
	ErrUnknownTask   = errors.New("unknown task")
	ErrUnknownAction = errors.New("unknown action")
)

// LockedError carries the time left on a cooldown
type LockedError struct {
	Action    Action
	Remaining time.Duration
}

func (e *LockedError) Error() string {
	return fmt.Sprintf("%s locked for %s", e.Action, e.Remaining.Round(time.Second))
}

func (e *LockedError) Is(target error) bool {
	return target == ErrLocked
}

// Intent is a request to run one action against an account
type Intent struct {
	Action  Action
	TaskID  string
	Amount  decimal.Decimal
	Address string
}

// Key identifies the gate an intent goes through. Tasks gate per task id.
func (i Intent) Key() string {
	if i.Action == ActionCompleteTask {
		return string(i.Action) + ":" + i.TaskID
	}
	return string(i.Action)
}

// Engagement describes the external confirmation an intent needs before committing
type Engagement struct {
	Required  bool
	Kind      domain.TaskKind
	Placement string
	URL       string
}

// EngagementFor resolves the confirmation an intent needs under the current settings
func EngagementFor(s domain.Settings, in Intent) Engagement {
	switch in.Action {
	case ActionStartMining:
		return adEngagement(s.Placements.Mining)
	case ActionClaimDailyGift:
		return adEngagement(s.Placements.DailyGift)
	case ActionClaimFaucet:
		return adEngagement(s.Placements.Faucet)
	case ActionCompleteTask:
		task, ok := s.FindTask(in.TaskID)
		if !ok {
			return Engagement{}
		}
		if task.Kind == domain.TaskKindLink {
			return Engagement{Required: true, Kind: domain.TaskKindLink, Placement: "task:" + task.ID, URL: task.URL}
		}
		placement := task.Placement
		if placement == "" {
			placement = "task:" + task.ID
		}
		return Engagement{Required: true, Kind: domain.TaskKindAd, Placement: placement}
	}
	return Engagement{}
}

func adEngagement(placement string) Engagement {
	if placement == "" {
		return Engagement{}
	}
	return Engagement{Required: true, Kind: domain.TaskKindAd, Placement: placement}
}

// Check evaluates every precondition of an intent. It never mutates.
func Check(acc domain.Account, s domain.Settings, in Intent, now time.Time) error {
	switch in.Action {
	case ActionStartMining:
		if acc.MiningSession.Active() {
			return ErrSessionActive
		}
	case ActionClaimDailyGift:
		if left := CooldownRemaining(acc.DailyGift.LastClaimedAt, s.DailyGiftCooldown.Std(), now); left > 0 {
			return &LockedError{Action: in.Action, Remaining: left}
		}
	case ActionClaimFaucet:
		if left := CooldownRemaining(acc.Faucet.LastClaimedAt, s.FaucetCooldown.Std(), now); left > 0 {
			return &LockedError{Action: in.Action, Remaining: left}
		}
	case ActionCompleteTask:
		if _, ok := s.FindTask(in.TaskID); !ok {
			return ErrUnknownTask
		}
		if acc.HasCompletedTask(in.TaskID) {
			return ErrTaskCompleted
		}
	case ActionRequestWithdrawal:
		return ValidateWithdrawal(acc, in.Amount, in.Address, RulesFrom(s))
	default:
		return ErrUnknownAction
	}
	return nil
}

// Effect summarizes what a committed intent did
type Effect struct {
	Action     Action
	Credited   decimal.Decimal
	Withdrawal *domain.WithdrawalRecord
}

// Apply re-checks and commits an intent, returning the next account.
// Either the whole next state is returned or acc is returned with an error.
func Apply(acc domain.Account, s domain.Settings, in Intent, now time.Time, newID func() string) (domain.Account, Effect, error) {
	if err := Check(acc, s, in, now); err != nil {
		return acc, Effect{}, err
	}

	eff := Effect{Action: in.Action, Credited: decimal.Zero}
	var next domain.Account

	switch in.Action {
	case ActionStartMining:
		var err error
		if next, err = StartSession(acc, now); err != nil {
			return acc, Effect{}, err
		}
	case ActionClaimDailyGift:
		next = CreditFixedReward(acc, s.DailyGiftAmount, domain.CooldownDailyGift, now)
		eff.Credited = s.DailyGiftAmount
	case ActionClaimFaucet:
		next = CreditFixedReward(acc, s.FaucetReward, domain.CooldownFaucet, now)
		eff.Credited = s.FaucetReward
	case ActionCompleteTask:
		task, _ := s.FindTask(in.TaskID)
		next = CreditTask(acc, task.ID, task.Reward)
		eff.Credited = task.Reward
	case ActionRequestWithdrawal:
		var (
			record domain.WithdrawalRecord
			err    error
		)
		next, record, err = RequestWithdrawal(acc, in.Amount, in.Address, RulesFrom(s), newID(), now)
		if err != nil {
			return acc, Effect{}, err
		}
		eff.Withdrawal = &record
	}

	next.UpdatedAt = now
	return next, eff, nil
}

// Inflight blocks re-entry of a gate while its engagement is pending or committing.
// Distinct keys never block each other.
type Inflight struct {
	mu   sync.Mutex
	keys map[string]struct{}
}

func NewInflight() *Inflight {
	return &Inflight{keys: make(map[string]struct{})}
}

// Acquire marks key busy; false means it already was
func (f *Inflight) Acquire(key string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, busy := f.keys[key]; busy {
		return false
	}
	f.keys[key] = struct{}{}
	return true
}

func (f *Inflight) Release(key string) {
	f.mu.Lock()
	delete(f.keys, key)
	f.mu.Unlock()
}

// Busy reports whether key is currently held
func (f *Inflight) Busy(key string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	_, busy := f.keys[key]
	return busy
}

// Keys lists the gates currently held, sorted
func (f *Inflight) Keys() []string {
	f.mu.Lock()
	keys := make([]string, 0, len(f.keys))
	for k := range f.keys {
		keys = append(keys, k)
	}
	f.mu.Unlock()
	sort.Strings(keys)
	return keys
}
