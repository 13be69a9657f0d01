package domain

import (
	"encoding/json"
	"time"

	"github.com/shopspring/decimal"
)

// SettingsKey is the storage key of the shared settings document
const SettingsKey = "settings"

// Duration is a time.Duration persisted as integer milliseconds
type Duration time.Duration

func (d Duration) Std() time.Duration { return time.Duration(d) }

func (d Duration) MarshalJSON() ([]byte, error) {
	return json.Marshal(time.Duration(d).Milliseconds())
}

func (d *Duration) UnmarshalJSON(b []byte) error {
	var ms int64
	if err := json.Unmarshal(b, &ms); err != nil {
		return err
	}
	*d = Duration(time.Duration(ms) * time.Millisecond)
	return nil
}

// TaskKind selects the engagement a task needs
type TaskKind string

const (
	TaskKindAd   TaskKind = "ad"
	TaskKindLink TaskKind = "link"
)

// Task is an entry of the admin-managed task catalog
type Task struct {
	ID        string          `json:"id"`
	Title     string          `json:"title"`
	Reward    decimal.Decimal `json:"reward"`
	Kind      TaskKind        `json:"kind"`
	Placement string          `json:"placement,omitempty"`
	URL       string          `json:"url,omitempty"`
}

// Placements holds ad placement ids per gated action; empty means no ad is required
type Placements struct {
	Mining    string `json:"mining"`
	DailyGift string `json:"daily_gift"`
	Faucet    string `json:"faucet"`
}

// Settings is the process-wide, admin-editable configuration
type Settings struct {
	SessionDuration           Duration        `json:"session_duration_ms"`
	SessionReward             decimal.Decimal `json:"session_reward"`
	DailyGiftAmount           decimal.Decimal `json:"daily_gift_amount"`
	DailyGiftCooldown         Duration        `json:"daily_gift_cooldown_ms"`
	FaucetReward              decimal.Decimal `json:"faucet_reward"`
	FaucetCooldown            Duration        `json:"faucet_cooldown_ms"`
	MinWithdrawal             decimal.Decimal `json:"min_withdrawal"`
	MinAddressLength          int             `json:"min_address_length"`
	ReferralCommissionPercent decimal.Decimal `json:"referral_commission_percent"`
	ReferralJoinBonus         decimal.Decimal `json:"referral_join_bonus"`
	Placements                Placements      `json:"placements"`
	Tasks                     []Task          `json:"tasks"`
	NotifyChatIDs             []int64         `json:"notify_chat_ids"`
	AdminPasscode             string          `json:"admin_passcode"`
	ActiveMinersDisplay       int             `json:"active_miners_display"`
}

// DefaultSettings are used for any key missing from storage
func DefaultSettings() Settings {
	return Settings{
		SessionDuration:           Duration(time.Hour),
		SessionReward:             decimal.RequireFromString("0.0005"),
		DailyGiftAmount:           decimal.RequireFromString("0.0015"),
		DailyGiftCooldown:         Duration(24 * time.Hour),
		FaucetReward:              decimal.RequireFromString("0.0002"),
		FaucetCooldown:            Duration(15 * time.Minute),
		MinWithdrawal:             decimal.RequireFromString("0.1"),
		MinAddressLength:          20,
		ReferralCommissionPercent: decimal.NewFromInt(10),
		ReferralJoinBonus:         decimal.RequireFromString("0.1"),
		Placements: Placements{
			Mining:    "3946",
			DailyGift: "3946",
		},
		Tasks: []Task{
			{ID: "ad1", Title: "Watch a quick ad #1", Reward: decimal.RequireFromString("0.00015"), Kind: TaskKindAd, Placement: "3946"},
			{ID: "ad2", Title: "Watch a quick ad #2", Reward: decimal.RequireFromString("0.0002"), Kind: TaskKindAd, Placement: "3946"},
			{ID: "join_tg", Title: "Join the official channel", Reward: decimal.RequireFromString("0.001"), Kind: TaskKindLink, URL: "https://t.me/ton_cloud_miner"},
		},
		NotifyChatIDs:       []int64{},
		AdminPasscode:       "7788",
		ActiveMinersDisplay: 42150,
	}
}

// FindTask looks up a catalog task by id
func (s Settings) FindTask(id string) (Task, bool) {
	for _, t := range s.Tasks {
		if t.ID == id {
			return t, true
		}
	}
	return Task{}, false
}

// Public strips fields the Mini App must not see
func (s Settings) Public() Settings {
	p := s
	p.AdminPasscode = ""
	p.NotifyChatIDs = nil
	return p
}

// Clone returns a copy that shares no slices with s
func (s Settings) Clone() Settings {
	c := s
	if s.Tasks != nil {
		c.Tasks = make([]Task, len(s.Tasks))
		copy(c.Tasks, s.Tasks)
	}
	if s.NotifyChatIDs != nil {
		c.NotifyChatIDs = make([]int64, len(s.NotifyChatIDs))
		copy(c.NotifyChatIDs, s.NotifyChatIDs)
	}
	return c
}
