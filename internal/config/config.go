package config

import (
	"fmt"
	"time"

	"ton_miner/internal/domain"
	"ton_miner/internal/logger"
	"ton_miner/internal/ton"

	"github.com/caarlos0/env/v10"
	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"
)

type Config struct {
	AppPort   string        `env:"APP_PORT" envDefault:"8080"`
	DevMode   bool          `env:"DEV_MODE" envDefault:"false"`
	LogLevel  string        `env:"LOG_LEVEL" envDefault:"info"`
	LogJSON   bool          `env:"LOG_JSON" envDefault:"false"`
	JWTSecret string        `env:"JWT_SECRET"`
	JWTTTL    time.Duration `env:"JWT_TTL" envDefault:"24h"`

	// memory | redis | postgres
	StorageDriver string `env:"STORAGE_DRIVER" envDefault:"postgres"`
	DatabaseURL   string `env:"DATABASE_URL"`
	RedisAddr     string `env:"REDIS_ADDR"`
	RedisPassword string `env:"REDIS_PASSWORD"`
	RedisDB       int    `env:"REDIS_DB" envDefault:"0"`

	BotToken        string        `env:"BOT_TOKEN"`
	BotUsername     string        `env:"BOT_USERNAME" envDefault:"TON_CloudMiner_Bot"`
	WebAppShortName string        `env:"WEBAPP_SHORT_NAME" envDefault:"app"`
	InitDataTTL     time.Duration `env:"INIT_DATA_TTL" envDefault:"1h"`
	AdminChatIDs    []int64       `env:"ADMIN_TELEGRAM_IDS" envSeparator:","` // добавить в env tg id админов
	AdminBotEnabled bool          `env:"ADMIN_BOT_ENABLED" envDefault:"false"`
	// used for explorer links in withdrawal notices
	TonNetwork ton.Network `env:"TON_NETWORK" envDefault:"mainnet"`

	TickInterval      time.Duration `env:"TICK_INTERVAL" envDefault:"1s"`
	EngagementTimeout time.Duration `env:"ENGAGEMENT_TIMEOUT" envDefault:"90s"`
	LinkDwell         time.Duration `env:"LINK_DWELL" envDefault:"2s"`
	SessionIdleTTL    time.Duration `env:"SESSION_IDLE_TTL" envDefault:"30m"`

	APIRateLimit   int           `env:"API_RATE_LIMIT" envDefault:"60"`
	APIRateWindow  time.Duration `env:"API_RATE_WINDOW" envDefault:"1m"`
	AuthRateLimit  int           `env:"AUTH_RATE_LIMIT" envDefault:"5"`
	AuthRateWindow time.Duration `env:"AUTH_RATE_WINDOW" envDefault:"1m"`
	// per user, mining actions only
	ActionRateLimit  int           `env:"ACTION_RATE_LIMIT" envDefault:"30"`
	ActionRateWindow time.Duration `env:"ACTION_RATE_WINDOW" envDefault:"1m"`
	AllowedOrigin    string        `env:"ALLOWED_ORIGIN"`

	// ad confirmations arriving this long before the action still count
	EngagementGrace        time.Duration `env:"ENGAGEMENT_GRACE" envDefault:"30s"`
	EngagementRewardSecret string        `env:"ENGAGEMENT_REWARD_SECRET"`

	Miner MinerDefaults
}

// MinerDefaults seed the shared settings document when storage has none.
type MinerDefaults struct {
	SessionDuration    time.Duration `env:"MINER_SESSION_DURATION" envDefault:"1h"`
	SessionReward      string        `env:"MINER_SESSION_REWARD" envDefault:"0.0005"`
	DailyGiftAmount    string        `env:"MINER_DAILY_GIFT_AMOUNT" envDefault:"0.0015"`
	DailyGiftCooldown  time.Duration `env:"MINER_DAILY_GIFT_COOLDOWN" envDefault:"24h"`
	FaucetReward       string        `env:"MINER_FAUCET_REWARD" envDefault:"0.0002"`
	FaucetCooldown     time.Duration `env:"MINER_FAUCET_COOLDOWN" envDefault:"15m"`
	MinWithdrawal      string        `env:"MINER_MIN_WITHDRAWAL" envDefault:"0.1"`
	ReferralCommission string        `env:"MINER_REFERRAL_COMMISSION" envDefault:"10"`
	ReferralJoinBonus  string        `env:"MINER_REFERRAL_JOIN_BONUS" envDefault:"0.1"`
	AdPlacement        string        `env:"MINER_AD_PLACEMENT" envDefault:"3946"`
	AdminPasscode      string        `env:"ADMIN_PASSCODE" envDefault:"7788"`
}

// Загрузка конфига из env
func Load() *Config {
	_ = godotenv.Load()

	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		logger.Fatal("failed to parse config", "error", err)
	}

	if cfg.JWTSecret == "" {
		logger.Fatal("JWT_SECRET is not set")
	}
	if cfg.BotToken == "" && !cfg.DevMode {
		logger.Fatal("BOT_TOKEN is not set")
	}

	switch cfg.StorageDriver {
	case "postgres":
		if cfg.DatabaseURL == "" {
			logger.Fatal("DATABASE_URL is not set")
		}
	case "redis":
		if cfg.RedisAddr == "" {
			logger.Fatal("REDIS_ADDR is not set")
		}
	case "memory":
		if !cfg.DevMode {
			logger.Warn("memory storage outside DEV_MODE, state is lost on restart")
		}
	default:
		logger.Fatal("unknown STORAGE_DRIVER", "driver", cfg.StorageDriver)
	}

	if !cfg.TonNetwork.Valid() {
		logger.Fatal("unknown TON_NETWORK", "network", cfg.TonNetwork)
	}

	if cfg.TickInterval <= 0 {
		cfg.TickInterval = time.Second
	}
	if _, err := cfg.Miner.Settings(); err != nil {
		logger.Fatal("invalid miner defaults", "error", err)
	}

	return cfg
}

// Settings builds the default settings document, overlaying env values on the built-in catalog
func (m MinerDefaults) Settings() (domain.Settings, error) {
	s := domain.DefaultSettings()

	amounts := []struct {
		name string
		raw  string
		dst  *decimal.Decimal
	}{
		{"MINER_SESSION_REWARD", m.SessionReward, &s.SessionReward},
		{"MINER_DAILY_GIFT_AMOUNT", m.DailyGiftAmount, &s.DailyGiftAmount},
		{"MINER_FAUCET_REWARD", m.FaucetReward, &s.FaucetReward},
		{"MINER_MIN_WITHDRAWAL", m.MinWithdrawal, &s.MinWithdrawal},
		{"MINER_REFERRAL_COMMISSION", m.ReferralCommission, &s.ReferralCommissionPercent},
		{"MINER_REFERRAL_JOIN_BONUS", m.ReferralJoinBonus, &s.ReferralJoinBonus},
	}
	for _, a := range amounts {
		if a.raw == "" {
			continue
		}
		d, err := decimal.NewFromString(a.raw)
		if err != nil {
			return domain.Settings{}, fmt.Errorf("%s: %w", a.name, err)
		}
		if d.IsNegative() {
			return domain.Settings{}, fmt.Errorf("%s must not be negative", a.name)
		}
		*a.dst = d
	}

	if m.SessionDuration > 0 {
		s.SessionDuration = domain.Duration(m.SessionDuration)
	}
	if m.DailyGiftCooldown > 0 {
		s.DailyGiftCooldown = domain.Duration(m.DailyGiftCooldown)
	}
	if m.FaucetCooldown > 0 {
		s.FaucetCooldown = domain.Duration(m.FaucetCooldown)
	}

	s.Placements.Mining = m.AdPlacement
	s.Placements.DailyGift = m.AdPlacement
	for i := range s.Tasks {
		if s.Tasks[i].Kind == domain.TaskKindAd {
			s.Tasks[i].Placement = m.AdPlacement
		}
	}
	if m.AdminPasscode != "" {
		s.AdminPasscode = m.AdminPasscode
	}
	return s, nil
}
