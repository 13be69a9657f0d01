package handlers

import (
	"time"

	"ton_miner/internal/engagement"
	"ton_miner/internal/service"
)

// HandlerConfig carries the host settings the handlers need
type HandlerConfig struct {
	BotToken     string
	InitDataTTL  time.Duration
	DevMode      bool
	RewardSecret string
	// AllowedOrigin restricts websocket upgrades; empty allows any origin
	AllowedOrigin string
}

type Handler struct {
	Mining   *service.MiningService
	Admin    *service.AdminService
	Settings *service.SettingsService
	// Broker receives ad confirmations; nil when ads are confirmed locally
	Broker *engagement.Broker
	cfg    HandlerConfig
}

func NewHandler(mining *service.MiningService, admin *service.AdminService, settings *service.SettingsService, broker *engagement.Broker, cfg HandlerConfig) *Handler {
	return &Handler{
		Mining:   mining,
		Admin:    admin,
		Settings: settings,
		Broker:   broker,
		cfg:      cfg,
	}
}

// getUserID извлекает user_id из контекста Gin
func getUserID(c interface{ Get(string) (any, bool) }) (int64, bool) {
	uidVal, ok := c.Get("user_id")
	if !ok {
		return 0, false
	}
	switch v := uidVal.(type) {
	case int64:
		return v, true
	case float64:
		return int64(v), true
	default:
		return 0, false
	}
}
