package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"ton_miner/internal/bot"
	"ton_miner/internal/config"
	"ton_miner/internal/db"
	"ton_miner/internal/engagement"
	httpServer "ton_miner/internal/http"
	"ton_miner/internal/http/handlers"
	"ton_miner/internal/http/middleware"
	"ton_miner/internal/logger"
	"ton_miner/internal/service"
	"ton_miner/internal/telegram"
	"ton_miner/internal/ws"

	"github.com/gin-gonic/gin"
	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

// set with -ldflags "-X main.version=..."
var version = "dev"

func main() {
	cfg := config.Load()
	logger.Init(cfg.LogLevel, cfg.LogJSON)
	service.InitJWT(cfg.JWTSecret, cfg.JWTTTL)

	defaults, err := cfg.Miner.Settings()
	if err != nil {
		logger.Fatal("invalid miner defaults", "error", err)
	}

	rdb := db.ConnectRedis(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
	if rdb != nil {
		defer rdb.Close()
	}
	middleware.InitRedisRateLimiter(rdb)

	storage, err := db.OpenStorage(cfg, rdb)
	if err != nil {
		logger.Fatal("failed to open storage", "driver", cfg.StorageDriver, "error", err)
	}
	defer storage.Close()
	repo := storage.Repo

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	settings := service.NewSettingsService(repo, defaults)
	settings.Load(ctx)

	// ads are confirmed by the Mini App (or the reward callback); DEV_MODE confirms locally
	var (
		broker *engagement.Broker
		ads    engagement.Collaborator = engagement.Always{}
	)
	if !cfg.DevMode {
		broker = engagement.NewBroker(cfg.EngagementGrace)
		ads = broker
		go sweep(ctx, broker, cfg.EngagementGrace)
	}
	router := engagement.Router{Ads: ads, Links: engagement.Dwell{Wait: cfg.LinkDwell}}

	var (
		api      *tgbotapi.BotAPI
		notifier service.Notifier
	)
	if cfg.BotToken != "" {
		if api, err = bot.Connect(cfg.BotToken); err != nil {
			logger.Warn("telegram bot unavailable, withdrawal notices disabled", "error", err)
			api = nil
		} else {
			notifier = bot.NewNotifier(api, cfg.AdminChatIDs, cfg.TonNetwork)
		}
	}

	hub := ws.NewHub()
	mining := service.NewMiningService(repo, settings, router, service.MiningOptions{
		EngagementTimeout: cfg.EngagementTimeout,
		IdleTTL:           cfg.SessionIdleTTL,
		ReferralLink: func(code string) string {
			return telegram.ReferralLink(cfg.BotUsername, cfg.WebAppShortName, code)
		},
		Notifier:  notifier,
		Publisher: hub,
	})
	admin := service.NewAdminService(settings, mining, repo)

	if api != nil && cfg.AdminBotEnabled {
		adminBot := bot.NewAdminBot(api, admin, cfg.AdminChatIDs)
		go adminBot.Start()
		defer adminBot.Stop()
	}

	ticking := make(chan struct{})
	go func() {
		mining.Run(ctx, cfg.TickInterval)
		close(ticking)
	}()

	if !cfg.DevMode {
		gin.SetMode(gin.ReleaseMode)
	}
	r := gin.New()
	r.Use(gin.Recovery())

	// CORS for production (frontend on different domain)
	r.Use(middleware.CORS(cfg.AllowedOrigin))

	h := handlers.NewHandler(mining, admin, settings, broker, handlers.HandlerConfig{
		BotToken:      cfg.BotToken,
		InitDataTTL:   cfg.InitDataTTL,
		DevMode:       cfg.DevMode,
		RewardSecret:  cfg.EngagementRewardSecret,
		AllowedOrigin: cfg.AllowedOrigin,
	})
	health := handlers.NewHealthHandler(storage.Checks, mining, version)
	httpServer.RegisterRoutes(r, h, health, hub, httpServer.RouteConfig{
		APIRateLimit:     cfg.APIRateLimit,
		APIRateWindow:    cfg.APIRateWindow,
		AuthRateLimit:    cfg.AuthRateLimit,
		AuthRateWindow:   cfg.AuthRateWindow,
		ActionRateLimit:  cfg.ActionRateLimit,
		ActionRateWindow: cfg.ActionRateWindow,
	})

	srv := &http.Server{
		Addr:    ":" + cfg.AppPort,
		Handler: r,
	}

	go func() {
		logger.Info("server started", "port", cfg.AppPort, "storage", cfg.StorageDriver, "version", version)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("listen failed", "error", err)
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server forced to shutdown", "error", err)
	}

	// the tick loop flushes every loaded account before returning
	<-ticking
	logger.Info("server exited")
}

func sweep(ctx context.Context, broker *engagement.Broker, every time.Duration) {
	if every <= 0 {
		every = time.Minute
	}
	t := time.NewTicker(every)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			broker.Sweep()
		}
	}
}
