package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"time"

	"ton_miner/internal/config"
	"ton_miner/internal/db"
	"ton_miner/internal/engagement"
	"ton_miner/internal/logger"
	"ton_miner/internal/service"
	"ton_miner/internal/telegram"

	"github.com/shopspring/decimal"
)

// Creates (or opens) an account in the configured storage and prints a JWT for it.
func main() {
	tgID := flag.Int64("tg", 1234567890, "telegram user id")
	name := flag.String("name", "Tester", "first name")
	balance := flag.String("balance", "", "TON to grant, e.g. 0.25")
	flag.Parse()

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
	storage, err := db.OpenStorage(cfg, rdb)
	if err != nil {
		logger.Fatal("failed to open storage", "driver", cfg.StorageDriver, "error", err)
	}
	defer storage.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	settings := service.NewSettingsService(storage.Repo, defaults)
	settings.Load(ctx)
	mining := service.NewMiningService(storage.Repo, settings, engagement.Always{}, service.MiningOptions{})
	defer mining.Flush()

	snap, err := mining.Open(ctx, telegram.Identity{UserID: *tgID, FirstName: *name})
	if err != nil {
		logger.Fatal("open account failed", "tg_id", *tgID, "error", err)
	}

	if *balance != "" {
		amount, err := decimal.NewFromString(*balance)
		if err != nil {
			logger.Fatal("bad -balance", "error", err)
		}
		admin := service.NewAdminService(settings, mining, storage.Repo)
		if snap, err = admin.Grant(ctx, *tgID, amount); err != nil {
			logger.Fatal("grant failed", "error", err)
		}
	}

	token, err := service.GenerateJWT(*tgID)
	if err != nil {
		logger.Fatal("failed to generate token", "error", err)
	}

	fmt.Printf("token=%s\n", token)
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	_ = enc.Encode(snap)
}
