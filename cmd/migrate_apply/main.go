package main

import (
	"context"
	"flag"
	"fmt"
	"time"

	"ton_miner/internal/db"
	"ton_miner/internal/logger"
	"ton_miner/internal/migrations"

	"github.com/caarlos0/env/v10"
	"github.com/joho/godotenv"
)

type options struct {
	DatabaseURL string `env:"DATABASE_URL,required"`
	LogLevel    string `env:"LOG_LEVEL" envDefault:"info"`
}

func main() {
	apply := flag.Bool("apply", false, "apply migrations (default lists them)")
	flag.Parse()

	_ = godotenv.Load()
	var opts options
	if err := env.Parse(&opts); err != nil {
		logger.Fatal("failed to parse env", "error", err)
	}
	logger.Init(opts.LogLevel, false)

	if !*apply {
		names, err := migrations.Names()
		if err != nil {
			logger.Fatal("read migrations", "error", err)
		}
		for _, name := range names {
			fmt.Println(name)
		}
		return
	}

	pool := db.Connect(opts.DatabaseURL)
	defer pool.Close()

	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	applied, err := migrations.Apply(ctx, pool)
	for _, name := range applied {
		fmt.Printf("applied %s\n", name)
	}
	if err != nil {
		logger.Fatal("migration failed", "error", err)
	}
}
