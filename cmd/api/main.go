package main

import (
	"context"
	"fmt"
	"log"
	"time"

	"authpay-prototype/core"
)

func main() {
	cfg, err := core.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}
	ctx := context.Background()

	logCloser, err := core.SetupLogging(cfg, "api.log")
	if err != nil {
		log.Fatalf("failed to setup logging: %v", err)
	}
	defer logCloser.Close()

	if err := core.Migrate(ctx, cfg.DatabaseURL); err != nil {
		log.Fatalf("failed to migrate database: %v", err)
	}

	db, err := core.Connect(ctx, cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("failed to connect database: %v", err)
	}
	defer db.Close()

	userRepo := core.NewPgUserRepository(db)
	tokenRepo := core.NewPgTokenRepository(db)
	payments := core.NewPgPaymentProcessor(db)

	throttle := core.NewBruteForceThrottle(cfg.MaxFailedAttempts, time.Duration(cfg.LockMinutes)*time.Minute)
	throttle.StartJanitor(ctx, time.Minute)

	signer := core.NewTokenSigner(cfg)
	authService := core.NewAuthService(userRepo, tokenRepo, throttle, signer)

	router := core.NewRouter(cfg, authService, userRepo, payments, signer, db)

	addr := fmt.Sprintf(":%s", cfg.Port)
	log.Printf("starting api server on %s (env=%s)", addr, cfg.Environment)
	if err := router.Run(addr); err != nil {
		log.Fatalf("server failed: %v", err)
	}
}
