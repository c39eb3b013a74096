package main

import (
	"context"
	"flag"

	"storefront/internal/config"
	"storefront/internal/db"
	"storefront/internal/logger"
	"storefront/internal/seed"
)

func main() {
	cfg := config.FromEnv()

	defaultAdmin := ""
	if len(cfg.AdminEmails) > 0 {
		defaultAdmin = cfg.AdminEmails[0]
	}
	var opts seed.Options
	flag.StringVar(&opts.AdminEmail, "admin-email", defaultAdmin, "Admin account to create (empty to skip)")
	flag.StringVar(&opts.AdminPassword, "admin-password", "admin-password", "Password for the admin account")
	flag.StringVar(&opts.UserEmail, "user-email", "shopper@example.com", "Shopper account to create (empty to skip)")
	flag.StringVar(&opts.UserPassword, "user-password", "shopper-password", "Password for the shopper account")
	flag.Parse()

	log := logger.New(logger.Config{Env: cfg.Env, Level: cfg.LogLevel, Component: "seed"})

	ctx := context.Background()
	pool, err := db.Connect(ctx, cfg.DBConnString)
	if err != nil {
		log.Fatal().Err(err).Msg("connect db")
	}
	defer pool.Close()

	if err := seed.Apply(ctx, pool, opts); err != nil {
		log.Fatal().Err(err).Msg("seed apply")
	}

	log.Info().Str("admin", opts.AdminEmail).Str("user", opts.UserEmail).Msg("seed applied")
}
