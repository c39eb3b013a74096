package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"storefront/internal/config"
	"storefront/internal/db"
	"storefront/internal/logger"
	"storefront/internal/migrate"
)

func main() {
	var steps int
	flag.IntVar(&steps, "steps", 1, "Number of migrations to roll back with the down command")
	flag.Usage = func() {
		fmt.Fprintln(flag.CommandLine.Output(), "usage: migrate [-steps n] up|down|version")
		flag.PrintDefaults()
	}
	flag.Parse()

	cmd := "up"
	if flag.NArg() > 0 {
		cmd = flag.Arg(0)
	}

	cfg := config.FromEnv()
	log := logger.New(logger.Config{Env: cfg.Env, Level: cfg.LogLevel, Component: "migrate"})

	ctx := context.Background()
	pool, err := db.Connect(ctx, cfg.DBConnString)
	if err != nil {
		log.Fatal().Err(err).Msg("connect db")
	}
	defer pool.Close()

	switch cmd {
	case "up":
		if err := migrate.Apply(ctx, pool); err != nil {
			log.Fatal().Err(err).Msg("apply migrations")
		}
		log.Info().Msg("migrations applied")
	case "down":
		if err := migrate.Rollback(ctx, pool, steps); err != nil {
			log.Fatal().Err(err).Int("steps", steps).Msg("roll back migrations")
		}
		log.Info().Int("steps", steps).Msg("migrations rolled back")
	case "version":
		version, dirty, err := migrate.Version(ctx, pool)
		if err != nil {
			log.Fatal().Err(err).Msg("read migration version")
		}
		log.Info().Uint("version", version).Bool("dirty", dirty).Msg("schema version")
	default:
		flag.Usage()
		os.Exit(2)
	}
}
