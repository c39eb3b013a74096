package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"storefront/internal/config"
	"storefront/internal/db"
	"storefront/internal/logger"
	tokenrepo "storefront/internal/repository/token"
	userrepo "storefront/internal/repository/user"
	"storefront/internal/service/identity"
	"storefront/internal/verifier"
)

func main() {
	cfg := config.FromEnv()
	log := logger.New(logger.Config{Env: cfg.Env, Level: cfg.LogLevel, Component: "verifier"})

	ctx := context.Background()
	dbpool, err := db.Connect(ctx, cfg.DBConnString)
	if err != nil {
		log.Fatal().Err(err).Msg("connect to db")
	}
	defer dbpool.Close()

	identitySvc := identity.New(
		userrepo.NewPostgres(dbpool, &log),
		tokenrepo.NewPostgres(dbpool),
		identity.Options{
			Secret:      cfg.JWTSecret,
			Issuer:      cfg.JWTIssuer,
			AccessTTL:   cfg.AccessTTL,
			RefreshTTL:  cfg.RefreshTTL,
			AdminEmails: cfg.AdminEmails,
		},
		&log,
	)

	srv, err := verifier.New(cfg.VerifierAddr, log, identitySvc, cfg.CORSOrigins)
	if err != nil {
		log.Fatal().Err(err).Msg("init verifier")
	}

	serverErr := make(chan error, 1)
	go func() {
		log.Info().Str("addr", cfg.VerifierAddr).Msg("starting verifier")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
	}()

	stopCh := make(chan os.Signal, 1)
	signal.Notify(stopCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-stopCh:
		log.Info().Str("signal", sig.String()).Msg("shutting down")
	case err := <-serverErr:
		log.Error().Err(err).Msg("server error")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("graceful shutdown failed")
	}
}
