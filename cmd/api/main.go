package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"storefront/internal/config"
	"storefront/internal/db"
	"storefront/internal/httpserver"
	"storefront/internal/logger"
	cartsessionrepo "storefront/internal/repository/cartsession"
	orderrepo "storefront/internal/repository/order"
	productrepo "storefront/internal/repository/product"
	tokenrepo "storefront/internal/repository/token"
	userrepo "storefront/internal/repository/user"
	"storefront/internal/service/catalog"
	"storefront/internal/service/identity"
	ordersvc "storefront/internal/service/order"
	"storefront/internal/session"
	"storefront/internal/storage"

	"github.com/redis/go-redis/v9"
)

const sweepInterval = time.Minute

func main() {
	cfg := config.FromEnv()
	log := logger.New(logger.Config{Env: cfg.Env, Level: cfg.LogLevel, Component: "api"})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	dbpool, err := db.Connect(ctx, cfg.DBConnString)
	if err != nil {
		log.Fatal().Err(err).Msg("connect to db")
	}
	defer dbpool.Close()

	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})
	defer rdb.Close()

	identitySvc := identity.New(
		userrepo.NewPostgres(dbpool, &log),
		tokenrepo.NewPostgres(dbpool),
		identity.Options{
			Secret:           cfg.JWTSecret,
			Issuer:           cfg.JWTIssuer,
			AccessTTL:        cfg.AccessTTL,
			RefreshTTL:       cfg.RefreshTTL,
			AdminEmails:      cfg.AdminEmails,
			SelfServiceAdmin: cfg.SelfServiceAdmin,
		},
		&log,
	)

	files := storage.NewLocalStorage(cfg.StoragePath, cfg.FileURLHost)
	catalogSvc := catalog.New(productrepo.NewPostgres(dbpool, &log), files, &log)
	orderSvc := ordersvc.New(orderrepo.NewPostgres(dbpool, &log), &log)

	sessions := session.NewManager(session.Config{
		Catalog:   catalogSvc,
		Store:     cartsessionrepo.NewRedis(rdb, cfg.SessionTTL),
		Refresher: identitySvc,
		IdleTTL:   cfg.SessionTTL,
	}, &log)
	unsubscribe := identitySvc.OnAuthStateChange(sessions.HandleAuthChange)
	defer unsubscribe()
	go sessions.Run(ctx, sweepInterval)

	srv, err := httpserver.New(cfg.HTTPAddr, log, httpserver.Deps{
		IdentitySvc: identitySvc,
		CatalogSvc:  catalogSvc,
		OrderSvc:    orderSvc,
		Sessions:    sessions,
		Files:       files,
		Ready: map[string]httpserver.ReadyCheck{
			"postgres": dbpool.Ping,
			"redis":    func(ctx context.Context) error { return rdb.Ping(ctx).Err() },
		},
	}, httpserver.Options{
		CORSOrigins:  cfg.CORSOrigins,
		SecureCookie: cfg.Env != "development",
		SessionTTL:   cfg.SessionTTL,
	})
	if err != nil {
		log.Fatal().Err(err).Msg("init server")
	}

	serverErr := make(chan error, 1)
	go func() {
		log.Info().Str("addr", cfg.HTTPAddr).Msg("starting http server")
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
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("graceful shutdown failed")
	} else {
		log.Info().Msg("server stopped")
	}
}
