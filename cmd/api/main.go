package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/coopagro/gestao/internal/auth"
	"github.com/coopagro/gestao/internal/config"
	"github.com/coopagro/gestao/internal/db"
	internalhttp "github.com/coopagro/gestao/internal/http"
	"github.com/coopagro/gestao/internal/metrics"
	"github.com/coopagro/gestao/internal/repo"
	"github.com/coopagro/gestao/internal/service"
)

func main() {
	if err := run(); err != nil {
		log.Fatal().Err(err).Msg("api encerrada com erro")
	}
}

func run() error {
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: time.RFC3339})

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("config: %w", err)
	}

	ctx := context.Background()

	pool, err := db.NewPool(ctx, cfg.DBDSN)
	if err != nil {
		return fmt.Errorf("db: %w", err)
	}
	defer pool.Close()

	if cfg.DBMigrate {
		if err := db.Migrate(ctx, pool); err != nil {
			return fmt.Errorf("migrate: %w", err)
		}
	}

	redisOpts, err := redis.ParseURL(cfg.RedisURL)
	if err != nil {
		return fmt.Errorf("redis parse: %w", err)
	}
	redisClient := redis.NewClient(redisOpts)
	defer redisClient.Close()

	var federado *auth.FederatedVerifier
	if cfg.Federated.Enabled() {
		federado = auth.NewFederatedVerifier(cfg.Federated.Issuer, cfg.Federated.Audience, cfg.Federated.Secret)
	} else {
		log.Warn().Msg("login federado desabilitado: FEDERATED_ISSUER/FEDERATED_SECRET ausentes")
	}

	authService := service.NewAuthService(service.AuthDeps{
		Repo:       repo.New(pool),
		Redis:      redisClient,
		JWT:        auth.NewJWTManager(cfg.JWTSecret, cfg.JWTAccessTTL),
		Federado:   federado,
		RefreshTTL: cfg.JWTRefreshTTL,
		PendingTTL: cfg.PendingProfileTTL,
		Limits: service.LoginLimits{
			MaxAttempts: cfg.Login.MaxAttempts,
			Window:      cfg.Login.Window,
		},
	})

	router, err := internalhttp.NewRouter(ctx, cfg, pool, redisClient, authService, metrics.New())
	if err != nil {
		return fmt.Errorf("router: %w", err)
	}

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info().Msgf("API ouvindo em :%d", cfg.Port)
		errCh <- srv.ListenAndServe()
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigCh:
		log.Info().Str("signal", sig.String()).Msg("encerrando...")
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	err = srv.Shutdown(shutdownCtx)
	router.Aguardar()
	return err
}
