package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"

	"github.com/veribadge/veribadge-core/internal/config"
	"github.com/veribadge/veribadge-core/internal/server"
	"github.com/veribadge/veribadge-core/internal/store"
	"github.com/veribadge/veribadge-core/pkg/badge"
	"github.com/veribadge/veribadge-core/pkg/replay"
	"github.com/veribadge/veribadge-core/pkg/signer"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the badge HTTP service",
	Long: `Start the verification badge HTTP service.

Configuration comes from VERIBADGE_* environment variables (or a .env
file). VERIBADGE_APP_KEY is required; signing secrets are derived from
it per key version. Set VERIBADGE_REDIS_ADDR to share replay state
across instances, otherwise an in-process guard is used.`,
	RunE: func(cmd *cobra.Command, _ []string) error {
		logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
		slog.SetDefault(logger)

		cfg, err := config.Load()
		if err != nil {
			return fmt.Errorf("failed to load config: %w", err)
		}

		keyring, err := cfg.Keyring()
		if err != nil {
			return fmt.Errorf("failed to build keyring: %w", err)
		}
		sgn := signer.New(keyring)

		badgeStore, err := store.Open(cfg.DatabasePath)
		if err != nil {
			return fmt.Errorf("failed to open badge store: %w", err)
		}

		var guard replay.Guard
		if cfg.RedisAddr != "" {
			rg := replay.NewRedisGuard(redis.NewClient(&redis.Options{
				Addr:     cfg.RedisAddr,
				Password: cfg.RedisPassword,
			}))
			if err := rg.Ping(cmd.Context()); err != nil {
				return fmt.Errorf("failed to reach redis at %s: %w", cfg.RedisAddr, err)
			}
			guard = rg
			logger.Info("replay guard using redis", "addr", cfg.RedisAddr)
		} else {
			mg := replay.NewMemoryGuard()
			defer mg.Stop()
			guard = mg
			logger.Info("replay guard using in-process memory")
		}

		issuer := badge.NewIssuer(sgn, badgeStore, badge.IssuerConfig{
			BaseURL:         cfg.BaseURL,
			DefaultLifetime: time.Duration(cfg.DefaultLifetimeHours) * time.Hour,
		}, logger)
		verifier := badge.NewVerifier(sgn, guard, badgeStore, badge.VerifierConfig{}, logger)
		revoker := badge.NewRevoker(badgeStore, nil, logger)

		srv := server.New(issuer, verifier, revoker, badgeStore, server.Options{
			ExposeFailureDetail: cfg.ExposeFailureDetail,
			RateWindow:          time.Duration(cfg.RateWindowMinutes) * time.Minute,
			GenerateLimit:       cfg.GenerateLimit,
			VerifyLimit:         cfg.VerifyLimit,
			RevokeLimit:         cfg.RevokeLimit,
		}, logger)

		errCh := make(chan error, 1)
		go func() {
			errCh <- srv.Start(cfg.ListenAddr)
		}()
		logger.Info("veribadge listening", "addr", cfg.ListenAddr)

		stop := make(chan os.Signal, 1)
		signal.Notify(stop, os.Interrupt, syscall.SIGTERM)

		select {
		case err := <-errCh:
			return err
		case sig := <-stop:
			logger.Info("shutting down", "signal", sig.String())
			ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			return srv.Shutdown(ctx)
		}
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
}
