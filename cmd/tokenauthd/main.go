// Command tokenauthd serves the distributor site's login, refresh, logout
// and password endpoints.
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/MrEthical07/tokenauth"
	"github.com/MrEthical07/tokenauth/account"
	"github.com/MrEthical07/tokenauth/internal/httpapi"
	"github.com/MrEthical07/tokenauth/internal/logger"
	"github.com/MrEthical07/tokenauth/metrics/export/prometheus"
	"github.com/MrEthical07/tokenauth/password"
	"github.com/MrEthical07/tokenauth/refresh"
	"github.com/MrEthical07/tokenauth/storage/postgres"
	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func main() {
	cfg, err := loadConfig()
	if err != nil {
		fmt.Fprintf(os.Stderr, "%s\n", err)
		os.Exit(1)
	}
	if err := run(context.Background(), cfg); err != nil {
		fmt.Fprintf(os.Stderr, "%s\n", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg config) error {
	ctx, cancel := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	log := logger.New(logger.Config{
		Level:  cfg.Log.Level,
		Format: logger.Format(cfg.Log.Format),
	})
	slog.SetDefault(log)

	builder := tokenauth.New().
		WithConfig(cfg.engineConfig()).
		WithLogger(log).
		WithAuditSink(tokenauth.NewSlogSink(log.With(slog.String("component", "audit")))).
		WithPasswordResetNotifier(logNotifier(log))

	closeStores, err := wireStores(ctx, cfg, builder, log)
	if err != nil {
		return err
	}
	defer closeStores()

	if cfg.LegacyBcrypt {
		hasher, err := legacyHasher(cfg)
		if err != nil {
			return err
		}
		builder.WithPasswordHasher(hasher)
	}

	engine, err := builder.Build()
	if err != nil {
		return err
	}
	defer engine.Close()
	logSecurityReport(log, engine.SecurityReport())

	var metrics http.Handler
	if cfg.Metrics {
		metrics = prometheus.NewPrometheusExporter(engine).Handler()

		stopTelemetry, err := startTelemetry(ctx, engine, log, cfg.CounterLogInterval)
		if err != nil {
			return err
		}
		defer func() {
			if err := stopTelemetry(context.Background()); err != nil {
				log.Warn("telemetry shutdown failed", slog.String("error", err.Error()))
			}
		}()
	}
	e := httpapi.New(engine, httpapi.Options{
		Logger:     log,
		TrustProxy: cfg.Server.TrustProxy,
		Metrics:    metrics,
	})

	srv := &http.Server{
		Addr:         cfg.Server.Addr,
		Handler:      e,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info("listening", slog.String("addr", cfg.Server.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	log.Info("shutting down")
	shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancelShutdown()
	return srv.Shutdown(shutdownCtx)
}

// wireStores picks the account and refresh backends. Postgres holds both
// when configured; otherwise accounts live in memory. Redis, real or
// embedded, backs the login throttle and, without Postgres, refresh records.
func wireStores(ctx context.Context, cfg config, b *tokenauth.Builder, log *slog.Logger) (func(), error) {
	var closers []func()
	cleanup := func() {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
	}

	if cfg.PostgresDSN != "" {
		pool, err := postgres.Open(ctx, cfg.PostgresDSN, postgres.PoolConfig{MaxConns: cfg.PostgresConns})
		if err != nil {
			return cleanup, err
		}
		closers = append(closers, pool.Close)
		if err := postgres.Migrate(ctx, pool); err != nil {
			cleanup()
			return func() {}, err
		}
		b.WithAccounts(postgres.NewAccountStore(pool)).
			WithRefreshTokens(postgres.NewRefreshStore(pool))
		log.Info("postgres stores ready")
	} else {
		b.WithAccounts(account.NewMemoryStore())
		log.Warn("no POSTGRES_DSN; accounts are kept in memory")
	}

	addr := cfg.RedisAddr
	if addr == "" && cfg.EmbeddedRedis {
		mr, err := miniredis.Run()
		if err != nil {
			cleanup()
			return func() {}, fmt.Errorf("start embedded redis: %w", err)
		}
		closers = append(closers, mr.Close)
		addr = mr.Addr()
		log.Warn("using embedded redis", slog.String("addr", addr))
	}
	if addr != "" {
		client := redis.NewUniversalClient(&redis.UniversalOptions{Addrs: []string{addr}})
		closers = append(closers, func() { _ = client.Close() })
		if err := client.Ping(ctx).Err(); err != nil {
			cleanup()
			return func() {}, fmt.Errorf("redis ping: %w", err)
		}
		b.WithRedis(client)
	} else if cfg.PostgresDSN == "" {
		b.WithRefreshTokens(refresh.NewMemoryStore())
	}
	return cleanup, nil
}

func legacyHasher(cfg config) (tokenauth.PasswordHasher, error) {
	pc := cfg.engineConfig().Password
	argon, err := password.NewArgon2(password.Config{
		Memory:      pc.Memory,
		Time:        pc.Time,
		Parallelism: pc.Parallelism,
		SaltLength:  pc.SaltLength,
		KeyLength:   pc.KeyLength,
	})
	if err != nil {
		return nil, err
	}
	legacy, err := password.NewBcrypt(0)
	if err != nil {
		return nil, err
	}
	return password.Chain{Primary: argon, Legacy: legacy}, nil
}

// logNotifier records that a reset was issued without the token itself.
// TODO: hand reset tokens to the storefront mail relay once it exposes an API.
func logNotifier(log *slog.Logger) tokenauth.PasswordResetNotifier {
	return tokenauth.PasswordResetNotifierFunc(func(ctx context.Context, acct tokenauth.Account, _ string, expiresAt time.Time) error {
		log.LogAttrs(ctx, slog.LevelInfo, "password reset issued",
			slog.String("user_id", acct.ID),
			slog.Time("expires_at", expiresAt),
		)
		return nil
	})
}

func logSecurityReport(log *slog.Logger, r tokenauth.SecurityReport) {
	log.Info("security posture",
		slog.String("alg", r.SigningAlgorithm),
		slog.Duration("access_ttl", r.AccessTTL),
		slog.Duration("refresh_ttl", r.RefreshTTL),
		slog.Bool("rotation", r.RefreshRotationEnabled),
		slog.Int("max_refresh_tokens", r.MaxRefreshTokens),
		slog.Int("lockout_threshold", r.LockoutThreshold),
		slog.Duration("lockout_duration", r.LockoutDuration),
		slog.Bool("rate_limiting", r.RateLimitingActive),
		slog.Bool("email_verification", r.EmailVerificationActive),
		slog.Bool("reset_deliverable", r.PasswordResetDeliverable),
		slog.Bool("audit", r.AuditEnabled),
		slog.Bool("metrics", r.MetricsEnabled),
	)
}
