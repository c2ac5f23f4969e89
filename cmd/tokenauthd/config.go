package main

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/MrEthical07/tokenauth"
	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

// config is read from TOKENAUTH_* environment variables, optionally seeded
// from a .env file in the working directory.
type config struct {
	Server struct {
		Addr            string        `envconfig:"ADDR" default:":8080"`
		ReadTimeout     time.Duration `envconfig:"READ_TIMEOUT" default:"5s"`
		WriteTimeout    time.Duration `envconfig:"WRITE_TIMEOUT" default:"10s"`
		ShutdownTimeout time.Duration `envconfig:"SHUTDOWN_TIMEOUT" default:"15s"`
		TrustProxy      bool          `envconfig:"TRUST_PROXY" default:"false"`
	}
	Log struct {
		Level  string `envconfig:"LOG_LEVEL" default:"info"`
		Format string `envconfig:"LOG_FORMAT" default:"json"`
	}
	Tokens struct {
		AccessSecret   string        `envconfig:"ACCESS_SECRET" required:"true"`
		RefreshSecret  string        `envconfig:"REFRESH_SECRET" required:"true"`
		AccessTTL      time.Duration `envconfig:"ACCESS_TTL" default:"15m"`
		RefreshTTL     time.Duration `envconfig:"REFRESH_TTL" default:"168h"`
		Issuer         string        `envconfig:"ISSUER" default:"tokenauth"`
		Audience       string        `envconfig:"AUDIENCE"`
		Algorithm      string        `envconfig:"ALGORITHM" default:"HS256"`
		EnableRotation bool          `envconfig:"ROTATION" default:"true"`
		MaxRefresh     int           `envconfig:"MAX_REFRESH_TOKENS" default:"5"`
	}
	Login struct {
		MaxFailedAttempts        int           `envconfig:"MAX_FAILED_ATTEMPTS" default:"5"`
		LockoutDuration          time.Duration `envconfig:"LOCKOUT_DURATION" default:"30m"`
		RequireEmailVerification bool          `envconfig:"REQUIRE_EMAIL_VERIFICATION" default:"false"`
	}
	// LegacyBcrypt accepts bcrypt digests from an imported account table.
	LegacyBcrypt bool `envconfig:"LEGACY_BCRYPT" default:"false"`

	PostgresDSN   string `envconfig:"POSTGRES_DSN"`
	PostgresConns int32  `envconfig:"POSTGRES_MAX_CONNS" default:"10"`
	RedisAddr     string `envconfig:"REDIS_ADDR"`
	// EmbeddedRedis runs an in-process miniredis when RedisAddr is empty.
	EmbeddedRedis bool `envconfig:"EMBEDDED_REDIS" default:"false"`

	Audit   bool `envconfig:"AUDIT" default:"true"`
	Metrics bool `envconfig:"METRICS" default:"true"`
	// CounterLogInterval is how often OTel-collected counters are logged.
	// Zero keeps the provider installed without logging.
	CounterLogInterval time.Duration `envconfig:"COUNTER_LOG_INTERVAL" default:"1m"`
}

func loadConfig() (config, error) {
	if err := godotenv.Load(); err != nil {
		slog.Debug("no .env file loaded", slog.String("error", err.Error()))
	}

	var cfg config
	if err := envconfig.Process("tokenauth", &cfg); err != nil {
		return config{}, fmt.Errorf("load config: %w", err)
	}
	return cfg, nil
}

func (c config) engineConfig() tokenauth.Config {
	ec := tokenauth.DefaultConfig()
	ec.Tokens.AccessSecret = []byte(c.Tokens.AccessSecret)
	ec.Tokens.RefreshSecret = []byte(c.Tokens.RefreshSecret)
	ec.Tokens.AccessTTL = c.Tokens.AccessTTL
	ec.Tokens.RefreshTTL = c.Tokens.RefreshTTL
	ec.Tokens.Issuer = c.Tokens.Issuer
	ec.Tokens.Audience = c.Tokens.Audience
	ec.Tokens.Algorithm = c.Tokens.Algorithm
	ec.Tokens.EnableRotation = c.Tokens.EnableRotation
	ec.Tokens.MaxRefreshTokens = c.Tokens.MaxRefresh

	ec.Login.MaxFailedAttempts = c.Login.MaxFailedAttempts
	ec.Login.LockoutDuration = c.Login.LockoutDuration
	ec.Login.RequireEmailVerification = c.Login.RequireEmailVerification

	ec.Audit.Enabled = c.Audit
	ec.Metrics.Enabled = c.Metrics
	ec.Metrics.EnableLatencyHistograms = c.Metrics
	return ec
}
