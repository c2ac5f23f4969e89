package tokenauth

import (
	"errors"
	"log/slog"
	"time"

	internalaudit "github.com/MrEthical07/tokenauth/internal/audit"
	"github.com/MrEthical07/tokenauth/internal/limiters"
	internalmetrics "github.com/MrEthical07/tokenauth/internal/metrics"
	"github.com/MrEthical07/tokenauth/internal/rate"
	"github.com/MrEthical07/tokenauth/jwt"
	"github.com/MrEthical07/tokenauth/password"
	"github.com/MrEthical07/tokenauth/refresh"
	"github.com/go-playground/validator/v10"
	"github.com/redis/go-redis/v9"
)

// timingEqualizer is hashed once at Build. Logins for unknown emails verify
// against it so they cost the same as a wrong password.
const timingEqualizer = "tokenauth-timing-equalizer"

// Builder assembles an [Engine]. A Builder is single use.
type Builder struct {
	config Config
	redis  redis.UniversalClient

	accounts      AccountRepository
	refreshTokens RefreshTokenRepository
	hasher        PasswordHasher
	limiter       RateLimiter
	auditSink     AuditSink
	notifier      PasswordResetNotifier
	deviceCheck   DeviceBindingCheck
	logger        *slog.Logger
	clock         func() time.Time

	built bool
}

// New returns a Builder seeded with [DefaultConfig].
func New() *Builder {
	return &Builder{
		config: DefaultConfig(),
	}
}

// WithConfig replaces the whole configuration. Secrets are copied.
func (b *Builder) WithConfig(cfg Config) *Builder {
	b.config = cloneConfig(cfg)
	return b
}

// WithRedis supplies a Redis client. When no refresh repository or rate
// limiter was set explicitly, Build backs both with this client.
func (b *Builder) WithRedis(client redis.UniversalClient) *Builder {
	b.redis = client
	return b
}

// WithAccounts sets the account repository. Required.
func (b *Builder) WithAccounts(repo AccountRepository) *Builder {
	b.accounts = repo
	return b
}

// WithRefreshTokens sets the refresh record repository.
func (b *Builder) WithRefreshTokens(repo RefreshTokenRepository) *Builder {
	b.refreshTokens = repo
	return b
}

// WithPasswordHasher overrides the Argon2id hasher built from
// Config.Password.
func (b *Builder) WithPasswordHasher(h PasswordHasher) *Builder {
	b.hasher = h
	return b
}

// WithRateLimiter sets the limiter gating login and reset requests.
func (b *Builder) WithRateLimiter(l RateLimiter) *Builder {
	b.limiter = l
	return b
}

func (b *Builder) WithAuditSink(sink AuditSink) *Builder {
	b.auditSink = sink
	return b
}

// WithPasswordResetNotifier sets the channel that delivers reset tokens.
// Without one, reset tokens are generated and stored but never delivered.
func (b *Builder) WithPasswordResetNotifier(n PasswordResetNotifier) *Builder {
	b.notifier = n
	return b
}

// WithDeviceBinding installs a refresh-time device consistency check.
// Nil (the default) disables device binding.
func (b *Builder) WithDeviceBinding(check DeviceBindingCheck) *Builder {
	b.deviceCheck = check
	return b
}

func (b *Builder) WithLogger(logger *slog.Logger) *Builder {
	b.logger = logger
	return b
}

// WithClock overrides the time source for token stamps, expiry checks and
// lockout windows.
func (b *Builder) WithClock(now func() time.Time) *Builder {
	b.clock = now
	return b
}

func (b *Builder) WithMetricsEnabled(enabled bool) *Builder {
	b.config.Metrics.Enabled = enabled
	return b
}

func (b *Builder) WithLatencyHistograms(enabled bool) *Builder {
	b.config.Metrics.EnableLatencyHistograms = enabled
	return b
}

// Build validates the configuration and returns a ready Engine. Every
// configuration problem is reported as an error wrapping [ErrConfiguration].
func (b *Builder) Build() (*Engine, error) {
	if b.built {
		return nil, errors.New("builder already used")
	}

	cfg := cloneConfig(b.config)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	if b.accounts == nil {
		return nil, configError("account repository required")
	}

	refreshTokens := b.refreshTokens
	if refreshTokens == nil {
		if b.redis == nil {
			return nil, configError("refresh token repository or redis client required")
		}
		refreshTokens = refresh.NewRedisStore(b.redis, "tokenauth")
	}

	limiter := b.limiter
	if limiter == nil && b.redis != nil {
		limiter = rate.New(b.redis, "tokenauth:rl")
	}

	logger := b.logger
	if logger == nil {
		logger = slog.Default()
	}

	clock := b.clock
	if clock == nil {
		clock = time.Now
	}

	alg, _ := jwt.ParseAlgorithm(cfg.Tokens.Algorithm)
	accessCodec, err := jwt.NewCodec(jwt.Config{
		Secret:    cfg.Tokens.AccessSecret,
		Algorithm: alg,
		Issuer:    cfg.Tokens.Issuer,
		Audience:  cfg.Tokens.Audience,
		Leeway:    cfg.Tokens.Leeway,
		Now:       clock,
	})
	if err != nil {
		return nil, configError(err.Error())
	}
	refreshCodec, err := jwt.NewCodec(jwt.Config{
		Secret:    cfg.Tokens.RefreshSecret,
		Algorithm: alg,
		Issuer:    cfg.Tokens.Issuer,
		Audience:  cfg.Tokens.Audience,
		Leeway:    cfg.Tokens.Leeway,
		Now:       clock,
	})
	if err != nil {
		return nil, configError(err.Error())
	}

	hasher := b.hasher
	if hasher == nil {
		argon, err := password.NewArgon2(cfg.argon2())
		if err != nil {
			return nil, configError(err.Error())
		}
		hasher = argon
	}
	dummyHash, err := hasher.Hash(timingEqualizer)
	if err != nil {
		return nil, configError("password hasher unusable: " + err.Error())
	}

	engine := &Engine{
		config:        cloneConfig(cfg),
		accounts:      b.accounts,
		refreshTokens: refreshTokens,
		hasher:        hasher,
		dummyHash:     dummyHash,
		limiter:       limiter,
		notifier:      b.notifier,
		deviceCheck:   b.deviceCheck,
		accessCodec:   accessCodec,
		refreshCodec:  refreshCodec,
		lockout: limiters.NewLockout(limiters.LockoutConfig{
			Enabled:   true,
			Threshold: cfg.Login.MaxFailedAttempts,
			Duration:  cfg.Login.LockoutDuration,
		}),
		validate: validator.New(validator.WithRequiredStructEnabled()),
		audit: internalaudit.NewDispatcher(internalaudit.Config{
			Enabled:    cfg.Audit.Enabled,
			BufferSize: cfg.Audit.BufferSize,
			DropIfFull: cfg.Audit.DropIfFull,
		}, b.auditSink),
		metrics: internalmetrics.New(internalmetrics.Config{
			Enabled:                 cfg.Metrics.Enabled,
			EnableLatencyHistograms: cfg.Metrics.EnableLatencyHistograms,
		}),
		logger: logger,
		now:    clock,
	}

	b.built = true

	return engine, nil
}
