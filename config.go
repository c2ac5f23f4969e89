package tokenauth

import (
	"crypto/subtle"
	"fmt"
	"strings"
	"time"

	"github.com/MrEthical07/tokenauth/jwt"
	"github.com/MrEthical07/tokenauth/password"
)

const minSecretBytes = 32

// Config groups every engine setting. Instances are configured during
// initialization and treated as immutable once passed to [Builder.WithConfig].
type Config struct {
	Tokens        TokenConfig
	Login         LoginConfig
	Password      PasswordConfig
	PasswordReset PasswordResetConfig
	MFA           MFAConfig
	Audit         AuditConfig
	Metrics       MetricsConfig
}

/*
====================================
TOKEN CONFIG
====================================
*/

// TokenConfig holds the signing secrets and lifetimes of both token kinds.
// AccessSecret and RefreshSecret must be distinct.
type TokenConfig struct {
	AccessSecret  []byte
	RefreshSecret []byte
	AccessTTL     time.Duration
	RefreshTTL    time.Duration
	Issuer        string
	Audience      string
	Algorithm     string // "HS256" (default), "HS384", "HS512"
	Leeway        time.Duration

	EnableRotation   bool
	MaxRefreshTokens int
}

/*
====================================
LOGIN CONFIG
====================================
*/

// LoginConfig controls lockout, email verification gating and the
// per-source-IP login throttle.
type LoginConfig struct {
	MaxFailedAttempts        int
	LockoutDuration          time.Duration
	RequireEmailVerification bool
	RateLimit                RateLimitPolicy
}

/*
====================================
PASSWORD CONFIG
====================================
*/

// PasswordConfig holds Argon2id cost parameters and the policy applied to
// new passwords. Memory is in KiB.
type PasswordConfig struct {
	Memory      uint32
	Time        uint32
	Parallelism uint8
	SaltLength  uint32
	KeyLength   uint32
	Policy      password.Policy
}

/*
====================================
PASSWORD RESET CONFIG
====================================
*/

// PasswordResetConfig controls reset token lifetime and the request throttle.
type PasswordResetConfig struct {
	TokenTTL  time.Duration
	RateLimit RateLimitPolicy
}

/*
====================================
MFA CONFIG
====================================
*/

// MFAConfig controls the pending-MFA challenge token.
type MFAConfig struct {
	ChallengeTTL time.Duration
}

/*
====================================
AUDIT CONFIG
====================================
*/

type AuditConfig struct {
	Enabled    bool
	BufferSize int
	DropIfFull bool
}

/*
====================================
METRICS CONFIG
====================================
*/

type MetricsConfig struct {
	Enabled                 bool
	EnableLatencyHistograms bool
}

// DefaultConfig returns production defaults. Secrets are left empty and must
// be supplied before [Builder.Build].
func DefaultConfig() Config {
	argon := password.DefaultConfig()
	return Config{
		Tokens: TokenConfig{
			AccessTTL:        15 * time.Minute,
			RefreshTTL:       7 * 24 * time.Hour,
			Algorithm:        string(jwt.HS256),
			EnableRotation:   true,
			MaxRefreshTokens: 5,
		},
		Login: LoginConfig{
			MaxFailedAttempts: 5,
			LockoutDuration:   30 * time.Minute,
			RateLimit: RateLimitPolicy{
				Name:   "login",
				Limit:  10,
				Window: 15 * time.Minute,
			},
		},
		Password: PasswordConfig{
			Memory:      argon.Memory,
			Time:        argon.Time,
			Parallelism: argon.Parallelism,
			SaltLength:  argon.SaltLength,
			KeyLength:   argon.KeyLength,
			Policy:      password.DefaultPolicy(),
		},
		PasswordReset: PasswordResetConfig{
			TokenTTL: time.Hour,
			RateLimit: RateLimitPolicy{
				Name:   "password_reset",
				Limit:  5,
				Window: time.Hour,
			},
		},
		MFA: MFAConfig{
			ChallengeTTL: 5 * time.Minute,
		},
		Audit: AuditConfig{
			Enabled:    false,
			BufferSize: 1024,
			DropIfFull: true,
		},
		Metrics: MetricsConfig{
			Enabled: false,
		},
	}
}

func cloneConfig(cfg Config) Config {
	out := cfg
	out.Tokens.AccessSecret = cloneBytes(cfg.Tokens.AccessSecret)
	out.Tokens.RefreshSecret = cloneBytes(cfg.Tokens.RefreshSecret)
	return out
}

func cloneBytes(b []byte) []byte {
	if b == nil {
		return nil
	}
	out := make([]byte, len(b))
	copy(out, b)
	return out
}

func configError(msg string) error {
	return fmt.Errorf("%w: %s", ErrConfiguration, msg)
}

// Validate checks cfg for settings the engine cannot run with. Every
// returned error wraps [ErrConfiguration].
func (c *Config) Validate() error {
	if c == nil {
		return configError("config is nil")
	}

	if len(c.Tokens.AccessSecret) == 0 {
		return configError("Tokens AccessSecret is required")
	}
	if len(c.Tokens.RefreshSecret) == 0 {
		return configError("Tokens RefreshSecret is required")
	}
	if subtle.ConstantTimeCompare(c.Tokens.AccessSecret, c.Tokens.RefreshSecret) == 1 {
		return configError("Tokens AccessSecret and RefreshSecret must differ")
	}
	if len(c.Tokens.AccessSecret) < minSecretBytes || len(c.Tokens.RefreshSecret) < minSecretBytes {
		return configError("Tokens secrets must be at least 32 bytes")
	}
	if c.Tokens.AccessTTL <= 0 {
		return configError("Tokens AccessTTL must be > 0")
	}
	if c.Tokens.RefreshTTL <= 0 {
		return configError("Tokens RefreshTTL must be > 0")
	}
	if c.Tokens.AccessTTL >= c.Tokens.RefreshTTL {
		return configError("Tokens AccessTTL must be shorter than RefreshTTL")
	}
	if _, err := jwt.ParseAlgorithm(c.Tokens.Algorithm); err != nil {
		return configError("Tokens Algorithm must be HS256, HS384, or HS512")
	}
	if c.Tokens.Leeway < 0 || c.Tokens.Leeway > 2*time.Minute {
		return configError("Tokens Leeway must be between 0 and 2m")
	}
	if c.Tokens.MaxRefreshTokens < 1 {
		return configError("Tokens MaxRefreshTokens must be >= 1")
	}
	if strings.TrimSpace(c.Tokens.Issuer) != c.Tokens.Issuer || strings.TrimSpace(c.Tokens.Audience) != c.Tokens.Audience {
		return configError("Tokens Issuer and Audience must not carry surrounding whitespace")
	}

	if c.Login.MaxFailedAttempts < 1 {
		return configError("Login MaxFailedAttempts must be >= 1")
	}
	if c.Login.LockoutDuration <= 0 {
		return configError("Login LockoutDuration must be > 0")
	}
	if err := validatePolicy("Login", c.Login.RateLimit); err != nil {
		return err
	}

	if _, err := password.NewArgon2(c.argon2()); err != nil {
		return configError("Password " + err.Error())
	}
	if c.Password.Policy.MinLength < 1 {
		return configError("Password Policy MinLength must be >= 1")
	}
	if c.Password.Policy.MaxLength != 0 && c.Password.Policy.MaxLength < c.Password.Policy.MinLength {
		return configError("Password Policy MaxLength must be >= MinLength")
	}

	if c.PasswordReset.TokenTTL <= 0 {
		return configError("PasswordReset TokenTTL must be > 0")
	}
	if err := validatePolicy("PasswordReset", c.PasswordReset.RateLimit); err != nil {
		return err
	}

	if c.MFA.ChallengeTTL <= 0 {
		return configError("MFA ChallengeTTL must be > 0")
	}
	if c.MFA.ChallengeTTL > c.Tokens.AccessTTL {
		return configError("MFA ChallengeTTL must not exceed Tokens AccessTTL")
	}

	if c.Audit.Enabled && c.Audit.BufferSize <= 0 {
		return configError("Audit BufferSize must be > 0 when audit is enabled")
	}

	return nil
}

// validatePolicy accepts a zero policy as "disabled".
func validatePolicy(section string, p RateLimitPolicy) error {
	if p.Limit == 0 && p.Window == 0 {
		return nil
	}
	if p.Limit < 0 || p.Window <= 0 {
		return configError(section + " RateLimit needs a positive Limit and Window")
	}
	if strings.TrimSpace(p.Name) == "" {
		return configError(section + " RateLimit Name is required")
	}
	return nil
}

func (c *Config) argon2() password.Config {
	return password.Config{
		Memory:      c.Password.Memory,
		Time:        c.Password.Time,
		Parallelism: c.Password.Parallelism,
		SaltLength:  c.Password.SaltLength,
		KeyLength:   c.Password.KeyLength,
	}
}
