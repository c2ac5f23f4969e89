package tokenauth

import "time"

// SecurityReport is a read-only snapshot of the engine's security posture,
// meant for startup logs and health endpoints. It never carries secrets.
type SecurityReport struct {
	SigningAlgorithm         string
	AccessTTL                time.Duration
	RefreshTTL               time.Duration
	Argon2                   PasswordConfigReport
	RefreshRotationEnabled   bool
	MaxRefreshTokens         int
	LockoutThreshold         int
	LockoutDuration          time.Duration
	RateLimitingActive       bool
	EmailVerificationActive  bool
	DeviceBindingEnabled     bool
	PasswordResetDeliverable bool
	AuditEnabled             bool
	MetricsEnabled           bool
}

type PasswordConfigReport struct {
	Memory      uint32
	Time        uint32
	Parallelism uint8
	SaltLength  uint32
	KeyLength   uint32
}

func (e *Engine) SecurityReport() SecurityReport {
	if e == nil {
		return SecurityReport{}
	}

	rateLimiting := e.limiter != nil &&
		e.config.Login.RateLimit.Limit > 0 &&
		e.config.Login.RateLimit.Window > 0

	return SecurityReport{
		SigningAlgorithm: e.config.Tokens.Algorithm,
		AccessTTL:        e.config.Tokens.AccessTTL,
		RefreshTTL:       e.config.Tokens.RefreshTTL,
		Argon2: PasswordConfigReport{
			Memory:      e.config.Password.Memory,
			Time:        e.config.Password.Time,
			Parallelism: e.config.Password.Parallelism,
			SaltLength:  e.config.Password.SaltLength,
			KeyLength:   e.config.Password.KeyLength,
		},
		RefreshRotationEnabled:   e.config.Tokens.EnableRotation,
		MaxRefreshTokens:         e.config.Tokens.MaxRefreshTokens,
		LockoutThreshold:         e.config.Login.MaxFailedAttempts,
		LockoutDuration:          e.config.Login.LockoutDuration,
		RateLimitingActive:       rateLimiting,
		EmailVerificationActive:  e.config.Login.RequireEmailVerification,
		DeviceBindingEnabled:     e.deviceCheck != nil,
		PasswordResetDeliverable: e.notifier != nil,
		AuditEnabled:             e.audit != nil,
		MetricsEnabled:           e.metrics.Enabled(),
	}
}
