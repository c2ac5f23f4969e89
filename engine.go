package tokenauth

import (
	"context"
	"errors"
	"log/slog"
	"time"

	internalaudit "github.com/MrEthical07/tokenauth/internal/audit"
	"github.com/MrEthical07/tokenauth/internal/limiters"
	internalmetrics "github.com/MrEthical07/tokenauth/internal/metrics"
	"github.com/MrEthical07/tokenauth/jwt"
	"github.com/go-playground/validator/v10"
)

// Engine issues, verifies, rotates and revokes session tokens and runs the
// account flows built on them. An Engine is safe for concurrent use.
type Engine struct {
	config        Config
	accounts      AccountRepository
	refreshTokens RefreshTokenRepository
	hasher        PasswordHasher
	dummyHash     string
	limiter       RateLimiter
	notifier      PasswordResetNotifier
	deviceCheck   DeviceBindingCheck
	accessCodec   *jwt.Codec
	refreshCodec  *jwt.Codec
	lockout       *limiters.Lockout
	validate      *validator.Validate
	audit         *internalaudit.Dispatcher
	metrics       *internalmetrics.Metrics
	logger        *slog.Logger
	now           func() time.Time
}

// Close flushes and stops the audit dispatcher. Stores are owned by the
// caller and are not closed.
func (e *Engine) Close() {
	if e == nil {
		return
	}
	if e.audit != nil {
		e.audit.Close()
	}
}

// AuditDropped reports how many audit events were discarded because the
// dispatcher buffer was full.
func (e *Engine) AuditDropped() uint64 {
	if e == nil || e.audit == nil {
		return 0
	}
	return e.audit.Dropped()
}

// MetricsSnapshot returns the current counters. A disabled metrics config
// yields empty maps.
func (e *Engine) MetricsSnapshot() MetricsSnapshot {
	if e == nil || e.metrics == nil {
		return MetricsSnapshot{
			Counters:   map[MetricID]uint64{},
			Histograms: map[MetricID][]uint64{},
		}
	}
	return e.metrics.Snapshot()
}

func (e *Engine) metricInc(id MetricID) {
	if e == nil || e.metrics == nil {
		return
	}
	e.metrics.Inc(id)
}

func (e *Engine) metricAdd(id MetricID, n int) {
	if e == nil || e.metrics == nil || n <= 0 {
		return
	}
	e.metrics.Add(id, uint64(n))
}

func (e *Engine) clock() time.Time {
	return e.now()
}

// internalError logs cause and returns the opaque ErrInternal. Caller
// cancellation is passed through unchanged.
func (e *Engine) internalError(ctx context.Context, op string, cause error, attrs ...slog.Attr) error {
	if isContextErr(cause) {
		return cause
	}
	e.metricInc(MetricInternalError)
	attrs = append(attrs, slog.String("op", op), slog.Any("error", cause))
	e.logger.LogAttrs(ctx, slog.LevelError, "tokenauth operation failed", attrs...)
	return ErrInternal
}

// warn logs a best-effort failure that does not change the outcome.
func (e *Engine) warn(ctx context.Context, msg string, cause error, attrs ...slog.Attr) {
	attrs = append(attrs, slog.Any("error", cause))
	e.logger.LogAttrs(ctx, slog.LevelWarn, msg, attrs...)
}

func (e *Engine) validateEmail(email string) error {
	if email == "" {
		return &ValidationError{Field: "email", Reason: "is required"}
	}
	if err := e.validate.Var(email, "required,email,max=254"); err != nil {
		return &ValidationError{Field: "email", Reason: "is not a valid address"}
	}
	return nil
}

// ready reports whether e was produced by Build.
func (e *Engine) ready() error {
	if e == nil || e.accounts == nil || e.refreshTokens == nil {
		return ErrEngineNotReady
	}
	return nil
}

func isContextErr(err error) bool {
	return errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
}
