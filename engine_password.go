package tokenauth

import (
	"context"
	"crypto/subtle"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/MrEthical07/tokenauth/account"
	"github.com/MrEthical07/tokenauth/internal"
	"github.com/MrEthical07/tokenauth/password"
)

// ChangePassword replaces the password of userID after checking the current
// one, then revokes every refresh token of the user. A wrong current password
// counts toward the same lockout as a failed login, and a locked account
// cannot change its password.
func (e *Engine) ChangePassword(ctx context.Context, userID, currentPassword, newPassword string) error {
	if err := e.ready(); err != nil {
		return err
	}
	if strings.TrimSpace(userID) == "" {
		return &ValidationError{Field: "userId", Reason: "is required"}
	}
	if currentPassword == "" {
		return &ValidationError{Field: "currentPassword", Reason: "is required"}
	}

	err := e.changePassword(ctx, userID, currentPassword, newPassword)
	if err != nil {
		e.metricInc(MetricPasswordChangeFailure)
		e.emitAudit(ctx, auditEventPasswordChange, false, userID, "", "", err, nil)
		return err
	}

	e.metricInc(MetricPasswordChangeSuccess)
	e.emitAudit(ctx, auditEventPasswordChange, true, userID, "", "", nil, nil)
	return nil
}

func (e *Engine) changePassword(ctx context.Context, userID, currentPassword, newPassword string) error {
	acct, err := e.accounts.GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, account.ErrNotFound) {
			_, _ = e.hasher.Verify(currentPassword, e.dummyHash)
			return ErrInvalidCredentials
		}
		return e.internalError(ctx, "password_change.lookup", err, slog.String("user_id", userID))
	}

	now := e.clock()
	if err := e.checkLock(acct, now); err != nil {
		e.metricInc(MetricAccountLocked)
		return err
	}

	ok, err := e.hasher.Verify(currentPassword, acct.PasswordHash)
	if err != nil {
		return e.internalError(ctx, "password_change.verify", err, slog.String("user_id", userID))
	}
	if !ok {
		locked, err := e.recordFailure(ctx, acct, now)
		if err != nil {
			return e.internalError(ctx, "password_change.record_failure", err, slog.String("user_id", userID))
		}
		if locked {
			e.metricInc(MetricAccountLocked)
			e.logger.LogAttrs(ctx, slog.LevelWarn, "account locked after repeated password change failures",
				slog.String("user_id", userID),
				slog.Duration("duration", e.config.Login.LockoutDuration),
			)
		}
		return ErrInvalidCredentials
	}
	if err := e.resetLockout(ctx, acct, now); err != nil {
		return e.internalError(ctx, "password_change.reset_lockout", err, slog.String("user_id", userID))
	}

	if err := e.checkPolicy("newPassword", newPassword); err != nil {
		return err
	}
	if subtle.ConstantTimeCompare([]byte(currentPassword), []byte(newPassword)) == 1 {
		return ErrPasswordReuse
	}

	digest, err := e.hasher.Hash(newPassword)
	if err != nil {
		return e.internalError(ctx, "password_change.hash", err, slog.String("user_id", userID))
	}
	if _, err := e.accounts.Update(ctx, userID, AccountPatch{PasswordHash: &digest, UpdatedAt: &now}); err != nil {
		return e.internalError(ctx, "password_change.update", err, slog.String("user_id", userID))
	}

	revoked, err := e.revokeAll(ctx, userID)
	if err != nil {
		return e.internalError(ctx, "password_change.revoke_all", err, slog.String("user_id", userID))
	}
	e.logger.LogAttrs(ctx, slog.LevelInfo, "password changed",
		slog.String("user_id", userID),
		slog.Int("revoked", revoked),
	)
	return nil
}

// RequestPasswordReset issues a reset token for email when such an active
// account exists and hands it to the configured notifier. The result is the
// same whether or not the account exists.
func (e *Engine) RequestPasswordReset(ctx context.Context, email string) error {
	if err := e.ready(); err != nil {
		return err
	}
	if err := e.throttle(ctx, e.config.PasswordReset.RateLimit, clientIPFromContext(ctx), ErrPasswordResetRateLimited); err != nil {
		if errors.Is(err, ErrPasswordResetRateLimited) {
			e.emitAudit(ctx, auditEventPasswordResetRequest, false, "", "", "", err, nil)
		}
		return err
	}

	email = account.NormalizeEmail(email)
	if err := e.validateEmail(email); err != nil {
		return err
	}
	e.metricInc(MetricPasswordResetRequest)

	acct, err := e.accounts.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, account.ErrNotFound) {
			e.emitAudit(ctx, auditEventPasswordResetRequest, true, "", "", "", nil, nil)
			return nil
		}
		return e.internalError(ctx, "password_reset.lookup", err)
	}
	if !acct.IsActive {
		e.emitAudit(ctx, auditEventPasswordResetRequest, true, acct.ID, "", "", nil, nil)
		return nil
	}

	token, err := internal.NewResetToken()
	if err != nil {
		return e.internalError(ctx, "password_reset.token", err)
	}
	hash := internal.HashToken(token)
	now := e.clock()
	expiresAt := now.Add(e.config.PasswordReset.TokenTTL)
	if _, err := e.accounts.Update(ctx, acct.ID, AccountPatch{
		ResetTokenHash:      &hash,
		ResetTokenExpiresAt: &expiresAt,
		UpdatedAt:           &now,
	}); err != nil {
		return e.internalError(ctx, "password_reset.update", err, slog.String("user_id", acct.ID))
	}

	if e.notifier != nil {
		if err := e.notifier.SendPasswordReset(ctx, acct, token, expiresAt); err != nil {
			e.warn(ctx, "password reset notification failed", err, slog.String("user_id", acct.ID))
		}
	}

	e.emitAudit(ctx, auditEventPasswordResetRequest, true, acct.ID, "", "", nil, func() map[string]string {
		return map[string]string{"expires_at": expiresAt.UTC().Format(time.RFC3339)}
	})
	return nil
}

// ConfirmPasswordReset sets a new password using a token from
// RequestPasswordReset. The token is single use. On success the lockout
// counters are cleared and every refresh token of the user is revoked.
func (e *Engine) ConfirmPasswordReset(ctx context.Context, email, token, newPassword string) error {
	if err := e.ready(); err != nil {
		return err
	}
	if err := e.throttle(ctx, e.config.PasswordReset.RateLimit, confirmKey(clientIPFromContext(ctx)), ErrPasswordResetRateLimited); err != nil {
		return err
	}

	userID, err := e.confirmPasswordReset(ctx, email, token, newPassword)
	if err != nil {
		e.metricInc(MetricPasswordResetConfirmFailure)
		e.emitAudit(ctx, auditEventPasswordResetConfirm, false, userID, "", "", err, nil)
		return err
	}

	e.metricInc(MetricPasswordResetConfirmSuccess)
	e.emitAudit(ctx, auditEventPasswordResetConfirm, true, userID, "", "", nil, nil)
	return nil
}

func (e *Engine) confirmPasswordReset(ctx context.Context, email, token, newPassword string) (string, error) {
	email = account.NormalizeEmail(email)
	if err := e.validateEmail(email); err != nil {
		return "", err
	}
	token = strings.TrimSpace(token)
	if token == "" {
		return "", ErrPasswordResetInvalid
	}

	acct, err := e.accounts.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, account.ErrNotFound) {
			return "", ErrPasswordResetInvalid
		}
		return "", e.internalError(ctx, "password_reset_confirm.lookup", err)
	}

	now := e.clock()
	if acct.ResetTokenHash == "" ||
		!now.Before(acct.ResetTokenExpiresAt) ||
		!internal.EqualHash(internal.HashToken(token), acct.ResetTokenHash) {
		return acct.ID, ErrPasswordResetInvalid
	}

	if err := e.checkPolicy("newPassword", newPassword); err != nil {
		return acct.ID, err
	}

	digest, err := e.hasher.Hash(newPassword)
	if err != nil {
		return acct.ID, e.internalError(ctx, "password_reset_confirm.hash", err, slog.String("user_id", acct.ID))
	}
	var (
		empty string
		zero  int
		never time.Time
	)
	if _, err := e.accounts.Update(ctx, acct.ID, AccountPatch{
		PasswordHash:        &digest,
		ResetTokenHash:      &empty,
		ResetTokenExpiresAt: &never,
		FailedLoginAttempts: &zero,
		LockedUntil:         &never,
		UpdatedAt:           &now,
	}); err != nil {
		return acct.ID, e.internalError(ctx, "password_reset_confirm.update", err, slog.String("user_id", acct.ID))
	}

	if _, err := e.revokeAll(ctx, acct.ID); err != nil {
		return acct.ID, e.internalError(ctx, "password_reset_confirm.revoke_all", err, slog.String("user_id", acct.ID))
	}
	return acct.ID, nil
}

// checkPolicy maps a password policy breach onto a *ValidationError.
func (e *Engine) checkPolicy(field, candidate string) error {
	if err := e.config.Password.Policy.Check(candidate); err != nil {
		var pe *password.PolicyError
		if errors.As(err, &pe) {
			return &ValidationError{Field: field, Reason: pe.Rule}
		}
		return &ValidationError{Field: field, Reason: err.Error()}
	}
	return nil
}

func confirmKey(ip string) string {
	if ip == "" {
		return ""
	}
	return "confirm:" + ip
}
