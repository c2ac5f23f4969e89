package tokenauth

import (
	"context"
	"errors"
	"log/slog"

	"github.com/MrEthical07/tokenauth/account"
	"github.com/MrEthical07/tokenauth/permission"
	"github.com/google/uuid"
)

type upgradeChecker interface {
	NeedsUpgrade(digest string) (bool, error)
}

// LoginUser authenticates email and password and issues a token pair, or a
// pending-MFA challenge for accounts with MFA enabled.
//
// An unknown email and a wrong password both return
// [ErrInvalidCredentials]. A locked account returns a *LockedError before
// the password is looked at. Only after the password matched can the
// caller learn [ErrEmailNotVerified] or [ErrAccountDisabled].
func (e *Engine) LoginUser(ctx context.Context, email, password string, device DeviceInfo) (LoginResult, error) {
	if err := e.ready(); err != nil {
		return LoginResult{}, err
	}
	if device.IPAddress == "" {
		device.IPAddress = clientIPFromContext(ctx)
	}
	if device.UserAgent == "" {
		device.UserAgent = userAgentFromContext(ctx)
	}

	if err := e.throttle(ctx, e.config.Login.RateLimit, device.IPAddress, ErrLoginRateLimited); err != nil {
		if errors.Is(err, ErrLoginRateLimited) {
			e.metricInc(MetricLoginRateLimited)
			e.emitAudit(ctx, auditEventLoginRateLimited, false, "", "", "", err, nil)
		}
		return LoginResult{}, err
	}

	email = account.NormalizeEmail(email)
	if err := e.validateEmail(email); err != nil {
		return LoginResult{}, err
	}
	if password == "" {
		return LoginResult{}, &ValidationError{Field: "password", Reason: "is required"}
	}

	acct, err := e.accounts.GetByEmail(ctx, email)
	if err != nil {
		if !errors.Is(err, account.ErrNotFound) {
			return LoginResult{}, e.internalError(ctx, "login.lookup", err)
		}
		// Spend the same hashing work as a real mismatch.
		_, _ = e.hasher.Verify(password, e.dummyHash)
		e.metricInc(MetricLoginFailure)
		e.emitAudit(ctx, auditEventLoginFailure, false, "", "", "", ErrUserNotFound, nil)
		return LoginResult{}, ErrInvalidCredentials
	}

	now := e.clock()
	if err := e.checkLock(acct, now); err != nil {
		e.metricInc(MetricAccountLocked)
		e.emitAudit(ctx, auditEventLoginLocked, false, acct.ID, "", "", err, nil)
		return LoginResult{}, err
	}

	ok, err := e.hasher.Verify(password, acct.PasswordHash)
	if err != nil {
		return LoginResult{}, e.internalError(ctx, "login.verify", err, slog.String("user_id", acct.ID))
	}
	if !ok {
		locked, err := e.recordFailure(ctx, acct, now)
		if err != nil {
			return LoginResult{}, e.internalError(ctx, "login.record_failure", err, slog.String("user_id", acct.ID))
		}
		e.metricInc(MetricLoginFailure)
		if locked {
			e.metricInc(MetricAccountLocked)
			e.logger.LogAttrs(ctx, slog.LevelWarn, "account locked after repeated login failures",
				slog.String("user_id", acct.ID),
				slog.Duration("duration", e.config.Login.LockoutDuration),
			)
		}
		e.emitAudit(ctx, auditEventLoginFailure, false, acct.ID, "", "", ErrInvalidCredentials, func() map[string]string {
			if locked {
				return map[string]string{"locked": "true"}
			}
			return nil
		})
		return LoginResult{}, ErrInvalidCredentials
	}

	if err := e.resetLockout(ctx, acct, now); err != nil {
		return LoginResult{}, e.internalError(ctx, "login.reset_lockout", err, slog.String("user_id", acct.ID))
	}

	if e.config.Login.RequireEmailVerification && !acct.EmailVerified {
		e.metricInc(MetricEmailNotVerified)
		e.emitAudit(ctx, auditEventLoginFailure, false, acct.ID, "", "", ErrEmailNotVerified, nil)
		return LoginResult{}, ErrEmailNotVerified
	}
	if !acct.IsActive {
		e.metricInc(MetricLoginFailure)
		e.emitAudit(ctx, auditEventLoginFailure, false, acct.ID, "", "", ErrAccountDisabled, nil)
		return LoginResult{}, ErrAccountDisabled
	}

	summary := summaryFor(acct)

	if acct.MFAEnabled {
		challenge, err := e.issueChallenge(acct.ID)
		if err != nil {
			return LoginResult{}, e.internalError(ctx, "login.mfa_challenge", err, slog.String("user_id", acct.ID))
		}
		e.metricInc(MetricMFARequired)
		e.emitAudit(ctx, auditEventMFARequired, true, acct.ID, "", "", nil, nil)
		return LoginResult{User: summary, RequiresMFA: true, MFAToken: challenge}, nil
	}

	pair, record, err := e.issue(ctx, claimsFor(acct, uuid.NewString(), device), "")
	if err != nil {
		return LoginResult{}, e.internalError(ctx, "login.issue", err, slog.String("user_id", acct.ID))
	}

	e.touchLogin(ctx, acct, password)

	e.metricInc(MetricLoginSuccess)
	e.emitAudit(ctx, auditEventLoginSuccess, true, acct.ID, record.SessionID, record.TokenID, nil, nil)
	return LoginResult{User: summary, Tokens: &pair}, nil
}

// touchLogin stamps lastLoginAt and re-hashes a digest made with weaker
// parameters. Both are best effort.
func (e *Engine) touchLogin(ctx context.Context, acct Account, password string) {
	now := e.clock()
	patch := AccountPatch{LastLoginAt: &now, UpdatedAt: &now}

	if uc, ok := e.hasher.(upgradeChecker); ok {
		if stale, err := uc.NeedsUpgrade(acct.PasswordHash); err == nil && stale {
			if digest, err := e.hasher.Hash(password); err == nil {
				patch.PasswordHash = &digest
			}
		}
	}

	if _, err := e.accounts.Update(ctx, acct.ID, patch); err != nil {
		e.warn(ctx, "persist last login failed", err, slog.String("user_id", acct.ID))
	}
}

// throttle consumes one unit of policy for key. A nil limiter or an empty
// key skips the check. Limiter failures fail closed.
func (e *Engine) throttle(ctx context.Context, policy RateLimitPolicy, key string, limited error) error {
	if e.limiter == nil || key == "" {
		return nil
	}
	decision, err := e.limiter.Check(ctx, key, policy)
	if err != nil {
		return e.internalError(ctx, "rate_limit."+policy.Name, err)
	}
	if !decision.Allowed {
		return &RateLimitedError{RetryAfter: decision.RetryAfter, err: limited}
	}
	return nil
}

// claimsFor builds the access-token identity of acct. Permissions are the
// union of the role set and per-account grants.
func claimsFor(acct Account, sessionID string, device DeviceInfo) IdentityClaims {
	return IdentityClaims{
		UserID:      acct.ID,
		Email:       acct.Email,
		Role:        acct.Role.String(),
		Permissions: permission.Grant(acct.Role, acct.Permissions),
		SessionID:   sessionID,
		DeviceID:    device.DeviceID,
		IPAddress:   device.IPAddress,
		UserAgent:   device.UserAgent,
	}
}

func summaryFor(acct Account) UserSummary {
	return UserSummary{
		ID:            acct.ID,
		Email:         acct.Email,
		Name:          acct.Name,
		Role:          acct.Role.String(),
		Permissions:   permission.Grant(acct.Role, acct.Permissions),
		EmailVerified: acct.EmailVerified,
	}
}
