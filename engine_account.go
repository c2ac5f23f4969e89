package tokenauth

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/MrEthical07/tokenauth/account"
	"github.com/MrEthical07/tokenauth/permission"
	"github.com/google/uuid"
)

// CreateAccount registers a new active account. The email is normalized,
// the password must satisfy the configured policy, and a zero Role means
// customer.
func (e *Engine) CreateAccount(ctx context.Context, req CreateAccountRequest) (UserSummary, error) {
	if err := e.ready(); err != nil {
		return UserSummary{}, err
	}

	email := account.NormalizeEmail(req.Email)
	if err := e.validateEmail(email); err != nil {
		return UserSummary{}, err
	}
	if err := e.checkPolicy("password", req.Password); err != nil {
		return UserSummary{}, err
	}
	role := req.Role
	if !role.Valid() {
		return UserSummary{}, &ValidationError{Field: "role", Reason: "is not a known role"}
	}

	digest, err := e.hasher.Hash(req.Password)
	if err != nil {
		return UserSummary{}, e.internalError(ctx, "account_create.hash", err)
	}

	now := e.clock()
	acct := Account{
		ID:            uuid.NewString(),
		Email:         email,
		Name:          strings.TrimSpace(req.Name),
		PasswordHash:  digest,
		Role:          role,
		Permissions:   append([]string(nil), req.Permissions...),
		IsActive:      true,
		EmailVerified: req.EmailVerified,
		MFAEnabled:    req.MFAEnabled,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	if err := e.accounts.Create(ctx, acct); err != nil {
		if errors.Is(err, account.ErrExists) {
			e.emitAudit(ctx, auditEventAccountCreated, false, "", "", "", ErrAccountExists, nil)
			return UserSummary{}, ErrAccountExists
		}
		return UserSummary{}, e.internalError(ctx, "account_create.store", err)
	}

	e.metricInc(MetricAccountCreated)
	e.emitAudit(ctx, auditEventAccountCreated, true, acct.ID, "", "", nil, func() map[string]string {
		return map[string]string{"role": role.String()}
	})
	return summaryFor(acct), nil
}

// UnlockAccount clears the lockout counters of userID.
func (e *Engine) UnlockAccount(ctx context.Context, userID string) error {
	if err := e.ready(); err != nil {
		return err
	}
	zero := 0
	var never time.Time
	now := e.clock()
	if _, err := e.accounts.Update(ctx, userID, AccountPatch{
		FailedLoginAttempts: &zero,
		LockedUntil:         &never,
		UpdatedAt:           &now,
	}); err != nil {
		if errors.Is(err, account.ErrNotFound) {
			return ErrUserNotFound
		}
		return e.internalError(ctx, "account_unlock", err, slog.String("user_id", userID))
	}
	e.emitAudit(ctx, auditEventAccountUnlocked, true, userID, "", "", nil, nil)
	return nil
}

// LookupUser returns the current summary of userID, re-reading role and
// grants from the account store.
func (e *Engine) LookupUser(ctx context.Context, userID string) (UserSummary, error) {
	if err := e.ready(); err != nil {
		return UserSummary{}, err
	}
	acct, err := e.accounts.GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, account.ErrNotFound) {
			return UserSummary{}, ErrUserNotFound
		}
		return UserSummary{}, e.internalError(ctx, "account_lookup", err, slog.String("user_id", userID))
	}
	if !acct.IsActive {
		return UserSummary{}, ErrAccountDisabled
	}
	return summaryFor(acct), nil
}

// ParseRole is a convenience wrapper over [permission.ParseRole] for
// callers building a CreateAccountRequest from text.
func ParseRole(name string) (permission.Role, error) {
	role, err := permission.ParseRole(name)
	if err != nil {
		return 0, &ValidationError{Field: "role", Reason: "is not a known role"}
	}
	return role, nil
}
