package tokenauth

import (
	"context"
	"errors"
)

const (
	auditEventLoginSuccess          = "login_success"
	auditEventLoginFailure          = "login_failure"
	auditEventLoginLocked           = "login_locked"
	auditEventLoginRateLimited      = "login_rate_limited"
	auditEventMFARequired           = "mfa_required"
	auditEventTokenIssued           = "token_issued"
	auditEventRefreshSuccess        = "refresh_success"
	auditEventRefreshInvalid        = "refresh_invalid"
	auditEventRefreshReuseDetected  = "refresh_reuse_detected"
	auditEventDeviceBindingRejected = "device_binding_rejected"
	auditEventLogoutSession         = "logout_session"
	auditEventLogoutAll             = "logout_all"
	auditEventPasswordChange        = "password_change"
	auditEventPasswordResetRequest  = "password_reset_request"
	auditEventPasswordResetConfirm  = "password_reset_confirm"
	auditEventAccountCreated        = "account_created"
	auditEventAccountUnlocked       = "account_unlocked"
)

// AuditErrorCode is the stable error label attached to failed audit events.
type AuditErrorCode string

const (
	auditErrInvalidCredentials AuditErrorCode = "invalid_credentials"
	auditErrAccountLocked      AuditErrorCode = "account_locked"
	auditErrAccountDisabled    AuditErrorCode = "account_disabled"
	auditErrEmailNotVerified   AuditErrorCode = "email_not_verified"
	auditErrRateLimited        AuditErrorCode = "rate_limited"
	auditErrInvalidToken       AuditErrorCode = "invalid_token"
	auditErrTokenExpired       AuditErrorCode = "token_expired"
	auditErrRefreshReuse       AuditErrorCode = "refresh_reuse"
	auditErrDeviceRejected     AuditErrorCode = "device_binding_rejected"
	auditErrValidation         AuditErrorCode = "validation"
	auditErrPasswordReuse      AuditErrorCode = "password_reuse"
	auditErrResetInvalid       AuditErrorCode = "reset_invalid"
	auditErrDuplicate          AuditErrorCode = "duplicate"
	auditErrUserNotFound       AuditErrorCode = "user_not_found"
	auditErrInternal           AuditErrorCode = "internal_error"
)

// errDeviceRejected labels device-binding rejections in audit events only.
var errDeviceRejected = errors.New("device binding rejected")

func (e *Engine) emitAudit(
	ctx context.Context,
	eventType string,
	success bool,
	userID string,
	sessionID string,
	tokenID string,
	err error,
	metadataBuilder func() map[string]string,
) {
	if e == nil || e.audit == nil {
		return
	}

	var metadata map[string]string
	if metadataBuilder != nil {
		metadata = metadataBuilder()
	}

	event := AuditEvent{
		Timestamp: e.clock().UTC(),
		EventType: eventType,
		UserID:    userID,
		SessionID: sessionID,
		TokenID:   tokenID,
		IP:        clientIPFromContext(ctx),
		UserAgent: userAgentFromContext(ctx),
		Success:   success,
		Metadata:  metadata,
	}
	if code := auditErrorCode(err); code != "" {
		event.Error = string(code)
	}

	e.audit.Emit(ctx, event)
}

func auditErrorCode(err error) AuditErrorCode {
	if err == nil {
		return ""
	}

	switch {
	case errors.Is(err, ErrInvalidCredentials):
		return auditErrInvalidCredentials
	case errors.Is(err, ErrAccountLocked):
		return auditErrAccountLocked
	case errors.Is(err, ErrAccountDisabled):
		return auditErrAccountDisabled
	case errors.Is(err, ErrEmailNotVerified):
		return auditErrEmailNotVerified
	case errors.Is(err, ErrLoginRateLimited), errors.Is(err, ErrPasswordResetRateLimited):
		return auditErrRateLimited
	case errors.Is(err, ErrTokenTheftDetected):
		return auditErrRefreshReuse
	case errors.Is(err, errDeviceRejected):
		return auditErrDeviceRejected
	case errors.Is(err, ErrTokenExpired):
		return auditErrTokenExpired
	case errors.Is(err, ErrTokenInvalid):
		return auditErrInvalidToken
	case errors.Is(err, ErrPasswordReuse):
		return auditErrPasswordReuse
	case errors.Is(err, ErrValidation):
		return auditErrValidation
	case errors.Is(err, ErrPasswordResetInvalid):
		return auditErrResetInvalid
	case errors.Is(err, ErrAccountExists):
		return auditErrDuplicate
	case errors.Is(err, ErrUserNotFound):
		return auditErrUserNotFound
	default:
		return auditErrInternal
	}
}
