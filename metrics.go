package tokenauth

import internalmetrics "github.com/MrEthical07/tokenauth/internal/metrics"

// MetricID identifies one engine counter or histogram.
type MetricID = internalmetrics.MetricID

// MetricsSnapshot is a point-in-time copy of the engine counters.
type MetricsSnapshot = internalmetrics.Snapshot

const (
	MetricLoginSuccess                = internalmetrics.MetricLoginSuccess
	MetricLoginFailure                = internalmetrics.MetricLoginFailure
	MetricLoginRateLimited            = internalmetrics.MetricLoginRateLimited
	MetricAccountLocked               = internalmetrics.MetricAccountLocked
	MetricEmailNotVerified            = internalmetrics.MetricEmailNotVerified
	MetricMFARequired                 = internalmetrics.MetricMFARequired
	MetricRefreshSuccess              = internalmetrics.MetricRefreshSuccess
	MetricRefreshFailure              = internalmetrics.MetricRefreshFailure
	MetricRefreshReuseDetected        = internalmetrics.MetricRefreshReuseDetected
	MetricDeviceRejected              = internalmetrics.MetricDeviceRejected
	MetricTokenIssued                 = internalmetrics.MetricTokenIssued
	MetricTokenEvicted                = internalmetrics.MetricTokenEvicted
	MetricTokenRevoked                = internalmetrics.MetricTokenRevoked
	MetricLogout                      = internalmetrics.MetricLogout
	MetricLogoutAll                   = internalmetrics.MetricLogoutAll
	MetricPasswordChangeSuccess       = internalmetrics.MetricPasswordChangeSuccess
	MetricPasswordChangeFailure       = internalmetrics.MetricPasswordChangeFailure
	MetricPasswordResetRequest        = internalmetrics.MetricPasswordResetRequest
	MetricPasswordResetConfirmSuccess = internalmetrics.MetricPasswordResetConfirmSuccess
	MetricPasswordResetConfirmFailure = internalmetrics.MetricPasswordResetConfirmFailure
	MetricAccountCreated              = internalmetrics.MetricAccountCreated
	MetricInternalError               = internalmetrics.MetricInternalError
	// MetricVerifyLatency is a histogram of access-token verification time.
	MetricVerifyLatency = internalmetrics.MetricVerifyLatency
)
