package internaldefs

import (
	"github.com/MrEthical07/tokenauth"
)

// CounterDef names one counter series.
type CounterDef struct {
	ID   tokenauth.MetricID
	Name string
	Help string
}

type HistogramDef struct {
	ID   tokenauth.MetricID
	Name string
	Help string
}

// CounterDefs lists every exported counter in exposition order.
var CounterDefs = []CounterDef{
	{ID: tokenauth.MetricLoginSuccess, Name: "tokenauth_login_success_total", Help: "Successful logins that issued tokens."},
	{ID: tokenauth.MetricLoginFailure, Name: "tokenauth_login_failure_total", Help: "Logins rejected for bad credentials."},
	{ID: tokenauth.MetricLoginRateLimited, Name: "tokenauth_login_rate_limited_total", Help: "Logins rejected by the source-IP throttle."},
	{ID: tokenauth.MetricAccountLocked, Name: "tokenauth_account_locked_total", Help: "Logins rejected or triggering lockout."},
	{ID: tokenauth.MetricEmailNotVerified, Name: "tokenauth_email_not_verified_total", Help: "Logins rejected for an unverified email."},
	{ID: tokenauth.MetricMFARequired, Name: "tokenauth_mfa_required_total", Help: "Logins answered with a pending MFA challenge."},
	{ID: tokenauth.MetricRefreshSuccess, Name: "tokenauth_refresh_success_total", Help: "Successful refresh rotations."},
	{ID: tokenauth.MetricRefreshFailure, Name: "tokenauth_refresh_failure_total", Help: "Rejected refresh attempts."},
	{ID: tokenauth.MetricRefreshReuseDetected, Name: "tokenauth_refresh_reuse_detected_total", Help: "Refresh token theft detections."},
	{ID: tokenauth.MetricDeviceRejected, Name: "tokenauth_device_rejected_total", Help: "Refreshes rejected by device binding."},
	{ID: tokenauth.MetricTokenIssued, Name: "tokenauth_token_issued_total", Help: "Issued token pairs."},
	{ID: tokenauth.MetricTokenEvicted, Name: "tokenauth_token_evicted_total", Help: "Refresh records evicted by the per-user cap."},
	{ID: tokenauth.MetricTokenRevoked, Name: "tokenauth_token_revoked_total", Help: "Refresh records revoked."},
	{ID: tokenauth.MetricLogout, Name: "tokenauth_logout_total", Help: "Single-session logouts."},
	{ID: tokenauth.MetricLogoutAll, Name: "tokenauth_logout_all_total", Help: "Revoke-all operations."},
	{ID: tokenauth.MetricPasswordChangeSuccess, Name: "tokenauth_password_change_success_total", Help: "Successful password changes."},
	{ID: tokenauth.MetricPasswordChangeFailure, Name: "tokenauth_password_change_failure_total", Help: "Rejected password changes."},
	{ID: tokenauth.MetricPasswordResetRequest, Name: "tokenauth_password_reset_request_total", Help: "Password reset requests."},
	{ID: tokenauth.MetricPasswordResetConfirmSuccess, Name: "tokenauth_password_reset_confirm_success_total", Help: "Successful password reset confirmations."},
	{ID: tokenauth.MetricPasswordResetConfirmFailure, Name: "tokenauth_password_reset_confirm_failure_total", Help: "Failed password reset confirmations."},
	{ID: tokenauth.MetricAccountCreated, Name: "tokenauth_account_created_total", Help: "Created accounts."},
	{ID: tokenauth.MetricInternalError, Name: "tokenauth_internal_error_total", Help: "Store or crypto failures surfaced as internal errors."},
}

// HistogramDefs lists every exported histogram.
var HistogramDefs = []HistogramDef{
	{ID: tokenauth.MetricVerifyLatency, Name: "tokenauth_verify_latency_seconds", Help: "Access token verification latency."},
}

// HistogramBounds are the upper bounds in seconds, matching the core buckets.
var HistogramBounds = []string{
	"0.005",
	"0.01",
	"0.025",
	"0.05",
	"0.1",
	"0.25",
	"0.5",
	"+Inf",
}

// HistogramBoundSuffix names each bound in instrument names.
var HistogramBoundSuffix = []string{
	"0_005",
	"0_01",
	"0_025",
	"0_05",
	"0_1",
	"0_25",
	"0_5",
	"inf",
}

// NormalizeBuckets copies raw into a fixed array, zero-filling missing buckets.
func NormalizeBuckets(raw []uint64) [8]uint64 {
	var out [8]uint64
	for i := 0; i < len(out) && i < len(raw); i++ {
		out[i] = raw[i]
	}
	return out
}

// CumulativeBuckets converts per-bucket counts into running totals.
func CumulativeBuckets(raw [8]uint64) [8]uint64 {
	var out [8]uint64
	var running uint64
	for i := 0; i < len(raw); i++ {
		running += raw[i]
		out[i] = running
	}
	return out
}
