package internaldefs

import (
	authkit "github.com/scriptdeck/authkit"
)

// CounterDef defines a public type used by authkit APIs.
//
// CounterDef instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type CounterDef struct {
	ID   authkit.MetricID
	Name string
	Help string
}

// HistogramDef defines a public type used by authkit APIs.
//
// HistogramDef instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type HistogramDef struct {
	ID   authkit.MetricID
	Name string
	Help string
}

// CounterDefs is an exported constant or variable used by the authentication engine.
var CounterDefs = []CounterDef{
	{ID: authkit.MetricLoginSuccess, Name: "authkit_login_success_total", Help: "Successful login attempts."},
	{ID: authkit.MetricLoginFailure, Name: "authkit_login_failure_total", Help: "Failed login attempts."},
	{ID: authkit.MetricLockoutTriggered, Name: "authkit_lockout_triggered_total", Help: "Failure streaks that tripped a lockout."},
	{ID: authkit.MetricLockoutBlocked, Name: "authkit_lockout_blocked_total", Help: "Login attempts refused while locked."},
	{ID: authkit.MetricRefreshSuccess, Name: "authkit_refresh_success_total", Help: "Successful refresh rotations."},
	{ID: authkit.MetricRefreshFailure, Name: "authkit_refresh_failure_total", Help: "Failed refresh attempts."},
	{ID: authkit.MetricRefreshReuseDetected, Name: "authkit_refresh_reuse_detected_total", Help: "Detected refresh token reuses."},
	{ID: authkit.MetricMFALoginRequired, Name: "authkit_mfa_login_required_total", Help: "Login flows requiring MFA step-up."},
	{ID: authkit.MetricMFALoginSuccess, Name: "authkit_mfa_login_success_total", Help: "Successful MFA login confirmations."},
	{ID: authkit.MetricMFALoginFailure, Name: "authkit_mfa_login_failure_total", Help: "Failed MFA login confirmations."},
	{ID: authkit.MetricMFAAttemptsExceeded, Name: "authkit_mfa_attempts_exceeded_total", Help: "MFA challenges destroyed at the attempt cap."},
	{ID: authkit.MetricTOTPEnabled, Name: "authkit_totp_enabled_total", Help: "Confirmed TOTP enrollments."},
	{ID: authkit.MetricTOTPDisabled, Name: "authkit_totp_disabled_total", Help: "TOTP disable operations."},
	{ID: authkit.MetricBackupCodeUsed, Name: "authkit_backup_code_used_total", Help: "Recovery codes consumed during login."},
	{ID: authkit.MetricBackupCodeRegenerated, Name: "authkit_backup_code_regenerated_total", Help: "Recovery code set regenerations."},
	{ID: authkit.MetricValidateSuccess, Name: "authkit_validate_success_total", Help: "Successful access token validations."},
	{ID: authkit.MetricValidateFailure, Name: "authkit_validate_failure_total", Help: "Failed access token validations."},
	{ID: authkit.MetricAuthorizeDenied, Name: "authkit_authorize_denied_total", Help: "Permission checks denied by the mask snapshot."},
	{ID: authkit.MetricSessionCreated, Name: "authkit_session_created_total", Help: "Created sessions."},
	{ID: authkit.MetricSessionRevoked, Name: "authkit_session_revoked_total", Help: "Single-session revocations."},
	{ID: authkit.MetricSessionsRevokedAll, Name: "authkit_sessions_revoked_all_total", Help: "Bulk session revocations."},
	{ID: authkit.MetricPasswordChangeSuccess, Name: "authkit_password_change_success_total", Help: "Successful password changes."},
	{ID: authkit.MetricPasswordChangeFailure, Name: "authkit_password_change_failure_total", Help: "Rejected password change attempts."},
	{ID: authkit.MetricAccountCreated, Name: "authkit_account_created_total", Help: "Successful account creations."},
	{ID: authkit.MetricAccountDisabled, Name: "authkit_account_disabled_total", Help: "Account disable operations."},
	{ID: authkit.MetricFederatedLoginSuccess, Name: "authkit_federated_login_success_total", Help: "Successful federated logins."},
	{ID: authkit.MetricFederatedLoginFailure, Name: "authkit_federated_login_failure_total", Help: "Failed federated logins."},
}

// HistogramDefs is an exported constant or variable used by the authentication engine.
var HistogramDefs = []HistogramDef{
	{ID: authkit.MetricValidateLatency, Name: "authkit_validate_latency_seconds", Help: "Validate latency histogram."},
}

// HistogramBounds is an exported constant or variable used by the authentication engine.
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

// HistogramBoundSuffix is an exported constant or variable used by the authentication engine.
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

// NormalizeBuckets describes the normalizebuckets operation and its observable behavior.
//
// NormalizeBuckets may return an error when input validation, dependency calls, or security checks fail.
// NormalizeBuckets does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func NormalizeBuckets(raw []uint64) [8]uint64 {
	var out [8]uint64
	for i := 0; i < len(out) && i < len(raw); i++ {
		out[i] = raw[i]
	}
	return out
}

// CumulativeBuckets describes the cumulativebuckets operation and its observable behavior.
//
// CumulativeBuckets may return an error when input validation, dependency calls, or security checks fail.
// CumulativeBuckets does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func CumulativeBuckets(raw [8]uint64) [8]uint64 {
	var out [8]uint64
	var running uint64
	for i := 0; i < len(raw); i++ {
		running += raw[i]
		out[i] = running
	}
	return out
}
