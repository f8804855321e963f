package internaldefs

import (
	"strconv"

	"github.com/MrEthical07/sessionguard"
)

// Kind says how an exporter publishes a metric.
type Kind uint8

const (
	Counter Kind = iota
	Histogram
)

// Def binds an engine metric to its exported name.
type Def struct {
	ID   sessionguard.MetricID
	Name string
	Help string
	Kind Kind
}

// AuditDroppedName is published from Engine.AuditDropped rather than the
// snapshot.
const AuditDroppedName = "sessionguard_audit_dropped_total"

// AuditDroppedHelp describes AuditDroppedName.
const AuditDroppedHelp = "Audit events dropped by the dispatcher."

func counter(id sessionguard.MetricID, name, help string) Def {
	return Def{ID: id, Name: "sessionguard_" + name + "_total", Help: help}
}

// Defs lists every exported engine metric, in exposition order.
var Defs = []Def{
	counter(sessionguard.MetricRegisterSuccess, "register_success", "Accounts registered."),
	counter(sessionguard.MetricRegisterDuplicate, "register_duplicate", "Registrations rejected because the email is taken."),
	counter(sessionguard.MetricVerifySuccess, "email_verification_success", "Successful email verifications."),
	counter(sessionguard.MetricVerifyFailure, "email_verification_failure", "Rejected email verifications."),
	counter(sessionguard.MetricResendSuccess, "verification_resend_success", "Verification codes resent."),
	counter(sessionguard.MetricResendFailure, "verification_resend_failure", "Rejected resend requests."),
	counter(sessionguard.MetricResendRateLimited, "verification_resend_rate_limited", "Resend requests inside the cooldown."),
	counter(sessionguard.MetricLoginSuccess, "login_success", "Successful logins."),
	counter(sessionguard.MetricLoginFailure, "login_failure", "Failed logins."),
	counter(sessionguard.MetricLoginLocked, "login_locked", "Logins refused during an active lock."),
	counter(sessionguard.MetricLockoutApplied, "lockout_applied", "Locks applied after repeated failures."),
	counter(sessionguard.MetricLoginRateLimited, "login_rate_limited", "Logins refused by the per-IP throttle."),
	counter(sessionguard.MetricPasswordRehashed, "password_rehashed", "Password digests upgraded on login."),
	{ID: sessionguard.MetricLoginLatency, Name: "sessionguard_login_latency_seconds", Help: "Login latency.", Kind: Histogram},
	counter(sessionguard.MetricRefreshSuccess, "refresh_success", "Successful refresh rotations."),
	counter(sessionguard.MetricRefreshFailure, "refresh_failure", "Rejected refresh attempts."),
	counter(sessionguard.MetricRefreshReuseDetected, "refresh_reuse_detected", "Refresh token reuse detections."),
	counter(sessionguard.MetricRefreshRaceLost, "refresh_race_lost", "Refreshes that lost a concurrent rotation."),
	counter(sessionguard.MetricMassRevocation, "mass_revocation", "Revocations of every session of a user."),
	counter(sessionguard.MetricLogout, "logout", "Single-session logouts."),
	counter(sessionguard.MetricLogoutFailure, "logout_failure", "Rejected logouts."),
	counter(sessionguard.MetricNotifyFailure, "notify_failure", "Verification code delivery failures."),
	counter(sessionguard.MetricStoreConflict, "store_conflict", "Optimistic concurrency conflicts against the user store."),
}

// BucketLabels are the "le" values of the latency histogram in seconds,
// ending with "+Inf".
var BucketLabels = func() []string {
	bounds := sessionguard.LatencyBucketBounds()
	out := make([]string, 0, len(bounds)+1)
	for _, b := range bounds {
		out = append(out, strconv.FormatFloat(b.Seconds(), 'f', -1, 64))
	}
	return append(out, "+Inf")
}()

// Cumulative turns per-bucket counts into running totals, one per entry of
// BucketLabels. Missing buckets count as zero and extra ones are ignored.
func Cumulative(raw []uint64) []uint64 {
	out := make([]uint64, len(BucketLabels))
	var running uint64
	for i := range out {
		if i < len(raw) {
			running += raw[i]
		}
		out[i] = running
	}
	return out
}
