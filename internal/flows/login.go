package flows

import (
	"time"

	"github.com/MrEthical07/sessionguard/account"
	"github.com/MrEthical07/sessionguard/internal/limiters"
)

// LoginFailureKind classifies login flow failures.
type LoginFailureKind int

const (
	LoginFailureNone LoginFailureKind = iota
	// LoginFailureIneligible covers unverified accounts and accounts without
	// a password hash.
	LoginFailureIneligible
	LoginFailureLocked
	LoginFailurePassword
)

// LoginPolicy carries the configuration the login flow needs.
type LoginPolicy struct {
	Lockout    limiters.Lockout
	RefreshTTL time.Duration
	Retention  time.Duration
}

// LoginResult reports what RunLogin did to the record.
type LoginResult struct {
	Failure LoginFailureKind
	Persist bool
	// LockApplied is set when this attempt crossed the lockout threshold.
	LockApplied bool
	Issued      account.RefreshToken
}

// RunLogin applies one login attempt to u. passwordOK is invoked only after
// the eligibility and lock checks pass. nextHash is the digest of the
// refresh token to issue on success.
func RunLogin(u *account.User, passwordOK func(hash string) bool, nextHash string, policy LoginPolicy, req Request) LoginResult {
	if !u.Verified || u.PasswordHash == "" {
		return LoginResult{Failure: LoginFailureIneligible}
	}
	if policy.Lockout.Locked(u, req.Now) {
		return LoginResult{Failure: LoginFailureLocked}
	}

	if !passwordOK(u.PasswordHash) {
		locked := policy.Lockout.RecordFailure(u, req.Now)
		u.Record(req.audit(account.ActionLogin, false))
		return LoginResult{Failure: LoginFailurePassword, Persist: true, LockApplied: locked}
	}

	policy.Lockout.Reset(u)
	issued := NewRefreshRecord(nextHash, policy.RefreshTTL, req)
	u.RefreshTokens = append(u.RefreshTokens, issued)
	PruneInactive(u, req.Now, policy.Retention)
	u.Record(req.audit(account.ActionLogin, true))

	return LoginResult{Failure: LoginFailureNone, Persist: true, Issued: issued}
}
