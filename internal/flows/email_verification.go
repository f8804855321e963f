package flows

import (
	"time"

	"github.com/MrEthical07/sessionguard/account"
	"github.com/MrEthical07/sessionguard/internal/limiters"
)

// Registration describes a new, unverified account.
type Registration struct {
	ID           string
	Email        string
	Username     string
	PasswordHash string
	CodeHash     string
	CodeTTL      time.Duration
}

// NewRegistration builds the initial record for reg. The record carries the
// pending verification code and a register audit entry.
func NewRegistration(reg Registration, req Request) *account.User {
	u := &account.User{
		ID:           reg.ID,
		Email:        reg.Email,
		Username:     reg.Username,
		Role:         account.RoleUser,
		CreatedAt:    req.Now,
		UpdatedAt:    req.Now,
		PasswordHash: reg.PasswordHash,
		Fields:       account.FieldsAll,
	}
	setCode(u, reg.CodeHash, reg.CodeTTL, req.Now)
	u.Record(req.audit(account.ActionRegister, true))
	return u
}

// VerifyFailureKind classifies verification flow failures. Callers collapse
// every kind into one generic error.
type VerifyFailureKind int

const (
	VerifyFailureNone VerifyFailureKind = iota
	VerifyFailureAlreadyVerified
	VerifyFailureNoCode
	VerifyFailureExpired
	VerifyFailureMismatch
)

// RunVerify checks a presented code against u and, on success, marks the
// account verified and issues the first refresh record with digest
// nextHash. codeOK is only called for an unexpired pending code.
func RunVerify(u *account.User, codeOK func(hash string) bool, nextHash string, refreshTTL time.Duration, req Request) (VerifyFailureKind, account.RefreshToken) {
	switch {
	case u.Verified:
		return VerifyFailureAlreadyVerified, account.RefreshToken{}
	case u.VerificationCodeHash == "" || u.VerificationExpiresAt == nil:
		return VerifyFailureNoCode, account.RefreshToken{}
	case !req.Now.Before(*u.VerificationExpiresAt):
		return VerifyFailureExpired, account.RefreshToken{}
	case !codeOK(u.VerificationCodeHash):
		return VerifyFailureMismatch, account.RefreshToken{}
	}

	u.Verified = true
	u.VerificationCodeHash = ""
	u.VerificationExpiresAt = nil

	issued := NewRefreshRecord(nextHash, refreshTTL, req)
	u.RefreshTokens = append(u.RefreshTokens, issued)
	u.Record(req.audit(account.ActionVerify, true))
	return VerifyFailureNone, issued
}

// ResendFailureKind classifies resend flow failures.
type ResendFailureKind int

const (
	ResendFailureNone ResendFailureKind = iota
	// ResendFailureIneligible covers verified accounts and wrong passwords.
	ResendFailureIneligible
	ResendFailureCooldown
)

// CheckResend decides whether a new code may be issued to u. The password
// is proven before the cooldown is consulted so that only the owner can
// learn about the cooldown.
func CheckResend(u *account.User, passwordOK func(hash string) bool, cooldown limiters.ResendCooldown, now time.Time) ResendFailureKind {
	if u.Verified || u.PasswordHash == "" {
		return ResendFailureIneligible
	}
	if !passwordOK(u.PasswordHash) {
		return ResendFailureIneligible
	}
	if !cooldown.Allow(u, now) {
		return ResendFailureCooldown
	}
	return ResendFailureNone
}

// ApplyResend replaces the pending code of u. The previous code stops
// verifying immediately.
func ApplyResend(u *account.User, codeHash string, codeTTL time.Duration, req Request) {
	setCode(u, codeHash, codeTTL, req.Now)
	u.Record(req.audit(account.ActionResendCode, true))
}

func setCode(u *account.User, codeHash string, ttl time.Duration, now time.Time) {
	exp := now.Add(ttl)
	sent := now
	u.VerificationCodeHash = codeHash
	u.VerificationExpiresAt = &exp
	u.LastVerificationSentAt = &sent
}
