package sessionguard

import (
	"context"
	"errors"

	"github.com/MrEthical07/sessionguard/internal"
	"github.com/MrEthical07/sessionguard/internal/flows"
)

// VerifyEmail confirms the account registered under email with a code and
// mints its first session.
//
// A missing account, an already verified account, an expired code and a
// wrong code are indistinguishable: each returns ErrInvalidOrExpiredCode
// after the same amount of hashing work. The code is valid strictly
// before its expiry.
func (e *Engine) VerifyEmail(ctx context.Context, email, code string) (TokenPair, error) {
	if err := e.ready(); err != nil {
		return TokenPair{}, err
	}

	email = normalizeEmail(email)
	check := e.newSecretCheck(code)

	var (
		pair    TokenPair
		user    *User
		subject string
	)
	err := e.withRetry(func() error {
		u, err := e.store.FindByEmail(ctx, email, FieldCredentials|FieldRefreshTokens)
		if err != nil {
			return err
		}
		if u == nil {
			return ErrInvalidOrExpiredCode
		}
		subject = u.ID

		bearer, hash, err := e.newBearer(u.ID)
		if err != nil {
			return err
		}
		kind, issued := flows.RunVerify(u, check.verify, hash, e.config.Session.RefreshTTL, e.request(ctx))
		if kind != flows.VerifyFailureNone {
			return ErrInvalidOrExpiredCode
		}

		pair, err = e.issuePair(u, bearer, issued)
		if err != nil {
			return err
		}
		if err := e.save(ctx, u); err != nil {
			return err
		}
		user = u
		return nil
	})
	if err != nil {
		if errors.Is(err, ErrInvalidOrExpiredCode) {
			check.equalize(e.timingDigest)
			e.metricInc(MetricVerifyFailure)
			e.emitAudit(ctx, auditEventVerifyFailure, false, subject, err, nil)
		}
		return TokenPair{}, err
	}

	e.cacheUser(ctx, user)
	e.cacheSession(ctx, user, pair)

	e.metricInc(MetricVerifySuccess)
	e.emitAudit(ctx, auditEventVerifySuccess, true, user.ID, nil, nil)
	return pair, nil
}

// ResendVerificationCode issues a new code for an unverified account after
// the caller proves the password. The previous code stops verifying.
//
// A missing account, a verified account and a wrong password all return
// ErrInvalidRequest. Inside the cooldown window the call returns
// ErrRateLimited; the cooldown is only revealed to a caller who knows the
// password.
func (e *Engine) ResendVerificationCode(ctx context.Context, email, password string) error {
	if err := e.ready(); err != nil {
		return err
	}

	email = normalizeEmail(email)
	check := e.newSecretCheck(password)

	var (
		code     string
		codeHash string
		userID   string
	)
	err := e.withRetry(func() error {
		u, err := e.store.FindByEmail(ctx, email, FieldCredentials)
		if err != nil {
			return err
		}
		if u == nil {
			return ErrInvalidRequest
		}
		userID = u.ID

		req := e.request(ctx)
		switch flows.CheckResend(u, check.verify, e.cooldown, req.Now) {
		case flows.ResendFailureIneligible:
			return ErrInvalidRequest
		case flows.ResendFailureCooldown:
			return ErrRateLimited
		}

		// One code per call, reused across conflict retries.
		if code == "" {
			if code, err = internal.NewVerificationCode(); err != nil {
				return err
			}
			if codeHash, err = e.hasher.Hash(code); err != nil {
				code = ""
				return err
			}
		}
		flows.ApplyResend(u, codeHash, e.config.EmailVerification.CodeTTL, req)

		if err := e.save(ctx, u); err != nil {
			return err
		}
		return nil
	})
	switch {
	case errors.Is(err, ErrInvalidRequest):
		check.equalize(e.timingDigest)
		e.metricInc(MetricResendFailure)
		e.emitAudit(ctx, auditEventResendFailure, false, userID, err, nil)
		return err
	case errors.Is(err, ErrRateLimited):
		e.metricInc(MetricResendRateLimited)
		e.emitAudit(ctx, auditEventResendFailure, false, userID, err, nil)
		return err
	case err != nil:
		return err
	}

	e.sendCode(ctx, email, code)

	e.metricInc(MetricResendSuccess)
	e.emitAudit(ctx, auditEventResendSuccess, true, userID, nil, nil)
	return nil
}
