package sessionguard

import (
	"context"
	"errors"
	"time"

	"github.com/MrEthical07/sessionguard/internal/flows"
	"github.com/MrEthical07/sessionguard/internal/rate"
)

const loginFields = FieldCredentials | FieldRefreshTokens

// Login authenticates email and password and mints a new session.
//
// The credential decision is always taken on a record read from the
// store. A cached projection only supplies the id to read by. Unknown,
// unverified and password-less accounts return ErrInvalidCredentials at
// the same cost as a wrong password. During an active lock the call
// returns ErrAccountLocked whatever the password.
func (e *Engine) Login(ctx context.Context, email, password string) (TokenPair, error) {
	if err := e.ready(); err != nil {
		return TokenPair{}, err
	}
	start := time.Now()
	defer e.observe(MetricLoginLatency, start)

	email = normalizeEmail(email)
	ip := clientIPFromContext(ctx)
	if err := e.checkIPThrottle(ctx, ip); err != nil {
		return TokenPair{}, err
	}

	check := e.newSecretCheck(password)
	policy := flows.LoginPolicy{
		Lockout:    e.lockout,
		RefreshTTL: e.config.Session.RefreshTTL,
		Retention:  e.config.Session.InactiveTokenRetention,
	}

	var (
		pair     TokenPair
		user     *User
		result   flows.LoginResult
		rehashed bool
		subject  string
	)
	err := e.withRetry(func() error {
		u, err := e.loadForLogin(ctx, email)
		if err != nil {
			return err
		}
		if u == nil {
			return ErrInvalidCredentials
		}
		subject = u.ID

		bearer, hash, err := e.newBearer(u.ID)
		if err != nil {
			return err
		}
		result = flows.RunLogin(u, check.verify, hash, policy, e.request(ctx))
		switch result.Failure {
		case flows.LoginFailureIneligible:
			return ErrInvalidCredentials
		case flows.LoginFailureLocked:
			return ErrAccountLocked
		case flows.LoginFailureNone:
			rehashed = e.upgradePassword(ctx, u, password, check)
			pair, err = e.issuePair(u, bearer, result.Issued)
			if err != nil {
				return err
			}
		}

		if err := e.save(ctx, u); err != nil {
			return err
		}
		user = u
		if result.Failure == flows.LoginFailurePassword {
			return ErrInvalidCredentials
		}
		return nil
	})

	switch {
	case errors.Is(err, ErrInvalidCredentials):
		check.equalize(e.timingDigest)
		e.countIPFailure(ctx, ip)
		e.metricInc(MetricLoginFailure)
		if result.LockApplied {
			e.metricInc(MetricLockoutApplied)
			e.logger.WarnContext(ctx, "sessionguard: account locked after repeated failures", "user_id", subject)
			e.emitAudit(ctx, auditEventLockoutApplied, false, subject, ErrAccountLocked, nil)
		}
		e.emitAudit(ctx, auditEventLoginFailure, false, subject, err, nil)
		return TokenPair{}, err
	case errors.Is(err, ErrAccountLocked):
		e.countIPFailure(ctx, ip)
		e.metricInc(MetricLoginLocked)
		e.emitAudit(ctx, auditEventLoginLocked, false, subject, err, nil)
		return TokenPair{}, err
	case err != nil:
		return TokenPair{}, err
	}

	e.cacheSession(ctx, user, pair)
	e.cacheUser(ctx, user)

	if rehashed {
		e.metricInc(MetricPasswordRehashed)
		e.emitAudit(ctx, auditEventPasswordRehashed, true, user.ID, nil, nil)
	}
	e.metricInc(MetricLoginSuccess)
	e.emitAudit(ctx, auditEventLoginSuccess, true, user.ID, nil, nil)
	return pair, nil
}

// loadForLogin reads the record login decides on. A cached projection
// whose record has since moved to another email is discarded.
func (e *Engine) loadForLogin(ctx context.Context, email string) (*User, error) {
	key := UserEmailKey(email)
	if hit, ok := e.cache.GetUser(ctx, key); ok && hit != nil && hit.ID != "" {
		u, err := e.store.FindByID(ctx, hit.ID, loginFields)
		if err != nil {
			return nil, err
		}
		if u != nil && u.Email == email {
			return u, nil
		}
		e.cache.Invalidate(ctx, key)
	}
	return e.store.FindByEmail(ctx, email, loginFields)
}

// upgradePassword rehashes a verified password whose digest was produced
// with weaker parameters. Failure keeps the old digest.
func (e *Engine) upgradePassword(ctx context.Context, u *User, password string, check *secretCheck) bool {
	if !e.config.Password.UpgradeOnLogin || !e.hasher.NeedsUpgrade(u.PasswordHash) {
		return false
	}
	next, err := e.hasher.Hash(password)
	if err != nil {
		e.logger.WarnContext(ctx, "sessionguard: password hash upgrade failed", "user_id", u.ID, "error", err)
		return false
	}
	u.PasswordHash = next
	check.remember(next)
	return true
}

// checkIPThrottle fails open when Redis is unavailable: the per-account
// lockout still applies.
func (e *Engine) checkIPThrottle(ctx context.Context, ip string) error {
	if e.ipLimiter == nil {
		return nil
	}
	err := e.ipLimiter.CheckLogin(ctx, ip)
	switch {
	case err == nil:
		return nil
	case errors.Is(err, rate.ErrRateLimited):
		e.metricInc(MetricLoginRateLimited)
		e.emitAudit(ctx, auditEventLoginRateLimited, false, "", ErrRateLimited, nil)
		return ErrRateLimited
	default:
		e.logger.WarnContext(ctx, "sessionguard: login throttle unavailable", "error", err)
		return nil
	}
}

func (e *Engine) countIPFailure(ctx context.Context, ip string) {
	if e.ipLimiter == nil {
		return
	}
	if err := e.ipLimiter.IncrementLogin(ctx, ip); err != nil {
		e.logger.WarnContext(ctx, "sessionguard: login throttle update failed", "error", err)
	}
}
