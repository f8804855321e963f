package sessionguard

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/MrEthical07/sessionguard/internal"
	internalaudit "github.com/MrEthical07/sessionguard/internal/audit"
	"github.com/MrEthical07/sessionguard/internal/flows"
	"github.com/MrEthical07/sessionguard/internal/limiters"
	"github.com/MrEthical07/sessionguard/internal/rate"
	"github.com/MrEthical07/sessionguard/jwt"
	"github.com/MrEthical07/sessionguard/password"
)

// Engine is the session service. It orchestrates registration, email
// verification, login, refresh rotation and logout over a UserStore.
//
// An Engine is built once through [Builder.Build] and is safe for
// concurrent use afterwards. Per-user mutations are serialized by the
// store's version check; the engine re-runs an operation against a fresh
// read when a save loses a race.
type Engine struct {
	config   Config
	store    UserStore
	cache    Cache
	notifier Notifier
	clock    Clock
	logger   *slog.Logger

	hasher     *password.Argon2
	jwtManager *jwt.Manager
	lockout    limiters.Lockout
	cooldown   limiters.ResendCooldown
	ipLimiter  *rate.Limiter
	audit      *internalaudit.Dispatcher
	metrics    *Metrics

	// timingDigest is verified against on failure paths that would
	// otherwise skip the hasher entirely.
	timingDigest string
}

// Close flushes and stops the audit dispatcher. The engine must not be used
// afterwards.
func (e *Engine) Close() {
	if e == nil {
		return
	}
	if e.audit != nil {
		e.audit.Close()
	}
}

// AuditDropped returns the number of audit events dropped because the
// dispatcher buffer was full.
func (e *Engine) AuditDropped() uint64 {
	if e == nil || e.audit == nil {
		return 0
	}
	return e.audit.Dropped()
}

// MetricsSnapshot returns a point-in-time copy of the engine counters.
func (e *Engine) MetricsSnapshot() MetricsSnapshot {
	if e == nil || e.metrics == nil {
		return MetricsSnapshot{
			Counters:   map[MetricID]uint64{},
			Histograms: map[MetricID][]uint64{},
		}
	}
	return e.metrics.Snapshot()
}

// ValidateAccess verifies a signed access token and returns its claims.
// Every failure is reported as ErrInvalidToken.
func (e *Engine) ValidateAccess(token string) (*jwt.AccessClaims, error) {
	if e == nil || e.jwtManager == nil {
		return nil, ErrEngineNotReady
	}
	claims, err := e.jwtManager.ParseAccess(token)
	if err != nil {
		return nil, ErrInvalidToken
	}
	return claims, nil
}

func (e *Engine) ready() error {
	if e == nil || e.store == nil || e.hasher == nil || e.jwtManager == nil {
		return ErrEngineNotReady
	}
	return nil
}

func (e *Engine) metricInc(id MetricID) {
	if e == nil || e.metrics == nil {
		return
	}
	e.metrics.Inc(id)
}

func (e *Engine) observe(id MetricID, start time.Time) {
	if e == nil || !e.metrics.LatencyEnabled() {
		return
	}
	e.metrics.Observe(id, time.Since(start))
}

func (e *Engine) now() time.Time {
	return e.clock.Now().UTC()
}

func (e *Engine) request(ctx context.Context) flows.Request {
	return flows.Request{
		Now:       e.now(),
		IP:        clientIPFromContext(ctx),
		UserAgent: userAgentFromContext(ctx),
	}
}

// withRetry runs fn until it returns anything other than a version
// conflict, at most Store.MaxConflictRetries extra times.
func (e *Engine) withRetry(fn func() error) error {
	var err error
	for attempt := 0; attempt <= e.config.Store.MaxConflictRetries; attempt++ {
		err = fn()
		if !errors.Is(err, ErrVersionConflict) {
			return err
		}
		e.metricInc(MetricStoreConflict)
	}
	return err
}

// save persists u and then mirrors the audit entries it committed.
func (e *Engine) save(ctx context.Context, u *User) error {
	entries := u.PendingAudit()
	if err := e.store.Save(ctx, u); err != nil {
		if !errors.Is(err, ErrVersionConflict) && !errors.Is(err, ErrDuplicateEmail) {
			e.logger.ErrorContext(ctx, "sessionguard: user store save failed", "user_id", u.ID, "error", err)
		}
		return err
	}
	for _, entry := range entries {
		e.cache.AppendAuditEntry(ctx, u.ID, entry)
	}
	return nil
}

func (e *Engine) newBearer(userID string) (token string, hash string, err error) {
	token, err = internal.NewRefreshToken(userID)
	if err != nil {
		return "", "", err
	}
	return token, internal.HashToken(token), nil
}

// issuePair signs the access token that accompanies a freshly created
// refresh record. It runs before the save so that a signing failure never
// commits a session the caller cannot use.
func (e *Engine) issuePair(u *User, bearer string, issued RefreshToken) (TokenPair, error) {
	access, exp, err := e.jwtManager.CreateAccess(u.ID, string(u.Role))
	if err != nil {
		return TokenPair{}, err
	}
	return TokenPair{
		AccessToken:      access,
		RefreshToken:     bearer,
		AccessExpiresAt:  exp,
		RefreshExpiresAt: issued.ExpiresAt,
	}, nil
}

func (e *Engine) cacheUser(ctx context.Context, u *User) {
	p := u.Projection()
	ttl := e.config.Cache.ProjectionTTL
	e.cache.SetUser(ctx, UserEmailKey(u.Email), p, ttl)
	e.cache.SetUser(ctx, UserIDKey(u.ID), p, ttl)
}

func (e *Engine) cacheSession(ctx context.Context, u *User, pair TokenPair) {
	ttl := e.config.Cache.SessionTTL
	if ttl <= 0 {
		ttl = e.config.JWT.AccessTTL
	}
	e.cache.SetSession(ctx, SessionKey(u.ID), SessionEntry{
		UserID:    u.ID,
		Role:      u.Role,
		IP:        clientIPFromContext(ctx),
		UserAgent: userAgentFromContext(ctx),
		IssuedAt:  e.now(),
		ExpiresAt: pair.AccessExpiresAt,
	}, ttl)
}

func (e *Engine) dropSession(ctx context.Context, userID string) {
	e.cache.Invalidate(ctx, SessionKey(userID))
}

// sendCode hands a verification code to the notifier. Delivery is
// best-effort: failures are logged and counted, never returned. The send
// outlives caller cancellation but is bounded by SendTimeout.
func (e *Engine) sendCode(ctx context.Context, email, code string) {
	sendCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), e.config.EmailVerification.SendTimeout)
	defer cancel()

	if err := e.notifier.SendVerificationCode(sendCtx, email, code); err != nil {
		e.metricInc(MetricNotifyFailure)
		e.logger.WarnContext(ctx, "sessionguard: verification code delivery failed", "error", err)
		e.emitAudit(ctx, auditEventNotifyFailure, false, "", errDelivery, nil)
	}
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// secretCheck verifies one presented secret against stored digests. The
// result for the last digest is memoized so an operation retried after a
// version conflict does not pay the hashing cost twice.
type secretCheck struct {
	hasher *password.Argon2
	secret string

	digest string
	ok     bool
	ran    bool
}

func (e *Engine) newSecretCheck(secret string) *secretCheck {
	return &secretCheck{hasher: e.hasher, secret: secret}
}

func (c *secretCheck) verify(digest string) bool {
	if c.ran && digest == c.digest {
		return c.ok
	}
	c.digest, c.ok, c.ran = digest, c.hasher.Verify(c.secret, digest), true
	return c.ok
}

// remember records that secret is known to match digest.
func (c *secretCheck) remember(digest string) {
	c.digest, c.ok, c.ran = digest, true, true
}

// equalize spends one verification when none ran, so that a rejection
// decided before the hasher costs the same as a wrong secret.
func (c *secretCheck) equalize(digest string) {
	if c.ran || digest == "" {
		return
	}
	c.hasher.Verify(c.secret, digest)
}
