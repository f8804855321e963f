package sessionguard

import (
	"context"
	"errors"
	"strconv"

	"github.com/MrEthical07/sessionguard/internal"
	"github.com/MrEthical07/sessionguard/internal/flows"
)

// Refresh rotates a refresh token: the presented token is revoked with a
// pointer to its successor and a new token pair is returned.
//
// Every failure returns ErrInvalidToken. Presenting a token that was
// revoked without a successor, or (with Security.RevokeAllOnRotatedReuse)
// one that was already rotated away, revokes every refresh token of the
// owner. A call that saw the token as valid and lost the rotation to a
// concurrent call with the same token fails without revoking anything.
func (e *Engine) Refresh(ctx context.Context, refreshToken string) (TokenPair, error) {
	if err := e.ready(); err != nil {
		return TokenPair{}, err
	}

	userID, err := internal.DecodeRefreshToken(refreshToken)
	if err != nil {
		e.refreshRejected(ctx, "", flows.RefreshFailureNotFound)
		return TokenPair{}, ErrInvalidToken
	}
	presented := internal.HashToken(refreshToken)
	policy := flows.RefreshPolicy{
		TTL:                     e.config.Session.RefreshTTL,
		Retention:               e.config.Session.InactiveTokenRetention,
		RevokeAllOnRotatedReuse: e.config.Security.RevokeAllOnRotatedReuse,
	}

	var (
		pair          TokenPair
		user          *User
		result        flows.RefreshResult
		observedValid bool
	)
	err = e.withRetry(func() error {
		u, err := e.store.FindByID(ctx, userID, FieldRefreshTokens)
		if err != nil {
			return err
		}
		if u == nil {
			result = flows.RefreshResult{Failure: flows.RefreshFailureNotFound}
			return ErrInvalidToken
		}

		bearer, hash, err := e.newBearer(u.ID)
		if err != nil {
			return err
		}
		result = flows.RunRefresh(u, presented, hash, observedValid, policy, e.request(ctx))
		if result.Failure == flows.RefreshFailureNone {
			pair, err = e.issuePair(u, bearer, result.Issued)
			if err != nil {
				return err
			}
		}

		if result.Persist {
			if err := e.save(ctx, u); err != nil {
				if errors.Is(err, ErrVersionConflict) && result.Failure == flows.RefreshFailureNone {
					observedValid = true
				}
				return err
			}
		}
		user = u
		if result.Failure != flows.RefreshFailureNone {
			return ErrInvalidToken
		}
		return nil
	})
	if err != nil {
		if errors.Is(err, ErrInvalidToken) {
			e.refreshRejected(ctx, userID, result.Failure)
			if result.MassRevoked && user != nil {
				e.massRevoked(ctx, user.ID, result.Revoked)
			}
		}
		return TokenPair{}, err
	}

	e.cacheSession(ctx, user, pair)

	e.metricInc(MetricRefreshSuccess)
	e.emitAudit(ctx, auditEventRefreshSuccess, true, user.ID, nil, nil)
	return pair, nil
}

func (e *Engine) refreshRejected(ctx context.Context, userID string, kind flows.RefreshFailureKind) {
	e.metricInc(MetricRefreshFailure)
	switch kind {
	case flows.RefreshFailureRaceLost:
		e.metricInc(MetricRefreshRaceLost)
		e.emitAudit(ctx, auditEventRefreshRaceLost, false, userID, ErrInvalidToken, nil)
	case flows.RefreshFailureRevoked, flows.RefreshFailureReplayed:
		e.metricInc(MetricRefreshReuseDetected)
		e.emitAudit(ctx, auditEventRefreshReuseDetected, false, userID, errRefreshReuse, func() map[string]string {
			return map[string]string{"kind": refreshFailureName(kind)}
		})
	default:
		e.emitAudit(ctx, auditEventRefreshInvalid, false, userID, ErrInvalidToken, func() map[string]string {
			return map[string]string{"kind": refreshFailureName(kind)}
		})
	}
}

// massRevoked runs after reuse detection has committed.
func (e *Engine) massRevoked(ctx context.Context, userID string, revoked int) {
	e.metricInc(MetricMassRevocation)
	e.dropSession(ctx, userID)
	e.logger.WarnContext(ctx, "sessionguard: refresh token reuse detected, all sessions revoked",
		"user_id", userID,
		"revoked", revoked,
	)
	e.emitAudit(ctx, auditEventRevokeAllTokens, true, userID, nil, func() map[string]string {
		return map[string]string{"revoked": strconv.Itoa(revoked)}
	})
}

func refreshFailureName(kind flows.RefreshFailureKind) string {
	switch kind {
	case flows.RefreshFailureNotFound:
		return "not_found"
	case flows.RefreshFailureExpired:
		return "expired"
	case flows.RefreshFailureRevoked:
		return "revoked"
	case flows.RefreshFailureReplayed:
		return "replayed"
	case flows.RefreshFailureRaceLost:
		return "race_lost"
	default:
		return "none"
	}
}
