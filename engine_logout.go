package sessionguard

import (
	"context"
	"errors"

	"github.com/MrEthical07/sessionguard/internal"
	"github.com/MrEthical07/sessionguard/internal/flows"
)

// Logout revokes exactly the presented refresh token. Other sessions of
// the same user stay valid. An unknown or already revoked token returns
// ErrInvalidToken.
func (e *Engine) Logout(ctx context.Context, refreshToken string) error {
	if err := e.ready(); err != nil {
		return err
	}

	userID, err := internal.DecodeRefreshToken(refreshToken)
	if err != nil {
		e.logoutRejected(ctx, "")
		return ErrInvalidToken
	}
	presented := internal.HashToken(refreshToken)

	err = e.withRetry(func() error {
		u, err := e.store.FindByID(ctx, userID, FieldRefreshTokens)
		if err != nil {
			return err
		}
		if u == nil {
			return ErrInvalidToken
		}
		if flows.RunLogout(u, presented, e.request(ctx)) != flows.LogoutFailureNone {
			return ErrInvalidToken
		}
		return e.save(ctx, u)
	})
	if err != nil {
		if errors.Is(err, ErrInvalidToken) {
			e.logoutRejected(ctx, userID)
		}
		return err
	}

	e.dropSession(ctx, userID)

	e.metricInc(MetricLogout)
	e.emitAudit(ctx, auditEventLogoutSuccess, true, userID, nil, nil)
	return nil
}

func (e *Engine) logoutRejected(ctx context.Context, userID string) {
	e.metricInc(MetricLogoutFailure)
	e.emitAudit(ctx, auditEventLogoutInvalid, false, userID, ErrInvalidToken, nil)
}
