package sessionguard

import (
	"context"
	"errors"
)

const (
	auditEventRegisterSuccess      = "register_success"
	auditEventRegisterDuplicate    = "register_duplicate"
	auditEventRegisterFailure      = "register_failure"
	auditEventVerifySuccess        = "email_verification_success"
	auditEventVerifyFailure        = "email_verification_failure"
	auditEventResendSuccess        = "verification_resend_success"
	auditEventResendFailure        = "verification_resend_failure"
	auditEventLoginSuccess         = "login_success"
	auditEventLoginFailure         = "login_failure"
	auditEventLoginLocked          = "login_locked"
	auditEventLockoutApplied       = "lockout_applied"
	auditEventLoginRateLimited     = "login_rate_limited"
	auditEventPasswordRehashed     = "password_rehashed"
	auditEventRefreshSuccess       = "refresh_success"
	auditEventRefreshInvalid       = "refresh_invalid"
	auditEventRefreshRaceLost      = "refresh_race_lost"
	auditEventRefreshReuseDetected = "refresh_reuse_detected"
	auditEventRevokeAllTokens      = "revoke_all_tokens"
	auditEventLogoutSuccess        = "logout_success"
	auditEventLogoutInvalid        = "logout_invalid"
	auditEventNotifyFailure        = "verification_delivery_failure"
)

// AuditErrorCode is the stable, non-sensitive error label carried by audit
// events.
type AuditErrorCode string

const (
	auditErrInvalidCredentials AuditErrorCode = "invalid_credentials"
	auditErrInvalidCode        AuditErrorCode = "invalid_code"
	auditErrInvalidRequest     AuditErrorCode = "invalid_request"
	auditErrAccountLocked      AuditErrorCode = "account_locked"
	auditErrRateLimited        AuditErrorCode = "rate_limited"
	auditErrInvalidToken       AuditErrorCode = "invalid_token"
	auditErrRefreshReuse       AuditErrorCode = "refresh_reuse"
	auditErrDuplicate          AuditErrorCode = "duplicate"
	auditErrConflict           AuditErrorCode = "version_conflict"
	auditErrDelivery           AuditErrorCode = "delivery_failed"
	auditErrInternal           AuditErrorCode = "internal_error"
)

// errRefreshReuse labels reuse-detection events. It never leaves the engine.
var errRefreshReuse = errors.New("refresh token reuse")

// errDelivery labels notifier failures. It never leaves the engine.
var errDelivery = errors.New("verification code delivery failed")

func (e *Engine) emitAudit(
	ctx context.Context,
	eventType string,
	success bool,
	userID string,
	err error,
	metadataBuilder func() map[string]string,
) {
	if e == nil || e.audit == nil {
		return
	}

	var metadata map[string]string
	if metadataBuilder != nil {
		metadata = metadataBuilder()
	}

	event := AuditEvent{
		Timestamp: e.now(),
		EventType: eventType,
		UserID:    userID,
		IP:        clientIPFromContext(ctx),
		UserAgent: userAgentFromContext(ctx),
		Success:   success,
		Metadata:  metadata,
	}
	if code := auditErrorCode(err); code != "" {
		event.Error = string(code)
	}

	e.audit.Emit(ctx, event)
}

func auditErrorCode(err error) AuditErrorCode {
	if err == nil {
		return ""
	}

	switch {
	case errors.Is(err, ErrInvalidCredentials):
		return auditErrInvalidCredentials
	case errors.Is(err, ErrInvalidOrExpiredCode):
		return auditErrInvalidCode
	case errors.Is(err, ErrInvalidRequest):
		return auditErrInvalidRequest
	case errors.Is(err, ErrAccountLocked):
		return auditErrAccountLocked
	case errors.Is(err, ErrRateLimited):
		return auditErrRateLimited
	case errors.Is(err, errRefreshReuse):
		return auditErrRefreshReuse
	case errors.Is(err, ErrInvalidToken):
		return auditErrInvalidToken
	case errors.Is(err, ErrEmailAlreadyRegistered),
		errors.Is(err, ErrDuplicateEmail):
		return auditErrDuplicate
	case errors.Is(err, ErrVersionConflict):
		return auditErrConflict
	case errors.Is(err, errDelivery):
		return auditErrDelivery
	default:
		return auditErrInternal
	}
}
