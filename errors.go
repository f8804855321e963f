package sessionguard

import (
	"errors"
	"net/http"

	"github.com/MrEthical07/sessionguard/account"
)

var (
	// ErrInvalidCredentials covers unknown email, unverified account, missing
	// password hash and wrong password on login.
	ErrInvalidCredentials = errors.New("invalid credentials")
	// ErrInvalidOrExpiredCode covers every email verification failure.
	ErrInvalidOrExpiredCode = errors.New("invalid or expired verification code")
	// ErrInvalidRequest covers every resend-code failure except the cooldown,
	// and malformed registration input.
	ErrInvalidRequest = errors.New("invalid request")
	// ErrAccountLocked is returned while a lockout window is active.
	ErrAccountLocked = errors.New("account locked")
	// ErrRateLimited is returned inside the resend cooldown and by the
	// optional per-IP login throttle.
	ErrRateLimited = errors.New("rate limited")
	// ErrInvalidToken covers every refresh and logout failure.
	ErrInvalidToken = errors.New("invalid token")
	// ErrEmailAlreadyRegistered is returned by Register for a taken email.
	ErrEmailAlreadyRegistered = errors.New("email already registered")

	// ErrEngineNotReady is returned by a nil or partially built Engine.
	ErrEngineNotReady = errors.New("engine not initialized")
	// ErrVersionConflict is reported by a UserStore when a save loses a race.
	ErrVersionConflict = account.ErrVersionConflict
	// ErrDuplicateEmail is reported by a UserStore when an insert collides.
	ErrDuplicateEmail = account.ErrDuplicateEmail
)

// HTTPStatus maps an engine error to the status code and message a boundary
// layer should expose. Anything outside the closed set of engine errors maps
// to 500 so store or driver detail never reaches a client.
func HTTPStatus(err error) (int, string) {
	switch {
	case err == nil:
		return http.StatusOK, "ok"
	case errors.Is(err, ErrInvalidCredentials):
		return http.StatusUnauthorized, "invalid credentials"
	case errors.Is(err, ErrInvalidToken):
		return http.StatusUnauthorized, "invalid token"
	case errors.Is(err, ErrInvalidOrExpiredCode):
		return http.StatusBadRequest, "invalid or expired code"
	case errors.Is(err, ErrInvalidRequest):
		return http.StatusBadRequest, "invalid request"
	case errors.Is(err, ErrAccountLocked):
		return http.StatusLocked, "account locked"
	case errors.Is(err, ErrRateLimited):
		return http.StatusTooManyRequests, "too many requests"
	case errors.Is(err, ErrEmailAlreadyRegistered):
		return http.StatusConflict, "email already registered"
	default:
		return http.StatusInternalServerError, "internal error"
	}
}
