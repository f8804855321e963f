package sessionguard

import (
	"context"
	"errors"
	"net/mail"
	"strings"
	"unicode/utf8"

	"github.com/MrEthical07/sessionguard/internal"
	"github.com/MrEthical07/sessionguard/internal/flows"
)

const maxUsernameLength = 64

// Register creates an unverified account and sends its first verification
// code. It returns the new user id.
//
// Uniqueness is decided by the authoritative store, never the cache: a taken
// email seen on read, or a collision reported by the insert itself, yields
// ErrEmailAlreadyRegistered. Malformed input yields ErrInvalidRequest.
// Notifier failures are logged and do not fail the registration; the caller
// can obtain a fresh code through ResendVerificationCode.
func (e *Engine) Register(ctx context.Context, email, username, password string) (string, error) {
	if err := e.ready(); err != nil {
		return "", err
	}

	email = normalizeEmail(email)
	username = strings.TrimSpace(username)
	if err := e.validateRegistration(email, username, password); err != nil {
		e.emitAudit(ctx, auditEventRegisterFailure, false, "", err, nil)
		return "", err
	}

	existing, err := e.store.FindByEmail(ctx, email, FieldsNone)
	if err != nil {
		return "", err
	}
	if existing != nil {
		e.registerDuplicate(ctx)
		return "", ErrEmailAlreadyRegistered
	}

	passwordHash, err := e.hasher.Hash(password)
	if err != nil {
		return "", err
	}
	code, err := internal.NewVerificationCode()
	if err != nil {
		return "", err
	}
	codeHash, err := e.hasher.Hash(code)
	if err != nil {
		return "", err
	}
	id, err := internal.NewUserID()
	if err != nil {
		return "", err
	}

	u := flows.NewRegistration(flows.Registration{
		ID:           id,
		Email:        email,
		Username:     username,
		PasswordHash: passwordHash,
		CodeHash:     codeHash,
		CodeTTL:      e.config.EmailVerification.CodeTTL,
	}, e.request(ctx))

	if err := e.save(ctx, u); err != nil {
		if errors.Is(err, ErrDuplicateEmail) {
			e.registerDuplicate(ctx)
			return "", ErrEmailAlreadyRegistered
		}
		return "", err
	}

	e.cacheUser(ctx, u)
	e.sendCode(ctx, u.Email, code)

	e.metricInc(MetricRegisterSuccess)
	e.emitAudit(ctx, auditEventRegisterSuccess, true, u.ID, nil, nil)
	return u.ID, nil
}

func (e *Engine) registerDuplicate(ctx context.Context) {
	e.metricInc(MetricRegisterDuplicate)
	e.emitAudit(ctx, auditEventRegisterDuplicate, false, "", ErrEmailAlreadyRegistered, nil)
}

func (e *Engine) validateRegistration(email, username, password string) error {
	if email == "" || username == "" {
		return ErrInvalidRequest
	}
	addr, err := mail.ParseAddress(email)
	if err != nil || addr.Address != email {
		return ErrInvalidRequest
	}
	if utf8.RuneCountInString(username) > maxUsernameLength {
		return ErrInvalidRequest
	}

	n := utf8.RuneCountInString(password)
	if n < e.config.Password.MinLength || len(password) > e.config.Password.MaxLength {
		return ErrInvalidRequest
	}
	return nil
}
