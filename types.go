package sessionguard

import (
	"context"
	"io"
	"log/slog"
	"time"

	"github.com/MrEthical07/sessionguard/account"
	internalaudit "github.com/MrEthical07/sessionguard/internal/audit"
)

// Record and projection types live in package account so that stores and
// caches can share them without importing the engine.
type (
	User           = account.User
	RefreshToken   = account.RefreshToken
	AuditEntry     = account.AuditEntry
	AuditAction    = account.AuditAction
	Role           = account.Role
	Fieldset       = account.Fieldset
	UserProjection = account.Projection
	SessionEntry   = account.SessionEntry
)

const (
	RoleUser  = account.RoleUser
	RoleAdmin = account.RoleAdmin

	FieldCredentials   = account.FieldCredentials
	FieldRefreshTokens = account.FieldRefreshTokens
	FieldAuditLog      = account.FieldAuditLog
	FieldsAll          = account.FieldsAll
	FieldsNone         = account.FieldsNone

	ActionRegister        = account.ActionRegister
	ActionLogin           = account.ActionLogin
	ActionVerify          = account.ActionVerify
	ActionResendCode      = account.ActionResendCode
	ActionRefresh         = account.ActionRefresh
	ActionLogout          = account.ActionLogout
	ActionRevokeAllTokens = account.ActionRevokeAllTokens
)

// TokenPair is returned by every operation that mints a session.
type TokenPair struct {
	AccessToken      string    `json:"access_token"`
	RefreshToken     string    `json:"refresh_token"`
	AccessExpiresAt  time.Time `json:"access_expires_at"`
	RefreshExpiresAt time.Time `json:"refresh_expires_at"`
}

// UserStore is the authoritative user record store.
//
// FindByEmail and FindByID return (nil, nil) when no record matches. The
// fields argument selects which sensitive groups are loaded; the returned
// record has Fields set accordingly.
//
// Save inserts when u.Version is 0 and reports ErrDuplicateEmail if the email
// is taken. Otherwise it performs a compare-and-swap on Version and reports
// ErrVersionConflict when the stored record has moved on. Only the groups in
// u.Fields are written; entries from u.PendingAudit are appended. On success
// Save calls u.Committed with the new version.
type UserStore interface {
	FindByEmail(ctx context.Context, email string, fields Fieldset) (*User, error)
	FindByID(ctx context.Context, id string, fields Fieldset) (*User, error)
	Save(ctx context.Context, u *User) error
}

// Cache is an advisory read accelerator. Every method is best-effort:
// implementations swallow and log their own failures, and the engine behaves
// identically when a no-op cache is installed.
type Cache interface {
	GetUser(ctx context.Context, key string) (*UserProjection, bool)
	SetUser(ctx context.Context, key string, p UserProjection, ttl time.Duration)
	SetSession(ctx context.Context, key string, s SessionEntry, ttl time.Duration)
	Invalidate(ctx context.Context, key string)
	AppendAuditEntry(ctx context.Context, userID string, entry AuditEntry)
}

// Notifier delivers verification codes out of band.
type Notifier interface {
	SendVerificationCode(ctx context.Context, email, code string) error
}

// Clock is the engine's source of the current time.
type Clock interface {
	Now() time.Time
}

// SystemClock reads the wall clock.
type SystemClock struct{}

// Now returns time.Now in UTC.
func (SystemClock) Now() time.Time { return time.Now().UTC() }

// UserEmailKey is the cache key of a projection looked up by email.
func UserEmailKey(email string) string { return "user:email:" + email }

// UserIDKey is the cache key of a projection looked up by id.
func UserIDKey(id string) string { return "user:id:" + id }

// SessionKey is the cache key of a user's session entry.
func SessionKey(userID string) string { return "session:" + userID }

// AuditEvent is the observability event emitted to an AuditSink.
type AuditEvent = internalaudit.Event

// AuditSink receives audit events from the async dispatcher.
type AuditSink = internalaudit.Sink

// NoOpSink drops audit events.
type NoOpSink = internalaudit.NoOpSink

// ChannelSink buffers audit events on a channel.
type ChannelSink = internalaudit.ChannelSink

// JSONWriterSink writes one JSON object per line.
type JSONWriterSink = internalaudit.JSONWriterSink

// NewChannelSink returns a ChannelSink with the given buffer.
func NewChannelSink(buffer int) *ChannelSink { return internalaudit.NewChannelSink(buffer) }

// NewJSONWriterSink returns a sink writing JSON lines to w.
func NewJSONWriterSink(w io.Writer) *JSONWriterSink { return internalaudit.NewJSONWriterSink(w) }

// MultiSink fans audit events out to several sinks.
type MultiSink = internalaudit.MultiSink

// SlogSink logs audit events through a slog.Logger.
type SlogSink = internalaudit.SlogSink

// NewSlogSink returns a sink logging through logger, or slog.Default when nil.
func NewSlogSink(logger *slog.Logger) *SlogSink { return internalaudit.NewSlogSink(logger) }
