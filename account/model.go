package account

import (
	"errors"
	"time"
)

var (
	// ErrVersionConflict is returned by stores when a save races another
	// writer and the stored version no longer matches.
	ErrVersionConflict = errors.New("user record version conflict")
	// ErrDuplicateEmail is returned by stores when an insert collides with
	// an existing email.
	ErrDuplicateEmail = errors.New("email already present in store")
)

// Role is the authorization role carried by access tokens.
type Role string

const (
	RoleUser  Role = "user"
	RoleAdmin Role = "admin"
)

// Fieldset selects which sensitive field groups a store read includes.
type Fieldset uint8

const (
	// FieldCredentials covers the password hash and the verification code
	// hash with its expiry.
	FieldCredentials Fieldset = 1 << iota
	// FieldRefreshTokens covers the refresh token records.
	FieldRefreshTokens
	// FieldAuditLog covers the persisted audit trail.
	FieldAuditLog

	FieldsNone Fieldset = 0
	FieldsAll           = FieldCredentials | FieldRefreshTokens | FieldAuditLog
)

// Has reports whether every group in other is present in f.
func (f Fieldset) Has(other Fieldset) bool {
	return f&other == other
}

// User is the authoritative user record.
//
// Version is 0 for a record that was never persisted. Stores bump it on
// every successful save and reject saves whose Version is stale. Fields
// records which sensitive groups were loaded; stores only write back the
// groups that are present.
type User struct {
	ID        string    `json:"id" bson:"_id"`
	Email     string    `json:"email" bson:"email"`
	Username  string    `json:"username" bson:"username"`
	Role      Role      `json:"role" bson:"role"`
	Verified  bool      `json:"verified" bson:"verified"`
	CreatedAt time.Time `json:"created_at" bson:"created_at"`
	UpdatedAt time.Time `json:"updated_at" bson:"updated_at"`

	PasswordHash          string     `json:"-" bson:"password_hash,omitempty"`
	VerificationCodeHash  string     `json:"-" bson:"verification_code_hash,omitempty"`
	VerificationExpiresAt *time.Time `json:"-" bson:"verification_expires_at,omitempty"`

	LastVerificationSentAt *time.Time `json:"-" bson:"last_verification_sent_at,omitempty"`
	FailedLoginAttempts    int        `json:"-" bson:"failed_login_attempts"`
	LockUntil              *time.Time `json:"-" bson:"lock_until,omitempty"`

	RefreshTokens []RefreshToken `json:"-" bson:"refresh_tokens,omitempty"`
	AuditLog      []AuditEntry   `json:"-" bson:"audit_log,omitempty"`

	Version int64    `json:"-" bson:"version"`
	Fields  Fieldset `json:"-" bson:"-"`

	pendingAudit []AuditEntry
}

// RefreshToken is one server-tracked refresh token.
//
// Token holds the SHA-256 digest of the bearer value, never the value
// itself. ReplacedByToken holds the digest of the successor and is set only
// by rotation.
type RefreshToken struct {
	Token           string     `json:"token" bson:"token"`
	ExpiresAt       time.Time  `json:"expires_at" bson:"expires_at"`
	CreatedAt       time.Time  `json:"created_at" bson:"created_at"`
	CreatedByIP     string     `json:"created_by_ip,omitempty" bson:"created_by_ip,omitempty"`
	UserAgent       string     `json:"user_agent,omitempty" bson:"user_agent,omitempty"`
	Revoked         bool       `json:"revoked" bson:"revoked"`
	RevokedAt       *time.Time `json:"revoked_at,omitempty" bson:"revoked_at,omitempty"`
	RevokedByIP     string     `json:"revoked_by_ip,omitempty" bson:"revoked_by_ip,omitempty"`
	ReplacedByToken string     `json:"replaced_by_token,omitempty" bson:"replaced_by_token,omitempty"`
}

// Active reports whether the token can still be exchanged at now.
func (t RefreshToken) Active(now time.Time) bool {
	return !t.Revoked && now.Before(t.ExpiresAt)
}

// Rotated reports whether the token was superseded by rotation.
func (t RefreshToken) Rotated() bool {
	return t.Revoked && t.ReplacedByToken != ""
}

// AuditAction names a security-relevant event on a user record.
type AuditAction string

const (
	ActionRegister        AuditAction = "register"
	ActionLogin           AuditAction = "login"
	ActionVerify          AuditAction = "verify"
	ActionResendCode      AuditAction = "resend_code"
	ActionRefresh         AuditAction = "refresh"
	ActionLogout          AuditAction = "logout"
	ActionRevokeAllTokens AuditAction = "revoke_all_tokens"
)

// AuditEntry is one append-only audit record.
type AuditEntry struct {
	Action    AuditAction `json:"action" bson:"action"`
	Success   bool        `json:"success" bson:"success"`
	At        time.Time   `json:"at" bson:"at"`
	IP        string      `json:"ip,omitempty" bson:"ip,omitempty"`
	UserAgent string      `json:"user_agent,omitempty" bson:"user_agent,omitempty"`
}

// Record appends entry to the audit log and queues it for the next save.
func (u *User) Record(entry AuditEntry) {
	u.AuditLog = append(u.AuditLog, entry)
	u.pendingAudit = append(u.pendingAudit, entry)
}

// PendingAudit returns the entries recorded since the record was loaded or
// last committed.
func (u *User) PendingAudit() []AuditEntry {
	return u.pendingAudit
}

// Committed is called by stores after a successful save. It advances the
// version and clears the pending audit queue.
func (u *User) Committed(version int64) {
	u.Version = version
	u.pendingAudit = nil
}

// FindRefreshToken returns the index of the token whose digest is hash, or -1.
func (u *User) FindRefreshToken(hash string) int {
	for i := range u.RefreshTokens {
		if u.RefreshTokens[i].Token == hash {
			return i
		}
	}
	return -1
}

// Clone returns a deep copy of u, including the pending audit queue.
func (u *User) Clone() *User {
	if u == nil {
		return nil
	}
	c := *u
	c.VerificationExpiresAt = cloneTime(u.VerificationExpiresAt)
	c.LastVerificationSentAt = cloneTime(u.LastVerificationSentAt)
	c.LockUntil = cloneTime(u.LockUntil)
	if u.RefreshTokens != nil {
		c.RefreshTokens = make([]RefreshToken, len(u.RefreshTokens))
		for i, t := range u.RefreshTokens {
			t.RevokedAt = cloneTime(t.RevokedAt)
			c.RefreshTokens[i] = t
		}
	}
	if u.AuditLog != nil {
		c.AuditLog = append([]AuditEntry(nil), u.AuditLog...)
	}
	if u.pendingAudit != nil {
		c.pendingAudit = append([]AuditEntry(nil), u.pendingAudit...)
	}
	return &c
}

// Projection returns the sanitized, cacheable view of u.
func (u *User) Projection() Projection {
	return Projection{
		ID:        u.ID,
		Email:     u.Email,
		Username:  u.Username,
		Role:      u.Role,
		Verified:  u.Verified,
		CreatedAt: u.CreatedAt,
	}
}

// Projection is the cached subset of a user record. It never carries
// credentials, refresh tokens or the audit log.
type Projection struct {
	ID        string    `json:"id"`
	Email     string    `json:"email"`
	Username  string    `json:"username"`
	Role      Role      `json:"role"`
	Verified  bool      `json:"verified"`
	CreatedAt time.Time `json:"created_at"`
}

// SessionEntry is the short-lived session metadata cached after login.
type SessionEntry struct {
	UserID    string    `json:"user_id"`
	Role      Role      `json:"role"`
	IP        string    `json:"ip,omitempty"`
	UserAgent string    `json:"user_agent,omitempty"`
	IssuedAt  time.Time `json:"issued_at"`
	ExpiresAt time.Time `json:"expires_at"`
}

func cloneTime(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	v := *t
	return &v
}
