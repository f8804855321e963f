package sessionguard

import (
	"errors"
	"fmt"
	"time"

	"github.com/MrEthical07/sessionguard/password"
)

// Config groups every engine setting. Start from DefaultConfig and override
// what differs; Build validates the result.
type Config struct {
	JWT               JWTConfig
	Session           SessionConfig
	Password          PasswordConfig
	EmailVerification EmailVerificationConfig
	Lockout           LockoutConfig
	Security          SecurityConfig
	Cache             CacheConfig
	Store             StoreConfig
	Audit             AuditConfig
	Metrics           MetricsConfig
}

/*
====================================
JWT CONFIG
====================================
*/

// JWTConfig configures access-token signing.
type JWTConfig struct {
	AccessTTL     time.Duration
	SigningMethod string // "ed25519" (default), "hs256" optional
	PrivateKey    []byte
	PublicKey     []byte
	Issuer        string
	Audience      string
	KeyID         string
	Leeway        time.Duration
}

/*
====================================
SESSION CONFIG
====================================
*/

// SessionConfig configures refresh-token lifetime and record retention.
type SessionConfig struct {
	RefreshTTL time.Duration
	// InactiveTokenRetention is how long an inactive refresh record is kept
	// past its natural expiry. A revoked record is never pruned before it
	// expires, so replaying it is always detected. Zero keeps records forever.
	InactiveTokenRetention time.Duration
}

/*
====================================
PASSWORD CONFIG
====================================
*/

// PasswordConfig holds Argon2id cost parameters and the registration policy.
type PasswordConfig struct {
	Memory         uint32
	Time           uint32
	Parallelism    uint8
	SaltLength     uint32
	KeyLength      uint32
	UpgradeOnLogin bool
	MinLength      int
	MaxLength      int
}

/*
====================================
EMAIL VERIFICATION CONFIG
====================================
*/

// EmailVerificationConfig configures the verification-code lifecycle.
type EmailVerificationConfig struct {
	CodeTTL        time.Duration
	ResendCooldown time.Duration
	SendTimeout    time.Duration
}

/*
====================================
LOCKOUT CONFIG
====================================
*/

// LockoutConfig configures brute-force lockout. The counter is reset to zero
// when a lock is applied.
type LockoutConfig struct {
	Threshold int
	Duration  time.Duration
}

/*
====================================
SECURITY CONFIG
====================================
*/

// SecurityConfig holds reuse-detection policy and the optional per-IP login
// throttle. The throttle needs a Redis client on the Builder.
type SecurityConfig struct {
	// RevokeAllOnRotatedReuse makes a replay of a token that was already
	// rotated away revoke every refresh token of the owner. A caller that
	// merely lost a concurrent rotation race is never treated as a replay.
	RevokeAllOnRotatedReuse bool

	EnableIPThrottle      bool
	MaxLoginAttemptsPerIP int
	IPThrottleWindow      time.Duration
	RedisPrefix           string
}

/*
====================================
CACHE CONFIG
====================================
*/

// CacheConfig configures cache entry lifetimes. SessionTTL of zero means
// the access-token TTL.
type CacheConfig struct {
	ProjectionTTL time.Duration
	SessionTTL    time.Duration
}

/*
====================================
STORE CONFIG
====================================
*/

// StoreConfig bounds optimistic-concurrency retries against the user store.
type StoreConfig struct {
	MaxConflictRetries int
}

/*
====================================
AUDIT CONFIG
====================================
*/

// AuditConfig configures the async observability audit stream.
type AuditConfig struct {
	Enabled    bool
	BufferSize int
	DropIfFull bool
}

/*
====================================
METRICS CONFIG
====================================
*/

// MetricsConfig toggles in-process counters.
type MetricsConfig struct {
	Enabled                 bool
	EnableLatencyHistograms bool
}

// DefaultConfig returns the production defaults. Signing keys must still be
// supplied.
func DefaultConfig() Config {
	return defaultConfig()
}

func defaultConfig() Config {
	return Config{
		JWT: JWTConfig{
			AccessTTL:     15 * time.Minute,
			SigningMethod: "ed25519",
			Issuer:        "sessionguard",
			Leeway:        30 * time.Second,
		},
		Session: SessionConfig{
			RefreshTTL:             30 * 24 * time.Hour,
			InactiveTokenRetention: 7 * 24 * time.Hour,
		},
		Password: PasswordConfig{
			Memory:         65536,
			Time:           3,
			Parallelism:    2,
			SaltLength:     16,
			KeyLength:      32,
			UpgradeOnLogin: true,
			MinLength:      8,
			MaxLength:      1024,
		},
		EmailVerification: EmailVerificationConfig{
			CodeTTL:        10 * time.Minute,
			ResendCooldown: 60 * time.Second,
			SendTimeout:    5 * time.Second,
		},
		Lockout: LockoutConfig{
			Threshold: 5,
			Duration:  30 * time.Minute,
		},
		Security: SecurityConfig{
			RevokeAllOnRotatedReuse: true,
			EnableIPThrottle:        false,
			MaxLoginAttemptsPerIP:   50,
			IPThrottleWindow:        15 * time.Minute,
			RedisPrefix:             "sg",
		},
		Cache: CacheConfig{
			ProjectionTTL: 5 * time.Minute,
		},
		Store: StoreConfig{
			MaxConflictRetries: 3,
		},
		Audit: AuditConfig{
			Enabled:    false,
			BufferSize: 1024,
			DropIfFull: true,
		},
		Metrics: MetricsConfig{
			Enabled:                 false,
			EnableLatencyHistograms: false,
		},
	}
}

func cloneConfig(cfg Config) Config {
	out := cfg
	out.JWT.PrivateKey = cloneBytes(cfg.JWT.PrivateKey)
	out.JWT.PublicKey = cloneBytes(cfg.JWT.PublicKey)
	return out
}

func cloneBytes(b []byte) []byte {
	if len(b) == 0 {
		return nil
	}
	out := make([]byte, len(b))
	copy(out, b)
	return out
}

/*
====================================
VALIDATION
====================================
*/

// Validate reports the first setting that is out of range, checking the
// sections in declaration order.
func (c *Config) Validate() error {
	for _, err := range []error{
		c.JWT.validate(),
		c.Session.validate(c.JWT.AccessTTL),
		c.Password.validate(),
		c.EmailVerification.validate(),
		c.Lockout.validate(),
		c.Security.validate(),
		c.Cache.validate(),
		c.Store.validate(),
		c.Audit.validate(),
	} {
		if err != nil {
			return err
		}
	}
	return nil
}

func (j JWTConfig) validate() error {
	if j.AccessTTL <= 0 {
		return errors.New("JWT AccessTTL must be > 0")
	}
	if j.Leeway < 0 || j.Leeway > 2*time.Minute {
		return errors.New("JWT Leeway must be within [0, 2m]")
	}
	switch j.SigningMethod {
	case "ed25519":
		if len(j.PrivateKey) == 0 || len(j.PublicKey) == 0 {
			return errors.New("ed25519 requires PrivateKey and PublicKey")
		}
	case "hs256":
		if len(j.PrivateKey) < 32 {
			return errors.New("hs256 requires a PrivateKey of at least 32 bytes")
		}
	default:
		return fmt.Errorf("unsupported JWT signing method %q", j.SigningMethod)
	}
	return nil
}

func (s SessionConfig) validate(accessTTL time.Duration) error {
	if s.RefreshTTL <= accessTTL || s.RefreshTTL <= 0 {
		return errors.New("Session RefreshTTL must exceed JWT AccessTTL")
	}
	if s.InactiveTokenRetention < 0 {
		return errors.New("Session InactiveTokenRetention must be >= 0")
	}
	return nil
}

// argon2 maps the cost parameters onto the hasher's config.
func (p PasswordConfig) argon2() password.Config {
	return password.Config{
		Memory:      p.Memory,
		Time:        p.Time,
		Parallelism: p.Parallelism,
		SaltLength:  p.SaltLength,
		KeyLength:   p.KeyLength,
	}
}

func (p PasswordConfig) validate() error {
	if _, err := password.NewArgon2(p.argon2()); err != nil {
		return err
	}
	if p.MinLength < 1 {
		return errors.New("Password MinLength must be >= 1")
	}
	if p.MaxLength < p.MinLength {
		return errors.New("Password MaxLength must be >= MinLength")
	}
	return nil
}

func (e EmailVerificationConfig) validate() error {
	switch {
	case e.CodeTTL <= 0:
		return errors.New("EmailVerification CodeTTL must be > 0")
	case e.ResendCooldown < 0:
		return errors.New("EmailVerification ResendCooldown must be >= 0")
	case e.SendTimeout <= 0:
		return errors.New("EmailVerification SendTimeout must be > 0")
	}
	return nil
}

func (l LockoutConfig) validate() error {
	if l.Threshold < 1 || l.Duration <= 0 {
		return errors.New("Lockout needs Threshold >= 1 and a positive Duration")
	}
	return nil
}

// The throttle budget only matters once the throttle is on.
func (s SecurityConfig) validate() error {
	if !s.EnableIPThrottle {
		return nil
	}
	if s.MaxLoginAttemptsPerIP < 1 || s.IPThrottleWindow <= 0 {
		return errors.New("Security IP throttle needs MaxLoginAttemptsPerIP >= 1 and a positive IPThrottleWindow")
	}
	return nil
}

func (c CacheConfig) validate() error {
	if c.ProjectionTTL <= 0 {
		return errors.New("Cache ProjectionTTL must be > 0")
	}
	if c.SessionTTL < 0 {
		return errors.New("Cache SessionTTL must be >= 0")
	}
	return nil
}

func (s StoreConfig) validate() error {
	if s.MaxConflictRetries < 0 || s.MaxConflictRetries > 16 {
		return errors.New("Store MaxConflictRetries must be within [0, 16]")
	}
	return nil
}

func (a AuditConfig) validate() error {
	if a.Enabled && a.BufferSize <= 0 {
		return errors.New("Audit BufferSize must be > 0 when audit is enabled")
	}
	return nil
}
