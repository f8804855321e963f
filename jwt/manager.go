package jwt

import (
	"crypto/ed25519"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// SigningMethod selects the JWS algorithm used for access tokens.
type SigningMethod string

const (
	// MethodEd25519 signs with EdDSA over Ed25519 keys.
	MethodEd25519 SigningMethod = "ed25519"
	// MethodHS256 signs with HMAC-SHA256 over a shared secret.
	MethodHS256 SigningMethod = "hs256"
)

// Config configures a Manager.
//
// For MethodHS256 PrivateKey holds the shared secret. For MethodEd25519 keys
// may be raw or PEM encoded. VerifyKeys, when set, lets tokens signed under an
// older kid keep verifying during key rotation.
type Config struct {
	AccessTTL     time.Duration
	SigningMethod SigningMethod
	PrivateKey    []byte
	PublicKey     []byte
	Issuer        string
	Audience      string
	Leeway        time.Duration
	KeyID         string
	VerifyKeys    map[string][]byte
	// Now overrides the wall clock for iat/exp stamping and validation.
	Now func() time.Time
}

// ErrUnknownKeyID is returned for a token whose kid has no verify key.
var ErrUnknownKeyID = errors.New("jwt: unknown kid")

// Manager issues and parses access tokens. Keys are decoded once by
// NewManager.
type Manager struct {
	config  Config
	method  jwt.SigningMethod
	signKey any
	// verify maps kid to key; the "" entry serves tokens without a kid.
	verify map[string]any
	parser *jwt.Parser
}

// AccessClaims are the claims carried by an access token.
type AccessClaims struct {
	UID  string `json:"uid"`
	Role string `json:"role"`
	jwt.RegisteredClaims
}

// NewManager validates cfg and returns a Manager.
func NewManager(cfg Config) (*Manager, error) {
	if cfg.AccessTTL <= 0 {
		return nil, errors.New("jwt: access TTL must be positive")
	}
	if cfg.Leeway < 0 || cfg.Leeway > 2*time.Minute {
		return nil, errors.New("jwt: leeway must be within [0, 2m]")
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	cfg.KeyID = strings.TrimSpace(cfg.KeyID)

	m := &Manager{config: cfg, verify: map[string]any{}}
	var err error
	switch cfg.SigningMethod {
	case MethodHS256:
		err = m.useHMAC()
	case MethodEd25519:
		err = m.useEd25519()
	default:
		err = fmt.Errorf("jwt: unsupported signing method %q", cfg.SigningMethod)
	}
	if err != nil {
		return nil, err
	}

	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{m.method.Alg()}),
		jwt.WithTimeFunc(cfg.Now),
		jwt.WithExpirationRequired(),
		jwt.WithLeeway(cfg.Leeway),
	}
	if cfg.Issuer != "" {
		opts = append(opts, jwt.WithIssuer(cfg.Issuer))
	}
	if cfg.Audience != "" {
		opts = append(opts, jwt.WithAudience(cfg.Audience))
	}
	m.parser = jwt.NewParser(opts...)
	return m, nil
}

func (m *Manager) useHMAC() error {
	if len(m.config.PrivateKey) < 32 {
		return errors.New("jwt: hs256 requires a secret of at least 32 bytes")
	}
	m.method = jwt.SigningMethodHS256
	m.signKey = m.config.PrivateKey
	m.verify[m.config.KeyID] = m.config.PrivateKey
	return nil
}

func (m *Manager) useEd25519() error {
	m.method = jwt.SigningMethodEdDSA
	if len(m.config.PrivateKey) > 0 {
		priv, err := parseEdPrivateKey(m.config.PrivateKey)
		if err != nil {
			return err
		}
		m.signKey = priv
	}

	if len(m.config.VerifyKeys) == 0 {
		if len(m.config.PublicKey) == 0 {
			return errors.New("jwt: ed25519 requires a public key or verify keys")
		}
		pub, err := parseEdPublicKey(m.config.PublicKey)
		if err != nil {
			return err
		}
		m.verify[m.config.KeyID] = pub
		return nil
	}

	for kid, raw := range m.config.VerifyKeys {
		if strings.TrimSpace(kid) == "" {
			return errors.New("jwt: verify keys contain an empty kid")
		}
		pub, err := parseEdPublicKey(raw)
		if err != nil {
			return fmt.Errorf("jwt: verify key %q: %w", kid, err)
		}
		m.verify[kid] = pub
	}
	if m.config.KeyID != "" {
		if _, ok := m.verify[m.config.KeyID]; !ok {
			return errors.New("jwt: KeyID is not present in VerifyKeys")
		}
	}
	return nil
}

// TTL returns the configured access-token lifetime.
func (m *Manager) TTL() time.Duration {
	return m.config.AccessTTL
}

// CreateAccess signs an access token for uid carrying role. It returns the
// compact token and its expiry.
func (m *Manager) CreateAccess(uid, role string) (string, time.Time, error) {
	if uid == "" {
		return "", time.Time{}, errors.New("jwt: empty subject")
	}
	if m.signKey == nil {
		return "", time.Time{}, errors.New("jwt: manager has no signing key")
	}

	now := m.config.Now()
	exp := now.Add(m.config.AccessTTL)
	claims := AccessClaims{
		UID:  uid,
		Role: role,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			Subject:   uid,
			Issuer:    m.config.Issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(exp),
		},
	}
	if m.config.Audience != "" {
		claims.Audience = jwt.ClaimStrings{m.config.Audience}
	}

	token := jwt.NewWithClaims(m.method, claims)
	if m.config.KeyID != "" {
		token.Header["kid"] = m.config.KeyID
	}
	signed, err := token.SignedString(m.signKey)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("jwt: sign: %w", err)
	}
	return signed, exp, nil
}

// ParseAccess verifies tokenStr and returns its claims.
func (m *Manager) ParseAccess(tokenStr string) (*AccessClaims, error) {
	claims := &AccessClaims{}
	token, err := m.parser.ParseWithClaims(tokenStr, claims, m.keyFor)
	if err != nil {
		return nil, err
	}
	if !token.Valid || claims.UID == "" {
		return nil, jwt.ErrTokenInvalidClaims
	}
	return claims, nil
}

func (m *Manager) keyFor(t *jwt.Token) (any, error) {
	if t.Method.Alg() != m.method.Alg() {
		return nil, fmt.Errorf("jwt: unexpected signing algorithm %s", t.Method.Alg())
	}
	kid, _ := t.Header["kid"].(string)
	key, ok := m.verify[kid]
	if !ok {
		return nil, ErrUnknownKeyID
	}
	return key, nil
}

func parseEdPrivateKey(key []byte) (ed25519.PrivateKey, error) {
	if len(key) == ed25519.PrivateKeySize {
		return ed25519.PrivateKey(key), nil
	}
	parsed, err := jwt.ParseEdPrivateKeyFromPEM(key)
	if err != nil {
		return nil, errors.New("jwt: invalid ed25519 private key")
	}
	priv, ok := parsed.(ed25519.PrivateKey)
	if !ok {
		return nil, errors.New("jwt: PEM does not hold an ed25519 private key")
	}
	return priv, nil
}

func parseEdPublicKey(key []byte) (ed25519.PublicKey, error) {
	if len(key) == ed25519.PublicKeySize {
		return ed25519.PublicKey(key), nil
	}
	parsed, err := jwt.ParseEdPublicKeyFromPEM(key)
	if err != nil {
		return nil, errors.New("jwt: invalid ed25519 public key")
	}
	pub, ok := parsed.(ed25519.PublicKey)
	if !ok {
		return nil, errors.New("jwt: PEM does not hold an ed25519 public key")
	}
	return pub, nil
}
