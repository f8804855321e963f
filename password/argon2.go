package password

import (
	"crypto/rand"
	"crypto/subtle"
	"errors"
	"fmt"

	"golang.org/x/crypto/argon2"
)

// Floors enforced by NewArgon2 and by the digest decoder.
const (
	MinMemoryKB   = 8 * 1024
	MinSaltLength = 16
	MinKeyLength  = 16
)

// Config holds the Argon2id cost parameters. Memory is in KiB.
type Config struct {
	Memory      uint32
	Time        uint32
	Parallelism uint8
	SaltLength  uint32
	KeyLength   uint32
}

// DefaultConfig returns the production cost parameters.
func DefaultConfig() Config {
	return Config{Memory: 64 * 1024, Time: 3, Parallelism: 2, SaltLength: 16, KeyLength: 32}
}

func (c Config) validate() error {
	switch {
	case c.Memory < MinMemoryKB:
		return errors.New("password memory must be >= 8192 KB")
	case c.Time < 1:
		return errors.New("password time must be >= 1")
	case c.Parallelism < 1:
		return errors.New("password parallelism must be >= 1")
	case c.SaltLength < MinSaltLength:
		return errors.New("password salt length must be >= 16")
	case c.KeyLength < MinKeyLength:
		return errors.New("password key length must be >= 16")
	}
	return nil
}

// Argon2 hashes and verifies secrets with Argon2id. It is safe for
// concurrent use.
type Argon2 struct {
	cfg Config
}

// NewArgon2 returns a hasher bound to cfg once cfg passes the floors.
func NewArgon2(cfg Config) (*Argon2, error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &Argon2{cfg: cfg}, nil
}

// Hash returns a PHC string for secret under a fresh random salt. Every
// secret is accepted, the empty one included. Only a failing random source
// produces an error.
func (a *Argon2) Hash(secret string) (string, error) {
	salt := make([]byte, a.cfg.SaltLength)
	if _, err := rand.Read(salt); err != nil {
		return "", fmt.Errorf("password: read salt: %w", err)
	}
	d := phc{
		memory:      a.cfg.Memory,
		time:        a.cfg.Time,
		parallelism: a.cfg.Parallelism,
		salt:        salt,
	}
	d.key = d.derive(secret, a.cfg.KeyLength)
	return d.String(), nil
}

// Verify reports whether secret produced encoded. Malformed or foreign
// digests never verify.
func (a *Argon2) Verify(secret, encoded string) bool {
	d, err := parsePHC(encoded)
	if err != nil {
		return false
	}
	got := d.derive(secret, uint32(len(d.key)))
	return subtle.ConstantTimeCompare(got, d.key) == 1
}

// NeedsUpgrade reports whether encoded was made with cheaper parameters than
// the hasher now uses, or with a different key length.
func (a *Argon2) NeedsUpgrade(encoded string) bool {
	d, err := parsePHC(encoded)
	if err != nil {
		return false
	}
	return d.memory < a.cfg.Memory ||
		d.time < a.cfg.Time ||
		d.parallelism < a.cfg.Parallelism ||
		uint32(len(d.key)) != a.cfg.KeyLength
}

func (d phc) derive(secret string, keyLen uint32) []byte {
	return argon2.IDKey([]byte(secret), d.salt, d.time, d.memory, d.parallelism, keyLen)
}
