package internal

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"math/big"
	"strconv"

	"github.com/google/uuid"
)

const (
	refreshSecretSize   = 32
	refreshTokenRawSize = 16 + refreshSecretSize

	codeMin = 100000
	codeMax = 999999
)

var errMalformedRefreshToken = errors.New("malformed refresh token")

// NewUserID returns a random UUIDv4 string.
func NewUserID() (string, error) {
	id, err := uuid.NewRandom()
	if err != nil {
		return "", err
	}
	return id.String(), nil
}

// NewRefreshToken returns an opaque bearer token for userID:
// base64url(uuid bytes || 32 random bytes).
func NewRefreshToken(userID string) (string, error) {
	id, err := uuid.Parse(userID)
	if err != nil {
		return "", err
	}

	var raw [refreshTokenRawSize]byte
	copy(raw[:16], id[:])
	if _, err := rand.Read(raw[16:]); err != nil {
		return "", err
	}

	return base64.RawURLEncoding.EncodeToString(raw[:]), nil
}

// DecodeRefreshToken extracts the owning user id from token.
func DecodeRefreshToken(token string) (string, error) {
	if base64.RawURLEncoding.DecodedLen(len(token)) != refreshTokenRawSize {
		return "", errMalformedRefreshToken
	}
	raw, err := base64.RawURLEncoding.DecodeString(token)
	if err != nil || len(raw) != refreshTokenRawSize {
		return "", errMalformedRefreshToken
	}

	id, err := uuid.FromBytes(raw[:16])
	if err != nil {
		return "", errMalformedRefreshToken
	}
	return id.String(), nil
}

// HashToken returns the hex SHA-256 digest under which a bearer token is stored.
func HashToken(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])
}

// NewVerificationCode returns a six-digit code drawn uniformly from
// [100000, 999999].
func NewVerificationCode() (string, error) {
	n, err := rand.Int(rand.Reader, big.NewInt(codeMax-codeMin+1))
	if err != nil {
		return "", err
	}
	return strconv.FormatInt(n.Int64()+codeMin, 10), nil
}
