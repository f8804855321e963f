package password

import (
	"encoding/base64"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"golang.org/x/crypto/argon2"
)

var errMalformedDigest = errors.New("password: malformed digest")

// phc is a decoded $argon2id$v=19$m=..,t=..,p=..$salt$key string.
type phc struct {
	memory      uint32
	time        uint32
	parallelism uint8
	salt        []byte
	key         []byte
}

var b64 = base64.RawStdEncoding

func (d phc) String() string {
	return fmt.Sprintf("$argon2id$v=%d$m=%d,t=%d,p=%d$%s$%s",
		argon2.Version, d.memory, d.time, d.parallelism,
		b64.EncodeToString(d.salt), b64.EncodeToString(d.key))
}

func parsePHC(s string) (phc, error) {
	var d phc
	fields := strings.Split(s, "$")
	if len(fields) != 6 || fields[0] != "" || fields[1] != "argon2id" {
		return d, errMalformedDigest
	}
	if fields[2] != "v="+strconv.Itoa(argon2.Version) {
		return d, errMalformedDigest
	}
	if err := d.parseCost(fields[3]); err != nil {
		return d, err
	}

	var err error
	// Some encoders pad; the raw decoder needs the padding gone.
	if d.salt, err = b64.DecodeString(strings.TrimRight(fields[4], "=")); err != nil || len(d.salt) < MinSaltLength {
		return d, errMalformedDigest
	}
	if d.key, err = b64.DecodeString(strings.TrimRight(fields[5], "=")); err != nil || len(d.key) == 0 {
		return d, errMalformedDigest
	}
	return d, nil
}

// parseCost reads "m=<kib>,t=<passes>,p=<lanes>" in that order.
func (d *phc) parseCost(s string) error {
	parts := strings.Split(s, ",")
	if len(parts) != 3 {
		return errMalformedDigest
	}
	vals := make([]uint64, 3)
	for i, name := range []string{"m", "t", "p"} {
		raw, ok := strings.CutPrefix(parts[i], name+"=")
		if !ok {
			return errMalformedDigest
		}
		bits := 32
		if name == "p" {
			bits = 8
		}
		v, err := strconv.ParseUint(raw, 10, bits)
		if err != nil || v == 0 {
			return errMalformedDigest
		}
		vals[i] = v
	}
	if vals[0] < MinMemoryKB {
		return errMalformedDigest
	}
	d.memory, d.time, d.parallelism = uint32(vals[0]), uint32(vals[1]), uint8(vals[2])
	return nil
}
