package auth

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"

	"golang.org/x/crypto/argon2"
)

// ErrMalformedHash reports a stored credential that is not a PHC-encoded
// Argon2id hash.
var ErrMalformedHash = errors.New("auth: malformed password hash")

// hashParams are the Argon2id cost parameters. Every stored hash carries
// its own copy in the PHC string, so defaults can change without
// invalidating existing credentials.
type hashParams struct {
	memory  uint32
	time    uint32
	threads uint8
}

var defaultHashParams = hashParams{
	memory:  64 * 1024, // KiB
	time:    3,
	threads: 1,
}

const (
	saltLength = 16
	keyLength  = 32
)

// HashPassword derives an Argon2id key from the password and encodes it
// as a PHC string: $argon2id$v=19$m=65536,t=3,p=1$<salt>$<key>.
func HashPassword(password string) (string, error) {
	salt := make([]byte, saltLength)
	if _, err := rand.Read(salt); err != nil {
		return "", fmt.Errorf("generating salt: %w", err)
	}

	p := defaultHashParams
	key := argon2.IDKey([]byte(password), salt, p.time, p.memory, p.threads, keyLength)

	return fmt.Sprintf("$argon2id$v=%d$m=%d,t=%d,p=%d$%s$%s",
		argon2.Version, p.memory, p.time, p.threads,
		base64.RawStdEncoding.EncodeToString(salt),
		base64.RawStdEncoding.EncodeToString(key),
	), nil
}

// VerifyPassword re-derives the key from the candidate password using the
// parameters carried in the stored hash and compares in constant time.
func VerifyPassword(password, encoded string) (bool, error) {
	p, salt, key, err := parsePHC(encoded)
	if err != nil {
		return false, err
	}

	candidate := argon2.IDKey([]byte(password), salt, p.time, p.memory, p.threads, uint32(len(key))) //nolint:gosec // G115: key length always fits uint32

	return subtle.ConstantTimeCompare(key, candidate) == 1, nil
}

// parsePHC splits a $argon2id$v=..$m=..,t=..,p=..$<salt>$<key> credential
// into its parameters, salt and derived key.
func parsePHC(encoded string) (hashParams, []byte, []byte, error) {
	var p hashParams

	fields := strings.Split(encoded, "$")
	if len(fields) != 6 || fields[0] != "" {
		return p, nil, nil, ErrMalformedHash
	}
	if fields[1] != "argon2id" {
		return p, nil, nil, fmt.Errorf("%w: algorithm %q", ErrMalformedHash, fields[1])
	}

	var version int
	if _, err := fmt.Sscanf(fields[2], "v=%d", &version); err != nil {
		return p, nil, nil, fmt.Errorf("%w: version field", ErrMalformedHash)
	}
	if _, err := fmt.Sscanf(fields[3], "m=%d,t=%d,p=%d", &p.memory, &p.time, &p.threads); err != nil {
		return p, nil, nil, fmt.Errorf("%w: cost parameters", ErrMalformedHash)
	}

	salt, err := base64.RawStdEncoding.DecodeString(fields[4])
	if err != nil {
		return p, nil, nil, fmt.Errorf("%w: salt", ErrMalformedHash)
	}
	key, err := base64.RawStdEncoding.DecodeString(fields[5])
	if err != nil {
		return p, nil, nil, fmt.Errorf("%w: key", ErrMalformedHash)
	}
	return p, salt, key, nil
}
