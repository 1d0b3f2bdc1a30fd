package auth

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"
	"fmt"
	"strings"

	"golang.org/x/crypto/argon2"
)

const (
	saltLength = 16
	keyLength  = 32
)

// HasherParams tune the argon2id derivation. Loaded from configuration at
// startup; the encoded hash embeds them so stored hashes survive later
// retuning.
type HasherParams struct {
	Memory  uint32
	Time    uint32
	Threads uint8
}

// DefaultHasherParams follows the current OWASP interactive-login guidance.
func DefaultHasherParams() HasherParams {
	return HasherParams{Memory: 19456, Time: 2, Threads: 1}
}

// Hasher derives and verifies argon2id password hashes in the standard PHC
// string format: $argon2id$v=19$m=...,t=...,p=...$<salt>$<key>.
type Hasher struct {
	params HasherParams
}

// NewHasher constructs a Hasher, falling back to defaults for zero params.
func NewHasher(params HasherParams) *Hasher {
	def := DefaultHasherParams()
	if params.Memory == 0 {
		params.Memory = def.Memory
	}
	if params.Time == 0 {
		params.Time = def.Time
	}
	if params.Threads == 0 {
		params.Threads = def.Threads
	}
	return &Hasher{params: params}
}

// Hash derives a hash for the password with a fresh random salt. Fails only
// when the entropy source does, never on password content.
func (h *Hasher) Hash(password string) (string, error) {
	salt := make([]byte, saltLength)
	if _, err := rand.Read(salt); err != nil {
		return "", fmt.Errorf("%w: read salt: %v", ErrHashing, err)
	}

	key := argon2.IDKey([]byte(password), salt, h.params.Time, h.params.Memory, h.params.Threads, keyLength)

	encoded := fmt.Sprintf("$argon2id$v=%d$m=%d,t=%d,p=%d$%s$%s",
		argon2.Version,
		h.params.Memory, h.params.Time, h.params.Threads,
		base64.RawStdEncoding.EncodeToString(salt),
		base64.RawStdEncoding.EncodeToString(key),
	)
	return encoded, nil
}

// Verify re-derives the hash using the parameters embedded in encoded and
// compares in constant time. A definite mismatch returns (false, nil); a
// malformed encoded hash returns ErrHashing, which callers must collapse
// into the same external rejection as a mismatch.
func (h *Hasher) Verify(password, encoded string) (bool, error) {
	salt, key, params, err := decodeHash(encoded)
	if err != nil {
		return false, err
	}

	derived := argon2.IDKey([]byte(password), salt, params.Time, params.Memory, params.Threads, uint32(len(key)))

	return subtle.ConstantTimeCompare(derived, key) == 1, nil
}

func decodeHash(encoded string) (salt, key []byte, params HasherParams, err error) {
	parts := strings.Split(encoded, "$")
	if len(parts) != 6 || parts[0] != "" || parts[1] != "argon2id" {
		return nil, nil, params, fmt.Errorf("%w: not an argon2id hash", ErrHashing)
	}

	var version int
	if _, err := fmt.Sscanf(parts[2], "v=%d", &version); err != nil {
		return nil, nil, params, fmt.Errorf("%w: bad version field", ErrHashing)
	}
	if version != argon2.Version {
		return nil, nil, params, fmt.Errorf("%w: unsupported argon2 version %d", ErrHashing, version)
	}

	if _, err := fmt.Sscanf(parts[3], "m=%d,t=%d,p=%d", &params.Memory, &params.Time, &params.Threads); err != nil {
		return nil, nil, params, fmt.Errorf("%w: bad parameter field", ErrHashing)
	}
	if params.Memory == 0 || params.Time == 0 || params.Threads == 0 {
		return nil, nil, params, fmt.Errorf("%w: zero parameter", ErrHashing)
	}

	salt, err = base64.RawStdEncoding.DecodeString(parts[4])
	if err != nil {
		return nil, nil, params, fmt.Errorf("%w: bad salt encoding", ErrHashing)
	}
	key, err = base64.RawStdEncoding.DecodeString(parts[5])
	if err != nil || len(key) == 0 {
		return nil, nil, params, fmt.Errorf("%w: bad key encoding", ErrHashing)
	}
	return salt, key, params, nil
}
