package middleware

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"

	"golang.org/x/crypto/argon2"
)

// ErrInvalidHash is returned for encoded hashes that are not argon2id
// strings in PHC format.
var ErrInvalidHash = errors.New("invalid argon2id hash")

// PasswordParams are the Argon2id cost settings of a hash.
type PasswordParams struct {
	Time    uint32
	Memory  uint32 // KiB
	Threads uint8
	KeyLen  uint32
	SaltLen uint32
}

// DefaultPasswordParams follow the OWASP recommendation for Argon2id.
var DefaultPasswordParams = PasswordParams{
	Time:    3,
	Memory:  64 * 1024,
	Threads: 4,
	KeyLen:  32,
	SaltLen: 16,
}

// PasswordHash is a decoded Argon2id hash.
type PasswordHash struct {
	Params PasswordParams
	salt   []byte
	key    []byte
}

// HashPassword hashes password with DefaultPasswordParams and returns the
// encoded form, e.g.
//
//	$argon2id$v=19$m=65536,t=3,p=4$<salt>$<hash>
func HashPassword(password string) (string, error) {
	return HashPasswordWithParams(password, DefaultPasswordParams)
}

// HashPasswordWithParams hashes password with the given cost settings.
func HashPasswordWithParams(password string, p PasswordParams) (string, error) {
	salt := make([]byte, p.SaltLen)
	if _, err := rand.Read(salt); err != nil {
		return "", fmt.Errorf("generating salt: %w", err)
	}

	h := PasswordHash{
		Params: p,
		salt:   salt,
		key:    argon2.IDKey([]byte(password), salt, p.Time, p.Memory, p.Threads, p.KeyLen),
	}
	return h.String(), nil
}

// ParsePasswordHash decodes an encoded Argon2id hash.
func ParsePasswordHash(encoded string) (*PasswordHash, error) {
	parts := strings.Split(encoded, "$")
	if len(parts) != 6 || parts[0] != "" {
		return nil, fmt.Errorf("%w: expected 6 fields, got %d", ErrInvalidHash, len(parts))
	}
	if parts[1] != "argon2id" {
		return nil, fmt.Errorf("%w: unsupported algorithm %q", ErrInvalidHash, parts[1])
	}

	var version int
	if _, err := fmt.Sscanf(parts[2], "v=%d", &version); err != nil || version != argon2.Version {
		return nil, fmt.Errorf("%w: unsupported version %q", ErrInvalidHash, parts[2])
	}

	h := &PasswordHash{}
	if _, err := fmt.Sscanf(parts[3], "m=%d,t=%d,p=%d", &h.Params.Memory, &h.Params.Time, &h.Params.Threads); err != nil {
		return nil, fmt.Errorf("%w: parsing parameters: %v", ErrInvalidHash, err)
	}
	if h.Params.Time < 1 || h.Params.Threads < 1 || h.Params.Memory < 8*uint32(h.Params.Threads) {
		return nil, fmt.Errorf("%w: out of range parameters %q", ErrInvalidHash, parts[3])
	}

	var err error
	if h.salt, err = base64.RawStdEncoding.DecodeString(parts[4]); err != nil {
		return nil, fmt.Errorf("%w: decoding salt: %v", ErrInvalidHash, err)
	}
	if h.key, err = base64.RawStdEncoding.DecodeString(parts[5]); err != nil {
		return nil, fmt.Errorf("%w: decoding key: %v", ErrInvalidHash, err)
	}
	if len(h.key) == 0 {
		return nil, fmt.Errorf("%w: empty key", ErrInvalidHash)
	}
	h.Params.SaltLen = uint32(len(h.salt))
	h.Params.KeyLen = uint32(len(h.key))

	return h, nil
}

// Matches reports whether password hashes to h, in constant time.
func (h *PasswordHash) Matches(password string) bool {
	p := h.Params
	computed := argon2.IDKey([]byte(password), h.salt, p.Time, p.Memory, p.Threads, p.KeyLen)
	return subtle.ConstantTimeCompare(h.key, computed) == 1
}

// String returns the encoded form of h.
func (h *PasswordHash) String() string {
	return fmt.Sprintf("$argon2id$v=%d$m=%d,t=%d,p=%d$%s$%s",
		argon2.Version,
		h.Params.Memory, h.Params.Time, h.Params.Threads,
		base64.RawStdEncoding.EncodeToString(h.salt),
		base64.RawStdEncoding.EncodeToString(h.key),
	)
}

// CheckPassword verifies password against an encoded Argon2id hash.
func CheckPassword(password, encoded string) (bool, error) {
	h, err := ParsePasswordHash(encoded)
	if err != nil {
		return false, err
	}
	return h.Matches(password), nil
}
