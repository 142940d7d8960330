package crypto

import (
	"crypto/subtle"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"

	"golang.org/x/crypto/argon2"
)

// PasswordHashLength is the Argon2id output length for account digests.
const PasswordHashLength = 32

// ErrInvalidHash indicates a stored password digest could not be parsed.
var ErrInvalidHash = errors.New("crypto: invalid password hash encoding")

// PasswordParams are the Argon2id cost parameters encoded into every digest.
// Verification always uses the parameters stored in the digest, so they can
// be raised later without invalidating existing accounts.
type PasswordParams struct {
	Memory  uint32 // KiB
	Time    uint32
	Threads uint8
}

// DefaultPasswordParams returns the OWASP parameters also used by DeriveKey.
func DefaultPasswordParams() PasswordParams {
	return PasswordParams{
		Memory:  Argon2Memory,
		Time:    Argon2Time,
		Threads: Argon2Threads,
	}
}

func (p PasswordParams) normalized() PasswordParams {
	if p.Time == 0 {
		p.Time = 1
	}
	if p.Threads == 0 {
		p.Threads = 1
	}
	// argon2 requires at least 8 KiB per lane
	if floor := 8 * uint32(p.Threads); p.Memory < floor {
		p.Memory = floor
	}
	return p
}

// HashPassword hashes password with Argon2id under a fresh random salt and
// returns the PHC-style encoding:
//
//	$argon2id$v=19$m=65536,t=3,p=4$<salt>$<hash>
func HashPassword(password string, params PasswordParams) (string, error) {
	salt, err := RandomBytes(SaltLength)
	if err != nil {
		return "", err
	}
	return HashPasswordWithSalt(password, salt, params), nil
}

// HashPasswordWithSalt is the deterministic form of HashPassword: the same
// password, salt and params always produce the same digest.
func HashPasswordWithSalt(password string, salt []byte, params PasswordParams) string {
	params = params.normalized()
	sum := argon2.IDKey([]byte(password), salt, params.Time, params.Memory, params.Threads, PasswordHashLength)
	return fmt.Sprintf("$argon2id$v=%d$m=%d,t=%d,p=%d$%s$%s",
		argon2.Version, params.Memory, params.Time, params.Threads,
		base64.RawStdEncoding.EncodeToString(salt),
		base64.RawStdEncoding.EncodeToString(sum))
}

// VerifyPassword reports whether password matches the encoded digest.
// Argon2id digests and legacy "sha256$" digests are both accepted.
func VerifyPassword(password, encoded string) (bool, error) {
	if IsLegacyHash(encoded) {
		want := strings.TrimPrefix(encoded, legacyHashPrefix)
		got := LegacyHashPassword(password)
		return subtle.ConstantTimeCompare([]byte(got), []byte(want)) == 1, nil
	}

	params, salt, sum, err := decodeHash(encoded)
	if err != nil {
		return false, err
	}
	other := argon2.IDKey([]byte(password), salt, params.Time, params.Memory, params.Threads, uint32(len(sum)))
	return subtle.ConstantTimeCompare(sum, other) == 1, nil
}

// NeedsRehash reports whether encoded should be replaced by a fresh digest
// computed with params: legacy digests and weaker cost settings qualify.
func NeedsRehash(encoded string, params PasswordParams) bool {
	if IsLegacyHash(encoded) {
		return true
	}
	stored, _, _, err := decodeHash(encoded)
	if err != nil {
		return true
	}
	params = params.normalized()
	return stored.Memory < params.Memory || stored.Time < params.Time || stored.Threads < params.Threads
}

func decodeHash(encoded string) (PasswordParams, []byte, []byte, error) {
	var params PasswordParams

	// "", "argon2id", "v=19", "m=..,t=..,p=..", salt, hash
	parts := strings.Split(encoded, "$")
	if len(parts) != 6 || parts[1] != "argon2id" {
		return params, nil, nil, ErrInvalidHash
	}

	var version int
	if _, err := fmt.Sscanf(parts[2], "v=%d", &version); err != nil {
		return params, nil, nil, fmt.Errorf("%w: %v", ErrInvalidHash, err)
	}
	if version != argon2.Version {
		return params, nil, nil, fmt.Errorf("%w: unsupported argon2 version %d", ErrInvalidHash, version)
	}

	if _, err := fmt.Sscanf(parts[3], "m=%d,t=%d,p=%d", &params.Memory, &params.Time, &params.Threads); err != nil {
		return params, nil, nil, fmt.Errorf("%w: %v", ErrInvalidHash, err)
	}
	if params.Time == 0 || params.Threads == 0 {
		return params, nil, nil, ErrInvalidHash
	}

	salt, err := base64.RawStdEncoding.DecodeString(parts[4])
	if err != nil {
		return params, nil, nil, fmt.Errorf("%w: salt: %v", ErrInvalidHash, err)
	}
	sum, err := base64.RawStdEncoding.DecodeString(parts[5])
	if err != nil || len(sum) == 0 {
		return params, nil, nil, fmt.Errorf("%w: digest", ErrInvalidHash)
	}

	return params, salt, sum, nil
}
