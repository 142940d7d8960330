package crypto

import (
	"bytes"
	"crypto/aes"
	"crypto/cipher"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"
)

// Legacy primitives reproduce the format of databases written by the
// original program: an unsalted SHA-256 account digest and a single fixed
// AES-256-CBC key/IV shared by every stored secret. They are read-only
// compatibility paths for importing such databases.

const legacyHashPrefix = "sha256$"

// ErrLegacyCiphertext indicates a legacy ciphertext is not valid base64,
// not block aligned, or carries bad padding.
var ErrLegacyCiphertext = errors.New("crypto: malformed legacy ciphertext")

var (
	legacyKey = []byte{
		1, 2, 3, 4, 5, 6, 7, 8, 9, 10, 11, 12, 13, 14, 15, 16,
		17, 18, 19, 20, 21, 22, 23, 24, 25, 26, 27, 28, 29, 30, 31, 32,
	}
	legacyIV = []byte{1, 2, 3, 4, 5, 6, 7, 8, 9, 10, 11, 12, 13, 14, 15, 16}
)

// LegacyHashPassword returns base64(SHA-256(password)), the digest stored by
// the original program.
func LegacyHashPassword(password string) string {
	sum := sha256.Sum256([]byte(password))
	return base64.StdEncoding.EncodeToString(sum[:])
}

// LegacyDigest wraps a raw legacy digest into the "sha256$" form accepted by
// VerifyPassword.
func LegacyDigest(raw string) string {
	return legacyHashPrefix + raw
}

// IsLegacyHash reports whether encoded is a legacy "sha256$" digest.
func IsLegacyHash(encoded string) bool {
	return strings.HasPrefix(encoded, legacyHashPrefix)
}

// LegacyEncrypt encrypts plaintext with the fixed legacy key and IV and
// returns base64 text.
func LegacyEncrypt(plaintext string) (string, error) {
	block, err := aes.NewCipher(legacyKey)
	if err != nil {
		return "", fmt.Errorf("crypto: failed to create cipher: %w", err)
	}

	padded := pkcs7Pad([]byte(plaintext), aes.BlockSize)
	out := make([]byte, len(padded))
	cipher.NewCBCEncrypter(block, legacyIV).CryptBlocks(out, padded)
	return base64.StdEncoding.EncodeToString(out), nil
}

// LegacyDecrypt reverses LegacyEncrypt. Malformed or truncated input returns
// ErrLegacyCiphertext.
func LegacyDecrypt(ciphertext string) (string, error) {
	raw, err := base64.StdEncoding.DecodeString(ciphertext)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrLegacyCiphertext, err)
	}
	if len(raw) == 0 || len(raw)%aes.BlockSize != 0 {
		return "", fmt.Errorf("%w: length %d is not a multiple of %d", ErrLegacyCiphertext, len(raw), aes.BlockSize)
	}

	block, err := aes.NewCipher(legacyKey)
	if err != nil {
		return "", fmt.Errorf("crypto: failed to create cipher: %w", err)
	}

	out := make([]byte, len(raw))
	cipher.NewCBCDecrypter(block, legacyIV).CryptBlocks(out, raw)

	plain, err := pkcs7Unpad(out, aes.BlockSize)
	if err != nil {
		return "", err
	}
	return string(plain), nil
}

func pkcs7Pad(b []byte, size int) []byte {
	n := size - len(b)%size
	return append(b, bytes.Repeat([]byte{byte(n)}, n)...)
}

func pkcs7Unpad(b []byte, size int) ([]byte, error) {
	if len(b) == 0 {
		return nil, ErrLegacyCiphertext
	}
	n := int(b[len(b)-1])
	if n == 0 || n > size || n > len(b) {
		return nil, fmt.Errorf("%w: bad padding", ErrLegacyCiphertext)
	}
	for _, c := range b[len(b)-n:] {
		if int(c) != n {
			return nil, fmt.Errorf("%w: bad padding", ErrLegacyCiphertext)
		}
	}
	return b[:len(b)-n], nil
}
