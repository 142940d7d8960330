// Package keyring implements the envelope encryption used for stored secrets.
//
// Each installation owns one random data encryption key (DEK). The DEK is
// stored only in wrapped form, encrypted under a key encryption key (KEK)
// that comes either from an Argon2id-derived master secret or from a random
// key file kept next to the database. Secrets are sealed under the DEK with
// their owner's id as associated data, so a ciphertext copied to another
// user's row no longer opens.
package keyring

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"github.com/google/uuid"

	"github.com/forest6511/passvault/pkg/crypto"
)

// KEK sources recorded with the wrapped DEK.
const (
	SourceMasterSecret = "master-secret"
	SourceKeyFile      = "key-file"
)

const (
	KeyFileMode = 0600
	DirMode     = 0700
)

var (
	ErrMasterSecretRequired = errors.New("keyring: vault was initialized with a master secret, none configured")
	ErrNoKeySource          = errors.New("keyring: neither master secret nor key file configured")
	ErrKeyFileMissing       = errors.New("keyring: key file not found")
	ErrInvalidKeyFile       = errors.New("keyring: invalid key file, must be exactly 32 bytes")
	ErrWrongKey             = errors.New("keyring: failed to unwrap data key, wrong master secret or key file")
	ErrUnknownSource        = errors.New("keyring: unknown key source")
)

// Source describes where the KEK comes from. A non-empty MasterSecret takes
// precedence over KeyFile when a new DEK is provisioned.
type Source struct {
	MasterSecret []byte
	KeyFile      string
}

// Kind returns the source kind that Generate will record.
func (s Source) Kind() string {
	if len(s.MasterSecret) > 0 {
		return SourceMasterSecret
	}
	return SourceKeyFile
}

// Wrapped is the persisted form of the DEK.
type Wrapped struct {
	EncryptedDEK   []byte
	Nonce          []byte
	Salt           []byte
	Source         string
	InstallationID string
}

// Keyring holds the unwrapped DEK in memory.
type Keyring struct {
	dek            []byte
	installationID string
}

// New wraps an existing DEK. It is mostly useful in tests.
func New(dek []byte) (*Keyring, error) {
	if len(dek) != crypto.KeyLength {
		return nil, crypto.ErrInvalidKeyLength
	}
	return &Keyring{dek: append([]byte(nil), dek...)}, nil
}

// Generate creates a fresh DEK and wraps it under the KEK from src.
// With a key-file source the key file is created if it does not exist yet.
func Generate(src Source) (*Keyring, *Wrapped, error) {
	kind := src.Kind()
	if kind == SourceKeyFile && src.KeyFile == "" {
		return nil, nil, ErrNoKeySource
	}

	salt, err := crypto.RandomBytes(crypto.SaltLength)
	if err != nil {
		return nil, nil, err
	}

	kek, err := src.kek(kind, salt, true)
	if err != nil {
		return nil, nil, err
	}
	defer crypto.SecureWipe(kek)

	dek, err := crypto.RandomBytes(crypto.KeyLength)
	if err != nil {
		return nil, nil, err
	}

	encrypted, nonce, err := crypto.Encrypt(kek, dek)
	if err != nil {
		return nil, nil, fmt.Errorf("keyring: failed to wrap data key: %w", err)
	}

	w := &Wrapped{
		EncryptedDEK:   encrypted,
		Nonce:          nonce,
		Salt:           salt,
		Source:         kind,
		InstallationID: uuid.NewString(),
	}
	return &Keyring{dek: dek, installationID: w.InstallationID}, w, nil
}

// Unwrap recovers the DEK from w using the KEK described by src and the
// source recorded in w.
func Unwrap(src Source, w *Wrapped) (*Keyring, error) {
	kek, err := src.kek(w.Source, w.Salt, false)
	if err != nil {
		return nil, err
	}
	defer crypto.SecureWipe(kek)

	dek, err := crypto.Decrypt(kek, w.EncryptedDEK, w.Nonce)
	if err != nil {
		if errors.Is(err, crypto.ErrDecryptionFailed) {
			return nil, fmt.Errorf("%w: %w", ErrWrongKey, err)
		}
		return nil, fmt.Errorf("keyring: failed to unwrap data key: %w", err)
	}
	return &Keyring{dek: dek, installationID: w.InstallationID}, nil
}

func (s Source) kek(kind string, salt []byte, create bool) ([]byte, error) {
	switch kind {
	case SourceMasterSecret:
		if len(s.MasterSecret) == 0 {
			return nil, ErrMasterSecretRequired
		}
		return crypto.DeriveKey(s.MasterSecret, salt), nil
	case SourceKeyFile:
		if s.KeyFile == "" {
			return nil, ErrNoKeySource
		}
		return loadKeyFile(s.KeyFile, create)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownSource, kind)
	}
}

func loadKeyFile(path string, create bool) ([]byte, error) {
	key, err := os.ReadFile(path)
	switch {
	case err == nil:
		if len(key) != crypto.KeyLength {
			crypto.SecureWipe(key)
			return nil, ErrInvalidKeyFile
		}
		return key, nil
	case !os.IsNotExist(err):
		return nil, fmt.Errorf("keyring: failed to read key file: %w", err)
	case !create:
		return nil, fmt.Errorf("%w: %s", ErrKeyFileMissing, path)
	}

	if err := os.MkdirAll(filepath.Dir(path), DirMode); err != nil {
		return nil, fmt.Errorf("keyring: failed to create key directory: %w", err)
	}

	key, err = crypto.RandomBytes(crypto.KeyLength)
	if err != nil {
		return nil, err
	}

	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, KeyFileMode)
	if err != nil {
		return nil, fmt.Errorf("keyring: failed to create key file: %w", err)
	}
	if _, err := f.Write(key); err != nil {
		f.Close()
		return nil, fmt.Errorf("keyring: failed to write key file: %w", err)
	}
	if err := f.Close(); err != nil {
		return nil, fmt.Errorf("keyring: failed to write key file: %w", err)
	}
	return key, nil
}

// InstallationID returns the id recorded when the DEK was generated.
func (k *Keyring) InstallationID() string {
	return k.installationID
}

// Seal encrypts a secret value for ownerID.
func (k *Keyring) Seal(plaintext []byte, ownerID int64) ([]byte, error) {
	if k.dek == nil {
		return nil, crypto.ErrInvalidKeyLength
	}
	return crypto.Seal(k.dek, plaintext, ownerAAD(ownerID))
}

// Open decrypts a value sealed for ownerID.
func (k *Keyring) Open(blob []byte, ownerID int64) ([]byte, error) {
	if k.dek == nil {
		return nil, crypto.ErrInvalidKeyLength
	}
	return crypto.Open(k.dek, blob, ownerAAD(ownerID))
}

// Wipe destroys the DEK. The keyring is unusable afterwards.
func (k *Keyring) Wipe() {
	if k.dek != nil {
		crypto.SecureWipe(k.dek)
		k.dek = nil
	}
}

func ownerAAD(ownerID int64) []byte {
	return []byte("passvault/secret/v1:owner=" + strconv.FormatInt(ownerID, 10))
}
