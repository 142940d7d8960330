package crypto

import (
	"bytes"
	"crypto/rand"
	"testing"
)

// TestDeriveKey checks length and determinism of the Argon2id KDF
func TestDeriveKey(t *testing.T) {
	password := []byte("test-password-123")
	salt := make([]byte, 16)
	if _, err := rand.Read(salt); err != nil {
		t.Fatalf("failed to generate salt: %v", err)
	}

	// Test key derivation produces correct length
	key := DeriveKey(password, salt)
	if len(key) != KeyLength {
		t.Errorf("DeriveKey() returned key of length %d, want %d", len(key), KeyLength)
	}

	// Test same password + salt produces same key (deterministic)
	key2 := DeriveKey(password, salt)
	if !bytes.Equal(key, key2) {
		t.Error("DeriveKey() with same inputs should produce identical keys")
	}

	// Test different password produces different key
	differentKey := DeriveKey([]byte("different-password"), salt)
	if bytes.Equal(key, differentKey) {
		t.Error("DeriveKey() with different password should produce different key")
	}

	// Test different salt produces different key
	differentSalt := make([]byte, 16)
	if _, err := rand.Read(differentSalt); err != nil {
		t.Fatalf("failed to generate salt: %v", err)
	}
	differentKey = DeriveKey(password, differentSalt)
	if bytes.Equal(key, differentKey) {
		t.Error("DeriveKey() with different salt should produce different key")
	}
}

// TestEncrypt tests the AES-256-GCM encryption function
func TestEncrypt(t *testing.T) {
	key := make([]byte, KeyLength)
	if _, err := rand.Read(key); err != nil {
		t.Fatalf("failed to generate key: %v", err)
	}

	plaintext := []byte("secret data to encrypt")

	// Test successful encryption
	ciphertext, nonce, err := Encrypt(key, plaintext)
	if err != nil {
		t.Fatalf("Encrypt() error = %v", err)
	}

	// Verify nonce length
	if len(nonce) != NonceLength {
		t.Errorf("Encrypt() nonce length = %d, want %d", len(nonce), NonceLength)
	}

	// Verify ciphertext is different from plaintext
	if bytes.Equal(ciphertext, plaintext) {
		t.Error("Encrypt() ciphertext should not equal plaintext")
	}

	// Verify ciphertext includes authentication tag (16 bytes overhead)
	expectedMinLen := len(plaintext) + 16 // GCM tag is 16 bytes
	if len(ciphertext) < expectedMinLen {
		t.Errorf("Encrypt() ciphertext length = %d, want >= %d", len(ciphertext), expectedMinLen)
	}
}

// TestEncryptEmptyPlaintext tests encryption of empty data
func TestEncryptEmptyPlaintext(t *testing.T) {
	key := make([]byte, KeyLength)
	if _, err := rand.Read(key); err != nil {
		t.Fatalf("failed to generate key: %v", err)
	}

	ciphertext, nonce, err := Encrypt(key, []byte{})
	if err != nil {
		t.Fatalf("Encrypt() error = %v", err)
	}

	// Empty plaintext should still produce ciphertext (just the tag)
	if len(ciphertext) != 16 { // GCM tag only
		t.Errorf("Encrypt() empty plaintext ciphertext length = %d, want 16", len(ciphertext))
	}
	if len(nonce) != NonceLength {
		t.Errorf("Encrypt() nonce length = %d, want %d", len(nonce), NonceLength)
	}
}

// TestDecrypt tests the AES-256-GCM decryption function
func TestDecrypt(t *testing.T) {
	key := make([]byte, KeyLength)
	if _, err := rand.Read(key); err != nil {
		t.Fatalf("failed to generate key: %v", err)
	}

	plaintext := []byte("secret data to encrypt and decrypt")

	// Encrypt first
	ciphertext, nonce, err := Encrypt(key, plaintext)
	if err != nil {
		t.Fatalf("Encrypt() error = %v", err)
	}

	// Test successful decryption
	decrypted, err := Decrypt(key, ciphertext, nonce)
	if err != nil {
		t.Fatalf("Decrypt() error = %v", err)
	}

	// Verify decrypted data matches original
	if !bytes.Equal(decrypted, plaintext) {
		t.Errorf("Decrypt() = %q, want %q", decrypted, plaintext)
	}
}

// TestDecryptInvalidKey tests that decryption fails with wrong key
func TestDecryptInvalidKey(t *testing.T) {
	key := make([]byte, KeyLength)
	wrongKey := make([]byte, KeyLength)
	if _, err := rand.Read(key); err != nil {
		t.Fatalf("failed to generate key: %v", err)
	}
	if _, err := rand.Read(wrongKey); err != nil {
		t.Fatalf("failed to generate wrong key: %v", err)
	}

	plaintext := []byte("secret data")

	// Encrypt with correct key
	ciphertext, nonce, err := Encrypt(key, plaintext)
	if err != nil {
		t.Fatalf("Encrypt() error = %v", err)
	}

	// Attempt decryption with wrong key
	_, err = Decrypt(wrongKey, ciphertext, nonce)
	if err != ErrDecryptionFailed {
		t.Errorf("Decrypt() with wrong key error = %v, want %v", err, ErrDecryptionFailed)
	}
}

// TestDecryptInvalidNonce tests that decryption fails with wrong nonce
func TestDecryptInvalidNonce(t *testing.T) {
	key := make([]byte, KeyLength)
	if _, err := rand.Read(key); err != nil {
		t.Fatalf("failed to generate key: %v", err)
	}

	plaintext := []byte("secret data")

	// Encrypt
	ciphertext, _, err := Encrypt(key, plaintext)
	if err != nil {
		t.Fatalf("Encrypt() error = %v", err)
	}

	// Create wrong nonce
	wrongNonce := make([]byte, NonceLength)
	if _, err := rand.Read(wrongNonce); err != nil {
		t.Fatalf("failed to generate wrong nonce: %v", err)
	}

	// Attempt decryption with wrong nonce
	_, err = Decrypt(key, ciphertext, wrongNonce)
	if err != ErrDecryptionFailed {
		t.Errorf("Decrypt() with wrong nonce error = %v, want %v", err, ErrDecryptionFailed)
	}
}

// TestDecryptInvalidNonceLength tests that Decrypt rejects invalid nonce lengths
func TestDecryptInvalidNonceLength(t *testing.T) {
	key := make([]byte, KeyLength)
	ciphertext := make([]byte, 32)

	tests := []struct {
		name     string
		nonceLen int
	}{
		{"too short (8 bytes)", 8},
		{"too long (16 bytes)", 16},
		{"empty nonce", 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			nonce := make([]byte, tt.nonceLen)
			_, err := Decrypt(key, ciphertext, nonce)
			if err != ErrInvalidNonceLength {
				t.Errorf("Decrypt() error = %v, want %v", err, ErrInvalidNonceLength)
			}
		})
	}
}

// TestDecryptCiphertextTooShort tests that Decrypt handles short ciphertext
func TestDecryptCiphertextTooShort(t *testing.T) {
	key := make([]byte, KeyLength)
	nonce := make([]byte, NonceLength)

	// Ciphertext shorter than GCM tag (16 bytes)
	shortCiphertext := make([]byte, 10)

	_, err := Decrypt(key, shortCiphertext, nonce)
	if err != ErrCiphertextTooShort {
		t.Errorf("Decrypt() error = %v, want %v", err, ErrCiphertextTooShort)
	}
}

// TestDecryptTamperedCiphertext tests that tampering is detected
func TestDecryptTamperedCiphertext(t *testing.T) {
	key := make([]byte, KeyLength)
	if _, err := rand.Read(key); err != nil {
		t.Fatalf("failed to generate key: %v", err)
	}

	plaintext := []byte("secret data that should be protected")

	// Encrypt
	ciphertext, nonce, err := Encrypt(key, plaintext)
	if err != nil {
		t.Fatalf("Encrypt() error = %v", err)
	}

	// Tamper with ciphertext (flip a bit)
	tamperedCiphertext := make([]byte, len(ciphertext))
	copy(tamperedCiphertext, ciphertext)
	tamperedCiphertext[0] ^= 0x01

	// Attempt decryption of tampered data
	_, err = Decrypt(key, tamperedCiphertext, nonce)
	if err != ErrDecryptionFailed {
		t.Errorf("Decrypt() with tampered ciphertext error = %v, want %v", err, ErrDecryptionFailed)
	}
}

// TestEncryptDecryptRoundTrip tests multiple encrypt/decrypt cycles
func TestEncryptDecryptRoundTrip(t *testing.T) {
	key := make([]byte, KeyLength)
	if _, err := rand.Read(key); err != nil {
		t.Fatalf("failed to generate key: %v", err)
	}

	testCases := []struct {
		name      string
		plaintext []byte
	}{
		{"empty", []byte{}},
		{"small", []byte("x")},
		{"medium", []byte("This is a medium-length test string for encryption.")},
		{"large", make([]byte, 10000)}, // 10KB
		{"binary", []byte{0x00, 0xFF, 0x01, 0xFE, 0x02, 0xFD}},
	}

	// Fill large test case with random data
	if _, err := rand.Read(testCases[3].plaintext); err != nil {
		t.Fatalf("failed to generate random data: %v", err)
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			ciphertext, nonce, err := Encrypt(key, tc.plaintext)
			if err != nil {
				t.Fatalf("Encrypt() error = %v", err)
			}

			decrypted, err := Decrypt(key, ciphertext, nonce)
			if err != nil {
				t.Fatalf("Decrypt() error = %v", err)
			}

			if !bytes.Equal(decrypted, tc.plaintext) {
				t.Errorf("Round trip failed: got length %d, want length %d", len(decrypted), len(tc.plaintext))
			}
		})
	}
}

// TestSecureWipe tests that SecureWipe zeros out memory
func TestSecureWipe(t *testing.T) {
	// Create a slice with non-zero data
	data := []byte{0x01, 0x02, 0x03, 0x04, 0x05, 0x06, 0x07, 0x08}
	original := make([]byte, len(data))
	copy(original, data)

	// Wipe the data
	SecureWipe(data)

	// Verify all bytes are zero
	for i, b := range data {
		if b != 0 {
			t.Errorf("SecureWipe() byte[%d] = %d, want 0", i, b)
		}
	}

	// Verify original data was actually non-zero
	hasNonZero := false
	for _, b := range original {
		if b != 0 {
			hasNonZero = true
			break
		}
	}
	if !hasNonZero {
		t.Error("Test setup error: original data should have non-zero bytes")
	}
}

// TestInvalidKeyLength checks every key-taking primitive rejects non-32-byte keys
func TestInvalidKeyLength(t *testing.T) {
	for _, n := range []int{0, 16, 24, 48} {
		key := make([]byte, n)
		if _, _, err := Encrypt(key, []byte("x")); err != ErrInvalidKeyLength {
			t.Errorf("Encrypt(len=%d) error = %v, want %v", n, err, ErrInvalidKeyLength)
		}
		if _, err := Decrypt(key, make([]byte, 32), make([]byte, NonceLength)); err != ErrInvalidKeyLength {
			t.Errorf("Decrypt(len=%d) error = %v, want %v", n, err, ErrInvalidKeyLength)
		}
		if _, err := Seal(key, []byte("x"), nil); err != ErrInvalidKeyLength {
			t.Errorf("Seal(len=%d) error = %v, want %v", n, err, ErrInvalidKeyLength)
		}
		if _, err := Open(key, make([]byte, 64), nil); err != ErrInvalidKeyLength {
			t.Errorf("Open(len=%d) error = %v, want %v", n, err, ErrInvalidKeyLength)
		}
	}
}

func TestSealOpenRoundTrip(t *testing.T) {
	key := make([]byte, KeyLength)
	if _, err := rand.Read(key); err != nil {
		t.Fatalf("failed to generate key: %v", err)
	}
	aad := []byte("owner:42")

	for _, plaintext := range []string{"", "P@ss1", "пароль-密码-🔑", string(make([]byte, 4096))} {
		blob, err := Seal(key, []byte(plaintext), aad)
		if err != nil {
			t.Fatalf("Seal() error = %v", err)
		}
		if len(blob) != NonceLength+len(plaintext)+16 {
			t.Errorf("Seal() blob length = %d, want %d", len(blob), NonceLength+len(plaintext)+16)
		}

		got, err := Open(key, blob, aad)
		if err != nil {
			t.Fatalf("Open() error = %v", err)
		}
		if string(got) != plaintext {
			t.Errorf("Open() = %q, want %q", got, plaintext)
		}
	}
}

func TestSealUsesFreshNonce(t *testing.T) {
	key := make([]byte, KeyLength)
	a, err := Seal(key, []byte("same"), nil)
	if err != nil {
		t.Fatalf("Seal() error = %v", err)
	}
	b, err := Seal(key, []byte("same"), nil)
	if err != nil {
		t.Fatalf("Seal() error = %v", err)
	}
	if bytes.Equal(a, b) {
		t.Error("two Seal() calls on equal input produced identical blobs")
	}
}

func TestOpenWrongAAD(t *testing.T) {
	key := make([]byte, KeyLength)
	blob, err := Seal(key, []byte("secret"), []byte("owner:1"))
	if err != nil {
		t.Fatalf("Seal() error = %v", err)
	}
	if _, err := Open(key, blob, []byte("owner:2")); err != ErrDecryptionFailed {
		t.Errorf("Open() with other aad error = %v, want %v", err, ErrDecryptionFailed)
	}
}

func TestOpenMalformed(t *testing.T) {
	key := make([]byte, KeyLength)
	blob, err := Seal(key, []byte("secret"), nil)
	if err != nil {
		t.Fatalf("Seal() error = %v", err)
	}

	tests := []struct {
		name string
		blob []byte
		want error
	}{
		{"nil", nil, ErrCiphertextTooShort},
		{"nonce only", blob[:NonceLength], ErrCiphertextTooShort},
		{"truncated tag", blob[:len(blob)-1], ErrDecryptionFailed},
		{"flipped byte", append(append([]byte{}, blob[:NonceLength]...), append([]byte{blob[NonceLength] ^ 0xFF}, blob[NonceLength+1:]...)...), ErrDecryptionFailed},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := Open(key, tt.blob, nil); err != tt.want {
				t.Errorf("Open() error = %v, want %v", err, tt.want)
			}
		})
	}
}
