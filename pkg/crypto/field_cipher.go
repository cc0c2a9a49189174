package crypto

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"

	"golang.org/x/crypto/scrypt"
)

const (
	nonceSize = 12
	keySize   = 32
	// scrypt cost parameters compatible with stored ciphertexts.
	scryptN = 16384
	scryptR = 8
	scryptP = 1
)

var (
	// ErrMissingKey is returned when no encryption secret is configured.
	ErrMissingKey = errors.New("encryption key is not configured")
	// ErrMalformed is returned for values not in iv:tag:ciphertext form.
	ErrMalformed = errors.New("invalid ciphertext format")
)

// FieldCipher encrypts sensitive custom field values with AES-256-GCM.
// Ciphertexts are rendered as hex(iv):hex(tag):hex(data).
type FieldCipher struct {
	aead cipher.AEAD
}

// NewFieldCipher derives the AES key from secret and salt using scrypt.
func NewFieldCipher(secret, salt string) (*FieldCipher, error) {
	if secret == "" {
		return nil, ErrMissingKey
	}
	key, err := scrypt.Key([]byte(secret), []byte(salt), scryptN, scryptR, scryptP, keySize)
	if err != nil {
		return nil, fmt.Errorf("derive key: %w", err)
	}
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("init cipher: %w", err)
	}
	aead, err := cipher.NewGCMWithNonceSize(block, nonceSize)
	if err != nil {
		return nil, fmt.Errorf("init gcm: %w", err)
	}
	return &FieldCipher{aead: aead}, nil
}

// Encrypt seals plaintext with a fresh random nonce.
func (f *FieldCipher) Encrypt(plaintext string) (string, error) {
	if f == nil {
		return "", ErrMissingKey
	}
	nonce := make([]byte, nonceSize)
	if _, err := rand.Read(nonce); err != nil {
		return "", fmt.Errorf("generate nonce: %w", err)
	}
	sealed := f.aead.Seal(nil, nonce, []byte(plaintext), nil)
	tagStart := len(sealed) - f.aead.Overhead()
	data, tag := sealed[:tagStart], sealed[tagStart:]
	return hex.EncodeToString(nonce) + ":" + hex.EncodeToString(tag) + ":" + hex.EncodeToString(data), nil
}

// Decrypt opens a value produced by Encrypt.
func (f *FieldCipher) Decrypt(value string) (string, error) {
	if f == nil {
		return "", ErrMissingKey
	}
	parts := strings.Split(value, ":")
	if len(parts) != 3 {
		return "", ErrMalformed
	}
	nonce, err := hex.DecodeString(parts[0])
	if err != nil || len(nonce) != nonceSize {
		return "", ErrMalformed
	}
	tag, err := hex.DecodeString(parts[1])
	if err != nil || len(tag) != f.aead.Overhead() {
		return "", ErrMalformed
	}
	data, err := hex.DecodeString(parts[2])
	if err != nil {
		return "", ErrMalformed
	}
	plain, err := f.aead.Open(nil, nonce, append(data, tag...), nil)
	if err != nil {
		return "", fmt.Errorf("open ciphertext: %w", err)
	}
	return string(plain), nil
}
