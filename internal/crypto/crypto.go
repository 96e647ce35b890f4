// Package crypto provides the authenticated encryption used by the
// local record store. Records are sealed with AES-256-GCM; the stored
// form is nonce||ciphertext so decryption is self-contained.
//
// Losing the passphrase makes encrypted records permanently
// unrecoverable. That is intentional.
package crypto

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"errors"
	"fmt"

	"golang.org/x/crypto/pbkdf2"
	"golang.org/x/text/unicode/norm"
)

const (
	KeySize   = 32 // AES-256
	NonceSize = 12 // GCM standard
	TagSize   = 16 // GCM tag

	// PBKDF2 parameters, used when a salt is configured.
	DefaultIterations = 100000
	MinSaltSize       = 8
)

// Errors
var (
	ErrInvalidKey        = errors.New("invalid key size")
	ErrInvalidCiphertext = errors.New("invalid ciphertext format")
	ErrDecryptionFailed  = errors.New("decryption failed")
	ErrShortSalt         = errors.New("salt too short")
)

// Cipher seals and opens record payloads.
type Cipher interface {
	Encrypt(plaintext []byte) ([]byte, error)
	Decrypt(ciphertext []byte) ([]byte, error)
}

// DeriveKey hashes a passphrase into a 256-bit key. The passphrase is
// NFKC-normalized first so the same logical passphrase typed on
// different platforms derives the same key.
func DeriveKey(passphrase string) []byte {
	normalized := norm.NFKC.String(passphrase)
	key := sha256.Sum256([]byte(normalized))
	return key[:]
}

// DeriveKeyPBKDF2 derives a 256-bit key from a passphrase and salt
// using PBKDF2-SHA256.
func DeriveKeyPBKDF2(passphrase string, salt []byte) ([]byte, error) {
	if len(salt) < MinSaltSize {
		return nil, ErrShortSalt
	}
	normalized := norm.NFKC.String(passphrase)
	return pbkdf2.Key([]byte(normalized), salt, DefaultIterations, KeySize, sha256.New), nil
}

// AESGCM is the AES-256-GCM cipher used for records.
type AESGCM struct {
	aead cipher.AEAD
}

// NewAESGCM creates a cipher from a 256-bit key.
func NewAESGCM(key []byte) (*AESGCM, error) {
	if len(key) != KeySize {
		return nil, ErrInvalidKey
	}

	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("create cipher: %w", err)
	}

	aead, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("create GCM: %w", err)
	}

	return &AESGCM{aead: aead}, nil
}

// Encrypt seals plaintext with a fresh random nonce.
// Returns nonce||ciphertext.
func (c *AESGCM) Encrypt(plaintext []byte) ([]byte, error) {
	nonce := make([]byte, NonceSize)
	if _, err := rand.Read(nonce); err != nil {
		return nil, fmt.Errorf("generate nonce: %w", err)
	}

	ciphertext := c.aead.Seal(nil, nonce, plaintext, nil)

	result := make([]byte, NonceSize+len(ciphertext))
	copy(result[:NonceSize], nonce)
	copy(result[NonceSize:], ciphertext)

	return result, nil
}

// Decrypt opens nonce||ciphertext produced by Encrypt.
func (c *AESGCM) Decrypt(data []byte) ([]byte, error) {
	if len(data) < NonceSize+TagSize {
		return nil, ErrInvalidCiphertext
	}

	nonce := data[:NonceSize]
	plaintext, err := c.aead.Open(nil, nonce, data[NonceSize:], nil)
	if err != nil {
		return nil, ErrDecryptionFailed
	}

	return plaintext, nil
}
