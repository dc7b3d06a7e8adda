package vault

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"io"
	"log"

	"list-scheduler/internal/core/domain"
)

const keyLength = 32 // AES-256

// Vault encrypts and decrypts stored secrets with AES-256-GCM. A fresh random
// IV is generated on every encryption call, so identical plaintexts never
// produce identical ciphertext. The IV must be persisted alongside the
// ciphertext; decryption requires both.
type Vault struct {
	aead cipher.AEAD
}

// New derives the vault key from the configured secret. The secret must be at
// least 32 characters; only the first 32 bytes are used as key material.
func New(secret string) (*Vault, error) {
	if len(secret) < keyLength {
		return nil, &domain.ConfigurationError{
			Field:  "encryption secret",
			Reason: fmt.Sprintf("must be at least %d characters, got %d", keyLength, len(secret)),
		}
	}

	block, err := aes.NewCipher([]byte(secret)[:keyLength])
	if err != nil {
		return nil, fmt.Errorf("failed to create cipher: %w", err)
	}

	aead, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("failed to create GCM: %w", err)
	}

	return &Vault{aead: aead}, nil
}

// Encrypt encrypts plaintext and returns the hex-encoded ciphertext and IV.
// Empty input yields nil with no error: there is nothing to protect.
func (v *Vault) Encrypt(plaintext string) (*domain.EncryptedSecret, error) {
	if plaintext == "" {
		return nil, nil
	}

	iv := make([]byte, v.aead.NonceSize())
	if _, err := io.ReadFull(rand.Reader, iv); err != nil {
		return nil, fmt.Errorf("failed to generate IV: %w", err)
	}

	ciphertext := v.aead.Seal(nil, iv, []byte(plaintext), nil)

	return &domain.EncryptedSecret{
		Ciphertext: hex.EncodeToString(ciphertext),
		IV:         hex.EncodeToString(iv),
	}, nil
}

// Decrypt recovers the plaintext from a ciphertext/IV pair. Any failure
// (tampered ciphertext, wrong key, malformed IV) is reported as ok=false
// rather than an error, so a corrupted or rotated-key secret degrades to
// "credential unset" instead of crashing the calling flow.
func (v *Vault) Decrypt(ciphertext, iv string) (string, bool) {
	if ciphertext == "" || iv == "" {
		return "", false
	}

	rawCiphertext, err := hex.DecodeString(ciphertext)
	if err != nil {
		log.Printf("Vault: discarding secret with malformed ciphertext: %v", err)
		return "", false
	}

	rawIV, err := hex.DecodeString(iv)
	if err != nil {
		log.Printf("Vault: discarding secret with malformed IV: %v", err)
		return "", false
	}

	if len(rawIV) != v.aead.NonceSize() {
		log.Printf("Vault: discarding secret with IV of length %d, want %d", len(rawIV), v.aead.NonceSize())
		return "", false
	}

	plaintext, err := v.aead.Open(nil, rawIV, rawCiphertext, nil)
	if err != nil {
		log.Printf("Vault: decryption failed, treating secret as unset: %v", err)
		return "", false
	}

	return string(plaintext), true
}
