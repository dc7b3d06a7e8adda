package vault

import (
	"errors"
	"strings"
	"testing"

	"list-scheduler/internal/core/domain"
)

const testSecret = "0123456789abcdef0123456789abcdef"

func newTestVault(t *testing.T) *Vault {
	t.Helper()

	v, err := New(testSecret)
	if err != nil {
		t.Fatalf("New() unexpected error: %v", err)
	}
	return v
}

func TestNewRejectsShortSecret(t *testing.T) {
	_, err := New("too-short")
	if err == nil {
		t.Fatal("New() expected error for short secret, got nil")
	}

	var cfgErr *domain.ConfigurationError
	if !errors.As(err, &cfgErr) {
		t.Errorf("New() expected ConfigurationError, got %T: %v", err, err)
	}
}

func TestNewAcceptsLongSecret(t *testing.T) {
	// Secrets longer than the key length are truncated, not rejected.
	if _, err := New(testSecret + "extra-material-beyond-the-key"); err != nil {
		t.Fatalf("New() unexpected error for long secret: %v", err)
	}
}

func TestEncryptDecryptRoundTrip(t *testing.T) {
	v := newTestVault(t)

	tests := []struct {
		name      string
		plaintext string
	}{
		{name: "Short value", plaintext: "s3cret"},
		{name: "Token-like value", plaintext: "eyJhbGciOiJIUzI1NiJ9.payload.signature"},
		{name: "Unicode value", plaintext: "pässwörd-日本語"},
		{name: "Long value", plaintext: strings.Repeat("refresh-token-", 100)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			secret, err := v.Encrypt(tt.plaintext)
			if err != nil {
				t.Fatalf("Encrypt() unexpected error: %v", err)
			}
			if secret == nil {
				t.Fatal("Encrypt() returned nil secret for non-empty input")
			}

			got, ok := v.Decrypt(secret.Ciphertext, secret.IV)
			if !ok {
				t.Fatal("Decrypt() reported failure for valid secret")
			}
			if got != tt.plaintext {
				t.Errorf("Decrypt() = %q, want %q", got, tt.plaintext)
			}
		})
	}
}

func TestEncryptEmptyInput(t *testing.T) {
	v := newTestVault(t)

	secret, err := v.Encrypt("")
	if err != nil {
		t.Fatalf("Encrypt() unexpected error: %v", err)
	}
	if secret != nil {
		t.Errorf("Encrypt(\"\") = %+v, want nil", secret)
	}
}

func TestEncryptProducesFreshIV(t *testing.T) {
	v := newTestVault(t)

	first, err := v.Encrypt("same plaintext")
	if err != nil {
		t.Fatalf("Encrypt() unexpected error: %v", err)
	}
	second, err := v.Encrypt("same plaintext")
	if err != nil {
		t.Fatalf("Encrypt() unexpected error: %v", err)
	}

	if first.IV == second.IV {
		t.Error("Encrypt() reused an IV across calls")
	}
	if first.Ciphertext == second.Ciphertext {
		t.Error("Encrypt() produced identical ciphertext for identical plaintext")
	}
}

func TestDecryptDegradesToUnavailable(t *testing.T) {
	v := newTestVault(t)

	valid, err := v.Encrypt("protected value")
	if err != nil {
		t.Fatalf("Encrypt() unexpected error: %v", err)
	}
	other, err := v.Encrypt("another value")
	if err != nil {
		t.Fatalf("Encrypt() unexpected error: %v", err)
	}

	tests := []struct {
		name       string
		ciphertext string
		iv         string
	}{
		{name: "Mismatched IV", ciphertext: valid.Ciphertext, iv: other.IV},
		{name: "Corrupted ciphertext", ciphertext: "00" + valid.Ciphertext[2:], iv: valid.IV},
		{name: "Malformed ciphertext hex", ciphertext: "not-hex", iv: valid.IV},
		{name: "Malformed IV hex", ciphertext: valid.Ciphertext, iv: "zz"},
		{name: "Truncated IV", ciphertext: valid.Ciphertext, iv: valid.IV[:8]},
		{name: "Empty ciphertext", ciphertext: "", iv: valid.IV},
		{name: "Empty IV", ciphertext: valid.Ciphertext, iv: ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := v.Decrypt(tt.ciphertext, tt.iv)
			if ok {
				t.Errorf("Decrypt() = %q, expected unavailable", got)
			}
		})
	}
}

func TestDecryptWithRotatedKey(t *testing.T) {
	original := newTestVault(t)

	rotated, err := New("ffffffffffffffffffffffffffffffff")
	if err != nil {
		t.Fatalf("New() unexpected error: %v", err)
	}

	secret, err := original.Encrypt("value under old key")
	if err != nil {
		t.Fatalf("Encrypt() unexpected error: %v", err)
	}

	if got, ok := rotated.Decrypt(secret.Ciphertext, secret.IV); ok {
		t.Errorf("Decrypt() with rotated key = %q, expected unavailable", got)
	}
}
