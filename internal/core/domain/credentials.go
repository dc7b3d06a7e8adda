package domain

import "time"

// TokenPair is the OAuth access/refresh credential pair for one integration.
// The pair is created during the external authorization flow and destroyed
// when the user disconnects the integration; this core only reads and
// rewrites it.
type TokenPair struct {
	AccessToken  string     `json:"access_token"`
	RefreshToken string     `json:"refresh_token"`
	ExpiresAt    *time.Time `json:"expires_at,omitempty"`
}

// EncryptedSecret is a vault-produced ciphertext with the IV used to create
// it. Both fields are hex strings and must be persisted together; the IV is
// required to decrypt.
type EncryptedSecret struct {
	Ciphertext string `json:"ciphertext"`
	IV         string `json:"iv"`
}

// Credentials is the persisted credential record for one integration.
type Credentials struct {
	Integration  string
	AccessToken  string
	RefreshToken string
	ExpiresAt    *time.Time
	UpdatedAt    time.Time
}

// TokenPair projects the persisted record into the pair consumed by the
// token refresh manager.
func (c Credentials) TokenPair() TokenPair {
	return TokenPair{
		AccessToken:  c.AccessToken,
		RefreshToken: c.RefreshToken,
		ExpiresAt:    c.ExpiresAt,
	}
}
