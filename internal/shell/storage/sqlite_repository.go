package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"list-scheduler/internal/core/domain"
	"list-scheduler/internal/vault"
)

// SQLiteCredentialRepository persists credential pairs in SQLite, the default
// backend for self-hosted deployments. Access and refresh tokens are
// encrypted through the vault; the per-token IV is stored alongside the
// ciphertext because decryption requires both.
type SQLiteCredentialRepository struct {
	db    *sql.DB
	vault *vault.Vault
}

func NewSQLiteCredentialRepository(dbPath string, v *vault.Vault) (*SQLiteCredentialRepository, error) {
	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, err
	}
	if err := db.Ping(); err != nil {
		return nil, err
	}

	repo := &SQLiteCredentialRepository{db: db, vault: v}
	if err := repo.initSchema(); err != nil {
		return nil, err
	}
	return repo, nil
}

func (r *SQLiteCredentialRepository) initSchema() error {
	schema := `
CREATE TABLE IF NOT EXISTS credentials (
    integration TEXT PRIMARY KEY,
    access_token_ciphertext TEXT NOT NULL DEFAULT '',
    access_token_iv TEXT NOT NULL DEFAULT '',
    refresh_token_ciphertext TEXT NOT NULL DEFAULT '',
    refresh_token_iv TEXT NOT NULL DEFAULT '',
    expires_at DATETIME NULL,
    updated_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
);
`
	_, err := r.db.Exec(schema)
	return err
}

func (r *SQLiteCredentialRepository) Get(ctx context.Context, integration string) (domain.Credentials, error) {
	row := r.db.QueryRowContext(ctx, `
SELECT access_token_ciphertext, access_token_iv,
       refresh_token_ciphertext, refresh_token_iv,
       expires_at, updated_at
FROM credentials WHERE integration = ?`, integration)

	var accessCiphertext, accessIV, refreshCiphertext, refreshIV string
	var expiresAt sql.NullTime
	var updatedAt time.Time

	err := row.Scan(&accessCiphertext, &accessIV, &refreshCiphertext, &refreshIV, &expiresAt, &updatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.Credentials{}, domain.ErrNotConnected
	}
	if err != nil {
		return domain.Credentials{}, fmt.Errorf("failed to read credentials for %s: %w", integration, err)
	}

	creds := domain.Credentials{
		Integration: integration,
		UpdatedAt:   updatedAt,
	}
	if expiresAt.Valid {
		creds.ExpiresAt = &expiresAt.Time
	}

	// A token that fails to decrypt degrades to unset rather than an error:
	// the caller sees "not connected" semantics, not a crash.
	if accessCiphertext != "" {
		if plaintext, ok := r.vault.Decrypt(accessCiphertext, accessIV); ok {
			creds.AccessToken = plaintext
		}
	}
	if refreshCiphertext != "" {
		if plaintext, ok := r.vault.Decrypt(refreshCiphertext, refreshIV); ok {
			creds.RefreshToken = plaintext
		}
	}

	return creds, nil
}

func (r *SQLiteCredentialRepository) Save(ctx context.Context, creds domain.Credentials) error {
	accessSecret, err := r.vault.Encrypt(creds.AccessToken)
	if err != nil {
		return fmt.Errorf("failed to encrypt access token: %w", err)
	}
	refreshSecret, err := r.vault.Encrypt(creds.RefreshToken)
	if err != nil {
		return fmt.Errorf("failed to encrypt refresh token: %w", err)
	}

	var accessCiphertext, accessIV, refreshCiphertext, refreshIV string
	if accessSecret != nil {
		accessCiphertext, accessIV = accessSecret.Ciphertext, accessSecret.IV
	}
	if refreshSecret != nil {
		refreshCiphertext, refreshIV = refreshSecret.Ciphertext, refreshSecret.IV
	}

	var expiresAt interface{}
	if creds.ExpiresAt != nil {
		expiresAt = creds.ExpiresAt.UTC()
	}

	_, err = r.db.ExecContext(ctx, `
INSERT INTO credentials (integration, access_token_ciphertext, access_token_iv,
                         refresh_token_ciphertext, refresh_token_iv, expires_at, updated_at)
VALUES (?, ?, ?, ?, ?, ?, CURRENT_TIMESTAMP)
ON CONFLICT(integration) DO UPDATE SET
    access_token_ciphertext = excluded.access_token_ciphertext,
    access_token_iv = excluded.access_token_iv,
    refresh_token_ciphertext = excluded.refresh_token_ciphertext,
    refresh_token_iv = excluded.refresh_token_iv,
    expires_at = excluded.expires_at,
    updated_at = CURRENT_TIMESTAMP`,
		creds.Integration, accessCiphertext, accessIV, refreshCiphertext, refreshIV, expiresAt)
	if err != nil {
		return fmt.Errorf("failed to save credentials for %s: %w", creds.Integration, err)
	}
	return nil
}

func (r *SQLiteCredentialRepository) Delete(ctx context.Context, integration string) error {
	result, err := r.db.ExecContext(ctx, `DELETE FROM credentials WHERE integration = ?`, integration)
	if err != nil {
		return fmt.Errorf("failed to delete credentials for %s: %w", integration, err)
	}
	if affected, err := result.RowsAffected(); err == nil && affected == 0 {
		return domain.ErrNotConnected
	}
	return nil
}

func (r *SQLiteCredentialRepository) Close() error {
	return r.db.Close()
}
