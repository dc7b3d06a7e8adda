package storage

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	_ "github.com/lib/pq"

	"list-scheduler/internal/core/domain"
	"list-scheduler/internal/vault"
)

//go:embed migrations/*.sql
var migrationFiles embed.FS

// PostgresCredentialRepository persists credential pairs in PostgreSQL for
// deployments that already run one. Schema is managed with embedded
// golang-migrate migrations.
type PostgresCredentialRepository struct {
	db    *sql.DB
	vault *vault.Vault
}

func NewPostgresCredentialRepository(connStr string, v *vault.Vault) (*PostgresCredentialRepository, error) {
	db, err := sql.Open("postgres", connStr)
	if err != nil {
		return nil, err
	}
	if err := db.Ping(); err != nil {
		return nil, err
	}

	if err := runMigrations(db); err != nil {
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	log.Printf("Postgres credential repository initialized")
	return &PostgresCredentialRepository{db: db, vault: v}, nil
}

func runMigrations(db *sql.DB) error {
	source, err := iofs.New(migrationFiles, "migrations")
	if err != nil {
		return err
	}

	driver, err := postgres.WithInstance(db, &postgres.Config{})
	if err != nil {
		return err
	}

	m, err := migrate.NewWithInstance("iofs", source, "postgres", driver)
	if err != nil {
		return err
	}

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return err
	}
	return nil
}

func (r *PostgresCredentialRepository) Get(ctx context.Context, integration string) (domain.Credentials, error) {
	row := r.db.QueryRowContext(ctx, `
SELECT access_token_ciphertext, access_token_iv,
       refresh_token_ciphertext, refresh_token_iv,
       expires_at, updated_at
FROM credentials WHERE integration = $1`, integration)

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

func (r *PostgresCredentialRepository) Save(ctx context.Context, creds domain.Credentials) error {
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
VALUES ($1, $2, $3, $4, $5, $6, CURRENT_TIMESTAMP)
ON CONFLICT (integration) DO UPDATE SET
    access_token_ciphertext = EXCLUDED.access_token_ciphertext,
    access_token_iv = EXCLUDED.access_token_iv,
    refresh_token_ciphertext = EXCLUDED.refresh_token_ciphertext,
    refresh_token_iv = EXCLUDED.refresh_token_iv,
    expires_at = EXCLUDED.expires_at,
    updated_at = CURRENT_TIMESTAMP`,
		creds.Integration, accessCiphertext, accessIV, refreshCiphertext, refreshIV, expiresAt)
	if err != nil {
		return fmt.Errorf("failed to save credentials for %s: %w", creds.Integration, err)
	}
	return nil
}

func (r *PostgresCredentialRepository) Delete(ctx context.Context, integration string) error {
	result, err := r.db.ExecContext(ctx, `DELETE FROM credentials WHERE integration = $1`, integration)
	if err != nil {
		return fmt.Errorf("failed to delete credentials for %s: %w", integration, err)
	}
	if affected, err := result.RowsAffected(); err == nil && affected == 0 {
		return domain.ErrNotConnected
	}
	return nil
}

func (r *PostgresCredentialRepository) Close() error {
	return r.db.Close()
}
