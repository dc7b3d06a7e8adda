package storage

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"

	"list-scheduler/internal/core/domain"
	"list-scheduler/internal/vault"
)

func newTestVault(t *testing.T) *vault.Vault {
	t.Helper()

	v, err := vault.New("0123456789abcdef0123456789abcdef")
	if err != nil {
		t.Fatalf("vault.New() unexpected error: %v", err)
	}
	return v
}

func newTestCredentialRepo(t *testing.T) *SQLiteCredentialRepository {
	t.Helper()

	repo, err := NewSQLiteCredentialRepository(filepath.Join(t.TempDir(), "creds.db"), newTestVault(t))
	if err != nil {
		t.Fatalf("NewSQLiteCredentialRepository() unexpected error: %v", err)
	}
	t.Cleanup(func() { repo.Close() })
	return repo
}

func TestSQLiteCredentialRoundTrip(t *testing.T) {
	repo := newTestCredentialRepo(t)
	ctx := context.Background()

	expiresAt := time.Now().Add(2 * time.Hour).UTC().Truncate(time.Second)
	saved := domain.Credentials{
		Integration:  "tracker",
		AccessToken:  "access-token-value",
		RefreshToken: "refresh-token-value",
		ExpiresAt:    &expiresAt,
	}

	if err := repo.Save(ctx, saved); err != nil {
		t.Fatalf("Save() unexpected error: %v", err)
	}

	got, err := repo.Get(ctx, "tracker")
	if err != nil {
		t.Fatalf("Get() unexpected error: %v", err)
	}
	if got.AccessToken != saved.AccessToken || got.RefreshToken != saved.RefreshToken {
		t.Errorf("Get() tokens = (%q, %q), want (%q, %q)",
			got.AccessToken, got.RefreshToken, saved.AccessToken, saved.RefreshToken)
	}
	if got.ExpiresAt == nil || !got.ExpiresAt.UTC().Equal(expiresAt) {
		t.Errorf("Get() ExpiresAt = %v, want %v", got.ExpiresAt, expiresAt)
	}
}

func TestSQLiteCredentialTokensAreEncryptedAtRest(t *testing.T) {
	repo := newTestCredentialRepo(t)
	ctx := context.Background()

	if err := repo.Save(ctx, domain.Credentials{
		Integration: "tracker",
		AccessToken: "plaintext-access-token",
	}); err != nil {
		t.Fatalf("Save() unexpected error: %v", err)
	}

	var ciphertext, iv string
	row := repo.db.QueryRow(`SELECT access_token_ciphertext, access_token_iv FROM credentials WHERE integration = ?`, "tracker")
	if err := row.Scan(&ciphertext, &iv); err != nil {
		t.Fatalf("raw row scan failed: %v", err)
	}

	if ciphertext == "plaintext-access-token" || ciphertext == "" {
		t.Errorf("access token stored as %q, want ciphertext", ciphertext)
	}
	if iv == "" {
		t.Error("IV column empty, decryption would be impossible")
	}
}

func TestSQLiteCredentialMissingIntegration(t *testing.T) {
	repo := newTestCredentialRepo(t)

	_, err := repo.Get(context.Background(), "never-connected")
	if !errors.Is(err, domain.ErrNotConnected) {
		t.Errorf("Get() = %v, want ErrNotConnected", err)
	}

	if err := repo.Delete(context.Background(), "never-connected"); !errors.Is(err, domain.ErrNotConnected) {
		t.Errorf("Delete() = %v, want ErrNotConnected", err)
	}
}

func TestSQLiteCredentialUpsert(t *testing.T) {
	repo := newTestCredentialRepo(t)
	ctx := context.Background()

	if err := repo.Save(ctx, domain.Credentials{Integration: "tracker", AccessToken: "first"}); err != nil {
		t.Fatalf("Save() unexpected error: %v", err)
	}
	if err := repo.Save(ctx, domain.Credentials{Integration: "tracker", AccessToken: "second"}); err != nil {
		t.Fatalf("Save() unexpected error: %v", err)
	}

	got, err := repo.Get(ctx, "tracker")
	if err != nil {
		t.Fatalf("Get() unexpected error: %v", err)
	}
	if got.AccessToken != "second" {
		t.Errorf("Get() after upsert = %q, want second", got.AccessToken)
	}
}

func TestSQLiteCredentialCorruptedCiphertextDegradesToUnset(t *testing.T) {
	repo := newTestCredentialRepo(t)
	ctx := context.Background()

	if err := repo.Save(ctx, domain.Credentials{
		Integration:  "tracker",
		AccessToken:  "good-access",
		RefreshToken: "good-refresh",
	}); err != nil {
		t.Fatalf("Save() unexpected error: %v", err)
	}

	// Corrupt the stored access token out of band, as a rotated key or disk
	// fault would.
	if _, err := repo.db.Exec(`UPDATE credentials SET access_token_ciphertext = 'deadbeef' WHERE integration = ?`, "tracker"); err != nil {
		t.Fatalf("raw update failed: %v", err)
	}

	got, err := repo.Get(ctx, "tracker")
	if err != nil {
		t.Fatalf("Get() unexpected error: %v", err)
	}
	if got.AccessToken != "" {
		t.Errorf("corrupted access token decrypted to %q, want unset", got.AccessToken)
	}
	if got.RefreshToken != "good-refresh" {
		t.Errorf("intact refresh token = %q, want good-refresh", got.RefreshToken)
	}
}

func TestSQLiteRunRepository(t *testing.T) {
	repo, err := NewSQLiteRunRepository(filepath.Join(t.TempDir(), "runs.db"))
	if err != nil {
		t.Fatalf("NewSQLiteRunRepository() unexpected error: %v", err)
	}
	t.Cleanup(func() { repo.Close() })

	ctx := context.Background()
	base := time.Now().UTC().Truncate(time.Second)

	for i := 0; i < 3; i++ {
		run := domain.JobRun{
			ID:         uuid.New().String(),
			JobName:    "sync-watchlist",
			Status:     domain.RunCompleted,
			StartedAt:  base.Add(time.Duration(i) * time.Minute),
			FinishedAt: base.Add(time.Duration(i)*time.Minute + 10*time.Second),
		}
		if err := repo.Record(ctx, run); err != nil {
			t.Fatalf("Record() unexpected error: %v", err)
		}
	}
	if err := repo.Record(ctx, domain.JobRun{
		ID:         uuid.New().String(),
		JobName:    "sync-lists",
		Status:     domain.RunFailed,
		StartedAt:  base,
		FinishedAt: base.Add(time.Second),
		Error:      "upstream returned status 503",
	}); err != nil {
		t.Fatalf("Record() unexpected error: %v", err)
	}

	runs, err := repo.ListRecent(ctx, "sync-watchlist", 2)
	if err != nil {
		t.Fatalf("ListRecent() unexpected error: %v", err)
	}
	if len(runs) != 2 {
		t.Fatalf("ListRecent() returned %d runs, want 2", len(runs))
	}
	if !runs[0].StartedAt.After(runs[1].StartedAt) {
		t.Error("ListRecent() not ordered newest first")
	}
	for _, run := range runs {
		if run.JobName != "sync-watchlist" {
			t.Errorf("ListRecent() leaked run for %s", run.JobName)
		}
	}
}
