package token

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"time"

	"golang.org/x/sync/singleflight"

	"list-scheduler/internal/core/domain"
	"list-scheduler/internal/retry"
)

// refreshWindow is how far ahead of expiry a token is refreshed. Refreshing
// eagerly keeps scheduled syncs from ever hitting the upstream with a token
// that expires mid-run.
const refreshWindow = 24 * time.Hour

// CredentialStore is the persistence collaborator for one integration's
// credential pair. Implementations return domain.ErrNotConnected when no
// record exists.
type CredentialStore interface {
	Get(ctx context.Context, integration string) (domain.Credentials, error)
	Save(ctx context.Context, creds domain.Credentials) error
}

// ClientCredentials identifies this application to the upstream
// authorization server.
type ClientCredentials struct {
	ClientID     string
	ClientSecret string
	RedirectURI  string
}

// Manager decides when an integration's access token is stale and performs
// the refresh grant against the upstream authorization server. Concurrent
// callers needing the same integration's token share one in-flight refresh.
type Manager struct {
	integration string
	tokenURL    string
	client      ClientCredentials
	httpClient  *http.Client
	policy      retry.Policy

	group singleflight.Group
	now   func() time.Time
}

// NewManager creates a refresh manager for one integration.
func NewManager(integration, tokenURL string, client ClientCredentials) *Manager {
	return &Manager{
		integration: integration,
		tokenURL:    tokenURL,
		client:      client,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
		policy: retry.DefaultPolicy(),
		now:    time.Now,
	}
}

// SetHTTPClient allows setting a custom HTTP client.
func (m *Manager) SetHTTPClient(client *http.Client) {
	m.httpClient = client
}

// NeedsRefresh reports whether a token with the given expiry should be
// refreshed now. An absent expiry always needs refresh.
func (m *Manager) NeedsRefresh(expiresAt *time.Time) bool {
	if expiresAt == nil {
		return true
	}
	return expiresAt.Before(m.now().Add(refreshWindow))
}

// refreshRequest is the OAuth refresh_token grant body.
type refreshRequest struct {
	RefreshToken string `json:"refresh_token"`
	ClientID     string `json:"client_id"`
	ClientSecret string `json:"client_secret"`
	RedirectURI  string `json:"redirect_uri"`
	GrantType    string `json:"grant_type"`
}

// refreshResponse is the raw success body from the token endpoint.
type refreshResponse struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	ExpiresIn    int    `json:"expires_in"`
}

// Refresh exchanges a refresh token for a new credential pair. The request is
// retried like any other network call to the upstream.
func (m *Manager) Refresh(ctx context.Context, refreshToken string) (domain.TokenPair, error) {
	if m.client.ClientID == "" || m.client.ClientSecret == "" {
		return domain.TokenPair{}, &domain.ConfigurationError{
			Field:  m.integration + " client credentials",
			Reason: "client id and secret must be configured before tokens can be refreshed",
		}
	}

	return retry.Do(ctx, m.policy, m.integration+" token refresh",
		func(ctx context.Context) (domain.TokenPair, error) {
			return m.doRefresh(ctx, refreshToken)
		})
}

func (m *Manager) doRefresh(ctx context.Context, refreshToken string) (domain.TokenPair, error) {
	body, err := json.Marshal(refreshRequest{
		RefreshToken: refreshToken,
		ClientID:     m.client.ClientID,
		ClientSecret: m.client.ClientSecret,
		RedirectURI:  m.client.RedirectURI,
		GrantType:    "refresh_token",
	})
	if err != nil {
		return domain.TokenPair{}, fmt.Errorf("failed to marshal refresh request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, m.tokenURL, bytes.NewBuffer(body))
	if err != nil {
		return domain.TokenPair{}, fmt.Errorf("failed to create refresh request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := m.httpClient.Do(req)
	if err != nil {
		return domain.TokenPair{}, &domain.NetworkError{Op: m.integration + " token refresh", Err: err}
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return domain.TokenPair{}, &domain.NetworkError{Op: m.integration + " token refresh", Err: err}
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return domain.TokenPair{}, &domain.HTTPStatusError{Status: resp.StatusCode, Body: string(respBody)}
	}

	var parsed refreshResponse
	if err := json.Unmarshal(respBody, &parsed); err != nil {
		return domain.TokenPair{}, fmt.Errorf("failed to parse refresh response: %w", err)
	}
	if parsed.AccessToken == "" {
		return domain.TokenPair{}, fmt.Errorf("refresh response contains no access token")
	}

	expiresAt := m.now().Add(time.Duration(parsed.ExpiresIn) * time.Second)

	return domain.TokenPair{
		AccessToken:  parsed.AccessToken,
		RefreshToken: parsed.RefreshToken,
		ExpiresAt:    &expiresAt,
	}, nil
}

// EnsureValid returns an access token that is safe to use for the
// integration, refreshing and persisting the stored pair first when it is
// stale. Concurrent callers serialize through a single in-flight refresh.
func (m *Manager) EnsureValid(ctx context.Context, store CredentialStore) (string, error) {
	creds, err := store.Get(ctx, m.integration)
	if err != nil {
		return "", err
	}
	if creds.AccessToken == "" {
		return "", domain.ErrNotConnected
	}

	if !m.NeedsRefresh(creds.ExpiresAt) {
		return creds.AccessToken, nil
	}

	if creds.RefreshToken == "" {
		return "", domain.ErrReauthorizationRequired
	}

	result, err, shared := m.group.Do(m.integration, func() (interface{}, error) {
		// Re-read under the flight: another caller may have refreshed and
		// persisted while this one was queued.
		current, err := store.Get(ctx, m.integration)
		if err != nil {
			return nil, err
		}
		if !m.NeedsRefresh(current.ExpiresAt) {
			return current.AccessToken, nil
		}

		pair, err := m.Refresh(ctx, current.RefreshToken)
		if err != nil {
			return nil, err
		}

		current.AccessToken = pair.AccessToken
		current.RefreshToken = pair.RefreshToken
		current.ExpiresAt = pair.ExpiresAt
		current.UpdatedAt = m.now()
		if err := store.Save(ctx, current); err != nil {
			return nil, fmt.Errorf("failed to persist refreshed credentials: %w", err)
		}

		log.Printf("Refreshed %s access token (expires %v)", m.integration, pair.ExpiresAt)
		return pair.AccessToken, nil
	})
	if err != nil {
		return "", err
	}
	if shared {
		log.Printf("Shared in-flight %s token refresh with concurrent caller", m.integration)
	}

	return result.(string), nil
}
