package tracker

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"list-scheduler/internal/core/domain"
	"list-scheduler/internal/ratelimit"
	"list-scheduler/internal/retry"
	"list-scheduler/internal/token"
)

const apiVersion = "2"

// rateKey identifies this upstream in the shared rate limiter.
const rateKey = "tracker"

// Client represents the tracker REST client. Every request carries a bearer
// token obtained from the token manager, which refreshes it when needed.
type Client struct {
	baseURL    string
	clientID   string
	httpClient *http.Client
	tokens     *token.Manager
	store      token.CredentialStore
	limiter    *ratelimit.Limiter
	policy     retry.Policy
}

// NewClient creates a new tracker client.
func NewClient(baseURL, clientID string, tokens *token.Manager, store token.CredentialStore, limiter *ratelimit.Limiter) *Client {
	return &Client{
		baseURL:  baseURL,
		clientID: clientID,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
		tokens:  tokens,
		store:   store,
		limiter: limiter,
		policy:  retry.DefaultPolicy(),
	}
}

// SetHTTPClient allows setting a custom HTTP client
func (c *Client) SetHTTPClient(client *http.Client) {
	c.httpClient = client
}

// SetRetryPolicy allows overriding the default retry policy
func (c *Client) SetRetryPolicy(policy retry.Policy) {
	c.policy = policy
}

// createRequest creates an HTTP request with the API headers the tracker
// requires, including a valid bearer token.
func (c *Client) createRequest(ctx context.Context, method, endpoint string) (*http.Request, error) {
	accessToken, err := c.tokens.EnsureValid(ctx, c.store)
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+accessToken)
	req.Header.Set("trakt-api-version", apiVersion)
	req.Header.Set("trakt-api-key", c.clientID)

	return req, nil
}

// doRequest executes an HTTP request and decodes the response into result.
func (c *Client) doRequest(req *http.Request, result interface{}) error {
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return &domain.NetworkError{Op: "tracker request", Err: err}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response body: %w", err)
	}

	if resp.StatusCode >= 400 {
		return &domain.HTTPStatusError{Status: resp.StatusCode, Body: string(body)}
	}

	if result != nil {
		if err := json.Unmarshal(body, result); err != nil {
			return fmt.Errorf("failed to unmarshal response: %w", err)
		}
	}

	return nil
}

// GetWatchlist retrieves the authenticated user's watchlist. Calls are spaced
// by the shared rate limiter and retried on transient upstream failures.
func (c *Client) GetWatchlist(ctx context.Context) ([]WatchlistItem, error) {
	return retry.Do(ctx, c.policy, "tracker watchlist", func(ctx context.Context) ([]WatchlistItem, error) {
		if err := c.limiter.Wait(ctx, rateKey); err != nil {
			return nil, err
		}

		req, err := c.createRequest(ctx, "GET", "/sync/watchlist")
		if err != nil {
			return nil, err
		}

		var items []WatchlistItem
		if err := c.doRequest(req, &items); err != nil {
			return nil, err
		}
		return items, nil
	})
}
