package catalog

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"list-scheduler/internal/core/domain"
	"list-scheduler/internal/ratelimit"
	"list-scheduler/internal/retry"
)

const rateKey = "catalog"

// Client represents the list catalog REST client. The catalog authenticates
// with an API key passed as a query parameter on every request.
type Client struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
	limiter    *ratelimit.Limiter
	policy     retry.Policy
}

// NewClient creates a new catalog client.
func NewClient(baseURL, apiKey string, limiter *ratelimit.Limiter) *Client {
	return &Client{
		baseURL: baseURL,
		apiKey:  apiKey,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
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

// createRequest creates an HTTP request with the API key attached.
func (c *Client) createRequest(ctx context.Context, method, endpoint string) (*http.Request, error) {
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	query := req.URL.Query()
	query.Set("apikey", c.apiKey)
	req.URL.RawQuery = query.Encode()

	return req, nil
}

// doRequest executes an HTTP request and decodes the response into result.
func (c *Client) doRequest(req *http.Request, result interface{}) error {
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return &domain.NetworkError{Op: "catalog request", Err: err}
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

// GetList retrieves the items of a catalog list. The catalog enforces a tight
// request quota, so calls are spaced by the shared rate limiter and retried on
// transient failures.
func (c *Client) GetList(ctx context.Context, listID string) ([]ListItem, error) {
	endpoint := fmt.Sprintf("/lists/%s/items", url.PathEscape(listID))

	return retry.Do(ctx, c.policy, "catalog list", func(ctx context.Context) ([]ListItem, error) {
		if err := c.limiter.Wait(ctx, rateKey); err != nil {
			return nil, err
		}

		req, err := c.createRequest(ctx, "GET", endpoint)
		if err != nil {
			return nil, err
		}

		var items []ListItem
		if err := c.doRequest(req, &items); err != nil {
			return nil, err
		}
		return items, nil
	})
}
