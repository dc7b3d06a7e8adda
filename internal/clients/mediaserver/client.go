package mediaserver

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/sony/gobreaker/v2"

	"list-scheduler/internal/core/domain"
	"list-scheduler/internal/retry"
)

// Client represents the media server REST client. Requests authenticate with
// an API key header and flow through a circuit breaker so a misbehaving media
// server does not absorb every sync cycle in timeouts.
type Client struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
	breaker    *gobreaker.CircuitBreaker[[]byte]
	policy     retry.Policy
}

// NewClient creates a new media server client.
func NewClient(baseURL, apiKey string) *Client {
	c := &Client{
		baseURL: baseURL,
		apiKey:  apiKey,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
		policy: retry.DefaultPolicy(),
	}

	c.breaker = gobreaker.NewCircuitBreaker[[]byte](gobreaker.Settings{
		Name:        "mediaserver",
		MaxRequests: 1,
		Interval:    time.Minute,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
		IsSuccessful: func(err error) bool {
			// Client-side errors do not indicate an unhealthy upstream.
			if status, ok := domain.StatusCode(err); ok && status < 500 {
				return true
			}
			return err == nil
		},
	})

	return c
}

// SetHTTPClient allows setting a custom HTTP client
func (c *Client) SetHTTPClient(client *http.Client) {
	c.httpClient = client
}

// SetRetryPolicy allows overriding the default retry policy
func (c *Client) SetRetryPolicy(policy retry.Policy) {
	c.policy = policy
}

// createRequest creates an HTTP request with the API key header set.
func (c *Client) createRequest(ctx context.Context, method, endpoint string, body interface{}) (*http.Request, error) {
	var reqBody io.Reader

	if body != nil {
		jsonBody, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal request body: %w", err)
		}
		reqBody = bytes.NewBuffer(jsonBody)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+endpoint, reqBody)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("X-Api-Key", c.apiKey)

	return req, nil
}

// doRequest executes an HTTP request through the circuit breaker and decodes
// the response into result.
func (c *Client) doRequest(req *http.Request, result interface{}) error {
	body, err := c.breaker.Execute(func() ([]byte, error) {
		resp, err := c.httpClient.Do(req)
		if err != nil {
			return nil, &domain.NetworkError{Op: "mediaserver request", Err: err}
		}
		defer resp.Body.Close()

		body, err := io.ReadAll(resp.Body)
		if err != nil {
			return nil, fmt.Errorf("failed to read response body: %w", err)
		}

		if resp.StatusCode >= 400 {
			return nil, &domain.HTTPStatusError{Status: resp.StatusCode, Body: string(body)}
		}
		return body, nil
	})
	if err != nil {
		return err
	}

	if result != nil {
		if err := json.Unmarshal(body, result); err != nil {
			return fmt.Errorf("failed to unmarshal response: %w", err)
		}
	}

	return nil
}

// RequestItem submits a media request for the given TMDB id. The media server
// deduplicates requests for already-requested items on its side.
func (c *Client) RequestItem(ctx context.Context, mediaType string, tmdbID int) (*MediaRequest, error) {
	payload := requestPayload{MediaType: mediaType, MediaID: tmdbID}

	return retry.Do(ctx, c.policy, "mediaserver request", func(ctx context.Context) (*MediaRequest, error) {
		req, err := c.createRequest(ctx, "POST", "/api/v1/request", payload)
		if err != nil {
			return nil, err
		}

		var result MediaRequest
		if err := c.doRequest(req, &result); err != nil {
			return nil, err
		}
		return &result, nil
	})
}

// Status reports the media server's own health and version.
func (c *Client) Status(ctx context.Context) (*ServerStatus, error) {
	return retry.Do(ctx, c.policy, "mediaserver status", func(ctx context.Context) (*ServerStatus, error) {
		req, err := c.createRequest(ctx, "GET", "/api/v1/status", nil)
		if err != nil {
			return nil, err
		}

		var result ServerStatus
		if err := c.doRequest(req, &result); err != nil {
			return nil, err
		}
		return &result, nil
	})
}
