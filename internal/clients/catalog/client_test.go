package catalog

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"list-scheduler/internal/core/domain"
	"list-scheduler/internal/ratelimit"
	"list-scheduler/internal/retry"
)

func newTestClient(serverURL string) *Client {
	client := NewClient(serverURL, "test-api-key", ratelimit.New(time.Millisecond))
	client.SetRetryPolicy(retry.Policy{
		MaxAttempts:          3,
		RetryableStatusCodes: map[int]bool{429: true, 503: true},
		BaseDelay:            time.Millisecond,
		MaxDelay:             5 * time.Millisecond,
	})
	return client
}

func TestGetList(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/lists/top-watched/items" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if got := r.URL.Query().Get("apikey"); got != "test-api-key" {
			t.Errorf("apikey query param = %q", got)
		}

		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`[
			{"id": 603, "rank": 1, "title": "The Matrix", "release_year": 1999, "mediatype": "movie", "imdb_id": "tt0133093"},
			{"id": 1438, "rank": 2, "title": "The Wire", "release_year": 2002, "mediatype": "show"}
		]`))
	}))
	defer server.Close()

	items, err := newTestClient(server.URL).GetList(context.Background(), "top-watched")
	if err != nil {
		t.Fatalf("GetList() unexpected error: %v", err)
	}
	if len(items) != 2 {
		t.Fatalf("GetList() returned %d items, want 2", len(items))
	}
	if items[0].Title != "The Matrix" || items[0].IMDBID != "tt0133093" {
		t.Errorf("first item = %+v", items[0])
	}
}

func TestGetListRetriesQuotaExhaustion(t *testing.T) {
	calls := 0
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		if calls == 1 {
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		w.Write([]byte(`[]`))
	}))
	defer server.Close()

	if _, err := newTestClient(server.URL).GetList(context.Background(), "top-watched"); err != nil {
		t.Fatalf("GetList() unexpected error: %v", err)
	}
	if calls != 2 {
		t.Errorf("server saw %d calls, want 2", calls)
	}
}

func TestGetListUnauthorized(t *testing.T) {
	calls := 0
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer server.Close()

	_, err := newTestClient(server.URL).GetList(context.Background(), "top-watched")
	if status, ok := domain.StatusCode(err); !ok || status != http.StatusUnauthorized {
		t.Fatalf("GetList() error = %v, want status 401", err)
	}
	if calls != 1 {
		t.Errorf("server saw %d calls, want 1", calls)
	}
}

func TestGetListEscapesListID(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.EscapedPath() != "/lists/weird%2Fid/items" {
			t.Errorf("unexpected escaped path %s", r.URL.EscapedPath())
		}
		w.Write([]byte(`[]`))
	}))
	defer server.Close()

	if _, err := newTestClient(server.URL).GetList(context.Background(), "weird/id"); err != nil {
		t.Fatalf("GetList() unexpected error: %v", err)
	}
}
