// Package sync holds the job handlers that move list items from the upstream
// sources into the media server. The handlers are deliberately thin: pull
// items, forward the ones not yet requested, record what happened. Matching
// and availability detection live in the media server, not here.
package sync

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"sync"

	"list-scheduler/internal/clients/catalog"
	"list-scheduler/internal/clients/mediaserver"
	"list-scheduler/internal/clients/tracker"
	"list-scheduler/internal/core/domain"
	"list-scheduler/internal/token"
)

// WatchlistSource provides the user's tracker watchlist.
type WatchlistSource interface {
	GetWatchlist(ctx context.Context) ([]tracker.WatchlistItem, error)
}

// ListSource provides the items of a catalog list.
type ListSource interface {
	GetList(ctx context.Context, listID string) ([]catalog.ListItem, error)
}

// MediaRequester submits media requests to the media server.
type MediaRequester interface {
	RequestItem(ctx context.Context, mediaType string, tmdbID int) (*mediaserver.MediaRequest, error)
}

// Syncer wires the upstream sources to the media server and exposes the
// scheduler job handlers. IDs already forwarded are remembered in memory so a
// sync cycle does not resubmit the whole list every time; the media server
// rejects duplicates anyway, so losing the set on restart only costs a few
// 409 responses.
type Syncer struct {
	watchlist WatchlistSource
	lists     ListSource
	requester MediaRequester
	listIDs   []string

	mu   sync.Mutex
	seen map[string]bool
}

// NewSyncer creates a Syncer forwarding to requester. listIDs names the
// catalog lists the sync-lists job pulls.
func NewSyncer(watchlist WatchlistSource, lists ListSource, requester MediaRequester, listIDs []string) *Syncer {
	return &Syncer{
		watchlist: watchlist,
		lists:     lists,
		requester: requester,
		listIDs:   listIDs,
		seen:      make(map[string]bool),
	}
}

// SyncWatchlist pulls the tracker watchlist and forwards unseen items.
func (s *Syncer) SyncWatchlist(ctx context.Context) error {
	items, err := s.watchlist.GetWatchlist(ctx)
	if err != nil {
		return fmt.Errorf("fetching watchlist: %w", err)
	}

	forwarded, failed := 0, 0
	for _, item := range items {
		tmdbID := item.TMDBID()
		if tmdbID == 0 {
			continue
		}

		mediaType := "movie"
		if item.Show != nil {
			mediaType = "tv"
		}

		switch s.forward(ctx, mediaType, tmdbID) {
		case forwardSent:
			forwarded++
		case forwardFailed:
			failed++
		}
	}

	log.Printf("Watchlist sync: %d items, %d forwarded, %d failed", len(items), forwarded, failed)
	if failed > 0 {
		return fmt.Errorf("watchlist sync: %d of %d forwards failed", failed, forwarded+failed)
	}
	return nil
}

// SyncLists pulls every configured catalog list and forwards unseen items.
func (s *Syncer) SyncLists(ctx context.Context) error {
	var firstErr error

	for _, listID := range s.listIDs {
		items, err := s.lists.GetList(ctx, listID)
		if err != nil {
			log.Printf("Failed to fetch list %s: %v", listID, err)
			if firstErr == nil {
				firstErr = fmt.Errorf("fetching list %s: %w", listID, err)
			}
			continue
		}

		forwarded, failed := 0, 0
		for _, item := range items {
			mediaType := "movie"
			if item.MediaType == "show" {
				mediaType = "tv"
			}

			switch s.forward(ctx, mediaType, item.ID) {
			case forwardSent:
				forwarded++
			case forwardFailed:
				failed++
			}
		}

		log.Printf("List %s sync: %d items, %d forwarded, %d failed", listID, len(items), forwarded, failed)
		if failed > 0 && firstErr == nil {
			firstErr = fmt.Errorf("list %s sync: %d forwards failed", listID, failed)
		}
	}

	return firstErr
}

type forwardResult int

const (
	forwardSkipped forwardResult = iota
	forwardSent
	forwardFailed
)

func (s *Syncer) forward(ctx context.Context, mediaType string, tmdbID int) forwardResult {
	key := fmt.Sprintf("%s:%d", mediaType, tmdbID)

	s.mu.Lock()
	already := s.seen[key]
	s.mu.Unlock()
	if already {
		return forwardSkipped
	}

	_, err := s.requester.RequestItem(ctx, mediaType, tmdbID)
	if err != nil {
		// The media server answers 409 for items someone already requested.
		// That is the outcome we wanted, so count it as seen.
		if status, ok := domain.StatusCode(err); !ok || status != http.StatusConflict {
			log.Printf("Failed to request %s %d: %v", mediaType, tmdbID, err)
			return forwardFailed
		}
	}

	s.mu.Lock()
	s.seen[key] = true
	s.mu.Unlock()
	return forwardSent
}

// TokenRefresher proactively refreshes the tracker token so scheduled syncs
// never start with an expired one.
type TokenRefresher struct {
	manager *token.Manager
	store   token.CredentialStore
}

func NewTokenRefresher(manager *token.Manager, store token.CredentialStore) *TokenRefresher {
	return &TokenRefresher{manager: manager, store: store}
}

// Refresh checks the stored credentials and refreshes them when they are
// inside the refresh window. An integration that was never connected is not
// an error for a background job, just a log line.
func (r *TokenRefresher) Refresh(ctx context.Context) error {
	_, err := r.manager.EnsureValid(ctx, r.store)
	if err != nil {
		if errors.Is(err, domain.ErrNotConnected) {
			log.Printf("Token refresh skipped: integration not connected")
			return nil
		}
		return fmt.Errorf("refreshing token: %w", err)
	}
	return nil
}
