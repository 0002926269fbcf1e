// Package poll serves post pages through the cache and keeps cached pages fresh.
package poll

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"froidapi/parser"
	"froidapi/pkg/froid"
	"froidapi/scraper"
	"froidapi/storage"

	"github.com/google/go-cmp/cmp"
)

// Scraper fetches post pages from the site.
type Scraper interface {
	Post(ctx context.Context, id int) (*froid.PostDownloadPage, error)
}

// Store interface for cached post persistence.
type Store interface {
	SavePost(ctx context.Context, post *froid.CachedPost) error
	LoadPost(ctx context.Context, id int) (*froid.CachedPost, error)
	DeletePost(ctx context.Context, id int) error
	List(ctx context.Context) ([]*froid.CachedPost, error)
}

// Monitor handles cache reads and refresh polling.
type Monitor struct {
	scraper Scraper
	store   Store
	logger  *slog.Logger
	ttl     time.Duration
	now     func() time.Time
}

// New creates a new poll monitor. Cached pages younger than ttl are served
// without contacting the site; a zero ttl disables read caching.
func New(scraper Scraper, store Store, ttl time.Duration, logger *slog.Logger) *Monitor {
	return &Monitor{
		scraper: scraper,
		store:   store,
		logger:  logger,
		ttl:     ttl,
		now:     time.Now,
	}
}

// Post returns a post page, from the cache when fresh enough.
func (m *Monitor) Post(ctx context.Context, id int) (*froid.PostDownloadPage, error) {
	cached, err := m.store.LoadPost(ctx, id)
	switch {
	case err == nil && m.ttl > 0 && m.now().Sub(cached.FetchedAt) < m.ttl:
		m.logger.Debug("Serving cached post", "post_id", id, "fetched_at", cached.FetchedAt.Format(time.RFC3339))
		return cached.Page, nil
	case err != nil && !storage.IsNotFound(err):
		m.logger.Warn("Failed to load cached post, fetching", "post_id", id, "error", err)
		cached = nil
	case err != nil:
		cached = nil
	}

	fresh, err := m.refresh(ctx, id, cached)
	if err != nil {
		return nil, err
	}
	return fresh.Page, nil
}

// refresh scrapes a post and stores the snapshot. A post gone from the site
// is dropped from the cache.
func (m *Monitor) refresh(ctx context.Context, id int, previous *froid.CachedPost) (*froid.CachedPost, error) {
	page, err := m.scraper.Post(ctx, id)
	if err != nil {
		if parser.IsNotFound(err) || scraper.IsNotFound(err) {
			if previous != nil {
				if delErr := m.store.DeletePost(ctx, id); delErr != nil {
					m.logger.Warn("Failed to drop vanished post from cache", "post_id", id, "error", delErr)
				}
			}
		}
		return nil, err
	}

	now := m.now()
	snapshot := &froid.CachedPost{FetchedAt: now, ChangedAt: now, Page: page}
	if previous != nil && cmp.Equal(previous.Page, page) {
		snapshot.ChangedAt = previous.ChangedAt
	}

	if err := m.store.SavePost(ctx, snapshot); err != nil {
		// The page itself is good; a cache miss next time is acceptable.
		m.logger.Warn("Failed to cache post", "post_id", id, "error", err)
	}
	return snapshot, nil
}

// CheckAll re-scrapes every cached post that is due for a refresh.
func (m *Monitor) CheckAll(ctx context.Context) error {
	posts, err := m.store.List(ctx)
	if err != nil {
		return fmt.Errorf("list cached posts: %w", err)
	}

	now := m.now()
	m.logger.Info("Checking cached posts", "count", len(posts), "timestamp", now.Format(time.RFC3339))

	var refreshed, skipped, failed int
	for _, post := range posts {
		select {
		case <-ctx.Done():
			m.logger.Info("Context cancelled, stopping poll check", "error", ctx.Err())
			return ctx.Err()
		default:
		}

		id := post.Page.PostID
		interval, reason := CalculateInterval(post.ChangedAt, post.FetchedAt, now)
		if now.Sub(post.FetchedAt) < interval {
			m.logger.Debug("Skipping post (not due for refresh)",
				"post_id", id,
				"fetched_at", post.FetchedAt.Format(time.RFC3339),
				"next_refresh", post.FetchedAt.Add(interval).Format(time.RFC3339),
				"reason", reason)
			skipped++
			continue
		}

		fresh, err := m.refresh(ctx, id, post)
		if err != nil {
			m.logger.Warn("Post refresh failed", "post_id", id, "error", err)
			failed++
			continue
		}
		refreshed++
		if fresh.ChangedAt.Equal(now) {
			m.logger.Info("Cached post changed", "post_id", id, "title", fresh.Page.Title)
		}
	}

	m.logger.Info("Cache check completed",
		"total_posts", len(posts),
		"refreshed", refreshed,
		"skipped", skipped,
		"failed", failed)

	return nil
}

// CalculateInterval decides how long a cached post may go without a refresh.
// Pages that changed recently are refreshed more often.
func CalculateInterval(changedAt, fetchedAt, now time.Time) (time.Duration, string) {
	if fetchedAt.IsZero() || changedAt.IsZero() {
		return 0, "never fetched"
	}

	sinceChange := now.Sub(changedAt)
	switch {
	case sinceChange < 24*time.Hour:
		return time.Hour, "changed within a day"
	case sinceChange < 7*24*time.Hour:
		return 6 * time.Hour, "changed within a week"
	case sinceChange < 30*24*time.Hour:
		return 24 * time.Hour, "changed within a month"
	default:
		return 72 * time.Hour, "stable"
	}
}
