package library

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/mmcdole/mangashelf/internal/domain"
	"golang.org/x/sync/singleflight"
)

const syncKey = "sync"

// Commands provides operations that hit the network or write the store.
// Implements domain.LibraryCommands.
type Commands struct {
	repo   domain.CatalogRepository
	store  domain.Store
	logger *slog.Logger
	group  singleflight.Group
}

var _ domain.LibraryCommands = (*Commands)(nil)

// NewCommands creates a new Commands instance.
func NewCommands(repo domain.CatalogRepository, store domain.Store, logger *slog.Logger) *Commands {
	if logger == nil {
		logger = slog.Default()
	}
	return &Commands{repo: repo, store: store, logger: logger}
}

// Sync fetches the remote catalog and merges it into the store, keeping the
// local flags of records already cached. At most one sync runs at a time;
// callers arriving while one is in flight receive its outcome.
//
// A caller whose ctx ends early gets an outcome classified from the cache
// while the shared sync carries on for the others.
func (c *Commands) Sync(ctx context.Context) domain.FetchOutcome {
	ch := c.group.DoChan(syncKey, func() (any, error) {
		return c.sync(context.WithoutCancel(ctx)), nil
	})

	select {
	case res := <-ch:
		if res.Shared {
			c.logger.Debug("joined in-flight sync")
		}
		return res.Val.(domain.FetchOutcome)
	case <-ctx.Done():
		cached, err := c.store.Count()
		if err != nil {
			cached = 0
		}
		return classifyFailure(cached, ctx.Err())
	}
}

func (c *Commands) sync(ctx context.Context) domain.FetchOutcome {
	// 1. Snapshot before the network call
	cached, err := c.store.GetAll()
	if err != nil {
		// Without the snapshot the merge would reset every local flag
		c.logger.Error("failed to read cache", "error", err)
		count, cerr := c.store.Count()
		if cerr != nil {
			return c.logOutcome(domain.Error{Message: fmt.Sprintf("read cache: %v", err)})
		}
		return c.logOutcome(classifyFailure(count, fmt.Errorf("read cache: %w", err)))
	}
	byID := make(map[string]domain.Manga, len(cached))
	for _, m := range cached {
		byID[m.ID] = m
	}

	// 2. Fetch
	fetched, err := c.repo.FetchAll(ctx)
	if err != nil {
		c.logger.Warn("catalog fetch failed", "error", err, "cached", len(cached))
		return c.logOutcome(classifyFailure(len(cached), err))
	}
	if len(fetched) == 0 {
		c.logger.Warn("catalog fetch returned no records", "cached", len(cached))
		return c.logOutcome(classifyFailure(len(cached), domain.ErrEmptyResponse))
	}

	// 3. Merge local flags and apply as one batch
	merged := make([]domain.Manga, len(fetched))
	inserted := 0
	for i, remote := range fetched {
		if prev, ok := byID[remote.ID]; ok {
			merged[i] = remote.WithFlagsFrom(prev)
			continue
		}
		remote.IsFavorite = false
		remote.IsRead = false
		merged[i] = remote
		inserted++
	}

	if err := c.store.UpsertMany(merged); err != nil {
		c.logger.Error("failed to save catalog", "error", err, "count", len(merged))
		return c.logOutcome(classifyFailure(len(cached), err))
	}

	return c.logOutcome(domain.Success{Fetched: len(fetched), Inserted: inserted})
}

func (c *Commands) logOutcome(o domain.FetchOutcome) domain.FetchOutcome {
	switch v := o.(type) {
	case domain.Success:
		c.logger.Info("sync complete", "fetched", v.Fetched, "inserted", v.Inserted)
	case domain.DatabaseOnly:
		c.logger.Info("sync fell back to cache", "cached", v.Cached, "reason", v.Reason)
	case domain.NetworkError:
		c.logger.Error("sync failed: offline with empty cache")
	case domain.Error:
		c.logger.Error("sync failed", "error", v.Message)
	}
	return o
}

// classifyFailure turns a failed or unusable fetch into an outcome. Any
// cached data wins over reporting the error.
func classifyFailure(cached int, err error) domain.FetchOutcome {
	if cached > 0 {
		return domain.DatabaseOnly{Cached: cached, Reason: err.Error()}
	}
	if errors.Is(err, domain.ErrOffline) ||
		errors.Is(err, context.Canceled) ||
		errors.Is(err, context.DeadlineExceeded) {
		return domain.NetworkError{}
	}
	return domain.Error{Message: err.Error()}
}

// ToggleFavorite flips IsFavorite on the stored record.
func (c *Commands) ToggleFavorite(id string) (domain.Manga, error) {
	return c.toggle(id, "favorite", func(m *domain.Manga) { m.IsFavorite = !m.IsFavorite })
}

// ToggleRead flips IsRead on the stored record.
func (c *Commands) ToggleRead(id string) (domain.Manga, error) {
	return c.toggle(id, "read", func(m *domain.Manga) { m.IsRead = !m.IsRead })
}

func (c *Commands) toggle(id, flag string, fn func(*domain.Manga)) (domain.Manga, error) {
	m, err := c.store.Modify(id, fn)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			// Callers only toggle ids they were shown
			c.logger.Error("toggle on unknown id", "id", id, "flag", flag)
		} else {
			c.logger.Error("failed to toggle", "error", err, "id", id, "flag", flag)
		}
		return domain.Manga{}, fmt.Errorf("toggle %s %q: %w", flag, id, err)
	}
	c.logger.Debug("toggled", "id", id, "flag", flag, "favorite", m.IsFavorite, "read", m.IsRead)
	return m, nil
}
