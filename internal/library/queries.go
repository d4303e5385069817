package library

import (
	"context"
	"log/slog"
	"slices"

	"github.com/mmcdole/mangashelf/internal/domain"
)

// Queries provides store-only reads and live watches. Never touches network.
// Implements domain.LibraryQueries.
type Queries struct {
	store  domain.Store
	logger *slog.Logger
}

var _ domain.LibraryQueries = (*Queries)(nil)

// NewQueries creates a new Queries instance.
func NewQueries(store domain.Store, logger *slog.Logger) *Queries {
	if logger == nil {
		logger = slog.Default()
	}
	return &Queries{store: store, logger: logger}
}

func (q *Queries) GetByID(id string) (domain.Manga, bool, error) {
	return q.store.GetByID(id)
}

func (q *Queries) GetFavorites() ([]domain.Manga, error) {
	return q.store.GetFavorites()
}

// WatchManga emits the current state of id, then a new state after every
// committed change to it. The channel closes when ctx ends.
func (q *Queries) WatchManga(ctx context.Context, id string) <-chan domain.MangaState {
	return watch(ctx, q.store, q.logger, []string{id},
		func() (domain.MangaState, error) {
			m, ok, err := q.store.GetByID(id)
			return domain.MangaState{Manga: m, Found: ok}, err
		},
		func(a, b domain.MangaState) bool { return a == b },
	)
}

// WatchFavorites emits the favorites list now and after every change to it.
func (q *Queries) WatchFavorites(ctx context.Context) <-chan []domain.Manga {
	return watch(ctx, q.store, q.logger, nil, q.store.GetFavorites,
		func(a, b []domain.Manga) bool { return slices.Equal(a, b) },
	)
}

// watch re-reads on every store signal and forwards values that differ from
// the last one sent. Read errors are logged and skipped.
func watch[T any](
	ctx context.Context,
	store domain.Store,
	logger *slog.Logger,
	ids []string,
	read func() (T, error),
	equal func(a, b T) bool,
) <-chan T {
	out := make(chan T, 1)
	signals, cancel := store.Subscribe(ids...)

	go func() {
		defer close(out)
		defer cancel()

		var last T
		sent := false
		for {
			v, err := read()
			if err != nil {
				logger.Error("watch read failed", "error", err, "ids", ids)
			} else if !sent || !equal(last, v) {
				select {
				case out <- v:
					last, sent = v, true
				case <-ctx.Done():
					return
				}
			}

			select {
			case _, ok := <-signals:
				if !ok {
					return
				}
			case <-ctx.Done():
				return
			}
		}
	}()

	return out
}
