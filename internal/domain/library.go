package domain

import "context"

// MangaState is one observation of a single row.
// Found is false when the row does not exist.
type MangaState struct {
	Manga Manga
	Found bool
}

// LibraryQueries: reads served from the local store only. NEVER block on network.
type LibraryQueries interface {
	GetByID(id string) (Manga, bool, error)
	GetFavorites() ([]Manga, error)
	WatchManga(ctx context.Context, id string) <-chan MangaState
	WatchFavorites(ctx context.Context) <-chan []Manga
}

// LibraryCommands: operations that may hit network or write the store.
// Must be called from tea.Cmd functions, never from View().
type LibraryCommands interface {
	Sync(ctx context.Context) FetchOutcome
	ToggleFavorite(id string) (Manga, error)
	ToggleRead(id string) (Manga, error)
}
