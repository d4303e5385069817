package domain

import "context"

// CatalogRepository fetches the full remote catalog in one call.
// Implementations enforce their own timeouts.
type CatalogRepository interface {
	FetchAll(ctx context.Context) ([]Manga, error)
}
