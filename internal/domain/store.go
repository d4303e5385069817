package domain

// Store holds the local copy of the catalog keyed by ID.
// Every mutation commits atomically and then notifies subscribers.
type Store interface {
	// UpsertMany inserts or fully replaces each row. It applies the whole
	// batch in one transaction; it does not merge local flags.
	UpsertMany(items []Manga) error

	// Update replaces an existing row. Returns ErrNotFound if the ID is absent.
	Update(item Manga) error

	// Modify applies fn to an existing row inside a single transaction and
	// returns the stored result. Returns ErrNotFound if the ID is absent.
	Modify(id string, fn func(*Manga)) (Manga, error)

	// GetAll returns every row ordered by PublishedAt ascending, then ID.
	GetAll() ([]Manga, error)

	// GetByID returns the row and whether it exists.
	GetByID(id string) (Manga, bool, error)

	// GetFavorites returns rows with IsFavorite set, in GetAll order.
	GetFavorites() ([]Manga, error)

	// GetPage returns at most limit rows in the given order starting at
	// offset. An offset past the end yields an empty slice.
	GetPage(sort SortType, limit, offset int) ([]Manga, error)

	// Count returns the number of rows.
	Count() (int, error)

	// Subscribe returns a channel signalled after each commit touching any
	// of ids (any row when ids is empty). Signals coalesce; the receiver
	// re-reads current state. The cancel func releases the subscription.
	Subscribe(ids ...string) (<-chan struct{}, func())

	Close() error
}
