package view

import (
	"fmt"
	"math"

	"github.com/mmcdole/mangashelf/internal/domain"
)

const (
	// DefaultPageSize is the number of rows per page
	DefaultPageSize = 20

	// DefaultPrefetchDistance is how close to the end of the loaded rows a
	// reader gets before the next page is requested
	DefaultPrefetchDistance = 3
)

// PageReader is the ordered accessor a Pager reads from.
type PageReader interface {
	GetPage(sort domain.SortType, limit, offset int) ([]domain.Manga, error)
}

// Page is one slice of an ordered view.
type Page struct {
	Items   []domain.MangaWithYear
	Offset  int
	HasMore bool
}

// NextOffset is the offset of the page after this one.
func (p Page) NextOffset() int {
	return p.Offset + len(p.Items)
}

// Pager serves pages straight from the store. It holds no state between
// calls, so concurrent use is safe.
type Pager struct {
	reader PageReader
}

// NewPager creates a pager over reader.
func NewPager(reader PageReader) *Pager {
	return &Pager{reader: reader}
}

// Page returns up to limit items starting at offset. HasMore is false only
// when no row exists past this page.
func (p *Pager) Page(sortType domain.SortType, limit, offset int) (Page, error) {
	if limit <= 0 {
		return Page{}, fmt.Errorf("page limit must be positive, got %d", limit)
	}
	if offset < 0 {
		offset = 0
	}
	if limit == math.MaxInt {
		limit--
	}

	// One extra row answers HasMore without a count query
	rows, err := p.reader.GetPage(sortType.Normalize(), limit+1, offset)
	if err != nil {
		return Page{}, fmt.Errorf("load page: %w", err)
	}

	page := Page{Offset: offset, HasMore: len(rows) > limit}
	if page.HasMore {
		rows = rows[:limit]
	}
	page.Items = make([]domain.MangaWithYear, len(rows))
	for i, m := range rows {
		page.Items[i] = domain.NewMangaWithYear(m)
	}
	return page, nil
}

// NeedsPrefetch reports whether a reader positioned at index within loaded
// rows should request the next page.
func NeedsPrefetch(index, loaded, distance int, hasMore bool) bool {
	if !hasMore {
		return false
	}
	if distance < 0 {
		distance = 0
	}
	return index >= loaded-1-distance
}
