// Package view derives ordered, year-bucketed projections of the catalog.
//
// Two entry points exist. BuildView orders a full slice in memory and
// computes the jump-to-year index. Pager reads one page at a time from the
// store's ordered accessor and never materializes the full set. For the same
// store contents both produce the same sequence:
//
//	YearAsc         year, then PublishedAt, then ID
//	ScoreAsc/Desc   score, then ID ascending
//	PopularityAsc/Desc popularity, then ID ascending
package view

import (
	"sort"
	"strings"

	"github.com/mmcdole/mangashelf/internal/domain"
)

// View is an ordered projection with a year -> first position index.
// YearIndex is only populated for year order.
type View struct {
	Sort      domain.SortType
	Ordered   []domain.MangaWithYear
	YearIndex map[int]int
}

// BuildView orders items by sortType. The input slice is not modified.
func BuildView(items []domain.Manga, sortType domain.SortType) View {
	sortType = sortType.Normalize()

	ordered := make([]domain.MangaWithYear, len(items))
	for i, m := range items {
		ordered[i] = domain.NewMangaWithYear(m)
	}
	sort.SliceStable(ordered, func(i, j int) bool {
		return less(sortType, ordered[i], ordered[j])
	})

	v := View{Sort: sortType, Ordered: ordered, YearIndex: map[int]int{}}
	if sortType == domain.SortYearAsc {
		for i, item := range ordered {
			if _, ok := v.YearIndex[item.Year]; !ok {
				v.YearIndex[item.Year] = i
			}
		}
	}
	return v
}

func less(sortType domain.SortType, a, b domain.MangaWithYear) bool {
	switch sortType {
	case domain.SortScoreAsc:
		if a.Manga.Score != b.Manga.Score {
			return a.Manga.Score < b.Manga.Score
		}
	case domain.SortScoreDesc:
		if a.Manga.Score != b.Manga.Score {
			return a.Manga.Score > b.Manga.Score
		}
	case domain.SortPopularityAsc:
		if a.Manga.Popularity != b.Manga.Popularity {
			return a.Manga.Popularity < b.Manga.Popularity
		}
	case domain.SortPopularityDesc:
		if a.Manga.Popularity != b.Manga.Popularity {
			return a.Manga.Popularity > b.Manga.Popularity
		}
	default:
		if a.Year != b.Year {
			return a.Year < b.Year
		}
		if a.Manga.PublishedAt != b.Manga.PublishedAt {
			return a.Manga.PublishedAt < b.Manga.PublishedAt
		}
	}
	return a.Manga.ID < b.Manga.ID
}

// Years returns the distinct years of v in order of first appearance.
func (v View) Years() []int {
	seen := make(map[int]bool)
	var years []int
	for _, item := range v.Ordered {
		if !seen[item.Year] {
			seen[item.Year] = true
			years = append(years, item.Year)
		}
	}
	return years
}

// FirstIndexForYear returns the position where year starts, if present.
func (v View) FirstIndexForYear(year int) (int, bool) {
	if v.Sort == domain.SortYearAsc {
		i, ok := v.YearIndex[year]
		return i, ok
	}
	return FindFirstIndexForYear(v.Ordered, year)
}

// FindFirstIndexForYear scans a loaded slice, for callers that only hold
// some pages rather than a full View.
func FindFirstIndexForYear(items []domain.MangaWithYear, year int) (int, bool) {
	for i, item := range items {
		if item.Year == year {
			return i, true
		}
	}
	return 0, false
}

// Filter narrows a view. Zero value keeps everything.
type Filter struct {
	Category      string // case-insensitive exact match
	FavoritesOnly bool
	UnreadOnly    bool
}

func (f Filter) IsZero() bool {
	return f == Filter{}
}

func (f Filter) keep(m domain.Manga) bool {
	if f.FavoritesOnly && !m.IsFavorite {
		return false
	}
	if f.UnreadOnly && m.IsRead {
		return false
	}
	if f.Category != "" && !strings.EqualFold(strings.TrimSpace(m.Category), strings.TrimSpace(f.Category)) {
		return false
	}
	return true
}

// Apply returns a new View holding only matching items, order preserved and
// YearIndex recomputed against the new positions.
func (v View) Apply(f Filter) View {
	if f.IsZero() {
		return v
	}
	out := View{Sort: v.Sort, YearIndex: map[int]int{}}
	for _, item := range v.Ordered {
		if !f.keep(item.Manga) {
			continue
		}
		if v.Sort == domain.SortYearAsc {
			if _, ok := out.YearIndex[item.Year]; !ok {
				out.YearIndex[item.Year] = len(out.Ordered)
			}
		}
		out.Ordered = append(out.Ordered, item)
	}
	return out
}

// Categories returns the distinct categories in v, sorted.
func (v View) Categories() []string {
	seen := make(map[string]bool)
	var out []string
	for _, item := range v.Ordered {
		c := strings.TrimSpace(item.Manga.Category)
		if c == "" || seen[c] {
			continue
		}
		seen[c] = true
		out = append(out, c)
	}
	sort.Strings(out)
	return out
}
