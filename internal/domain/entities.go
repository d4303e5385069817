package domain

import (
	"fmt"
	"strings"
	"time"
)

// Manga is a catalog record. Remote-sourced fields are overwritten on every
// successful sync; IsFavorite and IsRead are owned locally.
type Manga struct {
	ID          string  `json:"id"`
	ImageURL    string  `json:"image"`
	Title       string  `json:"title"`
	Category    string  `json:"category"`
	Score       float64 `json:"score"`
	Popularity  int     `json:"popularity"`
	PublishedAt int64   `json:"publishedChapterDate"` // Unix seconds

	// Local flags
	IsFavorite bool `json:"isFavorite"`
	IsRead     bool `json:"isRead"`
}

// Year returns the calendar year of PublishedAt in UTC.
func (m Manga) Year() int {
	return YearOf(m.PublishedAt)
}

// Published returns PublishedAt as a time in UTC.
func (m Manga) Published() time.Time {
	return time.Unix(m.PublishedAt, 0).UTC()
}

// WithFlagsFrom returns m carrying the local flags of prev.
func (m Manga) WithFlagsFrom(prev Manga) Manga {
	m.IsFavorite = prev.IsFavorite
	m.IsRead = prev.IsRead
	return m
}

// FormattedScore returns the score with one decimal place
func (m Manga) FormattedScore() string {
	return fmt.Sprintf("%.1f", m.Score)
}

// YearOf converts Unix seconds to a calendar year. UTC is used so the
// same record lands in the same bucket on every machine.
func YearOf(unixSeconds int64) int {
	return time.Unix(unixSeconds, 0).UTC().Year()
}

// MangaWithYear pairs a record with its derived year.
type MangaWithYear struct {
	Manga Manga
	Year  int
}

// NewMangaWithYear derives the year once for m.
func NewMangaWithYear(m Manga) MangaWithYear {
	return MangaWithYear{Manga: m, Year: m.Year()}
}

// SortType selects the ordering of a view.
type SortType int

const (
	SortNone SortType = iota // same order as SortYearAsc
	SortYearAsc
	SortScoreAsc
	SortScoreDesc
	SortPopularityAsc
	SortPopularityDesc
)

// SortTypes lists the selectable orders in display order.
func SortTypes() []SortType {
	return []SortType{SortYearAsc, SortScoreAsc, SortScoreDesc, SortPopularityAsc, SortPopularityDesc}
}

// Normalize folds SortNone and any value outside the enum into SortYearAsc.
func (s SortType) Normalize() SortType {
	switch s {
	case SortYearAsc, SortScoreAsc, SortScoreDesc, SortPopularityAsc, SortPopularityDesc:
		return s
	default:
		return SortYearAsc
	}
}

// Next cycles through SortTypes.
func (s SortType) Next() SortType {
	types := SortTypes()
	for i, t := range types {
		if t == s.Normalize() {
			return types[(i+1)%len(types)]
		}
	}
	return SortYearAsc
}

func (s SortType) String() string {
	switch s {
	case SortNone:
		return "none"
	case SortYearAsc:
		return "year_asc"
	case SortScoreAsc:
		return "score_asc"
	case SortScoreDesc:
		return "score_desc"
	case SortPopularityAsc:
		return "popularity_asc"
	case SortPopularityDesc:
		return "popularity_desc"
	default:
		return fmt.Sprintf("sort(%d)", int(s))
	}
}

// Label is the human readable name shown in the browser
func (s SortType) Label() string {
	switch s.Normalize() {
	case SortScoreAsc:
		return "Score ↑"
	case SortScoreDesc:
		return "Score ↓"
	case SortPopularityAsc:
		return "Popularity ↑"
	case SortPopularityDesc:
		return "Popularity ↓"
	default:
		return "Year"
	}
}

// ParseSortType parses the String form. Unknown values fall back to SortYearAsc.
func ParseSortType(s string) (SortType, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "none", "year_asc", "year":
		return SortYearAsc, nil
	case "score_asc":
		return SortScoreAsc, nil
	case "score_desc", "score":
		return SortScoreDesc, nil
	case "popularity_asc":
		return SortPopularityAsc, nil
	case "popularity_desc", "popularity":
		return SortPopularityDesc, nil
	default:
		return SortYearAsc, fmt.Errorf("unknown sort type %q", s)
	}
}
