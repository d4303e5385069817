package search

import (
	"log/slog"
	"sort"
	"strings"
	"sync"

	"github.com/lithammer/fuzzysearch/fuzzy"
	"github.com/mmcdole/mangashelf/internal/domain"
	sfuzzy "github.com/sahilm/fuzzy"
)

// Result is one title match with positions for highlighting.
type Result struct {
	Item           domain.MangaWithYear
	MatchedIndexes []int // Positions in the lowercased title
	Score          int   // Higher is better
	Typo           bool  // Matched by edit distance rather than subsequence
}

// TitleIndex implements sahilm/fuzzy.Source over a loaded view.
type TitleIndex struct {
	items       []domain.MangaWithYear
	lowerTitles []string // Pre-computed lowercase titles
}

// NewTitleIndex builds an index over items, keeping their order.
func NewTitleIndex(items []domain.MangaWithYear) *TitleIndex {
	idx := &TitleIndex{
		items:       items,
		lowerTitles: make([]string, len(items)),
	}
	for i, item := range items {
		idx.lowerTitles[i] = strings.ToLower(item.Manga.Title)
	}
	return idx
}

// String returns the lowercase title at index i (implements fuzzy.Source)
func (idx *TitleIndex) String(i int) string { return idx.lowerTitles[i] }

// Len returns the number of items (implements fuzzy.Source)
func (idx *TitleIndex) Len() int { return len(idx.items) }

// Service filters the browsed catalog by title.
type Service struct {
	logger *slog.Logger

	mu    sync.RWMutex
	index *TitleIndex
}

// NewService creates a new search service
func NewService(logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{logger: logger, index: &TitleIndex{}}
}

// Index replaces the searchable set.
func (s *Service) Index(items []domain.MangaWithYear) {
	idx := NewTitleIndex(items)

	s.mu.Lock()
	s.index = idx
	s.mu.Unlock()

	s.logger.Debug("indexed titles", "count", idx.Len())
}

// Len returns the number of indexed titles.
func (s *Service) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.index.Len()
}

// Filter matches query against the indexed titles. Subsequence matches come
// first, best score first. When nothing matches that way, titles within a
// small edit distance of the query are returned instead.
func (s *Service) Filter(query string) []Result {
	s.mu.RLock()
	idx := s.index
	s.mu.RUnlock()

	results := Titles(idx, query)
	s.logger.Debug("title filter", "query", query, "results", len(results))
	return results
}

// Titles runs the title match against idx.
func Titles(idx *TitleIndex, query string) []Result {
	query = strings.ToLower(strings.TrimSpace(query))
	if query == "" || idx.Len() == 0 {
		return nil
	}

	matches := sfuzzy.FindFrom(query, idx)
	if len(matches) > 0 {
		results := make([]Result, len(matches))
		for i, m := range matches {
			results[i] = Result{
				Item:           idx.items[m.Index],
				MatchedIndexes: m.MatchedIndexes,
				Score:          m.Score,
			}
		}
		return results
	}

	return typoMatches(idx, query)
}

// typoMatches compares each query word against the title's words and keeps
// titles where every query word is within allowedTypos of some title word.
func typoMatches(idx *TitleIndex, query string) []Result {
	queryWords := strings.Fields(query)

	var results []Result
	for i, title := range idx.lowerTitles {
		titleWords := strings.Fields(title)
		total := 0
		ok := true
		for _, qw := range queryWords {
			best := -1
			for _, tw := range titleWords {
				d := fuzzy.LevenshteinDistance(qw, tw)
				if best < 0 || d < best {
					best = d
				}
			}
			if best < 0 || best > allowedTypos(len([]rune(qw))) {
				ok = false
				break
			}
			total += best
		}
		if !ok {
			continue
		}
		results = append(results, Result{Item: idx.items[i], Score: -total, Typo: true})
	}

	sort.SliceStable(results, func(a, b int) bool {
		return results[a].Score > results[b].Score
	})
	return results
}

// allowedTypos returns the edit distance tolerated for a word of length n.
// 1-3 chars = 0, 4-6 chars = 1, 7+ chars = 2
func allowedTypos(n int) int {
	switch {
	case n <= 3:
		return 0
	case n <= 6:
		return 1
	default:
		return 2
	}
}

// Categories suggests categories matching query, closest first. An empty
// query returns all categories unchanged.
func Categories(categories []string, query string) []string {
	query = strings.TrimSpace(query)
	if query == "" {
		return categories
	}

	ranks := fuzzy.RankFindFold(query, categories)
	sort.Stable(ranks)

	out := make([]string, len(ranks))
	for i, r := range ranks {
		out[i] = r.Target
	}
	return out
}
