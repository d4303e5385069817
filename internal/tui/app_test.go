package tui

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/mmcdole/mangashelf/internal/domain"
	"github.com/mmcdole/mangashelf/internal/library"
	"github.com/mmcdole/mangashelf/internal/log"
	"github.com/mmcdole/mangashelf/internal/search"
	"github.com/mmcdole/mangashelf/internal/store"
	"github.com/mmcdole/mangashelf/internal/view"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type offlineRepo struct{}

func (offlineRepo) FetchAll(context.Context) ([]domain.Manga, error) {
	return nil, domain.ErrOffline
}

// catalog returns n titles published one month apart starting January 2015.
func catalog(n int) []domain.Manga {
	base := time.Date(2015, time.January, 1, 0, 0, 0, 0, time.UTC)
	out := make([]domain.Manga, n)
	for i := range out {
		out[i] = domain.Manga{
			ID:          fmt.Sprintf("m%03d", i),
			Title:       fmt.Sprintf("Title %03d", i),
			Category:    "Seinen",
			Score:       float64(i % 10),
			Popularity:  i,
			PublishedAt: base.AddDate(0, i, 0).Unix(),
		}
	}
	return out
}

func newTestModel(t *testing.T, seed []domain.Manga) (Model, domain.Store) {
	t.Helper()
	s, err := store.OpenBolt(filepath.Join(t.TempDir(), "library.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	if len(seed) > 0 {
		require.NoError(t, s.UpsertMany(seed))
	}

	logger := log.NullLogger()
	lib := library.NewService(offlineRepo{}, s, logger)
	m := NewModel(lib, search.NewService(logger), Options{PageSize: 10, PrefetchDistance: 2}, logger)
	t.Cleanup(m.Close)

	m, _ = update(t, m, tea.WindowSizeMsg{Width: 100, Height: 12})
	m, _ = update(t, m, run(t, LoadPageCmd(m.Lib, m.Sort, m.opts.PageSize, 0)))
	return m, s
}

func update(t *testing.T, m Model, msg tea.Msg) (Model, tea.Cmd) {
	t.Helper()
	next, cmd := m.Update(msg)
	return next.(Model), cmd
}

func run(t *testing.T, cmd tea.Cmd) tea.Msg {
	t.Helper()
	require.NotNil(t, cmd)
	return cmd()
}

func runes(s string) tea.KeyMsg {
	return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s)}
}

func itemIDs(items []domain.MangaWithYear) []string {
	ids := make([]string, len(items))
	for i, it := range items {
		ids[i] = it.Manga.ID
	}
	return ids
}

func TestFirstPageLoads(t *testing.T) {
	m, _ := newTestModel(t, catalog(25))

	assert.Len(t, m.Items, 10)
	assert.True(t, m.HasMore)
	assert.False(t, m.PageLoading)
	assert.Equal(t, "m000", m.Items[0].Manga.ID)
	assert.Contains(t, m.View(), "Title 000")
	assert.Contains(t, m.View(), "Sort: Year")
}

func TestPageLoadedAppendsAndIgnoresStale(t *testing.T) {
	m, _ := newTestModel(t, catalog(25))

	// Wrong sort
	m, _ = update(t, m, PageLoadedMsg{Sort: domain.SortScoreDesc, Page: view.Page{
		Items: m.Items[:1], Offset: 10, HasMore: true,
	}})
	assert.Len(t, m.Items, 10)

	// Offset does not continue the loaded rows
	m, _ = update(t, m, PageLoadedMsg{Sort: m.Sort, Page: view.Page{
		Items: m.Items[:1], Offset: 15, HasMore: true,
	}})
	assert.Len(t, m.Items, 10)

	m, _ = update(t, m, run(t, LoadPageCmd(m.Lib, m.Sort, 10, 10)))
	assert.Len(t, m.Items, 20)
	assert.True(t, m.HasMore)

	m, _ = update(t, m, run(t, LoadPageCmd(m.Lib, m.Sort, 10, 20)))
	require.Len(t, m.Items, 25)
	assert.False(t, m.HasMore)

	for i, it := range m.Items {
		assert.Equal(t, fmt.Sprintf("m%03d", i), it.Manga.ID)
	}
}

func TestSyncDoneOutcomes(t *testing.T) {
	t.Run("database only marks offline", func(t *testing.T) {
		m, _ := newTestModel(t, catalog(5))
		m, cmd := update(t, m, SyncDoneMsg{Outcome: domain.DatabaseOnly{Cached: 5, Reason: "offline"}})

		assert.False(t, m.IsLoading)
		assert.True(t, m.IsOffline)
		assert.Empty(t, m.Err)
		assert.NotNil(t, cmd)
		assert.Contains(t, m.View(), "offline")
	})

	t.Run("network error with nothing cached", func(t *testing.T) {
		m, _ := newTestModel(t, nil)
		m, _ = update(t, m, SyncDoneMsg{Outcome: domain.NetworkError{}})

		assert.Equal(t, domain.OutcomeMessage(domain.NetworkError{}), m.Err)
		assert.Contains(t, m.View(), "Press r to retry")
	})

	t.Run("error with rows on screen goes to status", func(t *testing.T) {
		m, _ := newTestModel(t, catalog(5))
		m, _ = update(t, m, SyncDoneMsg{Outcome: domain.Error{Message: "unexpected status code: 500"}})

		assert.Empty(t, m.Err)
		assert.Equal(t, "unexpected status code: 500", m.StatusMsg)
		assert.True(t, m.StatusIsErr)
	})

	t.Run("success clears offline", func(t *testing.T) {
		m, _ := newTestModel(t, catalog(5))
		m.IsOffline = true
		m, _ = update(t, m, SyncDoneMsg{Outcome: domain.Success{Fetched: 5, Inserted: 2}})

		assert.False(t, m.IsOffline)
		assert.Equal(t, "Synced 5 titles (2 new)", m.StatusMsg)
	})
}

func TestSyncDoneReloadsLoadedRows(t *testing.T) {
	m, s := newTestModel(t, catalog(25))
	m, _ = update(t, m, run(t, LoadPageCmd(m.Lib, m.Sort, 10, 10)))
	require.Len(t, m.Items, 20)

	renamed := catalog(1)[0]
	renamed.Title = "Renamed"
	require.NoError(t, s.UpsertMany([]domain.Manga{renamed}))

	m, cmd := update(t, m, SyncDoneMsg{Outcome: domain.Success{Fetched: 25}})
	assert.True(t, m.PageLoading)

	// The reload is batched with the status timer; run it directly
	m, _ = update(t, m, run(t, LoadPageCmd(m.Lib, m.Sort, 20, 0)))
	require.NotNil(t, cmd)
	assert.Len(t, m.Items, 20)
	assert.Equal(t, "Renamed", m.Items[0].Manga.Title)
}

func TestSortKeyResetsAndReloads(t *testing.T) {
	m, _ := newTestModel(t, catalog(25))
	m, _ = update(t, m, tea.KeyMsg{Type: tea.KeyDown})
	m, _ = update(t, m, tea.KeyMsg{Type: tea.KeyDown})
	require.Equal(t, 2, m.Cursor)

	m, cmd := update(t, m, runes("s"))
	assert.Equal(t, domain.SortScoreAsc, m.Sort)
	assert.Empty(t, m.Items)
	assert.Equal(t, 0, m.Cursor)
	assert.True(t, m.PageLoading)

	msg := run(t, cmd)
	loaded, ok := msg.(PageLoadedMsg)
	require.True(t, ok)
	assert.Equal(t, domain.SortScoreAsc, loaded.Sort)

	m, _ = update(t, m, msg)
	require.Len(t, m.Items, 10)
	assert.Equal(t, 0.0, m.Items[0].Manga.Score)
	for i := 1; i < len(m.Items); i++ {
		assert.LessOrEqual(t, m.Items[i-1].Manga.Score, m.Items[i].Manga.Score)
	}
}

func TestPrefetchNearEndOfLoadedRows(t *testing.T) {
	m, _ := newTestModel(t, catalog(25))

	var cmd tea.Cmd
	for i := 0; i < 6; i++ {
		m, cmd = update(t, m, tea.KeyMsg{Type: tea.KeyDown})
		assert.Nil(t, cmd, "cursor %d", m.Cursor)
	}

	// Cursor 7 is within distance 2 of the last loaded row
	m, cmd = update(t, m, tea.KeyMsg{Type: tea.KeyDown})
	assert.Equal(t, 7, m.Cursor)
	assert.True(t, m.PageLoading)

	msg := run(t, cmd)
	loaded := msg.(PageLoadedMsg)
	assert.Equal(t, 10, loaded.Page.Offset)

	m, cmd = update(t, m, msg)
	assert.Len(t, m.Items, 20)
	assert.Nil(t, cmd)
	assert.Equal(t, 7, m.Cursor)
}

func TestNoPrefetchWhenExhausted(t *testing.T) {
	m, _ := newTestModel(t, catalog(4))
	require.False(t, m.HasMore)

	var cmd tea.Cmd
	for i := 0; i < 5; i++ {
		m, cmd = update(t, m, tea.KeyMsg{Type: tea.KeyDown})
		assert.Nil(t, cmd)
	}
	assert.Equal(t, 3, m.Cursor)
}

func TestToggleUpdatesRow(t *testing.T) {
	m, s := newTestModel(t, catalog(3))

	m, cmd := update(t, m, runes("f"))
	msg := run(t, cmd)
	toggled, ok := msg.(ToggledMsg)
	require.True(t, ok)
	assert.True(t, toggled.Manga.IsFavorite)

	m, _ = update(t, m, msg)
	assert.True(t, m.Items[0].Manga.IsFavorite)

	stored, found, err := s.GetByID("m000")
	require.NoError(t, err)
	require.True(t, found)
	assert.True(t, stored.IsFavorite)
}

func TestFavoritesView(t *testing.T) {
	m, _ := newTestModel(t, catalog(5))
	favs := catalog(5)[3:]
	for i := range favs {
		favs[i].IsFavorite = true
	}

	m, _ = update(t, m, FavoritesMsg{Items: favs})
	m, _ = update(t, m, runes("F"))
	require.True(t, m.FavoritesOnly)
	assert.Equal(t, []string{"m003", "m004"}, itemIDs(m.visible()))

	m, _ = update(t, m, tea.KeyMsg{Type: tea.KeyDown})
	m, _ = update(t, m, tea.KeyMsg{Type: tea.KeyDown})
	assert.Equal(t, 1, m.Cursor)

	// Losing a favorite clamps the cursor
	m, _ = update(t, m, FavoritesMsg{Items: favs[:1]})
	assert.Equal(t, 0, m.Cursor)
}

func TestDetailFollowsStore(t *testing.T) {
	m, _ := newTestModel(t, catalog(3))

	m, cmd := update(t, m, tea.KeyMsg{Type: tea.KeyEnter})
	assert.Equal(t, ModeDetail, m.Mode)
	assert.Equal(t, "m000", m.DetailID)

	msg := run(t, cmd)
	detail, ok := msg.(DetailMsg)
	require.True(t, ok)
	assert.True(t, detail.State.Found)
	assert.False(t, detail.State.Manga.IsRead)

	m, next := update(t, m, msg)
	assert.Contains(t, m.View(), "Title 000")

	m, cmd = update(t, m, runes("m"))
	m, _ = update(t, m, run(t, cmd))

	msg = run(t, next)
	detail = msg.(DetailMsg)
	assert.True(t, detail.State.Manga.IsRead)

	m, _ = update(t, m, msg)
	assert.True(t, m.Detail.Manga.IsRead)

	m, _ = update(t, m, tea.KeyMsg{Type: tea.KeyEsc})
	assert.Equal(t, ModeBrowse, m.Mode)
	assert.Empty(t, m.DetailID)

	// Emissions for a closed detail are dropped
	m, cmd = update(t, m, DetailMsg{ID: "m000", State: domain.MangaState{}})
	assert.Nil(t, cmd)
	assert.True(t, m.Detail.Manga.IsRead)
}

func TestJumpToYearLoadsUntilReached(t *testing.T) {
	m, _ := newTestModel(t, catalog(36))
	require.Len(t, m.Items, 10)

	m, _ = update(t, m, runes("y"))
	require.Equal(t, ModeJumpYear, m.Mode)
	m, _ = update(t, m, runes("2017"))
	m, cmd := update(t, m, tea.KeyMsg{Type: tea.KeyEnter})
	assert.Equal(t, ModeBrowse, m.Mode)

	msg := run(t, cmd)
	jump := msg.(YearJumpMsg)
	require.True(t, jump.Found)
	assert.Equal(t, 24, jump.Index)

	m, cmd = update(t, m, msg)
	assert.True(t, m.PageLoading)

	m, _ = update(t, m, run(t, cmd))
	assert.Len(t, m.Items, 30)
	assert.Equal(t, 24, m.Cursor)
	assert.Equal(t, 2017, m.Items[m.Cursor].Year)
	assert.GreaterOrEqual(t, m.Cursor, m.Offset)
	assert.Less(t, m.Cursor, m.Offset+m.listHeight())
}

func TestJumpToMissingYear(t *testing.T) {
	m, _ := newTestModel(t, catalog(12))

	m, _ = update(t, m, runes("y"))
	m, _ = update(t, m, runes("1999"))
	m, cmd := update(t, m, tea.KeyMsg{Type: tea.KeyEnter})
	m, _ = update(t, m, run(t, cmd))

	assert.Equal(t, "No titles from 1999", m.StatusMsg)
	assert.Equal(t, 0, m.Cursor)
}

func TestJumpPromptListsYears(t *testing.T) {
	m, _ := newTestModel(t, catalog(36))

	m, cmd := update(t, m, runes("y"))
	require.NotNil(t, cmd)
	assert.Nil(t, m.Years)

	m, _ = update(t, m, run(t, LoadYearsCmd(m.Lib, m.Sort)))
	assert.Equal(t, []int{2015, 2016, 2017}, m.Years)

	footer := m.renderFooter()
	for _, year := range []string{"2015", "2016", "2017"} {
		assert.Contains(t, footer, year)
	}

	// A stale order's years are dropped
	m, _ = update(t, m, YearsMsg{Sort: domain.SortScoreDesc, Years: []int{1999}})
	assert.Equal(t, []int{2015, 2016, 2017}, m.Years)

	m, _ = update(t, m, tea.KeyMsg{Type: tea.KeyEsc})
	assert.NotContains(t, m.renderFooter(), "2016")
}

func TestSearchOpensDetail(t *testing.T) {
	m, _ := newTestModel(t, catalog(25))

	m, _ = update(t, m, runes("/"))
	require.Equal(t, ModeSearch, m.Mode)
	assert.Contains(t, m.View(), "Indexing titles")

	m, _ = update(t, m, run(t, IndexForSearchCmd(m.Lib, m.SearchSvc, m.Sort)))
	require.True(t, m.SearchReady)

	m, _ = update(t, m, runes("007"))
	require.NotEmpty(t, m.Results)
	assert.Equal(t, "m007", m.Results[0].Item.Manga.ID)

	m, _ = update(t, m, tea.KeyMsg{Type: tea.KeyEnter})
	assert.Equal(t, ModeDetail, m.Mode)
	assert.Equal(t, "m007", m.DetailID)
}

func TestHelpClosesOnAnyKey(t *testing.T) {
	m, _ := newTestModel(t, catalog(1))

	m, _ = update(t, m, runes("?"))
	require.Equal(t, ModeHelp, m.Mode)
	assert.Contains(t, m.View(), "Toggle favorite")

	m, _ = update(t, m, runes("x"))
	assert.Equal(t, ModeBrowse, m.Mode)
}

type recordingOpener struct {
	urls []string
	err  error
}

func (r *recordingOpener) Open(url string) error {
	r.urls = append(r.urls, url)
	return r.err
}

func TestOpenCover(t *testing.T) {
	seed := catalog(2)
	seed[0].ImageURL = "https://example.com/0.jpg"
	m, _ := newTestModel(t, seed)

	// No opener configured
	_, cmd := update(t, m, runes("o"))
	assert.Nil(t, cmd)

	opener := &recordingOpener{}
	m.opts.Opener = opener
	m, cmd = update(t, m, runes("o"))
	m, _ = update(t, m, run(t, cmd))
	assert.Equal(t, []string{"https://example.com/0.jpg"}, opener.urls)
	assert.Equal(t, "Opened cover of Title 000", m.StatusMsg)

	opener.err = errors.New("no cover image")
	m, _ = update(t, m, tea.KeyMsg{Type: tea.KeyDown})
	m, cmd = update(t, m, runes("o"))
	m, _ = update(t, m, run(t, cmd))
	assert.True(t, m.StatusIsErr)
	assert.Contains(t, m.StatusMsg, "opening cover")
}
