package store

import (
	"errors"
	"fmt"
	"path/filepath"
	"testing"
	"time"

	"github.com/mmcdole/mangashelf/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type storeFactory func(t *testing.T) domain.Store

func backends() map[string]storeFactory {
	return map[string]storeFactory{
		"bolt": func(t *testing.T) domain.Store {
			s, err := OpenBolt(filepath.Join(t.TempDir(), "test.db"))
			require.NoError(t, err)
			t.Cleanup(func() { s.Close() })
			return s
		},
		"sqlite": func(t *testing.T) domain.Store {
			s, err := NewSQLiteStore(filepath.Join(t.TempDir(), "test.sqlite"))
			require.NoError(t, err)
			t.Cleanup(func() { s.Close() })
			return s
		},
	}
}

func forEachBackend(t *testing.T, fn func(t *testing.T, s domain.Store)) {
	for name, open := range backends() {
		t.Run(name, func(t *testing.T) {
			fn(t, open(t))
		})
	}
}

func manga(id string, score float64, popularity int, published int64) domain.Manga {
	return domain.Manga{
		ID:          id,
		Title:       "Title " + id,
		Category:    "Action",
		ImageURL:    "https://example.com/" + id + ".jpg",
		Score:       score,
		Popularity:  popularity,
		PublishedAt: published,
	}
}

func mangaIDs(items []domain.Manga) []string {
	out := make([]string, len(items))
	for i, m := range items {
		out[i] = m.ID
	}
	return out
}

func TestUpsertManyInsertsAndReplaces(t *testing.T) {
	forEachBackend(t, func(t *testing.T, s domain.Store) {
		require.NoError(t, s.UpsertMany([]domain.Manga{
			manga("a", 7.5, 10, 300),
			manga("b", 8.0, 20, 100),
		}))

		replaced := manga("a", 9.1, 99, 50)
		replaced.Title = "Renamed"
		replaced.IsFavorite = true
		require.NoError(t, s.UpsertMany([]domain.Manga{replaced}))

		got, ok, err := s.GetByID("a")
		require.NoError(t, err)
		require.True(t, ok)
		assert.Equal(t, replaced, got)

		n, err := s.Count()
		require.NoError(t, err)
		assert.Equal(t, 2, n)

		// Index entries follow the replaced values
		all, err := s.GetAll()
		require.NoError(t, err)
		assert.Equal(t, []string{"a", "b"}, mangaIDs(all))
	})
}

func TestUpsertManyDuplicateIDsInBatch(t *testing.T) {
	forEachBackend(t, func(t *testing.T, s domain.Store) {
		require.NoError(t, s.UpsertMany([]domain.Manga{
			manga("a", 1, 1, 100),
			manga("a", 2, 2, 200),
		}))

		n, err := s.Count()
		require.NoError(t, err)
		assert.Equal(t, 1, n)

		page, err := s.GetPage(domain.SortScoreAsc, 10, 0)
		require.NoError(t, err)
		require.Len(t, page, 1)
		assert.Equal(t, 2.0, page[0].Score)
	})
}

func TestUpsertManyRejectsEmptyID(t *testing.T) {
	forEachBackend(t, func(t *testing.T, s domain.Store) {
		err := s.UpsertMany([]domain.Manga{manga("a", 1, 1, 1), {Title: "no id"}})
		require.Error(t, err)

		// Whole batch rolled back
		n, err := s.Count()
		require.NoError(t, err)
		assert.Zero(t, n)
	})
}

func TestUpdateMissingIsNotFound(t *testing.T) {
	forEachBackend(t, func(t *testing.T, s domain.Store) {
		err := s.Update(manga("ghost", 1, 1, 1))
		assert.True(t, errors.Is(err, domain.ErrNotFound), "got %v", err)

		_, err = s.Modify("ghost", func(m *domain.Manga) { m.IsRead = true })
		assert.ErrorIs(t, err, domain.ErrNotFound)
	})
}

func TestModifyKeepsIDAndReindexes(t *testing.T) {
	forEachBackend(t, func(t *testing.T, s domain.Store) {
		require.NoError(t, s.UpsertMany([]domain.Manga{manga("a", 1, 1, 100), manga("b", 2, 2, 200)}))

		got, err := s.Modify("a", func(m *domain.Manga) {
			m.ID = "changed"
			m.Score = 5
			m.IsFavorite = true
		})
		require.NoError(t, err)
		assert.Equal(t, "a", got.ID)
		assert.True(t, got.IsFavorite)

		page, err := s.GetPage(domain.SortScoreDesc, 10, 0)
		require.NoError(t, err)
		assert.Equal(t, []string{"a", "b"}, mangaIDs(page))

		_, ok, err := s.GetByID("changed")
		require.NoError(t, err)
		assert.False(t, ok)
	})
}

func TestGetAllOrderedByPublished(t *testing.T) {
	forEachBackend(t, func(t *testing.T, s domain.Store) {
		require.NoError(t, s.UpsertMany([]domain.Manga{
			manga("c", 1, 1, 300),
			manga("a", 1, 1, -50),
			manga("b", 1, 1, 300),
			manga("d", 1, 1, 10),
		}))

		all, err := s.GetAll()
		require.NoError(t, err)
		assert.Equal(t, []string{"a", "d", "b", "c"}, mangaIDs(all))
	})
}

func TestGetPageOrdersAndTieBreaks(t *testing.T) {
	items := []domain.Manga{
		manga("e", 7.0, 5, 500),
		manga("b", 8.5, 5, 100),
		manga("a", 7.0, 1, 400),
		manga("d", -1.5, 9, 200),
		manga("c", 8.5, 0, 300),
	}

	cases := []struct {
		sort domain.SortType
		want []string
	}{
		{domain.SortYearAsc, []string{"b", "d", "c", "a", "e"}},
		{domain.SortNone, []string{"b", "d", "c", "a", "e"}},
		{domain.SortScoreAsc, []string{"d", "a", "e", "b", "c"}},
		{domain.SortScoreDesc, []string{"b", "c", "a", "e", "d"}},
		{domain.SortPopularityAsc, []string{"c", "a", "b", "e", "d"}},
		{domain.SortPopularityDesc, []string{"d", "b", "e", "a", "c"}},
	}

	forEachBackend(t, func(t *testing.T, s domain.Store) {
		require.NoError(t, s.UpsertMany(items))
		for _, tc := range cases {
			t.Run(tc.sort.String(), func(t *testing.T) {
				page, err := s.GetPage(tc.sort, 10, 0)
				require.NoError(t, err)
				assert.Equal(t, tc.want, mangaIDs(page))

				// Paged walk gives the same sequence
				var walked []string
				for offset := 0; ; offset += 2 {
					p, err := s.GetPage(tc.sort, 2, offset)
					require.NoError(t, err)
					if len(p) == 0 {
						break
					}
					walked = append(walked, mangaIDs(p)...)
				}
				assert.Equal(t, tc.want, walked)
			})
		}
	})
}

func TestGetPageOffsetPastEnd(t *testing.T) {
	forEachBackend(t, func(t *testing.T, s domain.Store) {
		require.NoError(t, s.UpsertMany([]domain.Manga{manga("a", 1, 1, 1)}))

		page, err := s.GetPage(domain.SortScoreAsc, 5, 10)
		require.NoError(t, err)
		assert.Empty(t, page)
		assert.NotNil(t, page)

		page, err = s.GetPage(domain.SortScoreAsc, 0, 0)
		require.NoError(t, err)
		assert.Empty(t, page)
	})
}

func TestGetPageUnknownSortFallsBackToYear(t *testing.T) {
	forEachBackend(t, func(t *testing.T, s domain.Store) {
		require.NoError(t, s.UpsertMany([]domain.Manga{
			manga("c", 9, 5, 300),
			manga("a", 1, 9, 100),
			manga("b", 5, 1, 200),
		}))

		want, err := s.GetPage(domain.SortYearAsc, 10, 0)
		require.NoError(t, err)

		for _, sort := range []domain.SortType{domain.SortNone, domain.SortType(42), domain.SortType(-1)} {
			var got []domain.Manga
			require.NotPanics(t, func() {
				got, err = s.GetPage(sort, 10, 0)
			})
			require.NoError(t, err, sort.String())
			assert.Equal(t, mangaIDs(want), mangaIDs(got), sort.String())
		}
		assert.Equal(t, domain.SortYearAsc, domain.SortType(42).Normalize())
		assert.Equal(t, domain.SortScoreAsc, domain.SortType(42).Next())
	})
}

func TestGetFavorites(t *testing.T) {
	forEachBackend(t, func(t *testing.T, s domain.Store) {
		fav := manga("b", 1, 1, 200)
		fav.IsFavorite = true
		fav2 := manga("c", 1, 1, 100)
		fav2.IsFavorite = true
		require.NoError(t, s.UpsertMany([]domain.Manga{manga("a", 1, 1, 50), fav, fav2}))

		favs, err := s.GetFavorites()
		require.NoError(t, err)
		assert.Equal(t, []string{"c", "b"}, mangaIDs(favs))
	})
}

func TestSubscribeNotifiesAfterCommit(t *testing.T) {
	forEachBackend(t, func(t *testing.T, s domain.Store) {
		require.NoError(t, s.UpsertMany([]domain.Manga{manga("a", 1, 1, 1), manga("b", 1, 1, 1)}))

		onlyA, cancelA := s.Subscribe("a")
		defer cancelA()
		all, cancelAll := s.Subscribe()
		defer cancelAll()

		_, err := s.Modify("b", func(m *domain.Manga) { m.IsRead = true })
		require.NoError(t, err)

		assertSignalled(t, all)
		assertQuiet(t, onlyA)

		_, err = s.Modify("a", func(m *domain.Manga) { m.IsRead = true })
		require.NoError(t, err)
		assertSignalled(t, onlyA)

		// The committed row is visible once the signal arrives
		got, ok, err := s.GetByID("a")
		require.NoError(t, err)
		require.True(t, ok)
		assert.True(t, got.IsRead)
	})
}

func TestSubscribeNoSignalOnFailedWrite(t *testing.T) {
	forEachBackend(t, func(t *testing.T, s domain.Store) {
		ch, cancel := s.Subscribe()
		defer cancel()

		_, err := s.Modify("ghost", func(m *domain.Manga) {})
		require.Error(t, err)
		assertQuiet(t, ch)
	})
}

func TestOpenSelectsDriver(t *testing.T) {
	dir := t.TempDir()

	for _, driver := range []string{DriverBolt, DriverSQLite} {
		s, err := Open(driver, dir, "https://example.com/catalog")
		require.NoError(t, err, driver)
		require.NoError(t, s.UpsertMany([]domain.Manga{manga("x", 1, 1, 1)}))
		require.NoError(t, s.Close())
	}

	_, err := Open("postgres", dir, "")
	assert.Error(t, err)
}

func TestBoltStorePersistsAcrossReopen(t *testing.T) {
	dir := t.TempDir()

	s, err := NewBoltStore(dir, "https://example.com/")
	require.NoError(t, err)
	require.NoError(t, s.UpsertMany([]domain.Manga{manga("a", 1, 1, 1)}))
	require.NoError(t, s.Close())

	// Trailing slash and case do not change the namespace
	s, err = NewBoltStore(dir, "HTTPS://EXAMPLE.COM")
	require.NoError(t, err)
	defer s.Close()

	_, ok, err := s.GetByID("a")
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestLargeCatalogPaging(t *testing.T) {
	forEachBackend(t, func(t *testing.T, s domain.Store) {
		var items []domain.Manga
		for i := 0; i < 250; i++ {
			items = append(items, manga(fmt.Sprintf("m%03d", i), float64(i%7), i%11, int64(i*86400*30)))
		}
		require.NoError(t, s.UpsertMany(items))

		seen := map[string]bool{}
		for offset := 0; ; offset += 20 {
			page, err := s.GetPage(domain.SortPopularityDesc, 20, offset)
			require.NoError(t, err)
			if len(page) == 0 {
				break
			}
			for _, m := range page {
				assert.False(t, seen[m.ID], "duplicate %s", m.ID)
				seen[m.ID] = true
			}
		}
		assert.Len(t, seen, 250)
	})
}

func assertSignalled(t *testing.T, ch <-chan struct{}) {
	t.Helper()
	select {
	case <-ch:
	case <-time.After(time.Second):
		t.Fatal("expected change signal")
	}
}

func assertQuiet(t *testing.T, ch <-chan struct{}) {
	t.Helper()
	select {
	case <-ch:
		t.Fatal("unexpected change signal")
	case <-time.After(20 * time.Millisecond):
	}
}
