package tui

import (
	"context"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/mmcdole/mangashelf/internal/domain"
	"github.com/mmcdole/mangashelf/internal/search"
	"github.com/mmcdole/mangashelf/internal/view"
)

// Library is what the browser needs from the library service.
type Library interface {
	domain.LibraryQueries
	domain.LibraryCommands
	BuildView(sortType domain.SortType) (view.View, error)
	BuildPage(sortType domain.SortType, limit, offset int) (view.Page, error)
}

// CoverOpener shows a cover image URL outside the terminal.
type CoverOpener interface {
	Open(url string) error
}

// Command factories for async operations

// SyncCmd runs one sync
func SyncCmd(lib Library, timeout time.Duration) tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), timeout)
		defer cancel()
		return SyncDoneMsg{Outcome: lib.Sync(ctx)}
	}
}

// LoadPageCmd reads one page from the store
func LoadPageCmd(lib Library, sortType domain.SortType, limit, offset int) tea.Cmd {
	return func() tea.Msg {
		page, err := lib.BuildPage(sortType, limit, offset)
		if err != nil {
			return ErrMsg{Err: err, Context: "loading page"}
		}
		return PageLoadedMsg{Sort: sortType, Page: page}
	}
}

// ToggleFavoriteCmd flips the favorite flag
func ToggleFavoriteCmd(lib Library, id string) tea.Cmd {
	return func() tea.Msg {
		m, err := lib.ToggleFavorite(id)
		if err != nil {
			return ErrMsg{Err: err, Context: "toggling favorite"}
		}
		return ToggledMsg{Manga: m}
	}
}

// ToggleReadCmd flips the read flag
func ToggleReadCmd(lib Library, id string) tea.Cmd {
	return func() tea.Msg {
		m, err := lib.ToggleRead(id)
		if err != nil {
			return ErrMsg{Err: err, Context: "toggling read"}
		}
		return ToggledMsg{Manga: m}
	}
}

// WaitForFavorites reads the next emission of a favorites watch
func WaitForFavorites(ch <-chan []domain.Manga) tea.Cmd {
	return func() tea.Msg {
		items, ok := <-ch
		if !ok {
			return nil
		}
		return FavoritesMsg{Items: items, NextCmd: WaitForFavorites(ch)}
	}
}

// WaitForDetail reads the next emission of a detail watch
func WaitForDetail(id string, ch <-chan domain.MangaState) tea.Cmd {
	return func() tea.Msg {
		state, ok := <-ch
		if !ok {
			return nil
		}
		return DetailMsg{ID: id, State: state, NextCmd: WaitForDetail(id, ch)}
	}
}

// IndexForSearchCmd indexes the whole catalog in the given order
func IndexForSearchCmd(lib Library, searchSvc *search.Service, sortType domain.SortType) tea.Cmd {
	return func() tea.Msg {
		v, err := lib.BuildView(sortType)
		if err != nil {
			return ErrMsg{Err: err, Context: "indexing titles"}
		}
		searchSvc.Index(v.Ordered)
		return SearchReadyMsg{Count: len(v.Ordered)}
	}
}

// JumpToYearCmd finds where year starts in the given order
func JumpToYearCmd(lib Library, sortType domain.SortType, year int) tea.Cmd {
	return func() tea.Msg {
		v, err := lib.BuildView(sortType)
		if err != nil {
			return ErrMsg{Err: err, Context: "jumping to year"}
		}
		i, ok := v.FirstIndexForYear(year)
		return YearJumpMsg{Sort: sortType, Year: year, Index: i, Found: ok}
	}
}

// LoadYearsCmd lists the distinct years of the catalog
func LoadYearsCmd(lib Library, sortType domain.SortType) tea.Cmd {
	return func() tea.Msg {
		v, err := lib.BuildView(sortType)
		if err != nil {
			return ErrMsg{Err: err, Context: "listing years"}
		}
		return YearsMsg{Sort: sortType, Years: v.Years()}
	}
}

// OpenCoverCmd opens the cover image of m
func OpenCoverCmd(opener CoverOpener, m domain.Manga) tea.Cmd {
	return func() tea.Msg {
		if err := opener.Open(m.ImageURL); err != nil {
			return ErrMsg{Err: err, Context: "opening cover"}
		}
		return CoverOpenedMsg{Title: m.Title}
	}
}

// ClearStatusCmd returns a command that clears status after a delay
func ClearStatusCmd(delay time.Duration) tea.Cmd {
	return tea.Tick(delay, func(t time.Time) tea.Msg {
		return ClearStatusMsg{}
	})
}
