package tui

import (
	tea "github.com/charmbracelet/bubbletea"
	"github.com/mmcdole/mangashelf/internal/domain"
	"github.com/mmcdole/mangashelf/internal/view"
)

// Message types for the TUI

// ErrMsg represents an error
type ErrMsg struct {
	Err     error
	Context string
}

// Error implements the error interface
func (e ErrMsg) Error() string {
	if e.Context != "" {
		return e.Context + ": " + e.Err.Error()
	}
	return e.Err.Error()
}

// SyncDoneMsg carries the outcome of a sync
type SyncDoneMsg struct {
	Outcome domain.FetchOutcome
}

// PageLoadedMsg carries one page of the browsed order
type PageLoadedMsg struct {
	Sort domain.SortType
	Page view.Page
}

// ToggledMsg signals a flag change on one record
type ToggledMsg struct {
	Manga domain.Manga
}

// FavoritesMsg is one emission of the favorites watch
type FavoritesMsg struct {
	Items   []domain.Manga
	NextCmd tea.Cmd // Continuation reading the next emission
}

// DetailMsg is one emission of the detail watch
type DetailMsg struct {
	ID      string
	State   domain.MangaState
	NextCmd tea.Cmd
}

// SearchReadyMsg signals that the title index covers the whole catalog
type SearchReadyMsg struct {
	Count int
}

// YearJumpMsg carries the position where a year starts
type YearJumpMsg struct {
	Sort  domain.SortType
	Year  int
	Index int
	Found bool
}

// YearsMsg carries the years present in the given order
type YearsMsg struct {
	Sort  domain.SortType
	Years []int
}

// CoverOpenedMsg signals the viewer was started
type CoverOpenedMsg struct {
	Title string
}

// ClearStatusMsg clears the status bar message
type ClearStatusMsg struct{}
