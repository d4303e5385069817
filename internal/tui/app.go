package tui

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/mmcdole/mangashelf/internal/domain"
	"github.com/mmcdole/mangashelf/internal/search"
	"github.com/mmcdole/mangashelf/internal/tui/styles"
	"github.com/mmcdole/mangashelf/internal/view"
)

// Mode is what the browser is currently showing
type Mode int

const (
	ModeBrowse Mode = iota
	ModeSearch
	ModeJumpYear
	ModeDetail
	ModeHelp
)

// Vertical chrome: header + footer
const ChromeHeight = 2

// Options tunes paging and sync behaviour.
type Options struct {
	Sort             domain.SortType
	PageSize         int
	PrefetchDistance int
	SyncTimeout      time.Duration
	Opener           CoverOpener // nil disables opening covers
}

func (o Options) withDefaults() Options {
	if o.PageSize <= 0 {
		o.PageSize = view.DefaultPageSize
	}
	if o.PrefetchDistance < 0 {
		o.PrefetchDistance = view.DefaultPrefetchDistance
	}
	if o.SyncTimeout <= 0 {
		o.SyncTimeout = time.Minute
	}
	o.Sort = o.Sort.Normalize()
	return o
}

// Model is the main Bubble Tea model for the browser
type Model struct {
	Mode  Mode
	Ready bool

	// Services
	Lib       Library
	SearchSvc *search.Service
	logger    *slog.Logger
	opts      Options

	// Browsed order, loaded page by page
	Sort        domain.SortType
	Items       []domain.MangaWithYear
	HasMore     bool
	PageLoading bool
	Cursor      int
	Offset      int // First visible row
	pendingJump int // Index to select once loaded, -1 when none
	Years       []int

	// Favorites view, fed by a watch
	FavoritesOnly bool
	Favorites     []domain.MangaWithYear

	// List status
	IsLoading bool // Sync in flight
	IsOffline bool // Showing cached data after a failed sync
	Err       string

	// Title search
	input        textinput.Model
	SearchReady  bool
	Results      []search.Result
	ResultCursor int

	// Detail
	DetailID     string
	Detail       domain.MangaState
	detailCancel context.CancelFunc

	spinner     spinner.Model
	StatusMsg   string
	StatusIsErr bool

	Width  int
	Height int

	ctx    context.Context
	cancel context.CancelFunc
}

// NewModel creates a new browser model
func NewModel(lib Library, searchSvc *search.Service, opts Options, logger *slog.Logger) Model {
	if logger == nil {
		logger = slog.Default()
	}
	opts = opts.withDefaults()

	ti := textinput.New()
	ti.CharLimit = 100
	ti.Width = 40
	ti.PromptStyle = styles.AccentStyle
	ti.TextStyle = lipgloss.NewStyle().Foreground(styles.White)
	ti.PlaceholderStyle = styles.DimStyle

	sp := spinner.New()
	sp.Spinner = spinner.Dot
	sp.Style = styles.SpinnerStyle

	ctx, cancel := context.WithCancel(context.Background())

	return Model{
		Mode:        ModeBrowse,
		Lib:         lib,
		SearchSvc:   searchSvc,
		logger:      logger,
		opts:        opts,
		Sort:        opts.Sort,
		pendingJump: -1,
		input:       ti,
		spinner:     sp,
		IsLoading:   true,
		PageLoading: true,
		ctx:         ctx,
		cancel:      cancel,
	}
}

// Close stops all watches started by the model.
func (m Model) Close() {
	if m.detailCancel != nil {
		m.detailCancel()
	}
	m.cancel()
}

// Init shows cached rows right away and syncs in the background
func (m Model) Init() tea.Cmd {
	return tea.Batch(
		m.spinner.Tick,
		LoadPageCmd(m.Lib, m.Sort, m.opts.PageSize, 0),
		SyncCmd(m.Lib, m.opts.SyncTimeout),
		WaitForFavorites(m.Lib.WatchFavorites(m.ctx)),
	)
}

// Update handles all messages
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.Width = msg.Width
		m.Height = msg.Height
		m.Ready = true
		m.ensureVisible()
		return m, nil

	case tea.KeyMsg:
		return m.handleKeyMsg(msg)

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd

	case SyncDoneMsg:
		return m.handleSyncDone(msg.Outcome)

	case PageLoadedMsg:
		return m.handlePageLoaded(msg)

	case ToggledMsg:
		for i := range m.Items {
			if m.Items[i].Manga.ID == msg.Manga.ID {
				m.Items[i] = domain.NewMangaWithYear(msg.Manga)
				break
			}
		}
		return m, nil

	case FavoritesMsg:
		m.Favorites = make([]domain.MangaWithYear, len(msg.Items))
		for i, fav := range msg.Items {
			m.Favorites[i] = domain.NewMangaWithYear(fav)
		}
		m.clampCursor()
		return m, msg.NextCmd

	case DetailMsg:
		if msg.ID != m.DetailID {
			return m, nil
		}
		m.Detail = msg.State
		return m, msg.NextCmd

	case SearchReadyMsg:
		m.SearchReady = true
		m.refreshResults()
		return m, nil

	case YearJumpMsg:
		return m.handleYearJump(msg)

	case YearsMsg:
		if msg.Sort == m.Sort {
			m.Years = msg.Years
		}
		return m, nil

	case ErrMsg:
		m.logger.Error("browser error", "error", msg.Err, "context", msg.Context)
		m.PageLoading = false
		cmd := m.setStatus(msg.Error(), true)
		return m, cmd

	case CoverOpenedMsg:
		cmd := m.setStatus("Opened cover of "+msg.Title, false)
		return m, cmd

	case ClearStatusMsg:
		m.StatusMsg = ""
		m.StatusIsErr = false
		return m, nil
	}

	return m, nil
}

func (m Model) handleSyncDone(outcome domain.FetchOutcome) (tea.Model, tea.Cmd) {
	m.IsLoading = false

	var status tea.Cmd
	switch o := outcome.(type) {
	case domain.Success:
		m.Err = ""
		m.IsOffline = false
		status = m.setStatus(fmt.Sprintf("Synced %d titles (%d new)", o.Fetched, o.Inserted), false)
	case domain.DatabaseOnly:
		m.Err = ""
		m.IsOffline = true
	case domain.NetworkError, domain.Error:
		if len(m.Items) == 0 {
			m.Err = domain.OutcomeMessage(o)
		} else {
			status = m.setStatus(domain.OutcomeMessage(o), true)
		}
	}

	// Reload what is on screen from the store
	m.SearchReady = false
	m.PageLoading = true
	limit := max(len(m.Items), m.opts.PageSize)
	return m, tea.Batch(status, LoadPageCmd(m.Lib, m.Sort, limit, 0))
}

func (m Model) handlePageLoaded(msg PageLoadedMsg) (tea.Model, tea.Cmd) {
	if msg.Sort != m.Sort {
		return m, nil
	}
	page := msg.Page

	switch {
	case page.Offset == 0:
		m.Items = page.Items
	case page.Offset == len(m.Items):
		m.Items = append(m.Items, page.Items...)
	default:
		return m, nil
	}
	m.HasMore = page.HasMore
	m.PageLoading = false

	if m.pendingJump >= 0 {
		if m.pendingJump < len(m.Items) {
			m.Cursor = m.pendingJump
			m.pendingJump = -1
		} else if m.HasMore {
			cmd := m.loadMore(m.pendingJump + 1 - len(m.Items))
			return m, cmd
		} else {
			m.pendingJump = -1
		}
	}

	m.clampCursor()
	cmd := m.maybePrefetch()
	return m, cmd
}

func (m Model) handleYearJump(msg YearJumpMsg) (tea.Model, tea.Cmd) {
	if msg.Sort != m.Sort {
		return m, nil
	}
	if !msg.Found {
		cmd := m.setStatus(fmt.Sprintf("No titles from %d", msg.Year), true)
		return m, cmd
	}
	if msg.Index < len(m.Items) {
		m.Cursor = msg.Index
		m.ensureVisible()
		return m, nil
	}
	m.pendingJump = msg.Index
	cmd := m.loadMore(msg.Index + 1 - len(m.Items))
	return m, cmd
}

// loadMore requests at least n more rows, rounded up to whole pages.
func (m *Model) loadMore(n int) tea.Cmd {
	if m.PageLoading {
		return nil
	}
	pages := (n + m.opts.PageSize - 1) / m.opts.PageSize
	m.PageLoading = true
	return LoadPageCmd(m.Lib, m.Sort, max(pages, 1)*m.opts.PageSize, len(m.Items))
}

func (m *Model) maybePrefetch() tea.Cmd {
	if m.FavoritesOnly || m.PageLoading {
		return nil
	}
	if !view.NeedsPrefetch(m.Cursor, len(m.Items), m.opts.PrefetchDistance, m.HasMore) {
		return nil
	}
	return m.loadMore(m.opts.PageSize)
}

func (m Model) handleKeyMsg(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch m.Mode {
	case ModeHelp:
		m.Mode = ModeBrowse
		return m, nil
	case ModeSearch:
		return m.handleSearchKey(msg)
	case ModeJumpYear:
		return m.handleJumpYearKey(msg)
	case ModeDetail:
		return m.handleDetailKey(msg)
	}

	switch {
	case key.Matches(msg, Keys.Quit):
		m.Close()
		return m, tea.Quit

	case key.Matches(msg, Keys.Help):
		m.Mode = ModeHelp
		return m, nil

	case key.Matches(msg, Keys.Up):
		m.moveCursor(-1)
	case key.Matches(msg, Keys.Down):
		m.moveCursor(1)
	case key.Matches(msg, Keys.PageUp):
		m.moveCursor(-m.listHeight())
	case key.Matches(msg, Keys.PageDown):
		m.moveCursor(m.listHeight())
	case key.Matches(msg, Keys.Home):
		m.moveCursor(-len(m.visible()))
	case key.Matches(msg, Keys.End):
		m.moveCursor(len(m.visible()))

	case key.Matches(msg, Keys.Enter):
		if item, ok := m.selected(); ok {
			cmd := m.openDetail(item.Manga)
			return m, cmd
		}
		return m, nil

	case key.Matches(msg, Keys.Sort):
		if m.FavoritesOnly {
			return m, nil
		}
		m.Sort = m.Sort.Next()
		m.Items = nil
		m.HasMore = false
		m.Cursor, m.Offset = 0, 0
		m.pendingJump = -1
		m.SearchReady = false
		m.PageLoading = true
		return m, LoadPageCmd(m.Lib, m.Sort, m.opts.PageSize, 0)

	case key.Matches(msg, Keys.Refresh):
		if m.IsLoading {
			return m, nil
		}
		m.IsLoading = true
		return m, SyncCmd(m.Lib, m.opts.SyncTimeout)

	case key.Matches(msg, Keys.JumpYear):
		if m.FavoritesOnly {
			return m, nil
		}
		m.Mode = ModeJumpYear
		m.input.Prompt = "year: "
		m.input.Placeholder = "e.g. 2021"
		m.input.SetValue("")
		m.Years = nil
		cmd := m.input.Focus()
		return m, tea.Batch(cmd, LoadYearsCmd(m.Lib, m.Sort))

	case key.Matches(msg, Keys.Filter):
		m.Mode = ModeSearch
		m.input.Prompt = "/ "
		m.input.Placeholder = "Search titles..."
		m.input.SetValue("")
		m.Results = nil
		m.ResultCursor = 0
		cmds := []tea.Cmd{m.input.Focus()}
		if !m.SearchReady {
			cmds = append(cmds, IndexForSearchCmd(m.Lib, m.SearchSvc, m.Sort))
		}
		return m, tea.Batch(cmds...)

	case key.Matches(msg, Keys.ToggleFavorite):
		if item, ok := m.selected(); ok {
			return m, ToggleFavoriteCmd(m.Lib, item.Manga.ID)
		}
	case key.Matches(msg, Keys.ToggleRead):
		if item, ok := m.selected(); ok {
			return m, ToggleReadCmd(m.Lib, item.Manga.ID)
		}

	case key.Matches(msg, Keys.Favorites):
		m.FavoritesOnly = !m.FavoritesOnly
		m.Cursor, m.Offset = 0, 0
		return m, nil

	case key.Matches(msg, Keys.OpenCover):
		if item, ok := m.selected(); ok {
			return m, m.openCover(item.Manga)
		}
	}

	cmd := m.maybePrefetch()
	return m, cmd
}

func (m Model) handleSearchKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.Type {
	case tea.KeyEsc:
		m.Mode = ModeBrowse
		m.input.Blur()
		return m, nil
	case tea.KeyEnter:
		if m.ResultCursor < len(m.Results) {
			item := m.Results[m.ResultCursor].Item
			m.input.Blur()
			cmd := m.openDetail(item.Manga)
			return m, cmd
		}
		return m, nil
	case tea.KeyUp:
		if m.ResultCursor > 0 {
			m.ResultCursor--
		}
		return m, nil
	case tea.KeyDown:
		if m.ResultCursor < len(m.Results)-1 {
			m.ResultCursor++
		}
		return m, nil
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	m.refreshResults()
	return m, cmd
}

func (m *Model) refreshResults() {
	if !m.SearchReady || m.SearchSvc == nil {
		return
	}
	m.Results = m.SearchSvc.Filter(m.input.Value())
	if m.ResultCursor >= len(m.Results) {
		m.ResultCursor = max(len(m.Results)-1, 0)
	}
}

func (m Model) handleJumpYearKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.Type {
	case tea.KeyEsc:
		m.Mode = ModeBrowse
		m.input.Blur()
		return m, nil
	case tea.KeyEnter:
		m.Mode = ModeBrowse
		m.input.Blur()
		year, err := strconv.Atoi(strings.TrimSpace(m.input.Value()))
		if err != nil {
			cmd := m.setStatus("Not a year: "+m.input.Value(), true)
			return m, cmd
		}
		return m, JumpToYearCmd(m.Lib, m.Sort, year)
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

func (m Model) handleDetailKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, Keys.Quit):
		m.Close()
		return m, tea.Quit
	case key.Matches(msg, Keys.Escape), msg.Type == tea.KeyBackspace:
		m.closeDetail()
		return m, nil
	case key.Matches(msg, Keys.ToggleFavorite):
		if m.Detail.Found {
			return m, ToggleFavoriteCmd(m.Lib, m.DetailID)
		}
	case key.Matches(msg, Keys.ToggleRead):
		if m.Detail.Found {
			return m, ToggleReadCmd(m.Lib, m.DetailID)
		}
	case key.Matches(msg, Keys.OpenCover):
		if m.Detail.Found {
			return m, m.openCover(m.Detail.Manga)
		}
	}
	return m, nil
}

func (m Model) openCover(manga domain.Manga) tea.Cmd {
	if m.opts.Opener == nil {
		return nil
	}
	return OpenCoverCmd(m.opts.Opener, manga)
}

// openDetail starts watching one record and switches to the detail pane.
func (m *Model) openDetail(manga domain.Manga) tea.Cmd {
	if m.detailCancel != nil {
		m.detailCancel()
	}
	ctx, cancel := context.WithCancel(m.ctx)
	m.detailCancel = cancel
	m.DetailID = manga.ID
	m.Detail = domain.MangaState{Manga: manga, Found: true}
	m.Mode = ModeDetail
	return WaitForDetail(manga.ID, m.Lib.WatchManga(ctx, manga.ID))
}

func (m *Model) closeDetail() {
	if m.detailCancel != nil {
		m.detailCancel()
		m.detailCancel = nil
	}
	m.DetailID = ""
	m.Mode = ModeBrowse
}

// visible returns the list the cursor moves over
func (m Model) visible() []domain.MangaWithYear {
	if m.FavoritesOnly {
		return m.Favorites
	}
	return m.Items
}

func (m Model) selected() (domain.MangaWithYear, bool) {
	items := m.visible()
	if m.Cursor < 0 || m.Cursor >= len(items) {
		return domain.MangaWithYear{}, false
	}
	return items[m.Cursor], true
}

func (m *Model) moveCursor(delta int) {
	m.Cursor += delta
	m.clampCursor()
}

func (m *Model) clampCursor() {
	n := len(m.visible())
	if m.Cursor >= n {
		m.Cursor = n - 1
	}
	if m.Cursor < 0 {
		m.Cursor = 0
	}
	m.ensureVisible()
}

func (m Model) listHeight() int {
	return max(m.Height-ChromeHeight, 1)
}

func (m *Model) ensureVisible() {
	h := m.listHeight()
	if m.Cursor < m.Offset {
		m.Offset = m.Cursor
	}
	if m.Cursor >= m.Offset+h {
		m.Offset = m.Cursor - h + 1
	}
	if m.Offset < 0 {
		m.Offset = 0
	}
}

func (m *Model) setStatus(msg string, isErr bool) tea.Cmd {
	m.StatusMsg = msg
	m.StatusIsErr = isErr
	return ClearStatusCmd(3 * time.Second)
}
