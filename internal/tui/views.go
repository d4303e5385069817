package tui

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/mmcdole/mangashelf/internal/domain"
	"github.com/mmcdole/mangashelf/internal/search"
	"github.com/mmcdole/mangashelf/internal/tui/styles"
)

// View renders the current mode
func (m Model) View() string {
	if !m.Ready {
		return "Loading..."
	}

	var body string
	switch m.Mode {
	case ModeHelp:
		return m.renderHelp()
	case ModeDetail:
		body = m.renderDetail()
	case ModeSearch:
		body = m.renderSearch()
	default:
		body = m.renderList()
	}

	body = lipgloss.NewStyle().Height(m.listHeight()).MaxHeight(m.listHeight()).Render(body)
	return lipgloss.JoinVertical(lipgloss.Left, m.renderHeader(), body, m.renderFooter())
}

func (m Model) renderHeader() string {
	title := styles.TitleStyle.Render("MangaShelf")

	var scope string
	if m.FavoritesOnly {
		scope = fmt.Sprintf("Favorites · %d", len(m.Favorites))
	} else {
		more := ""
		if m.HasMore {
			more = "+"
		}
		scope = fmt.Sprintf("Sort: %s · %d%s", m.Sort.Label(), len(m.Items), more)
	}

	left := title + "  " + styles.SubtitleStyle.Render(scope)
	if m.IsOffline {
		left += "  " + styles.OfflineBadgeStyle.Render("offline")
	}
	return left
}

func (m Model) renderList() string {
	items := m.visible()

	if len(items) == 0 {
		switch {
		case m.Err != "":
			return styles.ErrorStyle.Render(m.Err) + "\n" + styles.DimStyle.Render("Press r to retry.")
		case m.IsLoading || m.PageLoading:
			return m.spinner.View() + " " + styles.DimStyle.Render("Loading catalog...")
		case m.FavoritesOnly:
			return styles.DimStyle.Render("No favorites yet. Press f on a title to add it.")
		default:
			return styles.DimStyle.Render("Nothing cached. Press r to sync.")
		}
	}

	end := min(m.Offset+m.listHeight(), len(items))
	rows := make([]string, 0, end-m.Offset)
	for i := m.Offset; i < end; i++ {
		newYear := i == 0 || items[i-1].Year != items[i].Year
		rows = append(rows, m.renderRow(items[i], i == m.Cursor, newYear))
	}
	return strings.Join(rows, "\n")
}

func (m Model) renderRow(item domain.MangaWithYear, selected, newYear bool) string {
	fav := " "
	if item.Manga.IsFavorite {
		fav = styles.FavoriteChar
	}
	read := styles.UnreadChar
	if item.Manga.IsRead {
		read = styles.ReadChar
	}

	yearColor := styles.DimGray
	if newYear && m.Sort == domain.SortYearAsc && !m.FavoritesOnly {
		yearColor = styles.Accent
	}
	favColor := styles.Yellow
	readColor := styles.Accent
	if item.Manga.IsRead {
		readColor = styles.Green
	}

	meta := fmt.Sprintf("  %s  ♥ %-7d %s", item.Manga.FormattedScore(), item.Manga.Popularity,
		styles.Truncate(item.Manga.Category, 12))
	titleWidth := max(m.Width-lipgloss.Width(meta)-14, 10)

	parts := []styles.RowPart{
		{Text: fav + " ", Foreground: &favColor},
		{Text: read + " ", Foreground: &readColor},
		{Text: fmt.Sprintf("%d  ", item.Year), Foreground: &yearColor},
		{Text: padRight(styles.Truncate(item.Manga.Title, titleWidth), titleWidth)},
		{Text: meta},
	}
	return styles.RenderListRow(parts, selected, m.Width)
}

func (m Model) renderDetail() string {
	if !m.Detail.Found {
		return styles.DetailStyle.Render(styles.ErrorStyle.Render("Manga not found"))
	}
	manga := m.Detail.Manga

	flags := []string{}
	if manga.IsFavorite {
		flags = append(flags, styles.FavoriteMark+" favorite")
	}
	if manga.IsRead {
		flags = append(flags, styles.ReadMark+" read")
	} else {
		flags = append(flags, styles.UnreadMark+" unread")
	}

	lines := []string{
		styles.TitleStyle.Render(manga.Title),
		"",
		field("Category", manga.Category),
		field("Published", manga.Published().Format("2006-01-02")),
		field("Score", manga.FormattedScore()),
		field("Popularity", fmt.Sprintf("%d", manga.Popularity)),
		field("Cover", manga.ImageURL),
		"",
		strings.Join(flags, "   "),
		"",
		styles.DimStyle.Render("f favorite · m read · o cover · esc back"),
	}
	return styles.DetailStyle.Render(strings.Join(lines, "\n"))
}

func field(label, value string) string {
	return styles.DimStyle.Render(fmt.Sprintf("%-11s", label)) + value
}

func (m Model) renderSearch() string {
	lines := []string{m.input.View(), ""}

	if !m.SearchReady {
		lines = append(lines, m.spinner.View()+" "+styles.DimStyle.Render("Indexing titles..."))
		return strings.Join(lines, "\n")
	}
	if m.input.Value() != "" && len(m.Results) == 0 {
		lines = append(lines, styles.DimStyle.Render("No matches"))
	}

	limit := min(len(m.Results), max(m.listHeight()-2, 1))
	for i := 0; i < limit; i++ {
		lines = append(lines, renderResult(m.Results[i], i == m.ResultCursor))
	}
	return strings.Join(lines, "\n")
}

// renderResult highlights matched positions in the title
func renderResult(r search.Result, selected bool) string {
	base := styles.SubtitleStyle
	hl := styles.MatchHighlightStyle
	if selected {
		base = base.Background(styles.SlateLight).Foreground(styles.White)
		hl = styles.MatchHighlightSelectedStyle
	}

	matched := make(map[int]bool, len(r.MatchedIndexes))
	for _, i := range r.MatchedIndexes {
		matched[i] = true
	}

	var b strings.Builder
	b.WriteString(base.Render(" "))
	for i, ch := range r.Item.Manga.Title {
		if matched[i] {
			b.WriteString(hl.Render(string(ch)))
		} else {
			b.WriteString(base.Render(string(ch)))
		}
	}
	b.WriteString(base.Render(fmt.Sprintf("  (%d)", r.Item.Year)))
	return b.String()
}

func (m Model) renderFooter() string {
	var left string
	switch {
	case m.IsLoading:
		left = m.spinner.View() + " " + styles.DimStyle.Render("Syncing...")
	case m.StatusMsg != "" && m.StatusIsErr:
		left = styles.ErrorStyle.Render(m.StatusMsg)
	case m.StatusMsg != "":
		left = styles.SuccessStyle.Render(m.StatusMsg)
	case m.Mode == ModeJumpYear:
		left = m.input.View()
	}

	right := styles.AccentStyle.Render("?") + styles.DimStyle.Render(" help")
	if m.Mode == ModeJumpYear && m.StatusMsg == "" && !m.IsLoading {
		left += "  " + m.renderYears(m.Width-lipgloss.Width(left)-lipgloss.Width(right)-3)
	}

	gap := max(m.Width-lipgloss.Width(left)-lipgloss.Width(right), 0)
	return left + strings.Repeat(" ", gap) + right
}

// renderYears lists the catalog years within width, the year under the cursor highlighted
func (m Model) renderYears(width int) string {
	current := 0
	if items := m.visible(); m.Cursor < len(items) {
		current = items[m.Cursor].Year
	}

	var b strings.Builder
	used := 0
	for i, y := range m.Years {
		label := strconv.Itoa(y)
		if i > 0 {
			label = " " + label
		}
		if used+len(label) > width {
			b.WriteString(styles.DimStyle.Render("…"))
			break
		}
		used += len(label)
		if y == current {
			b.WriteString(styles.AccentStyle.Render(label))
		} else {
			b.WriteString(styles.DimStyle.Render(label))
		}
	}
	return b.String()
}

// renderHelp renders the help screen
func (m Model) renderHelp() string {
	help := styles.ModalTitleStyle.Render("Keys") + `
NAVIGATION                      ACTIONS
  j/k        Up/down               f      Toggle favorite
  g/Home     First item            m      Toggle read
  G/End      Last loaded item      r      Sync catalog
  PgUp/PgDn  Scroll page           s      Cycle sort
  Enter      Details               y      Jump to year
                                   F      Favorites only
SEARCH                             o      Open cover
  /          Search titles         q      Quit
  Esc        Close / Cancel        ?      This help

Press any key to return...
`

	return lipgloss.Place(m.Width, m.Height,
		lipgloss.Center, lipgloss.Center,
		styles.ModalStyle.Render(help))
}

func padRight(s string, width int) string {
	if w := lipgloss.Width(s); w < width {
		return s + strings.Repeat(" ", width-w)
	}
	return s
}
