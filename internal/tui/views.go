package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/mmcdole/anikino/internal/nav"
	"github.com/mmcdole/anikino/internal/tui/components"
	"github.com/mmcdole/anikino/internal/tui/styles"
)

// View renders the active state
func (m Model) View() string {
	if !m.Ready {
		return ""
	}

	var body string
	if m.ctrl.State().ShowsDetail() {
		body = m.renderDetail()
	} else {
		body = m.renderSearch()
	}

	bodyHeight := max(0, m.Height-ChromeHeight)
	body = lipgloss.NewStyle().Height(bodyHeight).MaxHeight(bodyHeight).Render(body)
	return lipgloss.JoinVertical(lipgloss.Left, body, m.renderFooter())
}

// === Search view ===

func (m Model) renderSearch() string {
	var lines []string
	lines = append(lines, styles.AccentStyle.Bold(true).Render("anikino"))
	lines = append(lines, m.input.View())

	if m.focus == focusInput {
		for i, s := range m.suggestions {
			st := styles.SuggestionStyle
			if i == m.suggestIdx {
				st = styles.ActiveSuggestionStyle
			}
			lines = append(lines, st.Render(styles.Truncate(s, m.Width-4)))
		}
	}
	if m.focus == focusFilter || m.filter.Value() != "" {
		lines = append(lines, m.filter.View())
	}
	lines = append(lines, "")

	header := strings.Join(lines, "\n")
	listHeight := m.Height - ChromeHeight - len(lines)
	return header + "\n" + m.renderRows(listHeight)
}

func (m Model) renderRows(height int) string {
	search := m.ctrl.Search()
	if search.Len() == 0 {
		if search.Keyword() == "" {
			return styles.DimStyle.Render("  Type a title and press enter")
		}
		return ""
	}
	if len(m.visible) == 0 {
		return styles.DimStyle.Render("  No matches")
	}

	rowHeight := 1
	if m.opts.Thumbnails {
		rowHeight = m.opts.ThumbHeight
	}
	perPage := max(1, height/rowHeight)
	offset := 0
	if m.cursor >= perPage {
		offset = m.cursor - perPage + 1
	}

	rows := search.Rows()
	labelWidth := m.Width - 4
	if m.opts.Thumbnails {
		labelWidth -= m.opts.ThumbWidth + 1
	}

	var out []string
	for i := offset; i < len(m.visible) && i < offset+perPage; i++ {
		row := rows[m.visible[i]]
		label := styles.Truncate(row.Label, labelWidth)
		if i == m.cursor && m.focus != focusInput {
			label = styles.SelectedItemStyle.Render(label)
		} else {
			label = styles.NormalItemStyle.Render(label)
		}

		if !m.opts.Thumbnails {
			out = append(out, label)
			continue
		}
		icon := m.renderIcon(row)
		out = append(out, lipgloss.JoinHorizontal(lipgloss.Top, icon, " ", label))
	}
	return strings.Join(out, "\n")
}

func (m Model) renderIcon(row nav.Row) string {
	w, h := m.opts.ThumbWidth, m.opts.ThumbHeight
	switch row.IconState {
	case nav.IconLoaded:
		return components.RenderImage(row.Icon.Img, w, h)
	case nav.IconLoading:
		return styles.DimStyle.Render(components.Placeholder(w, h, styles.GlyphLoading))
	case nav.IconEmpty:
		return styles.DimStyle.Render(components.Placeholder(w, h, styles.GlyphEmpty))
	default:
		return styles.DimStyle.Render(components.Placeholder(w, h, styles.GlyphNone))
	}
}

// === Detail view ===

func (m Model) renderDetail() string {
	detail := m.ctrl.Detail()
	width := m.detailTextWidth()

	var lines []string
	lines = append(lines, styles.TitleStyle.Render(styles.Truncate(detail.Title(), width)))
	for _, f := range detail.Info() {
		value := styles.Truncate(f.Value, width-lipgloss.Width(f.Label)-2)
		lines = append(lines, styles.LabelStyle.Render(f.Label+":")+" "+styles.SubtitleStyle.Render(value))
	}
	lines = append(lines, "")
	lines = append(lines, m.synopsis.View())
	lines = append(lines, "")

	episodes := detail.Episodes()
	lines = append(lines, styles.LabelStyle.Render(fmt.Sprintf("Episodes (%d)", len(episodes))))

	listHeight := max(MinEpisodeLines, m.Height-ChromeHeight-len(lines)-SynopsisHeight+1)
	lines = append(lines, m.renderEpisodes(listHeight, width))

	text := strings.Join(lines, "\n")
	if m.opts.PosterWidth <= 0 {
		return text
	}
	return lipgloss.JoinHorizontal(lipgloss.Top, m.renderPoster(), "  ", text)
}

func (m Model) renderEpisodes(height, width int) string {
	detail := m.ctrl.Detail()
	if !detail.Loaded() {
		return styles.DimStyle.Render(m.spinner.View() + " Loading...")
	}
	episodes := detail.Episodes()
	if len(episodes) == 0 {
		return styles.DimStyle.Render("No episodes")
	}

	offset := 0
	if m.epCursor >= height {
		offset = m.epCursor - height + 1
	}

	var out []string
	for i := offset; i < len(episodes) && i < offset+height; i++ {
		ep := episodes[i]
		label := styles.Truncate(ep.Label(), width-4)
		if ep.ProviderID != "" && ep.ProviderID == m.resolving {
			label = m.spinner.View() + " " + label
		}
		if i == m.epCursor {
			out = append(out, styles.SelectedItemStyle.Render(label))
		} else {
			out = append(out, styles.NormalItemStyle.Render(label))
		}
	}
	return strings.Join(out, "\n")
}

func (m Model) renderPoster() string {
	w, h := m.opts.PosterWidth, m.opts.PosterHeight
	img, state := m.ctrl.Detail().Poster()
	switch state {
	case nav.PosterLoaded:
		return components.RenderImage(img.Img, w, h)
	case nav.PosterNoImage:
		return styles.DimStyle.Render(components.Placeholder(w, h, "No image"))
	case nav.PosterFailed:
		return styles.DimStyle.Render(components.Placeholder(w, h, styles.GlyphEmpty))
	default:
		return styles.DimStyle.Render(components.Placeholder(w, h, styles.GlyphLoading))
	}
}

// === Footer ===

func (m Model) renderFooter() string {
	// Left side: spinner while work is outstanding, then the status line
	status, isErr := m.ctrl.Status()
	busy := m.ctrl.Busy() || m.ctrl.Search().PendingThumbnails() > 0

	var left string
	switch {
	case isErr:
		left = styles.ErrorStyle.Render(status)
	case busy:
		left = m.spinner.View() + " " + styles.DimStyle.Render(status)
	default:
		left = styles.DimStyle.Render(status)
	}

	// Right side: pool stats and hints
	var parts []string
	if m.opts.Stats != nil {
		s := m.opts.Stats()
		parts = append(parts, styles.DimStyle.Render(fmt.Sprintf("%d/%d busy · %d queued", s.Active, s.Workers, s.Pending)))
	}
	parts = append(parts, m.hints()...)
	right := strings.Join(parts, "  ")

	leftWidth := lipgloss.Width(left)
	rightWidth := lipgloss.Width(right)
	if leftWidth+rightWidth+1 > m.Width {
		return lipgloss.NewStyle().MaxWidth(m.Width).Render(left)
	}
	return left + strings.Repeat(" ", m.Width-leftWidth-rightWidth) + right
}

func (m Model) hints() []string {
	hint := func(k, desc string) string {
		return styles.HelpKeyStyle.Render(k) + styles.HelpDescStyle.Render(" "+desc)
	}
	if m.ctrl.State().ShowsDetail() {
		return []string{hint("enter", "play"), hint("esc", "back"), hint("q", "quit")}
	}
	switch m.focus {
	case focusInput:
		return []string{hint("tab", "complete"), hint("enter", "search")}
	case focusFilter:
		return []string{hint("esc", "clear")}
	}
	return []string{hint("/", "filter"), hint("s", "search"), hint("q", "quit")}
}
