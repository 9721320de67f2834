package tui

import (
	"log/slog"
	"strings"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/mmcdole/anikino/internal/nav"
	"github.com/mmcdole/anikino/internal/task"
	"github.com/mmcdole/anikino/internal/tui/styles"
)

// focus is the search-view widget receiving keys
type focus int

const (
	focusInput focus = iota
	focusResults
	focusFilter
)

// Layout constants
const (
	ChromeHeight    = 1 // Footer
	MaxSuggestions  = 5
	SynopsisHeight  = 6
	MinEpisodeLines = 3
	MinTextWidth    = 20
)

// Suggester completes search keywords from history
type Suggester interface {
	Suggest(prefix string) []string
}

// Options configures the model
type Options struct {
	Thumbnails   bool
	ThumbWidth   int // Cells
	ThumbHeight  int // Rows
	PosterWidth  int
	PosterHeight int

	Keyword   string // Searched on startup when set
	Suggester Suggester
	Stats     func() task.Stats
	Logger    *slog.Logger
}

// detailKey identifies what the synopsis viewport was last filled from
type detailKey struct {
	itemID string
	loaded bool
}

// Model is the main Bubble Tea model for the application. It renders the
// controller's projection and forwards user actions to it; all controller
// access happens inside Update.
type Model struct {
	ctrl   *nav.Controller
	bridge *Bridge
	opts   Options
	keys   KeyMap
	logger *slog.Logger

	// UI Components
	input    textinput.Model
	filter   textinput.Model
	spinner  spinner.Model
	synopsis viewport.Model

	// Search view state
	focus       focus
	suggestions []string
	suggestIdx  int    // -1 when none is highlighted
	visible     []int  // Filtered row positions
	cursor      int    // Index into visible
	rowsFor     string // Keyword the cursor belongs to

	// Detail view state
	shown     detailKey
	epCursor  int
	resolving string // Provider id of the episode being resolved

	// Dimensions
	Width  int
	Height int
	Ready  bool
}

// NewModel creates the model. The bridge must be the dispatcher the
// controller's router was built with.
func NewModel(ctrl *nav.Controller, bridge *Bridge, opts Options) Model {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	if opts.ThumbHeight <= 0 {
		opts.ThumbHeight = 1
	}

	input := textinput.New()
	input.Placeholder = "Search anime..."
	input.Prompt = "› "
	input.CharLimit = 120

	filter := textinput.New()
	filter.Prompt = "/ "
	filter.Placeholder = "filter results"

	sp := spinner.New(
		spinner.WithSpinner(spinner.Dot),
		spinner.WithStyle(styles.SpinnerStyle),
	)

	m := Model{
		ctrl:       ctrl,
		bridge:     bridge,
		opts:       opts,
		keys:       Keys,
		logger:     logger,
		input:      input,
		filter:     filter,
		spinner:    sp,
		synopsis:   viewport.New(MinTextWidth, SynopsisHeight),
		suggestIdx: -1,
	}

	if kw := strings.TrimSpace(opts.Keyword); kw != "" {
		m.input.SetValue(kw)
		m.focus = focusResults
	} else {
		m.focus = focusInput
		m.input.Focus()
		m.refreshSuggestions()
	}
	return m
}

// Init initializes the application
func (m Model) Init() tea.Cmd {
	cmds := []tea.Cmd{m.bridge.Next(), m.spinner.Tick, textinput.Blink}
	if kw := strings.TrimSpace(m.opts.Keyword); kw != "" {
		ctrl := m.ctrl
		cmds = append(cmds, func() tea.Msg {
			return dispatchMsg{fn: func() { _ = ctrl.SubmitSearch(kw) }}
		})
	}
	return tea.Batch(cmds...)
}

// Update handles all messages
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.Width = msg.Width
		m.Height = msg.Height
		m.Ready = true
		m.input.Width = max(10, msg.Width-4)
		m.filter.Width = max(10, msg.Width-4)
		m.layoutSynopsis()
		return m, nil

	case dispatchMsg:
		msg.fn()
		m.sync()
		return m, m.bridge.Next()

	case bridgeClosedMsg:
		return m, nil

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd

	case tea.KeyMsg:
		return m.handleKeyMsg(msg)
	}

	// Cursor blink and friends
	var cmds []tea.Cmd
	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	cmds = append(cmds, cmd)
	m.filter, cmd = m.filter.Update(msg)
	cmds = append(cmds, cmd)
	return m, tea.Batch(cmds...)
}

// === Key handling ===

func (m Model) handleKeyMsg(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if key.Matches(msg, m.keys.ForceQuit) {
		return m, tea.Quit
	}
	if m.ctrl.State().ShowsDetail() {
		return m.handleDetailKey(msg)
	}
	switch m.focus {
	case focusInput:
		return m.handleInputKey(msg)
	case focusFilter:
		return m.handleFilterKey(msg)
	}
	return m.handleResultsKey(msg)
}

func (m Model) handleInputKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.Enter):
		if err := m.ctrl.SubmitSearch(m.input.Value()); err == nil {
			m.input.Blur()
			m.focus = focusResults
			m.suggestions = nil
		}
		m.sync()
		return m, nil

	case key.Matches(msg, m.keys.Accept):
		if len(m.suggestions) > 0 {
			i := max(m.suggestIdx, 0)
			m.input.SetValue(m.suggestions[i])
			m.input.CursorEnd()
			m.refreshSuggestions()
		}
		return m, nil

	case msg.Type == tea.KeyUp:
		if m.suggestIdx > 0 {
			m.suggestIdx--
		}
		return m, nil

	case msg.Type == tea.KeyDown:
		if m.suggestIdx < len(m.suggestions)-1 {
			m.suggestIdx++
		}
		return m, nil

	case key.Matches(msg, m.keys.Escape):
		if m.ctrl.Search().Len() > 0 {
			m.input.Blur()
			m.focus = focusResults
		}
		return m, nil
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	m.refreshSuggestions()
	return m, cmd
}

func (m Model) handleFilterKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.Escape):
		m.filter.SetValue("")
		m.filter.Blur()
		m.focus = focusResults
		m.sync()
		return m, nil

	case key.Matches(msg, m.keys.Enter):
		m.filter.Blur()
		m.focus = focusResults
		return m, nil

	case msg.Type == tea.KeyUp:
		m.moveCursor(-1)
		return m, nil

	case msg.Type == tea.KeyDown:
		m.moveCursor(1)
		return m, nil
	}

	var cmd tea.Cmd
	m.filter, cmd = m.filter.Update(msg)
	m.cursor = 0
	m.sync()
	return m, cmd
}

func (m Model) handleResultsKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.Quit):
		return m, tea.Quit

	case key.Matches(msg, m.keys.Up):
		m.moveCursor(-1)

	case key.Matches(msg, m.keys.Down):
		m.moveCursor(1)

	case key.Matches(msg, m.keys.Enter):
		if row, ok := m.selectedRow(); ok {
			_ = m.ctrl.SelectEntry(row.ID)
			m.sync()
		}

	case key.Matches(msg, m.keys.Filter):
		m.focus = focusFilter
		cmd := m.filter.Focus()
		return m, cmd

	case key.Matches(msg, m.keys.Search):
		return m.focusInput()

	case key.Matches(msg, m.keys.Escape):
		if m.filter.Value() != "" {
			m.filter.SetValue("")
			m.sync()
		}
	}
	return m, nil
}

func (m Model) handleDetailKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	episodes := m.ctrl.Detail().Episodes()

	switch {
	case key.Matches(msg, m.keys.Quit):
		return m, tea.Quit

	case key.Matches(msg, m.keys.Back):
		m.ctrl.GoBack()
		m.resolving = ""
		m.sync()
		if m.ctrl.Search().Len() == 0 {
			return m.focusInput()
		}
		m.focus = focusResults

	case key.Matches(msg, m.keys.Search):
		m.ctrl.GoBack()
		m.resolving = ""
		m.sync()
		return m.focusInput()

	case key.Matches(msg, m.keys.Up):
		if m.epCursor > 0 {
			m.epCursor--
		}

	case key.Matches(msg, m.keys.Down):
		if m.epCursor < len(episodes)-1 {
			m.epCursor++
		}

	case key.Matches(msg, m.keys.PageUp):
		m.synopsis.SetYOffset(m.synopsis.YOffset - m.synopsis.Height)

	case key.Matches(msg, m.keys.PageDown):
		m.synopsis.SetYOffset(m.synopsis.YOffset + m.synopsis.Height)

	case key.Matches(msg, m.keys.Enter):
		if m.epCursor < len(episodes) {
			ep := episodes[m.epCursor]
			if err := m.ctrl.SelectEpisode(ep.ProviderID); err == nil {
				m.resolving = ep.ProviderID
			}
			m.sync()
		}
	}
	return m, nil
}

func (m Model) focusInput() (tea.Model, tea.Cmd) {
	m.focus = focusInput
	m.filter.Blur()
	m.input.CursorEnd()
	m.refreshSuggestions()
	cmd := m.input.Focus()
	return m, cmd
}

// === Projection sync ===

// sync refreshes derived view state after the controller changed
func (m *Model) sync() {
	search := m.ctrl.Search()
	if kw := search.Keyword(); kw != m.rowsFor {
		m.rowsFor = kw
		m.cursor = 0
		m.filter.SetValue("")
	}
	m.visible = search.Filter(m.filter.Value())
	m.cursor = clamp(m.cursor, 0, len(m.visible)-1)

	if m.ctrl.State() != nav.StatePlayerPending {
		m.resolving = ""
	}

	detail := m.ctrl.Detail()
	k := detailKey{itemID: detail.ItemID(), loaded: detail.Loaded()}
	if k != m.shown {
		m.shown = k
		m.epCursor = 0
		m.layoutSynopsis()
		m.synopsis.GotoTop()
	}
	m.epCursor = clamp(m.epCursor, 0, len(detail.Episodes())-1)
}

func (m *Model) moveCursor(delta int) {
	m.cursor = clamp(m.cursor+delta, 0, len(m.visible)-1)
}

func (m *Model) refreshSuggestions() {
	m.suggestIdx = -1
	if m.opts.Suggester == nil {
		m.suggestions = nil
		return
	}
	m.suggestions = m.opts.Suggester.Suggest(m.input.Value())
	if len(m.suggestions) > MaxSuggestions {
		m.suggestions = m.suggestions[:MaxSuggestions]
	}
}

func (m Model) selectedRow() (nav.Row, bool) {
	rows := m.ctrl.Search().Rows()
	if m.cursor < 0 || m.cursor >= len(m.visible) {
		return nav.Row{}, false
	}
	pos := m.visible[m.cursor]
	if pos < 0 || pos >= len(rows) {
		return nav.Row{}, false
	}
	return rows[pos], true
}

// layoutSynopsis sizes the synopsis viewport and refills it
func (m *Model) layoutSynopsis() {
	w := m.detailTextWidth()
	m.synopsis.Width = w
	m.synopsis.Height = SynopsisHeight
	summary := m.ctrl.Detail().Summary()
	if summary == "" {
		summary = styles.DimStyle.Render("No synopsis")
	}
	m.synopsis.SetContent(lipgloss.NewStyle().Width(w).Render(summary))
}

func (m Model) detailTextWidth() int {
	return max(MinTextWidth, m.Width-m.opts.PosterWidth-3)
}

func clamp(v, lo, hi int) int {
	if hi < lo {
		return lo
	}
	return min(max(v, lo), hi)
}
