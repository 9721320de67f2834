package tui

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mmcdole/anikino/internal/domain"
	"github.com/mmcdole/anikino/internal/nav"
	"github.com/mmcdole/anikino/internal/task"
)

type stubCatalog struct{}

func (stubCatalog) Search(_ context.Context, keyword string) ([]domain.CatalogEntry, error) {
	return []domain.CatalogEntry{
		{ID: "frieren", Title: "Frieren: Beyond Journey's End"},
		{ID: "dungeon", Title: "Delicious in Dungeon"},
	}, nil
}

func (stubCatalog) Details(_ context.Context, itemID string) (*domain.DetailRecord, error) {
	return &domain.DetailRecord{
		ID:        itemID,
		Title:     "Frieren: Beyond Journey's End",
		Summary:   "An elf mage outlives her party.",
		ExtraInfo: []domain.InfoField{{Label: "Status", Value: "Completed"}},
		Episodes: []domain.Episode{
			{Number: "1", Title: "The Journey's End", ProviderID: "p1"},
			{Number: "2", Title: "It Didn't Have to Be Magic...", ProviderID: "p2"},
		},
	}, nil
}

func (stubCatalog) ResolveVideo(_ context.Context, providerID, _ string) (domain.VideoLocation, error) {
	return domain.VideoLocation{LocalPlaylist: "/tmp/" + providerID + ".m3u8", DownloadPath: "/tmp/" + providerID + ".ts"}, nil
}

type stubSuggester []string

func (s stubSuggester) Suggest(string) []string { return s }

func newTestModel(t *testing.T) (Model, *Bridge) {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	bridge := NewBridge()
	router := task.NewRouter(bridge, logger)
	pool := task.NewPool(2, router, logger)
	pool.Start(context.Background())
	t.Cleanup(func() {
		pool.Stop()
		bridge.Close()
	})

	ctrl := nav.NewController(pool, nav.Options{Catalog: stubCatalog{}, Logger: logger})
	m := NewModel(ctrl, bridge, Options{
		PosterWidth: 10, PosterHeight: 5,
		Suggester: stubSuggester{"frieren", "dungeon meshi"},
		Stats:     pool.Stats,
		Logger:    logger,
	})
	updated, _ := m.Update(tea.WindowSizeMsg{Width: 100, Height: 30})
	return updated.(Model), bridge
}

// pump runs dispatched consumers on the test goroutine until the
// controller has nothing outstanding
func pump(t *testing.T, m Model, bridge *Bridge) Model {
	t.Helper()
	for m.ctrl.Busy() {
		msgs := make(chan tea.Msg, 1)
		go func() { msgs <- bridge.Next()() }()

		select {
		case msg := <-msgs:
			updated, _ := m.Update(msg)
			m = updated.(Model)
		case <-time.After(2 * time.Second):
			t.Fatal("timed out waiting for a dispatched consumer")
		}
	}
	return m
}

func press(m Model, keys ...tea.KeyMsg) Model {
	for _, k := range keys {
		updated, _ := m.Update(k)
		m = updated.(Model)
	}
	return m
}

func typeText(m Model, s string) Model {
	return press(m, tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s)})
}

var (
	enter = tea.KeyMsg{Type: tea.KeyEnter}
	esc   = tea.KeyMsg{Type: tea.KeyEsc}
	down  = tea.KeyMsg{Type: tea.KeyDown}
	tab   = tea.KeyMsg{Type: tea.KeyTab}
)

func TestSearchThenOpenDetailThenBack(t *testing.T) {
	m, bridge := newTestModel(t)

	m = typeText(m, "frieren")
	m = press(m, enter)
	assert.Equal(t, focusResults, m.focus)
	m = pump(t, m, bridge)

	view := m.View()
	assert.Contains(t, view, "Frieren: Beyond Journey's End")
	assert.Contains(t, view, "Delicious in Dungeon")
	assert.Contains(t, view, `2 results for "frieren"`)

	m = press(m, enter)
	assert.Equal(t, nav.StateDetail, m.ctrl.State())
	assert.Contains(t, m.View(), "Loading...")

	m = pump(t, m, bridge)
	view = m.View()
	assert.Contains(t, view, "Status:")
	assert.Contains(t, view, "1 - The Journey's End")
	assert.Contains(t, view, "An elf mage")

	m = press(m, esc)
	assert.Equal(t, nav.StateSearch, m.ctrl.State())
	assert.Equal(t, focusResults, m.focus)
}

func TestEpisodeSelectionResolves(t *testing.T) {
	m, bridge := newTestModel(t)
	m = typeText(m, "frieren")
	m = pump(t, press(m, enter), bridge)
	m = pump(t, press(m, enter), bridge)

	m = press(m, down)
	assert.Equal(t, 1, m.epCursor)

	m = press(m, enter)
	assert.Equal(t, nav.StatePlayerPending, m.ctrl.State())
	assert.Equal(t, "p2", m.resolving)

	m = pump(t, m, bridge)
	assert.Equal(t, nav.StateDetail, m.ctrl.State())
	assert.Empty(t, m.resolving)
	status, isErr := m.ctrl.Status()
	assert.Equal(t, "Downloaded to /tmp/p2.ts", status)
	assert.False(t, isErr)
}

func TestEmptyKeywordKeepsInputFocus(t *testing.T) {
	m, _ := newTestModel(t)

	m = press(m, enter)
	assert.Equal(t, focusInput, m.focus)
	status, isErr := m.ctrl.Status()
	assert.NotEmpty(t, status)
	assert.True(t, isErr)
	assert.False(t, m.ctrl.Busy())
}

func TestTabAcceptsSuggestion(t *testing.T) {
	m, _ := newTestModel(t)
	require.Len(t, m.suggestions, 2)

	m = press(m, down, down, tab)
	assert.Equal(t, "dungeon meshi", m.input.Value())
}

func TestFilterNarrowsRows(t *testing.T) {
	m, bridge := newTestModel(t)
	m = typeText(m, "anime")
	m = pump(t, press(m, enter), bridge)
	require.Len(t, m.visible, 2)

	m = typeText(m, "/")
	assert.Equal(t, focusFilter, m.focus)
	m = typeText(m, "dungeon")
	assert.Equal(t, []int{1}, m.visible)

	m = press(m, esc)
	assert.Len(t, m.visible, 2)
	assert.Equal(t, focusResults, m.focus)
}

func TestBridgeClosedStopsDelivery(t *testing.T) {
	bridge := NewBridge()
	bridge.Close()
	assert.False(t, bridge.Dispatch(func() {}))
	assert.IsType(t, bridgeClosedMsg{}, bridge.Next()())
}
