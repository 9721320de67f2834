package nav

import (
	"log/slog"
	"strings"
	"time"

	"github.com/sahilm/fuzzy"

	"github.com/mmcdole/anikino/internal/domain"
	"github.com/mmcdole/anikino/internal/task"
)

// IconState tracks a row's thumbnail
type IconState int

const (
	IconNone    IconState = iota // Entry has no thumbnail URL
	IconLoading                  // Fetch in flight
	IconLoaded                   // Icon holds a picture
	IconEmpty                    // Fetch finished without a picture
)

// Row is one renderable search result
type Row struct {
	ID        string
	Label     string
	Icon      domain.Image
	IconState IconState
}

// SearchModel projects search results into rows and fans out one thumbnail
// fetch per row. Thumbnail results are matched to rows through an explicit
// row-id to handle map, so a fetch from an older result list never lands on
// a newer row.
type SearchModel struct {
	submit  Submitter
	images  domain.ImageFetcher
	timeout time.Duration
	logger  *slog.Logger
	notify  func(ChangeKind)

	keyword string
	entries []domain.CatalogEntry // aligned with rows
	rows    []Row
	index   map[string]int         // row id -> position in rows
	thumbs  map[string]task.Handle // row id -> outstanding thumbnail fetch
}

func newSearchModel(submit Submitter, images domain.ImageFetcher, timeout time.Duration, logger *slog.Logger, notify func(ChangeKind)) *SearchModel {
	return &SearchModel{
		submit:  submit,
		images:  images,
		timeout: timeout,
		logger:  logger,
		notify:  notify,
		index:   make(map[string]int),
		thumbs:  make(map[string]task.Handle),
	}
}

// load replaces the rows with entries in server order and starts their
// thumbnail fetches tagged with generation. Rows without a thumbnail URL stay
// iconless.
func (m *SearchModel) load(keyword string, entries []domain.CatalogEntry, generation uint64) {
	m.keyword = keyword
	m.entries = make([]domain.CatalogEntry, 0, len(entries))
	m.rows = make([]Row, 0, len(entries))
	m.index = make(map[string]int, len(entries))
	// Outstanding fetches for the old list are orphaned; their events miss the map
	m.thumbs = make(map[string]task.Handle)

	for _, e := range entries {
		if _, dup := m.index[e.ID]; dup {
			continue
		}
		m.index[e.ID] = len(m.rows)
		m.entries = append(m.entries, e)
		m.rows = append(m.rows, Row{ID: e.ID, Label: e.Title})
	}

	if m.images == nil {
		return
	}
	for i := range m.rows {
		row := &m.rows[i]
		url := m.entries[i].ThumbnailURL
		if url == "" {
			continue
		}
		row.IconState = IconLoading
		id := row.ID
		t := imageTask(m.images, url, m.timeout).InSlot(slotThumb+id, generation)
		m.thumbs[id] = m.submit.Submit(t, func(ev task.Event) {
			m.onThumbnail(id, ev)
		})
	}
}

// onThumbnail applies one thumbnail outcome if it is still the row's
// current fetch
func (m *SearchModel) onThumbnail(rowID string, ev task.Event) {
	current, ok := m.thumbs[rowID]
	if !ok || current.ID != ev.Handle.ID {
		m.logger.Debug("discarding stale thumbnail", "task", ev.Handle.String(), "row", rowID)
		return
	}
	delete(m.thumbs, rowID)

	pos, ok := m.index[rowID]
	if !ok {
		return
	}
	img := imageFrom(ev)
	row := &m.rows[pos]
	row.Icon = img
	if img.IsEmpty() {
		row.IconState = IconEmpty
	} else {
		row.IconState = IconLoaded
	}
	m.notify(ChangeThumbnail)
}

// clear drops all rows and orphans their fetches
func (m *SearchModel) clear() {
	m.load("", nil, 0)
}

// Keyword returns the keyword the rows belong to
func (m *SearchModel) Keyword() string {
	return m.keyword
}

// Rows returns the rows in server order
func (m *SearchModel) Rows() []Row {
	return m.rows
}

// Len returns the number of rows
func (m *SearchModel) Len() int {
	return len(m.rows)
}

// PendingThumbnails returns how many thumbnail fetches are outstanding
func (m *SearchModel) PendingThumbnails() int {
	return len(m.thumbs)
}

// Filter returns the row positions whose labels fuzzy-match query, best
// match first. An empty query matches every row in order.
func (m *SearchModel) Filter(query string) []int {
	if strings.TrimSpace(query) == "" {
		idx := make([]int, len(m.rows))
		for i := range idx {
			idx[i] = i
		}
		return idx
	}

	lower := make([]string, len(m.rows))
	for i, r := range m.rows {
		lower[i] = strings.ToLower(r.Label)
	}
	matches := fuzzy.Find(strings.ToLower(query), lower)

	idx := make([]int, len(matches))
	for i, match := range matches {
		idx[i] = match.Index
	}
	return idx
}
