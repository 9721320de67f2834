package nav

import (
	"log/slog"
	"time"

	"github.com/mmcdole/anikino/internal/domain"
	"github.com/mmcdole/anikino/internal/task"
)

// PosterState tracks the detail poster slot
type PosterState int

const (
	PosterLoading PosterState = iota // Placeholder or fetch in flight
	PosterLoaded                     // Poster holds a picture
	PosterNoImage                    // Record has no poster URL
	PosterFailed                     // Fetch finished without a picture
)

// DetailModel owns the detail record for the lifetime of the Detail state
// and the single poster slot
type DetailModel struct {
	submit  Submitter
	images  domain.ImageFetcher
	timeout time.Duration
	logger  *slog.Logger
	notify  func(ChangeKind)

	itemID      string
	record      *domain.DetailRecord
	poster      domain.Image
	posterState PosterState
	posterTask  task.Handle
}

func newDetailModel(submit Submitter, images domain.ImageFetcher, timeout time.Duration, logger *slog.Logger, notify func(ChangeKind)) *DetailModel {
	return &DetailModel{
		submit:  submit,
		images:  images,
		timeout: timeout,
		logger:  logger,
		notify:  notify,
	}
}

// placeholder shows itemID with empty fields while its record loads
func (m *DetailModel) placeholder(itemID string) {
	m.itemID = itemID
	m.record = nil
	m.poster = domain.EmptyImage
	m.posterState = PosterLoading
	m.posterTask = task.Handle{}
}

// populate projects rec and starts the poster fetch, if any
func (m *DetailModel) populate(rec *domain.DetailRecord, generation uint64) {
	m.record = rec
	m.poster = domain.EmptyImage
	m.posterTask = task.Handle{}

	if rec.PosterURL == "" || m.images == nil {
		m.posterState = PosterNoImage
		return
	}

	m.posterState = PosterLoading
	t := imageTask(m.images, rec.PosterURL, m.timeout).InSlot(slotPoster, generation)
	m.posterTask = m.submit.Submit(t, m.onPoster)
}

// onPoster applies the poster outcome if it belongs to the current record
func (m *DetailModel) onPoster(ev task.Event) {
	if m.posterTask.IsZero() || m.posterTask.ID != ev.Handle.ID {
		m.logger.Debug("discarding stale poster", "task", ev.Handle.String())
		return
	}
	m.posterTask = task.Handle{}

	m.poster = imageFrom(ev)
	if m.poster.IsEmpty() {
		m.posterState = PosterFailed
	} else {
		m.posterState = PosterLoaded
	}
	m.notify(ChangePoster)
}

// clear forgets the record; a poster fetch still in flight is discarded
func (m *DetailModel) clear() {
	m.itemID = ""
	m.record = nil
	m.poster = domain.EmptyImage
	m.posterState = PosterLoading
	m.posterTask = task.Handle{}
}

// ItemID returns the title being shown
func (m *DetailModel) ItemID() string {
	return m.itemID
}

// Loaded reports whether the record has arrived
func (m *DetailModel) Loaded() bool {
	return m.record != nil
}

// Record returns the detail record, nil while the placeholder is shown
func (m *DetailModel) Record() *domain.DetailRecord {
	return m.record
}

// Title returns the title, or a placeholder while loading
func (m *DetailModel) Title() string {
	if m.record == nil {
		return "Loading..."
	}
	return m.record.Title
}

// Summary returns the synopsis, empty while loading
func (m *DetailModel) Summary() string {
	if m.record == nil {
		return ""
	}
	return m.record.Summary
}

// Info returns the extra info lines in server order
func (m *DetailModel) Info() []domain.InfoField {
	if m.record == nil {
		return nil
	}
	return m.record.ExtraInfo
}

// Episodes returns the episode list in server order
func (m *DetailModel) Episodes() []domain.Episode {
	if m.record == nil {
		return nil
	}
	return m.record.Episodes
}

// Episode returns the episode with providerID
func (m *DetailModel) Episode(providerID string) (domain.Episode, bool) {
	for _, ep := range m.Episodes() {
		if ep.ProviderID == providerID {
			return ep, true
		}
	}
	return domain.Episode{}, false
}

// Poster returns the poster image and its slot state
func (m *DetailModel) Poster() (domain.Image, PosterState) {
	return m.poster, m.posterState
}
