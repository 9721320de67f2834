package nav

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/mmcdole/anikino/internal/domain"
	"github.com/mmcdole/anikino/internal/task"
)

// Options wires the controller's collaborators
type Options struct {
	Catalog  Catalog
	Thumbs   domain.ImageFetcher // Search row icons
	Posters  domain.ImageFetcher // Detail poster; defaults to Thumbs
	Player   domain.Player       // Optional
	Autoplay bool                // Launch the local playlist after a resolve
	Timeouts Timeouts
	Observer Observer
	Logger   *slog.Logger
}

// Controller is the navigation state machine. It turns user actions into
// tasks and applies task outcomes to the view-models.
//
// Every state-changing method and every consumer it registers runs on the
// consuming context, so no locking is needed. A generation counter is bumped
// whenever the view a task was started for is abandoned; outcomes tagged with
// an older generation, or whose handle no longer matches the slot's pending
// task, are discarded.
type Controller struct {
	submit   Submitter
	catalog  Catalog
	player   domain.Player
	autoplay bool
	timeouts Timeouts
	observer Observer
	logger   *slog.Logger

	state      State
	generation uint64
	status     string
	statusErr  bool

	search *SearchModel
	detail *DetailModel

	// One outstanding task per logical slot
	pendingSearch task.Handle
	pendingDetail task.Handle
	pendingVideo  task.Handle

	pendingKeyword string
}

// NewController creates a controller in the Search state
func NewController(submit Submitter, opts Options) *Controller {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	timeouts := opts.Timeouts
	if timeouts == (Timeouts{}) {
		timeouts = DefaultTimeouts()
	}
	posters := opts.Posters
	if posters == nil {
		posters = opts.Thumbs
	}

	c := &Controller{
		submit:   submit,
		catalog:  opts.Catalog,
		player:   opts.Player,
		autoplay: opts.Autoplay,
		timeouts: timeouts,
		observer: opts.Observer,
		logger:   logger,
		state:    StateSearch,
	}
	c.search = newSearchModel(submit, opts.Thumbs, timeouts.Image, logger, c.changed)
	c.detail = newDetailModel(submit, posters, timeouts.Image, logger, c.changed)
	return c
}

// === User actions ===

// SubmitSearch clears the result list and starts a keyword search. An empty
// keyword is rejected with domain.ErrEmptyKeyword and no task is created.
// From the detail view it returns to Search first.
func (c *Controller) SubmitSearch(keyword string) error {
	keyword = strings.TrimSpace(keyword)
	if keyword == "" {
		c.reject("submit search", domain.ErrEmptyKeyword)
		return domain.ErrEmptyKeyword
	}

	if c.state != StateSearch {
		c.toSearch()
	}
	c.generation++
	// Rows from the previous keyword must not outlive the new request
	c.search.clear()
	c.changed(ChangeResults)

	t := searchTask(c.catalog, keyword, c.timeouts.Search).InSlot(slotSearch, c.generation)
	c.pendingKeyword = keyword
	c.pendingSearch = c.submit.Submit(t, c.onSearch)
	c.logger.Info("search submitted", "keyword", keyword, "task", c.pendingSearch.String())

	c.setStatus(fmt.Sprintf("Searching for %q...", keyword), false)
	return nil
}

// SelectEntry opens the detail view for itemID. The placeholder is shown
// immediately; the record arrives with the DetailFetch outcome.
func (c *Controller) SelectEntry(itemID string) error {
	itemID = strings.TrimSpace(itemID)
	if itemID == "" {
		err := fmt.Errorf("%w: no title selected", domain.ErrUserInput)
		c.reject("select entry", err)
		return err
	}

	c.generation++
	c.pendingSearch = task.Handle{}
	c.pendingVideo = task.Handle{}
	c.state = StateDetail
	c.detail.placeholder(itemID)
	c.changed(ChangeNavigated)

	t := detailTask(c.catalog, itemID, c.timeouts.Detail).InSlot(slotDetail, c.generation)
	c.pendingDetail = c.submit.Submit(t, c.onDetail)
	c.logger.Info("detail requested", "item", itemID, "task", c.pendingDetail.String())

	c.setStatus("Loading details...", false)
	return nil
}

// SelectEpisode resolves an episode of the open title. It is a no-op
// returning a domain.ErrUserInput error when no title is open, the provider
// id is empty, or another episode is still resolving.
func (c *Controller) SelectEpisode(providerID string) error {
	itemID := c.detail.ItemID()
	providerID = strings.TrimSpace(providerID)

	switch {
	case c.state == StatePlayerPending:
		c.reject("select episode", domain.ErrResolveBusy)
		return domain.ErrResolveBusy
	case c.state != StateDetail || itemID == "":
		c.reject("select episode", domain.ErrNoActiveItem)
		return domain.ErrNoActiveItem
	case providerID == "":
		c.reject("select episode", domain.ErrNoEpisode)
		return domain.ErrNoEpisode
	}

	c.state = StatePlayerPending
	c.changed(ChangeNavigated)

	t := videoTask(c.catalog, providerID, itemID, c.timeouts.Video).InSlot(slotVideo, c.generation)
	c.pendingVideo = c.submit.Submit(t, c.onVideo)
	c.logger.Info("video resolve requested", "item", itemID, "provider", providerID, "task", c.pendingVideo.String())

	label := providerID
	if ep, ok := c.detail.Episode(providerID); ok {
		label = ep.Label()
	}
	c.setStatus(fmt.Sprintf("Resolving %s...", label), false)
	return nil
}

// GoBack returns to Search from any detail state. Outstanding detail, poster
// and video tasks are abandoned.
func (c *Controller) GoBack() {
	if c.state == StateSearch {
		return
	}
	c.toSearch()
	c.setStatus("", false)
}

// === Task outcomes ===

func (c *Controller) onSearch(ev task.Event) {
	if !c.current(ev, c.pendingSearch) {
		return
	}
	c.pendingSearch = task.Handle{}
	keyword := c.pendingKeyword

	if !ev.OK() {
		c.failed("search failed", ev, ev.Err, "keyword", keyword)
		return
	}

	entries, ok := ev.Payload.([]domain.CatalogEntry)
	if !ok && ev.Payload != nil {
		err := domain.ParseError("search", fmt.Errorf("unexpected payload %T", ev.Payload))
		c.setStatus(domain.Reason(err), true)
		return
	}

	c.search.load(keyword, entries, c.generation)
	n := c.search.Len()
	switch n {
	case 0:
		c.setStatus(fmt.Sprintf("No results for %q", keyword), false)
	case 1:
		c.setStatus(fmt.Sprintf("1 result for %q", keyword), false)
	default:
		c.setStatus(fmt.Sprintf("%d results for %q", n, keyword), false)
	}
	c.logger.Info("search results applied", "keyword", keyword, "results", n, "duration", ev.Duration)
	c.changed(ChangeResults)
}

func (c *Controller) onDetail(ev task.Event) {
	if !c.current(ev, c.pendingDetail) {
		return
	}
	c.pendingDetail = task.Handle{}

	var err error
	rec, ok := ev.Payload.(*domain.DetailRecord)
	switch {
	case !ev.OK():
		err = ev.Err
	case !ok || rec.IsEmpty():
		err = domain.ParseError("details", errors.New("no details returned"))
	}
	if err != nil {
		c.toSearch()
		c.failed("detail fetch failed", ev, err)
		return
	}

	if rec.ID == "" {
		rec.ID = c.detail.ItemID()
	}
	c.detail.populate(rec, c.generation)
	c.logger.Info("detail applied", "item", rec.ID, "episodes", len(rec.Episodes), "duration", ev.Duration)
	c.setStatus(fmt.Sprintf("Loaded %q", rec.Title), false)
	c.changed(ChangeDetail)
}

func (c *Controller) onVideo(ev task.Event) {
	if !c.current(ev, c.pendingVideo) {
		return
	}
	c.pendingVideo = task.Handle{}

	if !ev.OK() {
		c.toSearch()
		c.failed("video resolve failed", ev, ev.Err)
		c.changed(ChangeVideo)
		return
	}

	loc, _ := ev.Payload.(domain.VideoLocation)
	c.state = StateDetail

	if loc.DownloadPath != "" {
		c.setStatus("Downloaded to "+loc.DownloadPath, false)
	} else {
		c.setStatus("Download failed", true)
	}
	c.logger.Info("video resolved", "playlist", loc.LocalPlaylist, "download", loc.DownloadPath, "duration", ev.Duration)

	if c.autoplay && c.player != nil && loc.LocalPlaylist != "" {
		if err := c.player.Launch(loc.LocalPlaylist); err != nil {
			c.logger.Error("failed to launch player", "target", loc.LocalPlaylist, "error", err)
			c.setStatus("Player failed: "+err.Error(), true)
		}
	}
	c.changed(ChangeVideo)
}

// current reports whether ev is the outstanding task of its slot in the
// current generation. Anything else was superseded and is dropped.
func (c *Controller) current(ev task.Event, pending task.Handle) bool {
	if pending.IsZero() || ev.Handle.ID != pending.ID || ev.Handle.Generation != c.generation {
		c.logger.Debug("discarding stale result",
			"task", ev.Handle.String(),
			"generation", ev.Handle.Generation,
			"current", c.generation)
		return false
	}
	return true
}

// === Transitions ===

// toSearch abandons the detail view and everything in flight for it
func (c *Controller) toSearch() {
	c.generation++
	c.state = StateSearch
	c.pendingDetail = task.Handle{}
	c.pendingVideo = task.Handle{}
	c.detail.clear()
	c.changed(ChangeNavigated)
}

// failed logs a task failure and shows its reason. Transient failures
// suggest a retry.
func (c *Controller) failed(msg string, ev task.Event, err error, attrs ...any) {
	transient := domain.IsTransient(err)
	attrs = append(attrs, "task", ev.Handle.String(), "transient", transient, "error", err)
	c.logger.Warn(msg, attrs...)

	reason := domain.Reason(err)
	if transient {
		reason += retryHint
	}
	c.setStatus(reason, true)
}

func (c *Controller) reject(action string, err error) {
	c.logger.Info("action rejected", "action", action, "state", c.state.String(), "reason", err)
	c.setStatus(domain.Reason(err), true)
}

func (c *Controller) setStatus(s string, isErr bool) {
	c.status = s
	c.statusErr = isErr
	c.changed(ChangeStatus)
}

func (c *Controller) changed(kind ChangeKind) {
	if c.observer != nil {
		c.observer(Change{Kind: kind, State: c.state})
	}
}

// === Projection ===

// State returns the active state
func (c *Controller) State() State {
	return c.state
}

// ItemID returns the open title, empty in Search
func (c *Controller) ItemID() string {
	return c.detail.ItemID()
}

// Status returns the status line and whether it reports a failure
func (c *Controller) Status() (string, bool) {
	return c.status, c.statusErr
}

// Generation returns the navigation generation
func (c *Controller) Generation() uint64 {
	return c.generation
}

// Busy reports whether a search, detail or video task is outstanding
func (c *Controller) Busy() bool {
	return !c.pendingSearch.IsZero() || !c.pendingDetail.IsZero() || !c.pendingVideo.IsZero()
}

// Search returns the search view-model
func (c *Controller) Search() *SearchModel {
	return c.search
}

// Detail returns the detail view-model
func (c *Controller) Detail() *DetailModel {
	return c.detail
}
