package nav

import (
	"context"
	"errors"
	"image"
	"io"
	"log/slog"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mmcdole/anikino/internal/domain"
	"github.com/mmcdole/anikino/internal/task"
)

func setupTestLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// === Fakes ===

// gate lets a test hold a fake call until it is released
type gate struct {
	mu    sync.Mutex
	gates map[string]chan struct{}
}

func (g *gate) hold(key string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.gates == nil {
		g.gates = make(map[string]chan struct{})
	}
	g.gates[key] = make(chan struct{})
}

func (g *gate) release(key string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	close(g.gates[key])
}

func (g *gate) wait(ctx context.Context, key string) {
	g.mu.Lock()
	ch, ok := g.gates[key]
	g.mu.Unlock()
	if !ok {
		return
	}
	select {
	case <-ch:
	case <-ctx.Done():
	}
}

type fakeCatalog struct {
	gate
	searches atomic.Int32
	details  atomic.Int32
	videos   atomic.Int32

	search func(keyword string) ([]domain.CatalogEntry, error)
	detail func(itemID string) (*domain.DetailRecord, error)
	video  func(providerID, itemID string) (domain.VideoLocation, error)
}

func (f *fakeCatalog) Search(ctx context.Context, keyword string) ([]domain.CatalogEntry, error) {
	f.searches.Add(1)
	f.wait(ctx, "search:"+keyword)
	return f.search(keyword)
}

func (f *fakeCatalog) Details(ctx context.Context, itemID string) (*domain.DetailRecord, error) {
	f.details.Add(1)
	f.wait(ctx, "detail:"+itemID)
	return f.detail(itemID)
}

func (f *fakeCatalog) ResolveVideo(ctx context.Context, providerID, itemID string) (domain.VideoLocation, error) {
	f.videos.Add(1)
	f.wait(ctx, "video:"+providerID)
	return f.video(providerID, itemID)
}

// fakeImages returns a square picture sized per URL in sizes, and the empty
// sentinel for unknown URLs
type fakeImages struct {
	gate
	sizes map[string]int
}

func (f *fakeImages) Fetch(ctx context.Context, url string) domain.Image {
	f.wait(ctx, url)
	w, ok := f.sizes[url]
	if !ok {
		return domain.EmptyImage
	}
	return domain.Image{Img: image.NewRGBA(image.Rect(0, 0, w, w))}
}

type fakePlayer struct {
	launched []string
	err      error
}

func (f *fakePlayer) Launch(target string) error {
	f.launched = append(f.launched, target)
	return f.err
}

func frierenEntries() []domain.CatalogEntry {
	return []domain.CatalogEntry{
		{ID: "abc123", Title: "Frieren: Beyond Journey's End", ThumbnailURL: "img/a"},
		{ID: "def456", Title: "Frieren Mini", ThumbnailURL: "img/b"},
	}
}

func frierenRecord(id string) *domain.DetailRecord {
	return &domain.DetailRecord{
		ID:        id,
		Title:     "Frieren " + id,
		Summary:   "An elf mage outlives her party.",
		ExtraInfo: []domain.InfoField{{Label: "Studio", Value: "Madhouse"}},
		PosterURL: "img/poster",
		Episodes: []domain.Episode{
			{Number: "1", Title: "The Journey's End", ProviderID: "ep1"},
			{Number: "2", Title: "It Didn't Have to Be Magic", ProviderID: "ep2"},
		},
	}
}

// === Harness ===

type harness struct {
	t       *testing.T
	loop    *task.Loop
	pool    *task.Pool
	ctrl    *Controller
	catalog *fakeCatalog
	images  *fakeImages
	player  *fakePlayer
}

func newHarness(t *testing.T, autoplay bool) *harness {
	t.Helper()
	logger := setupTestLogger()

	catalog := &fakeCatalog{
		search: func(string) ([]domain.CatalogEntry, error) { return frierenEntries(), nil },
		detail: func(id string) (*domain.DetailRecord, error) { return frierenRecord(id), nil },
		video: func(providerID, itemID string) (domain.VideoLocation, error) {
			return domain.VideoLocation{
				LocalPlaylist: "/out/" + providerID + ".m3u8",
				DownloadPath:  "/out/" + providerID + ".mp4",
			}, nil
		},
	}
	images := &fakeImages{sizes: map[string]int{"img/a": 10, "img/b": 20, "img/poster": 30}}
	player := &fakePlayer{}

	loop := task.NewLoop(logger)
	loop.Start(context.Background())
	router := task.NewRouter(loop, logger)
	pool := task.NewPool(4, router, logger)
	pool.Start(context.Background())

	t.Cleanup(func() {
		pool.Stop()
		loop.Stop()
	})

	ctrl := NewController(pool, Options{
		Catalog:  catalog,
		Thumbs:   images,
		Player:   player,
		Autoplay: autoplay,
		Timeouts: Timeouts{Search: time.Second, Detail: time.Second, Image: time.Second, Video: time.Second},
		Logger:   logger,
	})

	return &harness{t: t, loop: loop, pool: pool, ctrl: ctrl, catalog: catalog, images: images, player: player}
}

// do runs fn on the consuming context and waits for it
func (h *harness) do(fn func(c *Controller)) {
	h.t.Helper()
	require.True(h.t, h.loop.Do(func() { fn(h.ctrl) }))
}

// settle waits until every submitted task has been delivered and released
func (h *harness) settle() {
	h.t.Helper()
	require.Eventually(h.t, func() bool {
		s := h.pool.Stats()
		return s.InFlight == 0 && s.Active == 0 && s.Pending == 0
	}, 2*time.Second, 5*time.Millisecond)
	// Flush anything still queued on the loop
	h.do(func(*Controller) {})
}

// eventually polls cond on the consuming context
func (h *harness) eventually(cond func(c *Controller) bool) {
	h.t.Helper()
	require.Eventually(h.t, func() bool {
		var ok bool
		h.loop.Do(func() { ok = cond(h.ctrl) })
		return ok
	}, 2*time.Second, 5*time.Millisecond)
}

func (h *harness) status() string {
	var s string
	h.do(func(c *Controller) { s, _ = c.Status() })
	return s
}

func (h *harness) state() State {
	var s State
	h.do(func(c *Controller) { s = c.State() })
	return s
}

// openDetail navigates to a populated detail view for id
func (h *harness) openDetail(id string) {
	h.t.Helper()
	h.do(func(c *Controller) { require.NoError(h.t, c.SelectEntry(id)) })
	h.settle()
	require.Equal(h.t, StateDetail, h.state())
}

// === Scenarios ===

func TestSearchPopulatesRowsInOrderWithIndependentIcons(t *testing.T) {
	h := newHarness(t, false)
	h.images.hold("img/a")
	h.images.hold("img/b")

	h.do(func(c *Controller) { require.NoError(t, c.SubmitSearch("Frieren")) })
	h.eventually(func(c *Controller) bool { return c.Search().Len() == 2 })

	h.do(func(c *Controller) {
		rows := c.Search().Rows()
		assert.Equal(t, "abc123", rows[0].ID)
		assert.Equal(t, "def456", rows[1].ID)
		assert.Equal(t, IconLoading, rows[0].IconState)
		assert.Equal(t, IconLoading, rows[1].IconState)
		status, isErr := c.Status()
		assert.Equal(t, `2 results for "Frieren"`, status)
		assert.False(t, isErr)
	})

	// Second row's icon can land first
	h.images.release("img/b")
	h.eventually(func(c *Controller) bool { return c.Search().Rows()[1].IconState == IconLoaded })
	h.do(func(c *Controller) {
		assert.Equal(t, IconLoading, c.Search().Rows()[0].IconState)
	})

	h.images.release("img/a")
	h.settle()
	h.do(func(c *Controller) {
		rows := c.Search().Rows()
		w, _ := rows[0].Icon.Size()
		assert.Equal(t, 10, w)
		w, _ = rows[1].Icon.Size()
		assert.Equal(t, 20, w)
		assert.Zero(t, c.Search().PendingThumbnails())
	})
}

func TestSearchCountMatchesStatus(t *testing.T) {
	h := newHarness(t, false)
	h.catalog.search = func(string) ([]domain.CatalogEntry, error) { return nil, nil }

	h.do(func(c *Controller) { require.NoError(t, c.SubmitSearch("nothing")) })
	h.settle()

	assert.Equal(t, `No results for "nothing"`, h.status())
	h.do(func(c *Controller) { assert.Zero(t, c.Search().Len()) })
}

func TestSearchFailureReportsReasonAndStays(t *testing.T) {
	h := newHarness(t, false)
	h.catalog.search = func(string) ([]domain.CatalogEntry, error) {
		return nil, domain.NetworkError("search", errors.New("connection refused"))
	}

	h.do(func(c *Controller) { require.NoError(t, c.SubmitSearch("frieren")) })
	h.settle()

	h.do(func(c *Controller) {
		status, isErr := c.Status()
		assert.Contains(t, status, "network request failed")
		assert.True(t, isErr)
		assert.Equal(t, StateSearch, c.State())
		assert.False(t, c.Busy())
	})
}

func TestNewSearchClearsPreviousRows(t *testing.T) {
	h := newHarness(t, false)
	h.do(func(c *Controller) { require.NoError(t, c.SubmitSearch("Frieren")) })
	h.settle()
	h.do(func(c *Controller) { require.Equal(t, 2, c.Search().Len()) })

	h.catalog.search = func(string) ([]domain.CatalogEntry, error) {
		return nil, domain.NetworkError("search", errors.New("connection refused"))
	}
	h.catalog.hold("search:Bocchi")

	h.do(func(c *Controller) {
		require.NoError(t, c.SubmitSearch("Bocchi"))
		assert.Zero(t, c.Search().Len())
		assert.Empty(t, c.Search().Keyword())
		assert.Zero(t, c.Search().PendingThumbnails())
		status, _ := c.Status()
		assert.Equal(t, `Searching for "Bocchi"...`, status)
	})

	h.catalog.release("search:Bocchi")
	h.settle()

	h.do(func(c *Controller) {
		status, isErr := c.Status()
		assert.True(t, isErr)
		assert.Contains(t, status, "connection refused")
		assert.Zero(t, c.Search().Len(), "rows of the previous keyword must not remain")
		assert.Empty(t, c.Search().Keyword())
	})
}

func TestThumbnailTasksCarrySearchGeneration(t *testing.T) {
	h := newHarness(t, false)
	h.images.hold("img/a")
	h.images.hold("img/b")

	h.do(func(c *Controller) { require.NoError(t, c.SubmitSearch("frieren")) })
	h.eventually(func(c *Controller) bool { return c.Search().Len() == 2 })

	h.do(func(c *Controller) {
		thumbs := c.Search().thumbs
		require.Len(t, thumbs, 2)
		for id, handle := range thumbs {
			assert.Equal(t, c.Generation(), handle.Generation, id)
			assert.Equal(t, slotThumb+id, handle.Slot)
		}
	})

	h.images.release("img/a")
	h.images.release("img/b")
	h.settle()
}

func TestEmptyKeywordCreatesNoTask(t *testing.T) {
	h := newHarness(t, false)

	h.do(func(c *Controller) {
		assert.ErrorIs(t, c.SubmitSearch("   "), domain.ErrEmptyKeyword)
		status, isErr := c.Status()
		assert.Equal(t, domain.ErrEmptyKeyword.Error(), status)
		assert.True(t, isErr)
		assert.False(t, c.Busy())
	})

	assert.Zero(t, h.pool.Stats().Submitted)
	assert.Zero(t, h.catalog.searches.Load())
}

func TestSelectEntryShowsPlaceholderFirst(t *testing.T) {
	h := newHarness(t, false)
	h.catalog.hold("detail:abc123")

	h.do(func(c *Controller) {
		require.NoError(t, c.SelectEntry("abc123"))
		assert.Equal(t, StateDetail, c.State())
		assert.Equal(t, "abc123", c.ItemID())
		assert.False(t, c.Detail().Loaded())
		assert.Equal(t, "Loading...", c.Detail().Title())
		_, poster := c.Detail().Poster()
		assert.Equal(t, PosterLoading, poster)
	})

	h.catalog.release("detail:abc123")
	h.settle()

	h.do(func(c *Controller) {
		assert.True(t, c.Detail().Loaded())
		assert.Equal(t, "Frieren abc123", c.Detail().Title())
		assert.Len(t, c.Detail().Episodes(), 2)
		img, poster := c.Detail().Poster()
		assert.Equal(t, PosterLoaded, poster)
		assert.False(t, img.IsEmpty())
	})
}

func TestDetailFailureRevertsToSearch(t *testing.T) {
	h := newHarness(t, false)
	h.catalog.detail = func(string) (*domain.DetailRecord, error) {
		return nil, domain.NetworkError("details", context.DeadlineExceeded)
	}

	h.do(func(c *Controller) { require.NoError(t, c.SelectEntry("abc123")) })
	h.settle()

	h.do(func(c *Controller) {
		assert.Equal(t, StateSearch, c.State())
		assert.Empty(t, c.ItemID())
		status, isErr := c.Status()
		assert.Equal(t, "request timed out (try again)", status)
		assert.True(t, isErr)
	})
}

func TestEmptyDetailRecordIsFailure(t *testing.T) {
	h := newHarness(t, false)
	h.catalog.detail = func(string) (*domain.DetailRecord, error) { return &domain.DetailRecord{}, nil }

	h.do(func(c *Controller) { require.NoError(t, c.SelectEntry("abc123")) })
	h.settle()

	assert.Equal(t, StateSearch, h.state())
	assert.Contains(t, h.status(), "no details returned")
}

func TestDetailWithoutPosterMarksNoImage(t *testing.T) {
	h := newHarness(t, false)
	h.catalog.detail = func(id string) (*domain.DetailRecord, error) {
		rec := frierenRecord(id)
		rec.PosterURL = ""
		return rec, nil
	}

	h.openDetail("abc123")
	h.do(func(c *Controller) {
		_, poster := c.Detail().Poster()
		assert.Equal(t, PosterNoImage, poster)
	})
}

func TestBrokenPosterFallsBackToEmpty(t *testing.T) {
	h := newHarness(t, false)
	h.catalog.detail = func(id string) (*domain.DetailRecord, error) {
		rec := frierenRecord(id)
		rec.PosterURL = "img/broken"
		return rec, nil
	}

	h.openDetail("abc123")
	h.do(func(c *Controller) {
		img, poster := c.Detail().Poster()
		assert.Equal(t, PosterFailed, poster)
		assert.True(t, img.IsEmpty())
		assert.Equal(t, StateDetail, c.State())
	})
}

func TestEpisodeResolveSuccessStaysInDetail(t *testing.T) {
	h := newHarness(t, false)
	h.openDetail("abc123")

	h.catalog.hold("video:ep1")
	h.do(func(c *Controller) {
		require.NoError(t, c.SelectEpisode("ep1"))
		assert.Equal(t, StatePlayerPending, c.State())
		status, _ := c.Status()
		assert.Equal(t, "Resolving 1 - The Journey's End...", status)
	})
	h.catalog.release("video:ep1")
	h.settle()

	h.do(func(c *Controller) {
		assert.Equal(t, StateDetail, c.State())
		assert.Equal(t, "abc123", c.ItemID())
		status, isErr := c.Status()
		assert.Equal(t, "Downloaded to /out/ep1.mp4", status)
		assert.False(t, isErr)
	})
	assert.Empty(t, h.player.launched, "autoplay is off")
}

func TestEpisodeResolveWithoutDownloadReportsFailure(t *testing.T) {
	h := newHarness(t, false)
	h.catalog.video = func(string, string) (domain.VideoLocation, error) {
		return domain.VideoLocation{LocalPlaylist: "/out/ep1.m3u8"}, nil
	}
	h.openDetail("abc123")

	h.do(func(c *Controller) { require.NoError(t, c.SelectEpisode("ep1")) })
	h.settle()

	h.do(func(c *Controller) {
		assert.Equal(t, StateDetail, c.State())
		status, isErr := c.Status()
		assert.Equal(t, "Download failed", status)
		assert.True(t, isErr)
	})
}

func TestEpisodeResolveFailureRevertsToSearch(t *testing.T) {
	h := newHarness(t, false)
	h.catalog.video = func(string, string) (domain.VideoLocation, error) {
		return domain.VideoLocation{}, domain.ParseError("resolve video", errors.New("no stream playlist"))
	}
	h.openDetail("abc123")

	h.do(func(c *Controller) { require.NoError(t, c.SelectEpisode("ep1")) })
	h.settle()

	h.do(func(c *Controller) {
		assert.Equal(t, StateSearch, c.State())
		status, _ := c.Status()
		assert.Contains(t, status, "no stream playlist")
	})
}

func TestEpisodeResolveTimeoutRevertsToSearch(t *testing.T) {
	h := newHarness(t, false)
	h.catalog.video = func(string, string) (domain.VideoLocation, error) {
		return domain.VideoLocation{}, domain.NetworkError("resolve video", context.DeadlineExceeded)
	}
	h.openDetail("abc123")

	h.do(func(c *Controller) { require.NoError(t, c.SelectEpisode("ep1")) })
	h.settle()

	h.do(func(c *Controller) {
		assert.Equal(t, StateSearch, c.State())
		assert.Empty(t, c.ItemID())
		status, isErr := c.Status()
		assert.Equal(t, "request timed out (try again)", status)
		assert.True(t, isErr)
	})
	assert.Empty(t, h.player.launched)
}

func TestAutoplayLaunchesPlaylist(t *testing.T) {
	h := newHarness(t, true)
	h.openDetail("abc123")

	h.do(func(c *Controller) { require.NoError(t, c.SelectEpisode("ep2")) })
	h.settle()

	assert.Equal(t, []string{"/out/ep2.m3u8"}, h.player.launched)
	assert.Equal(t, StateDetail, h.state())
}

func TestAutoplayLaunchErrorIsStatusOnly(t *testing.T) {
	h := newHarness(t, true)
	h.player.err = errors.New("no media player available")
	h.openDetail("abc123")

	h.do(func(c *Controller) { require.NoError(t, c.SelectEpisode("ep1")) })
	h.settle()

	assert.Equal(t, StateDetail, h.state())
	assert.Equal(t, "Player failed: no media player available", h.status())
}

func TestSelectEpisodeWithoutItemIsNoop(t *testing.T) {
	h := newHarness(t, false)

	h.do(func(c *Controller) {
		assert.ErrorIs(t, c.SelectEpisode("ep1"), domain.ErrNoActiveItem)
		assert.Equal(t, StateSearch, c.State())
		status, isErr := c.Status()
		assert.Equal(t, domain.ErrNoActiveItem.Error(), status)
		assert.True(t, isErr)
	})
	assert.Zero(t, h.pool.Stats().Submitted)
	assert.Zero(t, h.catalog.videos.Load())
}

func TestSelectEpisodeRejectsEmptyProviderAndDuplicates(t *testing.T) {
	h := newHarness(t, false)
	h.openDetail("abc123")
	submitted := h.pool.Stats().Submitted

	h.do(func(c *Controller) {
		assert.ErrorIs(t, c.SelectEpisode(" "), domain.ErrNoEpisode)
		assert.Equal(t, StateDetail, c.State())
	})
	assert.Equal(t, submitted, h.pool.Stats().Submitted)

	h.catalog.hold("video:ep1")
	h.do(func(c *Controller) {
		require.NoError(t, c.SelectEpisode("ep1"))
		assert.ErrorIs(t, c.SelectEpisode("ep2"), domain.ErrResolveBusy)
		assert.Equal(t, StatePlayerPending, c.State())
	})
	h.catalog.release("video:ep1")
	h.settle()

	assert.Equal(t, int32(1), h.catalog.videos.Load())
}

func TestGoBackIsUnconditional(t *testing.T) {
	h := newHarness(t, false)
	h.catalog.hold("detail:abc123")

	h.do(func(c *Controller) {
		require.NoError(t, c.SelectEntry("abc123"))
		c.GoBack()
		assert.Equal(t, StateSearch, c.State())
		assert.Empty(t, c.ItemID())

		c.GoBack()
		assert.Equal(t, StateSearch, c.State())
	})

	h.catalog.release("detail:abc123")
	h.settle()

	h.do(func(c *Controller) {
		assert.Equal(t, StateSearch, c.State(), "late detail result must not reopen the view")
		assert.False(t, c.Detail().Loaded())
	})
}

func TestSubmitSearchFromDetailReturnsToSearch(t *testing.T) {
	h := newHarness(t, false)
	h.openDetail("abc123")

	h.do(func(c *Controller) {
		require.NoError(t, c.SubmitSearch("bocchi"))
		assert.Equal(t, StateSearch, c.State())
		assert.Empty(t, c.ItemID())
	})
	h.settle()
	assert.Equal(t, `2 results for "bocchi"`, h.status())
}

// === Staleness ===

func TestStaleDetailIsDiscarded(t *testing.T) {
	h := newHarness(t, false)
	h.catalog.hold("detail:old")

	h.do(func(c *Controller) {
		require.NoError(t, c.SelectEntry("old"))
		c.GoBack()
		require.NoError(t, c.SelectEntry("new"))
	})
	h.eventually(func(c *Controller) bool { return c.Detail().Loaded() })

	h.catalog.release("detail:old")
	h.settle()

	h.do(func(c *Controller) {
		assert.Equal(t, "new", c.ItemID())
		assert.Equal(t, "Frieren new", c.Detail().Title())
		assert.Equal(t, StateDetail, c.State())
	})
}

func TestStaleSearchIsDiscarded(t *testing.T) {
	h := newHarness(t, false)
	h.catalog.search = func(kw string) ([]domain.CatalogEntry, error) {
		return []domain.CatalogEntry{{ID: kw, Title: kw}}, nil
	}
	h.catalog.hold("search:first")

	h.do(func(c *Controller) {
		require.NoError(t, c.SubmitSearch("first"))
		require.NoError(t, c.SubmitSearch("second"))
	})
	h.eventually(func(c *Controller) bool { return c.Search().Len() == 1 })

	h.catalog.release("search:first")
	h.settle()

	h.do(func(c *Controller) {
		assert.Equal(t, "second", c.Search().Rows()[0].ID)
		assert.Equal(t, "second", c.Search().Keyword())
		status, _ := c.Status()
		assert.Equal(t, `1 result for "second"`, status)
	})
}

func TestStaleThumbnailMissesNewRow(t *testing.T) {
	h := newHarness(t, false)
	h.images.sizes["img/new"] = 40
	urls := []string{"img/a", "img/new"}
	var call atomic.Int32
	h.catalog.search = func(string) ([]domain.CatalogEntry, error) {
		url := urls[call.Add(1)-1]
		return []domain.CatalogEntry{{ID: "abc123", Title: "Frieren", ThumbnailURL: url}}, nil
	}
	h.images.hold("img/a")

	h.do(func(c *Controller) { require.NoError(t, c.SubmitSearch("frieren")) })
	h.eventually(func(c *Controller) bool { return c.Search().Len() == 1 })

	// Same row id, new fetch supersedes the held one
	h.do(func(c *Controller) { require.NoError(t, c.SubmitSearch("frieren")) })
	h.eventually(func(c *Controller) bool { return c.Search().Rows()[0].IconState == IconLoaded })

	h.images.release("img/a")
	h.settle()

	h.do(func(c *Controller) {
		w, _ := c.Search().Rows()[0].Icon.Size()
		assert.Equal(t, 40, w, "old fetch must not overwrite the newer icon")
	})
}

func TestStalePosterIsDiscarded(t *testing.T) {
	h := newHarness(t, false)
	h.images.hold("img/poster")

	h.do(func(c *Controller) { require.NoError(t, c.SelectEntry("abc123")) })
	h.eventually(func(c *Controller) bool { return c.Detail().Loaded() })
	h.do(func(c *Controller) { c.GoBack() })

	h.images.release("img/poster")
	h.settle()

	h.do(func(c *Controller) {
		img, poster := c.Detail().Poster()
		assert.True(t, img.IsEmpty())
		assert.Equal(t, PosterLoading, poster)
	})
}

func TestStaleVideoAfterBackIsDiscarded(t *testing.T) {
	h := newHarness(t, true)
	h.openDetail("abc123")
	h.catalog.hold("video:ep1")

	h.do(func(c *Controller) {
		require.NoError(t, c.SelectEpisode("ep1"))
		c.GoBack()
	})
	h.catalog.release("video:ep1")
	h.settle()

	assert.Equal(t, StateSearch, h.state())
	assert.Empty(t, h.player.launched)
	assert.Empty(t, h.status())
}

// === Delivery accounting ===

func TestEveryTaskDeliveredOnceAndReleased(t *testing.T) {
	h := newHarness(t, false)

	h.do(func(c *Controller) { require.NoError(t, c.SubmitSearch("frieren")) })
	h.settle()
	h.openDetail("abc123")
	h.do(func(c *Controller) { require.NoError(t, c.SelectEpisode("ep1")) })
	h.settle()

	stats := h.pool.Stats()
	// search + 2 thumbnails + detail + poster + video
	assert.Equal(t, int64(6), stats.Submitted)
	assert.Equal(t, stats.Submitted, stats.Released)
	assert.Zero(t, stats.InFlight)
	assert.Zero(t, stats.Dropped)
}

func TestObserverSeesChanges(t *testing.T) {
	h := newHarness(t, false)
	var kinds []ChangeKind
	h.do(func(c *Controller) {
		c.observer = func(ch Change) { kinds = append(kinds, ch.Kind) }
	})

	h.do(func(c *Controller) { require.NoError(t, c.SubmitSearch("frieren")) })
	h.settle()

	h.do(func(*Controller) {
		assert.Contains(t, kinds, ChangeStatus)
		assert.Contains(t, kinds, ChangeResults)
		assert.Contains(t, kinds, ChangeThumbnail)
	})
}

func TestFilterRows(t *testing.T) {
	h := newHarness(t, false)
	h.catalog.search = func(string) ([]domain.CatalogEntry, error) {
		return []domain.CatalogEntry{
			{ID: "1", Title: "Frieren"},
			{ID: "2", Title: "Bocchi the Rock!"},
			{ID: "3", Title: "Fire Force"},
		}, nil
	}
	h.do(func(c *Controller) { require.NoError(t, c.SubmitSearch("x")) })
	h.settle()

	h.do(func(c *Controller) {
		m := c.Search()
		assert.Equal(t, []int{0, 1, 2}, m.Filter(""))
		assert.Equal(t, []int{1}, m.Filter("BOCCHI"))
		got := m.Filter("fr")
		assert.Contains(t, got, 0)
		assert.NotContains(t, got, 1)
	})
}

func TestStateString(t *testing.T) {
	assert.Equal(t, "search", StateSearch.String())
	assert.Equal(t, "detail", StateDetail.String())
	assert.Equal(t, "player-pending", StatePlayerPending.String())
	assert.True(t, StatePlayerPending.ShowsDetail())
	assert.False(t, StateSearch.ShowsDetail())
}
