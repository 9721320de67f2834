package nav

import (
	"context"
	"fmt"
	"time"

	"github.com/mmcdole/anikino/internal/domain"
	"github.com/mmcdole/anikino/internal/task"
)

// Catalog is the backend the load-bearing tasks call
type Catalog interface {
	Search(ctx context.Context, keyword string) ([]domain.CatalogEntry, error)
	Details(ctx context.Context, itemID string) (*domain.DetailRecord, error)
	ResolveVideo(ctx context.Context, providerID, itemID string) (domain.VideoLocation, error)
}

// Submitter accepts tasks and routes their outcome to consumer exactly once.
// *task.Pool implements it.
type Submitter interface {
	Submit(t *task.Task, consumer task.Consumer) task.Handle
}

// Timeouts bound each task kind
type Timeouts struct {
	Search time.Duration
	Detail time.Duration
	Image  time.Duration
	Video  time.Duration
}

// DefaultTimeouts returns the timeouts used when none are configured
func DefaultTimeouts() Timeouts {
	return Timeouts{
		Search: 15 * time.Second,
		Detail: 15 * time.Second,
		Image:  15 * time.Second,
		Video:  10 * time.Minute,
	}
}

// === Task units ===

func searchTask(c Catalog, keyword string, timeout time.Duration) *task.Task {
	return task.New(task.KindSearch, "search "+keyword, timeout, func(ctx context.Context) (any, error) {
		return c.Search(ctx, keyword)
	})
}

func detailTask(c Catalog, itemID string, timeout time.Duration) *task.Task {
	return task.New(task.KindDetail, "details "+itemID, timeout, func(ctx context.Context) (any, error) {
		return c.Details(ctx, itemID)
	})
}

func videoTask(c Catalog, providerID, itemID string, timeout time.Duration) *task.Task {
	desc := fmt.Sprintf("resolve %s/%s", itemID, providerID)
	return task.New(task.KindVideo, desc, timeout, func(ctx context.Context) (any, error) {
		return c.ResolveVideo(ctx, providerID, itemID)
	})
}

// imageTask never fails outward: the fetcher already downgrades errors to
// the empty sentinel
func imageTask(f domain.ImageFetcher, url string, timeout time.Duration) *task.Task {
	return task.New(task.KindImage, "image "+url, timeout, func(ctx context.Context) (any, error) {
		return f.Fetch(ctx, url), nil
	})
}

// imageFrom extracts the image from an ImageFetch event. A failed event
// (panic, pool shutdown) still yields the empty sentinel.
func imageFrom(ev task.Event) domain.Image {
	if !ev.OK() {
		return domain.EmptyImage
	}
	img, ok := ev.Payload.(domain.Image)
	if !ok {
		return domain.EmptyImage
	}
	return img
}
