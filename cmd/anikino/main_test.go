package main

import (
	"bytes"
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mmcdole/anikino/internal/domain"
	"github.com/mmcdole/anikino/internal/nav"
	"github.com/mmcdole/anikino/internal/store"
	"github.com/mmcdole/anikino/internal/task"
)

type stubCatalog struct {
	entries []domain.CatalogEntry
	err     error
}

func (s stubCatalog) Search(context.Context, string) ([]domain.CatalogEntry, error) {
	return s.entries, s.err
}

func (stubCatalog) Details(context.Context, string) (*domain.DetailRecord, error) {
	return nil, domain.ErrNotFound
}

func (stubCatalog) ResolveVideo(context.Context, string, string) (domain.VideoLocation, error) {
	return domain.VideoLocation{}, domain.ErrNotFound
}

func headlessRun(t *testing.T, catalog nav.Catalog, keyword string) (string, error) {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	loop := task.NewLoop(logger)
	loop.Start(ctx)
	defer loop.Stop()
	pool := task.NewPool(2, task.NewRouter(loop, logger), logger)
	pool.Start(ctx)
	defer pool.Stop()

	var out bytes.Buffer
	err := searchAndPrint(ctx, loop, pool, catalog, nav.DefaultTimeouts(), logger, keyword, &out)
	return out.String(), err
}

func TestHeadlessPrintsRowsAndStatus(t *testing.T) {
	out, err := headlessRun(t, stubCatalog{entries: []domain.CatalogEntry{
		{ID: "a1", Title: "Mushishi"},
		{ID: "b2", Title: "Mushishi Zoku Shou"},
	}}, "mushishi")
	require.NoError(t, err)

	assert.Equal(t,
		"  1. Mushishi  [a1]\n  2. Mushishi Zoku Shou  [b2]\n2 results for \"mushishi\"\n",
		out)
}

func TestHeadlessReportsFailure(t *testing.T) {
	out, err := headlessRun(t, stubCatalog{err: domain.NetworkError("search", context.DeadlineExceeded)}, "anything")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "request timed out")
	assert.Empty(t, out)
}

func TestHeadlessRejectsEmptyKeyword(t *testing.T) {
	_, err := headlessRun(t, stubCatalog{}, "   ")
	assert.ErrorIs(t, err, domain.ErrEmptyKeyword)
}

func TestClearCacheEmptiesStore(t *testing.T) {
	dir := t.TempDir()
	const server = "https://anilife.live"

	cache, err := store.NewCacheStore(dir, server)
	require.NoError(t, err)
	require.NoError(t, cache.SaveImage("https://img.example/a.jpg", []byte("jpeg")))
	require.NoError(t, cache.AddRecentSearch("frieren"))
	require.NoError(t, cache.Close())

	require.NoError(t, clearCacheStore(dir, server))

	cache, err = store.NewCacheStore(dir, server)
	require.NoError(t, err)
	defer cache.Close()
	_, ok := cache.GetImage("https://img.example/a.jpg")
	assert.False(t, ok)
	assert.Empty(t, cache.RecentSearches(0))
}

func TestClearCacheWithoutDirIsNoop(t *testing.T) {
	assert.NoError(t, clearCacheStore("", "https://anilife.live"))
}
