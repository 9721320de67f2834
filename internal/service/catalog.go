package service

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"

	"github.com/lithammer/fuzzysearch/fuzzy"

	"github.com/mmcdole/anikino/internal/domain"
)

const suggestLimit = 8

// CatalogService is the layer task units call into for catalog work
type CatalogService struct {
	scraper domain.Scraper
	store   domain.Store
	logger  *slog.Logger
}

// NewCatalogService creates a new catalog service. store may be nil.
func NewCatalogService(scraper domain.Scraper, store domain.Store, logger *slog.Logger) *CatalogService {
	if logger == nil {
		logger = slog.Default()
	}
	return &CatalogService{
		scraper: scraper,
		store:   store,
		logger:  logger,
	}
}

// Search runs a keyword search and records the keyword on success
func (s *CatalogService) Search(ctx context.Context, keyword string) ([]domain.CatalogEntry, error) {
	keyword = strings.TrimSpace(keyword)
	if keyword == "" {
		return nil, domain.ErrEmptyKeyword
	}

	entries, err := s.scraper.Search(ctx, keyword)
	if err != nil {
		return nil, err
	}
	s.logger.Debug("search complete", "keyword", keyword, "results", len(entries))

	if s.store != nil {
		if err := s.store.AddRecentSearch(keyword); err != nil {
			s.logger.Warn("failed to record recent search", "keyword", keyword, "error", err)
		}
	}
	return entries, nil
}

// Details loads the record for one title
func (s *CatalogService) Details(ctx context.Context, itemID string) (*domain.DetailRecord, error) {
	rec, err := s.scraper.Details(ctx, itemID)
	if err != nil {
		return nil, err
	}
	s.logger.Debug("details loaded", "item", itemID, "episodes", len(rec.Episodes))
	return rec, nil
}

// ResolveVideo resolves and downloads one episode
func (s *CatalogService) ResolveVideo(ctx context.Context, providerID, itemID string) (domain.VideoLocation, error) {
	if strings.TrimSpace(providerID) == "" {
		return domain.VideoLocation{}, fmt.Errorf("resolve video: %w", domain.ErrNoEpisode)
	}
	loc, err := s.scraper.ResolveVideo(ctx, providerID, itemID)
	if err != nil {
		return domain.VideoLocation{}, err
	}
	s.logger.Info("video resolved", "item", itemID, "provider", providerID,
		"playlist", loc.LocalPlaylist, "download", loc.DownloadPath)
	return loc, nil
}

// Suggest ranks recent searches against prefix. An empty prefix returns the
// most recent keywords.
func (s *CatalogService) Suggest(prefix string) []string {
	if s.store == nil {
		return nil
	}
	recent := s.store.RecentSearches(0)
	prefix = strings.TrimSpace(prefix)
	if prefix == "" {
		if len(recent) > suggestLimit {
			recent = recent[:suggestLimit]
		}
		return recent
	}

	ranks := fuzzy.RankFindFold(prefix, recent)
	// Best match first, recency breaks ties
	sort.SliceStable(ranks, func(i, j int) bool {
		if ranks[i].Distance != ranks[j].Distance {
			return ranks[i].Distance < ranks[j].Distance
		}
		return ranks[i].OriginalIndex < ranks[j].OriginalIndex
	})

	var out []string
	for _, r := range ranks {
		if strings.EqualFold(r.Target, prefix) {
			continue
		}
		out = append(out, r.Target)
		if len(out) == suggestLimit {
			break
		}
	}
	return out
}
