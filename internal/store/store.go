package store

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	bolt "go.etcd.io/bbolt"
)

// Bucket names
var (
	bucketImages   = []byte("images")
	bucketSearches = []byte("searches")
)

const (
	recentKey     = "recent"
	maxRecent     = 50
	maxImageBytes = 4 << 20 // Larger images are not worth caching
)

// CacheStore implements domain.Store using BoltDB with an in-memory cache
// in front for hot-path reads.
type CacheStore struct {
	db *bolt.DB
	mu sync.RWMutex // Protects memory cache

	// Serializes read-modify-write updates such as the search history
	writeMu sync.Mutex

	// In-memory cache (promoted on access)
	cache map[string][]byte
}

// NewCacheStore opens (or creates) the cache database under baseCacheDir.
// An empty baseCacheDir gives a memory-only store.
func NewCacheStore(baseCacheDir, serverURL string) (*CacheStore, error) {
	if baseCacheDir == "" {
		return &CacheStore{cache: make(map[string][]byte)}, nil
	}

	dir := baseCacheDir
	if serverURL != "" {
		dir = filepath.Join(baseCacheDir, hashKey(strings.TrimRight(strings.ToLower(serverURL), "/"))[:12])
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, err
	}

	dbPath := filepath.Join(dir, "anikino.db")
	db, err := bolt.Open(dbPath, 0600, &bolt.Options{Timeout: 1 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("failed to open bolt db: %w", err)
	}

	err = db.Update(func(tx *bolt.Tx) error {
		for _, bucket := range [][]byte{bucketImages, bucketSearches} {
			if _, err := tx.CreateBucketIfNotExists(bucket); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		db.Close()
		return nil, err
	}

	return &CacheStore{db: db, cache: make(map[string][]byte)}, nil
}

func hashKey(s string) string {
	hash := sha256.Sum256([]byte(s))
	return hex.EncodeToString(hash[:])
}

func (s *CacheStore) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

// === Generic helpers ===

func (s *CacheStore) getRaw(bucket []byte, key string) ([]byte, bool) {
	cacheKey := string(bucket) + ":" + key

	s.mu.RLock()
	if data, ok := s.cache[cacheKey]; ok {
		s.mu.RUnlock()
		return data, true
	}
	s.mu.RUnlock()

	if s.db == nil {
		return nil, false
	}

	var data []byte
	s.db.View(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucket)
		if b == nil {
			return nil
		}
		if v := b.Get([]byte(key)); v != nil {
			data = make([]byte, len(v))
			copy(data, v)
		}
		return nil
	})

	if data == nil {
		return nil, false
	}

	s.mu.Lock()
	s.cache[cacheKey] = data
	s.mu.Unlock()

	return data, true
}

func (s *CacheStore) setRaw(bucket []byte, key string, data []byte) error {
	cacheKey := string(bucket) + ":" + key

	s.mu.Lock()
	s.cache[cacheKey] = data
	s.mu.Unlock()

	if s.db == nil {
		return nil // Memory-only mode
	}

	return s.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(bucket).Put([]byte(key), data)
	})
}

// === Images ===

// GetImage returns the cached bytes for an image URL
func (s *CacheStore) GetImage(url string) ([]byte, bool) {
	return s.getRaw(bucketImages, hashKey(url))
}

// SaveImage caches the raw bytes of an image URL
func (s *CacheStore) SaveImage(url string, data []byte) error {
	if len(data) == 0 || len(data) > maxImageBytes {
		return nil
	}
	return s.setRaw(bucketImages, hashKey(url), data)
}

// === Search history ===

// RecentSearches returns up to limit keywords, most recent first
func (s *CacheStore) RecentSearches(limit int) []string {
	data, ok := s.getRaw(bucketSearches, recentKey)
	if !ok {
		return nil
	}
	var recent []string
	if err := json.Unmarshal(data, &recent); err != nil {
		return nil
	}
	if limit > 0 && len(recent) > limit {
		recent = recent[:limit]
	}
	return recent
}

// AddRecentSearch moves keyword to the front of the history
func (s *CacheStore) AddRecentSearch(keyword string) error {
	keyword = strings.TrimSpace(keyword)
	if keyword == "" {
		return nil
	}

	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	recent := []string{keyword}
	for _, k := range s.RecentSearches(0) {
		if !strings.EqualFold(k, keyword) {
			recent = append(recent, k)
		}
	}
	if len(recent) > maxRecent {
		recent = recent[:maxRecent]
	}

	data, err := json.Marshal(recent)
	if err != nil {
		return err
	}
	return s.setRaw(bucketSearches, recentKey, data)
}

// === Invalidation ===

// InvalidateAll wipes the entire cache
func (s *CacheStore) InvalidateAll() error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	s.mu.Lock()
	s.cache = make(map[string][]byte)
	s.mu.Unlock()

	if s.db == nil {
		return nil
	}

	return s.db.Update(func(tx *bolt.Tx) error {
		for _, bucket := range [][]byte{bucketImages, bucketSearches} {
			if err := tx.DeleteBucket(bucket); err != nil && !errors.Is(err, bolt.ErrBucketNotFound) {
				return err
			}
			if _, err := tx.CreateBucket(bucket); err != nil {
				return err
			}
		}
		return nil
	})
}
