package domain

// Store handles the local cache (BoltDB + memory).
type Store interface {
	// === Images ===
	GetImage(url string) ([]byte, bool)
	SaveImage(url string, data []byte) error

	// === Search history ===
	RecentSearches(limit int) []string
	AddRecentSearch(keyword string) error

	// === Invalidation ===
	InvalidateAll() error

	Close() error
}
