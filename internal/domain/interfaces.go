package domain

import "context"

// Scraper is the catalog backend. Every method may fail with an error
// wrapping ErrTransientNetwork or ErrParse.
type Scraper interface {
	// Search returns catalog entries in server order
	Search(ctx context.Context, keyword string) ([]CatalogEntry, error)

	// Details returns the full record for a title
	Details(ctx context.Context, itemID string) (*DetailRecord, error)

	// ResolveVideo locates (and downloads) the stream for one episode
	ResolveVideo(ctx context.Context, providerID, itemID string) (VideoLocation, error)
}

// ImageFetcher loads pictures. It never fails outward: problems yield EmptyImage.
type ImageFetcher interface {
	Fetch(ctx context.Context, url string) Image
}

// Player opens a local playlist or file in an external media player
type Player interface {
	Launch(target string) error
}
