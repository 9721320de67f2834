package domain

import (
	"fmt"
	"image"
	"strings"
)

// CatalogEntry is one search hit from the catalog
type CatalogEntry struct {
	ID           string `json:"id"`
	Title        string `json:"title"`
	ThumbnailURL string `json:"thumbnail_url,omitempty"`
}

// InfoField is a single labelled line of extra information (e.g. "Studio: MAPPA").
// Kept as a slice element rather than a map so the server order survives.
type InfoField struct {
	Label string `json:"label"`
	Value string `json:"value"`
}

// Episode is one playable entry in a title's episode list
type Episode struct {
	Number     string `json:"number"`
	Title      string `json:"title"`
	ProviderID string `json:"provider_id"`
}

// Label returns the display label used in episode lists ("12 - The Journey")
func (e Episode) Label() string {
	title := e.Title
	if title == "" {
		title = "Untitled"
	}
	if e.Number == "" {
		return title
	}
	return strings.TrimSpace(fmt.Sprintf("%s - %s", e.Number, title))
}

// DetailRecord holds everything the detail view shows for a title
type DetailRecord struct {
	ID        string      `json:"id"`
	Title     string      `json:"title"`
	Summary   string      `json:"summary"`
	ExtraInfo []InfoField `json:"extra_info,omitempty"`
	PosterURL string      `json:"poster_url,omitempty"`
	Episodes  []Episode   `json:"episodes,omitempty"`
}

// IsEmpty reports whether the record carries no usable content
func (d *DetailRecord) IsEmpty() bool {
	return d == nil || (d.Title == "" && d.Summary == "" && len(d.Episodes) == 0)
}

// Info returns the value for a label and whether it was present
func (d *DetailRecord) Info(label string) (string, bool) {
	if d == nil {
		return "", false
	}
	for _, f := range d.ExtraInfo {
		if f.Label == label {
			return f.Value, true
		}
	}
	return "", false
}

// VideoLocation is the outcome of resolving an episode.
// Either field may be empty: LocalPlaylist is written as soon as the stream
// playlist is known, DownloadPath only when every segment was saved.
type VideoLocation struct {
	LocalPlaylist string `json:"local_playlist,omitempty"`
	DownloadPath  string `json:"download_path,omitempty"`
}

// Image is a decoded picture, or the empty sentinel when loading failed
type Image struct {
	Img image.Image
}

// EmptyImage is returned by image fetches that could not produce a picture
var EmptyImage = Image{}

// IsEmpty reports whether this is the empty sentinel
func (i Image) IsEmpty() bool {
	return i.Img == nil
}

// Size returns the pixel dimensions (0,0 for the sentinel)
func (i Image) Size() (int, int) {
	if i.Img == nil {
		return 0, 0
	}
	b := i.Img.Bounds()
	return b.Dx(), b.Dy()
}
