package scraper

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"html"
	"io"
	"net/url"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/grafov/m3u8"

	"github.com/mmcdole/anikino/internal/domain"
)

// Variable so tests can lower it
var maxSegmentBytes int64 = 64 << 20

var (
	playlistPattern = regexp.MustCompile(`https?:(?:\\?/){2}[^"'\s<>]+?\.m3u8(?:\?[^"'\s<>]*)?`)
	unsafeNameChars = regexp.MustCompile(`[^A-Za-z0-9._-]+`)
)

// ResolveVideo finds the HLS stream behind an episode, writes a local playlist
// with absolute segment URLs, then downloads the segments into one .ts file.
// A failed segment download is not an error: DownloadPath is left empty.
// Running out of time while downloading is.
func (c *Client) ResolveVideo(ctx context.Context, providerID, itemID string) (domain.VideoLocation, error) {
	var loc domain.VideoLocation
	if strings.TrimSpace(providerID) == "" {
		return loc, fmt.Errorf("resolve video: %w: empty provider id", domain.ErrUserInput)
	}

	pageURL := c.providerURL(providerID)
	page, err := c.get(ctx, "resolve video", pageURL, c.detailURL(itemID))
	if err != nil {
		return loc, err
	}

	streamURL, err := findPlaylistURL(page)
	if err != nil {
		return loc, domain.ParseError("resolve video", err)
	}

	playlist, playlistURL, err := c.mediaPlaylist(ctx, streamURL, pageURL)
	if err != nil {
		return loc, err
	}

	segments, err := rewritePlaylist(playlist, playlistURL)
	if err != nil {
		return loc, domain.ParseError("resolve video", err)
	}
	if len(segments.urls) == 0 {
		return loc, domain.ParseError("resolve video", fmt.Errorf("playlist %s has no segments", playlistURL))
	}

	if err := os.MkdirAll(c.downloadDir, 0755); err != nil {
		return loc, fmt.Errorf("resolve video: create download dir: %w", err)
	}
	base := filepath.Join(c.downloadDir, fileStem(itemID, providerID))

	loc.LocalPlaylist = base + ".m3u8"
	if err := os.WriteFile(loc.LocalPlaylist, segments.playlist, 0644); err != nil {
		return domain.VideoLocation{}, fmt.Errorf("resolve video: write playlist: %w", err)
	}
	c.logger.Info("wrote local playlist", "path", loc.LocalPlaylist, "segments", len(segments.urls))

	target := base + ".ts"
	start := time.Now()
	if err := c.downloadSegments(ctx, segments.urls, pageURL, target); err != nil {
		// A deadline or cancellation fails the whole resolve
		if ctxErr := ctx.Err(); ctxErr != nil {
			c.logger.Warn("segment download interrupted", "path", target, "error", err)
			return domain.VideoLocation{}, domain.NetworkError("resolve video", ctxErr)
		}
		c.logger.Warn("segment download failed", "path", target, "error", err)
		return loc, nil
	}
	c.logger.Info("download complete", "path", target, "segments", len(segments.urls), "duration", time.Since(start))

	loc.DownloadPath = target
	return loc, nil
}

// findPlaylistURL locates the first .m3u8 URL in a provider page, including
// JSON-escaped forms inside scripts
func findPlaylistURL(page []byte) (string, error) {
	m := playlistPattern.Find(page)
	if m == nil {
		return "", errors.New("no stream playlist on provider page")
	}
	raw := strings.ReplaceAll(string(m), `\/`, "/")
	raw = html.UnescapeString(raw)
	if _, err := url.Parse(raw); err != nil {
		return "", fmt.Errorf("bad stream url %q: %w", raw, err)
	}
	return raw, nil
}

// mediaPlaylist fetches the playlist at streamURL, following a master
// playlist to its highest-bandwidth variant
func (c *Client) mediaPlaylist(ctx context.Context, streamURL, referer string) (*m3u8.MediaPlaylist, string, error) {
	pl, err := c.playlist(ctx, streamURL, referer)
	if err != nil {
		return nil, "", err
	}

	switch p := pl.(type) {
	case *m3u8.MediaPlaylist:
		return p, streamURL, nil
	case *m3u8.MasterPlaylist:
		variant := bestVariant(p)
		if variant == nil {
			return nil, "", domain.ParseError("fetch playlist", fmt.Errorf("master playlist %s has no variants", streamURL))
		}
		variantURL := resolveAgainst(streamURL, variant.URI)
		c.logger.Debug("following variant playlist", "master", streamURL, "variant", variantURL, "bandwidth", variant.Bandwidth)

		pl, err = c.playlist(ctx, variantURL, referer)
		if err != nil {
			return nil, "", err
		}
		media, ok := pl.(*m3u8.MediaPlaylist)
		if !ok {
			return nil, "", domain.ParseError("fetch playlist", fmt.Errorf("variant %s is not a media playlist", variantURL))
		}
		return media, variantURL, nil
	}
	return nil, "", domain.ParseError("fetch playlist", fmt.Errorf("unsupported playlist at %s", streamURL))
}

func (c *Client) playlist(ctx context.Context, rawURL, referer string) (m3u8.Playlist, error) {
	body, err := c.get(ctx, "fetch playlist", rawURL, referer)
	if err != nil {
		return nil, err
	}
	pl, _, err := m3u8.DecodeFrom(bytes.NewReader(body), false)
	if err != nil {
		return nil, domain.ParseError("fetch playlist", fmt.Errorf("%s: %w", rawURL, err))
	}
	return pl, nil
}

// bestVariant returns the highest-bandwidth stream of a master playlist,
// ignoring I-frame only streams
func bestVariant(master *m3u8.MasterPlaylist) *m3u8.Variant {
	var best *m3u8.Variant
	for _, v := range master.Variants {
		if v == nil || v.Iframe || v.URI == "" {
			continue
		}
		if best == nil || v.Bandwidth > best.Bandwidth {
			best = v
		}
	}
	return best
}

type rewritten struct {
	playlist []byte
	urls     []string
}

// rewritePlaylist makes every segment, key and map URI absolute against base
func rewritePlaylist(pl *m3u8.MediaPlaylist, base string) (rewritten, error) {
	var out rewritten

	absKey := func(k *m3u8.Key) {
		if k != nil && k.URI != "" {
			k.URI = resolveAgainst(base, k.URI)
		}
	}
	absMap := func(m *m3u8.Map) {
		if m != nil && m.URI != "" {
			m.URI = resolveAgainst(base, m.URI)
		}
	}

	absKey(pl.Key)
	absMap(pl.Map)
	for _, seg := range pl.Segments {
		if seg == nil {
			continue
		}
		seg.URI = resolveAgainst(base, seg.URI)
		absKey(seg.Key)
		absMap(seg.Map)
		out.urls = append(out.urls, seg.URI)
	}

	// Write every segment, not just a live window
	if err := pl.SetWinSize(0); err != nil {
		return out, err
	}
	pl.ResetCache()
	out.playlist = pl.Encode().Bytes()
	return out, nil
}

// downloadSegments appends each segment to target in order. A partial file
// is removed on failure.
func (c *Client) downloadSegments(ctx context.Context, urls []string, referer, target string) (err error) {
	f, err := os.Create(target)
	if err != nil {
		return fmt.Errorf("create %s: %w", target, err)
	}
	defer func() {
		closeErr := f.Close()
		if err == nil {
			err = closeErr
		}
		if err != nil {
			_ = os.Remove(target)
		}
	}()

	var seg bytes.Buffer
	for i, u := range urls {
		err := c.fetch(ctx, "download segment", u, referer, func(r io.Reader) error {
			seg.Reset()
			if _, err := seg.ReadFrom(io.LimitReader(r, maxSegmentBytes+1)); err != nil {
				return err
			}
			if int64(seg.Len()) > maxSegmentBytes {
				return fmt.Errorf("%w: segment larger than %d bytes", errBodyTooLarge, maxSegmentBytes)
			}
			return nil
		})
		if err != nil {
			return fmt.Errorf("segment %d/%d: %w", i+1, len(urls), err)
		}
		if _, err := f.Write(seg.Bytes()); err != nil {
			return fmt.Errorf("write segment %d: %w", i+1, err)
		}
	}
	return nil
}

func resolveAgainst(base, ref string) string {
	b, err := url.Parse(base)
	if err != nil {
		return ref
	}
	r, err := url.Parse(ref)
	if err != nil {
		return ref
	}
	return b.ResolveReference(r).String()
}

// fileStem builds a filesystem-safe "<item>-<provider>" name
func fileStem(itemID, providerID string) string {
	stem := itemID + "-" + providerID
	stem = unsafeNameChars.ReplaceAllString(stem, "_")
	return strings.Trim(stem, "._")
}
