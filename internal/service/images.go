package service

import (
	"bytes"
	"context"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"io"
	"log/slog"
	"net/http"
	"strings"

	"golang.org/x/image/draw"
	_ "golang.org/x/image/webp"

	"github.com/mmcdole/anikino/internal/domain"
)

const maxImageDownload = 8 << 20

// ImageOptions configures an ImageService
type ImageOptions struct {
	Referer   string
	UserAgent string
	// Bounding box in pixels; the decoded image is scaled to fit inside it.
	// Zero keeps the original size.
	MaxWidth   int
	MaxHeight  int
	HTTPClient *http.Client
	Logger     *slog.Logger
}

// ImageService loads thumbnails and posters. It implements
// domain.ImageFetcher and never fails outward.
type ImageService struct {
	store     domain.Store
	http      *http.Client
	referer   string
	userAgent string
	maxW      int
	maxH      int
	logger    *slog.Logger
}

var _ domain.ImageFetcher = (*ImageService)(nil)

// NewImageService creates an image loader backed by store. store may be nil.
func NewImageService(store domain.Store, opts ImageOptions) *ImageService {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	client := opts.HTTPClient
	if client == nil {
		client = &http.Client{}
	}
	return &ImageService{
		store:     store,
		http:      client,
		referer:   opts.Referer,
		userAgent: opts.UserAgent,
		maxW:      opts.MaxWidth,
		maxH:      opts.MaxHeight,
		logger:    logger,
	}
}

// Fetch returns the picture at url scaled to the configured box, or
// domain.EmptyImage when it cannot be loaded
func (s *ImageService) Fetch(ctx context.Context, url string) domain.Image {
	url = strings.TrimSpace(url)
	if url == "" {
		return domain.EmptyImage
	}

	data, cached := s.cached(url)
	if !cached {
		var err error
		data, err = s.download(ctx, url)
		if err != nil {
			s.logger.Debug("image download failed", "url", url, "error", err)
			return domain.EmptyImage
		}
	}

	img, format, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		s.logger.Debug("image decode failed", "url", url, "error", err)
		return domain.EmptyImage
	}

	if !cached && s.store != nil {
		if err := s.store.SaveImage(url, data); err != nil {
			s.logger.Warn("failed to cache image", "url", url, "error", err)
		}
	}

	s.logger.Debug("image loaded", "url", url, "format", format, "cached", cached)
	return domain.Image{Img: fit(img, s.maxW, s.maxH)}
}

func (s *ImageService) cached(url string) ([]byte, bool) {
	if s.store == nil {
		return nil, false
	}
	return s.store.GetImage(url)
}

func (s *ImageService) download(ctx context.Context, url string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	if s.referer != "" {
		req.Header.Set("Referer", s.referer)
	}
	if s.userAgent != "" {
		req.Header.Set("User-Agent", s.userAgent)
	}

	resp, err := s.http.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("status %d", resp.StatusCode)
	}
	return io.ReadAll(io.LimitReader(resp.Body, maxImageDownload))
}

// fit scales img down to fit inside maxW x maxH, keeping the aspect ratio
func fit(img image.Image, maxW, maxH int) image.Image {
	b := img.Bounds()
	w, h := b.Dx(), b.Dy()
	if maxW <= 0 || maxH <= 0 || w == 0 || h == 0 || (w <= maxW && h <= maxH) {
		return img
	}

	scale := min(float64(maxW)/float64(w), float64(maxH)/float64(h))
	dw := max(1, int(float64(w)*scale))
	dh := max(1, int(float64(h)*scale))

	dst := image.NewRGBA(image.Rect(0, 0, dw, dh))
	draw.CatmullRom.Scale(dst, dst.Bounds(), img, b, draw.Src, nil)
	return dst
}
