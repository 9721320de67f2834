package scraper

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/mmcdole/anikino/internal/domain"
)

const maxRetries = 2

// Variable so tests can lower it
var maxPageBytes int64 = 8 << 20

// errBodyTooLarge marks a response cut off by a size limit
var errBodyTooLarge = errors.New("response body too large")

// Options configures a Client
type Options struct {
	BaseURL     string
	Referer     string
	UserAgent   string
	RateLimit   float64 // requests per second, 0 for unlimited
	DownloadDir string
	HTTPClient  *http.Client
	Logger      *slog.Logger
}

// Client scrapes the catalog site. It implements domain.Scraper.
type Client struct {
	base        *url.URL
	referer     string
	userAgent   string
	downloadDir string
	http        *http.Client
	limiter     *rate.Limiter
	backoffs    []time.Duration
	logger      *slog.Logger
}

var _ domain.Scraper = (*Client)(nil)

// New creates a scraper client for the site at opts.BaseURL
func New(opts Options) (*Client, error) {
	base, err := url.Parse(strings.TrimRight(opts.BaseURL, "/"))
	if err != nil || base.Scheme == "" || base.Host == "" {
		return nil, fmt.Errorf("scraper: invalid base url %q", opts.BaseURL)
	}

	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	httpClient := opts.HTTPClient
	if httpClient == nil {
		// Per-request deadlines come from the task context
		httpClient = &http.Client{}
	}

	limit := rate.Inf
	if opts.RateLimit > 0 {
		limit = rate.Limit(opts.RateLimit)
	}
	burst := int(opts.RateLimit)
	if burst < 1 {
		burst = 1
	}

	referer := opts.Referer
	if referer == "" {
		referer = base.String() + "/"
	}

	return &Client{
		base:        base,
		referer:     referer,
		userAgent:   opts.UserAgent,
		downloadDir: opts.DownloadDir,
		http:        httpClient,
		limiter:     rate.NewLimiter(limit, burst),
		backoffs:    []time.Duration{500 * time.Millisecond, 1500 * time.Millisecond},
		logger:      logger,
	}, nil
}

// resolve turns a site-relative path or link into an absolute URL
func (c *Client) resolve(ref string) string {
	u, err := url.Parse(strings.TrimSpace(ref))
	if err != nil {
		return ""
	}
	return c.base.ResolveReference(u).String()
}

// get fetches rawURL and returns the body
func (c *Client) get(ctx context.Context, op, rawURL, referer string) ([]byte, error) {
	var body []byte
	err := c.fetch(ctx, op, rawURL, referer, func(r io.Reader) error {
		data, err := io.ReadAll(io.LimitReader(r, maxPageBytes+1))
		if err != nil {
			return err
		}
		if int64(len(data)) > maxPageBytes {
			return fmt.Errorf("%w: page larger than %d bytes", errBodyTooLarge, maxPageBytes)
		}
		body = data
		return nil
	})
	return body, err
}

// fetch requests rawURL and hands a 200 body to consume, retrying transient
// failures with backoff. Transport failures, timeouts and 5xx responses become
// ErrTransientNetwork. Other non-200 responses and oversized bodies become
// ErrParse, with 404 mapped to ErrNotFound.
func (c *Client) fetch(ctx context.Context, op, rawURL, referer string, consume func(io.Reader) error) error {
	var lastErr error
	for attempt := 0; attempt <= maxRetries; attempt++ {
		retry, err := c.fetchOnce(ctx, op, rawURL, referer, consume)
		if err == nil {
			return nil
		}
		if !retry || attempt == maxRetries {
			return err
		}
		lastErr = err

		delay := c.backoffs[min(attempt, len(c.backoffs)-1)]
		c.logger.Debug("retrying request", "op", op, "url", rawURL, "attempt", attempt+1, "delay", delay, "error", err)
		select {
		case <-ctx.Done():
			return domain.NetworkError(op, ctx.Err())
		case <-time.After(delay):
		}
	}
	return lastErr
}

func (c *Client) fetchOnce(ctx context.Context, op, rawURL, referer string, consume func(io.Reader) error) (bool, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return false, domain.NetworkError(op, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return false, domain.ParseError(op, err)
	}
	if c.userAgent != "" {
		req.Header.Set("User-Agent", c.userAgent)
	}
	if referer == "" {
		referer = c.referer
	}
	req.Header.Set("Referer", referer)

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return false, domain.NetworkError(op, ctxErr)
		}
		return true, domain.NetworkError(op, err)
	}
	defer resp.Body.Close()

	c.logger.Debug("fetched", "op", op, "url", rawURL, "status", resp.StatusCode,
		"duration", time.Since(start))

	switch {
	case resp.StatusCode == http.StatusOK:
	case resp.StatusCode == http.StatusNotFound:
		return false, fmt.Errorf("%s: %w", op, domain.ErrNotFound)
	case resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500:
		return true, domain.NetworkError(op, fmt.Errorf("status %d", resp.StatusCode))
	default:
		return false, domain.ParseError(op, fmt.Errorf("status %d", resp.StatusCode))
	}

	if err := consume(resp.Body); err != nil {
		if errors.Is(err, errBodyTooLarge) {
			return false, domain.ParseError(op, err)
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			return false, domain.NetworkError(op, ctxErr)
		}
		return true, domain.NetworkError(op, fmt.Errorf("read body: %w", err))
	}
	return false, nil
}
