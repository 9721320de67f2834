package scraper

import (
	"bytes"
	"context"
	"fmt"
	"net/url"
	"path"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/mmcdole/anikino/internal/domain"
)

// === Catalog paths ===

const (
	searchPath   = "/search"
	detailPath   = "/detail/id/"
	providerPath = "/ani/provider/"
)

func (c *Client) detailURL(itemID string) string {
	return c.resolve(detailPath + url.PathEscape(itemID))
}

func (c *Client) providerURL(providerID string) string {
	return c.resolve(providerPath + url.PathEscape(providerID))
}

// === Search ===

// Search returns the result cards for keyword in page order
func (c *Client) Search(ctx context.Context, keyword string) ([]domain.CatalogEntry, error) {
	keyword = strings.TrimSpace(keyword)
	if keyword == "" {
		return nil, domain.ErrEmptyKeyword
	}

	q := url.Values{"keyword": {keyword}}
	body, err := c.get(ctx, "search", c.resolve(searchPath)+"?"+q.Encode(), "")
	if err != nil {
		return nil, err
	}

	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return nil, domain.ParseError("search", err)
	}
	return parseSearch(doc, c.resolve), nil
}

func parseSearch(doc *goquery.Document, resolve func(string) string) []domain.CatalogEntry {
	var entries []domain.CatalogEntry
	seen := make(map[string]bool)

	doc.Find("div.bsx > a").Each(func(_ int, card *goquery.Selection) {
		href, _ := card.Attr("href")
		id := idFromLink(href, detailPath)
		if id == "" || seen[id] {
			return
		}

		title := text(card.Find(".tt").First())
		if title == "" {
			title, _ = card.Attr("title")
			title = strings.TrimSpace(title)
		}
		if title == "" {
			return
		}

		thumb := ""
		if src := imageSource(card.Find("img").First()); src != "" {
			thumb = resolve(src)
		}

		seen[id] = true
		entries = append(entries, domain.CatalogEntry{
			ID:           id,
			Title:        title,
			ThumbnailURL: thumb,
		})
	})
	return entries
}

// === Details ===

// Details fetches the detail page of one title
func (c *Client) Details(ctx context.Context, itemID string) (*domain.DetailRecord, error) {
	itemID = strings.TrimSpace(itemID)
	if itemID == "" {
		return nil, fmt.Errorf("details: %w: empty item id", domain.ErrUserInput)
	}

	body, err := c.get(ctx, "details", c.detailURL(itemID), "")
	if err != nil {
		return nil, err
	}

	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return nil, domain.ParseError("details", err)
	}

	rec := parseDetails(doc, c.resolve)
	rec.ID = itemID
	if rec.IsEmpty() {
		return nil, domain.ParseError("details", fmt.Errorf("no title content on page for %q", itemID))
	}
	return rec, nil
}

func parseDetails(doc *goquery.Document, resolve func(string) string) *domain.DetailRecord {
	rec := &domain.DetailRecord{
		Title: text(doc.Find("h1.entry-title").First()),
	}

	summary := doc.Find(".synp .entry-content").First()
	if summary.Length() == 0 {
		summary = doc.Find(".entry-content").First()
	}
	rec.Summary = text(summary)

	if src := imageSource(doc.Find(".thumb img").First()); src != "" {
		rec.PosterURL = resolve(src)
	}

	doc.Find(".info-content .spe span").Each(func(_ int, s *goquery.Selection) {
		label, value, ok := strings.Cut(text(s), ":")
		if !ok {
			return
		}
		label, value = strings.TrimSpace(label), strings.TrimSpace(value)
		if label == "" || value == "" {
			return
		}
		rec.ExtraInfo = append(rec.ExtraInfo, domain.InfoField{Label: label, Value: value})
	})

	doc.Find(".eplister ul li a").Each(func(_ int, a *goquery.Selection) {
		href, _ := a.Attr("href")
		providerID := idFromLink(href, providerPath)
		if providerID == "" {
			return
		}
		rec.Episodes = append(rec.Episodes, domain.Episode{
			Number:     text(a.Find(".epl-num").First()),
			Title:      text(a.Find(".epl-title").First()),
			ProviderID: providerID,
		})
	})

	return rec
}

// === Helpers ===

// idFromLink extracts the path segment following prefix in href
func idFromLink(href, prefix string) string {
	u, err := url.Parse(strings.TrimSpace(href))
	if err != nil {
		return ""
	}
	_, rest, ok := strings.Cut(u.Path, prefix)
	if !ok {
		return ""
	}
	id, _, _ := strings.Cut(rest, "/")
	id, err = url.PathUnescape(id)
	if err != nil {
		return ""
	}
	return path.Clean("/" + id)[1:]
}

// imageSource prefers lazy-load attributes over src placeholders
func imageSource(img *goquery.Selection) string {
	for _, attr := range []string{"data-src", "data-lazy-src", "src"} {
		if v, ok := img.Attr(attr); ok && strings.TrimSpace(v) != "" && !strings.HasPrefix(v, "data:") {
			return strings.TrimSpace(v)
		}
	}
	return ""
}

// text returns the selection's text with whitespace runs collapsed
func text(s *goquery.Selection) string {
	return strings.Join(strings.Fields(s.Text()), " ")
}
