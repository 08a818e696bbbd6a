package fetch

import (
	"context"
	"crypto/sha256"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/microcosm-cc/bluemonday"
	"github.com/mmcdole/gofeed"

	"github.com/filmmaker-og/filmmaker-ogbot/internal/model"
)

const maxFeedBytes = 5 * 1024 * 1024

var stripPolicy = bluemonday.StrictPolicy()

// RSS fetches and normalizes RSS/Atom feeds.
type RSS struct {
	client  HTTPClient
	timeout time.Duration
	log     *slog.Logger
}

// NewRSS creates an RSS fetcher with the given HTTP client.
func NewRSS(client HTTPClient, log *slog.Logger) *RSS {
	return &RSS{
		client:  client,
		timeout: 30 * time.Second,
		log:     log,
	}
}

// Fetch downloads and parses the feed at the source's address. Individual
// entries that cannot be identified are skipped; an unparseable feed is
// reported as Malformed and an HTTP error status per its class.
func (r *RSS) Fetch(ctx context.Context, src model.Source) ([]Candidate, error) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, src.Address, nil)
	if err != nil {
		return nil, malformedf("create request: %w", err)
	}
	req.Header.Set("User-Agent", "WatchtowerBot/1.0")

	resp, err := r.client.Do(req)
	if err != nil {
		return nil, transientf("http get: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return nil, &Error{
			Kind: classifyStatus(resp.StatusCode),
			Err:  fmt.Errorf("unexpected status %d", resp.StatusCode),
		}
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxFeedBytes))
	if err != nil {
		return nil, transientf("read body: %w", err)
	}

	feed, err := gofeed.NewParser().ParseString(string(body))
	if err != nil {
		return nil, malformedf("parse feed: %w", err)
	}

	candidates := make([]Candidate, 0, len(feed.Items))
	for _, item := range feed.Items {
		if item.Title == "" && item.Link == "" {
			r.log.Warn("skipping unidentifiable entry", "source_id", src.ID)
			continue
		}
		candidates = append(candidates, Candidate{
			ExternalID:  entryGUID(item),
			Title:       sanitize(item.Title, 300),
			Summary:     sanitize(item.Description, 300),
			URL:         item.Link,
			PublishedAt: entryPublished(item),
		})
	}
	return candidates, nil
}

// entryGUID returns the dedup key for a feed entry: its GUID, falling back
// to the canonical link, then to a hash of title+link.
func entryGUID(item *gofeed.Item) string {
	if item.GUID != "" {
		return item.GUID
	}
	if item.Link != "" {
		return item.Link
	}
	h := sha256.Sum256([]byte(item.Title + "|" + item.Link))
	return fmt.Sprintf("sha256:%x", h[:16])
}

func entryPublished(item *gofeed.Item) time.Time {
	if item.PublishedParsed != nil {
		return *item.PublishedParsed
	}
	if item.UpdatedParsed != nil {
		return *item.UpdatedParsed
	}
	return time.Now().UTC()
}

// sanitize strips HTML tags and clamps the text to n runes.
func sanitize(s string, n int) string {
	s = strings.TrimSpace(stripPolicy.Sanitize(s))
	if r := []rune(s); len(r) > n {
		s = string(r[:n]) + "..."
	}
	return s
}
