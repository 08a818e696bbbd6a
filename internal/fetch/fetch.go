// Package fetch pulls raw items from monitored sources and normalizes them
// into post candidates.
package fetch

import (
	"context"
	"net/http"
	"time"

	"github.com/filmmaker-og/filmmaker-ogbot/internal/model"
)

// HTTPClient is the interface for performing HTTP requests.
type HTTPClient interface {
	Do(req *http.Request) (*http.Response, error)
}

// Candidate is a normalized item discovered at a source, before dedup.
type Candidate struct {
	ExternalID  string
	Title       string
	Summary     string
	URL         string
	PublishedAt time.Time
	Meta        model.Metadata
	MediaURLs   []string
}

// Fetcher pulls and normalizes the current items of a source. Failures are
// classified via Error / KindOf.
type Fetcher interface {
	Fetch(ctx context.Context, src model.Source) ([]Candidate, error)
}

// Downloader materializes a candidate's media. Implementations are
// best-effort per asset: a failed transfer shrinks the returned list rather
// than failing the post.
type Downloader interface {
	Download(ctx context.Context, src model.Source, cand Candidate, postID string) []model.Media
}

func classifyStatus(code int) Kind {
	switch {
	case code == http.StatusUnauthorized || code == http.StatusForbidden:
		return AuthFailure
	case code == http.StatusRequestTimeout || code == http.StatusTooManyRequests || code >= 500:
		return Transient
	default:
		return Malformed
	}
}
