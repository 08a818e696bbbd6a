package fetch

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"path"
	"regexp"
	"strings"
	"time"

	"github.com/filmmaker-og/filmmaker-ogbot/internal/media"
	"github.com/filmmaker-og/filmmaker-ogbot/internal/model"
)

const maxAssetBytes = 25 * 1024 * 1024

var hashtagRe = regexp.MustCompile(`#(\w+)`)

// Instagram fetches account posts through a third-party scraping API and
// downloads their media into the local store.
type Instagram struct {
	client  HTTPClient
	baseURL string
	token   string
	store   *media.Store
	timeout time.Duration
	log     *slog.Logger
}

// NewInstagram creates an Instagram fetcher against the scraping API at
// baseURL, authenticated with token.
func NewInstagram(client HTTPClient, baseURL, token string, store *media.Store, log *slog.Logger) *Instagram {
	return &Instagram{
		client:  client,
		baseURL: strings.TrimSuffix(baseURL, "/"),
		token:   token,
		store:   store,
		timeout: 60 * time.Second,
		log:     log,
	}
}

// scrapeResponse is the shape returned by the scraping API.
type scrapeResponse struct {
	User struct {
		Username      string `json:"username"`
		FollowerCount int64  `json:"follower_count"`
	} `json:"user"`
	Posts []scrapePost `json:"posts"`
}

type scrapePost struct {
	ID          string   `json:"id"`
	Caption     string   `json:"caption"`
	Permalink   string   `json:"permalink"`
	TakenAt     int64    `json:"taken_at"`
	Hashtags    []string `json:"hashtags"`
	Location    string   `json:"location"`
	TaggedUsers []string `json:"tagged_users"`
	ViewCount   int64    `json:"view_count"`
	Media       []struct {
		Type string `json:"type"`
		URL  string `json:"url"`
	} `json:"media"`
}

// Fetch retrieves the recent posts of the account named by the source's
// address. Posts without a stable id are skipped; an unexpected API shape is
// reported as Malformed.
func (ig *Instagram) Fetch(ctx context.Context, src model.Source) ([]Candidate, error) {
	ctx, cancel := context.WithTimeout(ctx, ig.timeout)
	defer cancel()

	u := fmt.Sprintf("%s/v1/instagram/%s/posts", ig.baseURL, url.PathEscape(src.Address))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, malformedf("create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+ig.token)
	req.Header.Set("Accept", "application/json")

	resp, err := ig.client.Do(req)
	if err != nil {
		return nil, transientf("http get: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return nil, &Error{
			Kind: classifyStatus(resp.StatusCode),
			Err:  fmt.Errorf("scraper status %d for %s", resp.StatusCode, src.Address),
		}
	}

	var sr scrapeResponse
	if err := json.NewDecoder(io.LimitReader(resp.Body, maxFeedBytes)).Decode(&sr); err != nil {
		return nil, malformedf("decode scraper response: %w", err)
	}

	candidates := make([]Candidate, 0, len(sr.Posts))
	for _, p := range sr.Posts {
		if p.ID == "" {
			ig.log.Warn("skipping post without id", "source_id", src.ID)
			continue
		}
		tags := p.Hashtags
		if len(tags) == 0 {
			tags = extractHashtags(p.Caption)
		}
		urls := make([]string, 0, len(p.Media))
		for _, m := range p.Media {
			if m.URL != "" {
				urls = append(urls, m.URL)
			}
		}
		candidates = append(candidates, Candidate{
			ExternalID:  p.ID,
			Title:       sanitize(p.Caption, 300),
			URL:         p.Permalink,
			PublishedAt: time.Unix(p.TakenAt, 0).UTC(),
			Meta: model.Metadata{
				Hashtags:      tags,
				Location:      p.Location,
				TaggedUsers:   p.TaggedUsers,
				ViewCount:     p.ViewCount,
				FollowerCount: sr.User.FollowerCount,
			},
			MediaURLs: urls,
		})
	}
	return candidates, nil
}

// Download streams each of the candidate's assets into the media store.
// A failed transfer drops that asset and keeps the rest.
func (ig *Instagram) Download(ctx context.Context, src model.Source, cand Candidate, postID string) []model.Media {
	var out []model.Media
	for i, assetURL := range cand.MediaURLs {
		localPath, err := ig.downloadOne(ctx, src.Address, cand.ExternalID, i, assetURL)
		if err != nil {
			ig.log.Warn("media download failed",
				"source_id", src.ID, "external_id", cand.ExternalID, "position", i, "error", err)
			continue
		}
		out = append(out, model.Media{
			PostID:    postID,
			Position:  i,
			LocalPath: localPath,
			SourceURL: assetURL,
		})
	}
	return out
}

func (ig *Instagram) downloadOne(ctx context.Context, handle, externalID string, position int, assetURL string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, ig.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, assetURL, nil)
	if err != nil {
		return "", fmt.Errorf("create request: %w", err)
	}
	resp, err := ig.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("http get: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("unexpected status %d", resp.StatusCode)
	}

	ext := assetExt(assetURL, resp.Header.Get("Content-Type"))
	return ig.store.Save(handle, externalID, position, ext, io.LimitReader(resp.Body, maxAssetBytes))
}

func assetExt(assetURL, contentType string) string {
	switch {
	case strings.HasPrefix(contentType, "image/jpeg"):
		return ".jpg"
	case strings.HasPrefix(contentType, "image/png"):
		return ".png"
	case strings.HasPrefix(contentType, "video/mp4"):
		return ".mp4"
	}
	if u, err := url.Parse(assetURL); err == nil {
		if ext := path.Ext(u.Path); ext != "" {
			return ext
		}
	}
	return ".bin"
}

func extractHashtags(caption string) []string {
	matches := hashtagRe.FindAllStringSubmatch(caption, -1)
	if len(matches) == 0 {
		return nil
	}
	tags := make([]string, 0, len(matches))
	for _, m := range matches {
		tags = append(tags, m[1])
	}
	return tags
}
