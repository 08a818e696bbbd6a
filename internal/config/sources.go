package config

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/filmmaker-og/filmmaker-ogbot/internal/model"
)

// MaxInstagramAccounts bounds the Instagram handle list.
const MaxInstagramAccounts = 60

// FeedConfig is one RSS feed entry.
type FeedConfig struct {
	Name string `json:"name"`
	URL  string `json:"url"`
}

// TierConfig groups RSS feeds sharing a polling cadence.
type TierConfig struct {
	Tier            int          `json:"tier"`
	IntervalMinutes int          `json:"interval_minutes"`
	Feeds           []FeedConfig `json:"feeds"`
}

// InstagramConfig lists monitored accounts and their shared cadence.
type InstagramConfig struct {
	IntervalMinutes int      `json:"interval_minutes"`
	Accounts        []string `json:"accounts"`
}

// SourcesFile is the monitored-sources configuration snapshot.
type SourcesFile struct {
	RSSTiers  []TierConfig    `json:"rss_tiers"`
	Instagram InstagramConfig `json:"instagram"`
}

// LoadSources reads and validates the sources file at path.
func LoadSources(path string) (*SourcesFile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read sources file: %w", err)
	}

	var sf SourcesFile
	if err := json.Unmarshal(data, &sf); err != nil {
		return nil, fmt.Errorf("parse sources file: %w", err)
	}
	if err := sf.validate(); err != nil {
		return nil, fmt.Errorf("invalid sources file: %w", err)
	}
	return &sf, nil
}

func (sf *SourcesFile) validate() error {
	seen := make(map[string]string)

	for _, tier := range sf.RSSTiers {
		if tier.Tier < 1 {
			return fmt.Errorf("rss tier must be >= 1, got %d", tier.Tier)
		}
		if tier.IntervalMinutes < 1 {
			return fmt.Errorf("tier %d: interval_minutes must be >= 1", tier.Tier)
		}
		for _, feed := range tier.Feeds {
			if feed.Name == "" || feed.URL == "" {
				return fmt.Errorf("tier %d: feed name and url are required", tier.Tier)
			}
			id := model.SourceID(model.KindRSS, feed.URL)
			if prev, dup := seen[id]; dup {
				return fmt.Errorf("duplicate feed url %q (already used by %q)", feed.URL, prev)
			}
			seen[id] = feed.Name
		}
	}

	if n := len(sf.Instagram.Accounts); n > MaxInstagramAccounts {
		return fmt.Errorf("at most %d instagram accounts, got %d", MaxInstagramAccounts, n)
	}
	if len(sf.Instagram.Accounts) > 0 && sf.Instagram.IntervalMinutes < 1 {
		return fmt.Errorf("instagram: interval_minutes must be >= 1")
	}
	for _, handle := range sf.Instagram.Accounts {
		if handle == "" {
			return fmt.Errorf("instagram: empty account handle")
		}
		id := model.SourceID(model.KindInstagram, handle)
		if _, dup := seen[id]; dup {
			return fmt.Errorf("duplicate instagram account %q", handle)
		}
		seen[id] = handle
	}
	return nil
}

// Sources materializes the file into registry entries with stable IDs.
func (sf *SourcesFile) Sources() []model.Source {
	var out []model.Source
	for _, tier := range sf.RSSTiers {
		for _, feed := range tier.Feeds {
			out = append(out, model.Source{
				ID:              model.SourceID(model.KindRSS, feed.URL),
				Kind:            model.KindRSS,
				Tier:            tier.Tier,
				Name:            feed.Name,
				Address:         feed.URL,
				IntervalMinutes: tier.IntervalMinutes,
			})
		}
	}
	for _, handle := range sf.Instagram.Accounts {
		out = append(out, model.Source{
			ID:              model.SourceID(model.KindInstagram, handle),
			Kind:            model.KindInstagram,
			Name:            "@" + handle,
			Address:         handle,
			IntervalMinutes: sf.Instagram.IntervalMinutes,
		})
	}
	return out
}

// HasInstagram reports whether any Instagram accounts are configured.
func (sf *SourcesFile) HasInstagram() bool {
	return len(sf.Instagram.Accounts) > 0
}
