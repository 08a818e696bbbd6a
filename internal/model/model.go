// Package model defines the domain types used across the application.
package model

import (
	"crypto/sha256"
	"fmt"
	"time"
)

// SourceKind identifies the platform a source is polled from.
type SourceKind string

// Supported source kinds.
const (
	KindRSS       SourceKind = "rss"
	KindInstagram SourceKind = "instagram"
)

// Source represents one monitored feed or account.
type Source struct {
	ID              string
	Kind            SourceKind
	Tier            int // RSS priority tier; zero for Instagram
	Name            string
	Address         string // feed URL or account handle
	IntervalMinutes int
	FailureCount    int
	Paused          bool
	LastCheckAt     *time.Time
	CreatedAt       time.Time
}

// SourceID derives the stable identifier for a source from its kind and
// address, so reloading configuration never orphans stored posts.
func SourceID(kind SourceKind, address string) string {
	h := sha256.Sum256([]byte(string(kind) + "|" + address))
	return fmt.Sprintf("%s:%x", kind, h[:8])
}

// Status is the triage state of a post.
type Status string

// Post statuses. Pending is the only non-terminal state.
const (
	StatusPending  Status = "pending"
	StatusApproved Status = "approved"
	StatusArchived Status = "archived"
	StatusErased   Status = "erased"
)

// Terminal reports whether s is one of the three triage outcomes.
func (s Status) Terminal() bool {
	return s == StatusApproved || s == StatusArchived || s == StatusErased
}

// ParseStatus converts a stored string into a Status.
func ParseStatus(s string) (Status, error) {
	switch Status(s) {
	case StatusPending, StatusApproved, StatusArchived, StatusErased:
		return Status(s), nil
	}
	return "", fmt.Errorf("unknown status %q", s)
}

// Action is a triage decision taken by the recipient.
type Action string

// Supported triage actions.
const (
	ActionApprove Action = "approve"
	ActionArchive Action = "archive"
	ActionErase   Action = "erase"
)

// Status returns the terminal status an action moves a post to.
func (a Action) Status() (Status, bool) {
	switch a {
	case ActionApprove:
		return StatusApproved, true
	case ActionArchive:
		return StatusArchived, true
	case ActionErase:
		return StatusErased, true
	}
	return "", false
}

// Metadata holds kind-specific attributes of a post. Empty for RSS.
type Metadata struct {
	Hashtags      []string `json:"hashtags,omitempty"`
	Location      string   `json:"location,omitempty"`
	TaggedUsers   []string `json:"tagged_users,omitempty"`
	ViewCount     int64    `json:"view_count,omitempty"`
	FollowerCount int64    `json:"follower_count,omitempty"`
}

// Post is the durable record of one discovered item.
type Post struct {
	ID          string // notification correlation key
	SourceID    string
	ExternalID  string // source-native id or canonical URL; dedup key with SourceID
	Kind        SourceKind
	Title       string
	Summary     string // plain-text excerpt; empty when the source has none
	URL         string
	PublishedAt time.Time
	FetchedAt   time.Time
	Status      Status
	Meta        Metadata
	Media       []Media
}

// Media references one downloaded asset tied to a post.
type Media struct {
	PostID    string
	Position  int
	LocalPath string
	SourceURL string
}
