// Package vault serves paged browsing and keyword search over stored posts.
package vault

import (
	"context"
	"fmt"
	"strings"

	"github.com/filmmaker-og/filmmaker-ogbot/internal/model"
	"github.com/filmmaker-og/filmmaker-ogbot/internal/storage"
)

// PageSize is the number of posts per vault page.
const PageSize = 10

// SearchLimit caps the number of results a keyword query returns.
const SearchLimit = 20

// Service reads the store; it never mutates posts.
type Service struct {
	store storage.Storage
}

// New creates a vault query service.
func New(store storage.Storage) *Service {
	return &Service{store: store}
}

// ListByStatus returns the given 1-based page of posts with the given
// status, newest first.
func (s *Service) ListByStatus(ctx context.Context, status model.Status, page int) ([]model.Post, error) {
	if page < 1 {
		page = 1
	}
	posts, err := s.store.ListPostsByStatus(ctx, status, PageSize, (page-1)*PageSize)
	if err != nil {
		return nil, fmt.Errorf("list %s posts: %w", status, err)
	}
	return posts, nil
}

// Get returns a single post with its media references.
func (s *Service) Get(ctx context.Context, id string) (*model.Post, error) {
	return s.store.GetPost(ctx, id)
}

// Search returns non-erased posts matching the keywords, ranked by
// relevance with most-recent first on ties.
func (s *Service) Search(ctx context.Context, keywords string) ([]model.Post, error) {
	keywords = strings.TrimSpace(keywords)
	if keywords == "" {
		return nil, nil
	}
	posts, err := s.store.SearchPosts(ctx, keywords, SearchLimit)
	if err != nil {
		return nil, fmt.Errorf("search posts: %w", err)
	}
	return posts, nil
}

// Stats returns post counts grouped by status, computed directly from the
// store so there is no counter to drift.
func (s *Service) Stats(ctx context.Context) (map[model.Status]int, error) {
	counts, err := s.store.CountPostsByStatus(ctx)
	if err != nil {
		return nil, fmt.Errorf("stats: %w", err)
	}
	return counts, nil
}
