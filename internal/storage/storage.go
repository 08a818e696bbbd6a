// Package storage defines the persistence interface and its implementations.
package storage

import (
	"context"

	"github.com/filmmaker-og/filmmaker-ogbot/internal/model"
)

// Storage is the interface for all persistence operations.
type Storage interface {
	UpsertSource(ctx context.Context, src *model.Source) error
	GetSource(ctx context.Context, id string) (*model.Source, error)
	ListSources(ctx context.Context) ([]model.Source, error)
	UpdateSource(ctx context.Context, src *model.Source) error

	// InsertPost atomically inserts a post unless one with the same
	// (source_id, external_id) already exists. Reports whether the post
	// was new. A duplicate is not an error.
	InsertPost(ctx context.Context, post *model.Post) (bool, error)
	GetPost(ctx context.Context, id string) (*model.Post, error)
	UpdatePostStatus(ctx context.Context, id string, status model.Status) error
	ListPostsByStatus(ctx context.Context, status model.Status, limit, offset int) ([]model.Post, error)
	SearchPosts(ctx context.Context, query string, limit int) ([]model.Post, error)
	CountPostsByStatus(ctx context.Context) (map[model.Status]int, error)

	AddMedia(ctx context.Context, media []model.Media) error
	ListMedia(ctx context.Context, postID string) ([]model.Media, error)

	Close() error
}
