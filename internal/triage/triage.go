// Package triage applies approve/archive/erase decisions to posts.
package triage

import (
	"context"
	"errors"
	"fmt"

	"github.com/filmmaker-og/filmmaker-ogbot/internal/model"
	"github.com/filmmaker-og/filmmaker-ogbot/internal/storage"
)

// Triage request validation errors.
var (
	ErrUnauthorized  = errors.New("requester is not the configured recipient")
	ErrNotFound      = errors.New("post not found")
	ErrUnknownAction = errors.New("unknown triage action")
	ErrErasedLocked  = errors.New("erased posts cannot be re-triaged")
)

// Machine is the only writer of post status. From pending a post moves to
// exactly one terminal state; terminal states are mutually reachable via
// re-triage; a post never returns to pending. Re-applying the current state's
// action is a no-op.
type Machine struct {
	store       storage.Storage
	recipientID int64
	lockErased  bool
}

// New creates a Machine authorizing only recipientID. With lockErased set,
// erased is a terminal sink instead of being re-triageable.
func New(store storage.Storage, recipientID int64, lockErased bool) *Machine {
	return &Machine{
		store:       store,
		recipientID: recipientID,
		lockErased:  lockErased,
	}
}

// Apply validates and applies a triage action, returning the post's
// resulting status.
func (m *Machine) Apply(ctx context.Context, postID string, action model.Action, requesterID int64) (model.Status, error) {
	if requesterID != m.recipientID {
		return "", ErrUnauthorized
	}

	target, ok := action.Status()
	if !ok {
		return "", fmt.Errorf("%w: %q", ErrUnknownAction, action)
	}

	post, err := m.store.GetPost(ctx, postID)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return "", ErrNotFound
		}
		return "", fmt.Errorf("load post: %w", err)
	}

	if post.Status == target {
		return target, nil
	}
	if m.lockErased && post.Status == model.StatusErased {
		return post.Status, ErrErasedLocked
	}

	if err := m.store.UpdatePostStatus(ctx, postID, target); err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return "", ErrNotFound
		}
		return "", fmt.Errorf("update status: %w", err)
	}
	return target, nil
}
