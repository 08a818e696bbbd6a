package triage

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/filmmaker-og/filmmaker-ogbot/internal/model"
	"github.com/filmmaker-og/filmmaker-ogbot/internal/storage"
)

const recipient int64 = 7001

func newTestStore(t *testing.T) *storage.SQLite {
	t.Helper()
	s, err := storage.NewSQLite(":memory:")
	if err != nil {
		t.Fatalf("new sqlite: %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func seedPost(t *testing.T, s *storage.SQLite) *model.Post {
	t.Helper()
	ctx := context.Background()
	src := model.Source{
		ID:              model.SourceID(model.KindRSS, "https://example.com/rss"),
		Kind:            model.KindRSS,
		Name:            "Example",
		Address:         "https://example.com/rss",
		IntervalMinutes: 15,
	}
	if err := s.UpsertSource(ctx, &src); err != nil {
		t.Fatalf("upsert source: %v", err)
	}
	post := &model.Post{
		ID:          "post-1",
		SourceID:    src.ID,
		ExternalID:  "guid-1",
		Kind:        model.KindRSS,
		Title:       "A post",
		URL:         "https://example.com/1",
		PublishedAt: time.Now().UTC(),
		FetchedAt:   time.Now().UTC(),
		Status:      model.StatusPending,
	}
	if _, err := s.InsertPost(ctx, post); err != nil {
		t.Fatalf("insert post: %v", err)
	}
	return post
}

func currentStatus(t *testing.T, s *storage.SQLite, id string) model.Status {
	t.Helper()
	post, err := s.GetPost(context.Background(), id)
	if err != nil {
		t.Fatalf("get post: %v", err)
	}
	return post.Status
}

func TestApplyFromPending(t *testing.T) {
	tests := []struct {
		action model.Action
		want   model.Status
	}{
		{model.ActionApprove, model.StatusApproved},
		{model.ActionArchive, model.StatusArchived},
		{model.ActionErase, model.StatusErased},
	}
	for _, tt := range tests {
		t.Run(string(tt.action), func(t *testing.T) {
			s := newTestStore(t)
			post := seedPost(t, s)
			m := New(s, recipient, false)

			got, err := m.Apply(context.Background(), post.ID, tt.action, recipient)
			if err != nil {
				t.Fatalf("apply: %v", err)
			}
			if got != tt.want {
				t.Errorf("want %s, got %s", tt.want, got)
			}
			if st := currentStatus(t, s, post.ID); st != tt.want {
				t.Errorf("stored status: want %s, got %s", tt.want, st)
			}
		})
	}
}

func TestApplyIdempotent(t *testing.T) {
	s := newTestStore(t)
	post := seedPost(t, s)
	m := New(s, recipient, false)
	ctx := context.Background()

	if _, err := m.Apply(ctx, post.ID, model.ActionApprove, recipient); err != nil {
		t.Fatalf("first apply: %v", err)
	}
	got, err := m.Apply(ctx, post.ID, model.ActionApprove, recipient)
	if err != nil {
		t.Fatalf("second apply must be a no-op success, got %v", err)
	}
	if got != model.StatusApproved {
		t.Errorf("want approved, got %s", got)
	}
}

func TestReTriageBetweenTerminalStates(t *testing.T) {
	s := newTestStore(t)
	post := seedPost(t, s)
	m := New(s, recipient, false)
	ctx := context.Background()

	steps := []struct {
		action model.Action
		want   model.Status
	}{
		{model.ActionApprove, model.StatusApproved},
		{model.ActionErase, model.StatusErased},
		{model.ActionArchive, model.StatusArchived},
	}
	for _, step := range steps {
		got, err := m.Apply(ctx, post.ID, step.action, recipient)
		if err != nil {
			t.Fatalf("%s: %v", step.action, err)
		}
		if got != step.want {
			t.Errorf("%s: want %s, got %s", step.action, step.want, got)
		}
	}
}

func TestErasedLockedPolicy(t *testing.T) {
	s := newTestStore(t)
	post := seedPost(t, s)
	m := New(s, recipient, true)
	ctx := context.Background()

	if _, err := m.Apply(ctx, post.ID, model.ActionErase, recipient); err != nil {
		t.Fatalf("erase: %v", err)
	}
	// Re-applying erase stays a no-op even under the lock.
	if _, err := m.Apply(ctx, post.ID, model.ActionErase, recipient); err != nil {
		t.Fatalf("repeat erase: %v", err)
	}
	_, err := m.Apply(ctx, post.ID, model.ActionApprove, recipient)
	if !errors.Is(err, ErrErasedLocked) {
		t.Fatalf("want ErrErasedLocked, got %v", err)
	}
	if st := currentStatus(t, s, post.ID); st != model.StatusErased {
		t.Errorf("status must stay erased, got %s", st)
	}
}

func TestUnauthorizedDoesNotMutate(t *testing.T) {
	s := newTestStore(t)
	post := seedPost(t, s)
	m := New(s, recipient, false)

	_, err := m.Apply(context.Background(), post.ID, model.ActionErase, recipient+1)
	if !errors.Is(err, ErrUnauthorized) {
		t.Fatalf("want ErrUnauthorized, got %v", err)
	}
	if st := currentStatus(t, s, post.ID); st != model.StatusPending {
		t.Errorf("status must stay pending, got %s", st)
	}
}

func TestApplyNotFound(t *testing.T) {
	s := newTestStore(t)
	m := New(s, recipient, false)

	_, err := m.Apply(context.Background(), "missing", model.ActionApprove, recipient)
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("want ErrNotFound, got %v", err)
	}
}

func TestApplyUnknownAction(t *testing.T) {
	s := newTestStore(t)
	post := seedPost(t, s)
	m := New(s, recipient, false)

	_, err := m.Apply(context.Background(), post.ID, model.Action("promote"), recipient)
	if !errors.Is(err, ErrUnknownAction) {
		t.Fatalf("want ErrUnknownAction, got %v", err)
	}
}
