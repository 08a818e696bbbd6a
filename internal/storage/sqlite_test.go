package storage

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"

	"github.com/filmmaker-og/filmmaker-ogbot/internal/model"
)

var ignorePostTS = cmpopts.IgnoreFields(model.Post{}, "PublishedAt", "FetchedAt")

func newTestDB(t *testing.T) *SQLite {
	t.Helper()
	s, err := NewSQLite(":memory:")
	if err != nil {
		t.Fatalf("new sqlite: %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func testSource(t *testing.T, s *SQLite) model.Source {
	t.Helper()
	src := model.Source{
		ID:              model.SourceID(model.KindRSS, "https://example.com/rss"),
		Kind:            model.KindRSS,
		Tier:            1,
		Name:            "Example",
		Address:         "https://example.com/rss",
		IntervalMinutes: 15,
	}
	if err := s.UpsertSource(context.Background(), &src); err != nil {
		t.Fatalf("upsert source: %v", err)
	}
	return src
}

func testPost(srcID string, n int) *model.Post {
	return &model.Post{
		ID:          fmt.Sprintf("post-%d", n),
		SourceID:    srcID,
		ExternalID:  fmt.Sprintf("guid-%d", n),
		Kind:        model.KindRSS,
		Title:       fmt.Sprintf("Post number %d", n),
		URL:         fmt.Sprintf("https://example.com/%d", n),
		PublishedAt: time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC).Add(time.Duration(n) * time.Hour),
		FetchedAt:   time.Date(2026, 8, 20, 0, 0, 0, 0, time.UTC).Add(time.Duration(n) * time.Minute),
		Status:      model.StatusPending,
	}
}

func TestSourceUpsertResetsOperationalState(t *testing.T) {
	ctx := context.Background()
	s := newTestDB(t)
	src := testSource(t, s)

	src.FailureCount = 3
	src.Paused = true
	if err := s.UpdateSource(ctx, &src); err != nil {
		t.Fatalf("update: %v", err)
	}

	// Re-registering the same source clears pause and failures.
	again := src
	again.FailureCount = 0
	again.Paused = false
	if err := s.UpsertSource(ctx, &again); err != nil {
		t.Fatalf("re-upsert: %v", err)
	}

	got, err := s.GetSource(ctx, src.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.Paused || got.FailureCount != 0 {
		t.Errorf("want cleared state, got paused=%v count=%d", got.Paused, got.FailureCount)
	}
}

func TestGetSourceNotFound(t *testing.T) {
	s := newTestDB(t)
	if _, err := s.GetSource(context.Background(), "rss:nope"); err != ErrNotFound {
		t.Fatalf("want ErrNotFound, got %v", err)
	}
}

func TestInsertPostDedup(t *testing.T) {
	ctx := context.Background()
	s := newTestDB(t)
	src := testSource(t, s)

	post := testPost(src.ID, 1)
	isNew, err := s.InsertPost(ctx, post)
	if err != nil {
		t.Fatalf("insert: %v", err)
	}
	if !isNew {
		t.Fatal("first insert should be new")
	}

	// Same (source_id, external_id), different local ID: must be a no-op.
	dup := testPost(src.ID, 1)
	dup.ID = "post-1-dup"
	isNew, err = s.InsertPost(ctx, dup)
	if err != nil {
		t.Fatalf("duplicate insert: %v", err)
	}
	if isNew {
		t.Fatal("duplicate insert must not be new")
	}

	got, err := s.GetPost(ctx, post.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if diff := cmp.Diff(*post, *got, ignorePostTS); diff != "" {
		t.Errorf("post mismatch (-want +got):\n%s", diff)
	}
	if _, err := s.GetPost(ctx, dup.ID); err != ErrNotFound {
		t.Errorf("duplicate row must not exist, got err=%v", err)
	}
}

func TestDedupSurvivesErase(t *testing.T) {
	ctx := context.Background()
	s := newTestDB(t)
	src := testSource(t, s)

	post := testPost(src.ID, 1)
	if _, err := s.InsertPost(ctx, post); err != nil {
		t.Fatalf("insert: %v", err)
	}
	if err := s.UpdatePostStatus(ctx, post.ID, model.StatusErased); err != nil {
		t.Fatalf("erase: %v", err)
	}

	dup := testPost(src.ID, 1)
	dup.ID = "post-after-erase"
	isNew, err := s.InsertPost(ctx, dup)
	if err != nil {
		t.Fatalf("re-insert: %v", err)
	}
	if isNew {
		t.Fatal("erased post must still suppress re-insertion")
	}
}

func TestListPostsByStatusPagination(t *testing.T) {
	ctx := context.Background()
	s := newTestDB(t)
	src := testSource(t, s)

	const total = 25
	for i := 1; i <= total; i++ {
		if _, err := s.InsertPost(ctx, testPost(src.ID, i)); err != nil {
			t.Fatalf("insert %d: %v", i, err)
		}
	}

	seen := make(map[string]bool)
	var prevFetched time.Time
	first := true
	for page := 0; page < 3; page++ {
		posts, err := s.ListPostsByStatus(ctx, model.StatusPending, 10, page*10)
		if err != nil {
			t.Fatalf("page %d: %v", page, err)
		}
		wantLen := 10
		if page == 2 {
			wantLen = 5
		}
		if len(posts) != wantLen {
			t.Fatalf("page %d: want %d posts, got %d", page, wantLen, len(posts))
		}
		for _, p := range posts {
			if seen[p.ID] {
				t.Errorf("post %s appeared twice across pages", p.ID)
			}
			seen[p.ID] = true
			if !first && p.FetchedAt.After(prevFetched) {
				t.Errorf("ordering violated: %s fetched after previous row", p.ID)
			}
			prevFetched = p.FetchedAt
			first = false
		}
	}
	if len(seen) != total {
		t.Errorf("pages must partition the set: want %d distinct posts, got %d", total, len(seen))
	}
}

func TestSearchExcludesErased(t *testing.T) {
	ctx := context.Background()
	s := newTestDB(t)
	src := testSource(t, s)

	keep := testPost(src.ID, 1)
	keep.Title = "Streaming residuals deal announced"
	gone := testPost(src.ID, 2)
	gone.Title = "Streaming platform launches"

	for _, p := range []*model.Post{keep, gone} {
		if _, err := s.InsertPost(ctx, p); err != nil {
			t.Fatalf("insert: %v", err)
		}
	}
	if err := s.UpdatePostStatus(ctx, gone.ID, model.StatusErased); err != nil {
		t.Fatalf("erase: %v", err)
	}

	got, err := s.SearchPosts(ctx, "streaming", 10)
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	if len(got) != 1 || got[0].ID != keep.ID {
		t.Fatalf("want only %s, got %d results", keep.ID, len(got))
	}
}

func TestSearchMatchesHashtags(t *testing.T) {
	ctx := context.Background()
	s := newTestDB(t)
	src := testSource(t, s)

	post := testPost(src.ID, 1)
	post.Kind = model.KindInstagram
	post.Title = "Premiere night"
	post.Meta = model.Metadata{Hashtags: []string{"filmfinancing", "indie"}}
	if _, err := s.InsertPost(ctx, post); err != nil {
		t.Fatalf("insert: %v", err)
	}

	got, err := s.SearchPosts(ctx, "filmfinancing", 10)
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	if len(got) != 1 {
		t.Fatalf("want 1 result, got %d", len(got))
	}
	if diff := cmp.Diff(post.Meta, got[0].Meta); diff != "" {
		t.Errorf("metadata mismatch (-want +got):\n%s", diff)
	}
}

func TestSearchQuoting(t *testing.T) {
	ctx := context.Background()
	s := newTestDB(t)
	testSource(t, s)

	// FTS syntax in user input must not error out.
	if _, err := s.SearchPosts(ctx, `"AND (NOT`, 10); err != nil {
		t.Fatalf("search with operators: %v", err)
	}
	if got, err := s.SearchPosts(ctx, "   ", 10); err != nil || got != nil {
		t.Fatalf("blank query: got %v, %v", got, err)
	}
}

func TestCountPostsByStatus(t *testing.T) {
	ctx := context.Background()
	s := newTestDB(t)
	src := testSource(t, s)

	statuses := []model.Status{
		model.StatusPending, model.StatusPending,
		model.StatusApproved, model.StatusArchived, model.StatusErased,
	}
	for i, st := range statuses {
		p := testPost(src.ID, i+1)
		if _, err := s.InsertPost(ctx, p); err != nil {
			t.Fatalf("insert: %v", err)
		}
		if st != model.StatusPending {
			if err := s.UpdatePostStatus(ctx, p.ID, st); err != nil {
				t.Fatalf("update: %v", err)
			}
		}
	}

	counts, err := s.CountPostsByStatus(ctx)
	if err != nil {
		t.Fatalf("count: %v", err)
	}
	want := map[model.Status]int{
		model.StatusPending:  2,
		model.StatusApproved: 1,
		model.StatusArchived: 1,
		model.StatusErased:   1,
	}
	if diff := cmp.Diff(want, counts); diff != "" {
		t.Errorf("counts mismatch (-want +got):\n%s", diff)
	}
}

func TestMediaRoundTrip(t *testing.T) {
	ctx := context.Background()
	s := newTestDB(t)
	src := testSource(t, s)

	post := testPost(src.ID, 1)
	if _, err := s.InsertPost(ctx, post); err != nil {
		t.Fatalf("insert: %v", err)
	}

	media := []model.Media{
		{PostID: post.ID, Position: 0, LocalPath: "/data/media/a_0.jpg", SourceURL: "https://cdn.example.com/a.jpg"},
		{PostID: post.ID, Position: 1, LocalPath: "/data/media/a_1.mp4", SourceURL: "https://cdn.example.com/a.mp4"},
	}
	if err := s.AddMedia(ctx, media); err != nil {
		t.Fatalf("add media: %v", err)
	}

	got, err := s.GetPost(ctx, post.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if diff := cmp.Diff(media, got.Media); diff != "" {
		t.Errorf("media mismatch (-want +got):\n%s", diff)
	}
}

func TestUpdatePostStatusRejectsNonTerminal(t *testing.T) {
	ctx := context.Background()
	s := newTestDB(t)
	src := testSource(t, s)

	post := testPost(src.ID, 1)
	if _, err := s.InsertPost(ctx, post); err != nil {
		t.Fatalf("insert: %v", err)
	}
	if err := s.UpdatePostStatus(ctx, post.ID, model.StatusApproved); err != nil {
		t.Fatalf("approve: %v", err)
	}

	// A post never returns to pending, and made-up statuses never reach
	// the table.
	for _, status := range []model.Status{model.StatusPending, model.Status("promoted")} {
		if err := s.UpdatePostStatus(ctx, post.ID, status); err == nil {
			t.Errorf("status %q: want error, got nil", status)
		}
	}
	got, err := s.GetPost(ctx, post.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.Status != model.StatusApproved {
		t.Errorf("status must stay approved, got %s", got.Status)
	}
}

func TestUpdatePostStatusNotFound(t *testing.T) {
	s := newTestDB(t)
	if err := s.UpdatePostStatus(context.Background(), "missing", model.StatusApproved); err != ErrNotFound {
		t.Fatalf("want ErrNotFound, got %v", err)
	}
}
