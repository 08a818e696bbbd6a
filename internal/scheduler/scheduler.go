// Package scheduler drives each source's fetch cycle on its own interval.
package scheduler

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sethvargo/go-retry"

	"github.com/filmmaker-og/filmmaker-ogbot/internal/fetch"
	"github.com/filmmaker-og/filmmaker-ogbot/internal/model"
	"github.com/filmmaker-og/filmmaker-ogbot/internal/registry"
	"github.com/filmmaker-og/filmmaker-ogbot/internal/storage"
)

// Notifier delivers one triage-able notification per new post.
type Notifier interface {
	Deliver(ctx context.Context, post *model.Post, sourceName string) error
}

// Scheduler runs one polling loop per source. Cycles for different sources
// run concurrently; a source's cycle never overlaps itself because each loop
// runs its cycle inline.
type Scheduler struct {
	store       storage.Storage
	reg         *registry.Registry
	notifier    Notifier
	fetchers    map[model.SourceKind]fetch.Fetcher
	downloaders map[model.SourceKind]fetch.Downloader
	log         *slog.Logger

	fetchRetries uint64
	baseBackoff  time.Duration
}

// New creates a Scheduler. Fetchers are attached per source kind with
// RegisterFetcher before Run.
func New(store storage.Storage, reg *registry.Registry, notifier Notifier, log *slog.Logger) *Scheduler {
	return &Scheduler{
		store:        store,
		reg:          reg,
		notifier:     notifier,
		fetchers:     make(map[model.SourceKind]fetch.Fetcher),
		downloaders:  make(map[model.SourceKind]fetch.Downloader),
		log:          log,
		fetchRetries: 2,
		baseBackoff:  2 * time.Second,
	}
}

// RegisterFetcher attaches the fetcher used for sources of the given kind.
func (s *Scheduler) RegisterFetcher(kind model.SourceKind, f fetch.Fetcher) {
	s.fetchers[kind] = f
}

// RegisterDownloader attaches the media downloader for sources of the given kind.
func (s *Scheduler) RegisterDownloader(kind model.SourceKind, d fetch.Downloader) {
	s.downloaders[kind] = d
}

// SetBackoff overrides the transient-failure retry policy (useful for testing).
func (s *Scheduler) SetBackoff(base time.Duration, retries uint64) {
	s.baseBackoff = base
	s.fetchRetries = retries
}

// Run starts one polling loop per registered source and blocks until ctx is
// cancelled and all in-flight cycles have committed.
func (s *Scheduler) Run(ctx context.Context) error {
	sources, err := s.reg.List(ctx)
	if err != nil {
		return err
	}

	var wg sync.WaitGroup
	for _, src := range sources {
		wg.Add(1)
		go func(src model.Source) {
			defer wg.Done()
			s.runSource(ctx, src)
		}(src)
	}
	wg.Wait()
	return nil
}

func (s *Scheduler) runSource(ctx context.Context, src model.Source) {
	interval := time.Duration(src.IntervalMinutes) * time.Minute

	s.tick(ctx, src.ID)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.tick(ctx, src.ID)
		}
	}
}

// tick reloads the source so pause/resume decisions made elsewhere take
// effect, then runs one cycle.
func (s *Scheduler) tick(ctx context.Context, id string) {
	if ctx.Err() != nil {
		return
	}
	src, err := s.reg.Get(ctx, id)
	if err != nil {
		s.log.Error("load source", "source_id", id, "error", err)
		return
	}
	if src.Paused {
		s.log.Debug("source paused, skipping", "source_id", id)
		return
	}
	s.runCycle(ctx, *src)
}

// runCycle is one atomic unit of work for a source:
// fetch -> normalize -> dedup/insert -> media -> notify -> record outcome.
func (s *Scheduler) runCycle(ctx context.Context, src model.Source) {
	s.log.Debug("checking source", "source_id", src.ID, "name", src.Name)

	fetcher, ok := s.fetchers[src.Kind]
	if !ok {
		s.log.Error("no fetcher for kind", "source_id", src.ID, "kind", src.Kind)
		return
	}

	cands, err := s.fetchWithRetry(ctx, fetcher, src)
	if err != nil {
		kind := fetch.KindOf(err)
		s.log.Error("fetch source", "source_id", src.ID, "kind", kind.String(), "error", err)
		if err := s.reg.RecordFailure(ctx, src.ID, kind); err != nil {
			s.log.Error("record failure", "source_id", src.ID, "error", err)
		}
		return
	}

	inserted := 0
	for _, cand := range cands {
		// On shutdown stop admitting candidates; anything already
		// inserted has been carried through to delivery.
		if ctx.Err() != nil {
			return
		}
		isNew, err := s.admit(ctx, src, cand)
		if err != nil {
			// A store failure aborts the cycle rather than risking
			// partial writes.
			s.log.Error("admit candidate", "source_id", src.ID, "external_id", cand.ExternalID, "error", err)
			return
		}
		if isNew {
			inserted++
		}
	}

	if inserted > 0 {
		s.log.Info("new posts", "source_id", src.ID, "name", src.Name, "count", inserted)
	}

	if err := s.reg.RecordSuccess(ctx, src.ID); err != nil {
		s.log.Error("record success", "source_id", src.ID, "error", err)
	}
}

// fetchWithRetry retries transient failures with exponential backoff;
// malformed and auth failures surface immediately.
func (s *Scheduler) fetchWithRetry(ctx context.Context, fetcher fetch.Fetcher, src model.Source) ([]fetch.Candidate, error) {
	var cands []fetch.Candidate
	backoff := retry.WithMaxRetries(s.fetchRetries, retry.NewExponential(s.baseBackoff))
	err := retry.Do(ctx, backoff, func(ctx context.Context) error {
		c, err := fetcher.Fetch(ctx, src)
		if err != nil {
			if fetch.KindOf(err) == fetch.Transient {
				return retry.RetryableError(err)
			}
			return err
		}
		cands = c
		return nil
	})
	if err != nil {
		return nil, err
	}
	return cands, nil
}

// admit inserts the candidate if it is unseen and, for a new post, downloads
// its media and delivers the notification. The insert commits before
// delivery is attempted, and delivery runs detached from shutdown
// cancellation so a committed post is never abandoned mid-cycle.
func (s *Scheduler) admit(ctx context.Context, src model.Source, cand fetch.Candidate) (bool, error) {
	post := &model.Post{
		ID:          uuid.NewString(),
		SourceID:    src.ID,
		ExternalID:  cand.ExternalID,
		Kind:        src.Kind,
		Title:       cand.Title,
		Summary:     cand.Summary,
		URL:         cand.URL,
		PublishedAt: cand.PublishedAt,
		FetchedAt:   time.Now().UTC(),
		Status:      model.StatusPending,
		Meta:        cand.Meta,
	}

	isNew, err := s.store.InsertPost(ctx, post)
	if err != nil {
		return false, err
	}
	if !isNew {
		return false, nil
	}

	dctx := context.WithoutCancel(ctx)

	if dl, ok := s.downloaders[src.Kind]; ok && len(cand.MediaURLs) > 0 {
		media := dl.Download(dctx, src, cand, post.ID)
		if len(media) > 0 {
			if err := s.store.AddMedia(dctx, media); err != nil {
				s.log.Error("record media", "post_id", post.ID, "error", err)
			} else {
				post.Media = media
			}
		}
	}

	if err := s.notifier.Deliver(dctx, post, src.Name); err != nil {
		// The post stays pending; a failed delivery is never treated
		// as handled.
		s.log.Error("deliver notification", "post_id", post.ID, "error", err)
	}
	return true, nil
}
