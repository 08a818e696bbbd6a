// Package registry tracks monitored sources and their failure state.
package registry

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/filmmaker-og/filmmaker-ogbot/internal/fetch"
	"github.com/filmmaker-og/filmmaker-ogbot/internal/model"
	"github.com/filmmaker-og/filmmaker-ogbot/internal/storage"
)

// Alerter delivers operator alerts through the notification channel.
type Alerter interface {
	Alert(ctx context.Context, text string)
}

// Registry is the source registry and failure tracker. A source that fails
// authentication, or accumulates consecutive failures up to the threshold,
// is paused and stays paused until an operator resumes it or reloads the
// configuration.
type Registry struct {
	store     storage.Storage
	alerter   Alerter
	threshold int
	log       *slog.Logger
}

// New creates a Registry with the given consecutive-failure threshold.
func New(store storage.Storage, alerter Alerter, threshold int, log *slog.Logger) *Registry {
	return &Registry{
		store:     store,
		alerter:   alerter,
		threshold: threshold,
		log:       log,
	}
}

// Register inserts or updates a source by its stable identifier.
// Re-registering an existing source clears its paused flag and failure count.
func (r *Registry) Register(ctx context.Context, src *model.Source) error {
	if err := r.store.UpsertSource(ctx, src); err != nil {
		return fmt.Errorf("register source %s: %w", src.ID, err)
	}
	return nil
}

// Get returns a source by ID.
func (r *Registry) Get(ctx context.Context, id string) (*model.Source, error) {
	return r.store.GetSource(ctx, id)
}

// List returns all registered sources.
func (r *Registry) List(ctx context.Context) ([]model.Source, error) {
	return r.store.ListSources(ctx)
}

// RecordSuccess resets the source's failure count and stamps its last
// successful check.
func (r *Registry) RecordSuccess(ctx context.Context, id string) error {
	src, err := r.store.GetSource(ctx, id)
	if err != nil {
		return fmt.Errorf("record success: %w", err)
	}
	now := time.Now().UTC()
	src.FailureCount = 0
	src.LastCheckAt = &now
	if err := r.store.UpdateSource(ctx, src); err != nil {
		return fmt.Errorf("record success: %w", err)
	}
	return nil
}

// RecordFailure increments the source's consecutive-failure count. An auth
// failure pauses the source immediately; otherwise the source is paused when
// the count reaches the threshold. Either way exactly one alert is emitted.
func (r *Registry) RecordFailure(ctx context.Context, id string, kind fetch.Kind) error {
	src, err := r.store.GetSource(ctx, id)
	if err != nil {
		return fmt.Errorf("record failure: %w", err)
	}

	src.FailureCount++

	var alert string
	switch {
	case kind == fetch.AuthFailure:
		src.Paused = true
		alert = fmt.Sprintf(
			"Source %q paused: authentication failure. Fix credentials and /resume %s.", src.Name, src.ID)
	case src.FailureCount == r.threshold:
		src.Paused = true
		alert = fmt.Sprintf(
			"Source %q paused after %d consecutive failures. /resume %s to retry.", src.Name, src.FailureCount, src.ID)
	}

	// The alert goes out only once the pause is durable.
	if err := r.store.UpdateSource(ctx, src); err != nil {
		return fmt.Errorf("record failure: %w", err)
	}
	if alert != "" {
		r.alerter.Alert(ctx, alert)
	}

	r.log.Warn("source failure recorded",
		"source_id", src.ID, "kind", kind.String(), "count", src.FailureCount, "paused", src.Paused)
	return nil
}

// Resume clears a source's paused flag and failure count.
func (r *Registry) Resume(ctx context.Context, id string) error {
	src, err := r.store.GetSource(ctx, id)
	if err != nil {
		return fmt.Errorf("resume: %w", err)
	}
	src.Paused = false
	src.FailureCount = 0
	if err := r.store.UpdateSource(ctx, src); err != nil {
		return fmt.Errorf("resume: %w", err)
	}
	r.log.Info("source resumed", "source_id", id)
	return nil
}
