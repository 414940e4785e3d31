// Package worker runs the token janitor, a periodic sweep that deletes
// token records expired past the retention window.
package worker

import (
	"context"
	"log"
	"time"
)

// TokenPurger is the slice of the store the janitor needs.
type TokenPurger interface {
	PurgeExpiredTokens(ctx context.Context, expiredBefore time.Time) (int64, error)
}

type Janitor struct {
	store     TokenPurger
	interval  time.Duration
	retention time.Duration
}

type Config struct {
	Interval  time.Duration
	Retention time.Duration
}

func NewJanitor(store TokenPurger, cfg Config) *Janitor {
	interval := cfg.Interval
	if interval <= 0 {
		interval = time.Hour
	}
	retention := cfg.Retention
	if retention <= 0 {
		retention = 30 * 24 * time.Hour
	}
	return &Janitor{store: store, interval: interval, retention: retention}
}

// Run sweeps on the configured interval until ctx is cancelled.
func (j *Janitor) Run(ctx context.Context) {
	ticker := time.NewTicker(j.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := j.Sweep(ctx); err != nil {
				log.Printf("janitor sweep error: %v", err)
			}
		}
	}
}

// Sweep performs a single purge pass.
func (j *Janitor) Sweep(ctx context.Context) error {
	cutoff := time.Now().UTC().Add(-j.retention)
	purged, err := j.store.PurgeExpiredTokens(ctx, cutoff)
	if err != nil {
		return err
	}
	if purged > 0 {
		log.Printf("janitor purged %d token records expired before %s", purged, cutoff.Format(time.RFC3339))
	}
	return nil
}
