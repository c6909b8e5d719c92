// Package reaper periodically removes rows whose lifetime has run out:
// messages past their TTL and one-time codes past their expiry.
package reaper

import (
	"context"
	"log/slog"
	"time"

	"relay/internal/observability/metrics"
	"relay/internal/store"
)

type Reaper struct {
	store    *store.Store
	interval time.Duration
	now      func() time.Time
}

func New(st *store.Store, interval time.Duration) *Reaper {
	return &Reaper{store: st, interval: interval, now: time.Now}
}

// Run sweeps every interval until ctx is done. A non-positive interval
// disables the reaper and Run returns immediately.
func (r *Reaper) Run(ctx context.Context) {
	if r.interval <= 0 {
		return
	}
	t := time.NewTicker(r.interval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			if _, _, err := r.Sweep(ctx); err != nil {
				slog.Warn("reaper sweep failed", "error", err)
			}
		}
	}
}

// Sweep deletes expired messages and codes in one transaction.
func (r *Reaper) Sweep(ctx context.Context) (messages, codes int64, err error) {
	now := r.now().UTC()
	err = r.store.WithTx(ctx, func(tx *store.Store) error {
		var err error
		if messages, err = tx.Messages().DeleteExpired(ctx, now); err != nil {
			return err
		}
		codes, err = tx.Codes().DeleteExpired(ctx, now)
		return err
	})
	if err != nil {
		return 0, 0, err
	}
	metrics.ReaperDeletedTotal.WithLabelValues("message").Add(float64(messages))
	metrics.ReaperDeletedTotal.WithLabelValues("code").Add(float64(codes))
	if messages+codes > 0 {
		slog.Info("reaper sweep", "messages", messages, "codes", codes)
	}
	return messages, codes, nil
}
