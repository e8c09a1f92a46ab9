package collector

import (
	"context"
	"log/slog"
	"math/rand"
	"time"

	"seatwatch.gbus.kr/internal/metrics"
	"seatwatch.gbus.kr/internal/models"
	"seatwatch.gbus.kr/internal/report"
	"seatwatch.gbus.kr/internal/store"
)

// Sweeper periodically thins the raw observation table: everything older than
// a day goes, the 12-24h band is sampled down to 20%, and stale dedup-cache
// entries are evicted. Runs every 6 hours and on demand.
type Sweeper struct {
	Store    *store.Store
	Cache    *PositionCache
	Logger   *slog.Logger
	Interval time.Duration
	StopChan chan struct{}
}

const (
	sweepHardCutoff  = 24 * time.Hour
	sweepSampleStart = 12 * time.Hour
	sweepSampleFrac  = 0.8
)

func NewSweeper(st *store.Store, cache *PositionCache, logger *slog.Logger) *Sweeper {
	return &Sweeper{
		Store:    st,
		Cache:    cache,
		Logger:   logger,
		Interval: 6 * time.Hour,
		StopChan: make(chan struct{}),
	}
}

// Start runs the periodic sweep loop in a goroutine.
func (w *Sweeper) Start() {
	go func() {
		ticker := time.NewTicker(w.Interval)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				if _, err := w.RunOnce(context.Background()); err != nil {
					w.Logger.Error("Retention sweep failed", "error", err)
				}
			case <-w.StopChan:
				return
			}
		}
	}()
}

// Stop requests the worker to stop.
func (w *Sweeper) Stop() {
	close(w.StopChan)
}

// RunOnce performs one full sweep. Failures in one tier do not stop the
// others; the first error is returned after all tiers ran.
func (w *Sweeper) RunOnce(ctx context.Context) (models.SweepResult, error) {
	now := time.Now().UTC()
	var result models.SweepResult
	var firstErr error

	expired, err := w.Store.DeleteObservationsBefore(now.Add(-sweepHardCutoff))
	if err != nil {
		firstErr = err
		report.ReportError(err)
		w.Logger.Error("Failed to delete expired observations", "error", err)
	} else {
		result.Deleted += expired
		metrics.SweepDeletedTotal.WithLabelValues("expired").Add(float64(expired))
		w.Logger.Info("Deleted expired observations", "count", expired)
	}

	sampled, err := w.sampleMiddleBand(now)
	if err != nil {
		if firstErr == nil {
			firstErr = err
		}
		report.ReportError(err)
		w.Logger.Error("Failed to sample aged observations", "error", err)
	} else {
		result.Deleted += sampled
		metrics.SweepDeletedTotal.WithLabelValues("sampled").Add(float64(sampled))
	}

	if w.Cache != nil {
		result.CacheEvicted = w.Cache.Evict(cacheEntryTTL)
		if result.CacheEvicted > 0 {
			w.Logger.Info("Evicted stale cache entries", "count", result.CacheEvicted)
		}
	}

	return result, firstErr
}

// sampleMiddleBand deletes a random 80% of the observations aged between 12
// and 24 hours, keeping a 20% sample for statistics.
func (w *Sweeper) sampleMiddleBand(now time.Time) (int, error) {
	ids, err := w.Store.ObservationIDsBetween(now.Add(-sweepHardCutoff), now.Add(-sweepSampleStart))
	if err != nil {
		return 0, err
	}
	if len(ids) == 0 {
		return 0, nil
	}

	rand.Shuffle(len(ids), func(i, j int) {
		ids[i], ids[j] = ids[j], ids[i]
	})
	toDelete := int(float64(len(ids)) * sweepSampleFrac)

	deleted, err := w.Store.DeleteObservationsByID(ids[:toDelete])
	if err != nil {
		return deleted, err
	}
	w.Logger.Info("Sampled aged observations", "band_total", len(ids), "deleted", deleted)
	return deleted, nil
}
