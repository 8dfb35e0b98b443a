// internal/app/system/workers/countreconcile.go
package workers

import (
	"context"
	"sync"
	"time"

	circlestore "github.com/mrlynn/dailyreflections-sub008/internal/app/store/circles"
	membershipstore "github.com/mrlynn/dailyreflections-sub008/internal/app/store/memberships"
	"github.com/mrlynn/dailyreflections-sub008/internal/app/system/timeouts"
	"go.uber.org/zap"
)

// CountReconcile is a background worker that repairs member_count drift.
//
// member_count on a circle is maintained by increments and compensating
// decrements during join/approve/leave/remove flows. A crash between the
// membership write and the counter write can leave the cached count off by
// one. This worker periodically recomputes the authoritative active count
// per circle and overwrites the cached value when they disagree.
type CountReconcile struct {
	circles     *circlestore.Store
	memberships *membershipstore.Store
	log         *zap.Logger
	interval    time.Duration
	stopCh      chan struct{}
	wg          sync.WaitGroup
}

// NewCountReconcile creates a new member-count reconciliation worker.
//
// Parameters:
//   - circleStore: the circles store
//   - membershipStore: the memberships store
//   - logger: zap logger for logging
//   - interval: how often to run a sweep (e.g., 10 minutes)
func NewCountReconcile(circleStore *circlestore.Store, membershipStore *membershipstore.Store, logger *zap.Logger, interval time.Duration) *CountReconcile {
	return &CountReconcile{
		circles:     circleStore,
		memberships: membershipStore,
		log:         logger,
		interval:    interval,
		stopCh:      make(chan struct{}),
	}
}

// Start begins the background reconciliation loop.
func (w *CountReconcile) Start() {
	w.wg.Add(1)
	go w.run()
	w.log.Info("member count reconcile worker started",
		zap.Duration("interval", w.interval))
}

// Stop signals the worker to stop and waits for it to finish.
func (w *CountReconcile) Stop() {
	close(w.stopCh)
	w.wg.Wait()
	w.log.Info("member count reconcile worker stopped")
}

func (w *CountReconcile) run() {
	defer w.wg.Done()

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-w.stopCh:
			return
		case <-ticker.C:
			w.Sweep()
		}
	}
}

// Sweep recomputes member_count for every circle once. Exposed so tests
// and admin tooling can force a pass without waiting for the ticker.
func (w *CountReconcile) Sweep() {
	ctx, cancel := context.WithTimeout(context.Background(), timeouts.Sweep())
	defer cancel()

	ids, err := w.circles.IDs(ctx)
	if err != nil {
		w.log.Error("failed to list circles for reconciliation", zap.Error(err))
		return
	}

	repaired := 0
	for _, id := range ids {
		actual, err := w.memberships.CountActive(ctx, id)
		if err != nil {
			w.log.Error("failed to count active members",
				zap.String("circle_id", id.Hex()),
				zap.Error(err))
			continue
		}

		circle, err := w.circles.GetByID(ctx, id)
		if err != nil {
			// Circle deleted mid-sweep. Nothing to repair.
			continue
		}

		if circle.MemberCount == actual {
			continue
		}

		if err := w.circles.SetMemberCount(ctx, id, actual); err != nil {
			w.log.Error("failed to repair member count",
				zap.String("circle_id", id.Hex()),
				zap.Error(err))
			continue
		}
		repaired++
		w.log.Warn("repaired member count drift",
			zap.String("circle_id", id.Hex()),
			zap.Int64("cached", circle.MemberCount),
			zap.Int64("actual", actual))
	}

	if repaired > 0 {
		w.log.Info("member count sweep complete", zap.Int("repaired", repaired))
	}
}
