package orchestrator

import (
	"context"
	"time"

	"github.com/robfig/cron/v3"

	"parcel-sorter/internal/common/logging"
	"parcel-sorter/internal/events"
)

// DefaultContextTTL is how long a parcel context may sit idle before the
// janitor removes it.
const DefaultContextTTL = 30 * time.Minute

// DefaultSweepSchedule runs the sweep once a minute.
const DefaultSweepSchedule = "@every 1m"

// Janitor evicts idle parcel contexts on a cron schedule. A parcel whose
// measurement never arrives would otherwise pin its context forever.
type Janitor struct {
	store     *ContextStore
	publisher events.Publisher
	ttl       time.Duration
	cron      *cron.Cron
	logger    logging.Logger
}

// NewJanitor creates a janitor over the given store. A non-positive ttl
// falls back to DefaultContextTTL.
func NewJanitor(store *ContextStore, publisher events.Publisher, ttl time.Duration) *Janitor {
	if ttl <= 0 {
		ttl = DefaultContextTTL
	}
	return &Janitor{
		store:     store,
		publisher: publisher,
		ttl:       ttl,
		logger:    logging.WithFields(logging.String("component", "context-janitor")),
	}
}

// Start schedules the sweep and begins running it. An empty schedule falls
// back to DefaultSweepSchedule.
func (j *Janitor) Start(schedule string) error {
	if schedule == "" {
		schedule = DefaultSweepSchedule
	}

	j.cron = cron.New()
	if _, err := j.cron.AddFunc(schedule, j.Sweep); err != nil {
		return err
	}
	j.cron.Start()

	j.logger.Info("context eviction scheduled",
		logging.String("schedule", schedule),
		logging.Duration("ttl", j.ttl),
	)
	return nil
}

// Stop halts the schedule and waits for a running sweep to finish.
func (j *Janitor) Stop() {
	if j.cron != nil {
		<-j.cron.Stop().Done()
	}
}

// Sweep evicts idle contexts once and publishes a ParcelExpired event for
// each. Exported so tests and admin endpoints can trigger it directly.
func (j *Janitor) Sweep() {
	evicted := j.store.evictIdle(j.ttl)
	if len(evicted) == 0 {
		return
	}

	ctx := context.Background()
	for _, idle := range evicted {
		j.logger.Warn("idle parcel context evicted",
			logging.String("parcel_id", idle.ParcelID),
			logging.Duration("idle_for", idle.IdleFor),
		)
		if j.publisher == nil {
			continue
		}
		event := events.New(events.TypeParcelExpired, idle.ParcelID, events.ParcelExpiredData{
			IdleFor: idle.IdleFor,
		})
		if err := j.publisher.Publish(ctx, event); err != nil {
			j.logger.Error("failed to publish expiry event", err,
				logging.String("parcel_id", idle.ParcelID),
			)
		}
	}
}
