// Package syncer implements the periodic secondary init: it keeps the
// campaign cache warm and schedules a reconciliation pass on every tick, so
// a cart that drifted without any observed mutation still converges.
package syncer

import (
	"context"
	"log/slog"
	"time"

	"github.com/rafaeljc/gefjon/internal/campaign"
	"github.com/rafaeljc/gefjon/internal/observability"
	"github.com/rafaeljc/gefjon/internal/trigger"
	"github.com/rafaeljc/gefjon/internal/validation"
)

// Config holds the configuration for the Syncer service.
type Config struct {
	// Interval is the duration between cycles.
	Interval time.Duration
}

// Campaigns serves the active campaign list, reading its source only once
// the cached list has gone stale. *campaign.Store implements it.
type Campaigns interface {
	Active(ctx context.Context) []campaign.Campaign
}

// Publisher receives the periodic trigger. *trigger.Bus implements it.
type Publisher interface {
	Publish(e trigger.CartMutated)
}

// Service orchestrates the periodic cycles.
type Service struct {
	logger    *slog.Logger
	config    Config
	campaigns Campaigns
	bus       Publisher
}

// New creates a new Syncer service.
func New(logger *slog.Logger, cfg Config, campaigns Campaigns, bus Publisher) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	validation.AssertDependency(campaigns, "campaigns")
	validation.AssertDependency(bus, "trigger publisher")

	if cfg.Interval <= 0 {
		cfg.Interval = 30 * time.Second
	}

	return &Service{
		logger:    logger,
		config:    cfg,
		campaigns: campaigns,
		bus:       bus,
	}
}

// Run starts the loop. It blocks until the context is cancelled.
func (s *Service) Run(ctx context.Context) error {
	s.logger.Info("starting syncer service", slog.String("interval", s.config.Interval.String()))

	ticker := time.NewTicker(s.config.Interval)
	defer ticker.Stop()

	// Run once immediately on startup
	s.cycle(ctx)

	for {
		select {
		case <-ctx.Done():
			s.logger.Info("syncer service stopping...")
			return nil
		case <-ticker.C:
			s.cycle(ctx)
		}
	}
}

// cycle prefetches the campaigns when stale and asks for a pass. The store
// never fails: it falls back to the last good list on its own.
func (s *Service) cycle(ctx context.Context) {
	start := time.Now()

	active := s.campaigns.Active(ctx)

	result := "active"
	if len(active) == 0 {
		result = "empty"
	}
	observability.SyncerCyclesTotal.WithLabelValues(result).Inc()
	observability.SyncerCycleDuration.Observe(time.Since(start).Seconds())

	s.bus.Publish(trigger.CartMutated{Source: trigger.SourcePeriodic, Action: "sync"})

	s.logger.Debug("sync cycle completed",
		slog.Int("active_campaigns", len(active)),
		slog.String("duration", time.Since(start).String()),
	)
}
