package trigger

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/rafaeljc/gefjon/internal/observability"
)

// Config holds the scheduler timings.
type Config struct {
	// Debounce is the quiet period after the last event before a pass fires.
	Debounce time.Duration
	// MinInterval is the floor between two passes.
	MinInterval time.Duration
	// SlowMinInterval replaces MinInterval while mutations are slow.
	SlowMinInterval time.Duration
	// SlowThreshold is the mutation latency above which the network counts as slow.
	SlowThreshold time.Duration
}

// Scheduler owns one pending timer and a last-run floor.
type Scheduler struct {
	logger *slog.Logger
	cfg    Config
	run    func(ctx context.Context)

	limiter *rate.Limiter

	mu      sync.Mutex
	base    context.Context
	timer   *time.Timer
	slow    bool
	stopped bool

	inflight sync.WaitGroup
}

// NewScheduler creates a scheduler that calls run for every pass.
func NewScheduler(logger *slog.Logger, cfg Config, run func(ctx context.Context)) *Scheduler {
	if logger == nil {
		logger = slog.Default()
	}
	if run == nil {
		panic("trigger: run func cannot be nil")
	}
	if cfg.Debounce <= 0 {
		cfg.Debounce = 150 * time.Millisecond
	}
	if cfg.MinInterval <= 0 {
		cfg.MinInterval = 80 * time.Millisecond
	}
	if cfg.SlowMinInterval < cfg.MinInterval {
		cfg.SlowMinInterval = cfg.MinInterval
	}
	if cfg.SlowThreshold <= 0 {
		cfg.SlowThreshold = 600 * time.Millisecond
	}

	return &Scheduler{
		logger:  logger,
		cfg:     cfg,
		run:     run,
		limiter: rate.NewLimiter(rate.Every(cfg.MinInterval), 1),
		base:    context.Background(),
	}
}

// Start sets the context passes run under. Passes never observe its
// cancellation; use Stop to wait for an in-flight pass.
func (s *Scheduler) Start(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.base = context.WithoutCancel(ctx)
	s.stopped = false
}

// HandleEvent is the Bus subscriber.
func (s *Scheduler) HandleEvent(e CartMutated) {
	s.Trigger()
}

// Trigger (re)arms the debounce timer. Only the trailing call in a burst fires.
func (s *Scheduler) Trigger() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.stopped {
		return
	}
	if s.timer != nil && s.timer.Stop() {
		observability.TriggerDroppedTotal.WithLabelValues("debounced").Inc()
	}
	s.timer = time.AfterFunc(s.cfg.Debounce, s.fire)
}

// ObserveLatency widens the floor while mutations are slower than the
// threshold and restores it once they are fast again.
func (s *Scheduler) ObserveLatency(d time.Duration) {
	slow := d > s.cfg.SlowThreshold

	s.mu.Lock()
	changed := slow != s.slow
	s.slow = slow
	s.mu.Unlock()

	if !changed {
		return
	}

	interval := s.cfg.MinInterval
	gauge := 0.0
	if slow {
		interval = s.cfg.SlowMinInterval
		gauge = 1
	}
	s.limiter.SetLimit(rate.Every(interval))
	observability.TriggerSlowNetwork.Set(gauge)

	s.logger.Info("pass floor adjusted",
		slog.Bool("slow_network", slow),
		slog.Duration("min_interval", interval),
		slog.Duration("observed_latency", d),
	)
}

// Stop cancels the pending timer and waits for an in-flight pass.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	s.stopped = true
	if s.timer != nil {
		s.timer.Stop()
	}
	s.mu.Unlock()

	s.inflight.Wait()
}

func (s *Scheduler) fire() {
	s.mu.Lock()
	if s.stopped {
		s.mu.Unlock()
		return
	}
	ctx := s.base
	s.inflight.Add(1)
	s.mu.Unlock()
	defer s.inflight.Done()

	if !s.limiter.Allow() {
		observability.TriggerDroppedTotal.WithLabelValues("floor").Inc()
		s.logger.Debug("pass discarded by the minimum interval")
		return
	}

	s.run(ctx)
}
