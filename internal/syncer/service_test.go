package syncer

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rafaeljc/gefjon/internal/cache"
	"github.com/rafaeljc/gefjon/internal/campaign"
	"github.com/rafaeljc/gefjon/internal/testsupport"
	"github.com/rafaeljc/gefjon/internal/trigger"
)

type fakeCampaigns struct {
	calls     atomic.Int32
	campaigns []campaign.Campaign
}

func (f *fakeCampaigns) Active(ctx context.Context) []campaign.Campaign {
	f.calls.Add(1)
	return f.campaigns
}

type recordingBus struct {
	mu     sync.Mutex
	events []trigger.CartMutated
}

func (b *recordingBus) Publish(e trigger.CartMutated) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.events = append(b.events, e)
}

func (b *recordingBus) snapshot() []trigger.CartMutated {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]trigger.CartMutated(nil), b.events...)
}

func quiet() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestService_Run(t *testing.T) {
	t.Run("Should read campaigns and trigger immediately, then on every tick", func(t *testing.T) {
		lister := &fakeCampaigns{campaigns: []campaign.Campaign{{ID: "1", Type: campaign.TypeBXGY}}}
		bus := &recordingBus{}
		svc := New(quiet(), Config{Interval: 20 * time.Millisecond}, lister, bus)

		ctx, cancel := context.WithCancel(context.Background())
		done := make(chan error, 1)
		go func() { done <- svc.Run(ctx) }()

		require.Eventually(t, func() bool { return lister.calls.Load() >= 3 }, time.Second, 5*time.Millisecond)
		cancel()
		require.NoError(t, <-done)

		events := bus.snapshot()
		require.GreaterOrEqual(t, len(events), 3)
		for _, e := range events {
			assert.Equal(t, trigger.SourcePeriodic, e.Source)
		}
	})

	t.Run("Should count cycles by the active campaigns", func(t *testing.T) {
		svc := New(quiet(), Config{}, &fakeCampaigns{}, &recordingBus{})

		testsupport.AssertMetricDelta(t, "gefjon_syncer_cycles_total", map[string]string{"result": "empty"}, 1, func() {
			svc.cycle(context.Background())
		})
		testsupport.AssertHistogramRecorded(t, "gefjon_syncer_cycle_duration_seconds", nil)
	})

	t.Run("Should default the interval", func(t *testing.T) {
		svc := New(nil, Config{}, &fakeCampaigns{}, &recordingBus{})
		assert.Equal(t, 30*time.Second, svc.config.Interval)
	})

	t.Run("Should panic on missing dependencies", func(t *testing.T) {
		assert.Panics(t, func() { New(nil, Config{}, nil, &recordingBus{}) })
		assert.Panics(t, func() { New(nil, Config{}, &fakeCampaigns{}, nil) })
	})
}

func TestService_DrivesScheduler(t *testing.T) {
	bus := trigger.NewBus()
	var passes atomic.Int32
	sched := trigger.NewScheduler(quiet(), trigger.Config{Debounce: time.Millisecond, MinInterval: time.Millisecond}, func(ctx context.Context) {
		passes.Add(1)
	})
	sched.Start(context.Background())
	defer sched.Stop()
	bus.Subscribe(sched.HandleEvent)

	svc := New(quiet(), Config{Interval: time.Hour}, &fakeCampaigns{}, bus)
	svc.cycle(context.Background())

	require.Eventually(t, func() bool { return passes.Load() == 1 }, time.Second, 5*time.Millisecond)
}

type countingSource struct {
	fetches atomic.Int32
}

func (s *countingSource) Name() string { return "counting" }

func (s *countingSource) Fetch(ctx context.Context) ([]byte, error) {
	s.fetches.Add(1)
	return []byte(`{"campaigns":[{"id":"1","campaignType":"bxgy","status":"active","goals":[
		{"bxgyMode":"all","getProducts":[{"id":"gid://shopify/ProductVariant/5"}]}]}]}`), nil
}

func TestService_RespectsCampaignFreshness(t *testing.T) {
	l1, err := cache.NewMemoryCache[string, []campaign.Campaign]("syncer_freshness", 4, time.Minute)
	require.NoError(t, err)
	defer l1.Close()

	src := &countingSource{}
	store := campaign.NewStore(quiet(), src, l1)
	bus := &recordingBus{}
	svc := New(quiet(), Config{Interval: 10 * time.Millisecond}, store, bus)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- svc.Run(ctx) }()

	require.Eventually(t, func() bool { return len(bus.snapshot()) >= 5 }, 2*time.Second, 5*time.Millisecond)
	cancel()
	require.NoError(t, <-done)

	assert.Equal(t, int32(1), src.fetches.Load(), "the source is read once per freshness interval, not once per tick")
	assert.Len(t, store.LastGood(), 1)
}
