package campaign

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/rafaeljc/gefjon/internal/cache"
	"github.com/rafaeljc/gefjon/internal/observability"
	"github.com/rafaeljc/gefjon/internal/validation"
)

// documentKey is the cache key of the campaign document, in both layers.
const documentKey = "campaigns"

// Source reads the raw campaign document.
type Source interface {
	Name() string
	Fetch(ctx context.Context) ([]byte, error)
}

// StaticSource serves a fixed document. Used by the CLI and tests.
type StaticSource []byte

func (s StaticSource) Name() string { return "static" }

func (s StaticSource) Fetch(ctx context.Context) ([]byte, error) {
	return s, nil
}

// StoreOption configures optional Store layers.
type StoreOption func(*Store)

// WithDocumentCache shares the raw document through an L2 cache (Redis) for ttl.
func WithDocumentCache(l2 cache.DocumentStore, ttl time.Duration) StoreOption {
	return func(s *Store) {
		s.l2 = l2
		s.l2TTL = ttl
	}
}

// Store serves the active campaigns, reading the source at most once per
// freshness interval (the L1 TTL). Lookup order: L1 → L2 → source → last good.
type Store struct {
	logger *slog.Logger
	source Source
	l1     *cache.MemoryCache[string, []Campaign]
	l2     cache.DocumentStore
	l2TTL  time.Duration

	group singleflight.Group

	mu       sync.RWMutex
	lastGood []Campaign
}

// NewStore wires a campaign store. l1 must be built with the freshness interval as TTL.
func NewStore(logger *slog.Logger, source Source, l1 *cache.MemoryCache[string, []Campaign], opts ...StoreOption) *Store {
	if logger == nil {
		logger = slog.Default()
	}
	validation.AssertDependency(source, "campaign source")
	validation.AssertNotNil(l1, "campaign l1 cache")

	s := &Store{logger: logger, source: source, l1: l1}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Active returns the active campaigns, sorted by id. It never fails: on
// transport errors the last good list is served (possibly empty).
func (s *Store) Active(ctx context.Context) []Campaign {
	if campaigns, ok := s.l1.Get(documentKey); ok {
		observability.CampaignLookupsTotal.WithLabelValues("l1").Inc()
		return campaigns
	}

	v, _, _ := s.group.Do(documentKey, func() (any, error) {
		return s.load(ctx), nil
	})
	return v.([]Campaign)
}

// LastGood returns the last successfully parsed list.
func (s *Store) LastGood() []Campaign {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.lastGood
}

func (s *Store) load(ctx context.Context) []Campaign {
	if doc, ok := s.readL2(ctx); ok {
		if campaigns, err := ParseDocument(doc, s.logger); err == nil {
			observability.CampaignLookupsTotal.WithLabelValues("l2").Inc()
			s.remember(campaigns)
			return campaigns
		}
		s.logger.Warn("ignoring malformed campaign document in shared cache")
	}

	doc, err := s.source.Fetch(ctx)
	if err != nil {
		observability.CampaignRefreshTotal.WithLabelValues("transport_error").Inc()
		observability.CampaignLookupsTotal.WithLabelValues("fallback").Inc()

		fallback := s.LastGood()
		s.logger.Warn("campaign source unavailable, serving last good campaigns",
			slog.String("source", s.source.Name()),
			slog.Int("campaigns", len(fallback)),
			slog.String("error", err.Error()),
		)
		// Cached so a dead source is retried once per interval, not once per pass.
		s.l1.Set(documentKey, fallback)
		return fallback
	}

	observability.CampaignLookupsTotal.WithLabelValues("source").Inc()

	campaigns, err := ParseDocument(doc, s.logger)
	if err != nil {
		observability.CampaignRefreshTotal.WithLabelValues("malformed").Inc()
		s.logger.Error("campaign document rejected, no active campaigns until next refresh",
			slog.String("source", s.source.Name()),
			slog.String("error", err.Error()),
		)
		s.l1.Set(documentKey, []Campaign{})
		s.recordActive(nil)
		return []Campaign{}
	}

	observability.CampaignRefreshTotal.WithLabelValues("success").Inc()
	s.writeL2(ctx, doc)
	s.remember(campaigns)
	return campaigns
}

func (s *Store) remember(campaigns []Campaign) {
	if campaigns == nil {
		campaigns = []Campaign{}
	}
	s.mu.Lock()
	s.lastGood = campaigns
	s.mu.Unlock()

	s.l1.Set(documentKey, campaigns)
	s.recordActive(campaigns)

	s.logger.Debug("campaigns refreshed", slog.Int("active", len(campaigns)))
}

func (s *Store) recordActive(campaigns []Campaign) {
	observability.CampaignActiveCount.WithLabelValues(string(TypeBXGY)).Set(float64(len(FilterType(campaigns, TypeBXGY))))
	observability.CampaignActiveCount.WithLabelValues(string(TypeTiered)).Set(float64(len(FilterType(campaigns, TypeTiered))))
}

func (s *Store) readL2(ctx context.Context) ([]byte, bool) {
	if s.l2 == nil {
		return nil, false
	}
	doc, ok, err := s.l2.GetDocument(ctx, documentKey)
	if err != nil {
		s.logger.Warn("shared campaign cache read failed", slog.String("error", err.Error()))
		return nil, false
	}
	return doc, ok
}

func (s *Store) writeL2(ctx context.Context, doc []byte) {
	if s.l2 == nil {
		return
	}
	if err := s.l2.SetDocument(ctx, documentKey, doc, s.l2TTL); err != nil && !errors.Is(err, context.Canceled) {
		s.logger.Warn("shared campaign cache write failed", slog.String("error", err.Error()))
	}
}
