package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// NOTE: All metrics are defined globally here. The CLI binary links this package
// too and simply never scrapes it.

// namespace defines the global prefix for all metrics (e.g., gefjon_...).
const namespace = "gefjon"

// mutationBuckets covers storefront round trips, from a fast local cart (10ms)
// to the slow-network threshold and beyond (5s).
var mutationBuckets = []float64{.010, .025, .050, .100, .250, .400, .600, 1, 2.5, 5}

var (
	// -------------------------------------------------------------------------
	// ENGINE (Passes)
	// -------------------------------------------------------------------------

	// EnginePassesTotal counts master passes by outcome.
	// Metric: gefjon_engine_passes_total
	EnginePassesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "engine",
		Name:      "passes_total",
		Help:      "Total reconciliation passes",
	}, []string{"status"}) // completed, dropped, error

	// EnginePassDuration measures a full BXGY + tiered pass.
	// Metric: gefjon_engine_pass_duration_seconds
	EnginePassDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: namespace,
		Subsystem: "engine",
		Name:      "pass_duration_seconds",
		Help:      "Time taken by a complete reconciliation pass",
		Buckets:   prometheus.DefBuckets,
	})

	// EngineFamilySkipped counts family passes skipped because the family guard was busy.
	EngineFamilySkipped = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "engine",
		Name:      "family_skipped_total",
		Help:      "Family reconciliations skipped because one was already in flight",
	}, []string{"family"})

	// EngineEvaluationErrors counts campaigns skipped for a pass because evaluation failed.
	EngineEvaluationErrors = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "engine",
		Name:      "evaluation_errors_total",
		Help:      "Campaign evaluations that failed and were skipped",
	}, []string{"family"})

	// -------------------------------------------------------------------------
	// CART (Storefront transport)
	// -------------------------------------------------------------------------

	// CartFetchTotal counts snapshot reads. Coalesced callers are reported with shared="true".
	// Metric: gefjon_cart_fetch_total
	CartFetchTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "cart",
		Name:      "fetch_total",
		Help:      "Total cart snapshot reads",
	}, []string{"status", "shared"})

	// CartMutationsTotal counts add/change calls by outcome.
	// Metric: gefjon_cart_mutations_total
	CartMutationsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "cart",
		Name:      "mutations_total",
		Help:      "Total cart mutations issued",
	}, []string{"action", "status"})

	// CartMutationDuration measures mutation latency; it also feeds the slow-network detector.
	CartMutationDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Subsystem: "cart",
		Name:      "mutation_duration_seconds",
		Help:      "Latency of cart mutations",
		Buckets:   mutationBuckets,
	}, []string{"action"})

	// -------------------------------------------------------------------------
	// CAMPAIGNS (Store + caches)
	// -------------------------------------------------------------------------

	// CampaignLookupsTotal counts where Active() was served from.
	// Metric: gefjon_campaigns_lookups_total
	CampaignLookupsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "campaigns",
		Name:      "lookups_total",
		Help:      "Campaign store lookups by serving layer",
	}, []string{"layer"}) // l1, l2, source, fallback

	// CampaignRefreshTotal counts source reads by outcome.
	CampaignRefreshTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "campaigns",
		Name:      "refresh_total",
		Help:      "Total campaign source reads",
	}, []string{"status"}) // success, malformed, transport_error

	// CampaignActiveCount is the number of active campaigns after the last refresh.
	CampaignActiveCount = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: namespace,
		Subsystem: "campaigns",
		Name:      "active_count",
		Help:      "Active campaigns in the last parsed document",
	}, []string{"type"})

	// --- Cache L1 Metrics (Otter) ---

	CacheHits = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "cache",
		Name:      "l1_hits_total",
		Help:      "Total L1 cache hits (in-memory)",
	}, []string{"cache"})

	CacheMisses = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "cache",
		Name:      "l1_misses_total",
		Help:      "Total L1 cache misses",
	}, []string{"cache"})

	// CacheDropped tracks writes rejected by the cache (capacity/contention).
	CacheDropped = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "cache",
		Name:      "l1_dropped_total",
		Help:      "Total sets rejected by the L1 cache",
	}, []string{"cache"})

	// -------------------------------------------------------------------------
	// COLLECTIONS
	// -------------------------------------------------------------------------

	// CollectionPagesTotal counts collection page requests.
	CollectionPagesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "collections",
		Name:      "pages_total",
		Help:      "Collection product pages fetched",
	}, []string{"status"})

	// -------------------------------------------------------------------------
	// TRIGGER (Bus + Scheduler)
	// -------------------------------------------------------------------------

	// TriggerEventsTotal counts cart-mutated events seen by the scheduler.
	// Metric: gefjon_trigger_events_total
	TriggerEventsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "trigger",
		Name:      "events_total",
		Help:      "Cart mutation events received",
	}, []string{"source"})

	// TriggerDroppedTotal counts passes collapsed by the debounce, discarded by the floor guard or by a busy family.
	TriggerDroppedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "trigger",
		Name:      "dropped_total",
		Help:      "Scheduled passes dropped",
	}, []string{"reason"}) // debounced, floor, busy

	// TriggerSlowNetwork is 1 while the widened floor is in effect.
	TriggerSlowNetwork = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Subsystem: "trigger",
		Name:      "slow_network",
		Help:      "1 when the scheduler uses the slow-network floor",
	})

	// -------------------------------------------------------------------------
	// SELECTION (Pending choice)
	// -------------------------------------------------------------------------

	// SelectionPromptsTotal counts prompt requests by result.
	SelectionPromptsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "selection",
		Name:      "prompts_total",
		Help:      "Gift choice prompts requested",
	}, []string{"result"}) // opened, dropped

	// SelectionOutcomesTotal counts how prompts ended.
	SelectionOutcomesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "selection",
		Name:      "outcomes_total",
		Help:      "Gift choice prompt outcomes",
	}, []string{"outcome"}) // confirmed, cancelled, withdrawn, failed, rejected

	// -------------------------------------------------------------------------
	// STOREFRONT API (HTTP)
	// -------------------------------------------------------------------------

	// APIReqDuration measures the latency of HTTP requests.
	// Metric: gefjon_api_http_handling_seconds
	APIReqDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Subsystem: "api",
		Name:      "http_handling_seconds",
		Help:      "Time taken to handle HTTP requests in the storefront API",
		Buckets:   prometheus.DefBuckets,
	}, []string{"method", "route"})

	// APIReqTotal counts the total number of HTTP requests.
	// Metric: gefjon_api_http_requests_total
	APIReqTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "api",
		Name:      "http_requests_total",
		Help:      "Total HTTP requests in the storefront API",
	}, []string{"method", "route", "code"})

	// -------------------------------------------------------------------------
	// SYNCER (Periodic secondary init)
	// -------------------------------------------------------------------------

	// SyncerCyclesTotal counts periodic warm-up cycles by what the refresh left active.
	// Metric: gefjon_syncer_cycles_total
	SyncerCyclesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "syncer",
		Name:      "cycles_total",
		Help:      "Total periodic cycles processed",
	}, []string{"result"}) // active, empty

	// SyncerCycleDuration measures one warm-up cycle.
	SyncerCycleDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: namespace,
		Subsystem: "syncer",
		Name:      "cycle_duration_seconds",
		Help:      "Time taken to refresh campaigns and schedule a pass",
		Buckets:   prometheus.DefBuckets,
	})
)
