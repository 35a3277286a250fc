package metrics

import "github.com/prometheus/client_golang/prometheus"

var (
	// 1) Match volume
	MatchesCreatedTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "matches_created_total",
		Help: "Total number of matches created, by mode.",
	}, []string{"mode"})

	// 2) Concurrency (running tick loops)
	ActiveSchedulers = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "active_schedulers",
		Help: "Current number of running match tick loops.",
	})

	// 3) Tick latency
	TickDurationSeconds = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "tick_duration_seconds",
		Help:    "Duration of one scheduler tick including store commit.",
		Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1},
	})

	// 4) Word flow
	WordsSpawnedTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "words_spawned_total",
		Help: "Total number of words spawned across all matches.",
	})
	WordsClearedTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "words_cleared_total",
		Help: "Total number of words typed successfully.",
	})
	WordsExpiredTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "words_expired_total",
		Help: "Total number of words that expired before being typed.",
	})

	// 5) Power-ups
	PowerUpsTriggeredTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "powerups_triggered_total",
		Help: "Power-ups fired, by kind.",
	}, []string{"kind"})

	// 6) Failures
	TickFailuresTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "tick_failures_total",
		Help: "Scheduler ticks that failed against the store or bus.",
	})
	MatchesStalledTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "matches_stalled_total",
		Help: "Matches whose tick loop gave up after repeated failures.",
	})
	StoreConflictsTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "store_conflicts_total",
		Help: "Optimistic store transactions retried after a concurrent write.",
	})
	BusDroppedTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "bus_dropped_total",
		Help: "Events dropped because a subscriber could not keep up.",
	})

	// 7) Inbound rate limiting
	RateLimitDroppedTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "rate_limit_dropped_total",
		Help: "Inbound frames rejected by the per-player rate limiter.",
	})
)

func MustRegister(reg prometheus.Registerer) {
	reg.MustRegister(
		MatchesCreatedTotal,
		ActiveSchedulers,
		TickDurationSeconds,
		WordsSpawnedTotal,
		WordsClearedTotal,
		WordsExpiredTotal,
		PowerUpsTriggeredTotal,
		TickFailuresTotal,
		MatchesStalledTotal,
		StoreConflictsTotal,
		BusDroppedTotal,
		RateLimitDroppedTotal,
	)
}
