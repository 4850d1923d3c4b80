package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics definitions
var (
	StageDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "symphony_stage_seconds",
		Help:    "Time spent in one pipeline stage.",
		Buckets: prometheus.DefBuckets,
	}, []string{"stage"})

	MergesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "symphony_merges_total",
		Help: "Total number of merge runs by outcome.",
	}, []string{"status"})

	AuditsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "symphony_audits_total",
		Help: "Total number of audit runs by verdict.",
	}, []string{"verdict"})

	MergedModules = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "symphony_merged_modules",
		Help: "Number of modules contributing to the last merge.",
	})

	MergedSymbols = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "symphony_merged_symbols",
		Help: "Number of symbols emitted by the last merge.",
	})

	RenamedSymbols = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "symphony_renamed_symbols",
		Help: "Number of symbols renamed by the last merge.",
	})

	WatcherEventsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "symphony_watcher_events_total",
		Help: "Total number of file system events received by the watcher.",
	})

	WatcherRunsThrottledTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "symphony_watcher_runs_throttled_total",
		Help: "Total number of watch-mode reruns dropped by the rate limiter.",
	})

	HistoryWritesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "symphony_history_writes_total",
		Help: "Total number of run-history writes by outcome.",
	}, []string{"status"})
)
