package miner

import (
	"sync"

	"github.com/bundleminer/bundleminer/util"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	prometheusRoundsStarted     prometheus.Counter
	prometheusRoundDuration     prometheus.Histogram
	prometheusSolutionsFound    prometheus.Counter
	prometheusHashesComputed    prometheus.Counter
	prometheusSearchDuration    prometheus.Histogram
	prometheusBundlesSubmitted  prometheus.Counter
	prometheusBundleFailures    *prometheus.CounterVec
	prometheusSubmitDuration    prometheus.Histogram
	prometheusResetsSent        prometheus.Counter
	prometheusBusAttempts       prometheus.Counter
	prometheusBusExhausted      prometheus.Counter
	prometheusRewardRate        prometheus.Gauge
	prometheusDifficultyZeros   prometheus.Gauge
	prometheusAuthFailureStreak prometheus.Gauge
	prometheusChunkSize         prometheus.Histogram
)

var (
	prometheusMetricsInitOnce sync.Once
)

func initPrometheusMetrics() {
	prometheusMetricsInitOnce.Do(_initPrometheusMetrics)
}

func _initPrometheusMetrics() {
	prometheusRoundsStarted = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: "bundleminer",
			Subsystem: "miner",
			Name:      "rounds_started",
			Help:      "Number of mining rounds started",
		},
	)

	prometheusRoundDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "bundleminer",
			Subsystem: "miner",
			Name:      "round_duration_seconds",
			Help:      "Duration of completed mining rounds",
			Buckets:   util.MetricsBucketsSeconds,
		},
	)

	prometheusSolutionsFound = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: "bundleminer",
			Subsystem: "miner",
			Name:      "solutions_found",
			Help:      "Number of verified solutions",
		},
	)

	prometheusHashesComputed = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: "bundleminer",
			Subsystem: "miner",
			Name:      "hashes_computed",
			Help:      "Number of hashes computed by the search workers",
		},
	)

	prometheusSearchDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "bundleminer",
			Subsystem: "miner",
			Name:      "search_duration_seconds",
			Help:      "Time spent finding solutions for all wallets in a round",
			Buckets:   util.MetricsBucketsSeconds,
		},
	)

	prometheusBundlesSubmitted = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: "bundleminer",
			Subsystem: "miner",
			Name:      "bundles_submitted",
			Help:      "Number of bundles accepted by the block engine",
		},
	)

	prometheusBundleFailures = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "bundleminer",
			Subsystem: "miner",
			Name:      "bundle_failures",
			Help:      "Number of failed bundle submissions by error category",
		},
		[]string{"category"},
	)

	prometheusSubmitDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "bundleminer",
			Subsystem: "miner",
			Name:      "submit_duration_seconds",
			Help:      "Duration of bundle submissions",
			Buckets:   util.MetricsBucketsMilliSeconds,
		},
	)

	prometheusResetsSent = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: "bundleminer",
			Subsystem: "miner",
			Name:      "epoch_resets_sent",
			Help:      "Number of epoch reset bundles sent",
		},
	)

	prometheusBusAttempts = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: "bundleminer",
			Subsystem: "miner",
			Name:      "bus_selections",
			Help:      "Number of bus selections",
		},
	)

	prometheusBusExhausted = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: "bundleminer",
			Subsystem: "miner",
			Name:      "bus_selections_exhausted",
			Help:      "Number of bus selections that found no eligible bus",
		},
	)

	prometheusRewardRate = promauto.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "bundleminer",
			Subsystem: "miner",
			Name:      "reward_rate",
			Help:      "Reward rate of the last round in the smallest token unit",
		},
	)

	prometheusDifficultyZeros = promauto.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "bundleminer",
			Subsystem: "miner",
			Name:      "difficulty_leading_zeros",
			Help:      "Leading zero bits of the difficulty of the last round",
		},
	)

	prometheusAuthFailureStreak = promauto.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "bundleminer",
			Subsystem: "miner",
			Name:      "auth_failure_streak",
			Help:      "Consecutive bundle submissions rejected for authentication",
		},
	)

	prometheusChunkSize = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "bundleminer",
			Subsystem: "miner",
			Name:      "chunk_size_bytes",
			Help:      "Encoded size of signed chunk transactions",
			Buckets:   util.MetricsBucketsTransactionSize,
		},
	)
}
