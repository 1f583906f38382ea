package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var registry = newRegistry()

func newRegistry() *prometheus.Registry {
	r := prometheus.NewRegistry()
	r.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return r
}

// Registry returns the process-wide registry served on /metrics
func Registry() *prometheus.Registry {
	return registry
}

type ChainMetrics struct {
	BlocksSeen         prometheus.Counter
	DuplicateHeads     prometheus.Counter
	SubscriptionErrors prometheus.Counter
	BreakerTrips       prometheus.Counter
	SnapshotLatency    prometheus.Histogram
	SnapshotErrors     prometheus.Counter
	LatestBlock        prometheus.Gauge
}

func NewChainMetrics(namespace string, reg prometheus.Registerer) *ChainMetrics {
	factory := promauto.With(reg)
	return &ChainMetrics{
		BlocksSeen: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "blocks_seen_total",
			Help:      "Total number of new heads received",
		}),
		DuplicateHeads: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "duplicate_heads_total",
			Help:      "Total number of heads dropped as already seen",
		}),
		SubscriptionErrors: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "subscription_errors_total",
			Help:      "Total number of new head subscription failures",
		}),
		BreakerTrips: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "circuit_breaker_trips_total",
			Help:      "Total number of circuit breaker trips",
		}),
		SnapshotLatency: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "snapshot_latency_seconds",
			Help:      "Time taken to fetch a state snapshot",
			Buckets:   prometheus.ExponentialBuckets(0.01, 2, 10),
		}),
		SnapshotErrors: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "snapshot_errors_total",
			Help:      "Total number of failed snapshot fetches",
		}),
		LatestBlock: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "latest_block",
			Help:      "Number of the latest head received",
		}),
	}
}

type StrategyMetrics struct {
	Evaluations      prometheus.Counter
	Skipped          *prometheus.CounterVec
	SearchIterations prometheus.Histogram
	QuotedProfit     prometheus.Gauge
	QuotedAmount     prometheus.Gauge
	Opportunities    prometheus.Counter
}

func NewStrategyMetrics(namespace string, reg prometheus.Registerer) *StrategyMetrics {
	factory := promauto.With(reg)
	return &StrategyMetrics{
		Evaluations: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "evaluations_total",
			Help:      "Total number of snapshots evaluated",
		}),
		Skipped: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "blocks_skipped_total",
			Help:      "Total number of blocks skipped, by reason",
		}, []string{"reason"}),
		SearchIterations: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "search_iterations",
			Help:      "Bisection rounds per search",
			Buckets:   prometheus.LinearBuckets(4, 4, 16),
		}),
		QuotedProfit: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "quoted_profit",
			Help:      "Profit of the latest quote in input asset units",
		}),
		QuotedAmount: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "quoted_amount",
			Help:      "Input amount of the latest quote in input asset units",
		}),
		Opportunities: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "opportunities_total",
			Help:      "Total number of quotes above the profit threshold",
		}),
	}
}

type ExecutionMetrics struct {
	Executions     *prometheus.CounterVec
	RealizedProfit prometheus.Counter
	State          prometheus.Gauge
	Duration       prometheus.Histogram
}

func NewExecutionMetrics(namespace string, reg prometheus.Registerer) *ExecutionMetrics {
	factory := promauto.With(reg)
	return &ExecutionMetrics{
		Executions: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "executions_total",
			Help:      "Total number of executed cycles, by result",
		}, []string{"result"}),
		RealizedProfit: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "realized_profit_total",
			Help:      "Sum of positive realized profit in input asset units",
		}),
		State: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "executor_state",
			Help:      "Current executor state (0 idle, 1 submitting, 2 awaiting confirmation, 3 claiming)",
		}),
		Duration: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "execution_duration_seconds",
			Help:      "Time from submission to claim receipt",
			Buckets:   prometheus.ExponentialBuckets(1, 2, 8),
		}),
	}
}

// BotMetrics groups every collector the bot reports
type BotMetrics struct {
	Chain     *ChainMetrics
	Strategy  *StrategyMetrics
	Execution *ExecutionMetrics
}

// NewBotMetrics registers all bot collectors on reg
func NewBotMetrics(namespace string, reg prometheus.Registerer) *BotMetrics {
	return &BotMetrics{
		Chain:     NewChainMetrics(namespace, reg),
		Strategy:  NewStrategyMetrics(namespace, reg),
		Execution: NewExecutionMetrics(namespace, reg),
	}
}
