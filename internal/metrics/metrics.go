package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	ExecutionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "judgexec_executions_total",
			Help: "Total number of execution requests by outcome",
		},
		[]string{"language", "status"},
	)

	ExecutionDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "judgexec_execution_duration_ms",
			Help:    "Execution duration in milliseconds",
			Buckets: []float64{50, 100, 250, 500, 1000, 2500, 5000, 10000, 30000},
		},
		[]string{"language", "phase"}, // phase: "compile", "run", "total"
	)

	TestCaseVerdicts = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "judgexec_test_case_verdicts_total",
			Help: "Test case results by verdict",
		},
		[]string{"language", "verdict"},
	)

	ActiveExecutions = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "judgexec_active_executions",
			Help: "Number of requests currently executing",
		},
	)

	ContainerInvocationTime = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "judgexec_container_invocation_ms",
			Help:    "Wall clock time of one container invocation, create to removal",
			Buckets: []float64{50, 100, 200, 500, 1000, 2000, 5000, 10000},
		},
		[]string{"phase"},
	)

	MemoryUsage = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "judgexec_memory_usage_kb",
			Help:    "Peak memory usage per run in KB, when reported",
			Buckets: []float64{1024, 4096, 16384, 65536, 131072, 262144},
		},
		[]string{"language"},
	)

	RateLimitHits = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "judgexec_rate_limit_hits_total",
			Help: "Total number of requests rejected by the rate limiter",
		},
		[]string{"reason"}, // reason: "global", "client", "concurrency"
	)

	RecordsDropped = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "judgexec_records_dropped_total",
			Help: "Run records dropped because the delivery queue was full",
		},
	)

	RecordQueueDepth = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "judgexec_record_queue_depth",
			Help: "Run records waiting for delivery to the sinks",
		},
	)

	SinkErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "judgexec_sink_errors_total",
			Help: "Failed run record deliveries by sink",
		},
		[]string{"sink"},
	)
)
