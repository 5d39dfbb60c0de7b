package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// QuoteInvocations tracks quote invocations per chain and outcome
	QuoteInvocations = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "swapquote_invocations_total",
			Help: "Total number of quote invocations",
		},
		[]string{"chain", "trade_type", "outcome"},
	)

	// QuoteLatency tracks end-to-end invocation latency
	QuoteLatency = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "swapquote_latency_seconds",
			Help:    "Quote invocation latency in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"chain", "trade_type", "optimistic"},
	)

	// QuoteAttempts tracks how many attempts an invocation needed
	QuoteAttempts = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "swapquote_attempts",
			Help:    "Number of batch attempts per quote invocation",
			Buckets: []float64{1, 2, 3, 4, 5, 8},
		},
		[]string{"chain"},
	)

	// QuoteBatchSize tracks the number of calls sent per chunk
	QuoteBatchSize = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "swapquote_batch_size",
			Help:    "Number of quoter calls per multicall chunk",
			Buckets: []float64{1, 10, 25, 50, 100, 110, 150, 250},
		},
		[]string{"chain"},
	)

	// QuoteCallsTotal tracks quoter calls sent to the node, including retries
	QuoteCallsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "swapquote_calls_total",
			Help: "Total number of quoter calls dispatched",
		},
		[]string{"chain"},
	)

	// QuoteRetriedCallsTotal tracks calls dispatched again after a failed attempt
	QuoteRetriedCallsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "swapquote_retried_calls_total",
			Help: "Total number of quoter calls dispatched on a retry attempt",
		},
		[]string{"chain"},
	)

	// QuoteChunkFailures tracks failed chunks by failure kind
	QuoteChunkFailures = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "swapquote_chunk_failures_total",
			Help: "Total number of failed multicall chunks by reason",
		},
		[]string{"chain", "reason"},
	)

	// QuoteRemediations tracks applied remediations
	QuoteRemediations = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "swapquote_remediations_total",
			Help: "Total number of batch reconfigurations applied",
		},
		[]string{"chain", "reason"},
	)

	// QuoteApproxGasUsed tracks the highest gas used by a successful call
	QuoteApproxGasUsed = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "swapquote_approx_gas_used_per_success_call",
			Help: "Highest gas used by a successful quoter call in the last invocation",
		},
		[]string{"chain"},
	)

	// RPCCallsTotal tracks RPC calls per chain and provider
	RPCCallsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "swapquote_rpc_calls_total",
			Help: "Total number of RPC calls",
		},
		[]string{"chain", "provider", "method"},
	)

	// RPCErrorsTotal tracks RPC errors per chain and provider
	RPCErrorsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "swapquote_rpc_errors_total",
			Help: "Total number of RPC errors",
		},
		[]string{"chain", "provider", "error_type"},
	)

	// RPCLatency tracks RPC call latency
	RPCLatency = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "swapquote_rpc_latency_seconds",
			Help:    "RPC call latency in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"chain", "provider", "method"},
	)

	// ChainLatestBlock tracks the latest block height seen by the health monitor
	ChainLatestBlock = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "swapquote_chain_latest_block",
			Help: "Latest block height of the chain",
		},
		[]string{"chain"},
	)

	// QuoteCacheLookups tracks quote cache hits and misses
	QuoteCacheLookups = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "swapquote_cache_lookups_total",
			Help: "Total number of quote cache lookups",
		},
		[]string{"chain", "result"},
	)
)

var (
	// DBConnectionPoolUsage tracks database connection pool usage
	DBConnectionPoolUsage = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "swapquote_db_connection_pool_usage_percent",
			Help: "Database connection pool usage percentage",
		},
	)

	// QuoteRunsPersisted tracks quote runs written to storage
	QuoteRunsPersisted = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "swapquote_runs_persisted_total",
			Help: "Total number of quote runs written to storage",
		},
		[]string{"chain", "status"},
	)
)
