package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Quote metrics
	QuoteRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "flashswap_quote_requests_total",
			Help: "Total number of quote requests against the swap service",
		},
		[]string{"status"},
	)

	// Build metrics
	BuildRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "flashswap_build_requests_total",
			Help: "Total number of flash-swap build requests",
		},
		[]string{"status"},
	)

	BuildDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "flashswap_build_duration_seconds",
		Help:    "Flash-swap transaction build duration in seconds",
		Buckets: prometheus.DefBuckets,
	})

	EstimateRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "flashswap_estimate_requests_total",
			Help: "Total number of borrow amount estimate requests",
		},
		[]string{"status"},
	)

	TransactionSize = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "flashswap_transaction_size_bytes",
		Help:    "Serialized size of compiled transactions in bytes",
		Buckets: []float64{400, 600, 800, 1000, 1100, 1200, 1232},
	})

	InstructionCount = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "flashswap_instruction_count",
		Help:    "Number of instructions per compiled transaction",
		Buckets: []float64{6, 8, 10, 12, 15, 20, 30},
	})

	BorrowAmount = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "flashswap_borrow_lamports",
		Help:    "Borrow amounts in lamports",
		Buckets: prometheus.ExponentialBuckets(1_000_000, 10, 8),
	})

	EscrowShortfalls = promauto.NewCounter(prometheus.CounterOpts{
		Name: "flashswap_escrow_shortfalls_total",
		Help: "Builds whose advisory escrow balance check flagged a shortfall",
	})

	// Lookup table metrics
	LookupTablesResolved = promauto.NewCounter(prometheus.CounterOpts{
		Name: "flashswap_lookup_tables_resolved_total",
		Help: "Total number of address lookup tables fetched and applied",
	})

	LookupTablesDropped = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "flashswap_lookup_tables_dropped_total",
			Help: "Lookup tables dropped during resolution",
		},
		[]string{"reason"},
	)

	// Simulation metrics
	SimulationRequests = promauto.NewCounter(prometheus.CounterOpts{
		Name: "flashswap_simulation_requests_total",
		Help: "Total number of transaction simulations",
	})

	SimulationFailures = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "flashswap_simulation_failures_total",
			Help: "Total number of failed transaction simulations",
		},
		[]string{"reason"},
	)

	ComputeUnits = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "flashswap_compute_units",
		Help:    "Compute units consumed by simulated transactions",
		Buckets: []float64{10000, 50000, 100000, 200000, 400000, 700000, 1000000, 1400000},
	})

	// HTTP metrics
	HTTPRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "flashswap_http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	HTTPDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "flashswap_http_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path"},
	)
)
