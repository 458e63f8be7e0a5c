package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// BatchesTotal tracks batches by how they were settled with the stream
	BatchesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cancel_consumer_batches_total",
			Help: "Total number of batches handled",
		},
		[]string{"outcome"},
	)

	// RecordsDecoded tracks records decoded from the inbound stream
	RecordsDecoded = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "cancel_consumer_records_decoded_total",
			Help: "Total number of cancel request records decoded",
		},
	)

	// RecordsFiltered tracks records dropped because they were already processed
	RecordsFiltered = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "cancel_consumer_records_filtered_total",
			Help: "Total number of records filtered out as already processed",
		},
	)

	// StageOutcomes tracks per-record stage results
	StageOutcomes = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cancel_consumer_stage_outcomes_total",
			Help: "Total number of stage outcomes per record",
		},
		[]string{"stage", "outcome"},
	)

	// TokenAcquisitions tracks credential reuse and refreshes
	TokenAcquisitions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cancel_consumer_token_acquisitions_total",
			Help: "Total number of credential acquisitions",
		},
		[]string{"token_name", "token_type"},
	)

	// TokenInvalidations tracks cached credentials dropped after a 401
	TokenInvalidations = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cancel_consumer_token_invalidations_total",
			Help: "Total number of cached credentials invalidated",
		},
		[]string{"token_name"},
	)

	// HTTPLatency tracks downstream REST call latency
	HTTPLatency = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "cancel_consumer_http_latency_seconds",
			Help:    "Downstream HTTP call latency in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"service", "method", "code"},
	)

	// ResultsPublished tracks outcomes written to the result stream
	ResultsPublished = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cancel_consumer_results_published_total",
			Help: "Total number of results written to the result stream",
		},
		[]string{"success"},
	)
)
