package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const (
	namespace = "iamlens"
)

var (
	loadDurationBuckets = []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10, 30, 60}

	// Environment load metrics
	EnvironmentLoadDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "environment_load_duration_seconds",
		Help:      "Time taken to load all enabled data types for one environment.",
		Buckets:   loadDurationBuckets,
	}, []string{"environment"})

	EnvironmentLoadsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "environment_loads_total",
		Help:      "Count of environment load attempts.",
	}, []string{"environment", "status"})

	DataTypeFallbacksTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "data_type_fallbacks_total",
		Help:      "Count of per-data-type fetches degraded to an empty set.",
	}, []string{"environment", "data_type"})

	RecordsLoaded = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "records_loaded",
		Help:      "Number of records held in the cache per environment and data type.",
	}, []string{"environment", "data_type"})

	// Aggregation metrics
	AggregateRebuildsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "aggregate_rebuilds_total",
		Help:      "Count of aggregated view rebuilds.",
	})

	// Collector metrics
	CollectorFetchesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "collector_fetches_total",
		Help:      "Count of upstream API collection runs.",
	}, []string{"data_type", "status"})

	CollectorRecordsWritten = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "collector_records_written_total",
		Help:      "Number of records written to JSONL output.",
	}, []string{"data_type"})
)
