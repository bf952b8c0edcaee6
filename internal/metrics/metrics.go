// Package metrics exposes scan counters and analyzer latency to Prometheus.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Failure kinds reported by RecordAnalyzerFailure.
const (
	FailureRefusal    = "refusal"
	FailureSchema     = "schema"
	FailureCredential = "credential"
	FailureOther      = "other"
)

// Recorder receives scan events. The scanner depends on this interface only.
type Recorder interface {
	RecordScan(topicID string)
	RecordCardCreated(topicID string)
	RecordDuplicate(topicID string)
	RecordFetchFailure(sourceURL string)
	RecordAnalyzerFailure(kind string)
	RecordAnalyzerLatency(d time.Duration)
}

// Collector is the Prometheus-backed Recorder.
type Collector struct {
	scans            prometheus.Counter
	cardsCreated     prometheus.Counter
	duplicates       prometheus.Counter
	fetchFailures    prometheus.Counter
	analyzerFailures *prometheus.CounterVec
	analyzerLatency  prometheus.Histogram
}

// NewCollector creates a Collector and registers its metrics with reg.
func NewCollector(reg prometheus.Registerer) *Collector {
	c := &Collector{
		scans: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "veille_scans_total",
			Help: "Number of topic scans started.",
		}),
		cardsCreated: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "veille_cards_created_total",
			Help: "Number of analysis cards stored.",
		}),
		duplicates: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "veille_articles_duplicate_total",
			Help: "Number of articles skipped because a card already existed.",
		}),
		fetchFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "veille_fetch_failures_total",
			Help: "Number of sources that could not be fetched.",
		}),
		analyzerFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "veille_analyzer_failures_total",
			Help: "Analyzer failures by kind.",
		}, []string{"kind"}),
		analyzerLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "veille_analyzer_latency_seconds",
			Help:    "Latency of single article analyses.",
			Buckets: prometheus.ExponentialBuckets(0.25, 2, 10),
		}),
	}

	reg.MustRegister(
		c.scans,
		c.cardsCreated,
		c.duplicates,
		c.fetchFailures,
		c.analyzerFailures,
		c.analyzerLatency,
	)
	return c
}

func (c *Collector) RecordScan(topicID string) { c.scans.Inc() }

func (c *Collector) RecordCardCreated(topicID string) { c.cardsCreated.Inc() }

func (c *Collector) RecordDuplicate(topicID string) { c.duplicates.Inc() }

func (c *Collector) RecordFetchFailure(sourceURL string) { c.fetchFailures.Inc() }

// RecordAnalyzerFailure counts one failure under kind, one of the Failure
// constants.
func (c *Collector) RecordAnalyzerFailure(kind string) {
	c.analyzerFailures.WithLabelValues(kind).Inc()
}

func (c *Collector) RecordAnalyzerLatency(d time.Duration) {
	c.analyzerLatency.Observe(d.Seconds())
}

// NopCollector discards every event.
type NopCollector struct{}

func (NopCollector) RecordScan(string) {}
func (NopCollector) RecordCardCreated(string) {}
func (NopCollector) RecordDuplicate(string) {}
func (NopCollector) RecordFetchFailure(string) {}
func (NopCollector) RecordAnalyzerFailure(string) {}
func (NopCollector) RecordAnalyzerLatency(time.Duration) {}

// Handler returns the scrape handler for gatherer mounted at /metrics.
func Handler(gatherer prometheus.Gatherer) http.Handler {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))
	return mux
}
