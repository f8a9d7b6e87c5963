package metrics

import (
	"context"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/sirupsen/logrus"
)

const namespace = "hashtag_scraper"

// Counter is the store capability the record collector needs
type Counter interface {
	Count(ctx context.Context) (int, error)
}

// Gauge is the limiter capability the concurrency gauges need
type Gauge interface {
	Capacity() int
	InFlight() int
	Peak() int
}

// Metrics owns a private registry and every instrument the service exports.
// A nil *Metrics is valid and records nothing.
type Metrics struct {
	Registry *prometheus.Registry

	fetches     *prometheus.CounterVec
	fetchTime   *prometheus.HistogramVec
	searches    *prometheus.CounterVec
	refreshes   *prometheus.CounterVec
	refreshTime prometheus.Histogram
	requests    *prometheus.CounterVec
}

// New creates the instruments and registers them, plus Go and process collectors
func New() *Metrics {
	m := &Metrics{
		Registry: prometheus.NewRegistry(),
		fetches: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "upstream_fetches_total",
			Help:      "Upstream page fetches by outcome",
		}, []string{"outcome"}),
		fetchTime: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "upstream_fetch_duration_seconds",
			Help:      "Upstream fetch latency by outcome",
			Buckets:   []float64{0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60, 180},
		}, []string{"outcome"}),
		searches: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "searches_total",
			Help:      "Term searches by outcome (hit, miss, upstream_error, store_error)",
		}, []string{"outcome"}),
		refreshes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "bulk_refreshes_total",
			Help:      "Bulk cache refresh attempts by outcome",
		}, []string{"outcome"}),
		refreshTime: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "bulk_refresh_duration_seconds",
			Help:      "Duration of bulk cache refreshes",
			Buckets:   prometheus.ExponentialBuckets(0.5, 2, 10),
		}),
		requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "HTTP requests by route and status code",
		}, []string{"route", "code"}),
	}
	m.Registry.MustRegister(
		m.fetches, m.fetchTime, m.searches, m.refreshes, m.refreshTime, m.requests,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}

// ObserveFetch implements fetch.Observer
func (m *Metrics) ObserveFetch(outcome string, d time.Duration) {
	if m == nil {
		return
	}
	m.fetches.WithLabelValues(outcome).Inc()
	m.fetchTime.WithLabelValues(outcome).Observe(d.Seconds())
}

// ObserveSearch implements aggregate.Observer
func (m *Metrics) ObserveSearch(outcome string) {
	if m == nil {
		return
	}
	m.searches.WithLabelValues(outcome).Inc()
}

// ObserveRefresh implements aggregate.Observer. Skipped refreshes carry a zero duration.
func (m *Metrics) ObserveRefresh(outcome string, d time.Duration) {
	if m == nil {
		return
	}
	m.refreshes.WithLabelValues(outcome).Inc()
	if d > 0 {
		m.refreshTime.Observe(d.Seconds())
	}
}

// ObserveRequest counts one served HTTP request
func (m *Metrics) ObserveRequest(route string, code string) {
	if m == nil {
		return
	}
	m.requests.WithLabelValues(route, code).Inc()
}

// WatchLimiter exports the limiter's capacity, in-flight and peak counts as gauges
func (m *Metrics) WatchLimiter(g Gauge) {
	if m == nil || g == nil {
		return
	}
	m.Registry.MustRegister(
		prometheus.NewGaugeFunc(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "fetch_slots_capacity",
			Help:      "Maximum concurrent upstream requests",
		}, func() float64 { return float64(g.Capacity()) }),
		prometheus.NewGaugeFunc(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "fetch_slots_in_use",
			Help:      "Upstream requests currently holding a slot",
		}, func() float64 { return float64(g.InFlight()) }),
		prometheus.NewGaugeFunc(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "fetch_slots_peak",
			Help:      "Highest number of slots ever held at once",
		}, func() float64 { return float64(g.Peak()) }),
	)
}

// WatchStore registers a collector that reads the stored record count on each scrape
func (m *Metrics) WatchStore(c Counter, log *logrus.Entry) {
	if m == nil || c == nil {
		return
	}
	m.Registry.MustRegister(&storeCollector{store: c, log: log})
}

var storedRecordsDesc = prometheus.NewDesc(
	prometheus.BuildFQName(namespace, "", "stored_search_records"),
	"Search records currently in the term store",
	nil,
	nil,
)

// storeCollector is a custom collector that queries the term store on each scrape
type storeCollector struct {
	store Counter
	log   *logrus.Entry
}

// Describe sends the metric descriptor to the channel.
func (c *storeCollector) Describe(ch chan<- *prometheus.Desc) {
	ch <- storedRecordsDesc
}

// Collect emits the current record count
func (c *storeCollector) Collect(ch chan<- prometheus.Metric) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	n, err := c.store.Count(ctx)
	if err != nil {
		c.log.Errorf("Failed to collect stored record count: %v", err)
		return
	}
	ch <- prometheus.MustNewConstMetric(storedRecordsDesc, prometheus.GaugeValue, float64(n))
}
