package metadata

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const metricsNamespace = "capture_crawler"

// Metrics holds the crawl's Prometheus collectors. Each crawl gets its own
// registry so that tests and repeated runs do not collide.
type Metrics struct {
	registry *prometheus.Registry

	pages        *prometheus.CounterVec
	probes       *prometheus.CounterVec
	links        *prometheus.CounterVec
	errors       *prometheus.CounterVec
	inFlight     prometheus.Gauge
	pageDuration prometheus.Histogram
}

func NewMetrics() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		pages: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "pages_total",
			Help:      "Dispatched targets by terminal outcome.",
		}, []string{"outcome"}),
		probes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "probe_decisions_total",
			Help:      "Admission probe decisions.",
		}, []string{"decision"}),
		links: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "links_total",
			Help:      "Extracted links by admission result.",
		}, []string{"result"}),
		errors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "errors_total",
			Help:      "Recorded errors by package and cause.",
		}, []string{"package", "cause"}),
		inFlight: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: metricsNamespace,
			Name:      "pages_in_flight",
			Help:      "Targets currently held by workers.",
		}),
		pageDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: metricsNamespace,
			Name:      "page_duration_seconds",
			Help:      "Wall time spent per dispatched target.",
			Buckets:   []float64{0.1, 0.5, 1, 2.5, 5, 10, 30, 60, 120},
		}),
	}
	m.registry.MustRegister(
		m.pages,
		m.probes,
		m.links,
		m.errors,
		m.inFlight,
		m.pageDuration,
		prometheus.NewGoCollector(),
	)
	return m
}

func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *Metrics) PagesCounter(outcome PageOutcome) prometheus.Counter {
	return m.pages.WithLabelValues(string(outcome))
}

func (m *Metrics) ProbeCounter(decision string) prometheus.Counter {
	return m.probes.WithLabelValues(decision)
}

func (m *Metrics) LinksCounter(result string) prometheus.Counter {
	return m.links.WithLabelValues(result)
}

func (m *Metrics) ErrorsCounter(pkg string, cause ErrorCause) prometheus.Counter {
	return m.errors.WithLabelValues(pkg, cause.String())
}

func (m *Metrics) InFlight() prometheus.Gauge {
	return m.inFlight
}

func (m *Metrics) PageDuration() prometheus.Histogram {
	return m.pageDuration
}
