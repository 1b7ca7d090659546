package prometheus

import (
	"strconv"
	"time"

	prom "github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "linkpulse"

// Metrics groups the engine's collectors. A nil *Metrics is valid and records nothing.
type Metrics struct {
	resolutions     *prom.CounterVec
	resolveDuration prom.Histogram
	linksCreated    prom.Counter
	slugCollisions  prom.Counter
	clicksRecorded  prom.Counter
	clicksFailed    prom.Counter
	clicksDropped   prom.Counter
	httpRequests    *prom.CounterVec
}

// NewMetrics registers all collectors on reg.
func NewMetrics(reg prom.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		resolutions: f.NewCounterVec(prom.CounterOpts{
			Namespace: namespace,
			Name:      "resolutions_total",
			Help:      "Slug resolutions by outcome.",
		}, []string{"outcome"}),
		resolveDuration: f.NewHistogram(prom.HistogramOpts{
			Namespace: namespace,
			Name:      "resolve_duration_seconds",
			Help:      "Time spent resolving a slug.",
			Buckets:   []float64{.0005, .001, .0025, .005, .01, .025, .05, .1, .25},
		}),
		linksCreated: f.NewCounter(prom.CounterOpts{
			Namespace: namespace,
			Name:      "links_created_total",
			Help:      "Links created.",
		}),
		slugCollisions: f.NewCounter(prom.CounterOpts{
			Namespace: namespace,
			Name:      "slug_collisions_total",
			Help:      "Generated slug candidates rejected as taken.",
		}),
		clicksRecorded: f.NewCounter(prom.CounterOpts{
			Namespace: namespace,
			Name:      "clicks_recorded_total",
			Help:      "Click events persisted.",
		}),
		clicksFailed: f.NewCounter(prom.CounterOpts{
			Namespace: namespace,
			Name:      "clicks_failed_total",
			Help:      "Click events that could not be persisted.",
		}),
		clicksDropped: f.NewCounter(prom.CounterOpts{
			Namespace: namespace,
			Name:      "clicks_dropped_total",
			Help:      "Click events dropped because the dispatch queue was full.",
		}),
		httpRequests: f.NewCounterVec(prom.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "HTTP requests by method and status.",
		}, []string{"method", "status"}),
	}
}

func (m *Metrics) ObserveResolution(outcome string, d time.Duration) {
	if m == nil {
		return
	}
	m.resolutions.WithLabelValues(outcome).Inc()
	m.resolveDuration.Observe(d.Seconds())
}

func (m *Metrics) LinkCreated() {
	if m == nil {
		return
	}
	m.linksCreated.Inc()
}

func (m *Metrics) SlugCollision() {
	if m == nil {
		return
	}
	m.slugCollisions.Inc()
}

func (m *Metrics) ClickRecorded() {
	if m == nil {
		return
	}
	m.clicksRecorded.Inc()
}

func (m *Metrics) ClickFailed() {
	if m == nil {
		return
	}
	m.clicksFailed.Inc()
}

func (m *Metrics) ClickDropped() {
	if m == nil {
		return
	}
	m.clicksDropped.Inc()
}

func (m *Metrics) HTTPRequest(method string, status int) {
	if m == nil {
		return
	}
	m.httpRequests.WithLabelValues(method, strconv.Itoa(status)).Inc()
}
