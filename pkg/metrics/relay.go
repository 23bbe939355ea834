package metrics

import (
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
)

// RelayMetrics tracks upstream media streaming and scrape yields.
type RelayMetrics struct {
	bytes       prometheus.Counter
	upstream    *prometheus.CounterVec
	resolutions *prometheus.CounterVec
	scraped     *prometheus.CounterVec
}

func NewRelayMetrics(reg prometheus.Registerer) *RelayMetrics {
	if reg == nil {
		return &RelayMetrics{}
	}
	m := &RelayMetrics{
		bytes: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "relay_bytes_total",
			Help:      "Bytes streamed from upstream media servers to clients.",
		}),
		upstream: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "relay_upstream_responses_total",
			Help:      "Upstream media responses by status code.",
		}, []string{"status"}),
		resolutions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "relay_resolutions_total",
			Help:      "Media URL resolutions by outcome.",
		}, []string{"outcome"}),
		scraped: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "scraper_records_total",
			Help:      "Records produced by the discovery scraper by origin.",
		}, []string{"origin"}),
	}
	reg.MustRegister(m.bytes, m.upstream, m.resolutions, m.scraped)
	return m
}

func (m *RelayMetrics) AddBytes(n int64) {
	if m == nil || m.bytes == nil || n <= 0 {
		return
	}
	m.bytes.Add(float64(n))
}

func (m *RelayMetrics) IncUpstreamStatus(status int) {
	if m == nil || m.upstream == nil {
		return
	}
	m.upstream.WithLabelValues(strconv.Itoa(status)).Inc()
}

func (m *RelayMetrics) IncResolution(outcome string) {
	if m == nil || m.resolutions == nil {
		return
	}
	m.resolutions.WithLabelValues(normalizeLabel(outcome)).Inc()
}

// AddScraped records how many records a scrape produced, split by "scraped"
// and "fallback" origin.
func (m *RelayMetrics) AddScraped(origin string, n int) {
	if m == nil || m.scraped == nil || n <= 0 {
		return
	}
	m.scraped.WithLabelValues(normalizeLabel(origin)).Add(float64(n))
}
