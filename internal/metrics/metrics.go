// server/internal/metrics/metrics.go
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Collector gom các chỉ số của server vào một registry riêng.
type Collector struct {
	registry *prometheus.Registry

	httpRequests    *prometheus.CounterVec
	httpDuration    *prometheus.HistogramVec
	itemTransitions *prometheus.CounterVec
	evidenceBytes   prometheus.Counter
}

func New() *Collector {
	registry := prometheus.NewRegistry()

	c := &Collector{
		registry: registry,
		httpRequests: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "garage_http_requests_total",
				Help: "HTTP requests by route, method and status",
			},
			[]string{"route", "method", "status"},
		),
		httpDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "garage_http_request_duration_seconds",
				Help:    "HTTP request latency by route",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"route", "method"},
		),
		itemTransitions: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "garage_repair_item_actions_total",
				Help: "Repair item workflow actions by outcome",
			},
			[]string{"action", "outcome"},
		),
		evidenceBytes: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "garage_evidence_bytes_total",
				Help: "Bytes of evidence photos stored",
			},
		),
	}

	registry.MustRegister(
		c.httpRequests,
		c.httpDuration,
		c.itemTransitions,
		c.evidenceBytes,
		prometheus.NewGoCollector(),
		prometheus.NewProcessCollector(prometheus.ProcessCollectorOpts{}),
	)
	return c
}

func (c *Collector) ObserveRequest(route, method, status string, seconds float64) {
	c.httpRequests.WithLabelValues(route, method, status).Inc()
	c.httpDuration.WithLabelValues(route, method).Observe(seconds)
}

// ItemAction đếm một hành động trên hạng mục; outcome là "ok" hoặc tên loại lỗi.
func (c *Collector) ItemAction(action, outcome string) {
	c.itemTransitions.WithLabelValues(action, outcome).Inc()
}

func (c *Collector) EvidenceStored(n int) {
	c.evidenceBytes.Add(float64(n))
}

func (c *Collector) Registry() *prometheus.Registry {
	return c.registry
}

func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{})
}
