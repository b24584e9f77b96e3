package fshttp

import (
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics provide HTTP fetch level metrics.
type Metrics struct {
	StatusCode *prometheus.CounterVec
}

// NewMetrics creates a new metrics instance, the instance shall be assigned to
// DefaultMetrics before any processing takes place.
func NewMetrics(namespace string) *Metrics {
	return &Metrics{
		StatusCode: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "status_code",
			Help:      "HTTP responses received by status code.",
		}, []string{"host", "code"}),
	}
}

// DefaultMetrics specifies metrics used for HTTP fetches.
var DefaultMetrics = (*Metrics)(nil)

// Collectors returns all prometheus metrics as collectors for registration.
func (m *Metrics) Collectors() []prometheus.Collector {
	if m == nil {
		return nil
	}
	return []prometheus.Collector{
		m.StatusCode,
	}
}

// OnResponse counts a response from host with the status code
func (m *Metrics) OnResponse(host string, statusCode int) {
	if m == nil {
		return
	}
	m.StatusCode.WithLabelValues(host, fmt.Sprint(statusCode)).Inc()
}
