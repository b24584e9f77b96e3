package accounting

import (
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics provide transfer and control channel metrics.
type Metrics struct {
	Bytes     *prometheus.CounterVec
	Transfers *prometheus.CounterVec
	Replies   *prometheus.CounterVec
}

// NewMetrics creates a new metrics instance, the instance shall be assigned to
// DefaultMetrics before any processing takes place.
func NewMetrics(namespace string) *Metrics {
	return &Metrics{
		Bytes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "transfer",
			Name:      "bytes_total",
			Help:      "Bytes moved over data connections.",
		}, []string{"direction"}),
		Transfers: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "transfer",
			Name:      "total",
			Help:      "Transfers finished by result.",
		}, []string{"direction", "result"}),
		Replies: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "control",
			Name:      "replies_total",
			Help:      "Control channel replies by reply class.",
		}, []string{"class"}),
	}
}

// DefaultMetrics specifies metrics used by transfers and sessions.
var DefaultMetrics = (*Metrics)(nil)

// Collectors returns all prometheus metrics as collectors for registration.
func (m *Metrics) Collectors() []prometheus.Collector {
	if m == nil {
		return nil
	}
	return []prometheus.Collector{
		m.Bytes,
		m.Transfers,
		m.Replies,
	}
}

func (m *Metrics) onBytes(direction string, n int) {
	if m == nil {
		return
	}
	m.Bytes.WithLabelValues(direction).Add(float64(n))
}

func (m *Metrics) onDone(direction string, err error) {
	if m == nil {
		return
	}
	result := "ok"
	if err != nil {
		result = "error"
	}
	m.Transfers.WithLabelValues(direction, result).Inc()
}

// OnReply counts a control channel reply by its class
func (m *Metrics) OnReply(code int) {
	if m == nil {
		return
	}
	class := "lost"
	if code > 0 {
		class = strconv.Itoa(code/100) + "xx"
	}
	m.Replies.WithLabelValues(class).Inc()
}
