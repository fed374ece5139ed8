// Package metrics exposes vicp.Session state as Prometheus metrics,
// grounded on the teacher's pkg/exporter.TCPInfoCollector: a
// Describe/Collect pair guarded by a mutex over a registry of tracked
// objects, substituting VICP session state for TCP_INFO fields.
package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/epics-modules/lecroyvicp"
)

type sessionEntry struct {
	session *vicp.Session
	labels  []string
}

// SessionCollector implements prometheus.Collector over a registry of
// *vicp.Session handles, reporting link state, last error code, and
// traffic counters for each.
type SessionCollector struct {
	mu       sync.Mutex
	sessions map[string]sessionEntry

	linkState    *prometheus.Desc
	lastErrCode  *prometheus.Desc
	commandCount *prometheus.Desc
	bytesSent    *prometheus.Desc
	bytesRecv    *prometheus.Desc
}

// NewSessionCollector builds a SessionCollector. labelNames declares
// the label keys every call to Add must supply values for, e.g.
// []string{"instrument"}.
func NewSessionCollector(labelNames []string) *SessionCollector {
	return &SessionCollector{
		sessions: make(map[string]sessionEntry),
		linkState: prometheus.NewDesc(
			"vicp_link_state", "Current VICP link state (0=down,1=ok,2=recovering,3=unsupported).",
			labelNames, nil),
		lastErrCode: prometheus.NewDesc(
			"vicp_last_error_code", "Code of the most recently observed session error.",
			labelNames, nil),
		commandCount: prometheus.NewDesc(
			"vicp_commands_total", "Number of VICP commands sent on this session.",
			labelNames, nil),
		bytesSent: prometheus.NewDesc(
			"vicp_bytes_sent_total", "Bytes written to the instrument on this session.",
			labelNames, nil),
		bytesRecv: prometheus.NewDesc(
			"vicp_bytes_received_total", "Bytes read from the instrument on this session.",
			labelNames, nil),
	}
}

func (c *SessionCollector) Describe(descs chan<- *prometheus.Desc) {
	descs <- c.linkState
	descs <- c.lastErrCode
	descs <- c.commandCount
	descs <- c.bytesSent
	descs <- c.bytesRecv
}

func (c *SessionCollector) Collect(metrics chan<- prometheus.Metric) {
	c.mu.Lock()
	defer c.mu.Unlock()

	for _, entry := range c.sessions {
		s := entry.session
		commands, sent, recv := s.Stats()
		errCode := 0
		if err := s.LastError(); err != nil {
			errCode = int(err.Code)
		}

		metrics <- prometheus.MustNewConstMetric(c.linkState, prometheus.GaugeValue, float64(s.LinkState()), entry.labels...)
		metrics <- prometheus.MustNewConstMetric(c.lastErrCode, prometheus.GaugeValue, float64(errCode), entry.labels...)
		metrics <- prometheus.MustNewConstMetric(c.commandCount, prometheus.CounterValue, float64(commands), entry.labels...)
		metrics <- prometheus.MustNewConstMetric(c.bytesSent, prometheus.CounterValue, float64(sent), entry.labels...)
		metrics <- prometheus.MustNewConstMetric(c.bytesRecv, prometheus.CounterValue, float64(recv), entry.labels...)
	}
}

// Add registers s under its session ID with the given label values,
// positionally matching the labelNames passed to NewSessionCollector.
func (c *SessionCollector) Add(s *vicp.Session, labelValues []string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.sessions[s.ID()] = sessionEntry{session: s, labels: labelValues}
}

// Remove stops tracking s.
func (c *SessionCollector) Remove(s *vicp.Session) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.sessions, s.ID())
}
