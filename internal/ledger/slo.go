package ledger

import (
	"sort"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	xlog "github.com/luxfi/smartvestor/log"
)

// SLOTarget is a single latency/error-rate objective.
type SLOTarget struct {
	P95Latency   time.Duration
	P99Latency   time.Duration
	ErrorRate    float64 // fraction in [0,1]
	MaxBacklog   int64
}

// DefaultSLOTarget is the gate the automation engine runs against: p95 <=
// 10ms, p99 <= 100ms (the sustained-alert threshold), error rate <= 0.5%,
// backlog <= 1000.
func DefaultSLOTarget() SLOTarget {
	return SLOTarget{
		P95Latency: 10 * time.Millisecond,
		P99Latency: 100 * time.Millisecond,
		ErrorRate:  0.005,
		MaxBacklog: 1_000,
	}
}

// SLOStatus is the instantaneous read the monitor publishes.
type SLOStatus struct {
	P95Latency time.Duration
	P99Latency time.Duration
	ErrorRate  float64
	Backlog    int64
	Breached   bool
	DriftGate  bool // true when a Reconciler incident is open at critical severity
}

// SLOMonitor tracks rolling latency samples and error counts, exposes them
// as Prometheus gauges, and holds a drift gate; CutoverAllowed combines the
// gate with the breach status. CutoverController.Advance does not consult
// the monitor.
type SLOMonitor struct {
	log    xlog.Logger
	target SLOTarget

	mu        sync.Mutex
	latencies []time.Duration
	successes int64
	failures  int64
	backlog   int64
	driftOpen bool

	gaugeP95     prometheus.Gauge
	gaugeP99     prometheus.Gauge
	gaugeErrRate prometheus.Gauge
	gaugeBacklog prometheus.Gauge
}

// NewSLOMonitor registers its gauges on reg (typically
// prometheus.NewRegistry()).
func NewSLOMonitor(target SLOTarget, reg prometheus.Registerer, logger xlog.Logger) *SLOMonitor {
	if logger == nil {
		logger = xlog.Root()
	}
	m := &SLOMonitor{
		log:    logger,
		target: target,
		gaugeP95: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "smartvestor", Subsystem: "ledger", Name: "latency_p95_seconds",
			Help: "Rolling p95 transfer-apply latency in seconds.",
		}),
		gaugeP99: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "smartvestor", Subsystem: "ledger", Name: "latency_p99_seconds",
			Help: "Rolling p99 transfer-apply latency in seconds.",
		}),
		gaugeErrRate: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "smartvestor", Subsystem: "ledger", Name: "error_rate",
			Help: "Fraction of failed transfer batches since the monitor was created.",
		}),
		gaugeBacklog: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "smartvestor", Subsystem: "ledger", Name: "backlog_depth",
			Help: "Outstanding inbox depth on the ledger store actor.",
		}),
	}
	if reg != nil {
		reg.MustRegister(m.gaugeP95, m.gaugeP99, m.gaugeErrRate, m.gaugeBacklog)
	}
	return m
}

// Observe records one transfer-apply latency sample and its outcome.
// The sample window is capped at 10,000 entries (oldest dropped) to keep
// percentile computation O(n log n) on a bounded n.
func (m *SLOMonitor) Observe(latency time.Duration, success bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.latencies = append(m.latencies, latency)
	if len(m.latencies) > 10_000 {
		m.latencies = m.latencies[len(m.latencies)-10_000:]
	}
	if success {
		m.successes++
	} else {
		m.failures++
	}
}

// SetBacklog records the current inbox depth.
func (m *SLOMonitor) SetBacklog(depth int64) {
	m.mu.Lock()
	m.backlog = depth
	m.mu.Unlock()
}

// OpenDriftGate/CloseDriftGate let a Reconciler mark a critical-severity
// incident as outstanding or cleared; the state is reported through
// Status().DriftGate and CutoverAllowed.
func (m *SLOMonitor) OpenDriftGate()  { m.mu.Lock(); m.driftOpen = true; m.mu.Unlock() }
func (m *SLOMonitor) CloseDriftGate() { m.mu.Lock(); m.driftOpen = false; m.mu.Unlock() }

// Status computes the current percentiles/error-rate, updates the
// Prometheus gauges, and reports whether any target is breached.
func (m *SLOMonitor) Status() SLOStatus {
	m.mu.Lock()
	defer m.mu.Unlock()

	p95 := percentile(m.latencies, 0.95)
	p99 := percentile(m.latencies, 0.99)
	total := m.successes + m.failures
	var errRate float64
	if total > 0 {
		errRate = float64(m.failures) / float64(total)
	}

	m.gaugeP95.Set(p95.Seconds())
	m.gaugeP99.Set(p99.Seconds())
	m.gaugeErrRate.Set(errRate)
	m.gaugeBacklog.Set(float64(m.backlog))

	breached := p95 > m.target.P95Latency ||
		p99 > m.target.P99Latency ||
		errRate > m.target.ErrorRate ||
		m.backlog > m.target.MaxBacklog

	status := SLOStatus{
		P95Latency: p95,
		P99Latency: p99,
		ErrorRate:  errRate,
		Backlog:    m.backlog,
		Breached:   breached,
		DriftGate:  m.driftOpen,
	}
	if breached {
		m.log.Warn("slo: target breached", "p95", p95, "p99", p99, "error_rate", errRate, "backlog", m.backlog)
	}
	return status
}

// CutoverAllowed reports whether the SLO and drift gates both permit a
// cutover phase advance.
func (m *SLOMonitor) CutoverAllowed() bool {
	status := m.Status()
	return !status.Breached && !status.DriftGate
}

// percentile returns the p-th percentile (0<p<1) of samples via a sorted
// copy; samples is capped at 10,000 so an O(n log n) sort per call is
// acceptable at the SLOMonitor's polling cadence.
func percentile(samples []time.Duration, p float64) time.Duration {
	n := len(samples)
	if n == 0 {
		return 0
	}
	sorted := make([]time.Duration, n)
	copy(sorted, samples)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i] < sorted[j] })
	idx := int(p * float64(n))
	if idx >= n {
		idx = n - 1
	}
	return sorted[idx]
}
