package tui

import (
	"encoding/json"
	"os"
	"sort"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// DefaultMetricsPath is where the JSON snapshot is optionally written.
const DefaultMetricsPath = "/tmp/tui_metrics.json"

// Snapshot is the JSON shape of a metrics export.
type Snapshot struct {
	RenderNodesWalked    int64   `json:"render_nodes_walked"`
	RenderNodesPainted   int64   `json:"render_nodes_painted"`
	DamageRectsCount     int64   `json:"damage_rects_count"`
	BytesPerFrameP50     float64 `json:"bytes_per_frame_p50"`
	BytesPerFrameP95     float64 `json:"bytes_per_frame_p95"`
	FramesPerSecP50      float64 `json:"frames_per_sec_p50"`
	FramesPerSecP95      float64 `json:"frames_per_sec_p95"`
	WidthCacheHitRate    float64 `json:"width_cache_hit_rate"`
	TailFastpathHitRate  float64 `json:"tail_fastpath_hit_rate"`
	TTYWriteEAGAIN       int64   `json:"tty_write_eagain"`
	TTYWriteSIGPIPE      int64   `json:"tty_write_sigpipe"`
	GraphRenderTimeP50Ms float64 `json:"graph_render_time_p50"`
	GraphRenderTimeP95Ms float64 `json:"graph_render_time_p95"`
}

// Metrics aggregates per-frame samples into the rolling counters/
// percentiles the snapshot and Prometheus gauges both report.
type Metrics struct {
	mu sync.Mutex

	nodesWalked  int64
	nodesPainted int64
	damageRects  int64
	eagain       int64
	sigpipe      int64

	frameBytes     []float64
	frameIntervals []float64
	graphTimes     []float64
	lastFrameAt    time.Time

	widthCache *CellWidth
	diff       *DiffRenderer

	gaugeBytesP50 prometheus.Gauge
	gaugeBytesP95 prometheus.Gauge
	gaugeFPS      prometheus.Gauge
}

// NewMetrics registers gauges on reg and binds the width cache/diff
// renderer whose hit-rate counters feed the snapshot.
func NewMetrics(widthCache *CellWidth, diff *DiffRenderer, reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		widthCache: widthCache,
		diff:       diff,
		gaugeBytesP50: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "smartvestor", Subsystem: "tui", Name: "bytes_per_frame_p50",
		}),
		gaugeBytesP95: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "smartvestor", Subsystem: "tui", Name: "bytes_per_frame_p95",
		}),
		gaugeFPS: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "smartvestor", Subsystem: "tui", Name: "frames_per_sec_p50",
		}),
	}
	if reg != nil {
		reg.MustRegister(m.gaugeBytesP50, m.gaugeBytesP95, m.gaugeFPS)
	}
	return m
}

// RecordFrame records one completed render pass.
func (m *Metrics) RecordFrame(nodesWalked, nodesPainted, damageRects int, bytesWritten int, graphTime time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.nodesWalked += int64(nodesWalked)
	m.nodesPainted += int64(nodesPainted)
	m.damageRects += int64(damageRects)
	m.frameBytes = appendCapped(m.frameBytes, float64(bytesWritten), 10_000)
	m.graphTimes = appendCapped(m.graphTimes, float64(graphTime.Milliseconds()), 10_000)
	now := time.Now()
	if !m.lastFrameAt.IsZero() {
		interval := now.Sub(m.lastFrameAt).Seconds()
		if interval > 0 {
			m.frameIntervals = appendCapped(m.frameIntervals, 1.0/interval, 10_000)
		}
	}
	m.lastFrameAt = now
}

// RecordEAGAIN/RecordSIGPIPE count sink-level write faults.
func (m *Metrics) RecordEAGAIN()  { m.mu.Lock(); m.eagain++; m.mu.Unlock() }
func (m *Metrics) RecordSIGPIPE() { m.mu.Lock(); m.sigpipe++; m.mu.Unlock() }

func appendCapped(s []float64, v float64, cap int) []float64 {
	s = append(s, v)
	if len(s) > cap {
		s = s[len(s)-cap:]
	}
	return s
}

// Snapshot computes the current rolling snapshot and updates the
// Prometheus gauges.
func (m *Metrics) Snapshot() Snapshot {
	m.mu.Lock()
	defer m.mu.Unlock()

	bp50 := percentileFloat(m.frameBytes, 0.50)
	bp95 := percentileFloat(m.frameBytes, 0.95)
	fps50 := percentileFloat(m.frameIntervals, 0.50)
	fps95 := percentileFloat(m.frameIntervals, 0.95)
	gp50 := percentileFloat(m.graphTimes, 0.50)
	gp95 := percentileFloat(m.graphTimes, 0.95)

	m.gaugeBytesP50.Set(bp50)
	m.gaugeBytesP95.Set(bp95)
	m.gaugeFPS.Set(fps50)

	snap := Snapshot{
		RenderNodesWalked:    m.nodesWalked,
		RenderNodesPainted:   m.nodesPainted,
		DamageRectsCount:     m.damageRects,
		BytesPerFrameP50:     bp50,
		BytesPerFrameP95:     bp95,
		FramesPerSecP50:      fps50,
		FramesPerSecP95:      fps95,
		TTYWriteEAGAIN:       m.eagain,
		TTYWriteSIGPIPE:      m.sigpipe,
		GraphRenderTimeP50Ms: gp50,
		GraphRenderTimeP95Ms: gp95,
	}
	if m.widthCache != nil {
		snap.WidthCacheHitRate = m.widthCache.HitRate()
	}
	if m.diff != nil {
		snap.TailFastpathHitRate = m.diff.TailFastpathHitRate()
	}
	return snap
}

// WriteSnapshot writes the current snapshot as JSON to path
// (DefaultMetricsPath if empty).
func (m *Metrics) WriteSnapshot(path string) error {
	if path == "" {
		path = DefaultMetricsPath
	}
	b, err := json.MarshalIndent(m.Snapshot(), "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, b, 0o644)
}

func percentileFloat(samples []float64, p float64) float64 {
	n := len(samples)
	if n == 0 {
		return 0
	}
	sorted := make([]float64, n)
	copy(sorted, samples)
	sort.Float64s(sorted)
	idx := int(p * float64(n))
	if idx >= n {
		idx = n - 1
	}
	return sorted[idx]
}
