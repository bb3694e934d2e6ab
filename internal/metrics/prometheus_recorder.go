package metrics

import (
	"net/http"
	"sync"
	"time"

	prom "github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// PrometheusRecorder implements Recorder using Prometheus metrics.
type PrometheusRecorder struct {
	once          sync.Once
	buildDuration prom.Histogram
	buildOutcome  *prom.CounterVec
	nodeResults   *prom.CounterVec
	dirtyNodes    prom.Gauge
	workers       prom.Gauge
}

// NewPrometheusRecorder constructs and registers the build metrics.
func NewPrometheusRecorder(reg *prom.Registry) *PrometheusRecorder {
	if reg == nil {
		reg = prom.NewRegistry()
	}
	pr := &PrometheusRecorder{}
	pr.once.Do(func() {
		pr.buildDuration = prom.NewHistogram(prom.HistogramOpts{
			Namespace: "sitesmith",
			Name:      "build_duration_seconds",
			Help:      "Total build duration",
			Buckets:   prom.DefBuckets,
		})
		pr.buildOutcome = prom.NewCounterVec(prom.CounterOpts{
			Namespace: "sitesmith",
			Name:      "build_outcomes_total",
			Help:      "Build outcomes by final status",
		}, []string{"outcome"})
		pr.nodeResults = prom.NewCounterVec(prom.CounterOpts{
			Namespace: "sitesmith",
			Name:      "node_results_total",
			Help:      "Render task results by node kind and outcome",
		}, []string{"kind", "result"})
		pr.dirtyNodes = prom.NewGauge(prom.GaugeOpts{
			Namespace: "sitesmith",
			Name:      "dirty_nodes",
			Help:      "Dirty closure size of the last build",
		})
		pr.workers = prom.NewGauge(prom.GaugeOpts{
			Namespace: "sitesmith",
			Name:      "render_workers",
			Help:      "Worker pool size of the last build",
		})
		reg.MustRegister(pr.buildDuration, pr.buildOutcome, pr.nodeResults, pr.dirtyNodes, pr.workers)
	})
	return pr
}

func (p *PrometheusRecorder) ObserveBuildDuration(d time.Duration) {
	if p == nil || p.buildDuration == nil {
		return
	}
	p.buildDuration.Observe(d.Seconds())
}

func (p *PrometheusRecorder) IncBuildOutcome(outcome string) {
	if p == nil || p.buildOutcome == nil {
		return
	}
	p.buildOutcome.WithLabelValues(outcome).Inc()
}

func (p *PrometheusRecorder) IncNodeResult(kind string, result ResultLabel) {
	if p == nil || p.nodeResults == nil {
		return
	}
	p.nodeResults.WithLabelValues(kind, string(result)).Inc()
}

func (p *PrometheusRecorder) SetDirtyNodes(n int) {
	if p == nil || p.dirtyNodes == nil {
		return
	}
	p.dirtyNodes.Set(float64(n))
}

func (p *PrometheusRecorder) SetWorkers(n int) {
	if p == nil || p.workers == nil {
		return
	}
	p.workers.Set(float64(n))
}

// HTTPHandler serves the registry in Prometheus exposition format.
func HTTPHandler(reg *prom.Registry) http.Handler {
	return promhttp.HandlerFor(reg, promhttp.HandlerOpts{EnableOpenMetrics: true})
}
