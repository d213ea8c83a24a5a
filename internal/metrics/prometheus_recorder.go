package metrics

import (
	"time"

	prom "github.com/prometheus/client_golang/prometheus"
)

// Namespace prefixes every exported metric.
const Namespace = "pagebrew"

// PrometheusRecorder implements Recorder using Prometheus metrics.
type PrometheusRecorder struct {
	registry        *prom.Registry
	stageDuration   *prom.HistogramVec
	buildDuration   *prom.HistogramVec
	stageResults    *prom.CounterVec
	buildOutcome    *prom.CounterVec
	pagesRendered   prom.Counter
	assetResults    *prom.CounterVec
	watchEvents     *prom.CounterVec
	rebuildTriggers *prom.CounterVec
	liveReload      prom.Gauge
}

// NewPrometheusRecorder constructs the metrics and registers them on reg.
// A nil reg gets a fresh registry.
func NewPrometheusRecorder(reg *prom.Registry) *PrometheusRecorder {
	if reg == nil {
		reg = prom.NewRegistry()
	}
	pr := &PrometheusRecorder{registry: reg}
	pr.stageDuration = prom.NewHistogramVec(prom.HistogramOpts{
		Namespace: Namespace,
		Name:      "stage_duration_seconds",
		Help:      "Duration of individual build stages",
		Buckets:   prom.DefBuckets,
	}, []string{"stage"})
	pr.buildDuration = prom.NewHistogramVec(prom.HistogramOpts{
		Namespace: Namespace,
		Name:      "build_duration_seconds",
		Help:      "Total build duration by build kind",
		Buckets:   prom.DefBuckets,
	}, []string{"kind"})
	pr.stageResults = prom.NewCounterVec(prom.CounterOpts{
		Namespace: Namespace,
		Name:      "stage_results_total",
		Help:      "Stage result counts by outcome",
	}, []string{"stage", "result"})
	pr.buildOutcome = prom.NewCounterVec(prom.CounterOpts{
		Namespace: Namespace,
		Name:      "build_outcomes_total",
		Help:      "Build outcomes by kind and final status",
	}, []string{"kind", "outcome"})
	pr.pagesRendered = prom.NewCounter(prom.CounterOpts{
		Namespace: Namespace,
		Name:      "pages_rendered_total",
		Help:      "HTML pages written to the output directory",
	})
	pr.assetResults = prom.NewCounterVec(prom.CounterOpts{
		Namespace: Namespace,
		Name:      "asset_copies_total",
		Help:      "Image copies by result",
	}, []string{"result"})
	pr.watchEvents = prom.NewCounterVec(prom.CounterOpts{
		Namespace: Namespace,
		Name:      "watch_events_total",
		Help:      "Classified filesystem events",
	}, []string{"kind"})
	pr.rebuildTriggers = prom.NewCounterVec(prom.CounterOpts{
		Namespace: Namespace,
		Name:      "rebuild_triggers_total",
		Help:      "Debounced rebuilds by trigger cause",
	}, []string{"cause"})
	pr.liveReload = prom.NewGauge(prom.GaugeOpts{
		Namespace: Namespace,
		Name:      "livereload_clients",
		Help:      "Connected live reload clients",
	})
	reg.MustRegister(pr.stageDuration, pr.buildDuration, pr.stageResults, pr.buildOutcome,
		pr.pagesRendered, pr.assetResults, pr.watchEvents, pr.rebuildTriggers, pr.liveReload)
	return pr
}

// Registry returns the registry the metrics are registered on.
func (p *PrometheusRecorder) Registry() *prom.Registry { return p.registry }

func (p *PrometheusRecorder) ObserveStageDuration(stage string, d time.Duration) {
	if p == nil {
		return
	}
	p.stageDuration.WithLabelValues(stage).Observe(d.Seconds())
}

func (p *PrometheusRecorder) ObserveBuildDuration(kind string, d time.Duration) {
	if p == nil {
		return
	}
	p.buildDuration.WithLabelValues(kind).Observe(d.Seconds())
}

func (p *PrometheusRecorder) IncStageResult(stage string, result ResultLabel) {
	if p == nil {
		return
	}
	p.stageResults.WithLabelValues(stage, string(result)).Inc()
}

func (p *PrometheusRecorder) IncBuildOutcome(kind, outcome string) {
	if p == nil {
		return
	}
	p.buildOutcome.WithLabelValues(kind, outcome).Inc()
}

func (p *PrometheusRecorder) AddPagesRendered(n int) {
	if p == nil || n <= 0 {
		return
	}
	p.pagesRendered.Add(float64(n))
}

func (p *PrometheusRecorder) IncAssetResult(success bool) {
	if p == nil {
		return
	}
	res := "failed"
	if success {
		res = "success"
	}
	p.assetResults.WithLabelValues(res).Inc()
}

func (p *PrometheusRecorder) IncWatchEvent(kind string) {
	if p == nil {
		return
	}
	p.watchEvents.WithLabelValues(kind).Inc()
}

func (p *PrometheusRecorder) IncRebuildTrigger(cause string) {
	if p == nil {
		return
	}
	p.rebuildTriggers.WithLabelValues(cause).Inc()
}

func (p *PrometheusRecorder) SetLiveReloadClients(n int) {
	if p == nil {
		return
	}
	p.liveReload.Set(float64(n))
}
