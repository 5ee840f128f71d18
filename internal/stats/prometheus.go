package stats

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// PrometheusExporter espone metriche in formato Prometheus
type PrometheusExporter struct {
	requestsTotal    *prometheus.CounterVec
	requestDuration  *prometheus.HistogramVec
	requestErrors    *prometheus.CounterVec
	cacheHits        *prometheus.CounterVec
	rateLimited      *prometheus.CounterVec
	workflowRuns     *prometheus.CounterVec
	workflowDuration prometheus.Histogram
	stageQuality     *prometheus.GaugeVec
	agentSuccessRate *prometheus.GaugeVec
	agentAvgLatency  *prometheus.GaugeVec
}

// NewPrometheusExporter crea un nuovo exporter
func NewPrometheusExporter(namespace string) *PrometheusExporter {
	if namespace == "" {
		namespace = "careerflow"
	}

	e := &PrometheusExporter{}

	e.requestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "requests_total",
			Help:      "Total number of generation requests by provider and status",
		},
		[]string{"provider", "status"},
	)

	e.requestErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "request_errors_total",
			Help:      "Total number of request errors by provider and error type",
		},
		[]string{"provider", "error_type"},
	)

	e.requestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "request_duration_milliseconds",
			Help:      "Request duration in milliseconds",
			Buckets:   []float64{10, 50, 100, 250, 500, 1000, 2500, 5000, 10000, 30000},
		},
		[]string{"provider"},
	)

	e.cacheHits = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cache_hits_total",
			Help:      "Total number of response cache hits by provider",
		},
		[]string{"provider"},
	)

	e.rateLimited = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "rate_limited_total",
			Help:      "Total number of requests rejected by the rate limiter",
		},
		[]string{"provider"},
	)

	e.workflowRuns = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "workflow_runs_total",
			Help:      "Total number of workflow runs by terminal status",
		},
		[]string{"status"},
	)

	e.workflowDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "workflow_duration_milliseconds",
			Help:      "Workflow execution time in milliseconds",
			Buckets:   []float64{100, 500, 1000, 5000, 15000, 30000, 60000, 120000},
		},
	)

	e.stageQuality = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "stage_quality_score",
			Help:      "Last quality score per workflow stage (0-100)",
		},
		[]string{"stage"},
	)

	e.agentSuccessRate = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "agent_success_rate",
			Help:      "Tracked success rate per agent (0-100)",
		},
		[]string{"agent"},
	)

	e.agentAvgLatency = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "agent_avg_response_seconds",
			Help:      "Tracked average response time per agent in seconds",
		},
		[]string{"agent"},
	)

	return e
}

// RecordRequest registra una richiesta completa
func (e *PrometheusExporter) RecordRequest(provider string, success bool, durationMs float64) {
	status := "success"
	if !success {
		status = "error"
	}
	e.requestsTotal.WithLabelValues(provider, status).Inc()
	e.requestDuration.WithLabelValues(provider).Observe(durationMs)
}

// RecordError registra un errore
func (e *PrometheusExporter) RecordError(provider, errorType string) {
	e.requestErrors.WithLabelValues(provider, errorType).Inc()
}

// RecordCacheHit registra un cache hit
func (e *PrometheusExporter) RecordCacheHit(provider string) {
	e.cacheHits.WithLabelValues(provider).Inc()
}

// RecordRateLimited registra un rifiuto del rate limiter
func (e *PrometheusExporter) RecordRateLimited(provider string) {
	e.rateLimited.WithLabelValues(provider).Inc()
}

// RecordWorkflowRun registra un run di workflow completato
func (e *PrometheusExporter) RecordWorkflowRun(status string, durationMs float64) {
	e.workflowRuns.WithLabelValues(status).Inc()
	e.workflowDuration.Observe(durationMs)
}

// SetStageQuality imposta il quality score di uno stage
func (e *PrometheusExporter) SetStageQuality(stage string, score float64) {
	e.stageQuality.WithLabelValues(stage).Set(score)
}

// SetAgentPerformance imposta le metriche tracked di un agent
func (e *PrometheusExporter) SetAgentPerformance(agent string, successRate, avgResponseSeconds float64) {
	e.agentSuccessRate.WithLabelValues(agent).Set(successRate)
	e.agentAvgLatency.WithLabelValues(agent).Set(avgResponseSeconds)
}
