package observability

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus metrics for the study runtime
type Metrics struct {
	// Study orchestration metrics
	StudiesStarted   *prometheus.CounterVec
	StudiesCompleted *prometheus.CounterVec
	StudyDuration    *prometheus.HistogramVec
	SessionsTotal    *prometheus.CounterVec
	SessionDuration  *prometheus.HistogramVec

	// Navigator metrics
	NavigatorStepsTotal    *prometheus.CounterVec
	NavigatorStepDuration  *prometheus.HistogramVec
	NavigatorStuckSessions prometheus.Counter
	NavigatorActionRetries *prometheus.CounterVec

	// Browser pool metrics
	BrowserSessionsActive  prometheus.Gauge
	BrowserAcquireWait     prometheus.Histogram
	BrowserFailovers       *prometheus.CounterVec
	BrowserLaunchesTotal   *prometheus.CounterVec

	// Claude API metrics
	ClaudeRequestsTotal   *prometheus.CounterVec
	ClaudeRequestDuration *prometheus.HistogramVec
	ClaudeTokensUsed      *prometheus.CounterVec
	ClaudeCostTotal       prometheus.Counter
	ClaudeCacheHits       prometheus.Counter
	ClaudeCacheMisses     prometheus.Counter

	// Analysis pipeline metrics
	IssuesFoundTotal    *prometheus.CounterVec
	InsightsSynthesized prometheus.Counter

	// Job queue metrics
	SchedulesFiredTotal      *prometheus.CounterVec
	SchedulesQuarantinedTotal prometheus.Counter

	// Temporal workflow metrics
	WorkflowsStarted   *prometheus.CounterVec
	WorkflowsCompleted *prometheus.CounterVec
	WorkflowDuration   *prometheus.HistogramVec
	ActivitiesExecuted *prometheus.CounterVec

	// System metrics
	DBConnectionsActive prometheus.Gauge
	DBConnectionsIdle   prometheus.Gauge
	LiveStateCacheSize  prometheus.Gauge
	GoroutinesActive    prometheus.Gauge
}

// NewMetrics creates a new metrics instance with all Prometheus metrics registered
func NewMetrics(namespace string) *Metrics {
	if namespace == "" {
		namespace = "usability_study"
	}

	m := &Metrics{
		StudiesStarted: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "studies_started_total",
				Help:      "Total number of studies started",
			},
			[]string{"browser_mode"},
		),
		StudiesCompleted: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "studies_completed_total",
				Help:      "Total number of studies completed",
			},
			[]string{"status"},
		),
		StudyDuration: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "study_duration_seconds",
				Help:      "Study execution duration in seconds, enqueue to terminal state",
				Buckets:   []float64{30, 60, 120, 300, 600, 1200, 1800, 3600},
			},
			[]string{"status"},
		),
		SessionsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "sessions_total",
				Help:      "Total number of persona/task sessions run",
			},
			[]string{"status"},
		),
		SessionDuration: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "session_duration_seconds",
				Help:      "Per-session navigation duration in seconds",
				Buckets:   []float64{5, 10, 30, 60, 120, 300, 600},
			},
			[]string{"status"},
		),

		NavigatorStepsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "navigator_steps_total",
				Help:      "Total number of decide-act-observe steps executed",
			},
			[]string{"action_type", "status"},
		),
		NavigatorStepDuration: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "navigator_step_duration_seconds",
				Help:      "Duration of a single navigation step in seconds",
				Buckets:   []float64{.5, 1, 2, 5, 10, 20, 30},
			},
			[]string{"action_type"},
		),
		NavigatorStuckSessions: promauto.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "navigator_stuck_sessions_total",
				Help:      "Total number of sessions halted for lack of forward progress",
			},
		),
		NavigatorActionRetries: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "navigator_action_retries_total",
				Help:      "Total number of action retries after a failed act step",
			},
			[]string{"action_type"},
		),

		BrowserSessionsActive: promauto.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "browser_sessions_active",
				Help:      "Number of browser sessions currently checked out of the pool",
			},
		),
		BrowserAcquireWait: promauto.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "browser_acquire_wait_seconds",
				Help:      "Time spent waiting to acquire a browser session from the pool",
				Buckets:   []float64{.01, .05, .1, .5, 1, 5, 10, 30},
			},
		),
		BrowserFailovers: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "browser_failovers_total",
				Help:      "Total number of cloud-to-local browser failovers",
			},
			[]string{"reason"},
		),
		BrowserLaunchesTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "browser_launches_total",
				Help:      "Total number of browser instances launched",
			},
			[]string{"mode", "status"},
		),

		ClaudeRequestsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "claude_requests_total",
				Help:      "Total number of Claude API requests",
			},
			[]string{"model", "purpose", "status"},
		),
		ClaudeRequestDuration: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "claude_request_duration_seconds",
				Help:      "Claude API request duration in seconds",
				Buckets:   []float64{1, 2, 5, 10, 20, 30, 60, 120},
			},
			[]string{"model", "purpose"},
		),
		ClaudeTokensUsed: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "claude_tokens_used_total",
				Help:      "Total number of tokens used",
			},
			[]string{"model", "type"}, // type: input, output
		),
		ClaudeCostTotal: promauto.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "claude_cost_usd_total",
				Help:      "Total estimated cost in USD",
			},
		),
		ClaudeCacheHits: promauto.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "claude_cache_hits_total",
				Help:      "Total number of prompt cache hits",
			},
		),
		ClaudeCacheMisses: promauto.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "claude_cache_misses_total",
				Help:      "Total number of prompt cache misses",
			},
		),

		IssuesFoundTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "issues_found_total",
				Help:      "Total number of usability issues recorded by the analyzer",
			},
			[]string{"severity"},
		),
		InsightsSynthesized: promauto.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "insights_synthesized_total",
				Help:      "Total number of study-level synthesis reports produced",
			},
		),

		SchedulesFiredTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "schedules_fired_total",
				Help:      "Total number of schedules that produced a new study",
			},
			[]string{},
		),
		SchedulesQuarantinedTotal: promauto.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "schedules_quarantined_total",
				Help:      "Total number of schedules quarantined for an invalid cron expression",
			},
		),

		WorkflowsStarted: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "workflows_started_total",
				Help:      "Total number of workflows started",
			},
			[]string{"workflow_type"},
		),
		WorkflowsCompleted: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "workflows_completed_total",
				Help:      "Total number of workflows completed",
			},
			[]string{"workflow_type", "status"},
		),
		WorkflowDuration: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "workflow_duration_seconds",
				Help:      "Workflow execution duration in seconds",
				Buckets:   []float64{10, 30, 60, 120, 300, 600, 1200, 1800},
			},
			[]string{"workflow_type"},
		),
		ActivitiesExecuted: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "activities_executed_total",
				Help:      "Total number of activities executed",
			},
			[]string{"activity_type", "status"},
		),

		DBConnectionsActive: promauto.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "db_connections_active",
				Help:      "Number of active database connections",
			},
		),
		DBConnectionsIdle: promauto.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "db_connections_idle",
				Help:      "Number of idle database connections",
			},
		),
		LiveStateCacheSize: promauto.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "live_state_cache_size",
				Help:      "Current number of live session-state entries held in Redis",
			},
		),
		GoroutinesActive: promauto.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "goroutines_active",
				Help:      "Number of active goroutines",
			},
		),
	}

	return m
}

// Handler returns the Prometheus HTTP handler
func (m *Metrics) Handler() http.Handler {
	return promhttp.Handler()
}

// RecordStudyStart records a study entering the running state
func (m *Metrics) RecordStudyStart(browserMode string) {
	m.StudiesStarted.WithLabelValues(browserMode).Inc()
}

// RecordStudyComplete records a study reaching a terminal state
func (m *Metrics) RecordStudyComplete(status string, duration time.Duration) {
	m.StudiesCompleted.WithLabelValues(status).Inc()
	m.StudyDuration.WithLabelValues(status).Observe(duration.Seconds())
}

// RecordSession records one persona/task session's outcome
func (m *Metrics) RecordSession(status string, duration time.Duration) {
	m.SessionsTotal.WithLabelValues(status).Inc()
	m.SessionDuration.WithLabelValues(status).Observe(duration.Seconds())
}

// RecordNavigatorStep records one decide-act-observe step
func (m *Metrics) RecordNavigatorStep(actionType, status string, duration time.Duration) {
	m.NavigatorStepsTotal.WithLabelValues(actionType, status).Inc()
	m.NavigatorStepDuration.WithLabelValues(actionType).Observe(duration.Seconds())
}

// RecordNavigatorStuck records a session halted for lack of progress
func (m *Metrics) RecordNavigatorStuck() {
	m.NavigatorStuckSessions.Inc()
}

// RecordActionRetry records a navigator action retry
func (m *Metrics) RecordActionRetry(actionType string) {
	m.NavigatorActionRetries.WithLabelValues(actionType).Inc()
}

// RecordBrowserFailover records a cloud-to-local browser failover
func (m *Metrics) RecordBrowserFailover(reason string) {
	m.BrowserFailovers.WithLabelValues(reason).Inc()
}

// RecordBrowserLaunch records a browser instance launch attempt
func (m *Metrics) RecordBrowserLaunch(mode, status string) {
	m.BrowserLaunchesTotal.WithLabelValues(mode, status).Inc()
}

// RecordClaudeRequest records Claude API metrics
func (m *Metrics) RecordClaudeRequest(model, purpose, status string, duration time.Duration, inputTokens, outputTokens int, cost float64) {
	m.ClaudeRequestsTotal.WithLabelValues(model, purpose, status).Inc()
	m.ClaudeRequestDuration.WithLabelValues(model, purpose).Observe(duration.Seconds())
	m.ClaudeTokensUsed.WithLabelValues(model, "input").Add(float64(inputTokens))
	m.ClaudeTokensUsed.WithLabelValues(model, "output").Add(float64(outputTokens))
	m.ClaudeCostTotal.Add(cost)
}

// RecordIssueFound records an issue recorded by the analyzer
func (m *Metrics) RecordIssueFound(severity string) {
	m.IssuesFoundTotal.WithLabelValues(severity).Inc()
}

// RecordInsightSynthesized records a completed synthesis pass
func (m *Metrics) RecordInsightSynthesized() {
	m.InsightsSynthesized.Inc()
}

// RecordScheduleFired records a schedule firing into a new study
func (m *Metrics) RecordScheduleFired() {
	m.SchedulesFiredTotal.WithLabelValues().Inc()
}

// RecordScheduleQuarantined records a schedule quarantined for a bad cron expression
func (m *Metrics) RecordScheduleQuarantined() {
	m.SchedulesQuarantinedTotal.Inc()
}

// RecordWorkflowStart records workflow start
func (m *Metrics) RecordWorkflowStart(workflowType string) {
	m.WorkflowsStarted.WithLabelValues(workflowType).Inc()
}

// RecordWorkflowComplete records workflow completion
func (m *Metrics) RecordWorkflowComplete(workflowType, status string, duration time.Duration) {
	m.WorkflowsCompleted.WithLabelValues(workflowType, status).Inc()
	m.WorkflowDuration.WithLabelValues(workflowType).Observe(duration.Seconds())
}

// RecordActivityExecution records activity execution
func (m *Metrics) RecordActivityExecution(activityType, status string) {
	m.ActivitiesExecuted.WithLabelValues(activityType, status).Inc()
}

// Global metrics instance
var globalMetrics *Metrics

// InitMetrics initializes the global metrics instance
func InitMetrics(namespace string) *Metrics {
	globalMetrics = NewMetrics(namespace)
	return globalMetrics
}

// GetMetrics returns the global metrics instance
func GetMetrics() *Metrics {
	if globalMetrics == nil {
		globalMetrics = NewMetrics("usability_study")
	}
	return globalMetrics
}
