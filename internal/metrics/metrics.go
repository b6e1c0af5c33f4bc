package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"device-loan-backend/internal/resilience"
)

const namespace = "device_loans"

// Collector holds the service's prometheus instruments. A nil *Collector is
// valid and records nothing.
type Collector struct {
	breakerState       *prometheus.GaugeVec
	breakerTransitions *prometheus.CounterVec
	notifications      *prometheus.CounterVec
	retries            *prometheus.CounterVec
	rateLimitRejected  prometheus.Counter
	loanTransitions    *prometheus.CounterVec
	waitlistAdvances   *prometheus.CounterVec
	jobRuns            *prometheus.CounterVec
	jobDuration        *prometheus.HistogramVec

	gatherer prometheus.Gatherer
}

// NewCollector creates the instruments and registers them with reg. Passing a
// *prometheus.Registry also makes it the source for Handler.
func NewCollector(reg prometheus.Registerer) *Collector {
	c := &Collector{
		breakerState: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "circuit_breaker_state",
			Help:      "Circuit breaker state per dependency (0 closed, 1 half-open, 2 open)",
		}, []string{"breaker"}),
		breakerTransitions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "circuit_breaker_transitions_total",
			Help:      "Circuit breaker state transitions",
		}, []string{"breaker", "to"}),
		notifications: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "notifications_total",
			Help:      "Notification send attempts by channel and outcome",
		}, []string{"channel", "outcome"}),
		retries: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "retry_attempts_total",
			Help:      "Retries scheduled after a failed attempt",
		}, []string{"operation"}),
		rateLimitRejected: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "rate_limit_rejections_total",
			Help:      "Requests rejected by the rate limiter",
		}),
		loanTransitions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "loan_transitions_total",
			Help:      "Loan lifecycle transitions",
		}, []string{"transition"}),
		waitlistAdvances: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "waitlist_advances_total",
			Help:      "Waitlist advance outcomes",
		}, []string{"status"}),
		jobRuns: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "job_runs_total",
			Help:      "Scheduled job runs by result",
		}, []string{"job", "result"}),
		jobDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "job_duration_seconds",
			Help:      "Scheduled job duration in seconds",
			Buckets:   prometheus.DefBuckets,
		}, []string{"job"}),
	}

	reg.MustRegister(
		c.breakerState,
		c.breakerTransitions,
		c.notifications,
		c.retries,
		c.rateLimitRejected,
		c.loanTransitions,
		c.waitlistAdvances,
		c.jobRuns,
		c.jobDuration,
	)

	if g, ok := reg.(prometheus.Gatherer); ok {
		c.gatherer = g
	} else {
		c.gatherer = prometheus.DefaultGatherer
	}
	return c
}

// Handler serves the registry in the prometheus text format.
func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.gatherer, promhttp.HandlerOpts{})
}

func stateValue(s resilience.State) float64 {
	switch s {
	case resilience.StateHalfOpen:
		return 1
	case resilience.StateOpen:
		return 2
	default:
		return 0
	}
}

// BreakerStateChanged matches resilience.StateListener.
func (c *Collector) BreakerStateChanged(name string, _, to resilience.State) {
	if c == nil {
		return
	}
	c.breakerState.WithLabelValues(name).Set(stateValue(to))
	c.breakerTransitions.WithLabelValues(name, string(to)).Inc()
}

func (c *Collector) RecordNotification(channel string, sent bool) {
	if c == nil {
		return
	}
	outcome := "sent"
	if !sent {
		outcome = "failed"
	}
	c.notifications.WithLabelValues(channel, outcome).Inc()
}

func (c *Collector) RecordRetry(operation string) {
	if c == nil {
		return
	}
	c.retries.WithLabelValues(operation).Inc()
}

func (c *Collector) RecordRateLimitRejection(string) {
	if c == nil {
		return
	}
	c.rateLimitRejected.Inc()
}

func (c *Collector) RecordLoanTransition(transition string) {
	if c == nil {
		return
	}
	c.loanTransitions.WithLabelValues(transition).Inc()
}

func (c *Collector) RecordWaitlistAdvance(status string) {
	if c == nil {
		return
	}
	c.waitlistAdvances.WithLabelValues(status).Inc()
}

func (c *Collector) RecordJobRun(job string, seconds float64, err error) {
	if c == nil {
		return
	}
	result := "success"
	if err != nil {
		result = "error"
	}
	c.jobRuns.WithLabelValues(job, result).Inc()
	c.jobDuration.WithLabelValues(job).Observe(seconds)
}
