// Package metrics defines the Prometheus collectors for matching and notification.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "travelmatch"

// Submission outcomes.
const (
	OutcomeJoined  = "joined"
	OutcomeCreated = "created"
	OutcomeFailed  = "failed"
)

// Delivery results.
const (
	ResultSent   = "sent"
	ResultFailed = "failed"
)

// Metrics holds every collector. A nil *Metrics is valid and records nothing.
type Metrics struct {
	registry *prometheus.Registry

	Submissions      *prometheus.CounterVec
	MatchDuration    prometheus.Histogram
	CommitConflicts  prometheus.Counter
	UnresolvedGroups prometheus.Counter
	Deliveries       *prometheus.CounterVec
}

// New creates the collectors and registers them, together with the Go and
// process collectors, on a fresh registry.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		Submissions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "submissions_total",
			Help:      "Traveler submissions by outcome.",
		}, []string{"outcome"}),
		MatchDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "match_duration_seconds",
			Help:      "Time spent matching one submission, storage included.",
			Buckets:   prometheus.DefBuckets,
		}),
		CommitConflicts: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "commit_conflicts_total",
			Help:      "Group appends rejected because another submission changed the group first.",
		}),
		UnresolvedGroups: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "unresolved_member_groups_total",
			Help:      "Groups skipped during matching because a member ID did not resolve to a user.",
		}),
		Deliveries: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "notification_deliveries_total",
			Help:      "Notification delivery attempts by channel and result.",
		}, []string{"channel", "result"}),
	}

	m.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.Submissions,
		m.MatchDuration,
		m.CommitConflicts,
		m.UnresolvedGroups,
		m.Deliveries,
	)
	return m
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// ObserveSubmission records one submission outcome and its duration.
func (m *Metrics) ObserveSubmission(outcome string, d time.Duration) {
	if m == nil {
		return
	}
	m.Submissions.WithLabelValues(outcome).Inc()
	m.MatchDuration.Observe(d.Seconds())
}

// CommitConflict records a rejected group append.
func (m *Metrics) CommitConflict() {
	if m == nil {
		return
	}
	m.CommitConflicts.Inc()
}

// UnresolvedGroup records a group skipped for unresolved members.
func (m *Metrics) UnresolvedGroup() {
	if m == nil {
		return
	}
	m.UnresolvedGroups.Inc()
}

// Delivery records one notification attempt.
func (m *Metrics) Delivery(channel string, err error) {
	if m == nil {
		return
	}
	result := ResultSent
	if err != nil {
		result = ResultFailed
	}
	m.Deliveries.WithLabelValues(channel, result).Inc()
}
