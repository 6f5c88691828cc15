package prometheus

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/codewandler/wsactor/core/actor"
	"github.com/codewandler/wsactor/core/metrics"
)

// mailboxMetrics reports how the mailboxes of room and user actors drain.
// A job is one closure run on an actor goroutine, labelled with the
// action or target name ("room.send", "currentState"). Detached tasks are
// the work actors hand off the mailbox.
type mailboxMetrics struct {
	jobDuration *prometheus.HistogramVec
	jobs        *prometheus.CounterVec
	jobPanics   *prometheus.CounterVec
	depth       *prometheus.GaugeVec

	detachedInflight *prometheus.GaugeVec
	detachedDuration prometheus.Histogram
	detached         *prometheus.CounterVec
}

// NewActorMetrics registers the mailbox metrics with reg.
func NewActorMetrics(reg prometheus.Registerer) actor.ActorMetrics {
	m := &mailboxMetrics{
		jobDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "wsactor_mailbox_job_duration_seconds",
			Help:    "Time an actor goroutine spent on one job",
			Buckets: defaultBuckets,
		}, []string{"job"}),
		jobs: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "wsactor_mailbox_jobs_total",
			Help: "Jobs taken off actor mailboxes by outcome",
		}, []string{"job", "outcome"}),
		jobPanics: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "wsactor_mailbox_job_panics_total",
			Help: "Jobs that panicked; the actor kept running",
		}, []string{"job"}),
		depth: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "wsactor_mailbox_depth",
			Help: "Jobs waiting in an actor mailbox",
		}, []string{"actor"}),

		detachedInflight: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "wsactor_detached_tasks_inflight",
			Help: "Tasks an actor runs off its mailbox right now",
		}, []string{"actor"}),
		detachedDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "wsactor_detached_task_duration_seconds",
			Help:    "Run time of tasks handed off the mailbox",
			Buckets: defaultBuckets,
		}),
		detached: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "wsactor_detached_tasks_total",
			Help: "Tasks handed off the mailbox by outcome",
		}, []string{"outcome"}),
	}

	reg.MustRegister(
		m.jobDuration, m.jobs, m.jobPanics, m.depth,
		m.detachedInflight, m.detachedDuration, m.detached,
	)
	return m
}

func outcome(ok bool, failed string) string {
	if ok {
		return "ok"
	}
	return failed
}

func (m *mailboxMetrics) MessageDuration(job string) metrics.Timer {
	return newTimer(m.jobDuration.WithLabelValues(job))
}

func (m *mailboxMetrics) MessageProcessed(job string, success bool) {
	m.jobs.WithLabelValues(job, outcome(success, "error")).Inc()
}

func (m *mailboxMetrics) MessagePanic(job string) { m.jobPanics.WithLabelValues(job).Inc() }

func (m *mailboxMetrics) MailboxDepth(actorID string, depth int) {
	m.depth.WithLabelValues(actorID).Set(float64(depth))
}

func (m *mailboxMetrics) SchedulerInflight(actorID string, count int) {
	m.detachedInflight.WithLabelValues(actorID).Set(float64(count))
}

func (m *mailboxMetrics) SchedulerTaskDuration() metrics.Timer {
	return newTimer(m.detachedDuration)
}

// SchedulerTaskCompleted counts scheduled tasks and state actor effects.
// A task fails by panicking, an effect also by returning an error.
func (m *mailboxMetrics) SchedulerTaskCompleted(success bool) {
	m.detached.WithLabelValues(outcome(success, "failed")).Inc()
}

var _ actor.ActorMetrics = (*mailboxMetrics)(nil)
