package prometheus

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/codewandler/wsactor/core/metrics"
	"github.com/codewandler/wsactor/core/system"
)

// systemMetrics implements system.Metrics using Prometheus.
type systemMetrics struct {
	callDuration     *prometheus.HistogramVec
	callsTotal       *prometheus.CounterVec
	pendingCalls     prometheus.Gauge
	inboundDuration  *prometheus.HistogramVec
	inboundTotal     *prometheus.CounterVec
	deadLetters      *prometheus.CounterVec
	unmatchedReplies prometheus.Counter
	actorsReady      prometheus.Gauge
	onDemandCreated  *prometheus.CounterVec
	connectionsOpen  prometheus.Gauge
}

// NewSystemMetrics creates a new Prometheus implementation of system.Metrics.
func NewSystemMetrics(reg prometheus.Registerer) system.Metrics {
	m := &systemMetrics{
		callDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "wsactor_system_call_duration_seconds",
			Help:    "Outbound remote call latency in seconds",
			Buckets: defaultBuckets,
		}, []string{"target"}),

		callsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "wsactor_system_calls_total",
			Help: "Total number of outbound remote calls",
		}, []string{"target", "success"}),

		pendingCalls: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "wsactor_system_pending_calls",
			Help: "Number of calls awaiting a reply",
		}),

		inboundDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "wsactor_system_inbound_duration_seconds",
			Help:    "Inbound call execution time in seconds",
			Buckets: defaultBuckets,
		}, []string{"target"}),

		inboundTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "wsactor_system_inbound_total",
			Help: "Total number of inbound calls executed",
		}, []string{"target", "success"}),

		deadLetters: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "wsactor_system_dead_letters_total",
			Help: "Total number of inbound calls that could not be delivered",
		}, []string{"reason"}),

		unmatchedReplies: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "wsactor_system_unmatched_replies_total",
			Help: "Total number of replies without a pending call",
		}),

		actorsReady: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "wsactor_system_actors_ready",
			Help: "Number of actors registered as ready",
		}),

		onDemandCreated: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "wsactor_system_on_demand_created_total",
			Help: "Total number of actors created by on-demand factories",
		}, []string{"type"}),

		connectionsOpen: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "wsactor_system_connections_open",
			Help: "Number of open websocket connections",
		}),
	}

	reg.MustRegister(
		m.callDuration,
		m.callsTotal,
		m.pendingCalls,
		m.inboundDuration,
		m.inboundTotal,
		m.deadLetters,
		m.unmatchedReplies,
		m.actorsReady,
		m.onDemandCreated,
		m.connectionsOpen,
	)

	return m
}

func (m *systemMetrics) CallDuration(target string) metrics.Timer {
	return newTimer(m.callDuration.WithLabelValues(target))
}

func (m *systemMetrics) CallCompleted(target string, success bool) {
	m.callsTotal.WithLabelValues(target, boolToStr(success)).Inc()
}

func (m *systemMetrics) PendingCalls(count int) { m.pendingCalls.Set(float64(count)) }

func (m *systemMetrics) InboundDuration(target string) metrics.Timer {
	return newTimer(m.inboundDuration.WithLabelValues(target))
}

func (m *systemMetrics) InboundCompleted(target string, success bool) {
	m.inboundTotal.WithLabelValues(target, boolToStr(success)).Inc()
}

func (m *systemMetrics) DeadLetter(reason string) { m.deadLetters.WithLabelValues(reason).Inc() }

func (m *systemMetrics) UnmatchedReply() { m.unmatchedReplies.Inc() }

func (m *systemMetrics) ActorsReady(count int) { m.actorsReady.Set(float64(count)) }

func (m *systemMetrics) OnDemandCreated(typeTag string) {
	m.onDemandCreated.WithLabelValues(typeTag).Inc()
}

func (m *systemMetrics) ConnectionsOpen(count int) { m.connectionsOpen.Set(float64(count)) }

var _ system.Metrics = (*systemMetrics)(nil)
