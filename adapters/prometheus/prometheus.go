// Package prometheus provides Prometheus implementations of the runtime and
// actor metrics interfaces.
package prometheus

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/codewandler/wsactor/core/metrics"
)

// timer wraps a Prometheus histogram to implement the Timer interface.
type timer struct {
	h     prometheus.Observer
	start time.Time
}

func newTimer(h prometheus.Observer) metrics.Timer {
	return &timer{h: h, start: time.Now()}
}

func (t *timer) ObserveDuration() {
	t.h.Observe(time.Since(t.start).Seconds())
}

// Default histogram buckets for latency metrics (in seconds).
var defaultBuckets = []float64{
	.001, .0025, .005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10,
}

func boolToStr(b bool) string {
	if b {
		return "true"
	}
	return "false"
}

// AllMetrics bundles the runtime and actor metrics on one registry.
type AllMetrics struct {
	System *systemMetrics
	Actor  *mailboxMetrics

	gatherer prometheus.Gatherer
}

func NewAllMetrics(reg *prometheus.Registry) *AllMetrics {
	return &AllMetrics{
		System:   NewSystemMetrics(reg).(*systemMetrics),
		Actor:    NewActorMetrics(reg).(*mailboxMetrics),
		gatherer: reg,
	}
}

// Handler serves the registry in the Prometheus exposition format.
func (a *AllMetrics) Handler() http.Handler {
	return promhttp.HandlerFor(a.gatherer, promhttp.HandlerOpts{})
}
