package system

import "github.com/codewandler/wsactor/core/metrics"

// Metrics defines the metrics interface of the runtime.
// All methods are thread-safe.
type Metrics interface {
	// Outbound calls
	CallDuration(target string) metrics.Timer
	CallCompleted(target string, success bool)
	PendingCalls(count int)

	// Inbound calls
	InboundDuration(target string) metrics.Timer
	InboundCompleted(target string, success bool)
	DeadLetter(reason string)
	UnmatchedReply()

	// Registry
	ActorsReady(count int)
	OnDemandCreated(typeTag string)

	// Connections
	ConnectionsOpen(count int)
}

type nopMetrics struct{}

func (nopMetrics) CallDuration(string) metrics.Timer { return metrics.NopTimer() }
func (nopMetrics) CallCompleted(string, bool)        {}
func (nopMetrics) PendingCalls(int)                  {}

func (nopMetrics) InboundDuration(string) metrics.Timer { return metrics.NopTimer() }
func (nopMetrics) InboundCompleted(string, bool)        {}
func (nopMetrics) DeadLetter(string)                    {}
func (nopMetrics) UnmatchedReply()                      {}

func (nopMetrics) ActorsReady(int)        {}
func (nopMetrics) OnDemandCreated(string) {}

func (nopMetrics) ConnectionsOpen(int) {}

// NopMetrics returns a no-op Metrics implementation.
func NopMetrics() Metrics { return nopMetrics{} }
