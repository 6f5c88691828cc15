// Package metrics holds the instrumentation ports used by the runtime.
// Backends (see adapters/prometheus) implement them; the core only ever
// talks to these interfaces and falls back to the no-op variants.
package metrics

// Timer records the time elapsed since it was started:
//
//	defer m.CallDuration(target).ObserveDuration()
type Timer interface {
	ObserveDuration()
}

type nopTimer struct{}

func (nopTimer) ObserveDuration() {}

func NopTimer() Timer { return nopTimer{} }
