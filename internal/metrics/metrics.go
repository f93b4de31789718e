// Package metrics wraps rcrowley/go-metrics the way the teacher repo does
// (see node/sc/bridge_tx_pool.go:43 `metrics.NewRegisteredCounter(...)` and
// work/worker.go:40-41), giving every component cheap counters/meters/timers
// registered in one process-wide registry.
package metrics

import (
	gometrics "github.com/rcrowley/go-metrics"
)

// Registry is the process-wide metrics registry every component registers
// into, mirroring the teacher's implicit use of go-metrics' DefaultRegistry.
var Registry = gometrics.NewRegistry()

// NewRegisteredCounter creates (or looks up) a named counter.
func NewRegisteredCounter(name string) gometrics.Counter {
	return gometrics.GetOrRegisterCounter(name, Registry)
}

// NewRegisteredGauge creates (or looks up) a named gauge.
func NewRegisteredGauge(name string) gometrics.Gauge {
	return gometrics.GetOrRegisterGauge(name, Registry)
}

// NewRegisteredMeter creates (or looks up) a named meter.
func NewRegisteredMeter(name string) gometrics.Meter {
	return gometrics.GetOrRegisterMeter(name, Registry)
}

// NewRegisteredTimer creates (or looks up) a named timer.
func NewRegisteredTimer(name string) gometrics.Timer {
	return gometrics.GetOrRegisterTimer(name, Registry)
}
