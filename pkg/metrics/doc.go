// Package metrics provides tracking and exposure of regman metrics.
// It integrates with Prometheus to monitor registry requests and tag deletions.
//
// Key components:
//   - Metrics: Counts registry requests and queues deletion batch outcomes.
//   - NewMetric: Creates a metric from a deletion report.
//
// Usage example:
//
//	m := metrics.Default()
//	m.ObserveRequest("tags", "success")
//	m.ObserveLatency("tags", elapsed)
//	m.Register(metrics.NewMetric(report))
//
// All recording methods accept a nil *Metrics and do nothing, so callers
// can run without metrics.
package metrics
