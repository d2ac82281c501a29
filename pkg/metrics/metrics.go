package metrics

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/nicholas-fedor/regman/pkg/session"
)

var metrics *Metrics

// Metric holds the outcome of one batch tag deletion.
type Metric struct {
	Requested int // Number of tags requested for deletion.
	Deleted   int // Number of tags deleted.
	Failed    int // Number of tags that could not be deleted.
}

// Metrics handles processing and exposing registry metrics.
type Metrics struct {
	channel      chan *Metric             // Channel for queuing deletion batches.
	requests     *prometheus.CounterVec   // Registry requests by operation and outcome.
	duration     *prometheus.HistogramVec // Registry request latency by operation.
	registryUp   *prometheus.GaugeVec     // Last ping result per registry.
	deleted      prometheus.Gauge         // Tags deleted in the last batch.
	failed       prometheus.Gauge         // Tags failed in the last batch.
	deletedTotal prometheus.Counter       // Total tags deleted.
	failedTotal  prometheus.Counter       // Total tags that failed deletion.
	batches      prometheus.Counter       // Total deletion batches.
	dropped      prometheus.Counter       // Metrics dropped because the queue was full.
	stopCh       chan struct{}            // Channel for shutdown signaling.
	shutdownOnce sync.Once                // Ensures shutdown is called only once.
	//nolint:containedctx
	ctx    context.Context    // Context for cancellation.
	cancel context.CancelFunc // Cancel function for the context.
}

// NewWithRegistry creates a new Metrics handler with a custom Prometheus registry.
//
// Parameters:
//   - registry: Prometheus registerer to use for metric registration.
//
// Returns:
//   - (*Metrics, error): Metrics handler with its processing goroutine, or an error if registration fails.
func NewWithRegistry(registry prometheus.Registerer) (*Metrics, error) {
	// channelBufferSize sets the metrics channel capacity.
	const channelBufferSize = 10

	ctx, cancel := context.WithCancel(context.Background())

	metrics := &Metrics{
		requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "regman_registry_requests_total",
			Help: "Number of registry API requests by operation and outcome",
		}, []string{"operation", "outcome"}),
		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "regman_registry_request_duration_seconds",
			Help:    "Latency of registry API requests",
			Buckets: prometheus.DefBuckets,
		}, []string{"operation"}),
		registryUp: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "regman_registry_up",
			Help: "Whether the last ping of a registry succeeded",
		}, []string{"registry"}),
		deleted: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "regman_tags_deleted",
			Help: "Number of tags deleted by the last batch deletion",
		}),
		failed: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "regman_tags_failed",
			Help: "Number of tags that failed to delete in the last batch deletion",
		}),
		deletedTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "regman_tags_deleted_total",
			Help: "Total number of tags deleted",
		}),
		failedTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "regman_tags_failed_total",
			Help: "Total number of tags that failed to delete",
		}),
		batches: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "regman_deletion_batches_total",
			Help: "Number of batch deletions since regman started",
		}),
		dropped: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "regman_metrics_dropped_total",
			Help: "Number of metrics dropped due to full channel",
		}),
		channel: make(chan *Metric, channelBufferSize),
		stopCh:  make(chan struct{}),
		ctx:     ctx,
		cancel:  cancel,
	}

	metricsList := []prometheus.Collector{
		metrics.requests,
		metrics.duration,
		metrics.registryUp,
		metrics.deleted,
		metrics.failed,
		metrics.deletedTotal,
		metrics.failedTotal,
		metrics.batches,
		metrics.dropped,
	}
	for _, m := range metricsList {
		if err := registry.Register(m); err != nil {
			cancel()

			return nil, fmt.Errorf("failed to register metric: %w", err)
		}
	}

	go metrics.HandleUpdate()

	return metrics, nil
}

// NewMetric creates a Metric from a deletion report.
func NewMetric(report *session.Report) *Metric {
	if report == nil {
		return &Metric{}
	}

	return &Metric{
		Requested: report.Deleted + report.Failed,
		Deleted:   report.Deleted,
		Failed:    report.Failed,
	}
}

// QueueIsEmpty checks if the metrics channel is empty.
func (m *Metrics) QueueIsEmpty() bool {
	return len(m.channel) == 0
}

// Register attempts to enqueue a metric for processing.
// If the channel is full, the metric is dropped and the dropped counter is incremented.
func (m *Metrics) Register(metric *Metric) {
	if m == nil {
		return
	}

	select {
	case m.channel <- metric:
	default:
		m.dropped.Inc()
	}
}

// ObserveRequest counts one registry request by operation and outcome.
// A nil handler records nothing.
func (m *Metrics) ObserveRequest(operation, outcome string) {
	if m == nil {
		return
	}

	m.requests.WithLabelValues(operation, outcome).Inc()
}

// ObserveLatency records the round-trip time of one registry request.
func (m *Metrics) ObserveLatency(operation string, elapsed time.Duration) {
	if m == nil {
		return
	}

	m.duration.WithLabelValues(operation).Observe(elapsed.Seconds())
}

// SetRegistryUp records the result of the last ping of a registry.
func (m *Metrics) SetRegistryUp(registry string, up bool) {
	if m == nil {
		return
	}

	value := 0.0
	if up {
		value = 1
	}

	m.registryUp.WithLabelValues(registry).Set(value)
}

// Default initializes or returns the singleton Metrics handler. It panics on registration
// failure, such as duplicate registration against the default registry.
func Default() *Metrics {
	if metrics != nil {
		return metrics
	}

	var err error

	metrics, err = NewWithRegistry(prometheus.DefaultRegisterer)
	if err != nil {
		panic(err)
	}

	return metrics
}

// Shutdown gracefully stops the metrics processing goroutine.
// This method is idempotent and can be called multiple times safely.
func (m *Metrics) Shutdown() {
	m.shutdownOnce.Do(func() {
		close(m.stopCh)
		m.cancel()
	})
}

// HandleUpdate processes metrics from the channel.
func (m *Metrics) HandleUpdate() {
	for {
		select {
		case change, ok := <-m.channel:
			if !ok {
				return
			}

			if change == nil {
				continue
			}

			m.deleted.Set(float64(change.Deleted))
			m.failed.Set(float64(change.Failed))
			m.deletedTotal.Add(float64(change.Deleted))
			m.failedTotal.Add(float64(change.Failed))
			m.batches.Inc()
		case <-m.stopCh:
			return
		case <-m.ctx.Done():
			return
		}
	}
}
