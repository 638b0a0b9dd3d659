package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// DispatchMetrics records metadata for notification drain cycles.
type DispatchMetrics struct {
	duration *prometheus.HistogramVec
	sent     *prometheus.CounterVec
	errored  *prometheus.CounterVec
}

// NewDispatchMetrics registers the dispatch metrics on the provided registerer.
func NewDispatchMetrics(reg prometheus.Registerer) *DispatchMetrics {
	if reg == nil {
		return &DispatchMetrics{}
	}
	duration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "dispatch_cycle_duration_seconds",
		Help:    "Duration of notification drain cycles in seconds.",
		Buckets: prometheus.DefBuckets,
	}, []string{"channel"})
	sent := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "dispatch_notifications_sent",
		Help: "Notifications delivered to their channel transport.",
	}, []string{"channel"})
	errored := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "dispatch_notifications_errored",
		Help: "Notifications that failed delivery and stay retryable.",
	}, []string{"channel"})
	reg.MustRegister(duration, sent, errored)
	return &DispatchMetrics{
		duration: duration,
		sent:     sent,
		errored:  errored,
	}
}

// ObserveCycle records the duration of a drain cycle for the channel.
func (d *DispatchMetrics) ObserveCycle(channel string, duration time.Duration) {
	if d == nil || d.duration == nil {
		return
	}
	d.duration.WithLabelValues(normalizeLabel(channel)).Observe(duration.Seconds())
}

// AddSent increments the sent counter for the channel.
func (d *DispatchMetrics) AddSent(channel string, n int) {
	if d == nil || d.sent == nil || n <= 0 {
		return
	}
	d.sent.WithLabelValues(normalizeLabel(channel)).Add(float64(n))
}

// AddErrored increments the error counter for the channel.
func (d *DispatchMetrics) AddErrored(channel string, n int) {
	if d == nil || d.errored == nil || n <= 0 {
		return
	}
	d.errored.WithLabelValues(normalizeLabel(channel)).Add(float64(n))
}

func normalizeLabel(channel string) string {
	if channel == "" {
		return "unknown"
	}
	return channel
}
