// Package metrics exposes Prometheus counters for the scheduler and an HTTP exporter.
package metrics

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/oshokin/alarm-scheduler/internal/logger"
)

const (
	namespace = "alarm"

	// shutdownGrace bounds the exporter shutdown.
	shutdownGrace = 3 * time.Second
	// readHeaderTimeout protects the exporter from slow clients.
	readHeaderTimeout = 5 * time.Second
)

// Metrics groups the scheduler counters. A nil *Metrics records nothing.
type Metrics struct {
	scheduled        *prometheus.CounterVec
	scheduleFailures *prometheus.CounterVec
	cancelled        prometheus.Counter
	cancelFailures   prometheus.Counter
	fired            *prometheus.CounterVec
	deliveryFailures prometheus.Counter
	rearmFailures    prometheus.Counter
}

// New creates the counters and registers them with reg.
func New(reg prometheus.Registerer) (*Metrics, error) {
	m := &Metrics{
		scheduled: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "scheduled_total",
			Help:      "Alarms registered with the timer service.",
		}, []string{"mode"}),
		scheduleFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "schedule_failures_total",
			Help:      "Registrations refused by the timer service.",
		}, []string{"mode"}),
		cancelled: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cancelled_total",
			Help:      "Cancellation requests accepted.",
		}),
		cancelFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cancel_failures_total",
			Help:      "Cancellations refused by the timer service.",
		}),
		fired: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "fired_total",
			Help:      "Alarms delivered to the fire handler.",
		}, []string{"mode"}),
		deliveryFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "delivery_failures_total",
			Help:      "Notifications the sink failed to show.",
		}),
		rearmFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "rearm_failures_total",
			Help:      "Daily alarms that could not be re-armed.",
		}),
	}

	collectors := []prometheus.Collector{
		m.scheduled, m.scheduleFailures, m.cancelled, m.cancelFailures,
		m.fired, m.deliveryFailures, m.rearmFailures,
	}

	for _, c := range collectors {
		if err := reg.Register(c); err != nil {
			return nil, fmt.Errorf("register collector: %w", err)
		}
	}

	return m, nil
}

// RegisterPending exposes the number of pending alarms through count.
func RegisterPending(reg prometheus.Registerer, count func() int) error {
	gauge := prometheus.NewGaugeFunc(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "pending",
		Help:      "Alarms waiting for their trigger instant.",
	}, func() float64 { return float64(count()) })

	if err := reg.Register(gauge); err != nil {
		return fmt.Errorf("register pending gauge: %w", err)
	}

	return nil
}

// Scheduled counts a successful registration.
func (m *Metrics) Scheduled(mode string) {
	if m != nil {
		m.scheduled.WithLabelValues(mode).Inc()
	}
}

// ScheduleFailed counts a refused registration.
func (m *Metrics) ScheduleFailed(mode string) {
	if m != nil {
		m.scheduleFailures.WithLabelValues(mode).Inc()
	}
}

// Cancelled counts an accepted cancellation.
func (m *Metrics) Cancelled() {
	if m != nil {
		m.cancelled.Inc()
	}
}

// CancelFailed counts a refused cancellation.
func (m *Metrics) CancelFailed() {
	if m != nil {
		m.cancelFailures.Inc()
	}
}

// Fired counts a fire.
func (m *Metrics) Fired(mode string) {
	if m != nil {
		m.fired.WithLabelValues(mode).Inc()
	}
}

// DeliveryFailed counts a failed delivery.
func (m *Metrics) DeliveryFailed() {
	if m != nil {
		m.deliveryFailures.Inc()
	}
}

// RearmFailed counts a daily alarm that was not re-armed.
func (m *Metrics) RearmFailed() {
	if m != nil {
		m.rearmFailures.Inc()
	}
}

// Serve exposes gatherer on addr under /metrics until ctx is done.
func Serve(ctx context.Context, addr string, gatherer prometheus.Gatherer) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))

	lc := net.ListenConfig{}

	lis, err := lc.Listen(ctx, "tcp", addr)
	if err != nil {
		return fmt.Errorf("listen on %s: %w", addr, err)
	}

	srv := &http.Server{
		Handler:           mux,
		ReadHeaderTimeout: readHeaderTimeout,
	}

	go func() {
		<-ctx.Done()

		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownGrace)
		defer cancel()

		_ = srv.Shutdown(shutdownCtx)
	}()

	logger.InfoKV(ctx, "Metrics exporter listening", "listen_address", lis.Addr().String())

	if err := srv.Serve(lis); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("serve metrics: %w", err)
	}

	return nil
}
