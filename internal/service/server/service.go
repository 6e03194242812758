package server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"sync"

	"github.com/coreos/go-systemd/v22/daemon"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"google.golang.org/grpc"

	api "github.com/oshokin/alarm-scheduler/internal/api/grpc/alarm"
	"github.com/oshokin/alarm-scheduler/internal/config"
	"github.com/oshokin/alarm-scheduler/internal/logger"
	"github.com/oshokin/alarm-scheduler/internal/metrics"
	"github.com/oshokin/alarm-scheduler/internal/notification"
	"github.com/oshokin/alarm-scheduler/internal/repository/wake"
	"github.com/oshokin/alarm-scheduler/internal/service/scheduler"
	"github.com/oshokin/alarm-scheduler/internal/timer"
)

// Option configures a Daemon.
type Option func(*daemonOptions)

type daemonOptions struct {
	sink      notification.Sink
	store     wake.Repository
	clock     scheduler.Clock
	readiness func(state string)
}

// WithSink replaces the sink selected by the settings. The permission gate still applies.
func WithSink(sink notification.Sink) Option {
	return func(o *daemonOptions) {
		o.sink = sink
	}
}

// WithStore replaces the store selected by the settings.
func WithStore(store wake.Repository) Option {
	return func(o *daemonOptions) {
		o.store = store
	}
}

// WithClock overrides the scheduler clock.
func WithClock(clock scheduler.Clock) Option {
	return func(o *daemonOptions) {
		o.clock = clock
	}
}

// WithReadiness replaces the systemd notification hook.
func WithReadiness(notify func(state string)) Option {
	return func(o *daemonOptions) {
		o.readiness = notify
	}
}

// Daemon owns the timer service, the notification sink, the scheduler and the bridge.
type Daemon struct {
	settings  *config.Config
	store     wake.Repository
	timers    *timer.Service
	gate      *notification.Gate
	registry  *prometheus.Registry
	scheduler *scheduler.Scheduler
	handler   *scheduler.FireHandler
	readiness func(state string)
}

// New assembles a daemon from validated settings.
func New(ctx context.Context, settings *config.Config, opts ...Option) (*Daemon, error) {
	var o daemonOptions
	for _, opt := range opts {
		opt(&o)
	}

	loc, err := settings.Location()
	if err != nil {
		return nil, err
	}

	gate, err := buildGate(settings.Sink, o.sink)
	if err != nil {
		return nil, fmt.Errorf("build sink: %w", err)
	}

	store := o.store
	if store == nil {
		store, err = wake.Open(ctx, settings.Store)
		if err != nil {
			return nil, fmt.Errorf("open store: %w", err)
		}
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	m, err := metrics.New(registry)
	if err != nil {
		_ = store.Close()

		return nil, err
	}

	timers := timer.New(store, timer.WithExactAlarms(settings.ExactAlarmsGranted()))

	if err = metrics.RegisterPending(registry, func() int { return len(timers.Pending()) }); err != nil {
		_ = store.Close()

		return nil, err
	}

	sched := scheduler.New(timers,
		scheduler.WithClock(o.clock),
		scheduler.WithLocation(loc),
		scheduler.WithStrictTriggers(settings.StrictTriggers),
		scheduler.WithMetrics(m),
	)

	readiness := o.readiness
	if readiness == nil {
		readiness = func(state string) { notifySystemd(ctx, state) }
	}

	return &Daemon{
		settings:  settings,
		store:     store,
		timers:    timers,
		gate:      gate,
		registry:  registry,
		scheduler: sched,
		handler:   scheduler.NewFireHandler(sched, gate, m),
		readiness: readiness,
	}, nil
}

// buildGate uses override as the base sink when set, otherwise the configured driver.
func buildGate(settings config.SinkConfig, override notification.Sink) (*notification.Gate, error) {
	if override == nil {
		return notification.Build(settings)
	}

	if settings.RatePerSec > 0 {
		override = notification.NewRateLimited(override, settings.RatePerSec)
	}

	return notification.NewGate(override, settings.SinkEnabled()), nil
}

// Scheduler exposes the scheduling core.
func (d *Daemon) Scheduler() *scheduler.Scheduler {
	return d.scheduler
}

// Apply reapplies the settings that can change at runtime: log level,
// exact-alarm permission and notification permission. Zone, store and
// sink driver changes need a restart.
func (d *Daemon) Apply(ctx context.Context, settings *config.Config) {
	applyLogLevel(ctx, settings.LogLevel)
	d.timers.SetExactAlarms(settings.ExactAlarmsGranted())
	d.gate.SetGranted(settings.Sink.SinkEnabled())

	logger.InfoKV(ctx, "Settings reloaded",
		"log_level", logger.Level().String(),
		"exact_alarms", settings.ExactAlarmsGranted(),
		"sink_enabled", settings.Sink.SinkEnabled(),
	)
}

// Serve runs the timer service, the bridge on lis, the optional metrics
// exporter and the settings watcher until ctx is done or one of them fails.
// An empty configPath disables the watcher.
func (d *Daemon) Serve(ctx context.Context, lis net.Listener, configPath string) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	grpcServer := grpc.NewServer(grpc.ChainUnaryInterceptor(logRequests))
	api.RegisterBridgeServer(grpcServer, api.NewServer(d.scheduler))

	var (
		wg   sync.WaitGroup
		errs = make(chan error, 4)
	)

	run := func(name string, fn func() error) {
		wg.Go(func() {
			if err := fn(); err != nil {
				errs <- fmt.Errorf("%s: %w", name, err)

				cancel()
			}
		})
	}

	run("timer service", func() error {
		return d.timers.Run(ctx, d.handler)
	})

	run("grpc server", func() error {
		stopped := make(chan struct{})

		go func() {
			defer close(stopped)

			<-ctx.Done()
			logger.Info(ctx, "Shutting down gRPC server")
			grpcServer.GracefulStop()
		}()

		if err := grpcServer.Serve(lis); err != nil && !errors.Is(err, grpc.ErrServerStopped) {
			return err
		}

		<-stopped

		return nil
	})

	if d.settings.MetricsAddress != "" {
		run("metrics exporter", func() error {
			return metrics.Serve(ctx, d.settings.MetricsAddress, d.registry)
		})
	}

	if configPath != "" {
		run("settings watcher", func() error {
			return config.Watch(ctx, configPath,
				func(settings *config.Config) { d.Apply(ctx, settings) },
				func(err error) { logger.WarnKV(ctx, "Settings reload skipped", "error", err) },
			)
		})
	}

	d.readiness(daemon.SdNotifyReady)

	<-ctx.Done()

	d.readiness(daemon.SdNotifyStopping)
	wg.Wait()
	close(errs)

	var result error
	for err := range errs {
		result = errors.Join(result, err)
	}

	return result
}

// Close releases the store.
func (d *Daemon) Close(ctx context.Context) {
	if err := d.store.Close(); err != nil {
		logger.ErrorKV(ctx, "Failed to close store", "error", err)
	}
}

// notifySystemd reports state to systemd when running under it.
func notifySystemd(ctx context.Context, state string) {
	sent, err := daemon.SdNotify(false, state)
	if err != nil {
		logger.WarnKV(ctx, "systemd notification failed", "state", state, "error", err)

		return
	}

	if sent {
		logger.DebugKV(ctx, "systemd notified", "state", state)
	}
}
