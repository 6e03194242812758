package server

import (
	"context"
	"errors"
	"fmt"
	"net"

	"github.com/oshokin/alarm-scheduler/internal/config"
	"github.com/oshokin/alarm-scheduler/internal/logger"
	"github.com/oshokin/alarm-scheduler/internal/version"
)

// Options controls the alarm-server process and configuration.
type Options struct {
	// ConfigPath specifies the path to settings YAML file.
	ConfigPath string
	// ListenAddress provides an optional listen address override for the gRPC server.
	ListenAddress string
	// StorePath overrides the pending-alarm store location from the settings.
	StorePath string
}

// ErrNoServerAddress indicates missing server configuration.
var ErrNoServerAddress = errors.New("no server address configured")

// Run starts the daemon and blocks until context is canceled or a component fails.
// Loads configuration first, then determines listen address from config or override.
func Run(ctx context.Context, opts *Options) error {
	settings, err := config.Load(opts.ConfigPath)
	if err != nil {
		return fmt.Errorf("load settings: %w", err)
	}

	if opts.StorePath != "" {
		settings.Store.Path = opts.StorePath
	}

	if err = logger.Configure(settings.LogFormat); err != nil {
		return fmt.Errorf("configure logger: %w", err)
	}

	ctx = logger.WithName(ctx, "alarm-server")

	applyLogLevel(ctx, settings.LogLevel)
	logger.InfoKV(ctx, "Starting alarm server", version.Fields()...)

	// CLI argument overrides config port extraction.
	listenAddress, err := resolveListenAddress(settings.ServerAddress, opts.ListenAddress)
	if err != nil {
		return fmt.Errorf("resolve listen address: %w", err)
	}

	d, err := New(ctx, settings)
	if err != nil {
		return fmt.Errorf("initialise daemon: %w", err)
	}

	defer d.Close(ctx)

	lc := net.ListenConfig{}

	lis, err := lc.Listen(ctx, "tcp", listenAddress)
	if err != nil {
		return fmt.Errorf("listen on %s: %w", listenAddress, err)
	}

	logger.InfoKV(ctx, "Alarm server listening",
		"listen_address", listenAddress,
		"store_driver", settings.Store.Driver,
		"store_path", settings.Store.Path,
		"sink_driver", settings.Sink.Driver,
	)

	return d.Serve(ctx, lis, opts.ConfigPath)
}

// applyLogLevel sets the global level, keeping the current one for unknown names.
func applyLogLevel(ctx context.Context, name string) {
	level, ok := logger.ParseLogLevel(name)
	if !ok {
		logger.WarnKV(ctx, "Unknown log level, keeping current", "log_level", name, "current", logger.Level())

		return
	}

	logger.SetLevel(level)
}

// resolveListenAddress determines the listen address for the gRPC server.
// If override is provided, uses it directly. Otherwise extracts port from configAddr.
// Returns appropriate listen address (e.g., ":8080" for port-only binding).
func resolveListenAddress(configAddr, override string) (string, error) {
	if override != "" {
		return override, nil
	}

	if configAddr == "" {
		return "", ErrNoServerAddress
	}

	_, port, err := net.SplitHostPort(configAddr)
	if err != nil {
		return "", fmt.Errorf("invalid server address format %q: %w", configAddr, err)
	}

	return ":" + port, nil
}
