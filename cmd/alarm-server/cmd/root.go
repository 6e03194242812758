package cmd

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/oshokin/alarm-scheduler/internal/config"
	"github.com/oshokin/alarm-scheduler/internal/logger"
	"github.com/oshokin/alarm-scheduler/internal/service/server"
	"github.com/oshokin/alarm-scheduler/internal/version"
)

var (
	// configPath to the configuration YAML file.
	configPath string
	// storePath overrides where pending alarms are persisted.
	storePath string

	// rootCmd represents the base command for running the alarm daemon.
	rootCmd = &cobra.Command{
		Use:   "alarm-server [listen-address]",
		Short: "Run the alarm scheduler daemon.",
		Long: `Starts the alarm scheduler: the exact-wake timer service, the notification sink
and the gRPC bridge callers use to schedule one-shot and daily alarms.

Only the port from server_addr config is used for listening (e.g., :50061).
Listen address can be provided as argument to override config (e.g., :9090, 0.0.0.0:50061).
Pending alarms are persisted so they survive restarts; alarms that came due while
the daemon was down fire immediately on start. Changes to log_level, exact_alarms
and sink.enabled in the settings file apply without a restart.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
			defer stop()

			defer logger.Sync()

			var listenAddress string
			if len(args) > 0 {
				listenAddress = args[0]
			}

			cmd.SilenceUsage = true

			return server.Run(ctx, &server.Options{
				ConfigPath:    configPath,
				ListenAddress: listenAddress,
				StorePath:     storePath,
			})
		},
	}
)

// Execute runs the alarm-server CLI and exits with non-zero status on error.
func Execute() {
	version.AttachCobraVersionCommand(rootCmd)

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

//nolint:gochecknoinits // Required by Cobra CLI framework architecture.
func init() {
	rootCmd.Flags().StringVarP(&configPath, "config", "c", config.DefaultConfigFilename, "path to configuration file")
	rootCmd.Flags().StringVarP(&storePath, "store", "s", "", "override the pending-alarm store path from the configuration")
}
