package cmd

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/oshokin/alarm-scheduler/internal/config"
	"github.com/oshokin/alarm-scheduler/internal/service/client"
	"github.com/oshokin/alarm-scheduler/internal/version"
)

var (
	// cfgPath stores the configuration file path.
	cfgPath string
	// serverAddress overrides the configured server address.
	serverAddress string
	// wait keeps retrying while the server is unreachable.
	wait time.Duration

	// rootCmd groups the alarm-ctl subcommands.
	rootCmd = &cobra.Command{
		Use:   "alarm-ctl",
		Short: "Schedule, cancel and list alarms on the alarm server.",
		Long: `Talks to a running alarm-server over its gRPC bridge.

Flags you leave unset are not sent, and the server applies its defaults:
delay 10s and id 999 for one-shot alarms, 09:00 and id 10000 for daily ones.
Scheduling an id that is already pending replaces that alarm.`,
		SilenceUsage: true,
	}
)

// Execute runs the alarm-ctl CLI and exits with non-zero status on error.
func Execute() {
	version.AttachCobraVersionCommand(rootCmd)

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// newOperationCommand builds a subcommand sending the flags it declares as bridge arguments.
func newOperationCommand(use, short string, op client.Operation, declare func(*pflag.FlagSet)) *cobra.Command {
	cmd := &cobra.Command{
		Use:   use,
		Short: short,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
			defer stop()

			return client.Run(ctx, &client.Options{
				ConfigPath:    cfgPath,
				ServerAddress: serverAddress,
				Operation:     op,
				Args:          changedArgs(cmd.Flags()),
				Wait:          wait,
				Out:           cmd.OutOrStdout(),
			})
		},
	}

	if declare != nil {
		declare(cmd.Flags())
	}

	return cmd
}

// changedArgs collects the flags the user set, keyed by bridge argument name.
func changedArgs(flags *pflag.FlagSet) map[string]any {
	args := make(map[string]any)

	flags.Visit(func(f *pflag.Flag) {
		name, ok := bridgeArguments[f.Name]
		if !ok {
			return
		}

		if f.Value.Type() == "int" {
			n, err := flags.GetInt(f.Name)
			if err == nil {
				args[name] = n
			}

			return
		}

		args[name] = f.Value.String()
	})

	return args
}

// bridgeArguments maps flag names to bridge argument names.
var bridgeArguments = map[string]string{ //nolint:gochecknoglobals // Static lookup table.
	"title":  "title",
	"body":   "body",
	"delay":  "delaySeconds",
	"id":     "notificationId",
	"hour":   "hour",
	"minute": "minute",
}

//nolint:gochecknoinits // Required by Cobra CLI framework architecture.
func init() {
	rootCmd.PersistentFlags().StringVarP(&cfgPath, "config", "c", config.DefaultConfigFilename, "path to configuration file")
	rootCmd.PersistentFlags().StringVarP(&serverAddress, "server", "s", "", "override the server address from the configuration")
	rootCmd.PersistentFlags().DurationVarP(&wait, "wait", "w", 0, "keep retrying this long while the server is unreachable")

	rootCmd.AddCommand(
		newOperationCommand("once", "Schedule a one-shot alarm.", client.OpOnce, func(fs *pflag.FlagSet) {
			fs.String("title", "", "notification title")
			fs.String("body", "", "notification body")
			fs.Int("delay", 0, "seconds until the alarm fires")
			fs.Int("id", 0, "alarm identifier")
		}),
		newOperationCommand("daily", "Schedule an alarm repeating every day.", client.OpDaily, func(fs *pflag.FlagSet) {
			fs.String("title", "", "notification title")
			fs.String("body", "", "notification body")
			fs.Int("hour", 0, "local hour (0-23)")
			fs.Int("minute", 0, "minute (0-59)")
			fs.Int("id", 0, "alarm identifier")
		}),
		newOperationCommand("cancel", "Cancel a pending alarm.", client.OpCancel, func(fs *pflag.FlagSet) {
			fs.Int("id", 0, "alarm identifier")
		}),
		newOperationCommand("list", "List pending alarms.", client.OpList, nil),
	)
}
