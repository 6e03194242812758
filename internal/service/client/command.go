package client

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"sort"
	"text/tabwriter"
	"time"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/oshokin/alarm-scheduler/internal/config"
	"github.com/oshokin/alarm-scheduler/internal/logger"
	"github.com/oshokin/alarm-scheduler/internal/service/common"
)

// Operation selects the bridge call.
type Operation string

const (
	// OpOnce schedules a one-shot alarm.
	OpOnce Operation = "once"
	// OpDaily schedules a daily alarm.
	OpDaily Operation = "daily"
	// OpCancel cancels a pending alarm.
	OpCancel Operation = "cancel"
	// OpList prints pending alarms.
	OpList Operation = "list"
)

// Options configures one alarm-ctl invocation.
type Options struct {
	// ConfigPath to YAML settings file, defaults to standard filename if empty.
	ConfigPath string
	// ServerAddress overrides server address from config when specified.
	ServerAddress string
	// Operation is the call to make.
	Operation Operation
	// Args holds the named bridge arguments the user set.
	Args map[string]any
	// Wait keeps retrying while the server is unreachable, up to this long.
	Wait time.Duration
	// Out receives the command output; os.Stdout when nil.
	Out io.Writer
}

// defaultRetryInterval defines retry delay while the server is unreachable.
const defaultRetryInterval = 1 * time.Second

var errUnknownOperation = errors.New("unknown operation")

// caller is the subset of common.Client the commands use.
type caller interface {
	ScheduleOnce(ctx context.Context, args map[string]any) (string, error)
	ScheduleDaily(ctx context.Context, args map[string]any) (string, error)
	Cancel(ctx context.Context, args map[string]any) (string, error)
	List(ctx context.Context) ([]map[string]any, error)
}

// Run performs the requested operation against the alarm server.
func Run(ctx context.Context, opts *Options) error {
	ctx = logger.WithName(ctx, "alarm-ctl")

	cfg, err := config.Load(opts.ConfigPath)
	if err != nil {
		return err
	}

	serverAddress := cfg.ServerAddress
	if opts.ServerAddress != "" {
		serverAddress = opts.ServerAddress
	}

	clientOpts := []common.Option{common.WithCallTimeout(cfg.Timeout)}

	// Identify current user and hostname for the server's audit log.
	if actor, err := common.DetectActor(); err == nil {
		clientOpts = append(clientOpts, common.WithActor(actor))
	} else {
		logger.WarnKV(ctx, "Cannot detect actor", "error", err)
	}

	client, err := common.Dial(ctx, serverAddress, clientOpts...)
	if err != nil {
		return err
	}

	defer func() {
		_ = client.Close()
	}()

	logger.DebugKV(ctx, "Calling alarm server", "server_address", serverAddress, "operation", opts.Operation)

	return execute(ctx, client, opts)
}

// execute runs the operation, retrying while the server is unavailable and opts.Wait allows.
func execute(ctx context.Context, c caller, opts *Options) error {
	out := opts.Out
	if out == nil {
		out = os.Stdout
	}

	var deadline time.Time
	if opts.Wait > 0 {
		deadline = time.Now().Add(opts.Wait)
	}

	for {
		err := attempt(ctx, c, opts.Operation, opts.Args, out)
		if err == nil || status.Code(err) != codes.Unavailable || !time.Now().Before(deadline) {
			return err
		}

		logger.WarnKV(ctx, "Alarm server unavailable, retrying", "error", err)

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(defaultRetryInterval):
		}
	}
}

// attempt makes one call and prints its result.
func attempt(ctx context.Context, c caller, op Operation, args map[string]any, out io.Writer) error {
	var (
		ack string
		err error
	)

	switch op {
	case OpOnce:
		ack, err = c.ScheduleOnce(ctx, args)
	case OpDaily:
		ack, err = c.ScheduleDaily(ctx, args)
	case OpCancel:
		ack, err = c.Cancel(ctx, args)
	case OpList:
		alarms, listErr := c.List(ctx)
		if listErr != nil {
			return listErr
		}

		return printAlarms(out, alarms)
	default:
		return fmt.Errorf("%w: %q", errUnknownOperation, op)
	}

	if err != nil {
		return err
	}

	_, err = fmt.Fprintln(out, ack)

	return err
}

// printAlarms renders pending alarms as an aligned table ordered by trigger instant.
func printAlarms(out io.Writer, alarms []map[string]any) error {
	if len(alarms) == 0 {
		_, err := fmt.Fprintln(out, "No pending alarms")

		return err
	}

	sort.SliceStable(alarms, func(i, j int) bool {
		return number(alarms[i]["triggerMs"]) < number(alarms[j]["triggerMs"])
	})

	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(w, "ID\tMODE\tTRIGGER\tTITLE")

	for _, a := range alarms {
		mode := fmt.Sprint(a["mode"])
		if mode == "daily" {
			mode = fmt.Sprintf("daily %02d:%02d", int(number(a["hour"])), int(number(a["minute"])))
		}

		_, _ = fmt.Fprintf(w, "%d\t%s\t%v\t%v\n", int(number(a["notificationId"])), mode, a["triggerAt"], a["title"])
	}

	return w.Flush()
}

// number reads a JSON number, zero when absent.
func number(v any) float64 {
	f, _ := v.(float64)

	return f
}
