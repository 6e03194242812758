//nolint:revive,nolintlint // Package name "common" is intentional for shared helpers.
package common

import (
	"context"
	"errors"
	"fmt"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/metadata"
	"google.golang.org/protobuf/types/known/structpb"

	api "github.com/oshokin/alarm-scheduler/internal/api/grpc/alarm"
	"github.com/oshokin/alarm-scheduler/internal/config"
)

// Client wraps the bridge client with convenience helpers.
type Client struct {
	// conn is the underlying gRPC connection to the alarm server.
	conn *grpc.ClientConn
	// api calls the bridge methods.
	api *api.BridgeClient
	// actor is forwarded as request metadata when set.
	actor string

	// callTimeout is the default timeout for individual RPC calls.
	callTimeout time.Duration
}

// Option configures client behaviour.
type Option func(*Client)

// WithCallTimeout sets a default timeout for service calls.
func WithCallTimeout(timeout time.Duration) Option {
	return func(c *Client) {
		if timeout > 0 {
			c.callTimeout = timeout
		}
	}
}

// WithActor forwards actor with every call.
func WithActor(actor Actor) Option {
	return func(c *Client) {
		c.actor = actor.String()
	}
}

// errAddressRequired is returned when a required address value is missing.
var errAddressRequired = errors.New("address must be provided")

// Dial establishes a gRPC connection to the alarm server.
// Note: this uses insecure transport credentials; deploy on a trusted network
// or terminate TLS in a proxy until native TLS is added.
func Dial(_ context.Context, address string, opts ...Option) (*Client, error) {
	if address == "" {
		return nil, errAddressRequired
	}

	conn, err := grpc.NewClient(address, grpc.WithTransportCredentials(insecure.NewCredentials()))
	if err != nil {
		return nil, fmt.Errorf("dial alarm server: %w", err)
	}

	client := &Client{
		conn:        conn,
		api:         api.NewBridgeClient(conn),
		callTimeout: config.DefaultTimeout,
	}

	for _, opt := range opts {
		opt(client)
	}

	return client, nil
}

// Close releases the underlying gRPC connection.
func (c *Client) Close() error {
	if c == nil || c.conn == nil {
		return nil
	}

	return c.conn.Close()
}

// ScheduleOnce schedules a one-shot alarm. Omitted arguments take the server defaults.
func (c *Client) ScheduleOnce(ctx context.Context, args map[string]any) (string, error) {
	in, err := structpb.NewStruct(args)
	if err != nil {
		return "", fmt.Errorf("encode arguments: %w", err)
	}

	callCtx, cancel := c.callContext(ctx)
	defer cancel()

	ack, err := c.api.ScheduleNativeAlarm(callCtx, in)
	if err != nil {
		return "", fmt.Errorf("schedule alarm: %w", err)
	}

	return ack.GetValue(), nil
}

// ScheduleDaily schedules a daily alarm, replacing whatever is pending under its identifier.
func (c *Client) ScheduleDaily(ctx context.Context, args map[string]any) (string, error) {
	in, err := structpb.NewStruct(args)
	if err != nil {
		return "", fmt.Errorf("encode arguments: %w", err)
	}

	callCtx, cancel := c.callContext(ctx)
	defer cancel()

	ack, err := c.api.ScheduleDailyNotification(callCtx, in)
	if err != nil {
		return "", fmt.Errorf("schedule daily alarm: %w", err)
	}

	return ack.GetValue(), nil
}

// Cancel removes a pending alarm.
func (c *Client) Cancel(ctx context.Context, args map[string]any) (string, error) {
	in, err := structpb.NewStruct(args)
	if err != nil {
		return "", fmt.Errorf("encode arguments: %w", err)
	}

	callCtx, cancel := c.callContext(ctx)
	defer cancel()

	ack, err := c.api.CancelNativeAlarm(callCtx, in)
	if err != nil {
		return "", fmt.Errorf("cancel alarm: %w", err)
	}

	return ack.GetValue(), nil
}

// List returns the pending alarms as decoded JSON objects.
func (c *Client) List(ctx context.Context) ([]map[string]any, error) {
	callCtx, cancel := c.callContext(ctx)
	defer cancel()

	out, err := c.api.ListPendingAlarms(callCtx)
	if err != nil {
		return nil, fmt.Errorf("list alarms: %w", err)
	}

	values := out.GetFields()["alarms"].GetListValue().GetValues()
	result := make([]map[string]any, 0, len(values))

	for _, v := range values {
		result = append(result, v.GetStructValue().AsMap())
	}

	return result, nil
}

// callContext returns a context with the client's call timeout if configured,
// otherwise a cancellable child context without a deadline. The actor, when
// known, is attached as outgoing metadata.
func (c *Client) callContext(ctx context.Context) (context.Context, context.CancelFunc) {
	if c.actor != "" {
		ctx = metadata.AppendToOutgoingContext(ctx, ActorMetadataKey, c.actor)
	}

	if c.callTimeout <= 0 {
		return context.WithCancel(ctx)
	}

	return context.WithTimeout(ctx, c.callTimeout)
}
