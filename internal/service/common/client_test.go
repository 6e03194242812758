//nolint:revive,nolintlint // Package name "common" is intentional for shared helpers.
package common

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"google.golang.org/grpc/metadata"
)

// TestDial_ValidatesAddress verifies that Dial rejects empty addresses.
func TestDial_ValidatesAddress(t *testing.T) {
	t.Parallel()

	c, err := Dial(context.Background(), "")
	require.Error(t, err)
	require.Nil(t, c)
}

// TestDial_AppliesOptions checks options reach the client without connecting.
func TestDial_AppliesOptions(t *testing.T) {
	t.Parallel()

	c, err := Dial(context.Background(), "127.0.0.1:1",
		WithCallTimeout(time.Second),
		WithActor(Actor{Hostname: "desk-1", Username: "ops"}),
	)
	require.NoError(t, err)

	t.Cleanup(func() { require.NoError(t, c.Close()) })

	require.Equal(t, time.Second, c.callTimeout)
	require.Equal(t, "ops@desk-1", c.actor)
}

// TestClient_callContext checks timeout vs cancel-only behavior of callContext.
func TestClient_callContext(t *testing.T) {
	t.Parallel()

	c := &Client{
		callTimeout: 0,
	}

	ctx, cancel := c.callContext(context.Background())
	cancel()

	require.NotNil(t, ctx)

	_, hasMetadata := metadata.FromOutgoingContext(ctx)
	require.False(t, hasMetadata)

	c.callTimeout = 10 * time.Millisecond
	c.actor = "ops@desk-1"

	ctx, cancel = c.callContext(context.Background())
	defer cancel()

	deadline, ok := ctx.Deadline()
	require.True(t, ok)
	require.WithinDuration(t, time.Now().Add(10*time.Millisecond), deadline, 30*time.Millisecond)

	md, ok := metadata.FromOutgoingContext(ctx)
	require.True(t, ok)
	require.Equal(t, []string{"ops@desk-1"}, md.Get(ActorMetadataKey))
}

// TestClient_RejectsUnencodableArguments fails before any call is made.
func TestClient_RejectsUnencodableArguments(t *testing.T) {
	t.Parallel()

	c := new(Client)

	_, err := c.ScheduleOnce(context.Background(), map[string]any{"title": make(chan int)})
	require.Error(t, err)

	_, err = c.ScheduleDaily(context.Background(), map[string]any{"hour": struct{}{}})
	require.Error(t, err)

	_, err = c.Cancel(context.Background(), map[string]any{"notificationId": []int{1}})
	require.Error(t, err)
}

// TestClient_CloseNil is safe on a zero client.
func TestClient_CloseNil(t *testing.T) {
	t.Parallel()

	var c *Client

	require.NoError(t, c.Close())
}
