package integration

import (
	"context"
	"net"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/oshokin/alarm-scheduler/internal/config"
	"github.com/oshokin/alarm-scheduler/internal/service/common"
	"github.com/oshokin/alarm-scheduler/internal/service/server"
)

// reservePort returns a free loopback address.
func reservePort(t *testing.T) string {
	t.Helper()

	l, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	addr := l.Addr().String()
	require.NoError(t, l.Close())

	return addr
}

// writeSettings saves settings to a temporary file and returns its path.
func writeSettings(t *testing.T, dir string, settings *config.Config) string {
	t.Helper()

	path := filepath.Join(dir, config.DefaultConfigFilename)
	require.NoError(t, config.Save(path, settings))

	return path
}

// startServer runs server.Run in the background and waits until the bridge answers.
// The returned stop function cancels the server and waits for Run to return.
func startServer(t *testing.T, configPath string) (stop func()) {
	t.Helper()

	settings, err := config.Load(configPath)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)

	go func() {
		done <- server.Run(ctx, &server.Options{ConfigPath: configPath})
	}()

	c := dial(t, settings.ServerAddress)

	require.Eventually(t, func() bool {
		_, err := c.List(context.Background())

		return err == nil
	}, 5*time.Second, 20*time.Millisecond)

	return func() {
		cancel()
		require.NoError(t, <-done)
	}
}

// dial connects a client and closes it on cleanup.
func dial(t *testing.T, addr string) *common.Client {
	t.Helper()

	c, err := common.Dial(context.Background(), addr,
		common.WithCallTimeout(3*time.Second),
		common.WithActor(common.Actor{Hostname: "test-host", Username: "test-user"}),
	)
	require.NoError(t, err)

	t.Cleanup(func() {
		_ = c.Close()
	})

	return c
}

func ptr[T any](v T) *T {
	return &v
}
