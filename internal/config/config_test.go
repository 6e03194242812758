package config

import (
	"context"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"testing/synctest"
	"time"

	"github.com/stretchr/testify/require"
)

// TestValidate checks required fields, defaults and driver validation.
func TestValidate(t *testing.T) {
	t.Parallel()

	// Missing socket.
	require.Error(t, Validate(new(Config)))
	require.Error(t, Validate(nil))

	// Bad socket.
	require.Error(t, Validate(&Config{ServerAddress: "bad:address"}))

	// Defaults are filled.
	settings := &Config{ServerAddress: "127.0.0.1:0"}
	require.NoError(t, Validate(settings))
	require.Equal(t, DefaultTimeout, settings.Timeout)
	require.Equal(t, StoreSQLite, settings.Store.Driver)
	require.Equal(t, DefaultStoreFilename, settings.Store.Path)
	require.Equal(t, SinkLog, settings.Sink.Driver)
	require.Equal(t, LogFormatConsole, settings.LogFormat)
	require.True(t, settings.ExactAlarmsGranted())
	require.True(t, settings.Sink.SinkEnabled())

	// Unknown drivers.
	require.Error(t, Validate(&Config{ServerAddress: "127.0.0.1:0", Store: StoreConfig{Driver: "mongo"}}))
	require.Error(t, Validate(&Config{ServerAddress: "127.0.0.1:0", Sink: SinkConfig{Driver: "sms"}}))

	// Telegram needs credentials.
	require.Error(t, Validate(&Config{ServerAddress: "127.0.0.1:0", Sink: SinkConfig{Driver: SinkTelegram}}))

	// Unknown log format.
	require.Error(t, Validate(&Config{ServerAddress: "127.0.0.1:0", LogFormat: "xml"}))

	// Bad timezone.
	require.Error(t, Validate(&Config{ServerAddress: "127.0.0.1:0", Timezone: "Mars/Olympus"}))

	// Memory store needs no path.
	settings = &Config{ServerAddress: "127.0.0.1:0", Store: StoreConfig{Driver: "MEMORY"}}
	require.NoError(t, Validate(settings))
	require.Equal(t, StoreMemory, settings.Store.Driver)
	require.Empty(t, settings.Store.Path)
}

// TestPermissionsFlags checks explicit false values are honoured.
func TestPermissionsFlags(t *testing.T) {
	t.Parallel()

	denied := false
	settings := &Config{
		ServerAddress: "127.0.0.1:0",
		ExactAlarms:   &denied,
		Sink:          SinkConfig{Enabled: &denied},
	}

	require.NoError(t, Validate(settings))
	require.False(t, settings.ExactAlarmsGranted())
	require.False(t, settings.Sink.SinkEnabled())
}

// TestSaveLoadRoundtrip ensures settings are persisted and loaded back correctly.
func TestSaveLoadRoundtrip(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "settings.yaml")

	settings := &Config{
		ServerAddress:  "127.0.0.1:50061",
		Timezone:       "Asia/Seoul",
		StrictTriggers: true,
		Store:          StoreConfig{Driver: StoreFile, Path: "pending.json"},
	}

	require.NoError(t, Save(path, settings))

	loaded, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, settings.ServerAddress, loaded.ServerAddress)
	require.Equal(t, "Asia/Seoul", loaded.Timezone)
	require.True(t, loaded.StrictTriggers)
	require.Equal(t, StoreFile, loaded.Store.Driver)

	loc, err := loaded.Location()
	require.NoError(t, err)
	require.Equal(t, "Asia/Seoul", loc.String())

	_, err = os.Stat(path)
	require.NoError(t, err)
}

// TestWatch_ReloadsOnWrite rewrites the file and expects the new level to be published.
func TestWatch_ReloadsOnWrite(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "settings.yaml")
	require.NoError(t, Save(path, &Config{ServerAddress: "127.0.0.1:50061", LogLevel: "info"}))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	changes := make(chan *Config, 4)
	done := make(chan error, 1)

	go func() {
		done <- Watch(ctx, path, func(cfg *Config) { changes <- cfg }, nil)
	}()

	// Give the watcher time to register the directory.
	time.Sleep(100 * time.Millisecond)

	require.NoError(t, Save(path, &Config{ServerAddress: "127.0.0.1:50061", LogLevel: "debug"}))

	select {
	case cfg := <-changes:
		require.Equal(t, "debug", cfg.LogLevel)
	case <-time.After(5 * time.Second):
		t.Fatal("no reload observed")
	}

	cancel()
	require.NoError(t, <-done)
}

// TestDebouncer_CoalescesAndStops runs once per quiet period and never after stop.
func TestDebouncer_CoalescesAndStops(t *testing.T) {
	t.Parallel()

	synctest.Test(t, func(t *testing.T) {
		var runs atomic.Int32

		d := newDebouncer(time.Second, func() { runs.Add(1) })

		d.trigger()
		time.Sleep(500 * time.Millisecond)
		d.trigger()
		time.Sleep(time.Second)
		synctest.Wait()
		require.Equal(t, int32(1), runs.Load())

		d.trigger()
		d.stop()
		time.Sleep(2 * time.Second)
		synctest.Wait()
		require.Equal(t, int32(1), runs.Load())

		d.trigger()
		time.Sleep(2 * time.Second)
		synctest.Wait()
		require.Equal(t, int32(1), runs.Load())
	})
}

// TestDebouncer_StopWaitsForRun blocks until an in-progress reload has finished.
func TestDebouncer_StopWaitsForRun(t *testing.T) {
	t.Parallel()

	synctest.Test(t, func(t *testing.T) {
		release := make(chan struct{})

		var finished atomic.Bool

		d := newDebouncer(time.Second, func() {
			<-release
			finished.Store(true)
		})

		d.trigger()
		time.Sleep(time.Second)
		synctest.Wait()

		stopped := make(chan struct{})

		go func() {
			d.stop()
			close(stopped)
		}()

		synctest.Wait()

		select {
		case <-stopped:
			t.Fatal("stop returned while a reload was running")
		default:
		}

		close(release)
		<-stopped
		require.True(t, finished.Load())
	})
}

// TestWatch_NoReloadAfterCancel drops a change still waiting for the debounce once ctx is done.
func TestWatch_NoReloadAfterCancel(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "settings.yaml")
	require.NoError(t, Save(path, &Config{ServerAddress: "127.0.0.1:50061", LogLevel: "info"}))

	ctx, cancel := context.WithCancel(context.Background())
	changes := make(chan *Config, 4)
	done := make(chan error, 1)

	go func() {
		done <- Watch(ctx, path, func(cfg *Config) { changes <- cfg }, nil)
	}()

	time.Sleep(100 * time.Millisecond)

	require.NoError(t, Save(path, &Config{ServerAddress: "127.0.0.1:50061", LogLevel: "debug"}))
	time.Sleep(reloadDebounce / 5)
	cancel()
	require.NoError(t, <-done)

	time.Sleep(2 * reloadDebounce)
	require.Empty(t, changes)
}
