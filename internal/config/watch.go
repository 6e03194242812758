package config

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

// reloadDebounce lets editors finish writing before the file is parsed.
const reloadDebounce = 250 * time.Millisecond

// Watch reloads the settings file whenever it changes and passes valid
// results to onChange. Invalid files are reported to onError and skipped.
// It blocks until ctx is done.
func Watch(ctx context.Context, path string, onChange func(*Config), onError func(error)) error {
	if path == "" {
		path = DefaultConfigFilename
	}

	path = filepath.Clean(path)

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create watcher: %w", err)
	}

	defer func() {
		_ = watcher.Close()
	}()

	// Watch the directory: editors often replace the file via rename.
	if err := watcher.Add(filepath.Dir(path)); err != nil {
		return fmt.Errorf("watch %s: %w", filepath.Dir(path), err)
	}

	reloads := newDebouncer(reloadDebounce, func() {
		if ctx.Err() != nil {
			return
		}

		cfg, err := Load(path)
		if err != nil {
			if onError != nil {
				onError(err)
			}

			return
		}

		onChange(cfg)
	})
	defer reloads.stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}

			if filepath.Clean(event.Name) != path {
				continue
			}

			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) && !event.Has(fsnotify.Rename) {
				continue
			}

			reloads.trigger()
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}

			if onError != nil {
				onError(err)
			}
		}
	}
}

// debouncer runs fn once delay has passed without another trigger.
type debouncer struct {
	delay time.Duration
	fn    func()

	mu      sync.Mutex
	timer   *time.Timer
	stopped bool
	running sync.WaitGroup
}

func newDebouncer(delay time.Duration, fn func()) *debouncer {
	return &debouncer{delay: delay, fn: fn}
}

// trigger restarts the delay.
func (d *debouncer) trigger() {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.stopped {
		return
	}

	if d.timer != nil {
		d.timer.Stop()
	}

	d.timer = time.AfterFunc(d.delay, d.run)
}

func (d *debouncer) run() {
	d.mu.Lock()
	if d.stopped {
		d.mu.Unlock()

		return
	}

	d.running.Add(1)
	d.mu.Unlock()

	defer d.running.Done()

	d.fn()
}

// stop cancels a pending run and waits for one already in progress.
// No run starts after stop returns.
func (d *debouncer) stop() {
	d.mu.Lock()
	d.stopped = true

	if d.timer != nil {
		d.timer.Stop()
	}
	d.mu.Unlock()

	d.running.Wait()
}
