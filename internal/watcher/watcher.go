// Package watcher monitors content roots and triggers a rebuild after
// edits settle.
package watcher

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"

	"github.com/sgx-labs/breakdown/internal/content"
	"github.com/sgx-labs/breakdown/internal/logger"
)

// DefaultDebounce is how long the watcher waits for edits to settle.
const DefaultDebounce = 2 * time.Second

// Options tunes Watch.
type Options struct {
	Debounce time.Duration
	// Skip decides which directories are not watched; it uses the same
	// rule as the scanner.
	Skip   content.Options
	Logger *zap.Logger
	// Ready is called once every root directory is being watched.
	Ready func(dirs int)
}

// Watch watches every directory under roots and calls onChange once
// changes to content or image files have been quiet for the debounce
// window. It blocks until ctx is done.
func Watch(ctx context.Context, roots []string, onChange func(), opts Options) error {
	log := logger.OrNop(opts.Logger)
	delay := opts.Debounce
	if delay <= 0 {
		delay = DefaultDebounce
	}

	w, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create watcher: %w", err)
	}
	defer w.Close()

	var count int
	for _, root := range roots {
		for _, d := range walkDirs(root, opts.Skip) {
			if err := w.Add(d); err != nil {
				log.Warn("could not watch directory", zap.String("dir", d), zap.Error(err))
				continue
			}
			count++
		}
	}
	log.Info("watching content", zap.Int("dirs", count), zap.Strings("roots", roots))
	if opts.Ready != nil {
		opts.Ready(count)
	}

	deb := &debouncer{delay: delay, fn: func(n int) {
		if ctx.Err() != nil {
			return
		}
		log.Info("content changed, rebuilding", zap.Int("events", n))
		onChange()
	}}
	defer deb.stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case event, ok := <-w.Events:
			if !ok {
				return nil
			}
			name := filepath.Base(event.Name)

			if event.Has(fsnotify.Create) {
				if info, err := os.Stat(event.Name); err == nil && info.IsDir() {
					if !opts.Skip.SkipDir(name) {
						for _, d := range walkDirs(event.Name, opts.Skip) {
							if err := w.Add(d); err != nil {
								log.Warn("could not watch directory", zap.String("dir", d), zap.Error(err))
							}
						}
					}
					// A moved-in folder may already hold articles.
					deb.touch()
					continue
				}
			}

			// Removed or renamed folders can't be stat'ed; treat extensionless
			// names as folders.
			if filepath.Ext(name) == "" && (event.Has(fsnotify.Remove) || event.Has(fsnotify.Rename)) {
				deb.touch()
				continue
			}
			if !content.IsContentFile(name) && !content.IsImageFile(name) {
				continue
			}
			if event.Op == fsnotify.Chmod {
				continue
			}
			deb.touch()

		case err, ok := <-w.Errors:
			if !ok {
				return nil
			}
			log.Warn("watch error", zap.Error(err))
		}
	}
}

// debouncer runs fn once no touch has arrived for delay.
type debouncer struct {
	mu      sync.Mutex
	timer   *time.Timer
	pending int
	delay   time.Duration
	fn      func(events int)
}

func (d *debouncer) touch() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.pending++
	if d.timer != nil {
		d.timer.Stop()
	}
	d.timer = time.AfterFunc(d.delay, d.fire)
}

func (d *debouncer) fire() {
	d.mu.Lock()
	n := d.pending
	d.pending = 0
	d.mu.Unlock()
	if n > 0 {
		d.fn(n)
	}
}

func (d *debouncer) stop() {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.timer != nil {
		d.timer.Stop()
	}
}

func walkDirs(root string, skip content.Options) []string {
	var dirs []string
	filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return nil
		}
		if d.IsDir() {
			if path != root && skip.SkipDir(d.Name()) {
				return filepath.SkipDir
			}
			dirs = append(dirs, path)
		}
		return nil
	})
	return dirs
}
