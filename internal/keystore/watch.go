// SPDX-License-Identifier: AGPL-3.0-or-later
// Copyright (C) 2026 aPlane Authors

package keystore

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/aplane-algo/icxsign/internal/util"

	"github.com/fsnotify/fsnotify"
)

// DebounceDelay is how long Watch waits after the last change before rescanning.
const DebounceDelay = 500 * time.Millisecond

// Watch rescans the directory whenever files are created, modified, removed
// or renamed, until ctx is cancelled. Bursts of events collapse into one
// rescan. onReload, if non-nil, receives the result of each rescan.
func (d *Dir) Watch(ctx context.Context, onReload func(count int, err error)) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create file watcher: %w", err)
	}
	if err := watcher.Add(d.path); err != nil {
		_ = watcher.Close()
		return fmt.Errorf("failed to watch keystore directory: %w", err)
	}

	util.Debug("keystore watcher started", "dir", d.path)

	go func() {
		defer func() { _ = watcher.Close() }()

		var debounce *time.Timer
		defer func() {
			if debounce != nil {
				debounce.Stop()
			}
		}()

		for {
			select {
			case <-ctx.Done():
				return

			case event, ok := <-watcher.Events:
				if !ok {
					return
				}
				if strings.HasPrefix(filepath.Base(event.Name), ".") {
					continue
				}
				if event.Op&(fsnotify.Create|fsnotify.Write|fsnotify.Remove|fsnotify.Rename) == 0 {
					continue
				}
				if debounce != nil {
					debounce.Stop()
				}
				debounce = time.AfterFunc(DebounceDelay, func() {
					if ctx.Err() != nil {
						return
					}
					n, err := d.Scan()
					if err != nil {
						util.Logger.Warn("keystore reload failed", "dir", d.path, "error", err)
					} else {
						util.Debug("keystore reloaded", "dir", d.path, "keys", n)
					}
					if onReload != nil {
						onReload(n, err)
					}
				})

			case err, ok := <-watcher.Errors:
				if !ok {
					return
				}
				util.Logger.Warn("keystore watcher error", "error", err)
			}
		}
	}()

	return nil
}
