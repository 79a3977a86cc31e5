// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package dictionary

import (
	"context"
	"errors"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
)

// DefaultDebounce coalesces bursts of file events into one reload.
const DefaultDebounce = 150 * time.Millisecond

// Watch reloads the store whenever another process rewrites its file,
// until ctx is cancelled. It returns once the watcher is set up.
//
// The parent directory is watched rather than the file, since atomic
// writers replace the file with a rename.
func (s *Store) Watch(ctx context.Context, debounce time.Duration) error {
	if s.path == "" {
		return errors.New("dictionary: memory store cannot be watched")
	}
	if debounce <= 0 {
		debounce = DefaultDebounce
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}

	abs, err := filepath.Abs(s.path)
	if err != nil {
		watcher.Close()
		return err
	}
	if err := watcher.Add(filepath.Dir(abs)); err != nil {
		watcher.Close()
		return err
	}

	go s.processEvents(ctx, watcher, abs, debounce)
	return nil
}

func (s *Store) processEvents(ctx context.Context, watcher *fsnotify.Watcher, path string, debounce time.Duration) {
	defer watcher.Close()

	timer := time.NewTimer(debounce)
	timer.Stop()
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return

		case event, ok := <-watcher.Events:
			if !ok {
				return
			}
			if filepath.Clean(event.Name) != path {
				continue
			}
			if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename|fsnotify.Remove) != 0 {
				timer.Reset(debounce)
			}

		case <-timer.C:
			if err := s.Reload(); err != nil {
				s.log.Warn().Err(err).Msg("dictionary reload failed, keeping current entries")
				continue
			}
			s.log.Debug().Msg("dictionary reloaded from disk")

		case err, ok := <-watcher.Errors:
			if !ok {
				return
			}
			s.log.Warn().Err(err).Msg("dictionary watcher error")
		}
	}
}
