package catalog

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
)

// debounce groups the burst of events a recompilation produces.
const debounce = 200 * time.Millisecond

// Watch reloads the store whenever files in the compiled directory change,
// calling onReload with the result of each reload. It blocks until ctx is
// done.
func (s *DirStore) Watch(ctx context.Context, onReload func(error)) error {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create watcher: %w", err)
	}
	defer w.Close()

	for _, sub := range []string{interfaceDir, sqlDir} {
		dir := filepath.Join(s.Path(), sub)
		if err := w.Add(dir); err != nil {
			return fmt.Errorf("failed to watch %s: %w", dir, err)
		}
	}

	timer := time.NewTimer(debounce)
	timer.Stop()
	pending := false

	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-w.Events:
			if !ok {
				return nil
			}
			if ev.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Remove|fsnotify.Rename) == 0 {
				continue
			}
			if !pending {
				pending = true
				timer.Reset(debounce)
			}
		case err, ok := <-w.Errors:
			if !ok {
				return nil
			}
			if onReload != nil {
				onReload(fmt.Errorf("watch: %w", err))
			}
		case <-timer.C:
			pending = false
			err := s.Reload()
			if onReload != nil {
				onReload(err)
			}
		}
	}
}
