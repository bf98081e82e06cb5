package sandbox

import (
	"context"
	"fmt"

	"github.com/fsnotify/fsnotify"
)

// WatchOptions configures Watch.
type WatchOptions struct {
	// Prune removes a root from the registry once its directory is deleted or
	// renamed. Without it the root stays registered and is reported as missing.
	Prune bool
	// OnVanished, if set, is called with the root path after it disappeared.
	OnVanished func(root string)
}

// Watch observes the allowed directories until ctx is cancelled and reports
// roots that are deleted or renamed on disk. The watch set follows registry
// changes. Watch never caches validation results; it only observes.
func (s *Sandbox) Watch(ctx context.Context, opts WatchOptions) error {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create root watcher: %w", err)
	}
	defer w.Close()

	log := s.log.WithPrefix("watcher")
	watched := make(map[string]bool)

	sync := func() {
		want := make(map[string]bool)
		for _, root := range s.Roots() {
			want[root] = true
			if watched[root] {
				continue
			}
			if err := w.Add(root); err != nil {
				log.Warn("Cannot watch allowed directory %s: %v", root, err)
				continue
			}
			watched[root] = true
		}
		for root := range watched {
			if !want[root] {
				_ = w.Remove(root)
				delete(watched, root)
			}
		}
		log.Debug("Watching %d allowed directories", len(watched))
	}
	sync()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-s.Changes():
			sync()
		case event, ok := <-w.Events:
			if !ok {
				return nil
			}
			if !watched[event.Name] || !(event.Has(fsnotify.Remove) || event.Has(fsnotify.Rename)) {
				continue
			}
			delete(watched, event.Name)
			log.Warn("Allowed directory %s was removed or renamed", event.Name)
			if opts.OnVanished != nil {
				opts.OnVanished(event.Name)
			}
			if opts.Prune {
				if err := s.RemoveAllowedDirectory(event.Name); err != nil {
					log.Warn("Failed to prune allowed directory %s: %v", event.Name, err)
				}
			}
		case err, ok := <-w.Errors:
			if !ok {
				return nil
			}
			log.Error("Root watcher error: %v", err)
		}
	}
}
