package store

import (
	"context"
	"log"
	"strings"

	"github.com/fsnotify/fsnotify"
)

// Watch re-scans the catalog whenever model files appear or disappear, so
// freshly downloaded models become loadable without a restart. It blocks
// until ctx is canceled.
func (s *Store) Watch(ctx context.Context) error {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer w.Close()
	if err := w.Add(s.dir); err != nil {
		return err
	}
	log.Printf("store event=watch_start dir=%q", s.dir)

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case ev, ok := <-w.Events:
			if !ok {
				return nil
			}
			if !strings.HasSuffix(strings.ToLower(ev.Name), ".gguf") {
				continue
			}
			if ev.Op&(fsnotify.Create|fsnotify.Remove|fsnotify.Rename) == 0 {
				continue
			}
			if err := s.Rescan(); err != nil {
				log.Printf("store event=rescan_error err=%v", err)
			}
		case err, ok := <-w.Errors:
			if !ok {
				return nil
			}
			log.Printf("store event=watch_error err=%v", err)
		}
	}
}
