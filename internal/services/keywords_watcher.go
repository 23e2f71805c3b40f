package services

import (
	"context"
	"log"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
)

const keywordReloadDebounce = 500 * time.Millisecond

// WatchKeywordFile reloads table whenever the file at path is written or
// recreated. It blocks until ctx is done.
func WatchKeywordFile(ctx context.Context, path string, table *KeywordTable) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer watcher.Close()

	absPath, err := filepath.Abs(path)
	if err != nil {
		return err
	}

	// Watch the directory; editors often replace the file instead of writing it.
	if err := watcher.Add(filepath.Dir(absPath)); err != nil {
		return err
	}
	filename := filepath.Base(absPath)

	log.Printf("[KEYWORDS] Watching %s for changes", path)

	var debounce *time.Timer
	defer func() {
		if debounce != nil {
			debounce.Stop()
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return nil

		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if filepath.Base(event.Name) != filename {
				continue
			}
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) {
				continue
			}

			if debounce != nil {
				debounce.Stop()
			}
			debounce = time.AfterFunc(keywordReloadDebounce, func() {
				if err := table.ReloadFile(absPath); err != nil {
					log.Printf("[KEYWORDS] Reload failed, keeping previous table: %v", err)
				}
			})

		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			log.Printf("[KEYWORDS] Watcher error: %v", err)
		}
	}
}
