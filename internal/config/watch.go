package config

import (
	"context"
	"fmt"
	"path/filepath"
	"sync/atomic"

	"github.com/fsnotify/fsnotify"
	"github.com/rgehrsitz/paycalc/internal/logging"
	"github.com/rgehrsitz/paycalc/internal/rules"
)

// CatalogHolder publishes the current rule catalog to concurrent readers.
type CatalogHolder struct {
	current atomic.Pointer[rules.Catalog]
}

// NewCatalogHolder creates a holder with an initial catalog.
func NewCatalogHolder(c *rules.Catalog) *CatalogHolder {
	h := &CatalogHolder{}
	h.current.Store(c)
	return h
}

// Get returns the current catalog.
func (h *CatalogHolder) Get() *rules.Catalog {
	return h.current.Load()
}

// Set replaces the current catalog.
func (h *CatalogHolder) Set(c *rules.Catalog) {
	h.current.Store(c)
}

// WatchCatalog reloads the catalog file into holder whenever it changes,
// until ctx is done. An invalid file is logged and ignored; the previous
// catalog stays in effect. The onReload callback, if set, runs after every
// successful reload.
func WatchCatalog(ctx context.Context, path string, holder *CatalogHolder, logger logging.Logger, onReload func(*rules.Catalog)) error {
	logger = logging.OrNop(logger)

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create watcher: %w", err)
	}
	// Editors replace files on save, so watch the directory.
	if err := watcher.Add(filepath.Dir(path)); err != nil {
		watcher.Close()
		return fmt.Errorf("failed to watch %s: %w", path, err)
	}

	target := filepath.Clean(path)
	parser := NewInputParser()

	go func() {
		defer watcher.Close()
		for {
			select {
			case <-ctx.Done():
				return
			case event, ok := <-watcher.Events:
				if !ok {
					return
				}
				if filepath.Clean(event.Name) != target || !event.Has(fsnotify.Write|fsnotify.Create) {
					continue
				}
				catalog, err := parser.LoadRuleCatalog(path)
				if err != nil {
					logger.Warnf("rule catalog reload ignored: %v", err)
					continue
				}
				holder.Set(catalog)
				logger.Infof("rule catalog reloaded from %s (%d rule sets)", path, catalog.Len())
				if onReload != nil {
					onReload(catalog)
				}
			case err, ok := <-watcher.Errors:
				if !ok {
					return
				}
				logger.Errorf("rule catalog watcher: %v", err)
			}
		}
	}()
	return nil
}
