package agent

import (
	"fmt"
	"path/filepath"
	"sync"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"
)

// SchemaWatcher serves a schema file and reloads it when the file changes.
// A reload that fails to parse keeps the previous schema.
type SchemaWatcher struct {
	path   string
	logger *zap.Logger

	mu      sync.RWMutex
	current *Schema

	watcher *fsnotify.Watcher
	done    chan struct{}
	wg      sync.WaitGroup
}

// NewSchemaWatcher loads path and starts watching it for changes.
func NewSchemaWatcher(path string, logger *zap.Logger) (*SchemaWatcher, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	schema, err := LoadSchema(path)
	if err != nil {
		return nil, err
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("create watcher: %w", err)
	}
	// Watch the directory: editors often replace the file instead of writing it.
	if err := watcher.Add(filepath.Dir(path)); err != nil {
		watcher.Close()
		return nil, fmt.Errorf("watch %s: %w", path, err)
	}

	sw := &SchemaWatcher{
		path:    path,
		logger:  logger,
		current: schema,
		watcher: watcher,
		done:    make(chan struct{}),
	}

	sw.wg.Add(1)
	go sw.watch()

	return sw, nil
}

// Current returns the most recently loaded schema.
func (sw *SchemaWatcher) Current() *Schema {
	sw.mu.RLock()
	defer sw.mu.RUnlock()
	return sw.current
}

// Close stops watching.
func (sw *SchemaWatcher) Close() error {
	close(sw.done)
	err := sw.watcher.Close()
	sw.wg.Wait()
	return err
}

func (sw *SchemaWatcher) watch() {
	defer sw.wg.Done()

	base := filepath.Base(sw.path)
	for {
		select {
		case <-sw.done:
			return
		case event, ok := <-sw.watcher.Events:
			if !ok {
				return
			}
			if filepath.Base(event.Name) != base {
				continue
			}
			if event.Op&(fsnotify.Write|fsnotify.Create) == 0 {
				continue
			}
			sw.reload()
		case err, ok := <-sw.watcher.Errors:
			if !ok {
				return
			}
			sw.logger.Warn("schema watcher error", zap.Error(err))
		}
	}
}

func (sw *SchemaWatcher) reload() {
	schema, err := LoadSchema(sw.path)
	if err != nil {
		sw.logger.Warn("schema reload failed, keeping previous schema",
			zap.String("path", sw.path), zap.Error(err))
		return
	}

	sw.mu.Lock()
	sw.current = schema
	sw.mu.Unlock()

	sw.logger.Info("schema reloaded", zap.String("path", sw.path), zap.Int("tables", len(schema.Tables)))
}
