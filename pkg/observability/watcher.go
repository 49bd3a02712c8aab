package observability

import (
	"fmt"
	"path/filepath"

	"github.com/fsnotify/fsnotify"
)

// WatchConfigFile watches an observability config file and applies log level
// changes live, so a running service can be switched between debug and info
// without a restart. Only the log level is hot-reloaded; everything else in
// the file requires a re-Init.
//
// The returned stop function closes the watcher.
func WatchConfigFile(path string) (stop func(), err error) {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("create config watcher: %w", err)
	}

	// Watch the directory: editors typically replace the file on save, which
	// would drop a watch on the file itself.
	if err := watcher.Add(filepath.Dir(path)); err != nil {
		watcher.Close()
		return nil, fmt.Errorf("watch config dir: %w", err)
	}

	target := filepath.Clean(path)
	go func() {
		for {
			select {
			case event, ok := <-watcher.Events:
				if !ok {
					return
				}
				if filepath.Clean(event.Name) != target {
					continue
				}
				if event.Op&(fsnotify.Write|fsnotify.Create) == 0 {
					continue
				}
				reloadLogLevel(target)
			case _, ok := <-watcher.Errors:
				if !ok {
					return
				}
			}
		}
	}()

	return func() { watcher.Close() }, nil
}

func reloadLogLevel(path string) {
	cfg, err := LoadConfigFile(path)
	if err != nil {
		L().Warn("config reload failed", String("path", path), Err(err))
		return
	}
	SetLogLevel(cfg.LogLevel)
	L().Debug("log level reloaded", String("path", path), String("level", cfg.LogLevel))
}
