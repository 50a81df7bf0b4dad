package configuration

import (
	"context"
	"path/filepath"

	"github.com/fsnotify/fsnotify"
	"github.com/pkg/errors"

	"github.com/catalogmf/catalog/internal/model"
	"github.com/catalogmf/catalog/internal/service/log"
)

// WatchHostConfig monitors the host configuration file and calls onChange
// with the new configuration every time the file is written. A reload that
// fails is logged and the previous configuration stays active. It blocks
// until the context is done.
func WatchHostConfig(ctx context.Context, path string, onChange func(*model.HostConfig), logger log.Logger) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return errors.Wrap(err, "could not create watcher")
	}
	defer watcher.Close()

	// Watch the directory so atomic saves (rename over the file) are seen.
	if err := watcher.Add(filepath.Dir(path)); err != nil {
		return errors.Wrapf(err, "could not watch %q", path)
	}
	target := filepath.Clean(path)

	logger.Infof("watching host config %s", path)
	for {
		select {
		case <-ctx.Done():
			return nil

		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(event.Name) != target {
				continue
			}
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) {
				continue
			}

			cfg, err := LoadHostConfig(path, logger)
			if err != nil {
				logger.Errorf("host config reload failed, keeping previous config: %s", err)
				continue
			}
			logger.Infof("host config reloaded")
			onChange(cfg)

		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			logger.Errorf("host config watcher error: %s", err)
		}
	}
}
