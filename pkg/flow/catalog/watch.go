package catalog

import (
	"fmt"
	"log/slog"
	"path/filepath"

	"github.com/fsnotify/fsnotify"

	"github.com/SethBurkart123/covalt/pkg/flow"
)

// Watch hot-reloads the node catalog when definition files in dir change.
// Each reload builds a fresh registry (builtins plus the directory's
// definitions) and hands it to onChange; a reload that fails to parse is
// logged and the previous registry stays in effect. Call the returned
// stop function to clean up.
func Watch(dir string, logger *slog.Logger, onChange func(*flow.DefinitionRegistry)) (stop func(), err error) {
	if logger == nil {
		logger = slog.Default()
	}
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("catalog watcher: %w", err)
	}
	if err := w.Add(dir); err != nil {
		w.Close()
		return nil, fmt.Errorf("catalog watcher: %w", err)
	}

	done := make(chan struct{})
	go func() {
		defer close(done)
		for {
			select {
			case ev, ok := <-w.Events:
				if !ok {
					return
				}
				if !isCatalogFile(ev.Name) {
					continue
				}
				if !ev.Has(fsnotify.Write) && !ev.Has(fsnotify.Create) && !ev.Has(fsnotify.Remove) {
					continue
				}
				reg, err := rebuild(dir)
				if err != nil {
					logger.Error("catalog reload failed", "dir", dir, "error", err)
					continue
				}
				logger.Info("catalog reloaded", "dir", dir, "definitions", len(reg.List()))
				onChange(reg)
			case err, ok := <-w.Errors:
				if !ok {
					return
				}
				logger.Error("catalog watcher error", "error", err)
			}
		}
	}()

	return func() {
		w.Close()
		<-done
	}, nil
}

// rebuild composes the builtin palette with the directory's definitions.
func rebuild(dir string) (*flow.DefinitionRegistry, error) {
	reg, err := Builtin()
	if err != nil {
		return nil, err
	}
	if err := LoadDir(reg, dir); err != nil {
		return nil, err
	}
	return reg, nil
}

func isCatalogFile(name string) bool {
	switch filepath.Ext(name) {
	case ".yaml", ".yml":
		return true
	}
	return false
}
