// Package catalog holds the presets offered to learners: the built-in ones
// plus any defined in a user TOML file, which can be reloaded while the
// server runs.
package catalog

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"

	"github.com/fsnotify/fsnotify"
	"github.com/pelletier/go-toml/v2"

	"github.com/njchilds90/descent"
)

// presetFile is the layout of a presets file: a list of [[preset]] tables.
type presetFile struct {
	Presets []descent.Preset `toml:"preset"`
}

// LoadFile reads and validates the presets in path.
func LoadFile(path string) ([]descent.Preset, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read presets %s: %w", path, err)
	}
	var f presetFile
	if err := toml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parse presets %s: %w", path, err)
	}
	for _, p := range f.Presets {
		if err := p.Validate(); err != nil {
			return nil, fmt.Errorf("presets %s: %w", path, err)
		}
	}
	return f.Presets, nil
}

// Catalog is safe for concurrent use.
type Catalog struct {
	path string
	base []descent.Preset

	mu      sync.RWMutex
	presets []descent.Preset
}

// New returns a catalog of base overlaid with the presets in path. An empty
// path means base only.
func New(path string, base []descent.Preset) (*Catalog, error) {
	c := &Catalog{path: path, base: append([]descent.Preset(nil), base...)}
	if err := c.Reload(); err != nil {
		return nil, err
	}
	return c, nil
}

// Path is the watched presets file, or "".
func (c *Catalog) Path() string { return c.path }

// Presets returns a snapshot of the current list.
func (c *Catalog) Presets() []descent.Preset {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return append([]descent.Preset(nil), c.presets...)
}

// Lookup finds a preset by name.
func (c *Catalog) Lookup(name string) (descent.Preset, error) {
	return descent.LookupPresetIn(c.Presets(), name)
}

// Reload re-reads the presets file. On error the previous list is kept.
func (c *Catalog) Reload() error {
	var extra []descent.Preset
	if c.path != "" {
		var err error
		extra, err = LoadFile(c.path)
		if err != nil {
			return err
		}
	}
	merged := descent.MergePresets(c.base, extra)
	c.mu.Lock()
	c.presets = merged
	c.mu.Unlock()
	return nil
}

// Watch reloads the catalog whenever the presets file changes, until ctx is
// done. The parent directory is watched so that editors which replace the
// file on save are handled. onReload, if non-nil, is called after every
// reload attempt with its error.
func (c *Catalog) Watch(ctx context.Context, onReload func(error)) error {
	if c.path == "" {
		return errors.New("catalog: no presets file to watch")
	}
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("catalog: create watcher: %w", err)
	}
	defer w.Close()

	target := filepath.Clean(c.path)
	if err := w.Add(filepath.Dir(target)); err != nil {
		return fmt.Errorf("catalog: watch %s: %w", target, err)
	}

	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-w.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(ev.Name) != target || !ev.Has(fsnotify.Write|fsnotify.Create) {
				continue
			}
			err := c.Reload()
			if err != nil {
				slog.Warn("presets reload failed; keeping previous list", "path", target, "error", err)
			} else {
				slog.Info("presets reloaded", "path", target, "count", len(c.Presets()))
			}
			if onReload != nil {
				onReload(err)
			}
		case err, ok := <-w.Errors:
			if !ok {
				return nil
			}
			slog.Warn("presets watcher error", "error", err)
		}
	}
}
