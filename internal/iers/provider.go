package iers

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/talgya/metaverse/internal/timescale"
)

const reloadDebounce = 200 * time.Millisecond

// Provider serves the current IERS data set to converters and transformers.
// It is safe for concurrent use; Reload swaps the whole set atomically.
type Provider struct {
	path string

	mu       sync.RWMutex
	data     Data
	loadedAt time.Time
	reloads  int
}

// NewProvider loads path, or the built-in data when path is empty.
func NewProvider(path string) (*Provider, error) {
	p := &Provider{path: path, data: Defaults(), loadedAt: time.Now()}
	if path == "" {
		return p, nil
	}
	if err := p.Reload(); err != nil {
		return nil, err
	}
	return p, nil
}

// Reloads returns how many times file data has been installed.
func (p *Provider) Reloads() int {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.reloads
}

// Path returns the watched file, empty for built-in data.
func (p *Provider) Path() string {
	return p.path
}

// Reload re-reads the file. On failure the previous data stays in force.
func (p *Provider) Reload() error {
	if p.path == "" {
		return nil
	}
	data, err := LoadFile(p.path)
	if err != nil {
		return err
	}

	p.mu.Lock()
	p.data = data
	p.loadedAt = time.Now()
	p.reloads++
	p.mu.Unlock()

	first, last := data.EOP.Span()
	slog.Info("iers data loaded",
		"path", p.path,
		"source", data.Source,
		"leap_seconds", data.Leaps.Latest().Offset,
		"eop_from", first.Format(time.DateOnly),
		"eop_to", last.Format(time.DateOnly),
	)
	return nil
}

// Data returns the data set currently in force.
func (p *Provider) Data() Data {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.data
}

// LoadedAt returns when the current data set was installed.
func (p *Provider) LoadedAt() time.Time {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.loadedAt
}

// LeapSeconds implements timescale.LeapSource.
func (p *Provider) LeapSeconds(utc time.Time) int {
	return p.Data().Leaps.LeapSeconds(utc)
}

// DUT1 implements timescale.EOPSource.
func (p *Provider) DUT1(utc time.Time) float64 {
	return p.Data().EOP.At(utc).DUT1
}

// PolarMotion returns xp, yp in arcseconds.
func (p *Provider) PolarMotion(utc time.Time) (float64, float64) {
	params := p.Data().EOP.At(utc)
	return params.XP, params.YP
}

// Converter returns a time-scale converter reading from this provider.
func (p *Provider) Converter() *timescale.Converter {
	return timescale.NewConverter(p, p)
}

// Watch reloads the file whenever it changes until ctx is cancelled.
// The parent directory is watched so editors that replace the file are seen.
func (p *Provider) Watch(ctx context.Context) error {
	if p.path == "" {
		return nil
	}
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("iers watcher: %w", err)
	}
	if err := fw.Add(filepath.Dir(p.path)); err != nil {
		fw.Close()
		return fmt.Errorf("iers watch %s: %w", p.path, err)
	}

	go p.watchLoop(ctx, fw)
	return nil
}

func (p *Provider) watchLoop(ctx context.Context, fw *fsnotify.Watcher) {
	defer fw.Close()

	target := filepath.Clean(p.path)
	var pending <-chan time.Time

	for {
		select {
		case <-ctx.Done():
			return

		case event, ok := <-fw.Events:
			if !ok {
				return
			}
			if filepath.Clean(event.Name) != target {
				continue
			}
			if event.Has(fsnotify.Write) || event.Has(fsnotify.Create) || event.Has(fsnotify.Rename) {
				pending = time.After(reloadDebounce)
			}

		case <-pending:
			pending = nil
			if err := p.Reload(); err != nil {
				slog.Warn("iers reload failed, keeping previous data", "path", p.path, "error", err)
			}

		case err, ok := <-fw.Errors:
			if !ok {
				return
			}
			slog.Debug("iers watcher error", "error", err)
		}
	}
}
