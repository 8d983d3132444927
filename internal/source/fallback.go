package source

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/couchcryptid/iran-tracker-data/internal/config"
)

// Fallback tries a primary source and falls back to a local file. Every
// successful primary fetch is written to the local file so it becomes the
// next last-known-good copy.
type Fallback struct {
	name    string
	primary Source
	local   *FileSource
	logger  *slog.Logger
}

// NewFallback creates a Fallback. primary may be nil, in which case only the
// local file is read.
func NewFallback(name string, primary Source, local *FileSource, logger *slog.Logger) *Fallback {
	return &Fallback{name: name, primary: primary, local: local, logger: logger}
}

// FromDataset builds the fallback chain for a configured dataset. A dataset
// without a URL is served from its local file only.
func FromDataset(d config.Dataset, timeout, ttl time.Duration, logger *slog.Logger) *Fallback {
	local := NewFileSource(d.Name, d.File)
	if !d.Remote() {
		logger.Info("no remote URL configured, using local file", "dataset", d.Name, "file", d.File)
		return NewFallback(d.Name, nil, local, logger)
	}
	return NewFallback(d.Name, NewHTTPSource(d.Name, d.URL, timeout, ttl, logger), local, logger)
}

func (f *Fallback) Name() string { return f.name }

// Local returns the snapshot file source.
func (f *Fallback) Local() *FileSource { return f.local }

// Primary returns the remote source, or nil.
func (f *Fallback) Primary() Source { return f.primary }

// Fetch implements Source.
func (f *Fallback) Fetch(ctx context.Context) ([]byte, error) {
	res, err := f.Load(ctx)
	if err != nil {
		return nil, err
	}
	return res.Body, nil
}

// Load returns the primary copy when it can be fetched, otherwise the local
// snapshot. It fails with ErrNoSource when neither is available.
func (f *Fallback) Load(ctx context.Context) (Result, error) {
	var primaryErr error
	if f.primary != nil {
		res, err := f.loadPrimary(ctx)
		if err == nil {
			if res.Origin == OriginRemote {
				f.snapshot(res.Body)
			}
			return res, nil
		}
		if ctx.Err() != nil {
			return Result{}, ctx.Err()
		}
		primaryErr = err
		f.logger.Warn("remote fetch failed, falling back to snapshot",
			"dataset", f.name, "file", f.local.Path(), "error", err)
	}

	body, err := f.local.Fetch(ctx)
	if err != nil {
		return Result{}, fmt.Errorf("%w for %s: %w", ErrNoSource, f.name, errors.Join(primaryErr, err))
	}
	return Result{Body: body, Origin: OriginSnapshot}, nil
}

func (f *Fallback) loadPrimary(ctx context.Context) (Result, error) {
	if l, ok := f.primary.(resultLoader); ok {
		return l.Load(ctx)
	}
	body, err := f.primary.Fetch(ctx)
	if err != nil {
		return Result{}, err
	}
	return Result{Body: body, Origin: OriginRemote}, nil
}

func (f *Fallback) snapshot(body []byte) {
	err := f.local.Store(body)
	switch {
	case err == nil:
		f.logger.Info("snapshot updated", "dataset", f.name, "file", f.local.Path(), "bytes", len(body))
	case errors.Is(err, ErrNotModified):
	default:
		f.logger.Warn("snapshot write failed", "dataset", f.name, "file", f.local.Path(), "error", err)
	}
}
