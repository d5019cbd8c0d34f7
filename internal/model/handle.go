package model

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"motorisk/internal/metadata"
)

// Snapshot is one loaded model together with its metadata. It is never modified
// after it is published by a Handle.
type Snapshot struct {
	Predictor Predictor
	// Metadata may be nil, in which case defaults apply.
	Metadata *metadata.Metadata
	// Source is a human readable origin, such as the bundle path or the service URL.
	Source   string
	LoadedAt time.Time
}

// Loader builds a fresh Snapshot.
type Loader func(ctx context.Context) (*Snapshot, error)

// Handle owns the model used by the service. Readers take the current snapshot
// without locking; Reload swaps it explicitly. A failed reload leaves the previous
// snapshot in place.
type Handle struct {
	loader   Loader
	current  atomic.Pointer[Snapshot]
	reloadMu sync.Mutex // serializes reloads
}

// Current returns the snapshot in use. Callers should keep the returned value
// for the duration of one request.
func (h *Handle) Current() *Snapshot {
	return h.current.Load()
}

// Reload runs the loader and publishes its result.
func (h *Handle) Reload(ctx context.Context) (*Snapshot, error) {
	h.reloadMu.Lock()
	defer h.reloadMu.Unlock()

	snapshot, err := h.loader(ctx)
	if err != nil {
		slog.Warn("Model reload failed, keeping previous model", "error", err)
		return h.current.Load(), err
	}
	if snapshot == nil || snapshot.Predictor == nil {
		return h.current.Load(), errors.New("model loader returned no predictor")
	}

	h.current.Store(snapshot)
	slog.Info("Model loaded", "source", snapshot.Source)
	return snapshot, nil
}

// NewHandle creates a handle and performs the initial load. An initial load
// failure is returned as an error since there is no previous model to fall back to.
func NewHandle(ctx context.Context, loader Loader) (*Handle, error) {
	h := &Handle{loader: loader}
	if _, err := h.Reload(ctx); err != nil {
		return nil, err
	}
	return h, nil
}

// NewStaticHandle wraps an already built predictor. Reload republishes the same snapshot.
func NewStaticHandle(predictor Predictor, meta *metadata.Metadata, source string) *Handle {
	snapshot := &Snapshot{Predictor: predictor, Metadata: meta, Source: source, LoadedAt: time.Now()}
	h := &Handle{loader: func(context.Context) (*Snapshot, error) { return snapshot, nil }}
	h.current.Store(snapshot)
	return h
}

// BundleLoader loads a LinearModel bundle file. When metadataPath is set, the metadata
// file replaces whatever the bundle carries.
func BundleLoader(bundlePath, metadataPath string) Loader {
	return func(ctx context.Context) (*Snapshot, error) {
		lm, meta, err := LoadBundle(bundlePath)
		if err != nil {
			return nil, err
		}
		if metadataPath != "" {
			if meta, err = metadata.LoadFile(metadataPath); err != nil {
				return nil, err
			}
		}
		return &Snapshot{Predictor: lm, Metadata: meta, Source: bundlePath, LoadedAt: time.Now()}, nil
	}
}

// RemoteLoader points at an inference service. Metadata comes from metadataPath only;
// an empty path means defaults.
func RemoteLoader(url string, timeout time.Duration, metadataPath string) Loader {
	return func(ctx context.Context) (*Snapshot, error) {
		var meta *metadata.Metadata
		if metadataPath != "" {
			var err error
			if meta, err = metadata.LoadFile(metadataPath); err != nil {
				return nil, fmt.Errorf("remote model metadata: %w", err)
			}
		}
		return &Snapshot{Predictor: NewRemoteModel(url, timeout), Metadata: meta, Source: url, LoadedAt: time.Now()}, nil
	}
}
