// Package source loads raw dataset bytes from a published spreadsheet URL or
// a local file, falling back to the last-known-good snapshot when the remote
// copy is unreachable.
package source

import (
	"context"
	"errors"
)

var (
	// ErrNoSource is returned when neither the remote URL nor the local file
	// can provide a dataset.
	ErrNoSource = errors.New("no source available")

	// ErrNotModified is returned by FileSource.Store when the snapshot
	// already holds identical bytes.
	ErrNotModified = errors.New("not modified")

	// ErrBodyTooLarge is returned when a remote dataset exceeds the download
	// limit. The body is never truncated.
	ErrBodyTooLarge = errors.New("body too large")
)

// Source yields the raw bytes of one dataset.
type Source interface {
	Fetch(ctx context.Context) ([]byte, error)
	Name() string
}

// Origin names where a loaded dataset came from.
type Origin string

const (
	OriginRemote   Origin = "remote"
	OriginCache    Origin = "cache"
	OriginSnapshot Origin = "snapshot"
)

// Result is a loaded dataset and its origin.
type Result struct {
	Body   []byte
	Origin Origin
}

// resultLoader is a Source that also reports where its bytes came from.
type resultLoader interface {
	Load(ctx context.Context) (Result, error)
}
