// Package storage defines the key/blob backends behind the tiered cache.
package storage

import (
	"context"
	"errors"
)

// ErrCapacity is returned by Put when the backend has no room for the blob.
var ErrCapacity = errors.New("backend capacity exceeded")

// Backend stores opaque blobs under string keys. Writes to the same key are last-write-wins.
type Backend interface {
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Put(ctx context.Context, key string, blob []byte) error
	Delete(ctx context.Context, key string) error
	// Iterate calls fn for every stored key. Returning an error from fn stops iteration.
	Iterate(ctx context.Context, fn func(key string, blob []byte) error) error
	// Name identifies the backend in logs and stats.
	Name() string
	Close() error
}
