// Package blob defines the durable key/value byte store the persistent store
// writes its snapshots to, along with the available backends.
package blob

import (
	"context"
	"errors"
)

// ErrQuotaExceeded is returned by Put when a write would push the backend
// past its capacity limit.
var ErrQuotaExceeded = errors.New("blob store quota exceeded")

// ErrInvalidKey is returned for keys a backend cannot store.
var ErrInvalidKey = errors.New("invalid blob key")

// Store is the interface every durable backend implements.
// It maps string keys to opaque byte values; each Put fully replaces the
// previous value of its key.
type Store interface {
	// Get returns the value stored under key. The boolean is false if the
	// key is absent.
	Get(ctx context.Context, key string) ([]byte, bool, error)

	// Put stores data under key, replacing any previous value whole.
	Put(ctx context.Context, key string, data []byte) error

	// Delete removes key. Deleting an absent key is not an error.
	Delete(ctx context.Context, key string) error

	// Keys returns every stored key in sorted order.
	Keys(ctx context.Context) ([]string, error)

	// Close releases backend resources.
	Close() error
}
