// Package store adapts a remote durable backend into a blob store holding the
// full domain snapshot under one fixed key.
package store

import (
	"context"
	"errors"
)

// ErrNotFound is returned by Load when no snapshot has ever been stored.
var ErrNotFound = errors.New("store: snapshot not found")

// Store persists the domain snapshot as an opaque blob. Save replaces the blob
// wholesale; there are no partial or delta writes.
type Store interface {
	Load(ctx context.Context) ([]byte, error)
	Save(ctx context.Context, data []byte) error
}
