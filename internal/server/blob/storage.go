// Package blob defines the durable blob storage backend used by the
// encrypted object store, addressed by opaque names chosen by the caller.
// Implementations must never serve blobs from a publicly reachable root.
package blob

import "context"

// Storage is the contract consumed by the encrypted object store.
//
// Delete is idempotent: deleting an absent blob is a success, so a logical
// file deletion never fails because the blob is already gone.
type Storage interface {
	Put(ctx context.Context, name string, data []byte) error
	Get(ctx context.Context, name string) ([]byte, error)
	Delete(ctx context.Context, name string) error
	// List returns the names of all stored blobs. Used by the orphan sweep.
	List(ctx context.Context) ([]string, error)
}
