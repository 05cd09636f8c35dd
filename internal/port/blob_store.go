package port

import "context"

// BlobStore is durable session-local storage for opaque blobs under fixed
// keys. The cart service binds to one explicitly at construction so tests can
// substitute an in-memory fake.
type BlobStore interface {
	// Load returns the blob under key; found=false when the key is absent.
	Load(ctx context.Context, key string) (data []byte, found bool, err error)

	// Store replaces the blob under key.
	Store(ctx context.Context, key string, data []byte) error
}
