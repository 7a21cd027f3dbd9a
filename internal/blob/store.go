// -------------------------------------------------------------------------------
// Blob Store - Content Store Interface
//
// Project: Streamlo
//
// Interface for binary blob storage. Blobs are keyed by opaque generated ids and
// live in named buckets (track audio, images), with no transactional tie to the
// entity metadata that references them. Keeping blob ids consistent with their
// owning documents is the saga layer's job, not the store's.
// -------------------------------------------------------------------------------

package blob

import (
	"context"
	"errors"
	"io"

	"github.com/google/uuid"
)

// -------------------------------------------------------------------------
// ERRORS
// -------------------------------------------------------------------------

var (
	// ErrNotFound is returned when no blob exists under the requested id.
	ErrNotFound = errors.New("blob not found")
)

// -------------------------------------------------------------------------
// INTERFACE
// -------------------------------------------------------------------------

// Object holds an open read stream for a stored blob. The caller owns Body and
// must close it on every exit path.
type Object struct {
	Body        io.ReadCloser
	Size        int64
	ContentType string
}

// Store defines blob storage operations. Implementations must treat each call
// as independent; there is no cross-call transaction.
type Store interface {
	// Put writes body under the given id, finalizing the blob on return.
	Put(ctx context.Context, bucket, id string, body io.Reader, size int64, contentType string) error

	// Open returns a read stream for the blob, or ErrNotFound.
	Open(ctx context.Context, bucket, id string) (*Object, error)

	// Delete removes the blob. Deleting a missing blob is not an error.
	Delete(ctx context.Context, bucket, id string) error
}

// NewID generates an opaque blob identifier.
func NewID() string {
	return uuid.NewString()
}
