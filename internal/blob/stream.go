// -------------------------------------------------------------------------------
// Blob Store - Streaming Adapter
//
// Project: Streamlo
//
// Bridges HTTP uploads and downloads to the blob store. The write path buffers
// multipart form content and finalizes the blob before any metadata references
// it. The read path copies blob chunks straight to the response writer, with
// response headers committed before the first chunk, so large audio never has
// to fit in memory.
// -------------------------------------------------------------------------------

package blob

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"strconv"

	"github.com/dunguyenn/StreamloWebservice/internal/telemetry"
)

// -------------------------------------------------------------------------
// WRITE PATH
// -------------------------------------------------------------------------

// WriteBuffer stores a fully buffered upload under a freshly generated id and
// returns that id. The blob is finalized when this returns, so a metadata
// write that follows can safely reference it.
func WriteBuffer(ctx context.Context, store Store, bucket, contentType string, data []byte) (string, error) {
	id := NewID()

	if err := store.Put(ctx, bucket, id, bytes.NewReader(data), int64(len(data)), contentType); err != nil {
		return "", fmt.Errorf("write blob: %w", err)
	}

	telemetry.BlobBytesStreamed.WithLabelValues(bucket, "in").Add(float64(len(data)))
	return id, nil
}

// -------------------------------------------------------------------------
// READ PATH
// -------------------------------------------------------------------------

// FallbackFunc supplies a substitute stream when the requested blob does not
// exist. Used for optional blobs that have a default asset.
type FallbackFunc func() (body io.ReadCloser, size int64, contentType string, err error)

// FileFallback returns a FallbackFunc that serves a local file.
func FileFallback(path, contentType string) FallbackFunc {
	return func() (io.ReadCloser, int64, string, error) {
		f, err := os.Open(path)
		if err != nil {
			return nil, 0, "", fmt.Errorf("open fallback asset: %w", err)
		}
		info, err := f.Stat()
		if err != nil {
			f.Close()
			return nil, 0, "", fmt.Errorf("stat fallback asset: %w", err)
		}
		return f, info.Size(), contentType, nil
	}
}

// StreamOptions controls the read path.
type StreamOptions struct {
	// ContentType overrides the stored content type when non-empty.
	ContentType string

	// Fallback is consulted when the blob is missing. Nil means the blob is
	// required and a miss surfaces as ErrNotFound.
	Fallback FallbackFunc
}

// Stream copies a blob to an HTTP response. Content-Type and Content-Length
// are committed before the first chunk is written. Once streaming has begun a
// transfer error can only be reported to the caller, not to the client.
func (o StreamOptions) Stream(ctx context.Context, w http.ResponseWriter, store Store, bucket, id string) error {
	body, size, contentType, err := o.open(ctx, store, bucket, id)
	if err != nil {
		return err
	}
	defer body.Close()

	if o.ContentType != "" {
		contentType = o.ContentType
	}
	if contentType == "" {
		contentType = "application/octet-stream"
	}

	// --- Commit headers before the first chunk ---
	w.Header().Set("Content-Type", contentType)
	if size > 0 {
		w.Header().Set("Content-Length", strconv.FormatInt(size, 10))
	}
	w.WriteHeader(http.StatusOK)

	written, err := io.Copy(w, body)
	telemetry.BlobBytesStreamed.WithLabelValues(bucket, "out").Add(float64(written))

	if err != nil {
		return fmt.Errorf("stream blob %s: %w", id, err)
	}
	return nil
}

// open resolves the blob stream, falling back to the default asset for a miss
// when one is configured. An empty id means the optional blob was never
// uploaded; that is a miss by definition and never reaches the store, which
// would reject the empty key with a non-miss error.
func (o StreamOptions) open(ctx context.Context, store Store, bucket, id string) (io.ReadCloser, int64, string, error) {
	if id == "" {
		if o.Fallback != nil {
			return o.Fallback()
		}
		return nil, 0, "", ErrNotFound
	}

	obj, err := store.Open(ctx, bucket, id)
	if err == nil {
		return obj.Body, obj.Size, obj.ContentType, nil
	}

	if errors.Is(err, ErrNotFound) && o.Fallback != nil {
		return o.Fallback()
	}
	return nil, 0, "", err
}
