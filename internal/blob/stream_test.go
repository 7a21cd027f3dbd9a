// -------------------------------------------------------------------------------
// Blob Store - Streaming Adapter Tests
//
// Project: Streamlo
// -------------------------------------------------------------------------------

package blob

import (
	"context"
	"errors"
	"io"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
)

// -------------------------------------------------------------------------
// MOCK STORE
// -------------------------------------------------------------------------

type storedBlob struct {
	data        []byte
	contentType string
}

// mockStore is an in-memory Store recording the operations performed on it.
type mockStore struct {
	mu      sync.Mutex
	blobs   map[string]storedBlob // key: bucket/id
	putErr  error
	openErr error
	puts    []string
	opens   []string
	deletes []string
}

var _ Store = (*mockStore)(nil)

func newMockStore() *mockStore {
	return &mockStore{blobs: make(map[string]storedBlob)}
}

func (m *mockStore) Put(_ context.Context, bucket, id string, body io.Reader, _ int64, contentType string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.putErr != nil {
		return m.putErr
	}

	data, err := io.ReadAll(body)
	if err != nil {
		return err
	}
	m.blobs[bucket+"/"+id] = storedBlob{data: data, contentType: contentType}
	m.puts = append(m.puts, bucket+"/"+id)
	return nil
}

func (m *mockStore) Open(_ context.Context, bucket, id string) (*Object, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.opens = append(m.opens, bucket+"/"+id)
	if m.openErr != nil {
		return nil, m.openErr
	}
	if id == "" {
		// S3 rejects an empty key outright rather than reporting a miss.
		return nil, errors.New("object key must not be empty")
	}

	b, ok := m.blobs[bucket+"/"+id]
	if !ok {
		return nil, ErrNotFound
	}
	return &Object{
		Body:        io.NopCloser(strings.NewReader(string(b.data))),
		Size:        int64(len(b.data)),
		ContentType: b.contentType,
	}, nil
}

func (m *mockStore) Delete(_ context.Context, bucket, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	delete(m.blobs, bucket+"/"+id)
	m.deletes = append(m.deletes, bucket+"/"+id)
	return nil
}

// -------------------------------------------------------------------------
// WRITE PATH TESTS
// -------------------------------------------------------------------------

func TestWriteBufferStoresBlob(t *testing.T) {
	store := newMockStore()
	data := []byte("audio-bytes")

	id, err := WriteBuffer(context.Background(), store, "tracks", "audio/mpeg", data)
	if err != nil {
		t.Fatalf("WriteBuffer: %v", err)
	}
	if id == "" {
		t.Fatal("expected non-empty blob id")
	}

	stored, ok := store.blobs["tracks/"+id]
	if !ok {
		t.Fatalf("blob %q not stored", id)
	}
	if string(stored.data) != "audio-bytes" {
		t.Errorf("stored data = %q, want %q", stored.data, "audio-bytes")
	}
	if stored.contentType != "audio/mpeg" {
		t.Errorf("content type = %q, want audio/mpeg", stored.contentType)
	}
}

func TestWriteBufferUniqueIDs(t *testing.T) {
	store := newMockStore()

	id1, err := WriteBuffer(context.Background(), store, "tracks", "audio/mpeg", []byte("a"))
	if err != nil {
		t.Fatalf("first WriteBuffer: %v", err)
	}
	id2, err := WriteBuffer(context.Background(), store, "tracks", "audio/mpeg", []byte("b"))
	if err != nil {
		t.Fatalf("second WriteBuffer: %v", err)
	}
	if id1 == id2 {
		t.Errorf("expected distinct ids, both were %q", id1)
	}
}

func TestWriteBufferPropagatesError(t *testing.T) {
	store := newMockStore()
	store.putErr = errors.New("bucket unavailable")

	if _, err := WriteBuffer(context.Background(), store, "tracks", "audio/mpeg", []byte("x")); err == nil {
		t.Fatal("expected error from failed put")
	}
}

// -------------------------------------------------------------------------
// READ PATH TESTS
// -------------------------------------------------------------------------

func TestStreamWritesHeadersAndBody(t *testing.T) {
	store := newMockStore()
	id, err := WriteBuffer(context.Background(), store, "tracks", "audio/mpeg", []byte("chunk-one"))
	if err != nil {
		t.Fatalf("WriteBuffer: %v", err)
	}

	rec := httptest.NewRecorder()
	if err := (StreamOptions{}).Stream(context.Background(), rec, store, "tracks", id); err != nil {
		t.Fatalf("Stream: %v", err)
	}

	if got := rec.Header().Get("Content-Type"); got != "audio/mpeg" {
		t.Errorf("Content-Type = %q, want audio/mpeg", got)
	}
	if got := rec.Header().Get("Content-Length"); got != "9" {
		t.Errorf("Content-Length = %q, want 9", got)
	}
	if rec.Body.String() != "chunk-one" {
		t.Errorf("body = %q, want chunk-one", rec.Body.String())
	}
}

func TestStreamContentTypeOverride(t *testing.T) {
	store := newMockStore()
	id, err := WriteBuffer(context.Background(), store, "images", "", []byte("png-bytes"))
	if err != nil {
		t.Fatalf("WriteBuffer: %v", err)
	}

	rec := httptest.NewRecorder()
	opts := StreamOptions{ContentType: "image/png"}
	if err := opts.Stream(context.Background(), rec, store, "images", id); err != nil {
		t.Fatalf("Stream: %v", err)
	}

	if got := rec.Header().Get("Content-Type"); got != "image/png" {
		t.Errorf("Content-Type = %q, want image/png", got)
	}
}

func TestStreamMissingRequiredBlob(t *testing.T) {
	store := newMockStore()

	rec := httptest.NewRecorder()
	err := (StreamOptions{}).Stream(context.Background(), rec, store, "tracks", "no-such-id")
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("err = %v, want ErrNotFound", err)
	}
	if rec.Body.Len() != 0 {
		t.Errorf("expected no body written on miss, got %q", rec.Body.String())
	}
}

func TestStreamFallbackForMissingBlob(t *testing.T) {
	store := newMockStore()

	opts := StreamOptions{
		Fallback: func() (io.ReadCloser, int64, string, error) {
			return io.NopCloser(strings.NewReader("default-image")), 13, "image/png", nil
		},
	}

	rec := httptest.NewRecorder()
	if err := opts.Stream(context.Background(), rec, store, "images", "no-such-id"); err != nil {
		t.Fatalf("Stream: %v", err)
	}

	if rec.Body.String() != "default-image" {
		t.Errorf("body = %q, want default-image", rec.Body.String())
	}
	if got := rec.Header().Get("Content-Type"); got != "image/png" {
		t.Errorf("Content-Type = %q, want image/png", got)
	}
}

func TestStreamEmptyIDUsesFallback(t *testing.T) {
	store := newMockStore()

	opts := StreamOptions{
		Fallback: func() (io.ReadCloser, int64, string, error) {
			return io.NopCloser(strings.NewReader("default-image")), 13, "image/png", nil
		},
	}

	rec := httptest.NewRecorder()
	if err := opts.Stream(context.Background(), rec, store, "images", ""); err != nil {
		t.Fatalf("Stream: %v", err)
	}

	if rec.Body.String() != "default-image" {
		t.Errorf("body = %q, want default-image", rec.Body.String())
	}
	if len(store.opens) != 0 {
		t.Errorf("store consulted for empty id: %v", store.opens)
	}
}

func TestStreamEmptyIDRequiredBlob(t *testing.T) {
	store := newMockStore()

	rec := httptest.NewRecorder()
	err := (StreamOptions{}).Stream(context.Background(), rec, store, "tracks", "")
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("err = %v, want ErrNotFound", err)
	}
	if len(store.opens) != 0 {
		t.Errorf("store consulted for empty id: %v", store.opens)
	}
}

func TestStreamFallbackNotUsedForStoreError(t *testing.T) {
	store := newMockStore()
	store.openErr = errors.New("connection reset")

	opts := StreamOptions{
		Fallback: func() (io.ReadCloser, int64, string, error) {
			t.Fatal("fallback must not run for non-miss errors")
			return nil, 0, "", nil
		},
	}

	rec := httptest.NewRecorder()
	if err := opts.Stream(context.Background(), rec, store, "images", "id"); err == nil {
		t.Fatal("expected store error to propagate")
	}
}
