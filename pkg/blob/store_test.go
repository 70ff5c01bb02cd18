package blob

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestUploadKey(t *testing.T) {
	key := UploadKey("user-1", "Report.PDF")
	assert.True(t, strings.HasPrefix(key, "uploads/user-1/"))
	assert.True(t, strings.HasSuffix(key, ".pdf"))
	assert.NotEqual(t, key, UploadKey("user-1", "Report.PDF"))
}

func TestValidKey(t *testing.T) {
	for _, key := range []string{"", "../etc/passwd", "/abs/path", "a/../b", "a//b"} {
		assert.Error(t, validKey(key), key)
	}
	assert.NoError(t, validKey("uploads/u/f.txt"))
}

func TestDiskStore(t *testing.T) {
	s, err := NewDiskStore(t.TempDir())
	require.NoError(t, err)
	ctx := context.Background()
	key := "uploads/u1/file.txt"

	require.NoError(t, s.Put(ctx, key, []byte("hello"), "text/plain"))
	data, err := s.Get(ctx, key)
	require.NoError(t, err)
	assert.Equal(t, "hello", string(data))

	require.NoError(t, s.Delete(ctx, key))
	_, err = s.Get(ctx, key)
	assert.ErrorIs(t, err, ErrNotFound)
	assert.ErrorIs(t, s.Delete(ctx, key), ErrNotFound)
	assert.Error(t, s.Put(ctx, "../escape", []byte("x"), ""))
}

// fakeS3 is a path-style object store good enough for Put/Get/Delete.
type fakeS3 struct {
	mu      sync.Mutex
	objects map[string][]byte
	types   map[string]string
}

func (f *fakeS3) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()
	key := r.URL.Path
	switch r.Method {
	case http.MethodPut:
		body, _ := io.ReadAll(r.Body)
		f.objects[key] = body
		f.types[key] = r.Header.Get("Content-Type")
	case http.MethodGet:
		body, ok := f.objects[key]
		if !ok {
			w.Header().Set("Content-Type", "application/xml")
			w.WriteHeader(http.StatusNotFound)
			_, _ = w.Write([]byte(`<?xml version="1.0" encoding="UTF-8"?><Error><Code>NoSuchKey</Code><Message>missing</Message></Error>`))
			return
		}
		_, _ = w.Write(body)
	case http.MethodDelete:
		delete(f.objects, key)
		w.WriteHeader(http.StatusNoContent)
	}
}

func TestS3Store(t *testing.T) {
	fake := &fakeS3{objects: map[string][]byte{}, types: map[string]string{}}
	srv := httptest.NewServer(fake)
	defer srv.Close()

	s, err := NewS3Store(S3Config{
		Endpoint:  srv.URL,
		Bucket:    "files",
		AccessKey: "minio",
		SecretKey: "minio123",
		PathStyle: true,
	})
	require.NoError(t, err)
	ctx := context.Background()

	require.NoError(t, s.Put(ctx, "uploads/u1/a.txt", []byte("payload"), "text/plain"))
	assert.Equal(t, []byte("payload"), fake.objects["/files/uploads/u1/a.txt"])
	assert.Equal(t, "text/plain", fake.types["/files/uploads/u1/a.txt"])

	data, err := s.Get(ctx, "uploads/u1/a.txt")
	require.NoError(t, err)
	assert.Equal(t, "payload", string(data))

	require.NoError(t, s.Delete(ctx, "uploads/u1/a.txt"))
	_, err = s.Get(ctx, "uploads/u1/a.txt")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestNewS3StoreRequiresBucket(t *testing.T) {
	_, err := NewS3Store(S3Config{})
	assert.Error(t, err)
}
