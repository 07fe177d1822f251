package s3

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/go-kit/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/donmikel/batchupload/applications/server/domain"
)

type fakeS3 struct {
	mu       sync.Mutex
	requests []string
}

func (f *fakeS3) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	f.requests = append(f.requests, r.Method+" "+r.URL.Path)
	f.mu.Unlock()

	_, _ = io.Copy(io.Discard, r.Body)

	switch r.Method {
	case http.MethodHead:
		w.WriteHeader(http.StatusOK)
	case http.MethodPut:
		w.Header().Set("ETag", `"etag"`)
		w.WriteHeader(http.StatusOK)
	case http.MethodGet:
		w.Header().Set("Content-Length", "5")
		_, _ = w.Write([]byte("hello"))
	default:
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}

func (f *fakeS3) seen() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.requests...)
}

func TestStorageWriteAndRead(t *testing.T) {
	fake := &fakeS3{}
	srv := httptest.NewServer(fake)
	defer srv.Close()

	ctx := context.Background()
	s, err := NewStorage(ctx, srv.URL, "key", "secret", "uploads", log.NewNopLogger(), ConnAttempts(1))
	require.NoError(t, err)
	assert.Equal(t, "s3://uploads", s.GetStorageURL())

	n, err := s.WriteFile(ctx, "1_id_a.txt", strings.NewReader("hello"), -1)
	require.NoError(t, err)
	assert.Equal(t, int64(5), n)

	rc, err := s.ReadFile(ctx, "1_id_a.txt")
	require.NoError(t, err)
	defer rc.Close()
	b, err := io.ReadAll(rc)
	require.NoError(t, err)
	assert.Equal(t, "hello", string(b))

	assert.Contains(t, fake.seen(), "HEAD /uploads")
	assert.Contains(t, fake.seen(), "PUT /uploads/1_id_a.txt")
}

func TestNewStorageUnreachable(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
	}))
	defer srv.Close()

	_, err := NewStorage(context.Background(), srv.URL, "key", "secret", "uploads", log.NewNopLogger(),
		ConnAttempts(2), ConnTimeout(time.Millisecond), Region("garage"), UsePathStyle(true))
	assert.ErrorIs(t, err, domain.ErrStorageInit)
}
