package inmemory

import (
	"context"
	"io"
	"os"
	"strings"
	"testing"

	"github.com/go-kit/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func readAll(t *testing.T, rc io.ReadCloser) string {
	t.Helper()
	defer rc.Close()
	b, err := io.ReadAll(rc)
	require.NoError(t, err)
	return string(b)
}

func TestStorageWriteAndRead(t *testing.T) {
	ctx := context.Background()
	s := NewStorage("memory", DefaultCapacityInBytes, log.NewNopLogger())

	n, err := s.WriteFile(ctx, "k", strings.NewReader("hello"), -1)
	require.NoError(t, err)
	assert.Equal(t, int64(5), n)

	rc, err := s.ReadFile(ctx, "k")
	require.NoError(t, err)
	assert.Equal(t, "hello", readAll(t, rc))
	assert.Equal(t, "memory", s.GetStorageURL())
}

func TestStorageReplacesExistingKey(t *testing.T) {
	ctx := context.Background()
	s := NewStorage("memory", 6, log.NewNopLogger())

	_, err := s.WriteFile(ctx, "k", strings.NewReader("12345"), 5)
	require.NoError(t, err)

	// fits only because the old content is released
	_, err = s.WriteFile(ctx, "k", strings.NewReader("abcdef"), 6)
	require.NoError(t, err)

	rc, err := s.ReadFile(ctx, "k")
	require.NoError(t, err)
	assert.Equal(t, "abcdef", readAll(t, rc))
}

func TestStorageOutOfSpace(t *testing.T) {
	ctx := context.Background()
	s := NewStorage("memory", 4, log.NewNopLogger())

	_, err := s.WriteFile(ctx, "k", strings.NewReader("too long"), 8)
	assert.EqualError(t, err, "not enough free space")

	_, err = s.ReadFile(ctx, "k")
	assert.ErrorIs(t, err, os.ErrNotExist)
}
