package filesystem

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/go-kit/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/donmikel/batchupload/applications/server/domain"
)

func TestNewStorageCreatesRoot(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "nested", "uploads")

	s, err := NewStorage(dir, log.NewNopLogger())
	require.NoError(t, err)

	info, err := os.Stat(dir)
	require.NoError(t, err)
	assert.True(t, info.IsDir())
	assert.True(t, filepath.IsAbs(s.Root()))
}

func TestNewStorageNormalizesRoot(t *testing.T) {
	base := t.TempDir()

	s, err := NewStorage(filepath.Join(base, "a", "..", "uploads"), log.NewNopLogger())
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(base, "uploads"), s.Root())
}

func TestNewStorageRejectsFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "plain")
	require.NoError(t, os.WriteFile(path, []byte("x"), 0o644))

	_, err := NewStorage(path, log.NewNopLogger())
	assert.ErrorIs(t, err, domain.ErrStorageInit)

	_, err = NewStorage("", log.NewNopLogger())
	assert.ErrorIs(t, err, domain.ErrStorageInit)
}

func TestWriteFileReplacesExisting(t *testing.T) {
	ctx := context.Background()
	s, err := NewStorage(t.TempDir(), log.NewNopLogger())
	require.NoError(t, err)

	_, err = s.WriteFile(ctx, "1_id_a.txt", strings.NewReader("first version"), -1)
	require.NoError(t, err)
	n, err := s.WriteFile(ctx, "1_id_a.txt", strings.NewReader("second"), -1)
	require.NoError(t, err)
	assert.Equal(t, int64(6), n)

	rc, err := s.ReadFile(ctx, "1_id_a.txt")
	require.NoError(t, err)
	defer rc.Close()
	b, err := io.ReadAll(rc)
	require.NoError(t, err)
	assert.Equal(t, "second", string(b))

	entries, err := os.ReadDir(s.Root())
	require.NoError(t, err)
	assert.Len(t, entries, 1, "temp files must not be left behind")
}

func TestWriteFileRejectsPathKeys(t *testing.T) {
	ctx := context.Background()
	s, err := NewStorage(t.TempDir(), log.NewNopLogger())
	require.NoError(t, err)

	for _, key := range []string{"", "..", "../escape.txt", `a\b.txt`} {
		_, err = s.WriteFile(ctx, key, strings.NewReader("x"), 1)
		assert.Error(t, err, key)
	}
}

type failingReader struct{}

func (failingReader) Read([]byte) (int, error) { return 0, assert.AnError }

func TestWriteFileBodyError(t *testing.T) {
	ctx := context.Background()
	s, err := NewStorage(t.TempDir(), log.NewNopLogger())
	require.NoError(t, err)

	_, err = s.WriteFile(ctx, "k.txt", failingReader{}, 1)
	assert.ErrorIs(t, err, assert.AnError)

	_, err = os.Stat(filepath.Join(s.Root(), "k.txt"))
	assert.True(t, os.IsNotExist(err))
}
