package filesystem

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/go-kit/log"
	"github.com/go-kit/log/level"

	"github.com/donmikel/batchupload/applications/server/domain"
)

const tmpPattern = ".upload-*"

// Storage writes files into a single root directory.
type Storage struct {
	root string
	log  log.Logger
}

// NewStorage resolves dir to an absolute path and creates it when missing.
// Errors wrap domain.ErrStorageInit.
func NewStorage(dir string, logger log.Logger) (*Storage, error) {
	if dir == "" {
		return nil, fmt.Errorf("%w: empty upload dir", domain.ErrStorageInit)
	}

	root, err := filepath.Abs(dir)
	if err != nil {
		return nil, fmt.Errorf("%w: resolve %s: %v", domain.ErrStorageInit, dir, err)
	}
	root = filepath.Clean(root)

	info, err := os.Stat(root)
	switch {
	case os.IsNotExist(err):
		if err = os.MkdirAll(root, 0o755); err != nil {
			return nil, fmt.Errorf("%w: create %s: %v", domain.ErrStorageInit, root, err)
		}
		level.Info(logger).Log("msg", "created upload directory", "path", root)
	case err != nil:
		return nil, fmt.Errorf("%w: stat %s: %v", domain.ErrStorageInit, root, err)
	case !info.IsDir():
		return nil, fmt.Errorf("%w: %s is not a directory", domain.ErrStorageInit, root)
	}

	return &Storage{root: root, log: logger}, nil
}

func (s *Storage) Root() string {
	return s.root
}

func (s *Storage) GetStorageURL() string {
	return "file://" + filepath.ToSlash(s.root)
}

// WriteFile streams body into a temp file and renames it over key, so
// readers never observe a partial file and an existing one is replaced.
func (s *Storage) WriteFile(ctx context.Context, key string, body io.Reader, _ int64) (int64, error) {
	path, err := s.resolve(key)
	if err != nil {
		return 0, err
	}

	tmp, err := os.CreateTemp(s.root, tmpPattern)
	if err != nil {
		return 0, fmt.Errorf("can't create temp file: %w", err)
	}
	defer os.Remove(tmp.Name())

	n, err := io.Copy(tmp, body)
	if err != nil {
		tmp.Close()
		return 0, fmt.Errorf("can't write %s: %w", key, err)
	}
	if err = tmp.Close(); err != nil {
		return 0, fmt.Errorf("can't close temp file: %w", err)
	}
	if err = os.Rename(tmp.Name(), path); err != nil {
		return 0, fmt.Errorf("can't move %s into place: %w", key, err)
	}

	level.Debug(s.log).Log("msg", "file saved",
		"path", path,
		"size", humanize.Bytes(uint64(n)),
	)

	return n, nil
}

func (s *Storage) ReadFile(ctx context.Context, key string) (io.ReadCloser, error) {
	path, err := s.resolve(key)
	if err != nil {
		return nil, err
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("can't open %s: %w", key, err)
	}

	return f, nil
}

func (s *Storage) resolve(key string) (string, error) {
	if key == "" || key == "." || key == ".." || strings.ContainsAny(key, `/\`) {
		return "", fmt.Errorf("invalid storage key %q", key)
	}

	return filepath.Join(s.root, key), nil
}
