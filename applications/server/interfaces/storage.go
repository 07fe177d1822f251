package interfaces

import (
	"context"
	"io"
)

// Storage persists file bodies under unique keys. WriteFile replaces
// any content already stored under the key and returns the written size.
type Storage interface {
	WriteFile(ctx context.Context, key string, body io.Reader, size int64) (int64, error)
	ReadFile(ctx context.Context, key string) (io.ReadCloser, error)
	GetStorageURL() string
}
