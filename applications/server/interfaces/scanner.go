package interfaces

import (
	"context"

	"github.com/donmikel/batchupload/applications/server/domain"
)

// Scanner reports whether a stored file is free of viruses. An error means
// the verdict could not be obtained, not that the file is infected.
type Scanner interface {
	Scan(ctx context.Context, meta domain.FileMeta) (bool, error)
}
