package server

import (
	"context"

	"github.com/donmikel/batchupload/applications/server/domain"
)

// FileUploadService accepts batches of files. The returned Pending is
// resolved once, after every item of the batch has been processed.
type FileUploadService interface {
	UploadFiles(ctx context.Context, items []domain.UploadItem) *domain.Pending
}
