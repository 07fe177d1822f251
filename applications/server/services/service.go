package services

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"
	"strings"
	"time"

	"github.com/go-kit/log"
	"github.com/go-kit/log/level"

	"github.com/donmikel/batchupload/applications/server"
	"github.com/donmikel/batchupload/applications/server/domain"
	"github.com/donmikel/batchupload/applications/server/interfaces"
	"github.com/donmikel/batchupload/applications/server/keys"
	"github.com/donmikel/batchupload/applications/server/metrics"
)

type service struct {
	coordinator *coordinator
	observer    metrics.Observer
	logger      log.Logger
}

func NewService(
	storage interfaces.Storage,
	scanner interfaces.Scanner,
	pool Submitter,
	observer metrics.Observer,
	logger log.Logger,
) server.FileUploadService {
	return &service{
		coordinator: &coordinator{
			pool: pool,
			processor: &processor{
				keys:     keys.NewGenerator(),
				storage:  storage,
				scanner:  scanner,
				observer: observer,
				logger:   logger,
			},
			logger: logger,
		},
		observer: observer,
		logger:   logger,
	}
}

// UploadFiles validates the batch and processes it in the background.
// A rejected batch is resolved immediately without touching storage.
// The batch is not cancelled together with ctx.
func (s *service) UploadFiles(ctx context.Context, items []domain.UploadItem) *domain.Pending {
	if err := validate(items); err != nil {
		level.Warn(s.logger).Log("msg", "batch rejected", "err", err)
		s.observer.RecordRejected(err)
		return domain.Resolved(domain.FailedOutcome(rejectionMessage(err)))
	}

	pending := domain.NewPending()
	batchCtx := context.WithoutCancel(ctx)

	go func() {
		start := time.Now()
		outcome := s.coordinate(batchCtx, items)
		s.observer.RecordBatch(time.Since(start), len(items), outcome.Success)

		if outcome.Success {
			level.Info(s.logger).Log("msg", "files uploaded", "files", len(outcome.UploadedFiles), "took", time.Since(start))
		}

		pending.Resolve(outcome)
	}()

	return pending
}

func (s *service) coordinate(ctx context.Context, items []domain.UploadItem) (outcome domain.BatchOutcome) {
	defer func() {
		if rec := recover(); rec != nil {
			level.Error(s.logger).Log("msg", "batch coordination panicked",
				"err", fmt.Sprintf("panic: %v", rec),
				"stack", string(debug.Stack()),
			)
			outcome = domain.FailedOutcome(fmt.Sprintf("%s: %v", domain.MessageUploadFailed, rec))
		}
	}()

	outcome, err := s.coordinator.run(ctx, items)
	if err != nil {
		level.Error(s.logger).Log("msg", "failed to upload files", "err", err)
		return domain.FailedOutcome(fmt.Sprintf("%s: %v", domain.MessageUploadFailed, err))
	}

	return outcome
}

func validate(items []domain.UploadItem) error {
	if len(items) == 0 {
		return domain.ErrEmptyBatch
	}

	for _, item := range items {
		if !strings.HasSuffix(item.Name, domain.AllowedExtension) {
			return fmt.Errorf("%w: %q", domain.ErrExtensionNotAllowed, item.Name)
		}
	}

	return nil
}

func rejectionMessage(err error) string {
	if errors.Is(err, domain.ErrEmptyBatch) {
		return domain.MessageNoFiles
	}
	return domain.MessageExtensionNotAllowed
}
