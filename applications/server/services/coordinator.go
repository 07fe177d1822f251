package services

import (
	"context"
	"errors"
	"fmt"

	"github.com/go-kit/log"
	"github.com/go-kit/log/level"

	"github.com/donmikel/batchupload/applications/server/domain"
)

type Submitter interface {
	Submit(ctx context.Context, task func()) error
}

// coordinator fans a batch out over the shared pool and folds the per file
// results into one outcome once every submitted file is finished.
type coordinator struct {
	pool      Submitter
	processor *processor
	logger    log.Logger
}

type itemResult struct {
	meta domain.FileMeta
	err  error
}

// run never returns before all submitted items are done. Processing
// failures are reported through the outcome; the error is set only when
// the batch could not be run at all.
func (c *coordinator) run(ctx context.Context, items []domain.UploadItem) (domain.BatchOutcome, error) {
	if len(items) == 0 {
		return domain.BatchOutcome{}, domain.ErrEmptyBatch
	}

	results := make(chan itemResult, len(items))

	submitted := 0
	var submitErr error
	for _, item := range items {
		item := item
		err := c.pool.Submit(ctx, func() {
			results <- c.processSafely(ctx, item)
		})
		if err != nil {
			submitErr = fmt.Errorf("can't submit %s: %w", item.Name, err)
			break
		}
		submitted++
	}

	var (
		keys      = make([]string, 0, submitted)
		firstFail error
		failed    int
	)
	for i := 0; i < submitted; i++ {
		res := <-results
		if res.err != nil {
			failed++
			if firstFail == nil {
				firstFail = res.err
			}
			level.Error(c.logger).Log("msg", "file processing failed", "err", res.err)
			continue
		}
		keys = append(keys, res.meta.Key)
	}

	if submitErr != nil {
		return domain.BatchOutcome{}, submitErr
	}

	if firstFail != nil {
		level.Error(c.logger).Log("msg", "batch failed",
			"files", len(items),
			"failed", failed,
			"stored", len(keys),
		)
		return domain.FailedOutcome(failureMessage(firstFail)), nil
	}

	return domain.SucceededOutcome(keys), nil
}

func (c *coordinator) processSafely(ctx context.Context, item domain.UploadItem) (res itemResult) {
	defer func() {
		if rec := recover(); rec != nil {
			res = itemResult{err: &domain.ItemError{
				Name:  item.Name,
				Stage: domain.StageProcess,
				Err:   fmt.Errorf("panic: %v", rec),
			}}
		}
	}()

	meta, err := c.processor.process(ctx, item)
	return itemResult{meta: meta, err: err}
}

func failureMessage(err error) string {
	var itemErr *domain.ItemError
	if errors.As(err, &itemErr) {
		return fmt.Sprintf("%s: %s", domain.MessageUploadFailed, itemErr.Message())
	}
	return fmt.Sprintf("%s: %v", domain.MessageUploadFailed, err)
}
