package services

import (
	"context"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/go-kit/log"
	"github.com/go-kit/log/level"

	"github.com/donmikel/batchupload/applications/server/domain"
	"github.com/donmikel/batchupload/applications/server/interfaces"
	"github.com/donmikel/batchupload/applications/server/metrics"
)

type KeyGenerator interface {
	Generate(originalName string) string
}

// processor takes a single file through key generation, storage and scan.
// It shares nothing mutable between items.
type processor struct {
	keys     KeyGenerator
	storage  interfaces.Storage
	scanner  interfaces.Scanner
	observer metrics.Observer
	logger   log.Logger
}

func (p *processor) process(ctx context.Context, item domain.UploadItem) (domain.FileMeta, error) {
	key := p.keys.Generate(item.Name)

	start := time.Now()
	size, err := p.storage.WriteFile(ctx, key, item.Body, item.Size)
	p.observer.RecordStage(domain.StageStore, time.Since(start), err)
	if err != nil {
		return domain.FileMeta{}, &domain.ItemError{Name: item.Name, Stage: domain.StageStore, Err: err}
	}
	p.observer.RecordStored(size)

	meta := domain.FileMeta{
		Key:         key,
		Size:        size,
		ContentType: item.ContentType,
	}

	start = time.Now()
	virusFree, err := p.scanner.Scan(ctx, meta)
	p.observer.RecordStage(domain.StageScan, time.Since(start), err)
	if err != nil {
		return domain.FileMeta{}, &domain.ItemError{Name: item.Name, Stage: domain.StageScan, Err: err}
	}
	p.observer.RecordVerdict(virusFree)

	// an infected file is still reported as uploaded
	meta.VirusFree = virusFree
	if !virusFree {
		level.Warn(p.logger).Log("msg", "scanner flagged file", "file", item.Name, "key", key)
	}

	level.Debug(p.logger).Log("msg", "file processed",
		"file", item.Name,
		"key", key,
		"size", humanize.Bytes(uint64(size)),
		"content_type", item.ContentType,
		"virus_free", virusFree,
	)

	return meta, nil
}
