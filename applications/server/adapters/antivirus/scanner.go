package antivirus

import (
	"context"
	"fmt"
	"math/rand"
	"time"

	"github.com/go-kit/log"
	"github.com/go-kit/log/level"

	"github.com/donmikel/batchupload/applications/server/domain"
	"github.com/donmikel/batchupload/applications/server/interfaces"
)

// simulated stands in for a real antivirus engine: every scan takes
// latency and reports a file clear with probability clearRatio.
type simulated struct {
	latency    time.Duration
	clearRatio float64
	random     func() float64
	log        log.Logger
}

func NewSimulatedScanner(latency time.Duration, clearRatio float64, logger log.Logger) interfaces.Scanner {
	return &simulated{
		latency:    latency,
		clearRatio: clearRatio,
		random:     rand.Float64,
		log:        logger,
	}
}

func (s *simulated) Scan(ctx context.Context, meta domain.FileMeta) (bool, error) {
	timer := time.NewTimer(s.latency)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return false, fmt.Errorf("scan of %s interrupted: %w", meta.Key, ctx.Err())
	case <-timer.C:
	}

	virusFree := s.random() < s.clearRatio

	level.Debug(s.log).Log("msg", "file scanned",
		"key", meta.Key,
		"virus_free", virusFree,
	)

	return virusFree, nil
}
