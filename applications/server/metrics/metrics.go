package metrics

import (
	"errors"
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/donmikel/batchupload/applications/server/domain"
)

const defaultNamespace = "batchupload"

// Observer captures telemetry of the upload pipeline.
type Observer interface {
	RecordBatch(duration time.Duration, items int, success bool)
	RecordRejected(err error)
	RecordStage(stage domain.Stage, duration time.Duration, err error)
	RecordStored(sizeBytes int64)
	RecordVerdict(virusFree bool)
}

// PrometheusObserver exports pipeline metrics to Prometheus.
type PrometheusObserver struct {
	batchDuration *prometheus.HistogramVec
	batchItems    prometheus.Histogram
	rejected      *prometheus.CounterVec
	stageDuration *prometheus.HistogramVec
	stageErrors   *prometheus.CounterVec
	storedBytes   prometheus.Counter
	verdicts      *prometheus.CounterVec
}

func NewPrometheusObserver(namespace string, reg prometheus.Registerer) (*PrometheusObserver, error) {
	if namespace == "" {
		namespace = defaultNamespace
	}
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}

	o := &PrometheusObserver{
		batchDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "batch_duration_seconds",
			Help:      "Time from batch submission to its outcome.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"outcome"}),
		batchItems: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "batch_items",
			Help:      "Number of files per processed batch.",
			Buckets:   prometheus.ExponentialBuckets(1, 2, 10),
		}),
		rejected: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "batches_rejected_total",
			Help:      "Batches rejected before processing.",
		}, []string{"reason"}),
		stageDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "item_stage_duration_seconds",
			Help:      "Latency of per file pipeline stages.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"stage"}),
		stageErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "item_stage_errors_total",
			Help:      "Per file pipeline stage failures.",
		}, []string{"stage"}),
		storedBytes: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "stored_bytes_total",
			Help:      "Cumulative size of stored files.",
		}),
		verdicts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "scan_verdicts_total",
			Help:      "Scanner verdicts by result.",
		}, []string{"verdict"}),
	}

	collectors := []prometheus.Collector{
		o.batchDuration, o.batchItems, o.rejected, o.stageDuration, o.stageErrors, o.storedBytes, o.verdicts,
	}
	for _, collector := range collectors {
		if err := reg.Register(collector); err != nil {
			return nil, fmt.Errorf("register upload metric: %w", err)
		}
	}

	return o, nil
}

func (o *PrometheusObserver) RecordBatch(duration time.Duration, items int, success bool) {
	outcome := "success"
	if !success {
		outcome = "failure"
	}
	o.batchDuration.WithLabelValues(outcome).Observe(duration.Seconds())
	o.batchItems.Observe(float64(items))
}

func (o *PrometheusObserver) RecordRejected(err error) {
	reason := "other"
	switch {
	case errors.Is(err, domain.ErrEmptyBatch):
		reason = "empty"
	case errors.Is(err, domain.ErrExtensionNotAllowed):
		reason = "extension"
	}
	o.rejected.WithLabelValues(reason).Inc()
}

func (o *PrometheusObserver) RecordStage(stage domain.Stage, duration time.Duration, err error) {
	o.stageDuration.WithLabelValues(string(stage)).Observe(duration.Seconds())
	if err != nil {
		o.stageErrors.WithLabelValues(string(stage)).Inc()
	}
}

func (o *PrometheusObserver) RecordStored(sizeBytes int64) {
	o.storedBytes.Add(float64(sizeBytes))
}

func (o *PrometheusObserver) RecordVerdict(virusFree bool) {
	verdict := "clear"
	if !virusFree {
		verdict = "infected"
	}
	o.verdicts.WithLabelValues(verdict).Inc()
}

var _ Observer = (*PrometheusObserver)(nil)

type nopObserver struct{}

// NewNopObserver returns an Observer that drops everything.
func NewNopObserver() Observer { return nopObserver{} }

func (nopObserver) RecordBatch(time.Duration, int, bool) {}

func (nopObserver) RecordRejected(error) {}

func (nopObserver) RecordStage(domain.Stage, time.Duration, error) {}

func (nopObserver) RecordStored(int64) {}

func (nopObserver) RecordVerdict(bool) {}
