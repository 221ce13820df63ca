package metrics

import (
	"context"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/metric/noop"
)

const MeterName = "assetprocessor"

// Metrics holds the worker's metric instruments.
type Metrics struct {
	jobOutcomes        metric.Int64Counter
	jobDuration        metric.Float64Histogram
	stuckJobs          metric.Int64Counter
	maxAttemptsJobs    metric.Int64Counter
	chunksProduced     metric.Int64Histogram
	transcriptionCalls metric.Int64Counter
	heartbeatFailures  metric.Int64Counter
}

// New creates the instruments from mp. A nil provider uses the global one.
func New(mp metric.MeterProvider) *Metrics {
	if mp == nil {
		mp = otel.GetMeterProvider()
	}
	meter := mp.Meter(MeterName)
	m := &Metrics{}

	var err error
	m.jobOutcomes, err = meter.Int64Counter(
		"assetprocessor.job.outcomes",
		metric.WithDescription("Jobs finished by a worker, by final status"),
		metric.WithUnit("{job}"),
	)
	if err != nil {
		m.jobOutcomes, _ = meter.Int64Counter("assetprocessor.job.outcomes")
	}

	m.jobDuration, err = meter.Float64Histogram(
		"assetprocessor.job.duration",
		metric.WithDescription("Wall time spent processing one job"),
		metric.WithUnit("ms"),
	)
	if err != nil {
		m.jobDuration, _ = meter.Float64Histogram("assetprocessor.job.duration")
	}

	m.stuckJobs, err = meter.Int64Counter(
		"assetprocessor.job.stuck",
		metric.WithDescription("Jobs force-failed because their heartbeat went stale"),
		metric.WithUnit("{job}"),
	)
	if err != nil {
		m.stuckJobs, _ = meter.Int64Counter("assetprocessor.job.stuck")
	}

	m.maxAttemptsJobs, err = meter.Int64Counter(
		"assetprocessor.job.max_attempts_exceeded",
		metric.WithDescription("Jobs moved to max_attempts_exceeded"),
		metric.WithUnit("{job}"),
	)
	if err != nil {
		m.maxAttemptsJobs, _ = meter.Int64Counter("assetprocessor.job.max_attempts_exceeded")
	}

	m.chunksProduced, err = meter.Int64Histogram(
		"assetprocessor.media.chunks",
		metric.WithDescription("Chunks produced per split media file"),
		metric.WithUnit("{chunk}"),
	)
	if err != nil {
		m.chunksProduced, _ = meter.Int64Histogram("assetprocessor.media.chunks")
	}

	m.transcriptionCalls, err = meter.Int64Counter(
		"assetprocessor.transcription.calls",
		metric.WithDescription("Transcription engine calls, by result"),
		metric.WithUnit("{call}"),
	)
	if err != nil {
		m.transcriptionCalls, _ = meter.Int64Counter("assetprocessor.transcription.calls")
	}

	m.heartbeatFailures, err = meter.Int64Counter(
		"assetprocessor.heartbeat.failures",
		metric.WithDescription("Heartbeat patches that failed"),
		metric.WithUnit("{patch}"),
	)
	if err != nil {
		m.heartbeatFailures, _ = meter.Int64Counter("assetprocessor.heartbeat.failures")
	}

	return m
}

// NewNoop creates metrics that do nothing.
func NewNoop() *Metrics {
	return New(noop.NewMeterProvider())
}

func (m *Metrics) RecordJobOutcome(ctx context.Context, status, fileType, failureKind string, duration time.Duration) {
	if m == nil {
		return
	}
	attrs := metric.WithAttributes(
		attribute.String("job.status", status),
		attribute.String("asset.file_type", fileType),
		attribute.String("job.failure_kind", failureKind),
	)
	m.jobOutcomes.Add(ctx, 1, attrs)
	m.jobDuration.Record(ctx, float64(duration.Milliseconds()), attrs)
}

func (m *Metrics) RecordStuckJob(ctx context.Context) {
	if m == nil {
		return
	}
	m.stuckJobs.Add(ctx, 1)
}

func (m *Metrics) RecordMaxAttemptsExceeded(ctx context.Context) {
	if m == nil {
		return
	}
	m.maxAttemptsJobs.Add(ctx, 1)
}

func (m *Metrics) RecordChunks(ctx context.Context, count int) {
	if m == nil {
		return
	}
	m.chunksProduced.Record(ctx, int64(count))
}

func (m *Metrics) RecordTranscriptionCall(ctx context.Context, ok bool) {
	if m == nil {
		return
	}
	m.transcriptionCalls.Add(ctx, 1, metric.WithAttributes(attribute.Bool("call.ok", ok)))
}

func (m *Metrics) RecordHeartbeatFailure(ctx context.Context) {
	if m == nil {
		return
	}
	m.heartbeatFailures.Add(ctx, 1)
}
