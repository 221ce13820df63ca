package assetworker

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"assetprocessor/internal/coordinator"
	"assetprocessor/internal/custom_errors"
	"assetprocessor/internal/metrics"
	"assetprocessor/internal/models"
	"assetprocessor/internal/processor"
	"assetprocessor/internal/state"
	"assetprocessor/internal/store"
)

// finalWriteTimeout bounds the status, ledger and event writes that follow a
// job, which still run during shutdown.
const finalWriteTimeout = 30 * time.Second

// JobProcessor runs one job to a typed result.
type JobProcessor interface {
	Process(ctx context.Context, job models.Job) models.JobResult
}

// OutcomePublisher announces finished attempts.
type OutcomePublisher interface {
	PublishOutcome(ctx context.Context, attempt models.Attempt) error
}

// WorkerPool runs a fixed number of workers consuming the dispatch queue.
type WorkerPool struct {
	queue             <-chan models.Job
	coord             *coordinator.Coordinator
	api               JobLister
	processor         JobProcessor
	workerCount       int
	heartbeatInterval time.Duration
	ledger            store.AttemptStore
	events            OutcomePublisher
	logger            *slog.Logger
	metrics           *metrics.Metrics
	newRunID          func() string
	now               func() time.Time
}

func NewWorkerPool(queue <-chan models.Job, coord *coordinator.Coordinator, api JobLister, jobProcessor JobProcessor, workerCount int, heartbeatInterval time.Duration, logger *slog.Logger, m *metrics.Metrics) *WorkerPool {
	if logger == nil {
		logger = slog.Default()
	}
	if workerCount <= 0 {
		workerCount = 1
	}
	return &WorkerPool{
		queue:             queue,
		coord:             coord,
		api:               api,
		processor:         jobProcessor,
		workerCount:       workerCount,
		heartbeatInterval: heartbeatInterval,
		ledger:            store.NopAttemptStore{},
		logger:            logger,
		metrics:           m,
		newRunID:          uuid.NewString,
		now:               time.Now,
	}
}

// WithLedger records every finished attempt in s.
func (wp *WorkerPool) WithLedger(s store.AttemptStore) *WorkerPool {
	if s != nil {
		wp.ledger = s
	}
	return wp
}

// WithEvents publishes every finished attempt to p.
func (wp *WorkerPool) WithEvents(p OutcomePublisher) *WorkerPool {
	wp.events = p
	return wp
}

// Run blocks until ctx is done and every worker has finished its current job.
func (wp *WorkerPool) Run(ctx context.Context) {
	var wg sync.WaitGroup
	for i := 1; i <= wp.workerCount; i++ {
		wg.Add(1)
		go func(workerID int) {
			defer wg.Done()
			wp.work(ctx, workerID)
		}(i)
	}
	wg.Wait()
}

func (wp *WorkerPool) work(ctx context.Context, workerID int) {
	log := wp.logger.With("worker_id", workerID)
	log.Info("Worker started")
	for {
		select {
		case <-ctx.Done():
			log.Info("Worker stopped")
			return
		case job := <-wp.queue:
			wp.handle(ctx, workerID, job)
		}
	}
}

func (wp *WorkerPool) handle(ctx context.Context, workerID int, job models.Job) {
	log := wp.logger.With("worker_id", workerID, "job_id", job.ID)
	// Runs after release, so the coordinator is always cleaned up first.
	defer func() {
		if r := recover(); r != nil {
			log.Error("Recovered from panic while handling job", "panic", r)
		}
	}()

	release, err := wp.coord.Acquire(ctx, job.ID)
	if err != nil {
		return
	}
	defer release()

	runID := wp.newRunID()
	log = log.With("run_id", runID)
	log.Info("Worker processing job", "attempts", job.Attempts)
	if job.Attempts > 0 {
		wp.logPreviousAttempt(ctx, log, job.ID)
	}

	startedAt := wp.now()
	heartbeat := processor.StartHeartbeat(ctx, wp.api, job.ID, wp.heartbeatInterval, log, wp.metrics)
	defer heartbeat.Stop()
	result := wp.process(ctx, job)
	heartbeat.Stop()

	result.RunID = runID
	if result.AssetID == "" {
		result.AssetID = job.AssetID
	}
	finishedAt := wp.now()

	if result.Status == state.StatusFailed && ctx.Err() != nil {
		// Interrupted by shutdown; the stuck-job policy picks it up later.
		log.Warn("Job interrupted by shutdown", "error", result.ErrorMessage())
		return
	}

	writeCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), finalWriteTimeout)
	defer cancel()

	if wp.remoteAllows(writeCtx, log, job.ID, result.Status) {
		if err := wp.api.PatchJob(writeCtx, job.ID, finalPatch(job, result)); err != nil {
			log.Error("Failed to write final job status", "status", result.Status, "error", err)
		} else {
			log.Info("Job finished", "status", result.Status, "duration", finishedAt.Sub(startedAt))
		}
	}

	failureKind := ""
	if result.Err != nil {
		failureKind = string(result.Err.Kind)
	}
	wp.metrics.RecordJobOutcome(writeCtx, string(result.Status), string(result.FileType), failureKind, finishedAt.Sub(startedAt))

	attempt := models.AttemptFromResult(job, result, workerID, startedAt, finishedAt)
	if err := wp.ledger.RecordAttempt(writeCtx, attempt); err != nil {
		log.Warn("Failed to record attempt", "error", err)
	}
	if wp.events != nil {
		if err := wp.events.PublishOutcome(writeCtx, attempt); err != nil {
			log.Warn("Failed to publish job outcome", "error", err)
		}
	}
}

// remoteAllows re-reads the job before the final patch. A job another writer
// already moved to a terminal status is left alone. Lookup failures do not
// block the patch.
func (wp *WorkerPool) remoteAllows(ctx context.Context, log *slog.Logger, jobID string, to state.JobStatus) bool {
	jobs, err := wp.api.ListJobs(ctx)
	if err != nil {
		log.Warn("Could not re-check job status before final patch", "error", err)
		return true
	}
	for _, remote := range jobs {
		if remote.ID != jobID {
			continue
		}
		if remote.Status.IsTerminal() {
			log.Warn("Job already finished remotely, skipping final patch", "remote_status", remote.Status, "status", to)
			return false
		}
		if !state.IsValidTransition(remote.Status, to) {
			log.Warn("Unexpected job status transition", "from", remote.Status, "to", to)
		}
		return true
	}
	return true
}

func (wp *WorkerPool) logPreviousAttempt(ctx context.Context, log *slog.Logger, jobID string) {
	previous, err := wp.ledger.ListAttempts(ctx, jobID, 1)
	if err != nil {
		log.Warn("Failed to read previous attempt", "error", err)
		return
	}
	if len(previous) == 0 {
		return
	}
	last := previous[0]
	log.Info("Retrying job",
		"previous_run_id", last.RunID,
		"previous_status", last.Status,
		"previous_failure_kind", last.FailureKind,
		"previous_error", last.ErrorMessage)
}

// process runs the pipeline, turning a panic into a failed result.
func (wp *WorkerPool) process(ctx context.Context, job models.Job) (result models.JobResult) {
	defer func() {
		if r := recover(); r != nil {
			wp.logger.Error("Panic while processing job", "job_id", job.ID, "panic", r)
			result = models.Failed(job.ID, custom_errors.NewJobError(custom_errors.KindInternal, fmt.Sprintf("panic: %v", r), nil))
		}
	}()
	return wp.processor.Process(ctx, job)
}

func finalPatch(job models.Job, result models.JobResult) models.JobPatch {
	if result.Status == state.StatusCompleted {
		return models.StatusPatch(state.StatusCompleted)
	}
	return models.FailurePatch(job, result.ErrorMessage())
}
