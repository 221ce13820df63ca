package assetworker

import (
	"context"
	"log/slog"
	"time"

	"assetprocessor/internal/coordinator"
	"assetprocessor/internal/metrics"
	"assetprocessor/internal/models"
	"assetprocessor/internal/state"
)

const (
	StuckJobMessage    = "Job is stuck - no heartbeat received recently"
	MaxAttemptsMessage = "Max attempts exceeded!"
)

// JobLister is the part of the remote store the poller needs.
type JobLister interface {
	ListJobs(ctx context.Context) ([]models.Job, error)
	PatchJob(ctx context.Context, jobID string, patch models.JobPatch) error
}

// Poller scans the remote job list on a fixed interval, applies the stuck and
// max-attempts policy, and feeds dispatchable jobs to the worker queue.
type Poller struct {
	api            JobLister
	coord          *coordinator.Coordinator
	queue          chan<- models.Job
	interval       time.Duration
	stuckThreshold time.Duration
	maxAttempts    int
	logger         *slog.Logger
	metrics        *metrics.Metrics
	now            func() time.Time
}

func NewPoller(api JobLister, coord *coordinator.Coordinator, queue chan<- models.Job, interval, stuckThreshold time.Duration, maxAttempts int, logger *slog.Logger, m *metrics.Metrics) *Poller {
	if logger == nil {
		logger = slog.Default()
	}
	return &Poller{
		api:            api,
		coord:          coord,
		queue:          queue,
		interval:       interval,
		stuckThreshold: stuckThreshold,
		maxAttempts:    maxAttempts,
		logger:         logger,
		metrics:        m,
		now:            time.Now,
	}
}

// Run scans immediately and then every interval until ctx is done.
func (p *Poller) Run(ctx context.Context) error {
	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	for {
		p.Scan(ctx)
		select {
		case <-ctx.Done():
			p.logger.Info("Poller stopped")
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

// Scan runs one poll cycle. A failed listing skips the cycle.
func (p *Poller) Scan(ctx context.Context) {
	// Jobs released after this point may show a stale status in the listing.
	gen := p.coord.Generation()
	defer p.coord.PruneReleased(gen)

	p.logger.Debug("Fetching jobs")
	jobs, err := p.api.ListJobs(ctx)
	if err != nil {
		if ctx.Err() == nil {
			p.logger.Error("Error fetching jobs", "error", err)
		}
		return
	}

	for _, job := range jobs {
		if ctx.Err() != nil {
			return
		}
		if p.coord.ReleasedSince(job.ID, gen) {
			p.logger.Debug("Skipping job finished since listing", "job_id", job.ID)
			continue
		}
		switch {
		case job.Status == state.StatusInProgress:
			p.checkStuck(ctx, job)
		case job.Status.IsDispatchable():
			p.dispatch(ctx, job)
		case !job.Status.IsKnown():
			p.logger.Warn("Ignoring job with unknown status", "job_id", job.ID, "status", job.Status)
		}
	}

	inFlight, locks := p.coord.Snapshot()
	p.logger.Debug("Poll cycle done", "jobs", len(jobs), "in_flight", inFlight, "locks", locks)
}

func (p *Poller) checkStuck(ctx context.Context, job models.Job) {
	elapsed := p.now().Sub(job.LastHeartbeat)
	log := p.logger.With("job_id", job.ID)
	log.Debug("Time since last heartbeat", "elapsed", elapsed)
	if elapsed <= p.stuckThreshold {
		return
	}

	// The heartbeat runs independently of the pipeline, so a stale heartbeat on
	// a job this process is running means the store is not accepting patches.
	if p.coord.IsActive(job.ID) {
		log.Warn("Heartbeat is stale but job is still being processed locally", "elapsed", elapsed)
		return
	}

	log.Warn("Job is stuck, failing it", "elapsed", elapsed, "attempts", job.Attempts)
	p.metrics.RecordStuckJob(ctx)
	if err := p.api.PatchJob(ctx, job.ID, models.FailurePatch(job, StuckJobMessage)); err != nil {
		log.Error("Failed to fail stuck job", "error", err)
	}
	if p.coord.IsInFlight(job.ID) && p.coord.Forget(job.ID) {
		log.Info("Removed stuck job from in-flight set")
	}
}

func (p *Poller) dispatch(ctx context.Context, job models.Job) {
	log := p.logger.With("job_id", job.ID)
	if job.Attempts >= p.maxAttempts {
		log.Warn("Job has exceeded max attempts", "attempts", job.Attempts)
		p.metrics.RecordMaxAttemptsExceeded(ctx)
		if err := p.api.PatchJob(ctx, job.ID, models.MaxAttemptsPatch(MaxAttemptsMessage)); err != nil {
			log.Error("Failed to mark job as max attempts exceeded", "error", err)
		}
		return
	}

	if !p.coord.TryMarkInFlight(job.ID) {
		return
	}
	select {
	case p.queue <- job:
		log.Info("Adding job to queue")
	case <-ctx.Done():
		p.coord.Forget(job.ID)
	}
}
