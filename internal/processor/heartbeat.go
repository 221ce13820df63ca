package processor

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"assetprocessor/internal/config"
	"assetprocessor/internal/metrics"
	"assetprocessor/internal/models"
)

// JobPatcher is the single store call the heartbeat makes.
type JobPatcher interface {
	PatchJob(ctx context.Context, jobID string, patch models.JobPatch) error
}

// Heartbeat refreshes a job's lastHeartBeat until stopped. It patches once on
// start and then every interval; failed patches are logged and retried on the
// next tick.
type Heartbeat struct {
	cancel context.CancelFunc
	done   chan struct{}
	once   sync.Once
}

func StartHeartbeat(ctx context.Context, store JobPatcher, jobID string, interval time.Duration, logger *slog.Logger, m *metrics.Metrics) *Heartbeat {
	if logger == nil {
		logger = slog.Default()
	}
	if interval <= 0 {
		interval = config.DefaultHeartbeatInterval
	}
	ctx, cancel := context.WithCancel(ctx)
	h := &Heartbeat{cancel: cancel, done: make(chan struct{})}

	go func() {
		defer close(h.done)
		beat := func() {
			err := store.PatchJob(ctx, jobID, models.HeartbeatPatch(time.Now().UTC()))
			if err == nil {
				logger.Debug("Heartbeat sent", "job_id", jobID)
				return
			}
			if ctx.Err() != nil {
				return
			}
			m.RecordHeartbeatFailure(ctx)
			logger.Error("Error updating heartbeat", "job_id", jobID, "error", err)
		}

		beat()
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				beat()
			}
		}
	}()
	return h
}

// Stop cancels the heartbeat and waits for its goroutine to exit.
func (h *Heartbeat) Stop() {
	h.once.Do(h.cancel)
	<-h.done
}
