package assetworker

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"

	"assetprocessor/internal/coordinator"
	"assetprocessor/internal/logger"
	"assetprocessor/internal/metrics"
	"assetprocessor/internal/models"
	"assetprocessor/internal/state"
)

var pollerNow = time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

func newTestPoller(api *fakeAPI) (*Poller, *coordinator.Coordinator, chan models.Job) {
	coord := coordinator.New()
	queue := make(chan models.Job, 10)
	p := NewPoller(api, coord, queue, 10*time.Millisecond, 30*time.Second, 3, logger.Discard(), metrics.NewNoop())
	p.now = func() time.Time { return pollerNow }
	return p, coord, queue
}

func TestPoller_FailsStuckJob(t *testing.T) {
	stuck := models.Job{ID: "stuck", Status: state.StatusInProgress, Attempts: 1, LastHeartbeat: pollerNow.Add(-31 * time.Second)}
	alive := models.Job{ID: "alive", Status: state.StatusInProgress, Attempts: 1, LastHeartbeat: pollerNow.Add(-29 * time.Second)}
	api := newFakeAPI(stuck, alive)
	p, coord, queue := newTestPoller(api)
	require.True(t, coord.TryMarkInFlight("stuck"))

	p.Scan(context.Background())

	patches := api.patches("stuck")
	require.Len(t, patches, 1)
	assert.Equal(t, state.StatusFailed, *patches[0].Status)
	assert.Equal(t, 2, *patches[0].Attempts)
	assert.Equal(t, StuckJobMessage, *patches[0].ErrorMessage)
	assert.False(t, coord.IsInFlight("stuck"))

	assert.Empty(t, api.patches("alive"))
	assert.Empty(t, queue)
}

func TestPoller_DoesNotFailLocallyActiveJob(t *testing.T) {
	job := models.Job{ID: "busy", Status: state.StatusInProgress, LastHeartbeat: pollerNow.Add(-time.Hour)}
	api := newFakeAPI(job)
	p, coord, _ := newTestPoller(api)

	require.True(t, coord.TryMarkInFlight("busy"))
	release, err := coord.Acquire(context.Background(), "busy")
	require.NoError(t, err)
	defer release()

	p.Scan(context.Background())

	assert.Empty(t, api.patches("busy"))
	assert.True(t, coord.IsInFlight("busy"))
}

func TestPoller_MaxAttemptsIsTerminal(t *testing.T) {
	api := newFakeAPI(
		models.Job{ID: "created", Status: state.StatusCreated, Attempts: 3},
		models.Job{ID: "failed", Status: state.StatusFailed, Attempts: 4},
	)
	p, coord, queue := newTestPoller(api)

	p.Scan(context.Background())

	for _, id := range []string{"created", "failed"} {
		patches := api.patches(id)
		require.Len(t, patches, 1, id)
		assert.Equal(t, state.StatusMaxAttemptsExceeded, *patches[0].Status)
		assert.Equal(t, MaxAttemptsMessage, *patches[0].ErrorMessage)
		assert.Nil(t, patches[0].Attempts)
		assert.False(t, coord.IsInFlight(id))
	}
	assert.Empty(t, queue)
}

func TestPoller_NoDoubleEnqueue(t *testing.T) {
	api := newFakeAPI(
		models.Job{ID: "new", Status: state.StatusCreated},
		models.Job{ID: "retry", Status: state.StatusFailed, Attempts: 2},
	)
	p, coord, queue := newTestPoller(api)

	p.Scan(context.Background())
	p.Scan(context.Background())
	p.Scan(context.Background())

	require.Len(t, queue, 2)
	assert.Equal(t, "new", (<-queue).ID)
	assert.Equal(t, "retry", (<-queue).ID)
	assert.True(t, coord.IsInFlight("new"))
	assert.True(t, coord.IsInFlight("retry"))
	assert.Empty(t, api.patches("new"))
}

func TestPoller_IgnoresOtherStatuses(t *testing.T) {
	api := newFakeAPI(
		models.Job{ID: "done", Status: state.StatusCompleted, Attempts: 5},
		models.Job{ID: "dead", Status: state.StatusMaxAttemptsExceeded, Attempts: 5},
		models.Job{ID: "odd", Status: "archived"},
	)
	p, _, queue := newTestPoller(api)

	p.Scan(context.Background())

	assert.Empty(t, queue)
	assert.Empty(t, api.patches("done"))
	assert.Empty(t, api.patches("dead"))
	assert.Empty(t, api.patches("odd"))
}

func TestPoller_ListFailureSkipsCycle(t *testing.T) {
	api := newFakeAPI(models.Job{ID: "new", Status: state.StatusCreated})
	api.listErr = errors.New("connection refused")
	p, coord, queue := newTestPoller(api)

	p.Scan(context.Background())
	assert.Empty(t, queue)
	assert.False(t, coord.IsInFlight("new"))

	api.listErr = nil
	p.Scan(context.Background())
	assert.Len(t, queue, 1)
}

func TestPoller_FullQueueHonoursCancellation(t *testing.T) {
	api := newFakeAPI(models.Job{ID: "a", Status: state.StatusCreated}, models.Job{ID: "b", Status: state.StatusCreated})
	coord := coordinator.New()
	queue := make(chan models.Job, 1)
	p := NewPoller(api, coord, queue, time.Second, 30*time.Second, 3, logger.Discard(), nil)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	p.Scan(ctx)

	assert.Len(t, queue, 1)
	assert.True(t, coord.IsInFlight("a"))
	assert.False(t, coord.IsInFlight("b"), "an id that never reached the queue is not in flight")
}

func TestPoller_RunStopsOnCancel(t *testing.T) {
	api := newFakeAPI()
	p, _, _ := newTestPoller(api)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- p.Run(ctx) }()

	time.Sleep(30 * time.Millisecond)
	cancel()
	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(time.Second):
		t.Fatal("poller did not stop")
	}
}

// finishLocally simulates a worker completing jobID while a listing is in flight.
func finishLocally(t *testing.T, coord *coordinator.Coordinator, jobID string) {
	t.Helper()
	coord.TryMarkInFlight(jobID)
	release, err := coord.Acquire(context.Background(), jobID)
	require.NoError(t, err)
	release()
}

func TestPoller_SkipsJobReleasedAfterListing(t *testing.T) {
	api := newFakeAPI(
		models.Job{ID: "done", Status: state.StatusCreated},
		models.Job{ID: "new", Status: state.StatusCreated},
	)
	p, coord, queue := newTestPoller(api)
	api.afterList = func() { finishLocally(t, coord, "done") }

	p.Scan(context.Background())

	require.Len(t, queue, 1)
	assert.Equal(t, "new", (<-queue).ID)
	assert.True(t, coord.TryMarkInFlight("done"), "finished job must not be re-dispatched")
}

func TestPoller_DoesNotFailJobReleasedAfterListing(t *testing.T) {
	api := newFakeAPI(models.Job{ID: "done", Status: state.StatusInProgress, LastHeartbeat: pollerNow.Add(-time.Hour)})
	p, coord, _ := newTestPoller(api)
	api.afterList = func() { finishLocally(t, coord, "done") }

	p.Scan(context.Background())

	assert.Empty(t, api.patches("done"))
}

func TestPoller_ReleasedJobIsDispatchableOnNextScan(t *testing.T) {
	api := newFakeAPI(models.Job{ID: "retry", Status: state.StatusFailed, Attempts: 1})
	p, coord, queue := newTestPoller(api)
	api.afterList = func() { finishLocally(t, coord, "retry") }

	p.Scan(context.Background())
	assert.Empty(t, queue)

	api.mu.Lock()
	api.afterList = nil
	api.mu.Unlock()
	p.Scan(context.Background())
	assert.Len(t, queue, 1)
}

func TestPoller_RecordsPolicyMetrics(t *testing.T) {
	reader := sdkmetric.NewManualReader()
	mp := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	defer mp.Shutdown(context.Background())

	api := newFakeAPI(
		models.Job{ID: "stuck", Status: state.StatusInProgress, LastHeartbeat: pollerNow.Add(-time.Minute)},
		models.Job{ID: "spent", Status: state.StatusFailed, Attempts: 3},
	)
	p := NewPoller(api, coordinator.New(), make(chan models.Job, 1), time.Second, 30*time.Second, 3, logger.Discard(), metrics.New(mp))
	p.now = func() time.Time { return pollerNow }

	p.Scan(context.Background())

	var rm metricdata.ResourceMetrics
	require.NoError(t, reader.Collect(context.Background(), &rm))
	got := map[string]int64{}
	for _, sm := range rm.ScopeMetrics {
		for _, m := range sm.Metrics {
			if sum, ok := m.Data.(metricdata.Sum[int64]); ok {
				for _, dp := range sum.DataPoints {
					got[m.Name] += dp.Value
				}
			}
		}
	}
	assert.Equal(t, int64(1), got["assetprocessor.job.stuck"])
	assert.Equal(t, int64(1), got["assetprocessor.job.max_attempts_exceeded"])
}
