package assetworker

import (
	"context"
	"sync"

	"assetprocessor/internal/models"
	"assetprocessor/internal/state"
)

// fakeAPI is an in-memory remote store.
type fakeAPI struct {
	mu sync.Mutex

	jobs    []models.Job
	listErr error
	// afterList runs once the listing is taken, before it is returned.
	afterList func()
	assets  map[string]*models.Asset
	files   map[string][]byte

	heartbeatErr error
	statusErr    error

	statusPatches map[string][]models.JobPatch
	heartbeats    map[string]int
	assetPatches  map[string]models.AssetPatch
}

func newFakeAPI(jobs ...models.Job) *fakeAPI {
	return &fakeAPI{
		jobs:          jobs,
		assets:        map[string]*models.Asset{},
		files:         map[string][]byte{},
		statusPatches: map[string][]models.JobPatch{},
		heartbeats:    map[string]int{},
		assetPatches:  map[string]models.AssetPatch{},
	}
}

func (f *fakeAPI) ListJobs(ctx context.Context) ([]models.Job, error) {
	f.mu.Lock()
	if f.listErr != nil {
		f.mu.Unlock()
		return nil, f.listErr
	}
	jobs := append([]models.Job(nil), f.jobs...)
	afterList := f.afterList
	f.mu.Unlock()

	if afterList != nil {
		afterList()
	}
	return jobs, nil
}

func (f *fakeAPI) PatchJob(ctx context.Context, jobID string, patch models.JobPatch) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if patch.Status == nil {
		f.heartbeats[jobID]++
		if f.heartbeatErr == nil && patch.LastHeartbeat != nil {
			f.apply(jobID, func(j *models.Job) { j.LastHeartbeat = *patch.LastHeartbeat })
		}
		return f.heartbeatErr
	}
	f.statusPatches[jobID] = append(f.statusPatches[jobID], patch)
	if f.statusErr == nil {
		f.apply(jobID, func(j *models.Job) {
			j.Status = *patch.Status
			if patch.Attempts != nil {
				j.Attempts = *patch.Attempts
			}
			if patch.ErrorMessage != nil {
				j.ErrorMessage = patch.ErrorMessage
			}
		})
	}
	return f.statusErr
}

func (f *fakeAPI) apply(jobID string, update func(*models.Job)) {
	for i := range f.jobs {
		if f.jobs[i].ID == jobID {
			update(&f.jobs[i])
		}
	}
}

func (f *fakeAPI) GetAsset(ctx context.Context, assetID string) (*models.Asset, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.assets[assetID], nil
}

func (f *fakeAPI) GetAssetBytes(ctx context.Context, fileURL string) ([]byte, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.files[fileURL], nil
}

func (f *fakeAPI) PatchAsset(ctx context.Context, assetID string, patch models.AssetPatch) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.assetPatches[assetID] = patch
	return nil
}

func (f *fakeAPI) patches(jobID string) []models.JobPatch {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]models.JobPatch(nil), f.statusPatches[jobID]...)
}

// finalStatus returns the last status written for jobID other than in_progress.
func (f *fakeAPI) finalStatus(jobID string) (models.JobPatch, bool) {
	patches := f.patches(jobID)
	for i := len(patches) - 1; i >= 0; i-- {
		if *patches[i].Status != state.StatusInProgress {
			return patches[i], true
		}
	}
	return models.JobPatch{}, false
}

func (f *fakeAPI) heartbeatCount(jobID string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.heartbeats[jobID]
}

type processorFunc func(ctx context.Context, job models.Job) models.JobResult

func (f processorFunc) Process(ctx context.Context, job models.Job) models.JobResult {
	return f(ctx, job)
}

type recordingLedger struct {
	mu        sync.Mutex
	attempts  []models.Attempt
	listCalls int
}

func (r *recordingLedger) RecordAttempt(ctx context.Context, a models.Attempt) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.attempts = append(r.attempts, a)
	return nil
}

func (r *recordingLedger) ListAttempts(ctx context.Context, jobID string, limit int) ([]models.Attempt, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.listCalls++
	var out []models.Attempt
	for i := len(r.attempts) - 1; i >= 0 && len(out) < limit; i-- {
		if r.attempts[i].JobID == jobID {
			out = append(out, r.attempts[i])
		}
	}
	return out, nil
}

func (r *recordingLedger) Close() error { return nil }

func (r *recordingLedger) PublishOutcome(ctx context.Context, a models.Attempt) error {
	return r.RecordAttempt(ctx, a)
}

func (r *recordingLedger) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.attempts)
}

type panickingPublisher struct{}

func (panickingPublisher) PublishOutcome(ctx context.Context, a models.Attempt) error {
	panic("broker exploded")
}
