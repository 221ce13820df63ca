package processor

import (
	"context"
	"errors"
	"sync"

	"assetprocessor/internal/models"
)

// fakeStore records every call and lets tests inject failures.
type fakeStore struct {
	mu sync.Mutex

	asset     *models.Asset
	assetErr  error
	bytes     []byte
	bytesErr  error
	assetPut  error
	heartbeat error
	statusErr error

	statusPatches    []models.JobPatch
	heartbeatPatches int
	assetPatches     []models.AssetPatch
}

func (f *fakeStore) PatchJob(ctx context.Context, jobID string, patch models.JobPatch) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if patch.Status == nil {
		f.heartbeatPatches++
		return f.heartbeat
	}
	f.statusPatches = append(f.statusPatches, patch)
	return f.statusErr
}

func (f *fakeStore) GetAsset(ctx context.Context, assetID string) (*models.Asset, error) {
	return f.asset, f.assetErr
}

func (f *fakeStore) GetAssetBytes(ctx context.Context, fileURL string) ([]byte, error) {
	return f.bytes, f.bytesErr
}

func (f *fakeStore) PatchAsset(ctx context.Context, assetID string, patch models.AssetPatch) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.assetPatches = append(f.assetPatches, patch)
	return f.assetPut
}

func (f *fakeStore) heartbeats() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.heartbeatPatches
}

type fakeSplitter struct {
	chunks      []models.Chunk
	err         error
	videoCalled bool
	fileName    string
	maxChunk    int64
}

func (f *fakeSplitter) Split(ctx context.Context, data []byte, maxChunkBytes int64, fileName string) ([]models.Chunk, error) {
	f.fileName, f.maxChunk = fileName, maxChunkBytes
	return f.chunks, f.err
}

func (f *fakeSplitter) SplitVideo(ctx context.Context, data []byte, maxChunkBytes int64, fileName string) ([]models.Chunk, error) {
	f.videoCalled = true
	return f.Split(ctx, data, maxChunkBytes, fileName)
}

type fakeTranscriber struct {
	text string
	err  error
}

func (f *fakeTranscriber) Transcribe(ctx context.Context, chunks []models.Chunk) (string, error) {
	return f.text, f.err
}

var errBoom = errors.New("boom")
