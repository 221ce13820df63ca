package processor

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"unicode/utf8"

	"assetprocessor/internal/custom_errors"
	"assetprocessor/internal/metrics"
	"assetprocessor/internal/models"
	"assetprocessor/internal/state"
	"assetprocessor/internal/tokenizer"
)

// Store is the part of the remote job/asset API the pipeline needs.
type Store interface {
	PatchJob(ctx context.Context, jobID string, patch models.JobPatch) error
	GetAsset(ctx context.Context, assetID string) (*models.Asset, error)
	GetAssetBytes(ctx context.Context, fileURL string) ([]byte, error)
	PatchAsset(ctx context.Context, assetID string, patch models.AssetPatch) error
}

// Splitter chunks audio and video buffers.
type Splitter interface {
	Split(ctx context.Context, data []byte, maxChunkBytes int64, fileName string) ([]models.Chunk, error)
	SplitVideo(ctx context.Context, data []byte, maxChunkBytes int64, fileName string) ([]models.Chunk, error)
}

// Transcriber turns ordered chunks into one transcript.
type Transcriber interface {
	Transcribe(ctx context.Context, chunks []models.Chunk) (string, error)
}

// Pipeline derives the textual content of one job's asset and writes it back.
type Pipeline struct {
	store         Store
	splitter      Splitter
	transcriber   Transcriber
	counter       tokenizer.Counter
	maxChunkBytes int64
	logger        *slog.Logger
	metrics       *metrics.Metrics
}

func NewPipeline(store Store, splitter Splitter, transcriber Transcriber, counter tokenizer.Counter, maxChunkBytes int64, logger *slog.Logger, m *metrics.Metrics) *Pipeline {
	if logger == nil {
		logger = slog.Default()
	}
	return &Pipeline{
		store:         store,
		splitter:      splitter,
		transcriber:   transcriber,
		counter:       counter,
		maxChunkBytes: maxChunkBytes,
		logger:        logger,
		metrics:       m,
	}
}

// Process never returns an error: every failure is folded into a failed
// JobResult carrying a kind and a message.
func (p *Pipeline) Process(ctx context.Context, job models.Job) models.JobResult {
	log := p.logger.With("job_id", job.ID, "asset_id", job.AssetID)
	log.Info("Processing job")

	if err := p.store.PatchJob(ctx, job.ID, models.StatusPatch(state.StatusInProgress)); err != nil {
		// The heartbeat and the final patch still report progress.
		log.Warn("Failed to mark job in progress", "error", err)
	}

	asset, err := p.store.GetAsset(ctx, job.AssetID)
	if err != nil {
		return p.fail(job, nil, custom_errors.NewJobError(custom_errors.KindTransientFetch,
			fmt.Sprintf("Failed to fetch asset %s", job.AssetID), err))
	}
	if asset == nil {
		return p.fail(job, nil, custom_errors.NewJobError(custom_errors.KindAssetNotFound,
			fmt.Sprintf("Asset %s not found", job.AssetID), nil))
	}
	log = log.With("file_type", asset.FileType, "file_name", asset.FileName)

	data, err := p.store.GetAssetBytes(ctx, asset.FileURL)
	if err != nil {
		return p.fail(job, asset, custom_errors.NewJobError(custom_errors.KindTransientFetch,
			fmt.Sprintf("Failed to fetch file for asset %s", asset.ID), err))
	}

	content, chunkCount, err := p.extract(ctx, log, asset, data)
	if err != nil {
		return p.fail(job, asset, err)
	}

	tokens := 0
	if p.counter != nil {
		tokens = p.counter.Count(content)
	}
	if err := p.store.PatchAsset(ctx, asset.ID, models.AssetPatch{Content: content, TokenCount: tokens}); err != nil {
		return p.fail(job, asset, custom_errors.NewJobError(custom_errors.KindStoreUpdateFailure,
			fmt.Sprintf("Failed to update content of asset %s", asset.ID), err))
	}

	log.Info("Asset content updated", "token_count", tokens, "chunks", chunkCount)
	result := models.Succeeded(job.ID, content, tokens, chunkCount)
	result.AssetID = asset.ID
	result.FileType = asset.FileType
	return result
}

func (p *Pipeline) extract(ctx context.Context, log *slog.Logger, asset *models.Asset, data []byte) (string, int, error) {
	fileName := filepath.Base(asset.FileName)

	switch asset.FileType {
	case models.FileTypeText, models.FileTypeMarkdown:
		log.Info("Processing text file")
		if !utf8.Valid(data) {
			return "", 0, custom_errors.NewJobError(custom_errors.KindInternal,
				fmt.Sprintf("Asset %s is not valid UTF-8 text", asset.ID), nil)
		}
		return string(data), 0, nil

	case models.FileTypeAudio:
		log.Info("Processing audio file")
		chunks, err := p.splitter.Split(ctx, data, p.maxChunkBytes, fileName)
		if err != nil {
			return "", 0, err
		}
		return p.transcribe(ctx, chunks)

	case models.FileTypeVideo:
		log.Info("Processing video file")
		chunks, err := p.splitter.SplitVideo(ctx, data, p.maxChunkBytes, fileName)
		if err != nil {
			return "", 0, err
		}
		return p.transcribe(ctx, chunks)

	default:
		return "", 0, custom_errors.NewJobError(custom_errors.KindUnsupportedContentType,
			fmt.Sprintf("Unsupported content type: %s", asset.FileType), nil)
	}
}

func (p *Pipeline) transcribe(ctx context.Context, chunks []models.Chunk) (string, int, error) {
	p.metrics.RecordChunks(ctx, len(chunks))
	text, err := p.transcriber.Transcribe(ctx, chunks)
	if err != nil {
		return "", len(chunks), err
	}
	return text, len(chunks), nil
}

func (p *Pipeline) fail(job models.Job, asset *models.Asset, err error) models.JobResult {
	result := models.Failed(job.ID, err)
	result.AssetID = job.AssetID
	if asset != nil {
		result.FileType = asset.FileType
	}
	p.logger.Error("Job failed", "job_id", job.ID, "kind", result.Err.Kind, "error", result.ErrorMessage())
	return result
}
