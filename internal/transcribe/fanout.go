package transcribe

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"sort"
	"strings"

	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"

	"assetprocessor/internal/custom_errors"
	"assetprocessor/internal/media"
	"assetprocessor/internal/metrics"
	"assetprocessor/internal/models"
)

// Separator joins consecutive chunk transcripts.
const Separator = "\n\n"

// FanOut submits chunks to a Backend concurrently, at most limit at a time,
// and returns the texts in chunk order regardless of completion order.
type FanOut struct {
	backend     Backend
	limit       int64
	scratchRoot string
	logger      *slog.Logger
	metrics     *metrics.Metrics

	createTemp func(dir, pattern string) (*os.File, error)
	remove     func(name string) error
}

func NewFanOut(backend Backend, limit int, scratchRoot string, logger *slog.Logger, m *metrics.Metrics) *FanOut {
	if limit <= 0 {
		limit = 1
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &FanOut{
		backend:     backend,
		limit:       int64(limit),
		scratchRoot: scratchRoot,
		logger:      logger,
		metrics:     m,
		createTemp:  os.CreateTemp,
		remove:      os.Remove,
	}
}

// TranscribeChunks fails fast: the first chunk error cancels the calls still
// in flight and is returned as a transcription failure.
func (f *FanOut) TranscribeChunks(ctx context.Context, chunks []models.Chunk) ([]models.TranscriptionResult, error) {
	results := make([]models.TranscriptionResult, len(chunks))
	sem := semaphore.NewWeighted(f.limit)
	g, gctx := errgroup.WithContext(ctx)

	for i := range chunks {
		i, chunk := i, chunks[i]
		if err := sem.Acquire(gctx, 1); err != nil {
			break
		}
		g.Go(func() error {
			defer sem.Release(1)
			text, err := f.transcribeChunk(gctx, chunk)
			f.metrics.RecordTranscriptionCall(gctx, err == nil)
			if err != nil {
				return fmt.Errorf("chunk %d (%s): %w", chunk.SequenceIndex, chunk.FileName, err)
			}
			results[i] = models.TranscriptionResult{SequenceIndex: chunk.SequenceIndex, Text: text}
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, custom_errors.NewJobError(custom_errors.KindTranscriptionFailure, "Transcription failed", err)
	}
	if err := ctx.Err(); err != nil {
		return nil, custom_errors.NewJobError(custom_errors.KindTranscriptionFailure, "Transcription cancelled", err)
	}

	sort.Slice(results, func(a, b int) bool {
		return results[a].SequenceIndex < results[b].SequenceIndex
	})
	return results, nil
}

// Transcribe runs TranscribeChunks and joins the ordered texts.
func (f *FanOut) Transcribe(ctx context.Context, chunks []models.Chunk) (string, error) {
	f.logger.Info("Starting transcription of audio chunks", "chunks", len(chunks))
	results, err := f.TranscribeChunks(ctx, chunks)
	if err != nil {
		return "", err
	}
	return Join(results), nil
}

func (f *FanOut) transcribeChunk(ctx context.Context, chunk models.Chunk) (string, error) {
	tmp, err := f.createTemp(f.scratchRoot, media.ScratchPattern+"-"+sanitizeName(chunk.FileName))
	if err != nil {
		return "", fmt.Errorf("create temp file: %w", err)
	}
	path := tmp.Name()
	defer func() {
		if err := f.remove(path); err != nil && !os.IsNotExist(err) {
			f.logger.Warn("Failed to remove chunk temp file", "path", path, "error", err)
		}
	}()

	_, writeErr := tmp.Write(chunk.Data)
	closeErr := tmp.Close()
	if writeErr != nil {
		return "", fmt.Errorf("write temp file: %w", writeErr)
	}
	if closeErr != nil {
		return "", fmt.Errorf("close temp file: %w", closeErr)
	}

	f.logger.Debug("Transcribing chunk", "index", chunk.SequenceIndex, "file", chunk.FileName)
	text, err := f.backend.Transcribe(ctx, path)
	if err != nil {
		return "", err
	}
	f.logger.Debug("Transcription completed for chunk", "index", chunk.SequenceIndex)
	return text, nil
}

// Join concatenates texts in SequenceIndex order.
func Join(results []models.TranscriptionResult) string {
	ordered := make([]models.TranscriptionResult, len(results))
	copy(ordered, results)
	sort.SliceStable(ordered, func(a, b int) bool {
		return ordered[a].SequenceIndex < ordered[b].SequenceIndex
	})
	texts := make([]string, len(ordered))
	for i, r := range ordered {
		texts[i] = r.Text
	}
	return strings.Join(texts, Separator)
}

func sanitizeName(name string) string {
	if name == "" {
		return "chunk.mp3"
	}
	return strings.NewReplacer("*", "_", "/", "_", "\\", "_").Replace(name)
}
