package media

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"assetprocessor/internal/custom_errors"
	"assetprocessor/internal/models"
)

// Every scratch directory and temp file starts with ScratchPrefix, so the
// janitor can recognise orphans left by a crashed process.
const (
	ScratchPrefix  = "assetprocessor-"
	ScratchPattern = ScratchPrefix + "*"
)

// Chunker turns a raw media buffer into ordered chunks no larger than a bound.
// Each call works in its own scratch directory, removed before returning.
type Chunker struct {
	engine      Engine
	scratchRoot string
	logger      *slog.Logger

	mkdirTemp func(dir, pattern string) (string, error)
	removeAll func(path string) error
	writeFile func(name string, data []byte, perm os.FileMode) error
	readDir   func(name string) ([]os.DirEntry, error)
	readFile  func(name string) ([]byte, error)
}

func NewChunker(engine Engine, scratchRoot string, logger *slog.Logger) *Chunker {
	if logger == nil {
		logger = slog.Default()
	}
	return &Chunker{
		engine:      engine,
		scratchRoot: scratchRoot,
		logger:      logger,
		mkdirTemp:   os.MkdirTemp,
		removeAll:   os.RemoveAll,
		writeFile:   os.WriteFile,
		readDir:     os.ReadDir,
		readFile:    os.ReadFile,
	}
}

// Split chunks an audio buffer. Inputs other than mp3 are transcoded first.
func (c *Chunker) Split(ctx context.Context, data []byte, maxChunkBytes int64, fileName string) ([]models.Chunk, error) {
	return c.withScratch(func(dir string) ([]models.Chunk, error) {
		base, ext := splitName(fileName)
		inputPath := filepath.Join(dir, base+ext)
		if err := c.writeFile(inputPath, data, 0o600); err != nil {
			return nil, fmt.Errorf("write input: %w", err)
		}

		mp3Path := inputPath
		if strings.EqualFold(ext, ".mp3") {
			c.logger.Info("Input is an MP3 file, skipping conversion", "file", fileName)
		} else {
			mp3Path = filepath.Join(dir, base+"_converted.mp3")
			c.logger.Info("Converting input audio to MP3", "file", fileName)
			if err := c.engine.Transcode(ctx, inputPath, mp3Path); err != nil {
				return nil, err
			}
		}
		return c.splitFile(ctx, dir, mp3Path, base, maxChunkBytes)
	})
}

// SplitVideo extracts the audio track of a video buffer and chunks it.
func (c *Chunker) SplitVideo(ctx context.Context, data []byte, maxChunkBytes int64, fileName string) ([]models.Chunk, error) {
	return c.withScratch(func(dir string) ([]models.Chunk, error) {
		base, ext := splitName(fileName)
		inputPath := filepath.Join(dir, base+ext)
		if err := c.writeFile(inputPath, data, 0o600); err != nil {
			return nil, fmt.Errorf("write input: %w", err)
		}

		audioPath := filepath.Join(dir, base+"_audio.mp3")
		if err := c.engine.ExtractAudioTrack(ctx, inputPath, audioPath); err != nil {
			return nil, err
		}
		return c.splitFile(ctx, dir, audioPath, base, maxChunkBytes)
	})
}

func (c *Chunker) withScratch(fn func(dir string) ([]models.Chunk, error)) ([]models.Chunk, error) {
	dir, err := c.mkdirTemp(c.scratchRoot, ScratchPattern)
	if err != nil {
		return nil, fmt.Errorf("create scratch dir: %w", err)
	}
	defer func() {
		if err := c.removeAll(dir); err != nil {
			c.logger.Warn("Failed to remove scratch dir", "dir", dir, "error", err)
		}
	}()
	return fn(dir)
}

func (c *Chunker) splitFile(ctx context.Context, dir, mp3Path, base string, maxChunkBytes int64) ([]models.Chunk, error) {
	if maxChunkBytes <= 0 {
		return nil, fmt.Errorf("invalid max chunk size %d", maxChunkBytes)
	}

	probe, err := c.engine.Probe(ctx, mp3Path)
	if err != nil {
		return nil, err
	}
	if probe.DurationSeconds <= 0 {
		return nil, &CommandError{Stage: "probing", Message: "audio duration is unknown", Err: custom_errors.ErrTranscodeFailure}
	}

	chunkCount := ChunkCount(probe.SizeBytes, maxChunkBytes)
	chunkDuration := probe.DurationSeconds / float64(chunkCount)
	c.logger.Info("Splitting audio",
		"total_size", probe.SizeBytes,
		"duration", probe.DurationSeconds,
		"chunks", chunkCount,
		"chunk_seconds", chunkDuration)

	prefix := base + "_chunk_"
	// The segment muxer expands printf verbs in the whole pattern.
	pattern := filepath.Join(dir, strings.ReplaceAll(prefix, "%", "%%")+"%03d.mp3")
	if err := c.engine.Segment(ctx, mp3Path, pattern, chunkDuration); err != nil {
		return nil, err
	}

	entries, err := c.readDir(dir)
	if err != nil {
		return nil, fmt.Errorf("list chunks: %w", err)
	}
	type segment struct {
		name  string
		index int
	}
	var segments []segment
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || !strings.HasPrefix(name, prefix) || !strings.HasSuffix(name, ".mp3") {
			continue
		}
		index, err := strconv.Atoi(strings.TrimSuffix(strings.TrimPrefix(name, prefix), ".mp3"))
		if err != nil {
			continue
		}
		segments = append(segments, segment{name: name, index: index})
	}
	sort.Slice(segments, func(i, j int) bool { return segments[i].index < segments[j].index })
	if len(segments) == 0 {
		return nil, &CommandError{Stage: "segmenting", Message: "no chunks produced", Err: custom_errors.ErrTranscodeFailure}
	}
	names := make([]string, len(segments))
	for i, seg := range segments {
		names[i] = seg.name
	}

	chunks := make([]models.Chunk, 0, len(names))
	for i, name := range names {
		data, err := c.readFile(filepath.Join(dir, name))
		if err != nil {
			return nil, fmt.Errorf("read chunk %s: %w", name, err)
		}
		size := int64(len(data))
		if size > maxChunkBytes {
			c.logger.Warn("Chunk exceeds the maximum size after splitting", "chunk", name, "size", size, "max", maxChunkBytes)
			return nil, fmt.Errorf("chunk %s is %d bytes: %w", name, size, custom_errors.ErrChunkSizeExceeded)
		}
		chunks = append(chunks, models.Chunk{
			SequenceIndex: i,
			Data:          data,
			ByteSize:      size,
			FileName:      name,
		})
	}
	return chunks, nil
}

// ChunkCount is the number of equal-duration segments needed so that, at a
// constant bitrate, each stays within maxChunkBytes.
func ChunkCount(totalBytes, maxChunkBytes int64) int {
	if totalBytes <= 0 || maxChunkBytes <= 0 {
		return 1
	}
	return int((totalBytes + maxChunkBytes - 1) / maxChunkBytes)
}

func splitName(fileName string) (base, ext string) {
	name := filepath.Base(strings.TrimSpace(fileName))
	if name == "." || name == string(filepath.Separator) || name == "" {
		name = "input"
	}
	ext = filepath.Ext(name)
	base = strings.TrimSuffix(name, ext)
	if base == "" {
		base = "input"
	}
	return base, ext
}
