package media

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

// ProbeResult is the container-level metadata needed to plan a split.
type ProbeResult struct {
	SizeBytes       int64
	DurationSeconds float64
}

// Engine is the transcoding engine used by the Chunker.
type Engine interface {
	Probe(ctx context.Context, path string) (ProbeResult, error)
	// Transcode re-encodes input to mp3 at the highest VBR quality.
	Transcode(ctx context.Context, inputPath, outputPath string) error
	// Segment cuts input into consecutive segments of segmentSeconds without
	// re-encoding. outputPattern carries a printf index verb, e.g. x_chunk_%03d.mp3.
	Segment(ctx context.Context, inputPath, outputPattern string, segmentSeconds float64) error
	// ExtractAudioTrack writes the audio stream of a video file as mp3.
	ExtractAudioTrack(ctx context.Context, inputPath, outputPath string) error
}

// FFmpeg implements Engine by shelling out to ffmpeg and ffprobe.
type FFmpeg struct {
	ffmpegPath  string
	ffprobePath string
	runner      commandRunner
}

func NewFFmpeg(ffmpegPath, ffprobePath string) *FFmpeg {
	return newFFmpeg(ffmpegPath, ffprobePath, &execRunner{})
}

func newFFmpeg(ffmpegPath, ffprobePath string, runner commandRunner) *FFmpeg {
	if strings.TrimSpace(ffmpegPath) == "" {
		ffmpegPath = "ffmpeg"
	}
	if strings.TrimSpace(ffprobePath) == "" {
		ffprobePath = "ffprobe"
	}
	return &FFmpeg{ffmpegPath: ffmpegPath, ffprobePath: ffprobePath, runner: runner}
}

type ffprobeOutput struct {
	Format struct {
		Size     string `json:"size"`
		Duration string `json:"duration"`
	} `json:"format"`
}

func (f *FFmpeg) Probe(ctx context.Context, path string) (ProbeResult, error) {
	args := []string{
		"-v", "error",
		"-show_entries", "format=size,duration",
		"-of", "json",
		path,
	}
	res, err := f.run(ctx, "probing", f.ffprobePath, args)
	if err != nil {
		return ProbeResult{}, err
	}

	var out ffprobeOutput
	if err := json.Unmarshal([]byte(res.Stdout), &out); err != nil {
		return ProbeResult{}, &CommandError{Stage: "probing", Message: "cannot parse ffprobe output", Err: err}
	}

	var result ProbeResult
	if out.Format.Size != "" {
		size, err := strconv.ParseInt(out.Format.Size, 10, 64)
		if err != nil {
			return ProbeResult{}, &CommandError{Stage: "probing", Message: fmt.Sprintf("invalid size %q", out.Format.Size), Err: err}
		}
		result.SizeBytes = size
	}
	if out.Format.Duration != "" && out.Format.Duration != "N/A" {
		duration, err := strconv.ParseFloat(out.Format.Duration, 64)
		if err != nil {
			return ProbeResult{}, &CommandError{Stage: "probing", Message: fmt.Sprintf("invalid duration %q", out.Format.Duration), Err: err}
		}
		result.DurationSeconds = duration
	}
	return result, nil
}

func (f *FFmpeg) Transcode(ctx context.Context, inputPath, outputPath string) error {
	args := []string{
		"-hide_banner", "-y",
		"-i", inputPath,
		"-f", "mp3",
		"-acodec", "libmp3lame",
		"-q:a", "0",
		outputPath,
	}
	_, err := f.run(ctx, "transcoding", f.ffmpegPath, args)
	return err
}

func (f *FFmpeg) Segment(ctx context.Context, inputPath, outputPattern string, segmentSeconds float64) error {
	args := []string{
		"-hide_banner", "-y",
		"-i", inputPath,
		"-f", "segment",
		"-segment_time", strconv.FormatFloat(segmentSeconds, 'f', 3, 64),
		"-c", "copy",
		"-reset_timestamps", "1",
		outputPattern,
	}
	_, err := f.run(ctx, "segmenting", f.ffmpegPath, args)
	return err
}

func (f *FFmpeg) ExtractAudioTrack(ctx context.Context, inputPath, outputPath string) error {
	args := []string{
		"-hide_banner", "-y",
		"-i", inputPath,
		"-map", "a",
		"-acodec", "libmp3lame",
		"-q:a", "0",
		outputPath,
	}
	_, err := f.run(ctx, "extracting audio", f.ffmpegPath, args)
	return err
}

func (f *FFmpeg) run(ctx context.Context, stage, name string, args []string) (commandResult, error) {
	res, err := f.runner.Run(ctx, name, args...)
	if err != nil {
		return res, &CommandError{
			Stage:   stage,
			Message: "command failed",
			CommandLog: CommandLog{
				Command:  name,
				Args:     args,
				ExitCode: res.ExitCode,
				Stdout:   res.Stdout,
				Stderr:   res.Stderr,
			},
			Err: err,
		}
	}
	return res, nil
}
