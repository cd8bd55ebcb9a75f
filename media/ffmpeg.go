// Package media drives the ffmpeg toolchain through child processes.
// Everything here is non-blocking from the scheduler's point of view: the
// subprocess runs, its pipes are drained, and completion is awaited.
package media

import (
	"bytes"
	"context"
	"encoding/json"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/videditor/jobrunner/errors"
)

// Defaults for thumbnail extraction.
const (
	DefaultThumbnailWidth   = 640
	DefaultThumbnailHeight  = 360
	DefaultThumbnailQuality = 5 // -q:v scale 2-31, lower is better
)

// Toolchain invokes ffmpeg and ffprobe. An empty binary path falls back to
// the commands on PATH; FFMPEG_BINARY overrides.
type Toolchain struct {
	ffmpegBin  string
	ffprobeBin string
	logger     *zap.SugaredLogger
}

// NewToolchain builds a toolchain with an optional ffmpeg binary override.
// The ffprobe binary is resolved next to a custom ffmpeg when one is given.
func NewToolchain(ffmpegBinary string, logger *zap.SugaredLogger) *Toolchain {
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}

	ffmpegBin := "ffmpeg"
	ffprobeBin := "ffprobe"
	if ffmpegBinary != "" {
		ffmpegBin = ffmpegBinary
		ffprobeBin = filepath.Join(filepath.Dir(ffmpegBinary), "ffprobe")
	}

	return &Toolchain{
		ffmpegBin:  ffmpegBin,
		ffprobeBin: ffprobeBin,
		logger:     logger,
	}
}

// probeFormat mirrors ffprobe's -show_entries format=duration JSON output.
type probeFormat struct {
	Format struct {
		Duration string `json:"duration"`
	} `json:"format"`
}

// Duration probes a video file and returns its duration in seconds.
func (t *Toolchain) Duration(ctx context.Context, videoPath string) (float64, error) {
	stdout, err := t.run(ctx, t.ffprobeBin,
		"-v", "error",
		"-show_entries", "format=duration",
		"-of", "json",
		videoPath,
	)
	if err != nil {
		return 0, err
	}

	var probe probeFormat
	if err := json.Unmarshal(stdout, &probe); err != nil {
		return 0, errors.Wrap(err, "failed to parse ffprobe output")
	}

	duration, err := strconv.ParseFloat(strings.TrimSpace(probe.Format.Duration), 64)
	if err != nil {
		return 0, errors.Wrapf(err, "invalid duration %q from ffprobe", probe.Format.Duration)
	}

	t.logger.Debugw("Probed video duration", "path", videoPath, "duration_seconds", duration)
	return duration, nil
}

// ThumbnailOptions controls frame extraction. Zero values take the package
// defaults; a nil Timestamp extracts at 25% of the video's duration.
type ThumbnailOptions struct {
	Timestamp *float64
	Width     int
	Height    int
	Quality   int
}

// ExtractThumbnail renders one letterboxed JPEG frame from the video.
func (t *Toolchain) ExtractThumbnail(ctx context.Context, videoPath, outputPath string, opts ThumbnailOptions) error {
	if opts.Width == 0 {
		opts.Width = DefaultThumbnailWidth
	}
	if opts.Height == 0 {
		opts.Height = DefaultThumbnailHeight
	}
	if opts.Quality == 0 {
		opts.Quality = DefaultThumbnailQuality
	}

	var timestamp float64
	if opts.Timestamp != nil {
		timestamp = *opts.Timestamp
	} else {
		duration, err := t.Duration(ctx, videoPath)
		if err != nil {
			return err
		}
		timestamp = duration * 0.25
	}

	scale := FrameFilter(opts.Width, opts.Height)

	if _, err := t.run(ctx, t.ffmpegBin,
		"-ss", formatSeconds(timestamp),
		"-i", videoPath,
		"-vframes", "1",
		"-vf", scale,
		"-q:v", strconv.Itoa(opts.Quality),
		"-y",
		outputPath,
	); err != nil {
		return err
	}

	t.logger.Debugw("Extracted thumbnail",
		"video_path", videoPath,
		"output_path", outputPath,
		"timestamp", timestamp,
	)
	return nil
}

// ExtractClip cuts [startTime, endTime) out of the video with stream copy.
// No re-encode keeps the cut fast; boundaries snap to the nearest keyframe.
func (t *Toolchain) ExtractClip(ctx context.Context, videoPath, outputPath string, startTime, endTime float64) error {
	if endTime <= startTime {
		return errors.Newf("clip end %.3f must be after start %.3f", endTime, startTime)
	}

	if _, err := t.run(ctx, t.ffmpegBin,
		"-ss", formatSeconds(startTime),
		"-i", videoPath,
		"-t", formatSeconds(endTime-startTime),
		"-c", "copy",
		"-avoid_negative_ts", "make_zero",
		"-y",
		outputPath,
	); err != nil {
		return err
	}

	t.logger.Debugw("Extracted clip",
		"video_path", videoPath,
		"output_path", outputPath,
		"start", startTime,
		"end", endTime,
	)
	return nil
}

// FrameFilter builds the scale+pad filter that letterboxes a frame into
// width x height while preserving aspect ratio.
func FrameFilter(width, height int) string {
	w := strconv.Itoa(width)
	h := strconv.Itoa(height)
	return "scale=" + w + ":" + h + ":force_original_aspect_ratio=decrease," +
		"pad=" + w + ":" + h + ":(ow-iw)/2:(oh-ih)/2"
}

// run executes a toolchain binary and returns stdout. A non-zero exit
// surfaces the subprocess stderr in the error.
func (t *Toolchain) run(ctx context.Context, bin string, args ...string) ([]byte, error) {
	cmd := exec.CommandContext(ctx, bin, args...)

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		msg := strings.TrimSpace(stderr.String())
		if msg == "" {
			msg = err.Error()
		}
		return nil, errors.Newf("%s failed: %s", filepath.Base(bin), msg)
	}
	return stdout.Bytes(), nil
}

func formatSeconds(s float64) string {
	return strconv.FormatFloat(s, 'f', 3, 64)
}
