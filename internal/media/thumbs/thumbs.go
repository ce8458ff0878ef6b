// Package thumbs pulls evenly spaced preview frames from a source video into
// a fixed-size thumbnail set used for seek sprites and the episode poster.
package thumbs

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"golang.org/x/sync/errgroup"

	"kinotek/internal/logging"
	"kinotek/internal/services"
)

// DirName is the artifact subdirectory thumbnails live under.
const DirName = "thumbnails"

type runFunc func(ctx context.Context, name string, args ...string) ([]byte, error)

func runCommand(ctx context.Context, name string, args ...string) ([]byte, error) {
	return exec.CommandContext(ctx, name, args...).CombinedOutput()
}

// Extractor captures frames with ffmpeg.
type Extractor struct {
	ffmpeg    string
	staticDir string
	count     int
	width     int
	limit     int
	logger    *slog.Logger
	run       runFunc
}

// Options configures an Extractor.
type Options struct {
	FFmpeg    string
	StaticDir string
	Count     int
	Width     int
	// Limit bounds concurrent capture subprocesses. Zero means unbounded.
	Limit  int
	Logger *slog.Logger
}

// NewExtractor builds an Extractor.
func NewExtractor(opts Options) *Extractor {
	ffmpeg := strings.TrimSpace(opts.FFmpeg)
	if ffmpeg == "" {
		ffmpeg = "ffmpeg"
	}
	return &Extractor{
		ffmpeg:    ffmpeg,
		staticDir: opts.StaticDir,
		count:     opts.Count,
		width:     opts.Width,
		limit:     opts.Limit,
		logger:    logging.NewComponentLogger(opts.Logger, "thumbs"),
		run:       runCommand,
	}
}

// Extract captures the configured number of frames at evenly spaced
// timestamps, skipping the very start and end of the video. All captures run
// concurrently and the returned relative paths are ordered by timestamp. The
// caller owns cleanup of partial output when an individual capture fails.
func (e *Extractor) Extract(ctx context.Context, sourcePath string, durationSeconds int, artifactKey string) ([]string, error) {
	timestamps, err := Timestamps(durationSeconds, e.count)
	if err != nil {
		return nil, services.Wrap(services.ErrValidation, "thumbs", "plan captures", err.Error(), nil)
	}

	outDir := filepath.Join(e.staticDir, DirName, artifactKey)
	if err := os.MkdirAll(outDir, 0o755); err != nil {
		return nil, services.Wrap(services.ErrTransient, "thumbs", "create output dir", "", err)
	}

	e.logger.Debug("extracting thumbnails",
		logging.String(logging.FieldArtifactKey, artifactKey),
		logging.Int("count", len(timestamps)))

	relPaths := make([]string, len(timestamps))
	group, groupCtx := errgroup.WithContext(ctx)
	if e.limit > 0 {
		group.SetLimit(e.limit)
	}
	for i, ts := range timestamps {
		name := fmt.Sprintf("thumb_%02d.webp", i+1)
		relPaths[i] = filepath.ToSlash(filepath.Join(DirName, artifactKey, name))
		outPath := filepath.Join(outDir, name)
		seconds := ts
		group.Go(func() error {
			args := []string{
				"-y",
				"-ss", fmt.Sprintf("%d", seconds),
				"-i", sourcePath,
				"-vframes", "1",
				"-vf", fmt.Sprintf("scale=%d:-1", e.width),
				outPath,
			}
			output, err := e.run(groupCtx, e.ffmpeg, args...)
			if err != nil {
				return services.Wrap(services.ErrExternalTool, "thumbs",
					fmt.Sprintf("capture frame at %ds", seconds),
					strings.TrimSpace(string(output)), err)
			}
			return nil
		})
	}
	if err := group.Wait(); err != nil {
		return nil, err
	}
	return relPaths, nil
}

// Timestamps partitions the duration into count+1 equal steps and returns
// the capture points i*step for i in 1..count. Sources too short to yield
// distinct timestamps are rejected rather than silently producing duplicate
// frames.
func Timestamps(durationSeconds, count int) ([]int, error) {
	if count <= 0 {
		return nil, fmt.Errorf("thumbnail count must be positive, got %d", count)
	}
	step := durationSeconds / (count + 1)
	if step <= 0 {
		return nil, fmt.Errorf("source too short for %d thumbnails (%ds)", count, durationSeconds)
	}
	timestamps := make([]int, count)
	for i := 1; i <= count; i++ {
		timestamps[i-1] = i * step
	}
	return timestamps, nil
}
