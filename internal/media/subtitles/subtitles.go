// Package subtitles extracts embedded text streams from a source container
// and converts them to web-playable WebVTT tracks, naming each track from
// its language and title metadata.
package subtitles

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"golang.org/x/sync/errgroup"

	"kinotek/internal/language"
	"kinotek/internal/logging"
	"kinotek/internal/media/probe"
	"kinotek/internal/services"
	"kinotek/internal/textutil"
)

// DirName is the artifact subdirectory subtitle tracks live under.
const DirName = "subtitles"

// Extracted describes one converted subtitle track.
type Extracted struct {
	// Label is the display name derived from the track metadata, also used
	// as the output file's basename.
	Label string
	// RelPath locates the WebVTT file relative to the static root.
	RelPath string
}

// extensionByCodec is the supported demux-format table. A codec absent here
// cannot be extracted and must fail rather than guess an extension.
var extensionByCodec = map[probe.SubtitleCodec]string{
	probe.CodecSubRip:  "srt",
	probe.CodecASS:     "ass",
	probe.CodecMovText: "mp4",
}

type runFunc func(ctx context.Context, name string, args ...string) ([]byte, error)

func runCommand(ctx context.Context, name string, args ...string) ([]byte, error) {
	return exec.CommandContext(ctx, name, args...).CombinedOutput()
}

// Extractor drives the two-step demux/convert ffmpeg chain.
type Extractor struct {
	ffmpeg    string
	staticDir string
	limit     int
	logger    *slog.Logger
	run       runFunc
}

// Options configures an Extractor.
type Options struct {
	FFmpeg    string
	StaticDir string
	// Limit bounds concurrent per-track subprocess chains. Zero means unbounded.
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
		limit:     opts.Limit,
		logger:    logging.NewComponentLogger(opts.Logger, "subtitles"),
		run:       runCommand,
	}
}

// Extract demuxes each track to its native format, converts it to WebVTT,
// and removes the intermediate file. Tracks process concurrently; the
// returned slice preserves input order. Zero tracks yield zero subprocess
// invocations.
func (e *Extractor) Extract(ctx context.Context, sourcePath string, tracks []probe.SubtitleTrack, artifactKey string) ([]Extracted, error) {
	if len(tracks) == 0 {
		return nil, nil
	}

	outDir := filepath.Join(e.staticDir, DirName, artifactKey)
	if err := os.MkdirAll(outDir, 0o755); err != nil {
		return nil, services.Wrap(services.ErrTransient, "subtitles", "create output dir", "", err)
	}

	labels := trackLabels(tracks)
	results := make([]Extracted, len(tracks))
	group, groupCtx := errgroup.WithContext(ctx)
	if e.limit > 0 {
		group.SetLimit(e.limit)
	}
	for i, track := range tracks {
		group.Go(func() error {
			extracted, err := e.extractTrack(groupCtx, sourcePath, track, labels[i], outDir, artifactKey)
			if err != nil {
				return err
			}
			results[i] = extracted
			return nil
		})
	}
	if err := group.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}

func (e *Extractor) extractTrack(ctx context.Context, sourcePath string, track probe.SubtitleTrack, label, outDir, artifactKey string) (Extracted, error) {
	ext, ok := extensionByCodec[track.Codec]
	if !ok {
		return Extracted{}, services.Wrap(services.ErrValidation, "subtitles",
			fmt.Sprintf("track %d", track.Index),
			fmt.Sprintf("unsupported subtitle codec %q (format %q)", track.Codec, track.RawFormat), nil)
	}

	nativePath := filepath.Join(outDir, label+"."+ext)
	vttPath := filepath.Join(outDir, label+".vtt")

	e.logger.Debug("extracting subtitle track",
		logging.String(logging.FieldArtifactKey, artifactKey),
		logging.Int("track", track.Index),
		logging.String("label", label))

	demuxArgs := []string{
		"-y",
		"-i", sourcePath,
		"-map", fmt.Sprintf("0:s:%d", track.Index),
		"-c:s", "copy",
		nativePath,
	}
	if output, err := e.run(ctx, e.ffmpeg, demuxArgs...); err != nil {
		return Extracted{}, services.Wrap(services.ErrExternalTool, "subtitles",
			fmt.Sprintf("demux track %d", track.Index),
			strings.TrimSpace(string(output)), err)
	}

	convertArgs := []string{"-y", "-i", nativePath, vttPath}
	if output, err := e.run(ctx, e.ffmpeg, convertArgs...); err != nil {
		return Extracted{}, services.Wrap(services.ErrExternalTool, "subtitles",
			fmt.Sprintf("convert track %d", track.Index),
			strings.TrimSpace(string(output)), err)
	}

	if err := os.Remove(nativePath); err != nil {
		e.logger.Warn("failed to remove intermediate subtitle file",
			logging.String("path", nativePath), logging.Error(err))
	}

	return Extracted{
		Label:   label,
		RelPath: filepath.ToSlash(filepath.Join(DirName, artifactKey, label+".vtt")),
	}, nil
}

// TrackLabel derives the display label for a subtitle track:
// "(<language>)_<title>" when the container carries a title, falling back to
// the language's display name. Bracket characters are stripped from titles
// so they cannot corrupt the label syntax.
func TrackLabel(track probe.SubtitleTrack) string {
	name := textutil.StripBrackets(track.Title)
	if name == "" {
		name = language.DisplayName(track.Language)
	}
	return textutil.SanitizeFileName(fmt.Sprintf("(%s)_%s", track.Language, name))
}

// trackLabels derives one label per track. Tracks that would share a label,
// such as two untitled streams in the same language, get the stream index
// appended so every track keeps a distinct output path.
func trackLabels(tracks []probe.SubtitleTrack) []string {
	labels := make([]string, len(tracks))
	counts := make(map[string]int, len(tracks))
	for i, track := range tracks {
		labels[i] = TrackLabel(track)
		counts[labels[i]]++
	}
	for i, track := range tracks {
		if counts[labels[i]] > 1 {
			labels[i] = fmt.Sprintf("%s_%d", labels[i], track.Index)
		}
	}
	return labels
}
