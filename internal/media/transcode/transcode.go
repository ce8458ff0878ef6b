// Package transcode builds and executes the single multi-rendition,
// multi-audio-track HLS encoding invocation that produces an episode's
// adaptive streaming package.
package transcode

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"kinotek/internal/language"
	"kinotek/internal/logging"
	"kinotek/internal/media/probe"
	"kinotek/internal/media/renditions"
	"kinotek/internal/services"
)

// DirName is the artifact subdirectory the streaming package lives under.
const DirName = "video"

// MasterManifestName is the HLS master playlist filename.
const MasterManifestName = "master.m3u8"

// Options fixes the encode policy applied to every episode.
type Options struct {
	// HWAccel names the ffmpeg hardware acceleration mode. Empty disables
	// hardware decoding.
	HWAccel          string
	VideoCodec       string
	Preset           string
	GopSize          int
	SegmentSeconds   int
	AudioChannels    int
	AudioDefaultKbps int
}

type runFunc func(ctx context.Context, name string, args []string) (diagnostics string, err error)

// Engine drives the external encoder.
type Engine struct {
	ffmpeg    string
	staticDir string
	opts      Options
	// bitrateByHeight is the fixed rung-height to video bitrate table.
	bitrateByHeight map[int]int
	logger          *slog.Logger
	run             runFunc
}

// NewEngine builds an Engine. bitrateByHeight must cover every rung the
// planner can emit; config validation enforces that upstream.
func NewEngine(ffmpeg, staticDir string, opts Options, bitrateByHeight map[int]int, logger *slog.Logger) *Engine {
	ffmpeg = strings.TrimSpace(ffmpeg)
	if ffmpeg == "" {
		ffmpeg = "ffmpeg"
	}
	return &Engine{
		ffmpeg:          ffmpeg,
		staticDir:       staticDir,
		opts:            opts,
		bitrateByHeight: bitrateByHeight,
		logger:          logging.NewComponentLogger(logger, "transcode"),
		run:             runEncoder,
	}
}

// Transcode encodes the source into one segmented rendition set per ladder
// rung plus a master manifest, re-encoding every audio track into a shared
// audio group. It blocks until the encoder exits; callers run it from a
// background task. The returned path is relative to the static root.
func (e *Engine) Transcode(ctx context.Context, sourcePath string, plan []renditions.Rung, audioTracks []probe.AudioTrack, artifactKey string) (string, error) {
	if len(plan) == 0 {
		return "", services.Wrap(services.ErrValidation, "transcode", "build command", "empty rendition plan", nil)
	}
	for _, rung := range plan {
		if _, ok := e.bitrateByHeight[rung.Height]; !ok {
			return "", services.Wrap(services.ErrConfiguration, "transcode", "build command",
				fmt.Sprintf("no bitrate configured for %dp", rung.Height), nil)
		}
	}

	outDir := filepath.Join(e.staticDir, DirName, artifactKey)
	if err := os.MkdirAll(outDir, 0o755); err != nil {
		return "", services.Wrap(services.ErrTransient, "transcode", "create output dir", "", err)
	}

	args := e.buildArgs(sourcePath, plan, audioTracks, outDir)
	e.logger.Info("starting transcode",
		logging.String(logging.FieldArtifactKey, artifactKey),
		logging.Int("renditions", len(plan)),
		logging.Int("audio_tracks", len(audioTracks)))
	e.logger.Debug("encoder invocation", logging.String("args", strings.Join(args, " ")))

	if diagnostics, err := e.run(ctx, e.ffmpeg, args); err != nil {
		return "", services.Wrap(services.ErrExternalTool, "transcode", "run encoder", diagnostics, err)
	}

	return filepath.ToSlash(filepath.Join(DirName, artifactKey, MasterManifestName)), nil
}

// buildArgs assembles the full encoder argument list. The video stream is
// mapped once per rendition; every audio track is mapped once and re-encoded
// to the fixed channel count with a bitrate derived from the source track.
func (e *Engine) buildArgs(sourcePath string, plan []renditions.Rung, audioTracks []probe.AudioTrack, outDir string) []string {
	args := []string{"-y"}
	if hwaccel := strings.TrimSpace(e.opts.HWAccel); hwaccel != "" {
		args = append(args, "-hwaccel", hwaccel)
	}
	args = append(args, "-i", sourcePath,
		"-preset", e.opts.Preset,
		"-g", fmt.Sprintf("%d", e.opts.GopSize),
		"-sc_threshold", "0",
	)

	for range plan {
		args = append(args, "-map", "0:v:0")
	}
	for _, track := range audioTracks {
		args = append(args, "-map", fmt.Sprintf("0:a:%d", track.Index))
	}

	for i, rung := range plan {
		args = append(args,
			fmt.Sprintf("-s:v:%d", i), fmt.Sprintf("%dx%d", rung.Width, rung.Height),
			fmt.Sprintf("-b:v:%d", i), fmt.Sprintf("%dk", e.bitrateByHeight[rung.Height]),
		)
	}
	args = append(args, "-c:v", e.opts.VideoCodec, "-c:a", "aac")
	for _, track := range audioTracks {
		args = append(args,
			fmt.Sprintf("-b:a:%d", track.Index), NormalizeAudioBitrate(track.Bitrate, e.opts.AudioDefaultKbps),
			fmt.Sprintf("-ac:a:%d", track.Index), fmt.Sprintf("%d", e.opts.AudioChannels),
		)
	}

	args = append(args,
		"-var_stream_map", e.varStreamMap(plan, audioTracks),
		"-master_pl_name", MasterManifestName,
		"-f", "hls",
		"-hls_time", fmt.Sprintf("%d", e.opts.SegmentSeconds),
		"-hls_playlist_type", "vod",
		"-hls_list_size", "0",
		"-hls_segment_filename", filepath.Join(outDir, "%v", "segment_%03d.ts"),
		filepath.Join(outDir, "%v", "index.m3u8"),
	)
	return args
}

// varStreamMap lays out one variant per rendition plus one alternate audio
// entry per track, all sharing a single audio group. ffmpeg's HLS muxer can
// reference audio entries by URI but cannot give them display names; the
// manifest augmenter rewrites those afterwards.
func (e *Engine) varStreamMap(plan []renditions.Rung, audioTracks []probe.AudioTrack) string {
	entries := make([]string, 0, len(plan)+len(audioTracks))
	for i, rung := range plan {
		entry := fmt.Sprintf("v:%d,name:%s", i, rung.Label())
		if len(audioTracks) > 0 {
			entry += ",agroup:audio"
		}
		entries = append(entries, entry)
	}
	for _, track := range audioTracks {
		entry := fmt.Sprintf("a:%d,agroup:audio,name:%s,language:%s", track.Index, AudioVariantName(track.Index), track.Language)
		if track.Default {
			entry += ",default:yes"
		}
		entries = append(entries, entry)
	}
	return strings.Join(entries, " ")
}

// AudioVariantName returns the encoder-facing variant name for an audio
// track. It doubles as the rendition directory name, so the manifest
// augmenter uses it to locate each track's URI reference.
func AudioVariantName(index int) string {
	return fmt.Sprintf("audio_%d", index)
}

// NormalizeAudioBitrate converts a container-reported bitrate string (raw
// bits per second, or an already suffixed value) into the "<kbps>k" form the
// encoder expects, falling back to defaultKbps when the source value is
// absent or unusable.
func NormalizeAudioBitrate(raw string, defaultKbps int) string {
	cleaned := strings.ToLower(strings.TrimSpace(raw))
	if strings.HasSuffix(cleaned, "k") {
		cleaned = strings.TrimSuffix(cleaned, "k")
		if kbps := parsePositiveInt(cleaned); kbps > 0 {
			return fmt.Sprintf("%dk", kbps)
		}
		return fmt.Sprintf("%dk", defaultKbps)
	}
	if bps := parsePositiveInt(cleaned); bps >= 1000 {
		return fmt.Sprintf("%dk", bps/1000)
	}
	return fmt.Sprintf("%dk", defaultKbps)
}

func parsePositiveInt(value string) int {
	n := 0
	if value == "" {
		return 0
	}
	for _, r := range value {
		if r < '0' || r > '9' {
			return 0
		}
		n = n*10 + int(r-'0')
	}
	return n
}

// AudioTrackTitle returns the human-readable display name for an audio
// track: the container title when present, otherwise the language's display
// name.
func AudioTrackTitle(track probe.AudioTrack) string {
	if title := strings.TrimSpace(track.Title); title != "" {
		return title
	}
	return language.DisplayName(track.Language)
}

// runEncoder executes the encoder, keeping only the tail of its output for
// diagnostics. Verbose transcode logs can reach gigabytes, so the full
// stream is discarded as it arrives.
func runEncoder(ctx context.Context, name string, args []string) (string, error) {
	cmd := exec.CommandContext(ctx, name, args...)
	tail := newTailWriter(16 * 1024)
	cmd.Stdout = tail
	cmd.Stderr = tail
	err := cmd.Run()
	return tail.String(), err
}
