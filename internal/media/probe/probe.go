package probe

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"os/exec"
	"strings"

	"kinotek/internal/logging"
	"kinotek/internal/services"
)

// Resolution is a source video's pixel dimensions.
type Resolution struct {
	Width  int
	Height int
}

// AudioTrack describes one audio stream. Index is the 0-based position among
// the container's audio streams, not the global stream index.
type AudioTrack struct {
	Index    int
	Bitrate  string // raw bits-per-second string from the container, may be empty
	Title    string
	Language string
	Default  bool
	Channels int
	CodecID  string
	Format   string
}

// SubtitleCodec is the small fixed set of text codecs the pipeline can
// extract. Anything else is reported as CodecUnknown rather than coerced.
type SubtitleCodec string

const (
	CodecSubRip  SubtitleCodec = "subrip"
	CodecASS     SubtitleCodec = "ass"
	CodecMovText SubtitleCodec = "mov_text"
	CodecUnknown SubtitleCodec = "unknown"
)

// SubtitleTrack describes one text stream. Index is the 0-based position
// among the container's text streams and selects the stream during
// extraction.
type SubtitleTrack struct {
	Index     int
	Codec     SubtitleCodec
	RawFormat string // container-reported format, kept for diagnostics
	Language  string
	Title     string
}

// Result is the normalized description of one probed source file. It is
// immutable once produced.
type Result struct {
	DurationSeconds int
	Resolution      Resolution
	AudioTracks     []AudioTrack
	SubtitleTracks  []SubtitleTrack
}

// Prober is the contract the reconciler needs from the media prober.
type Prober interface {
	Probe(ctx context.Context, path string) (Result, error)
}

// Client invokes the mediainfo binary.
type Client struct {
	binary string
	logger *slog.Logger
}

// NewClient builds a Client around the given mediainfo binary name.
func NewClient(binary string, logger *slog.Logger) *Client {
	binary = strings.TrimSpace(binary)
	if binary == "" {
		binary = "mediainfo"
	}
	return &Client{binary: binary, logger: logging.NewComponentLogger(logger, "probe")}
}

// Probe runs mediainfo against the path and parses its JSON output. The full
// stdout is buffered before parsing; mediainfo reports on one file at a time
// so the payload stays modest, but nothing here assumes a size limit.
func (c *Client) Probe(ctx context.Context, path string) (Result, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return Result{}, services.Wrap(services.ErrValidation, "probe", "inspect", "empty source path", nil)
	}

	cmd := exec.CommandContext(ctx, c.binary, "--Output=JSON", path)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	c.logger.Debug("running mediainfo", logging.String("path", path))
	if err := cmd.Run(); err != nil {
		detail := strings.TrimSpace(stderr.String())
		if detail == "" {
			detail = "mediainfo exited with an error"
		}
		return Result{}, services.Wrap(services.ErrExternalTool, "probe", "run mediainfo", detail, err)
	}

	result, err := Parse(stdout.Bytes())
	if err != nil {
		return Result{}, services.Wrap(services.ErrExternalTool, "probe", "parse mediainfo output", "", err)
	}
	c.logger.Debug("probe complete",
		logging.Int("duration_seconds", result.DurationSeconds),
		logging.Int("audio_tracks", len(result.AudioTracks)),
		logging.Int("subtitle_tracks", len(result.SubtitleTracks)))
	return result, nil
}

var errNoVideoStream = errors.New("no video stream found")
