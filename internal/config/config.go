package config

import (
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/pelletier/go-toml/v2"
)

//go:embed sample_config.toml
var sampleConfig string

// Paths contains directory configuration.
type Paths struct {
	// StaticDir is the artifact root. Episode thumbnails, renditions, and
	// subtitles live in per-episode subtrees beneath it and all stored
	// artifact paths are relative to it.
	StaticDir string `toml:"static_dir"`
	// TmpDir receives uploaded source files awaiting ingestion.
	TmpDir string `toml:"tmp_dir"`
	// DataDir holds the catalog database and the process lock file.
	DataDir string `toml:"data_dir"`
	// LogDir holds background pipeline logs.
	LogDir string `toml:"log_dir"`
}

// Tools names the external binaries the pipeline spawns.
type Tools struct {
	Mediainfo string `toml:"mediainfo"`
	FFmpeg    string `toml:"ffmpeg"`
}

// Thumbnails configures frame extraction.
type Thumbnails struct {
	Count int `toml:"count"`
	Width int `toml:"width"`
}

// Transcode configures the adaptive-bitrate encode.
type Transcode struct {
	HWAccel           string `toml:"hwaccel"`
	VideoCodec        string `toml:"video_codec"`
	Preset            string `toml:"preset"`
	GopSize           int    `toml:"gop_size"`
	SegmentSeconds    int    `toml:"segment_seconds"`
	AudioChannels     int    `toml:"audio_channels"`
	AudioDefaultKbps  int    `toml:"audio_default_kbps"`
	// SubprocessLimit bounds concurrent ffmpeg helper processes during
	// thumbnail and subtitle fan-out. Zero means unbounded.
	SubprocessLimit int `toml:"subprocess_limit"`
	// IngestTimeoutMinutes bounds the synchronous ingest phase
	// (probe + thumbnails + subtitles).
	IngestTimeoutMinutes int `toml:"ingest_timeout_minutes"`
}

// Ladder associates aspect-ratio buckets with a resolution ladder.
type Ladder struct {
	Name   string    `toml:"name"`
	Ratios []float64 `toml:"ratios"`
	Rungs  [][]int   `toml:"rungs"`
}

// RenditionBitrate fixes the video bitrate for a ladder rung height.
type RenditionBitrate struct {
	Height int `toml:"height"`
	Kbps   int `toml:"kbps"`
}

// Logging contains log output configuration.
type Logging struct {
	Level  string `toml:"level"`
	Format string `toml:"format"`
}

// Config encapsulates all configuration values for kinotek.
//
// Configuration sections by subsystem:
//   - Paths: artifact root, upload tmp dir, database and log locations
//   - Tools: external prober/encoder binaries
//   - Thumbnails: sprite extraction count and scale width
//   - Transcode: HLS encode policy (codec, segmenting, audio layout)
//   - Ladder/RenditionBitrate: the ABR policy tables
//   - Logging: log format and level
type Config struct {
	Paths      Paths              `toml:"paths"`
	Tools      Tools              `toml:"tools"`
	Thumbnails Thumbnails         `toml:"thumbnails"`
	Transcode  Transcode          `toml:"transcode"`
	Ladders    []Ladder           `toml:"ladder"`
	Bitrates   []RenditionBitrate `toml:"rendition_bitrate"`
	Logging    Logging            `toml:"logging"`
}

// DefaultConfigPath returns the absolute path to the default configuration
// file location.
func DefaultConfigPath() (string, error) {
	return expandPath("~/.config/kinotek/config.toml")
}

// Load locates, parses, and validates a configuration file. The returned
// config has all path fields expanded and normalized.
func Load(path string) (*Config, string, bool, error) {
	cfg := Default()

	resolvedPath, exists, err := resolveConfigPath(path)
	if err != nil {
		return nil, "", false, err
	}

	if exists {
		file, err := os.Open(resolvedPath)
		if err != nil {
			return nil, "", false, fmt.Errorf("open config: %w", err)
		}
		defer file.Close()

		decoder := toml.NewDecoder(file)
		if err := decoder.Decode(&cfg); err != nil {
			return nil, "", false, fmt.Errorf("parse config: %w", err)
		}
	}

	if err := cfg.normalize(); err != nil {
		return nil, "", false, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, "", false, err
	}

	return &cfg, resolvedPath, exists, nil
}

func resolveConfigPath(path string) (string, bool, error) {
	if path != "" {
		expanded, err := expandPath(path)
		if err != nil {
			return "", false, err
		}
		_, err = os.Stat(expanded)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return expanded, false, nil
			}
			return "", false, fmt.Errorf("stat config: %w", err)
		}
		return expanded, true, nil
	}

	defaultPath, err := DefaultConfigPath()
	if err != nil {
		return "", false, err
	}

	projectPath, err := filepath.Abs("kinotek.toml")
	if err != nil {
		return "", false, err
	}

	if info, err := os.Stat(defaultPath); err == nil && !info.IsDir() {
		return defaultPath, true, nil
	}
	if info, err := os.Stat(projectPath); err == nil && !info.IsDir() {
		return projectPath, true, nil
	}

	return defaultPath, false, nil
}

// EnsureDirectories creates the directories the pipeline writes into.
func (c *Config) EnsureDirectories() error {
	for _, dir := range []string{c.Paths.StaticDir, c.Paths.TmpDir, c.Paths.DataDir, c.Paths.LogDir} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create directory %q: %w", dir, err)
		}
	}
	return nil
}

// DatabasePath returns the catalog database location.
func (c *Config) DatabasePath() string {
	return filepath.Join(c.Paths.DataDir, "catalog.db")
}

// LockPath returns the process lock file location.
func (c *Config) LockPath() string {
	return filepath.Join(c.Paths.DataDir, "kinotek.lock")
}

// SampleConfig returns the embedded annotated sample configuration.
func SampleConfig() string {
	return sampleConfig
}

func expandPath(pathValue string) (string, error) {
	if pathValue == "" {
		return pathValue, nil
	}
	if strings.HasPrefix(pathValue, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home directory: %w", err)
		}
		if pathValue == "~" {
			pathValue = home
		} else if len(pathValue) > 1 && (pathValue[1] == '/' || pathValue[1] == '\\') {
			pathValue = filepath.Join(home, pathValue[2:])
		}
	}
	cleaned := filepath.Clean(pathValue)
	absolute, err := filepath.Abs(cleaned)
	if err != nil {
		return "", fmt.Errorf("resolve absolute path for %q: %w", cleaned, err)
	}
	return absolute, nil
}
