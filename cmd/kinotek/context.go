package main

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/gofrs/flock"

	"kinotek/internal/catalog"
	"kinotek/internal/config"
	"kinotek/internal/episode"
	"kinotek/internal/logging"
	"kinotek/internal/media/probe"
	"kinotek/internal/media/renditions"
	"kinotek/internal/media/subtitles"
	"kinotek/internal/media/thumbs"
	"kinotek/internal/media/transcode"
)

type commandContext struct {
	configFlag *string

	configOnce sync.Once
	config     *config.Config
	configErr  error

	loggerOnce sync.Once
	logger     *slog.Logger
	loggerErr  error
}

func newCommandContext(configFlag *string) *commandContext {
	return &commandContext{configFlag: configFlag}
}

func (c *commandContext) ensureConfig() (*config.Config, error) {
	c.configOnce.Do(func() {
		var path string
		if c.configFlag != nil {
			path = strings.TrimSpace(*c.configFlag)
		}
		cfg, _, _, err := config.Load(path)
		if err != nil {
			c.configErr = err
			return
		}
		if err := cfg.EnsureDirectories(); err != nil {
			c.configErr = err
			return
		}
		c.config = cfg
	})
	return c.config, c.configErr
}

func (c *commandContext) ensureLogger() (*slog.Logger, error) {
	c.loggerOnce.Do(func() {
		cfg, err := c.ensureConfig()
		if err != nil {
			c.loggerErr = err
			return
		}
		c.logger, c.loggerErr = logging.New(logging.Options{
			Level:  cfg.Logging.Level,
			Format: cfg.Logging.Format,
		})
	})
	return c.logger, c.loggerErr
}

// withStore opens the catalog for the duration of one command.
func (c *commandContext) withStore(fn func(*config.Config, *catalog.Store) error) error {
	cfg, err := c.ensureConfig()
	if err != nil {
		return err
	}
	store, err := catalog.Open(cfg.DatabasePath())
	if err != nil {
		return err
	}
	defer store.Close()
	return fn(cfg, store)
}

// withLockedStore additionally holds the library lock, serializing mutating
// commands against concurrent kinotek invocations.
func (c *commandContext) withLockedStore(fn func(*config.Config, *catalog.Store) error) error {
	cfg, err := c.ensureConfig()
	if err != nil {
		return err
	}
	lock := flock.New(cfg.LockPath())
	ok, err := lock.TryLock()
	if err != nil {
		return fmt.Errorf("acquire library lock: %w", err)
	}
	if !ok {
		return errors.New("another kinotek instance is already modifying the library")
	}
	defer func() { _ = lock.Unlock() }()

	return c.withStore(fn)
}

// buildReconciler wires the full ingest pipeline against a store. Callers
// must Close the reconciler to drain background encodes.
func (c *commandContext) buildReconciler(cfg *config.Config, store *catalog.Store) (*episode.Reconciler, error) {
	logger, err := c.ensureLogger()
	if err != nil {
		return nil, err
	}

	ladders := make([]renditions.Ladder, 0, len(cfg.Ladders))
	for _, ladder := range cfg.Ladders {
		rungs := make([]renditions.Rung, 0, len(ladder.Rungs))
		for _, pair := range ladder.Rungs {
			rungs = append(rungs, renditions.Rung{Width: pair[0], Height: pair[1]})
		}
		ladders = append(ladders, renditions.Ladder{Name: ladder.Name, Ratios: ladder.Ratios, Rungs: rungs})
	}
	planner, err := renditions.NewPlanner(ladders)
	if err != nil {
		return nil, err
	}

	bitrates := make(map[int]int, len(cfg.Bitrates))
	for _, entry := range cfg.Bitrates {
		bitrates[entry.Height] = entry.Kbps
	}

	return episode.New(episode.Options{
		Store:   store,
		Prober:  probe.NewClient(cfg.Tools.Mediainfo, logger),
		Planner: planner,
		Thumbs: thumbs.NewExtractor(thumbs.Options{
			FFmpeg:    cfg.Tools.FFmpeg,
			StaticDir: cfg.Paths.StaticDir,
			Count:     cfg.Thumbnails.Count,
			Width:     cfg.Thumbnails.Width,
			Limit:     cfg.Transcode.SubprocessLimit,
			Logger:    logger,
		}),
		Subtitles: subtitles.NewExtractor(subtitles.Options{
			FFmpeg:    cfg.Tools.FFmpeg,
			StaticDir: cfg.Paths.StaticDir,
			Limit:     cfg.Transcode.SubprocessLimit,
			Logger:    logger,
		}),
		Transcoder: transcode.NewEngine(cfg.Tools.FFmpeg, cfg.Paths.StaticDir, transcode.Options{
			HWAccel:          cfg.Transcode.HWAccel,
			VideoCodec:       cfg.Transcode.VideoCodec,
			Preset:           cfg.Transcode.Preset,
			GopSize:          cfg.Transcode.GopSize,
			SegmentSeconds:   cfg.Transcode.SegmentSeconds,
			AudioChannels:    cfg.Transcode.AudioChannels,
			AudioDefaultKbps: cfg.Transcode.AudioDefaultKbps,
		}, bitrates, logger),
		StaticDir:     cfg.Paths.StaticDir,
		LogDir:        cfg.Paths.LogDir,
		LogLevel:      cfg.Logging.Level,
		IngestTimeout: time.Duration(cfg.Transcode.IngestTimeoutMinutes) * time.Minute,
		Logger:        logger,
	}), nil
}
