package episode

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/google/uuid"

	"kinotek/internal/catalog"
	"kinotek/internal/fileutil"
	"kinotek/internal/logging"
	"kinotek/internal/media/probe"
	"kinotek/internal/media/renditions"
	"kinotek/internal/services"
)

// CreateRequest carries everything needed to ingest one uploaded episode.
type CreateRequest struct {
	SeasonID    int64
	Order       int
	Title       string
	Description string
	// SourcePath is the uploaded file in the tmp area. The background chain
	// deletes it once the encode finishes, successfully or not.
	SourcePath  string
	SkipIntro   *catalog.SkipRegion
	SkipRecap   *catalog.SkipRegion
	SkipCredits *catalog.SkipRegion
	ReleaseDate time.Time
}

// Create runs the synchronous ingest phase (probe, plan, thumbnails,
// subtitles, row insert) and fires the background transcode chain. The
// returned episode is in processing state; the caller does not wait for the
// encode.
//
// Any synchronous failure aborts before a row is written and cleans up the
// partial artifact directories. The source upload is left in place so the
// caller can retry.
func (r *Reconciler) Create(ctx context.Context, req CreateRequest) (*catalog.Episode, error) {
	if req.SourcePath == "" {
		return nil, services.Wrap(services.ErrValidation, "episode", "create", "no source file supplied", nil)
	}
	if !fileutil.Exists(req.SourcePath) {
		return nil, services.Wrap(services.ErrValidation, "episode", "create",
			fmt.Sprintf("source file %s does not exist", req.SourcePath), nil)
	}

	exists, err := r.store.EpisodeExists(ctx, req.SeasonID, req.Order)
	if err != nil {
		return nil, err
	}
	if exists {
		return nil, services.Wrap(services.ErrValidation, "episode", "create",
			fmt.Sprintf("episode %d already exists in season %d", req.Order, req.SeasonID), nil)
	}

	if r.ingestTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.ingestTimeout)
		defer cancel()
	}

	artifactKey := uuid.NewString()
	log := r.logger.With(
		logging.Int64(logging.FieldSeasonID, req.SeasonID),
		logging.String(logging.FieldArtifactKey, artifactKey),
	)
	log.Info("ingest started", logging.String("source", req.SourcePath))

	result, err := r.prober.Probe(ctx, req.SourcePath)
	if err != nil {
		return nil, err
	}

	plan, err := r.planner.Plan(result.Resolution)
	if err != nil {
		return nil, err
	}

	episode, err := r.buildArtifacts(ctx, req, result, artifactKey)
	if err != nil {
		if cleanupErr := r.removeArtifacts(artifactKey); cleanupErr != nil {
			log.Warn("failed to clean up partial artifacts", logging.Error(cleanupErr))
		}
		return nil, err
	}

	log.Info("ingest complete, encode queued",
		logging.Int64(logging.FieldEpisodeID, episode.ID),
		logging.Int("renditions", len(plan)),
		logging.Int("audio_tracks", len(result.AudioTracks)))

	r.spawnTranscode(episode.ID, artifactKey, req.SourcePath, plan, result.AudioTracks)
	return episode, nil
}

// buildArtifacts runs the synchronous extractors and persists the episode and
// subtitle rows.
func (r *Reconciler) buildArtifacts(ctx context.Context, req CreateRequest, result probe.Result, artifactKey string) (*catalog.Episode, error) {
	thumbnails, err := r.thumbs.Extract(ctx, req.SourcePath, result.DurationSeconds, artifactKey)
	if err != nil {
		return nil, err
	}

	extracted, err := r.subtitles.Extract(ctx, req.SourcePath, result.SubtitleTracks, artifactKey)
	if err != nil {
		return nil, err
	}

	episode := &catalog.Episode{
		SeasonID:       req.SeasonID,
		Order:          req.Order,
		Title:          req.Title,
		Description:    req.Description,
		ArtifactKey:    artifactKey,
		Duration:       result.DurationSeconds,
		Width:          result.Resolution.Width,
		Height:         result.Resolution.Height,
		PosterPath:     thumbnails[len(thumbnails)/2],
		ThumbnailPaths: thumbnails,
		Status:         catalog.EpisodeProcessing,
		SkipIntro:      req.SkipIntro,
		SkipRecap:      req.SkipRecap,
		SkipCredits:    req.SkipCredits,
		ReleaseDate:    req.ReleaseDate,
	}
	if err := r.store.CreateEpisode(ctx, episode); err != nil {
		return nil, err
	}

	for _, track := range extracted {
		subtitle, err := r.store.InsertSubtitle(ctx, episode.ID, track.RelPath)
		if err != nil {
			// The row must not outlive a failed sync phase; without a
			// background chain nothing would ever move it out of processing.
			if delErr := r.store.DeleteEpisode(ctx, episode.ID); delErr != nil {
				r.logger.Warn("failed to remove episode row after subtitle insert failure",
					logging.Int64(logging.FieldEpisodeID, episode.ID), logging.Error(delErr))
			}
			return nil, err
		}
		episode.Subtitles = append(episode.Subtitles, *subtitle)
	}
	return episode, nil
}

// spawnTranscode starts the background encode chain for one episode. The
// chain runs without a deadline; its outcome, success or failure, is
// delivered on the reconciler's completion channel.
func (r *Reconciler) spawnTranscode(episodeID int64, artifactKey, sourcePath string, plan []renditions.Rung, audioTracks []probe.AudioTrack) {
	r.tasks.Add(1)
	go func() {
		defer r.tasks.Done()
		outcome := transcodeOutcome{
			episodeID:   episodeID,
			artifactKey: artifactKey,
			sourcePath:  sourcePath,
		}
		outcome.manifestPath, outcome.err = r.runTranscodeChain(episodeID, sourcePath, plan, audioTracks, artifactKey)
		r.outcomes <- outcome
	}()
}

func (r *Reconciler) runTranscodeChain(episodeID int64, sourcePath string, plan []renditions.Rung, audioTracks []probe.AudioTrack, artifactKey string) (string, error) {
	ctx := context.Background()
	log, closer := r.chainLogger(artifactKey)
	if closer != nil {
		defer closer.Close()
	}
	log = log.With(
		logging.Int64(logging.FieldEpisodeID, episodeID),
		logging.String(logging.FieldArtifactKey, artifactKey),
	)

	started := time.Now()
	log.Info("transcode chain started",
		logging.String("source", sourcePath),
		logging.Int("renditions", len(plan)),
		logging.Int("audio_tracks", len(audioTracks)))

	manifestRel, err := r.transcoder.Transcode(ctx, sourcePath, plan, audioTracks, artifactKey)
	if err != nil {
		log.Error("transcode failed", logging.Error(err), logging.Duration("elapsed", time.Since(started)))
		return "", err
	}
	if err := r.augment(filepath.Join(r.staticDir, manifestRel), audioTracks); err != nil {
		log.Error("manifest augmentation failed", logging.Error(err), logging.Duration("elapsed", time.Since(started)))
		return "", err
	}

	log.Info("transcode chain finished",
		logging.String("manifest", manifestRel),
		logging.Duration("elapsed", time.Since(started)))
	return manifestRel, nil
}

// chainLogger opens the append-only file log for one background chain. An
// unset log directory or an open failure falls back to the process logger so
// the encode never blocks on logging.
func (r *Reconciler) chainLogger(artifactKey string) (*slog.Logger, io.Closer) {
	if r.logDir == "" {
		return r.logger, nil
	}
	path := filepath.Join(r.logDir, "transcode-"+artifactKey+".log")
	log, closer, err := logging.NewFileLogger(path, r.logLevel)
	if err != nil {
		r.logger.Warn("chain log file unavailable",
			logging.String("path", path), logging.Error(err))
		return r.logger, nil
	}
	return log, closer
}
