package episode

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"kinotek/internal/catalog"
	"kinotek/internal/fileutil"
	"kinotek/internal/logging"
	"kinotek/internal/media/subtitles"
	"kinotek/internal/services"
)

// EditRequest updates an episode's metadata and reconciles its subtitle set.
// KeepSubtitleIDs lists the stored subtitles that should survive the edit;
// stored subtitles absent from it are removed. NewSubtitleFiles are uploaded
// files to move into the episode's subtitle directory and register.
type EditRequest struct {
	EpisodeID        int64
	Order            int
	Title            string
	Description      string
	Width            int
	Height           int
	PosterPath       string
	SkipIntro        *catalog.SkipRegion
	SkipRecap        *catalog.SkipRegion
	SkipCredits      *catalog.SkipRegion
	ReleaseDate      time.Time
	KeepSubtitleIDs  []int64
	NewSubtitleFiles []string
}

// Edit applies the request. Metadata fields are updated unconditionally.
// Subtitle file deletion failures are logged but do not abort the edit; row
// deletion failures do.
func (r *Reconciler) Edit(ctx context.Context, req EditRequest) (*catalog.Episode, error) {
	episode, err := r.store.GetEpisode(ctx, req.EpisodeID)
	if err != nil {
		return nil, err
	}
	log := r.logger.With(
		logging.Int64(logging.FieldEpisodeID, episode.ID),
		logging.String(logging.FieldArtifactKey, episode.ArtifactKey),
	)

	keep := make(map[int64]bool, len(req.KeepSubtitleIDs))
	for _, id := range req.KeepSubtitleIDs {
		keep[id] = true
	}
	for _, subtitle := range episode.Subtitles {
		if keep[subtitle.ID] {
			continue
		}
		if err := r.store.DeleteSubtitle(ctx, subtitle.ID); err != nil {
			return nil, err
		}
		path := filepath.Join(r.staticDir, subtitle.Src)
		if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
			log.Warn("failed to remove subtitle file", logging.String("path", path), logging.Error(err))
		}
	}

	subtitleDir := filepath.Join(r.staticDir, subtitles.DirName, episode.ArtifactKey)
	for _, upload := range req.NewSubtitleFiles {
		rel := filepath.Join(subtitles.DirName, episode.ArtifactKey, filepath.Base(upload))
		if err := fileutil.MoveFile(upload, filepath.Join(subtitleDir, filepath.Base(upload))); err != nil {
			return nil, services.Wrap(services.ErrValidation, "episode", "edit",
				fmt.Sprintf("failed to store subtitle upload %s", upload), err)
		}
		if _, err := r.store.InsertSubtitle(ctx, episode.ID, rel); err != nil {
			return nil, err
		}
	}

	episode.Order = req.Order
	episode.Title = req.Title
	episode.Description = req.Description
	episode.Width = req.Width
	episode.Height = req.Height
	episode.PosterPath = req.PosterPath
	episode.SkipIntro = req.SkipIntro
	episode.SkipRecap = req.SkipRecap
	episode.SkipCredits = req.SkipCredits
	episode.ReleaseDate = req.ReleaseDate
	if err := r.store.UpdateEpisode(ctx, episode); err != nil {
		return nil, err
	}
	return r.store.GetEpisode(ctx, episode.ID)
}

// Delete removes the episode's three artifact directories and its row.
// Missing directories are tolerated so a partially cleaned episode can still
// be deleted.
func (r *Reconciler) Delete(ctx context.Context, id int64) error {
	episode, err := r.store.GetEpisode(ctx, id)
	if err != nil {
		return err
	}
	if err := r.removeArtifacts(episode.ArtifactKey); err != nil {
		return services.Wrap(services.ErrTransient, "episode", "delete",
			fmt.Sprintf("failed to remove artifacts for episode %d", id), err)
	}
	if err := r.store.DeleteEpisode(ctx, id); err != nil {
		return err
	}
	r.logger.Info("episode deleted",
		logging.Int64(logging.FieldEpisodeID, id),
		logging.String(logging.FieldArtifactKey, episode.ArtifactKey))
	return nil
}
