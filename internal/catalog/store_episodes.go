package catalog

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"kinotek/internal/services"
)

const episodeColumns = `id, season_id, order_num, title, description, artifact_key,
	duration, width, height, poster_path, thumbnails_json, manifest_path,
	status, error_message,
	skip_intro_start, skip_intro_end, skip_recap_start, skip_recap_end,
	skip_credits_start, skip_credits_end,
	release_date, created_at, updated_at`

// CreateEpisode inserts a new episode row in processing state. A duplicate
// (season, order) pair is reported as a validation error; the UNIQUE
// constraint makes the check hold even for concurrent creations.
func (s *Store) CreateEpisode(ctx context.Context, episode *Episode) error {
	if episode == nil {
		return errors.New("episode is nil")
	}
	now := time.Now().UTC()
	episode.CreatedAt = now
	episode.UpdatedAt = now
	if episode.Status == "" {
		episode.Status = EpisodeProcessing
	}

	thumbnails, err := json.Marshal(episode.ThumbnailPaths)
	if err != nil {
		return fmt.Errorf("marshal thumbnails: %w", err)
	}

	res, err := s.db.ExecContext(ctx,
		`INSERT INTO episodes (
			season_id, order_num, title, description, artifact_key,
			duration, width, height, poster_path, thumbnails_json, manifest_path,
			status, error_message,
			skip_intro_start, skip_intro_end, skip_recap_start, skip_recap_end,
			skip_credits_start, skip_credits_end,
			release_date, created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		episode.SeasonID, episode.Order, episode.Title, episode.Description, episode.ArtifactKey,
		episode.Duration, episode.Width, episode.Height, episode.PosterPath, string(thumbnails), episode.ManifestPath,
		episode.Status, episode.ErrorMessage,
		regionStart(episode.SkipIntro), regionEnd(episode.SkipIntro),
		regionStart(episode.SkipRecap), regionEnd(episode.SkipRecap),
		regionStart(episode.SkipCredits), regionEnd(episode.SkipCredits),
		nullableTime(episode.ReleaseDate), timestamp(now), timestamp(now),
	)
	if err != nil {
		return wrapUnique(err, "insert episode",
			fmt.Sprintf("episode %d already exists in season %d", episode.Order, episode.SeasonID))
	}
	episode.ID, err = res.LastInsertId()
	if err != nil {
		return fmt.Errorf("last insert id: %w", err)
	}
	return nil
}

// EpisodeExists reports whether a (season, order) pair is already taken.
func (s *Store) EpisodeExists(ctx context.Context, seasonID int64, order int) (bool, error) {
	var count int
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(1) FROM episodes WHERE season_id = ? AND order_num = ?`,
		seasonID, order).Scan(&count)
	if err != nil {
		return false, fmt.Errorf("count episodes: %w", err)
	}
	return count > 0, nil
}

// GetEpisode loads an episode and its subtitles by id.
func (s *Store) GetEpisode(ctx context.Context, id int64) (*Episode, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+episodeColumns+` FROM episodes WHERE id = ?`, id)
	episode, err := scanEpisode(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, services.Wrap(services.ErrNotFound, "catalog", "get episode",
			fmt.Sprintf("episode %d not found", id), nil)
	}
	if err != nil {
		return nil, err
	}
	episode.Subtitles, err = s.ListSubtitles(ctx, episode.ID)
	if err != nil {
		return nil, err
	}
	return episode, nil
}

// GetEpisodeByOrder loads an episode by its season and order number.
func (s *Store) GetEpisodeByOrder(ctx context.Context, seasonID int64, order int) (*Episode, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+episodeColumns+` FROM episodes WHERE season_id = ? AND order_num = ?`,
		seasonID, order)
	episode, err := scanEpisode(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, services.Wrap(services.ErrNotFound, "catalog", "get episode",
			fmt.Sprintf("episode %d not found in season %d", order, seasonID), nil)
	}
	if err != nil {
		return nil, err
	}
	episode.Subtitles, err = s.ListSubtitles(ctx, episode.ID)
	if err != nil {
		return nil, err
	}
	return episode, nil
}

// ListEpisodes returns a season's episodes ordered by order number.
func (s *Store) ListEpisodes(ctx context.Context, seasonID int64) ([]*Episode, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+episodeColumns+` FROM episodes WHERE season_id = ? ORDER BY order_num`, seasonID)
	if err != nil {
		return nil, fmt.Errorf("list episodes: %w", err)
	}
	defer rows.Close()

	var result []*Episode
	for rows.Next() {
		episode, err := scanEpisode(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, episode)
	}
	return result, rows.Err()
}

// UpdateEpisode persists the mutable episode fields set by an edit.
func (s *Store) UpdateEpisode(ctx context.Context, episode *Episode) error {
	if episode == nil {
		return errors.New("episode is nil")
	}
	episode.UpdatedAt = time.Now().UTC()
	_, err := s.db.ExecContext(ctx,
		`UPDATE episodes SET
			order_num = ?, title = ?, description = ?, width = ?, height = ?,
			poster_path = ?,
			skip_intro_start = ?, skip_intro_end = ?,
			skip_recap_start = ?, skip_recap_end = ?,
			skip_credits_start = ?, skip_credits_end = ?,
			release_date = ?, updated_at = ?
		 WHERE id = ?`,
		episode.Order, episode.Title, episode.Description, episode.Width, episode.Height,
		episode.PosterPath,
		regionStart(episode.SkipIntro), regionEnd(episode.SkipIntro),
		regionStart(episode.SkipRecap), regionEnd(episode.SkipRecap),
		regionStart(episode.SkipCredits), regionEnd(episode.SkipCredits),
		nullableTime(episode.ReleaseDate), timestamp(episode.UpdatedAt),
		episode.ID,
	)
	if err != nil {
		return wrapUnique(err, "update episode",
			fmt.Sprintf("episode %d already exists in season %d", episode.Order, episode.SeasonID))
	}
	return nil
}

// MarkEpisodeReady records the finished streaming package and flips the
// episode out of processing.
func (s *Store) MarkEpisodeReady(ctx context.Context, id int64, manifestPath string) error {
	return s.setStatus(ctx, id, EpisodeReady, manifestPath, "")
}

// MarkEpisodeFailed records a background pipeline failure so the episode is
// distinguishable from one still in progress.
func (s *Store) MarkEpisodeFailed(ctx context.Context, id int64, message string) error {
	return s.setStatus(ctx, id, EpisodeFailed, "", message)
}

func (s *Store) setStatus(ctx context.Context, id int64, status EpisodeStatus, manifestPath, message string) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE episodes SET status = ?, manifest_path = ?, error_message = ?, updated_at = ? WHERE id = ?`,
		status, manifestPath, message, timestamp(time.Now()), id)
	if err != nil {
		return fmt.Errorf("update episode status: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if affected == 0 {
		return services.Wrap(services.ErrNotFound, "catalog", "update episode status",
			fmt.Sprintf("episode %d not found", id), nil)
	}
	return nil
}

// DeleteEpisode removes the episode row; subtitle rows cascade.
func (s *Store) DeleteEpisode(ctx context.Context, id int64) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM episodes WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete episode: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if affected == 0 {
		return services.Wrap(services.ErrNotFound, "catalog", "delete episode",
			fmt.Sprintf("episode %d not found", id), nil)
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanEpisode(row rowScanner) (*Episode, error) {
	var episode Episode
	var thumbnails string
	var release sql.NullString
	var created, updated string
	var introStart, introEnd, recapStart, recapEnd, creditsStart, creditsEnd sql.NullInt64

	err := row.Scan(
		&episode.ID, &episode.SeasonID, &episode.Order, &episode.Title, &episode.Description, &episode.ArtifactKey,
		&episode.Duration, &episode.Width, &episode.Height, &episode.PosterPath, &thumbnails, &episode.ManifestPath,
		&episode.Status, &episode.ErrorMessage,
		&introStart, &introEnd, &recapStart, &recapEnd,
		&creditsStart, &creditsEnd,
		&release, &created, &updated,
	)
	if err != nil {
		return nil, err
	}

	if err := json.Unmarshal([]byte(thumbnails), &episode.ThumbnailPaths); err != nil {
		return nil, fmt.Errorf("decode thumbnails for episode %d: %w", episode.ID, err)
	}
	episode.SkipIntro = region(introStart, introEnd)
	episode.SkipRecap = region(recapStart, recapEnd)
	episode.SkipCredits = region(creditsStart, creditsEnd)
	if release.Valid {
		episode.ReleaseDate = parseTimestamp(release.String)
	}
	episode.CreatedAt = parseTimestamp(created)
	episode.UpdatedAt = parseTimestamp(updated)
	return &episode, nil
}

func region(start, end sql.NullInt64) *SkipRegion {
	if !start.Valid {
		return nil
	}
	r := &SkipRegion{Start: int(start.Int64)}
	if end.Valid {
		r.End = int(end.Int64)
	}
	return r
}

func regionStart(r *SkipRegion) any {
	if r == nil {
		return nil
	}
	return r.Start
}

func regionEnd(r *SkipRegion) any {
	if r == nil {
		return nil
	}
	return r.End
}

func nullableTime(t time.Time) any {
	if t.IsZero() {
		return nil
	}
	return timestamp(t)
}
