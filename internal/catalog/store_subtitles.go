package catalog

import (
	"context"
	"fmt"
)

// InsertSubtitle attaches a subtitle reference to an episode.
func (s *Store) InsertSubtitle(ctx context.Context, episodeID int64, src string) (*Subtitle, error) {
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO subtitles (episode_id, src) VALUES (?, ?)`, episodeID, src)
	if err != nil {
		return nil, fmt.Errorf("insert subtitle: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("last insert id: %w", err)
	}
	return &Subtitle{ID: id, EpisodeID: episodeID, Src: src}, nil
}

// ListSubtitles returns an episode's subtitle references in insertion order.
func (s *Store) ListSubtitles(ctx context.Context, episodeID int64) ([]Subtitle, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, episode_id, src FROM subtitles WHERE episode_id = ? ORDER BY id`, episodeID)
	if err != nil {
		return nil, fmt.Errorf("list subtitles: %w", err)
	}
	defer rows.Close()

	var result []Subtitle
	for rows.Next() {
		var subtitle Subtitle
		if err := rows.Scan(&subtitle.ID, &subtitle.EpisodeID, &subtitle.Src); err != nil {
			return nil, fmt.Errorf("scan subtitle: %w", err)
		}
		result = append(result, subtitle)
	}
	return result, rows.Err()
}

// DeleteSubtitle removes a single subtitle reference.
func (s *Store) DeleteSubtitle(ctx context.Context, id int64) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM subtitles WHERE id = ?`, id); err != nil {
		return fmt.Errorf("delete subtitle: %w", err)
	}
	return nil
}
