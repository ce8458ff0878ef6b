package catalog

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"kinotek/internal/services"
)

// CreateSeries inserts a new series. Slugs are unique.
func (s *Store) CreateSeries(ctx context.Context, slug, title, description string) (*Series, error) {
	now := time.Now()
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO series (slug, title, description, created_at) VALUES (?, ?, ?, ?)`,
		slug, title, description, timestamp(now),
	)
	if err != nil {
		return nil, wrapUnique(err, "insert series", fmt.Sprintf("series %q already exists", slug))
	}
	id, err := res.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("last insert id: %w", err)
	}
	return &Series{ID: id, Slug: slug, Title: title, Description: description, CreatedAt: now.UTC()}, nil
}

// GetSeriesBySlug looks up a series by its slug.
func (s *Store) GetSeriesBySlug(ctx context.Context, slug string) (*Series, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, slug, title, description, created_at FROM series WHERE slug = ?`, slug)
	return scanSeries(row, slug)
}

// ListSeries returns all series ordered by title.
func (s *Store) ListSeries(ctx context.Context) ([]*Series, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, slug, title, description, created_at FROM series ORDER BY title`)
	if err != nil {
		return nil, fmt.Errorf("list series: %w", err)
	}
	defer rows.Close()

	var result []*Series
	for rows.Next() {
		var entry Series
		var created string
		if err := rows.Scan(&entry.ID, &entry.Slug, &entry.Title, &entry.Description, &created); err != nil {
			return nil, fmt.Errorf("scan series: %w", err)
		}
		entry.CreatedAt = parseTimestamp(created)
		result = append(result, &entry)
	}
	return result, rows.Err()
}

func scanSeries(row *sql.Row, slug string) (*Series, error) {
	var entry Series
	var created string
	err := row.Scan(&entry.ID, &entry.Slug, &entry.Title, &entry.Description, &created)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, services.Wrap(services.ErrNotFound, "catalog", "get series", fmt.Sprintf("series %q not found", slug), nil)
	}
	if err != nil {
		return nil, fmt.Errorf("scan series: %w", err)
	}
	entry.CreatedAt = parseTimestamp(created)
	return &entry, nil
}

// CreateSeason inserts a season for a series. Order is unique per series.
func (s *Store) CreateSeason(ctx context.Context, seriesID int64, order int, title string) (*Season, error) {
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO seasons (series_id, order_num, title) VALUES (?, ?, ?)`,
		seriesID, order, title,
	)
	if err != nil {
		return nil, wrapUnique(err, "insert season", fmt.Sprintf("season %d already exists in series %d", order, seriesID))
	}
	id, err := res.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("last insert id: %w", err)
	}
	return &Season{ID: id, SeriesID: seriesID, Order: order, Title: title}, nil
}

// GetSeason looks up a season by series and order number.
func (s *Store) GetSeason(ctx context.Context, seriesID int64, order int) (*Season, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, series_id, order_num, title FROM seasons WHERE series_id = ? AND order_num = ?`,
		seriesID, order)
	var season Season
	err := row.Scan(&season.ID, &season.SeriesID, &season.Order, &season.Title)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, services.Wrap(services.ErrNotFound, "catalog", "get season",
			fmt.Sprintf("season %d not found in series %d", order, seriesID), nil)
	}
	if err != nil {
		return nil, fmt.Errorf("scan season: %w", err)
	}
	return &season, nil
}

// GetSeasonByID looks up a season by its primary key.
func (s *Store) GetSeasonByID(ctx context.Context, id int64) (*Season, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, series_id, order_num, title FROM seasons WHERE id = ?`, id)
	var season Season
	err := row.Scan(&season.ID, &season.SeriesID, &season.Order, &season.Title)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, services.Wrap(services.ErrNotFound, "catalog", "get season",
			fmt.Sprintf("season %d not found", id), nil)
	}
	if err != nil {
		return nil, fmt.Errorf("scan season: %w", err)
	}
	return &season, nil
}

// ListSeasons returns a series' seasons ordered by order number.
func (s *Store) ListSeasons(ctx context.Context, seriesID int64) ([]*Season, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, series_id, order_num, title FROM seasons WHERE series_id = ? ORDER BY order_num`,
		seriesID)
	if err != nil {
		return nil, fmt.Errorf("list seasons: %w", err)
	}
	defer rows.Close()

	var result []*Season
	for rows.Next() {
		var season Season
		if err := rows.Scan(&season.ID, &season.SeriesID, &season.Order, &season.Title); err != nil {
			return nil, fmt.Errorf("scan season: %w", err)
		}
		result = append(result, &season)
	}
	return result, rows.Err()
}
