package database

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"time"

	"traktfm/models"
)

// HistoryRepository stores scrobbles in the shows and movies tables.
type HistoryRepository struct {
	db *DB
}

// NewHistoryRepository returns a repository over db.
func NewHistoryRepository(db *DB) *HistoryRepository {
	return &HistoryRepository{db: db}
}

// Save inserts shows and movies for username with insert-or-ignore semantics.
// Rows whose trakt id is already stored count as duplicates; malformed rows
// are rejected and logged without aborting the rest of the batch.
func (r *HistoryRepository) Save(ctx context.Context, username string, shows, movies []models.WatchedItem) (models.BatchResult, error) {
	var result models.BatchResult
	if len(shows) == 0 && len(movies) == 0 {
		return result, nil
	}

	conn, err := r.db.open(ctx)
	if err != nil {
		return result, err
	}
	defer conn.Close()

	tx, err := conn.BeginTx(ctx, nil)
	if err != nil {
		return result, fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	showStmt, err := tx.PrepareContext(ctx, `
		INSERT OR IGNORE INTO shows (username, title, season, episode, episode_title, watched_at, trakt_id)
		VALUES (?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return result, fmt.Errorf("prepare show insert: %w", err)
	}
	defer showStmt.Close()

	movieStmt, err := tx.PrepareContext(ctx, `
		INSERT OR IGNORE INTO movies (username, title, year, watched_at, trakt_id)
		VALUES (?, ?, ?, ?, ?)`)
	if err != nil {
		return result, fmt.Errorf("prepare movie insert: %w", err)
	}
	defer movieStmt.Close()

	for _, item := range shows {
		item.Kind = models.MediaEpisode
		r.insert(&result, item, func() (sql.Result, error) {
			return showStmt.ExecContext(ctx, username, item.Title, item.Season, item.Episode,
				nullString(item.EpisodeTitle), formatWatchedAt(item.WatchedAt), item.TraktID)
		})
	}

	for _, item := range movies {
		item.Kind = models.MediaMovie
		r.insert(&result, item, func() (sql.Result, error) {
			return movieStmt.ExecContext(ctx, username, item.Title, nullInt(item.Year),
				formatWatchedAt(item.WatchedAt), item.TraktID)
		})
	}

	if err := tx.Commit(); err != nil {
		return models.BatchResult{}, fmt.Errorf("commit history batch: %w", err)
	}

	log.Printf("[database] saved history user=%s accepted=%d duplicates=%d rejected=%d",
		username, result.Accepted, result.Duplicates, len(result.Rejected))
	return result, nil
}

func (r *HistoryRepository) insert(result *models.BatchResult, item models.WatchedItem, exec func() (sql.Result, error)) {
	reject := func(reason string) {
		log.Printf("[database] rejected %s trakt_id=%d title=%q: %s", item.Kind, item.TraktID, item.Title, reason)
		result.Rejected = append(result.Rejected, models.RejectedRecord{
			Kind:    item.Kind,
			TraktID: item.TraktID,
			Title:   item.Title,
			Reason:  reason,
		})
	}

	if reason := item.Validate(); reason != "" {
		reject(reason)
		return
	}

	res, err := exec()
	if err != nil {
		reject(err.Error())
		return
	}
	affected, err := res.RowsAffected()
	if err != nil {
		reject(err.Error())
		return
	}
	if affected == 0 {
		result.Duplicates++
		return
	}
	result.Accepted++
}

// Count returns the number of stored movies and show episodes for username.
func (r *HistoryRepository) Count(ctx context.Context, username string) (models.ScrobbleCounts, error) {
	var counts models.ScrobbleCounts

	conn, err := r.db.open(ctx)
	if err != nil {
		return counts, err
	}
	defer conn.Close()

	if err := conn.QueryRowContext(ctx, `SELECT COUNT(*) FROM movies WHERE username = ?`, username).Scan(&counts.Movies); err != nil {
		return counts, fmt.Errorf("count movies: %w", err)
	}
	if err := conn.QueryRowContext(ctx, `SELECT COUNT(*) FROM shows WHERE username = ?`, username).Scan(&counts.Shows); err != nil {
		return counts, fmt.Errorf("count shows: %w", err)
	}
	return counts, nil
}

// ListMovies returns the most recently watched stored movies for username.
func (r *HistoryRepository) ListMovies(ctx context.Context, username string, limit int) ([]models.WatchedItem, error) {
	conn, err := r.db.open(ctx)
	if err != nil {
		return nil, err
	}
	defer conn.Close()

	rows, err := conn.QueryContext(ctx, `
		SELECT id, title, COALESCE(year, 0), COALESCE(watched_at, ''), trakt_id
		FROM movies WHERE username = ?
		ORDER BY watched_at DESC, id DESC LIMIT ?`, username, limit)
	if err != nil {
		return nil, fmt.Errorf("query movies: %w", err)
	}
	defer rows.Close()

	var items []models.WatchedItem
	for rows.Next() {
		item := models.WatchedItem{Username: username, Kind: models.MediaMovie}
		var watchedAt string
		if err := rows.Scan(&item.ID, &item.Title, &item.Year, &watchedAt, &item.TraktID); err != nil {
			return nil, fmt.Errorf("scan movie: %w", err)
		}
		item.WatchedAt = parseWatchedAt(watchedAt)
		items = append(items, item)
	}
	return items, rows.Err()
}

// ListEpisodes returns the most recently watched stored episodes for username.
func (r *HistoryRepository) ListEpisodes(ctx context.Context, username string, limit int) ([]models.WatchedItem, error) {
	conn, err := r.db.open(ctx)
	if err != nil {
		return nil, err
	}
	defer conn.Close()

	rows, err := conn.QueryContext(ctx, `
		SELECT id, title, COALESCE(season, 0), COALESCE(episode, 0), COALESCE(episode_title, ''),
		       COALESCE(watched_at, ''), trakt_id
		FROM shows WHERE username = ?
		ORDER BY watched_at DESC, id DESC LIMIT ?`, username, limit)
	if err != nil {
		return nil, fmt.Errorf("query shows: %w", err)
	}
	defer rows.Close()

	var items []models.WatchedItem
	for rows.Next() {
		item := models.WatchedItem{Username: username, Kind: models.MediaEpisode}
		var watchedAt string
		if err := rows.Scan(&item.ID, &item.Title, &item.Season, &item.Episode, &item.EpisodeTitle, &watchedAt, &item.TraktID); err != nil {
			return nil, fmt.Errorf("scan episode: %w", err)
		}
		item.WatchedAt = parseWatchedAt(watchedAt)
		items = append(items, item)
	}
	return items, rows.Err()
}

func formatWatchedAt(t time.Time) interface{} {
	if t.IsZero() {
		return nil
	}
	return t.UTC().Format(time.RFC3339)
}

func parseWatchedAt(s string) time.Time {
	if s == "" {
		return time.Time{}
	}
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return time.Time{}
	}
	return t
}

func nullString(s string) interface{} {
	if s == "" {
		return nil
	}
	return s
}

func nullInt(n int) interface{} {
	if n == 0 {
		return nil
	}
	return n
}
