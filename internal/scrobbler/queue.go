package scrobbler

import (
	"context"
	"embed"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/pressly/goose/v3"

	_ "modernc.org/sqlite"
)

//go:embed migrations/*.sql
var migrations embed.FS

// MaxScrobbleAge is how far back Last.fm accepts scrobbles.
const MaxScrobbleAge = 14 * 24 * time.Hour

// Queue is the scrobble journal: every play is recorded before it is
// submitted, and rows that failed stay pending for the retry loop.
type Queue struct {
	db *sqlx.DB
}

// QueuedScrobble represents a scrobble in the journal
type QueuedScrobble struct {
	ID        int64
	TrackKey  string
	TrackURI  string
	TrackName string
	Artist    string
	Album     string
	Duration  time.Duration
	Timestamp time.Time
	Scrobbled bool
	Error     string
	CreatedAt time.Time
}

type scrobbleRow struct {
	ID        int64  `db:"id"`
	TrackKey  string `db:"track_key"`
	TrackURI  string `db:"track_uri"`
	TrackName string `db:"track_name"`
	Artist    string `db:"artist"`
	Album     string `db:"album"`
	Duration  int64  `db:"duration"`
	Timestamp int64  `db:"timestamp"`
	Scrobbled bool   `db:"scrobbled"`
	Error     string `db:"error"`
	CreatedAt int64  `db:"created_at"`
}

func (r scrobbleRow) toQueued() QueuedScrobble {
	return QueuedScrobble{
		ID:        r.ID,
		TrackKey:  r.TrackKey,
		TrackURI:  r.TrackURI,
		TrackName: r.TrackName,
		Artist:    r.Artist,
		Album:     r.Album,
		Duration:  time.Duration(r.Duration) * time.Second,
		Timestamp: time.Unix(r.Timestamp, 0),
		Scrobbled: r.Scrobbled,
		Error:     r.Error,
		CreatedAt: time.Unix(r.CreatedAt, 0),
	}
}

const selectColumns = `
	SELECT id, track_key, track_uri, track_name, artist, COALESCE(album, '') AS album,
		duration, timestamp, scrobbled, COALESCE(error, '') AS error, created_at
	FROM scrobbles
`

// NewQueue opens (or creates) the journal at dbPath and applies migrations.
func NewQueue(dbPath string) (*Queue, error) {
	db, err := sqlx.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// One connection keeps :memory: databases consistent and serialises writers.
	db.SetMaxOpenConns(1)

	pragmas := []string{
		"PRAGMA foreign_keys = ON",
		"PRAGMA busy_timeout = 10000",
		"PRAGMA synchronous = NORMAL",
		"PRAGMA journal_mode = WAL",
		"PRAGMA temp_store = MEMORY",
		"PRAGMA cache_size = -64000",
	}

	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("failed to set pragma: %w", err)
		}
	}

	if err := migrate(db); err != nil {
		_ = db.Close()
		return nil, err
	}

	return &Queue{db: db}, nil
}

func migrate(db *sqlx.DB) error {
	goose.SetBaseFS(migrations)
	goose.SetLogger(goose.NopLogger())

	if err := goose.SetDialect(string(goose.DialectSQLite3)); err != nil {
		return fmt.Errorf("failed to set migration dialect: %w", err)
	}
	if err := goose.Up(db.DB, "migrations"); err != nil {
		return fmt.Errorf("failed to apply migrations: %w", err)
	}
	return nil
}

// Close closes the database connection
func (q *Queue) Close() error {
	if q.db != nil {
		return q.db.Close()
	}
	return nil
}

// Add records a play and returns its row id.
func (q *Queue) Add(ctx context.Context, s Scrobble) (int64, error) {
	row := scrobbleRow{
		TrackKey:  s.Track.Key(),
		TrackURI:  s.Track.TrackURI,
		TrackName: s.Title,
		Artist:    s.Artist,
		Album:     s.Album,
		Duration:  int64(s.Duration.Seconds()),
		Timestamp: s.Timestamp.Unix(),
	}

	result, err := q.db.NamedExecContext(ctx, `
		INSERT INTO scrobbles (track_key, track_uri, track_name, artist, album, duration, timestamp)
		VALUES (:track_key, :track_uri, :track_name, :artist, :album, :duration, :timestamp)
	`, row)
	if err != nil {
		return 0, fmt.Errorf("failed to insert scrobble: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("failed to get insert id: %w", err)
	}

	return id, nil
}

// MarkScrobbled marks a scrobble as successfully scrobbled
func (q *Queue) MarkScrobbled(ctx context.Context, id int64) error {
	result, err := q.db.ExecContext(ctx, `UPDATE scrobbles SET scrobbled = 1, error = NULL WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to mark scrobble as scrobbled: %w", err)
	}
	return expectOneRow(result, id)
}

// MarkScrobbledBatch marks multiple scrobbles as successfully scrobbled
func (q *Queue) MarkScrobbledBatch(ctx context.Context, ids []int64) error {
	if len(ids) == 0 {
		return nil
	}

	query, args, err := sqlx.In(`UPDATE scrobbles SET scrobbled = 1, error = NULL WHERE id IN (?)`, ids)
	if err != nil {
		return fmt.Errorf("failed to build batch update: %w", err)
	}

	if _, err := q.db.ExecContext(ctx, q.db.Rebind(query), args...); err != nil {
		return fmt.Errorf("failed to mark scrobbles: %w", err)
	}
	return nil
}

// MarkError records why a submission failed. The row stays pending.
func (q *Queue) MarkError(ctx context.Context, id int64, errMsg string) error {
	result, err := q.db.ExecContext(ctx, `UPDATE scrobbles SET error = ? WHERE id = ?`, errMsg, id)
	if err != nil {
		return fmt.Errorf("failed to mark scrobble error: %w", err)
	}
	return expectOneRow(result, id)
}

type rowsAffecter interface {
	RowsAffected() (int64, error)
}

func expectOneRow(result rowsAffecter, id int64) error {
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("scrobble with id %d not found", id)
	}
	return nil
}

// GetPending retrieves pending scrobbles, oldest first. limit <= 0 means all.
func (q *Queue) GetPending(ctx context.Context, limit int) ([]QueuedScrobble, error) {
	query := selectColumns + ` WHERE scrobbled = 0 ORDER BY timestamp ASC`
	if limit > 0 {
		query += fmt.Sprintf(" LIMIT %d", limit)
	}
	return q.selectRows(ctx, "pending", query)
}

// GetRetryable returns pending scrobbles that are safe to resubmit: rows that
// already failed, and rows created before staleBefore that never finished
// (left behind by a crash mid-submission).
func (q *Queue) GetRetryable(ctx context.Context, limit int, staleBefore time.Time) ([]QueuedScrobble, error) {
	query := selectColumns + `
		WHERE scrobbled = 0
		AND (error IS NOT NULL OR created_at < ?)
		ORDER BY timestamp ASC
	`
	if limit > 0 {
		query += fmt.Sprintf(" LIMIT %d", limit)
	}
	return q.selectRows(ctx, "retryable", query, staleBefore.Unix())
}

// GetRecent returns the newest journal rows first. limit <= 0 means all.
func (q *Queue) GetRecent(ctx context.Context, limit int) ([]QueuedScrobble, error) {
	query := selectColumns + ` ORDER BY timestamp DESC, id DESC`
	if limit > 0 {
		query += fmt.Sprintf(" LIMIT %d", limit)
	}
	return q.selectRows(ctx, "recent", query)
}

// GetAll retrieves all scrobbles, newest first.
func (q *Queue) GetAll(ctx context.Context) ([]QueuedScrobble, error) {
	return q.GetRecent(ctx, 0)
}

func (q *Queue) selectRows(ctx context.Context, what, query string, args ...any) ([]QueuedScrobble, error) {
	var rows []scrobbleRow
	if err := q.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, fmt.Errorf("failed to query %s scrobbles: %w", what, err)
	}

	scrobbles := make([]QueuedScrobble, 0, len(rows))
	for _, r := range rows {
		scrobbles = append(scrobbles, r.toQueued())
	}
	return scrobbles, nil
}

// Cleanup removes scrobbled rows older than maxAge. Pending rows are kept.
func (q *Queue) Cleanup(ctx context.Context, maxAge time.Duration) (int64, error) {
	cutoff := time.Now().Add(-maxAge).Unix()

	result, err := q.db.ExecContext(ctx, `DELETE FROM scrobbles WHERE scrobbled = 1 AND timestamp < ?`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("failed to cleanup old scrobbles: %w", err)
	}

	deleted, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to get rows affected: %w", err)
	}
	return deleted, nil
}

// CleanupOldFailed drops failed rows Last.fm would no longer accept.
func (q *Queue) CleanupOldFailed(ctx context.Context) (int64, error) {
	cutoff := time.Now().Add(-MaxScrobbleAge).Unix()

	result, err := q.db.ExecContext(ctx, `
		DELETE FROM scrobbles
		WHERE scrobbled = 0
		AND error IS NOT NULL
		AND timestamp < ?
	`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("failed to cleanup old failed scrobbles: %w", err)
	}

	deleted, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to get rows affected: %w", err)
	}
	return deleted, nil
}

// Count returns the number of journal rows.
// If includeScrobbled is false, only counts pending scrobbles
func (q *Queue) Count(ctx context.Context, includeScrobbled bool) (int, error) {
	query := "SELECT COUNT(*) FROM scrobbles"
	if !includeScrobbled {
		query += " WHERE scrobbled = 0"
	}

	var count int
	if err := q.db.GetContext(ctx, &count, query); err != nil {
		return 0, fmt.Errorf("failed to count scrobbles: %w", err)
	}
	return count, nil
}
