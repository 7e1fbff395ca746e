// Package storage provides SQLite-backed persistence for classified tweets and
// refresh cycle history.
//
// Tweets feed the sentiment backend's aggregations; cycle records are written by
// the dashboard after every applied refresh and rotated to a fixed maximum so
// the history never grows without bound.
package storage

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"

	"github.com/rewired-gh/sentimentdash/internal/models"
)

const schema = `
CREATE TABLE IF NOT EXISTS tweets (
	id          TEXT PRIMARY KEY,
	user        TEXT NOT NULL,
	text        TEXT NOT NULL,
	ts          INTEGER NOT NULL,
	sentiment   TEXT NOT NULL,
	probability REAL NOT NULL,
	likes       INTEGER NOT NULL DEFAULT 0,
	retweets    INTEGER NOT NULL DEFAULT 0,
	comments    INTEGER NOT NULL DEFAULT 0
);
CREATE INDEX IF NOT EXISTS idx_tweets_ts ON tweets(ts);
CREATE INDEX IF NOT EXISTS idx_tweets_user ON tweets(user COLLATE NOCASE);

CREATE TABLE IF NOT EXISTS refresh_cycles (
	id           TEXT PRIMARY KEY,
	sequence     INTEGER NOT NULL,
	started_at   INTEGER NOT NULL,
	completed_at INTEGER NOT NULL,
	mode         TEXT NOT NULL,
	fallbacks    TEXT NOT NULL,
	overall      TEXT,
	forced       INTEGER NOT NULL DEFAULT 0
);
CREATE INDEX IF NOT EXISTS idx_cycles_completed ON refresh_cycles(completed_at);
`

const tweetColumns = `id, user, text, ts, sentiment, probability, likes, retweets, comments`

// ErrInvalidLimit is returned by ranking queries for non-positive limits.
var ErrInvalidLimit = errors.New("limit must be positive")

// Storage is a SQLite store. It is safe for concurrent use; writes are
// serialized through a single connection.
type Storage struct {
	db        *sql.DB
	maxCycles int
}

// New opens (or creates) the database at dbPath. ":memory:" opens a private
// in-memory database. Cycle history is rotated to maxCycles records.
func New(maxCycles int, dbPath string) (*Storage, error) {
	if maxCycles < 1 {
		return nil, fmt.Errorf("maxCycles must be at least 1, got %d", maxCycles)
	}
	if dbPath != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
			return nil, fmt.Errorf("failed to create data directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// A second connection to ":memory:" would see an empty database.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(`PRAGMA journal_mode=WAL; PRAGMA busy_timeout=5000;`); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to configure database: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to create schema: %w", err)
	}

	return &Storage{db: db, maxCycles: maxCycles}, nil
}

// Close releases the database.
func (s *Storage) Close() error {
	return s.db.Close()
}

// UpsertTweet validates and stores a tweet, replacing any tweet with the same ID.
func (s *Storage) UpsertTweet(t *models.Tweet) error {
	if err := t.Validate(); err != nil {
		return fmt.Errorf("invalid tweet: %w", err)
	}
	if _, err := s.db.Exec(upsertTweet, tweetArgs(t)...); err != nil {
		return fmt.Errorf("failed to upsert tweet %s: %w", t.ID, err)
	}
	return nil
}

const upsertTweet = `
INSERT INTO tweets (` + tweetColumns + `) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
ON CONFLICT(id) DO UPDATE SET
	user = excluded.user,
	text = excluded.text,
	ts = excluded.ts,
	sentiment = excluded.sentiment,
	probability = excluded.probability,
	likes = excluded.likes,
	retweets = excluded.retweets,
	comments = excluded.comments`

// ImportTweets stores tweets in one transaction. Invalid tweets are skipped
// and counted; the number of stored tweets is returned.
func (s *Storage) ImportTweets(tweets []models.Tweet) (stored, skipped int, err error) {
	tx, err := s.db.Begin()
	if err != nil {
		return 0, 0, fmt.Errorf("failed to begin import: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	stmt, err := tx.Prepare(upsertTweet)
	if err != nil {
		return 0, 0, fmt.Errorf("failed to prepare import: %w", err)
	}
	defer stmt.Close()

	for i := range tweets {
		if tweets[i].Validate() != nil {
			skipped++
			continue
		}
		if _, err := stmt.Exec(tweetArgs(&tweets[i])...); err != nil {
			return 0, 0, fmt.Errorf("failed to import tweet %s: %w", tweets[i].ID, err)
		}
		stored++
	}

	if err := tx.Commit(); err != nil {
		return 0, 0, fmt.Errorf("failed to commit import: %w", err)
	}
	return stored, skipped, nil
}

// CountTweets returns the number of stored tweets.
func (s *Storage) CountTweets() (int, error) {
	var n int
	if err := s.db.QueryRow(`SELECT COUNT(*) FROM tweets`).Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count tweets: %w", err)
	}
	return n, nil
}

// ListTweets returns every tweet, oldest first.
func (s *Storage) ListTweets() ([]models.Tweet, error) {
	return s.queryTweets(`SELECT ` + tweetColumns + ` FROM tweets ORDER BY ts, id`)
}

// TweetsBetween returns tweets posted within [start, end], oldest first.
func (s *Storage) TweetsBetween(start, end time.Time) ([]models.Tweet, error) {
	return s.queryTweets(`SELECT `+tweetColumns+` FROM tweets WHERE ts >= ? AND ts <= ? ORDER BY ts, id`,
		start.UnixNano(), end.UnixNano())
}

// TweetsSince returns tweets posted at or after since, oldest first.
func (s *Storage) TweetsSince(since time.Time) ([]models.Tweet, error) {
	return s.queryTweets(`SELECT `+tweetColumns+` FROM tweets WHERE ts >= ? ORDER BY ts, id`, since.UnixNano())
}

// TweetsByUser returns a user's tweets, matching the name case-insensitively.
func (s *Storage) TweetsByUser(user string) ([]models.Tweet, error) {
	return s.queryTweets(`SELECT `+tweetColumns+` FROM tweets WHERE user = ? COLLATE NOCASE ORDER BY ts, id`, user)
}

// SearchTweets returns tweets whose text contains keyword, ignoring case.
func (s *Storage) SearchTweets(keyword string) ([]models.Tweet, error) {
	return s.queryTweets(`SELECT `+tweetColumns+` FROM tweets WHERE instr(lower(text), lower(?)) > 0 ORDER BY ts, id`, keyword)
}

// TopUsersByLikes returns the users with the most total likes.
func (s *Storage) TopUsersByLikes(limit int) ([]models.UserLikes, error) {
	if limit < 1 {
		return nil, ErrInvalidLimit
	}
	rows, err := s.db.Query(`
		SELECT user, SUM(likes) AS total
		FROM tweets
		GROUP BY user
		ORDER BY total DESC, user
		LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query top users: %w", err)
	}
	defer rows.Close()

	users := make([]models.UserLikes, 0, limit)
	for rows.Next() {
		var u models.UserLikes
		if err := rows.Scan(&u.User, &u.TotalLikes); err != nil {
			return nil, fmt.Errorf("failed to scan top user: %w", err)
		}
		users = append(users, u)
	}
	return users, rows.Err()
}

// TopTweetsByRetweets returns the most retweeted tweets.
func (s *Storage) TopTweetsByRetweets(limit int) ([]models.Tweet, error) {
	if limit < 1 {
		return nil, ErrInvalidLimit
	}
	return s.queryTweets(`SELECT `+tweetColumns+` FROM tweets ORDER BY retweets DESC, ts DESC LIMIT ?`, limit)
}

func (s *Storage) queryTweets(query string, args ...any) ([]models.Tweet, error) {
	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query tweets: %w", err)
	}
	defer rows.Close()

	var tweets []models.Tweet
	for rows.Next() {
		var (
			t  models.Tweet
			ts int64
		)
		if err := rows.Scan(&t.ID, &t.User, &t.Text, &ts, &t.Sentiment, &t.Probability,
			&t.Likes, &t.Retweets, &t.Comments); err != nil {
			return nil, fmt.Errorf("failed to scan tweet: %w", err)
		}
		t.Timestamp = time.Unix(0, ts).UTC()
		tweets = append(tweets, t)
	}
	return tweets, rows.Err()
}

func tweetArgs(t *models.Tweet) []any {
	return []any{
		t.ID, t.User, t.Text, t.Timestamp.UnixNano(), t.Sentiment, t.Probability,
		int64(t.Likes), int64(t.Retweets), int64(t.Comments),
	}
}

// RecordCycle persists a refresh cycle and rotates the history.
func (s *Storage) RecordCycle(rec *models.CycleRecord) error {
	if rec.ID == "" {
		return errors.New("invalid cycle: ID must not be empty")
	}
	if rec.CompletedAt.Before(rec.StartedAt) {
		return errors.New("invalid cycle: completed before it started")
	}

	fallbacks := rec.FallbackEndpoints
	if fallbacks == nil {
		fallbacks = []models.Endpoint{}
	}
	fallbackJSON, err := json.Marshal(fallbacks)
	if err != nil {
		return fmt.Errorf("failed to marshal fallback endpoints: %w", err)
	}
	var overall sql.NullString
	if rec.Overall != nil {
		data, err := json.Marshal(rec.Overall)
		if err != nil {
			return fmt.Errorf("failed to marshal overall sample: %w", err)
		}
		overall = sql.NullString{String: string(data), Valid: true}
	}

	_, err = s.db.Exec(`
		INSERT OR REPLACE INTO refresh_cycles
			(id, sequence, started_at, completed_at, mode, fallbacks, overall, forced)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		rec.ID, int64(rec.Sequence), rec.StartedAt.UnixNano(), rec.CompletedAt.UnixNano(),
		string(rec.Mode), string(fallbackJSON), overall, rec.Forced)
	if err != nil {
		return fmt.Errorf("failed to record cycle %s: %w", rec.ID, err)
	}

	return s.RotateCycles()
}

// RecentCycles returns up to limit cycle records, newest first.
func (s *Storage) RecentCycles(limit int) ([]models.CycleRecord, error) {
	if limit < 1 {
		return nil, ErrInvalidLimit
	}
	rows, err := s.db.Query(`
		SELECT id, sequence, started_at, completed_at, mode, fallbacks, overall, forced
		FROM refresh_cycles
		ORDER BY completed_at DESC, rowid DESC
		LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query cycles: %w", err)
	}
	defer rows.Close()

	var cycles []models.CycleRecord
	for rows.Next() {
		var (
			rec                models.CycleRecord
			seq, started, done int64
			mode, fallbacks    string
			overall            sql.NullString
		)
		if err := rows.Scan(&rec.ID, &seq, &started, &done, &mode, &fallbacks, &overall, &rec.Forced); err != nil {
			return nil, fmt.Errorf("failed to scan cycle: %w", err)
		}
		rec.Sequence = uint64(seq)
		rec.StartedAt = time.Unix(0, started).UTC()
		rec.CompletedAt = time.Unix(0, done).UTC()
		rec.Mode = models.SyntheticMode(mode)
		if err := json.Unmarshal([]byte(fallbacks), &rec.FallbackEndpoints); err != nil {
			return nil, fmt.Errorf("failed to decode fallbacks of cycle %s: %w", rec.ID, err)
		}
		if overall.Valid {
			rec.Overall = &models.SentimentSample{}
			if err := json.Unmarshal([]byte(overall.String), rec.Overall); err != nil {
				return nil, fmt.Errorf("failed to decode overall of cycle %s: %w", rec.ID, err)
			}
		}
		cycles = append(cycles, rec)
	}
	return cycles, rows.Err()
}

// RotateCycles removes the oldest cycle records beyond the configured maximum.
func (s *Storage) RotateCycles() error {
	_, err := s.db.Exec(`
		DELETE FROM refresh_cycles
		WHERE rowid NOT IN (
			SELECT rowid FROM refresh_cycles
			ORDER BY completed_at DESC, rowid DESC
			LIMIT ?
		)`, s.maxCycles)
	if err != nil {
		return fmt.Errorf("failed to rotate cycles: %w", err)
	}
	return nil
}
