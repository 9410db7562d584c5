package ledger

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

const schema = `
CREATE TABLE IF NOT EXISTS urls (
    url TEXT PRIMARY KEY,
    timestamp INTEGER
);
CREATE TABLE IF NOT EXISTS posts (
    id INTEGER PRIMARY KEY,
    title TEXT,
    fanclub INTEGER,
    posted_at INTEGER,
    converted_at INTEGER,
    download_complete INTEGER,
    timestamp INTEGER
);
CREATE TABLE IF NOT EXISTS post_contents (
    id INTEGER PRIMARY KEY,
    parent_post INTEGER,
    title TEXT,
    category TEXT,
    price INTEGER,
    currency TEXT,
    timestamp INTEGER,
    FOREIGN KEY (parent_post) REFERENCES posts (id)
);`

// SQLite is a Ledger backed by a single SQLite file
type SQLite struct {
	db  *sql.DB
	now func() time.Time
}

// OpenSQLite opens or creates the ledger database at path
func OpenSQLite(ctx context.Context, path string) (*SQLite, error) {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create ledger directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open ledger: %w", err)
	}
	// one writer, one process
	db.SetMaxOpenConns(1)

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to ledger: %w", err)
	}

	if _, err := db.ExecContext(ctx, schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create ledger tables: %w", err)
	}

	return &SQLite{db: db, now: time.Now}, nil
}

func (s *SQLite) IsURLDownloaded(ctx context.Context, url string) (bool, error) {
	return s.exists(ctx, `SELECT 1 FROM urls WHERE url = ?`, url)
}

func (s *SQLite) RecordURL(ctx context.Context, url string) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT OR IGNORE INTO urls (url, timestamp) VALUES (?, ?)`,
		url, s.now().Unix())
	if err != nil {
		return fmt.Errorf("failed to record url: %w", err)
	}
	return nil
}

func (s *SQLite) FindPost(ctx context.Context, id int64) (*PostRecord, error) {
	var (
		rec                        PostRecord
		title                      sql.NullString
		fanclub, posted, converted sql.NullInt64
		complete, touched          sql.NullInt64
	)
	err := s.db.QueryRowContext(ctx,
		`SELECT id, title, fanclub, posted_at, converted_at, download_complete, timestamp
		 FROM posts WHERE id = ?`, id).
		Scan(&rec.ID, &title, &fanclub, &posted, &converted, &complete, &touched)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query post %d: %w", id, err)
	}

	rec.Title = title.String
	rec.FanclubID = fanclub.Int64
	rec.PostedAt = time.Unix(posted.Int64, 0)
	rec.ConvertedAt = time.Unix(converted.Int64, 0)
	rec.Complete = complete.Int64 != 0
	rec.Touched = time.Unix(touched.Int64, 0)
	return &rec, nil
}

func (s *SQLite) InsertPost(ctx context.Context, p PostRecord) error {
	_, err := s.db.ExecContext(ctx,
		`REPLACE INTO posts (id, title, fanclub, posted_at, converted_at, download_complete, timestamp)
		 VALUES (?, ?, ?, ?, ?, 0, ?)`,
		p.ID, p.Title, p.FanclubID, p.PostedAt.Unix(), p.ConvertedAt.Unix(), s.now().Unix())
	if err != nil {
		return fmt.Errorf("failed to insert post %d: %w", p.ID, err)
	}
	return nil
}

func (s *SQLite) SetPostComplete(ctx context.Context, id int64, complete bool) error {
	flag := 0
	if complete {
		flag = 1
	}
	return s.update(ctx, id,
		`UPDATE posts SET download_complete = ?, timestamp = ? WHERE id = ?`,
		flag, s.now().Unix(), id)
}

func (s *SQLite) UpdatePostConvertedAt(ctx context.Context, id int64, convertedAt time.Time) error {
	return s.update(ctx, id,
		`UPDATE posts SET converted_at = ?, timestamp = ? WHERE id = ?`,
		convertedAt.Unix(), s.now().Unix(), id)
}

func (s *SQLite) IsContentDownloaded(ctx context.Context, id int64) (bool, error) {
	return s.exists(ctx, `SELECT 1 FROM post_contents WHERE id = ?`, id)
}

func (s *SQLite) RecordContent(ctx context.Context, c ContentRecord) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT OR IGNORE INTO post_contents (id, parent_post, title, category, price, currency, timestamp)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		c.ID, c.PostID, c.Title, c.Category, c.Price, c.Currency, s.now().Unix())
	if err != nil {
		return fmt.Errorf("failed to record content %d: %w", c.ID, err)
	}
	return nil
}

func (s *SQLite) Persistent() bool { return true }

func (s *SQLite) Close() error {
	return s.db.Close()
}

func (s *SQLite) exists(ctx context.Context, query string, arg interface{}) (bool, error) {
	var one int
	err := s.db.QueryRowContext(ctx, query, arg).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("ledger lookup failed: %w", err)
	}
	return true, nil
}

func (s *SQLite) update(ctx context.Context, id int64, query string, args ...interface{}) error {
	res, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("failed to update post %d: %w", id, err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("post %d is not in the ledger", id)
	}
	return nil
}
