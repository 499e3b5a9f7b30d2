// Package store keeps the latest successfully extracted record per listing
// and description format in SQLite.
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "modernc.org/sqlite"

	"github.com/use-agent/seekjobs/models"
)

type DB struct {
	Pool *sql.DB
}

func Open(path string) (*DB, error) {
	// modernc sqlite DSN: file:foo.db?_pragma=busy_timeout(5000)
	dsn := fmt.Sprintf("file:%s?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)", path)

	pool, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, err
	}

	// sqlite wants a single writer
	pool.SetMaxOpenConns(1)
	pool.SetConnMaxLifetime(5 * time.Minute)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := pool.PingContext(ctx); err != nil {
		_ = pool.Close()
		return nil, err
	}

	db := &DB{Pool: pool}
	if err := db.Migrate(ctx); err != nil {
		_ = pool.Close()
		return nil, err
	}
	return db, nil
}

func (d *DB) Close() error {
	if d == nil || d.Pool == nil {
		return nil
	}
	return d.Pool.Close()
}

// Migrate creates the schema if it does not exist.
func (d *DB) Migrate(ctx context.Context) error {
	_, err := d.Pool.ExecContext(ctx, `
CREATE TABLE IF NOT EXISTS listings (
	job_id       TEXT NOT NULL,
	format       TEXT NOT NULL,
	url          TEXT NOT NULL,
	title        TEXT NOT NULL,
	company      TEXT NOT NULL,
	location     TEXT NOT NULL,
	description  TEXT NOT NULL,
	posting_time TEXT NOT NULL,
	work_type    TEXT NOT NULL,
	industry     TEXT NOT NULL,
	category     TEXT NOT NULL,
	first_seen   INTEGER NOT NULL,
	last_seen    INTEGER NOT NULL,
	PRIMARY KEY (job_id, format)
);
CREATE INDEX IF NOT EXISTS idx_listings_category ON listings(category);`)
	if err != nil {
		return fmt.Errorf("store: migrate: %w", err)
	}
	return nil
}

// UpsertListings stores every successful record under format, keeping
// first_seen from the earliest sighting. Failure records are skipped. It
// returns how many rows were written.
func (d *DB) UpsertListings(ctx context.Context, format string, recs []models.ListingRecord) (int, error) {
	tx, err := d.Pool.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("store: begin: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `
INSERT INTO listings (job_id, format, url, title, company, location, description, posting_time, work_type, industry, category, first_seen, last_seen)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
ON CONFLICT(job_id, format) DO UPDATE SET
	url = excluded.url,
	title = excluded.title,
	company = excluded.company,
	location = excluded.location,
	description = excluded.description,
	posting_time = excluded.posting_time,
	work_type = excluded.work_type,
	industry = excluded.industry,
	category = excluded.category,
	last_seen = excluded.last_seen;`)
	if err != nil {
		return 0, fmt.Errorf("store: prepare upsert: %w", err)
	}
	defer stmt.Close()

	now := time.Now().Unix()
	n := 0
	for _, r := range recs {
		if r.Failed() {
			continue
		}
		if _, err := stmt.ExecContext(ctx,
			r.JobID, format, r.URL, r.Title, r.Company, r.Location, r.Description,
			r.PostingTime, r.WorkType, r.Industry, r.Category, now, now,
		); err != nil {
			return 0, fmt.Errorf("store: upsert %s: %w", r.JobID, err)
		}
		n++
	}
	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("store: commit: %w", err)
	}
	return n, nil
}

// GetListing returns the record stored for id in format and when it was
// last seen. ok is false when no such record has been stored.
func (d *DB) GetListing(ctx context.Context, id, format string) (rec *models.ListingRecord, lastSeen time.Time, ok bool, err error) {
	var r models.ListingRecord
	var seen int64
	err = d.Pool.QueryRowContext(ctx, `
SELECT job_id, url, title, company, location, description, posting_time, work_type, industry, category, last_seen
FROM listings WHERE job_id = ? AND format = ?;`, id, format).Scan(
		&r.JobID, &r.URL, &r.Title, &r.Company, &r.Location, &r.Description,
		&r.PostingTime, &r.WorkType, &r.Industry, &r.Category, &seen,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, time.Time{}, false, nil
	}
	if err != nil {
		return nil, time.Time{}, false, fmt.Errorf("store: get %s: %w", id, err)
	}
	return &r, time.Unix(seen, 0), true, nil
}
