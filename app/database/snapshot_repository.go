package database

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/lysyi3m/cine-comb/app/movie"
)

// SnapshotRepository keeps one snapshot per calendar day
type SnapshotRepository struct {
	db *DB
}

func NewSnapshotRepository(db *DB) *SnapshotRepository {
	return &SnapshotRepository{db: db}
}

// Put stores snap under the calendar day of takenAt, in takenAt's location.
// A second run on the same day replaces the earlier snapshot.
func (r *SnapshotRepository) Put(ctx context.Context, takenAt time.Time, snap *movie.Snapshot) (string, error) {
	data, err := json.Marshal(snap)
	if err != nil {
		return "", fmt.Errorf("failed to encode snapshot: %w", err)
	}

	date := takenAt.Format(DateLayout)
	_, err = r.db.ExecContext(ctx, `
		INSERT INTO snapshots (snapshot_date, taken_at, movie_count, data)
		VALUES (?, ?, ?, ?)
		ON CONFLICT (snapshot_date) DO UPDATE SET
			taken_at = excluded.taken_at,
			movie_count = excluded.movie_count,
			data = excluded.data
	`, date, takenAt.Format(time.RFC3339), snap.Len(), string(data))
	if err != nil {
		return "", fmt.Errorf("failed to store snapshot: %w", err)
	}

	return date, nil
}

// Get returns the snapshot stored for exactly date (YYYY-MM-DD)
func (r *SnapshotRepository) Get(ctx context.Context, date string) (*StoredSnapshot, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT snapshot_date, taken_at, movie_count, data
		FROM snapshots
		WHERE snapshot_date = ?
	`, date)

	return scanSnapshot(row)
}

// GetLatestOnOrBefore returns the most recent snapshot whose day is not after
// date. ErrSnapshotNotFound means there is no such snapshot.
func (r *SnapshotRepository) GetLatestOnOrBefore(ctx context.Context, date string) (*StoredSnapshot, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT snapshot_date, taken_at, movie_count, data
		FROM snapshots
		WHERE snapshot_date <= ?
		ORDER BY snapshot_date DESC
		LIMIT 1
	`, date)

	return scanSnapshot(row)
}

// List returns snapshot metadata, newest first, without the movie records
func (r *SnapshotRepository) List(ctx context.Context, limit int) ([]StoredSnapshot, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT snapshot_date, taken_at, movie_count
		FROM snapshots
		ORDER BY snapshot_date DESC
		LIMIT ?
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list snapshots: %w", err)
	}
	defer rows.Close()

	snapshots := make([]StoredSnapshot, 0)
	for rows.Next() {
		var s StoredSnapshot
		var takenAt string
		if err := rows.Scan(&s.Date, &takenAt, &s.MovieCount); err != nil {
			return nil, fmt.Errorf("failed to scan snapshot row: %w", err)
		}
		if s.TakenAt, err = time.Parse(time.RFC3339, takenAt); err != nil {
			return nil, fmt.Errorf("invalid taken_at for %s: %w", s.Date, err)
		}
		snapshots = append(snapshots, s)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate snapshots: %w", err)
	}

	return snapshots, nil
}

func scanSnapshot(row *sql.Row) (*StoredSnapshot, error) {
	var s StoredSnapshot
	var takenAt, data string

	err := row.Scan(&s.Date, &takenAt, &s.MovieCount, &data)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrSnapshotNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read snapshot: %w", err)
	}

	if s.TakenAt, err = time.Parse(time.RFC3339, takenAt); err != nil {
		return nil, fmt.Errorf("invalid taken_at for %s: %w", s.Date, err)
	}

	var snap movie.Snapshot
	if err := json.Unmarshal([]byte(data), &snap); err != nil {
		return nil, fmt.Errorf("failed to decode snapshot %s: %w", s.Date, err)
	}
	s.Snapshot = &snap

	return &s, nil
}
